// Package journal decodes and fans out batches of journal events.
//
// The host hands the Hub one batch at a time: the raw event strings of one
// journal file written by one commander. Each listener picks a decoding
// mode when it registers and receives every batch exactly once, decoded in
// that mode, with the batch's grouping and order intact:
//
//	stop := journal.Listen(hub, journal.JSONBigInt, func(b journal.Batch[journal.Event]) {
//	    for _, ev := range b.Events {
//	        fmt.Println(b.Cmdr, ev.Name())
//	    }
//	})
//	defer stop()
//
// Modes trade fidelity for convenience:
//
//   - Raw: the event string, untouched
//   - JSONBigInt: decoded objects where every integer is a *big.Int
//   - JSONSimple: decoded objects where every number is a float64
//
// Events that fail to decode are left out of Batch.Events and reported in
// Batch.Errors; the rest of the batch is still delivered.
//
// On the host side, a Tailer watches a journal directory and publishes each
// write as a BatchMessage on a bus subject, and a Feed turns that subject
// back into Hub deliveries.
package journal
