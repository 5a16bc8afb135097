// Package bus carries raw journal batches from the host's event source to
// plugin contexts.
//
// Unlike a fire-and-forget event bus, a journal subscription must not lose
// or reorder batches: both implementations block the publisher while a
// subscriber's buffer is full, and deliver to each subscription in publish
// order.
//
//   - NATSBus: NATS core pub/sub, for hosts that tail journals out of process
//   - MemoryBus: in-process channels, for single-binary hosts and tests
//
// Every published message is stamped with a unique ID, and headers carry
// trace context between publisher and subscriber:
//
//	msg := bus.NewMessage("journal.batches", data)
//	telemetry.InjectContext(ctx, telemetry.MapCarrier(msg.Header))
//	b.PublishMsg(msg)
//
//	sub, _ := b.Subscribe("journal.batches")
//	for msg := range sub.Messages() {
//	    // decode and deliver
//	}
package bus
