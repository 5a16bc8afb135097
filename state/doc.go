// Package state provides the host-owned settings store that the plugin
// context reads from and writes to.
//
// The context never caches values: every settings read is a fresh Store.Read
// and every write goes through Store.Write, which returns the committed value.
// Writing a nil value clears the key so later reads report it absent.
//
// # Backends
//
//   - MemoryStore: in-process map, values kept as-is (tests, single process)
//   - NATSStore: NATS JetStream KV bucket, values encoded as JSON
//
// # Usage
//
//	store := state.NewMemoryStore()
//	defer store.Close()
//
//	committed, _ := store.Write(ctx, "alpha.theme", "dark")
//	v, ok, _ := store.Read(ctx, "alpha.theme")
//
//	// Every change, tagged with the writer set by WithOrigin
//	ch, _ := store.Watch(ctx, "alpha.*")
//	for e := range ch {
//	    fmt.Println(e.Key, e.Operation, e.Value, e.Origin)
//	}
package state
