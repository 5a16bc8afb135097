// Package transport connects a plugin context to its host over JSON-RPC 2.0.
//
// The host side of the boundary (journal delivery, shutdown requests, the
// settings pane) may live in another process. A Bridge exposes one
// pluginctx.Context over a Transport:
//
//	host → plugin   journal.batch      notification {cmdr, file, events}
//	host → plugin   plugin.shutdown    notification
//	host → plugin   settings.get       request {key} → {value, found}
//	host → plugin   settings.write     request {key, value} → {value}
//	host → plugin   plugin.meta        request → manifest
//	plugin → host   settings.changed   notification {key, value}
//	plugin → host   plugin.stopped     notification {duration_ms, callbacks, failed, abandoned, error}
//
// Two transports are provided, both line/message framed and safe for
// concurrent use:
//
//   - StdioTransport: newline-delimited JSON over a reader/writer pair
//   - WebSocketTransport: one JSON-RPC message per text frame
//
// Recv is closed when the transport shuts down. Queued sends are flushed
// before the connection closes.
package transport
