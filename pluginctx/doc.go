// Package pluginctx assembles the capability surface handed to a plugin.
//
// A Context is the plugin's only handle on the host. It exposes:
//
//   - Settings: namespaced, permission-checked settings with change listeners
//   - RegisterEventListener / Journal: batched journal events
//   - RegisterShutdownListener: cleanup callbacks with a one-second grace period
//   - OpenURL: opens http/https links in the user's browser
//   - AssetsBase / Assets: URLs of the plugin's packaged files
//   - PluginMeta: the plugin's manifest
//
// A SettingsContext is the reduced surface for settings-only views; it has
// everything except the journal.
//
// The host keeps the other side: DeliverJournalBatch feeds events in and
// RequestShutdown runs the shutdown sequence and tears the context down.
// Nothing here is global; every context is built from explicit Options.
package pluginctx
