// Package settings mediates a plugin's access to the host settings store.
//
// Keys are dot-separated paths whose first segment names the owning plugin.
// A key starting with "." is abbreviated and always resolves inside the
// calling plugin's namespace:
//
//	alpha.theme      alpha's own setting (read/write for alpha)
//	.theme           same key, when called by alpha
//	beta.Layout      beta's private setting (no access for alpha)
//	beta.LAYOUT      beta's public setting (read-only for alpha)
//
// A Capability checks every Get and Write against the resolved permission,
// reads through to the store on every call, and notifies change listeners
// synchronously in registration order before Write returns. Writes made by
// other capabilities on the same store reach the listeners too, later and on
// the goroutine following the store's change feed, for keys this plugin may
// read.
//
// Binding follows one key: it loads the current value, tracks updates, and
// writes back through the capability.
package settings
