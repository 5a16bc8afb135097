// Package errors provides the structured error taxonomy used across the
// plugin context boundary.
//
// # Error Codes
//
// Every failure a plugin can observe carries a code:
//
//   - INVALID_KEY: a settings key is structurally empty or malformed
//   - PERMISSION_DENIED: a read or write outside the plugin's namespace
//   - MALFORMED_EVENT: a single journal event could not be decoded
//   - SHUTDOWN_TIMEOUT: the grace period elapsed with callbacks pending
//   - INVALID_INPUT, NOT_FOUND, UNAVAILABLE, TIMEOUT, CANCELED, INTERNAL, PANIC
//
// Codes map onto categories (transient, permanent, internal) that tell the
// host whether retrying makes sense.
//
// # Usage
//
//	err := errors.PermissionDenied("write denied",
//	    errors.WithPluginID("alpha"),
//	    errors.WithMetadata("key", "beta.secret"))
//
//	if errors.Is(err, errors.ErrCodePermissionDenied) {
//	    // surface to the plugin author
//	}
//
// Errors marshal to JSON so they can cross the host bridge unchanged.
package errors
