package errors

// ErrorCategory classifies errors by their nature and retry semantics.
type ErrorCategory string

const (
	// CategoryTransient indicates temporary failures where retry may succeed.
	CategoryTransient ErrorCategory = "transient"

	// CategoryPermanent indicates failures where retry will not help.
	CategoryPermanent ErrorCategory = "permanent"

	// CategoryInternal indicates unexpected errors or bugs.
	CategoryInternal ErrorCategory = "internal"
)

// String returns the string representation of the category.
func (c ErrorCategory) String() string {
	return string(c)
}

// IsRetryable returns true if errors in this category may succeed on retry.
func (c ErrorCategory) IsRetryable() bool {
	return c == CategoryTransient
}

// ErrorCode identifies specific error types within categories.
type ErrorCode string

const (
	// Plugin boundary errors
	ErrCodeInvalidKey       ErrorCode = "INVALID_KEY"       // Empty or malformed settings key
	ErrCodePermissionDenied ErrorCode = "PERMISSION_DENIED" // Namespace check failed
	ErrCodeMalformedEvent   ErrorCode = "MALFORMED_EVENT"   // Journal event failed to decode
	ErrCodeShutdownTimeout  ErrorCode = "SHUTDOWN_TIMEOUT"  // Grace period elapsed

	// General errors
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeUnavailable  ErrorCode = "UNAVAILABLE"
	ErrCodeTimeout      ErrorCode = "TIMEOUT"
	ErrCodeCanceled     ErrorCode = "CANCELED"
	ErrCodeInternal     ErrorCode = "INTERNAL"
	ErrCodePanic        ErrorCode = "PANIC"
)

// String returns the string representation of the error code.
func (c ErrorCode) String() string {
	return string(c)
}

// DefaultCategory returns the default category for an error code.
func (c ErrorCode) DefaultCategory() ErrorCategory {
	switch c {
	case ErrCodeUnavailable, ErrCodeTimeout:
		return CategoryTransient
	case ErrCodeInvalidKey, ErrCodePermissionDenied, ErrCodeMalformedEvent,
		ErrCodeShutdownTimeout, ErrCodeInvalidInput, ErrCodeNotFound, ErrCodeCanceled:
		return CategoryPermanent
	default:
		return CategoryInternal
	}
}

var codeDescriptions = map[ErrorCode]string{
	ErrCodeInvalidKey:       "invalid settings key",
	ErrCodePermissionDenied: "permission denied",
	ErrCodeMalformedEvent:   "malformed journal event",
	ErrCodeShutdownTimeout:  "shutdown grace period elapsed",
	ErrCodeInvalidInput:     "invalid input provided",
	ErrCodeNotFound:         "resource not found",
	ErrCodeUnavailable:      "service temporarily unavailable",
	ErrCodeTimeout:          "operation timed out",
	ErrCodeCanceled:         "operation canceled",
	ErrCodeInternal:         "internal error",
	ErrCodePanic:            "recovered from panic",
}

// Description returns a human-readable description for the error code.
func (c ErrorCode) Description() string {
	if desc, ok := codeDescriptions[c]; ok {
		return desc
	}
	return "unknown error"
}
