package errors

import (
	"context"
	"errors"
	"fmt"
)

// Wrap wraps an error with additional context while preserving the chain.
// If err is nil, Wrap returns nil. A wrapped *Error keeps its code; context
// errors become TIMEOUT or CANCELED; anything else becomes INTERNAL.
func Wrap(err error, message string, opts ...Option) *Error {
	if err == nil {
		return nil
	}

	var inner *Error
	if errors.As(err, &inner) {
		wrapped := &Error{
			code:      inner.code,
			category:  inner.category,
			message:   message,
			cause:     err,
			metadata:  inner.Metadata(),
			timestamp: inner.timestamp,
			pluginID:  inner.pluginID,
		}
		for _, opt := range opts {
			opt(wrapped)
		}
		return wrapped
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return New(ErrCodeTimeout, message, append(opts, WithCause(err))...)
	}
	if errors.Is(err, context.Canceled) {
		return New(ErrCodeCanceled, message, append(opts, WithCause(err))...)
	}
	return New(ErrCodeInternal, message, append(opts, WithCause(err))...)
}

// As extracts the first *Error from an error chain, or nil.
func As(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return nil
}

// Is checks if the first *Error in the chain has the given code.
func Is(err error, code ErrorCode) bool {
	if e := As(err); e != nil {
		return e.code == code
	}
	return false
}

// Code extracts the error code, or "" when err carries none.
func Code(err error) ErrorCode {
	if e := As(err); e != nil {
		return e.code
	}
	return ""
}

// IsRetryable checks if the error is retryable.
func IsRetryable(err error) bool {
	if e := As(err); e != nil {
		return e.Retryable()
	}
	return false
}

// GetMetadata extracts metadata from an error, or nil.
func GetMetadata(err error) map[string]string {
	if e := As(err); e != nil {
		return e.Metadata()
	}
	return nil
}

// Join combines multiple errors into a single error.
func Join(errs ...error) error {
	return errors.Join(errs...)
}

// RecoverPanic converts a recovered panic value into an Error.
func RecoverPanic(recovered any) *Error {
	if recovered == nil {
		return nil
	}
	var message string
	switch v := recovered.(type) {
	case error:
		message = v.Error()
	case string:
		message = v
	default:
		message = fmt.Sprintf("%v", v)
	}
	return New(ErrCodePanic, message, WithMetadata("panic_value", fmt.Sprintf("%T", recovered)))
}
