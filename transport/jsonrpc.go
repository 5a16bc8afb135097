package transport

import (
	"bytes"
	"encoding/json"

	"github.com/vinayprograms/pluginkit/errors"
	"github.com/vinayprograms/pluginkit/shutdown"
)

// Version is the only JSON-RPC version spoken.
const Version = "2.0"

// Request represents a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response represents a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string `json:"jsonrpc"`
	ID      any    `json:"id,omitempty"`
	Result  any    `json:"result,omitempty"`
	Error   *Error `json:"error,omitempty"`
}

// Error represents a JSON-RPC 2.0 error.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return e.Message
}

// Standard error codes
const (
	ParseError     = -32700
	InvalidRequest = -32600
	MethodNotFound = -32601
	InvalidParams  = -32602
	InternalError  = -32603
)

// Application error codes, one per taxonomy code a settings call can fail with.
const (
	InvalidKeyError       = -32001
	PermissionDeniedError = -32002
	UnavailableError      = -32003
	InvalidInputError     = -32004
)

// Notification represents a JSON-RPC 2.0 notification (no ID).
type Notification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// Methods
const (
	MethodJournalBatch    = "journal.batch"
	MethodShutdown        = "plugin.shutdown"
	MethodStopped         = "plugin.stopped"
	MethodMeta            = "plugin.meta"
	MethodSettingsGet     = "settings.get"
	MethodSettingsWrite   = "settings.write"
	MethodSettingsChanged = "settings.changed"
)

// JournalBatchParams are params for journal.batch.
type JournalBatchParams struct {
	Cmdr   string   `json:"cmdr"`
	File   string   `json:"file"`
	Events []string `json:"events"`
}

// SettingsGetParams are params for settings.get.
type SettingsGetParams struct {
	Key string `json:"key"`
}

// SettingsGetResult is the result of settings.get. Found is false when the
// key has no value.
type SettingsGetResult struct {
	Value any  `json:"value"`
	Found bool `json:"found"`
}

// SettingsWriteParams are params for settings.write. A null value clears the key.
type SettingsWriteParams struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// SettingsWriteResult is the result of settings.write.
type SettingsWriteResult struct {
	Value any `json:"value"`
}

// SettingsChangedParams are params for settings.changed.
type SettingsChangedParams struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// StoppedParams are params for plugin.stopped.
type StoppedParams struct {
	DurationMS int64    `json:"duration_ms"`
	Callbacks  int      `json:"callbacks"`
	Failed     []string `json:"failed,omitempty"`
	Abandoned  int      `json:"abandoned"`
	Error      string   `json:"error,omitempty"`
}

// NewStoppedParams summarizes a shutdown result.
func NewStoppedParams(res *shutdown.Result) StoppedParams {
	p := StoppedParams{
		DurationMS: res.Duration.Milliseconds(),
		Callbacks:  len(res.Results),
		Failed:     res.FailedIDs(),
		Abandoned:  res.Abandoned(),
	}
	if res.Err != nil {
		p.Error = res.Err.Error()
	}
	return p
}

// decodeValue decodes a JSON setting value keeping integer precision.
// Empty input and null both mean absent.
func decodeValue(raw json.RawMessage) (any, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// errorFor maps an error from the plugin context onto a JSON-RPC error.
// Taxonomy metadata travels in Data.
func errorFor(err error) *Error {
	if err == nil {
		return nil
	}
	if rpcErr, ok := err.(*Error); ok {
		return rpcErr
	}

	code := InternalError
	switch errors.Code(err) {
	case errors.ErrCodeInvalidKey:
		code = InvalidKeyError
	case errors.ErrCodePermissionDenied:
		code = PermissionDeniedError
	case errors.ErrCodeUnavailable:
		code = UnavailableError
	case errors.ErrCodeInvalidInput:
		code = InvalidInputError
	}

	var data any
	if e := errors.As(err); e != nil {
		data = map[string]any{
			"code":      string(e.Code()),
			"retryable": errors.IsRetryable(err),
			"metadata":  e.Metadata(),
		}
	}
	return &Error{Code: code, Message: err.Error(), Data: data}
}
