package fault

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for user-facing handling. Every external-call
// wrapper in the service reports failures through this one shape.
type Kind string

const (
	KindAuth          Kind = "auth_failure"
	KindMicrophone    Kind = "microphone_access"
	KindTranscription Kind = "transcription_failed"
	KindDialogue      Kind = "dialogue_failed"
	KindSynthesis     Kind = "synthesis_failed"
	KindStore         Kind = "store_failure"
)

// Error carries a failure kind plus the upstream detail when available.
type Error struct {
	Kind      Kind
	Detail    string
	Retryable bool
	err       error
}

func New(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to an underlying error, keeping it unwrappable.
func Wrap(kind Kind, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Detail: err.Error(), err: err}
}

func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.err }

// KindOf extracts the failure kind from err, or "" when err carries none.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// DetailOf extracts the upstream detail from err, falling back to the plain
// error text.
func DetailOf(err error) string {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Detail
	}
	if err != nil {
		return err.Error()
	}
	return ""
}

// IsRetryableHTTPStatus classifies retryable HTTP status codes.
func IsRetryableHTTPStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
