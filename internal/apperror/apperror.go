// Package apperror centralizes the semantic error kinds used across
// monocanvas so transport layers map them to wire-level codes in one
// place, instead of scattering status-code decisions across handlers.
package apperror

import "fmt"

// Kind enumerates the error categories from spec.md §7. These are
// semantic, not Go types — every Kind can wrap any underlying error.
type Kind int

const (
	KindValidation Kind = iota
	KindRateLimited
	KindNotFound
	KindPermissionDenied
	KindCorruptState
	KindTransportFailure
	KindSandboxTimeout
	KindSandboxCrash
	KindExternalProvider
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindRateLimited:
		return "rate_limited"
	case KindNotFound:
		return "not_found"
	case KindPermissionDenied:
		return "permission_denied"
	case KindCorruptState:
		return "corrupt_state"
	case KindTransportFailure:
		return "transport_failure"
	case KindSandboxTimeout:
		return "sandbox_timeout"
	case KindSandboxCrash:
		return "sandbox_crash"
	case KindExternalProvider:
		return "external_provider"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error is the concrete error type carried through the system. Message
// is safe to show to the offending client; err may carry more detail
// for logs only.
type Error struct {
	Kind    Kind
	Message string
	err     error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.err }

// New builds an *Error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an *Error around an existing error.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, err: err}
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	ae, ok := err.(*Error)
	return ok && ae.Kind == kind
}

// WebSocketCloseCode maps a Kind to the close code the transport layer
// should use when the error is fatal to the connection.
func (k Kind) WebSocketCloseCode() int {
	switch k {
	case KindPermissionDenied:
		return 4001
	case KindRateLimited:
		return 4029
	case KindTransportFailure:
		return 1011
	case KindFatal:
		return 1001
	default:
		return 1011
	}
}

// HTTPStatus maps a Kind to the REST status code to answer with.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return 400
	case KindRateLimited:
		return 429
	case KindNotFound:
		return 404
	case KindPermissionDenied:
		return 403
	case KindFatal:
		return 503
	default:
		return 500
	}
}
