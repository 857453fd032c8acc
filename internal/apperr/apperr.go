// Package apperr centralizes the error taxonomy shared by the HTTP and
// WebSocket surfaces, so both translate the same underlying error
// values to the same status codes / frame codes.
package apperr

import "errors"

// Kind classifies a failure the way spec §7 does: by cause, not by Go
// type. Both the HTTP handler and the WS handler switch on Kind.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindInfeasible
	KindUpstreamUnavailable
	KindStateUnavailable
	KindUnknownStop
	KindProtocol
	KindRateLimited
	KindDriverNotFound
)

// Error wraps an underlying cause with a Kind and a human-readable
// detail safe to return to a caller (no PHI, ever).
type Error struct {
	Kind   Kind
	Detail string
	Cause  error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Detail + ": " + e.Cause.Error()
	}
	return e.Detail
}

func (e *Error) Unwrap() error { return e.Cause }

func New(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

func Wrap(kind Kind, detail string, cause error) *Error {
	return &Error{Kind: kind, Detail: detail, Cause: cause}
}

// KindOf extracts the Kind of err, or KindUnknown if err is not (or
// does not wrap) an *Error.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindUnknown
}

// HTTPStatus maps a Kind to the status code spec §7 assigns it.
func HTTPStatus(k Kind) int {
	switch k {
	case KindValidation, KindInfeasible:
		return 422
	case KindUpstreamUnavailable:
		return 502
	default:
		return 500
	}
}

// WSCode maps a Kind to the WS `error` frame code spec §6 lists.
func WSCode(k Kind) string {
	switch k {
	case KindValidation:
		return "INVALID_GPS"
	case KindUnknownStop:
		return "INVALID_STOP_ID"
	case KindDriverNotFound:
		return "DRIVER_NOT_FOUND"
	case KindInfeasible, KindUpstreamUnavailable:
		return "OPTIMIZATION_FAILED"
	case KindRateLimited:
		return "RATE_LIMITED"
	default:
		return "OPTIMIZATION_FAILED"
	}
}
