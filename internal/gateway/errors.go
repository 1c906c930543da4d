package gateway

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed call to the collaborator service.
type ErrorKind int

const (
	// Unknown covers every failure not classified below.
	Unknown ErrorKind = iota
	// Unreachable means no response arrived (transport failure or timeout).
	Unreachable
	// Unauthorized means the credential was rejected (401/403).
	Unauthorized
	// NotFound means the service answered 404.
	NotFound
	// ServiceRejected means the envelope reported success=false.
	ServiceRejected
)

func (k ErrorKind) String() string {
	switch k {
	case Unreachable:
		return "unreachable"
	case Unauthorized:
		return "unauthorized"
	case NotFound:
		return "not_found"
	case ServiceRejected:
		return "service_rejected"
	default:
		return "unknown"
	}
}

// Error is the only error type returned by Client methods.
type Error struct {
	Kind    ErrorKind
	Op      string // e.g. "approve review"
	Status  int    // HTTP status, 0 when no response arrived
	Message string // service-supplied or best-effort diagnostic text
	Err     error  // underlying transport/decode error, if any
}

func (e *Error) Error() string {
	switch e.Kind {
	case Unreachable:
		return fmt.Sprintf("%s: unable to connect to API: %s", e.Op, e.Message)
	case Unauthorized:
		return fmt.Sprintf("%s: API authentication failed: %s", e.Op, e.Message)
	case NotFound:
		return fmt.Sprintf("%s: not found: %s", e.Op, e.Message)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of a gateway error; any other error is Unknown.
func KindOf(err error) ErrorKind {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr.Kind
	}
	return Unknown
}

// IsKind reports whether err is a gateway error of kind k.
func IsKind(err error, k ErrorKind) bool {
	var gerr *Error
	return errors.As(err, &gerr) && gerr.Kind == k
}
