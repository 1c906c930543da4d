package content

import "fmt"

// ErrorKind classifies a normalization failure.
type ErrorKind int

const (
	// InvalidFormat means the content could not be decoded at all.
	InvalidFormat ErrorKind = iota + 1
	// NoInitiative means the content decoded but matched no known schema.
	NoInitiative
)

func (k ErrorKind) String() string {
	switch k {
	case InvalidFormat:
		return "invalid_format"
	case NoInitiative:
		return "no_initiative"
	default:
		return "unknown"
	}
}

// Error is returned by Normalize and Validate.
type Error struct {
	Kind ErrorKind
	Msg  string // underlying parser message, if any
}

// Sentinels for errors.Is; they match any Error of the same kind.
var (
	ErrInvalidFormat = &Error{Kind: InvalidFormat}
	ErrNoInitiative  = &Error{Kind: NoInitiative}
)

func (e *Error) Error() string {
	switch e.Kind {
	case InvalidFormat:
		if e.Msg == "" {
			return "invalid JSON content"
		}
		return fmt.Sprintf("invalid JSON content: %s", e.Msg)
	case NoInitiative:
		return "no initiatives found in content"
	default:
		return e.Msg
	}
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind && t.Msg == ""
}

func invalidFormat(err error) *Error {
	return &Error{Kind: InvalidFormat, Msg: err.Error()}
}
