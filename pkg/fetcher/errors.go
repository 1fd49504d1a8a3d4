package fetcher

import "fmt"

// ErrorKind classifies a failed page load.
type ErrorKind int

const (
	// KindTransient covers network failures, malformed payloads and server
	// errors. Retrying may succeed.
	KindTransient ErrorKind = iota
	// KindUnauthorized means the viewer may no longer see this node.
	KindUnauthorized
)

func (k ErrorKind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	default:
		return "load_error"
	}
}

// Message is the user-facing copy for the kind.
func (k ErrorKind) Message() string {
	switch k {
	case KindUnauthorized:
		return "You no longer have access to this branch"
	default:
		return "Failed to load, try again"
	}
}

// LoadError is a node-scoped fetch failure.
type LoadError struct {
	Kind  ErrorKind
	Cause error
}

func (e *LoadError) Error() string {
	if e.Cause == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}
