package feed

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind classifies why a feed request failed.
type Kind int

const (
	// NetworkFailure: the feed could not be reached.
	NetworkFailure Kind = iota + 1
	// BadResponse: the feed answered with a non-success status.
	BadResponse
	// MalformedPayload: the body parsed but lacks required structure.
	MalformedPayload
	// Timeout: the request did not finish within its deadline.
	Timeout
)

func (k Kind) String() string {
	switch k {
	case NetworkFailure:
		return "network_failure"
	case BadResponse:
		return "bad_response"
	case MalformedPayload:
		return "malformed_payload"
	case Timeout:
		return "timeout"
	default:
		return "unknown"
	}
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Error is returned by every feed source.
type Error struct {
	Kind   Kind
	Op     string
	Status int
	Err    error
}

func (e *Error) Error() string {
	switch e.Kind {
	case BadResponse:
		return fmt.Sprintf("%s: feed returned status %d", e.Op, e.Status)
	case Timeout:
		return fmt.Sprintf("%s: request timed out", e.Op)
	case MalformedPayload:
		return fmt.Sprintf("%s: malformed payload: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: feed unreachable: %v", e.Op, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the Kind of a feed error anywhere in err's chain.
// Bare context deadline errors count as Timeout.
func KindOf(err error) (Kind, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout, true
	}
	return 0, false
}

// transportError turns a failed round trip into NetworkFailure or Timeout.
func transportError(op string, err error) *Error {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return &Error{Kind: Timeout, Op: op, Err: err}
	}
	return &Error{Kind: NetworkFailure, Op: op, Err: err}
}

func malformed(op string, format string, args ...any) *Error {
	return &Error{Kind: MalformedPayload, Op: op, Err: fmt.Errorf(format, args...)}
}
