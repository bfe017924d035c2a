// Package tchanerr defines the error kinds surfaced across the channel,
// connection and operation-table boundaries.
package tchanerr

import "fmt"

// Kind is a closed enumeration of the error categories the channel can
// surface to callers, peers, or logs.
type Kind int

const (
	// KindUnknown is never constructed directly; it is the zero value so a
	// missing Kind check fails loudly instead of silently matching.
	KindUnknown Kind = iota

	// KindInvalidArg covers missing/malformed caller input (e.g. no host).
	KindInvalidArg

	// KindDestroyed means the channel has already been torn down by Quit.
	KindDestroyed

	// KindNoSuchEndpoint means an inbound call named an unregistered endpoint.
	KindNoSuchEndpoint

	// KindTimeout means a per-operation deadline was exceeded.
	KindTimeout

	// KindSocketError covers transport-level read/write failures.
	KindSocketError

	// KindSocketClosed means the peer or local transport closed the conn.
	KindSocketClosed

	// KindParseError means the frame codec could not decode a chunk.
	KindParseError

	// KindShutdown is the synthetic error delivered to pending outbound ops
	// during Channel.Quit.
	KindShutdown

	// KindSendBufferFull means a connection's outbound frame queue was
	// full at the moment of a write attempt; the peer is not keeping up
	// or the connection is wedged.
	KindSendBufferFull
)

func (k Kind) String() string {
	switch k {
	case KindInvalidArg:
		return "invalid-arg"
	case KindDestroyed:
		return "destroyed"
	case KindNoSuchEndpoint:
		return "no-such-endpoint"
	case KindTimeout:
		return "timeout"
	case KindSocketError:
		return "socket-error"
	case KindSocketClosed:
		return "socket-closed"
	case KindParseError:
		return "parse-error"
	case KindShutdown:
		return "shutdown"
	case KindSendBufferFull:
		return "send-buffer-full"
	default:
		return "unknown"
	}
}

// Error is the concrete error type returned across the public surface of
// the channel. Cause may be nil (e.g. KindTimeout has no underlying error).
type Error struct {
	Kind  Kind
	Cause error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind.String(), e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error of the given kind, wrapping cause (which may be nil).
func New(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Cause: cause}
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	te, ok := err.(*Error)
	return ok && te.Kind == kind
}

// IsTimeout reports whether err is a KindTimeout error.
func IsTimeout(err error) bool { return Is(err, KindTimeout) }

// IsDestroyed reports whether err is a KindDestroyed error.
func IsDestroyed(err error) bool { return Is(err, KindDestroyed) }

// IsNoSuchEndpoint reports whether err is a KindNoSuchEndpoint error.
func IsNoSuchEndpoint(err error) bool { return Is(err, KindNoSuchEndpoint) }
