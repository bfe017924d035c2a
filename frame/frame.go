// Package frame is the wire framer/parser collaborator described in
// spec.md §6: a v1 framer that turns a byte stream into discrete Frame
// values and serializes Frame values back into bytes for a single socket
// write. The rest of the channel treats this package as an external,
// narrowly-scoped collaborator.
package frame

import (
	"encoding/binary"
	"fmt"
)

// Type is the wire tag identifying what a Frame carries.
type Type byte

const (
	TypeInitReq Type = iota + 1
	TypeInitRes
	TypeCallReq
	TypeCallRes
	TypeError
)

func (t Type) String() string {
	switch t {
	case TypeInitReq:
		return "init-req"
	case TypeInitRes:
		return "init-res"
	case TypeCallReq:
		return "call-req"
	case TypeCallRes:
		return "call-res"
	case TypeError:
		return "error"
	default:
		return fmt.Sprintf("type(%d)", byte(t))
	}
}

// ChecksumType selects the optional integrity check applied to a frame's
// payload. It is not authentication: it has no key and verifies nothing
// about the sender's identity, only that the bytes were not mangled.
type ChecksumType byte

const (
	ChecksumNone ChecksumType = iota
	ChecksumBlake2b
)

// ErrorCode is the wire value carried by a TypeError frame.
type ErrorCode byte

const (
	ErrorCodeNoSuchEndpoint ErrorCode = iota + 1
	ErrorCodeProtocol
	ErrorCodeTimeout
	ErrorCodeUnexpected
)

// Frame is the discrete unit produced by Codec.Execute and consumed by
// Frame.ToBuffer. Exactly which fields are meaningful depends on Type.
type Frame struct {
	ID           uint32
	Type         Type
	ChecksumType ChecksumType

	// Init (req/res)
	HostPort    string
	ProcessName string

	// Call (req/res)
	Arg1, Arg2, Arg3 []byte
	ApplicationError bool // meaningful only for TypeCallRes

	// Error
	Code    ErrorCode
	Message string
}

// maxArgLen bounds a single call argument to what fits in a uint16
// length prefix, matching the teacher corpus's own framed-message limits.
const maxArgLen = 1<<16 - 1

// MaxArgLen is the exported form of maxArgLen, so callers can validate an
// argument before it ever reaches ToBuffer (see ValidateArg).
const MaxArgLen = maxArgLen

// maxFrameSize bounds a frame's size field, i.e. every byte after the
// 4-byte length prefix (type, checksum type, id, checksum and payload).
// Codec.Execute rejects larger frames; ToBuffer does not check it.
const maxFrameSize = 1 << 20

// ValidateArg reports an error if b is too large to encode as a single
// length-prefixed argument. Callers that accept caller-supplied byte
// strings (Channel.Send, an inbound handler's response) must call this
// before constructing a Frame: lenPrefixed below treats an oversized
// argument as an internal invariant violation, not user input, and
// panics rather than erroring.
func ValidateArg(b []byte) error {
	if len(b) > maxArgLen {
		return fmt.Errorf("frame: argument of %d bytes exceeds %d byte limit", len(b), maxArgLen)
	}
	return nil
}

func lenPrefixed(b []byte) []byte {
	if len(b) > maxArgLen {
		panic(fmt.Sprintf("frame: argument of %d bytes exceeds %d byte limit", len(b), maxArgLen))
	}
	out := make([]byte, 2+len(b))
	binary.BigEndian.PutUint16(out, uint16(len(b)))
	copy(out[2:], b)
	return out
}

func readLenPrefixed(buf []byte) (val []byte, rest []byte, err error) {
	if len(buf) < 2 {
		return nil, nil, fmt.Errorf("frame: truncated length prefix")
	}
	n := binary.BigEndian.Uint16(buf)
	buf = buf[2:]
	if len(buf) < int(n) {
		return nil, nil, fmt.Errorf("frame: truncated field, want %d have %d", n, len(buf))
	}
	return buf[:n], buf[n:], nil
}
