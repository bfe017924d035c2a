package frame

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// headerSize is the fixed portion of every frame on the wire: 4 bytes
// total-size, 1 byte type, 1 byte checksum type, 4 bytes id.
const headerSize = 10

// Codec turns a byte stream into discrete Frame values and back. It is
// the v1 framer referenced by spec.md §6: stateful across calls to
// Execute so a frame split across two socket reads still parses once
// both chunks have arrived.
type Codec struct {
	buf bytes.Buffer
}

// NewCodec returns a ready-to-use Codec with an empty internal buffer.
func NewCodec() *Codec {
	return &Codec{}
}

// Execute appends chunk to the internal buffer and returns every whole
// frame that can now be decoded from it, leaving any trailing partial
// frame buffered for the next call. An error return means the buffered
// bytes are not a valid frame stream and the caller must not call
// Execute again (the codec's parse state is undefined past that point).
func (c *Codec) Execute(chunk []byte) ([]*Frame, error) {
	if len(chunk) > 0 {
		c.buf.Write(chunk)
	}

	var out []*Frame
	for {
		data := c.buf.Bytes()
		if len(data) < 4 {
			break
		}
		size := binary.BigEndian.Uint32(data)
		if size > maxFrameSize {
			return out, fmt.Errorf("frame: frame size %d exceeds max %d", size, maxFrameSize)
		}
		if uint32(len(data)-4) < size {
			break // partial frame, wait for more bytes
		}

		body := data[4 : 4+size]
		f, err := decodeBody(body)
		if err != nil {
			return out, err
		}
		out = append(out, f)
		c.buf.Next(4 + int(size))
	}
	return out, nil
}

func decodeBody(body []byte) (*Frame, error) {
	if len(body) < headerSize-4 {
		return nil, fmt.Errorf("frame: truncated header")
	}
	typ := Type(body[0])
	cksumTyp := ChecksumType(body[1])
	id := binary.BigEndian.Uint32(body[2:6])
	rest := body[6:]

	cl := checksumLen(cksumTyp)
	if len(rest) < cl {
		return nil, fmt.Errorf("frame: truncated checksum")
	}
	wantSum := rest[:cl]
	payload := rest[cl:]

	gotSum, err := computeChecksum(cksumTyp, payload)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(wantSum, gotSum) {
		return nil, fmt.Errorf("frame: checksum mismatch for frame %d", id)
	}

	f := &Frame{ID: id, Type: typ, ChecksumType: cksumTyp}
	if err := decodePayload(f, payload); err != nil {
		return nil, err
	}
	return f, nil
}

func decodePayload(f *Frame, payload []byte) error {
	switch f.Type {
	case TypeInitReq, TypeInitRes:
		hp, rest, err := readLenPrefixed(payload)
		if err != nil {
			return err
		}
		pn, _, err := readLenPrefixed(rest)
		if err != nil {
			return err
		}
		f.HostPort = string(hp)
		f.ProcessName = string(pn)
		return nil

	case TypeCallReq:
		a1, rest, err := readLenPrefixed(payload)
		if err != nil {
			return err
		}
		a2, rest, err := readLenPrefixed(rest)
		if err != nil {
			return err
		}
		a3, _, err := readLenPrefixed(rest)
		if err != nil {
			return err
		}
		f.Arg1, f.Arg2, f.Arg3 = a1, a2, a3
		return nil

	case TypeCallRes:
		if len(payload) < 1 {
			return fmt.Errorf("frame: truncated call-res error indicator")
		}
		f.ApplicationError = payload[0] != 0
		payload = payload[1:]
		a1, rest, err := readLenPrefixed(payload)
		if err != nil {
			return err
		}
		a2, rest, err := readLenPrefixed(rest)
		if err != nil {
			return err
		}
		a3, _, err := readLenPrefixed(rest)
		if err != nil {
			return err
		}
		f.Arg1, f.Arg2, f.Arg3 = a1, a2, a3
		return nil

	case TypeError:
		if len(payload) < 1 {
			return fmt.Errorf("frame: truncated error code")
		}
		f.Code = ErrorCode(payload[0])
		msg, _, err := readLenPrefixed(payload[1:])
		if err != nil {
			return err
		}
		f.Message = string(msg)
		return nil

	default:
		return fmt.Errorf("frame: unknown frame type %d", byte(f.Type))
	}
}

func encodePayload(f *Frame) []byte {
	switch f.Type {
	case TypeInitReq, TypeInitRes:
		var buf bytes.Buffer
		buf.Write(lenPrefixed([]byte(f.HostPort)))
		buf.Write(lenPrefixed([]byte(f.ProcessName)))
		return buf.Bytes()

	case TypeCallReq:
		var buf bytes.Buffer
		buf.Write(lenPrefixed(f.Arg1))
		buf.Write(lenPrefixed(f.Arg2))
		buf.Write(lenPrefixed(f.Arg3))
		return buf.Bytes()

	case TypeCallRes:
		var buf bytes.Buffer
		if f.ApplicationError {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
		buf.Write(lenPrefixed(f.Arg1))
		buf.Write(lenPrefixed(f.Arg2))
		buf.Write(lenPrefixed(f.Arg3))
		return buf.Bytes()

	case TypeError:
		var buf bytes.Buffer
		buf.WriteByte(byte(f.Code))
		buf.Write(lenPrefixed([]byte(f.Message)))
		return buf.Bytes()

	default:
		panic(fmt.Sprintf("frame: unknown frame type %d", byte(f.Type)))
	}
}

// ToBuffer serializes f into bytes suitable for a single socket write.
func (f *Frame) ToBuffer() []byte {
	payload := encodePayload(f)
	sum, err := computeChecksum(f.ChecksumType, payload)
	if err != nil {
		panic(err) // only a ChecksumType other than ChecksumNone/ChecksumBlake2b fails here; nothing validates it earlier
	}

	body := make([]byte, 0, headerSize-4+len(sum)+len(payload))
	body = append(body, byte(f.Type), byte(f.ChecksumType))
	var idBuf [4]byte
	binary.BigEndian.PutUint32(idBuf[:], f.ID)
	body = append(body, idBuf[:]...)
	body = append(body, sum...)
	body = append(body, payload...)

	out := make([]byte, 4+len(body))
	binary.BigEndian.PutUint32(out, uint32(len(body)))
	copy(out[4:], body)
	return out
}
