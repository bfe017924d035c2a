package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, f *Frame) *Frame {
	t.Helper()
	c := NewCodec()
	frames, err := c.Execute(f.ToBuffer())
	require.NoError(t, err)
	require.Len(t, frames, 1)
	return frames[0]
}

func TestCallReqRoundTrip(t *testing.T) {
	f := &Frame{ID: 7, Type: TypeCallReq, Arg1: []byte("echo"), Arg2: []byte("k"), Arg3: []byte("v")}
	got := roundTrip(t, f)
	assert.Equal(t, f.ID, got.ID)
	assert.Equal(t, f.Arg1, got.Arg1)
	assert.Equal(t, f.Arg2, got.Arg2)
	assert.Equal(t, f.Arg3, got.Arg3)
}

func TestErrorFrameRoundTrip(t *testing.T) {
	f := &Frame{ID: 3, Type: TypeError, Code: ErrorCodeNoSuchEndpoint, Message: "no-such-endpoint: frob"}
	got := roundTrip(t, f)
	assert.Equal(t, ErrorCodeNoSuchEndpoint, got.Code)
	assert.Equal(t, "no-such-endpoint: frob", got.Message)
}

func TestChecksumMismatchIsRejected(t *testing.T) {
	f := &Frame{ID: 1, Type: TypeCallReq, Arg1: []byte("x"), ChecksumType: ChecksumBlake2b}
	buf := f.ToBuffer()
	// Flip a payload byte after checksumming so verification must fail.
	buf[len(buf)-1] ^= 0xFF

	c := NewCodec()
	_, err := c.Execute(buf)
	assert.Error(t, err)
}

// Execute must cope with a frame delivered across two separate chunks,
// since that's exactly what a real socket read does.
func TestSplitFrameAcrossChunks(t *testing.T) {
	f := &Frame{ID: 42, Type: TypeCallReq, Arg1: []byte("a"), Arg2: []byte("b"), Arg3: []byte("c")}
	buf := f.ToBuffer()
	mid := len(buf) / 2

	c := NewCodec()
	frames, err := c.Execute(buf[:mid])
	require.NoError(t, err)
	assert.Len(t, frames, 0)

	frames, err = c.Execute(buf[mid:])
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, uint32(42), frames[0].ID)
}

func TestOversizedFrameRejected(t *testing.T) {
	c := NewCodec()
	var big [8]byte
	big[0] = 0xFF // size field far exceeds maxFrameSize
	_, err := c.Execute(big[:])
	assert.Error(t, err)
}
