package tchan

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Invariants 1-2 (spec.md §4.2): outbound connections are prepended,
// inbound connections are appended, and getPeer always returns the head
// of the list.
func TestPeerRegistryOrdering(t *testing.T) {
	r := newPeerRegistry()

	in1 := &Connection{direction: DirectionInbound}
	out1 := &Connection{direction: DirectionOutbound}
	in2 := &Connection{direction: DirectionInbound}

	r.setPeer("h", in1)
	assert.Same(t, in1, r.getPeer("h"))

	r.setPeer("h", out1)
	assert.Same(t, out1, r.getPeer("h"), "outbound connection must be prepended ahead of inbound")

	r.setPeer("h", in2)
	assert.Same(t, out1, r.getPeer("h"), "appended inbound connection must not displace the outbound head")

	r.removePeer("h", out1)
	assert.Same(t, in1, r.getPeer("h"), "removing the head exposes the next entry")

	all := r.getPeers()
	assert.Len(t, all, 2)
}

func TestPeerRegistryRemoveUnknownIsNoop(t *testing.T) {
	r := newPeerRegistry()
	conn := &Connection{direction: DirectionInbound}
	assert.NotPanics(t, func() { r.removePeer("missing", conn) })
}
