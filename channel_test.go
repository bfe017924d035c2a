package tchan_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gochannel/tchan"
	"github.com/gochannel/tchan/tchantest"
)

// recordingObserver captures the fixed set of events a Channel emits so
// tests can assert on them without racing a channel of their own.
type recordingObserver struct {
	tchan.NopObserver
	identified      chan string
	endpointMissing chan string
	socketClosed    chan error
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{
		identified:      make(chan string, 8),
		endpointMissing: make(chan string, 8),
		socketClosed:    make(chan error, 8),
	}
}

func (o *recordingObserver) OnIdentified(hostPort string)     { o.identified <- hostPort }
func (o *recordingObserver) OnEndpointMissing(name string)    { o.endpointMissing <- name }
func (o *recordingObserver) OnSocketClose(_ *tchan.Connection, err error) { o.socketClosed <- err }

func newTestChannel(t *testing.T, hostPort string, clock *tchantest.Clock) (*tchan.Channel, *recordingObserver) {
	t.Helper()
	ch, err := tchan.NewChannel(tchan.Options{
		HostPort:    hostPort,
		ProcessName: "test",
		Now:         clock.Now,
		Random:      clock.Random,
		SetTimer:    clock.SetTimer,
		ClearTimer:  clock.ClearTimer,
	})
	require.NoError(t, err)

	obs := newRecordingObserver()
	ch.SetObserver(obs)
	return ch, obs
}

func mustReceive(t *testing.T, ch <-chan string, timeout time.Duration) string {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(timeout):
		t.Fatal("timed out waiting for event")
		return ""
	}
}

// Scenario 1 (spec.md §8): simple round trip.
func TestSimpleRoundTrip(t *testing.T) {
	clock := tchantest.NewClock(time.Unix(0, 0), 0.5)

	chA, obsA := newTestChannel(t, "127.0.0.1:14040", clock)
	chA.Register("echo", tchan.HandlerFunc(func(ctx context.Context, arg2, arg3 []byte) ([]byte, []byte, error) {
		return arg2, arg3, nil
	}))
	defer quitChannel(t, chA)

	chB, obsB := newTestChannel(t, "127.0.0.1:14041", clock)
	defer quitChannel(t, chB)

	done := make(chan struct{})
	var gotErr error
	var gotRes2, gotRes3 []byte
	chB.Send(tchan.CallOptions{Host: "127.0.0.1:14040"}, []byte("echo"), []byte("k"), []byte("v"),
		func(err error, res2, res3 []byte) {
			gotErr, gotRes2, gotRes3 = err, res2, res3
			close(done)
		})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("call did not complete")
	}

	assert.NoError(t, gotErr)
	assert.Equal(t, "k", string(gotRes2))
	assert.Equal(t, "v", string(gotRes3))

	assert.Equal(t, "127.0.0.1:14040", mustReceive(t, obsB.identified, time.Second))
	assert.Equal(t, "127.0.0.1:14041", mustReceive(t, obsA.identified, time.Second))

	assert.Len(t, chA.Peers(), 1)
	assert.Len(t, chB.Peers(), 1)
}

// Scenario 2 (spec.md §8): no such endpoint.
func TestNoSuchEndpoint(t *testing.T) {
	clock := tchantest.NewClock(time.Unix(0, 0), 0.5)

	chA, obsA := newTestChannel(t, "127.0.0.1:14042", clock)
	defer quitChannel(t, chA)

	chB, _ := newTestChannel(t, "127.0.0.1:14043", clock)
	defer quitChannel(t, chB)

	done := make(chan struct{})
	var gotErr error
	chB.Send(tchan.CallOptions{Host: "127.0.0.1:14042"}, []byte("missing"), nil, nil,
		func(err error, res2, res3 []byte) {
			gotErr = err
			close(done)
		})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("call did not complete")
	}

	require.Error(t, gotErr)
	assert.Contains(t, gotErr.Error(), "no-such-endpoint")
	assert.Equal(t, "missing", mustReceive(t, obsA.endpointMissing, time.Second))
}

// Scenario 6 (spec.md §8): self-peer refusal.
func TestSelfPeerRefusal(t *testing.T) {
	clock := tchantest.NewClock(time.Unix(0, 0), 0.5)
	ch, _ := newTestChannel(t, "127.0.0.1:14044", clock)
	defer quitChannel(t, ch)

	_, err := ch.AddPeer("127.0.0.1:14044", nil)
	require.Error(t, err)
}

func quitChannel(t *testing.T, ch *tchan.Channel) {
	t.Helper()
	done := make(chan struct{})
	ch.Quit(func() { close(done) })
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("quit did not complete")
	}
}
