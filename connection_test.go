package tchan_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gochannel/tchan"
	"github.com/gochannel/tchan/tchanerr"
	"github.com/gochannel/tchan/tchantest"
)

// Scenario 3 (spec.md §8): per-op timeout. The sweep only runs when the
// test advances the injected Clock, so this never depends on wall-clock
// time passing.
func TestPerOpTimeout(t *testing.T) {
	clock := tchantest.NewClock(time.Unix(0, 0), 0.5)

	chA, _ := newTestChannel(t, "127.0.0.1:14050", clock)
	chA.Register("block", tchan.HandlerFunc(func(ctx context.Context, arg2, arg3 []byte) ([]byte, []byte, error) {
		<-ctx.Done()
		return nil, nil, ctx.Err()
	}))
	defer quitChannel(t, chA)

	chB, _ := newTestChannel(t, "127.0.0.1:14051", clock)
	defer quitChannel(t, chB)

	done := make(chan struct{})
	var gotErr error
	chB.Send(tchan.CallOptions{Host: "127.0.0.1:14050", Timeout: 10 * time.Millisecond},
		[]byte("block"), nil, nil,
		func(err error, res2, res3 []byte) {
			gotErr = err
			close(done)
		})

	// The call-request frame is registered in outOps synchronously before
	// Send returns, so advancing straight past both the op timeout and the
	// armed sweep interval is enough to force the sweep to observe it.
	clock.Advance(1100 * time.Millisecond)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout callback never fired")
	}

	require.Error(t, gotErr)
	assert.True(t, tchanerr.IsTimeout(gotErr))
}

// Scenario 4 (spec.md §8): a sweep that finds lastTimeoutTime already set
// (no frame arrived since the previous timeout) destroys the connection
// outright instead of sweeping again.
func TestSustainedTimeoutDestroysConnection(t *testing.T) {
	clock := tchantest.NewClock(time.Unix(0, 0), 0.5)

	chA, _ := newTestChannel(t, "127.0.0.1:14052", clock)
	chA.Register("block", tchan.HandlerFunc(func(ctx context.Context, arg2, arg3 []byte) ([]byte, []byte, error) {
		<-ctx.Done()
		return nil, nil, ctx.Err()
	}))
	defer quitChannel(t, chA)

	chB, obsB := newTestChannel(t, "127.0.0.1:14053", clock)
	defer quitChannel(t, chB)

	done := make(chan struct{})
	chB.Send(tchan.CallOptions{Host: "127.0.0.1:14052", Timeout: 10 * time.Millisecond},
		[]byte("block"), nil, nil,
		func(err error, res2, res3 []byte) { close(done) })

	// Wait for the init response first, so it cannot arrive between the
	// two sweeps and clear lastTimeoutTime.
	mustReceive(t, obsB.identified, time.Second)

	clock.Advance(1100 * time.Millisecond)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("first timeout callback never fired")
	}

	// No frame has arrived since; the next sweep must tear the socket down.
	clock.Advance(1100 * time.Millisecond)

	closeErr := mustReceiveErr(t, obsB.socketClosed, time.Second)
	assert.True(t, tchanerr.IsTimeout(closeErr))
	assert.Len(t, chB.Peers(), 0)
}

func mustReceiveErr(t *testing.T, ch <-chan error, timeout time.Duration) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(timeout):
		t.Fatal("timed out waiting for socket-closed event")
		return nil
	}
}
