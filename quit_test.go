package tchan_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gochannel/tchan"
	"github.com/gochannel/tchan/tchanerr"
	"github.com/gochannel/tchan/tchantest"
)

// Scenario 5 (spec.md §8): Quit resets every live peer connection exactly
// once, delivers KindShutdown to every still-pending outbound op, and
// invokes its callback exactly once after every connection (plus the
// listener) has finished closing.
func TestQuitDrainsPendingOps(t *testing.T) {
	clock := tchantest.NewClock(time.Unix(0, 0), 0.5)

	hold := make(chan struct{})
	chServer, _ := newTestChannel(t, "127.0.0.1:14060", clock)
	chServer.Register("hold", tchan.HandlerFunc(func(ctx context.Context, arg2, arg3 []byte) ([]byte, []byte, error) {
		select {
		case <-hold:
		case <-ctx.Done():
		}
		return nil, nil, ctx.Err()
	}))
	defer quitChannel(t, chServer)
	defer close(hold)

	ch, _ := newTestChannel(t, "127.0.0.1:14061", clock)

	idlePorts := []string{"127.0.0.1:14062", "127.0.0.1:14063"}
	for _, p := range idlePorts {
		pc, _ := newTestChannel(t, p, clock)
		defer quitChannel(t, pc)
		_, err := ch.AddPeer(p, nil)
		require.NoError(t, err)
	}

	// Third peer connection: the server, which ends up with the 2
	// pending ops below. Three peer connections total, matching the
	// scenario's "3 peers, 2 pending ops" shape.
	_, err := ch.AddPeer("127.0.0.1:14060", nil)
	require.NoError(t, err)

	var mu sync.Mutex
	var results []error
	var wg sync.WaitGroup

	// Two pending ops against the server that will never naturally
	// complete before Quit runs.
	for i := 0; i < 2; i++ {
		wg.Add(1)
		ch.Send(tchan.CallOptions{Host: "127.0.0.1:14060", Timeout: time.Hour}, []byte("hold"), nil, nil,
			func(err error, res2, res3 []byte) {
				mu.Lock()
				results = append(results, err)
				mu.Unlock()
				wg.Done()
			})
	}

	// Give the call-request frames a moment to actually reach the server
	// and register as inbound ops there (real TCP, not clock-gated).
	time.Sleep(50 * time.Millisecond)

	quitDone := make(chan struct{})
	ch.Quit(func() { close(quitDone) })

	select {
	case <-quitDone:
	case <-time.After(2 * time.Second):
		t.Fatal("Quit callback never fired")
	}

	wg.Wait()

	require.Len(t, results, 2)
	for _, err := range results {
		require.Error(t, err)
		assert.True(t, tchanerr.Is(err, tchanerr.KindShutdown))
	}

	assert.Len(t, ch.Peers(), 0)

	// A second Quit call must be a no-op, not a second callback invocation.
	secondCalled := false
	ch.Quit(func() { secondCalled = true })
	assert.False(t, secondCalled)
}
