package tchan

import (
	"math/rand"
	"time"

	"github.com/gochannel/tchan/frame"
	"github.com/gochannel/tchan/tchanlog"
)

// Default values per spec.md §6 "Configuration options".
const (
	DefaultReqTimeout          = 5 * time.Second
	DefaultServerTimeout       = 5 * time.Second
	DefaultTimeoutCheckInterval = 1 * time.Second
	DefaultTimeoutFuzz         = 100 * time.Millisecond
)

// Timer is the handle returned by Options.SetTimer, matching the teacher
// corpus's own injectable-timer shape used for deterministic tests.
type Timer interface {
	Stop()
}

type realTimer struct{ t *time.Timer }

func (r realTimer) Stop() { r.t.Stop() }

// Options configures a Channel. The zero value is not directly usable:
// set HostPort (and usually ProcessName) before calling NewChannel, which
// gives every other unset field its default.
type Options struct {
	HostPort    string
	ProcessName string

	ReqTimeoutDefault    time.Duration
	ServerTimeoutDefault time.Duration
	TimeoutCheckInterval time.Duration
	TimeoutFuzz          time.Duration

	// ChecksumType applied to frames this channel sends. Peers are not
	// required to use the same value; it is negotiated per-frame, not
	// per-connection.
	ChecksumType frame.ChecksumType

	Logger tchanlog.Logger

	// Now, Random, SetTimer and ClearTimer are injectable so tests can
	// drive the timeout sweeper deterministically (spec.md §3).
	Now       func() time.Time
	Random    func() float64
	SetTimer  func(d time.Duration, f func()) Timer
	ClearTimer func(Timer)

	// Listening, if explicitly set to false, defers the call to Listen()
	// so the caller can register endpoints first.
	Listening *bool
}

// withDefaults returns a copy of o with every unset field given its
// spec-mandated default.
func (o Options) withDefaults() Options {
	if o.ReqTimeoutDefault == 0 {
		o.ReqTimeoutDefault = DefaultReqTimeout
	}
	if o.ServerTimeoutDefault == 0 {
		o.ServerTimeoutDefault = DefaultServerTimeout
	}
	if o.TimeoutCheckInterval == 0 {
		o.TimeoutCheckInterval = DefaultTimeoutCheckInterval
	}
	if o.TimeoutFuzz == 0 {
		o.TimeoutFuzz = DefaultTimeoutFuzz
	}
	if o.Logger == nil {
		o.Logger = tchanlog.Disabled
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Random == nil {
		o.Random = rand.Float64
	}
	if o.SetTimer == nil {
		o.SetTimer = func(d time.Duration, f func()) Timer {
			return realTimer{t: time.AfterFunc(d, f)}
		}
	}
	if o.ClearTimer == nil {
		o.ClearTimer = func(t Timer) {
			if t != nil {
				t.Stop()
			}
		}
	}
	return o
}

// isListening reports the resolved value of Options.Listening (default true).
func (o Options) isListening() bool {
	if o.Listening == nil {
		return true
	}
	return *o.Listening
}
