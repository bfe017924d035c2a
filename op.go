package tchan

import (
	"context"
	"time"
)

// outOp is the bookkeeping for one outbound (caller-initiated) operation,
// keyed by frame id in Connection.outOps. Spec.md §3 "Op (outbound)".
type outOp struct {
	id       uint32
	start    time.Time
	timeout  time.Duration
	callback func(err error, res2, res3 []byte)
	timedOut bool
}

// inOp is the bookkeeping for one inbound (peer-initiated) operation,
// keyed by frame id in Connection.inOps. Spec.md §3 "Op (inbound)".
type inOp struct {
	id           uint32
	start        time.Time
	cancel       context.CancelFunc
	responseSent bool
	timedOut     bool
}
