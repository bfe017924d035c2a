package tchan

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gochannel/tchan/frame"
	"github.com/gochannel/tchan/tchanerr"
	"github.com/gochannel/tchan/tchanlog"
)

// Direction records which side initiated a Connection.
type Direction int

const (
	DirectionOutbound Direction = iota
	DirectionInbound
)

func (d Direction) String() string {
	if d == DirectionOutbound {
		return "out"
	}
	return "in"
}

// Connection wraps one transport-level link to a peer: a socket, a frame
// codec, and the per-connection operation tables, implementing the
// lifecycle state machine and timeout sweep from spec.md §4.3. The
// handshake/frame-dispatch behavior spec.md §4.4 assigns to a separate
// "Handler" component is implemented directly as Connection methods here
// (runInOp, completeOutOp, sendInitRequest, ...), the same merge
// kangkot-tchannel's TChannelConnection makes.
type Connection struct {
	ch         *Channel
	nc         net.Conn
	direction  Direction
	remoteAddr string
	opts       Options
	log        tchanlog.Logger

	mu              sync.Mutex
	remoteName      string
	identified      bool
	closing         bool
	inOps           map[uint32]*inOp
	outOps          map[uint32]*outOp
	inPending       int
	outPending      int
	lastTimeoutTime time.Time
	nextID          uint32
	timer           Timer

	codec  *frame.Codec
	sendCh chan *frame.Frame
	done   chan struct{}
}

// newConnection validates and constructs a Connection; it does not yet
// start any goroutines (see startInbound/startOutbound).
func newConnection(ch *Channel, nc net.Conn, direction Direction, remoteAddr string) (*Connection, error) {
	if remoteAddr == ch.opts.HostPort {
		return nil, invalidArgErr("refusing to construct a connection to self")
	}

	if tc, ok := nc.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}

	c := &Connection{
		ch:         ch,
		nc:         nc,
		direction:  direction,
		remoteAddr: remoteAddr,
		opts:       ch.opts,
		log:        ch.log,
		inOps:      make(map[uint32]*inOp),
		outOps:     make(map[uint32]*outOp),
		codec:      frame.NewCodec(),
		sendCh:     make(chan *frame.Frame, 64),
		done:       make(chan struct{}),
	}

	if direction == DirectionOutbound {
		// Invariant 1: destination stated = peer identity, even before
		// the init handshake confirms it.
		c.remoteName = remoteAddr
	}
	return c, nil
}

// RemoteName returns the peer's HostPort. For an outbound connection this
// is the dialed destination, set at construction; for an inbound one it is
// the HostPort the peer announced in its init request, or "" before that.
func (c *Connection) RemoteName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remoteName
}

// IsIdentified reports whether the init handshake has completed.
func (c *Connection) IsIdentified() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identified
}

// Direction reports which side initiated this connection.
func (c *Connection) Direction() Direction { return c.direction }

// Stats returns the live sizes of the inbound/outbound operation tables.
func (c *Connection) Stats() (inPending, outPending int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inPending, c.outPending
}

// startOutbound begins the reader/writer goroutines, sends the init
// request, and arms the timeout sweep. Called by Channel.AddPeer once
// the connection is registered under its destination hostPort.
func (c *Connection) startOutbound() {
	go c.writeLoop()
	go c.readLoop()
	c.sendInitRequest()
	c.armSweep()
}

// startInbound begins the reader/writer goroutines and arms the timeout
// sweep; it waits for the peer to send an init request before doing
// anything else. Called by Channel.AdoptInbound.
func (c *Connection) startInbound() {
	go c.writeLoop()
	go c.readLoop()
	c.armSweep()
}

func (c *Connection) readLoop() {
	buf := make([]byte, 4096)
	for {
		n, err := c.nc.Read(buf)
		if n > 0 {
			frames, perr := c.codec.Execute(buf[:n])
			if perr != nil {
				c.onSocketError(parseErr(perr))
				return
			}
			for _, f := range frames {
				c.onFrame(f)
			}
		}
		if err != nil {
			if err == io.EOF {
				c.onSocketError(socketClosedErr())
			} else {
				c.onSocketError(socketErr(err))
			}
			return
		}
	}
}

// writeLoop drains sendCh until done is closed. done, not sendCh itself,
// is the shutdown signal: closing sendCh from resetAll while writeFrame
// producers might still be sending on it would panic ("send on closed
// channel"), so resetAll only ever closes done (spec.md §5, concurrent
// multiplexing under failure).
func (c *Connection) writeLoop() {
	for {
		select {
		case f := <-c.sendCh:
			if _, err := c.nc.Write(f.ToBuffer()); err != nil {
				c.onSocketError(socketErr(err))
			}
		case <-c.done:
			return
		}
	}
}

// writeFrame enqueues f for the writer goroutine. It reports only
// write/enqueue-side failures; operation completion is always driven by
// a response frame or the timeout sweep, never by this return value
// (spec.md §4.3 "send (outbound)").
func (c *Connection) writeFrame(f *frame.Frame) error {
	c.mu.Lock()
	closing := c.closing
	c.mu.Unlock()
	if closing {
		return socketClosedErr()
	}

	select {
	case c.sendCh <- f:
		return nil
	case <-c.done:
		return socketClosedErr()
	default:
		return sendBufferFullErr(fmt.Errorf("send buffer full for connection to %s", c.remoteAddr))
	}
}

// allocFrameID returns a fresh per-connection frame id, refusing to
// reuse one still present in outOps (spec.md §4.4).
func (c *Connection) allocFrameID() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	for {
		c.nextID++
		id := c.nextID
		if id == 0 {
			continue
		}
		if _, exists := c.outOps[id]; exists {
			continue
		}
		return id
	}
}

func (c *Connection) sendInitRequest() {
	f := &frame.Frame{
		ID:           c.allocFrameID(),
		Type:         frame.TypeInitReq,
		HostPort:     c.ch.opts.HostPort,
		ProcessName:  c.ch.opts.ProcessName,
		ChecksumType: c.ch.checksumType(),
	}
	if err := c.writeFrame(f); err != nil {
		c.onSocketError(err)
	}
}

// onFrame dispatches a decoded frame (spec.md §4.3 "Frame dispatch"). A
// successfully parsed frame proves the peer is alive, so it always
// clears lastTimeoutTime first, even for frame types that turn out to be
// unexpected in the current state.
func (c *Connection) onFrame(f *frame.Frame) {
	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		return
	}
	c.lastTimeoutTime = time.Time{}
	c.mu.Unlock()

	switch f.Type {
	case frame.TypeInitReq:
		c.handleInitReq(f)
	case frame.TypeInitRes:
		c.handleInitRes(f)
	case frame.TypeCallReq:
		c.runInOp(f)
	case frame.TypeCallRes:
		var err error
		if f.ApplicationError {
			err = fmt.Errorf("%s", f.Arg3)
		}
		c.completeOutOp(f.ID, err, f.Arg2, f.Arg3)
	case frame.TypeError:
		c.completeOutOp(f.ID, errorFromFrame(f), nil, nil)
	default:
		c.log.Warnf("ignoring frame %d of unknown type %v", f.ID, f.Type)
	}
}

func errorFromFrame(f *frame.Frame) error {
	switch f.Code {
	case frame.ErrorCodeNoSuchEndpoint:
		return noSuchEndpointErr(f.Message)
	case frame.ErrorCodeTimeout:
		return timeoutErr()
	default:
		return fmt.Errorf("tchan: peer error: %s", f.Message)
	}
}

// handleInitReq processes an inbound init request: it replies with this
// endpoint's own identity, then adopts the connection into the peer
// registry under the announced hostPort (spec.md Invariant 2) and emits
// identify.in.
func (c *Connection) handleInitReq(f *frame.Frame) {
	c.mu.Lock()
	if c.identified {
		c.mu.Unlock()
		c.log.Warnf("ignoring duplicate init request on an already-identified connection")
		return
	}
	c.remoteName = f.HostPort
	c.identified = true
	c.mu.Unlock()

	res := &frame.Frame{
		ID:           f.ID,
		Type:         frame.TypeInitRes,
		HostPort:     c.ch.opts.HostPort,
		ProcessName:  c.ch.opts.ProcessName,
		ChecksumType: c.ch.checksumType(),
	}
	if err := c.writeFrame(res); err != nil {
		c.onSocketError(err)
		return
	}

	if _, err := c.ch.AddPeer(f.HostPort, c); err != nil {
		c.log.Warnf("identify.in: could not adopt connection for %s: %v", f.HostPort, err)
	}
	c.ch.onConnectionIdentified(c)
}

// handleInitRes completes the outbound handshake started by
// sendInitRequest and emits identify.out.
func (c *Connection) handleInitRes(f *frame.Frame) {
	c.mu.Lock()
	if c.identified {
		c.mu.Unlock()
		return
	}
	c.identified = true
	c.mu.Unlock()

	c.ch.onConnectionIdentified(c)
}

// runInOp allocates a server-op bound to f.ID, dispatches the endpoint
// handler asynchronously (so a synchronous handler panic/failure does
// not run on the receive goroutine), and writes the response frame once
// the handler completes (spec.md §4.3 "runInOp").
func (c *Connection) runInOp(f *frame.Frame) {
	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	op := &inOp{id: f.ID, start: c.opts.Now(), cancel: cancel}
	c.inOps[f.ID] = op
	c.inPending++
	c.mu.Unlock()

	handler := c.ch.getEndpointHandler(string(f.Arg1))
	arg2, arg3 := f.Arg2, f.Arg3

	go func() {
		res2, res3, err := handler.Handle(ctx, arg2, arg3)
		c.completeInOp(f.ID, op, res2, res3, err)
	}()
}

// completeInOp writes the response frame for op, guarding against a
// duplicate completion and against the table entry having been replaced
// or reset out from under it (spec.md Invariant 6, §4.3 "runInOp").
func (c *Connection) completeInOp(id uint32, op *inOp, res2, res3 []byte, err error) {
	c.mu.Lock()
	cur, ok := c.inOps[id]
	if !ok || cur != op {
		c.mu.Unlock()
		c.log.Warnf("inbound op %d no longer tracked (reset or replaced); dropping response", id)
		return
	}
	if op.responseSent {
		c.mu.Unlock()
		c.log.Warnf("duplicate completion of inbound op %d ignored", id)
		return
	}
	op.responseSent = true
	c.mu.Unlock()

	// A handler's response rides the wire the same as any other
	// argument; an oversized one must fail the call cleanly instead of
	// panicking the writer goroutine inside ToBuffer.
	if err == nil {
		if verr := frame.ValidateArg(res2); verr != nil {
			err = invalidArgErr(verr.Error())
		} else if verr := frame.ValidateArg(res3); verr != nil {
			err = invalidArgErr(verr.Error())
		}
	}

	var res *frame.Frame
	switch {
	case tchanerr.IsNoSuchEndpoint(err):
		// A protocol-level condition, not a handler's own application
		// error: it rides a dedicated Error frame so the caller can
		// recover its Kind (spec.md §7 "NO_SUCH_ENDPOINT").
		res = &frame.Frame{
			ID: id, Type: frame.TypeError, ChecksumType: c.ch.checksumType(),
			Code: frame.ErrorCodeNoSuchEndpoint, Message: err.Error(),
		}
	case err != nil:
		res = &frame.Frame{
			ID: id, Type: frame.TypeCallRes, ChecksumType: c.ch.checksumType(),
			ApplicationError: true, Arg3: []byte(err.Error()),
		}
	default:
		res = &frame.Frame{
			ID: id, Type: frame.TypeCallRes, ChecksumType: c.ch.checksumType(),
			Arg2: res2, Arg3: res3,
		}
	}

	writeErr := c.writeFrame(res)

	c.mu.Lock()
	if cur, ok := c.inOps[id]; ok && cur == op {
		delete(c.inOps, id)
		c.inPending--
	}
	c.mu.Unlock()

	if writeErr != nil {
		c.log.Warnf("failed to write response for inbound op %d: %v", id, writeErr)
	}
}

// completeOutOp removes id from outOps and invokes its continuation
// exactly once. An unknown id is a late response (typically after a
// timeout already fired its callback) and is dropped with a warning,
// never invoked twice (spec.md §4.3 "completeOutOp").
func (c *Connection) completeOutOp(id uint32, err error, res2, res3 []byte) {
	c.mu.Lock()
	op, ok := c.outOps[id]
	if !ok {
		c.mu.Unlock()
		c.log.Warnf("late or unknown completion for outbound op %d", id)
		return
	}
	delete(c.outOps, id)
	c.outPending--
	c.mu.Unlock()

	op.callback(err, res2, res3)
}

// send assigns a fresh frame id, records the outbound op, and writes a
// call-request frame (spec.md §4.3 "send (outbound)").
func (c *Connection) send(opts CallOptions, arg1, arg2, arg3 []byte, cb func(err error, res2, res3 []byte)) {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = c.opts.ReqTimeoutDefault
	}

	id := c.allocFrameID()
	op := &outOp{id: id, start: c.opts.Now(), timeout: timeout, callback: cb}

	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		cb(socketClosedErr(), nil, nil)
		return
	}
	c.outOps[id] = op
	c.outPending++
	c.mu.Unlock()

	f := &frame.Frame{ID: id, Type: frame.TypeCallReq, Arg1: arg1, Arg2: arg2, Arg3: arg3, ChecksumType: c.ch.checksumType()}
	if err := c.writeFrame(f); err != nil {
		c.completeOutOp(id, err, nil, nil)
	}
}

// armSweep schedules the next timeout sweep, fuzzed per spec.md §4.3 so
// many connections' sweeps don't land in lock-step.
func (c *Connection) armSweep() {
	delay := c.fuzzedDelay()
	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		return
	}
	c.timer = c.opts.SetTimer(delay, c.sweep)
	c.mu.Unlock()
}

func (c *Connection) fuzzedDelay() time.Duration {
	fuzz := float64(c.opts.TimeoutFuzz)
	r := c.opts.Random() // uniform [0, 1)
	jitter := time.Duration(fuzz*r - fuzz/2)
	return c.opts.TimeoutCheckInterval + jitter
}

// sweep is the periodic scan over both operation tables (spec.md §4.3
// "Timeout sweep"). If the previous sweep already observed a timeout and
// nothing has arrived since, the peer is presumed dead and the socket is
// force-reset rather than swept again.
func (c *Connection) sweep() {
	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		return
	}

	if !c.lastTimeoutTime.IsZero() {
		c.mu.Unlock()
		c.log.Warnf("connection to %s timed out with no frames since; destroying socket", c.remoteAddr)
		c.onSocketError(timeoutErr())
		return
	}

	now := c.opts.Now()
	var expired []*outOp

	for id, op := range c.outOps {
		if op.timedOut {
			// A prior sweep marked this op timed out but it lingered in
			// the table; spec.md §4.3 calls this case out explicitly.
			// Our completeOutOp/resetAll paths always delete on
			// transition, so in practice this branch is defensive.
			delete(c.outOps, id)
			c.outPending--
			c.log.Warnf("dropping lingering timed-out outbound op %d", id)
			continue
		}
		if now.Sub(op.start) > op.timeout {
			delete(c.outOps, id)
			c.outPending--
			op.timedOut = true
			c.lastTimeoutTime = now
			expired = append(expired, op)
		}
	}

	for id, op := range c.inOps {
		if now.Sub(op.start) > c.opts.ServerTimeoutDefault {
			op.cancel()
			delete(c.inOps, id)
			c.inPending--
		}
	}
	c.mu.Unlock()

	for _, op := range expired {
		op.callback(timeoutErr(), nil, nil)
	}

	c.armSweep()
}

func (c *Connection) onSocketError(err error) {
	c.resetAll(err)
}

// resetAll is the terminal, idempotent reset path (spec.md §4.3
// "resetAll"): it stops the sweep timer, drains both operation tables
// (inbound entries are discarded, outbound entries each receive err
// exactly once), notifies the channel, and closes the transport.
func (c *Connection) resetAll(err error) {
	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		return
	}
	c.closing = true

	timer := c.timer
	c.timer = nil

	outOps := c.outOps
	c.outOps = make(map[uint32]*outOp)
	inOps := c.inOps
	c.inOps = make(map[uint32]*inOp)
	c.outPending = 0
	c.inPending = 0
	c.mu.Unlock()

	c.opts.ClearTimer(timer)

	for _, op := range inOps {
		op.cancel()
	}
	for _, op := range outOps {
		op.callback(err, nil, nil)
	}

	c.ch.onConnectionReset(c, err)

	close(c.done)
	c.nc.Close()
	c.ch.onSocketClosed()
}
