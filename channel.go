// Package tchan implements a client/server runtime for a bidirectional,
// multiplexed binary RPC transport: an endpoint that listens, dials on
// demand, negotiates peer identity per connection, frames/demultiplexes
// request-response operations, enforces per-operation timeouts, and
// tears down broken connections while surfacing errors to pending
// callers. See the package's SPEC_FULL.md for the full design.
package tchan

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gochannel/tchan/frame"
	"github.com/gochannel/tchan/tchanlog"
)

// Channel is the top-level endpoint: it owns the peer registry, the
// listening socket, the table of registered endpoint handlers, and the
// defaults every Connection it creates inherits (spec.md §2, §4.1).
type Channel struct {
	opts Options
	log  tchanlog.Logger
	obs  Observer

	mu        sync.Mutex
	endpoints map[string]Handler

	peers *peerRegistry

	listener net.Listener

	destroyed int32 // atomic bool

	closeWG   sync.WaitGroup
	quitOnce  sync.Once
	quitCB    func()
	quitMu    sync.Mutex
	quitPending int
}

// NewChannel constructs a Channel from opts, applying spec.md §6
// defaults for any unset field. It does not listen until Listen is
// called (or automatically, if opts.Listening is nil or true).
func NewChannel(opts Options) (*Channel, error) {
	if opts.HostPort == "" {
		return nil, invalidArgErr("HostPort is required")
	}
	opts = opts.withDefaults()

	ch := &Channel{
		opts:      opts,
		log:       opts.Logger,
		obs:       NopObserver{},
		endpoints: make(map[string]Handler),
		peers:     newPeerRegistry(),
	}

	if opts.isListening() {
		if err := ch.Listen(); err != nil {
			return nil, err
		}
	}
	return ch, nil
}

// SetObserver installs the Observer that receives this channel's fixed
// set of lifecycle events. Not safe to call concurrently with events
// being emitted; set it once, right after NewChannel.
func (ch *Channel) SetObserver(obs Observer) {
	if obs == nil {
		obs = NopObserver{}
	}
	ch.obs = obs
}

// HostPort returns the channel's own identity.
func (ch *Channel) HostPort() string { return ch.opts.HostPort }

// Peers returns every live connection in the peer registry, each
// hostPort's connections in registry order (outbound first); the order of
// the hostPorts relative to each other is not defined. Used by package
// admin to render a snapshot of the registry.
func (ch *Channel) Peers() []*Connection { return ch.peers.getPeers() }

// Listen binds the server socket and begins accepting inbound
// connections in a background goroutine. Fails if HostPort is unset or
// the socket is already listening.
func (ch *Channel) Listen() error {
	if ch.opts.HostPort == "" {
		return invalidArgErr("HostPort is required to listen")
	}
	if ch.listener != nil {
		return fmt.Errorf("tchan: channel already listening on %s", ch.opts.HostPort)
	}

	l, err := net.Listen("tcp", ch.opts.HostPort)
	if err != nil {
		return socketErr(err)
	}
	ch.listener = l
	ch.log.Infof("%s listening on %s", ch.opts.ProcessName, ch.opts.HostPort)
	ch.obs.OnListening(ch.opts.HostPort)

	ch.closeWG.Add(1)
	go ch.acceptLoop(l)
	return nil
}

func (ch *Channel) acceptLoop(l net.Listener) {
	defer ch.closeWG.Done()
	defer ch.onSocketClosed()

	for {
		nc, err := l.Accept()
		if err != nil {
			if atomic.LoadInt32(&ch.destroyed) == 0 {
				ch.log.Errorf("accept error: %v", err)
			}
			return
		}

		if _, err := ch.AdoptInbound(nc); err != nil {
			ch.log.Warnf("rejecting inbound connection: %v", err)
			nc.Close()
		}
	}
}

// AdoptInbound wraps an already-accepted net.Conn (from the channel's own
// listener, or from an alternative transport such as wstransport.Upgrade)
// as an inbound Connection and starts its reader/writer/sweep loops. It
// waits for the peer's init request before appearing in the peer
// registry (spec.md Invariant 2).
func (ch *Channel) AdoptInbound(nc net.Conn) (*Connection, error) {
	conn, err := newConnection(ch, nc, DirectionInbound, nc.RemoteAddr().String())
	if err != nil {
		return nil, err
	}
	conn.startInbound()
	return conn, nil
}

// Register installs handler under name, overwriting any previous
// registration (spec.md §4.1).
func (ch *Channel) Register(name string, handler Handler) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.endpoints[name] = handler
}

// getEndpointHandler returns the registered handler for name, or a
// synthesized handler that fails callers with KindNoSuchEndpoint.
func (ch *Channel) getEndpointHandler(name string) Handler {
	ch.mu.Lock()
	h, ok := ch.endpoints[name]
	ch.mu.Unlock()

	if !ok {
		ch.obs.OnEndpointMissing(name)
		return missingHandler{name: name}
	}
	ch.obs.OnEndpoint(name)
	return h
}

// CallOptions configures a single outbound operation.
type CallOptions struct {
	Host    string
	Timeout time.Duration // zero means ReqTimeoutDefault
}

// Send resolves or creates the outbound connection to opts.Host and
// issues a call for endpoint arg1 carrying arg2/arg3, invoking cb exactly
// once with the result (spec.md §4.1 "send").
func (ch *Channel) Send(opts CallOptions, arg1, arg2, arg3 []byte, cb func(err error, res2, res3 []byte)) {
	if atomic.LoadInt32(&ch.destroyed) != 0 {
		cb(destroyedErr(), nil, nil)
		return
	}
	if opts.Host == "" {
		cb(invalidArgErr("options.Host is required"), nil, nil)
		return
	}
	if err := validateCallArgs(arg1, arg2, arg3); err != nil {
		cb(err, nil, nil)
		return
	}

	conn, err := ch.resolvePeer(opts.Host)
	if err != nil {
		cb(err, nil, nil)
		return
	}

	conn.send(opts, arg1, arg2, arg3, cb)
}

// resolvePeer returns the preferred connection for hostPort, dialing a
// new outbound connection if none exists yet.
func (ch *Channel) resolvePeer(hostPort string) (*Connection, error) {
	if conn := ch.peers.getPeer(hostPort); conn != nil {
		return conn, nil
	}
	return ch.AddPeer(hostPort, nil)
}

// AddPeer inserts conn into the peer registry under hostPort. If conn is
// nil, a fresh outbound connection is dialed. Refuses hostPort ==
// ch.HostPort() (spec.md Invariant 3).
func (ch *Channel) AddPeer(hostPort string, conn *Connection) (*Connection, error) {
	if hostPort == ch.opts.HostPort {
		return nil, invalidArgErr("refusing to add self as a peer")
	}

	if conn == nil {
		nc, err := net.Dial("tcp", hostPort)
		if err != nil {
			return nil, socketErr(err)
		}
		conn, err = newConnection(ch, nc, DirectionOutbound, hostPort)
		if err != nil {
			nc.Close()
			return nil, err
		}
	}

	if existing := ch.peers.getPeer(hostPort); existing != nil && existing != conn {
		ch.log.Warnf("replacing existing connection for peer %s", hostPort)
	}

	ch.peers.setPeer(hostPort, conn)

	if conn.direction == DirectionOutbound {
		conn.startOutbound()
	}
	return conn, nil
}

// onConnectionReset is called by a Connection exactly once, as soon as
// its resetAll has fully drained both op tables, so the channel can
// remove it from the registry and notify the observer. This is the
// logical "reset" event and is deliberately independent of whether the
// underlying transport has actually finished closing yet (see
// onSocketClosed).
func (ch *Channel) onConnectionReset(conn *Connection, err error) {
	if hp := conn.RemoteName(); hp != "" {
		ch.peers.removePeer(hp, conn)
	}
	ch.obs.OnSocketClose(conn, err)
}

func (ch *Channel) onConnectionIdentified(conn *Connection) {
	ch.obs.OnIdentified(conn.RemoteName())
}

// Quit marks the channel destroyed, resets every live connection with a
// KindShutdown error, closes the listening socket, and invokes cb
// exactly once after every peer connection and the listener have
// finished closing. A nil cb is a documented no-op; calling Quit twice
// is a no-op the second time (spec.md §4.1).
func (ch *Channel) Quit(cb func()) {
	ch.quitOnce.Do(func() {
		atomic.StoreInt32(&ch.destroyed, 1)

		peers := ch.peers.getPeers()
		ch.quitMu.Lock()
		ch.quitPending = len(peers)
		if ch.listener != nil {
			ch.quitPending++
		}
		ch.quitCB = cb
		pending := ch.quitPending
		ch.quitMu.Unlock()

		for _, conn := range peers {
			conn.resetAll(shutdownErr())
		}

		if ch.listener != nil {
			ch.listener.Close()
		}

		if pending == 0 && cb != nil {
			cb()
		}
	})
}

// onSocketClosed is invoked once per transport Close() completion (one
// per former peer connection, plus one for the listener): it is the
// close-barrier Quit waits on. Per spec.md §9(c) this is driven strictly
// by the transport's own close, never by resetAll's synthetic
// socketClose, so Quit's counter cannot be decremented twice for the
// same connection.
func (ch *Channel) onSocketClosed() {
	ch.quitMu.Lock()
	if ch.quitPending == 0 {
		ch.quitMu.Unlock()
		return
	}
	ch.quitPending--
	pending := ch.quitPending
	cb := ch.quitCB
	ch.quitMu.Unlock()

	if pending == 0 && cb != nil {
		cb()
	}
}

// checksumType is the ChecksumType this channel applies to outbound frames.
func (ch *Channel) checksumType() frame.ChecksumType { return ch.opts.ChecksumType }

// validateCallArgs rejects any call argument too large to encode on the
// wire before it reaches a Frame, so an oversized caller-supplied
// argument surfaces as a KindInvalidArg error instead of panicking the
// connection's writer goroutine (frame.ToBuffer treats this as an
// internal invariant, not user input).
func validateCallArgs(args ...[]byte) error {
	for _, a := range args {
		if err := frame.ValidateArg(a); err != nil {
			return invalidArgErr(err.Error())
		}
	}
	return nil
}
