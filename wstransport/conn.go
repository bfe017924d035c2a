// Package wstransport adapts a github.com/gorilla/websocket connection
// to the net.Conn subset Connection needs (Read/Write/Close/
// SetDeadline), so the channel's core connection/op-table/timeout
// machinery can ride over a websocket the same way it rides over a
// plain TCP socket (spec.md §6 supplemental transport, see
// SPEC_FULL.md §3.4). Messages are framed as opaque binary websocket
// messages; the byte stream inside them is the same frame.Codec stream
// used over TCP.
package wstransport

import (
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Upgrade upgrades an inbound HTTP request to a websocket and wraps it
// as a net.Conn.
func Upgrade(w http.ResponseWriter, r *http.Request) (net.Conn, error) {
	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return New(wsConn), nil
}

// Dial opens an outbound websocket connection to url and wraps it as a
// net.Conn.
func Dial(url string) (net.Conn, error) {
	wsConn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, err
	}
	return New(wsConn), nil
}

// Conn adapts a *websocket.Conn to net.Conn. Partial reads are supported
// by buffering the remainder of the current websocket message between
// Read calls.
type Conn struct {
	ws   *websocket.Conn
	rbuf []byte
}

// New wraps an already-established websocket connection.
func New(ws *websocket.Conn) *Conn {
	return &Conn{ws: ws}
}

func (c *Conn) Read(p []byte) (int, error) {
	for len(c.rbuf) == 0 {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return 0, err
		}
		c.rbuf = data
	}
	n := copy(p, c.rbuf)
	c.rbuf = c.rbuf[n:]
	return n, nil
}

func (c *Conn) Write(p []byte) (int, error) {
	if err := c.ws.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *Conn) Close() error                       { return c.ws.Close() }
func (c *Conn) LocalAddr() net.Addr                { return c.ws.LocalAddr() }
func (c *Conn) RemoteAddr() net.Addr               { return c.ws.RemoteAddr() }
func (c *Conn) SetDeadline(t time.Time) error {
	if err := c.ws.SetReadDeadline(t); err != nil {
		return err
	}
	return c.ws.SetWriteDeadline(t)
}
func (c *Conn) SetReadDeadline(t time.Time) error  { return c.ws.SetReadDeadline(t) }
func (c *Conn) SetWriteDeadline(t time.Time) error { return c.ws.SetWriteDeadline(t) }
