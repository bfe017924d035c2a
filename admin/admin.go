// Package admin exposes a small read-only introspection surface over a
// running Channel: GET /peers (peer registry contents) and GET /ops
// (per-connection operation table sizes), as JSON, for a browser-based
// dashboard during development. It is wrapped with github.com/rs/cors
// the way the teacher's own go.mod carries that dependency, so a
// dashboard served from a different origin can poll it directly.
package admin

import (
	"encoding/json"
	"net/http"

	"github.com/rs/cors"

	"github.com/gochannel/tchan"
)

// PeerConn summarizes one connection in a /peers response.
type PeerConn struct {
	HostPort   string `json:"hostPort"`
	Direction  string `json:"direction"`
	Identified bool   `json:"identified"`
	InPending  int    `json:"inPending"`
	OutPending int    `json:"outPending"`
}

// OpCounts summarizes one connection's operation-table sizes in an /ops
// response: the same numbers as PeerConn's InPending/OutPending fields,
// served on their own route for a client that only cares about load, not
// identity/direction.
type OpCounts struct {
	HostPort   string `json:"hostPort"`
	InPending  int    `json:"inPending"`
	OutPending int    `json:"outPending"`
}

// Server serves the admin HTTP surface for a single Channel.
type Server struct {
	ch       *tchan.Channel
	handler  http.Handler
}

// New builds a Server for ch. allowedOrigins configures the CORS policy
// (pass nil to allow any origin, suitable only for local development).
func New(ch *tchan.Channel, allowedOrigins []string) *Server {
	mux := http.NewServeMux()
	s := &Server{ch: ch}
	mux.HandleFunc("/peers", s.servePeers)
	mux.HandleFunc("/ops", s.serveOps)

	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet},
	})
	s.handler = c.Handler(mux)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) servePeers(w http.ResponseWriter, r *http.Request) {
	conns := s.ch.Peers()
	out := make([]PeerConn, 0, len(conns))
	for _, c := range conns {
		inPending, outPending := c.Stats()
		out = append(out, PeerConn{
			HostPort:   c.RemoteName(),
			Direction:  c.Direction().String(),
			Identified: c.IsIdentified(),
			InPending:  inPending,
			OutPending: outPending,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func (s *Server) serveOps(w http.ResponseWriter, r *http.Request) {
	conns := s.ch.Peers()
	out := make([]OpCounts, 0, len(conns))
	for _, c := range conns {
		inPending, outPending := c.Stats()
		out = append(out, OpCounts{
			HostPort:   c.RemoteName(),
			InPending:  inPending,
			OutPending: outPending,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}
