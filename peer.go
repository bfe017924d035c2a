package tchan

import "sync"

// peerRegistry implements spec.md §4.2: hostPort -> ordered sequence of
// Connection, outbound connections prepended, inbound appended. Keys are
// never removed even once their list empties; the list growing back to
// zero-length entries is the documented, acceptable memory growth from
// spec.md (cleanup is a future refinement, not a correctness concern).
type peerRegistry struct {
	mu    sync.Mutex
	byKey map[string][]*Connection
}

func newPeerRegistry() *peerRegistry {
	return &peerRegistry{byKey: make(map[string][]*Connection)}
}

// setPeer inserts conn under hostPort: prepended if conn is an outbound
// connection, appended otherwise (spec.md Invariants 1-2).
func (r *peerRegistry) setPeer(hostPort string, conn *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.byKey[hostPort]
	if conn.direction == DirectionOutbound {
		list = append([]*Connection{conn}, list...)
	} else {
		list = append(list, conn)
	}
	r.byKey[hostPort] = list
}

// getPeer returns the first connection for hostPort (the most recently
// prepended outbound one if any exist, else the oldest inbound one), or
// nil if there is none.
func (r *peerRegistry) getPeer(hostPort string) *Connection {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.byKey[hostPort]
	if len(list) == 0 {
		return nil
	}
	return list[0]
}

// removePeer deletes conn from hostPort's list by identity. No-op if
// conn is not present.
func (r *peerRegistry) removePeer(hostPort string, conn *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.byKey[hostPort]
	for i, c := range list {
		if c == conn {
			r.byKey[hostPort] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

// getPeers flattens every hostPort's list into one slice, keeping each
// list's own order (outbound first, as setPeer arranged it). The lists are
// visited in map iteration order, so the order of the hostPorts relative
// to each other is not defined. Used by Channel.Quit to reset every live
// connection.
func (r *peerRegistry) getPeers() []*Connection {
	r.mu.Lock()
	defer r.mu.Unlock()

	var all []*Connection
	for _, list := range r.byKey {
		all = append(all, list...)
	}
	return all
}
