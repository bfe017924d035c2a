// Package peerstore supplements spec.md's purely in-memory peer registry
// (§3, §4.2) with a durable hint cache of HostPorts this endpoint has
// successfully identified in the past, so a restarted process can
// eagerly redial known peers instead of waiting for inbound traffic. It
// is never consulted for in-memory routing decisions; the peer registry's
// getPeer semantics are unaffected by it.
package peerstore

import (
	"time"

	"github.com/syndtr/goleveldb/leveldb"
)

// Store persists the set of known HostPorts in a goleveldb database, the
// same storage engine the teacher corpus uses for its own chain state
// (database/ffldb).
type Store struct {
	db *leveldb.DB
}

// Open opens (creating if needed) a Store backed by the leveldb database
// at dir.
func Open(dir string) (*Store, error) {
	db, err := leveldb.OpenFile(dir, nil)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying leveldb handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Remember records hostPort as seen at seenAt, overwriting any earlier
// record for the same HostPort.
func (s *Store) Remember(hostPort string, seenAt time.Time) error {
	val, err := seenAt.MarshalBinary()
	if err != nil {
		return err
	}
	return s.db.Put([]byte(hostPort), val, nil)
}

// Forget removes hostPort from the store, if present.
func (s *Store) Forget(hostPort string) error {
	return s.db.Delete([]byte(hostPort), nil)
}

// Known returns every HostPort this endpoint has ever remembered, along
// with the time it was last seen.
func (s *Store) Known() (map[string]time.Time, error) {
	out := make(map[string]time.Time)
	iter := s.db.NewIterator(nil, nil)
	defer iter.Release()

	for iter.Next() {
		var t time.Time
		if err := t.UnmarshalBinary(iter.Value()); err != nil {
			continue // corrupt/foreign record; skip rather than fail the whole scan
		}
		out[string(iter.Key())] = t
	}
	return out, iter.Error()
}
