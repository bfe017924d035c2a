package main

import (
	"time"

	"github.com/gochannel/tchan"
	"github.com/gochannel/tchan/peerstore"
	"github.com/gochannel/tchan/tchanlog"
)

// peerstoreObserver remembers every HostPort this process identifies
// with, so a later process restart can redial them eagerly instead of
// waiting for inbound traffic (SPEC_FULL.md §3.2).
type peerstoreObserver struct {
	tchan.NopObserver
	store *peerstore.Store
	log   tchanlog.Logger
}

func (o *peerstoreObserver) OnIdentified(hostPort string) {
	if err := o.store.Remember(hostPort, time.Now()); err != nil {
		o.log.Warnf("peerstore: failed to remember %s: %v", hostPort, err)
	}
}

// redialKnownPeers dials every HostPort store has ever remembered,
// logging (rather than failing the whole process on) a peer that is no
// longer reachable.
func redialKnownPeers(ch *tchan.Channel, store *peerstore.Store, log tchanlog.Logger) {
	known, err := store.Known()
	if err != nil {
		log.Warnf("peerstore: failed to read known peers: %v", err)
		return
	}
	for hostPort := range known {
		if _, err := ch.AddPeer(hostPort, nil); err != nil {
			log.Warnf("peerstore: failed to redial known peer %s: %v", hostPort, err)
		}
	}
}
