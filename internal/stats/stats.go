// Package stats keeps a rolling picture of feed visibility for the summary
// log and the health endpoint. It observes elements after decoding; the
// decode path itself stays stateless.
package stats

import (
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/bgpkit/ris-live-go/internal/decode"
)

const lruSize = 65536

// Tracker counts elements by type and tracks distinct prefixes and peers
// seen within the expiry window. Distinct counts are approximate: the LRU
// caps memory, so a very wide view can evict entries early.
type Tracker struct {
	announces  atomic.Int64
	withdraws  atomic.Int64
	peerStates atomic.Int64

	prefixes *expirable.LRU[string, struct{}]
	peers    *expirable.LRU[string, struct{}]

	started time.Time
}

// Summary is one point-in-time view of the tracker.
type Summary struct {
	Announces      int64
	Withdraws      int64
	PeerStates     int64
	UniquePrefixes int
	UniquePeers    int
	Uptime         time.Duration
}

// New creates a tracker whose distinct-prefix and distinct-peer views expire
// after window.
func New(window time.Duration) *Tracker {
	return &Tracker{
		prefixes: expirable.NewLRU[string, struct{}](lruSize, nil, window),
		peers:    expirable.NewLRU[string, struct{}](lruSize, nil, window),
		started:  time.Now(),
	}
}

// Observe records one decoded element.
func (t *Tracker) Observe(e decode.Element) {
	switch e.Type {
	case decode.TypeAnnounce:
		t.announces.Add(1)
	case decode.TypeWithdraw:
		t.withdraws.Add(1)
	case decode.TypePeerState:
		t.peerStates.Add(1)
	}
	if e.Prefix != nil {
		t.prefixes.Add(e.Prefix.String(), struct{}{})
	}
	t.peers.Add(e.Peer.String(), struct{}{})
}

// Snapshot returns the current summary.
func (t *Tracker) Snapshot() Summary {
	return Summary{
		Announces:      t.announces.Load(),
		Withdraws:      t.withdraws.Load(),
		PeerStates:     t.peerStates.Load(),
		UniquePrefixes: t.prefixes.Len(),
		UniquePeers:    t.peers.Len(),
		Uptime:         time.Since(t.started),
	}
}
