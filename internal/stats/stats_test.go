package stats

import (
	"sync"
	"testing"
	"time"

	"github.com/bgpkit/ris-live-go/internal/decode"
)

func TestTracker_Observe(t *testing.T) {
	tracker := New(time.Hour)

	elems, err := decode.Decode(`{"type":"ris_message","data":{"timestamp":1.0,"peer":"10.0.0.1","peer_asn":"64500","host":"rrc00","type":"UPDATE","announcements":[{"next_hop":"10.0.0.1","prefixes":["10.0.0.0/8","10.1.0.0/16"]}],"withdrawals":["10.0.0.0/8"]}}`)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range elems {
		tracker.Observe(e)
	}

	s := tracker.Snapshot()
	if s.Announces != 2 || s.Withdraws != 1 || s.PeerStates != 0 {
		t.Errorf("counts = %d/%d/%d, want 2/1/0", s.Announces, s.Withdraws, s.PeerStates)
	}
	// 10.0.0.0/8 appears both announced and withdrawn; distinct count is 2.
	if s.UniquePrefixes != 2 {
		t.Errorf("unique prefixes = %d, want 2", s.UniquePrefixes)
	}
	if s.UniquePeers != 1 {
		t.Errorf("unique peers = %d, want 1", s.UniquePeers)
	}
}

func TestTracker_Concurrent(t *testing.T) {
	tracker := New(time.Hour)
	elems, err := decode.Decode(`{"type":"ris_message","data":{"timestamp":1.0,"peer":"10.0.0.1","peer_asn":"64500","host":"rrc00","type":"RIS_PEER_STATE","state":"connected"}}`)
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tracker.Observe(elems[0])
		}()
	}
	wg.Wait()

	if got := tracker.Snapshot().PeerStates; got != 50 {
		t.Errorf("peer states = %d, want 50", got)
	}
}
