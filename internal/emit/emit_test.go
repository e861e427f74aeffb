package emit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bgpkit/ris-live-go/internal/decode"
	"github.com/bgpkit/ris-live-go/internal/logging"
)

func testElements(t *testing.T) []decode.Element {
	t.Helper()
	elems, err := decode.Decode(`{"type":"ris_message","data":{"timestamp":1.0,"peer":"10.0.0.1","peer_asn":"64500","host":"rrc00","type":"UPDATE","announcements":[{"next_hop":"10.0.0.1","prefixes":["10.0.0.0/8"]}]}}`)
	if err != nil {
		t.Fatal(err)
	}
	return elems
}

func TestEmitter_PostsBatch(t *testing.T) {
	got := make(chan Batch, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var b Batch
		if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
			t.Errorf("bad batch body: %v", err)
		}
		got <- b
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	log := logging.New(false)
	e := NewEmitter(server.URL, "test-client", 1, time.Hour, t.TempDir(), "", "", "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	in := make(chan []decode.Element, 1)
	go e.Run(ctx, in, log)

	in <- testElements(t)

	select {
	case b := <-got:
		if b.Client != "test-client" {
			t.Errorf("client = %q, want test-client", b.Client)
		}
		if len(b.Elements) != 1 || b.Elements[0].Type != decode.TypeAnnounce {
			t.Errorf("unexpected batch elements: %+v", b.Elements)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("batch was not posted")
	}
}

func TestEmitter_SpoolsAndDrains(t *testing.T) {
	var healthy atomic.Bool
	var posts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		posts.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	log := logging.New(false)
	spoolDir := t.TempDir()
	e := NewEmitter(server.URL, "test-client", 10, time.Hour, spoolDir, "", "", "")
	// Tight retry budget so the failing post gives up quickly.
	e.retryBudget = 200 * time.Millisecond

	e.append(testElements(t))
	e.flush(log)

	entries, err := os.ReadDir(spoolDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 spooled batch, got %d", len(entries))
	}

	healthy.Store(true)
	e.Drain(log)

	if posts.Load() != 1 {
		t.Errorf("expected 1 successful post after drain, got %d", posts.Load())
	}
	entries, _ = os.ReadDir(spoolDir)
	if len(entries) != 0 {
		t.Errorf("expected spool to be empty after drain, %d files remain", len(entries))
	}
}
