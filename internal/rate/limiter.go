package rate

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Sampler rate-limits events per key. The feed loop keeps one key per decode
// failure kind so a storm of identical failures surfaces as a few sampled
// log lines instead of one per message.
type Sampler struct {
	mu         sync.Mutex
	m          map[string]*limitEntry
	perSecond  float64
	burst      int
	maxEntries int
}

type limitEntry struct {
	limiter  *rate.Limiter
	lastUsed time.Time
}

func NewSampler(perSecond float64, burst int) *Sampler {
	s := &Sampler{
		m:          make(map[string]*limitEntry),
		perSecond:  perSecond,
		burst:      burst,
		maxEntries: 1024,
	}

	go s.cleanup()
	return s
}

func (s *Sampler) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		s.mu.Lock()
		if len(s.m) > s.maxEntries {
			cutoff := time.Now().Add(-1 * time.Hour)
			for key, entry := range s.m {
				if entry.lastUsed.Before(cutoff) {
					delete(s.m, key)
				}
			}
		}
		s.mu.Unlock()
	}
}

// Allow reports whether an event for key fits the per-key budget.
func (s *Sampler) Allow(key string) bool {
	s.mu.Lock()
	entry, ok := s.m[key]
	if !ok {
		entry = &limitEntry{
			limiter:  rate.NewLimiter(rate.Limit(s.perSecond), s.burst),
			lastUsed: time.Now(),
		}
		s.m[key] = entry
	} else {
		entry.lastUsed = time.Now()
	}
	s.mu.Unlock()
	return entry.limiter.Allow()
}
