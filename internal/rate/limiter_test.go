package rate

import (
	"sync"
	"testing"
)

func TestSampler_Allow(t *testing.T) {
	sampler := NewSampler(10.0, 5) // 10 per second, burst of 5

	// Burst allowance
	for i := 0; i < 5; i++ {
		if !sampler.Allow("invalid_field") {
			t.Errorf("expected Allow to return true for burst event %d", i+1)
		}
	}

	// Next event should be sampled out
	if sampler.Allow("invalid_field") {
		t.Error("expected Allow to return false after burst exhausted")
	}

	// A different key has its own budget
	if !sampler.Allow("malformed_json") {
		t.Error("expected Allow to return true for different key")
	}
}

func TestSampler_MultipleKeys(t *testing.T) {
	sampler := NewSampler(10.0, 2)
	keys := []string{"missing_field", "invalid_field", "unknown_message_kind"}

	for _, key := range keys {
		allowed := 0
		for i := 0; i < 5; i++ {
			if sampler.Allow(key) {
				allowed++
			}
		}
		if allowed != 2 {
			t.Errorf("expected 2 events allowed for %s, got %d", key, allowed)
		}
	}
}

func TestSampler_Concurrent(t *testing.T) {
	sampler := NewSampler(1000.0, 10)
	var wg sync.WaitGroup
	allowed := 0
	var mu sync.Mutex

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if sampler.Allow("concurrent-key") {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	if allowed == 0 {
		t.Error("expected some events to be allowed")
	}
	if allowed > 15 { // tolerance for timing
		t.Errorf("expected sampling to apply, but %d events were allowed", allowed)
	}
}

func BenchmarkSampler_Allow(b *testing.B) {
	sampler := NewSampler(1000000.0, 1000000)

	b.Run("SingleKey", func(b *testing.B) {
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			sampler.Allow("benchmark-key")
		}
	})

	b.Run("MultipleKeys", func(b *testing.B) {
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			sampler.Allow(string(rune(i % 100)))
		}
	})
}
