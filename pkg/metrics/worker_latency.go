// Package metrics tracks call latencies and outcomes of the external capabilities.
package metrics

import (
	"slices"
	"sync"
	"time"
)

// =============================================================================
// Latency Tracker
// =============================================================================

// LatencyTracker keeps a sliding window of latencies plus call/error counters.
type LatencyTracker struct {
	mu         sync.Mutex
	samples    []time.Duration
	maxSamples int
	calls      int64
	errors     int64
}

// NewLatencyTracker creates a tracker keeping at most windowSize samples.
func NewLatencyTracker(windowSize int) *LatencyTracker {
	if windowSize <= 0 {
		windowSize = 1000
	}
	return &LatencyTracker{
		samples:    make([]time.Duration, 0, windowSize),
		maxSamples: windowSize,
	}
}

// Record adds one call outcome.
func (lt *LatencyTracker) Record(d time.Duration, err error) {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	lt.calls++
	if err != nil {
		lt.errors++
	}

	if len(lt.samples) >= lt.maxSamples {
		// drop the oldest tenth at once
		drop := max(lt.maxSamples/10, 1)
		lt.samples = append(lt.samples[:0], lt.samples[drop:]...)
	}
	lt.samples = append(lt.samples, d)
}

// Stats returns the current statistics.
func (lt *LatencyTracker) Stats() LatencyStats {
	lt.mu.Lock()
	sorted := slices.Clone(lt.samples)
	calls, errs := lt.calls, lt.errors
	lt.mu.Unlock()

	stats := LatencyStats{Calls: calls, Errors: errs}
	if len(sorted) == 0 {
		return stats
	}
	slices.Sort(sorted)

	var sum time.Duration
	for _, v := range sorted {
		sum += v
	}
	pct := func(p float64) time.Duration {
		return sorted[int(float64(len(sorted)-1)*p)]
	}

	stats.Min = sorted[0]
	stats.Max = sorted[len(sorted)-1]
	stats.Avg = sum / time.Duration(len(sorted))
	stats.P50 = pct(0.50)
	stats.P95 = pct(0.95)
	stats.Samples = len(sorted)
	return stats
}

// LatencyStats holds latency statistics.
type LatencyStats struct {
	Calls   int64         `json:"calls"`
	Errors  int64         `json:"errors"`
	Min     time.Duration `json:"min"`
	Max     time.Duration `json:"max"`
	Avg     time.Duration `json:"avg"`
	P50     time.Duration `json:"p50"`
	P95     time.Duration `json:"p95"`
	Samples int           `json:"samples"`
}

// ToMap renders the stats in milliseconds for logs and the API.
func (s LatencyStats) ToMap() map[string]any {
	ms := func(d time.Duration) float64 { return float64(d.Microseconds()) / 1000 }
	return map[string]any{
		"calls":       s.Calls,
		"errors":      s.Errors,
		"min_ms":      ms(s.Min),
		"max_ms":      ms(s.Max),
		"avg_ms":      ms(s.Avg),
		"p50_ms":      ms(s.P50),
		"p95_ms":      ms(s.P95),
		"sample_size": s.Samples,
	}
}

// =============================================================================
// Per-Capability Registry
// =============================================================================

// Capability names recorded by the adapters.
const (
	CapabilityFetch = "fetch"
	CapabilityLLM   = "llm"
)

// LatencyRegistry holds one tracker per capability.
type LatencyRegistry struct {
	mu       sync.RWMutex
	trackers map[string]*LatencyTracker
	window   int
}

func NewLatencyRegistry(windowSize int) *LatencyRegistry {
	return &LatencyRegistry{
		trackers: make(map[string]*LatencyTracker),
		window:   windowSize,
	}
}

// Record records a call for the named capability.
func (r *LatencyRegistry) Record(name string, d time.Duration, err error) {
	r.mu.RLock()
	tracker, ok := r.trackers[name]
	r.mu.RUnlock()

	if !ok {
		r.mu.Lock()
		if tracker, ok = r.trackers[name]; !ok {
			tracker = NewLatencyTracker(r.window)
			r.trackers[name] = tracker
		}
		r.mu.Unlock()
	}

	tracker.Record(d, err)
}

// AllStats returns statistics for every capability seen so far.
func (r *LatencyRegistry) AllStats() map[string]LatencyStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]LatencyStats, len(r.trackers))
	for name, tracker := range r.trackers {
		result[name] = tracker.Stats()
	}
	return result
}

var (
	globalRegistry     *LatencyRegistry
	globalRegistryOnce sync.Once
)

// GlobalRegistry returns the process-wide registry.
func GlobalRegistry() *LatencyRegistry {
	globalRegistryOnce.Do(func() {
		globalRegistry = NewLatencyRegistry(1000)
	})
	return globalRegistry
}

// RecordLatency records to the global registry.
func RecordLatency(name string, d time.Duration, err error) {
	GlobalRegistry().Record(name, d, err)
}
