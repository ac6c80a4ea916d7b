package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLatencyTracker_Stats(t *testing.T) {
	lt := NewLatencyTracker(100)
	for i := 1; i <= 10; i++ {
		var err error
		if i%5 == 0 {
			err = errors.New("failed")
		}
		lt.Record(time.Duration(i)*time.Millisecond, err)
	}

	s := lt.Stats()
	assert.Equal(t, int64(10), s.Calls)
	assert.Equal(t, int64(2), s.Errors)
	assert.Equal(t, time.Millisecond, s.Min)
	assert.Equal(t, 10*time.Millisecond, s.Max)
	assert.Equal(t, 5*time.Millisecond, s.P50)
	assert.Equal(t, 10, s.Samples)
}

func TestLatencyTracker_SlidingWindow(t *testing.T) {
	lt := NewLatencyTracker(10)
	for i := 0; i < 25; i++ {
		lt.Record(time.Duration(i)*time.Millisecond, nil)
	}

	s := lt.Stats()
	assert.LessOrEqual(t, s.Samples, 10)
	assert.Equal(t, int64(25), s.Calls)
	assert.Equal(t, 24*time.Millisecond, s.Max)
}

func TestLatencyRegistry(t *testing.T) {
	r := NewLatencyRegistry(10)
	r.Record(CapabilityFetch, time.Second, nil)
	r.Record(CapabilityLLM, 2*time.Second, errors.New("timeout"))

	all := r.AllStats()
	assert.Len(t, all, 2)
	assert.Equal(t, int64(1), all[CapabilityLLM].Errors)
	assert.Equal(t, 1000.0, all[CapabilityFetch].ToMap()["avg_ms"])
}

func TestAssessDBPool(t *testing.T) {
	tests := []struct {
		name  string
		stats DBPoolStats
		want  PoolHealthStatus
	}{
		{name: "unlimited", stats: DBPoolStats{InUse: 40}, want: PoolHealthy},
		{name: "low use", stats: DBPoolStats{InUse: 2, MaxOpenConnections: 25}, want: PoolHealthy},
		{name: "high use", stats: DBPoolStats{InUse: 21, MaxOpenConnections: 25}, want: PoolDegraded},
		{name: "exhausted", stats: DBPoolStats{InUse: 25, MaxOpenConnections: 25}, want: PoolUnhealthy},
		{name: "single connection busy", stats: DBPoolStats{InUse: 1, MaxOpenConnections: 1}, want: PoolDegraded},
		{name: "long waits", stats: DBPoolStats{InUse: 1, MaxOpenConnections: 25, WaitCount: 3, WaitDuration: 6 * time.Second}, want: PoolDegraded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AssessDBPool(tt.stats).Status)
		})
	}
}

func TestPoolMonitor_Reports(t *testing.T) {
	m := NewPoolMonitor()
	m.Register("runs", nil)

	reports := m.Reports()
	assert.Len(t, reports, 1)
	assert.Equal(t, PoolHealthy, reports["runs"].Status)
}
