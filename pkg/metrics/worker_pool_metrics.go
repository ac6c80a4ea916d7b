package metrics

import (
	"database/sql"
	"sync"
	"time"
)

// =============================================================================
// Database Pool Monitor
// =============================================================================

// DBPoolStats holds database connection pool statistics.
type DBPoolStats struct {
	OpenConnections    int           `json:"open_connections"`
	InUse              int           `json:"in_use"`
	Idle               int           `json:"idle"`
	MaxOpenConnections int           `json:"max_open_connections"`
	WaitCount          int64         `json:"wait_count"`
	WaitDuration       time.Duration `json:"wait_duration"`
}

// GetDBPoolStats retrieves pool statistics from a sql.DB instance.
func GetDBPoolStats(db *sql.DB) DBPoolStats {
	if db == nil {
		return DBPoolStats{}
	}
	stats := db.Stats()
	return DBPoolStats{
		OpenConnections:    stats.OpenConnections,
		InUse:              stats.InUse,
		Idle:               stats.Idle,
		MaxOpenConnections: stats.MaxOpenConnections,
		WaitCount:          stats.WaitCount,
		WaitDuration:       stats.WaitDuration,
	}
}

// PoolHealthStatus indicates the health of a connection pool.
type PoolHealthStatus string

const (
	PoolHealthy   PoolHealthStatus = "healthy"
	PoolDegraded  PoolHealthStatus = "degraded"
	PoolUnhealthy PoolHealthStatus = "unhealthy"
)

// PoolReport is the stats and health of one pool.
type PoolReport struct {
	Stats       DBPoolStats      `json:"stats"`
	Status      PoolHealthStatus `json:"status"`
	Utilization float64          `json:"utilization"`
	Message     string           `json:"message,omitempty"`
}

// AssessDBPool evaluates the health of a database pool. The sqlite registry
// runs with a single connection, so a busy pool of size one is only degraded.
func AssessDBPool(stats DBPoolStats) PoolReport {
	report := PoolReport{Stats: stats, Status: PoolHealthy}
	if stats.MaxOpenConnections == 0 {
		report.Message = "unlimited connections"
		return report
	}

	report.Utilization = float64(stats.InUse) / float64(stats.MaxOpenConnections)
	switch {
	case stats.MaxOpenConnections == 1 && stats.InUse == 1:
		report.Status = PoolDegraded
		report.Message = "single connection in use"
	case report.Utilization >= 0.95:
		report.Status = PoolUnhealthy
		report.Message = "pool nearly exhausted"
	case report.Utilization >= 0.80:
		report.Status = PoolDegraded
		report.Message = "high pool utilization"
	}

	if stats.WaitCount > 0 && stats.WaitDuration > 5*time.Second {
		if report.Status == PoolHealthy {
			report.Status = PoolDegraded
		}
		report.Message = "elevated connection wait times"
	}
	return report
}

// PoolMonitor tracks the database/sql pools of the process: the run
// history and, with the sqlite backend, the registry.
type PoolMonitor struct {
	mu    sync.RWMutex
	pools map[string]*sql.DB
}

func NewPoolMonitor() *PoolMonitor {
	return &PoolMonitor{pools: make(map[string]*sql.DB)}
}

// Register adds a database pool to be monitored.
func (m *PoolMonitor) Register(name string, db *sql.DB) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pools[name] = db
}

// Reports returns stats and health for all registered pools.
func (m *PoolMonitor) Reports() map[string]PoolReport {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]PoolReport, len(m.pools))
	for name, db := range m.pools {
		result[name] = AssessDBPool(GetDBPoolStats(db))
	}
	return result
}

var (
	globalPoolMonitor     *PoolMonitor
	globalPoolMonitorOnce sync.Once
)

// GlobalPoolMonitor returns the global pool monitor.
func GlobalPoolMonitor() *PoolMonitor {
	globalPoolMonitorOnce.Do(func() {
		globalPoolMonitor = NewPoolMonitor()
	})
	return globalPoolMonitor
}

// RegisterPool registers a pool with the global monitor.
func RegisterPool(name string, db *sql.DB) {
	GlobalPoolMonitor().Register(name, db)
}
