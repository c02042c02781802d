// Package metrics provides in-memory runtime statistics collection.
package metrics

import (
	"math"
	"sync"
	"time"
)

// OperationMetrics holds aggregated metrics for a single operation type.
type OperationMetrics struct {
	Count     int64
	TotalTime time.Duration
	MinTime   time.Duration
	MaxTime   time.Duration
	Failures  int64
}

// OperationSnapshot provides computed stats from raw metrics.
type OperationSnapshot struct {
	Count       int64   `json:"count"`
	Failures    int64   `json:"failures"`
	TotalTimeMs int64   `json:"totalTimeMs"`
	AvgTimeMs   float64 `json:"avgTimeMs"`
	MinTimeMs   int64   `json:"minTimeMs"`
	MaxTimeMs   int64   `json:"maxTimeMs"`
}

// Snapshot represents the full statistics at a point in time.
type Snapshot struct {
	UptimeSeconds float64            `json:"uptimeSeconds"`
	KeyResolve    *OperationSnapshot `json:"keyResolve,omitempty"`
	Discovery     *OperationSnapshot `json:"discovery,omitempty"`
	Run           *OperationSnapshot `json:"run,omitempty"`
	HistoryWrite  *OperationSnapshot `json:"historyWrite,omitempty"`
}

// Operation names for the collector.
const (
	OpKeyResolve   = "key_resolve"
	OpDiscovery    = "discovery"
	OpRun          = "run"
	OpHistoryWrite = "history_write"
)

// Collector aggregates in-memory runtime statistics.
// All methods are thread-safe.
type Collector struct {
	mu        sync.RWMutex
	startTime time.Time
	ops       map[string]*OperationMetrics
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		startTime: time.Now(),
		ops:       make(map[string]*OperationMetrics),
	}
}

// getOrCreate returns existing metrics or creates new ones for an operation.
// Caller must hold write lock.
func (c *Collector) getOrCreate(op string) *OperationMetrics {
	m, ok := c.ops[op]
	if !ok {
		m = &OperationMetrics{
			MinTime: time.Duration(math.MaxInt64),
		}
		c.ops[op] = m
	}
	return m
}

// RecordTiming records one operation, its duration, and whether it failed.
func (c *Collector) RecordTiming(op string, duration time.Duration, failed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.getOrCreate(op)
	m.Count++
	m.TotalTime += duration
	if failed {
		m.Failures++
	}

	if duration < m.MinTime {
		m.MinTime = duration
	}
	if duration > m.MaxTime {
		m.MaxTime = duration
	}
}

// Observe wraps a call site: it times fn and records the outcome.
func (c *Collector) Observe(op string, fn func() error) error {
	start := time.Now()
	err := fn()
	c.RecordTiming(op, time.Since(start), err != nil)
	return err
}

// snapshotOp creates a snapshot for an operation, returning nil if no data.
func snapshotOp(m *OperationMetrics) *OperationSnapshot {
	if m == nil || m.Count == 0 {
		return nil
	}

	return &OperationSnapshot{
		Count:       m.Count,
		Failures:    m.Failures,
		TotalTimeMs: m.TotalTime.Milliseconds(),
		AvgTimeMs:   float64(m.TotalTime.Milliseconds()) / float64(m.Count),
		MinTimeMs:   m.MinTime.Milliseconds(),
		MaxTimeMs:   m.MaxTime.Milliseconds(),
	}
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Snapshot{
		UptimeSeconds: time.Since(c.startTime).Seconds(),
		KeyResolve:    snapshotOp(c.ops[OpKeyResolve]),
		Discovery:     snapshotOp(c.ops[OpDiscovery]),
		Run:           snapshotOp(c.ops[OpRun]),
		HistoryWrite:  snapshotOp(c.ops[OpHistoryWrite]),
	}
}
