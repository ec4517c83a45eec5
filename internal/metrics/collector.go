// Package metrics aggregates operation latencies and session lifecycle
// counts for diagnostics. The collector keeps a bounded in-memory window of
// recent records; both the count ceiling and the retention window are
// enforced opportunistically on insert, never by a background sweep.
package metrics

import (
	"sort"
	"sync"
	"time"
)

const (
	DefaultMaxRecords = 1000
	DefaultRetention  = time.Hour
)

// OperationRecord is one completed operation.
type OperationRecord struct {
	Name      string
	Duration  time.Duration
	Success   bool
	SessionID string
	At        time.Time
}

// OperationMetrics is a point-in-time rollup over the retained window for
// one operation name, not a true historical aggregate.
type OperationMetrics struct {
	Name        string        `json:"name"`
	Count       int           `json:"count"`
	SuccessRate float64       `json:"successRate"`
	ErrorRate   float64       `json:"errorRate"`
	MeanLatency time.Duration `json:"meanLatency"`
	P95Latency  time.Duration `json:"p95Latency"`
	P99Latency  time.Duration `json:"p99Latency"`
}

// Snapshot is a read-only view of everything the collector retains.
type Snapshot struct {
	ActiveSessions int                `json:"activeSessions"`
	TotalRecorded  int                `json:"totalRecorded"`
	Operations     []OperationMetrics `json:"operations"`
}

// Summary is the condensed rollup for the get_metrics tool.
type Summary struct {
	ActiveSessions  int     `json:"activeSessions"`
	SessionsOpened  int     `json:"sessionsOpened"`
	SessionsClosed  int     `json:"sessionsClosed"`
	OperationCount  int     `json:"operationCount"`
	OverallSuccess  float64 `json:"overallSuccessRate"`
	WindowStart     string  `json:"windowStart,omitempty"`
	RetainedRecords int     `json:"retainedRecords"`
}

type sessionStats struct {
	openedAt   time.Time
	operations int
}

// Collector is safe for concurrent use.
type Collector struct {
	mu         sync.Mutex
	maxRecords int
	retention  time.Duration
	records    []OperationRecord
	open       map[string]*sessionStats
	opened     int
	closed     int
	total      int
	now        func() time.Time
}

func NewCollector(maxRecords int, retention time.Duration) *Collector {
	if maxRecords <= 0 {
		maxRecords = DefaultMaxRecords
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Collector{
		maxRecords: maxRecords,
		retention:  retention,
		open:       make(map[string]*sessionStats),
		now:        time.Now,
	}
}

// RecordOperation appends a record and bumps the owning session's counter if
// that session is still tracked as open.
func (c *Collector) RecordOperation(name string, d time.Duration, success bool, sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.records = append(c.records, OperationRecord{
		Name:      name,
		Duration:  d,
		Success:   success,
		SessionID: sessionID,
		At:        c.now(),
	})
	c.total++

	if st, ok := c.open[sessionID]; ok {
		st.operations++
	}
	c.pruneLocked()
}

// SessionOpened registers a session as open.
func (c *Collector) SessionOpened(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.open[sessionID]; !ok {
		c.open[sessionID] = &sessionStats{openedAt: c.now()}
		c.opened++
	}
}

// SessionClosed drops a session from the open set. No-op if unknown.
func (c *Collector) SessionClosed(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.open[sessionID]; ok {
		delete(c.open, sessionID)
		c.closed++
	}
}

func (c *Collector) ActiveSessionCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.open)
}

// OperationMetrics computes the rollup for one operation name over the
// retained window. Percentiles index the sorted durations at floor(n*q).
func (c *Collector) OperationMetrics(name string) OperationMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pruneLocked()

	var durations []time.Duration
	successes := 0
	for _, r := range c.records {
		if r.Name != name {
			continue
		}
		durations = append(durations, r.Duration)
		if r.Success {
			successes++
		}
	}

	m := OperationMetrics{Name: name, Count: len(durations)}
	if len(durations) == 0 {
		return m
	}

	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}
	n := len(durations)
	m.SuccessRate = float64(successes) / float64(n)
	m.ErrorRate = 1 - m.SuccessRate
	m.MeanLatency = sum / time.Duration(n)
	m.P95Latency = durations[percentileIndex(n, 0.95)]
	m.P99Latency = durations[percentileIndex(n, 0.99)]
	return m
}

func percentileIndex(n int, q float64) int {
	i := int(float64(n) * q)
	if i >= n {
		i = n - 1
	}
	return i
}

// GetSnapshot returns rollups for every operation name in the window.
func (c *Collector) GetSnapshot() Snapshot {
	c.mu.Lock()
	names := make(map[string]bool)
	c.pruneLocked()
	for _, r := range c.records {
		names[r.Name] = true
	}
	active := len(c.open)
	total := c.total
	c.mu.Unlock()

	ordered := make([]string, 0, len(names))
	for n := range names {
		ordered = append(ordered, n)
	}
	sort.Strings(ordered)

	snap := Snapshot{ActiveSessions: active, TotalRecorded: total}
	for _, n := range ordered {
		snap.Operations = append(snap.Operations, c.OperationMetrics(n))
	}
	return snap
}

// GetSummary returns the condensed view used by diagnostics tooling.
func (c *Collector) GetSummary() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pruneLocked()

	s := Summary{
		ActiveSessions:  len(c.open),
		SessionsOpened:  c.opened,
		SessionsClosed:  c.closed,
		OperationCount:  c.total,
		RetainedRecords: len(c.records),
	}
	successes := 0
	for _, r := range c.records {
		if r.Success {
			successes++
		}
	}
	if len(c.records) > 0 {
		s.OverallSuccess = float64(successes) / float64(len(c.records))
		s.WindowStart = c.records[0].At.UTC().Format(time.RFC3339)
	}
	return s
}

// pruneLocked drops records past the count ceiling or retention window.
// Caller must hold mu.
func (c *Collector) pruneLocked() {
	cutoff := c.now().Add(-c.retention)
	firstLive := 0
	for firstLive < len(c.records) && c.records[firstLive].At.Before(cutoff) {
		firstLive++
	}
	if over := len(c.records) - firstLive - c.maxRecords; over > 0 {
		firstLive += over
	}
	if firstLive > 0 {
		c.records = append(c.records[:0:0], c.records[firstLive:]...)
	}
}
