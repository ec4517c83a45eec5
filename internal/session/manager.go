package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alucardeht/frame-forge-mcp-sub001/internal/metrics"
	"github.com/alucardeht/frame-forge-mcp-sub001/internal/wireframe"
)

// Manager is the orchestrator every other subsystem talks to. It owns the
// active-session map, the per-session variant cache and the metrics
// collector reference as instance fields; one Manager is constructed at
// startup and shared by all handlers.
//
// The mutex guards the maps themselves. Session mutation stays
// read-mutate-write with last-write-wins at whole-session granularity; this
// is an accepted simplification relying on the protocol layer's one request
// line at a time, not something to "fix" with per-field locking.
type Manager struct {
	mu        sync.Mutex
	store     *Store
	active    map[string]*Session
	histories map[string]*History
	variants  *VariantCache
	collector *metrics.Collector
}

func NewManager(store *Store, collector *metrics.Collector) *Manager {
	if collector == nil {
		collector = metrics.NewCollector(0, 0)
	}
	return &Manager{
		store:     store,
		active:    make(map[string]*Session),
		histories: make(map[string]*History),
		variants:  NewVariantCache(),
		collector: collector,
	}
}

// Store exposes the underlying store (the version manager roots on it).
func (m *Manager) Store() *Store { return m.store }

// Metrics exposes the collector for passthrough reads.
func (m *Manager) Metrics() *metrics.Collector { return m.collector }

// CreateSession allocates a fresh session with an empty iteration list,
// registers it as active, persists it and records the session-created
// metric. Storage errors propagate.
func (m *Manager) CreateSession() (*Session, error) {
	now := Now()
	sess := &Session{
		ID:         uuid.NewString(),
		CreatedAt:  now,
		UpdatedAt:  now,
		Iterations: []*Iteration{},
	}
	if err := m.store.Save(sess); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	m.mu.Lock()
	m.active[sess.ID] = sess
	m.histories[sess.ID] = NewHistory()
	m.mu.Unlock()

	m.collector.SessionOpened(sess.ID)
	return sess, nil
}

// LoadSession returns the active in-memory session when resident, otherwise
// loads from disk. Missing or corrupted state yields (nil, nil), never an
// error; only transport-level failures propagate.
func (m *Manager) LoadSession(id string) (*Session, error) {
	m.mu.Lock()
	if sess, ok := m.active[id]; ok {
		m.mu.Unlock()
		return sess, nil
	}
	m.mu.Unlock()

	sess, err := m.store.Load(id)
	if err != nil || sess == nil {
		return nil, err
	}

	m.mu.Lock()
	m.active[sess.ID] = sess
	m.histories[sess.ID] = Rebuild(sess.Iterations)
	m.mu.Unlock()

	m.collector.SessionOpened(sess.ID)
	return sess, nil
}

// SaveSession persists the session (materializing inline image blobs),
// refreshes the active cache, and fails loudly on I/O errors: callers must
// retry or surface to the user.
func (m *Manager) SaveSession(sess *Session) error {
	if err := m.store.Save(sess); err != nil {
		return err
	}
	m.mu.Lock()
	m.active[sess.ID] = sess
	if _, ok := m.histories[sess.ID]; !ok {
		m.histories[sess.ID] = Rebuild(sess.Iterations)
	}
	m.mu.Unlock()
	return nil
}

// LoadIterationImage returns one iteration's image blob, loading it from
// disk on first access.
func (m *Manager) LoadIterationImage(sessionID string, index int) (string, error) {
	sess, err := m.LoadSession(sessionID)
	if err != nil {
		return "", err
	}
	if sess == nil {
		return "", fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return m.store.LoadIterationImage(sess, index)
}

// ListSessions enumerates persisted sessions newest first, skipping
// corrupted entries.
func (m *Manager) ListSessions() ([]*Session, error) {
	return m.store.List()
}

// DeleteSession removes all on-disk session state, evicts the active entry,
// clears the variant cache and records the session-closed metric. Unknown
// ids are a no-op.
func (m *Manager) DeleteSession(id string) error {
	if err := m.store.Delete(id); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.active, id)
	delete(m.histories, id)
	m.mu.Unlock()

	m.variants.ClearSession(id)
	m.collector.SessionClosed(id)
	return nil
}

// AddIteration appends to the active session's history and mirrors the
// result into the session's iteration sequence and metadata. Returns nil
// when the session is not currently active, a synchronous caller error
// (load or create first), not a recoverable condition.
func (m *Manager) AddIteration(sessionID, prompt string, result GenerationResult) *Iteration {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.active[sessionID]
	if !ok {
		return nil
	}
	hist := m.histories[sessionID]
	if hist == nil {
		hist = Rebuild(sess.Iterations)
		m.histories[sessionID] = hist
	}

	iter := hist.AddIteration(prompt, result)
	sess.Iterations = hist.GetAllIterations()
	sess.Metadata.TotalIterations = len(sess.Iterations)
	sess.Metadata.LastPrompt = prompt
	sess.Touch()
	return iter
}

// HistoryFor returns the iteration history of an active session.
func (m *Manager) HistoryFor(sessionID string) (*History, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.histories[sessionID]
	return h, ok
}

// TruncateIterations applies a destructive rollback: iterations after index
// are dropped from both the history and the session.
func (m *Manager) TruncateIterations(sessionID string, index int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.active[sessionID]
	if !ok {
		return false
	}
	hist, ok := m.histories[sessionID]
	if !ok {
		return false
	}
	sess.Iterations = hist.TruncateAfter(index)
	sess.Metadata.TotalIterations = len(sess.Iterations)
	sess.Touch()
	return true
}

// Variant cache

// BuildVariantCacheKey derives the deterministic per-request cache key.
func (m *Manager) BuildVariantCacheKey(assetType, description string, width, height int) string {
	return BuildVariantKey(assetType, description, width, height)
}

// GetVariantCache returns the cached variant set, nil on miss. Entries are
// scoped per session: identical keys never leak across sessions.
func (m *Manager) GetVariantCache(sessionID, key string) *CachedVariants {
	return m.variants.Get(sessionID, key)
}

func (m *Manager) SetVariantCache(sessionID, key string, variants []*Variant) {
	m.variants.Set(sessionID, key, variants)
}

func (m *Manager) ClearVariantCache(sessionID string) {
	m.variants.ClearSession(sessionID)
}

// Wireframe persistence passthrough

func (m *Manager) SaveWireframe(sessionID string, wf *wireframe.Wireframe) error {
	return m.store.SaveWireframe(sessionID, wf)
}

func (m *Manager) LoadWireframe(sessionID, wireframeID string) (*wireframe.Wireframe, error) {
	return m.store.LoadWireframe(sessionID, wireframeID)
}

func (m *Manager) ListWireframes(sessionID string) ([]*wireframe.Wireframe, error) {
	return m.store.ListWireframes(sessionID)
}

func (m *Manager) DeleteWireframe(sessionID, wireframeID string) error {
	return m.store.DeleteWireframe(sessionID, wireframeID)
}

// Metrics passthrough

func (m *Manager) RecordMetric(name string, d time.Duration, success bool, sessionID string) {
	m.collector.RecordOperation(name, d, success, sessionID)
}

func (m *Manager) GetActiveSessionCount() int {
	return m.collector.ActiveSessionCount()
}

func (m *Manager) GetMetricsSnapshot() metrics.Snapshot {
	return m.collector.GetSnapshot()
}

func (m *Manager) GetMetricsSummary() metrics.Summary {
	return m.collector.GetSummary()
}
