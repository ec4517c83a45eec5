package session

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/alucardeht/frame-forge-mcp-sub001/internal/metrics"
)

func testManager(t *testing.T) *Manager {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "sessions"))
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	return NewManager(store, metrics.NewCollector(100, time.Hour))
}

func TestCreateAndReloadSession(t *testing.T) {
	m := testManager(t)

	sess, err := m.CreateSession()
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if sess.ID == "" {
		t.Fatal("CreateSession() produced empty id")
	}
	if m.GetActiveSessionCount() != 1 {
		t.Errorf("ActiveSessionCount = %d, want 1", m.GetActiveSessionCount())
	}

	// The active map serves the same object back.
	again, err := m.LoadSession(sess.ID)
	if err != nil {
		t.Fatalf("LoadSession() error = %v", err)
	}
	if again != sess {
		t.Error("LoadSession() returned a fresh copy for an active session")
	}
}

func TestLoadSessionMissing(t *testing.T) {
	m := testManager(t)
	sess, err := m.LoadSession("ghost")
	if err != nil || sess != nil {
		t.Errorf("LoadSession(missing) = (%v, %v), want (nil, nil)", sess, err)
	}
}

func TestLoadSessionRebuildsHistory(t *testing.T) {
	m := testManager(t)

	sess, err := m.CreateSession()
	if err != nil {
		t.Fatal(err)
	}
	m.AddIteration(sess.ID, "first", resultFor("first"))
	m.AddIteration(sess.ID, "second", resultFor("second"))
	if err := m.SaveSession(sess); err != nil {
		t.Fatalf("SaveSession() error = %v", err)
	}

	// Simulate a restart: a new manager over the same store.
	m2 := NewManager(m.Store(), metrics.NewCollector(100, time.Hour))
	loaded, err := m2.LoadSession(sess.ID)
	if err != nil || loaded == nil {
		t.Fatalf("LoadSession() = (%v, %v)", loaded, err)
	}

	hist, ok := m2.HistoryFor(sess.ID)
	if !ok {
		t.Fatal("no history after load")
	}
	if hist.Len() != 2 || hist.CurrentIndex() != 1 {
		t.Errorf("rebuilt history len=%d cursor=%d, want 2/1", hist.Len(), hist.CurrentIndex())
	}
	if !hist.CanUndo() {
		t.Error("CanUndo() = false after rebuild with two iterations")
	}
}

func TestAddIterationInactiveSession(t *testing.T) {
	m := testManager(t)
	if iter := m.AddIteration("not-loaded", "p", resultFor("p")); iter != nil {
		t.Errorf("AddIteration on inactive session = %v, want nil", iter)
	}
}

func TestAddIterationUpdatesMetadata(t *testing.T) {
	m := testManager(t)
	sess, _ := m.CreateSession()

	iter := m.AddIteration(sess.ID, "a castle", resultFor("a castle"))
	if iter == nil || iter.Index != 0 {
		t.Fatalf("AddIteration() = %v", iter)
	}
	if sess.Metadata.TotalIterations != 1 || sess.Metadata.LastPrompt != "a castle" {
		t.Errorf("metadata = %+v", sess.Metadata)
	}
	if len(sess.Iterations) != 1 {
		t.Errorf("session iterations = %d, want 1", len(sess.Iterations))
	}
}

func TestTruncateIterations(t *testing.T) {
	m := testManager(t)
	sess, _ := m.CreateSession()
	for _, p := range []string{"a", "b", "c"} {
		m.AddIteration(sess.ID, p, resultFor(p))
	}

	if !m.TruncateIterations(sess.ID, 0) {
		t.Fatal("TruncateIterations returned false")
	}
	if len(sess.Iterations) != 1 || sess.Metadata.TotalIterations != 1 {
		t.Errorf("after truncate: %d iterations, metadata %d", len(sess.Iterations), sess.Metadata.TotalIterations)
	}
	if m.TruncateIterations("ghost", 0) {
		t.Error("TruncateIterations succeeded for unknown session")
	}
}

func TestDeleteSessionEvictsState(t *testing.T) {
	m := testManager(t)
	sess, _ := m.CreateSession()
	key := m.BuildVariantCacheKey("icon", "rocket", 512, 512)
	m.SetVariantCache(sess.ID, key, []*Variant{{ID: "v1"}})

	if err := m.DeleteSession(sess.ID); err != nil {
		t.Fatalf("DeleteSession() error = %v", err)
	}
	if got, err := m.LoadSession(sess.ID); err != nil || got != nil {
		t.Errorf("LoadSession after delete = (%v, %v)", got, err)
	}
	if m.GetVariantCache(sess.ID, key) != nil {
		t.Error("variant cache survived delete")
	}
	if m.GetActiveSessionCount() != 0 {
		t.Errorf("ActiveSessionCount = %d after delete", m.GetActiveSessionCount())
	}
}

func TestLastWriteWins(t *testing.T) {
	m := testManager(t)
	sess, _ := m.CreateSession()
	if err := m.SaveSession(sess); err != nil {
		t.Fatal(err)
	}

	// Two divergent copies of the same session; the later save wins whole.
	copyA := *sess
	copyA.Metadata.LastPrompt = "from A"
	copyB := *sess
	copyB.Metadata.LastPrompt = "from B"

	if err := m.SaveSession(&copyA); err != nil {
		t.Fatal(err)
	}
	if err := m.SaveSession(&copyB); err != nil {
		t.Fatal(err)
	}

	loaded, err := m.Store().Load(sess.ID)
	if err != nil || loaded == nil {
		t.Fatalf("Load() = (%v, %v)", loaded, err)
	}
	if loaded.Metadata.LastPrompt != "from B" {
		t.Errorf("LastPrompt = %q, want the later writer's value", loaded.Metadata.LastPrompt)
	}
}

func TestManagerMetricsPassthrough(t *testing.T) {
	m := testManager(t)
	m.RecordMetric("generate_image", 120*time.Millisecond, true, "s1")
	m.RecordMetric("generate_image", 80*time.Millisecond, false, "s1")

	snap := m.GetMetricsSnapshot()
	if snap.TotalRecorded != 2 {
		t.Errorf("TotalRecorded = %d, want 2", snap.TotalRecorded)
	}
	var found bool
	for _, op := range snap.Operations {
		if op.Name == "generate_image" {
			found = true
			if op.Count != 2 || op.SuccessRate != 0.5 {
				t.Errorf("op stats = %+v", op)
			}
		}
	}
	if !found {
		t.Fatal("generate_image missing from snapshot")
	}

	sum := m.GetMetricsSummary()
	if sum.OperationCount != 2 || sum.OverallSuccess != 0.5 {
		t.Errorf("summary = %+v", sum)
	}
}
