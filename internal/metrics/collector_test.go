package metrics

import (
	"fmt"
	"testing"
	"time"
)

func TestRecordOperationAndRollup(t *testing.T) {
	c := NewCollector(100, time.Hour)

	c.RecordOperation("generate", 100*time.Millisecond, true, "s1")
	c.RecordOperation("generate", 300*time.Millisecond, true, "s1")
	c.RecordOperation("generate", 200*time.Millisecond, false, "s1")

	m := c.OperationMetrics("generate")
	if m.Count != 3 {
		t.Fatalf("Count = %d, want 3", m.Count)
	}
	if m.MeanLatency != 200*time.Millisecond {
		t.Errorf("MeanLatency = %v, want 200ms", m.MeanLatency)
	}
	wantRate := 2.0 / 3.0
	if m.SuccessRate < wantRate-0.001 || m.SuccessRate > wantRate+0.001 {
		t.Errorf("SuccessRate = %v, want %v", m.SuccessRate, wantRate)
	}
}

func TestOperationMetricsUnknownName(t *testing.T) {
	c := NewCollector(10, time.Hour)
	m := c.OperationMetrics("nope")
	if m.Count != 0 || m.SuccessRate != 0 {
		t.Errorf("unknown op metrics = %+v, want zero", m)
	}
}

func TestPercentiles(t *testing.T) {
	c := NewCollector(200, time.Hour)
	for i := 1; i <= 100; i++ {
		c.RecordOperation("op", time.Duration(i)*time.Millisecond, true, "s")
	}
	m := c.OperationMetrics("op")
	// floor(100*0.95) = 95 -> zero-based index 95 -> 96ms
	if m.P95Latency != 96*time.Millisecond {
		t.Errorf("P95 = %v, want 96ms", m.P95Latency)
	}
	if m.P99Latency != 100*time.Millisecond {
		t.Errorf("P99 = %v, want 100ms", m.P99Latency)
	}
}

func TestCountCeiling(t *testing.T) {
	c := NewCollector(5, time.Hour)
	for i := 0; i < 20; i++ {
		c.RecordOperation("op", time.Millisecond, true, "s")
	}
	m := c.OperationMetrics("op")
	if m.Count != 5 {
		t.Errorf("retained = %d, want 5", m.Count)
	}
	s := c.GetSummary()
	if s.OperationCount != 20 {
		t.Errorf("OperationCount = %d, want 20", s.OperationCount)
	}
}

func TestRetentionWindow(t *testing.T) {
	c := NewCollector(100, time.Minute)
	now := time.Now()
	c.now = func() time.Time { return now }

	c.RecordOperation("op", time.Millisecond, true, "s")

	now = now.Add(2 * time.Minute)
	c.RecordOperation("op", time.Millisecond, true, "s")

	m := c.OperationMetrics("op")
	if m.Count != 1 {
		t.Errorf("retained = %d, want 1 after retention expiry", m.Count)
	}
}

func TestSessionLifecycle(t *testing.T) {
	c := NewCollector(10, time.Hour)

	c.SessionOpened("a")
	c.SessionOpened("b")
	c.SessionOpened("a") // duplicate open is a no-op
	if got := c.ActiveSessionCount(); got != 2 {
		t.Errorf("ActiveSessionCount() = %d, want 2", got)
	}

	c.SessionClosed("a")
	c.SessionClosed("missing") // no-op
	if got := c.ActiveSessionCount(); got != 1 {
		t.Errorf("ActiveSessionCount() = %d, want 1", got)
	}

	s := c.GetSummary()
	if s.SessionsOpened != 2 || s.SessionsClosed != 1 {
		t.Errorf("summary opened/closed = %d/%d, want 2/1", s.SessionsOpened, s.SessionsClosed)
	}
}

func TestSnapshotListsOperations(t *testing.T) {
	c := NewCollector(10, time.Hour)
	for i, name := range []string{"save", "generate", "save"} {
		c.RecordOperation(name, time.Duration(i+1)*time.Millisecond, true, "s")
	}
	snap := c.GetSnapshot()
	if len(snap.Operations) != 2 {
		t.Fatalf("snapshot has %d operations, want 2", len(snap.Operations))
	}
	// Sorted by name.
	if snap.Operations[0].Name != "generate" || snap.Operations[1].Name != "save" {
		t.Errorf("snapshot order = %v", []string{snap.Operations[0].Name, snap.Operations[1].Name})
	}
	if snap.Operations[1].Count != 2 {
		t.Errorf("save count = %d, want 2", snap.Operations[1].Count)
	}
}

func TestSummaryWindowStart(t *testing.T) {
	c := NewCollector(10, time.Hour)
	if s := c.GetSummary(); s.WindowStart != "" {
		t.Errorf("empty collector WindowStart = %q, want empty", s.WindowStart)
	}
	c.RecordOperation("op", time.Millisecond, false, "s")
	s := c.GetSummary()
	if s.WindowStart == "" {
		t.Error("WindowStart empty after record")
	}
	if s.OverallSuccess != 0 {
		t.Errorf("OverallSuccess = %v, want 0", s.OverallSuccess)
	}
}

func ExampleCollector_OperationMetrics() {
	c := NewCollector(10, time.Hour)
	c.RecordOperation("generate", 50*time.Millisecond, true, "s1")
	m := c.OperationMetrics("generate")
	fmt.Println(m.Count, m.SuccessRate)
	// Output: 1 1
}
