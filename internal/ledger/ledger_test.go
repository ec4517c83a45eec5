package ledger

import (
	"context"
	"path/filepath"
	"testing"
)

func testLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func record(t *testing.T, l *Ledger, sessionID, model string, latency int64, success bool) {
	t.Helper()
	err := l.Record(context.Background(), Entry{
		SessionID: sessionID,
		Operation: "generate_image",
		Prompt:    "a fox",
		Model:     model,
		Width:     512,
		Height:    512,
		Steps:     4,
		LatencyMS: latency,
		Success:   success,
	})
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
}

func TestTotals(t *testing.T) {
	l := testLedger(t)
	record(t, l, "s1", "sd-turbo", 100, true)
	record(t, l, "s1", "sd-turbo", 200, false)
	record(t, l, "s2", "flux-schnell", 300, true)

	totals, err := l.Totals(context.Background())
	if err != nil {
		t.Fatalf("Totals() error = %v", err)
	}
	if totals.Generations != 3 || totals.Failures != 1 || totals.TotalLatencyMS != 600 {
		t.Errorf("Totals() = %+v", totals)
	}
}

func TestTotalsEmpty(t *testing.T) {
	l := testLedger(t)
	totals, err := l.Totals(context.Background())
	if err != nil {
		t.Fatalf("Totals() error = %v", err)
	}
	if totals.Generations != 0 || totals.TotalLatencyMS != 0 {
		t.Errorf("empty Totals() = %+v", totals)
	}
}

func TestSessionTotalsScoped(t *testing.T) {
	l := testLedger(t)
	record(t, l, "s1", "sd-turbo", 100, true)
	record(t, l, "s2", "sd-turbo", 900, true)

	totals, err := l.SessionTotals(context.Background(), "s1")
	if err != nil {
		t.Fatalf("SessionTotals() error = %v", err)
	}
	if totals.Generations != 1 || totals.TotalLatencyMS != 100 {
		t.Errorf("SessionTotals(s1) = %+v", totals)
	}
}

func TestSummaryByModel(t *testing.T) {
	l := testLedger(t)
	record(t, l, "s1", "sd-turbo", 100, true)
	record(t, l, "s1", "sd-turbo", 300, false)
	record(t, l, "s1", "flux-schnell", 500, true)

	usage, err := l.SummaryByModel(context.Background())
	if err != nil {
		t.Fatalf("SummaryByModel() error = %v", err)
	}
	if len(usage) != 2 {
		t.Fatalf("SummaryByModel() returned %d models, want 2", len(usage))
	}
	// Busiest model first.
	if usage[0].Model != "sd-turbo" || usage[0].Generations != 2 || usage[0].Failures != 1 {
		t.Errorf("usage[0] = %+v", usage[0])
	}
	if usage[0].MeanLatencyMS != 200 {
		t.Errorf("MeanLatencyMS = %d, want 200", usage[0].MeanLatencyMS)
	}
}

func TestRecent(t *testing.T) {
	l := testLedger(t)
	record(t, l, "s1", "sd-turbo", 100, true)
	record(t, l, "s1", "sd-turbo", 200, true)
	record(t, l, "s1", "sd-turbo", 300, true)

	entries, err := l.Recent(context.Background(), 2)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Recent(2) returned %d entries", len(entries))
	}
	if entries[0].LatencyMS != 300 {
		t.Errorf("Recent() not newest first: %+v", entries[0])
	}
	if entries[0].CreatedAt.IsZero() {
		t.Error("CreatedAt not populated")
	}
}

func TestLedgerSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ledger.db")

	l, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	record(t, l, "s1", "sd-turbo", 100, true)
	l.Close()

	l2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer l2.Close()
	totals, err := l2.Totals(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if totals.Generations != 1 {
		t.Errorf("Generations after reopen = %d, want 1", totals.Generations)
	}
}
