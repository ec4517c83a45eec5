package wireframe

import (
	"testing"
)

func testVersions(t *testing.T) *VersionManager {
	t.Helper()
	return NewVersionManager(t.TempDir())
}

func comp(id, label string) *Component {
	return &Component{
		ID:         id,
		Type:       "button",
		Properties: map[string]any{"label": label},
	}
}

func TestRecordVersionAppendsWithParent(t *testing.T) {
	m := testVersions(t)

	v1, err := m.RecordVersion("s1", "wf1", comp("btn", "one"), ChangeCreated, "initial")
	if err != nil {
		t.Fatalf("RecordVersion() error = %v", err)
	}
	if v1.ParentVersionID != "" {
		t.Errorf("first version has parent %q", v1.ParentVersionID)
	}

	v2, err := m.RecordVersion("s1", "wf1", comp("btn", "two"), ChangeUpdated, "relabel")
	if err != nil {
		t.Fatalf("RecordVersion() error = %v", err)
	}
	if v2.ParentVersionID != v1.ID {
		t.Errorf("second version parent = %q, want %q", v2.ParentVersionID, v1.ID)
	}

	hist, err := m.GetHistory("s1", "wf1", "btn")
	if err != nil || hist == nil {
		t.Fatalf("GetHistory() = (%v, %v)", hist, err)
	}
	if len(hist.Versions) != 2 {
		t.Fatalf("history has %d versions, want 2", len(hist.Versions))
	}
	if hist.CurrentVersionID != v2.ID {
		t.Errorf("current = %q, want %q", hist.CurrentVersionID, v2.ID)
	}
}

func TestRecordVersionCopiesState(t *testing.T) {
	m := testVersions(t)
	live := comp("btn", "before")
	v, err := m.RecordVersion("s1", "wf1", live, ChangeCreated, "")
	if err != nil {
		t.Fatal(err)
	}

	// Mutating the live component must not alter the recorded state.
	live.Properties["label"] = "after"
	got, err := m.GetVersion("s1", "wf1", "btn", v.ID)
	if err != nil || got == nil {
		t.Fatalf("GetVersion() = (%v, %v)", got, err)
	}
	if got.State.Properties["label"] != "before" {
		t.Error("recorded state tracks live mutation")
	}
}

func TestRecordVersionRejectsEmpty(t *testing.T) {
	m := testVersions(t)
	if _, err := m.RecordVersion("s1", "wf1", nil, ChangeCreated, ""); err == nil {
		t.Error("RecordVersion(nil) succeeded")
	}
	if _, err := m.RecordVersion("s1", "wf1", &Component{}, ChangeCreated, ""); err == nil {
		t.Error("RecordVersion with empty id succeeded")
	}
}

func TestGetHistoryMissing(t *testing.T) {
	m := testVersions(t)
	hist, err := m.GetHistory("s1", "wf1", "never")
	if err != nil || hist != nil {
		t.Errorf("GetHistory(missing) = (%v, %v), want (nil, nil)", hist, err)
	}
	vs, err := m.ListVersions("s1", "wf1", "never")
	if err != nil || vs != nil {
		t.Errorf("ListVersions(missing) = (%v, %v)", vs, err)
	}
	cur, err := m.CurrentVersion("s1", "wf1", "never")
	if err != nil || cur != nil {
		t.Errorf("CurrentVersion(missing) = (%v, %v)", cur, err)
	}
}

func TestRestoreVersionAppends(t *testing.T) {
	m := testVersions(t)
	v1, _ := m.RecordVersion("s1", "wf1", comp("btn", "one"), ChangeCreated, "")
	m.RecordVersion("s1", "wf1", comp("btn", "two"), ChangeUpdated, "")

	restored, err := m.RestoreVersion("s1", "wf1", "btn", v1.ID)
	if err != nil {
		t.Fatalf("RestoreVersion() error = %v", err)
	}
	if restored.ChangeType != ChangeRestored {
		t.Errorf("change type = %q", restored.ChangeType)
	}
	if restored.State.Properties["label"] != "one" {
		t.Errorf("restored state = %v", restored.State.Properties)
	}

	// Restore never truncates: the log keeps growing.
	vs, _ := m.ListVersions("s1", "wf1", "btn")
	if len(vs) != 3 {
		t.Errorf("history has %d versions after restore, want 3", len(vs))
	}
	cur, _ := m.CurrentVersion("s1", "wf1", "btn")
	if cur.ID != restored.ID {
		t.Error("restore did not advance the current pointer")
	}
}

func TestRestoreVersionUnknownID(t *testing.T) {
	m := testVersions(t)
	m.RecordVersion("s1", "wf1", comp("btn", "one"), ChangeCreated, "")
	if _, err := m.RestoreVersion("s1", "wf1", "btn", "no-such-version"); err == nil {
		t.Error("RestoreVersion with unknown id succeeded")
	}
}

func TestHistoriesAreIsolated(t *testing.T) {
	m := testVersions(t)
	m.RecordVersion("s1", "wf1", comp("btn", "a"), ChangeCreated, "")
	m.RecordVersion("s1", "wf2", comp("btn", "b"), ChangeCreated, "")
	m.RecordVersion("s2", "wf1", comp("btn", "c"), ChangeCreated, "")

	for _, tc := range []struct {
		session, wf, want string
	}{
		{"s1", "wf1", "a"},
		{"s1", "wf2", "b"},
		{"s2", "wf1", "c"},
	} {
		cur, err := m.CurrentVersion(tc.session, tc.wf, "btn")
		if err != nil || cur == nil {
			t.Fatalf("CurrentVersion(%s/%s) = (%v, %v)", tc.session, tc.wf, cur, err)
		}
		if cur.State.Properties["label"] != tc.want {
			t.Errorf("%s/%s label = %v, want %s", tc.session, tc.wf, cur.State.Properties["label"], tc.want)
		}
	}
}
