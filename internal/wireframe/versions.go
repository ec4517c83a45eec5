package wireframe

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/alucardeht/frame-forge-mcp-sub001/internal/security"
)

// ChangeType tags why a component version was recorded.
type ChangeType string

const (
	ChangeCreated  ChangeType = "created"
	ChangeUpdated  ChangeType = "updated"
	ChangeRestored ChangeType = "restored"
)

// ComponentVersion is one recorded state of one component. State is a full
// deep copy taken at record time.
type ComponentVersion struct {
	ID              string     `json:"id"`
	ComponentID     string     `json:"componentId"`
	WireframeID     string     `json:"wireframeId"`
	Timestamp       string     `json:"timestamp"`
	ChangeType      ChangeType `json:"changeType"`
	Description     string     `json:"description"`
	State           *Component `json:"state"`
	ParentVersionID string     `json:"parentVersionId,omitempty"`
}

// VersionHistory is the persisted container: the full ordered version
// sequence for one (wireframe, component) pair plus the current pointer.
// "Current" is always the most recently appended entry; restore appends, it
// never truncates.
type VersionHistory struct {
	WireframeID      string              `json:"wireframeId"`
	ComponentID      string              `json:"componentId"`
	Versions         []*ComponentVersion `json:"versions"`
	CurrentVersionID string              `json:"currentVersionId"`
}

// VersionManager persists append-only component version logs, one file per
// (session, wireframe, component) under
// <sessions>/<sessionID>/versions/<wireframeID>/<componentID>.json.
type VersionManager struct {
	sessionsRoot string
}

func NewVersionManager(sessionsRoot string) *VersionManager {
	return &VersionManager{sessionsRoot: sessionsRoot}
}

func (m *VersionManager) historyPath(sessionID, wireframeID, componentID string) string {
	return filepath.Join(
		m.sessionsRoot,
		security.SanitizeID(sessionID),
		"versions",
		security.SanitizeID(wireframeID),
		security.SanitizeID(componentID)+".json",
	)
}

// RecordVersion deep-copies the component's current state, appends it to
// the on-disk history (creating the file if absent) and advances the
// current pointer. The new version's parent is whatever was current before.
func (m *VersionManager) RecordVersion(sessionID, wireframeID string, comp *Component, changeType ChangeType, description string) (*ComponentVersion, error) {
	if comp == nil || comp.ID == "" {
		return nil, fmt.Errorf("component with id required")
	}

	hist, err := m.GetHistory(sessionID, wireframeID, comp.ID)
	if err != nil {
		return nil, err
	}
	if hist == nil {
		hist = &VersionHistory{WireframeID: wireframeID, ComponentID: comp.ID}
	}

	v := &ComponentVersion{
		ID:              newVersionID(),
		ComponentID:     comp.ID,
		WireframeID:     wireframeID,
		Timestamp:       time.Now().UTC().Format(time.RFC3339Nano),
		ChangeType:      changeType,
		Description:     description,
		State:           comp.Clone(),
		ParentVersionID: hist.CurrentVersionID,
	}
	hist.Versions = append(hist.Versions, v)
	hist.CurrentVersionID = v.ID

	if err := m.writeHistory(sessionID, wireframeID, comp.ID, hist); err != nil {
		return nil, err
	}
	return v, nil
}

// GetHistory reads the full history, returning (nil, nil) when the file
// does not exist or holds unparseable data.
func (m *VersionManager) GetHistory(sessionID, wireframeID, componentID string) (*VersionHistory, error) {
	data, err := os.ReadFile(m.historyPath(sessionID, wireframeID, componentID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read version history: %w", err)
	}
	var hist VersionHistory
	if err := json.Unmarshal(data, &hist); err != nil {
		return nil, nil
	}
	return &hist, nil
}

// GetVersion returns the version with the given id, (nil, nil) if absent.
func (m *VersionManager) GetVersion(sessionID, wireframeID, componentID, versionID string) (*ComponentVersion, error) {
	hist, err := m.GetHistory(sessionID, wireframeID, componentID)
	if err != nil || hist == nil {
		return nil, err
	}
	for _, v := range hist.Versions {
		if v.ID == versionID {
			return v, nil
		}
	}
	return nil, nil
}

// ListVersions returns all versions in append order; empty when absent.
func (m *VersionManager) ListVersions(sessionID, wireframeID, componentID string) ([]*ComponentVersion, error) {
	hist, err := m.GetHistory(sessionID, wireframeID, componentID)
	if err != nil || hist == nil {
		return nil, err
	}
	return hist.Versions, nil
}

// CurrentVersion returns the most recently appended version, (nil, nil)
// when no history exists.
func (m *VersionManager) CurrentVersion(sessionID, wireframeID, componentID string) (*ComponentVersion, error) {
	hist, err := m.GetHistory(sessionID, wireframeID, componentID)
	if err != nil || hist == nil || len(hist.Versions) == 0 {
		return nil, err
	}
	return hist.Versions[len(hist.Versions)-1], nil
}

// RestoreVersion appends a new version carrying a copy of the target
// version's stored state, change type "restored". History only ever grows.
func (m *VersionManager) RestoreVersion(sessionID, wireframeID, componentID, versionID string) (*ComponentVersion, error) {
	target, err := m.GetVersion(sessionID, wireframeID, componentID, versionID)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, fmt.Errorf("version %s not found", versionID)
	}
	desc := fmt.Sprintf("restored from version %s", versionID)
	return m.RecordVersion(sessionID, wireframeID, target.State.Clone(), ChangeRestored, desc)
}

func (m *VersionManager) writeHistory(sessionID, wireframeID, componentID string, hist *VersionHistory) error {
	path := m.historyPath(sessionID, wireframeID, componentID)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create versions directory: %w", err)
	}
	data, err := json.MarshalIndent(hist, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal version history: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write version history: %w", err)
	}
	return os.Rename(tmp, path)
}

// newVersionID combines a timestamp with a short random suffix. Collisions
// are negligible at human interaction rates; this is not a cryptographic
// guarantee.
func newVersionID() string {
	buf := make([]byte, 3)
	_, _ = rand.Read(buf)
	return time.Now().UTC().Format("20060102T150405.000") + "-" + hex.EncodeToString(buf)
}
