package wireframe

// VersionRef is a lightweight pointer into the version log.
type VersionRef struct {
	WireframeID string
	ComponentID string
	VersionID   string
}

// UndoRedoManager layers editor-style undo/redo over the VersionManager,
// scoped to one session for its lifetime. It never deletes version-history
// entries: undo and redo only move which version is current, so full
// provenance survives in the append-only log.
type UndoRedoManager struct {
	sessionID string
	versions  *VersionManager
	undoStack []VersionRef
	redoStack []VersionRef
}

func NewUndoRedoManager(sessionID string, versions *VersionManager) *UndoRedoManager {
	return &UndoRedoManager{sessionID: sessionID, versions: versions}
}

// RecordChange persists a new version of the component and pushes its
// pointer onto the undo stack. New edits invalidate redo.
func (u *UndoRedoManager) RecordChange(wireframeID string, comp *Component, description string) (*ComponentVersion, error) {
	changeType := ChangeUpdated
	existing, err := u.versions.ListVersions(u.sessionID, wireframeID, comp.ID)
	if err != nil {
		return nil, err
	}
	if len(existing) == 0 {
		changeType = ChangeCreated
	}

	v, err := u.versions.RecordVersion(u.sessionID, wireframeID, comp, changeType, description)
	if err != nil {
		return nil, err
	}
	u.undoStack = append(u.undoStack, VersionRef{
		WireframeID: wireframeID,
		ComponentID: comp.ID,
		VersionID:   v.ID,
	})
	u.redoStack = nil
	return v, nil
}

// CanUndo requires more than one entry: the bottom entry is the initial
// recorded state with nothing earlier to restore.
func (u *UndoRedoManager) CanUndo() bool { return len(u.undoStack) > 1 }

func (u *UndoRedoManager) CanRedo() bool { return len(u.redoStack) > 0 }

// Undo pops the newest change onto the redo stack and returns the component
// state now at the top of the undo stack. The caller writes this state back
// into the live wireframe. Returns (nil, nil) when there is nothing earlier.
func (u *UndoRedoManager) Undo() (*Component, error) {
	if len(u.undoStack) == 0 {
		return nil, nil
	}
	top := u.undoStack[len(u.undoStack)-1]
	u.undoStack = u.undoStack[:len(u.undoStack)-1]
	u.redoStack = append(u.redoStack, top)

	if len(u.undoStack) == 0 {
		return nil, nil
	}
	cur := u.undoStack[len(u.undoStack)-1]
	v, err := u.versions.GetVersion(u.sessionID, cur.WireframeID, cur.ComponentID, cur.VersionID)
	if err != nil || v == nil {
		return nil, err
	}
	return v.State.Clone(), nil
}

// Redo is the mirror of Undo.
func (u *UndoRedoManager) Redo() (*Component, error) {
	if len(u.redoStack) == 0 {
		return nil, nil
	}
	top := u.redoStack[len(u.redoStack)-1]
	u.redoStack = u.redoStack[:len(u.redoStack)-1]
	u.undoStack = append(u.undoStack, top)

	v, err := u.versions.GetVersion(u.sessionID, top.WireframeID, top.ComponentID, top.VersionID)
	if err != nil || v == nil {
		return nil, err
	}
	return v.State.Clone(), nil
}

// Depth returns the undo stack depth, used by diagnostics.
func (u *UndoRedoManager) Depth() int { return len(u.undoStack) }
