package server

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/alucardeht/frame-forge-mcp-sub001/internal/session"
	"github.com/alucardeht/frame-forge-mcp-sub001/internal/wireframe"
)

const (
	defaultCanvasWidth  = 1280
	defaultCanvasHeight = 800
)

type createWireframeArgs struct {
	SessionID   string `json:"session_id"`
	Description string `json:"description"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
}

func (s *Server) handleCreateWireframe(args json.RawMessage) (*CallResult, error) {
	var a createWireframeArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Description == "" {
		return errorResult("description is required"), nil
	}
	if a.Width == 0 {
		a.Width = defaultCanvasWidth
	}
	if a.Height == 0 {
		a.Height = defaultCanvasHeight
	}
	sess, err := s.manager.LoadSession(a.SessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return errorResult("session not found: %s", a.SessionID), nil
	}

	now := session.Now()
	wf := &wireframe.Wireframe{
		ID:          uuid.NewString(),
		SessionID:   sess.ID,
		Description: a.Description,
		Components:  wireframe.BuildLayout(a.Description, a.Width, a.Height),
		Metadata:    wireframe.Metadata{Width: a.Width, Height: a.Height, CreatedAt: now, UpdatedAt: now},
	}

	if err := s.manager.SaveWireframe(sess.ID, wf); err != nil {
		return nil, err
	}

	// Seed the version log with each root component's initial state.
	ur := s.undoRedoFor(sess.ID)
	for _, comp := range wf.Components {
		if _, err := ur.RecordChange(wf.ID, comp, "initial layout"); err != nil {
			return nil, err
		}
	}

	sess.WireframeID = wf.ID
	if err := s.manager.SaveSession(sess); err != nil {
		return nil, err
	}
	return jsonResult(wf), nil
}

type wireframeArgs struct {
	SessionID   string `json:"session_id"`
	WireframeID string `json:"wireframe_id"`
}

// resolveWireframe loads the named wireframe, defaulting to the session's
// current one. A nil wireframe with a non-nil CallResult means "answered".
func (s *Server) resolveWireframe(sess *session.Session, wireframeID string) (*wireframe.Wireframe, *CallResult, error) {
	if wireframeID == "" {
		wireframeID = sess.WireframeID
	}
	if wireframeID == "" {
		return nil, errorResult("session %s has no wireframe; call create_wireframe first", sess.ID), nil
	}
	wf, err := s.manager.LoadWireframe(sess.ID, wireframeID)
	if err != nil {
		return nil, nil, err
	}
	if wf == nil {
		return nil, errorResult("wireframe not found: %s", wireframeID), nil
	}
	return wf, nil, nil
}

func (s *Server) handleGetWireframe(args json.RawMessage) (*CallResult, error) {
	var a wireframeArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	sess, err := s.manager.LoadSession(a.SessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return errorResult("session not found: %s", a.SessionID), nil
	}
	wf, res, err := s.resolveWireframe(sess, a.WireframeID)
	if wf == nil {
		return res, err
	}
	return jsonResult(wf), nil
}

type updateComponentArgs struct {
	SessionID   string `json:"session_id"`
	WireframeID string `json:"wireframe_id"`
	ComponentID string `json:"component_id"`
	Type        string `json:"type"`
	Position    *struct {
		X int `json:"x"`
		Y int `json:"y"`
	} `json:"position"`
	Dimensions *struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	} `json:"dimensions"`
	Properties  map[string]any `json:"properties"`
	Description string         `json:"description"`
}

func (s *Server) handleUpdateWireframeComponent(args json.RawMessage) (*CallResult, error) {
	var a updateComponentArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.ComponentID == "" {
		return errorResult("component_id is required"), nil
	}
	sess, err := s.manager.LoadSession(a.SessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return errorResult("session not found: %s", a.SessionID), nil
	}
	wf, res, err := s.resolveWireframe(sess, a.WireframeID)
	if wf == nil {
		return res, err
	}

	comp := wireframe.FindComponent(wf.Components, a.ComponentID)
	if comp == nil {
		return errorResult("component not found: %s", a.ComponentID), nil
	}

	if a.Type != "" {
		comp.Type = a.Type
	}
	if a.Position != nil {
		comp.Position = &wireframe.Position{X: a.Position.X, Y: a.Position.Y}
	}
	if a.Dimensions != nil {
		comp.Dimensions = &wireframe.Dimensions{Width: a.Dimensions.Width, Height: a.Dimensions.Height}
	}
	if len(a.Properties) > 0 {
		if comp.Properties == nil {
			comp.Properties = make(map[string]any, len(a.Properties))
		}
		for k, v := range a.Properties {
			comp.Properties[k] = v
		}
	}

	desc := a.Description
	if desc == "" {
		desc = fmt.Sprintf("updated %s", comp.Type)
	}
	if _, err := s.undoRedoFor(sess.ID).RecordChange(wf.ID, comp, desc); err != nil {
		return nil, err
	}

	wf.Metadata.UpdatedAt = session.Now()
	if err := s.manager.SaveWireframe(sess.ID, wf); err != nil {
		return nil, err
	}
	return jsonResult(comp), nil
}

func (s *Server) handleUndoWireframe(args json.RawMessage) (*CallResult, error) {
	sess, res, err := s.loadSession(args)
	if sess == nil {
		return res, err
	}
	ur := s.undoRedoFor(sess.ID)
	if !ur.CanUndo() {
		return errorResult("nothing to undo in session %s", sess.ID), nil
	}
	state, err := ur.Undo()
	if err != nil {
		return nil, err
	}
	if state == nil {
		return errorResult("nothing to undo in session %s", sess.ID), nil
	}
	return s.applyComponentState(sess, state, "undo")
}

func (s *Server) handleRedoWireframe(args json.RawMessage) (*CallResult, error) {
	sess, res, err := s.loadSession(args)
	if sess == nil {
		return res, err
	}
	ur := s.undoRedoFor(sess.ID)
	if !ur.CanRedo() {
		return errorResult("nothing to redo in session %s", sess.ID), nil
	}
	state, err := ur.Redo()
	if err != nil {
		return nil, err
	}
	if state == nil {
		return errorResult("nothing to redo in session %s", sess.ID), nil
	}
	return s.applyComponentState(sess, state, "redo")
}

// applyComponentState writes a restored component state back into the
// session's current wireframe and persists it.
func (s *Server) applyComponentState(sess *session.Session, state *wireframe.Component, op string) (*CallResult, error) {
	wf, res, err := s.resolveWireframe(sess, "")
	if wf == nil {
		return res, err
	}
	if !wireframe.ReplaceComponent(wf.Components, state) {
		return errorResult("%s: component %s is not part of wireframe %s", op, state.ID, wf.ID), nil
	}
	wf.Metadata.UpdatedAt = session.Now()
	if err := s.manager.SaveWireframe(sess.ID, wf); err != nil {
		return nil, err
	}
	return jsonResult(state), nil
}

type componentHistoryArgs struct {
	SessionID   string `json:"session_id"`
	WireframeID string `json:"wireframe_id"`
	ComponentID string `json:"component_id"`
}

func (s *Server) handleComponentHistory(args json.RawMessage) (*CallResult, error) {
	var a componentHistoryArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.ComponentID == "" {
		return errorResult("component_id is required"), nil
	}
	sess, err := s.manager.LoadSession(a.SessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return errorResult("session not found: %s", a.SessionID), nil
	}
	wireframeID := a.WireframeID
	if wireframeID == "" {
		wireframeID = sess.WireframeID
	}
	if wireframeID == "" {
		return errorResult("session %s has no wireframe", sess.ID), nil
	}

	versions, err := s.versions.ListVersions(sess.ID, wireframeID, a.ComponentID)
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return errorResult("no recorded versions for component %s", a.ComponentID), nil
	}

	type versionSummary struct {
		VersionID   string `json:"versionId"`
		ChangeType  string `json:"changeType"`
		Timestamp   string `json:"timestamp"`
		Description string `json:"description,omitempty"`
		ParentID    string `json:"parentVersionId,omitempty"`
	}
	out := make([]versionSummary, 0, len(versions))
	for _, v := range versions {
		out = append(out, versionSummary{
			VersionID:   v.ID,
			ChangeType:  string(v.ChangeType),
			Timestamp:   v.Timestamp,
			Description: v.Description,
			ParentID:    v.ParentVersionID,
		})
	}
	return jsonResult(map[string]any{
		"wireframeId": wireframeID,
		"componentId": a.ComponentID,
		"versions":    out,
	}), nil
}

type restoreVersionArgs struct {
	SessionID   string `json:"session_id"`
	WireframeID string `json:"wireframe_id"`
	ComponentID string `json:"component_id"`
	VersionID   string `json:"version_id"`
}

func (s *Server) handleRestoreComponentVersion(args json.RawMessage) (*CallResult, error) {
	var a restoreVersionArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.ComponentID == "" || a.VersionID == "" {
		return errorResult("component_id and version_id are required"), nil
	}
	sess, err := s.manager.LoadSession(a.SessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return errorResult("session not found: %s", a.SessionID), nil
	}
	wf, res, err := s.resolveWireframe(sess, a.WireframeID)
	if wf == nil {
		return res, err
	}

	restored, err := s.versions.RestoreVersion(sess.ID, wf.ID, a.ComponentID, a.VersionID)
	if err != nil {
		return errorResult("%v", err), nil
	}
	if !wireframe.ReplaceComponent(wf.Components, restored.State.Clone()) {
		return errorResult("component %s is not part of wireframe %s", a.ComponentID, wf.ID), nil
	}
	wf.Metadata.UpdatedAt = session.Now()
	if err := s.manager.SaveWireframe(sess.ID, wf); err != nil {
		return nil, err
	}
	return jsonResult(restored), nil
}
