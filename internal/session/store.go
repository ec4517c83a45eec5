package session

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/alucardeht/frame-forge-mcp-sub001/internal/security"
	"github.com/alucardeht/frame-forge-mcp-sub001/internal/wireframe"
)

var (
	ErrSessionNotFound   = fmt.Errorf("session not found")
	ErrIterationNotFound = fmt.Errorf("iteration not found")
	ErrImageNotFound     = fmt.Errorf("iteration image not found")
)

const sessionFileName = "session.json"

// Store persists sessions one directory each under its root:
//
//	<root>/<sanitizedID>/session.json
//	<root>/<sanitizedID>/images/<iterationIndex>.png
//	<root>/<sanitizedID>/wireframes/wireframe-<id>.json
//	<root>/<sanitizedID>/versions/<wireframeID>/<componentID>.json
//
// A legacy flat <root>/<id>.json format is read-compatible and upgraded to
// the directory layout on first load.
type Store struct {
	root string
}

func NewStore(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create sessions directory: %w", err)
	}
	return &Store{root: root}, nil
}

// Root returns the sessions root directory.
func (s *Store) Root() string { return s.root }

// Dir returns the directory holding one session's state.
func (s *Store) Dir(id string) string {
	return filepath.Join(s.root, security.SanitizeID(id))
}

func (s *Store) sessionFile(id string) string {
	return filepath.Join(s.Dir(id), sessionFileName)
}

func (s *Store) legacyFile(id string) string {
	return filepath.Join(s.root, security.SanitizeID(id)+".json")
}

// Save serializes the session. Any iteration image still held inline is
// materialized to images/<index>.png first and the iteration rewritten to
// hold the path, the one-way blob-to-path migration. The write of
// session.json itself is atomic (temp file + rename) so a concurrent reader
// never observes a partial file. I/O errors propagate: silent failure here
// would corrupt the durability guarantee.
func (s *Store) Save(sess *Session) error {
	dir := s.Dir(sess.ID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	for _, iter := range sess.Iterations {
		if err := s.materialize(dir, iter); err != nil {
			return err
		}
	}

	// A nil slice marshals as "iterations": null; persisted files always
	// carry a sequence so the validating loader accepts them.
	if sess.Iterations == nil {
		sess.Iterations = []*Iteration{}
	}
	sess.Metadata.TotalIterations = len(sess.Iterations)
	sess.Touch()

	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	path := filepath.Join(dir, sessionFileName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to finalize session write: %w", err)
	}
	return nil
}

// materialize writes an inline blob to its dedicated image file and leaves
// only the path behind, keeping the decoded-once blob cached in memory.
func (s *Store) materialize(dir string, iter *Iteration) error {
	img := &iter.Result.Image
	if !img.IsInline() {
		return nil
	}
	raw, err := base64.StdEncoding.DecodeString(img.Inline)
	if err != nil {
		return fmt.Errorf("iteration %d holds invalid image data: %w", iter.Index, err)
	}
	imagesDir := filepath.Join(dir, "images")
	if err := os.MkdirAll(imagesDir, 0755); err != nil {
		return fmt.Errorf("failed to create images directory: %w", err)
	}
	rel := filepath.Join("images", fmt.Sprintf("%d.png", iter.Index))
	if err := os.WriteFile(filepath.Join(dir, rel), raw, 0644); err != nil {
		return fmt.Errorf("failed to write iteration image: %w", err)
	}
	img.CacheBlob(img.Inline)
	img.Path = rel
	img.Inline = ""
	return nil
}

// Load reads one session, failing closed: a missing file, unparseable JSON
// or missing required fields all yield (nil, nil). Only transport-level
// errors (e.g. permission denied) propagate. Legacy flat files are upgraded
// to the directory layout, and any iteration still holding an inline blob
// triggers a resave.
func (s *Store) Load(id string) (*Session, error) {
	data, err := os.ReadFile(s.sessionFile(id))
	if os.IsNotExist(err) {
		return s.loadLegacy(id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	sess := decodeSession(data)
	if sess == nil {
		return nil, nil
	}

	// Lazy-format migration: older files may still hold inline blobs.
	for _, iter := range sess.Iterations {
		if iter.Result.Image.IsInline() {
			if err := s.Save(sess); err != nil {
				return nil, err
			}
			break
		}
	}
	return sess, nil
}

// loadLegacy upgrades a flat <id>.json file to the directory layout.
func (s *Store) loadLegacy(id string) (*Session, error) {
	path := s.legacyFile(id)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read legacy session: %w", err)
	}

	sess := decodeSession(data)
	if sess == nil {
		return nil, nil
	}
	if err := s.Save(sess); err != nil {
		return nil, err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to remove legacy session file: %w", err)
	}
	return sess, nil
}

// decodeSession validates and parses raw session JSON, nil on any defect.
func decodeSession(data []byte) *Session {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	if err := validateSessionData(raw); err != nil {
		return nil
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil
	}
	return &sess
}

// validateSessionData checks the structural fields every persisted session
// must carry before the typed unmarshal is trusted.
func validateSessionData(raw map[string]any) error {
	for _, field := range []string{"id", "createdAt", "updatedAt"} {
		v, ok := raw[field].(string)
		if !ok || v == "" {
			return fmt.Errorf("missing or invalid field %q", field)
		}
	}
	iters, ok := raw["iterations"]
	if !ok {
		return fmt.Errorf("missing iterations")
	}
	// Writers that marshaled a nil slice produced "iterations": null; treat
	// it as an empty sequence.
	if iters != nil {
		if _, ok := iters.([]any); !ok {
			return fmt.Errorf("iterations must be a sequence")
		}
	}
	meta, ok := raw["metadata"].(map[string]any)
	if !ok {
		return fmt.Errorf("missing metadata")
	}
	if _, ok := meta["totalIterations"].(float64); !ok {
		return fmt.Errorf("metadata.totalIterations must be numeric")
	}
	return nil
}

// LoadIterationImage returns the base64 blob for one iteration, reading
// from disk on first access and caching on the in-memory iteration.
func (s *Store) LoadIterationImage(sess *Session, index int) (string, error) {
	if index < 0 || index >= len(sess.Iterations) {
		return "", fmt.Errorf("%w: index %d", ErrIterationNotFound, index)
	}
	img := &sess.Iterations[index].Result.Image
	if img.IsInline() {
		return img.Inline, nil
	}
	if cached := img.Cached(); cached != "" {
		return cached, nil
	}
	if img.Path == "" {
		return "", fmt.Errorf("%w: iteration %d", ErrImageNotFound, index)
	}
	// img.Path comes from session.json, which may have been edited or
	// corrupted; it must never resolve outside the session directory.
	if err := security.ValidateRelativePath(img.Path); err != nil {
		return "", fmt.Errorf("iteration %d has unsafe image path %q: %w", index, img.Path, err)
	}
	raw, err := os.ReadFile(filepath.Join(s.Dir(sess.ID), img.Path))
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrImageNotFound, img.Path)
		}
		return "", fmt.Errorf("failed to read iteration image: %w", err)
	}
	b64 := base64.StdEncoding.EncodeToString(raw)
	img.CacheBlob(b64)
	return b64, nil
}

// List enumerates all persisted sessions, newest creation first. Corrupted
// sessions are skipped, not fatal: enumeration is best-effort.
func (s *Store) List() ([]*Session, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read sessions directory: %w", err)
	}

	var sessions []*Session
	for _, e := range entries {
		id := e.Name()
		if !e.IsDir() {
			id = strings.TrimSuffix(id, ".json")
			if id == e.Name() {
				continue
			}
		}
		sess, err := s.Load(id)
		if err != nil || sess == nil {
			continue
		}
		sessions = append(sessions, sess)
	}

	sort.Slice(sessions, func(i, j int) bool {
		ti, _ := time.Parse(time.RFC3339Nano, sessions[i].CreatedAt)
		tj, _ := time.Parse(time.RFC3339Nano, sessions[j].CreatedAt)
		return ti.After(tj)
	})
	return sessions, nil
}

// Delete removes all on-disk state for one session. Missing sessions are a
// no-op, not an error.
func (s *Store) Delete(id string) error {
	if err := os.RemoveAll(s.Dir(id)); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if err := os.Remove(s.legacyFile(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete legacy session file: %w", err)
	}
	return nil
}

// Wireframe persistence

func (s *Store) wireframeFile(sessionID, wireframeID string) string {
	name := "wireframe-" + security.SanitizeID(wireframeID) + ".json"
	return filepath.Join(s.Dir(sessionID), "wireframes", name)
}

// SaveWireframe persists one wireframe under the session's wireframes dir.
func (s *Store) SaveWireframe(sessionID string, wf *wireframe.Wireframe) error {
	path := s.wireframeFile(sessionID, wf.ID)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create wireframes directory: %w", err)
	}
	data, err := json.MarshalIndent(wf, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal wireframe: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write wireframe: %w", err)
	}
	return os.Rename(tmp, path)
}

// LoadWireframe returns (nil, nil) when the wireframe file is missing or
// corrupt.
func (s *Store) LoadWireframe(sessionID, wireframeID string) (*wireframe.Wireframe, error) {
	data, err := os.ReadFile(s.wireframeFile(sessionID, wireframeID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read wireframe: %w", err)
	}
	var wf wireframe.Wireframe
	if err := json.Unmarshal(data, &wf); err != nil {
		return nil, nil
	}
	return &wf, nil
}

// ListWireframes returns every wireframe persisted for the session; an
// absent directory resolves to an empty list.
func (s *Store) ListWireframes(sessionID string) ([]*wireframe.Wireframe, error) {
	dir := filepath.Join(s.Dir(sessionID), "wireframes")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read wireframes directory: %w", err)
	}

	var out []*wireframe.Wireframe
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "wireframe-") || !strings.HasSuffix(name, ".json") {
			continue
		}
		id := strings.TrimSuffix(strings.TrimPrefix(name, "wireframe-"), ".json")
		wf, err := s.LoadWireframe(sessionID, id)
		if err != nil || wf == nil {
			continue
		}
		out = append(out, wf)
	}
	return out, nil
}

// DeleteWireframe removes one wireframe file; missing is a no-op.
func (s *Store) DeleteWireframe(sessionID, wireframeID string) error {
	err := os.Remove(s.wireframeFile(sessionID, wireframeID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete wireframe: %w", err)
	}
	return nil
}
