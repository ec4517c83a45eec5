// Package session holds the durable state of one multi-turn creative
// conversation: its iteration history, optional asset context, wireframe
// linkage and summary metadata, plus the manager and store that own them.
package session

import (
	"time"
)

// ImagePayload is a two-variant sum for a generated image: an inline base64
// blob (transient, right after generation) or a reference to an on-disk
// file. Migration is one-way: once the store materializes the blob to disk,
// only the path survives in session.json.
type ImagePayload struct {
	// Inline is the base64-encoded PNG, present only before materialization.
	Inline string `json:"inline,omitempty"`

	// Path is the on-disk location relative to the session directory.
	Path string `json:"path,omitempty"`

	// cached holds the blob lazily loaded from Path for the remainder of
	// the process lifetime. Never serialized.
	cached string
}

// IsInline reports whether the payload still carries an un-materialized blob.
func (p *ImagePayload) IsInline() bool { return p.Inline != "" }

// Empty reports whether the payload carries neither a blob nor a path.
func (p *ImagePayload) Empty() bool { return p.Inline == "" && p.Path == "" }

// Cached returns the lazily loaded blob, empty until CacheBlob.
func (p *ImagePayload) Cached() string { return p.cached }

// CacheBlob keeps a loaded blob in memory without marking it for
// re-materialization.
func (p *ImagePayload) CacheBlob(b64 string) { p.cached = b64 }

// GenerationMeta is the non-image part of a generation result.
type GenerationMeta struct {
	Width         int     `json:"width"`
	Height        int     `json:"height"`
	Steps         int     `json:"steps"`
	GuidanceScale float64 `json:"guidanceScale"`
	Seed          *int64  `json:"seed,omitempty"`
	LatencyMS     int64   `json:"latencyMs"`
	Model         string  `json:"model"`
	Timestamp     string  `json:"timestamp"`
}

// GenerationResult is one engine output: the image plus its metadata.
type GenerationResult struct {
	Image ImagePayload   `json:"image"`
	Meta  GenerationMeta `json:"meta"`
}

// BatchLink marks an iteration produced as part of a multi-variant batch.
type BatchLink struct {
	VariantID string `json:"variantId"`
	BatchSize int    `json:"batchSize"`
}

// Iteration is one generation result recorded within a session. Index is
// the position in the session's history and is immutable once assigned;
// rollback marks, it does not renumber.
type Iteration struct {
	Index      int              `json:"index"`
	Prompt     string           `json:"prompt"`
	Result     GenerationResult `json:"result"`
	RolledBack bool             `json:"rolledBack,omitempty"`
	Batch      *BatchLink       `json:"batch,omitempty"`
}

// Variant is one of several alternative generations for the same asset
// request.
type Variant struct {
	ID     string         `json:"id"`
	Image  ImagePayload   `json:"image"`
	Seed   int64          `json:"seed"`
	Prompt string         `json:"prompt"`
	Meta   GenerationMeta `json:"meta"`
}

// AssetSession is the optional creative context attached to a session.
type AssetSession struct {
	AssetType         string     `json:"assetType"`
	Variants          []*Variant `json:"variants,omitempty"`
	SelectedVariantID string     `json:"selectedVariantId,omitempty"`
	Refinements       []string   `json:"refinements,omitempty"`
}

// SelectedVariant returns the currently selected variant, or nil.
func (a *AssetSession) SelectedVariant() *Variant {
	if a == nil || a.SelectedVariantID == "" {
		return nil
	}
	for _, v := range a.Variants {
		if v.ID == a.SelectedVariantID {
			return v
		}
	}
	return nil
}

// SessionMetadata summarizes a session. TotalIterations always equals the
// length of the persisted iteration sequence at the time of last save.
type SessionMetadata struct {
	TotalIterations int    `json:"totalIterations"`
	LastPrompt      string `json:"lastPrompt,omitempty"`
}

// Session is the root aggregate: one conversation's durable state.
type Session struct {
	ID         string          `json:"id"`
	CreatedAt  string          `json:"createdAt"`
	UpdatedAt  string          `json:"updatedAt"`
	Iterations []*Iteration    `json:"iterations"`
	Metadata   SessionMetadata `json:"metadata"`
	Asset      *AssetSession   `json:"asset,omitempty"`

	// WireframeID references the session's current wireframe, persisted
	// separately under wireframes/.
	WireframeID string `json:"wireframeId,omitempty"`
}

// Touch refreshes UpdatedAt.
func (s *Session) Touch() {
	s.UpdatedAt = Now()
}

// Now formats the current time the way all session timestamps are stored.
func Now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
