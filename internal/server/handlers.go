package server

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/alucardeht/frame-forge-mcp-sub001/internal/engine"
	"github.com/alucardeht/frame-forge-mcp-sub001/internal/ledger"
	"github.com/alucardeht/frame-forge-mcp-sub001/internal/preview"
	"github.com/alucardeht/frame-forge-mcp-sub001/internal/session"
)

const (
	defaultVariantCount = 3
	maxVariantCount     = 6
	variantThumbDim     = 256
	recentUsageLimit    = 10
)

// === Session lifecycle ===

func (s *Server) handleCreateSession(args json.RawMessage) (*CallResult, error) {
	sess, err := s.manager.CreateSession()
	if err != nil {
		return nil, err
	}
	return jsonResult(map[string]any{
		"sessionId": sess.ID,
		"createdAt": sess.CreatedAt,
	}), nil
}

func (s *Server) handleListSessions(args json.RawMessage) (*CallResult, error) {
	sessions, err := s.manager.ListSessions()
	if err != nil {
		return nil, err
	}

	type summary struct {
		SessionID  string `json:"sessionId"`
		CreatedAt  string `json:"createdAt"`
		UpdatedAt  string `json:"updatedAt"`
		Iterations int    `json:"iterations"`
		LastPrompt string `json:"lastPrompt,omitempty"`
	}
	out := make([]summary, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, summary{
			SessionID:  sess.ID,
			CreatedAt:  sess.CreatedAt,
			UpdatedAt:  sess.UpdatedAt,
			Iterations: sess.Metadata.TotalIterations,
			LastPrompt: sess.Metadata.LastPrompt,
		})
	}
	return jsonResult(map[string]any{"sessions": out}), nil
}

type sessionArgs struct {
	SessionID string `json:"session_id"`
}

func (s *Server) handleDeleteSession(args json.RawMessage) (*CallResult, error) {
	var a sessionArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.SessionID == "" {
		return errorResult("session_id is required"), nil
	}
	if err := s.manager.DeleteSession(a.SessionID); err != nil {
		return nil, err
	}
	delete(s.undoredo, a.SessionID)
	return textResult("session %s deleted", a.SessionID), nil
}

func (s *Server) handleGetSession(args json.RawMessage) (*CallResult, error) {
	sess, res, err := s.loadSession(args)
	if sess == nil {
		return res, err
	}

	type iterSummary struct {
		Index      int    `json:"index"`
		Prompt     string `json:"prompt"`
		Timestamp  string `json:"timestamp"`
		RolledBack bool   `json:"rolledBack,omitempty"`
	}
	iters := make([]iterSummary, 0, len(sess.Iterations))
	for _, it := range sess.Iterations {
		iters = append(iters, iterSummary{
			Index:      it.Index,
			Prompt:     it.Prompt,
			Timestamp:  it.Result.Meta.Timestamp,
			RolledBack: it.RolledBack,
		})
	}

	out := map[string]any{
		"sessionId":  sess.ID,
		"createdAt":  sess.CreatedAt,
		"updatedAt":  sess.UpdatedAt,
		"metadata":   sess.Metadata,
		"iterations": iters,
	}
	if sess.Asset != nil {
		out["assetType"] = sess.Asset.AssetType
		out["selectedVariantId"] = sess.Asset.SelectedVariantID
	}
	if sess.WireframeID != "" {
		out["wireframeId"] = sess.WireframeID
	}
	return jsonResult(out), nil
}

// loadSession unmarshals a session_id argument and resolves the session.
// A nil session with a non-nil CallResult means "answered already" (bad
// argument or unknown id).
func (s *Server) loadSession(args json.RawMessage) (*session.Session, *CallResult, error) {
	var a sessionArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, nil, err
	}
	if a.SessionID == "" {
		return nil, errorResult("session_id is required"), nil
	}
	sess, err := s.manager.LoadSession(a.SessionID)
	if err != nil {
		return nil, nil, err
	}
	if sess == nil {
		return nil, errorResult("session not found: %s", a.SessionID), nil
	}
	return sess, nil, nil
}

// === Generation ===

type generateImageArgs struct {
	SessionID     string  `json:"session_id"`
	Prompt        string  `json:"prompt"`
	Width         int     `json:"width"`
	Height        int     `json:"height"`
	Steps         int     `json:"steps"`
	GuidanceScale float64 `json:"guidance_scale"`
	Seed          *int64  `json:"seed"`
}

func (s *Server) handleGenerateImage(ctx context.Context, args json.RawMessage) (*CallResult, error) {
	var a generateImageArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Prompt == "" {
		return errorResult("prompt is required"), nil
	}
	sess, err := s.manager.LoadSession(a.SessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return errorResult("session not found: %s", a.SessionID), nil
	}

	opts := engine.Options{
		Prompt:        a.Prompt,
		Width:         a.Width,
		Height:        a.Height,
		Steps:         a.Steps,
		GuidanceScale: a.GuidanceScale,
		Seed:          a.Seed,
	}
	iter, err := s.generateIteration(ctx, sess, "generate_image", a.Prompt, opts, nil)
	if err != nil {
		return nil, err
	}
	return s.iterationResult(sess, iter)
}

type refineImageArgs struct {
	SessionID   string `json:"session_id"`
	Instruction string `json:"instruction"`
}

func (s *Server) handleRefineImage(ctx context.Context, args json.RawMessage) (*CallResult, error) {
	var a refineImageArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Instruction == "" {
		return errorResult("instruction is required"), nil
	}
	sess, err := s.manager.LoadSession(a.SessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return errorResult("session not found: %s", a.SessionID), nil
	}
	if sess.Metadata.LastPrompt == "" {
		return errorResult("session has no previous prompt to refine; call generate_image first"), nil
	}

	prompt := sess.Metadata.LastPrompt + ", " + a.Instruction
	last := lastIteration(sess)
	opts := engine.Options{Prompt: prompt}
	if last != nil {
		opts.Width = last.Result.Meta.Width
		opts.Height = last.Result.Meta.Height
		opts.Steps = last.Result.Meta.Steps
		opts.GuidanceScale = last.Result.Meta.GuidanceScale
	}

	iter, err := s.generateIteration(ctx, sess, "refine_image", prompt, opts, nil)
	if err != nil {
		return nil, err
	}
	return s.iterationResult(sess, iter)
}

func lastIteration(sess *session.Session) *session.Iteration {
	if len(sess.Iterations) == 0 {
		return nil
	}
	return sess.Iterations[len(sess.Iterations)-1]
}

// generateIteration runs the engine under the retry policy, records the
// attempt in the ledger, appends the result to the session and persists.
func (s *Server) generateIteration(ctx context.Context, sess *session.Session, operation, prompt string, opts engine.Options, batch *session.BatchLink) (*session.Iteration, error) {
	var res *engine.Result
	genErr := s.retry.Do(ctx, func(ctx context.Context) error {
		r, err := s.engine.Generate(ctx, opts, nil)
		if err == nil {
			res = r
		}
		return err
	})

	s.recordLedger(ctx, sess.ID, operation, prompt, res, genErr)
	if genErr != nil {
		return nil, genErr
	}

	result := session.GenerationResult{
		Image: session.ImagePayload{Inline: res.ImageBase64},
		Meta: session.GenerationMeta{
			Width:         res.Width,
			Height:        res.Height,
			Steps:         res.Steps,
			GuidanceScale: res.GuidanceScale,
			Seed:          res.Seed,
			LatencyMS:     res.LatencyMS,
			Model:         res.Model,
			Timestamp:     session.Now(),
		},
	}

	iter := s.manager.AddIteration(sess.ID, prompt, result)
	if iter == nil {
		return nil, fmt.Errorf("session %s is not active", sess.ID)
	}
	iter.Batch = batch

	if err := s.manager.SaveSession(sess); err != nil {
		return nil, err
	}
	return iter, nil
}

func (s *Server) recordLedger(ctx context.Context, sessionID, operation, prompt string, res *engine.Result, genErr error) {
	if s.ledger == nil {
		return
	}
	e := ledger.Entry{
		SessionID: sessionID,
		Operation: operation,
		Prompt:    prompt,
		Success:   genErr == nil,
	}
	if res != nil {
		e.Model = res.Model
		e.Width = res.Width
		e.Height = res.Height
		e.Steps = res.Steps
		e.LatencyMS = res.LatencyMS
	}
	if err := s.ledger.Record(ctx, e); err != nil {
		s.logger.Printf("ledger record failed: %v", err)
	}
}

// iterationResult builds the standard generation response: metadata text
// plus the full image.
func (s *Server) iterationResult(sess *session.Session, iter *session.Iteration) (*CallResult, error) {
	blob, err := s.manager.LoadIterationImage(sess.ID, iter.Index)
	if err != nil {
		return nil, err
	}

	meta, err := json.MarshalIndent(map[string]any{
		"sessionId": sess.ID,
		"iteration": iter.Index,
		"prompt":    iter.Prompt,
		"model":     iter.Result.Meta.Model,
		"width":     iter.Result.Meta.Width,
		"height":    iter.Result.Meta.Height,
		"steps":     iter.Result.Meta.Steps,
		"seed":      iter.Result.Meta.Seed,
		"latencyMs": iter.Result.Meta.LatencyMS,
	}, "", "  ")
	if err != nil {
		return nil, err
	}

	return &CallResult{Content: []ContentBlock{
		{Type: "text", Text: string(meta)},
		imageBlock(blob),
	}}, nil
}

// === Iteration history ===

func (s *Server) handleUndoIteration(args json.RawMessage) (*CallResult, error) {
	sess, res, err := s.loadSession(args)
	if sess == nil {
		return res, err
	}
	hist, ok := s.manager.HistoryFor(sess.ID)
	if !ok || !hist.CanUndo() {
		return errorResult("nothing to undo in session %s", sess.ID), nil
	}
	iter, ok := hist.Undo()
	if !ok {
		return errorResult("nothing to undo in session %s", sess.ID), nil
	}
	return s.iterationResult(sess, iter)
}

func (s *Server) handleRedoIteration(args json.RawMessage) (*CallResult, error) {
	sess, res, err := s.loadSession(args)
	if sess == nil {
		return res, err
	}
	hist, ok := s.manager.HistoryFor(sess.ID)
	if !ok || !hist.CanRedo() {
		return errorResult("nothing to redo in session %s", sess.ID), nil
	}
	iter, ok := hist.Redo()
	if !ok {
		return errorResult("nothing to redo in session %s", sess.ID), nil
	}
	return s.iterationResult(sess, iter)
}

type rollbackArgs struct {
	SessionID   string `json:"session_id"`
	Index       int    `json:"index"`
	Destructive bool   `json:"destructive"`
}

func (s *Server) handleRollbackToIteration(args json.RawMessage) (*CallResult, error) {
	var a rollbackArgs
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
	hist, ok := s.manager.HistoryFor(sess.ID)
	if !ok {
		return errorResult("session %s has no iteration history", sess.ID), nil
	}
	if a.Index < 0 || a.Index >= hist.Len() {
		return errorResult("iteration %d not found; session has %d iterations", a.Index, hist.Len()), nil
	}

	if a.Destructive {
		s.manager.TruncateIterations(sess.ID, a.Index)
	} else {
		hist.MarkRolledBackTo(a.Index)
	}
	if err := s.manager.SaveSession(sess); err != nil {
		return nil, err
	}

	mode := "marked"
	if a.Destructive {
		mode = "truncated to"
	}
	return textResult("session %s rolled back: iteration %d %s; %d iterations remain",
		sess.ID, a.Index, mode, len(sess.Iterations)), nil
}

type iterationImageArgs struct {
	SessionID string `json:"session_id"`
	Index     int    `json:"index"`
}

func (s *Server) handleGetIterationImage(args json.RawMessage) (*CallResult, error) {
	var a iterationImageArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	blob, err := s.manager.LoadIterationImage(a.SessionID, a.Index)
	if err != nil {
		return errorResult("%v", err), nil
	}
	return &CallResult{Content: []ContentBlock{
		{Type: "text", Text: fmt.Sprintf("iteration %d of session %s", a.Index, a.SessionID)},
		imageBlock(blob),
	}}, nil
}

// === Asset variants ===

type assetVariantsArgs struct {
	SessionID   string `json:"session_id"`
	AssetType   string `json:"asset_type"`
	Description string `json:"description"`
	Count       int    `json:"count"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
}

func (s *Server) handleGenerateAssetVariants(ctx context.Context, args json.RawMessage) (*CallResult, error) {
	var a assetVariantsArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.AssetType == "" || a.Description == "" {
		return errorResult("asset_type and description are required"), nil
	}
	if a.Count == 0 {
		a.Count = defaultVariantCount
	}
	if a.Count < 1 || a.Count > maxVariantCount {
		return errorResult("count must be between 1 and %d", maxVariantCount), nil
	}
	if a.Width == 0 {
		a.Width = 512
	}
	if a.Height == 0 {
		a.Height = 512
	}

	sess, err := s.manager.LoadSession(a.SessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return errorResult("session not found: %s", a.SessionID), nil
	}

	key := s.manager.BuildVariantCacheKey(a.AssetType, a.Description, a.Width, a.Height)
	if cached := s.manager.GetVariantCache(sess.ID, key); cached != nil {
		return s.variantResult(sess, cached.Variants, true)
	}

	prompt := a.AssetType + ": " + a.Description
	variants := make([]*session.Variant, 0, a.Count)
	iters := make([]*session.Iteration, 0, a.Count)
	for i := 0; i < a.Count; i++ {
		v := &session.Variant{ID: uuid.NewString(), Prompt: prompt}
		opts := engine.Options{Prompt: prompt, Width: a.Width, Height: a.Height}
		iter, err := s.generateIteration(ctx, sess, "generate_asset_variants", prompt, opts,
			&session.BatchLink{VariantID: v.ID, BatchSize: a.Count})
		if err != nil {
			return nil, fmt.Errorf("variant %d of %d: %w", i+1, a.Count, err)
		}
		v.Meta = iter.Result.Meta
		if iter.Result.Meta.Seed != nil {
			v.Seed = *iter.Result.Meta.Seed
		}
		variants = append(variants, v)
		iters = append(iters, iter)
	}

	// Iterations were materialized on save; point the variants at the same
	// on-disk payloads instead of carrying duplicate blobs.
	for i, v := range variants {
		v.Image = iters[i].Result.Image
	}
	sess.Asset = &session.AssetSession{AssetType: a.AssetType, Variants: variants}
	s.manager.SetVariantCache(sess.ID, key, variants)
	if err := s.manager.SaveSession(sess); err != nil {
		return nil, err
	}

	return s.variantResult(sess, variants, false)
}

// variantResult answers with one thumbnail per variant plus a summary
// carrying the decoded dimensions of each stored image.
func (s *Server) variantResult(sess *session.Session, variants []*session.Variant, fromCache bool) (*CallResult, error) {
	type variantSummary struct {
		VariantID string `json:"variantId"`
		Seed      int64  `json:"seed"`
		Prompt    string `json:"prompt"`
		Width     int    `json:"width,omitempty"`
		Height    int    `json:"height,omitempty"`
	}
	summaries := make([]variantSummary, 0, len(variants))
	var thumbs []ContentBlock
	for _, v := range variants {
		sum := variantSummary{VariantID: v.ID, Seed: v.Seed, Prompt: v.Prompt}
		blob, err := s.variantBlob(sess, v)
		if err != nil {
			s.logger.Printf("variant %s image unavailable: %v", v.ID, err)
			summaries = append(summaries, sum)
			continue
		}
		if info, err := preview.DecodeDimensions(blob); err == nil {
			sum.Width = info.Width
			sum.Height = info.Height
		}
		summaries = append(summaries, sum)

		thumb, err := preview.Thumbnail(blob, variantThumbDim)
		if err != nil {
			thumb = blob
		}
		thumbs = append(thumbs, imageBlock(thumb))
	}

	meta, err := json.MarshalIndent(map[string]any{
		"sessionId": sess.ID,
		"cached":    fromCache,
		"variants":  summaries,
	}, "", "  ")
	if err != nil {
		return nil, err
	}
	return &CallResult{Content: append([]ContentBlock{{Type: "text", Text: string(meta)}}, thumbs...)}, nil
}

// variantBlob resolves a variant's image through its batch iteration.
func (s *Server) variantBlob(sess *session.Session, v *session.Variant) (string, error) {
	if v.Image.IsInline() {
		return v.Image.Inline, nil
	}
	if cached := v.Image.Cached(); cached != "" {
		return cached, nil
	}
	for _, it := range sess.Iterations {
		if it.Batch != nil && it.Batch.VariantID == v.ID {
			return s.manager.LoadIterationImage(sess.ID, it.Index)
		}
	}
	return "", fmt.Errorf("no stored image for variant %s", v.ID)
}

type selectVariantArgs struct {
	SessionID string `json:"session_id"`
	VariantID string `json:"variant_id"`
}

func (s *Server) handleSelectVariant(args json.RawMessage) (*CallResult, error) {
	var a selectVariantArgs
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
	if sess.Asset == nil {
		return errorResult("session %s has no asset variants; call generate_asset_variants first", sess.ID), nil
	}

	found := false
	for _, v := range sess.Asset.Variants {
		if v.ID == a.VariantID {
			found = true
			break
		}
	}
	if !found {
		return errorResult("unknown variant id: %s", a.VariantID), nil
	}

	sess.Asset.SelectedVariantID = a.VariantID
	if err := s.manager.SaveSession(sess); err != nil {
		return nil, err
	}
	return textResult("variant %s selected for session %s", a.VariantID, sess.ID), nil
}

type refineAssetArgs struct {
	SessionID   string `json:"session_id"`
	Instruction string `json:"instruction"`
}

func (s *Server) handleRefineAsset(ctx context.Context, args json.RawMessage) (*CallResult, error) {
	var a refineAssetArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Instruction == "" {
		return errorResult("instruction is required"), nil
	}
	sess, err := s.manager.LoadSession(a.SessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return errorResult("session not found: %s", a.SessionID), nil
	}
	selected := sess.Asset.SelectedVariant()
	if selected == nil {
		return errorResult("no variant selected in session %s; call select_variant first", sess.ID), nil
	}

	prompt := selected.Prompt + ", " + strings.TrimSpace(a.Instruction)
	opts := engine.Options{
		Prompt: prompt,
		Width:  selected.Meta.Width,
		Height: selected.Meta.Height,
	}
	iter, err := s.generateIteration(ctx, sess, "refine_asset", prompt, opts, nil)
	if err != nil {
		return nil, err
	}

	sess.Asset.Refinements = append(sess.Asset.Refinements, a.Instruction)
	if err := s.manager.SaveSession(sess); err != nil {
		return nil, err
	}
	return s.iterationResult(sess, iter)
}

// === Diagnostics ===

func (s *Server) handleEngineStatus(ctx context.Context, args json.RawMessage) (*CallResult, error) {
	st, err := s.engine.CheckStatus(ctx)
	if err != nil {
		return nil, err
	}
	return jsonResult(st), nil
}

func (s *Server) handleGetMetrics(args json.RawMessage) (*CallResult, error) {
	return jsonResult(map[string]any{
		"summary":  s.manager.GetMetricsSummary(),
		"snapshot": s.manager.GetMetricsSnapshot(),
	}), nil
}

type usageReportArgs struct {
	SessionID string `json:"session_id"`
}

func (s *Server) handleUsageReport(ctx context.Context, args json.RawMessage) (*CallResult, error) {
	if s.ledger == nil {
		return errorResult("usage ledger is not configured"), nil
	}
	var a usageReportArgs
	if len(args) > 0 {
		if err := json.Unmarshal(args, &a); err != nil {
			return nil, err
		}
	}

	if a.SessionID != "" {
		totals, err := s.ledger.SessionTotals(ctx, a.SessionID)
		if err != nil {
			return nil, err
		}
		return jsonResult(map[string]any{"sessionId": a.SessionID, "totals": totals}), nil
	}

	totals, err := s.ledger.Totals(ctx)
	if err != nil {
		return nil, err
	}
	byModel, err := s.ledger.SummaryByModel(ctx)
	if err != nil {
		return nil, err
	}
	recent, err := s.ledger.Recent(ctx, recentUsageLimit)
	if err != nil {
		return nil, err
	}
	return jsonResult(map[string]any{"totals": totals, "byModel": byModel, "recent": recent}), nil
}
