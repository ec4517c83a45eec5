// Package server speaks line-delimited JSON-RPC (Model Context Protocol)
// over stdio and maps tool calls onto the session manager, wireframe
// version system and generation engine.
package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/alucardeht/frame-forge-mcp-sub001/internal/engine"
	"github.com/alucardeht/frame-forge-mcp-sub001/internal/ledger"
	"github.com/alucardeht/frame-forge-mcp-sub001/internal/session"
	"github.com/alucardeht/frame-forge-mcp-sub001/internal/wireframe"
)

const (
	serverName      = "frameforge"
	serverVersion   = "0.2.0"
	protocolVersion = "2024-11-05"
)

// MCPRequest represents an incoming JSON-RPC request.
type MCPRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// MCPResponse represents an outgoing JSON-RPC response.
type MCPResponse struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      any       `json:"id"`
	Result  any       `json:"result,omitempty"`
	Error   *MCPError `json:"error,omitempty"`
}

// MCPError represents a JSON-RPC error, reserved for malformed requests
// and unknown methods. Tool failures never use it (see CallResult).
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// ContentBlock is one element of a tool result.
type ContentBlock struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	Data     string `json:"data,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
}

// CallResult is the uniform tools/call result shape. Handler failures are
// carried as a text block with IsError set, never as a JSON-RPC error.
type CallResult struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"isError,omitempty"`
}

// Server wires the protocol loop to the domain components.
type Server struct {
	manager  *session.Manager
	engine   engine.Engine
	versions *wireframe.VersionManager
	undoredo map[string]*wireframe.UndoRedoManager
	ledger   *ledger.Ledger
	retry    engine.RetryPolicy
	logger   *log.Logger
}

// Options collects the collaborators Run needs. Ledger may be nil
// (usage_report then reports unavailability).
type Options struct {
	Manager *session.Manager
	Engine  engine.Engine
	Ledger  *ledger.Ledger
	Retry   engine.RetryPolicy
}

func New(opts Options) *Server {
	return &Server{
		manager:  opts.Manager,
		engine:   opts.Engine,
		versions: wireframe.NewVersionManager(opts.Manager.Store().Root()),
		undoredo: make(map[string]*wireframe.UndoRedoManager),
		ledger:   opts.Ledger,
		retry:    opts.Retry,
		logger:   log.New(os.Stderr, "", log.LstdFlags),
	}
}

// Run reads requests from in and writes responses to out until EOF.
// stdout carries protocol frames only; diagnostics go to stderr.
func (s *Server) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	// Inline image arguments can make request lines large.
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	encoder := json.NewEncoder(out)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req MCPRequest
		if err := json.Unmarshal(line, &req); err != nil {
			s.logger.Printf("failed to parse request: %v", err)
			continue
		}

		resp := s.handleRequest(ctx, &req)
		if resp != nil {
			if err := encoder.Encode(resp); err != nil {
				s.logger.Printf("failed to encode response: %v", err)
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanner error: %w", err)
	}
	return nil
}

func (s *Server) handleRequest(ctx context.Context, req *MCPRequest) *MCPResponse {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "notifications/initialized":
		// Client acknowledgment, no response needed.
		return nil
	case "tools/list":
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result:  map[string]any{"tools": ToolDefinitions()},
		}
	case "tools/call":
		return s.handleToolsCall(ctx, req)
	case "ping":
		return &MCPResponse{JSONRPC: "2.0", ID: req.ID, Result: map[string]any{}}
	default:
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error: &MCPError{
				Code:    -32601,
				Message: fmt.Sprintf("Method not found: %s", req.Method),
			},
		}
	}
}

func (s *Server) handleInitialize(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]any{
			"protocolVersion": protocolVersion,
			"capabilities": map[string]any{
				"tools": map[string]any{},
			},
			"serverInfo": map[string]any{
				"name":    serverName,
				"version": serverVersion,
			},
		},
	}
}

// ToolCallParams represents the parameters for a tools/call request.
type ToolCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// sessionProbe pulls the session id out of any tool's arguments for
// metric attribution.
type sessionProbe struct {
	SessionID string `json:"session_id"`
}

func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error:   &MCPError{Code: -32602, Message: "Invalid params", Data: err.Error()},
		}
	}

	var probe sessionProbe
	if len(params.Arguments) > 0 {
		json.Unmarshal(params.Arguments, &probe)
	}

	start := time.Now()
	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	s.manager.RecordMetric(params.Name, time.Since(start), err == nil && (result == nil || !result.IsError), probe.SessionID)

	if err != nil {
		s.logger.Printf("tool %s failed: %v", params.Name, err)
		result = errorResult("%v", err)
	}

	return &MCPResponse{JSONRPC: "2.0", ID: req.ID, Result: result}
}

func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (*CallResult, error) {
	switch name {
	// Session lifecycle
	case "create_session":
		return s.handleCreateSession(args)
	case "list_sessions":
		return s.handleListSessions(args)
	case "delete_session":
		return s.handleDeleteSession(args)
	case "get_session":
		return s.handleGetSession(args)

	// Generation and iteration history
	case "generate_image":
		return s.handleGenerateImage(ctx, args)
	case "refine_image":
		return s.handleRefineImage(ctx, args)
	case "undo_iteration":
		return s.handleUndoIteration(args)
	case "redo_iteration":
		return s.handleRedoIteration(args)
	case "rollback_to_iteration":
		return s.handleRollbackToIteration(args)
	case "get_iteration_image":
		return s.handleGetIterationImage(args)

	// Asset variants
	case "generate_asset_variants":
		return s.handleGenerateAssetVariants(ctx, args)
	case "select_variant":
		return s.handleSelectVariant(args)
	case "refine_asset":
		return s.handleRefineAsset(ctx, args)

	// Wireframes
	case "create_wireframe":
		return s.handleCreateWireframe(args)
	case "get_wireframe":
		return s.handleGetWireframe(args)
	case "update_wireframe_component":
		return s.handleUpdateWireframeComponent(args)
	case "undo_wireframe":
		return s.handleUndoWireframe(args)
	case "redo_wireframe":
		return s.handleRedoWireframe(args)
	case "component_history":
		return s.handleComponentHistory(args)
	case "restore_component_version":
		return s.handleRestoreComponentVersion(args)

	// Diagnostics
	case "engine_status":
		return s.handleEngineStatus(ctx, args)
	case "get_metrics":
		return s.handleGetMetrics(args)
	case "usage_report":
		return s.handleUsageReport(ctx, args)

	default:
		return errorResult("unknown tool: %s", name), nil
	}
}

// undoRedoFor returns the session's wireframe undo/redo manager, creating
// it on first use. Managers live as long as the server process.
func (s *Server) undoRedoFor(sessionID string) *wireframe.UndoRedoManager {
	if ur, ok := s.undoredo[sessionID]; ok {
		return ur
	}
	ur := wireframe.NewUndoRedoManager(sessionID, s.versions)
	s.undoredo[sessionID] = ur
	return ur
}

// textResult builds a single-text-block success result.
func textResult(format string, args ...any) *CallResult {
	return &CallResult{Content: []ContentBlock{{Type: "text", Text: fmt.Sprintf(format, args...)}}}
}

// jsonResult marshals v into a single text block.
func jsonResult(v any) *CallResult {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult("failed to encode result: %v", err)
	}
	return &CallResult{Content: []ContentBlock{{Type: "text", Text: string(b)}}}
}

// errorResult builds the uniform failure shape: a text block describing
// the error with IsError set.
func errorResult(format string, args ...any) *CallResult {
	return &CallResult{
		Content: []ContentBlock{{Type: "text", Text: fmt.Sprintf(format, args...)}},
		IsError: true,
	}
}

// imageBlock builds an image content block.
func imageBlock(b64 string) ContentBlock {
	return ContentBlock{Type: "image", Data: b64, MimeType: "image/png"}
}
