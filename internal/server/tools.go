package server

// Tool represents an MCP tool definition.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

func sessionIDProp() map[string]any {
	return map[string]any{
		"type":        "string",
		"description": "Session identifier returned by create_session",
	}
}

// ToolDefinitions returns all available tools.
func ToolDefinitions() []Tool {
	return []Tool{
		// Session lifecycle
		{
			Name:        "create_session",
			Description: "Start a new creative session. Returns the session id to pass to every other tool.",
			InputSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
		},
		{
			Name:        "list_sessions",
			Description: "List all persisted sessions, newest first, with iteration counts and last prompts.",
			InputSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
		},
		{
			Name:        "delete_session",
			Description: "Delete a session and all of its stored images, wireframes and version history.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"session_id": sessionIDProp(),
				},
				"required": []string{"session_id"},
			},
		},
		{
			Name:        "get_session",
			Description: "Get a session's metadata and iteration summaries without loading image data.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"session_id": sessionIDProp(),
				},
				"required": []string{"session_id"},
			},
		},

		// Generation and iteration history
		{
			Name:        "generate_image",
			Description: "Generate an image from a prompt and record it as the session's next iteration.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"session_id": sessionIDProp(),
					"prompt": map[string]any{
						"type":        "string",
						"description": "Text prompt describing the image",
					},
					"width": map[string]any{
						"type":        "integer",
						"description": "Image width in pixels. Default per model",
					},
					"height": map[string]any{
						"type":        "integer",
						"description": "Image height in pixels. Default per model",
					},
					"steps": map[string]any{
						"type":        "integer",
						"description": "Sampling steps. Default per model",
					},
					"guidance_scale": map[string]any{
						"type":        "number",
						"description": "Prompt adherence strength. Default per model",
					},
					"seed": map[string]any{
						"type":        "integer",
						"description": "Seed for reproducible output. Random when omitted",
					},
				},
				"required": []string{"session_id", "prompt"},
			},
		},
		{
			Name:        "refine_image",
			Description: "Refine the session's latest image by extending its prompt with an instruction.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"session_id": sessionIDProp(),
					"instruction": map[string]any{
						"type":        "string",
						"description": "What to change, e.g. 'make the sky darker'",
					},
				},
				"required": []string{"session_id", "instruction"},
			},
		},
		{
			Name:        "undo_iteration",
			Description: "Step the session's iteration cursor back one generation and return that image.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"session_id": sessionIDProp(),
				},
				"required": []string{"session_id"},
			},
		},
		{
			Name:        "redo_iteration",
			Description: "Step the session's iteration cursor forward after an undo and return that image.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"session_id": sessionIDProp(),
				},
				"required": []string{"session_id"},
			},
		},
		{
			Name:        "rollback_to_iteration",
			Description: "Mark an earlier iteration as the rollback target. With destructive=true, later iterations are dropped permanently.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"session_id": sessionIDProp(),
					"index": map[string]any{
						"type":        "integer",
						"description": "Zero-based iteration index to roll back to",
					},
					"destructive": map[string]any{
						"type":        "boolean",
						"description": "Drop all iterations after the target. Default false (annotate only)",
						"default":     false,
					},
				},
				"required": []string{"session_id", "index"},
			},
		},
		{
			Name:        "get_iteration_image",
			Description: "Return the stored image for one iteration, loading it from disk if needed.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"session_id": sessionIDProp(),
					"index": map[string]any{
						"type":        "integer",
						"description": "Zero-based iteration index",
					},
				},
				"required": []string{"session_id", "index"},
			},
		},

		// Asset variants
		{
			Name:        "generate_asset_variants",
			Description: "Generate several variants of one asset (icon, banner, mockup). Identical requests in the same session are served from cache.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"session_id": sessionIDProp(),
					"asset_type": map[string]any{
						"type":        "string",
						"description": "Kind of asset, e.g. icon, banner, mockup",
					},
					"description": map[string]any{
						"type":        "string",
						"description": "What the asset should look like",
					},
					"count": map[string]any{
						"type":        "integer",
						"description": "Number of variants, 1-6. Default 3",
						"default":     3,
					},
					"width": map[string]any{
						"type":        "integer",
						"description": "Variant width in pixels. Default 512",
						"default":     512,
					},
					"height": map[string]any{
						"type":        "integer",
						"description": "Variant height in pixels. Default 512",
						"default":     512,
					},
				},
				"required": []string{"session_id", "asset_type", "description"},
			},
		},
		{
			Name:        "select_variant",
			Description: "Select one of the generated variants as the working asset for refinement.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"session_id": sessionIDProp(),
					"variant_id": map[string]any{
						"type":        "string",
						"description": "Variant identifier from generate_asset_variants",
					},
				},
				"required": []string{"session_id", "variant_id"},
			},
		},
		{
			Name:        "refine_asset",
			Description: "Apply a refinement instruction to the selected variant and record the result as a new iteration.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"session_id": sessionIDProp(),
					"instruction": map[string]any{
						"type":        "string",
						"description": "What to change about the selected variant",
					},
				},
				"required": []string{"session_id", "instruction"},
			},
		},

		// Wireframes
		{
			Name:        "create_wireframe",
			Description: "Create a wireframe layout from a free-text description (header, sidebar, footer, grids) and attach it to the session.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"session_id": sessionIDProp(),
					"description": map[string]any{
						"type":        "string",
						"description": "Layout description, e.g. 'dashboard with sidebar and three column card grid'",
					},
					"width": map[string]any{
						"type":        "integer",
						"description": "Canvas width in pixels. Default 1280",
						"default":     1280,
					},
					"height": map[string]any{
						"type":        "integer",
						"description": "Canvas height in pixels. Default 800",
						"default":     800,
					},
				},
				"required": []string{"session_id", "description"},
			},
		},
		{
			Name:        "get_wireframe",
			Description: "Return the full component tree of a wireframe.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"session_id": sessionIDProp(),
					"wireframe_id": map[string]any{
						"type":        "string",
						"description": "Wireframe identifier. Defaults to the session's current wireframe",
					},
				},
				"required": []string{"session_id"},
			},
		},
		{
			Name:        "update_wireframe_component",
			Description: "Update a wireframe component's type, position, dimensions or properties. Records a new component version.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"session_id": sessionIDProp(),
					"wireframe_id": map[string]any{
						"type":        "string",
						"description": "Wireframe identifier. Defaults to the session's current wireframe",
					},
					"component_id": map[string]any{
						"type":        "string",
						"description": "Component to update",
					},
					"type": map[string]any{
						"type":        "string",
						"description": "New component type",
					},
					"position": map[string]any{
						"type":        "object",
						"description": "New pixel position {x, y}",
					},
					"dimensions": map[string]any{
						"type":        "object",
						"description": "New pixel dimensions {width, height}",
					},
					"properties": map[string]any{
						"type":        "object",
						"description": "Property keys to set or overwrite (columns, spacing, color, ...)",
					},
					"description": map[string]any{
						"type":        "string",
						"description": "Human-readable change description for the version log",
					},
				},
				"required": []string{"session_id", "component_id"},
			},
		},
		{
			Name:        "undo_wireframe",
			Description: "Undo the last wireframe component change. Version history is kept; only the current state moves.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"session_id": sessionIDProp(),
				},
				"required": []string{"session_id"},
			},
		},
		{
			Name:        "redo_wireframe",
			Description: "Redo a wireframe component change undone by undo_wireframe.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"session_id": sessionIDProp(),
				},
				"required": []string{"session_id"},
			},
		},
		{
			Name:        "component_history",
			Description: "List every recorded version of one wireframe component, oldest first.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"session_id": sessionIDProp(),
					"wireframe_id": map[string]any{
						"type":        "string",
						"description": "Wireframe identifier. Defaults to the session's current wireframe",
					},
					"component_id": map[string]any{
						"type":        "string",
						"description": "Component whose history to list",
					},
				},
				"required": []string{"session_id", "component_id"},
			},
		},
		{
			Name:        "restore_component_version",
			Description: "Restore a component to an earlier recorded version. Appends a 'restored' version; history never shrinks.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"session_id": sessionIDProp(),
					"wireframe_id": map[string]any{
						"type":        "string",
						"description": "Wireframe identifier. Defaults to the session's current wireframe",
					},
					"component_id": map[string]any{
						"type":        "string",
						"description": "Component to restore",
					},
					"version_id": map[string]any{
						"type":        "string",
						"description": "Version identifier from component_history",
					},
				},
				"required": []string{"session_id", "component_id", "version_id"},
			},
		},

		// Diagnostics
		{
			Name:        "engine_status",
			Description: "Report whether the generation engine is ready and which dependencies it found.",
			InputSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
		},
		{
			Name:        "get_metrics",
			Description: "Report in-memory operation metrics: counts, success rates, latency percentiles and active sessions.",
			InputSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
		},
		{
			Name:        "usage_report",
			Description: "Report durable generation usage from the ledger, overall or for one session.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"session_id": map[string]any{
						"type":        "string",
						"description": "Limit the report to one session. Omit for the full report",
					},
				},
			},
		},
	}
}
