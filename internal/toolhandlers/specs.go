package toolhandlers

import (
	"github.com/fawa-io/monocanvas/internal/agent"
	"github.com/fawa-io/monocanvas/internal/brush"
)

// pathItemSchema is the JSON schema fragment for one element of
// draw_paths' paths argument, grounded on
// tools/drawing.py's @tool input_schema.
var pathItemSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"type": map[string]any{
			"type": "string",
			"enum": []string{"line", "polyline", "quadratic", "cubic", "svg"},
		},
		"points": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":       "object",
				"properties": map[string]any{"x": map[string]any{"type": "number"}, "y": map[string]any{"type": "number"}},
				"required":   []string{"x", "y"},
			},
		},
		"d":            map[string]any{"type": "string"},
		"brush":        map[string]any{"type": "string", "enum": brush.Names()},
		"color":        map[string]any{"type": "string"},
		"stroke_width": map[string]any{"type": "number"},
		"opacity":      map[string]any{"type": "number"},
	},
	"required": []string{"type"},
}

// Specs returns the fixed tool set the agent session registers at
// connect time (SPEC_FULL §4.4/§4.5).
func Specs() []agent.ToolSpec {
	return []agent.ToolSpec{
		{
			Name:        "draw_paths",
			Description: "Draw one or more paths on the canvas. Coordinates must be within canvas bounds.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"paths": map[string]any{"type": "array", "items": pathItemSchema},
					"done":  map[string]any{"type": "boolean", "default": false},
				},
				"required": []string{"paths"},
			},
		},
		{
			Name:        "generate_svg",
			Description: "Generate paths from a restricted absolute M/L/Q/C SVG path grammar, one statement per line.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"code": map[string]any{"type": "string"},
					"done": map[string]any{"type": "boolean", "default": false},
				},
				"required": []string{"code"},
			},
		},
		{
			Name:        "view_canvas",
			Description: "Return a rendered snapshot of the current canvas.",
			InputSchema: map[string]any{"type": "object", "properties": map[string]any{}},
		},
		{
			Name:        "imagine",
			Description: "Generate a reference image from a text prompt and save it to the workspace's references directory.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"prompt": map[string]any{"type": "string"},
					"name":   map[string]any{"type": "string"},
				},
				"required": []string{"prompt"},
			},
		},
		{
			Name:        "sign_canvas",
			Description: "Sign the canvas with the piece's fixed signature mark at a named corner.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"position": map[string]any{"type": "string", "enum": []string{"top_left", "top_right", "bottom_left", "bottom_right"}},
					"size":     map[string]any{"type": "number"},
					"color":    map[string]any{"type": "string"},
				},
			},
		},
		{
			Name:        "name_piece",
			Description: "Give the completed piece an evocative title. Call after signing, before marking done.",
			InputSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{"title": map[string]any{"type": "string"}},
				"required":   []string{"title"},
			},
		},
		{
			Name:        "mark_piece_done",
			Description: "Signal that the current piece is complete.",
			InputSchema: map[string]any{"type": "object", "properties": map[string]any{}},
		},
	}
}
