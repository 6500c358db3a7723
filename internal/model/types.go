// Package model defines the canvas data model shared by every
// monocanvas component: points, paths, brush presets, drawing styles,
// canvas/workspace state, and the closed set of WebSocket message
// types exchanged with clients.
package model

import "time"

// Point is a 2D coordinate. Out-of-range values are clamped to canvas
// bounds at ingest (see strokepipeline.ValidateAndClamp).
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PathType enumerates the drawable path kinds.
type PathType string

const (
	PathLine      PathType = "line"
	PathQuadratic PathType = "quadratic"
	PathCubic     PathType = "cubic"
	PathPolyline  PathType = "polyline"
	PathSVG       PathType = "svg"
)

// MinPoints returns the minimum point count required for non-svg kinds.
func (t PathType) MinPoints() int {
	switch t {
	case PathLine:
		return 2
	case PathPolyline:
		return 2
	case PathQuadratic:
		return 3
	case PathCubic:
		return 4
	default:
		return 0
	}
}

// Author distinguishes agent-drawn from human-drawn paths.
type Author string

const (
	AuthorAgent Author = "agent"
	AuthorHuman Author = "human"
)

// Path is a single drawable stroke.
type Path struct {
	Type   PathType `json:"type"`
	Points []Point  `json:"points,omitempty"`
	D      string   `json:"d,omitempty"`
	Author Author   `json:"author"`

	Color       *string  `json:"color,omitempty"`
	StrokeWidth *float64 `json:"stroke_width,omitempty"`
	Opacity     *float64 `json:"opacity,omitempty"`
	Brush       string   `json:"brush,omitempty"`
}

// EffectiveStyle resolves the concrete stroke style for this path given
// the active drawing style configuration, honoring plotter/paint
// capability rules (SPEC_FULL §3).
func (p Path) EffectiveStyle(cfg DrawingStyleConfig) StrokeStyle {
	def := cfg.AgentStroke
	if p.Author == AuthorHuman {
		def = cfg.HumanStroke
	}
	if cfg.Type == StylePlotter {
		return def
	}

	style := def
	if p.Color != nil && cfg.SupportsColor {
		style.Color = *p.Color
	}
	if p.StrokeWidth != nil && cfg.SupportsVariableWidth {
		style.StrokeWidth = *p.StrokeWidth
	}
	if p.Opacity != nil && cfg.SupportsOpacity {
		style.Opacity = *p.Opacity
	}
	return style
}

// DrawingStyleType enumerates the two rendering modes.
type DrawingStyleType string

const (
	StylePlotter DrawingStyleType = "plotter"
	StylePaint   DrawingStyleType = "paint"
)

// StrokeStyle carries resolved stroke rendering properties.
type StrokeStyle struct {
	Color          string  `json:"color"`
	StrokeWidth    float64 `json:"stroke_width"`
	Opacity        float64 `json:"opacity"`
	StrokeLinecap  string  `json:"stroke_linecap"`
	StrokeLinejoin string  `json:"stroke_linejoin"`
}

// DrawingStyleConfig defines the capabilities and defaults for a style mode.
type DrawingStyleConfig struct {
	Type        DrawingStyleType `json:"type"`
	Name        string           `json:"name"`
	Description string           `json:"description"`

	AgentStroke StrokeStyle `json:"agent_stroke"`
	HumanStroke StrokeStyle `json:"human_stroke"`

	SupportsColor         bool `json:"supports_color"`
	SupportsVariableWidth bool `json:"supports_variable_width"`
	SupportsOpacity       bool `json:"supports_opacity"`

	ColorPalette []string `json:"color_palette,omitempty"`
}

// PlotterStyle is the monochrome pen-plotter preset.
var PlotterStyle = DrawingStyleConfig{
	Type:        StylePlotter,
	Name:        "Plotter",
	Description: "Monochrome pen plotter style with crisp black lines",
	AgentStroke: StrokeStyle{Color: "#1a1a2e", StrokeWidth: 2.5, Opacity: 1.0, StrokeLinecap: "round", StrokeLinejoin: "round"},
	HumanStroke: StrokeStyle{Color: "#0066CC", StrokeWidth: 2.5, Opacity: 1.0, StrokeLinecap: "round", StrokeLinejoin: "round"},
}

// PaintStyle is the full-color expressive-brush preset.
var PaintStyle = DrawingStyleConfig{
	Type:                  StylePaint,
	Name:                  "Paint",
	Description:           "Full color painting style with expressive brush strokes",
	AgentStroke:           StrokeStyle{Color: "#1a1a2e", StrokeWidth: 8.0, Opacity: 0.85, StrokeLinecap: "round", StrokeLinejoin: "round"},
	HumanStroke:           StrokeStyle{Color: "#e94560", StrokeWidth: 8.0, Opacity: 0.85, StrokeLinecap: "round", StrokeLinejoin: "round"},
	SupportsColor:         true,
	SupportsVariableWidth: true,
	SupportsOpacity:       true,
	ColorPalette: []string{
		"#1a1a2e", "#e94560", "#7b68ee", "#4ecdc4", "#ffd93d",
		"#ff6b6b", "#4ade80", "#3b82f6", "#f97316", "#a855f7", "#ffffff",
	},
}

// StyleConfig looks up the configuration for a style type, defaulting
// to plotter for unknown values (see persisted-layout default rule).
func StyleConfig(t DrawingStyleType) DrawingStyleConfig {
	if t == StylePaint {
		return PaintStyle
	}
	return PlotterStyle
}

// AgentStatus enumerates the agent's externally visible status.
type AgentStatus string

const (
	StatusIdle      AgentStatus = "idle"
	StatusThinking  AgentStatus = "thinking"
	StatusExecuting AgentStatus = "executing"
	StatusDrawing   AgentStatus = "drawing"
	StatusPaused    AgentStatus = "paused"
	StatusError     AgentStatus = "error"
)

// PauseReason distinguishes why the agent is paused (I7).
type PauseReason string

const (
	PauseNone       PauseReason = "none"
	PauseUser       PauseReason = "user"
	PauseDisconnect PauseReason = "disconnect"
)

// CanvasState is the drawable surface for one workspace.
type CanvasState struct {
	Width        int              `json:"width"`
	Height       int              `json:"height"`
	Strokes      []Path           `json:"strokes"`
	DrawingStyle DrawingStyleType `json:"drawing_style"`
}

// PendingStroke is one entry in a workspace's pending-stroke queue
// (SPEC_FULL §3): a path snapshot plus its interpolated animation points,
// tagged with the batch it was queued under.
type PendingStroke struct {
	BatchID int     `json:"batch_id"`
	Path    Path    `json:"path"`
	Points  []Point `json:"points"`
}

// GalleryEntry is one immutable saved piece (I6).
type GalleryEntry struct {
	ID           string           `json:"id"`
	PieceNumber  int              `json:"piece_number"`
	Strokes      []Path           `json:"strokes,omitempty"`
	StrokeCount  int              `json:"stroke_count"`
	CreatedAt    time.Time        `json:"created_at"`
	DrawingStyle DrawingStyleType `json:"drawing_style"`
	Title        string           `json:"title,omitempty"`
}

// NumStrokes returns the entry's stroke count, preferring the cached
// value so index listings avoid loading full stroke lists.
func (g GalleryEntry) NumStrokes() int {
	if g.StrokeCount > 0 {
		return g.StrokeCount
	}
	return len(g.Strokes)
}
