package model

// ServerMessage is the closed set of server→client message payloads
// (spec.md §6.1), each carrying its own `type` discriminator so the
// transport layer can json.Marshal it directly.

type PenMessage struct {
	Type string  `json:"type"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Down bool    `json:"down"`
}

func NewPenMessage(x, y float64, down bool) PenMessage {
	return PenMessage{Type: "pen", X: x, Y: y, Down: down}
}

type StrokeCompleteMessage struct {
	Type string `json:"type"`
	Path Path   `json:"path"`
}

func NewStrokeCompleteMessage(p Path) StrokeCompleteMessage {
	return StrokeCompleteMessage{Type: "stroke_complete", Path: p}
}

type ThinkingDeltaMessage struct {
	Type      string `json:"type"`
	Text      string `json:"text"`
	Iteration int    `json:"iteration"`
}

func NewThinkingDeltaMessage(text string, iteration int) ThinkingDeltaMessage {
	return ThinkingDeltaMessage{Type: "thinking_delta", Text: text, Iteration: iteration}
}

type StatusMessage struct {
	Type   string      `json:"type"`
	Status AgentStatus `json:"status"`
}

func NewStatusMessage(s AgentStatus) StatusMessage {
	return StatusMessage{Type: "status", Status: s}
}

type PausedMessage struct {
	Type   string      `json:"type"`
	Paused bool        `json:"paused"`
	Reason PauseReason `json:"reason,omitempty"`
}

func NewPausedMessage(paused bool, reason PauseReason) PausedMessage {
	if reason == PauseNone {
		reason = ""
	}
	return PausedMessage{Type: "paused", Paused: paused, Reason: reason}
}

type ClearMessage struct {
	Type string `json:"type"`
}

func NewClearMessage() ClearMessage { return ClearMessage{Type: "clear"} }

type NewCanvasMessage struct {
	Type    string  `json:"type"`
	SavedID *string `json:"saved_id,omitempty"`
}

func NewNewCanvasMessage(savedID *string) NewCanvasMessage {
	return NewCanvasMessage{Type: "new_canvas", SavedID: savedID}
}

type GalleryUpdateMessage struct {
	Type     string         `json:"type"`
	Canvases []GalleryEntry `json:"canvases"`
}

func NewGalleryUpdateMessage(entries []GalleryEntry) GalleryUpdateMessage {
	return GalleryUpdateMessage{Type: "gallery_update", Canvases: entries}
}

type PieceCountMessage struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

func NewPieceCountMessage(count int) PieceCountMessage {
	return PieceCountMessage{Type: "piece_count", Count: count}
}

type PieceStateMessage struct {
	Type      string `json:"type"`
	Number    int    `json:"number"`
	Completed bool   `json:"completed"`
}

func NewPieceStateMessage(number int, completed bool) PieceStateMessage {
	return PieceStateMessage{Type: "piece_state", Number: number, Completed: completed}
}

type LoadCanvasMessage struct {
	Type         string              `json:"type"`
	Strokes      []Path              `json:"strokes"`
	PieceNumber  int                 `json:"piece_number"`
	DrawingStyle DrawingStyleType    `json:"drawing_style"`
	StyleConfig  *DrawingStyleConfig `json:"style_config,omitempty"`
}

type CodeExecutionMessage struct {
	Type       string         `json:"type"`
	Status     string         `json:"status"` // "started" | "completed"
	ToolName   string         `json:"tool_name,omitempty"`
	ToolInput  map[string]any `json:"tool_input,omitempty"`
	Stdout     string         `json:"stdout,omitempty"`
	Stderr     string         `json:"stderr,omitempty"`
	ReturnCode *int           `json:"return_code,omitempty"`
	Iteration  int            `json:"iteration"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func NewErrorMessage(message, details string) ErrorMessage {
	return ErrorMessage{Type: "error", Message: message, Details: details}
}

type IterationMessage struct {
	Type    string `json:"type"`
	Current int    `json:"current"`
	Max     int    `json:"max"`
}

// AgentStrokesReadyMessage notifies the client that a batch is ready
// to fetch via REST. PieceNumber guards against stale fetches racing a
// new_canvas (SPEC_FULL §3 supplement).
type AgentStrokesReadyMessage struct {
	Type        string `json:"type"`
	Count       int    `json:"count"`
	BatchID     int    `json:"batch_id"`
	PieceNumber int    `json:"piece_number"`
}

func NewAgentStrokesReadyMessage(count, batchID, pieceNumber int) AgentStrokesReadyMessage {
	return AgentStrokesReadyMessage{Type: "agent_strokes_ready", Count: count, BatchID: batchID, PieceNumber: pieceNumber}
}

type StyleChangeMessage struct {
	Type         string             `json:"type"`
	DrawingStyle DrawingStyleType   `json:"drawing_style"`
	StyleConfig  DrawingStyleConfig `json:"style_config"`
}

func NewStyleChangeMessage(t DrawingStyleType) StyleChangeMessage {
	return StyleChangeMessage{Type: "style_change", DrawingStyle: t, StyleConfig: StyleConfig(t)}
}

// InitMessage is sent once per new connection with the full current state.
type InitMessage struct {
	Type         string             `json:"type"`
	Strokes      []Path             `json:"strokes"`
	Gallery      []GalleryEntry     `json:"gallery"`
	Status       AgentStatus        `json:"status"`
	Paused       bool               `json:"paused"`
	PieceNumber  int                `json:"piece_number"`
	Monologue    string             `json:"monologue"`
	DrawingStyle DrawingStyleType   `json:"drawing_style"`
	StyleConfig  DrawingStyleConfig `json:"style_config"`
}

// ClientMessage is the raw inbound envelope; Type selects how the
// remaining fields are interpreted by the dispatcher.
type ClientMessage struct {
	Type         string           `json:"type"`
	Points       []Point          `json:"points,omitempty"`
	Text         string           `json:"text,omitempty"`
	Direction    *string          `json:"direction,omitempty"`
	CanvasID     string           `json:"canvas_id,omitempty"`
	DrawingStyle DrawingStyleType `json:"drawing_style,omitempty"`
}
