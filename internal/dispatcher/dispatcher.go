// Package dispatcher routes one validated client message to one
// workspace operation, broadcasts the consequential state changes,
// and wakes the orchestrator when appropriate (SPEC_FULL §4.7).
// Per-message failures are answered on the offending connection only;
// they never tear down the dispatcher or the connection.
package dispatcher

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/fawa-io/monocanvas/internal/apperror"
	"github.com/fawa-io/monocanvas/internal/connset"
	"github.com/fawa-io/monocanvas/internal/fwlog"
	"github.com/fawa-io/monocanvas/internal/model"
	"github.com/fawa-io/monocanvas/internal/orchestrator"
	"github.com/fawa-io/monocanvas/internal/ratelimit"
	"github.com/fawa-io/monocanvas/internal/strokepipeline"
	"github.com/fawa-io/monocanvas/internal/workspace"
)

// RuleStroke names the human-stroke rate-limit rule the dispatcher
// consults before accepting a stroke message.
const RuleStroke = "stroke"

// Dispatcher binds one workspace's state, fan-out, orchestrator and
// the shared rate limiter.
type Dispatcher struct {
	state   *workspace.State
	conns   *connset.Set
	orch    *orchestrator.Orchestrator
	limiter ratelimit.Limiter
}

// New builds a dispatcher for one active workspace. limiter may be nil
// (no stroke rate limiting, used by some tests).
func New(state *workspace.State, conns *connset.Set, orch *orchestrator.Orchestrator, limiter ratelimit.Limiter) *Dispatcher {
	return &Dispatcher{state: state, conns: conns, orch: orch, limiter: limiter}
}

// Handle decodes and executes one inbound client frame. Errors are
// reported back on conn; the connection stays open.
func (d *Dispatcher) Handle(ctx context.Context, conn connset.Conn, raw []byte) {
	var msg model.ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		d.replyError(conn, "malformed message", err)
		return
	}

	var err error
	switch msg.Type {
	case "stroke":
		err = d.handleStroke(ctx, msg)
	case "nudge":
		err = d.handleNudge(msg)
	case "clear":
		err = d.handleClear()
	case "new_canvas":
		err = d.handleNewCanvas(msg)
	case "load_canvas":
		err = d.handleLoadCanvas(msg)
	case "pause":
		d.orch.Pause(model.PauseUser)
	case "resume":
		d.handleResume(msg)
	case "set_style":
		err = d.handleSetStyle(msg)
	default:
		fwlog.Warnf("user %s: unknown message type %q", d.state.UserID, msg.Type)
		d.replyError(conn, "unknown message type: "+msg.Type, nil)
		return
	}

	if err != nil {
		fwlog.Warnf("user %s: %s failed: %v", d.state.UserID, msg.Type, err)
		d.replyError(conn, msg.Type+" failed", err)
	}
}

func (d *Dispatcher) handleStroke(ctx context.Context, msg model.ClientMessage) error {
	if d.limiter != nil {
		if err := d.limiter.Allow(ctx, d.state.UserID, RuleStroke); err != nil {
			return err
		}
	}

	canvas := d.state.Canvas()
	p := model.Path{Type: model.PathPolyline, Points: msg.Points, Author: model.AuthorHuman}
	if len(msg.Points) == 1 {
		// A tap: degenerate stroke, duplicate the point so the path
		// meets the polyline minimum.
		p.Points = []model.Point{msg.Points[0], msg.Points[0]}
	}
	validated, err := strokepipeline.ValidateAndClamp(p, float64(canvas.Width), float64(canvas.Height))
	if err != nil {
		return err
	}
	if err := d.state.AddStroke(validated); err != nil {
		return err
	}
	d.conns.Broadcast(model.NewStrokeCompleteMessage(validated))
	return nil
}

func (d *Dispatcher) handleNudge(msg model.ClientMessage) error {
	if msg.Text == "" {
		return apperror.New(apperror.KindValidation, "nudge requires text")
	}
	d.orch.Nudge(msg.Text)
	return nil
}

// handleClear is new_canvas minus gallery persistence: abort any turn
// in flight, drop the pending queue, empty the canvas. piece_number is
// untouched and nothing is written to the gallery.
func (d *Dispatcher) handleClear() error {
	d.orch.AbortTurn()
	if err := d.state.ClearPending(); err != nil {
		return err
	}
	if err := d.state.ClearCanvas(); err != nil {
		return err
	}
	d.conns.Broadcast(model.NewClearMessage())
	return nil
}

func (d *Dispatcher) handleNewCanvas(msg model.ClientMessage) error {
	d.orch.AbortTurn()

	if msg.DrawingStyle != "" {
		if err := validStyle(msg.DrawingStyle); err != nil {
			return err
		}
	}

	savedID, err := d.state.NewCanvas()
	if err != nil {
		return err
	}

	if msg.DrawingStyle != "" {
		if changed, err := d.state.SetDrawingStyle(msg.DrawingStyle); err != nil {
			return err
		} else if changed {
			d.conns.Broadcast(model.NewStyleChangeMessage(msg.DrawingStyle))
		}
	}

	var saved *string
	if savedID != "" {
		saved = &savedID
	}
	d.conns.Broadcast(model.NewNewCanvasMessage(saved))
	if entries, err := d.state.ListGallery(); err == nil {
		d.conns.Broadcast(model.NewGalleryUpdateMessage(entries))
	}
	d.conns.Broadcast(model.PieceStateMessage{Type: "piece_state", Number: d.state.PieceNumber(), Completed: false})

	if msg.Direction != nil && *msg.Direction != "" {
		d.orch.Nudge(*msg.Direction)
	}
	d.orch.ClearCompleted()
	d.orch.Resume()
	return nil
}

func (d *Dispatcher) handleLoadCanvas(msg model.ClientMessage) error {
	n, ok := workspace.ParsePieceNumber(msg.CanvasID)
	if !ok {
		return apperror.New(apperror.KindValidation, "invalid canvas_id: "+msg.CanvasID)
	}
	strokes, style, err := d.state.LoadFromGallery(n)
	if err != nil {
		return err
	}
	if strokes == nil {
		return apperror.New(apperror.KindNotFound, "no gallery piece "+msg.CanvasID)
	}
	d.orch.AbortTurn()
	if err := d.state.ReplaceStrokes(strokes, style); err != nil {
		return err
	}
	cfg := model.StyleConfig(style)
	d.conns.Broadcast(model.LoadCanvasMessage{
		Type: "load_canvas", Strokes: strokes, PieceNumber: n,
		DrawingStyle: style, StyleConfig: &cfg,
	})
	return nil
}

func (d *Dispatcher) handleResume(msg model.ClientMessage) {
	if msg.Direction != nil && *msg.Direction != "" {
		d.orch.Nudge(*msg.Direction)
	}
	d.orch.Resume()
}

func (d *Dispatcher) handleSetStyle(msg model.ClientMessage) error {
	if err := validStyle(msg.DrawingStyle); err != nil {
		return err
	}
	changed, err := d.state.SetDrawingStyle(msg.DrawingStyle)
	if err != nil {
		return err
	}
	if changed {
		d.conns.Broadcast(model.NewStyleChangeMessage(msg.DrawingStyle))
	}
	return nil
}

func validStyle(s model.DrawingStyleType) error {
	switch s {
	case model.StylePlotter, model.StylePaint:
		return nil
	default:
		return apperror.New(apperror.KindValidation, "unknown drawing_style: "+string(s))
	}
}

func (d *Dispatcher) replyError(conn connset.Conn, message string, err error) {
	details := ""
	var ae *apperror.Error
	if errors.As(err, &ae) {
		details = ae.Message
	} else if err != nil {
		details = err.Error()
	}
	if serr := d.conns.SendTo(conn, model.NewErrorMessage(message, details)); serr != nil {
		fwlog.Warnf("user %s: error reply failed: %v", d.state.UserID, serr)
	}
}
