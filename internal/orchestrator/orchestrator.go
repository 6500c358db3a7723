// Package orchestrator runs the per-workspace control loop: wait for a
// wake signal (or the safety-net interval), run one agent turn,
// stream its events to the user's connections, gate on client-side
// animation after each drawn batch, and latch when a piece completes.
package orchestrator

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fawa-io/monocanvas/internal/agent"
	"github.com/fawa-io/monocanvas/internal/blobstore"
	"github.com/fawa-io/monocanvas/internal/connset"
	"github.com/fawa-io/monocanvas/internal/fwlog"
	"github.com/fawa-io/monocanvas/internal/model"
	"github.com/fawa-io/monocanvas/internal/rendering"
	"github.com/fawa-io/monocanvas/internal/strokepipeline"
	"github.com/fawa-io/monocanvas/internal/toolhandlers"
	"github.com/fawa-io/monocanvas/internal/workspace"
)

// Config carries the timing and pipeline knobs the loop needs
// (spec.md §6.4).
type Config struct {
	PathStepsPerUnit float64
	ClientFPS        float64
	AnimWaitBuffer   time.Duration
	MaxAnimWait      time.Duration
	AgentInterval    time.Duration
	ImageGenTimeout  time.Duration

	// MaxIterations is only advisory: it rides along in the iteration
	// broadcast so clients can show turn progress for the piece.
	MaxIterations int
}

// Orchestrator owns one workspace's agent loop. Exactly one Run
// goroutine per active workspace; every other method is safe to call
// from dispatcher/registry/transport goroutines.
type Orchestrator struct {
	state   *workspace.State
	conns   *connset.Set
	session agent.Session
	images  toolhandlers.ImageProvider
	refs    blobstore.Store
	cfg     Config

	// wake is the coalescing single-waiter notifier: a 1-capacity
	// channel drained before every wait (spec.md §9).
	wake chan struct{}

	abort          atomic.Bool
	pieceCompleted atomic.Bool

	mu             sync.Mutex
	nudges         []string
	iteration      int
	connectedStyle model.DrawingStyleType
}

// New wires an orchestrator to its workspace, connection set, and
// agent session. images and refs may be nil when the imagine tool is
// not configured.
func New(state *workspace.State, conns *connset.Set, session agent.Session, images toolhandlers.ImageProvider, refs blobstore.Store, cfg Config) *Orchestrator {
	if cfg.ClientFPS <= 0 {
		cfg.ClientFPS = 60
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 100
	}
	return &Orchestrator{
		state:   state,
		conns:   conns,
		session: session,
		images:  images,
		refs:    refs,
		cfg:     cfg,
		wake:    make(chan struct{}, 1),
	}
}

// Wake nudges the loop to consider running a turn now. Multiple calls
// before the loop observes one coalesce into a single wake.
func (o *Orchestrator) Wake() {
	select {
	case o.wake <- struct{}{}:
	default:
	}
}

// Nudge queues a short user suggestion for the next turn's prompt and
// wakes the loop. A nudge also clears the piece-completed latch: the
// user asking for more is an explicit way out of the latched state.
func (o *Orchestrator) Nudge(text string) {
	o.mu.Lock()
	o.nudges = append(o.nudges, text)
	o.mu.Unlock()
	o.pieceCompleted.Store(false)
	o.Wake()
}

// Pause stops the loop from starting new turns. Per I7 a disconnect
// pause never overwrites an existing pause (in particular a user
// pause survives disconnect/reconnect cycles).
func (o *Orchestrator) Pause(reason model.PauseReason) {
	if reason == model.PauseDisconnect && o.Paused() {
		return
	}
	o.state.SetPauseReason(reason)
	o.state.SetStatus(model.StatusPaused)
	if err := o.state.Save(); err != nil {
		fwlog.Errorf("user %s: saving workspace after pause: %v", o.state.UserID, err)
	}
	o.conns.Broadcast(model.NewPausedMessage(true, reason))
	o.conns.Broadcast(model.NewStatusMessage(model.StatusPaused))
}

// Resume clears any pause and wakes the loop.
func (o *Orchestrator) Resume() {
	o.state.SetPauseReason(model.PauseNone)
	o.state.SetStatus(model.StatusIdle)
	if err := o.state.Save(); err != nil {
		fwlog.Errorf("user %s: saving workspace after resume: %v", o.state.UserID, err)
	}
	o.conns.Broadcast(model.NewPausedMessage(false, model.PauseNone))
	o.conns.Broadcast(model.NewStatusMessage(model.StatusIdle))
	o.Wake()
}

// Paused reports whether the agent is paused for any reason.
func (o *Orchestrator) Paused() bool {
	return o.state.Status() == model.StatusPaused || o.state.PauseReason() != model.PauseNone
}

// AbortTurn asks an in-flight turn to stop at its next event and
// prevents any late batch from that turn being queued. Set by the
// dispatcher for clear and new_canvas.
func (o *Orchestrator) AbortTurn() {
	o.abort.Store(true)
}

// PieceCompleted reports whether the loop is latched after
// mark_piece_done.
func (o *Orchestrator) PieceCompleted() bool {
	return o.pieceCompleted.Load()
}

// ClearCompleted releases the piece-completed latch (new_canvas path).
func (o *Orchestrator) ClearCompleted() {
	o.pieceCompleted.Store(false)
}

// Run is the loop task. It returns when ctx is canceled; the final
// save is the registry's responsibility.
func (o *Orchestrator) Run(ctx context.Context) {
	interval := o.cfg.AgentInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-o.wake:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		case <-timer.C:
		}
		// Drain a wake that raced the timer so the next wait starts
		// clean.
		select {
		case <-o.wake:
		default:
		}
		timer.Reset(interval)

		if o.conns.IsEmpty() {
			continue
		}
		if o.Paused() {
			continue
		}
		if o.pieceCompleted.Load() {
			continue
		}
		o.runTurn(ctx)
	}
}

func (o *Orchestrator) runTurn(ctx context.Context) {
	o.abort.Store(false)

	o.mu.Lock()
	o.iteration++
	iteration := o.iteration
	nudges := o.nudges
	o.nudges = nil
	o.mu.Unlock()

	canvas := o.state.Canvas()

	if err := o.ensureConnected(ctx, canvas.DrawingStyle); err != nil {
		fwlog.Errorf("user %s: agent session connect failed: %v", o.state.UserID, err)
		o.broadcastError("agent unavailable", err)
		return
	}

	o.setStatus(model.StatusThinking)
	o.conns.Broadcast(model.IterationMessage{Type: "iteration", Current: iteration, Max: o.cfg.MaxIterations})

	prompt := o.composePrompt(canvas, nudges)
	parts := []agent.Part{agent.TextPart{Text: prompt}}
	if png, err := rendering.Snapshot(canvas); err == nil {
		parts = append(parts, agent.ImagePart{MediaType: "image/png", Data: png})
	} else {
		fwlog.Warnf("user %s: canvas snapshot failed: %v", o.state.UserID, err)
	}

	if err := o.session.Query(ctx, agent.Message{Role: agent.RoleUser, Parts: parts}); err != nil {
		fwlog.Errorf("user %s: agent query failed: %v", o.state.UserID, err)
		o.broadcastError("agent query failed", err)
		o.setStatus(model.StatusError)
		return
	}

	events, err := o.session.ReceiveResponse(ctx)
	if err != nil {
		fwlog.Errorf("user %s: agent stream failed: %v", o.state.UserID, err)
		o.broadcastError("agent stream failed", err)
		o.setStatus(model.StatusError)
		return
	}

	var monologue strings.Builder
	for ev := range events {
		if o.abort.Load() {
			fwlog.Infof("user %s: turn aborted, discarding remaining events", o.state.UserID)
			break
		}
		switch ev.Kind {
		case agent.EventTextDelta, agent.EventTextBlock:
			if ev.Text == "" {
				continue
			}
			monologue.WriteString(ev.Text)
			o.conns.Broadcast(model.NewThinkingDeltaMessage(ev.Text, iteration))
		case agent.EventToolUse:
			o.setStatus(model.StatusExecuting)
			o.conns.Broadcast(model.CodeExecutionMessage{
				Type: "code_execution", Status: "started",
				ToolName: ev.ToolUse.Name, ToolInput: ev.ToolUse.Input,
				Iteration: iteration,
			})
		case agent.EventToolResult:
			rc := 0
			if ev.Result != nil && ev.Result.IsError {
				rc = 1
			}
			o.conns.Broadcast(model.CodeExecutionMessage{
				Type: "code_execution", Status: "completed",
				Stdout:     truncate(resultText(ev.Result), 2000),
				ReturnCode: &rc, Iteration: iteration,
			})
		case agent.EventSystem:
			// informational only
		case agent.EventError:
			fwlog.Errorf("user %s: agent turn error: %v", o.state.UserID, ev.Err)
			o.broadcastError("agent error", ev.Err)
			o.setStatus(model.StatusError)
			return
		case agent.EventResult:
			if ev.Done && !o.pieceCompleted.Load() {
				o.completePiece()
			}
		}
	}

	if m := monologue.String(); m != "" && !o.abort.Load() {
		o.state.SetMonologue(m)
		o.state.SaveDebounced(2 * time.Second)
	}

	if !o.Paused() && o.state.Status() != model.StatusError {
		o.setStatus(model.StatusIdle)
	}
}

// onDraw is the draw callback invoked by tool handlers after a drawing
// tool validated its paths (SPEC_FULL §4.6 step 4). It expands,
// interpolates, queues, announces, and then sleeps out the draw-gate.
func (o *Orchestrator) onDraw(ctx context.Context, paths []model.Path, done bool) error {
	if o.abort.Load() {
		fwlog.Infof("user %s: dropping batch from aborted turn (%d paths)", o.state.UserID, len(paths))
		return nil
	}

	if len(paths) > 0 {
		o.setStatus(model.StatusDrawing)

		canvas := o.state.Canvas()
		var expanded []model.Path
		for _, p := range paths {
			expanded = append(expanded, strokepipeline.Expand(p, canvas.DrawingStyle, float64(canvas.Width), float64(canvas.Height))...)
		}
		entries, totalPoints := strokepipeline.BuildBatch(expanded, 0, o.cfg.PathStepsPerUnit)
		batchID := o.state.QueueStrokes(entries)

		if o.abort.Load() {
			// The abort raced the queue append; undo it so the new
			// canvas starts with an empty pending queue.
			if err := o.state.ClearPending(); err != nil {
				fwlog.Errorf("user %s: clearing pending after abort: %v", o.state.UserID, err)
			}
			return nil
		}

		o.conns.Broadcast(model.NewAgentStrokesReadyMessage(len(paths), batchID, o.state.PieceNumber()))
		o.sleepDrawGate(ctx, totalPoints)
	}

	if done {
		o.completePiece()
	}
	return nil
}

// sleepDrawGate blocks the turn for as long as the client needs to
// animate totalPoints, so the agent cannot outrun rendering and the
// pending queue stays bounded.
func (o *Orchestrator) sleepDrawGate(ctx context.Context, totalPoints int) {
	waitMS := float64(totalPoints)*1000.0/o.cfg.ClientFPS + float64(o.cfg.AnimWaitBuffer.Milliseconds())
	if capMS := float64(o.cfg.MaxAnimWait.Milliseconds()); capMS > 0 && waitMS > capMS {
		waitMS = capMS
	}
	if waitMS <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(time.Duration(waitMS) * time.Millisecond):
	}
}

// completePiece latches the loop and persists the finished canvas to
// the gallery under the current piece number. piece_number itself only
// advances on a user-initiated new_canvas.
func (o *Orchestrator) completePiece() {
	o.pieceCompleted.Store(true)
	savedID, err := o.state.SaveToGallery()
	if err != nil {
		fwlog.Errorf("user %s: saving completed piece to gallery: %v", o.state.UserID, err)
	}
	o.conns.Broadcast(model.PieceStateMessage{Type: "piece_state", Number: o.state.PieceNumber(), Completed: true})
	if savedID != "" {
		if entries, err := o.state.ListGallery(); err == nil {
			o.conns.Broadcast(model.NewGalleryUpdateMessage(entries))
		}
	}
	fwlog.Infof("user %s: piece %d marked complete", o.state.UserID, o.state.PieceNumber())
}

func (o *Orchestrator) ensureConnected(ctx context.Context, style model.DrawingStyleType) error {
	o.mu.Lock()
	current := o.connectedStyle
	o.mu.Unlock()
	if current == style {
		return nil
	}

	opts := agent.ConnectOptions{
		SystemPrompt:     systemPrompt(style),
		Tools:            toolhandlers.Specs(),
		WorkingDirectory: o.state.Dir(),
		StreamPartial:    true,
	}
	if err := o.session.Connect(ctx, opts, o.toolHandlerMap()); err != nil {
		return err
	}
	o.mu.Lock()
	o.connectedStyle = style
	o.mu.Unlock()
	return nil
}

// toolHandlerMap adapts the typed toolhandlers.Dispatch into the
// string-keyed handler map the session contract wants.
func (o *Orchestrator) toolHandlerMap() map[string]agent.ToolHandler {
	handle := func(ctx context.Context, name string, input map[string]any) ([]agent.Part, bool, error) {
		call, err := toolhandlers.CallFromWire(name, input)
		if err != nil {
			return []agent.Part{agent.TextPart{Text: err.Error()}}, true, nil
		}
		tc := o.toolContext()
		res, err := toolhandlers.Dispatch(ctx, tc, call)
		if err != nil {
			fwlog.Errorf("user %s: tool %s failed: %v", o.state.UserID, name, err)
			return []agent.Part{agent.TextPart{Text: err.Error()}}, true, nil
		}
		return partsFromResult(res), res.IsError, nil
	}

	m := make(map[string]agent.ToolHandler)
	for _, spec := range toolhandlers.Specs() {
		m[spec.Name] = handle
	}
	return m
}

// toolContext assembles the per-call tool state: no package-level
// mutable state anywhere in the tool layer (spec.md §9).
func (o *Orchestrator) toolContext() *toolhandlers.ToolContext {
	canvas := o.state.Canvas()
	tc := &toolhandlers.ToolContext{
		CanvasWidth:  float64(canvas.Width),
		CanvasHeight: float64(canvas.Height),
		DrawingStyle: canvas.DrawingStyle,
		AddStrokes: func(paths []model.Path) error {
			for _, p := range paths {
				if err := o.state.AddStroke(p); err != nil {
					return err
				}
			}
			return nil
		},
		OnDraw:   o.onDraw,
		SetTitle: o.state.SetTitle,
		Snapshot: func() ([]byte, error) {
			return rendering.Snapshot(o.state.Canvas())
		},
	}
	if o.images != nil {
		tc.Images = timeoutProvider{inner: o.images, timeout: o.cfg.ImageGenTimeout}
	}
	if dir, err := o.state.ReferencesDir(); err == nil {
		tc.ReferencesDir = dir
	}
	tc.SaveReference = o.saveReference
	return tc
}

func (o *Orchestrator) saveReference(name string, data []byte) (string, error) {
	if o.refs == nil {
		return "", nil
	}
	key := o.state.UserID + "/references/" + name + ".png"
	return o.refs.Put(context.Background(), key, data, "image/png")
}

// timeoutProvider bounds every imagine() call to the configured
// provider timeout (spec.md §5 cancellation rules).
type timeoutProvider struct {
	inner   toolhandlers.ImageProvider
	timeout time.Duration
}

func (p timeoutProvider) Generate(ctx context.Context, prompt string) ([]byte, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	return p.inner.Generate(ctx, prompt)
}

func (o *Orchestrator) setStatus(s model.AgentStatus) {
	if o.state.Status() == s {
		return
	}
	o.state.SetStatus(s)
	o.conns.Broadcast(model.NewStatusMessage(s))
}

func (o *Orchestrator) broadcastError(message string, err error) {
	details := ""
	if err != nil {
		details = err.Error()
	}
	o.conns.Broadcast(model.NewErrorMessage(message, details))
}

func resultText(r *agent.ToolResultPart) string {
	if r == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range r.Content {
		if t, ok := part.(agent.TextPart); ok {
			b.WriteString(t.Text)
		}
	}
	return b.String()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}

func partsFromResult(res toolhandlers.ToolResult) []agent.Part {
	parts := make([]agent.Part, 0, len(res.Content))
	for _, c := range res.Content {
		if c.IsImage {
			mt := c.MediaType
			if mt == "" {
				mt = "image/png"
			}
			parts = append(parts, agent.ImagePart{MediaType: mt, Data: c.ImagePNG})
			continue
		}
		parts = append(parts, agent.TextPart{Text: c.Text})
	}
	return parts
}
