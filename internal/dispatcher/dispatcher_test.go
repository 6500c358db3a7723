package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fawa-io/monocanvas/internal/agent/faketext"
	"github.com/fawa-io/monocanvas/internal/connset"
	"github.com/fawa-io/monocanvas/internal/model"
	"github.com/fawa-io/monocanvas/internal/orchestrator"
	"github.com/fawa-io/monocanvas/internal/ratelimit"
	"github.com/fawa-io/monocanvas/internal/workspace"
)

type recordingConn struct {
	mu     sync.Mutex
	frames [][]byte
}

func (c *recordingConn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	c.frames = append(c.frames, cp)
	return nil
}

func (c *recordingConn) Close() error       { return nil }
func (c *recordingConn) RemoteAddr() string { return "test" }

func (c *recordingConn) countOfType(msgType string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, f := range c.frames {
		var m map[string]any
		if json.Unmarshal(f, &m) == nil && m["type"] == msgType {
			n++
		}
	}
	return n
}

func newTestDispatcher(t *testing.T, limiter ratelimit.Limiter) (*Dispatcher, *workspace.State, *orchestrator.Orchestrator, *recordingConn) {
	t.Helper()
	state, err := workspace.LoadForUser(t.TempDir(), uuid.NewString(), 0, 100)
	require.NoError(t, err)
	state.SetStatus(model.StatusIdle)
	conns := connset.New(state.UserID, 0)
	conn := &recordingConn{}
	require.True(t, conns.Add(conn))
	orch := orchestrator.New(state, conns, faketext.New(nil), nil, nil, orchestrator.Config{
		ClientFPS: 1e9, AgentInterval: time.Hour,
	})
	d := New(state, conns, orch, limiter)
	return d, state, orch, conn
}

func frame(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func TestStrokeAppendsHumanPathAndBroadcasts(t *testing.T) {
	d, state, _, conn := newTestDispatcher(t, nil)

	d.Handle(context.Background(), conn, frame(t, map[string]any{
		"type":   "stroke",
		"points": []model.Point{{X: 1, Y: 2}, {X: 30, Y: 40}},
	}))

	strokes := state.Canvas().Strokes
	require.Len(t, strokes, 1)
	assert.Equal(t, model.AuthorHuman, strokes[0].Author)
	assert.Equal(t, 1, conn.countOfType("stroke_complete"))
}

func TestStrokeRateLimitRejectsExcess(t *testing.T) {
	limiter := ratelimit.NewInMemory(ratelimit.Rule{Name: RuleStroke, Limit: 3, Window: time.Minute})
	d, state, _, conn := newTestDispatcher(t, limiter)

	for i := 0; i < 4; i++ {
		d.Handle(context.Background(), conn, frame(t, map[string]any{
			"type":   "stroke",
			"points": []model.Point{{X: float64(i), Y: 0}, {X: float64(i) + 1, Y: 1}},
		}))
	}

	assert.Len(t, state.Canvas().Strokes, 3)
	assert.Equal(t, 3, conn.countOfType("stroke_complete"))
	assert.Equal(t, 1, conn.countOfType("error"))
}

func TestStrokeRejectsNonFinitePoints(t *testing.T) {
	d, state, _, conn := newTestDispatcher(t, nil)

	// NaN is not representable in JSON; a raw frame with a huge but
	// parseable value is clamped, while a malformed frame errors.
	d.Handle(context.Background(), conn, []byte(`{"type":"stroke","points":[{"x":nan,"y":0}]}`))

	assert.Empty(t, state.Canvas().Strokes)
	assert.Equal(t, 1, conn.countOfType("error"))
}

func TestClearEmptiesCanvasAndPending(t *testing.T) {
	d, state, _, conn := newTestDispatcher(t, nil)
	require.NoError(t, state.AddStroke(model.Path{Type: model.PathLine, Points: []model.Point{{X: 0}, {X: 1}}}))
	state.QueueStrokes([]model.PendingStroke{{Path: model.Path{Type: model.PathLine}}})

	d.Handle(context.Background(), conn, frame(t, map[string]any{"type": "clear"}))

	assert.Empty(t, state.Canvas().Strokes)
	assert.Equal(t, 0, state.PendingStrokeCount())
	assert.Equal(t, 1, conn.countOfType("clear"))
}

func TestClearTwiceIsIdempotent(t *testing.T) {
	d, state, _, conn := newTestDispatcher(t, nil)

	d.Handle(context.Background(), conn, frame(t, map[string]any{"type": "clear"}))
	d.Handle(context.Background(), conn, frame(t, map[string]any{"type": "clear"}))

	assert.Empty(t, state.Canvas().Strokes)
	assert.Equal(t, 0, conn.countOfType("error"))
}

func TestNewCanvasSavesClearsAndResumes(t *testing.T) {
	d, state, orch, conn := newTestDispatcher(t, nil)
	require.NoError(t, state.AddStroke(model.Path{Type: model.PathLine, Points: []model.Point{{X: 0}, {X: 1}}}))
	state.QueueStrokes([]model.PendingStroke{{Path: model.Path{Type: model.PathLine}}})
	orch.Pause(model.PauseUser)

	d.Handle(context.Background(), conn, frame(t, map[string]any{
		"type": "new_canvas", "direction": "paint a storm",
	}))

	assert.Empty(t, state.Canvas().Strokes)
	assert.Equal(t, 0, state.PendingStrokeCount())
	assert.Equal(t, 1, state.PieceNumber())
	assert.False(t, orch.Paused())
	assert.False(t, orch.PieceCompleted())
	assert.Equal(t, 1, conn.countOfType("new_canvas"))
	assert.Equal(t, 1, conn.countOfType("gallery_update"))

	gallery, err := state.ListGallery()
	require.NoError(t, err)
	assert.Len(t, gallery, 1)
}

func TestNewCanvasOnEmptyCanvasSkipsGallery(t *testing.T) {
	d, state, _, conn := newTestDispatcher(t, nil)

	d.Handle(context.Background(), conn, frame(t, map[string]any{"type": "new_canvas"}))

	assert.Equal(t, 1, state.PieceNumber())
	gallery, err := state.ListGallery()
	require.NoError(t, err)
	assert.Empty(t, gallery)
}

func TestLoadCanvasRestoresGalleryPiece(t *testing.T) {
	d, state, _, conn := newTestDispatcher(t, nil)
	require.NoError(t, state.AddStroke(model.Path{Type: model.PathLine, Points: []model.Point{{X: 0}, {X: 1}}}))
	d.Handle(context.Background(), conn, frame(t, map[string]any{"type": "new_canvas"}))
	require.Empty(t, state.Canvas().Strokes)

	d.Handle(context.Background(), conn, frame(t, map[string]any{
		"type": "load_canvas", "canvas_id": "piece_000000",
	}))

	assert.Len(t, state.Canvas().Strokes, 1)
	assert.Equal(t, 1, conn.countOfType("load_canvas"))
}

func TestLoadCanvasMissingPieceReturnsError(t *testing.T) {
	d, _, _, conn := newTestDispatcher(t, nil)

	d.Handle(context.Background(), conn, frame(t, map[string]any{
		"type": "load_canvas", "canvas_id": "piece_000042",
	}))

	assert.Equal(t, 1, conn.countOfType("error"))
}

func TestPauseThenResume(t *testing.T) {
	d, state, orch, conn := newTestDispatcher(t, nil)

	d.Handle(context.Background(), conn, frame(t, map[string]any{"type": "pause"}))
	assert.Equal(t, model.PauseUser, state.PauseReason())
	assert.True(t, orch.Paused())

	d.Handle(context.Background(), conn, frame(t, map[string]any{"type": "resume"}))
	assert.Equal(t, model.PauseNone, state.PauseReason())
	assert.False(t, orch.Paused())
}

func TestSetStyleBroadcastsExactlyOncePerChange(t *testing.T) {
	d, state, _, conn := newTestDispatcher(t, nil)

	d.Handle(context.Background(), conn, frame(t, map[string]any{"type": "set_style", "drawing_style": "paint"}))
	d.Handle(context.Background(), conn, frame(t, map[string]any{"type": "set_style", "drawing_style": "paint"}))

	assert.Equal(t, model.StylePaint, state.Canvas().DrawingStyle)
	assert.Equal(t, 1, conn.countOfType("style_change"))
}

func TestSetStyleRejectsUnknownStyle(t *testing.T) {
	d, state, _, conn := newTestDispatcher(t, nil)

	d.Handle(context.Background(), conn, frame(t, map[string]any{"type": "set_style", "drawing_style": "crayon"}))

	assert.Equal(t, model.StylePlotter, state.Canvas().DrawingStyle)
	assert.Equal(t, 1, conn.countOfType("error"))
}

func TestUnknownTypeRepliesErrorAndKeepsConnection(t *testing.T) {
	d, _, _, conn := newTestDispatcher(t, nil)

	d.Handle(context.Background(), conn, frame(t, map[string]any{"type": "dance"}))
	assert.Equal(t, 1, conn.countOfType("error"))

	// Connection still usable afterwards.
	d.Handle(context.Background(), conn, frame(t, map[string]any{
		"type":   "stroke",
		"points": []model.Point{{X: 0, Y: 0}, {X: 5, Y: 5}},
	}))
	assert.Equal(t, 1, conn.countOfType("stroke_complete"))
}

func TestNudgeRequiresText(t *testing.T) {
	d, _, _, conn := newTestDispatcher(t, nil)

	d.Handle(context.Background(), conn, frame(t, map[string]any{"type": "nudge"}))
	assert.Equal(t, 1, conn.countOfType("error"))

	d.Handle(context.Background(), conn, frame(t, map[string]any{"type": "nudge", "text": "more birds"}))
	assert.Equal(t, 1, conn.countOfType("error"))
}

func TestStrokeSequenceKeepsInsertionOrder(t *testing.T) {
	d, state, _, conn := newTestDispatcher(t, nil)

	for i := 0; i < 5; i++ {
		d.Handle(context.Background(), conn, frame(t, map[string]any{
			"type":   "stroke",
			"points": []model.Point{{X: float64(i * 10), Y: 0}, {X: float64(i*10) + 5, Y: 5}},
		}))
	}

	strokes := state.Canvas().Strokes
	require.Len(t, strokes, 5)
	for i, s := range strokes {
		assert.Equal(t, float64(i*10), s.Points[0].X, fmt.Sprintf("stroke %d out of order", i))
	}
}
