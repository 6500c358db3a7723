package orchestrator

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fawa-io/monocanvas/internal/agent/faketext"
	"github.com/fawa-io/monocanvas/internal/connset"
	"github.com/fawa-io/monocanvas/internal/model"
	"github.com/fawa-io/monocanvas/internal/workspace"
)

// recordingConn captures every broadcast frame for assertions.
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

func (c *recordingConn) messagesOfType(msgType string) []map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []map[string]any
	for _, f := range c.frames {
		var m map[string]any
		if json.Unmarshal(f, &m) == nil && m["type"] == msgType {
			out = append(out, m)
		}
	}
	return out
}

func testConfig() Config {
	return Config{
		PathStepsPerUnit: 0.5,
		ClientFPS:        1e9, // draw-gate effectively instant in tests
		AgentInterval:    time.Hour,
	}
}

func newTestOrchestrator(t *testing.T, turns []faketext.Turn) (*Orchestrator, *workspace.State, *recordingConn) {
	t.Helper()
	state, err := workspace.LoadForUser(t.TempDir(), uuid.NewString(), 0, 100)
	require.NoError(t, err)
	conns := connset.New(state.UserID, 0)
	conn := &recordingConn{}
	require.True(t, conns.Add(conn))
	o := New(state, conns, faketext.New(turns), nil, nil, testConfig())
	return o, state, conn
}

func drawPathsInput() map[string]any {
	return map[string]any{
		"paths": []any{
			map[string]any{
				"type": "polyline",
				"points": []any{
					map[string]any{"x": 10.0, "y": 10.0},
					map[string]any{"x": 200.0, "y": 150.0},
				},
			},
		},
	}
}

func TestRunTurnDrawsAndQueuesBatch(t *testing.T) {
	o, state, conn := newTestOrchestrator(t, []faketext.Turn{
		{Thinking: "sketching", ToolCalls: []faketext.ToolCall{{Name: "draw_paths", Input: drawPathsInput()}}},
	})
	state.SetStatus(model.StatusIdle)
	state.SetPauseReason(model.PauseNone)

	o.runTurn(context.Background())

	assert.Len(t, state.Canvas().Strokes, 1)
	assert.Equal(t, 1, state.PendingStrokeCount())

	ready := conn.messagesOfType("agent_strokes_ready")
	require.Len(t, ready, 1)
	assert.Equal(t, float64(1), ready[0]["batch_id"])
	assert.Equal(t, float64(1), ready[0]["count"])

	deltas := conn.messagesOfType("thinking_delta")
	require.NotEmpty(t, deltas)
	assert.Equal(t, "sketching", deltas[0]["text"])
}

func TestBrushExpandedPaintBatch(t *testing.T) {
	input := drawPathsInput()
	input["paths"].([]any)[0].(map[string]any)["brush"] = "oil_round"
	o, state, conn := newTestOrchestrator(t, []faketext.Turn{
		{ToolCalls: []faketext.ToolCall{{Name: "draw_paths", Input: input}}},
	})
	state.SetStatus(model.StatusIdle)
	state.SetPauseReason(model.PauseNone)
	_, err := state.SetDrawingStyle(model.StylePaint)
	require.NoError(t, err)

	o.runTurn(context.Background())

	// oil_round carries 4 bristles: main stroke + 4 sub-strokes.
	assert.Equal(t, 5, state.PendingStrokeCount())
	popped := state.PopStrokes()
	require.Len(t, popped, 5)
	for _, e := range popped {
		assert.Equal(t, 1, e.BatchID)
	}
	ready := conn.messagesOfType("agent_strokes_ready")
	require.Len(t, ready, 1)
	// count is the pre-expansion path count.
	assert.Equal(t, float64(1), ready[0]["count"])
}

func TestMarkPieceDoneLatchesAndSavesToGallery(t *testing.T) {
	o, state, conn := newTestOrchestrator(t, []faketext.Turn{
		{ToolCalls: []faketext.ToolCall{
			{Name: "draw_paths", Input: drawPathsInput()},
			{Name: "mark_piece_done", Input: map[string]any{}},
		}, Done: true},
	})
	state.SetStatus(model.StatusIdle)
	state.SetPauseReason(model.PauseNone)

	o.runTurn(context.Background())

	assert.True(t, o.PieceCompleted())
	gallery, err := state.ListGallery()
	require.NoError(t, err)
	require.Len(t, gallery, 1)
	// The latch persists the piece under the current number without
	// advancing it; only new_canvas increments.
	assert.Equal(t, 0, state.PieceNumber())

	states := conn.messagesOfType("piece_state")
	require.NotEmpty(t, states)
	assert.Equal(t, true, states[len(states)-1]["completed"])
}

func TestUserPauseSurvivesDisconnectPause(t *testing.T) {
	o, state, _ := newTestOrchestrator(t, nil)

	o.Pause(model.PauseUser)
	require.Equal(t, model.PauseUser, state.PauseReason())

	o.Pause(model.PauseDisconnect)
	assert.Equal(t, model.PauseUser, state.PauseReason())
}

func TestDisconnectPauseThenResumeClears(t *testing.T) {
	o, state, conn := newTestOrchestrator(t, nil)
	state.SetPauseReason(model.PauseNone)
	state.SetStatus(model.StatusIdle)

	o.Pause(model.PauseDisconnect)
	assert.Equal(t, model.PauseDisconnect, state.PauseReason())

	o.Resume()
	assert.Equal(t, model.PauseNone, state.PauseReason())
	assert.False(t, o.Paused())

	paused := conn.messagesOfType("paused")
	require.Len(t, paused, 2)
	assert.Equal(t, true, paused[0]["paused"])
	assert.Equal(t, false, paused[1]["paused"])
}

func TestAbortedTurnDiscardsBatch(t *testing.T) {
	o, state, conn := newTestOrchestrator(t, nil)

	o.AbortTurn()
	err := o.onDraw(context.Background(), []model.Path{
		{Type: model.PathLine, Points: []model.Point{{X: 0}, {X: 10}}},
	}, false)
	require.NoError(t, err)

	assert.Equal(t, 0, state.PendingStrokeCount())
	assert.Empty(t, conn.messagesOfType("agent_strokes_ready"))
}

func TestNudgeClearsCompletedLatchAndWakes(t *testing.T) {
	o, _, _ := newTestOrchestrator(t, nil)
	o.pieceCompleted.Store(true)

	o.Nudge("try more blue")

	assert.False(t, o.PieceCompleted())
	select {
	case <-o.wake:
	default:
		t.Fatal("expected a pending wake after nudge")
	}
}

func TestWakeCoalesces(t *testing.T) {
	o, _, _ := newTestOrchestrator(t, nil)
	o.Wake()
	o.Wake()
	o.Wake()

	<-o.wake
	select {
	case <-o.wake:
		t.Fatal("wake should coalesce to a single signal")
	default:
	}
}

func TestRunLoopSkipsTurnsWhileLatched(t *testing.T) {
	o, state, conn := newTestOrchestrator(t, []faketext.Turn{
		{ToolCalls: []faketext.ToolCall{{Name: "draw_paths", Input: drawPathsInput()}}},
	})
	state.SetStatus(model.StatusIdle)
	state.SetPauseReason(model.PauseNone)
	o.pieceCompleted.Store(true)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		o.Run(ctx)
	}()
	o.Wake()
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	assert.Empty(t, conn.messagesOfType("agent_strokes_ready"))
	assert.Equal(t, 0, state.PendingStrokeCount())
}
