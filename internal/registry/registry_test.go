package registry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fawa-io/monocanvas/internal/agent"
	"github.com/fawa-io/monocanvas/internal/agent/faketext"
	"github.com/fawa-io/monocanvas/internal/model"
	"github.com/fawa-io/monocanvas/internal/orchestrator"
)

type nopConn struct{}

func (nopConn) Send([]byte) error  { return nil }
func (nopConn) Close() error       { return nil }
func (nopConn) RemoteAddr() string { return "test" }

func newTestRegistry(t *testing.T, grace time.Duration) *Registry {
	t.Helper()
	return New(Options{
		WorkspaceRoot:   t.TempDir(),
		IdleGracePeriod: grace,
		Orchestrator: orchestrator.Config{
			ClientFPS: 1e9, AgentInterval: time.Hour,
		},
		SessionFactory: func(string) agent.Session { return faketext.New(nil) },
	})
}

func TestGetOrActivateCreatesThenReuses(t *testing.T) {
	r := newTestRegistry(t, time.Minute)
	userID := uuid.NewString()

	ws1, err := r.GetOrActivate(context.Background(), userID)
	require.NoError(t, err)
	require.NotNil(t, ws1)
	assert.Equal(t, 1, r.ActiveCount())

	ws2, err := r.GetOrActivate(context.Background(), userID)
	require.NoError(t, err)
	assert.Same(t, ws1, ws2)
	assert.Equal(t, 1, r.ActiveCount())
}

func TestGetOrActivateRejectsInvalidUserID(t *testing.T) {
	r := newTestRegistry(t, time.Minute)
	_, err := r.GetOrActivate(context.Background(), "../../etc/passwd")
	require.Error(t, err)
	assert.Equal(t, 0, r.ActiveCount())
}

func TestConcurrentActivationSingleLoader(t *testing.T) {
	r := newTestRegistry(t, time.Minute)
	userID := uuid.NewString()

	const n = 8
	results := make([]*ActiveWorkspace, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ws, err := r.GetOrActivate(context.Background(), userID)
			assert.NoError(t, err)
			results[i] = ws
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		assert.Same(t, results[0], results[i])
	}
	assert.Equal(t, 1, r.ActiveCount())
}

func TestLastDisconnectPausesWithDisconnectReason(t *testing.T) {
	r := newTestRegistry(t, time.Minute)
	userID := uuid.NewString()
	ws, err := r.GetOrActivate(context.Background(), userID)
	require.NoError(t, err)

	c := nopConn{}
	require.True(t, ws.Conns.Add(c))
	ws.State.SetPauseReason(model.PauseNone)
	ws.State.SetStatus(model.StatusIdle)

	r.OnDisconnect(userID, c)

	assert.Equal(t, model.PauseDisconnect, ws.State.PauseReason())
	assert.Equal(t, model.StatusPaused, ws.State.Status())
}

func TestUserPauseNotOverwrittenByDisconnect(t *testing.T) {
	r := newTestRegistry(t, time.Minute)
	userID := uuid.NewString()
	ws, err := r.GetOrActivate(context.Background(), userID)
	require.NoError(t, err)

	c := nopConn{}
	require.True(t, ws.Conns.Add(c))
	ws.Orch.Pause(model.PauseUser)

	r.OnDisconnect(userID, c)

	assert.Equal(t, model.PauseUser, ws.State.PauseReason())
}

func TestReconnectAutoResumesOnlyDisconnectPause(t *testing.T) {
	r := newTestRegistry(t, time.Minute)
	userID := uuid.NewString()
	ws, err := r.GetOrActivate(context.Background(), userID)
	require.NoError(t, err)

	ws.Orch.Pause(model.PauseDisconnect)
	r.OnConnect(ws)
	assert.Equal(t, model.PauseNone, ws.State.PauseReason())

	ws.Orch.Pause(model.PauseUser)
	r.OnConnect(ws)
	assert.Equal(t, model.PauseUser, ws.State.PauseReason())
}

func TestFreshWorkspaceResumesOnFirstConnect(t *testing.T) {
	r := newTestRegistry(t, time.Minute)
	ws, err := r.GetOrActivate(context.Background(), uuid.NewString())
	require.NoError(t, err)
	// Loaded workspaces start paused with no reason until someone
	// actually connects.
	require.Equal(t, model.StatusPaused, ws.State.Status())

	r.OnConnect(ws)

	assert.Equal(t, model.PauseNone, ws.State.PauseReason())
	assert.NotEqual(t, model.StatusPaused, ws.State.Status())
}

func TestIdleDeactivationAfterGracePeriod(t *testing.T) {
	r := newTestRegistry(t, 30*time.Millisecond)
	userID := uuid.NewString()
	ws, err := r.GetOrActivate(context.Background(), userID)
	require.NoError(t, err)

	c := nopConn{}
	require.True(t, ws.Conns.Add(c))
	r.OnDisconnect(userID, c)

	require.Eventually(t, func() bool { return r.ActiveCount() == 0 },
		2*time.Second, 10*time.Millisecond)
}

func TestReconnectBeforeGraceCancelsDeactivation(t *testing.T) {
	r := newTestRegistry(t, 80*time.Millisecond)
	userID := uuid.NewString()
	ws, err := r.GetOrActivate(context.Background(), userID)
	require.NoError(t, err)

	c := nopConn{}
	require.True(t, ws.Conns.Add(c))
	r.OnDisconnect(userID, c)

	// Reconnect before the timer fires.
	ws2, err := r.GetOrActivate(context.Background(), userID)
	require.NoError(t, err)
	require.True(t, ws2.Conns.Add(c))
	r.OnConnect(ws2)

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 1, r.ActiveCount())
}

func TestShutdownAllDeactivatesEverything(t *testing.T) {
	r := newTestRegistry(t, time.Minute)
	for i := 0; i < 3; i++ {
		_, err := r.GetOrActivate(context.Background(), uuid.NewString())
		require.NoError(t, err)
	}
	require.Equal(t, 3, r.ActiveCount())

	r.ShutdownAll()
	assert.Equal(t, 0, r.ActiveCount())

	_, err := r.GetOrActivate(context.Background(), uuid.NewString())
	assert.Error(t, err)
}
