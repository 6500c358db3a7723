// Package registry manages the lifecycle of active workspaces:
// on-demand activation with a single loader per user, idle
// deactivation after a grace period, pause-on-last-disconnect /
// resume-on-first-reconnect, and shutdown of everything at exit.
package registry

import (
	"context"
	"sync"
	"time"

	"github.com/fawa-io/monocanvas/internal/agent"
	"github.com/fawa-io/monocanvas/internal/blobstore"
	"github.com/fawa-io/monocanvas/internal/connset"
	"github.com/fawa-io/monocanvas/internal/dispatcher"
	"github.com/fawa-io/monocanvas/internal/fwlog"
	"github.com/fawa-io/monocanvas/internal/model"
	"github.com/fawa-io/monocanvas/internal/orchestrator"
	"github.com/fawa-io/monocanvas/internal/ratelimit"
	"github.com/fawa-io/monocanvas/internal/toolhandlers"
	"github.com/fawa-io/monocanvas/internal/workspace"
)

// ActiveWorkspace bundles the runtime components of one activated
// workspace: in-memory state, connection fan-out, the orchestrator
// loop, and its dispatcher.
type ActiveWorkspace struct {
	State      *workspace.State
	Conns      *connset.Set
	Orch       *orchestrator.Orchestrator
	Dispatcher *dispatcher.Dispatcher

	cancel context.CancelFunc
	done   chan struct{}

	timerMu   sync.Mutex
	idleTimer *time.Timer
}

// Options configures the registry at construction.
type Options struct {
	WorkspaceRoot     string
	MaxWorkspaceBytes int64
	MaxPendingStrokes int
	MaxConnsPerUser   int
	IdleGracePeriod   time.Duration

	Orchestrator orchestrator.Config

	// SessionFactory mints one agent session per activated workspace.
	SessionFactory func(userID string) agent.Session
	// Images and Refs are handed to every orchestrator; either may be
	// nil when imagine() is unconfigured.
	Images  toolhandlers.ImageProvider
	Refs    blobstore.Store
	Limiter ratelimit.Limiter
}

// Registry is the process-wide map of active workspaces. Its lock is
// held only for map and loading-set updates — never across workspace
// I/O (spec.md §5).
type Registry struct {
	opts Options

	mu         sync.Mutex
	cond       *sync.Cond
	workspaces map[string]*ActiveWorkspace
	loading    map[string]struct{}
	shutdown   bool
}

// New builds an empty registry.
func New(opts Options) *Registry {
	r := &Registry{
		opts:       opts,
		workspaces: make(map[string]*ActiveWorkspace),
		loading:    make(map[string]struct{}),
	}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// GetOrActivate returns the user's active workspace, activating it
// (load state, build session and orchestrator, start the loop task) if
// needed. Concurrent callers for the same user wait for the single
// loader rather than racing a second load.
func (r *Registry) GetOrActivate(ctx context.Context, userID string) (*ActiveWorkspace, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	for {
		if r.shutdown {
			r.mu.Unlock()
			return nil, context.Canceled
		}
		if ws, ok := r.workspaces[userID]; ok {
			ws.cancelIdleTimer()
			r.mu.Unlock()
			return ws, nil
		}
		if _, busy := r.loading[userID]; !busy {
			break
		}
		r.cond.Wait()
	}
	r.loading[userID] = struct{}{}
	r.mu.Unlock()

	ws, err := r.activate(userID)

	r.mu.Lock()
	delete(r.loading, userID)
	if err == nil {
		r.workspaces[userID] = ws
	}
	r.cond.Broadcast()
	r.mu.Unlock()

	if err != nil {
		return nil, err
	}
	fwlog.Infof("workspace activated for user %s", userID)
	return ws, nil
}

// activate performs the slow path outside the registry lock.
func (r *Registry) activate(userID string) (*ActiveWorkspace, error) {
	state, err := workspace.LoadForUser(r.opts.WorkspaceRoot, userID, r.opts.MaxWorkspaceBytes, r.opts.MaxPendingStrokes)
	if err != nil {
		return nil, err
	}

	conns := connset.New(userID, r.opts.MaxConnsPerUser)
	session := r.opts.SessionFactory(userID)
	orch := orchestrator.New(state, conns, session, r.opts.Images, r.opts.Refs, r.opts.Orchestrator)
	disp := dispatcher.New(state, conns, orch, r.opts.Limiter)

	loopCtx, cancel := context.WithCancel(context.Background())
	ws := &ActiveWorkspace{
		State:      state,
		Conns:      conns,
		Orch:       orch,
		Dispatcher: disp,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	go func() {
		defer close(ws.done)
		orch.Run(loopCtx)
	}()
	return ws, nil
}

// OnConnect runs the first-connect policy after a connection has been
// admitted: cancel any pending idle deactivation and auto-resume
// unless the user paused the agent themselves (I7). This covers both
// the disconnect-pause reconnect and a freshly loaded workspace, which
// starts paused with no reason until its first connection arrives.
func (r *Registry) OnConnect(ws *ActiveWorkspace) {
	ws.cancelIdleTimer()
	if ws.State.PauseReason() == model.PauseUser {
		return
	}
	if ws.State.Status() == model.StatusPaused {
		fwlog.Infof("user %s: connection arrived, auto-resuming", ws.State.UserID)
		ws.Orch.Resume()
	} else {
		ws.Orch.Wake()
	}
}

// OnDisconnect removes conn from the user's set; if it was the last
// connection, the agent is paused (unless the user paused it
// themselves, I7) and deactivation is scheduled after the grace
// period.
func (r *Registry) OnDisconnect(userID string, conn connset.Conn) {
	r.mu.Lock()
	ws, ok := r.workspaces[userID]
	r.mu.Unlock()
	if !ok {
		return
	}

	ws.Conns.Remove(conn)
	if !ws.Conns.IsEmpty() {
		return
	}

	ws.Orch.Pause(model.PauseDisconnect)

	grace := r.opts.IdleGracePeriod
	if grace <= 0 {
		grace = 5 * time.Minute
	}
	ws.timerMu.Lock()
	if ws.idleTimer != nil {
		ws.idleTimer.Stop()
	}
	ws.idleTimer = time.AfterFunc(grace, func() {
		r.deactivateIfIdle(userID)
	})
	ws.timerMu.Unlock()
	fwlog.Infof("user %s: last connection gone, deactivation in %s", userID, grace)
}

func (r *Registry) deactivateIfIdle(userID string) {
	r.mu.Lock()
	ws, ok := r.workspaces[userID]
	if !ok {
		r.mu.Unlock()
		return
	}
	if !ws.Conns.IsEmpty() {
		r.mu.Unlock()
		return
	}
	delete(r.workspaces, userID)
	r.mu.Unlock()

	ws.stop()
	fwlog.Infof("workspace deactivated for user %s (idle)", userID)
}

// ActiveCount returns how many workspaces are currently active.
func (r *Registry) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.workspaces)
}

// ShutdownAll deactivates every workspace: stop the loop, drain
// connections, final save.
func (r *Registry) ShutdownAll() {
	r.mu.Lock()
	r.shutdown = true
	all := make([]*ActiveWorkspace, 0, len(r.workspaces))
	for _, ws := range r.workspaces {
		all = append(all, ws)
	}
	r.workspaces = make(map[string]*ActiveWorkspace)
	r.cond.Broadcast()
	r.mu.Unlock()

	for _, ws := range all {
		ws.Conns.Drain()
		ws.stop()
	}
	fwlog.Infof("registry shut down: %d workspaces deactivated", len(all))
}

func (ws *ActiveWorkspace) cancelIdleTimer() {
	ws.timerMu.Lock()
	if ws.idleTimer != nil {
		ws.idleTimer.Stop()
		ws.idleTimer = nil
	}
	ws.timerMu.Unlock()
}

// stop cancels the loop task, waits for it to exit, and performs the
// final save.
func (ws *ActiveWorkspace) stop() {
	ws.cancelIdleTimer()
	ws.cancel()
	select {
	case <-ws.done:
	case <-time.After(5 * time.Second):
		fwlog.Warnf("user %s: orchestrator loop did not exit in time", ws.State.UserID)
	}
	ws.State.StopDebounce()
	if err := ws.State.Save(); err != nil {
		fwlog.Errorf("user %s: final save failed: %v", ws.State.UserID, err)
	}
}
