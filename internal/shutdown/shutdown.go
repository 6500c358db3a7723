// Package shutdown coordinates process termination: a shutting-down
// flag the transport layer consults to reject new connections, then the
// registered cleanup callbacks, run in registration order under one
// shared timeout. Connections are drained only by a registered callback
// (main registers the registry's ShutdownAll); there is no separate
// connection-drain or background-task phase.
package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/fawa-io/monocanvas/internal/fwlog"
)

// Coordinator sequences the shutdown steps from SPEC_FULL §4.9.
type Coordinator struct {
	Timeout time.Duration

	inProgress atomic.Bool

	mu       sync.Mutex
	cleanups []func(ctx context.Context)
}

// New builds a coordinator whose whole cleanup sequence is bounded by
// timeout (10s when timeout <= 0).
func New(timeout time.Duration) *Coordinator {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Coordinator{Timeout: timeout}
}

// InProgress reports whether shutdown has begun; the HTTP layer
// rejects new connections once it has.
func (c *Coordinator) InProgress() bool {
	return c.inProgress.Load()
}

// RegisterCleanup appends a cleanup callback. Callbacks run in
// registration order during Run; each gets the same bounded context.
func (c *Coordinator) RegisterCleanup(fn func(ctx context.Context)) {
	c.mu.Lock()
	c.cleanups = append(c.cleanups, fn)
	c.mu.Unlock()
}

// Notify returns a channel on which SIGTERM/SIGINT are delivered; the
// caller initiates shutdown when one arrives.
func (c *Coordinator) Notify() <-chan os.Signal {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	return sigCh
}

// Run executes the shutdown sequence once. Safe to call from multiple
// paths (signal handler, lifespan exit); only the first call does the
// work.
func (c *Coordinator) Run() {
	if !c.inProgress.CompareAndSwap(false, true) {
		return
	}
	fwlog.Info("shutdown initiated")

	ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
	defer cancel()

	c.mu.Lock()
	cleanups := make([]func(ctx context.Context), len(c.cleanups))
	copy(cleanups, c.cleanups)
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, fn := range cleanups {
			fn(ctx)
		}
	}()

	select {
	case <-done:
		fwlog.Info("shutdown complete")
	case <-ctx.Done():
		fwlog.Warn("shutdown timed out, exiting anyway")
	}
}
