// Package ratelimit bounds how often a user's commands reach the
// dispatcher (the dispatcher checks its stroke rule), grounded on the sliding
// counter shape in nevindra-oasis's rateLimitProvider but adapted from
// a blocking client-side budget into a non-blocking admit/reject check
// suitable for a server handling untrusted connections: every command
// either proceeds immediately or is rejected with apperror.KindRateLimited
// (SPEC_FULL §4.7), never blocks the caller.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fawa-io/monocanvas/internal/apperror"
	"github.com/fawa-io/monocanvas/internal/storage"
)

// Rule caps one command category to n occurrences per window.
type Rule struct {
	Name   string
	Limit  int
	Window time.Duration
}

// Limiter admits or rejects a command for a user against a set of
// named rules.
type Limiter interface {
	// Allow reports whether userID may perform the named command now.
	// Returns apperror.KindRateLimited (Kind) when the budget is exhausted.
	Allow(ctx context.Context, userID, rule string) error
}

// storageLimiter implements Limiter as a fixed-window counter per
// (userID, rule), backed by a storage.Storage counter store — Redis in
// multi-replica deployments, in-process otherwise (SPEC_FULL §4.7).
type storageLimiter struct {
	store storage.Storage
	rules map[string]Rule
}

// New builds a Limiter from a set of rules keyed by rule name.
func New(store storage.Storage, rules ...Rule) Limiter {
	m := make(map[string]Rule, len(rules))
	for _, r := range rules {
		m[r.Name] = r
	}
	return &storageLimiter{store: store, rules: m}
}

func (l *storageLimiter) Allow(ctx context.Context, userID, rule string) error {
	r, ok := l.rules[rule]
	if !ok || r.Limit <= 0 {
		return nil
	}
	key := fmt.Sprintf("ratelimit:%s:%s:%d", rule, userID, windowBucket(r.Window))
	n, err := l.store.Incr(ctx, key, r.Window)
	if err != nil {
		return apperror.Wrap(apperror.KindFatal, "rate limit store unavailable", err)
	}
	if n > int64(r.Limit) {
		return apperror.New(apperror.KindRateLimited, fmt.Sprintf("%s: limit of %d per %s exceeded", rule, r.Limit, r.Window))
	}
	return nil
}

// windowBucket quantizes now into the current fixed window, so that
// concurrent callers in the same window share one counter key.
func windowBucket(window time.Duration) int64 {
	if window <= 0 {
		return 0
	}
	return time.Now().UnixNano() / int64(window)
}

// memoryStriped is a single-mutex, dependency-free Limiter used when no
// storage.Storage is configured at all (tests, single-shot tools).
type memoryStriped struct {
	mu    sync.Mutex
	rules map[string]Rule
	seen  map[string][]time.Time
}

// NewInMemory builds a Limiter requiring no external store, tracking a
// sliding window of timestamps per (userID, rule) directly in memory —
// same bookkeeping shape as nevindra-oasis's rpmWindow.
func NewInMemory(rules ...Rule) Limiter {
	m := make(map[string]Rule, len(rules))
	for _, r := range rules {
		m[r.Name] = r
	}
	return &memoryStriped{rules: m, seen: make(map[string][]time.Time)}
}

func (l *memoryStriped) Allow(_ context.Context, userID, rule string) error {
	r, ok := l.rules[rule]
	if !ok || r.Limit <= 0 {
		return nil
	}
	key := rule + ":" + userID
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	cutoff := now.Add(-r.Window)
	window := pruneBefore(l.seen[key], cutoff)
	if len(window) >= r.Limit {
		l.seen[key] = window
		return apperror.New(apperror.KindRateLimited, fmt.Sprintf("%s: limit of %d per %s exceeded", rule, r.Limit, r.Window))
	}
	l.seen[key] = append(window, now)
	return nil
}

func pruneBefore(ts []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(ts) && ts[i].Before(cutoff) {
		i++
	}
	return ts[i:]
}
