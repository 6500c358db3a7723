package shutdown

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRunExecutesCleanupsInOrder(t *testing.T) {
	c := New(time.Second)
	var order []int
	c.RegisterCleanup(func(context.Context) { order = append(order, 1) })
	c.RegisterCleanup(func(context.Context) { order = append(order, 2) })

	c.Run()

	assert.Equal(t, []int{1, 2}, order)
	assert.True(t, c.InProgress())
}

func TestRunIsIdempotent(t *testing.T) {
	c := New(time.Second)
	calls := 0
	c.RegisterCleanup(func(context.Context) { calls++ })

	c.Run()
	c.Run()

	assert.Equal(t, 1, calls)
}

func TestRunBoundsSlowCleanup(t *testing.T) {
	c := New(50 * time.Millisecond)
	c.RegisterCleanup(func(ctx context.Context) {
		select {
		case <-ctx.Done():
		case <-time.After(5 * time.Second):
		}
	})

	start := time.Now()
	c.Run()
	assert.Less(t, time.Since(start), time.Second)
}
