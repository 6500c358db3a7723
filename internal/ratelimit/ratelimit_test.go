package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fawa-io/monocanvas/internal/apperror"
	"github.com/fawa-io/monocanvas/internal/storage"
)

func TestInMemoryAllowsUpToLimit(t *testing.T) {
	l := NewInMemory(Rule{Name: "stroke", Limit: 3, Window: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, l.Allow(ctx, "user-a", "stroke"))
	}
	err := l.Allow(ctx, "user-a", "stroke")
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindRateLimited))
}

func TestInMemoryIsolatesUsers(t *testing.T) {
	l := NewInMemory(Rule{Name: "stroke", Limit: 1, Window: time.Minute})
	ctx := context.Background()

	require.NoError(t, l.Allow(ctx, "user-a", "stroke"))
	require.NoError(t, l.Allow(ctx, "user-b", "stroke"))
	assert.Error(t, l.Allow(ctx, "user-a", "stroke"))
}

func TestInMemoryWindowSlides(t *testing.T) {
	l := NewInMemory(Rule{Name: "stroke", Limit: 1, Window: 20 * time.Millisecond})
	ctx := context.Background()

	require.NoError(t, l.Allow(ctx, "user-a", "stroke"))
	require.Error(t, l.Allow(ctx, "user-a", "stroke"))

	time.Sleep(30 * time.Millisecond)
	assert.NoError(t, l.Allow(ctx, "user-a", "stroke"))
}

func TestUnknownRulePasses(t *testing.T) {
	l := NewInMemory(Rule{Name: "stroke", Limit: 1, Window: time.Minute})
	assert.NoError(t, l.Allow(context.Background(), "user-a", "no-such-rule"))
}

func TestStorageBackedLimiterWithMemoryStore(t *testing.T) {
	l := New(storage.NewMemoryStorage(), Rule{Name: "stroke", Limit: 2, Window: time.Minute})
	ctx := context.Background()

	require.NoError(t, l.Allow(ctx, "user-a", "stroke"))
	require.NoError(t, l.Allow(ctx, "user-a", "stroke"))
	err := l.Allow(ctx, "user-a", "stroke")
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindRateLimited))
}

func TestStorageBackedLimiterWithRedisMock(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := storage.NewRedisStorageFromClient(db)
	l := New(store, Rule{Name: "stroke", Limit: 1, Window: time.Minute})
	ctx := context.Background()

	mock.ExpectTxPipeline()
	mock.Regexp().ExpectIncr(`ratelimit:stroke:user-a:.*`).SetVal(1)
	mock.Regexp().ExpectExpire(`ratelimit:stroke:user-a:.*`, time.Minute).SetVal(true)
	mock.ExpectTxPipelineExec()
	require.NoError(t, l.Allow(ctx, "user-a", "stroke"))

	mock.ExpectTxPipeline()
	mock.Regexp().ExpectIncr(`ratelimit:stroke:user-a:.*`).SetVal(2)
	mock.Regexp().ExpectExpire(`ratelimit:stroke:user-a:.*`, time.Minute).SetVal(true)
	mock.ExpectTxPipelineExec()
	err := l.Allow(ctx, "user-a", "stroke")
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindRateLimited))
}
