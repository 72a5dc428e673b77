package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiterEnforcesMinimumInterval(t *testing.T) {
	l := NewLimiter(50 * time.Millisecond)
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx))
	start := time.Now()
	require.NoError(t, l.Wait(ctx))
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 40*time.Millisecond)
}

func TestBanBarrierMaxOfDeadlines(t *testing.T) {
	var b BanBarrier

	b.Raise(100 * time.Millisecond)
	first := b.Deadline()
	assert.False(t, first.IsZero())

	// A shorter raise must not move the deadline backward.
	b.Raise(10 * time.Millisecond)
	assert.Equal(t, first, b.Deadline())

	// A longer raise must move the deadline forward.
	b.Raise(500 * time.Millisecond)
	assert.True(t, b.Deadline().After(first))
}

func TestBanBarrierWaitBlocksUntilDeadline(t *testing.T) {
	var b BanBarrier
	b.Raise(30 * time.Millisecond)

	start := time.Now()
	err := b.Wait(context.Background())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestBanBarrierWaitRespectsContextCancellation(t *testing.T) {
	var b BanBarrier
	b.Raise(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := b.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBanBarrierWaitIsNoopWithoutActiveBan(t *testing.T) {
	var b BanBarrier
	start := time.Now()
	require.NoError(t, b.Wait(context.Background()))
	assert.Less(t, time.Since(start), 10*time.Millisecond)
}
