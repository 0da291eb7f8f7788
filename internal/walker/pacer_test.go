package walker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacer_FirstWaitDoesNotBlock(t *testing.T) {
	p := NewPacer(time.Hour, 0)

	start := time.Now()
	require.NoError(t, p.Wait(context.Background()))
	assert.Less(t, time.Since(start), time.Second)
}

func TestPacer_WaitsIntervalAfterDone(t *testing.T) {
	p := NewPacer(50*time.Millisecond, 0)
	p.Done()

	start := time.Now()
	require.NoError(t, p.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestPacer_ElapsedIntervalDoesNotBlock(t *testing.T) {
	p := NewPacer(10*time.Millisecond, 0)
	p.Done()
	time.Sleep(20 * time.Millisecond)

	start := time.Now()
	require.NoError(t, p.Wait(context.Background()))
	assert.Less(t, time.Since(start), 10*time.Millisecond)
}

func TestPacer_Cancelled(t *testing.T) {
	p := NewPacer(time.Hour, 0)
	p.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := p.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPacer_AlreadyCancelled(t *testing.T) {
	p := NewPacer(0, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, p.Wait(ctx), context.Canceled)
}

func TestPacer_Ceiling(t *testing.T) {
	// 1200/min is one token every 50ms, burst 1.
	p := NewPacer(0, 1200)
	require.NotNil(t, p.limiter)

	require.NoError(t, p.Wait(context.Background()))
	start := time.Now()
	require.NoError(t, p.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestPacer_NoCeiling(t *testing.T) {
	p := NewPacer(time.Second, 0)
	assert.Nil(t, p.limiter)
	assert.Equal(t, time.Second, p.Interval())
}
