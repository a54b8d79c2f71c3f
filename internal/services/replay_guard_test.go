package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryReplayGuard(t *testing.T) {
	guard := NewMemoryReplayGuard(time.Hour)
	defer guard.Stop()
	ctx := context.Background()

	seen, err := guard.Processed(ctx, "stripe", "evt_1")
	require.NoError(t, err)
	assert.False(t, seen)

	seen, err = guard.Processed(ctx, "stripe", "evt_1")
	require.NoError(t, err)
	assert.False(t, seen, "looking an event up does not mark it")

	require.NoError(t, guard.MarkProcessed(ctx, "stripe", "evt_1"))
	seen, err = guard.Processed(ctx, "stripe", "evt_1")
	require.NoError(t, err)
	assert.True(t, seen)

	seen, err = guard.Processed(ctx, "flutterwave", "evt_1")
	require.NoError(t, err)
	assert.False(t, seen, "event ids are scoped per provider")

	require.NoError(t, guard.MarkProcessed(ctx, "stripe", ""))
	seen, err = guard.Processed(ctx, "stripe", "")
	require.NoError(t, err)
	assert.False(t, seen, "events without an id are never treated as replays")
}

func TestMemoryReplayGuard_Cleanup(t *testing.T) {
	guard := NewMemoryReplayGuard(time.Millisecond)
	defer guard.Stop()
	ctx := context.Background()

	require.NoError(t, guard.MarkProcessed(ctx, "stripe", "evt_1"))

	time.Sleep(5 * time.Millisecond)
	guard.cleanup()

	guard.mutex.Lock()
	remaining := len(guard.processedEvents)
	guard.mutex.Unlock()
	assert.Equal(t, 0, remaining)
}
