package services

import (
	"context"
	"testing"
	"time"

	"creator-subscription-api/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpirySweeper(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.ledger.OpenPending(ctx, "fan-1", "creator-1", 10000, "NGN", "ref1", "fake")
	require.NoError(t, err)
	_, err = env.ledger.Reconcile(ctx, "ref1", 10000)
	require.NoError(t, err)

	env.clock.Advance(validity + time.Hour)

	sweeper := NewExpirySweeper(env.ledger, 5*time.Millisecond)
	sweeper.Start()
	defer sweeper.Stop()

	assert.Eventually(t, func() bool {
		var stored models.Subscription
		if err := env.db.Where("payment_reference = ?", "ref1").First(&stored).Error; err != nil {
			return false
		}
		return stored.Status == models.SubscriptionExpired
	}, time.Second, 10*time.Millisecond)
}
