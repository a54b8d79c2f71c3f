package services

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"creator-subscription-api/internal/config"
	"creator-subscription-api/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestOpenPending(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	sub, err := env.ledger.OpenPending(ctx, "fan-1", "creator-1", 10000, "NGN", "ref1", "fake")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionPending, sub.Status)
	assert.Equal(t, int64(10000), sub.AmountPaid)
	assert.NotEmpty(t, sub.ID)
	assert.Nil(t, sub.ExpiresAt)

	t.Run("duplicate reference", func(t *testing.T) {
		_, err := env.ledger.OpenPending(ctx, "fan-2", "creator-1", 10000, "NGN", "ref1", "fake")
		assert.ErrorIs(t, err, ErrDuplicateReference)
	})

	t.Run("non-positive amount", func(t *testing.T) {
		_, err := env.ledger.OpenPending(ctx, "fan-1", "creator-1", 0, "NGN", "ref-zero", "fake")
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})

	t.Run("self subscription", func(t *testing.T) {
		_, err := env.ledger.OpenPending(ctx, "creator-1", "creator-1", 10000, "NGN", "ref-self", "fake")
		assert.ErrorIs(t, err, ErrSelfSubscription)
	})
}

func TestReconcile_ActivatesAndBooksEarning(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.ledger.OpenPending(ctx, "fan-1", "creator-1", 10000, "NGN", "ref1", "fake")
	require.NoError(t, err)

	sub, err := env.ledger.Reconcile(ctx, "ref1", 10000)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionActive, sub.Status)
	require.NotNil(t, sub.ExpiresAt)
	assert.True(t, sub.ExpiresAt.Equal(testStart.Add(validity)))

	earning, err := env.earnings.GetBySubscription(ctx, sub.ID)
	require.NoError(t, err)
	require.NotNil(t, earning)
	assert.Equal(t, int64(8500), earning.Amount)
	assert.Equal(t, int64(10000), earning.GrossAmount)
	assert.Equal(t, 0.85, earning.PercentageRate)
	assert.Equal(t, models.EarningPending, earning.Status)
	assert.Equal(t, "creator-1", earning.OwnerID)
}

func TestReconcile_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	var inTx, afterCommit int32
	env.bus.SubscribeInTx(func(ctx context.Context, tx *gorm.DB, event models.SubscriptionActivated) error {
		atomic.AddInt32(&inTx, 1)
		return nil
	})
	env.bus.SubscribeAfterCommit(func(ctx context.Context, event models.SubscriptionActivated) {
		atomic.AddInt32(&afterCommit, 1)
	})

	_, err := env.ledger.OpenPending(ctx, "fan-1", "creator-1", 10000, "NGN", "ref1", "fake")
	require.NoError(t, err)

	first, err := env.ledger.Reconcile(ctx, "ref1", 10000)
	require.NoError(t, err)

	env.clock.Advance(time.Hour)
	second, err := env.ledger.Reconcile(ctx, "ref1", 10000)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.True(t, first.ExpiresAt.Equal(*second.ExpiresAt), "second reconcile must not extend expiry")
	assert.Equal(t, int32(1), atomic.LoadInt32(&inTx))
	assert.Equal(t, int32(1), atomic.LoadInt32(&afterCommit))
}

func TestReconcile_Concurrent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	var activations int32
	env.bus.SubscribeAfterCommit(func(ctx context.Context, event models.SubscriptionActivated) {
		atomic.AddInt32(&activations, 1)
	})

	sub, err := env.ledger.OpenPending(ctx, "fan-1", "creator-1", 10000, "NGN", "ref2", "fake")
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.ledger.Reconcile(ctx, "ref2", 10000)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&activations))

	var count int64
	require.NoError(t, env.db.Model(&models.Earning{}).Where("subscription_id = ?", sub.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestReconcile_UnknownReference(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.ledger.Reconcile(context.Background(), "missing", 10000)
	assert.ErrorIs(t, err, ErrUnknownReference)
}

func TestReconcile_AmountMismatch(t *testing.T) {
	t.Run("log policy proceeds with stored amount", func(t *testing.T) {
		env := newTestEnv(t)
		ctx := context.Background()

		_, err := env.ledger.OpenPending(ctx, "fan-1", "creator-1", 10000, "NGN", "ref1", "fake")
		require.NoError(t, err)

		sub, err := env.ledger.Reconcile(ctx, "ref1", 9900)
		require.NoError(t, err)
		assert.Equal(t, models.SubscriptionActive, sub.Status)

		earning, err := env.earnings.GetBySubscription(ctx, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(8500), earning.Amount)
	})

	t.Run("reject policy leaves subscription pending", func(t *testing.T) {
		env := newTestEnv(t)
		env.ledger.mismatchPolicy = config.MismatchPolicyReject
		ctx := context.Background()

		_, err := env.ledger.OpenPending(ctx, "fan-1", "creator-1", 10000, "NGN", "ref1", "fake")
		require.NoError(t, err)

		_, err = env.ledger.Reconcile(ctx, "ref1", 9900)
		assert.ErrorIs(t, err, ErrAmountMismatch)

		sub, err := env.ledger.GetByReference(ctx, "ref1")
		require.NoError(t, err)
		assert.Equal(t, models.SubscriptionPending, sub.Status)
	})
}

func TestReconcile_HandlerFailureRollsBack(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.bus.SubscribeInTx(func(ctx context.Context, tx *gorm.DB, event models.SubscriptionActivated) error {
		return assert.AnError
	})

	_, err := env.ledger.OpenPending(ctx, "fan-1", "creator-1", 10000, "NGN", "ref1", "fake")
	require.NoError(t, err)

	_, err = env.ledger.Reconcile(ctx, "ref1", 10000)
	assert.ErrorIs(t, err, assert.AnError)

	sub, err := env.ledger.GetByReference(ctx, "ref1")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionPending, sub.Status)

	var count int64
	require.NoError(t, env.db.Model(&models.Earning{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestQueryActiveFor_ExpiresWithoutWrite(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.ledger.OpenPending(ctx, "fan-1", "creator-1", 10000, "NGN", "ref1", "fake")
	require.NoError(t, err)
	_, err = env.ledger.Reconcile(ctx, "ref1", 10000)
	require.NoError(t, err)

	active, err := env.ledger.QueryActiveFor(ctx, "fan-1", "creator-1")
	require.NoError(t, err)
	require.NotNil(t, active)

	env.clock.Advance(validity + time.Second)

	active, err = env.ledger.QueryActiveFor(ctx, "fan-1", "creator-1")
	require.NoError(t, err)
	assert.Nil(t, active)

	sub, err := env.ledger.GetByReference(ctx, "ref1")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionExpired, sub.Status)

	var stored models.Subscription
	require.NoError(t, env.db.Where("payment_reference = ?", "ref1").First(&stored).Error)
	assert.Equal(t, models.SubscriptionActive, stored.Status, "expiry is derived at read time")
}

func TestQueryActiveFor_MostRecentActivation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.ledger.OpenPending(ctx, "fan-1", "creator-1", 10000, "NGN", "ref-old", "fake")
	require.NoError(t, err)
	_, err = env.ledger.Reconcile(ctx, "ref-old", 10000)
	require.NoError(t, err)

	env.clock.Advance(10 * 24 * time.Hour)

	_, err = env.ledger.OpenPending(ctx, "fan-1", "creator-1", 10000, "NGN", "ref-new", "fake")
	require.NoError(t, err)
	_, err = env.ledger.Reconcile(ctx, "ref-new", 10000)
	require.NoError(t, err)

	active, err := env.ledger.QueryActiveFor(ctx, "fan-1", "creator-1")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "ref-new", active.PaymentReference)

	none, err := env.ledger.QueryActiveFor(ctx, "fan-2", "creator-1")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestExpireLapsed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.ledger.OpenPending(ctx, "fan-1", "creator-1", 10000, "NGN", "ref-active", "fake")
	require.NoError(t, err)
	_, err = env.ledger.Reconcile(ctx, "ref-active", 10000)
	require.NoError(t, err)
	_, err = env.ledger.OpenPending(ctx, "fan-2", "creator-1", 10000, "NGN", "ref-pending", "fake")
	require.NoError(t, err)

	rows, err := env.ledger.ExpireLapsed(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), rows)

	env.clock.Advance(validity + time.Minute)

	rows, err = env.ledger.ExpireLapsed(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)

	var stored models.Subscription
	require.NoError(t, env.db.Where("payment_reference = ?", "ref-active").First(&stored).Error)
	assert.Equal(t, models.SubscriptionExpired, stored.Status)

	require.NoError(t, env.db.Where("payment_reference = ?", "ref-pending").First(&stored).Error)
	assert.Equal(t, models.SubscriptionPending, stored.Status, "pending subscriptions are never expired")

	// An expired record is never reactivated
	sub, err := env.ledger.Reconcile(ctx, "ref-active", 10000)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionExpired, sub.Status)
}

func TestListForSubscriberAndSubscribersOf(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for _, ref := range []string{"ref-a", "ref-b"} {
		_, err := env.ledger.OpenPending(ctx, "fan-1", "creator-"+ref, 10000, "NGN", ref, "fake")
		require.NoError(t, err)
	}
	_, err := env.ledger.Reconcile(ctx, "ref-a", 10000)
	require.NoError(t, err)

	subs, err := env.ledger.ListForSubscriber(ctx, "fan-1")
	require.NoError(t, err)
	assert.Len(t, subs, 2)

	subscribers, err := env.ledger.ListSubscribersOf(ctx, "creator-ref-a")
	require.NoError(t, err)
	require.Len(t, subscribers, 1)
	assert.Equal(t, "fan-1", subscribers[0].SubscriberID)

	subscribers, err = env.ledger.ListSubscribersOf(ctx, "creator-ref-b")
	require.NoError(t, err)
	assert.Empty(t, subscribers)
}
