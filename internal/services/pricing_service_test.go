package services

import (
	"context"
	"testing"

	"creator-subscription-api/internal/database"
	"creator-subscription-api/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriceFor_Fallbacks(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	price, err := env.pricing.PriceFor(ctx, "creator-1")
	require.NoError(t, err)
	assert.Equal(t, int64(10000), price.Amount, "built-in default without a global row")

	_, err = env.pricing.SetGlobalPrice(ctx, 12000, "ngn")
	require.NoError(t, err)

	price, err = env.pricing.PriceFor(ctx, "creator-1")
	require.NoError(t, err)
	assert.Equal(t, int64(12000), price.Amount)
	assert.Equal(t, "NGN", price.Currency)
	assert.True(t, price.IsGlobal)

	_, err = env.pricing.SetCreatorPrice(ctx, "creator-1", 15000)
	require.NoError(t, err)

	price, err = env.pricing.PriceFor(ctx, "creator-1")
	require.NoError(t, err)
	assert.Equal(t, int64(15000), price.Amount)
	assert.False(t, price.IsGlobal)

	other, err := env.pricing.PriceFor(ctx, "creator-2")
	require.NoError(t, err)
	assert.Equal(t, int64(12000), other.Amount)
}

func TestSetCreatorPrice(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.pricing.SetCreatorPrice(ctx, "creator-1", 999)
	assert.ErrorIs(t, err, ErrPriceTooLow)

	first, err := env.pricing.SetCreatorPrice(ctx, "creator-1", 2000)
	require.NoError(t, err)
	second, err := env.pricing.SetCreatorPrice(ctx, "creator-1", 3000)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int64(3000), second.Amount)

	var count int64
	require.NoError(t, env.db.Model(&models.CreatorPrice{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestSetGlobalPrice_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.pricing.SetGlobalPrice(ctx, 10, "NGN")
	assert.ErrorIs(t, err, ErrPriceTooLow)

	_, err = env.pricing.SetGlobalPrice(ctx, 5000, "NAIRA")
	assert.ErrorIs(t, err, ErrInvalidRequest)

	price, err := env.pricing.SetGlobalPrice(ctx, 5000, "")
	require.NoError(t, err)
	assert.Equal(t, "NGN", price.Currency)

	again, err := env.pricing.SetGlobalPrice(ctx, 6000, "USD")
	require.NoError(t, err)
	assert.Equal(t, price.ID, again.ID)

	stored, err := database.GetGlobalPrice(env.db)
	require.NoError(t, err)
	assert.Equal(t, int64(6000), stored.Amount)
	assert.Equal(t, "USD", stored.Currency)
}

func TestCreatorRateAppliesToNewActivations(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	rate := 0.9
	_, err := env.pricing.SetCreatorRate(ctx, "creator-1", &rate)
	require.NoError(t, err)

	// Changing the fee later keeps the rate override
	_, err = env.pricing.SetCreatorPrice(ctx, "creator-1", 20000)
	require.NoError(t, err)

	resolved, err := env.pricing.RevenueRate(nil, "creator-1")
	require.NoError(t, err)
	assert.Equal(t, 0.9, resolved)

	_, err = env.ledger.OpenPending(ctx, "fan-1", "creator-1", 20000, "NGN", "ref1", "fake")
	require.NoError(t, err)
	sub, err := env.ledger.Reconcile(ctx, "ref1", 20000)
	require.NoError(t, err)

	earning, err := env.earnings.GetBySubscription(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(18000), earning.Amount)
	assert.Equal(t, 0.9, earning.PercentageRate)

	// Clearing the override leaves booked earnings alone
	_, err = env.pricing.SetCreatorRate(ctx, "creator-1", nil)
	require.NoError(t, err)

	resolved, err = env.pricing.RevenueRate(nil, "creator-1")
	require.NoError(t, err)
	assert.Equal(t, 0.85, resolved)

	earning, err = env.earnings.GetBySubscription(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.9, earning.PercentageRate)
}

func TestSetCreatorRate_Validation(t *testing.T) {
	env := newTestEnv(t)

	bad := 1.2
	_, err := env.pricing.SetCreatorRate(context.Background(), "creator-1", &bad)
	assert.ErrorIs(t, err, ErrInvalidRate)
}
