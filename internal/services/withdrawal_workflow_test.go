package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"creator-subscription-api/internal/database"
	"creator-subscription-api/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedEarning books an earning of exactly amount for the owner
func seedEarning(t *testing.T, env *testEnv, ownerID string, amount int64) *models.Earning {
	t.Helper()
	earning, err := env.earnings.RecordFromActivation(context.Background(), nil, models.SubscriptionActivated{
		SubscriptionID: uuid.NewString(),
		OwnerID:        ownerID,
		SubscriberID:   "fan-1",
		Amount:         amount,
		Currency:       "NGN",
	}, 1)
	require.NoError(t, err)
	return earning
}

func TestRecordFromActivation_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	event := models.SubscriptionActivated{
		SubscriptionID: "sub-1",
		OwnerID:        "creator-1",
		Amount:         10000,
		Currency:       "NGN",
	}

	first, err := env.earnings.RecordFromActivation(ctx, nil, event, 0.85)
	require.NoError(t, err)
	second, err := env.earnings.RecordFromActivation(ctx, nil, event, 0.85)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int64(8500), second.Amount)

	balance, err := env.earnings.PendingBalance(ctx, "creator-1")
	require.NoError(t, err)
	assert.Equal(t, int64(8500), balance)
}

func TestRecordFromActivation_Rounding(t *testing.T) {
	env := newTestEnv(t)

	earning, err := env.earnings.RecordFromActivation(context.Background(), nil, models.SubscriptionActivated{
		SubscriptionID: "sub-odd",
		OwnerID:        "creator-1",
		Amount:         1001,
	}, 0.85)
	require.NoError(t, err)
	// 1001 * 0.85 = 850.85
	assert.Equal(t, int64(851), earning.Amount)
}

func TestRecordFromActivation_InvalidRate(t *testing.T) {
	env := newTestEnv(t)

	for _, rate := range []float64{0, -0.1, 1.5} {
		_, err := env.earnings.RecordFromActivation(context.Background(), nil, models.SubscriptionActivated{
			SubscriptionID: "sub-1",
			OwnerID:        "creator-1",
			Amount:         1000,
		}, rate)
		assert.ErrorIs(t, err, ErrInvalidRate)
	}
}

func TestRequestWithdrawal_ClaimsWholeBalance(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	e1 := seedEarning(t, env, "creator-1", 3000)
	e2 := seedEarning(t, env, "creator-1", 2500)
	seedEarning(t, env, "creator-2", 9000)

	withdrawal, err := env.withdrawals.RequestWithdrawal(ctx, owner("creator-1"))
	require.NoError(t, err)
	assert.Equal(t, int64(5500), withdrawal.Amount)
	assert.Equal(t, models.WithdrawalPending, withdrawal.Status)
	assert.Equal(t, "creator-1@example.com", withdrawal.OwnerEmail)

	balance, err := env.earnings.PendingBalance(ctx, "creator-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)

	for _, id := range []string{e1.ID, e2.ID} {
		var earning models.Earning
		require.NoError(t, env.db.First(&earning, "id = ?", id).Error)
		assert.Equal(t, models.EarningPaid, earning.Status)
		require.NotNil(t, earning.WithdrawalID)
		assert.Equal(t, withdrawal.ID, *earning.WithdrawalID)
	}

	other, err := env.earnings.PendingBalance(ctx, "creator-2")
	require.NoError(t, err)
	assert.Equal(t, int64(9000), other, "other owners are untouched")

	_, err = env.withdrawals.RequestWithdrawal(ctx, owner("creator-1"))
	assert.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestRequestWithdrawal_BelowMinimum(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	seedEarning(t, env, "creator-1", 4999)

	_, err := env.withdrawals.RequestWithdrawal(ctx, owner("creator-1"))
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	balance, err := env.earnings.PendingBalance(ctx, "creator-1")
	require.NoError(t, err)
	assert.Equal(t, int64(4999), balance)

	withdrawals, err := env.withdrawals.History(ctx, "creator-1")
	require.NoError(t, err)
	assert.Empty(t, withdrawals)
}

func TestRequestWithdrawal_ConcurrentRequestsNeverOverlap(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	seedEarning(t, env, "creator-1", 3000)
	seedEarning(t, env, "creator-1", 2500)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var succeeded, insufficient int
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.withdrawals.RequestWithdrawal(ctx, owner("creator-1"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case assert.ErrorIs(t, err, ErrInsufficientBalance):
				insufficient++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 4, insufficient)

	withdrawn, err := database.SumOwnerWithdrawals(env.db, "creator-1")
	require.NoError(t, err)
	assert.Equal(t, int64(5500), withdrawn)
}

func TestMarkPaid_BalanceChanged(t *testing.T) {
	env := newTestEnv(t)

	seedEarning(t, env, "creator-1", 6000)

	err := env.earnings.MarkPaid(env.db, "creator-1", 5000, "withdrawal-x")
	assert.ErrorIs(t, err, ErrBalanceChanged)

	balance, err := env.earnings.PendingBalance(context.Background(), "creator-1")
	require.NoError(t, err)
	assert.Equal(t, int64(6000), balance)
}

func TestDecide(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := models.Identity{UserID: "admin-1", Role: models.RoleAdmin}

	seedEarning(t, env, "creator-1", 6000)
	withdrawal, err := env.withdrawals.RequestWithdrawal(ctx, owner("creator-1"))
	require.NoError(t, err)

	env.clock.Advance(time.Hour)

	decided, err := env.withdrawals.Decide(ctx, withdrawal.ID, models.WithdrawalApproved, admin, "<b>Paid</b> via bank transfer")
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalApproved, decided.Status)
	assert.Equal(t, "admin-1", decided.DecidedBy)
	assert.Equal(t, "Paid via bank transfer", decided.Note)
	require.NotNil(t, decided.DecidedAt)
	assert.True(t, decided.DecidedAt.Equal(testStart.Add(time.Hour)))
	assert.Equal(t, 1, env.mailer.count())

	t.Run("already decided", func(t *testing.T) {
		_, err := env.withdrawals.Decide(ctx, withdrawal.ID, models.WithdrawalRejected, admin, "")
		assert.ErrorIs(t, err, ErrAlreadyDecided)

		current, err := database.GetWithdrawalByID(env.db, withdrawal.ID)
		require.NoError(t, err)
		assert.Equal(t, models.WithdrawalApproved, current.Status)
		assert.Equal(t, 1, env.mailer.count())
	})

	t.Run("unknown withdrawal", func(t *testing.T) {
		_, err := env.withdrawals.Decide(ctx, "missing", models.WithdrawalApproved, admin, "")
		assert.ErrorIs(t, err, ErrWithdrawalNotFound)
	})

	t.Run("invalid outcome", func(t *testing.T) {
		_, err := env.withdrawals.Decide(ctx, withdrawal.ID, "pending", admin, "")
		assert.ErrorIs(t, err, ErrInvalidOutcome)
	})
}

func TestDecide_ConcurrentAdmins(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	seedEarning(t, env, "creator-1", 6000)
	withdrawal, err := env.withdrawals.RequestWithdrawal(ctx, owner("creator-1"))
	require.NoError(t, err)

	outcomes := []string{models.WithdrawalApproved, models.WithdrawalRejected, models.WithdrawalApproved, models.WithdrawalRejected}
	var wg sync.WaitGroup
	var mu sync.Mutex
	var wins int
	for i, outcome := range outcomes {
		wg.Add(1)
		go func(admin, outcome string) {
			defer wg.Done()
			_, err := env.withdrawals.Decide(ctx, withdrawal.ID, outcome, models.Identity{UserID: admin, Role: models.RoleAdmin}, "")
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, ErrAlreadyDecided)
			}
		}(fmt.Sprintf("admin-%d", i), outcome)
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
}

func TestDecide_MailerFailureDoesNotFail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.mailer.err = assert.AnError

	seedEarning(t, env, "creator-1", 6000)
	withdrawal, err := env.withdrawals.RequestWithdrawal(ctx, owner("creator-1"))
	require.NoError(t, err)

	decided, err := env.withdrawals.Decide(ctx, withdrawal.ID, models.WithdrawalRejected, models.Identity{UserID: "admin-1"}, "")
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalRejected, decided.Status)
}

func TestWithdrawalList(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	seedEarning(t, env, "creator-1", 6000)
	seedEarning(t, env, "creator-2", 7000)
	w1, err := env.withdrawals.RequestWithdrawal(ctx, owner("creator-1"))
	require.NoError(t, err)
	_, err = env.withdrawals.RequestWithdrawal(ctx, owner("creator-2"))
	require.NoError(t, err)
	_, err = env.withdrawals.Decide(ctx, w1.ID, models.WithdrawalApproved, models.Identity{UserID: "admin-1"}, "")
	require.NoError(t, err)

	all, err := env.withdrawals.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	pending, err := env.withdrawals.List(ctx, models.WithdrawalPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "creator-2", pending[0].OwnerID)

	_, err = env.withdrawals.List(ctx, "bogus")
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestAggregateByOwner(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	seedEarning(t, env, "creator-1", 3000)
	seedEarning(t, env, "creator-1", 2500)
	seedEarning(t, env, "creator-2", 1000)
	_, err := env.withdrawals.RequestWithdrawal(ctx, owner("creator-1"))
	require.NoError(t, err)
	seedEarning(t, env, "creator-1", 400)

	summaries, err := env.earnings.AggregateByOwner(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	byOwner := map[string]models.OwnerEarningsSummary{}
	for _, s := range summaries {
		byOwner[s.OwnerID] = s
	}
	assert.Equal(t, int64(400), byOwner["creator-1"].PendingAmount)
	assert.Equal(t, int64(5500), byOwner["creator-1"].PaidAmount)
	assert.Equal(t, int64(5900), byOwner["creator-1"].TotalAmount)
	assert.Equal(t, int64(3), byOwner["creator-1"].EarningsCount)
	assert.Equal(t, int64(1000), byOwner["creator-2"].PendingAmount)

	paid, err := env.earnings.ListAll(ctx, database.EarningFilter{Status: models.EarningPaid})
	require.NoError(t, err)
	assert.Len(t, paid, 2)

	_, err = env.earnings.ListAll(ctx, database.EarningFilter{Status: "bogus"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}
