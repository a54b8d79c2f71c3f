package services

import (
	"context"
	"errors"
	"fmt"
	"math"

	"creator-subscription-api/internal/database"
	"creator-subscription-api/internal/models"
	"creator-subscription-api/pkg/logging"

	"gorm.io/gorm"
)

// RateResolver returns the revenue share applied to a creator's activations.
// db is the caller's handle, usually the activation transaction.
type RateResolver interface {
	RevenueRate(db *gorm.DB, ownerID string) (float64, error)
}

// EarningsLedger books the creator's share of each activated subscription
// and tracks which earnings have been claimed by a withdrawal.
type EarningsLedger struct {
	db    *gorm.DB
	rates RateResolver
}

// NewEarningsLedger creates an earnings ledger
func NewEarningsLedger(db *gorm.DB, rates RateResolver) *EarningsLedger {
	return &EarningsLedger{
		db:    db,
		rates: rates,
	}
}

// HandleActivation is the activation bus subscriber. It runs in the
// activation transaction so the earning commits together with it.
func (l *EarningsLedger) HandleActivation(ctx context.Context, tx *gorm.DB, event models.SubscriptionActivated) error {
	rate, err := l.rates.RevenueRate(tx, event.OwnerID)
	if err != nil {
		return fmt.Errorf("failed to resolve revenue rate: %w", err)
	}
	_, err = l.RecordFromActivation(ctx, tx, event, rate)
	return err
}

// RecordFromActivation creates the pending earning for a subscription.
// A second call for the same subscription returns the existing earning.
func (l *EarningsLedger) RecordFromActivation(ctx context.Context, tx *gorm.DB, event models.SubscriptionActivated, rate float64) (*models.Earning, error) {
	if rate <= 0 || rate > 1 {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidRate, rate)
	}
	if tx == nil {
		tx = l.db
	}
	tx = tx.WithContext(ctx)

	earning := &models.Earning{
		OwnerID:        event.OwnerID,
		SubscriptionID: event.SubscriptionID,
		GrossAmount:    event.Amount,
		Amount:         int64(math.Round(float64(event.Amount) * rate)),
		PercentageRate: rate,
		Currency:       event.Currency,
		Status:         models.EarningPending,
	}

	inserted, err := database.CreateEarningIfAbsent(tx, earning)
	if err != nil {
		return nil, fmt.Errorf("failed to record earning: %w", err)
	}
	if !inserted {
		logging.Infof("Earning already recorded - subscription: %s", event.SubscriptionID)
		existing, err := database.GetEarningBySubscriptionID(tx, event.SubscriptionID)
		if err != nil {
			return nil, fmt.Errorf("failed to load existing earning: %w", err)
		}
		return existing, nil
	}

	logging.WithFields(map[string]interface{}{
		"owner_id":        event.OwnerID,
		"subscription_id": event.SubscriptionID,
		"amount":          earning.Amount,
		"rate":            rate,
	}).Info("Earning recorded")

	return earning, nil
}

// PendingBalance sums the earnings not yet claimed by a withdrawal
func (l *EarningsLedger) PendingBalance(ctx context.Context, ownerID string) (int64, error) {
	total, err := database.SumPendingEarnings(l.db.WithContext(ctx), ownerID)
	if err != nil {
		return 0, fmt.Errorf("failed to sum pending earnings: %w", err)
	}
	return total, nil
}

// LockPending locks the owner's pending earnings for the rest of tx and
// returns them with their total
func (l *EarningsLedger) LockPending(tx *gorm.DB, ownerID string) ([]models.Earning, int64, error) {
	earnings, err := database.LockPendingEarnings(tx, ownerID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to lock pending earnings: %w", err)
	}
	var total int64
	for _, e := range earnings {
		total += e.Amount
	}
	return earnings, total, nil
}

// MarkPaid flips every pending earning of the owner to paid and links it to
// the withdrawal. It must run inside the transaction that creates the
// withdrawal; ErrBalanceChanged means the flipped total differs from
// uptoAmount and the transaction must roll back.
func (l *EarningsLedger) MarkPaid(tx *gorm.DB, ownerID string, uptoAmount int64, withdrawalID string) error {
	earnings, total, err := l.LockPending(tx, ownerID)
	if err != nil {
		return err
	}
	if total != uptoAmount {
		return fmt.Errorf("%w: expected %d, found %d", ErrBalanceChanged, uptoAmount, total)
	}

	ids := make([]string, 0, len(earnings))
	for _, e := range earnings {
		ids = append(ids, e.ID)
	}

	rows, err := database.MarkEarningsPaid(tx, ownerID, ids, withdrawalID)
	if err != nil {
		return fmt.Errorf("failed to mark earnings paid: %w", err)
	}
	if rows != int64(len(ids)) {
		return fmt.Errorf("%w: expected %d rows, updated %d", ErrBalanceChanged, len(ids), rows)
	}
	return nil
}

// History lists the owner's earnings, newest first
func (l *EarningsLedger) History(ctx context.Context, ownerID string) ([]models.Earning, error) {
	earnings, err := database.GetOwnerEarnings(l.db.WithContext(ctx), ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list earnings: %w", err)
	}
	return earnings, nil
}

// ListAll lists earnings across owners for administrators
func (l *EarningsLedger) ListAll(ctx context.Context, filter database.EarningFilter) ([]models.Earning, error) {
	if filter.Status != "" && filter.Status != models.EarningPending && filter.Status != models.EarningPaid {
		return nil, fmt.Errorf("%w: unknown earning status %q", ErrInvalidRequest, filter.Status)
	}
	earnings, err := database.ListEarnings(l.db.WithContext(ctx), filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list earnings: %w", err)
	}
	return earnings, nil
}

// AggregateByOwner totals pending and paid earnings per owner
func (l *EarningsLedger) AggregateByOwner(ctx context.Context) ([]models.OwnerEarningsSummary, error) {
	summaries, err := database.SummarizeEarningsByOwner(l.db.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate earnings: %w", err)
	}
	return summaries, nil
}

// GetBySubscription returns the earning booked for a subscription
func (l *EarningsLedger) GetBySubscription(ctx context.Context, subscriptionID string) (*models.Earning, error) {
	earning, err := database.GetEarningBySubscriptionID(l.db.WithContext(ctx), subscriptionID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get earning: %w", err)
	}
	return earning, nil
}
