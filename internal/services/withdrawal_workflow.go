package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"creator-subscription-api/internal/database"
	"creator-subscription-api/internal/models"
	"creator-subscription-api/pkg/logging"

	"github.com/microcosm-cc/bluemonday"
	"gorm.io/gorm"
)

// WithdrawalWorkflow turns a creator's pending balance into a withdrawal and
// lets an administrator approve or reject it
type WithdrawalWorkflow struct {
	db        *gorm.DB
	earnings  *EarningsLedger
	locker    Locker
	mailer    WithdrawalMailer
	minAmount int64
	currency  string
	sanitizer *bluemonday.Policy
	now       func() time.Time
}

// NewWithdrawalWorkflow creates the workflow. mailer may be nil.
func NewWithdrawalWorkflow(db *gorm.DB, earnings *EarningsLedger, locker Locker, mailer WithdrawalMailer, minAmount int64, currency string) *WithdrawalWorkflow {
	if locker == nil {
		locker = NewMemoryLocker()
	}
	return &WithdrawalWorkflow{
		db:        db,
		earnings:  earnings,
		locker:    locker,
		mailer:    mailer,
		minAmount: minAmount,
		currency:  currency,
		sanitizer: bluemonday.StrictPolicy(),
		now:       time.Now,
	}
}

// RequestWithdrawal claims the owner's whole pending balance. The balance
// read, the withdrawal insert and the earnings flip happen in one
// transaction under a per-owner lock.
func (w *WithdrawalWorkflow) RequestWithdrawal(ctx context.Context, owner models.Identity) (*models.Withdrawal, error) {
	if owner.UserID == "" {
		return nil, fmt.Errorf("%w: owner is required", ErrInvalidRequest)
	}

	unlock, err := w.locker.Lock(ctx, "withdrawal:"+owner.UserID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var withdrawal *models.Withdrawal
	err = w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, balance, err := w.earnings.LockPending(tx, owner.UserID)
		if err != nil {
			return err
		}
		if balance < w.minAmount {
			return fmt.Errorf("%w: pending balance %d is below the minimum of %d", ErrInsufficientBalance, balance, w.minAmount)
		}

		withdrawal = &models.Withdrawal{
			OwnerID:    owner.UserID,
			OwnerEmail: owner.Email,
			Amount:     balance,
			Currency:   w.currency,
			Status:     models.WithdrawalPending,
		}
		if err := database.CreateWithdrawal(tx, withdrawal); err != nil {
			return fmt.Errorf("failed to create withdrawal: %w", err)
		}

		return w.earnings.MarkPaid(tx, owner.UserID, balance, withdrawal.ID)
	})
	if err != nil {
		return nil, err
	}

	logging.WithFields(map[string]interface{}{
		"owner_id":      owner.UserID,
		"withdrawal_id": withdrawal.ID,
		"amount":        withdrawal.Amount,
	}).Info("Withdrawal requested")

	return withdrawal, nil
}

// Decide approves or rejects a pending withdrawal. Decided withdrawals are
// never changed again.
func (w *WithdrawalWorkflow) Decide(ctx context.Context, withdrawalID, outcome string, admin models.Identity, note string) (*models.Withdrawal, error) {
	if outcome != models.WithdrawalApproved && outcome != models.WithdrawalRejected {
		return nil, ErrInvalidOutcome
	}

	db := w.db.WithContext(ctx)
	note = w.sanitizer.Sanitize(note)
	decidedAt := w.now().UTC()

	rows, err := database.DecidePendingWithdrawal(db, withdrawalID, outcome, admin.UserID, note, decidedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to decide withdrawal: %w", err)
	}

	withdrawal, err := database.GetWithdrawalByID(db, withdrawalID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrWithdrawalNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load withdrawal: %w", err)
	}
	if rows == 0 {
		return nil, fmt.Errorf("%w: withdrawal is %s", ErrAlreadyDecided, withdrawal.Status)
	}

	logging.WithFields(map[string]interface{}{
		"withdrawal_id": withdrawal.ID,
		"owner_id":      withdrawal.OwnerID,
		"status":        withdrawal.Status,
		"decided_by":    admin.UserID,
	}).Info("Withdrawal decided")

	if w.mailer != nil {
		if err := w.mailer.SendWithdrawalDecision(ctx, withdrawal); err != nil {
			logging.Errorf("Failed to send withdrawal decision email - withdrawal: %s, error: %v", withdrawal.ID, err)
		}
	}

	return withdrawal, nil
}

// History lists a creator's withdrawals, newest first
func (w *WithdrawalWorkflow) History(ctx context.Context, ownerID string) ([]models.Withdrawal, error) {
	withdrawals, err := database.GetOwnerWithdrawals(w.db.WithContext(ctx), ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list withdrawals: %w", err)
	}
	return withdrawals, nil
}

// List lists withdrawals across owners, optionally filtered by status
func (w *WithdrawalWorkflow) List(ctx context.Context, status string) ([]models.Withdrawal, error) {
	switch status {
	case "", models.WithdrawalPending, models.WithdrawalApproved, models.WithdrawalRejected:
	default:
		return nil, fmt.Errorf("%w: unknown withdrawal status %q", ErrInvalidRequest, status)
	}
	withdrawals, err := database.ListWithdrawals(w.db.WithContext(ctx), status)
	if err != nil {
		return nil, fmt.Errorf("failed to list withdrawals: %w", err)
	}
	return withdrawals, nil
}
