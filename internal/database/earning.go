package database

import (
	"creator-subscription-api/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreateEarningIfAbsent inserts an earning unless one already exists for the
// subscription. It reports whether a row was inserted.
func CreateEarningIfAbsent(db *gorm.DB, earning *models.Earning) (bool, error) {
	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "subscription_id"}},
		DoNothing: true,
	}).Create(earning)
	return result.RowsAffected == 1, result.Error
}

// GetEarningBySubscriptionID finds the earning booked for a subscription
func GetEarningBySubscriptionID(db *gorm.DB, subscriptionID string) (*models.Earning, error) {
	var earning models.Earning
	err := db.Where("subscription_id = ?", subscriptionID).First(&earning).Error
	if err != nil {
		return nil, err
	}
	return &earning, nil
}

// SumPendingEarnings sums the pending earnings of an owner
func SumPendingEarnings(db *gorm.DB, ownerID string) (int64, error) {
	var total int64
	err := db.Model(&models.Earning{}).
		Where("owner_id = ? AND status = ?", ownerID, models.EarningPending).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	return total, err
}

// LockPendingEarnings loads the pending earnings of an owner with a row lock.
// Must be called inside a transaction.
func LockPendingEarnings(tx *gorm.DB, ownerID string) ([]models.Earning, error) {
	var earnings []models.Earning
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("owner_id = ? AND status = ?", ownerID, models.EarningPending).
		Order("created_at ASC").
		Find(&earnings).Error
	return earnings, err
}

// MarkEarningsPaid flips the given pending earnings to paid and links them to
// a withdrawal. Rows that are no longer pending are skipped, so the caller
// compares the returned count with what it expected.
func MarkEarningsPaid(tx *gorm.DB, ownerID string, earningIDs []string, withdrawalID string) (int64, error) {
	if len(earningIDs) == 0 {
		return 0, nil
	}
	result := tx.Model(&models.Earning{}).
		Where("owner_id = ? AND status = ? AND id IN ?", ownerID, models.EarningPending, earningIDs).
		Updates(map[string]interface{}{
			"status":        models.EarningPaid,
			"withdrawal_id": withdrawalID,
		})
	return result.RowsAffected, result.Error
}

// GetOwnerEarnings lists an owner's earnings, newest first
func GetOwnerEarnings(db *gorm.DB, ownerID string) ([]models.Earning, error) {
	var earnings []models.Earning
	err := db.Where("owner_id = ?", ownerID).Order("created_at DESC").Find(&earnings).Error
	return earnings, err
}

// EarningFilter narrows the admin earnings listing
type EarningFilter struct {
	OwnerID string
	Status  string
	Limit   int
	Offset  int
}

// ListEarnings lists earnings across owners
func ListEarnings(db *gorm.DB, filter EarningFilter) ([]models.Earning, error) {
	query := db.Model(&models.Earning{})
	if filter.OwnerID != "" {
		query = query.Where("owner_id = ?", filter.OwnerID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var earnings []models.Earning
	err := query.Order("created_at DESC").Find(&earnings).Error
	return earnings, err
}

// SummarizeEarningsByOwner aggregates pending and paid totals per owner
func SummarizeEarningsByOwner(db *gorm.DB) ([]models.OwnerEarningsSummary, error) {
	var summaries []models.OwnerEarningsSummary
	err := db.Model(&models.Earning{}).
		Select(`owner_id,
			COALESCE(SUM(CASE WHEN status = ? THEN amount ELSE 0 END), 0) AS pending_amount,
			COALESCE(SUM(CASE WHEN status = ? THEN amount ELSE 0 END), 0) AS paid_amount,
			COALESCE(SUM(amount), 0) AS total_amount,
			COUNT(*) AS earnings_count`, models.EarningPending, models.EarningPaid).
		Group("owner_id").
		Order("total_amount DESC").
		Scan(&summaries).Error
	return summaries, err
}
