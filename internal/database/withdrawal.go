package database

import (
	"time"

	"creator-subscription-api/internal/models"

	"gorm.io/gorm"
)

// CreateWithdrawal inserts a withdrawal row
func CreateWithdrawal(db *gorm.DB, withdrawal *models.Withdrawal) error {
	return db.Create(withdrawal).Error
}

// GetWithdrawalByID finds a withdrawal
func GetWithdrawalByID(db *gorm.DB, id string) (*models.Withdrawal, error) {
	var withdrawal models.Withdrawal
	err := db.Where("id = ?", id).First(&withdrawal).Error
	if err != nil {
		return nil, err
	}
	return &withdrawal, nil
}

// DecidePendingWithdrawal sets the outcome on a withdrawal that is still
// pending. Zero rows affected means it was already decided or does not exist.
func DecidePendingWithdrawal(db *gorm.DB, id, status, decidedBy, note string, decidedAt time.Time) (int64, error) {
	result := db.Model(&models.Withdrawal{}).
		Where("id = ? AND status = ?", id, models.WithdrawalPending).
		Updates(map[string]interface{}{
			"status":     status,
			"decided_by": decidedBy,
			"note":       note,
			"decided_at": decidedAt,
			"updated_at": decidedAt,
		})
	return result.RowsAffected, result.Error
}

// GetOwnerWithdrawals lists a creator's withdrawals, newest first
func GetOwnerWithdrawals(db *gorm.DB, ownerID string) ([]models.Withdrawal, error) {
	var withdrawals []models.Withdrawal
	err := db.Where("owner_id = ?", ownerID).Order("created_at DESC").Find(&withdrawals).Error
	return withdrawals, err
}

// ListWithdrawals lists all withdrawals, optionally filtered by status
func ListWithdrawals(db *gorm.DB, status string) ([]models.Withdrawal, error) {
	query := db.Model(&models.Withdrawal{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var withdrawals []models.Withdrawal
	err := query.Order("created_at DESC").Find(&withdrawals).Error
	return withdrawals, err
}

// SumOwnerWithdrawals totals every withdrawal ever requested by an owner
func SumOwnerWithdrawals(db *gorm.DB, ownerID string) (int64, error) {
	var total int64
	err := db.Model(&models.Withdrawal{}).
		Where("owner_id = ?", ownerID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	return total, err
}
