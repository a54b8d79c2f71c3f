package database

import (
	"creator-subscription-api/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GetCreatorPrice returns the creator-specific price row
func GetCreatorPrice(db *gorm.DB, creatorID string) (*models.CreatorPrice, error) {
	var price models.CreatorPrice
	err := db.Where("creator_id = ?", creatorID).First(&price).Error
	if err != nil {
		return nil, err
	}
	return &price, nil
}

// GetGlobalPrice returns the platform default price row
func GetGlobalPrice(db *gorm.DB) (*models.CreatorPrice, error) {
	var price models.CreatorPrice
	err := db.Where("is_global = ?", true).First(&price).Error
	if err != nil {
		return nil, err
	}
	return &price, nil
}

// UpsertCreatorPrice creates or replaces a creator's fee. The revenue rate
// override of an existing row is left alone.
func UpsertCreatorPrice(db *gorm.DB, price *models.CreatorPrice) error {
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "creator_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"amount", "currency", "updated_at"}),
	}).Create(price).Error
}

// SetCreatorRevenueRate sets the revenue share override for a creator,
// creating the price row from the given defaults when it does not exist
func SetCreatorRevenueRate(db *gorm.DB, creatorID string, rate *float64, defaults models.CreatorPrice) (*models.CreatorPrice, error) {
	var price models.CreatorPrice
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("creator_id = ?", creatorID).
			Attrs(models.CreatorPrice{CreatorID: &creatorID, Amount: defaults.Amount, Currency: defaults.Currency}).
			FirstOrCreate(&price).Error; err != nil {
			return err
		}
		return tx.Model(&price).Update("revenue_rate", rate).Error
	})
	if err != nil {
		return nil, err
	}
	price.RevenueRate = rate
	return &price, nil
}

// SaveGlobalPrice creates or updates the single global price row
func SaveGlobalPrice(db *gorm.DB, amount int64, currency string) (*models.CreatorPrice, error) {
	var price models.CreatorPrice
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("is_global = ?", true).
			Attrs(models.CreatorPrice{IsGlobal: true, Amount: amount, Currency: currency}).
			FirstOrCreate(&price).Error; err != nil {
			return err
		}
		price.Amount = amount
		price.Currency = currency
		return tx.Save(&price).Error
	})
	if err != nil {
		return nil, err
	}
	return &price, nil
}
