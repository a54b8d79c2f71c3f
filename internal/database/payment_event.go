package database

import (
	"creator-subscription-api/internal/models"

	"gorm.io/gorm"
)

// CreatePaymentEvent records a verification attempt
func CreatePaymentEvent(db *gorm.DB, event *models.PaymentEvent) error {
	return db.Create(event).Error
}

// GetPaymentEventsByReference lists verification attempts for a reference, oldest first
func GetPaymentEventsByReference(db *gorm.DB, reference string) ([]models.PaymentEvent, error) {
	var events []models.PaymentEvent
	err := db.Where("reference = ?", reference).Order("created_at ASC").Find(&events).Error
	return events, err
}
