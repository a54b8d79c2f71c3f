package database

import (
	"time"

	"creator-subscription-api/internal/models"

	"gorm.io/gorm"
)

// CreateSubscription 创建订阅
func CreateSubscription(db *gorm.DB, subscription *models.Subscription) error {
	return db.Create(subscription).Error
}

// GetSubscriptionByReference finds a subscription by its payment reference
func GetSubscriptionByReference(db *gorm.DB, reference string) (*models.Subscription, error) {
	var subscription models.Subscription
	err := db.Where("payment_reference = ?", reference).First(&subscription).Error
	if err != nil {
		return nil, err
	}
	return &subscription, nil
}

// ActivatePendingSubscription flips a pending subscription to active.
// The status predicate makes this a compare-and-set: it returns the number
// of rows changed, which is 1 for exactly one caller per reference.
func ActivatePendingSubscription(db *gorm.DB, reference string, activatedAt, expiresAt time.Time) (int64, error) {
	result := db.Model(&models.Subscription{}).
		Where("payment_reference = ? AND status = ?", reference, models.SubscriptionPending).
		Updates(map[string]interface{}{
			"status":       models.SubscriptionActive,
			"activated_at": activatedAt,
			"expires_at":   expiresAt,
			"updated_at":   activatedAt,
		})
	return result.RowsAffected, result.Error
}

// GetActiveSubscription returns the most recently activated, unexpired
// subscription of a subscriber to an owner
func GetActiveSubscription(db *gorm.DB, subscriberID, ownerID string, now time.Time) (*models.Subscription, error) {
	var subscription models.Subscription
	err := db.Where("subscriber_id = ? AND owner_id = ? AND status = ? AND expires_at > ?",
		subscriberID, ownerID, models.SubscriptionActive, now).
		Order("activated_at DESC").
		First(&subscription).Error
	if err != nil {
		return nil, err
	}
	return &subscription, nil
}

// GetSubscriberSubscriptions 获取用户的所有订阅
func GetSubscriberSubscriptions(db *gorm.DB, subscriberID string) ([]models.Subscription, error) {
	var subscriptions []models.Subscription
	err := db.Where("subscriber_id = ?", subscriberID).Order("created_at DESC").Find(&subscriptions).Error
	return subscriptions, err
}

// GetOwnerActiveSubscriptions lists the unexpired active subscriptions to a creator
func GetOwnerActiveSubscriptions(db *gorm.DB, ownerID string, now time.Time) ([]models.Subscription, error) {
	var subscriptions []models.Subscription
	err := db.Where("owner_id = ? AND status = ? AND expires_at > ?", ownerID, models.SubscriptionActive, now).
		Order("activated_at DESC").
		Find(&subscriptions).Error
	return subscriptions, err
}

// ExpireLapsedSubscriptions writes status=expired on active rows whose
// expires_at has passed. Pending rows are never touched.
func ExpireLapsedSubscriptions(db *gorm.DB, now time.Time) (int64, error) {
	result := db.Model(&models.Subscription{}).
		Where("status = ? AND expires_at <= ?", models.SubscriptionActive, now).
		Updates(map[string]interface{}{
			"status":     models.SubscriptionExpired,
			"updated_at": now,
		})
	return result.RowsAffected, result.Error
}
