package models

import (
	"time"
)

const (
	SubscriptionPending = "pending"
	SubscriptionActive  = "active"
	SubscriptionExpired = "expired"
)

// Subscription is one subscriber's paid relationship to one creator.
// PaymentReference is the idempotency key shared with the payment gateway.
type Subscription struct {
	BaseModel

	SubscriberID string `json:"subscriber_id" gorm:"not null;size:64;index:idx_subscriptions_pair,priority:1"`
	OwnerID      string `json:"owner_id" gorm:"not null;size:64;index:idx_subscriptions_pair,priority:2;index"`

	AmountPaid int64  `json:"amount_paid" gorm:"not null"`
	Currency   string `json:"currency" gorm:"size:3;not null"`

	PaymentReference string `json:"payment_reference" gorm:"not null;size:100;uniqueIndex"`
	Provider         string `json:"provider" gorm:"size:20"`

	// Status is the stored status. Expiry is evaluated at read time, see EffectiveStatus.
	Status string `json:"status" gorm:"not null;size:20;index"`

	ActivatedAt *time.Time `json:"activated_at"`
	ExpiresAt   *time.Time `json:"expires_at" gorm:"index"`
}

// IsActiveAt reports whether the subscription grants access at t
func (s *Subscription) IsActiveAt(t time.Time) bool {
	if s.Status != SubscriptionActive || s.ExpiresAt == nil {
		return false
	}
	return s.ExpiresAt.After(t)
}

// EffectiveStatus folds the stored status and expires_at into what a reader should see
func (s *Subscription) EffectiveStatus(t time.Time) string {
	if s.Status == SubscriptionActive && !s.IsActiveAt(t) {
		return SubscriptionExpired
	}
	return s.Status
}

// SubscriptionActivated is emitted exactly once per pending→active transition
type SubscriptionActivated struct {
	SubscriptionID string
	OwnerID        string
	SubscriberID   string
	Amount         int64
	Currency       string
	Reference      string
	ActivatedAt    time.Time
	ExpiresAt      time.Time
}
