package models

const (
	EarningPending = "pending"
	EarningPaid    = "paid"
)

// Earning is the creator's share of one activated subscription.
// PercentageRate is stored with the row so later rate changes never rewrite history.
type Earning struct {
	BaseModel

	OwnerID        string  `json:"owner_id" gorm:"not null;size:64;index"`
	SubscriptionID string  `json:"subscription_id" gorm:"not null;size:36;uniqueIndex"`
	GrossAmount    int64   `json:"gross_amount" gorm:"not null"`
	Amount         int64   `json:"amount" gorm:"not null"`
	PercentageRate float64 `json:"percentage_rate" gorm:"not null"`
	Currency       string  `json:"currency" gorm:"size:3"`
	Status         string  `json:"status" gorm:"not null;size:20;index"`

	WithdrawalID *string `json:"withdrawal_id,omitempty" gorm:"size:36;index"`
}

// OwnerEarningsSummary is the admin aggregate of one creator's ledger
type OwnerEarningsSummary struct {
	OwnerID       string `json:"owner_id"`
	PendingAmount int64  `json:"pending_amount"`
	PaidAmount    int64  `json:"paid_amount"`
	TotalAmount   int64  `json:"total_amount"`
	EarningsCount int64  `json:"earnings_count"`
}
