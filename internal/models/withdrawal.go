package models

import "time"

const (
	WithdrawalPending  = "pending"
	WithdrawalApproved = "approved"
	WithdrawalRejected = "rejected"
)

// Withdrawal is a creator's request to cash out the whole pending balance
type Withdrawal struct {
	BaseModel

	OwnerID    string `json:"owner_id" gorm:"not null;size:64;index"`
	OwnerEmail string `json:"owner_email" gorm:"size:255"`
	Amount     int64  `json:"amount" gorm:"not null"`
	Currency   string `json:"currency" gorm:"size:3"`
	Status     string `json:"status" gorm:"not null;size:20;index"`

	DecidedBy string     `json:"decided_by,omitempty" gorm:"size:64"`
	Note      string     `json:"note,omitempty" gorm:"type:text"`
	DecidedAt *time.Time `json:"decided_at,omitempty"`
}
