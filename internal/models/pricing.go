package models

// CreatorPrice is the subscription fee charged for a creator. The row with
// IsGlobal set is the platform default used when a creator has none.
type CreatorPrice struct {
	BaseModel

	CreatorID *string `json:"creator_id,omitempty" gorm:"size:64;uniqueIndex"`
	IsGlobal  bool    `json:"is_global" gorm:"default:false;index"`
	Amount    int64   `json:"amount" gorm:"not null"`
	Currency  string  `json:"currency" gorm:"size:3;not null"`

	// RevenueRate overrides the platform revenue share for this creator
	RevenueRate *float64 `json:"revenue_rate,omitempty"`
}
