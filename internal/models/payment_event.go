package models

const (
	EventSourceCallback = "callback"
	EventSourcePoll     = "poll"
	EventSourceRedirect = "redirect"
)

// PaymentEvent records every verification the orchestrator performed against
// the gateway, whichever path triggered it.
type PaymentEvent struct {
	BaseModel

	Provider  string  `json:"provider" gorm:"not null;size:20;index"`
	EventID   *string `json:"event_id,omitempty" gorm:"size:191;index"`
	Reference string  `json:"reference" gorm:"not null;size:100;index"`
	Source    string  `json:"source" gorm:"not null;size:20"`

	GatewayStatus string `json:"gateway_status" gorm:"size:20"`
	GatewayAmount int64  `json:"gateway_amount"`
	Currency      string `json:"currency" gorm:"size:3"`

	// Outcome is the local result: active, pending, failed, unknown_reference or error
	Outcome string `json:"outcome" gorm:"size:30"`
	Detail  string `json:"detail,omitempty" gorm:"type:text"`
}

// TableName 指定表名
func (PaymentEvent) TableName() string {
	return "payment_events"
}
