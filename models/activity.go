package models

import "time"

const (
	ActivitySent     = "sent"
	ActivityReceived = "received"
	ActivityError    = "error"

	StatusSuccess = "success"
	StatusError   = "error"
)

// ActivityEvent records one warmup send, receipt, or failure for an account
type ActivityEvent struct {
	ID             uint      `gorm:"primarykey" json:"id"`
	UserID         uint      `gorm:"not null;index" json:"user_id"`
	EmailAccountID uint      `gorm:"not null;index" json:"email_account_id"`
	Type           string    `gorm:"not null;index" json:"type"`
	Status         string    `gorm:"not null" json:"status"`
	ErrorKind      string    `json:"error_kind,omitempty"`
	Message        string    `gorm:"type:text" json:"message,omitempty"`
	MessageID      string    `gorm:"index" json:"message_id,omitempty"`
	OccurredAt     time.Time `gorm:"not null;index" json:"occurred_at"`

	EmailAccount *EmailAccount `gorm:"constraint:OnDelete:CASCADE" json:"email_account,omitempty"`
}

func (ActivityEvent) TableName() string {
	return "activity_events"
}
