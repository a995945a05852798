package models

import "time"

// NotificationLog tracks every attempt to tell a customer about a ledger event.
type NotificationLog struct {
	ID            int                `gorm:"primary_key" json:"id"`
	Channel       string             `gorm:"size:20;not null" json:"channel"`
	EventType     string             `gorm:"size:50;not null;index:idx_notification_ref,priority:1" json:"event_type"`
	ReferenceId   int                `gorm:"not null;index:idx_notification_ref,priority:2" json:"reference_id"`
	Recipient     string             `gorm:"size:255" json:"recipient"`
	Subject       string             `gorm:"size:255" json:"subject"`
	Body          string             `gorm:"type:text" json:"body"`
	Status        NotificationStatus `gorm:"size:20;not null;index" json:"status"`
	Attempts      int                `gorm:"not null;default:0" json:"attempts"`
	LastError     *string            `gorm:"type:text" json:"last_error"`
	NextAttemptAt *time.Time         `gorm:"index" json:"next_attempt_at"`
	LockedAt      *time.Time         `json:"locked_at"`
	LockedBy      *string            `gorm:"size:64" json:"locked_by"`
	MessageId     *string            `gorm:"size:255" json:"message_id"`
	CorrelationId string             `gorm:"size:64" json:"correlation_id"`
	SentAt        *time.Time         `json:"sent_at"`
	CreatedAt     time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}
