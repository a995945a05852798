package models

import "time"

type IdempotencyStatus string

const (
	IdempotencyStatusSucceeded IdempotencyStatus = "SUCCEEDED"
)

// IdempotencyKey is written in the same transaction as the record it guards,
// so a key exists only if that record was committed.
// Unique constraint: (handler_name, idempotency_key).
type IdempotencyKey struct {
	ID             int               `gorm:"primary_key" json:"id"`
	HandlerName    string            `gorm:"size:100;not null;index:uniq_idem,unique" json:"handler_name"`
	IdempotencyKey string            `gorm:"size:255;not null;index:uniq_idem,unique" json:"idempotency_key"`
	ReferenceId    int               `gorm:"not null" json:"reference_id"`
	Status         IdempotencyStatus `gorm:"size:20;not null" json:"status"`
	CreatedAt      time.Time         `gorm:"autoCreateTime" json:"created_at"`
}
