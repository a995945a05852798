package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment is immutable once written.
type Payment struct {
	ID              int             `gorm:"primary_key" json:"id"`
	PaymentNumber   string          `gorm:"size:64;uniqueIndex;not null" json:"payment_number"`
	CustomerId      int             `gorm:"index;not null" json:"customer_id"`
	InvoiceId       *int            `gorm:"index" json:"invoice_id"`
	Amount          decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	PaymentMethod   PaymentMethod   `gorm:"size:20;not null" json:"payment_method"`
	CashRegisterId  *int            `gorm:"index" json:"cash_register_id"`
	ReferenceNumber string          `gorm:"size:255" json:"reference_number"`
	Notes           string          `gorm:"type:text" json:"notes"`
	PaymentDate     Date            `gorm:"type:date;not null" json:"payment_date"`
	Customer        *CustomerRef    `gorm:"-" json:"customer,omitempty"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

type NewPayment struct {
	CustomerId      int             `json:"customer_id" binding:"required,gt=0"`
	InvoiceId       *int            `json:"invoice_id" binding:"omitempty,gt=0"`
	Amount          decimal.Decimal `json:"amount"`
	PaymentMethod   PaymentMethod   `json:"payment_method" binding:"required"`
	CashRegisterId  *int            `json:"cash_register_id" binding:"omitempty,gt=0"`
	ReferenceNumber string          `json:"reference_number" binding:"max=255"`
	Notes           string          `json:"notes" binding:"max=2000"`
	PaymentDate     Date            `json:"payment_date"`
	// IdempotencyKey is taken from the Idempotency-Key header, never from the body.
	IdempotencyKey string `json:"-"`
}

type PaymentFilter struct {
	CustomerId *int
	InvoiceId  *int
}
