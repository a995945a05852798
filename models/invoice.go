package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Invoice struct {
	ID              int             `gorm:"primary_key" json:"id"`
	InvoiceNumber   string          `gorm:"size:64;uniqueIndex;not null" json:"invoice_number"`
	CustomerId      int             `gorm:"index;not null" json:"customer_id"`
	InvoiceDate     Date            `gorm:"type:date;not null" json:"invoice_date"`
	DueDate         *Date           `gorm:"type:date" json:"due_date"`
	Subtotal        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"subtotal"`
	TaxRate         decimal.Decimal `gorm:"type:decimal(7,4);default:0" json:"tax_rate"`
	TaxAmount       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"tax_amount"`
	TotalAmount     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_amount"`
	PaidAmount      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"paid_amount"`
	RemainingAmount decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"remaining_amount"`
	Status          InvoiceStatus   `gorm:"size:20;index;not null;default:draft" json:"status"`
	Notes           string          `gorm:"type:text" json:"notes"`
	Items           []InvoiceItem   `gorm:"foreignKey:InvoiceId;constraint:OnDelete:CASCADE" json:"items"`
	DeliveryNotes   []DeliveryNote  `gorm:"foreignKey:InvoiceId" json:"delivery_notes,omitempty"`
	Customer        *CustomerRef    `gorm:"-" json:"customer,omitempty"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type InvoiceItem struct {
	ID          int             `gorm:"primary_key" json:"id"`
	InvoiceId   int             `gorm:"index;not null" json:"invoice_id"`
	ProductId   *int            `gorm:"index" json:"product_id"`
	ProductName string          `gorm:"size:255;not null" json:"product_name"`
	Quantity    decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"unit_price"`
	Unit        string          `gorm:"size:32" json:"unit"`
	TotalPrice  decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"total_price"`
}

// NewInvoiceFromDeliveryNotes is the consolidation request.
type NewInvoiceFromDeliveryNotes struct {
	CustomerId      int              `json:"customer_id" binding:"required,gt=0"`
	DeliveryNoteIds []int            `json:"delivery_note_ids" binding:"required,min=1,dive,gt=0"`
	InvoiceNumber   string           `json:"invoice_number" binding:"max=64"`
	InvoiceDate     Date             `json:"invoice_date"`
	TaxRate         *decimal.Decimal `json:"tax_rate"`
	Notes           string           `json:"notes" binding:"max=2000"`
}

type InvoiceFilter struct {
	CustomerId *int
	Status     *InvoiceStatus
}

// DerivePaymentStatus maps stored amounts to the status the payment engine maintains.
func DerivePaymentStatus(paid, remaining decimal.Decimal) InvoiceStatus {
	switch {
	case !remaining.IsPositive():
		return InvoiceStatusPaid
	case paid.IsPositive():
		return InvoiceStatusPartial
	default:
		return InvoiceStatusUnpaid
	}
}
