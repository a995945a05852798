package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type DeliveryNote struct {
	ID             int                `gorm:"primary_key" json:"id"`
	DeliveryNumber string             `gorm:"size:64;uniqueIndex;not null" json:"delivery_number"`
	CustomerId     int                `gorm:"index;not null" json:"customer_id"`
	OrderId        *int               `gorm:"index" json:"order_id"`
	DeliveryDate   Date               `gorm:"type:date;not null" json:"delivery_date"`
	Status         DeliveryNoteStatus `gorm:"size:20;index;not null;default:pending" json:"status"`
	SignatureData  *string            `gorm:"type:mediumtext" json:"signature_data,omitempty"`
	SignerName     *string            `gorm:"size:255" json:"signer_name"`
	SignatureDate  *time.Time         `json:"signature_date"`
	IsInvoiced     bool               `gorm:"index;not null;default:false" json:"is_invoiced"`
	InvoiceId      *int               `gorm:"index" json:"invoice_id"`
	TotalAmount    decimal.Decimal    `gorm:"type:decimal(20,4);default:0" json:"total_amount"`
	Notes          string             `gorm:"type:text" json:"notes"`
	Items          []DeliveryNoteItem `gorm:"foreignKey:DeliveryNoteId;constraint:OnDelete:CASCADE" json:"items"`
	Customer       *CustomerRef       `gorm:"-" json:"customer,omitempty"`
	CreatedAt      time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}

type DeliveryNoteItem struct {
	ID             int             `gorm:"primary_key" json:"id"`
	DeliveryNoteId int             `gorm:"index;not null" json:"delivery_note_id"`
	ProductId      *int            `gorm:"index" json:"product_id"`
	ProductName    string          `gorm:"size:255;not null" json:"product_name"`
	Quantity       decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity"`
	UnitPrice      decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"unit_price"`
	Unit           string          `gorm:"size:32" json:"unit"`
	TotalPrice     decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"total_price"`
}

type NewDeliveryNote struct {
	CustomerId   int                   `json:"customer_id" binding:"required,gt=0"`
	OrderId      *int                  `json:"order_id" binding:"omitempty,gt=0"`
	DeliveryDate Date                  `json:"delivery_date"`
	Notes        string                `json:"notes" binding:"max=2000"`
	Items        []NewDeliveryNoteItem `json:"items" binding:"required,min=1,dive"`
}

type NewDeliveryNoteItem struct {
	ProductId   *int            `json:"product_id" binding:"omitempty,gt=0"`
	ProductName string          `json:"product_name" binding:"max=255"`
	Quantity    decimal.Decimal `json:"quantity"`
	// UnitPrice defaults to the catalog price of ProductId when omitted.
	UnitPrice *decimal.Decimal `json:"unit_price"`
	Unit      string           `json:"unit" binding:"max=32"`
}

type SignDeliveryNote struct {
	SignatureData string `json:"signature_data" binding:"required"`
	SignerName    string `json:"signer_name" binding:"required,max=255"`
}

type DeliveryNoteFilter struct {
	CustomerId *int
	Status     *DeliveryNoteStatus
	IsInvoiced *bool
}

// ReadyForInvoicing is the "delivered and not yet invoiced" selection.
func ReadyForInvoicing(customerId int) DeliveryNoteFilter {
	status := DeliveryNoteStatusDelivered
	invoiced := false
	return DeliveryNoteFilter{CustomerId: &customerId, Status: &status, IsInvoiced: &invoiced}
}

func (d DeliveryNote) IsSigned() bool {
	return d.SignatureData != nil && d.SignerName != nil && d.SignatureDate != nil
}
