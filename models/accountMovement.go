package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountMovement is an append-only row of a customer's current account.
// Exactly one of DebitAmount and CreditAmount is non-zero.
type AccountMovement struct {
	ID             int             `gorm:"primary_key" json:"id"`
	CustomerId     int             `gorm:"index:idx_movement_customer_date,priority:1;not null" json:"customer_id"`
	MovementDate   Date            `gorm:"type:date;index:idx_movement_customer_date,priority:2;not null" json:"movement_date"`
	MovementType   MovementType    `gorm:"size:20;not null" json:"movement_type"`
	ReferenceId    int             `gorm:"index;not null" json:"reference_id"`
	DocumentNumber string          `gorm:"size:64" json:"document_number"`
	DebitAmount    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"debit_amount"`
	CreditAmount   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"credit_amount"`
	Description    string          `gorm:"size:500" json:"description"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// StatementLine is a movement with the running balance after it.
type StatementLine struct {
	AccountMovement
	Balance decimal.Decimal `json:"balance"`
}

type Statement struct {
	CustomerId     int             `json:"customer_id"`
	StartDate      *Date           `json:"start_date"`
	EndDate        *Date           `json:"end_date"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	ClosingBalance decimal.Decimal `json:"closing_balance"`
	TotalDebit     decimal.Decimal `json:"total_debit"`
	TotalCredit    decimal.Decimal `json:"total_credit"`
	Lines          []StatementLine `json:"movements"`
}

type AccountSummary struct {
	CustomerId  int             `json:"customer_id"`
	AsOf        *Date           `json:"as_of"`
	TotalDebit  decimal.Decimal `json:"total_debit"`
	TotalCredit decimal.Decimal `json:"total_credit"`
	Balance     decimal.Decimal `json:"balance"`
}
