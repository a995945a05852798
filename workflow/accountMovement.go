package workflow

import (
	"fmt"

	"bitbucket.org/mmdatafocus/cari_backend/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Movements are only ever inserted; nothing in this package updates or deletes them.

func appendInvoiceDebit(tx *gorm.DB, invoice *models.Invoice) error {
	movement := models.AccountMovement{
		CustomerId:     invoice.CustomerId,
		MovementDate:   invoice.InvoiceDate,
		MovementType:   models.MovementTypeInvoice,
		ReferenceId:    invoice.ID,
		DocumentNumber: invoice.InvoiceNumber,
		DebitAmount:    invoice.TotalAmount,
		CreditAmount:   decimal.Zero,
		Description:    fmt.Sprintf("Invoice %s", invoice.InvoiceNumber),
	}
	return tx.Create(&movement).Error
}

func appendPaymentCredit(tx *gorm.DB, payment *models.Payment, invoiceNumber string) error {
	description := fmt.Sprintf("Payment %s (%s)", payment.PaymentNumber, payment.PaymentMethod)
	if invoiceNumber != "" {
		description = fmt.Sprintf("Payment %s for invoice %s (%s)", payment.PaymentNumber, invoiceNumber, payment.PaymentMethod)
	}
	movement := models.AccountMovement{
		CustomerId:     payment.CustomerId,
		MovementDate:   payment.PaymentDate,
		MovementType:   models.MovementTypePayment,
		ReferenceId:    payment.ID,
		DocumentNumber: payment.PaymentNumber,
		DebitAmount:    decimal.Zero,
		CreditAmount:   payment.Amount,
		Description:    description,
	}
	return tx.Create(&movement).Error
}
