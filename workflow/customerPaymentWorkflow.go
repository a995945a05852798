package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/cari_backend/config"
	"bitbucket.org/mmdatafocus/cari_backend/models"
	"bitbucket.org/mmdatafocus/cari_backend/utils"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const createPaymentHandler = "payments.create"

type PaymentService struct {
	db        *gorm.DB
	logger    *logrus.Logger
	sequences *SequenceGenerator
	now       func() time.Time
}

func NewPaymentService(db *gorm.DB, logger *logrus.Logger, sequences *SequenceGenerator) *PaymentService {
	return &PaymentService{
		db:        db,
		logger:    logger,
		sequences: sequences,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

type PaymentResult struct {
	Payment *models.Payment `json:"payment"`
	// Invoice is the allocated invoice after the payment, nil for unallocated payments.
	Invoice *models.Invoice `json:"invoice,omitempty"`
	// Replayed is true when the Idempotency-Key matched an earlier committed payment.
	Replayed bool `json:"replayed"`
}

func validateNewPayment(input models.NewPayment) error {
	if input.CustomerId <= 0 {
		return NewValidationError("customer_id", input.CustomerId, "is required")
	}
	if !input.Amount.IsPositive() {
		return NewValidationError("amount", input.Amount, "must be greater than zero")
	}
	if !utils.FitsAmountScale(input.Amount) {
		return NewValidationError("amount", input.Amount, "must have at most 4 decimal places")
	}
	if !input.PaymentMethod.IsValid() {
		return NewValidationError("payment_method", input.PaymentMethod, "must be one of cash, bank_transfer, credit_card, check")
	}
	if input.InvoiceId != nil && *input.InvoiceId <= 0 {
		return NewValidationError("invoice_id", *input.InvoiceId, "must be positive")
	}
	if input.CashRegisterId != nil && *input.CashRegisterId <= 0 {
		return NewValidationError("cash_register_id", *input.CashRegisterId, "must be positive")
	}
	return validateIdempotencyKey(input.IdempotencyKey)
}

// Record stores a payment and, in the same transaction, applies it to the invoice,
// the cash register and the customer's account. A payment larger than the invoice's
// remaining amount is rejected without side effects.
func (s *PaymentService) Record(ctx context.Context, input models.NewPayment) (result *PaymentResult, err error) {
	ctx, span := tracer.Start(ctx, "PaymentService.Record")
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.Int("customer.id", input.CustomerId))

	if err := validateNewPayment(input); err != nil {
		return nil, err
	}
	if input.PaymentDate.IsZero() {
		input.PaymentDate = models.NewDate(s.now())
	}
	key := strings.TrimSpace(input.IdempotencyKey)

	if key != "" {
		replayed, err := s.replay(ctx, key, input)
		if err != nil || replayed != nil {
			return replayed, err
		}
	}

	err = retryOnDuplicateNumber(func(attempt int) error {
		number, err := s.sequences.Next(ctx, models.SequenceKindPayment)
		if err != nil {
			return err
		}
		return runInTransaction(ctx, s.db, "payment.record", func(tx *gorm.DB) error {
			r, err := allocatePayment(tx, input, number)
			if err != nil {
				return err
			}
			if err := recordIdempotencyKey(tx, createPaymentHandler, key, r.Payment.ID); err != nil {
				return err
			}
			result = r
			return nil
		})
	})
	if errors.Is(err, errIdempotentReplay) {
		return s.replay(ctx, key, input)
	}
	if err != nil {
		config.LogError(s.logger, "PaymentService", "Record", "record payment", input.CustomerId, err)
		return nil, err
	}

	if s.logger != nil {
		s.logger.WithFields(utils.LogFields(ctx)).WithFields(logrus.Fields{
			"field":          "PaymentService",
			"payment_id":     result.Payment.ID,
			"payment_number": result.Payment.PaymentNumber,
			"customer_id":    result.Payment.CustomerId,
			"amount":         result.Payment.Amount.String(),
		}).Info("payment recorded")
	}
	return result, nil
}

// replay returns the payment committed under key, or nil when the key is unused.
func (s *PaymentService) replay(ctx context.Context, key string, input models.NewPayment) (*PaymentResult, error) {
	db := s.db.WithContext(ctx)
	paymentId, err := findIdempotentResult(db, createPaymentHandler, key)
	if err != nil {
		return nil, wrapPersistence("payment.replay", err)
	}
	if paymentId == 0 {
		return nil, nil
	}
	var payment models.Payment
	if err := db.First(&payment, paymentId).Error; err != nil {
		return nil, wrapPersistence("payment.replay", err)
	}
	if payment.CustomerId != input.CustomerId || !payment.Amount.Equal(input.Amount) {
		return nil, newConflict("idempotency key", 0, "was already used for a different payment")
	}
	result := &PaymentResult{Payment: &payment, Replayed: true}
	if payment.InvoiceId != nil {
		var invoice models.Invoice
		if err := db.First(&invoice, *payment.InvoiceId).Error; err != nil {
			return nil, wrapPersistence("payment.replay", err)
		}
		result.Invoice = &invoice
	}
	return result, nil
}

func allocatePayment(tx *gorm.DB, input models.NewPayment, number string) (*PaymentResult, error) {
	if err := requireCustomer(tx, input.CustomerId); err != nil {
		return nil, err
	}

	var invoice *models.Invoice
	if input.InvoiceId != nil {
		var current models.Invoice
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&current, *input.InvoiceId).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, newNotFound("invoice", *input.InvoiceId)
			}
			return nil, err
		}
		if current.CustomerId != input.CustomerId {
			return nil, newConflict("invoice", current.ID, "belongs to another customer")
		}
		if input.Amount.GreaterThan(current.RemainingAmount) {
			return nil, &OverpaymentError{InvoiceId: current.ID, Amount: input.Amount, Remaining: current.RemainingAmount}
		}
		invoice = &current
	}

	if input.CashRegisterId != nil {
		var register models.CashRegister
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&register, *input.CashRegisterId).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, newNotFound("cash register", *input.CashRegisterId)
			}
			return nil, err
		}
		if register.IsActive != nil && !*register.IsActive {
			return nil, newConflict("cash register", register.ID, "is inactive")
		}
	}

	payment := models.Payment{
		PaymentNumber:   number,
		CustomerId:      input.CustomerId,
		InvoiceId:       input.InvoiceId,
		Amount:          input.Amount,
		PaymentMethod:   input.PaymentMethod,
		CashRegisterId:  input.CashRegisterId,
		ReferenceNumber: strings.TrimSpace(input.ReferenceNumber),
		Notes:           input.Notes,
		PaymentDate:     input.PaymentDate,
	}
	if err := tx.Create(&payment).Error; err != nil {
		if isDuplicateKeyErr(err) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateDocumentNumber, number)
		}
		return nil, err
	}

	result := &PaymentResult{Payment: &payment}
	invoiceNumber := ""
	if invoice != nil {
		updated, err := applyPaymentToInvoice(tx, invoice, payment)
		if err != nil {
			return nil, err
		}
		result.Invoice = updated
		invoiceNumber = updated.InvoiceNumber
	}

	if input.CashRegisterId != nil {
		if err := tx.Model(&models.CashRegister{}).
			Where("id = ?", *input.CashRegisterId).
			Update("balance", gorm.Expr("balance + CAST(? AS DECIMAL(20,4))", payment.Amount)).Error; err != nil {
			return nil, err
		}
	}

	if err := appendPaymentCredit(tx, &payment, invoiceNumber); err != nil {
		return nil, err
	}
	return result, nil
}

// applyPaymentToInvoice increments in SQL guarded by the remaining amount, then derives
// the status from the stored columns so concurrent payments can never overshoot.
func applyPaymentToInvoice(tx *gorm.DB, invoice *models.Invoice, payment models.Payment) (*models.Invoice, error) {
	res := tx.Model(&models.Invoice{}).
		Where("id = ? AND remaining_amount >= CAST(? AS DECIMAL(20,4))", invoice.ID, payment.Amount).
		Updates(map[string]interface{}{
			"paid_amount":      gorm.Expr("paid_amount + CAST(? AS DECIMAL(20,4))", payment.Amount),
			"remaining_amount": gorm.Expr("remaining_amount - CAST(? AS DECIMAL(20,4))", payment.Amount),
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected != 1 {
		var current models.Invoice
		if err := tx.First(&current, invoice.ID).Error; err != nil {
			return nil, err
		}
		return nil, &OverpaymentError{InvoiceId: invoice.ID, Amount: payment.Amount, Remaining: current.RemainingAmount}
	}

	if err := tx.Model(&models.Invoice{}).
		Where("id = ?", invoice.ID).
		Update("status", gorm.Expr(
			"CASE WHEN remaining_amount <= 0 THEN ? WHEN paid_amount > 0 THEN ? ELSE ? END",
			models.InvoiceStatusPaid, models.InvoiceStatusPartial, models.InvoiceStatusUnpaid,
		)).Error; err != nil {
		return nil, err
	}

	var updated models.Invoice
	if err := tx.First(&updated, invoice.ID).Error; err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *PaymentService) List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, error) {
	q := s.db.WithContext(ctx).Model(&models.Payment{})
	if filter.CustomerId != nil {
		q = q.Where("customer_id = ?", *filter.CustomerId)
	}
	if filter.InvoiceId != nil {
		q = q.Where("invoice_id = ?", *filter.InvoiceId)
	}
	var payments []models.Payment
	if err := q.Order("payment_date DESC").Order("id DESC").Find(&payments).Error; err != nil {
		return nil, wrapPersistence("payment.list", err)
	}
	return payments, nil
}

func (s *PaymentService) ListCashRegisters(ctx context.Context) ([]models.CashRegister, error) {
	var registers []models.CashRegister
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&registers).Error; err != nil {
		return nil, wrapPersistence("cashRegister.list", err)
	}
	return registers, nil
}
