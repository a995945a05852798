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
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var hundred = decimal.NewFromInt(100)

type InvoiceService struct {
	db        *gorm.DB
	logger    *logrus.Logger
	sequences *SequenceGenerator
	locker    CustomerLocker
	settings  config.Settings
	now       func() time.Time
}

// locker may be nil.
func NewInvoiceService(db *gorm.DB, logger *logrus.Logger, sequences *SequenceGenerator, locker CustomerLocker, settings config.Settings) *InvoiceService {
	return &InvoiceService{
		db:        db,
		logger:    logger,
		sequences: sequences,
		locker:    locker,
		settings:  settings,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func validateConsolidation(input models.NewInvoiceFromDeliveryNotes) error {
	if input.CustomerId <= 0 {
		return NewValidationError("customer_id", input.CustomerId, "is required")
	}
	if len(input.DeliveryNoteIds) == 0 {
		return NewValidationError("delivery_note_ids", nil, "at least one delivery note is required")
	}
	for _, id := range input.DeliveryNoteIds {
		if id <= 0 {
			return NewValidationError("delivery_note_ids", id, "must be positive")
		}
	}
	if input.TaxRate != nil && (input.TaxRate.IsNegative() || input.TaxRate.GreaterThan(hundred)) {
		return NewValidationError("tax_rate", *input.TaxRate, "must be between 0 and 100")
	}
	return nil
}

// ConsolidateFromDeliveryNotes turns delivered, uninvoiced notes of one customer into a single
// draft invoice, marks them invoiced and debits the customer's account, all in one transaction.
func (s *InvoiceService) ConsolidateFromDeliveryNotes(ctx context.Context, input models.NewInvoiceFromDeliveryNotes) (invoice *models.Invoice, err error) {
	ctx, span := tracer.Start(ctx, "InvoiceService.ConsolidateFromDeliveryNotes")
	defer func() { endSpan(span, err) }()
	span.SetAttributes(
		attribute.Int("customer.id", input.CustomerId),
		attribute.Int("delivery_notes.count", len(input.DeliveryNoteIds)),
	)

	if err := validateConsolidation(input); err != nil {
		return nil, err
	}
	ids := utils.UniqueInts(input.DeliveryNoteIds)
	invoiceDate := input.InvoiceDate
	if invoiceDate.IsZero() {
		invoiceDate = models.NewDate(s.now())
	}
	taxRate := s.settings.InvoiceTaxRate
	if input.TaxRate != nil {
		taxRate = *input.TaxRate
	}
	suppliedNumber := strings.TrimSpace(input.InvoiceNumber)

	if s.locker != nil && s.settings.ConsolidationLockEnabled {
		release, lockErr := s.locker.Lock(ctx, input.CustomerId)
		if lockErr != nil {
			if s.logger != nil {
				s.logger.WithFields(utils.LogFields(ctx)).WithFields(logrus.Fields{
					"field":       "InvoiceService",
					"customer_id": input.CustomerId,
				}).Warn("consolidation lock unavailable, relying on row locks: " + lockErr.Error())
			}
		} else {
			defer release()
		}
	}

	attemptFn := func(attempt int) error {
		number := suppliedNumber
		if number == "" {
			n, err := s.sequences.Next(ctx, models.SequenceKindInvoice)
			if err != nil {
				return err
			}
			number = n
		}
		return runInTransaction(ctx, s.db, "invoice.consolidate", func(tx *gorm.DB) error {
			created, err := consolidate(tx, input.CustomerId, ids, number, invoiceDate, taxRate, input.Notes, s.settings.InvoicePaymentTermDays)
			if err != nil {
				return err
			}
			invoice = created
			return nil
		})
	}
	if suppliedNumber != "" {
		// a caller-chosen number is never replaced by a generated one
		err = attemptFn(1)
	} else {
		err = retryOnDuplicateNumber(attemptFn)
	}
	if err != nil {
		config.LogError(s.logger, "InvoiceService", "ConsolidateFromDeliveryNotes", "consolidate delivery notes", ids, err)
		return nil, err
	}

	if s.logger != nil {
		s.logger.WithFields(utils.LogFields(ctx)).WithFields(logrus.Fields{
			"field":          "InvoiceService",
			"invoice_id":     invoice.ID,
			"invoice_number": invoice.InvoiceNumber,
			"customer_id":    invoice.CustomerId,
			"total_amount":   invoice.TotalAmount.String(),
		}).Info("invoice consolidated")
	}
	return invoice, nil
}

func consolidate(tx *gorm.DB, customerId int, ids []int, number string, invoiceDate models.Date, taxRate decimal.Decimal, notes string, termDays int) (*models.Invoice, error) {
	if err := requireCustomer(tx, customerId); err != nil {
		return nil, err
	}

	var selected []models.DeliveryNote
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("id ASC").
		Find(&selected).Error; err != nil {
		return nil, err
	}
	byId := make(map[int]models.DeliveryNote, len(selected))
	for _, n := range selected {
		byId[n.ID] = n
	}
	subtotal := decimal.Zero
	for _, id := range ids {
		note, ok := byId[id]
		if !ok {
			return nil, newNotFound("delivery note", id)
		}
		if note.CustomerId != customerId {
			return nil, newConflict("delivery note", id, "belongs to another customer")
		}
		if note.IsInvoiced || note.Status == models.DeliveryNoteStatusInvoiced {
			return nil, newAlreadyInvoiced(id)
		}
		if note.Status != models.DeliveryNoteStatusDelivered {
			return nil, newConflict("delivery note", id, "is not delivered")
		}
		subtotal = subtotal.Add(note.TotalAmount)
	}

	if !subtotal.IsPositive() {
		return nil, NewValidationError("delivery_note_ids", ids, "invoice subtotal must be greater than zero")
	}

	var noteItems []models.DeliveryNoteItem
	if err := tx.Where("delivery_note_id IN ?", ids).
		Order("delivery_note_id ASC").Order("id ASC").
		Find(&noteItems).Error; err != nil {
		return nil, err
	}

	taxAmount := utils.RoundMoney(subtotal.Mul(taxRate).Div(hundred))
	total := subtotal.Add(taxAmount)
	invoice := models.Invoice{
		InvoiceNumber:   number,
		CustomerId:      customerId,
		InvoiceDate:     invoiceDate,
		Subtotal:        subtotal,
		TaxRate:         taxRate,
		TaxAmount:       taxAmount,
		TotalAmount:     total,
		PaidAmount:      decimal.Zero,
		RemainingAmount: total,
		Status:          models.InvoiceStatusDraft,
		Notes:           notes,
		Items:           mergeInvoiceItems(noteItems),
	}
	if termDays > 0 {
		due := models.NewDate(invoiceDate.AddDate(0, 0, termDays))
		invoice.DueDate = &due
	}
	if err := tx.Omit("DeliveryNotes").Create(&invoice).Error; err != nil {
		if isDuplicateKeyErr(err) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateDocumentNumber, number)
		}
		return nil, err
	}

	res := tx.Model(&models.DeliveryNote{}).
		Where("id IN ? AND is_invoiced = ? AND status = ?", ids, false, models.DeliveryNoteStatusDelivered).
		Updates(map[string]interface{}{
			"status":      models.DeliveryNoteStatusInvoiced,
			"is_invoiced": true,
			"invoice_id":  invoice.ID,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected != int64(len(ids)) {
		return nil, &StateConflictError{
			Entity: "delivery notes",
			Reason: "were invoiced concurrently",
			Err:    ErrDeliveryNoteAlreadyInvoiced,
		}
	}

	if err := appendInvoiceDebit(tx, &invoice); err != nil {
		return nil, err
	}
	return &invoice, nil
}

type mergeKey struct {
	productId int
	name      string
	unit      string
}

// mergeInvoiceItems groups items by product in first-seen order. Quantities add up,
// the first unit price seen for a product wins and total_price is recomputed from it.
// Items without a product fall back to grouping by name and unit.
func mergeInvoiceItems(items []models.DeliveryNoteItem) []models.InvoiceItem {
	index := make(map[mergeKey]int, len(items))
	merged := make([]models.InvoiceItem, 0, len(items))
	for _, item := range items {
		var key mergeKey
		if item.ProductId != nil {
			key.productId = *item.ProductId
		} else {
			key.name = item.ProductName
			key.unit = item.Unit
		}
		if i, ok := index[key]; ok {
			merged[i].Quantity = merged[i].Quantity.Add(item.Quantity)
			continue
		}
		var productId *int
		if item.ProductId != nil {
			id := *item.ProductId
			productId = &id
		}
		index[key] = len(merged)
		merged = append(merged, models.InvoiceItem{
			ProductId:   productId,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Unit:        item.Unit,
		})
	}
	for i := range merged {
		merged[i].TotalPrice = merged[i].Quantity.Mul(merged[i].UnitPrice)
	}
	return merged
}

// Send moves a draft invoice to sent. Invoices already touched by payments keep their status.
func (s *InvoiceService) Send(ctx context.Context, id int) (invoice *models.Invoice, err error) {
	ctx, span := tracer.Start(ctx, "InvoiceService.Send")
	defer func() { endSpan(span, err) }()

	err = runInTransaction(ctx, s.db, "invoice.send", func(tx *gorm.DB) error {
		var current models.Invoice
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&current, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return newNotFound("invoice", id)
			}
			return err
		}
		if current.Status != models.InvoiceStatusDraft {
			return newConflict("invoice", id, "is "+string(current.Status)+", only draft invoices can be sent")
		}
		res := tx.Model(&models.Invoice{}).
			Where("id = ? AND status = ?", id, models.InvoiceStatusDraft).
			Update("status", models.InvoiceStatusSent)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return newConflict("invoice", id, "changed concurrently")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *InvoiceService) Get(ctx context.Context, id int) (*models.Invoice, error) {
	var invoice models.Invoice
	err := s.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("DeliveryNotes", func(db *gorm.DB) *gorm.DB { return db.Omit("signature_data").Order("id ASC") }).
		First(&invoice, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newNotFound("invoice", id)
		}
		return nil, wrapPersistence("invoice.get", err)
	}
	return &invoice, nil
}

func (s *InvoiceService) List(ctx context.Context, filter models.InvoiceFilter) ([]models.Invoice, error) {
	q := s.db.WithContext(ctx).Model(&models.Invoice{})
	if filter.CustomerId != nil {
		q = q.Where("customer_id = ?", *filter.CustomerId)
	}
	if filter.Status != nil {
		q = q.Where("status = ?", *filter.Status)
	}
	var invoices []models.Invoice
	err := q.Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Order("invoice_date DESC").Order("id DESC").
		Find(&invoices).Error
	if err != nil {
		return nil, wrapPersistence("invoice.list", err)
	}
	return invoices, nil
}
