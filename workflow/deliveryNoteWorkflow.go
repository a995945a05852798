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

const maxSignaturePayloadBytes = 2 << 20

// DeliveryNotifier is told about a signed delivery after its transaction commits.
// Implementations must not block.
type DeliveryNotifier interface {
	DeliverySigned(ctx context.Context, note models.DeliveryNote)
}

type DeliveryNoteService struct {
	db        *gorm.DB
	logger    *logrus.Logger
	sequences *SequenceGenerator
	notifier  DeliveryNotifier
	settings  config.Settings
	now       func() time.Time
}

func NewDeliveryNoteService(db *gorm.DB, logger *logrus.Logger, sequences *SequenceGenerator, notifier DeliveryNotifier, settings config.Settings) *DeliveryNoteService {
	return &DeliveryNoteService{
		db:        db,
		logger:    logger,
		sequences: sequences,
		notifier:  notifier,
		settings:  settings,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func validateNewDeliveryNote(input models.NewDeliveryNote) error {
	if input.CustomerId <= 0 {
		return NewValidationError("customer_id", input.CustomerId, "is required")
	}
	if input.OrderId != nil && *input.OrderId <= 0 {
		return NewValidationError("order_id", *input.OrderId, "must be positive")
	}
	if len(input.Items) == 0 {
		return NewValidationError("items", nil, "at least one item is required")
	}
	for i, item := range input.Items {
		field := fmt.Sprintf("items[%d]", i)
		if item.ProductId == nil && strings.TrimSpace(item.ProductName) == "" {
			return NewValidationError(field+".product_id", nil, "product_id or product_name is required")
		}
		if !item.Quantity.IsPositive() {
			return NewValidationError(field+".quantity", item.Quantity, "must be greater than zero")
		}
		if !utils.FitsAmountScale(item.Quantity) {
			return NewValidationError(field+".quantity", item.Quantity, "must have at most 4 decimal places")
		}
		if item.UnitPrice == nil {
			if item.ProductId == nil {
				return NewValidationError(field+".unit_price", nil, "is required for items without a product")
			}
			continue
		}
		if item.UnitPrice.IsNegative() {
			return NewValidationError(field+".unit_price", *item.UnitPrice, "must not be negative")
		}
		if !utils.FitsAmountScale(*item.UnitPrice) {
			return NewValidationError(field+".unit_price", *item.UnitPrice, "must have at most 4 decimal places")
		}
	}
	return nil
}

// Create writes a pending delivery note and its items in one transaction.
func (s *DeliveryNoteService) Create(ctx context.Context, input models.NewDeliveryNote) (note *models.DeliveryNote, err error) {
	ctx, span := tracer.Start(ctx, "DeliveryNoteService.Create")
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.Int("customer.id", input.CustomerId))

	if err := validateNewDeliveryNote(input); err != nil {
		return nil, err
	}
	deliveryDate := input.DeliveryDate
	if deliveryDate.IsZero() {
		deliveryDate = models.NewDate(s.now())
	}

	err = retryOnDuplicateNumber(func(attempt int) error {
		number, err := s.sequences.Next(ctx, models.SequenceKindDeliveryNote)
		if err != nil {
			return err
		}
		return runInTransaction(ctx, s.db, "deliveryNote.create", func(tx *gorm.DB) error {
			if err := requireCustomer(tx, input.CustomerId); err != nil {
				return err
			}
			if input.OrderId != nil {
				if err := requireOrderOfCustomer(tx, *input.OrderId, input.CustomerId); err != nil {
					return err
				}
			}
			items, err := snapshotDeliveryItems(tx, input.Items)
			if err != nil {
				return err
			}

			created := models.DeliveryNote{
				DeliveryNumber: number,
				CustomerId:     input.CustomerId,
				OrderId:        input.OrderId,
				DeliveryDate:   deliveryDate,
				Status:         models.DeliveryNoteStatusPending,
				TotalAmount:    sumItemTotals(items),
				Notes:          input.Notes,
				Items:          items,
			}
			if err := tx.Create(&created).Error; err != nil {
				if isDuplicateKeyErr(err) {
					return fmt.Errorf("%w: %s", ErrDuplicateDocumentNumber, number)
				}
				return err
			}
			note = &created
			return nil
		})
	})
	if err != nil {
		config.LogError(s.logger, "DeliveryNoteService", "Create", "create delivery note", input.CustomerId, err)
		return nil, err
	}
	return note, nil
}

func requireCustomer(tx *gorm.DB, customerId int) error {
	var count int64
	if err := tx.Model(&models.Customer{}).Where("id = ?", customerId).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return newNotFound("customer", customerId)
	}
	return nil
}

func requireOrderOfCustomer(tx *gorm.DB, orderId int, customerId int) error {
	var order models.Order
	if err := tx.First(&order, orderId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return newNotFound("order", orderId)
		}
		return err
	}
	if order.CustomerId != customerId {
		return newConflict("order", orderId, "belongs to another customer")
	}
	if order.Status == models.OrderStatusCancelled {
		return newConflict("order", orderId, "is cancelled")
	}
	return nil
}

// snapshotDeliveryItems copies product name, unit and (when omitted) price onto
// the items so later product edits never rewrite delivered documents.
func snapshotDeliveryItems(tx *gorm.DB, inputs []models.NewDeliveryNoteItem) ([]models.DeliveryNoteItem, error) {
	var productIds []int
	for _, in := range inputs {
		if in.ProductId != nil {
			productIds = append(productIds, *in.ProductId)
		}
	}
	products := make(map[int]models.Product)
	if len(productIds) > 0 {
		var found []models.Product
		if err := tx.Where("id IN ?", utils.UniqueInts(productIds)).Find(&found).Error; err != nil {
			return nil, err
		}
		for _, p := range found {
			products[p.ID] = p
		}
	}

	items := make([]models.DeliveryNoteItem, 0, len(inputs))
	for i, in := range inputs {
		item := models.DeliveryNoteItem{
			ProductId:   in.ProductId,
			ProductName: strings.TrimSpace(in.ProductName),
			Quantity:    in.Quantity,
			Unit:        strings.TrimSpace(in.Unit),
		}
		if in.UnitPrice != nil {
			item.UnitPrice = *in.UnitPrice
		}
		if in.ProductId != nil {
			p, ok := products[*in.ProductId]
			if !ok {
				return nil, NewValidationError(fmt.Sprintf("items[%d].product_id", i), *in.ProductId, "product not found")
			}
			item.ProductName = p.Name
			if item.Unit == "" {
				item.Unit = p.Unit
			}
			if in.UnitPrice == nil {
				item.UnitPrice = p.UnitPrice
			}
		}
		item.TotalPrice = item.Quantity.Mul(item.UnitPrice)
		items = append(items, item)
	}
	return items, nil
}

func sumItemTotals(items []models.DeliveryNoteItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.TotalPrice)
	}
	return total
}

// Sign moves a pending note to delivered and advances its order in the same transaction.
// The customer notification goes out after commit and never affects the result.
func (s *DeliveryNoteService) Sign(ctx context.Context, id int, input models.SignDeliveryNote) (note *models.DeliveryNote, err error) {
	ctx, span := tracer.Start(ctx, "DeliveryNoteService.Sign")
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.Int("delivery_note.id", id))

	signature := strings.TrimSpace(input.SignatureData)
	signer := strings.TrimSpace(input.SignerName)
	if signature == "" {
		return nil, NewValidationError("signature_data", nil, "signature is required")
	}
	if len(signature) > maxSignaturePayloadBytes {
		return nil, NewValidationError("signature_data", nil, "signature payload is too large")
	}
	if signer == "" {
		return nil, NewValidationError("signer_name", nil, "signer name is required")
	}
	if normalized, ok := utils.NormalizeSignature(signature, s.settings.SignatureMaxWidth, s.settings.SignatureMaxHeight); ok {
		signature = normalized
	}

	signedAt := s.now()
	var signed models.DeliveryNote
	err = runInTransaction(ctx, s.db, "deliveryNote.sign", func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&signed, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return newNotFound("delivery note", id)
			}
			return err
		}
		if signed.Status != models.DeliveryNoteStatusPending {
			return newConflict("delivery note", id, "already "+string(signed.Status))
		}

		res := tx.Model(&models.DeliveryNote{}).
			Where("id = ? AND status = ?", id, models.DeliveryNoteStatusPending).
			Updates(map[string]interface{}{
				"status":         models.DeliveryNoteStatusDelivered,
				"signature_data": signature,
				"signer_name":    signer,
				"signature_date": signedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return newConflict("delivery note", id, "was signed concurrently")
		}

		if signed.OrderId != nil {
			if err := markOrderDelivered(tx, *signed.OrderId); err != nil {
				return err
			}
		}

		signed.Status = models.DeliveryNoteStatusDelivered
		signed.SignatureData = &signature
		signed.SignerName = &signer
		signed.SignatureDate = &signedAt
		return tx.Where("delivery_note_id = ?", id).Order("id ASC").Find(&signed.Items).Error
	})
	if err != nil {
		config.LogError(s.logger, "DeliveryNoteService", "Sign", "sign delivery note", id, err)
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.DeliverySigned(ctx, signed)
	}
	return &signed, nil
}

func markOrderDelivered(tx *gorm.DB, orderId int) error {
	var order models.Order
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&order, orderId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return newNotFound("order", orderId)
		}
		return err
	}
	if order.Status == models.OrderStatusDelivered {
		return nil
	}
	return tx.Model(&models.Order{}).Where("id = ?", orderId).Update("status", models.OrderStatusDelivered).Error
}

// Delete removes a pending note with its items; signed notes are part of the ledger trail.
func (s *DeliveryNoteService) Delete(ctx context.Context, id int) (err error) {
	ctx, span := tracer.Start(ctx, "DeliveryNoteService.Delete")
	defer func() { endSpan(span, err) }()

	return runInTransaction(ctx, s.db, "deliveryNote.delete", func(tx *gorm.DB) error {
		var note models.DeliveryNote
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&note, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return newNotFound("delivery note", id)
			}
			return err
		}
		if note.Status != models.DeliveryNoteStatusPending {
			return newConflict("delivery note", id, "only pending delivery notes can be deleted")
		}
		return tx.Select("Items").Delete(&note).Error
	})
}

func (s *DeliveryNoteService) Get(ctx context.Context, id int) (*models.DeliveryNote, error) {
	var note models.DeliveryNote
	err := s.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		First(&note, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newNotFound("delivery note", id)
		}
		return nil, wrapPersistence("deliveryNote.get", err)
	}
	return &note, nil
}

func (s *DeliveryNoteService) List(ctx context.Context, filter models.DeliveryNoteFilter) ([]models.DeliveryNote, error) {
	q := s.db.WithContext(ctx).Model(&models.DeliveryNote{})
	if filter.CustomerId != nil {
		q = q.Where("customer_id = ?", *filter.CustomerId)
	}
	if filter.Status != nil {
		q = q.Where("status = ?", *filter.Status)
	}
	if filter.IsInvoiced != nil {
		q = q.Where("is_invoiced = ?", *filter.IsInvoiced)
	}

	var notes []models.DeliveryNote
	err := q.Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Order("delivery_date DESC").Order("id DESC").
		Find(&notes).Error
	if err != nil {
		return nil, wrapPersistence("deliveryNote.list", err)
	}
	return notes, nil
}
