package workflow

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/cari_backend/config"
	"bitbucket.org/mmdatafocus/cari_backend/models"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const sequencePeriodLayout = "20060102"

// SequenceGenerator hands out document numbers from a per-kind, per-day counter row.
// Each call commits its own short transaction, so numbers are unique and
// ordered but a rolled back document leaves a gap.
type SequenceGenerator struct {
	db       *gorm.DB
	prefixes map[models.SequenceKind]string
	now      func() time.Time
}

func NewSequenceGenerator(db *gorm.DB, settings config.Settings) *SequenceGenerator {
	return &SequenceGenerator{
		db: db,
		prefixes: map[models.SequenceKind]string{
			models.SequenceKindInvoice:      settings.InvoicePrefix,
			models.SequenceKindDeliveryNote: settings.DeliveryNotePrefix,
			models.SequenceKindPayment:      settings.PaymentPrefix,
		},
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (g *SequenceGenerator) Next(ctx context.Context, kind models.SequenceKind) (number string, err error) {
	ctx, span := tracer.Start(ctx, "SequenceGenerator.Next")
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.String("sequence.kind", string(kind)))

	prefix, ok := g.prefixes[kind]
	if !ok {
		return "", NewValidationError("kind", kind, "unknown sequence kind")
	}
	period := g.now().Format(sequencePeriodLayout)

	var value int64
	err = runInTransaction(ctx, g.db, "sequence.next", func(tx *gorm.DB) error {
		v, err := incrementSequence(tx, kind, period)
		if err != nil {
			return err
		}
		value = v
		return nil
	})
	if err != nil {
		return "", err
	}
	return FormatDocumentNumber(prefix, period, value), nil
}

// incrementSequence bumps the counter in SQL and reads it back under the same row lock.
func incrementSequence(tx *gorm.DB, kind models.SequenceKind, period string) (int64, error) {
	for i := 0; i < 2; i++ {
		res := tx.Model(&models.Sequence{}).
			Where("kind = ? AND period = ?", kind, period).
			UpdateColumn("current_value", gorm.Expr("current_value + 1"))
		if res.Error != nil {
			return 0, res.Error
		}
		if res.RowsAffected == 1 {
			var seq models.Sequence
			if err := tx.Where("kind = ? AND period = ?", kind, period).Take(&seq).Error; err != nil {
				return 0, err
			}
			return seq.CurrentValue, nil
		}
		// first number of the day; a concurrent creator wins silently
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.Sequence{Kind: kind, Period: period}).Error; err != nil {
			return 0, err
		}
	}
	return 0, fmt.Errorf("sequence %s/%s could not be initialised", kind, period)
}

func FormatDocumentNumber(prefix string, period string, value int64) string {
	return fmt.Sprintf("%s-%s-%04d", prefix, period, value)
}
