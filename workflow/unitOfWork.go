package workflow

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("cari-ledger/workflow")

// runInTransaction is the single unit of work behind every mutating operation:
// fn either commits as a whole or leaves no trace.
func runInTransaction(ctx context.Context, db *gorm.DB, op string, fn func(tx *gorm.DB) error) error {
	err := db.WithContext(ctx).Transaction(fn)
	return wrapPersistence(op, err)
}

// retryOnDuplicateNumber runs fn once more when it fails with ErrDuplicateDocumentNumber.
// fn must allocate a fresh number on every call.
func retryOnDuplicateNumber(fn func(attempt int) error) error {
	err := fn(1)
	if !errors.Is(err, ErrDuplicateDocumentNumber) {
		return err
	}
	return fn(2)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		if !isDomainError(err) {
			span.SetStatus(codes.Error, err.Error())
		}
	}
	span.End()
}
