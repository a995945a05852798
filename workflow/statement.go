package workflow

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/cari_backend/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// AccountService answers balance and statement queries from the movement ledger.
// Balances are always derived; no stored balance exists to drift.
type AccountService struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewAccountService(db *gorm.DB, logger *logrus.Logger) *AccountService {
	return &AccountService{db: db, logger: logger}
}

type movementTotals struct {
	TotalDebit  decimal.Decimal
	TotalCredit decimal.Decimal
}

func sumMovements(db *gorm.DB, customerId int, from *time.Time, to *time.Time, before *time.Time) (movementTotals, error) {
	q := db.Model(&models.AccountMovement{}).Where("customer_id = ?", customerId)
	if from != nil {
		q = q.Where("movement_date >= ?", *from)
	}
	if to != nil {
		q = q.Where("movement_date <= ?", *to)
	}
	if before != nil {
		q = q.Where("movement_date < ?", *before)
	}
	var totals movementTotals
	err := q.Select("COALESCE(SUM(debit_amount), 0) AS total_debit, COALESCE(SUM(credit_amount), 0) AS total_credit").
		Scan(&totals).Error
	return totals, err
}

// Balance is Σdebit − Σcredit over movements dated on or before asOf (all movements when nil).
func (s *AccountService) Balance(ctx context.Context, customerId int, asOf *time.Time) (decimal.Decimal, error) {
	summary, err := s.Summary(ctx, customerId, asOf)
	if err != nil {
		return decimal.Zero, err
	}
	return summary.Balance, nil
}

func (s *AccountService) Summary(ctx context.Context, customerId int, asOf *time.Time) (summary *models.AccountSummary, err error) {
	ctx, span := tracer.Start(ctx, "AccountService.Summary")
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.Int("customer.id", customerId))

	if customerId <= 0 {
		return nil, NewValidationError("customer_id", customerId, "is required")
	}
	totals, err := sumMovements(s.db.WithContext(ctx), customerId, nil, asOf, nil)
	if err != nil {
		return nil, wrapPersistence("account.summary", err)
	}
	summary = &models.AccountSummary{
		CustomerId:  customerId,
		TotalDebit:  totals.TotalDebit,
		TotalCredit: totals.TotalCredit,
		Balance:     totals.TotalDebit.Sub(totals.TotalCredit),
	}
	if asOf != nil {
		d := models.NewDate(*asOf)
		summary.AsOf = &d
	}
	return summary, nil
}

type StatementQuery struct {
	CustomerId int
	StartDate  *time.Time
	EndDate    *time.Time
	// IncludeOpening seeds the running balance with everything dated before StartDate.
	IncludeOpening bool
}

func (s *AccountService) Statement(ctx context.Context, query StatementQuery) (statement *models.Statement, err error) {
	ctx, span := tracer.Start(ctx, "AccountService.Statement")
	defer func() { endSpan(span, err) }()
	span.SetAttributes(attribute.Int("customer.id", query.CustomerId))

	if query.CustomerId <= 0 {
		return nil, NewValidationError("customer_id", query.CustomerId, "is required")
	}
	if query.StartDate != nil && query.EndDate != nil && query.EndDate.Before(*query.StartDate) {
		return nil, NewValidationError("end_date", query.EndDate.Format("2006-01-02"), "must not be before start_date")
	}

	db := s.db.WithContext(ctx)
	opening := decimal.Zero
	if query.StartDate != nil {
		before, err := sumMovements(db, query.CustomerId, nil, nil, query.StartDate)
		if err != nil {
			return nil, wrapPersistence("account.statement", err)
		}
		opening = before.TotalDebit.Sub(before.TotalCredit)
	}

	q := db.Where("customer_id = ?", query.CustomerId)
	if query.StartDate != nil {
		q = q.Where("movement_date >= ?", *query.StartDate)
	}
	if query.EndDate != nil {
		q = q.Where("movement_date <= ?", *query.EndDate)
	}
	var movements []models.AccountMovement
	if err := q.Order("movement_date ASC").Order("created_at ASC").Order("id ASC").Find(&movements).Error; err != nil {
		return nil, wrapPersistence("account.statement", err)
	}

	seed := decimal.Zero
	if query.IncludeOpening {
		seed = opening
	}
	lines, totals := foldRunningBalance(seed, movements)

	statement = &models.Statement{
		CustomerId:     query.CustomerId,
		OpeningBalance: opening,
		ClosingBalance: seed.Add(totals.TotalDebit).Sub(totals.TotalCredit),
		TotalDebit:     totals.TotalDebit,
		TotalCredit:    totals.TotalCredit,
		Lines:          lines,
	}
	if query.StartDate != nil {
		d := models.NewDate(*query.StartDate)
		statement.StartDate = &d
	}
	if query.EndDate != nil {
		d := models.NewDate(*query.EndDate)
		statement.EndDate = &d
	}
	return statement, nil
}

// foldRunningBalance expects movements already in (movement_date, created_at, id) order.
func foldRunningBalance(seed decimal.Decimal, movements []models.AccountMovement) ([]models.StatementLine, movementTotals) {
	lines := make([]models.StatementLine, 0, len(movements))
	totals := movementTotals{TotalDebit: decimal.Zero, TotalCredit: decimal.Zero}
	running := seed
	for _, m := range movements {
		running = running.Add(m.DebitAmount).Sub(m.CreditAmount)
		totals.TotalDebit = totals.TotalDebit.Add(m.DebitAmount)
		totals.TotalCredit = totals.TotalCredit.Add(m.CreditAmount)
		lines = append(lines, models.StatementLine{AccountMovement: m, Balance: running})
	}
	return lines, totals
}
