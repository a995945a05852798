package workflow

import (
	"testing"

	"bitbucket.org/mmdatafocus/cari_backend/models"
	"bitbucket.org/mmdatafocus/cari_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFoldRunningBalance(t *testing.T) {
	movements := []models.AccountMovement{
		{ID: 1, MovementType: models.MovementTypeInvoice, DebitAmount: dec("1000"), CreditAmount: decimal.Zero},
		{ID: 2, MovementType: models.MovementTypePayment, DebitAmount: decimal.Zero, CreditAmount: dec("400")},
		{ID: 3, MovementType: models.MovementTypeInvoice, DebitAmount: dec("500"), CreditAmount: decimal.Zero},
	}

	lines, totals := foldRunningBalance(decimal.Zero, movements)
	require.Len(t, lines, 3)
	assertAmount(t, "1000", lines[0].Balance)
	assertAmount(t, "600", lines[1].Balance)
	assertAmount(t, "1100", lines[2].Balance)
	assertAmount(t, "1500", totals.TotalDebit)
	assertAmount(t, "400", totals.TotalCredit)

	seeded, _ := foldRunningBalance(dec("250"), movements)
	assertAmount(t, "1350", seeded[2].Balance)

	empty, totals := foldRunningBalance(dec("10"), nil)
	assert.Empty(t, empty)
	assertAmount(t, "0", totals.TotalDebit)
}

func (f *fixture) payOn(invoiceId *int, amount string, paymentDate string) {
	f.t.Helper()
	_, err := f.ledger.Payments.Record(f.ctx, models.NewPayment{
		CustomerId:    f.customer.ID,
		InvoiceId:     invoiceId,
		Amount:        dec(amount),
		PaymentMethod: models.PaymentMethodCash,
		PaymentDate:   date(paymentDate),
	})
	require.NoError(f.t, err)
}

func TestStatementRunningBalanceAndOpening(t *testing.T) {
	f := newFixture(t)
	first := f.invoiceOf(f.customer.ID, "1000", "2026-09-20")
	f.payOn(&first.ID, "400", "2026-10-02")
	f.invoiceOf(f.customer.ID, "500", "2026-10-05")
	f.payOn(nil, "100", "2026-10-05")
	f.invoiceOf(f.other.ID, "999", "2026-10-03")

	full, err := f.ledger.Accounts.Statement(f.ctx, StatementQuery{CustomerId: f.customer.ID})
	require.NoError(t, err)
	require.Len(t, full.Lines, 4)
	assert.Equal(t, models.MovementTypeInvoice, full.Lines[0].MovementType)
	assertAmount(t, "1000", full.Lines[0].Balance)
	assertAmount(t, "600", full.Lines[1].Balance)
	// same date: creation order decides
	assertAmount(t, "1100", full.Lines[2].Balance)
	assertAmount(t, "1000", full.Lines[3].Balance)
	assertAmount(t, "0", full.OpeningBalance)
	assertAmount(t, "1000", full.ClosingBalance)
	assertAmount(t, "1500", full.TotalDebit)
	assertAmount(t, "500", full.TotalCredit)

	start, err := utils.ParseDate("2026-10-01")
	require.NoError(t, err)
	end, err := utils.ParseDate("2026-10-04")
	require.NoError(t, err)

	window, err := f.ledger.Accounts.Statement(f.ctx, StatementQuery{CustomerId: f.customer.ID, StartDate: &start, EndDate: &end})
	require.NoError(t, err)
	require.Len(t, window.Lines, 1)
	assertAmount(t, "1000", window.OpeningBalance)
	assertAmount(t, "-400", window.Lines[0].Balance)
	assertAmount(t, "-400", window.ClosingBalance)
	assert.Equal(t, "2026-10-01", window.StartDate.String())
	assert.Equal(t, "2026-10-04", window.EndDate.String())

	withOpening, err := f.ledger.Accounts.Statement(f.ctx, StatementQuery{CustomerId: f.customer.ID, StartDate: &start, EndDate: &end, IncludeOpening: true})
	require.NoError(t, err)
	require.Len(t, withOpening.Lines, 1)
	assertAmount(t, "600", withOpening.Lines[0].Balance)
	assertAmount(t, "600", withOpening.ClosingBalance)
}

func TestStatementRejectsInvertedRange(t *testing.T) {
	f := newFixture(t)
	start, _ := utils.ParseDate("2026-10-10")
	end, _ := utils.ParseDate("2026-10-01")

	_, err := f.ledger.Accounts.Statement(f.ctx, StatementQuery{CustomerId: f.customer.ID, StartDate: &start, EndDate: &end})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = f.ledger.Accounts.Statement(f.ctx, StatementQuery{})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSummaryAsOf(t *testing.T) {
	f := newFixture(t)
	invoice := f.invoiceOf(f.customer.ID, "800", "2026-10-01")
	f.payOn(&invoice.ID, "300", "2026-10-10")

	asOf, err := utils.ParseDate("2026-10-05")
	require.NoError(t, err)
	before, err := f.ledger.Accounts.Summary(f.ctx, f.customer.ID, &asOf)
	require.NoError(t, err)
	assertAmount(t, "800", before.Balance)
	assertAmount(t, "0", before.TotalCredit)
	assert.Equal(t, "2026-10-05", before.AsOf.String())

	now, err := f.ledger.Accounts.Summary(f.ctx, f.customer.ID, nil)
	require.NoError(t, err)
	assertAmount(t, "800", now.TotalDebit)
	assertAmount(t, "300", now.TotalCredit)
	assertAmount(t, "500", now.Balance)
	assert.Nil(t, now.AsOf)

	// a customer without movements has a zero balance, not an error
	empty, err := f.ledger.Accounts.Balance(f.ctx, f.other.ID, nil)
	require.NoError(t, err)
	assertAmount(t, "0", empty)
}

func TestStatementIgnoresInsertionOrder(t *testing.T) {
	f := newFixture(t)
	rows := []models.AccountMovement{
		{CustomerId: f.customer.ID, MovementDate: date("2026-10-03"), MovementType: models.MovementTypeInvoice, ReferenceId: 3, DebitAmount: dec("50"), CreditAmount: decimal.Zero},
		{CustomerId: f.customer.ID, MovementDate: date("2026-10-01"), MovementType: models.MovementTypeInvoice, ReferenceId: 1, DebitAmount: dec("100"), CreditAmount: decimal.Zero},
		{CustomerId: f.customer.ID, MovementDate: date("2026-10-02"), MovementType: models.MovementTypePayment, ReferenceId: 2, DebitAmount: decimal.Zero, CreditAmount: dec("30")},
	}
	for i := range rows {
		require.NoError(t, f.db.Create(&rows[i]).Error)
	}

	statement, err := f.ledger.Accounts.Statement(f.ctx, StatementQuery{CustomerId: f.customer.ID})
	require.NoError(t, err)
	require.Len(t, statement.Lines, 3)
	assertAmount(t, "100", statement.Lines[0].Balance)
	assertAmount(t, "70", statement.Lines[1].Balance)
	assertAmount(t, "120", statement.Lines[2].Balance)

	balance, err := f.ledger.Accounts.Balance(f.ctx, f.customer.ID, nil)
	require.NoError(t, err)
	assertAmount(t, "120", balance)
}
