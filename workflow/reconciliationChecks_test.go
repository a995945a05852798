package workflow

import (
	"testing"

	"bitbucket.org/mmdatafocus/cari_backend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconciliationChecksCleanLedger(t *testing.T) {
	f := newFixture(t)
	invoice := f.invoiceOf(f.customer.ID, "1000", "2026-10-01")
	f.payOn(&invoice.ID, "250", "2026-10-02")
	f.payOn(nil, "40", "2026-10-03")
	f.createNote(f.customer.ID, item(f.widget.ID, "1", "10"))
	f.deliveredNote(f.customer.ID, item(f.gadget.ID, "2", "25"))

	findings, err := RunReconciliationChecks(f.ctx, f.db, testLogger())
	require.NoError(t, err)
	assert.Empty(t, findings)
}

func TestReconciliationChecksReportDrift(t *testing.T) {
	f := newFixture(t)
	invoice := f.invoiceOf(f.customer.ID, "1000", "2026-10-01")
	f.payOn(&invoice.ID, "250", "2026-10-02")

	require.NoError(t, f.db.Model(&models.Invoice{}).Where("id = ?", invoice.ID).
		Update("remaining_amount", 900).Error)
	require.NoError(t, f.db.Model(&models.DeliveryNote{}).Where("invoice_id = ?", invoice.ID).
		Update("is_invoiced", false).Error)

	findings, err := RunReconciliationChecks(f.ctx, f.db, testLogger())
	require.NoError(t, err)

	checks := map[string]int{}
	for _, finding := range findings {
		checks[finding.Check] = finding.EntityId
	}
	assert.Equal(t, invoice.ID, checks["invoice_remaining"])
	assert.Contains(t, checks, "delivery_note_invoice_link")
	assert.NotContains(t, checks, "payment_credit_movement")
}
