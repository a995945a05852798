package workflow

import (
	"context"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ReconciliationFinding is one row that breaks a ledger invariant.
type ReconciliationFinding struct {
	Check    string `json:"check"`
	Entity   string `json:"entity"`
	EntityId int    `json:"entity_id"`
	Detail   string `json:"detail"`
}

type reconciliationCheck struct {
	name   string
	entity string
	detail string
	query  string
}

// amounts are compared with a tolerance below the stored precision
var reconciliationChecks = []reconciliationCheck{
	{
		name:   "invoice_remaining",
		entity: "invoice",
		detail: "remaining_amount differs from total_amount - paid_amount or is negative",
		query: `SELECT id FROM invoices
			WHERE ABS(remaining_amount - (total_amount - paid_amount)) > 0.00005 OR remaining_amount < 0
			ORDER BY id`,
	},
	{
		name:   "invoice_paid_vs_payments",
		entity: "invoice",
		detail: "paid_amount differs from the sum of allocated payments",
		query: `SELECT i.id FROM invoices i
			WHERE ABS(i.paid_amount - COALESCE((SELECT SUM(p.amount) FROM payments p WHERE p.invoice_id = i.id), 0)) > 0.00005
			ORDER BY i.id`,
	},
	{
		name:   "invoice_debit_movement",
		entity: "invoice",
		detail: "invoice debit movements do not add up to total_amount",
		query: `SELECT i.id FROM invoices i
			WHERE ABS(i.total_amount - COALESCE((SELECT SUM(m.debit_amount) FROM account_movements m
				WHERE m.movement_type = 'invoice' AND m.reference_id = i.id), 0)) > 0.00005
			ORDER BY i.id`,
	},
	{
		name:   "payment_credit_movement",
		entity: "payment",
		detail: "payment does not have exactly one matching credit movement",
		query: `SELECT p.id FROM payments p
			WHERE (SELECT COUNT(*) FROM account_movements m
				WHERE m.movement_type = 'payment' AND m.reference_id = p.id AND ABS(m.credit_amount - p.amount) <= 0.00005) <> 1
			ORDER BY p.id`,
	},
	{
		name:   "delivery_note_invoice_link",
		entity: "delivery_note",
		detail: "invoiced flag, status and invoice link disagree",
		query: `SELECT d.id FROM delivery_notes d
			WHERE (d.is_invoiced = true AND (d.status <> 'invoiced' OR d.invoice_id IS NULL
				OR NOT EXISTS (SELECT 1 FROM invoices i WHERE i.id = d.invoice_id)))
			OR (d.is_invoiced = false AND (d.status = 'invoiced' OR d.invoice_id IS NOT NULL))
			ORDER BY d.id`,
	},
	{
		name:   "delivery_note_signature",
		entity: "delivery_note",
		detail: "signature fields are inconsistent with status",
		query: `SELECT id FROM delivery_notes
			WHERE (status = 'pending' AND (signer_name IS NOT NULL OR signature_date IS NOT NULL))
			OR (status <> 'pending' AND (signer_name IS NULL OR signature_date IS NULL OR signature_data IS NULL))
			ORDER BY id`,
	},
	{
		name:   "movement_one_sided",
		entity: "account_movement",
		detail: "movement must carry exactly one of debit and credit",
		query: `SELECT id FROM account_movements
			WHERE (debit_amount <> 0 AND credit_amount <> 0) OR (debit_amount = 0 AND credit_amount = 0)
			ORDER BY id`,
	},
}

// RunReconciliationChecks audits the ledger invariants. It only reads.
func RunReconciliationChecks(ctx context.Context, db *gorm.DB, logger *logrus.Logger) ([]ReconciliationFinding, error) {
	var findings []ReconciliationFinding
	for _, check := range reconciliationChecks {
		var ids []int
		if err := db.WithContext(ctx).Raw(check.query).Scan(&ids).Error; err != nil {
			return nil, wrapPersistence("reconciliation."+check.name, err)
		}
		for _, id := range ids {
			findings = append(findings, ReconciliationFinding{
				Check:    check.name,
				Entity:   check.entity,
				EntityId: id,
				Detail:   check.detail,
			})
		}
	}
	if logger != nil {
		logger.WithFields(logrus.Fields{
			"field":    "ReconciliationChecks",
			"findings": len(findings),
		}).Info("reconciliation checks completed")
	}
	return findings, nil
}
