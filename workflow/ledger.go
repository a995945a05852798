package workflow

import (
	"bitbucket.org/mmdatafocus/cari_backend/config"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Ledger wires the services that share one database handle.
type Ledger struct {
	Sequences     *SequenceGenerator
	DeliveryNotes *DeliveryNoteService
	Invoices      *InvoiceService
	Payments      *PaymentService
	Accounts      *AccountService
}

// notifier and locker may be nil.
func NewLedger(db *gorm.DB, logger *logrus.Logger, settings config.Settings, notifier DeliveryNotifier, locker CustomerLocker) *Ledger {
	sequences := NewSequenceGenerator(db, settings)
	return &Ledger{
		Sequences:     sequences,
		DeliveryNotes: NewDeliveryNoteService(db, logger, sequences, notifier, settings),
		Invoices:      NewInvoiceService(db, logger, sequences, locker, settings),
		Payments:      NewPaymentService(db, logger, sequences),
		Accounts:      NewAccountService(db, logger),
	}
}
