package workflow

import (
	"context"
	"sync"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/cari_backend/config"
	"bitbucket.org/mmdatafocus/cari_backend/models"
	"bitbucket.org/mmdatafocus/cari_backend/utils"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var fixedNow = time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)

const today = "20261018"

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), config.GormConfig())
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// one connection keeps the in-memory database alive and serialises writers
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, models.MigrateTable(db))
	return db
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

type recordingNotifier struct {
	mu    sync.Mutex
	notes []models.DeliveryNote
}

func (n *recordingNotifier) DeliverySigned(ctx context.Context, note models.DeliveryNote) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notes = append(n.notes, note)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.notes)
}

type fixture struct {
	t        *testing.T
	ctx      context.Context
	db       *gorm.DB
	ledger   *Ledger
	notifier *recordingNotifier
	customer models.Customer
	other    models.Customer
	widget   models.Product
	gadget   models.Product
	register models.CashRegister
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	settings := config.DefaultSettings()
	notifier := &recordingNotifier{}
	ledger := NewLedger(db, testLogger(), settings, notifier, nil)
	clock := func() time.Time { return fixedNow }
	ledger.Sequences.now = clock
	ledger.DeliveryNotes.now = clock
	ledger.Invoices.now = clock
	ledger.Payments.now = clock

	f := &fixture{
		t:        t,
		ctx:      context.Background(),
		db:       db,
		ledger:   ledger,
		notifier: notifier,
		customer: models.Customer{CompanyName: "Anadolu Market", Email: "billing@anadolu.example"},
		other:    models.Customer{CompanyName: "Ege Gida", Email: "ap@ege.example"},
		widget:   models.Product{Name: "Widget", Unit: "pcs", UnitPrice: decimal.NewFromInt(10)},
		gadget:   models.Product{Name: "Gadget", Unit: "box", UnitPrice: decimal.NewFromInt(25)},
		register: models.CashRegister{Name: "Main till", IsActive: utils.NewTrue()},
	}
	require.NoError(t, db.Create(&f.customer).Error)
	require.NoError(t, db.Create(&f.other).Error)
	require.NoError(t, db.Create(&f.widget).Error)
	require.NoError(t, db.Create(&f.gadget).Error)
	require.NoError(t, db.Create(&f.register).Error)
	return f
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func date(s string) models.Date {
	t, err := utils.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return models.NewDate(t)
}

func intPtr(v int) *int {
	return &v
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func item(productId int, qty string, price string) models.NewDeliveryNoteItem {
	return models.NewDeliveryNoteItem{ProductId: intPtr(productId), Quantity: dec(qty), UnitPrice: decPtr(price)}
}

func (f *fixture) createNote(customerId int, items ...models.NewDeliveryNoteItem) *models.DeliveryNote {
	f.t.Helper()
	note, err := f.ledger.DeliveryNotes.Create(f.ctx, models.NewDeliveryNote{
		CustomerId: customerId,
		Items:      items,
	})
	require.NoError(f.t, err)
	return note
}

func (f *fixture) deliveredNote(customerId int, items ...models.NewDeliveryNoteItem) *models.DeliveryNote {
	f.t.Helper()
	note := f.createNote(customerId, items...)
	signed, err := f.ledger.DeliveryNotes.Sign(f.ctx, note.ID, models.SignDeliveryNote{
		SignatureData: "opaque-signature",
		SignerName:    "Ayse Yilmaz",
	})
	require.NoError(f.t, err)
	return signed
}

// invoiceOf delivers a single note worth total and consolidates it.
func (f *fixture) invoiceOf(customerId int, total string, invoiceDate string) *models.Invoice {
	f.t.Helper()
	note := f.deliveredNote(customerId, item(f.widget.ID, "1", total))
	invoice, err := f.ledger.Invoices.ConsolidateFromDeliveryNotes(f.ctx, models.NewInvoiceFromDeliveryNotes{
		CustomerId:      customerId,
		DeliveryNoteIds: []int{note.ID},
		InvoiceDate:     date(invoiceDate),
	})
	require.NoError(f.t, err)
	return invoice
}

func (f *fixture) count(model interface{}) int64 {
	f.t.Helper()
	var n int64
	require.NoError(f.t, f.db.Model(model).Count(&n).Error)
	return n
}

func assertAmount(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	if !dec(want).Equal(got) {
		assert.Failf(t, "amount mismatch", "want %s, got %s", want, got.String())
		if len(msgAndArgs) > 0 {
			t.Log(msgAndArgs...)
		}
	}
}
