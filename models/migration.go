package models

import (
	"gorm.io/gorm"
)

// AllModels lists every table the ledger owns or reads, in dependency order.
func AllModels() []interface{} {
	return []interface{}{
		&Customer{}, &Product{}, &Order{}, &CashRegister{},
		&Sequence{},
		&Invoice{}, &InvoiceItem{},
		&DeliveryNote{}, &DeliveryNoteItem{},
		&Payment{},
		&AccountMovement{},
		&NotificationLog{},
		&IdempotencyKey{},
	}
}

func MigrateTable(db *gorm.DB) error {
	return db.AutoMigrate(AllModels()...)
}
