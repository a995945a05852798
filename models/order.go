package models

import "time"

// Order is advanced to delivered when its delivery note is signed.
type Order struct {
	ID          int         `gorm:"primary_key" json:"id"`
	OrderNumber string      `gorm:"size:64;uniqueIndex;not null" json:"order_number"`
	CustomerId  int         `gorm:"index;not null" json:"customer_id"`
	Status      OrderStatus `gorm:"size:20;not null;default:pending" json:"status"`
	CreatedAt   time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}
