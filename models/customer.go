package models

import "time"

// Customer is owned by the CRM side; the ledger only reads it.
type Customer struct {
	ID          int       `gorm:"primary_key" json:"id"`
	CompanyName string    `gorm:"size:255;not null" json:"company_name"`
	ContactName string    `gorm:"size:255" json:"contact_name"`
	Email       string    `gorm:"size:255" json:"email"`
	Phone       string    `gorm:"size:50" json:"phone"`
	Address     string    `gorm:"type:text" json:"address"`
	IsActive    *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// CustomerRef is the lightweight shape attached to list responses.
type CustomerRef struct {
	ID          int    `json:"id"`
	CompanyName string `json:"company_name"`
}

func (c Customer) GetId() int {
	return c.ID
}

func (c Customer) Ref() CustomerRef {
	return CustomerRef{ID: c.ID, CompanyName: c.CompanyName}
}
