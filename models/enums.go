package models

import (
	"encoding/json"
	"errors"
)

type DeliveryNoteStatus string

const (
	DeliveryNoteStatusPending   DeliveryNoteStatus = "pending"
	DeliveryNoteStatusDelivered DeliveryNoteStatus = "delivered"
	DeliveryNoteStatusInvoiced  DeliveryNoteStatus = "invoiced"
)

func (s DeliveryNoteStatus) IsValid() bool {
	switch s {
	case DeliveryNoteStatusPending, DeliveryNoteStatusDelivered, DeliveryNoteStatusInvoiced:
		return true
	}
	return false
}

type InvoiceStatus string

const (
	InvoiceStatusDraft   InvoiceStatus = "draft"
	InvoiceStatusSent    InvoiceStatus = "sent"
	InvoiceStatusUnpaid  InvoiceStatus = "unpaid"
	InvoiceStatusPartial InvoiceStatus = "partial"
	InvoiceStatusPaid    InvoiceStatus = "paid"
)

func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusSent, InvoiceStatusUnpaid, InvoiceStatusPartial, InvoiceStatusPaid:
		return true
	}
	return false
}

type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodCreditCard   PaymentMethod = "credit_card"
	PaymentMethodCheck        PaymentMethod = "check"
)

func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodBankTransfer, PaymentMethodCreditCard, PaymentMethodCheck:
		return true
	}
	return false
}

func (m *PaymentMethod) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return errors.New("payment method must be string")
	}
	v := PaymentMethod(s)
	if s != "" && !v.IsValid() {
		return errors.New("invalid payment method")
	}
	*m = v
	return nil
}

type MovementType string

const (
	MovementTypeInvoice MovementType = "invoice"
	MovementTypePayment MovementType = "payment"
)

type OrderStatus string

const (
	OrderStatusPending      OrderStatus = "pending"
	OrderStatusInProduction OrderStatus = "in_production"
	OrderStatusReady        OrderStatus = "ready"
	OrderStatusDelivered    OrderStatus = "delivered"
	OrderStatusCancelled    OrderStatus = "cancelled"
)

type SequenceKind string

const (
	SequenceKindInvoice      SequenceKind = "invoice"
	SequenceKindDeliveryNote SequenceKind = "delivery_note"
	SequenceKindPayment      SequenceKind = "payment"
)

type NotificationStatus string

const (
	NotificationStatusPending    NotificationStatus = "pending"
	NotificationStatusProcessing NotificationStatus = "processing"
	NotificationStatusSent       NotificationStatus = "sent"
	NotificationStatusFailed     NotificationStatus = "failed"
	NotificationStatusDead       NotificationStatus = "dead"
)

const (
	NotificationChannelEmail        = "email"
	NotificationEventDeliverySigned = "delivery_signed"
)
