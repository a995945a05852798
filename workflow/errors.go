package workflow

import (
	"errors"
	"fmt"
	"strings"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	// ErrValidation marks malformed input; nothing was read or written.
	ErrValidation = errors.New("validation failed")

	// ErrStateConflict marks a request that is well-formed but not allowed in the current state.
	ErrStateConflict = errors.New("state conflict")

	ErrNotFound = errors.New("not found")

	ErrDeliveryNoteAlreadyInvoiced = fmt.Errorf("delivery note already invoiced: %w", ErrStateConflict)

	ErrOverpayment = errors.New("payment exceeds invoice remaining amount")

	// ErrDuplicateDocumentNumber is returned when a document number collides
	// after the single retry with a freshly allocated number.
	ErrDuplicateDocumentNumber = errors.New("duplicate document number")

	ErrPersistence = errors.New("persistence failure")
)

type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("validation error for field '%s': %s (value: %v)", e.Field, e.Message, e.Value)
	}
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// StateConflictError names the entity whose state blocked the operation.
type StateConflictError struct {
	Entity string
	Id     int
	Reason string
	// Err narrows the conflict (ErrDeliveryNoteAlreadyInvoiced, ErrNotFound); nil means a plain conflict.
	Err error
}

func (e *StateConflictError) Error() string {
	if e.Id > 0 {
		return fmt.Sprintf("%s %d: %s", e.Entity, e.Id, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Entity, e.Reason)
}

func (e *StateConflictError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrStateConflict
}

func (e *StateConflictError) Is(target error) bool {
	return target == ErrStateConflict
}

func newConflict(entity string, id int, reason string) *StateConflictError {
	return &StateConflictError{Entity: entity, Id: id, Reason: reason}
}

func newNotFound(entity string, id int) *StateConflictError {
	return &StateConflictError{Entity: entity, Id: id, Reason: "not found", Err: ErrNotFound}
}

func newAlreadyInvoiced(id int) *StateConflictError {
	return &StateConflictError{Entity: "delivery note", Id: id, Reason: "already invoiced", Err: ErrDeliveryNoteAlreadyInvoiced}
}

type OverpaymentError struct {
	InvoiceId int
	Amount    decimal.Decimal
	Remaining decimal.Decimal
}

func (e *OverpaymentError) Error() string {
	return fmt.Sprintf("payment of %s exceeds remaining %s on invoice %d", e.Amount.StringFixed(2), e.Remaining.StringFixed(2), e.InvoiceId)
}

func (e *OverpaymentError) Unwrap() error {
	return ErrOverpayment
}

// PersistenceError hides driver details from callers; Err keeps them for logs.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

// wrapPersistence leaves domain errors untouched and tags everything else as a persistence failure.
func wrapPersistence(op string, err error) error {
	if err == nil {
		return nil
	}
	if isDomainError(err) {
		return err
	}
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

func isDomainError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrStateConflict) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrOverpayment) ||
		errors.Is(err, ErrDuplicateDocumentNumber)
}

func isDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	// sqlite reports unique violations only through the message
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
