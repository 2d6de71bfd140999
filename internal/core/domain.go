package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income  Type = "income"
	Expense Type = "expense"
)

type (
	// Type distinguishes money coming in from money going out.
	Type string

	// Transaction is the single record kind the application tracks.
	Transaction struct {
		ID          string
		Description string
		Amount      decimal.Decimal
		Type        Type
		Date        time.Time
	}

	// Draft carries the caller-supplied fields of a transaction that does not exist yet.
	// Nil means the field was not supplied.
	Draft struct {
		Description *string
		Amount      *decimal.Decimal
		Type        *Type
		Date        *time.Time
	}

	// Patch lists the fields to replace on an existing transaction.
	// Nil fields keep their current value.
	Patch struct {
		Description *string
		Amount      *decimal.Decimal
		Type        *Type
		Date        *time.Time
	}
)

var (
	ErrValidation       = errors.New("validation failed")
	ErrNotFound         = errors.New("transaction not found")
	ErrInvalidID        = errors.New("invalid transaction id")
	ErrStoreUnavailable = errors.New("store unavailable")
)

// ValidationError names the offending field. It matches ErrValidation with errors.Is.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// Valid reports whether t is one of the known variants.
func (t Type) Valid() bool {
	switch t {
	case Income, Expense:
		return true
	default:
		return false
	}
}

func (t Type) String() string {
	return string(t)
}

// ParseType accepts the wire spelling of a type, ignoring case and surrounding spaces.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", invalid("type", fmt.Sprintf("%q is not one of income, expense", s))
	}
	return t, nil
}

// Now returns the timestamp used for defaulted dates.
// Millisecond precision keeps stored dates stable across every backend.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

func validateDescription(d string) error {
	if strings.TrimSpace(d) == "" {
		return invalid("description", "is required")
	}
	return nil
}

func validateType(t Type) error {
	if !t.Valid() {
		return invalid("type", fmt.Sprintf("%q is not one of income, expense", string(t)))
	}
	return nil
}

// Validate checks that description, amount and type are present and well formed.
func (d Draft) Validate() error {
	if d.Description == nil {
		return invalid("description", "is required")
	}
	if err := validateDescription(*d.Description); err != nil {
		return err
	}
	// Amounts are not range checked: negative values are stored as sent.
	if d.Amount == nil {
		return invalid("amount", "is required")
	}
	if err := ValidateAmount(*d.Amount); err != nil {
		return err
	}
	if d.Type == nil {
		return invalid("type", "is required")
	}
	if err := validateType(*d.Type); err != nil {
		return err
	}
	if d.Date != nil && d.Date.IsZero() {
		return invalid("date", "cannot be zero")
	}
	return nil
}

// Build turns a valid draft into a transaction with the given id.
// A missing date defaults to now.
func (d Draft) Build(id string, now time.Time) (Transaction, error) {
	if err := d.Validate(); err != nil {
		return Transaction{}, err
	}
	t := Transaction{
		ID:          id,
		Description: *d.Description,
		Amount:      *d.Amount,
		Type:        *d.Type,
		Date:        now,
	}
	if d.Date != nil {
		t.Date = d.Date.UTC().Truncate(time.Millisecond)
	}
	return t, nil
}

// Validate checks the fields that are present.
func (p Patch) Validate() error {
	if p.Description != nil {
		if err := validateDescription(*p.Description); err != nil {
			return err
		}
	}
	if p.Amount != nil {
		if err := ValidateAmount(*p.Amount); err != nil {
			return err
		}
	}
	if p.Type != nil {
		if err := validateType(*p.Type); err != nil {
			return err
		}
	}
	if p.Date != nil && p.Date.IsZero() {
		return invalid("date", "cannot be zero")
	}
	return nil
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Description == nil && p.Amount == nil && p.Type == nil && p.Date == nil
}

// Apply returns t with the patched fields replaced. The id never changes.
func (p Patch) Apply(t Transaction) (Transaction, error) {
	if err := p.Validate(); err != nil {
		return t, err
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Amount != nil {
		t.Amount = *p.Amount
	}
	if p.Type != nil {
		t.Type = *p.Type
	}
	if p.Date != nil {
		t.Date = p.Date.UTC().Truncate(time.Millisecond)
	}
	return t, nil
}

// Validate checks a complete transaction, as read back from a store.
func (t Transaction) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return invalid("id", "is required")
	}
	if err := validateDescription(t.Description); err != nil {
		return err
	}
	if err := ValidateAmount(t.Amount); err != nil {
		return err
	}
	if err := validateType(t.Type); err != nil {
		return err
	}
	if t.Date.IsZero() {
		return invalid("date", "cannot be zero")
	}
	return nil
}
