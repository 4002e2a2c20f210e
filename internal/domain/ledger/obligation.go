package ledger

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/ledger/backend/internal/domain/shared"
	"github.com/ledger/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// AggregateTypeObligation is the aggregate type name used in events and audit entries
const AggregateTypeObligation = "Obligation"

// Direction discriminates a debt from a receivable
type Direction string

const (
	DirectionOwedByUs Direction = "OWED_BY_US" // Debt: the business owes a creditor
	DirectionOwedToUs Direction = "OWED_TO_US" // Receivable: a customer owes the business
)

// IsValid checks if the direction is known
func (d Direction) IsValid() bool {
	return d == DirectionOwedByUs || d == DirectionOwedToUs
}

// String returns the string representation of Direction
func (d Direction) String() string {
	return string(d)
}

// Status is derived from the remaining balance and never set by callers
type Status string

const (
	StatusActive  Status = "ACTIVE"  // Nothing paid yet, remaining = original
	StatusPartial Status = "PARTIAL" // 0 < remaining < original
	StatusPaid    Status = "PAID"    // remaining = 0, terminal
)

// IsValid checks if the status is known
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusPartial, StatusPaid:
		return true
	}
	return false
}

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// IsTerminal returns true once no further payments may be applied
func (s Status) IsTerminal() bool {
	return s == StatusPaid
}

// DeriveStatus computes the status for a balance pair
func DeriveStatus(original, remaining decimal.Decimal) Status {
	switch {
	case remaining.IsZero():
		return StatusPaid
	case remaining.Equal(original):
		return StatusActive
	default:
		return StatusPartial
	}
}

const (
	maxCounterpartyNameLength = 200
	maxDescriptionLength      = 1000
)

// Obligation is a debt or receivable tracked until settled.
// RemainingAmount and Status only change through ApplyPayment.
type Obligation struct {
	shared.BaseAggregateRoot
	Direction        Direction            `json:"direction"`
	CounterpartyName string               `json:"counterparty_name"`
	OriginalAmount   decimal.Decimal      `json:"original_amount"`
	RemainingAmount  decimal.Decimal      `json:"remaining_amount"`
	Status           Status               `json:"status"`
	Currency         valueobject.Currency `json:"currency"`
	IssueDate        time.Time            `json:"issue_date"`
	DueDate          time.Time            `json:"due_date"`
	BranchID         *uuid.UUID           `json:"branch_id,omitempty"`
	Description      string               `json:"description,omitempty"`
	CreatedBy        uuid.UUID            `json:"created_by"`
	IsDeleted        bool                 `json:"is_deleted"`
	DeletedAt        *time.Time           `json:"deleted_at,omitempty"`
	DeletedBy        *uuid.UUID           `json:"deleted_by,omitempty"`
}

// NewObligationParams carries the caller-controlled fields of a new obligation
type NewObligationParams struct {
	Direction        Direction
	CounterpartyName string
	Amount           decimal.Decimal
	Currency         string
	IssueDate        time.Time
	DueDate          time.Time
	BranchID         *uuid.UUID
	Description      string
	CreatedBy        uuid.UUID
}

// NewObligation validates params and creates an ACTIVE obligation with nothing paid
func NewObligation(p NewObligationParams, now time.Time) (*Obligation, error) {
	if !p.Direction.IsValid() {
		return nil, shared.NewValidationError("direction", fmt.Sprintf("direction must be %s or %s", DirectionOwedByUs, DirectionOwedToUs))
	}
	name := strings.TrimSpace(p.CounterpartyName)
	if name == "" {
		return nil, shared.NewValidationError("counterparty_name", "counterparty name cannot be empty")
	}
	if utf8.RuneCountInString(name) > maxCounterpartyNameLength {
		return nil, shared.NewValidationError("counterparty_name", fmt.Sprintf("counterparty name cannot exceed %d characters", maxCounterpartyNameLength))
	}
	if err := valueobject.CheckPositiveAmount(p.Amount); err != nil {
		return nil, shared.NewValidationError("amount", err.Error())
	}
	currency, err := valueobject.ParseCurrency(p.Currency)
	if err != nil {
		return nil, shared.NewValidationError("currency", err.Error())
	}
	if p.IssueDate.IsZero() {
		return nil, shared.NewValidationError("issue_date", "issue date is required")
	}
	if p.DueDate.IsZero() {
		return nil, shared.NewValidationError("due_date", "due date is required")
	}
	issue := shared.TruncateToDay(p.IssueDate)
	due := shared.TruncateToDay(p.DueDate)
	if due.Before(issue) {
		return nil, shared.NewValidationError("due_date", "due date must not be before issue date")
	}
	if utf8.RuneCountInString(p.Description) > maxDescriptionLength {
		return nil, shared.NewValidationError("description", fmt.Sprintf("description cannot exceed %d characters", maxDescriptionLength))
	}
	if p.CreatedBy == uuid.Nil {
		return nil, shared.NewValidationError("created_by", "creator is required")
	}

	o := &Obligation{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(now),
		Direction:         p.Direction,
		CounterpartyName:  name,
		OriginalAmount:    p.Amount,
		RemainingAmount:   p.Amount,
		Status:            StatusActive,
		Currency:          currency,
		IssueDate:         issue,
		DueDate:           due,
		BranchID:          p.BranchID,
		Description:       p.Description,
		CreatedBy:         p.CreatedBy,
	}

	o.AddDomainEvent(NewObligationCreatedEvent(o))

	return o, nil
}

// ApplyPayment records a payment against the in-memory obligation and bumps its version.
// The caller persists the returned payment and the new balance together using the
// version the obligation had before this call.
func (o *Obligation) ApplyPayment(amount decimal.Decimal, paymentDate time.Time, notes string, recordedBy uuid.UUID, now time.Time) (*Payment, error) {
	if o.IsDeleted {
		return nil, shared.NewNotFoundError("obligation", o.ID)
	}
	if err := valueobject.CheckPositiveAmount(amount); err != nil {
		return nil, shared.NewValidationError("amount", err.Error())
	}
	if o.Status.IsTerminal() {
		return nil, shared.NewConflictError("ALREADY_SETTLED", "obligation is already settled")
	}
	if amount.GreaterThan(o.RemainingAmount) {
		return nil, shared.NewValidationError("amount",
			fmt.Sprintf("payment amount %s exceeds remaining balance %s", amount.String(), o.RemainingAmount.String()))
	}

	payment, err := NewPayment(o.ID, amount, paymentDate, notes, recordedBy, now)
	if err != nil {
		return nil, err
	}

	before := o.Snapshot()
	o.RemainingAmount = o.RemainingAmount.Sub(amount)
	o.Status = DeriveStatus(o.OriginalAmount, o.RemainingAmount)
	o.UpdatedAt = now
	o.IncrementVersion()

	o.AddDomainEvent(NewPaymentRecordedEvent(o, payment))
	o.AddDomainEvent(NewObligationUpdatedEvent(o, before))

	return payment, nil
}

// MarkDeleted soft-deletes the obligation. The store refuses the change if payments exist.
func (o *Obligation) MarkDeleted(by uuid.UUID, now time.Time) error {
	if o.IsDeleted {
		return shared.NewNotFoundError("obligation", o.ID)
	}
	if !o.RemainingAmount.Equal(o.OriginalAmount) {
		return shared.NewConflictError("HAS_PAYMENTS", "cannot delete an obligation with recorded payments")
	}

	o.IsDeleted = true
	o.DeletedAt = &now
	o.DeletedBy = &by
	o.UpdatedAt = now
	o.IncrementVersion()

	o.AddDomainEvent(NewObligationDeletedEvent(o))

	return nil
}

// CollectedAmount returns original minus remaining
func (o *Obligation) CollectedAmount() decimal.Decimal {
	return o.OriginalAmount.Sub(o.RemainingAmount)
}

// IsOverdue returns true if the obligation is unpaid past its due date
func (o *Obligation) IsOverdue(now time.Time) bool {
	return !o.Status.IsTerminal() && o.DueDate.Before(shared.TruncateToDay(now))
}

// Snapshot is the audit representation of an obligation at one point in time
type Snapshot struct {
	RemainingAmount decimal.Decimal `json:"remaining_amount"`
	Status          Status          `json:"status"`
	Version         int             `json:"version"`
	IsDeleted       bool            `json:"is_deleted"`
}

// Snapshot captures the mutable part of the obligation
func (o *Obligation) Snapshot() Snapshot {
	return Snapshot{
		RemainingAmount: o.RemainingAmount,
		Status:          o.Status,
		Version:         o.Version,
		IsDeleted:       o.IsDeleted,
	}
}

// Ensure Obligation satisfies the aggregate contract
var _ shared.AggregateRoot = (*Obligation)(nil)
