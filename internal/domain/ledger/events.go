package ledger

import (
	"github.com/google/uuid"
	"github.com/ledger/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Event type names
const (
	EventTypeObligationCreated = "ObligationCreated"
	EventTypePaymentRecorded   = "PaymentRecorded"
	EventTypeObligationUpdated = "ObligationUpdated"
	EventTypeObligationDeleted = "ObligationDeleted"
)

// ObligationCreatedEvent is raised when a new obligation is created
type ObligationCreatedEvent struct {
	shared.BaseDomainEvent
	ObligationID     uuid.UUID       `json:"obligation_id"`
	Direction        Direction       `json:"direction"`
	CounterpartyName string          `json:"counterparty_name"`
	OriginalAmount   decimal.Decimal `json:"original_amount"`
	Currency         string          `json:"currency"`
	DueDate          string          `json:"due_date"`
	CreatedBy        uuid.UUID       `json:"created_by"`
}

// NewObligationCreatedEvent creates a new ObligationCreatedEvent
func NewObligationCreatedEvent(o *Obligation) *ObligationCreatedEvent {
	return &ObligationCreatedEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(EventTypeObligationCreated, AggregateTypeObligation, o.ID, o.BranchID, o.CreatedAt),
		ObligationID:     o.ID,
		Direction:        o.Direction,
		CounterpartyName: o.CounterpartyName,
		OriginalAmount:   o.OriginalAmount,
		Currency:         o.Currency.String(),
		DueDate:          o.DueDate.Format("2006-01-02"),
		CreatedBy:        o.CreatedBy,
	}
}

// PaymentRecordedEvent is raised when a payment has been appended to the ledger
type PaymentRecordedEvent struct {
	shared.BaseDomainEvent
	PaymentID    uuid.UUID       `json:"payment_id"`
	ObligationID uuid.UUID       `json:"obligation_id"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	PaymentDate  string          `json:"payment_date"`
	RecordedBy   uuid.UUID       `json:"recorded_by"`
}

// NewPaymentRecordedEvent creates a new PaymentRecordedEvent
func NewPaymentRecordedEvent(o *Obligation, p *Payment) *PaymentRecordedEvent {
	return &PaymentRecordedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentRecorded, AggregateTypeObligation, o.ID, o.BranchID, p.RecordedAt),
		PaymentID:       p.ID,
		ObligationID:    o.ID,
		Amount:          p.Amount,
		Currency:        o.Currency.String(),
		PaymentDate:     p.PaymentDate.Format("2006-01-02"),
		RecordedBy:      p.RecordedBy,
	}
}

// ObligationUpdatedEvent is raised after the balance or status of an obligation changed
type ObligationUpdatedEvent struct {
	shared.BaseDomainEvent
	ObligationID      uuid.UUID       `json:"obligation_id"`
	PreviousStatus    Status          `json:"previous_status"`
	Status            Status          `json:"status"`
	PreviousRemaining decimal.Decimal `json:"previous_remaining"`
	RemainingAmount   decimal.Decimal `json:"remaining_amount"`
	Version           int             `json:"version"`
}

// NewObligationUpdatedEvent creates a new ObligationUpdatedEvent
func NewObligationUpdatedEvent(o *Obligation, before Snapshot) *ObligationUpdatedEvent {
	return &ObligationUpdatedEvent{
		BaseDomainEvent:   shared.NewBaseDomainEvent(EventTypeObligationUpdated, AggregateTypeObligation, o.ID, o.BranchID, o.UpdatedAt),
		ObligationID:      o.ID,
		PreviousStatus:    before.Status,
		Status:            o.Status,
		PreviousRemaining: before.RemainingAmount,
		RemainingAmount:   o.RemainingAmount,
		Version:           o.Version,
	}
}

// ObligationDeletedEvent is raised when an obligation is soft-deleted
type ObligationDeletedEvent struct {
	shared.BaseDomainEvent
	ObligationID uuid.UUID `json:"obligation_id"`
	DeletedBy    uuid.UUID `json:"deleted_by"`
}

// NewObligationDeletedEvent creates a new ObligationDeletedEvent
func NewObligationDeletedEvent(o *Obligation) *ObligationDeletedEvent {
	var by uuid.UUID
	if o.DeletedBy != nil {
		by = *o.DeletedBy
	}
	return &ObligationDeletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeObligationDeleted, AggregateTypeObligation, o.ID, o.BranchID, o.UpdatedAt),
		ObligationID:    o.ID,
		DeletedBy:       by,
	}
}
