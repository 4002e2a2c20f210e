package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/ledger/backend/internal/domain/ledger"
	"github.com/ledger/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// ObligationModel is the persistence model for the Obligation aggregate root
type ObligationModel struct {
	AggregateModel
	Direction        ledger.Direction `gorm:"type:varchar(20);not null;index"`
	CounterpartyName string           `gorm:"type:varchar(200);not null;index"`
	OriginalAmount   decimal.Decimal  `gorm:"type:decimal(18,4);not null"`
	RemainingAmount  decimal.Decimal  `gorm:"type:decimal(18,4);not null"`
	Status           ledger.Status    `gorm:"type:varchar(20);not null;index"`
	Currency         string           `gorm:"type:varchar(3);not null"`
	IssueDate        time.Time        `gorm:"type:date;not null;index"`
	DueDate          time.Time        `gorm:"type:date;not null;index"`
	BranchID         *uuid.UUID       `gorm:"type:uuid;index"`
	Description      string           `gorm:"type:text"`
	CreatedBy        uuid.UUID        `gorm:"type:uuid;not null"`
	IsDeleted        bool             `gorm:"not null;default:false;index"`
	DeletedAt        *time.Time
	DeletedBy        *uuid.UUID `gorm:"type:uuid"`
}

// TableName returns the table name for GORM
func (ObligationModel) TableName() string {
	return "obligations"
}

// ToDomain converts the persistence model to a domain Obligation
func (m *ObligationModel) ToDomain() *ledger.Obligation {
	o := &ledger.Obligation{
		Direction:        m.Direction,
		CounterpartyName: m.CounterpartyName,
		OriginalAmount:   m.OriginalAmount,
		RemainingAmount:  m.RemainingAmount,
		Status:           m.Status,
		Currency:         valueobject.Currency(m.Currency),
		IssueDate:        m.IssueDate.UTC(),
		DueDate:          m.DueDate.UTC(),
		BranchID:         m.BranchID,
		Description:      m.Description,
		CreatedBy:        m.CreatedBy,
		IsDeleted:        m.IsDeleted,
		DeletedAt:        m.DeletedAt,
		DeletedBy:        m.DeletedBy,
	}
	m.PopulateAggregateRoot(&o.BaseAggregateRoot)
	return o
}

// FromDomain populates the persistence model from a domain Obligation
func (m *ObligationModel) FromDomain(o *ledger.Obligation) {
	m.FromDomainAggregateRoot(o.BaseAggregateRoot)
	m.Direction = o.Direction
	m.CounterpartyName = o.CounterpartyName
	m.OriginalAmount = o.OriginalAmount
	m.RemainingAmount = o.RemainingAmount
	m.Status = o.Status
	m.Currency = o.Currency.String()
	m.IssueDate = o.IssueDate
	m.DueDate = o.DueDate
	m.BranchID = o.BranchID
	m.Description = o.Description
	m.CreatedBy = o.CreatedBy
	m.IsDeleted = o.IsDeleted
	m.DeletedAt = o.DeletedAt
	m.DeletedBy = o.DeletedBy
}

// ObligationModelFromDomain creates a new persistence model from a domain Obligation
func ObligationModelFromDomain(o *ledger.Obligation) *ObligationModel {
	m := &ObligationModel{}
	m.FromDomain(o)
	return m
}

// PaymentModel is the persistence model for one payment ledger row.
// Rows are insert-only.
type PaymentModel struct {
	ID           uuid.UUID       `gorm:"type:uuid;primary_key"`
	ObligationID uuid.UUID       `gorm:"type:uuid;not null;index"`
	Amount       decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	PaymentDate  time.Time       `gorm:"type:date;not null"`
	Notes        string          `gorm:"type:text"`
	RecordedBy   uuid.UUID       `gorm:"type:uuid;not null"`
	RecordedAt   time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PaymentModel) TableName() string {
	return "obligation_payments"
}

// ToDomain converts the persistence model to a domain Payment
func (m *PaymentModel) ToDomain() *ledger.Payment {
	return &ledger.Payment{
		ID:           m.ID,
		ObligationID: m.ObligationID,
		Amount:       m.Amount,
		PaymentDate:  m.PaymentDate.UTC(),
		Notes:        m.Notes,
		RecordedBy:   m.RecordedBy,
		RecordedAt:   m.RecordedAt.UTC(),
	}
}

// PaymentModelFromDomain creates a new persistence model from a domain Payment
func PaymentModelFromDomain(p *ledger.Payment) *PaymentModel {
	return &PaymentModel{
		ID:           p.ID,
		ObligationID: p.ObligationID,
		Amount:       p.Amount,
		PaymentDate:  p.PaymentDate,
		Notes:        p.Notes,
		RecordedBy:   p.RecordedBy,
		RecordedAt:   p.RecordedAt,
	}
}
