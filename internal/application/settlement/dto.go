package settlement

import (
	"time"

	"github.com/google/uuid"
	"github.com/ledger/backend/internal/domain/ledger"
	"github.com/shopspring/decimal"
)

// CreateObligationInput carries the caller-supplied fields of a new obligation
type CreateObligationInput struct {
	Direction        string          `json:"direction" validate:"required,oneof=OWED_BY_US OWED_TO_US"`
	CounterpartyName string          `json:"counterparty_name" validate:"required,max=200"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency" validate:"required,len=3,alpha"`
	IssueDate        time.Time       `json:"issue_date" validate:"required"`
	DueDate          time.Time       `json:"due_date" validate:"required"`
	// BranchID defaults to the actor's branch when omitted
	BranchID    *uuid.UUID `json:"branch_id"`
	Description string     `json:"description" validate:"max=1000"`
}

// ApplyPaymentInput carries one payment against an obligation
type ApplyPaymentInput struct {
	Amount decimal.Decimal `json:"amount"`
	// PaymentDate defaults to the current day when zero
	PaymentDate time.Time `json:"payment_date"`
	Notes       string    `json:"notes" validate:"max=1000"`
}

// ListFilter is the query for a page of obligations
type ListFilter struct {
	Page        int        `json:"page" validate:"gte=0"`
	Limit       int        `json:"limit" validate:"gte=0"`
	Status      string     `json:"status" validate:"omitempty,oneof=ACTIVE PARTIAL PAID"`
	Direction   string     `json:"direction" validate:"omitempty,oneof=OWED_BY_US OWED_TO_US"`
	Currency    string     `json:"currency" validate:"omitempty,len=3,alpha"`
	Search      string     `json:"search" validate:"max=200"`
	BranchID    *uuid.UUID `json:"branch_id"`
	IssueFrom   *time.Time `json:"issue_from"`
	IssueTo     *time.Time `json:"issue_to"`
	DueFrom     *time.Time `json:"due_from"`
	DueTo       *time.Time `json:"due_to"`
	OverdueOnly bool       `json:"overdue_only"`
	SortBy      string     `json:"sort_by"`
	SortDir     string     `json:"sort_dir" validate:"omitempty,oneof=asc desc ASC DESC"`
}

// ObligationResult is the read model of an obligation
type ObligationResult struct {
	ID               uuid.UUID       `json:"id"`
	Direction        string          `json:"direction"`
	CounterpartyName string          `json:"counterparty_name"`
	OriginalAmount   decimal.Decimal `json:"original_amount"`
	RemainingAmount  decimal.Decimal `json:"remaining_amount"`
	CollectedAmount  decimal.Decimal `json:"collected_amount"`
	Status           string          `json:"status"`
	Currency         string          `json:"currency"`
	IssueDate        string          `json:"issue_date"`
	DueDate          string          `json:"due_date"`
	IsOverdue        bool            `json:"is_overdue"`
	BranchID         *uuid.UUID      `json:"branch_id,omitempty"`
	Description      string          `json:"description,omitempty"`
	CreatedBy        uuid.UUID       `json:"created_by"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	Version          int             `json:"version"`
}

// PaymentResult is the read model of one payment
type PaymentResult struct {
	ID           uuid.UUID       `json:"id"`
	ObligationID uuid.UUID       `json:"obligation_id"`
	Amount       decimal.Decimal `json:"amount"`
	PaymentDate  string          `json:"payment_date"`
	Notes        string          `json:"notes,omitempty"`
	RecordedBy   uuid.UUID       `json:"recorded_by"`
	RecordedAt   time.Time       `json:"recorded_at"`
}

// PaymentApplied is returned by ApplyPayment: the new payment and the obligation after it
type PaymentApplied struct {
	Payment    PaymentResult    `json:"payment"`
	Obligation ObligationResult `json:"obligation"`
}

// VerifyResult reports whether an obligation's stored balance matches its payment ledger
type VerifyResult struct {
	ObligationID    uuid.UUID       `json:"obligation_id"`
	OriginalAmount  decimal.Decimal `json:"original_amount"`
	PaidTotal       decimal.Decimal `json:"paid_total"`
	PaymentCount    int64           `json:"payment_count"`
	ExpectedAmount  decimal.Decimal `json:"expected_remaining"`
	RemainingAmount decimal.Decimal `json:"remaining_amount"`
	Drift           decimal.Decimal `json:"drift"`
	Status          string          `json:"status"`
	ExpectedStatus  string          `json:"expected_status"`
	Consistent      bool            `json:"consistent"`
}

const dateLayout = "2006-01-02"

// ToObligationResult converts a domain obligation to its read model as of now
func ToObligationResult(o *ledger.Obligation, now time.Time) ObligationResult {
	return ObligationResult{
		ID:               o.ID,
		Direction:        o.Direction.String(),
		CounterpartyName: o.CounterpartyName,
		OriginalAmount:   o.OriginalAmount,
		RemainingAmount:  o.RemainingAmount,
		CollectedAmount:  o.CollectedAmount(),
		Status:           o.Status.String(),
		Currency:         o.Currency.String(),
		IssueDate:        o.IssueDate.Format(dateLayout),
		DueDate:          o.DueDate.Format(dateLayout),
		IsOverdue:        o.IsOverdue(now),
		BranchID:         o.BranchID,
		Description:      o.Description,
		CreatedBy:        o.CreatedBy,
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
		Version:          o.Version,
	}
}

// ToPaymentResult converts a domain payment to its read model
func ToPaymentResult(p *ledger.Payment) PaymentResult {
	return PaymentResult{
		ID:           p.ID,
		ObligationID: p.ObligationID,
		Amount:       p.Amount,
		PaymentDate:  p.PaymentDate.Format(dateLayout),
		Notes:        p.Notes,
		RecordedBy:   p.RecordedBy,
		RecordedAt:   p.RecordedAt,
	}
}

// ToPaymentResults converts a payment history
func ToPaymentResults(payments []ledger.Payment) []PaymentResult {
	results := make([]PaymentResult, len(payments))
	for i := range payments {
		results[i] = ToPaymentResult(&payments[i])
	}
	return results
}

// toObligationFilter maps the query onto the store filter. now anchors overdue-only.
func (f ListFilter) toObligationFilter(now time.Time) ledger.ObligationFilter {
	filter := ledger.ObligationFilter{
		Currency:  f.Currency,
		IssueFrom: f.IssueFrom,
		IssueTo:   f.IssueTo,
		DueFrom:   f.DueFrom,
		DueTo:     f.DueTo,
	}
	filter.Page = f.Page
	filter.PageSize = f.Limit
	filter.Search = f.Search
	filter.OrderBy = f.SortBy
	filter.OrderDir = f.SortDir
	filter.Normalize("due_date", "ASC")

	if f.Status != "" {
		s := ledger.Status(f.Status)
		filter.Status = &s
	}
	if f.Direction != "" {
		d := ledger.Direction(f.Direction)
		filter.Direction = &d
	}
	if f.OverdueOnly {
		day := now
		filter.OverdueAsOf = &day
	}
	return filter
}
