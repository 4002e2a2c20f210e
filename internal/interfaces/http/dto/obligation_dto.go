package dto

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ledger/backend/internal/application/settlement"
	"github.com/ledger/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// DateLayout is the wire format of calendar dates
const DateLayout = "2006-01-02"

// CreateObligationRequest is the body of POST /obligations
type CreateObligationRequest struct {
	Direction        string          `json:"direction"`
	CounterpartyName string          `json:"counterparty_name"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	IssueDate        string          `json:"issue_date"`
	DueDate          string          `json:"due_date"`
	BranchID         *uuid.UUID      `json:"branch_id"`
	Description      string          `json:"description"`
}

// ToInput converts the request into the engine input
func (r CreateObligationRequest) ToInput() (settlement.CreateObligationInput, error) {
	issue, err := parseDate("issue_date", r.IssueDate)
	if err != nil {
		return settlement.CreateObligationInput{}, err
	}
	due, err := parseDate("due_date", r.DueDate)
	if err != nil {
		return settlement.CreateObligationInput{}, err
	}
	return settlement.CreateObligationInput{
		Direction:        strings.ToUpper(strings.TrimSpace(r.Direction)),
		CounterpartyName: r.CounterpartyName,
		Amount:           r.Amount,
		Currency:         r.Currency,
		IssueDate:        issue,
		DueDate:          due,
		BranchID:         r.BranchID,
		Description:      r.Description,
	}, nil
}

// ApplyPaymentRequest is the body of POST /obligations/:id/payments
type ApplyPaymentRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	PaymentDate string          `json:"payment_date"`
	Notes       string          `json:"notes"`
}

// ToInput converts the request into the engine input
func (r ApplyPaymentRequest) ToInput() (settlement.ApplyPaymentInput, error) {
	date, err := parseDate("payment_date", r.PaymentDate)
	if err != nil {
		return settlement.ApplyPaymentInput{}, err
	}
	return settlement.ApplyPaymentInput{
		Amount:      r.Amount,
		PaymentDate: date,
		Notes:       r.Notes,
	}, nil
}

// ListObligationsQuery is the query string of GET /obligations
type ListObligationsQuery struct {
	Page        int    `form:"page"`
	Limit       int    `form:"limit"`
	Status      string `form:"status"`
	Direction   string `form:"direction"`
	Currency    string `form:"currency"`
	Search      string `form:"search"`
	BranchID    string `form:"branch_id"`
	IssueFrom   string `form:"issue_from"`
	IssueTo     string `form:"issue_to"`
	DueFrom     string `form:"due_from"`
	DueTo       string `form:"due_to"`
	OverdueOnly bool   `form:"overdue_only"`
	SortBy      string `form:"sort_by"`
	SortDir     string `form:"sort_dir"`
}

// ToFilter converts the query into the list filter
func (q ListObligationsQuery) ToFilter() (settlement.ListFilter, error) {
	f := settlement.ListFilter{
		Page:        q.Page,
		Limit:       q.Limit,
		Status:      strings.ToUpper(q.Status),
		Direction:   strings.ToUpper(q.Direction),
		Currency:    q.Currency,
		Search:      q.Search,
		OverdueOnly: q.OverdueOnly,
		SortBy:      q.SortBy,
		SortDir:     q.SortDir,
	}

	var err error
	if f.BranchID, err = ParseOptionalUUID("branch_id", q.BranchID); err != nil {
		return f, err
	}
	dates := []struct {
		field  string
		raw    string
		target **time.Time
	}{
		{"issue_from", q.IssueFrom, &f.IssueFrom},
		{"issue_to", q.IssueTo, &f.IssueTo},
		{"due_from", q.DueFrom, &f.DueFrom},
		{"due_to", q.DueTo, &f.DueTo},
	}
	for _, d := range dates {
		if d.raw == "" {
			continue
		}
		t, err := parseDate(d.field, d.raw)
		if err != nil {
			return f, err
		}
		*d.target = &t
	}
	return f, nil
}

// ParseOptionalUUID parses raw as a UUID, returning nil for an empty string
func ParseOptionalUUID(field, raw string) (*uuid.UUID, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, shared.NewValidationError(field, "must be a valid UUID")
	}
	return &id, nil
}

// parseDate parses a YYYY-MM-DD date; an empty string yields the zero time
func parseDate(field, raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(DateLayout, raw)
	if err != nil {
		return time.Time{}, shared.NewValidationError(field, "must be a date in YYYY-MM-DD format")
	}
	return t, nil
}
