package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/ledger/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// ObligationFilter defines filtering options for obligation queries
type ObligationFilter struct {
	shared.Filter
	Status    *Status
	Direction *Direction
	Currency  string
	// IssueFrom and IssueTo are inclusive bounds on the issue date
	IssueFrom *time.Time
	IssueTo   *time.Time
	DueFrom   *time.Time
	DueTo     *time.Time
	// OverdueAsOf keeps unpaid rows whose due date is before this day
	OverdueAsOf *time.Time
}

// Summary aggregates obligations visible under a predicate
type Summary struct {
	Total      int64                   `json:"total"`
	ByStatus   StatusCounts            `json:"by_status"`
	Amounts    AmountTotals            `json:"amounts"`
	ByCurrency map[string]AmountTotals `json:"by_currency"`
}

// StatusCounts counts obligations per status
type StatusCounts struct {
	Active  int64 `json:"active"`
	Partial int64 `json:"partial"`
	Paid    int64 `json:"paid"`
}

// AmountTotals sums original and remaining amounts; Collected = Total - Remaining
type AmountTotals struct {
	Total     decimal.Decimal `json:"total"`
	Remaining decimal.Decimal `json:"remaining"`
	Collected decimal.Decimal `json:"collected"`
}

// Add folds one obligation's amounts into the totals
func (a *AmountTotals) Add(original, remaining decimal.Decimal) {
	a.Total = a.Total.Add(original)
	a.Remaining = a.Remaining.Add(remaining)
	a.Collected = a.Total.Sub(a.Remaining)
}

// ObligationRepository is the Obligation Store
type ObligationRepository interface {
	// Create inserts a new obligation
	Create(ctx context.Context, o *Obligation) error
	// FindByID returns the obligation including soft-deleted rows
	FindByID(ctx context.Context, id uuid.UUID) (*Obligation, error)
	// ApplyBalanceChange sets remaining/status if the row still has expectedVersion
	ApplyBalanceChange(ctx context.Context, id uuid.UUID, newRemaining decimal.Decimal, status Status, expectedVersion int, at time.Time) error
	// SoftDelete marks the obligation deleted if it has no payments and still has expectedVersion
	SoftDelete(ctx context.Context, id uuid.UUID, by uuid.UUID, at time.Time, expectedVersion int) error
	// List returns a page of non-deleted obligations under the predicate
	List(ctx context.Context, pred Predicate, filter ObligationFilter) ([]Obligation, int64, error)
	// Summarize aggregates non-deleted obligations under the predicate
	Summarize(ctx context.Context, pred Predicate) (*Summary, error)
}

// PaymentRepository is the append-only Payment Ledger
type PaymentRepository interface {
	// Append inserts a payment row
	Append(ctx context.Context, p *Payment) error
	// ListByObligation returns payments newest first
	ListByObligation(ctx context.Context, obligationID uuid.UUID) ([]Payment, error)
	// SumAmount returns the total paid against an obligation
	SumAmount(ctx context.Context, obligationID uuid.UUID) (decimal.Decimal, error)
	// CountByObligation returns the number of payments against an obligation
	CountByObligation(ctx context.Context, obligationID uuid.UUID) (int64, error)
}

// TransactionalRepositories exposes repositories bound to one storage transaction
type TransactionalRepositories interface {
	Obligations() ObligationRepository
	Payments() PaymentRepository
}

// TransactionScope runs fn in a single all-or-nothing storage transaction
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}
