package ledger

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/ledger/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

const maxNotesLength = 1000

// Payment is an immutable ledger entry reducing one obligation's remaining balance
type Payment struct {
	ID           uuid.UUID       `json:"id"`
	ObligationID uuid.UUID       `json:"obligation_id"`
	Amount       decimal.Decimal `json:"amount"`
	PaymentDate  time.Time       `json:"payment_date"`
	Notes        string          `json:"notes,omitempty"`
	RecordedBy   uuid.UUID       `json:"recorded_by"`
	RecordedAt   time.Time       `json:"recorded_at"`
}

// NewPayment creates a payment entry. Balance rules are checked by Obligation.ApplyPayment.
func NewPayment(obligationID uuid.UUID, amount decimal.Decimal, paymentDate time.Time, notes string, recordedBy uuid.UUID, now time.Time) (*Payment, error) {
	if paymentDate.IsZero() {
		return nil, shared.NewValidationError("payment_date", "payment date is required")
	}
	if utf8.RuneCountInString(notes) > maxNotesLength {
		return nil, shared.NewValidationError("notes", fmt.Sprintf("notes cannot exceed %d characters", maxNotesLength))
	}
	if recordedBy == uuid.Nil {
		return nil, shared.NewValidationError("recorded_by", "recorder is required")
	}
	return &Payment{
		ID:           uuid.New(),
		ObligationID: obligationID,
		Amount:       amount,
		PaymentDate:  shared.TruncateToDay(paymentDate),
		Notes:        notes,
		RecordedBy:   recordedBy,
		RecordedAt:   now,
	}, nil
}
