package event

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ledger/backend/internal/domain/ledger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLedgerObligation(t *testing.T) *ledger.Obligation {
	t.Helper()
	branch := uuid.New()
	o, err := ledger.NewObligation(ledger.NewObligationParams{
		Direction:        ledger.DirectionOwedToUs,
		CounterpartyName: "Northwind Traders",
		Amount:           decimal.NewFromInt(1000),
		Currency:         "USD",
		IssueDate:        time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		DueDate:          time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		BranchID:         &branch,
		CreatedBy:        uuid.New(),
	}, time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return o
}

func TestEventSerializer_Envelope(t *testing.T) {
	s := NewEventSerializer()
	o := newLedgerObligation(t)
	created := o.GetDomainEvents()[0]

	data, err := s.Marshal(created)
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, ledger.EventTypeObligationCreated, env.Type)
	assert.Equal(t, o.ID, env.AggregateID)
	assert.Equal(t, ledger.AggregateTypeObligation, env.AggregateType)
	assert.Equal(t, o.BranchID, env.BranchID)
	assert.Contains(t, string(env.Payload), `"counterparty_name":"Northwind Traders"`)
}

func TestEventSerializer_Unmarshal(t *testing.T) {
	s := NewEventSerializer()
	o := newLedgerObligation(t)
	o.ClearDomainEvents()
	_, err := o.ApplyPayment(decimal.NewFromInt(400), time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC), "", uuid.New(), time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	updated := o.GetDomainEvents()[1]
	data, err := s.Marshal(updated)
	require.NoError(t, err)

	decoded, err := s.Unmarshal(data)
	require.NoError(t, err)
	got, ok := decoded.(*ledger.ObligationUpdatedEvent)
	require.True(t, ok)
	assert.Equal(t, ledger.StatusPartial, got.Status)
	assert.Equal(t, ledger.StatusActive, got.PreviousStatus)
	assert.True(t, decimal.NewFromInt(600).Equal(got.RemainingAmount))
	assert.Equal(t, updated.EventID(), got.EventID())

	t.Run("unknown type", func(t *testing.T) {
		_, err := s.Unmarshal([]byte(`{"type":"Mystery","payload":{}}`))
		assert.ErrorContains(t, err, "unknown event type")
	})

	t.Run("malformed envelope", func(t *testing.T) {
		_, err := s.Unmarshal([]byte(`not json`))
		assert.Error(t, err)
	})
}

func TestHandlerRegistry(t *testing.T) {
	r := NewHandlerRegistry()
	typed := newTestHandler()
	wildcard := newTestHandler()

	r.Register(typed, "A", "B")
	r.Register(wildcard)

	assert.Equal(t, 2, len(r.HandlersFor("A")))
	assert.Same(t, typed, r.HandlersFor("A")[0])
	assert.Equal(t, 1, len(r.HandlersFor("C")))

	r.Unregister(typed)
	assert.Equal(t, 1, len(r.HandlersFor("A")))
	assert.Same(t, wildcard, r.HandlersFor("B")[0])
}
