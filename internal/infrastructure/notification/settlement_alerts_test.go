package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ledger/backend/internal/domain/ledger"
	"github.com/ledger/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

type recordingNotifier struct {
	mu     sync.Mutex
	alerts []Alert
	err    error
}

func (n *recordingNotifier) Notify(_ context.Context, alert Alert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.alerts = append(n.alerts, alert)
	return nil
}

func updatedEvent(id uuid.UUID, branch *uuid.UUID, from, to ledger.Status, remaining int64) *ledger.ObligationUpdatedEvent {
	return &ledger.ObligationUpdatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(ledger.EventTypeObligationUpdated, ledger.AggregateTypeObligation, id, branch, time.Now()),
		ObligationID:    id,
		PreviousStatus:  from,
		Status:          to,
		RemainingAmount: decimal.NewFromInt(remaining),
	}
}

func TestSettlementAlertHandler_Handle(t *testing.T) {
	id := uuid.New()
	branch := uuid.New()

	t.Run("alerts when an obligation becomes paid", func(t *testing.T) {
		notifier := &recordingNotifier{}
		h := NewSettlementAlertHandler(zaptest.NewLogger(t), notifier)

		require.NoError(t, h.Handle(context.Background(), updatedEvent(id, &branch, ledger.StatusPartial, ledger.StatusPaid, 0)))

		require.Len(t, notifier.alerts, 1)
		alert := notifier.alerts[0]
		assert.Equal(t, AlertSettled, alert.Type)
		assert.Equal(t, id.String(), alert.ObligationID)
		assert.Equal(t, branch.String(), alert.BranchID)
		assert.Equal(t, "0", alert.Remaining)
		assert.Equal(t, []string{"in_app"}, alert.Channels)
	})

	t.Run("ignores partial payments", func(t *testing.T) {
		notifier := &recordingNotifier{}
		h := NewSettlementAlertHandler(nil, notifier)

		require.NoError(t, h.Handle(context.Background(), updatedEvent(id, nil, ledger.StatusActive, ledger.StatusPartial, 600)))
		assert.Empty(t, notifier.alerts)
	})

	t.Run("alerts on deletion", func(t *testing.T) {
		notifier := &recordingNotifier{}
		h := NewSettlementAlertHandler(nil, notifier).WithChannels("email")

		ev := &ledger.ObligationDeletedEvent{
			BaseDomainEvent: shared.NewBaseDomainEvent(ledger.EventTypeObligationDeleted, ledger.AggregateTypeObligation, id, nil, time.Now()),
			ObligationID:    id,
		}
		require.NoError(t, h.Handle(context.Background(), ev))

		require.Len(t, notifier.alerts, 1)
		assert.Equal(t, AlertDeleted, notifier.alerts[0].Type)
		assert.Empty(t, notifier.alerts[0].BranchID)
		assert.Equal(t, []string{"email"}, notifier.alerts[0].Channels)
	})

	t.Run("rejects unrelated events", func(t *testing.T) {
		h := NewSettlementAlertHandler(nil, &recordingNotifier{})
		ev := &ledger.ObligationCreatedEvent{
			BaseDomainEvent: shared.NewBaseDomainEvent(ledger.EventTypeObligationCreated, ledger.AggregateTypeObligation, id, nil, time.Now()),
		}
		assert.Error(t, h.Handle(context.Background(), ev))
	})

	t.Run("returns notifier failures", func(t *testing.T) {
		h := NewSettlementAlertHandler(nil, &recordingNotifier{err: errors.New("smtp down")})
		err := h.Handle(context.Background(), updatedEvent(id, nil, ledger.StatusActive, ledger.StatusPaid, 0))
		assert.ErrorContains(t, err, "smtp down")
	})
}

func TestLoggingNotifier(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	n := NewLoggingNotifier(zap.New(core))

	require.NoError(t, n.Notify(context.Background(), Alert{Type: AlertSettled, ObligationID: "abc", Channels: []string{"in_app"}}))

	entries := logs.FilterMessage("SETTLEMENT ALERT").All()
	require.Len(t, entries, 1)
	assert.Equal(t, AlertSettled, entries[0].ContextMap()["type"])
	assert.Equal(t, "abc", entries[0].ContextMap()["obligation_id"])
}
