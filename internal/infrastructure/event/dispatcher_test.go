package event

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ledger/backend/internal/domain/ledger"
	"github.com/ledger/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type testEvent struct {
	shared.BaseDomainEvent
	Data string `json:"data"`
}

func newTestEvent(eventType string) *testEvent {
	return &testEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, "TestAggregate", uuid.New(), nil, time.Now()),
		Data:            "test data",
	}
}

// testHandler records handled events and can fail or panic on demand
type testHandler struct {
	eventTypes []string
	mu         sync.Mutex
	handled    []string
	err        error
	panicMsg   string
}

func newTestHandler(eventTypes ...string) *testHandler {
	return &testHandler{eventTypes: eventTypes}
}

func (h *testHandler) Handle(_ context.Context, event shared.DomainEvent) error {
	if h.panicMsg != "" {
		panic(h.panicMsg)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handled = append(h.handled, event.EventType())
	return h.err
}

func (h *testHandler) EventTypes() []string {
	return h.eventTypes
}

func (h *testHandler) types() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.handled...)
}

type testAuditor struct {
	mu      sync.Mutex
	entries []ledger.AuditEntry
	err     error
}

func (a *testAuditor) Record(_ context.Context, entry ledger.AuditEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
	return a.err
}

func (a *testAuditor) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.entries)
}

func stopDispatcher(t *testing.T, d *AsyncDispatcher) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Stop(ctx))
}

func TestAsyncDispatcher_DeliversBatchInOrder(t *testing.T) {
	d := NewAsyncDispatcher(DispatcherConfig{QueueSize: 8, Workers: 4}, zap.NewNop())
	handler := newTestHandler()
	d.Subscribe(handler)
	require.NoError(t, d.Start())

	d.Emit(context.Background(),
		newTestEvent(ledger.EventTypePaymentRecorded),
		newTestEvent(ledger.EventTypeObligationUpdated),
	)
	stopDispatcher(t, d)

	assert.Equal(t, []string{ledger.EventTypePaymentRecorded, ledger.EventTypeObligationUpdated}, handler.types())
}

func TestAsyncDispatcher_RoutesByEventType(t *testing.T) {
	d := NewAsyncDispatcher(DispatcherConfig{QueueSize: 8, Workers: 1}, zap.NewNop())
	created := newTestHandler(ledger.EventTypeObligationCreated)
	all := newTestHandler()
	d.Subscribe(created)
	d.Subscribe(all)
	require.NoError(t, d.Start())

	d.Emit(context.Background(), newTestEvent(ledger.EventTypeObligationCreated))
	d.Emit(context.Background(), newTestEvent(ledger.EventTypeObligationDeleted))
	stopDispatcher(t, d)

	assert.Equal(t, []string{ledger.EventTypeObligationCreated}, created.types())
	assert.Len(t, all.types(), 2)
}

func TestAsyncDispatcher_DropsWhenQueueFull(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	d := NewAsyncDispatcher(DispatcherConfig{QueueSize: 1, Workers: 1}, zap.New(core))
	handler := newTestHandler()
	d.Subscribe(handler)

	// Not started yet, so the queue does not drain.
	d.Emit(context.Background(), newTestEvent("First"))
	d.Emit(context.Background(), newTestEvent("Second"))
	assert.Equal(t, 1, d.Pending())

	dropped := logs.FilterMessage("Side effect dropped").All()
	require.Len(t, dropped, 1)
	assert.Equal(t, "queue full", dropped[0].ContextMap()["reason"])

	require.NoError(t, d.Start())
	stopDispatcher(t, d)
	assert.Equal(t, []string{"First"}, handler.types())
}

func TestAsyncDispatcher_HandlerFailuresAreContained(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	d := NewAsyncDispatcher(DispatcherConfig{QueueSize: 8, Workers: 1}, zap.New(core))

	failing := newTestHandler()
	failing.err = errors.New("redis unavailable")
	panicking := newTestHandler()
	panicking.panicMsg = "boom"
	healthy := newTestHandler()
	d.Subscribe(failing)
	d.Subscribe(panicking)
	d.Subscribe(healthy)
	require.NoError(t, d.Start())

	d.Emit(context.Background(), newTestEvent("Anything"))
	stopDispatcher(t, d)

	assert.Equal(t, []string{"Anything"}, healthy.types())
	assert.Equal(t, 2, logs.FilterMessage("Side effect failed").Len())
}

func TestAsyncDispatcher_Audit(t *testing.T) {
	first := &testAuditor{err: errors.New("insert failed")}
	second := &testAuditor{}
	d := NewAsyncDispatcher(DispatcherConfig{QueueSize: 8, Workers: 2}, zap.NewNop(),
		WithAuditRecorder(first), WithAuditRecorder(second))
	require.NoError(t, d.Start())

	d.Audit(context.Background(), ledger.AuditEntry{
		ActorID:    uuid.New(),
		Action:     ledger.AuditActionCreate,
		EntityType: ledger.AggregateTypeObligation,
		EntityID:   uuid.New(),
	})
	stopDispatcher(t, d)

	assert.Equal(t, 1, first.count())
	assert.Equal(t, 1, second.count())
}

func TestAsyncDispatcher_CancelledRequestStillDelivers(t *testing.T) {
	d := NewAsyncDispatcher(DispatcherConfig{QueueSize: 8, Workers: 1}, zap.NewNop())
	var seen error
	var mu sync.Mutex
	d.Subscribe(handlerFunc(func(ctx context.Context, _ shared.DomainEvent) error {
		mu.Lock()
		seen = ctx.Err()
		mu.Unlock()
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	d.Emit(ctx, newTestEvent("Late"))
	cancel()

	require.NoError(t, d.Start())
	stopDispatcher(t, d)

	mu.Lock()
	defer mu.Unlock()
	assert.NoError(t, seen)
}

func TestAsyncDispatcher_Lifecycle(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	d := NewAsyncDispatcher(DispatcherConfig{}, zap.New(core))
	assert.Equal(t, DefaultDispatcherConfig(), d.cfg)

	require.NoError(t, d.Start())
	require.NoError(t, d.Start())
	stopDispatcher(t, d)
	stopDispatcher(t, d)

	assert.ErrorIs(t, d.Start(), ErrDispatcherStopped)

	d.Emit(context.Background(), newTestEvent("AfterStop"))
	dropped := logs.FilterMessage("Side effect dropped").All()
	require.Len(t, dropped, 1)
	assert.Equal(t, "dispatcher stopped", dropped[0].ContextMap()["reason"])
}

type handlerFunc func(ctx context.Context, event shared.DomainEvent) error

func (f handlerFunc) Handle(ctx context.Context, event shared.DomainEvent) error { return f(ctx, event) }

func (f handlerFunc) EventTypes() []string { return nil }
