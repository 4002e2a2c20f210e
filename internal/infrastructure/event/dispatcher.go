package event

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ledger/backend/internal/domain/ledger"
	"github.com/ledger/backend/internal/domain/shared"
	"github.com/ledger/backend/internal/infrastructure/logger"
	"github.com/ledger/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// Job kinds used in logs and metrics
const (
	KindEvents = "events"
	KindAudit  = "audit"
)

// ErrDispatcherStopped is returned by Start after Stop
var ErrDispatcherStopped = errors.New("dispatcher stopped")

// DispatcherConfig sizes the queue and the worker pool
type DispatcherConfig struct {
	QueueSize int
	Workers   int
	// HandlerTimeout bounds one job; zero means 10s
	HandlerTimeout time.Duration
}

// DefaultDispatcherConfig returns the defaults used when config omits them
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{QueueSize: 1024, Workers: 4, HandlerTimeout: 10 * time.Second}
}

type job struct {
	ctx    context.Context
	kind   string
	events []shared.DomainEvent
	audit  ledger.AuditEntry
}

// AsyncDispatcher delivers side effects on a bounded queue drained by worker goroutines.
// Enqueueing never blocks: when the queue is full the job is dropped and logged.
// Events passed to one Emit call are delivered by one worker in order.
type AsyncDispatcher struct {
	cfg      DispatcherConfig
	registry *HandlerRegistry
	auditors []ledger.AuditRecorder
	metrics  *telemetry.SettlementMetrics
	logger   *zap.Logger

	queue   chan job
	mu      sync.RWMutex
	started bool
	stopped bool
	wg      sync.WaitGroup
}

// DispatcherOption configures an AsyncDispatcher
type DispatcherOption func(*AsyncDispatcher)

// WithDispatcherMetrics records drops and handler failures
func WithDispatcherMetrics(m *telemetry.SettlementMetrics) DispatcherOption {
	return func(d *AsyncDispatcher) { d.metrics = m }
}

// WithAuditRecorder adds a sink for audit entries
func WithAuditRecorder(r ledger.AuditRecorder) DispatcherOption {
	return func(d *AsyncDispatcher) { d.auditors = append(d.auditors, r) }
}

// NewAsyncDispatcher creates a dispatcher. Jobs queue up until Start is called.
func NewAsyncDispatcher(cfg DispatcherConfig, log *zap.Logger, opts ...DispatcherOption) *AsyncDispatcher {
	def := DefaultDispatcherConfig()
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.HandlerTimeout <= 0 {
		cfg.HandlerTimeout = def.HandlerTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}

	d := &AsyncDispatcher{
		cfg:      cfg,
		registry: NewHandlerRegistry(),
		logger:   log.Named("dispatcher"),
		queue:    make(chan job, cfg.QueueSize),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.metrics == nil {
		d.metrics = telemetry.NewNopSettlementMetrics()
	}
	return d
}

// Subscribe registers handler for eventTypes, or for the handler's own EventTypes when none are given
func (d *AsyncDispatcher) Subscribe(handler shared.EventHandler, eventTypes ...string) {
	if len(eventTypes) == 0 {
		eventTypes = handler.EventTypes()
	}
	d.registry.Register(handler, eventTypes...)
}

// Unsubscribe removes handler
func (d *AsyncDispatcher) Unsubscribe(handler shared.EventHandler) {
	d.registry.Unregister(handler)
}

// Start launches the workers
func (d *AsyncDispatcher) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return ErrDispatcherStopped
	}
	if d.started {
		return nil
	}
	d.started = true

	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.work()
	}
	d.logger.Info("Dispatcher started",
		zap.Int("workers", d.cfg.Workers),
		zap.Int("queue_size", d.cfg.QueueSize),
	)
	return nil
}

// Stop refuses new jobs and waits for queued ones to finish, or for ctx to expire
func (d *AsyncDispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return nil
	}
	d.stopped = true
	close(d.queue)
	started := d.started
	d.mu.Unlock()

	if !started {
		return nil
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("Dispatcher stopped")
		return nil
	case <-ctx.Done():
		d.logger.Warn("Dispatcher stop timed out", zap.Int("pending", len(d.queue)))
		return ctx.Err()
	}
}

// Emit enqueues events as one ordered batch
func (d *AsyncDispatcher) Emit(ctx context.Context, events ...shared.DomainEvent) {
	if len(events) == 0 {
		return
	}
	batch := make([]shared.DomainEvent, len(events))
	copy(batch, events)
	d.enqueue(ctx, job{kind: KindEvents, events: batch})
}

// Audit enqueues an audit entry
func (d *AsyncDispatcher) Audit(ctx context.Context, entry ledger.AuditEntry) {
	d.enqueue(ctx, job{kind: KindAudit, audit: entry})
}

// Pending returns the number of queued jobs
func (d *AsyncDispatcher) Pending() int {
	return len(d.queue)
}

func (d *AsyncDispatcher) enqueue(ctx context.Context, j job) {
	// Keep request values (trace, request id) but not the request's cancellation.
	j.ctx = context.WithoutCancel(ctx)

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.stopped {
		d.drop(ctx, j, "dispatcher stopped")
		return
	}
	select {
	case d.queue <- j:
	default:
		d.drop(ctx, j, "queue full")
	}
}

func (d *AsyncDispatcher) drop(ctx context.Context, j job, reason string) {
	d.metrics.SideEffectDropped(ctx, j.kind)
	fields := []zap.Field{zap.String("kind", j.kind), zap.String("reason", reason)}
	for _, ev := range j.events {
		fields = append(fields, zap.String("event_type", ev.EventType()))
	}
	if j.kind == KindAudit {
		fields = append(fields, zap.String("action", string(j.audit.Action)), zap.String("entity_id", j.audit.EntityID.String()))
	}
	logger.WithLogger(ctx, d.logger).Warn("Side effect dropped", fields...)
}

func (d *AsyncDispatcher) work() {
	defer d.wg.Done()
	for j := range d.queue {
		d.run(j)
	}
}

func (d *AsyncDispatcher) run(j job) {
	ctx, cancel := context.WithTimeout(j.ctx, d.cfg.HandlerTimeout)
	defer cancel()

	switch j.kind {
	case KindEvents:
		for _, ev := range j.events {
			for _, h := range d.registry.HandlersFor(ev.EventType()) {
				if err := d.safeCall(func() error { return h.Handle(ctx, ev) }); err != nil {
					d.fail(ctx, j.kind, err, zap.String("event_type", ev.EventType()), zap.String("event_id", ev.EventID().String()))
				}
			}
		}
	case KindAudit:
		for _, r := range d.auditors {
			if err := d.safeCall(func() error { return r.Record(ctx, j.audit) }); err != nil {
				d.fail(ctx, j.kind, err, zap.String("action", string(j.audit.Action)), zap.String("entity_id", j.audit.EntityID.String()))
			}
		}
	}
}

// safeCall converts a handler panic into an error
func (d *AsyncDispatcher) safeCall(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return fn()
}

func (d *AsyncDispatcher) fail(ctx context.Context, kind string, err error, fields ...zap.Field) {
	d.metrics.SideEffectFailed(ctx, kind)
	logger.WithLogger(ctx, d.logger).Error("Side effect failed", append(fields, zap.Error(err))...)
}

var (
	_ ledger.SideEffects     = (*AsyncDispatcher)(nil)
	_ shared.EventSubscriber = (*AsyncDispatcher)(nil)
)
