package settlement

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/ledger/backend/internal/domain/identity"
	"github.com/ledger/backend/internal/domain/ledger"
	"github.com/ledger/backend/internal/domain/shared"
	"github.com/ledger/backend/internal/infrastructure/logger"
	"github.com/ledger/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Operation names used for spans, metrics and logs
const (
	OpCreateObligation = "create_obligation"
	OpApplyPayment     = "apply_payment"
	OpSoftDelete       = "soft_delete"
	OpGetByID          = "get_by_id"
	OpListPayments     = "list_payments"
	OpVerifyLedger     = "verify_ledger"
	OpList             = "list"
	OpSummary          = "summary"
)

const (
	spanService = "settlement"
	entityName  = "obligation"
)

// Engine creates obligations and applies payments against them, keeping the
// remaining balance, the payment ledger and the status consistent.
//
// Payment application reads the obligation, checks the business rules in memory
// and then commits the payment row together with a version-checked balance update.
// A lost race returns a ConcurrentModificationError; the engine never retries.
type Engine struct {
	obligations ledger.ObligationRepository
	payments    ledger.PaymentRepository
	tx          ledger.TransactionScope
	scope       *ledger.ScopeResolver
	effects     ledger.SideEffects
	clock       shared.Clock
	metrics     *telemetry.SettlementMetrics
	logger      *zap.Logger
}

// Option configures an Engine or a QueryService
type Option func(*options)

type options struct {
	effects ledger.SideEffects
	clock   shared.Clock
	metrics *telemetry.SettlementMetrics
	logger  *zap.Logger
}

// WithSideEffects sets the post-commit dispatcher
func WithSideEffects(effects ledger.SideEffects) Option {
	return func(o *options) { o.effects = effects }
}

// WithClock sets the time source
func WithClock(clock shared.Clock) Option {
	return func(o *options) { o.clock = clock }
}

// WithMetrics sets the settlement counters
func WithMetrics(m *telemetry.SettlementMetrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithLogger sets the base logger
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

func buildOptions(opts []Option) options {
	o := options{
		effects: ledger.NopSideEffects{},
		clock:   shared.SystemClock{},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.metrics == nil {
		o.metrics = telemetry.NewNopSettlementMetrics()
	}
	return o
}

// NewEngine creates a settlement engine
func NewEngine(
	obligations ledger.ObligationRepository,
	payments ledger.PaymentRepository,
	tx ledger.TransactionScope,
	opts ...Option,
) *Engine {
	o := buildOptions(opts)
	return &Engine{
		obligations: obligations,
		payments:    payments,
		tx:          tx,
		scope:       ledger.NewScopeResolver(),
		effects:     o.effects,
		clock:       o.clock,
		metrics:     o.metrics,
		logger:      o.logger,
	}
}

// CreateObligation validates and persists a new ACTIVE obligation
func (e *Engine) CreateObligation(ctx context.Context, actor identity.Actor, in CreateObligationInput) (*ObligationResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, spanService, OpCreateObligation)
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrActorID, actor.ID.String())

	branchID, err := e.scope.ResolveCreateBranch(actor, in.BranchID)
	if err != nil {
		return nil, e.fail(ctx, span, OpCreateObligation, err)
	}
	if err := validateInput(in); err != nil {
		return nil, e.fail(ctx, span, OpCreateObligation, err)
	}

	now := e.clock.Now()
	o, err := ledger.NewObligation(ledger.NewObligationParams{
		Direction:        ledger.Direction(in.Direction),
		CounterpartyName: in.CounterpartyName,
		Amount:           in.Amount,
		Currency:         in.Currency,
		IssueDate:        in.IssueDate,
		DueDate:          in.DueDate,
		BranchID:         branchID,
		Description:      in.Description,
		CreatedBy:        actor.ID,
	}, now)
	if err != nil {
		return nil, e.fail(ctx, span, OpCreateObligation, err)
	}

	if err := e.obligations.Create(ctx, o); err != nil {
		return nil, e.fail(ctx, span, OpCreateObligation, err)
	}

	result := ToObligationResult(o, now)
	telemetry.SetAttributes(span,
		telemetry.SpanAttrObligationID, o.ID.String(),
		telemetry.SpanAttrAmount, o.OriginalAmount.String(),
		telemetry.SpanAttrCurrency, o.Currency.String(),
	)
	e.metrics.ObligationCreated(ctx, o.Currency.String())

	e.publish(ctx, o)
	e.effects.Audit(ctx, ledger.AuditEntry{
		ActorID:    actor.ID,
		Action:     ledger.AuditActionCreate,
		EntityType: ledger.AggregateTypeObligation,
		EntityID:   o.ID,
		BranchID:   o.BranchID,
		After:      result,
		OccurredAt: now,
	})

	e.log(ctx).Info("Obligation created",
		zap.String("obligation_id", o.ID.String()),
		zap.String("amount", o.OriginalAmount.String()),
		zap.String("currency", o.Currency.String()),
	)
	return &result, nil
}

// ApplyPayment records a payment and reduces the remaining balance in one transaction
func (e *Engine) ApplyPayment(ctx context.Context, actor identity.Actor, obligationID uuid.UUID, in ApplyPaymentInput) (*PaymentApplied, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, spanService, OpApplyPayment)
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrActorID, actor.ID.String(),
		telemetry.SpanAttrObligationID, obligationID.String(),
		telemetry.SpanAttrAmount, in.Amount.String(),
	)

	o, err := e.loadLive(ctx, obligationID)
	if err != nil {
		return nil, e.fail(ctx, span, OpApplyPayment, err)
	}
	if err := e.scope.AuthorizeWrite(actor, o); err != nil {
		return nil, e.fail(ctx, span, OpApplyPayment, err)
	}
	if err := validateInput(in); err != nil {
		return nil, e.fail(ctx, span, OpApplyPayment, err)
	}

	now := e.clock.Now()
	paymentDate := in.PaymentDate
	if paymentDate.IsZero() {
		paymentDate = now
	}

	before := ToObligationResult(o, now)
	expectedVersion := o.Version
	payment, err := o.ApplyPayment(in.Amount, paymentDate, in.Notes, actor.ID, now)
	if err != nil {
		return nil, e.fail(ctx, span, OpApplyPayment, err)
	}

	err = e.tx.Execute(ctx, func(repos ledger.TransactionalRepositories) error {
		if err := repos.Payments().Append(ctx, payment); err != nil {
			return err
		}
		return repos.Obligations().ApplyBalanceChange(ctx, o.ID, o.RemainingAmount, o.Status, expectedVersion, now)
	})
	if err != nil {
		return nil, e.fail(ctx, span, OpApplyPayment, err)
	}

	after := ToObligationResult(o, now)
	telemetry.SetAttributes(span,
		telemetry.SpanAttrPaymentID, payment.ID.String(),
		telemetry.SpanAttrStatus, o.Status.String(),
		telemetry.SpanAttrCurrency, o.Currency.String(),
	)
	e.metrics.PaymentApplied(ctx, o.Currency.String(), o.Status.String())

	e.publish(ctx, o)
	e.effects.Audit(ctx, ledger.AuditEntry{
		ActorID:    actor.ID,
		Action:     ledger.AuditActionPayment,
		EntityType: ledger.AggregateTypeObligation,
		EntityID:   o.ID,
		BranchID:   o.BranchID,
		Before:     before,
		After:      paymentAuditImage{Obligation: after, Payment: ToPaymentResult(payment)},
		OccurredAt: now,
	})

	e.log(ctx).Info("Payment applied",
		zap.String("obligation_id", o.ID.String()),
		zap.String("payment_id", payment.ID.String()),
		zap.String("amount", payment.Amount.String()),
		zap.String("remaining", o.RemainingAmount.String()),
		zap.String("status", o.Status.String()),
	)
	return &PaymentApplied{Payment: ToPaymentResult(payment), Obligation: after}, nil
}

// paymentAuditImage is the after-image stored for a payment
type paymentAuditImage struct {
	Obligation ObligationResult `json:"obligation"`
	Payment    PaymentResult    `json:"payment"`
}

// SoftDelete hides an obligation that has no payments
func (e *Engine) SoftDelete(ctx context.Context, actor identity.Actor, obligationID uuid.UUID) error {
	ctx, span := telemetry.StartServiceSpan(ctx, spanService, OpSoftDelete)
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrActorID, actor.ID.String(),
		telemetry.SpanAttrObligationID, obligationID.String(),
	)

	o, err := e.loadLive(ctx, obligationID)
	if err != nil {
		return e.fail(ctx, span, OpSoftDelete, err)
	}
	if err := e.scope.AuthorizeWrite(actor, o); err != nil {
		return e.fail(ctx, span, OpSoftDelete, err)
	}

	now := e.clock.Now()
	before := ToObligationResult(o, now)
	expectedVersion := o.Version
	if err := o.MarkDeleted(actor.ID, now); err != nil {
		return e.fail(ctx, span, OpSoftDelete, err)
	}
	if err := e.obligations.SoftDelete(ctx, o.ID, actor.ID, now, expectedVersion); err != nil {
		return e.fail(ctx, span, OpSoftDelete, err)
	}

	e.publish(ctx, o)
	e.effects.Audit(ctx, ledger.AuditEntry{
		ActorID:    actor.ID,
		Action:     ledger.AuditActionDelete,
		EntityType: ledger.AggregateTypeObligation,
		EntityID:   o.ID,
		BranchID:   o.BranchID,
		Before:     before,
		OccurredAt: now,
	})

	e.log(ctx).Info("Obligation deleted", zap.String("obligation_id", o.ID.String()))
	return nil
}

// GetByID returns one obligation visible to the actor
func (e *Engine) GetByID(ctx context.Context, actor identity.Actor, obligationID uuid.UUID) (*ObligationResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, spanService, OpGetByID)
	defer span.End()

	o, err := e.loadReadable(ctx, actor, obligationID)
	if err != nil {
		return nil, e.fail(ctx, span, OpGetByID, err)
	}
	result := ToObligationResult(o, e.clock.Now())
	return &result, nil
}

// ListPayments returns an obligation's payment history, newest first
func (e *Engine) ListPayments(ctx context.Context, actor identity.Actor, obligationID uuid.UUID) ([]PaymentResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, spanService, OpListPayments)
	defer span.End()

	if _, err := e.loadReadable(ctx, actor, obligationID); err != nil {
		return nil, e.fail(ctx, span, OpListPayments, err)
	}
	payments, err := e.payments.ListByObligation(ctx, obligationID)
	if err != nil {
		return nil, e.fail(ctx, span, OpListPayments, err)
	}
	return ToPaymentResults(payments), nil
}

// VerifyLedger recomputes the remaining balance from the payment ledger and
// compares it with the stored one. Drift is reported, never repaired.
func (e *Engine) VerifyLedger(ctx context.Context, actor identity.Actor, obligationID uuid.UUID) (*VerifyResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, spanService, OpVerifyLedger)
	defer span.End()

	o, err := e.loadReadable(ctx, actor, obligationID)
	if err != nil {
		return nil, e.fail(ctx, span, OpVerifyLedger, err)
	}
	paid, err := e.payments.SumAmount(ctx, o.ID)
	if err != nil {
		return nil, e.fail(ctx, span, OpVerifyLedger, err)
	}
	count, err := e.payments.CountByObligation(ctx, o.ID)
	if err != nil {
		return nil, e.fail(ctx, span, OpVerifyLedger, err)
	}

	expected := o.OriginalAmount.Sub(paid)
	expectedStatus := ledger.DeriveStatus(o.OriginalAmount, o.RemainingAmount)
	result := &VerifyResult{
		ObligationID:    o.ID,
		OriginalAmount:  o.OriginalAmount,
		PaidTotal:       paid,
		PaymentCount:    count,
		ExpectedAmount:  expected,
		RemainingAmount: o.RemainingAmount,
		Drift:           o.RemainingAmount.Sub(expected),
		Status:          o.Status.String(),
		ExpectedStatus:  expectedStatus.String(),
	}
	result.Consistent = result.Drift.IsZero() && expectedStatus == o.Status

	if !result.Consistent {
		e.log(ctx).Error("Ledger drift detected",
			zap.String("obligation_id", o.ID.String()),
			zap.String("expected_remaining", expected.String()),
			zap.String("stored_remaining", o.RemainingAmount.String()),
			zap.String("status", o.Status.String()),
		)
		telemetry.AddEvent(span, "ledger_drift", "drift", result.Drift.String())
	}
	return result, nil
}

// loadLive loads an obligation and reports soft-deleted rows as missing
func (e *Engine) loadLive(ctx context.Context, id uuid.UUID) (*ledger.Obligation, error) {
	o, err := e.obligations.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.IsDeleted {
		return nil, shared.NewNotFoundError(entityName, id)
	}
	return o, nil
}

func (e *Engine) loadReadable(ctx context.Context, actor identity.Actor, id uuid.UUID) (*ledger.Obligation, error) {
	o, err := e.loadLive(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := e.scope.AuthorizeRead(actor, o); err != nil {
		return nil, err
	}
	return o, nil
}

// publish hands the aggregate's pending events to the dispatcher as one ordered batch
func (e *Engine) publish(ctx context.Context, o *ledger.Obligation) {
	events := o.GetDomainEvents()
	o.ClearDomainEvents()
	if len(events) > 0 {
		e.effects.Emit(ctx, events...)
	}
}

// fail records err on the span and in metrics, and returns it unchanged
func (e *Engine) fail(ctx context.Context, span trace.Span, op string, err error) error {
	kind, ok := shared.KindOf(err)
	if !ok {
		kind = shared.KindStorage
	}
	telemetry.RecordError(span, err)
	telemetry.SetAttributes(span, telemetry.SpanAttrErrorKind, string(kind))
	e.metrics.OperationFailed(ctx, op, string(kind))

	switch {
	case errors.Is(err, shared.ErrConcurrentModification):
		e.metrics.VersionConflict(ctx, op)
		e.log(ctx).Warn("Version conflict", zap.String("operation", op), zap.Error(err))
	case kind == shared.KindStorage:
		e.log(ctx).Error("Settlement operation failed", zap.String("operation", op), zap.Error(err))
	default:
		e.log(ctx).Debug("Settlement operation rejected", zap.String("operation", op), zap.Error(err))
	}
	return err
}

func (e *Engine) log(ctx context.Context) *logger.ContextLogger {
	return logger.WithLogger(ctx, e.logger)
}
