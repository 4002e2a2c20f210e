package settlement

import (
	"context"

	"github.com/google/uuid"
	"github.com/ledger/backend/internal/domain/identity"
	"github.com/ledger/backend/internal/domain/ledger"
	"github.com/ledger/backend/internal/domain/shared"
	"github.com/ledger/backend/internal/infrastructure/logger"
	"github.com/ledger/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// QueryService serves listings and summaries. Every query is narrowed by the
// actor's scope predicate before any caller filter applies.
type QueryService struct {
	obligations ledger.ObligationRepository
	scope       *ledger.ScopeResolver
	clock       shared.Clock
	metrics     *telemetry.SettlementMetrics
	logger      *zap.Logger
}

// NewQueryService creates a QueryService. Side-effect options are ignored.
func NewQueryService(obligations ledger.ObligationRepository, opts ...Option) *QueryService {
	o := buildOptions(opts)
	return &QueryService{
		obligations: obligations,
		scope:       ledger.NewScopeResolver(),
		clock:       o.clock,
		metrics:     o.metrics,
		logger:      o.logger,
	}
}

// List returns one page of obligations visible to the actor
func (s *QueryService) List(ctx context.Context, actor identity.Actor, f ListFilter) (*shared.Paginated[ObligationResult], error) {
	ctx, span := telemetry.StartServiceSpan(ctx, spanService, OpList)
	defer span.End()

	if err := validateInput(f); err != nil {
		return nil, s.fail(ctx, span, OpList, err)
	}

	now := s.clock.Now()
	pred := s.scope.FilterPredicate(actor, f.BranchID)
	filter := f.toObligationFilter(now)

	items, total, err := s.obligations.List(ctx, pred, filter)
	if err != nil {
		return nil, s.fail(ctx, span, OpList, err)
	}

	results := make([]ObligationResult, len(items))
	for i := range items {
		results[i] = ToObligationResult(&items[i], now)
	}
	page := shared.NewPaginated(results, total, filter.Page, filter.PageSize)
	telemetry.SetAttributes(span, "total", total, "page", filter.Page)
	return &page, nil
}

// Summary aggregates counts and amounts of the obligations visible to the actor.
// branchFilter narrows the view of unrestricted actors only.
func (s *QueryService) Summary(ctx context.Context, actor identity.Actor, branchFilter *uuid.UUID) (*ledger.Summary, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, spanService, OpSummary)
	defer span.End()

	summary, err := s.obligations.Summarize(ctx, s.scope.FilterPredicate(actor, branchFilter))
	if err != nil {
		return nil, s.fail(ctx, span, OpSummary, err)
	}
	return summary, nil
}

func (s *QueryService) fail(ctx context.Context, span trace.Span, op string, err error) error {
	kind, ok := shared.KindOf(err)
	if !ok {
		kind = shared.KindStorage
	}
	telemetry.RecordError(span, err)
	s.metrics.OperationFailed(ctx, op, string(kind))
	if kind == shared.KindStorage {
		logger.WithLogger(ctx, s.logger).Error("Settlement query failed", zap.String("operation", op), zap.Error(err))
	}
	return err
}
