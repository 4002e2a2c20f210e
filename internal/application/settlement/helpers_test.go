package settlement

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ledger/backend/internal/domain/identity"
	"github.com/ledger/backend/internal/domain/ledger"
	"github.com/ledger/backend/internal/domain/shared"
	"github.com/ledger/backend/internal/infrastructure/persistence"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	testNow  = time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)
	issueDay = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	dueDay   = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	branchA  = uuid.MustParse("0b6f3b9e-2f1c-4d0e-9a57-6a5c1f0e0a01")
	branchB  = uuid.MustParse("0b6f3b9e-2f1c-4d0e-9a57-6a5c1f0e0b02")
	adminID  = uuid.MustParse("7d1e6c34-52a4-4b7a-8c6f-2f3e4a5b6c01")
	clerkAID = uuid.MustParse("7d1e6c34-52a4-4b7a-8c6f-2f3e4a5b6ca1")
	clerkBID = uuid.MustParse("7d1e6c34-52a4-4b7a-8c6f-2f3e4a5b6cb1")
	admin    = identity.NewUnrestrictedActor(adminID, nil)
	clerkA   = identity.NewBranchActor(clerkAID, &branchA)
	clerkB   = identity.NewBranchActor(clerkBID, &branchB)
	homeless = identity.NewBranchActor(uuid.MustParse("7d1e6c34-52a4-4b7a-8c6f-2f3e4a5b6c99"), nil)
)

// recordingEffects captures side effects in call order
type recordingEffects struct {
	mu      sync.Mutex
	batches [][]shared.DomainEvent
	audits  []ledger.AuditEntry
}

func (r *recordingEffects) Emit(_ context.Context, events ...shared.DomainEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, events)
}

func (r *recordingEffects) Audit(_ context.Context, entry ledger.AuditEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.audits = append(r.audits, entry)
}

func (r *recordingEffects) eventTypes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var types []string
	for _, batch := range r.batches {
		for _, ev := range batch {
			types = append(types, ev.EventType())
		}
	}
	return types
}

func (r *recordingEffects) auditActions() []ledger.AuditAction {
	r.mu.Lock()
	defer r.mu.Unlock()
	actions := make([]ledger.AuditAction, len(r.audits))
	for i, a := range r.audits {
		actions[i] = a.Action
	}
	return actions
}

type harness struct {
	db          *gorm.DB
	obligations *persistence.GormObligationRepository
	payments    *persistence.GormPaymentRepository
	engine      *Engine
	query       *QueryService
	effects     *recordingEffects
	clock       *shared.FixedClock
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	gormDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, persistence.NewDatabaseFromGorm(gormDB).AutoMigrate())
	return gormDB
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := setupTestDB(t)
	h := &harness{
		db:          db,
		obligations: persistence.NewGormObligationRepository(db),
		payments:    persistence.NewGormPaymentRepository(db),
		effects:     &recordingEffects{},
		clock:       shared.NewFixedClock(testNow),
	}
	h.engine = NewEngine(h.obligations, h.payments, persistence.NewGormTransactionScope(db),
		WithSideEffects(h.effects), WithClock(h.clock))
	h.query = NewQueryService(h.obligations, WithClock(h.clock))
	return h
}

func createInput(amount int64, branch *uuid.UUID) CreateObligationInput {
	return CreateObligationInput{
		Direction:        string(ledger.DirectionOwedToUs),
		CounterpartyName: "Northwind Traders",
		Amount:           decimal.NewFromInt(amount),
		Currency:         "USD",
		IssueDate:        issueDay,
		DueDate:          dueDay,
		BranchID:         branch,
	}
}

func payInput(amount int64) ApplyPaymentInput {
	return ApplyPaymentInput{Amount: decimal.NewFromInt(amount), PaymentDate: testNow}
}

func (h *harness) create(t *testing.T, actor identity.Actor, amount int64, branch *uuid.UUID) *ObligationResult {
	t.Helper()
	res, err := h.engine.CreateObligation(t.Context(), actor, createInput(amount, branch))
	require.NoError(t, err)
	return res
}

func requireAmount(t *testing.T, want int64, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, decimal.NewFromInt(want).Equal(got), "want %d, got %s", want, got.String())
}
