package persistence

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ledger/backend/internal/domain/ledger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var fixtureNow = time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)

// setupTestDB opens a private in-memory SQLite database with the ledger schema.
// One connection keeps every query on the same in-memory database.
func setupTestDB(t *testing.T) *Database {
	t.Helper()

	gormDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db := NewDatabaseFromGorm(gormDB)
	require.NoError(t, db.AutoMigrate())
	return db
}

type obligationOption func(p *ledger.NewObligationParams)

func withBranch(id *uuid.UUID) obligationOption {
	return func(p *ledger.NewObligationParams) { p.BranchID = id }
}

func withAmount(amount string) obligationOption {
	return func(p *ledger.NewObligationParams) { p.Amount = decimal.RequireFromString(amount) }
}

func withCounterparty(name string) obligationOption {
	return func(p *ledger.NewObligationParams) { p.CounterpartyName = name }
}

func withDates(issue, due time.Time) obligationOption {
	return func(p *ledger.NewObligationParams) {
		p.IssueDate = issue
		p.DueDate = due
	}
}

func withCurrency(code string) obligationOption {
	return func(p *ledger.NewObligationParams) { p.Currency = code }
}

func newObligationFixture(t *testing.T, opts ...obligationOption) *ledger.Obligation {
	t.Helper()
	p := ledger.NewObligationParams{
		Direction:        ledger.DirectionOwedToUs,
		CounterpartyName: "Northwind Traders",
		Amount:           decimal.NewFromInt(1000),
		Currency:         "USD",
		IssueDate:        time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		DueDate:          time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		CreatedBy:        uuid.New(),
	}
	for _, opt := range opts {
		opt(&p)
	}
	o, err := ledger.NewObligation(p, fixtureNow)
	require.NoError(t, err)
	return o
}

func createObligation(t *testing.T, db *Database, opts ...obligationOption) *ledger.Obligation {
	t.Helper()
	o := newObligationFixture(t, opts...)
	require.NoError(t, NewGormObligationRepository(db.DB).Create(t.Context(), o))
	return o
}
