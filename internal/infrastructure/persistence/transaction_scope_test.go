package persistence

import (
	"context"
	"errors"
	"testing"

	"github.com/ledger/backend/internal/domain/ledger"
	"github.com/ledger/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormTransactionScope_Execute(t *testing.T) {
	ctx := context.Background()

	t.Run("commits payment and balance together", func(t *testing.T) {
		db := setupTestDB(t)
		scope := NewGormTransactionScope(db.DB)
		o := createObligation(t, db)

		err := scope.Execute(ctx, func(repos ledger.TransactionalRepositories) error {
			p, err := ledger.NewPayment(o.ID, decimal.NewFromInt(400), fixtureNow, "", o.CreatedBy, fixtureNow)
			if err != nil {
				return err
			}
			if err := repos.Payments().Append(ctx, p); err != nil {
				return err
			}
			return repos.Obligations().ApplyBalanceChange(ctx, o.ID, decimal.NewFromInt(600), ledger.StatusPartial, 1, fixtureNow)
		})
		require.NoError(t, err)

		count, err := NewGormPaymentRepository(db.DB).CountByObligation(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)

		found, err := NewGormObligationRepository(db.DB).FindByID(ctx, o.ID)
		require.NoError(t, err)
		assert.True(t, found.RemainingAmount.Equal(decimal.NewFromInt(600)))
	})

	t.Run("failed balance change rolls back the payment", func(t *testing.T) {
		db := setupTestDB(t)
		scope := NewGormTransactionScope(db.DB)
		o := createObligation(t, db)

		err := scope.Execute(ctx, func(repos ledger.TransactionalRepositories) error {
			p, err := ledger.NewPayment(o.ID, decimal.NewFromInt(400), fixtureNow, "", o.CreatedBy, fixtureNow)
			if err != nil {
				return err
			}
			if err := repos.Payments().Append(ctx, p); err != nil {
				return err
			}
			// stale version
			return repos.Obligations().ApplyBalanceChange(ctx, o.ID, decimal.NewFromInt(600), ledger.StatusPartial, 5, fixtureNow)
		})
		assert.ErrorIs(t, err, shared.ErrConcurrentModification)

		count, err := NewGormPaymentRepository(db.DB).CountByObligation(ctx, o.ID)
		require.NoError(t, err)
		assert.Zero(t, count)

		found, err := NewGormObligationRepository(db.DB).FindByID(ctx, o.ID)
		require.NoError(t, err)
		assert.True(t, found.RemainingAmount.Equal(found.OriginalAmount))
		assert.Equal(t, 1, found.Version)
	})

	t.Run("plain errors become storage errors", func(t *testing.T) {
		db := setupTestDB(t)
		scope := NewGormTransactionScope(db.DB)

		cause := errors.New("disk full")
		err := scope.Execute(ctx, func(ledger.TransactionalRepositories) error { return cause })
		assert.ErrorIs(t, err, shared.ErrStorage)
		assert.ErrorIs(t, err, cause)
	})

	t.Run("cancelled context leaves obligation untouched", func(t *testing.T) {
		db := setupTestDB(t)
		scope := NewGormTransactionScope(db.DB)
		o := createObligation(t, db)

		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		err := scope.Execute(cancelled, func(repos ledger.TransactionalRepositories) error {
			return repos.Obligations().ApplyBalanceChange(cancelled, o.ID, decimal.NewFromInt(1), ledger.StatusPartial, 1, fixtureNow)
		})
		assert.Error(t, err)

		found, err := NewGormObligationRepository(db.DB).FindByID(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, found.Version)
	})
}
