package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/ledger/backend/internal/domain/ledger"
	"github.com/ledger/backend/internal/domain/shared"
	"github.com/ledger/backend/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormPaymentRepository implements the append-only PaymentRepository using GORM
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewGormPaymentRepository creates a new GormPaymentRepository
func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *GormPaymentRepository) WithTx(tx *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: tx}
}

// Append inserts a payment row
func (r *GormPaymentRepository) Append(ctx context.Context, p *ledger.Payment) error {
	if err := r.db.WithContext(ctx).Create(models.PaymentModelFromDomain(p)).Error; err != nil {
		return shared.NewStorageError("append payment", err)
	}
	return nil
}

// ListByObligation returns all payments of an obligation, newest payment date first
func (r *GormPaymentRepository) ListByObligation(ctx context.Context, obligationID uuid.UUID) ([]ledger.Payment, error) {
	var rows []models.PaymentModel
	if err := r.db.WithContext(ctx).
		Where("obligation_id = ?", obligationID).
		Order("payment_date DESC").
		Order("recorded_at DESC").
		Find(&rows).Error; err != nil {
		return nil, shared.NewStorageError("list payments", err)
	}

	payments := make([]ledger.Payment, len(rows))
	for i := range rows {
		payments[i] = *rows[i].ToDomain()
	}
	return payments, nil
}

// SumAmount returns the sum of all payment amounts for an obligation.
// Amounts are added in Go so the result stays decimal-exact on every engine.
func (r *GormPaymentRepository) SumAmount(ctx context.Context, obligationID uuid.UUID) (decimal.Decimal, error) {
	var amounts []decimal.Decimal
	if err := r.db.WithContext(ctx).
		Model(&models.PaymentModel{}).
		Where("obligation_id = ?", obligationID).
		Pluck("amount", &amounts).Error; err != nil {
		return decimal.Zero, shared.NewStorageError("sum payments", err)
	}

	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total, nil
}

// CountByObligation returns the number of payments recorded against an obligation
func (r *GormPaymentRepository) CountByObligation(ctx context.Context, obligationID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.PaymentModel{}).
		Where("obligation_id = ?", obligationID).
		Count(&count).Error; err != nil {
		return 0, shared.NewStorageError("count payments", err)
	}
	return count, nil
}

// Ensure GormPaymentRepository implements PaymentRepository
var _ ledger.PaymentRepository = (*GormPaymentRepository)(nil)
