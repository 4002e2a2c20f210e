package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ledger/backend/internal/domain/ledger"
	"github.com/ledger/backend/internal/domain/shared"
	"github.com/ledger/backend/internal/infrastructure/persistence/datascope"
	"github.com/ledger/backend/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const entityObligation = "obligation"

// GormObligationRepository implements ObligationRepository using GORM
type GormObligationRepository struct {
	db *gorm.DB
}

// NewGormObligationRepository creates a new GormObligationRepository
func NewGormObligationRepository(db *gorm.DB) *GormObligationRepository {
	return &GormObligationRepository{db: db}
}

// WithTx returns a repository bound to the given transaction
func (r *GormObligationRepository) WithTx(tx *gorm.DB) *GormObligationRepository {
	return &GormObligationRepository{db: tx}
}

// Create inserts a new obligation
func (r *GormObligationRepository) Create(ctx context.Context, o *ledger.Obligation) error {
	model := models.ObligationModelFromDomain(o)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return shared.NewStorageError("create obligation", err)
	}
	return nil
}

// FindByID finds an obligation by its ID, including soft-deleted rows
func (r *GormObligationRepository) FindByID(ctx context.Context, id uuid.UUID) (*ledger.Obligation, error) {
	var model models.ObligationModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError(entityObligation, id)
		}
		return nil, shared.NewStorageError("find obligation", err)
	}
	return model.ToDomain(), nil
}

// ApplyBalanceChange updates remaining amount and status with a compare-and-swap on version.
// Zero affected rows means another writer got there first.
func (r *GormObligationRepository) ApplyBalanceChange(ctx context.Context, id uuid.UUID, newRemaining decimal.Decimal, status ledger.Status, expectedVersion int, at time.Time) error {
	if newRemaining.IsNegative() {
		return shared.NewValidationError("remaining_amount", "remaining amount cannot be negative")
	}
	if !status.IsValid() {
		return shared.NewValidationError("status", "unknown status "+status.String())
	}

	result := r.db.WithContext(ctx).
		Model(&models.ObligationModel{}).
		Where("id = ? AND version = ? AND is_deleted = ?", id, expectedVersion, false).
		Updates(map[string]any{
			"remaining_amount": newRemaining,
			"status":           status,
			"version":          gorm.Expr("version + 1"),
			"updated_at":       at,
		})
	if result.Error != nil {
		return shared.NewStorageError("apply balance change", result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.NewConcurrentModificationError(entityObligation, id)
	}
	return nil
}

// SoftDelete marks an obligation deleted when it has no payments and still has expectedVersion
func (r *GormObligationRepository) SoftDelete(ctx context.Context, id uuid.UUID, by uuid.UUID, at time.Time, expectedVersion int) error {
	result := r.db.WithContext(ctx).
		Model(&models.ObligationModel{}).
		Where("id = ? AND version = ? AND is_deleted = ?", id, expectedVersion, false).
		Where("NOT EXISTS (SELECT 1 FROM obligation_payments WHERE obligation_payments.obligation_id = obligations.id)").
		Updates(map[string]any{
			"is_deleted": true,
			"deleted_at": at,
			"deleted_by": by,
			"version":    gorm.Expr("version + 1"),
			"updated_at": at,
		})
	if result.Error != nil {
		return shared.NewStorageError("soft delete obligation", result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}
	return r.explainSoftDeleteMiss(ctx, id)
}

// explainSoftDeleteMiss works out why a soft delete touched no rows
func (r *GormObligationRepository) explainSoftDeleteMiss(ctx context.Context, id uuid.UUID) error {
	var model models.ObligationModel
	if err := r.db.WithContext(ctx).Select("id", "is_deleted").First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return shared.NewNotFoundError(entityObligation, id)
		}
		return shared.NewStorageError("soft delete obligation", err)
	}
	if model.IsDeleted {
		return shared.NewNotFoundError(entityObligation, id)
	}

	var payments int64
	if err := r.db.WithContext(ctx).Model(&models.PaymentModel{}).Where("obligation_id = ?", id).Count(&payments).Error; err != nil {
		return shared.NewStorageError("soft delete obligation", err)
	}
	if payments > 0 {
		return shared.NewConflictError("HAS_PAYMENTS", "cannot delete an obligation with recorded payments")
	}
	return shared.NewConcurrentModificationError(entityObligation, id)
}

// List returns a page of obligations visible under the predicate, and the total count
func (r *GormObligationRepository) List(ctx context.Context, pred ledger.Predicate, filter ledger.ObligationFilter) ([]ledger.Obligation, int64, error) {
	base := r.db.WithContext(ctx).
		Model(&models.ObligationModel{}).
		Scopes(datascope.Apply(pred))
	base = r.applyObligationFilterWithoutPagination(base, filter)

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, shared.NewStorageError("count obligations", err)
	}

	var rows []models.ObligationModel
	if err := r.applyObligationPagination(base.Session(&gorm.Session{}), filter).Find(&rows).Error; err != nil {
		return nil, 0, shared.NewStorageError("list obligations", err)
	}

	items := make([]ledger.Obligation, len(rows))
	for i := range rows {
		items[i] = *rows[i].ToDomain()
	}
	return items, total, nil
}

// summaryRow is one (status, currency) aggregate bucket
type summaryRow struct {
	Status         ledger.Status
	Currency       string
	Count          int64
	OriginalTotal  decimal.Decimal
	RemainingTotal decimal.Decimal
}

// Summarize aggregates obligations visible under the predicate
func (r *GormObligationRepository) Summarize(ctx context.Context, pred ledger.Predicate) (*ledger.Summary, error) {
	var rows []summaryRow
	err := r.db.WithContext(ctx).
		Model(&models.ObligationModel{}).
		Scopes(datascope.Apply(pred)).
		Select("status, currency, COUNT(*) AS count, " +
			"COALESCE(SUM(original_amount), 0) AS original_total, " +
			"COALESCE(SUM(remaining_amount), 0) AS remaining_total").
		Group("status, currency").
		Scan(&rows).Error
	if err != nil {
		return nil, shared.NewStorageError("summarize obligations", err)
	}

	summary := &ledger.Summary{ByCurrency: make(map[string]ledger.AmountTotals)}
	for _, row := range rows {
		summary.Total += row.Count
		switch row.Status {
		case ledger.StatusActive:
			summary.ByStatus.Active += row.Count
		case ledger.StatusPartial:
			summary.ByStatus.Partial += row.Count
		case ledger.StatusPaid:
			summary.ByStatus.Paid += row.Count
		}
		summary.Amounts.Add(row.OriginalTotal, row.RemainingTotal)
		totals := summary.ByCurrency[row.Currency]
		totals.Add(row.OriginalTotal, row.RemainingTotal)
		summary.ByCurrency[row.Currency] = totals
	}
	return summary, nil
}

// applyObligationPagination applies ordering and pagination
func (r *GormObligationRepository) applyObligationPagination(query *gorm.DB, filter ledger.ObligationFilter) *gorm.DB {
	orderBy := ValidateSortField(filter.OrderBy, ObligationSortFields, "due_date")
	orderDir := ValidateSortOrder(filter.OrderDir, "ASC")
	query = query.Order(orderBy + " " + orderDir).Order("id ASC")

	if filter.Page > 0 && filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}
	return query
}

// applyObligationFilterWithoutPagination applies filter options without pagination
func (r *GormObligationRepository) applyObligationFilterWithoutPagination(query *gorm.DB, filter ledger.ObligationFilter) *gorm.DB {
	if search := strings.TrimSpace(filter.Search); search != "" {
		searchPattern := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(counterparty_name) LIKE ?", searchPattern)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Direction != nil {
		query = query.Where("direction = ?", *filter.Direction)
	}
	if filter.Currency != "" {
		query = query.Where("currency = ?", strings.ToUpper(filter.Currency))
	}
	if filter.IssueFrom != nil {
		query = query.Where("issue_date >= ?", shared.TruncateToDay(*filter.IssueFrom))
	}
	if filter.IssueTo != nil {
		query = query.Where("issue_date <= ?", shared.TruncateToDay(*filter.IssueTo))
	}
	if filter.DueFrom != nil {
		query = query.Where("due_date >= ?", shared.TruncateToDay(*filter.DueFrom))
	}
	if filter.DueTo != nil {
		query = query.Where("due_date <= ?", shared.TruncateToDay(*filter.DueTo))
	}
	if filter.OverdueAsOf != nil {
		query = query.Where("due_date < ? AND status IN ?", shared.TruncateToDay(*filter.OverdueAsOf),
			[]ledger.Status{ledger.StatusActive, ledger.StatusPartial})
	}
	return query
}

// Ensure GormObligationRepository implements ObligationRepository
var _ ledger.ObligationRepository = (*GormObligationRepository)(nil)
