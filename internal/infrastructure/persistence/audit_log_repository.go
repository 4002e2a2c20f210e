package persistence

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/ledger/backend/internal/domain/ledger"
	"github.com/ledger/backend/internal/domain/shared"
	"github.com/ledger/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormAuditLogRepository writes the audit trail using GORM.
// Audit logs are append-only and never modified after creation.
type GormAuditLogRepository struct {
	db *gorm.DB
}

// NewGormAuditLogRepository creates a new GormAuditLogRepository
func NewGormAuditLogRepository(db *gorm.DB) *GormAuditLogRepository {
	return &GormAuditLogRepository{db: db}
}

// Record implements ledger.AuditRecorder
func (r *GormAuditLogRepository) Record(ctx context.Context, entry ledger.AuditEntry) error {
	model := &models.AuditLogModel{
		ID:         uuid.New(),
		ActorID:    entry.ActorID,
		Action:     string(entry.Action),
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		BranchID:   entry.BranchID,
		BeforeData: marshalAuditImage(entry.Before),
		AfterData:  marshalAuditImage(entry.After),
		CreatedAt:  entry.OccurredAt,
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return shared.NewStorageError("record audit log", err)
	}
	return nil
}

// FindByEntity returns the audit trail of one entity, oldest first
func (r *GormAuditLogRepository) FindByEntity(ctx context.Context, entityType string, entityID uuid.UUID) ([]models.AuditLogModel, error) {
	var rows []models.AuditLogModel
	if err := r.db.WithContext(ctx).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, shared.NewStorageError("find audit logs", err)
	}
	return rows, nil
}

// marshalAuditImage serializes a before/after image; jsonb needs "null" rather than ""
func marshalAuditImage(v any) string {
	if v == nil {
		return "null"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}

// Ensure GormAuditLogRepository implements AuditRecorder
var _ ledger.AuditRecorder = (*GormAuditLogRepository)(nil)
