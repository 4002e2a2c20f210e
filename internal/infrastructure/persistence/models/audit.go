package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditLogModel is one append-only audit trail row.
// Before/after images are stored as JSON; "null" when absent.
type AuditLogModel struct {
	ID         uuid.UUID  `gorm:"type:uuid;primary_key"`
	ActorID    uuid.UUID  `gorm:"type:uuid;not null;index"`
	Action     string     `gorm:"type:varchar(30);not null;index"`
	EntityType string     `gorm:"type:varchar(50);not null"`
	EntityID   uuid.UUID  `gorm:"type:uuid;not null;index"`
	BranchID   *uuid.UUID `gorm:"type:uuid;index"`
	BeforeData string     `gorm:"column:before_data;type:jsonb"`
	AfterData  string     `gorm:"column:after_data;type:jsonb"`
	CreatedAt  time.Time  `gorm:"not null"`
}

// TableName returns the table name for GORM
func (AuditLogModel) TableName() string {
	return "audit_logs"
}
