package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/ledger/backend/internal/domain/shared"
)

// AuditAction names a mutation recorded in the audit trail
type AuditAction string

const (
	AuditActionCreate  AuditAction = "CREATE"
	AuditActionPayment AuditAction = "PAYMENT"
	AuditActionDelete  AuditAction = "DELETE"
)

// AuditEntry is one audit trail record with before/after images
type AuditEntry struct {
	ActorID    uuid.UUID
	Action     AuditAction
	EntityType string
	EntityID   uuid.UUID
	BranchID   *uuid.UUID
	Before     any
	After      any
	OccurredAt time.Time
}

// AuditRecorder persists audit entries
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry) error
}

// SideEffects receives best-effort notifications after a committed mutation.
// Implementations must not block and must not report failures to the caller.
type SideEffects interface {
	// Emit dispatches events in the given order
	Emit(ctx context.Context, events ...shared.DomainEvent)
	// Audit dispatches an audit entry
	Audit(ctx context.Context, entry AuditEntry)
}

// NopSideEffects discards everything
type NopSideEffects struct{}

// Emit does nothing
func (NopSideEffects) Emit(context.Context, ...shared.DomainEvent) {}

// Audit does nothing
func (NopSideEffects) Audit(context.Context, AuditEntry) {}
