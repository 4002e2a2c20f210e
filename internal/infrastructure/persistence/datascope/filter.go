// Package datascope renders branch scope predicates as GORM query scopes.
//
// Usage:
//
//	pred := resolver.FilterPredicate(actor, branchFilter)
//	db.Model(&models.ObligationModel{}).Scopes(datascope.Apply(pred)).Find(&rows)
//
// Soft-deleted rows are always excluded. A deny-all predicate yields an empty result.
package datascope

import (
	"github.com/ledger/backend/internal/domain/ledger"
	"gorm.io/gorm"
)

const (
	// BranchColumn is the column restricted by branch scope
	BranchColumn = "branch_id"
	// DeletedColumn is the soft-delete flag column
	DeletedColumn = "is_deleted"
)

// Apply returns a GORM scope enforcing the predicate
func Apply(pred ledger.Predicate) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if pred.DenyAll {
			// No branch assigned - return empty result
			return db.Where("1 = 0")
		}
		db = db.Where(DeletedColumn+" = ?", false)
		if pred.BranchID != nil {
			db = db.Where(BranchColumn+" = ?", *pred.BranchID)
		}
		return db
	}
}

// CanAccessAll reports whether the predicate spans every branch
func CanAccessAll(pred ledger.Predicate) bool {
	return !pred.DenyAll && pred.BranchID == nil
}
