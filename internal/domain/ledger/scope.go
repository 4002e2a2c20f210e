package ledger

import (
	"github.com/google/uuid"
	"github.com/ledger/backend/internal/domain/identity"
	"github.com/ledger/backend/internal/domain/shared"
)

// MessageNoBranchAssigned is returned to branch-scoped actors without a branch
const MessageNoBranchAssigned = "no branch assigned"

// Predicate is the row filter an actor's scope imposes on obligation reads.
// Deleted rows are always excluded.
type Predicate struct {
	// BranchID restricts rows to one branch when set
	BranchID *uuid.UUID
	// DenyAll matches nothing; used for branch-scoped actors without a branch
	DenyAll bool
}

// ScopeResolver translates an actor into read predicates and write checks
type ScopeResolver struct{}

// NewScopeResolver creates a ScopeResolver
func NewScopeResolver() *ScopeResolver {
	return &ScopeResolver{}
}

// FilterPredicate returns the read predicate for the actor.
// branchFilter narrows an unrestricted actor's view and is ignored for branch-scoped actors.
func (r *ScopeResolver) FilterPredicate(actor identity.Actor, branchFilter *uuid.UUID) Predicate {
	if actor.IsUnrestricted() {
		if branchFilter != nil && *branchFilter != uuid.Nil {
			b := *branchFilter
			return Predicate{BranchID: &b}
		}
		return Predicate{}
	}
	if !actor.HasBranch() {
		return Predicate{DenyAll: true}
	}
	b := *actor.BranchID
	return Predicate{BranchID: &b}
}

// ResolveCreateBranch decides which branch a new obligation belongs to
func (r *ScopeResolver) ResolveCreateBranch(actor identity.Actor, requested *uuid.UUID) (*uuid.UUID, error) {
	if requested != nil && *requested == uuid.Nil {
		requested = nil
	}
	if actor.IsUnrestricted() {
		if requested != nil {
			b := *requested
			return &b, nil
		}
		if actor.HasBranch() {
			b := *actor.BranchID
			return &b, nil
		}
		return nil, nil
	}
	if !actor.HasBranch() {
		return nil, shared.NewForbiddenError(MessageNoBranchAssigned)
	}
	if requested != nil && *requested != *actor.BranchID {
		return nil, shared.NewForbiddenError("cannot create obligations for another branch")
	}
	b := *actor.BranchID
	return &b, nil
}

// AuthorizeWrite checks that the actor may mutate the obligation
func (r *ScopeResolver) AuthorizeWrite(actor identity.Actor, o *Obligation) error {
	return r.authorize(actor, o)
}

// AuthorizeRead checks that the actor may see the obligation
func (r *ScopeResolver) AuthorizeRead(actor identity.Actor, o *Obligation) error {
	return r.authorize(actor, o)
}

func (r *ScopeResolver) authorize(actor identity.Actor, o *Obligation) error {
	if actor.IsUnrestricted() {
		return nil
	}
	if !actor.HasBranch() {
		return shared.NewForbiddenError(MessageNoBranchAssigned)
	}
	if !actor.InBranch(o.BranchID) {
		return shared.NewForbiddenError("obligation belongs to another branch")
	}
	return nil
}
