package identity

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Role determines how far an actor's branch scope reaches
type Role string

const (
	// RoleUnrestricted sees and writes every branch
	RoleUnrestricted Role = "UNRESTRICTED"
	// RoleBranchScoped sees and writes only its own branch
	RoleBranchScoped Role = "BRANCH_SCOPED"
)

// IsValid checks if the role is known
func (r Role) IsValid() bool {
	return r == RoleUnrestricted || r == RoleBranchScoped
}

// String returns the string representation of Role
func (r Role) String() string {
	return string(r)
}

// ParseRole parses a role name, case-insensitively
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if !r.IsValid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// Actor is the caller on whose behalf an operation runs
type Actor struct {
	ID       uuid.UUID
	Role     Role
	BranchID *uuid.UUID
}

// NewUnrestrictedActor creates an actor that may act on every branch.
// branchID is its home branch, used as a default and may be nil.
func NewUnrestrictedActor(id uuid.UUID, branchID *uuid.UUID) Actor {
	return Actor{ID: id, Role: RoleUnrestricted, BranchID: branchID}
}

// NewBranchActor creates an actor confined to branchID
func NewBranchActor(id uuid.UUID, branchID *uuid.UUID) Actor {
	return Actor{ID: id, Role: RoleBranchScoped, BranchID: branchID}
}

// IsUnrestricted reports whether the actor crosses branch boundaries
func (a Actor) IsUnrestricted() bool {
	return a.Role == RoleUnrestricted
}

// HasBranch reports whether the actor is assigned to a branch
func (a Actor) HasBranch() bool {
	return a.BranchID != nil && *a.BranchID != uuid.Nil
}

// InBranch reports whether the actor's own branch equals branchID
func (a Actor) InBranch(branchID *uuid.UUID) bool {
	if !a.HasBranch() || branchID == nil {
		return false
	}
	return *a.BranchID == *branchID
}
