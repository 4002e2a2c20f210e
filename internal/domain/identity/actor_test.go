package identity

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	r, err := ParseRole("branch_scoped")
	require.NoError(t, err)
	assert.Equal(t, RoleBranchScoped, r)

	r, err = ParseRole("UNRESTRICTED")
	require.NoError(t, err)
	assert.Equal(t, RoleUnrestricted, r)

	_, err = ParseRole("admin")
	assert.Error(t, err)
}

func TestActor_InBranch(t *testing.T) {
	branch := uuid.New()
	other := uuid.New()

	actor := NewBranchActor(uuid.New(), &branch)
	assert.True(t, actor.HasBranch())
	assert.True(t, actor.InBranch(&branch))
	assert.False(t, actor.InBranch(&other))
	assert.False(t, actor.InBranch(nil))

	unassigned := NewBranchActor(uuid.New(), nil)
	assert.False(t, unassigned.HasBranch())
	assert.False(t, unassigned.InBranch(&branch))

	nilBranch := uuid.Nil
	zero := NewBranchActor(uuid.New(), &nilBranch)
	assert.False(t, zero.HasBranch())
}

func TestActor_IsUnrestricted(t *testing.T) {
	assert.True(t, NewUnrestrictedActor(uuid.New(), nil).IsUnrestricted())
	assert.False(t, NewBranchActor(uuid.New(), nil).IsUnrestricted())
}
