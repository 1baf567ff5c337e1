package repo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func securedResource(state State) *Resource {
	return &Resource{
		ID:    "res-1",
		State: state,
		ACL: []AclEntry{
			{SID: "owner", Permission: PermissionAdministrate},
			{SID: "editor", Permission: PermissionWrite},
			{SID: "viewer", Permission: PermissionRead},
		},
	}
}

func TestPerformPermissionCheck_Volatile(t *testing.T) {
	resource := securedResource(StateVolatile)

	assert.NoError(t, PerformPermissionCheck(resource, PermissionRead, Agent{Principal: "viewer"}))
	assert.NoError(t, PerformPermissionCheck(resource, PermissionWrite, Agent{Principal: "editor"}))
	assert.NoError(t, PerformPermissionCheck(resource, PermissionAdministrate, Agent{Principal: "owner"}))

	err := PerformPermissionCheck(resource, PermissionWrite, Agent{Principal: "viewer"})
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrForbidden))

	err = PerformPermissionCheck(resource, PermissionRead, Agent{Principal: "stranger"})
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrForbidden))
}

func TestPerformPermissionCheck_RevokedHidesExistence(t *testing.T) {
	resource := securedResource(StateRevoked)

	// Non-administrators must get NotFound, never Forbidden, at every level.
	for _, required := range []Permission{PermissionRead, PermissionWrite, PermissionAdministrate} {
		for _, principal := range []string{"viewer", "editor", "stranger"} {
			err := PerformPermissionCheck(resource, required, Agent{Principal: principal})
			require.Error(t, err, "%s requesting %s", principal, required)
			assert.True(t, IsCode(err, ErrNotFound), "%s requesting %s must see NotFound", principal, required)
			assert.False(t, IsCode(err, ErrForbidden))
		}
	}

	// Effective ADMINISTRATE sees through the veil.
	assert.NoError(t, PerformPermissionCheck(resource, PermissionRead, Agent{Principal: "owner"}))
	assert.NoError(t, PerformPermissionCheck(resource, PermissionAdministrate, Agent{Principal: "owner"}))
	assert.NoError(t, PerformPermissionCheck(resource, PermissionRead, Agent{Principal: "root", Administrator: true}))
}

func TestPerformPermissionCheck_FixedEscalatesWrites(t *testing.T) {
	resource := securedResource(StateFixed)

	// Reads keep their normal requirement.
	assert.NoError(t, PerformPermissionCheck(resource, PermissionRead, Agent{Principal: "viewer"}))

	// A WRITE grant is no longer enough for mutation.
	err := PerformPermissionCheck(resource, PermissionWrite, Agent{Principal: "editor"})
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrForbidden))

	// ADMINISTRATE still mutates.
	assert.NoError(t, PerformPermissionCheck(resource, PermissionWrite, Agent{Principal: "owner"}))
}

func TestCanTransition(t *testing.T) {
	legal := map[State][]State{
		StateVolatile: {StateFixed, StateRevoked},
		StateFixed:    {StateRevoked},
		StateRevoked:  {StateGone},
		StateGone:     {},
	}

	all := []State{StateVolatile, StateFixed, StateRevoked, StateGone}
	for from, allowed := range legal {
		for _, to := range all {
			want := false
			for _, a := range allowed {
				if a == to {
					want = true
				}
			}
			assert.Equal(t, want, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestCheckTransition(t *testing.T) {
	t.Run("requires administrate", func(t *testing.T) {
		err := CheckTransition(securedResource(StateVolatile), StateFixed, Agent{Principal: "editor"})
		require.Error(t, err)
		assert.True(t, IsCode(err, ErrForbidden))
	})

	t.Run("illegal transition is BadArgument", func(t *testing.T) {
		err := CheckTransition(securedResource(StateFixed), StateVolatile, Agent{Principal: "owner"})
		require.Error(t, err)
		assert.True(t, IsCode(err, ErrBadArgument))
	})

	t.Run("revoked hides from non-admin even for transitions", func(t *testing.T) {
		err := CheckTransition(securedResource(StateRevoked), StateGone, Agent{Principal: "editor"})
		require.Error(t, err)
		assert.True(t, IsCode(err, ErrNotFound))
	})

	t.Run("legal transition with authority", func(t *testing.T) {
		assert.NoError(t, CheckTransition(securedResource(StateVolatile), StateFixed, Agent{Principal: "owner"}))
		assert.NoError(t, CheckTransition(securedResource(StateRevoked), StateGone, Agent{Principal: "owner"}))
	})
}
