package facade

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/baserepo/pkg/audit"
	"github.com/marmos91/baserepo/pkg/content"
	"github.com/marmos91/baserepo/pkg/content/versioning/none"
	"github.com/marmos91/baserepo/pkg/repo"
	"github.com/marmos91/baserepo/pkg/repo/patch"
	"github.com/marmos91/baserepo/pkg/store/memory"
)

var (
	owner    = repo.Agent{Principal: "owner"}
	editor   = repo.Agent{Principal: "editor"}
	viewer   = repo.Agent{Principal: "viewer"}
	stranger = repo.Agent{Principal: "stranger"}
	admin    = repo.Agent{Principal: "root", Administrator: true}
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()

	fs, err := none.NewFSService(none.Config{BasePath: t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, fs.Configure(context.Background()))

	s := memory.NewMemoryStore()
	return New(s, audit.NewMemoryService(), content.NewService(s, fs))
}

// createResource creates a resource owned by "owner" with WRITE for "editor"
// and READ for "viewer".
func createResource(t *testing.T, r *Repository) *MutationResult {
	t.Helper()

	result, err := r.Create(context.Background(), &repo.Resource{
		Title: "Dataset",
		ACL: []repo.AclEntry{
			{SID: "editor", Permission: repo.PermissionWrite},
			{SID: "viewer", Permission: repo.PermissionRead},
		},
	}, owner)
	require.NoError(t, err)
	return result
}

func TestRepository_Create(t *testing.T) {
	r := newTestRepository(t)
	ctx := context.Background()

	t.Run("assigns id, state and creator grant", func(t *testing.T) {
		result := createResource(t, r)

		assert.NotEmpty(t, result.Resource.ID)
		assert.Equal(t, repo.StateVolatile, result.Resource.State)
		assert.NotEmpty(t, result.Etag)
		assert.Equal(t, int64(1), result.Version)
		assert.False(t, result.Resource.Created.IsZero())

		assert.Equal(t, repo.PermissionAdministrate,
			repo.EffectivePermission(result.Resource, owner))
	})

	t.Run("keeps caller-supplied id when free", func(t *testing.T) {
		result, err := r.Create(ctx, &repo.Resource{ID: "chosen-id", Title: "Named"}, owner)
		require.NoError(t, err)
		assert.Equal(t, "chosen-id", result.Resource.ID)

		_, err = r.Create(ctx, &repo.Resource{ID: "chosen-id", Title: "Clash"}, owner)
		assert.True(t, repo.IsCode(err, repo.ErrAlreadyExists))
	})

	t.Run("raises an existing creator grant instead of duplicating", func(t *testing.T) {
		result, err := r.Create(ctx, &repo.Resource{
			Title: "Self-listed",
			ACL:   []repo.AclEntry{{SID: "owner", Permission: repo.PermissionRead}},
		}, owner)
		require.NoError(t, err)

		require.Len(t, result.Resource.ACL, 1)
		assert.Equal(t, repo.PermissionAdministrate, result.Resource.ACL[0].Permission)
	})

	t.Run("requires principal and title", func(t *testing.T) {
		_, err := r.Create(ctx, &repo.Resource{Title: "X"}, repo.Agent{})
		assert.True(t, repo.IsCode(err, repo.ErrBadArgument))

		_, err = r.Create(ctx, &repo.Resource{}, owner)
		assert.True(t, repo.IsCode(err, repo.ErrBadArgument))
	})
}

func TestRepository_Get(t *testing.T) {
	r := newTestRepository(t)
	ctx := context.Background()
	created := createResource(t, r)

	result, err := r.Get(ctx, created.Resource.ID, viewer)
	require.NoError(t, err)
	assert.Equal(t, created.Etag, result.Etag)

	_, err = r.Get(ctx, created.Resource.ID, stranger)
	assert.True(t, repo.IsCode(err, repo.ErrForbidden))

	_, err = r.Get(ctx, "no-such-id", viewer)
	assert.True(t, repo.IsCode(err, repo.ErrNotFound))
}

func TestRepository_Patch(t *testing.T) {
	r := newTestRepository(t)
	ctx := context.Background()
	created := createResource(t, r)
	id := created.Resource.ID

	rename := []patch.Operation{{Op: patch.OpReplace, Path: "/title", Value: "Renamed"}}

	t.Run("success bumps version and etag", func(t *testing.T) {
		result, err := r.Patch(ctx, id, rename, editor, created.Etag)
		require.NoError(t, err)
		assert.Equal(t, "Renamed", result.Resource.Title)
		assert.NotEqual(t, created.Etag, result.Etag)
		assert.Equal(t, int64(2), result.Version)

		// Persisted, not just returned.
		reread, err := r.Get(ctx, id, viewer)
		require.NoError(t, err)
		assert.Equal(t, "Renamed", reread.Resource.Title)
	})

	t.Run("etag check-and-set lets only one writer win", func(t *testing.T) {
		current, err := r.Get(ctx, id, editor)
		require.NoError(t, err)

		// Two writers both read the same state; the first commit wins.
		_, err = r.Patch(ctx, id, []patch.Operation{
			{Op: patch.OpReplace, Path: "/title", Value: "First"},
		}, editor, current.Etag)
		require.NoError(t, err)

		_, err = r.Patch(ctx, id, []patch.Operation{
			{Op: patch.OpReplace, Path: "/title", Value: "Second"},
		}, editor, current.Etag)
		require.Error(t, err)
		assert.True(t, repo.IsCode(err, repo.ErrPreconditionFailed))

		reread, err := r.Get(ctx, id, viewer)
		require.NoError(t, err)
		assert.Equal(t, "First", reread.Resource.Title)
	})

	t.Run("read-only caller cannot patch", func(t *testing.T) {
		current, err := r.Get(ctx, id, viewer)
		require.NoError(t, err)

		_, err = r.Patch(ctx, id, rename, viewer, current.Etag)
		assert.True(t, repo.IsCode(err, repo.ErrForbidden))
	})
}

func TestRepository_GetVersion(t *testing.T) {
	r := newTestRepository(t)
	ctx := context.Background()
	created := createResource(t, r)
	id := created.Resource.ID

	_, err := r.Patch(ctx, id, []patch.Operation{
		{Op: patch.OpReplace, Path: "/title", Value: "Renamed"},
	}, editor, created.Etag)
	require.NoError(t, err)

	snapshot, err := r.GetVersion(ctx, id, 1, viewer)
	require.NoError(t, err)
	assert.Equal(t, "Dataset", snapshot.Resource.Title)
	assert.Equal(t, int64(1), snapshot.Version)

	_, err = r.GetVersion(ctx, id, 99, viewer)
	assert.True(t, repo.IsCode(err, repo.ErrNotFound))

	_, err = r.GetVersion(ctx, id, 1, stranger)
	assert.True(t, repo.IsCode(err, repo.ErrForbidden))
}

func TestRepository_Fix(t *testing.T) {
	r := newTestRepository(t)
	ctx := context.Background()
	created := createResource(t, r)
	id := created.Resource.ID

	t.Run("requires administrate and etag", func(t *testing.T) {
		_, err := r.Fix(ctx, id, editor, created.Etag)
		assert.True(t, repo.IsCode(err, repo.ErrForbidden))

		_, err = r.Fix(ctx, id, owner, "")
		assert.True(t, repo.IsCode(err, repo.ErrPreconditionRequired))
	})

	fixed, err := r.Fix(ctx, id, owner, created.Etag)
	require.NoError(t, err)
	assert.Equal(t, repo.StateFixed, fixed.Resource.State)

	t.Run("fixed resource refuses non-admin writes", func(t *testing.T) {
		_, err := r.Patch(ctx, id, []patch.Operation{
			{Op: patch.OpReplace, Path: "/title", Value: "Tampered"},
		}, editor, fixed.Etag)
		assert.True(t, repo.IsCode(err, repo.ErrForbidden))

		// Reads still work at READ level.
		_, err = r.Get(ctx, id, viewer)
		assert.NoError(t, err)
	})

	t.Run("owner still patches a fixed resource", func(t *testing.T) {
		_, err := r.Patch(ctx, id, []patch.Operation{
			{Op: patch.OpReplace, Path: "/title", Value: "Corrected"},
		}, owner, fixed.Etag)
		assert.NoError(t, err)
	})

	t.Run("no way back to volatile", func(t *testing.T) {
		current, err := r.Get(ctx, id, owner)
		require.NoError(t, err)
		_, err = r.Fix(ctx, id, owner, current.Etag)
		assert.True(t, repo.IsCode(err, repo.ErrBadArgument))
	})
}

func TestRepository_Revoke(t *testing.T) {
	r := newTestRepository(t)
	ctx := context.Background()
	created := createResource(t, r)
	id := created.Resource.ID

	revoked, err := r.Revoke(ctx, id, owner, created.Etag)
	require.NoError(t, err)
	assert.Equal(t, repo.StateRevoked, revoked.Resource.State)

	t.Run("hidden from everyone below administrate", func(t *testing.T) {
		for _, caller := range []repo.Agent{viewer, editor, stranger} {
			_, err := r.Get(ctx, id, caller)
			require.Error(t, err)
			assert.True(t, repo.IsCode(err, repo.ErrNotFound))
		}

		_, err := r.ListContent(ctx, id, "", viewer)
		assert.True(t, repo.IsCode(err, repo.ErrNotFound))
	})

	t.Run("owner and administrator still see it", func(t *testing.T) {
		_, err := r.Get(ctx, id, owner)
		assert.NoError(t, err)
		_, err = r.Get(ctx, id, admin)
		assert.NoError(t, err)
	})
}

func TestRepository_Purge(t *testing.T) {
	r := newTestRepository(t)
	ctx := context.Background()
	created := createResource(t, r)
	id := created.Resource.ID

	item, err := r.PutContent(ctx, id, "data.txt", content.PutRequest{
		Stream: strings.NewReader("payload"),
	}, editor)
	require.NoError(t, err)

	t.Run("only revoked resources can be purged", func(t *testing.T) {
		current, err := r.Get(ctx, id, admin)
		require.NoError(t, err)
		err = r.Purge(ctx, id, admin, current.Etag)
		assert.True(t, repo.IsCode(err, repo.ErrBadArgument))
	})

	current, err := r.Get(ctx, id, owner)
	require.NoError(t, err)
	revoked, err := r.Revoke(ctx, id, owner, current.Etag)
	require.NoError(t, err)

	t.Run("non-administrators get NotFound", func(t *testing.T) {
		err := r.Purge(ctx, id, owner, revoked.Etag)
		require.Error(t, err)
		assert.True(t, repo.IsCode(err, repo.ErrNotFound))
	})

	t.Run("administrator purge removes everything", func(t *testing.T) {
		require.NoError(t, r.Purge(ctx, id, admin, revoked.Etag))

		_, err := r.Get(ctx, id, admin)
		assert.True(t, repo.IsCode(err, repo.ErrNotFound))

		_, err = r.Trail(ctx, id, 0, 10, admin)
		assert.True(t, repo.IsCode(err, repo.ErrNotFound))

		artifact := strings.TrimPrefix(item.URI, "file://")
		assert.NoFileExists(t, artifact)
	})
}

func TestRepository_Content(t *testing.T) {
	r := newTestRepository(t)
	ctx := context.Background()
	created := createResource(t, r)
	id := created.Resource.ID

	t.Run("put requires write", func(t *testing.T) {
		_, err := r.PutContent(ctx, id, "a.txt", content.PutRequest{
			Stream: strings.NewReader("a"),
		}, viewer)
		assert.True(t, repo.IsCode(err, repo.ErrForbidden))
	})

	item, err := r.PutContent(ctx, id, "a.txt", content.PutRequest{
		Stream: strings.NewReader("a"),
		Tags:   []string{"raw"},
	}, editor)
	require.NoError(t, err)
	assert.Equal(t, "a.txt", item.Path)

	t.Run("get and list at read level", func(t *testing.T) {
		result, err := r.GetContent(ctx, id, "a.txt", viewer)
		require.NoError(t, err)
		require.Equal(t, content.OutcomeStream, result.Outcome)
		_ = result.Reader.Close()

		items, err := r.ListContent(ctx, id, "raw", viewer)
		require.NoError(t, err)
		assert.Len(t, items, 1)

		_, err = r.GetContent(ctx, id, "a.txt", stranger)
		assert.True(t, repo.IsCode(err, repo.ErrForbidden))
	})

	t.Run("delete requires write and etag", func(t *testing.T) {
		current, err := r.Get(ctx, id, editor)
		require.NoError(t, err)

		err = r.DeleteContent(ctx, id, "a.txt", viewer, current.Etag)
		assert.True(t, repo.IsCode(err, repo.ErrForbidden))

		err = r.DeleteContent(ctx, id, "a.txt", editor, "stale")
		assert.True(t, repo.IsCode(err, repo.ErrPreconditionFailed))

		require.NoError(t, r.DeleteContent(ctx, id, "a.txt", editor, current.Etag))

		_, err = r.GetContent(ctx, id, "a.txt", viewer)
		assert.True(t, repo.IsCode(err, repo.ErrNotFound))
	})
}

func TestRepository_Trail(t *testing.T) {
	r := newTestRepository(t)
	ctx := context.Background()
	created := createResource(t, r)
	id := created.Resource.ID

	_, err := r.Patch(ctx, id, []patch.Operation{
		{Op: patch.OpReplace, Path: "/title", Value: "Renamed"},
	}, editor, created.Etag)
	require.NoError(t, err)

	trail, err := r.Trail(ctx, id, 0, 10, viewer)
	require.NoError(t, err)
	assert.Contains(t, trail, "Renamed")
	assert.Contains(t, trail, "Dataset")

	_, err = r.Trail(ctx, id, 0, 10, stranger)
	assert.True(t, repo.IsCode(err, repo.ErrForbidden))
}
