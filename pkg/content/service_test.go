package content

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/baserepo/pkg/content/versioning/none"
	"github.com/marmos91/baserepo/pkg/repo"
	"github.com/marmos91/baserepo/pkg/store/memory"
)

// sha1 of "hello world"
const helloDigest = "sha1:2aae6c35c94fcfb415dbe95f408b9ce91ee846ed"

func newTestService(t *testing.T) *Service {
	t.Helper()

	fs, err := none.NewFSService(none.Config{BasePath: t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, fs.Configure(context.Background()))

	return NewService(memory.NewMemoryStore(), fs)
}

func testResource() *repo.Resource {
	return &repo.Resource{
		ID:    "res-1",
		State: repo.StateVolatile,
		ACL:   []repo.AclEntry{{SID: "alice", Permission: repo.PermissionAdministrate}},
	}
}

func artifactPath(t *testing.T, uri string) string {
	t.Helper()
	require.True(t, strings.HasPrefix(uri, "file://"), "expected local locator, got %s", uri)
	return strings.TrimPrefix(uri, "file://")
}

func TestService_Put_Stream(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()
	resource := testResource()

	item, err := service.Put(ctx, resource, "//data//hello.txt", PutRequest{
		Stream: strings.NewReader("hello world"),
		Tags:   []string{"raw"},
	}, repo.Agent{Principal: "alice"})
	require.NoError(t, err)

	assert.Equal(t, "data/hello.txt", item.Path)
	assert.Equal(t, 2, item.Depth)
	assert.Equal(t, int64(11), item.Size)
	assert.Equal(t, helloDigest, item.Hash)
	assert.Equal(t, "text/plain; charset=utf-8", item.MediaType)

	// The artifact is on disk and streams back intact.
	result, err := service.Get(ctx, resource, "data/hello.txt")
	require.NoError(t, err)
	require.Equal(t, OutcomeStream, result.Outcome)
	defer func() { _ = result.Reader.Close() }()

	body, err := io.ReadAll(result.Reader)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(body))
}

func TestService_Put_DeclaredMediaType(t *testing.T) {
	service := newTestService(t)
	resource := testResource()

	item, err := service.Put(context.Background(), resource, "blob.bin", PutRequest{
		Stream:    strings.NewReader("hello world"),
		MediaType: "application/x-custom",
	}, repo.Agent{Principal: "alice"})
	require.NoError(t, err)
	assert.Equal(t, "application/x-custom", item.MediaType)
}

func TestService_Put_RootPath(t *testing.T) {
	service := newTestService(t)

	_, err := service.Put(context.Background(), testResource(), "//", PutRequest{
		Stream: strings.NewReader("x"),
	}, repo.Agent{Principal: "alice"})
	require.Error(t, err)
	assert.True(t, repo.IsCode(err, repo.ErrBadArgument))
}

func TestService_Put_Overwrite(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()
	resource := testResource()
	caller := repo.Agent{Principal: "alice"}

	first, err := service.Put(ctx, resource, "data.txt", PutRequest{Stream: strings.NewReader("v1")}, caller)
	require.NoError(t, err)
	firstArtifact := artifactPath(t, first.URI)

	t.Run("without force", func(t *testing.T) {
		_, err := service.Put(ctx, resource, "data.txt", PutRequest{Stream: strings.NewReader("v2")}, caller)
		require.Error(t, err)
		assert.True(t, repo.IsCode(err, repo.ErrAlreadyExists))

		// Original artifact untouched.
		_, statErr := os.Stat(firstArtifact)
		assert.NoError(t, statErr)
	})

	t.Run("with force", func(t *testing.T) {
		second, err := service.Put(ctx, resource, "data.txt", PutRequest{
			Stream: strings.NewReader("v2"),
			Force:  true,
		}, caller)
		require.NoError(t, err)

		// The record keeps its identity, points to a fresh artifact, and the
		// superseded artifact is gone.
		assert.Equal(t, first.ID, second.ID)
		assert.NotEqual(t, first.URI, second.URI)

		_, statErr := os.Stat(firstArtifact)
		assert.True(t, os.IsNotExist(statErr))
		_, statErr = os.Stat(artifactPath(t, second.URI))
		assert.NoError(t, statErr)

		result, err := service.Get(ctx, resource, "data.txt")
		require.NoError(t, err)
		defer func() { _ = result.Reader.Close() }()
		body, err := io.ReadAll(result.Reader)
		require.NoError(t, err)
		assert.Equal(t, "v2", string(body))
	})
}

func TestService_Put_ExternalLocator(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()
	resource := testResource()

	t.Run("remote locator", func(t *testing.T) {
		item, err := service.Put(ctx, resource, "remote.dat", PutRequest{
			URI: "https://example.org/files/remote.dat",
		}, repo.Agent{Principal: "alice"})
		require.NoError(t, err)
		assert.Equal(t, "https://example.org/files/remote.dat", item.URI)
		assert.Zero(t, item.Size)
		assert.Empty(t, item.Hash)
	})

	t.Run("file locator needs administrator", func(t *testing.T) {
		_, err := service.Put(ctx, resource, "local.dat", PutRequest{
			URI: "file:///etc/passwd",
		}, repo.Agent{Principal: "alice"})
		require.Error(t, err)
		assert.True(t, repo.IsCode(err, repo.ErrForbidden))

		item, err := service.Put(ctx, resource, "local.dat", PutRequest{
			URI: "file:///srv/shared/export.csv",
		}, repo.Agent{Principal: "root", Administrator: true})
		require.NoError(t, err)
		assert.Equal(t, "file:///srv/shared/export.csv", item.URI)
	})

	t.Run("neither stream nor locator", func(t *testing.T) {
		_, err := service.Put(ctx, resource, "empty.dat", PutRequest{}, repo.Agent{Principal: "alice"})
		require.Error(t, err)
		assert.True(t, repo.IsCode(err, repo.ErrBadArgument))
	})
}

func TestService_Get_RemoteDispatch(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()
	resource := testResource()
	caller := repo.Agent{Principal: "alice"}

	register := func(t *testing.T, path, uri string) {
		t.Helper()
		_, err := service.Put(ctx, resource, path, PutRequest{URI: uri}, caller)
		require.NoError(t, err)
	}

	t.Run("healthy upstream yields see-other", func(t *testing.T) {
		upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer upstream.Close()

		register(t, "ok.dat", upstream.URL+"/ok.dat")
		result, err := service.Get(ctx, resource, "ok.dat")
		require.NoError(t, err)
		assert.Equal(t, OutcomeRedirect, result.Outcome)
		assert.Equal(t, upstream.URL+"/ok.dat", result.Location)
		assert.Equal(t, http.StatusSeeOther, result.Status)
	})

	t.Run("upstream redirect is forwarded verbatim", func(t *testing.T) {
		upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Location", "https://mirror.example.org/moved.dat")
			w.WriteHeader(http.StatusTemporaryRedirect)
		}))
		defer upstream.Close()

		register(t, "moved.dat", upstream.URL+"/moved.dat")
		result, err := service.Get(ctx, resource, "moved.dat")
		require.NoError(t, err)
		assert.Equal(t, OutcomeRedirect, result.Outcome)
		assert.Equal(t, "https://mirror.example.org/moved.dat", result.Location)
		assert.Equal(t, http.StatusTemporaryRedirect, result.Status)
	})

	t.Run("erroring upstream is unavailable", func(t *testing.T) {
		upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer upstream.Close()

		register(t, "broken.dat", upstream.URL+"/broken.dat")
		result, err := service.Get(ctx, resource, "broken.dat")
		require.NoError(t, err)
		assert.Equal(t, OutcomeUnavailable, result.Outcome)
		assert.Equal(t, upstream.URL+"/broken.dat", result.URI)
	})

	t.Run("unreachable upstream is unavailable", func(t *testing.T) {
		upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		uri := upstream.URL + "/gone.dat"
		upstream.Close()

		register(t, "gone.dat", uri)
		result, err := service.Get(ctx, resource, "gone.dat")
		require.NoError(t, err)
		assert.Equal(t, OutcomeUnavailable, result.Outcome)
		assert.Equal(t, uri, result.URI)
	})

	t.Run("unrecognized scheme comes back raw", func(t *testing.T) {
		register(t, "doi.dat", "doi:10.5281/zenodo.1234")
		result, err := service.Get(ctx, resource, "doi.dat")
		require.NoError(t, err)
		assert.Equal(t, OutcomeNoContent, result.Outcome)
		assert.Equal(t, "doi:10.5281/zenodo.1234", result.URI)
	})

	t.Run("unknown path", func(t *testing.T) {
		_, err := service.Get(ctx, resource, "never-stored.dat")
		require.Error(t, err)
		assert.True(t, repo.IsCode(err, repo.ErrNotFound))
	})
}

func TestService_Get_MissingArtifact(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()
	resource := testResource()

	item, err := service.Put(ctx, resource, "lost.txt", PutRequest{
		Stream: strings.NewReader("payload"),
	}, repo.Agent{Principal: "alice"})
	require.NoError(t, err)

	require.NoError(t, os.Remove(artifactPath(t, item.URI)))

	_, err = service.Get(ctx, resource, "lost.txt")
	require.Error(t, err)
	assert.True(t, repo.IsCode(err, repo.ErrNotFound))
}

func TestService_Delete(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()
	resource := testResource()

	item, err := service.Put(ctx, resource, "doomed.txt", PutRequest{
		Stream: strings.NewReader("payload"),
	}, repo.Agent{Principal: "alice"})
	require.NoError(t, err)
	artifact := artifactPath(t, item.URI)

	require.NoError(t, service.Delete(ctx, resource, "doomed.txt"))

	_, err = service.Get(ctx, resource, "doomed.txt")
	assert.True(t, repo.IsCode(err, repo.ErrNotFound))

	_, statErr := os.Stat(artifact)
	assert.True(t, os.IsNotExist(statErr))

	err = service.Delete(ctx, resource, "doomed.txt")
	assert.True(t, repo.IsCode(err, repo.ErrNotFound))
}

func TestService_List(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()
	resource := testResource()
	caller := repo.Agent{Principal: "alice"}

	_, err := service.Put(ctx, resource, "a.txt", PutRequest{Stream: strings.NewReader("a"), Tags: []string{"raw"}}, caller)
	require.NoError(t, err)
	_, err = service.Put(ctx, resource, "b.txt", PutRequest{Stream: strings.NewReader("b"), Tags: []string{"derived"}}, caller)
	require.NoError(t, err)

	all, err := service.List(ctx, resource, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	raw, err := service.List(ctx, resource, "raw")
	require.NoError(t, err)
	require.Len(t, raw, 1)
	assert.Equal(t, "a.txt", raw[0].Path)
}
