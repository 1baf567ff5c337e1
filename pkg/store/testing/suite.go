// Package testing provides a conformance test suite for Store
// implementations.
//
// The suite tests the interface contract, not implementation details, so it
// is shared by the memory and badger stores (and any future backend).
package testing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/baserepo/pkg/repo"
	"github.com/marmos91/baserepo/pkg/store"
)

// StoreTestSuite runs the Store contract tests against a fresh instance per
// test, produced by the NewStore factory.
type StoreTestSuite struct {
	// NewStore creates a fresh Store for each test. The suite closes it.
	NewStore func(t *testing.T) store.Store
}

// Run executes all tests in the suite.
func (suite *StoreTestSuite) Run(t *testing.T) {
	t.Run("ResourceRoundTrip", suite.testResourceRoundTrip)
	t.Run("ResourceNotFound", suite.testResourceNotFound)
	t.Run("ResourceUpdate", suite.testResourceUpdate)
	t.Run("ResourceListPaging", suite.testResourceListPaging)
	t.Run("ResourceDeleteCascades", suite.testResourceDeleteCascades)
	t.Run("ResourceIDNamespaceIsolation", suite.testResourceIDNamespaceIsolation)
	t.Run("ContentItemRoundTrip", suite.testContentItemRoundTrip)
	t.Run("ContentItemTagFilter", suite.testContentItemTagFilter)
	t.Run("ContentItemDelete", suite.testContentItemDelete)
}

func sampleResource(id string) *repo.Resource {
	now := time.Now().UTC().Truncate(time.Second)
	return &repo.Resource{
		ID:    id,
		State: repo.StateVolatile,
		ACL: []repo.AclEntry{
			{SID: "alice", Permission: repo.PermissionAdministrate},
		},
		Title:      "Measurement series " + id,
		Creators:   []string{"Alice Example"},
		Created:    now,
		LastUpdate: now,
	}
}

func sampleItem(resourceID, path string, tags ...string) *repo.ContentItem {
	return &repo.ContentItem{
		ID:         resourceID + ":" + path,
		ResourceID: resourceID,
		Path:       path,
		Depth:      repo.Depth(path),
		URI:        "file:///tmp/" + path,
		MediaType:  "application/octet-stream",
		Hash:       "sha1:da39a3ee5e6b4b0d3255bfef95601890afd80709",
		Size:       0,
		Tags:       tags,
	}
}

func (suite *StoreTestSuite) testResourceRoundTrip(t *testing.T) {
	s := suite.NewStore(t)
	defer func() { require.NoError(t, s.Close()) }()
	ctx := context.Background()

	original := sampleResource("res-1")
	require.NoError(t, s.SaveResource(ctx, original))

	loaded, err := s.FindResource(ctx, "res-1")
	require.NoError(t, err)
	assert.Equal(t, original.ID, loaded.ID)
	assert.Equal(t, original.State, loaded.State)
	assert.Equal(t, original.ACL, loaded.ACL)
	assert.Equal(t, original.Title, loaded.Title)
	assert.True(t, original.Created.Equal(loaded.Created))

	// The store must hand out copies, not aliases.
	loaded.Title = "mutated"
	reloaded, err := s.FindResource(ctx, "res-1")
	require.NoError(t, err)
	assert.Equal(t, original.Title, reloaded.Title)
}

func (suite *StoreTestSuite) testResourceNotFound(t *testing.T) {
	s := suite.NewStore(t)
	defer func() { require.NoError(t, s.Close()) }()
	ctx := context.Background()

	_, err := s.FindResource(ctx, "missing")
	require.Error(t, err)
	assert.True(t, repo.IsCode(err, repo.ErrNotFound))

	err = s.DeleteResource(ctx, "missing")
	require.Error(t, err)
	assert.True(t, repo.IsCode(err, repo.ErrNotFound))
}

func (suite *StoreTestSuite) testResourceUpdate(t *testing.T) {
	s := suite.NewStore(t)
	defer func() { require.NoError(t, s.Close()) }()
	ctx := context.Background()

	resource := sampleResource("res-1")
	require.NoError(t, s.SaveResource(ctx, resource))

	resource.Title = "Updated title"
	resource.State = repo.StateFixed
	require.NoError(t, s.SaveResource(ctx, resource))

	loaded, err := s.FindResource(ctx, "res-1")
	require.NoError(t, err)
	assert.Equal(t, "Updated title", loaded.Title)
	assert.Equal(t, repo.StateFixed, loaded.State)
}

func (suite *StoreTestSuite) testResourceListPaging(t *testing.T) {
	s := suite.NewStore(t)
	defer func() { require.NoError(t, s.Close()) }()
	ctx := context.Background()

	for _, id := range []string{"res-c", "res-a", "res-b"} {
		require.NoError(t, s.SaveResource(ctx, sampleResource(id)))
	}

	all, err := s.ListResources(ctx, store.Page{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "res-a", all[0].ID)
	assert.Equal(t, "res-b", all[1].ID)
	assert.Equal(t, "res-c", all[2].ID)

	second, err := s.ListResources(ctx, store.Page{Number: 1, Size: 2})
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, "res-c", second[0].ID)

	beyond, err := s.ListResources(ctx, store.Page{Number: 5, Size: 2})
	require.NoError(t, err)
	assert.Empty(t, beyond)
}

func (suite *StoreTestSuite) testResourceDeleteCascades(t *testing.T) {
	s := suite.NewStore(t)
	defer func() { require.NoError(t, s.Close()) }()
	ctx := context.Background()

	require.NoError(t, s.SaveResource(ctx, sampleResource("res-1")))
	require.NoError(t, s.SaveContentItem(ctx, sampleItem("res-1", "data/file.bin")))
	require.NoError(t, s.SaveContentItem(ctx, sampleItem("res-1", "readme.txt")))

	require.NoError(t, s.DeleteResource(ctx, "res-1"))

	_, err := s.FindResource(ctx, "res-1")
	assert.True(t, repo.IsCode(err, repo.ErrNotFound))

	_, err = s.FindContentItem(ctx, "res-1", "data/file.bin")
	assert.True(t, repo.IsCode(err, repo.ErrNotFound))

	items, err := s.ListContentItems(ctx, "res-1", "")
	require.NoError(t, err)
	assert.Empty(t, items)
}

// Resource ids are caller-suppliable and may contain any character,
// including whatever separators a backend uses in its key encoding. One
// resource's id must never shadow another's namespace.
func (suite *StoreTestSuite) testResourceIDNamespaceIsolation(t *testing.T) {
	s := suite.NewStore(t)
	defer func() { require.NoError(t, s.Close()) }()
	ctx := context.Background()

	require.NoError(t, s.SaveResource(ctx, sampleResource("proj")))
	require.NoError(t, s.SaveResource(ctx, sampleResource("proj:sub")))
	require.NoError(t, s.SaveContentItem(ctx, sampleItem("proj", "data.txt")))
	require.NoError(t, s.SaveContentItem(ctx, sampleItem("proj:sub", "data.txt")))

	// Listing one resource must not leak the other's items.
	items, err := s.ListContentItems(ctx, "proj", "")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "proj", items[0].ResourceID)

	// Cascade-deleting "proj" must leave "proj:sub" fully intact.
	require.NoError(t, s.DeleteResource(ctx, "proj"))

	_, err = s.FindResource(ctx, "proj:sub")
	require.NoError(t, err)

	survivor, err := s.FindContentItem(ctx, "proj:sub", "data.txt")
	require.NoError(t, err)
	assert.Equal(t, "proj:sub", survivor.ResourceID)
}

func (suite *StoreTestSuite) testContentItemRoundTrip(t *testing.T) {
	s := suite.NewStore(t)
	defer func() { require.NoError(t, s.Close()) }()
	ctx := context.Background()

	require.NoError(t, s.SaveResource(ctx, sampleResource("res-1")))

	original := sampleItem("res-1", "data/file.bin")
	original.Metadata = map[string]string{"origin": "upload"}
	original.Size = 42
	require.NoError(t, s.SaveContentItem(ctx, original))

	loaded, err := s.FindContentItem(ctx, "res-1", "data/file.bin")
	require.NoError(t, err)
	assert.Equal(t, original.URI, loaded.URI)
	assert.Equal(t, original.Hash, loaded.Hash)
	assert.Equal(t, int64(42), loaded.Size)
	assert.Equal(t, 2, loaded.Depth)
	assert.Equal(t, "upload", loaded.Metadata["origin"])
}

func (suite *StoreTestSuite) testContentItemTagFilter(t *testing.T) {
	s := suite.NewStore(t)
	defer func() { require.NoError(t, s.Close()) }()
	ctx := context.Background()

	require.NoError(t, s.SaveResource(ctx, sampleResource("res-1")))
	require.NoError(t, s.SaveContentItem(ctx, sampleItem("res-1", "a.txt", "raw")))
	require.NoError(t, s.SaveContentItem(ctx, sampleItem("res-1", "b.txt", "derived")))
	require.NoError(t, s.SaveContentItem(ctx, sampleItem("res-1", "c.txt", "raw", "derived")))

	raw, err := s.ListContentItems(ctx, "res-1", "raw")
	require.NoError(t, err)
	require.Len(t, raw, 2)
	assert.Equal(t, "a.txt", raw[0].Path)
	assert.Equal(t, "c.txt", raw[1].Path)

	all, err := s.ListContentItems(ctx, "res-1", "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func (suite *StoreTestSuite) testContentItemDelete(t *testing.T) {
	s := suite.NewStore(t)
	defer func() { require.NoError(t, s.Close()) }()
	ctx := context.Background()

	require.NoError(t, s.SaveResource(ctx, sampleResource("res-1")))
	require.NoError(t, s.SaveContentItem(ctx, sampleItem("res-1", "a.txt")))

	require.NoError(t, s.DeleteContentItem(ctx, "res-1", "a.txt"))

	_, err := s.FindContentItem(ctx, "res-1", "a.txt")
	assert.True(t, repo.IsCode(err, repo.ErrNotFound))

	err = s.DeleteContentItem(ctx, "res-1", "a.txt")
	assert.True(t, repo.IsCode(err, repo.ErrNotFound))
}
