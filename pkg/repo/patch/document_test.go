package patch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/baserepo/pkg/repo"
)

func sampleDocument(t *testing.T) *Document {
	t.Helper()

	doc, err := FromResource(&repo.Resource{
		ID:       "res-1",
		State:    repo.StateVolatile,
		Title:    "Dataset",
		Creators: []string{"alice", "bob"},
		Created:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	})
	require.NoError(t, err)
	return doc
}

func TestDocument_Get(t *testing.T) {
	doc := sampleDocument(t)

	title, err := doc.Get("/title")
	require.NoError(t, err)
	assert.Equal(t, "Dataset", title)

	creator, err := doc.Get("/creators/1")
	require.NoError(t, err)
	assert.Equal(t, "bob", creator)

	_, err = doc.Get("/nope")
	assert.True(t, repo.IsCode(err, repo.ErrBadArgument))

	_, err = doc.Get("/creators/7")
	assert.True(t, repo.IsCode(err, repo.ErrBadArgument))

	_, err = doc.Get("no-leading-slash")
	assert.True(t, repo.IsCode(err, repo.ErrBadArgument))
}

func TestDocument_AddToArray(t *testing.T) {
	doc := sampleDocument(t)

	// "-" appends.
	require.NoError(t, doc.Add("/creators/-", "carol"))
	// Indexed add shifts.
	require.NoError(t, doc.Add("/creators/0", "zoe"))

	resource, err := doc.ToResource()
	require.NoError(t, err)
	assert.Equal(t, []string{"zoe", "alice", "bob", "carol"}, resource.Creators)
}

func TestDocument_RemoveFromArray(t *testing.T) {
	doc := sampleDocument(t)

	require.NoError(t, doc.Remove("/creators/0"))

	resource, err := doc.ToResource()
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, resource.Creators)
}

func TestDocument_Replace(t *testing.T) {
	doc := sampleDocument(t)

	require.NoError(t, doc.Replace("/title", "Renamed"))

	err := doc.Replace("/unknown", "x")
	assert.True(t, repo.IsCode(err, repo.ErrBadArgument))

	resource, err := doc.ToResource()
	require.NoError(t, err)
	assert.Equal(t, "Renamed", resource.Title)
}

func TestDocument_MoveAndCopy(t *testing.T) {
	doc := sampleDocument(t)

	require.NoError(t, doc.Copy("/description", "/title"))
	require.NoError(t, doc.Move("/publisher", "/title"))

	resource, err := doc.ToResource()
	require.NoError(t, err)
	assert.Equal(t, "Dataset", resource.Description)
	assert.Equal(t, "Dataset", resource.Publisher)
	assert.Empty(t, resource.Title)
}

func TestDocument_Test(t *testing.T) {
	doc := sampleDocument(t)

	assert.NoError(t, doc.Test("/title", "Dataset"))
	assert.NoError(t, doc.Test("/creators", []string{"alice", "bob"}))

	err := doc.Test("/title", "Other")
	assert.True(t, repo.IsCode(err, repo.ErrUnprocessable))
}

func TestDocument_WriteBack_EscapedTokens(t *testing.T) {
	doc := sampleDocument(t)

	// An array nested under a member whose name contains "/" exercises the
	// pointer rebuild after slice reallocation: the parent pointer must be
	// re-escaped or it resolves to the wrong member.
	require.NoError(t, doc.Add("/title", map[string]any{"a/b": []any{"first"}}))
	require.NoError(t, doc.Add("/title/a~1b/-", "second"))

	value, err := doc.Get("/title/a~1b/1")
	require.NoError(t, err)
	assert.Equal(t, "second", value)

	require.NoError(t, doc.Remove("/title/a~1b/0"))

	value, err = doc.Get("/title/a~1b/0")
	require.NoError(t, err)
	assert.Equal(t, "second", value)
}

func TestParsePointer_Escaping(t *testing.T) {
	tokens, err := parsePointer("/a~1b/c~0d")
	require.NoError(t, err)
	assert.Equal(t, []string{"a/b", "c~d"}, tokens)
}
