package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mockforge/mockforge/pkg/spec"
)

func op(method, path string) *spec.Operation {
	return &spec.Operation{ID: method + ":" + path, Method: method, Path: path}
}

func TestLookup_LiteralPath(t *testing.T) {
	t.Parallel()
	r := New()
	want := op("GET", "/users")
	require.NoError(t, r.Insert(want))

	got, params, err := r.Lookup("GET", "/users")
	require.NoError(t, err)
	assert.Same(t, want, got)
	assert.Empty(t, params)
}

func TestLookup_PlaceholderBinding(t *testing.T) {
	t.Parallel()
	r := New()
	require.NoError(t, r.Insert(op("GET", "/users/{id}/posts/{postId}")))

	got, params, err := r.Lookup("GET", "/users/42/posts/7")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, PathParams{"id": "42", "postId": "7"}, params)
}

func TestLookup_LiteralBeatsPlaceholder(t *testing.T) {
	t.Parallel()
	r := New()
	me := op("GET", "/users/me")
	byID := op("GET", "/users/{id}")
	require.NoError(t, r.Insert(byID))
	require.NoError(t, r.Insert(me))

	got, params, err := r.Lookup("GET", "/users/me")
	require.NoError(t, err)
	assert.Same(t, me, got)
	assert.Empty(t, params)

	got, params, err = r.Lookup("GET", "/users/99")
	require.NoError(t, err)
	assert.Same(t, byID, got)
	assert.Equal(t, "99", params["id"])
}

func TestLookup_BacktracksFromDeadLiteral(t *testing.T) {
	t.Parallel()
	r := New()
	// /users/me has no children; /users/{id}/posts does. A request for
	// /users/me/posts must fall back to the placeholder branch.
	require.NoError(t, r.Insert(op("GET", "/users/me")))
	byID := op("GET", "/users/{id}/posts")
	require.NoError(t, r.Insert(byID))

	got, params, err := r.Lookup("GET", "/users/me/posts")
	require.NoError(t, err)
	assert.Same(t, byID, got)
	assert.Equal(t, "me", params["id"])
}

func TestLookup_NotFound(t *testing.T) {
	t.Parallel()
	r := New()
	require.NoError(t, r.Insert(op("GET", "/users")))

	_, _, err := r.Lookup("GET", "/missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLookup_MethodNotAllowed(t *testing.T) {
	t.Parallel()
	r := New()
	require.NoError(t, r.Insert(op("GET", "/users")))
	require.NoError(t, r.Insert(op("POST", "/users")))

	_, _, err := r.Lookup("DELETE", "/users")
	var mna *MethodNotAllowedError
	require.ErrorAs(t, err, &mna)
	assert.Equal(t, []string{"GET", "POST"}, mna.Allow)
}

func TestInsert_ReplacesSameMethodPath(t *testing.T) {
	t.Parallel()
	r := New()
	first := op("GET", "/users")
	second := op("GET", "/users")
	require.NoError(t, r.Insert(first))
	require.NoError(t, r.Insert(second))

	got, _, err := r.Lookup("GET", "/users")
	require.NoError(t, err)
	assert.Same(t, second, got)
	assert.Equal(t, 1, r.Len())
}

func TestInsert_AmbiguousPlaceholdersRejected(t *testing.T) {
	t.Parallel()
	r := New()
	require.NoError(t, r.Insert(op("GET", "/users/{id}")))

	err := r.Insert(op("GET", "/users/{name}"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ambiguous")
}

func TestLookup_CaseInsensitiveMethod(t *testing.T) {
	t.Parallel()
	r := New()
	require.NoError(t, r.Insert(op("GET", "/users")))

	got, _, err := r.Lookup("get", "/users")
	require.NoError(t, err)
	require.NotNil(t, got)
}

func TestRoutes_SortedDescriptors(t *testing.T) {
	t.Parallel()
	r := New()
	require.NoError(t, r.Insert(op("POST", "/b")))
	require.NoError(t, r.Insert(op("GET", "/a")))
	require.NoError(t, r.Insert(op("GET", "/b")))

	routes := r.Routes()
	require.Len(t, routes, 3)
	assert.Equal(t, "/a", routes[0].Path)
	assert.Equal(t, "GET", routes[1].Method)
	assert.Equal(t, "POST", routes[2].Method)
}

func TestBuild_FromDocument(t *testing.T) {
	t.Parallel()
	doc := &spec.Document{Operations: []*spec.Operation{
		op("GET", "/users"),
		op("GET", "/users/{id}"),
	}}
	r, err := Build(doc)
	require.NoError(t, err)
	assert.Equal(t, 2, r.Len())

	doc.Operations = append(doc.Operations, op("GET", "/users/{uid}"))
	_, err = Build(doc)
	require.Error(t, err, "sibling placeholders with different names must be rejected")
}

func TestLookup_RootPath(t *testing.T) {
	t.Parallel()
	r := New()
	require.NoError(t, r.Insert(op("GET", "/")))

	got, _, err := r.Lookup("GET", "/")
	require.NoError(t, err)
	require.NotNil(t, got)
}
