package fixture

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixturesYAML = `
- match:
    method: GET
    path: /users/{id}
    predicate: path.id == "42"
  response:
    status: 200
    headers:
      X-Fixture: "yes"
    body:
      id: 42
      name: "The Answer"
- match:
    method: GET
    path: /users/{id}
  response:
    status: 200
    body:
      id: 0
- match:
    method: POST
    path: /orders
    bodyJsonPath:
      "$.item.sku": "A-100"
  response:
    status: 201
    body:
      accepted: true
`

func TestLoad_YAML(t *testing.T) {
	t.Parallel()
	set, err := Load([]byte(fixturesYAML))
	require.NoError(t, err)
	assert.Equal(t, 3, set.Len())
}

func TestLoad_JSON(t *testing.T) {
	t.Parallel()
	data := `[{"match":{"method":"GET","path":"/ping"},"response":{"status":204}}]`
	set, err := Load([]byte(data))
	require.NoError(t, err)
	assert.Equal(t, 1, set.Len())
}

func TestLoad_SchemaViolations(t *testing.T) {
	t.Parallel()

	// Missing response.
	_, err := Load([]byte(`[{"match":{"method":"GET","path":"/x"}}]`))
	assert.Error(t, err)

	// Path must start with a slash.
	_, err = Load([]byte(`[{"match":{"method":"GET","path":"x"},"response":{"status":200}}]`))
	assert.Error(t, err)

	// Status out of range.
	_, err = Load([]byte(`[{"match":{"method":"GET","path":"/x"},"response":{"status":99}}]`))
	assert.Error(t, err)
}

func TestLoad_BadPredicateRejected(t *testing.T) {
	t.Parallel()
	data := `[{"match":{"method":"GET","path":"/x","predicate":"((("},"response":{"status":200}}]`
	_, err := Load([]byte(data))
	assert.Error(t, err)
}

func TestMatch_PredicateSelectsFixture(t *testing.T) {
	t.Parallel()
	set, err := Load([]byte(fixturesYAML))
	require.NoError(t, err)

	// id=42 hits the predicate fixture.
	f := set.Match("GET", "/users/{id}", &Params{Path: map[string]any{"id": "42"}}, nil)
	require.NotNil(t, f)
	assert.Equal(t, "yes", f.Response.Headers["X-Fixture"])

	// Any other id falls through to the unconditioned fixture.
	f = set.Match("GET", "/users/{id}", &Params{Path: map[string]any{"id": "7"}}, nil)
	require.NotNil(t, f)
	assert.Empty(t, f.Response.Headers)

	// Unknown template: no fixture.
	assert.Nil(t, set.Match("GET", "/missing", &Params{}, nil))
}

func TestMatch_BodyJSONPath(t *testing.T) {
	t.Parallel()
	set, err := Load([]byte(fixturesYAML))
	require.NoError(t, err)

	body := []byte(`{"item": {"sku": "A-100", "qty": 2}}`)
	f := set.Match("POST", "/orders", &Params{}, body)
	require.NotNil(t, f)
	assert.Equal(t, 201, f.Response.Status)

	assert.Nil(t, set.Match("POST", "/orders", &Params{}, []byte(`{"item": {"sku": "B-200"}}`)))
	assert.Nil(t, set.Match("POST", "/orders", &Params{}, nil))
}

func TestMatch_MethodCaseInsensitive(t *testing.T) {
	t.Parallel()
	set, err := Load([]byte(`[{"match":{"method":"get","path":"/ping"},"response":{"status":204}}]`))
	require.NoError(t, err)
	assert.NotNil(t, set.Match("GET", "/ping", &Params{}, nil))
}

func TestLoadDir_MergesFiles(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"),
		[]byte("- match: {method: GET, path: /a}\n  response: {status: 200}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.json"),
		[]byte(`[{"match":{"method":"GET","path":"/b"},"response":{"status":200}}]`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignore me"), 0o644))

	set, err := LoadDir(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, set.Len())
}

func TestLoadDir_MissingDirEmpty(t *testing.T) {
	t.Parallel()
	set, err := LoadDir(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Equal(t, 0, set.Len())
}

func TestWatcher_RepublishesOnChange(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "f.yaml"),
		[]byte("- match: {method: GET, path: /v1}\n  response: {status: 200}\n"), 0o644))

	w, err := NewWatcher(dir, nil)
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	require.Equal(t, 1, w.Current().Len())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "f.yaml"),
		[]byte("- match: {method: GET, path: /v1}\n  response: {status: 200}\n- match: {method: GET, path: /v2}\n  response: {status: 200}\n"), 0o644))

	require.Eventually(t, func() bool {
		return w.Current().Len() == 2
	}, 3*time.Second, 25*time.Millisecond, "watcher should republish the new set")
}

func TestWatcher_KeepsOldSetOnBrokenEdit(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "f.yaml")
	require.NoError(t, os.WriteFile(path,
		[]byte("- match: {method: GET, path: /v1}\n  response: {status: 200}\n"), 0o644))

	w, err := NewWatcher(dir, nil)
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	require.NoError(t, os.WriteFile(path, []byte("::: not yaml :::"), 0o644))

	// Give the debounce window time to fire; the old set must survive.
	time.Sleep(600 * time.Millisecond)
	assert.Equal(t, 1, w.Current().Len())
}
