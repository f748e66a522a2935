package param

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mockforge/mockforge/pkg/router"
	"github.com/mockforge/mockforge/pkg/spec"
)

func queryParam(name string, schema *spec.Schema, style spec.Style, explode bool) *spec.Parameter {
	return &spec.Parameter{Name: name, In: spec.InQuery, Schema: schema, Style: style, Explode: explode}
}

func intSchema() *spec.Schema    { return &spec.Schema{Type: "integer"} }
func stringSchema() *spec.Schema { return &spec.Schema{Type: "string"} }
func intArraySchema() *spec.Schema {
	return &spec.Schema{Type: "array", Items: intSchema()}
}

func TestExtract_PathParamCoercion(t *testing.T) {
	t.Parallel()
	op := &spec.Operation{
		Method: "GET",
		Path:   "/users/{id}",
		Parameters: []*spec.Parameter{
			{Name: "id", In: spec.InPath, Required: true, Schema: intSchema(), Style: spec.StyleSimple},
		},
	}
	r := httptest.NewRequest(http.MethodGet, "/users/42", nil)

	got := Extract(op, r, router.PathParams{"id": "42"})
	assert.Equal(t, int64(42), got.Path["id"])
}

func TestExtract_PathParamUnparseableLeftAsIs(t *testing.T) {
	t.Parallel()
	op := &spec.Operation{
		Method: "GET",
		Path:   "/users/{id}",
		Parameters: []*spec.Parameter{
			{Name: "id", In: spec.InPath, Required: true, Schema: intSchema(), Style: spec.StyleSimple},
		},
	}
	r := httptest.NewRequest(http.MethodGet, "/users/abc", nil)

	got := Extract(op, r, router.PathParams{"id": "abc"})
	// Lossless-or-leave: the validator rejects it downstream.
	assert.Equal(t, "abc", got.Path["id"])
}

func TestExtract_QueryStyles(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		param *spec.Parameter
		url   string
		want  any
	}{
		{
			name:  "form exploded repeated keys",
			param: queryParam("ids", intArraySchema(), spec.StyleForm, true),
			url:   "/x?ids=1&ids=2&ids=3",
			want:  []any{int64(1), int64(2), int64(3)},
		},
		{
			name:  "form no-explode comma separated",
			param: queryParam("ids", intArraySchema(), spec.StyleForm, false),
			url:   "/x?ids=1,2,3",
			want:  []any{int64(1), int64(2), int64(3)},
		},
		{
			name:  "spaceDelimited",
			param: queryParam("ids", intArraySchema(), spec.StyleSpaceDelimited, false),
			url:   "/x?ids=1%202%203",
			want:  []any{int64(1), int64(2), int64(3)},
		},
		{
			name:  "pipeDelimited",
			param: queryParam("ids", intArraySchema(), spec.StylePipeDelimited, false),
			url:   "/x?ids=1%7C2%7C3",
			want:  []any{int64(1), int64(2), int64(3)},
		},
		{
			name:  "scalar bool",
			param: queryParam("active", &spec.Schema{Type: "boolean"}, spec.StyleForm, true),
			url:   "/x?active=TRUE",
			want:  true,
		},
		{
			name:  "scalar number",
			param: queryParam("score", &spec.Schema{Type: "number"}, spec.StyleForm, true),
			url:   "/x?score=1.5",
			want:  1.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			op := &spec.Operation{Method: "GET", Path: "/x", Parameters: []*spec.Parameter{tt.param}}
			r := httptest.NewRequest(http.MethodGet, tt.url, nil)

			got := Extract(op, r, nil)
			assert.Equal(t, tt.want, got.Query[tt.param.Name])
		})
	}
}

func TestExtract_DeepObject(t *testing.T) {
	t.Parallel()
	schema := &spec.Schema{
		Type: "object",
		Properties: map[string]*spec.Schema{
			"age":  intSchema(),
			"name": stringSchema(),
		},
	}
	op := &spec.Operation{
		Method:     "GET",
		Path:       "/x",
		Parameters: []*spec.Parameter{queryParam("filter", schema, spec.StyleDeepObject, true)},
	}
	r := httptest.NewRequest(http.MethodGet, "/x?filter%5Bage%5D=30&filter%5Bname%5D=ada", nil)

	got := Extract(op, r, nil)
	assert.Equal(t, map[string]any{"age": int64(30), "name": "ada"}, got.Query["filter"])
}

func TestExtract_HeaderAndCookie(t *testing.T) {
	t.Parallel()
	op := &spec.Operation{
		Method: "GET",
		Path:   "/x",
		Parameters: []*spec.Parameter{
			{Name: "X-Trace-Id", In: spec.InHeader, Schema: stringSchema(), Style: spec.StyleSimple},
			{Name: "X-Tags", In: spec.InHeader, Schema: &spec.Schema{Type: "array", Items: stringSchema()}, Style: spec.StyleSimple},
			{Name: "session", In: spec.InCookie, Schema: stringSchema(), Style: spec.StyleForm},
		},
	}
	r := httptest.NewRequest(http.MethodGet, "/x", nil)
	r.Header.Set("X-Trace-Id", "t-123")
	r.Header.Set("X-Tags", "a,b")
	r.AddCookie(&http.Cookie{Name: "session", Value: "s-9"})

	got := Extract(op, r, nil)
	assert.Equal(t, "t-123", got.Header["X-Trace-Id"])
	assert.Equal(t, []any{"a", "b"}, got.Header["X-Tags"])
	assert.Equal(t, "s-9", got.Cookie["session"])
}

func TestExtract_AbsentOptionalSkipped(t *testing.T) {
	t.Parallel()
	op := &spec.Operation{
		Method:     "GET",
		Path:       "/x",
		Parameters: []*spec.Parameter{queryParam("limit", intSchema(), spec.StyleForm, true)},
	}
	r := httptest.NewRequest(http.MethodGet, "/x", nil)

	got := Extract(op, r, nil)
	_, present := got.Query["limit"]
	assert.False(t, present)
}

func TestEncodeQuery_RoundTrip(t *testing.T) {
	t.Parallel()

	params := []*spec.Parameter{
		queryParam("ids", intArraySchema(), spec.StyleForm, true),
		queryParam("ids", intArraySchema(), spec.StyleForm, false),
		queryParam("ids", intArraySchema(), spec.StyleSpaceDelimited, false),
		queryParam("ids", intArraySchema(), spec.StylePipeDelimited, false),
	}

	for _, p := range params {
		t.Run(string(p.Style), func(t *testing.T) {
			t.Parallel()
			original := EncodeQuery(p, []string{"1", "2", "3"})

			decoded, present := decodeQuery(p, original)
			require.True(t, present)

			reencoded := EncodeQuery(p, decoded)
			assert.Equal(t, original, reencoded, "decode then encode must be the identity")
		})
	}
}
