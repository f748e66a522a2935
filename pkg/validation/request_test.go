package validation

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mockforge/mockforge/pkg/param"
	"github.com/mockforge/mockforge/pkg/router"
	"github.com/mockforge/mockforge/pkg/spec"
)

func extractFor(op *spec.Operation, r *http.Request, pathParams router.PathParams) *param.Extracted {
	return param.Extract(op, r, pathParams)
}

func TestValidateRequest_AggregateFormatErrors(t *testing.T) {
	t.Parallel()
	op := &spec.Operation{
		Method: "POST",
		Path:   "/items",
		Body: &spec.RequestBody{
			Required: true,
			Schema: &spec.Schema{
				Type: "object",
				Properties: map[string]*spec.Schema{
					"email":   {Type: "string", Format: "email"},
					"website": {Type: "string", Format: "uri"},
				},
				Required: []string{"email", "website"},
			},
		},
	}

	body := `{"email":"not-an-email","website":"not a url"}`
	r := httptest.NewRequest(http.MethodPost, "/items", strings.NewReader(body))
	res := ValidateRequest(op, extractFor(op, r, nil), []byte(body), ModeAggregate)

	require.False(t, res.Valid)
	require.Len(t, res.Errors, 2)

	byPath := map[string]string{}
	for _, e := range res.Errors {
		byPath[e.Path] = e.Code
	}
	assert.Equal(t, "FORMAT_EMAIL", byPath["body.email"])
	assert.Equal(t, "FORMAT_URI", byPath["body.website"])
}

func TestValidateRequest_MissingRequiredParam(t *testing.T) {
	t.Parallel()
	op := &spec.Operation{
		Method: "GET",
		Path:   "/items",
		Parameters: []*spec.Parameter{
			{Name: "limit", In: spec.InQuery, Required: true, Schema: &spec.Schema{Type: "integer"}, Style: spec.StyleForm, Explode: true},
		},
	}
	r := httptest.NewRequest(http.MethodGet, "/items", nil)

	res := ValidateRequest(op, extractFor(op, r, nil), nil, ModeAggregate)
	require.False(t, res.Valid)
	assert.Equal(t, CodeRequired, res.Errors[0].Code)
	assert.Equal(t, "query.limit", res.Errors[0].Path)
}

func TestValidateRequest_OptionalParamSkipped(t *testing.T) {
	t.Parallel()
	op := &spec.Operation{
		Method: "GET",
		Path:   "/items",
		Parameters: []*spec.Parameter{
			{Name: "limit", In: spec.InQuery, Schema: &spec.Schema{Type: "integer"}, Style: spec.StyleForm, Explode: true},
		},
	}
	r := httptest.NewRequest(http.MethodGet, "/items", nil)

	res := ValidateRequest(op, extractFor(op, r, nil), nil, ModeAggregate)
	assert.True(t, res.Valid)
}

func TestValidateRequest_CoercedPathParam(t *testing.T) {
	t.Parallel()
	op := &spec.Operation{
		Method: "GET",
		Path:   "/users/{id}",
		Parameters: []*spec.Parameter{
			{Name: "id", In: spec.InPath, Required: true, Schema: &spec.Schema{Type: "integer"}, Style: spec.StyleSimple},
		},
	}

	r := httptest.NewRequest(http.MethodGet, "/users/42", nil)
	res := ValidateRequest(op, extractFor(op, r, router.PathParams{"id": "42"}), nil, ModeAggregate)
	assert.True(t, res.Valid)

	r = httptest.NewRequest(http.MethodGet, "/users/abc", nil)
	res = ValidateRequest(op, extractFor(op, r, router.PathParams{"id": "abc"}), nil, ModeAggregate)
	require.False(t, res.Valid)
	assert.Equal(t, CodeType, res.Errors[0].Code)
}

func TestValidateRequest_BodyRequired(t *testing.T) {
	t.Parallel()
	op := &spec.Operation{
		Method: "POST",
		Path:   "/items",
		Body:   &spec.RequestBody{Required: true, Schema: &spec.Schema{Type: "object"}},
	}
	r := httptest.NewRequest(http.MethodPost, "/items", nil)

	res := ValidateRequest(op, extractFor(op, r, nil), nil, ModeAggregate)
	require.False(t, res.Valid)
	assert.Equal(t, CodeBodyRequired, res.Errors[0].Code)
}

func TestValidateRequest_OptionalBodyAbsentOK(t *testing.T) {
	t.Parallel()
	op := &spec.Operation{
		Method: "POST",
		Path:   "/items",
		Body:   &spec.RequestBody{Schema: &spec.Schema{Type: "object"}},
	}
	r := httptest.NewRequest(http.MethodPost, "/items", nil)

	res := ValidateRequest(op, extractFor(op, r, nil), nil, ModeAggregate)
	assert.True(t, res.Valid)
}

func TestValidateRequest_MalformedJSONBody(t *testing.T) {
	t.Parallel()
	op := &spec.Operation{
		Method: "POST",
		Path:   "/items",
		Body:   &spec.RequestBody{Required: true, Schema: &spec.Schema{Type: "object"}},
	}
	body := `{"broken":`
	r := httptest.NewRequest(http.MethodPost, "/items", strings.NewReader(body))

	res := ValidateRequest(op, extractFor(op, r, nil), []byte(body), ModeAggregate)
	require.False(t, res.Valid)
	assert.Equal(t, CodeInvalidJSON, res.Errors[0].Code)
}
