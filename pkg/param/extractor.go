// Package param decodes request parameters with style-aware rules and
// coerces them toward their schema types. Coercion is lossless-or-leave:
// a value that cannot be parsed keeps its original string form, and the
// validator is always the gate.
package param

import (
	"net/http"
	"strings"

	"github.com/mockforge/mockforge/pkg/router"
	"github.com/mockforge/mockforge/pkg/spec"
)

// Extracted holds the typed parameter maps for one request, keyed by name
// within each location.
type Extracted struct {
	Path   map[string]any
	Query  map[string]any
	Header map[string]any
	Cookie map[string]any
}

// newExtracted allocates all four location maps.
func newExtracted() *Extracted {
	return &Extracted{
		Path:   make(map[string]any),
		Query:  make(map[string]any),
		Header: make(map[string]any),
		Cookie: make(map[string]any),
	}
}

// ByLocation returns the map for the given location.
func (e *Extracted) ByLocation(in spec.Location) map[string]any {
	switch in {
	case spec.InPath:
		return e.Path
	case spec.InQuery:
		return e.Query
	case spec.InHeader:
		return e.Header
	case spec.InCookie:
		return e.Cookie
	default:
		return nil
	}
}

// Extract decodes every declared parameter of the operation from the request.
// Parameters absent from the request are simply not present in the result;
// required-ness is the validator's concern.
func Extract(op *spec.Operation, r *http.Request, pathParams router.PathParams) *Extracted {
	out := newExtracted()
	query := r.URL.Query()

	for _, p := range op.Parameters {
		switch p.In {
		case spec.InPath:
			raw, ok := pathParams[p.Name]
			if !ok {
				continue
			}
			out.Path[p.Name] = Coerce(decodeSimple(raw, p), p.Schema)

		case spec.InQuery:
			value, ok := decodeQuery(p, query)
			if !ok {
				continue
			}
			out.Query[p.Name] = value

		case spec.InHeader:
			raw := r.Header.Get(p.Name)
			if raw == "" {
				continue
			}
			out.Header[p.Name] = Coerce(decodeSimple(raw, p), p.Schema)

		case spec.InCookie:
			cookie, err := r.Cookie(p.Name)
			if err != nil || cookie.Value == "" {
				continue
			}
			out.Cookie[p.Name] = Coerce(decodeForm(cookie.Value, p), p.Schema)
		}
	}

	return out
}

// decodeSimple handles the "simple" style used by path and header params:
// arrays are comma separated, scalars pass through.
func decodeSimple(raw string, p *spec.Parameter) any {
	if isArray(p.Schema) {
		return splitNonEmpty(raw, ",")
	}
	return raw
}

// decodeForm handles the no-explode "form" style used by cookies.
func decodeForm(raw string, p *spec.Parameter) any {
	if isArray(p.Schema) {
		return splitNonEmpty(raw, ",")
	}
	return raw
}

func isArray(s *spec.Schema) bool {
	return s != nil && s.Type == "array"
}

func isObject(s *spec.Schema) bool {
	return s != nil && s.Type == "object"
}

func splitNonEmpty(raw, sep string) []string {
	if raw == "" {
		return nil
	}
	return strings.Split(raw, sep)
}
