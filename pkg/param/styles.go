package param

import (
	"net/url"
	"strings"

	"github.com/mockforge/mockforge/pkg/spec"
)

// decodeQuery decodes one query parameter according to its style. The
// second return value reports whether the parameter was present at all.
//
// Style matrix for arrays:
//
//	form + explode     ids=1&ids=2        repeated keys
//	form, no explode   ids=1,2            comma separated
//	spaceDelimited     ids=1%202          space separated single value
//	pipeDelimited      ids=1|2            pipe separated
//	deepObject         filter[a]=1        name[prop] keys reassembled
func decodeQuery(p *spec.Parameter, query url.Values) (any, bool) {
	if p.Style == spec.StyleDeepObject && isObject(p.Schema) {
		return decodeDeepObject(p, query)
	}

	values, present := query[p.Name]
	if !present || len(values) == 0 {
		return nil, false
	}

	if isArray(p.Schema) {
		items := decodeQueryArray(p, values)
		return coerceArray(items, p.Schema), true
	}

	return Coerce(values[0], p.Schema), true
}

func decodeQueryArray(p *spec.Parameter, values []string) []string {
	switch p.Style {
	case spec.StyleSpaceDelimited:
		return splitNonEmpty(values[0], " ")
	case spec.StylePipeDelimited:
		return splitNonEmpty(values[0], "|")
	case spec.StyleForm:
		if p.Explode {
			return values
		}
		return splitNonEmpty(values[0], ",")
	default:
		return values
	}
}

// decodeDeepObject reassembles keys of the shape name[prop] into an object.
func decodeDeepObject(p *spec.Parameter, query url.Values) (any, bool) {
	prefix := p.Name + "["
	obj := make(map[string]any)

	for key, values := range query {
		if !strings.HasPrefix(key, prefix) || !strings.HasSuffix(key, "]") || len(values) == 0 {
			continue
		}
		prop := key[len(prefix) : len(key)-1]
		if prop == "" {
			continue
		}
		var propSchema *spec.Schema
		if p.Schema != nil {
			propSchema = p.Schema.Properties[prop]
		}
		obj[prop] = Coerce(values[0], propSchema)
	}

	if len(obj) == 0 {
		return nil, false
	}
	return obj, true
}

// EncodeQuery serializes a decoded value back into query representation
// under the parameter's style. It is the inverse of decodeQuery on
// well-formed inputs and exists for round-trip verification.
func EncodeQuery(p *spec.Parameter, value any) url.Values {
	out := url.Values{}

	switch v := value.(type) {
	case []any:
		items := make([]string, len(v))
		for i, item := range v {
			items[i] = toString(item)
		}
		return EncodeQuery(p, items)
	case []string:
		switch p.Style {
		case spec.StyleSpaceDelimited:
			out.Set(p.Name, strings.Join(v, " "))
		case spec.StylePipeDelimited:
			out.Set(p.Name, strings.Join(v, "|"))
		case spec.StyleForm:
			if p.Explode {
				out[p.Name] = append([]string(nil), v...)
			} else {
				out.Set(p.Name, strings.Join(v, ","))
			}
		default:
			out[p.Name] = append([]string(nil), v...)
		}
	case map[string]any:
		for prop, pv := range v {
			out.Set(p.Name+"["+prop+"]", toString(pv))
		}
	default:
		out.Set(p.Name, toString(v))
	}

	return out
}
