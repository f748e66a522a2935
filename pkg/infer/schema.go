package infer

import (
	"encoding/json"
	"sort"
)

// induceSchema derives a JSON schema (as a generic document) from one
// observed value. Objects mark every present key required; the union merge
// relaxes that across samples.
func induceSchema(value any) map[string]any {
	switch v := value.(type) {
	case nil:
		return map[string]any{"type": "null"}
	case bool:
		return map[string]any{"type": "boolean"}
	case string:
		return map[string]any{"type": "string"}
	case json.Number:
		if _, err := v.Int64(); err == nil {
			return map[string]any{"type": "integer"}
		}
		return map[string]any{"type": "number"}
	case float64:
		if v == float64(int64(v)) {
			return map[string]any{"type": "integer"}
		}
		return map[string]any{"type": "number"}
	case []any:
		schema := map[string]any{"type": "array"}
		if len(v) > 0 {
			schema["items"] = induceSchema(v[0])
		}
		return schema
	case map[string]any:
		properties := make(map[string]any, len(v))
		required := make([]string, 0, len(v))
		for key, val := range v {
			properties[key] = induceSchema(val)
			required = append(required, key)
		}
		sort.Strings(required)
		return map[string]any{
			"type":       "object",
			"properties": properties,
			"required":   required,
		}
	default:
		return map[string]any{}
	}
}

// induceBody parses a JSON payload and induces its schema. Returns nil for
// empty or non-JSON payloads.
func induceBody(body []byte) map[string]any {
	if len(body) == 0 {
		return nil
	}
	var value any
	if err := json.Unmarshal(body, &value); err != nil {
		return nil
	}
	return induceSchema(value)
}

// mergeSchemas conservatively unions two induced schemas: properties are
// unioned, required is intersected, and a type conflict widens to an
// untyped schema.
func mergeSchemas(a, b map[string]any) map[string]any {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}

	at, _ := a["type"].(string)
	bt, _ := b["type"].(string)
	if at != bt {
		// integer is a subset of number.
		if (at == "integer" && bt == "number") || (at == "number" && bt == "integer") {
			return map[string]any{"type": "number"}
		}
		return map[string]any{}
	}

	out := map[string]any{"type": at}
	switch at {
	case "object":
		aProps, _ := a["properties"].(map[string]any)
		bProps, _ := b["properties"].(map[string]any)
		props := make(map[string]any, len(aProps)+len(bProps))
		for k, v := range aProps {
			props[k] = v
		}
		for k, v := range bProps {
			if existing, ok := props[k]; ok {
				props[k] = mergeSchemas(asSchema(existing), asSchema(v))
			} else {
				props[k] = v
			}
		}
		if len(props) > 0 {
			out["properties"] = props
		}
		if required := intersectRequired(a["required"], b["required"]); len(required) > 0 {
			out["required"] = required
		}
	case "array":
		items := mergeSchemas(asSchema(a["items"]), asSchema(b["items"]))
		if items != nil {
			out["items"] = items
		}
	}
	return out
}

func asSchema(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return nil
}

func intersectRequired(a, b any) []string {
	as := toStringSlice(a)
	bs := toStringSlice(b)
	inB := make(map[string]bool, len(bs))
	for _, s := range bs {
		inB[s] = true
	}
	var out []string
	for _, s := range as {
		if inB[s] {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

func toStringSlice(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
