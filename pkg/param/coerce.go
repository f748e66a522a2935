package param

import (
	"strconv"
	"strings"

	"github.com/mockforge/mockforge/pkg/spec"
)

// Coerce converts a decoded string toward the schema's declared type.
// Unparseable values are returned unchanged so the validator can report
// them; data is never dropped.
func Coerce(value any, schema *spec.Schema) any {
	if schema == nil {
		return value
	}

	switch v := value.(type) {
	case string:
		return coerceString(v, schema)
	case []string:
		return coerceArray(v, schema)
	default:
		return value
	}
}

func coerceString(raw string, schema *spec.Schema) any {
	switch schema.Type {
	case "integer":
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return n
		}
	case "number":
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f
		}
	case "boolean":
		switch strings.ToLower(raw) {
		case "true":
			return true
		case "false":
			return false
		}
	case "array":
		// A lone string for an array schema is a single-item array.
		return coerceArray([]string{raw}, schema)
	}
	return raw
}

func coerceArray(items []string, schema *spec.Schema) any {
	var itemSchema *spec.Schema
	if schema != nil {
		itemSchema = schema.Items
	}
	out := make([]any, len(items))
	for i, item := range items {
		out[i] = Coerce(item, itemSchema)
	}
	return out
}

// toString renders a coerced value back to its wire form.
func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}
