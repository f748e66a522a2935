package synth

import (
	"strings"

	"dario.cat/mergo"

	"github.com/mockforge/mockforge/pkg/spec"
)

// Fixed values emitted by the deterministic generator for known formats.
const (
	fixedEmail    = "user@example.com"
	fixedUUID     = "123e4567-e89b-12d3-a456-426614174000"
	fixedDate     = "2024-01-15"
	fixedDateTime = "0001-01-01T00:00:00Z"
	fixedURI      = "https://example.com/resource"
	fixedIPv4     = "192.0.2.1"
	fixedIPv6     = "2001:db8::1"
	fixedHostname = "example.com"
)

// FromSchema produces the deterministic value for a schema:
//
//  1. the schema's example, when declared
//  2. the first enum value
//  3. the schema's default, when declared
//  4. a type-directed zero-ish value honouring constraints
//
// oneOf/anyOf synthesize from the first variant; allOf synthesizes every
// variant and deep-merges the results.
func FromSchema(s *spec.Schema) any {
	if s == nil {
		return nil
	}

	if s.Example != nil {
		return s.Example
	}
	if len(s.Enum) > 0 {
		return s.Enum[0]
	}
	if s.Default != nil {
		return s.Default
	}

	if len(s.AllOf) > 0 {
		return mergeAllOf(s.AllOf)
	}
	if len(s.OneOf) > 0 {
		return FromSchema(s.OneOf[0])
	}
	if len(s.AnyOf) > 0 {
		return FromSchema(s.AnyOf[0])
	}

	switch effectiveType(s) {
	case "object":
		obj := make(map[string]any, len(s.Properties))
		for _, name := range s.PropertyNames() {
			obj[name] = FromSchema(s.Properties[name])
		}
		return obj
	case "array":
		length := 1
		if s.MinItems != nil && *s.MinItems > 0 {
			length = *s.MinItems
		}
		arr := make([]any, length)
		for i := range arr {
			arr[i] = FromSchema(s.Items)
		}
		return arr
	case "string":
		return stringValue(s)
	case "integer":
		if s.Minimum != nil {
			return int64(*s.Minimum)
		}
		return int64(0)
	case "number":
		if s.Minimum != nil {
			return *s.Minimum
		}
		return float64(0)
	case "boolean":
		return false
	default:
		if s.Nullable {
			return nil
		}
		return map[string]any{}
	}
}

// effectiveType infers the type for schemas that omit it but declare
// properties or items.
func effectiveType(s *spec.Schema) string {
	if s.Type != "" {
		return s.Type
	}
	if len(s.Properties) > 0 {
		return "object"
	}
	if s.Items != nil {
		return "array"
	}
	return ""
}

func stringValue(s *spec.Schema) string {
	switch s.Format {
	case "email":
		return fixedEmail
	case "uuid":
		return fixedUUID
	case "date":
		return fixedDate
	case "date-time":
		return fixedDateTime
	case "uri", "url":
		return fixedURI
	case "ipv4":
		return fixedIPv4
	case "ipv6":
		return fixedIPv6
	case "hostname":
		return fixedHostname
	}

	if s.Pattern != "" {
		if lit, ok := literalFromPattern(s.Pattern); ok {
			return lit
		}
	}

	if s.MinLength != nil && *s.MinLength > 0 {
		return strings.Repeat("x", *s.MinLength)
	}
	return ""
}

// literalFromPattern extracts a matching string from trivially generable
// patterns: anchored literals with no metacharacters.
func literalFromPattern(pattern string) (string, bool) {
	lit := strings.TrimPrefix(pattern, "^")
	lit = strings.TrimSuffix(lit, "$")
	if lit == "" {
		return "", false
	}
	if strings.ContainsAny(lit, `\.+*?()|[]{}^$`) {
		return "", false
	}
	return lit, true
}

// mergeAllOf synthesizes every variant and deep-merges object results.
// Earlier variants win conflicts over non-empty values; a key whose earlier
// value is empty (0, "", false) takes the later variant's value. A non-object
// variant short-circuits to its own value; the loader rejects such specs.
func mergeAllOf(variants []*spec.Schema) any {
	merged := make(map[string]any)
	for _, variant := range variants {
		value := FromSchema(variant)
		obj, isObj := value.(map[string]any)
		if !isObj {
			return value
		}
		_ = mergo.Merge(&merged, obj)
	}
	return merged
}
