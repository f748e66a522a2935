package validation

import (
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"

	"github.com/mockforge/mockforge/pkg/spec"
)

// ValidateValue validates a single value against a schema, appending any
// violations to the result at the given path. It reports whether validation
// should continue (false only in fail-fast mode after a violation).
func ValidateValue(s *spec.Schema, value any, path string, res *Result, mode Mode) bool {
	if s == nil {
		return true
	}

	if value == nil {
		if s.Nullable {
			return true
		}
		if s.Type != "" {
			return res.add(mode, &FieldError{
				Path:    path,
				Code:    CodeType,
				Message: fmt.Sprintf("expected %s, got null", s.Type),
			})
		}
		return true
	}

	// Composites first: they wrap the whole value.
	if len(s.AllOf) > 0 {
		for _, sub := range s.AllOf {
			if !ValidateValue(sub, value, path, res, mode) {
				return false
			}
		}
	}
	if len(s.OneOf) > 0 {
		if !validateOneOf(s.OneOf, value, path, res, mode) {
			return false
		}
	}
	if len(s.AnyOf) > 0 {
		if !validateAnyOf(s.AnyOf, value, path, res, mode) {
			return false
		}
	}

	if len(s.Enum) > 0 && !enumContains(s.Enum, value) {
		if !res.add(mode, &FieldError{
			Path:       path,
			Code:       CodeEnum,
			Message:    fmt.Sprintf("value is not one of the %d allowed values", len(s.Enum)),
			Suggestion: fmt.Sprintf("use one of: %s", enumPreview(s.Enum)),
		}) {
			return false
		}
	}

	switch s.Type {
	case "object":
		return validateObject(s, value, path, res, mode)
	case "array":
		return validateArray(s, value, path, res, mode)
	case "string":
		return validateString(s, value, path, res, mode)
	case "integer", "number":
		return validateNumber(s, value, path, res, mode)
	case "boolean":
		if _, ok := value.(bool); !ok {
			return res.add(mode, typeError(path, "boolean", value))
		}
	}
	return true
}

// validateOneOf requires exactly one matching subschema.
func validateOneOf(subs []*spec.Schema, value any, path string, res *Result, mode Mode) bool {
	matches := 0
	for _, sub := range subs {
		probe := &Result{Valid: true}
		ValidateValue(sub, value, path, probe, ModeAggregate)
		if probe.Valid {
			matches++
		}
	}
	switch {
	case matches == 0:
		return res.add(mode, &FieldError{
			Path:    path,
			Code:    CodeOneOfNoMatch,
			Message: fmt.Sprintf("value matches none of the %d oneOf variants", len(subs)),
		})
	case matches > 1:
		return res.add(mode, &FieldError{
			Path:       path,
			Code:       CodeOneOfMultipleMatch,
			Message:    fmt.Sprintf("value matches %d oneOf variants, exactly one required", matches),
			Suggestion: "remove fields so the value is unambiguous",
		})
	}
	return true
}

func validateAnyOf(subs []*spec.Schema, value any, path string, res *Result, mode Mode) bool {
	for _, sub := range subs {
		probe := &Result{Valid: true}
		ValidateValue(sub, value, path, probe, ModeAggregate)
		if probe.Valid {
			return true
		}
	}
	return res.add(mode, &FieldError{
		Path:    path,
		Code:    CodeAnyOfNoMatch,
		Message: fmt.Sprintf("value matches none of the %d anyOf variants", len(subs)),
	})
}

func validateObject(s *spec.Schema, value any, path string, res *Result, mode Mode) bool {
	obj, isMap := value.(map[string]any)
	if !isMap {
		return res.add(mode, typeError(path, "object", value))
	}

	for _, name := range s.Required {
		if _, present := obj[name]; !present {
			if !res.add(mode, &FieldError{
				Path:    joinPath(path, name),
				Code:    CodeRequired,
				Message: fmt.Sprintf("required property %q is missing", name),
			}) {
				return false
			}
		}
	}

	for name, prop := range s.Properties {
		v, present := obj[name]
		if !present {
			continue
		}
		if !ValidateValue(prop, v, joinPath(path, name), res, mode) {
			return false
		}
	}
	return true
}

func validateArray(s *spec.Schema, value any, path string, res *Result, mode Mode) bool {
	arr, isSlice := value.([]any)
	if !isSlice {
		return res.add(mode, typeError(path, "array", value))
	}

	if s.MinItems != nil && len(arr) < *s.MinItems {
		if !res.add(mode, &FieldError{
			Path:    path,
			Code:    CodeMinItems,
			Message: fmt.Sprintf("array has %d items, minimum is %d", len(arr), *s.MinItems),
		}) {
			return false
		}
	}
	if s.MaxItems != nil && len(arr) > *s.MaxItems {
		if !res.add(mode, &FieldError{
			Path:    path,
			Code:    CodeMaxItems,
			Message: fmt.Sprintf("array has %d items, maximum is %d", len(arr), *s.MaxItems),
		}) {
			return false
		}
	}

	for i, item := range arr {
		if !ValidateValue(s.Items, item, fmt.Sprintf("%s[%d]", path, i), res, mode) {
			return false
		}
	}
	return true
}

func validateString(s *spec.Schema, value any, path string, res *Result, mode Mode) bool {
	str, isString := value.(string)
	if !isString {
		return res.add(mode, typeError(path, "string", value))
	}

	if s.MinLength != nil && len(str) < *s.MinLength {
		if !res.add(mode, &FieldError{
			Path:    path,
			Code:    CodeMinLength,
			Message: fmt.Sprintf("string length %d is below minimum %d", len(str), *s.MinLength),
		}) {
			return false
		}
	}
	if s.MaxLength != nil && len(str) > *s.MaxLength {
		if !res.add(mode, &FieldError{
			Path:    path,
			Code:    CodeMaxLength,
			Message: fmt.Sprintf("string length %d exceeds maximum %d", len(str), *s.MaxLength),
		}) {
			return false
		}
	}
	if s.Pattern != "" {
		re, err := regexp.Compile(s.Pattern)
		if err == nil && !re.MatchString(str) {
			if !res.add(mode, &FieldError{
				Path:    path,
				Code:    CodePattern,
				Message: fmt.Sprintf("string does not match pattern %q", s.Pattern),
			}) {
				return false
			}
		}
	}
	if s.Format != "" && !ValidateFormat(s.Format, str) {
		if !res.add(mode, &FieldError{
			Path:       path,
			Code:       FormatCode(s.Format),
			Message:    fmt.Sprintf("value is not a valid %s", s.Format),
			Suggestion: formatSuggestion(s.Format),
		}) {
			return false
		}
	}
	return true
}

func validateNumber(s *spec.Schema, value any, path string, res *Result, mode Mode) bool {
	num, isNum := numericValue(value)
	if !isNum {
		return res.add(mode, typeError(path, s.Type, value))
	}
	if s.Type == "integer" && num != float64(int64(num)) {
		return res.add(mode, typeError(path, "integer", value))
	}

	if s.Minimum != nil && num < *s.Minimum {
		if !res.add(mode, &FieldError{
			Path:    path,
			Code:    CodeMinimum,
			Message: fmt.Sprintf("value %v is below minimum %v", num, *s.Minimum),
		}) {
			return false
		}
	}
	if s.Maximum != nil && num > *s.Maximum {
		if !res.add(mode, &FieldError{
			Path:    path,
			Code:    CodeMaximum,
			Message: fmt.Sprintf("value %v exceeds maximum %v", num, *s.Maximum),
		}) {
			return false
		}
	}
	return true
}

// numericValue widens every numeric representation the decoder or the
// coercion layer may hand over.
func numericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func enumContains(enum []any, value any) bool {
	for _, e := range enum {
		if reflect.DeepEqual(e, value) {
			return true
		}
		// 1 and 1.0 are the same JSON number regardless of decoder type.
		if ev, ok := numericValue(e); ok {
			if vv, ok := numericValue(value); ok && ev == vv {
				return true
			}
		}
	}
	return false
}

func enumPreview(enum []any) string {
	max := 3
	if len(enum) < max {
		max = len(enum)
	}
	out := ""
	for i := 0; i < max; i++ {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%v", enum[i])
	}
	if len(enum) > max {
		out += ", ..."
	}
	return out
}

func typeError(path, want string, got any) *FieldError {
	return &FieldError{
		Path:    path,
		Code:    CodeType,
		Message: fmt.Sprintf("expected %s, got %s", want, jsonTypeName(got)),
	}
}

func jsonTypeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case string:
		return "string"
	case float64, int64, int, json.Number:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func joinPath(base, field string) string {
	if base == "" {
		return field
	}
	return base + "." + field
}

func formatSuggestion(format string) string {
	switch format {
	case "email":
		return "use an address like user@example.com"
	case "uri":
		return "use an absolute URI like https://example.com/path"
	case "uuid":
		return "use a UUID like 123e4567-e89b-12d3-a456-426614174000"
	case "date":
		return "use YYYY-MM-DD"
	case "date-time":
		return "use an RFC 3339 timestamp like 2024-01-15T10:30:00Z"
	default:
		return ""
	}
}
