package validation

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/mockforge/mockforge/pkg/param"
	"github.com/mockforge/mockforge/pkg/spec"
)

// ValidateRequest checks every declared parameter and the request body of an
// operation. Parameters come pre-coerced from the extractor; body is the raw
// request payload (nil when absent).
func ValidateRequest(op *spec.Operation, extracted *param.Extracted, body []byte, mode Mode) *Result {
	res := ok()

	for _, p := range op.Parameters {
		values := extracted.ByLocation(p.In)
		value, present := values[p.Name]

		if !present {
			if p.Required {
				if !res.add(mode, &FieldError{
					Path:    joinPath(string(p.In), p.Name),
					Code:    CodeRequired,
					Message: fmt.Sprintf("required %s parameter %q is missing", p.In, p.Name),
				}) {
					return res
				}
			}
			continue
		}

		if !ValidateValue(p.Schema, value, joinPath(string(p.In), p.Name), res, mode) {
			return res
		}
	}

	if op.Body != nil {
		if !validateBody(op.Body, body, res, mode) {
			return res
		}
	}

	return res
}

func validateBody(rb *spec.RequestBody, body []byte, res *Result, mode Mode) bool {
	if len(bytes.TrimSpace(body)) == 0 {
		if rb.Required {
			return res.add(mode, &FieldError{
				Path:    "body",
				Code:    CodeBodyRequired,
				Message: "request body is required",
			})
		}
		return true
	}

	var value any
	if err := json.Unmarshal(body, &value); err != nil {
		return res.add(mode, &FieldError{
			Path:       "body",
			Code:       CodeInvalidJSON,
			Message:    fmt.Sprintf("request body is not valid JSON: %v", err),
			Suggestion: "send a well-formed JSON document",
		})
	}

	return ValidateValue(rb.Schema, value, "body", res, mode)
}

// ValidateAgainstSchema validates a standalone JSON value against a schema
// in aggregate mode. The synthesizer uses it to check its own output.
func ValidateAgainstSchema(s *spec.Schema, value any) *Result {
	res := ok()
	ValidateValue(s, value, "", res, ModeAggregate)
	return res
}
