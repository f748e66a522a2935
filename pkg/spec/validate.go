package spec

import (
	"fmt"
)

// Validation error codes.
const (
	CodeInvalidRoot    = "INVALID_ROOT"
	CodeMissingVersion = "MISSING_VERSION"
	CodeInvalidVersion = "INVALID_VERSION"
	CodeMissingInfo    = "MISSING_INFO"
	CodeEmptyPaths     = "EMPTY_PATHS"
	CodeUnknownRef     = "UNKNOWN_REF"
	CodeCircularRef    = "CIRCULAR_REF"
	CodeAmbiguousPath  = "AMBIGUOUS_PATH"
	CodeParseFailure   = "PARSE_FAILURE"
)

// ValidationError is one structural or semantic problem found in a spec.
type ValidationError struct {
	// Path is a JSON pointer to the offending node.
	Path string `json:"path,omitempty"`

	// Code is a machine-readable error code.
	Code string `json:"code"`

	// Message is a human-readable description.
	Message string `json:"message"`

	// Suggestion describes how to fix the problem.
	Suggestion string `json:"suggestion,omitempty"`
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// ValidationReport aggregates the outcome of validating a specification.
type ValidationReport struct {
	Valid    bool               `json:"valid"`
	Errors   []*ValidationError `json:"errors,omitempty"`
	Warnings []string           `json:"warnings,omitempty"`
}

// Error implements the error interface so a failed report can be returned
// through error paths directly.
func (r *ValidationReport) Error() string {
	if len(r.Errors) == 0 {
		return "specification is invalid"
	}
	if len(r.Errors) == 1 {
		return fmt.Sprintf("specification invalid: %s", r.Errors[0].Error())
	}
	return fmt.Sprintf("specification invalid: %s (and %d more errors)", r.Errors[0].Error(), len(r.Errors)-1)
}

func (r *ValidationReport) add(err *ValidationError) {
	r.Valid = false
	r.Errors = append(r.Errors, err)
}

// ValidateStructure runs layered structural checks over a decoded OpenAPI
// root object. It never descends into schemas; that is the converter's job.
func ValidateStructure(root map[string]any, format Format) *ValidationReport {
	report := &ValidationReport{Valid: true}

	if root == nil {
		report.add(&ValidationError{
			Code:       CodeInvalidRoot,
			Message:    "specification root must be an object",
			Suggestion: "provide a JSON or YAML document with an object at the root",
		})
		return report
	}

	versionField := "openapi"
	versionValue := "3.0.3"
	if format == FormatOpenAPI20 {
		versionField = "swagger"
		versionValue = "2.0"
	}

	v, ok := root[versionField].(string)
	if !ok || v == "" {
		report.add(&ValidationError{
			Path:       "/" + versionField,
			Code:       CodeMissingVersion,
			Message:    fmt.Sprintf("missing %q field", versionField),
			Suggestion: fmt.Sprintf("add %q: %q to the root of the specification", versionField, versionValue),
		})
	} else if format != FormatOpenAPI20 && v[0] != '3' {
		report.add(&ValidationError{
			Path:       "/openapi",
			Code:       CodeInvalidVersion,
			Message:    fmt.Sprintf("invalid OpenAPI version %q, expected 3.0.x or 3.1.x", v),
			Suggestion: `use "openapi": "3.0.3" or "openapi": "3.1.0"`,
		})
	}

	info, ok := root["info"].(map[string]any)
	if !ok {
		report.add(&ValidationError{
			Path:       "/info",
			Code:       CodeMissingInfo,
			Message:    "missing info section",
			Suggestion: "add an info object with title and version",
		})
	} else {
		if t, ok := info["title"].(string); !ok || t == "" {
			report.add(&ValidationError{
				Path:       "/info/title",
				Code:       CodeMissingInfo,
				Message:    "info.title is required",
				Suggestion: "add a title to the info section",
			})
		}
		if v, ok := info["version"].(string); !ok || v == "" {
			report.add(&ValidationError{
				Path:       "/info/version",
				Code:       CodeMissingInfo,
				Message:    "info.version is required",
				Suggestion: "add a version to the info section",
			})
		}
	}

	paths, ok := root["paths"].(map[string]any)
	if !ok || len(paths) == 0 {
		report.add(&ValidationError{
			Path:       "/paths",
			Code:       CodeEmptyPaths,
			Message:    "specification declares no paths",
			Suggestion: "add at least one path to the paths section",
		})
	}

	return report
}
