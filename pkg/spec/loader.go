package spec

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/getkin/kin-openapi/openapi2"
	"github.com/getkin/kin-openapi/openapi2conv"
	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"
)

// Load parses and validates a specification from raw bytes. The hint is an
// optional file name used for format detection. On success the report is
// valid and the document is non-nil; on failure the document is nil and the
// report carries every error found.
func Load(data []byte, hint string) (*Document, *ValidationReport) {
	format, err := DetectFormat(data, hint)
	if err != nil {
		return nil, &ValidationReport{
			Valid: false,
			Errors: []*ValidationError{{
				Code:       CodeParseFailure,
				Message:    err.Error(),
				Suggestion: "provide an OpenAPI 2.0 or 3.x document in JSON or YAML",
			}},
		}
	}

	if !format.IsOpenAPI() {
		return nil, &ValidationReport{
			Valid: false,
			Errors: []*ValidationError{{
				Code:    CodeParseFailure,
				Message: fmt.Sprintf("%s specifications are handled by a protocol collaborator, not the HTTP core", format.DisplayName()),
			}},
		}
	}

	root, err := decodeRoot(data)
	if err != nil {
		return nil, &ValidationReport{
			Valid: false,
			Errors: []*ValidationError{{
				Code:    CodeParseFailure,
				Message: fmt.Sprintf("failed to decode specification: %v", err),
			}},
		}
	}

	if report := ValidateStructure(root, format); !report.Valid {
		return nil, report
	}

	var doc3 *openapi3.T
	if format == FormatOpenAPI20 {
		doc3, err = loadV2(data, root)
	} else {
		doc3, err = loadV3(data)
	}
	if err != nil {
		return nil, &ValidationReport{
			Valid: false,
			Errors: []*ValidationError{{
				Code:    refErrorCode(err),
				Message: fmt.Sprintf("failed to load specification: %v", err),
			}},
		}
	}

	doc, convErr := convertDocument(doc3, format)
	if convErr != nil {
		return nil, &ValidationReport{Valid: false, Errors: []*ValidationError{convErr}}
	}
	return doc, &ValidationReport{Valid: true}
}

// LoadFromFile reads and loads a specification from disk. The returned error
// is only for I/O failures; spec problems are reported via the report.
func LoadFromFile(path string) (*Document, *ValidationReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read spec file %s: %w", path, err)
	}
	doc, report := Load(data, path)
	return doc, report, nil
}

// decodeRoot decodes the document root into a generic map for structural
// validation, accepting JSON or YAML.
func decodeRoot(data []byte) (map[string]any, error) {
	trimmed := strings.TrimSpace(string(data))
	var root map[string]any
	if strings.HasPrefix(trimmed, "{") {
		if err := json.Unmarshal(data, &root); err != nil {
			return nil, err
		}
		return root, nil
	}
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	return root, nil
}

// loadV2 decodes an OpenAPI 2.0 document and upconverts it to 3.0.
func loadV2(data []byte, root map[string]any) (*openapi3.T, error) {
	// openapi2.T only unmarshals JSON; normalize YAML input through the
	// already-decoded root map.
	jsonData := data
	if !strings.HasPrefix(strings.TrimSpace(string(data)), "{") {
		var err error
		jsonData, err = json.Marshal(root)
		if err != nil {
			return nil, fmt.Errorf("failed to normalize YAML document: %w", err)
		}
	}

	var doc2 openapi2.T
	if err := json.Unmarshal(jsonData, &doc2); err != nil {
		return nil, fmt.Errorf("invalid OpenAPI 2.0 document: %w", err)
	}

	doc3, err := openapi2conv.ToV3(&doc2)
	if err != nil {
		return nil, fmt.Errorf("failed to convert OpenAPI 2.0 to 3.0: %w", err)
	}
	return doc3, nil
}

// loadV3 loads an OpenAPI 3.x document, resolving internal references.
func loadV3(data []byte) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = false

	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, err
	}
	if err := loader.ResolveRefsIn(doc, nil); err != nil {
		return nil, err
	}
	if err := doc.Validate(context.Background(), openapi3.DisableExamplesValidation(), openapi3.DisableSchemaDefaultsValidation()); err != nil {
		return nil, fmt.Errorf("invalid OpenAPI document: %w", err)
	}
	return doc, nil
}

// refErrorCode distinguishes unresolved-reference failures from plain parse
// failures for the error report.
func refErrorCode(err error) string {
	msg := err.Error()
	if strings.Contains(msg, "$ref") || strings.Contains(msg, "reference") {
		return CodeUnknownRef
	}
	return CodeParseFailure
}
