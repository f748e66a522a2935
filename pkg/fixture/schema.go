package fixture

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// fixtureSchema is the JSON Schema every fixture document must satisfy
// before records are compiled.
const fixtureSchema = `{
  "$schema": "https://json-schema.org/draft-07/schema#",
  "type": "array",
  "items": {
    "type": "object",
    "required": ["match", "response"],
    "additionalProperties": false,
    "properties": {
      "match": {
        "type": "object",
        "required": ["method", "path"],
        "additionalProperties": false,
        "properties": {
          "method": {"type": "string", "minLength": 1},
          "path": {"type": "string", "pattern": "^/"},
          "predicate": {"type": "string"},
          "bodyJsonPath": {"type": "object"}
        }
      },
      "response": {
        "type": "object",
        "required": ["status"],
        "additionalProperties": false,
        "properties": {
          "status": {"type": "integer", "minimum": 100, "maximum": 599},
          "headers": {"type": "object", "additionalProperties": {"type": "string"}},
          "body": {}
        }
      }
    }
  }
}`

var compiledFixtureSchema = jsonschema.MustCompileString("fixtures.json", fixtureSchema)

// validateDocument checks the raw fixture document against the embedded
// schema, accepting YAML or JSON input.
func validateDocument(data []byte) error {
	var doc any
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, "{") {
		if err := json.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("fixture file is not valid JSON: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("fixture file is not valid YAML: %w", err)
		}
		// The schema validator wants JSON-shaped values.
		normalized, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("failed to normalize fixture document: %w", err)
		}
		if err := json.Unmarshal(normalized, &doc); err != nil {
			return err
		}
	}

	if err := compiledFixtureSchema.Validate(doc); err != nil {
		return fmt.Errorf("fixture document failed schema validation: %w", err)
	}
	return nil
}
