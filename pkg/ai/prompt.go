package ai

import (
	"encoding/json"
	"fmt"
	"strings"
)

// buildPrompt renders a generation request into a provider-neutral prompt.
// The schema travels as JSON so the model sees the exact constraints.
func buildPrompt(req *GenerateRequest) string {
	var b strings.Builder
	b.WriteString("Generate one realistic JSON value for a mock API response.\n")
	if req.Method != "" && req.Path != "" {
		fmt.Fprintf(&b, "Endpoint: %s %s\n", req.Method, req.Path)
	}
	if req.Status != "" {
		fmt.Fprintf(&b, "Response status: %s\n", req.Status)
	}
	if req.Schema != nil {
		if schemaJSON, err := json.Marshal(req.Schema); err == nil {
			fmt.Fprintf(&b, "The value must conform to this JSON schema:\n%s\n", schemaJSON)
		}
	}
	b.WriteString("Respond with ONLY the JSON value, no explanation and no code fences.")
	return b.String()
}

// parseGeneratedValue extracts a JSON value from provider text, tolerating
// code fences and leading prose.
func parseGeneratedValue(raw string) (any, error) {
	text := stripCodeFences(strings.TrimSpace(raw))

	var value any
	if err := json.Unmarshal([]byte(text), &value); err == nil {
		return value, nil
	}

	// Some models prefix with a sentence; retry from the first JSON token.
	if idx := strings.IndexAny(text, "{["); idx >= 0 {
		if err := json.Unmarshal([]byte(text[idx:]), &value); err == nil {
			return value, nil
		}
	}

	return nil, fmt.Errorf("%w: %.80q", ErrInvalidResponse, raw)
}

func stripCodeFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	if idx := strings.LastIndex(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}
