package infer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mockforge/mockforge/pkg/spec"
)

// tighten asks the LLM for an improved draft and re-validates the output.
// Any failure falls back to the deterministic assembly; ok reports whether
// the tightened draft was accepted.
func (inf *Inferencer) tighten(ctx context.Context, draft json.RawMessage, clusters []*cluster) (json.RawMessage, bool) {
	callCtx, cancel := context.WithTimeout(ctx, inf.cfg.LlmTimeout)
	defer cancel()

	raw, err := inf.cfg.Provider.Complete(callCtx, tightenPrompt(draft, clusters))
	if err != nil {
		inf.log.Warn("LLM tightening failed, keeping deterministic draft", "error", err)
		return nil, false
	}

	candidate := extractJSON(raw)
	if candidate == nil {
		inf.log.Warn("LLM tightening returned no JSON document, keeping deterministic draft")
		return nil, false
	}

	// The tightened document must still load and validate.
	if doc, report := spec.Load(candidate, "tightened.json"); doc == nil {
		inf.log.Warn("LLM-tightened draft failed validation, keeping deterministic draft",
			"errors", len(report.Errors))
		return nil, false
	}

	return candidate, true
}

func tightenPrompt(draft json.RawMessage, clusters []*cluster) string {
	var b strings.Builder
	b.WriteString("The following OpenAPI 3.0.3 document was inferred from recorded traffic.\n")
	b.WriteString("Tighten it: improve schema precision, add format hints where values suggest them, ")
	b.WriteString("and keep every existing path and method. Do not invent endpoints.\n\n")
	fmt.Fprintf(&b, "Observed path clusters (%d):\n", len(clusters))
	for _, c := range clusters {
		fmt.Fprintf(&b, "- %s (%d samples)\n", c.pattern, len(c.exchanges))
	}
	b.WriteString("\nDocument:\n")
	b.Write(draft)
	b.WriteString("\n\nRespond with ONLY the improved JSON document.")
	return b.String()
}

// extractJSON pulls a JSON object out of provider text, tolerating fences.
func extractJSON(raw string) json.RawMessage {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}
	if idx := strings.Index(text, "{"); idx > 0 {
		text = text[idx:]
	}
	if !json.Valid([]byte(text)) {
		return nil
	}
	return json.RawMessage(text)
}
