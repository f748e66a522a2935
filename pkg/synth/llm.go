package synth

import (
	"context"
	"time"

	"github.com/mockforge/mockforge/pkg/ai"
	"github.com/mockforge/mockforge/pkg/spec"
	"github.com/mockforge/mockforge/pkg/validation"
)

// generateLlm asks the provider for a body and verifies the result against
// the schema. Returns ok=false on any failure so the caller can fall back;
// LLM problems never surface to clients.
func (s *Synthesizer) generateLlm(ctx context.Context, op *spec.Operation, statusKey string, schema *spec.Schema) (any, bool) {
	if s.provider == nil {
		return nil, false
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	started := time.Now()
	resp, err := s.provider.Generate(callCtx, &ai.GenerateRequest{
		Schema:      schema,
		OperationID: op.ID,
		Method:      op.Method,
		Path:        op.Path,
		Status:      statusKey,
	})
	if err != nil {
		s.log.Warn("LLM generation failed, falling back to faker",
			"operation", op.ID,
			"provider", s.provider.Name(),
			"elapsed", time.Since(started),
			"error", err)
		return nil, false
	}

	if result := validation.ValidateAgainstSchema(schema, resp.Value); !result.Valid {
		s.log.Warn("LLM output failed schema validation, falling back to faker",
			"operation", op.ID,
			"provider", s.provider.Name(),
			"errors", len(result.Errors))
		return nil, false
	}

	return resp.Value, true
}
