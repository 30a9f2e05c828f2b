// Package extract converts unstructured provider text into schema-typed
// data. It is the single chokepoint between heterogeneous web content and
// the mechanical merge step: every successful extraction is strictly
// validated against a fixed schema, so merges never see shape surprises.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/company-intel/pkg/anthropic"
)

const extractSystemText = "You are a research analyst extracting structured data about a company. Return only a valid JSON object matching the requested schema exactly: include every field, use null for anything not found, and add no extra fields or commentary."

const extractPrompt = `%s

Output JSON schema:
%s

Source content:
%s

Return valid JSON matching the schema above.`

// maxSourceChars bounds the content injected into the prompt.
const maxSourceChars = 12000

// Normalizer performs structured extraction via a language model.
type Normalizer struct {
	client anthropic.Client
	model  string
}

// NewNormalizer creates a Normalizer using the given model.
func NewNormalizer(client anthropic.Client, model string) *Normalizer {
	return &Normalizer{client: client, model: model}
}

// Extract converts raw text into a value validated against schema. The
// instructions describe what to pull out. Any failure (model unavailable,
// malformed output, schema violation) returns a nil value with the error;
// callers convert that into a failed provider outcome rather than
// propagating it.
func (n *Normalizer) Extract(ctx context.Context, raw string, schema *Schema, schemaJSON, instructions string) (json.RawMessage, error) {
	if n.client == nil {
		return nil, eris.New("extract: no model client configured")
	}
	if strings.TrimSpace(raw) == "" {
		return nil, eris.New("extract: empty source content")
	}

	if len(raw) > maxSourceChars {
		raw = raw[:maxSourceChars]
	}

	prompt := fmt.Sprintf(extractPrompt, instructions, schemaJSON, raw)

	resp, err := n.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     n.model,
		MaxTokens: 2048,
		System:    extractSystemText,
		Messages: []anthropic.Message{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "extract: model call")
	}

	text := stripFences(resp.Text())

	var decoded any
	if err := json.Unmarshal([]byte(text), &decoded); err != nil {
		zap.L().Debug("extract: model returned non-JSON output",
			zap.String("model", n.model),
			zap.Int("chars", len(text)),
		)
		return nil, eris.Wrap(err, "extract: parse model output")
	}

	if err := schema.Validate(decoded); err != nil {
		return nil, eris.Wrap(err, "extract: schema validation")
	}

	// Re-marshal the validated value so downstream consumers see canonical
	// JSON rather than whatever whitespace the model produced.
	out, err := json.Marshal(decoded)
	if err != nil {
		return nil, eris.Wrap(err, "extract: marshal validated value")
	}
	return out, nil
}

// stripFences removes a markdown code fence around the model output, if
// present. Anything beyond that is not recovered: a response that still
// fails to parse is a typed failure.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
