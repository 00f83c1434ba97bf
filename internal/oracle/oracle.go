// Package oracle wraps the text-analysis backend used for optional
// enrichment. Outputs are JSON documents with module-specific shapes;
// malformed responses are rejected, never persisted.
package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Error marks an enrichment call failure. Oracle failures are always
// non-fatal to the pipeline.
type Error struct {
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("oracle error: %v", e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Oracle is the enrichment capability the processors consume.
type Oracle interface {
	// CompleteJSON sends a prompt expecting a single JSON object back and
	// returns the validated raw JSON.
	CompleteJSON(ctx context.Context, system, prompt string) (json.RawMessage, error)
}

// Client is the Anthropic-backed Oracle.
type Client struct {
	api   anthropic.Client
	model string
}

// NewClient builds a Client for the configured model.
func NewClient(apiKey, model string) *Client {
	return &Client{
		api:   anthropic.NewClient(option.WithAPIKey(apiKey)),
		model: model,
	}
}

// CompleteJSON implements Oracle.
func (c *Client) CompleteJSON(ctx context.Context, system, prompt string) (json.RawMessage, error) {
	msg, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: 2048,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return nil, &Error{Err: err}
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	raw, err := extractJSON(text.String())
	if err != nil {
		return nil, &Error{Err: err}
	}
	return raw, nil
}

// extractJSON pulls the first JSON object out of a model response,
// tolerating code fences and prose around it.
func extractJSON(text string) (json.RawMessage, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}

	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in response")
	}
	candidate := text[start : end+1]

	var probe map[string]any
	if err := json.Unmarshal([]byte(candidate), &probe); err != nil {
		return nil, fmt.Errorf("malformed JSON in response: %w", err)
	}
	return json.RawMessage(candidate), nil
}
