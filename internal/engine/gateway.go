package engine

import (
	"context"
	"fmt"
	"time"
)

// Gateway sends a single prompt to the configured chat model and returns
// the raw text. It holds every model-specific detail (model name, output
// schema, deadline) so callers only see generate(prompt) -> text.
//
// Gateway does not retry. Errors are returned to the caller, which decides
// how to recover.
type Gateway struct {
	engine  Engine
	model   string
	timeout time.Duration
}

// NewGateway creates a Gateway. A timeout <= 0 means the caller's context
// is the only deadline.
func NewGateway(e Engine, model string, timeout time.Duration) *Gateway {
	return &Gateway{engine: e, model: model, timeout: timeout}
}

// Model returns the chat model name.
func (g *Gateway) Model() string { return g.model }

// Generate sends prompt as one user message. When format is non-nil the
// model is asked for JSON matching it.
func (g *Gateway) Generate(ctx context.Context, prompt string, format *Schema) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	out, err := g.engine.Chat(ctx, g.model, []Message{{Role: "user", Content: prompt}}, format)
	if err != nil {
		return "", fmt.Errorf("generating with %s: %w", g.model, err)
	}
	return out, nil
}
