package engine

import (
	"context"

	"github.com/kalambet/paris/internal/ollama"
)

// OllamaEngine adapts ollama.Client to the Engine interface.
type OllamaEngine struct {
	client      *ollama.Client
	temperature float64
}

// NewOllamaEngine creates an OllamaEngine backed by an Ollama server at
// baseURL. A zero temperature leaves the model default in place.
func NewOllamaEngine(baseURL string, temperature float64) *OllamaEngine {
	return &OllamaEngine{client: ollama.New(baseURL), temperature: temperature}
}

func (e *OllamaEngine) Chat(ctx context.Context, model string, messages []Message, format *Schema) (string, error) {
	msgs := make([]ollama.Message, len(messages))
	for i, m := range messages {
		msgs[i] = ollama.Message{Role: m.Role, Content: m.Content}
	}

	var s *ollama.Schema
	if format != nil {
		s = &ollama.Schema{Type: format.Type, Required: format.Required}
		if format.Properties != nil {
			s.Properties = make(map[string]ollama.SchemaProperty, len(format.Properties))
			for k, v := range format.Properties {
				s.Properties[k] = ollama.SchemaProperty{Type: v.Type, Description: v.Description}
			}
		}
	}

	var opts *ollama.Options
	if e.temperature > 0 {
		opts = &ollama.Options{Temperature: e.temperature}
	}
	return e.client.Chat(ctx, model, msgs, s, opts)
}

func (e *OllamaEngine) IsRunning(ctx context.Context) bool {
	return e.client.IsRunning(ctx)
}

func (e *OllamaEngine) HasModel(ctx context.Context, name string) bool {
	return e.client.HasModel(ctx, name)
}

func (e *OllamaEngine) PullModel(ctx context.Context, name string, onProgress func(PullProgress)) error {
	var cb func(ollama.PullProgress)
	if onProgress != nil {
		cb = func(p ollama.PullProgress) {
			onProgress(PullProgress{Status: p.Status, Total: p.Total, Completed: p.Completed})
		}
	}
	return e.client.PullModel(ctx, name, cb)
}
