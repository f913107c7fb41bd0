package engine

import "context"

// Engine abstracts a local inference backend. The conversation core talks
// to it only through a Gateway.
type Engine interface {
	// Chat sends messages to the given model and returns the assistant's
	// response. When format is non-nil, structured JSON output is requested.
	Chat(ctx context.Context, model string, messages []Message, format *Schema) (string, error)

	// IsRunning reports whether the inference backend is reachable.
	IsRunning(ctx context.Context) bool

	// HasModel reports whether the given model name is available locally.
	HasModel(ctx context.Context, name string) bool

	// PullModel downloads a model. The optional callback receives progress updates.
	PullModel(ctx context.Context, name string, onProgress func(PullProgress)) error
}
