package ports

import "context"

// CompletionRequest is a single-turn chat completion.
type CompletionRequest struct {
	System      string
	User        string
	JSON        bool // ask the model for a JSON object response
	Temperature float64
}

// ChatCompleter turns a prompt into model text. Adapters exist for Ollama and OpenAI.
type ChatCompleter interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}
