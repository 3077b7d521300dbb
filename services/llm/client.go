package llm

import (
	"context"
	"errors"
)

type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopK        *int     `json:"top_k"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`
}

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is a single system + user exchange.
type CompletionRequest struct {
	System string
	User   string
	// JSONMode asks the backend to constrain output to a JSON object.
	JSONMode  bool
	MaxTokens int
	// Temperature is left to the backend default when nil.
	Temperature *float32
}

// Completion is the backend's answer plus accounting.
type Completion struct {
	Content    string
	Model      string
	TokensUsed int
}

// ErrEmptyResponse is returned when the backend answers with no content.
var ErrEmptyResponse = errors.New("llm returned no choices")

// LLMClient defines the standard interface for any LLM backend
type LLMClient interface {
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)
	Complete(ctx context.Context, req CompletionRequest) (Completion, error)
}

func messagesFor(req CompletionRequest) []Message {
	msgs := make([]Message, 0, 2)
	if req.System != "" {
		msgs = append(msgs, Message{Role: "system", Content: req.System})
	}
	return append(msgs, Message{Role: "user", Content: req.User})
}
