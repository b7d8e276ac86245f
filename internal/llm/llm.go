package llm

import (
	"context"
	"errors"
)

// ErrEmptyResponse is returned when the model produced no usable candidate.
var ErrEmptyResponse = errors.New("llm: empty response from model")

// Message is one turn of the conversation handed to the model.
type Message struct {
	Role    string `json:"role"` // "user" or "model"
	Content string `json:"content"`
}

// Options carries per-call generation knobs.
type Options struct {
	MaxOutputTokens int32
}

// Gateway sends a system prompt plus conversation to a model and returns the
// raw response text. Any returned error is treated by callers as a uniform
// "call failed" condition.
type Gateway interface {
	Name() string
	Generate(ctx context.Context, systemPrompt string, msgs []Message, opts *Options) (string, error)
	Close() error
}

type ctxKeyStage struct{}

// WithStage tags a context with the pipeline stage issuing the call, so
// middleware and fakes can route per stage.
func WithStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, ctxKeyStage{}, stage)
}

// StageFrom returns the stage tag, or "" when absent.
func StageFrom(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyStage{}).(string); ok {
		return v
	}
	return ""
}
