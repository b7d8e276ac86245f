package llm

import (
	"context"

	genai "google.golang.org/genai"
)

// GeminiGateway is a thin wrapper around the official genai client.
type GeminiGateway struct {
	cli   *genai.Client
	model string
}

func NewGeminiGateway(ctx context.Context, apiKey, model string) (*GeminiGateway, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &GeminiGateway{cli: cli, model: model}, nil
}

func (g *GeminiGateway) Name() string { return "Gemini:" + g.model }
func (g *GeminiGateway) Close() error { return nil }

// Generate sends the conversation and requests application/json output.
func (g *GeminiGateway) Generate(ctx context.Context, systemPrompt string, msgs []Message, opts *Options) (string, error) {
	contents := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		var role genai.Role = genai.RoleUser
		if m.Role == "model" || m.Role == "assistant" {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}

	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	}
	if systemPrompt != "" {
		cfg.SystemInstruction = genai.NewContentFromText(systemPrompt, genai.RoleUser)
	}
	if opts != nil && opts.MaxOutputTokens > 0 {
		cfg.MaxOutputTokens = opts.MaxOutputTokens
	}

	resp, err := g.cli.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", ErrEmptyResponse
	}
	return resp.Candidates[0].Content.Parts[0].Text, nil
}
