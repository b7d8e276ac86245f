package llm

import (
	"context"
	"fmt"

	genai "google.golang.org/genai"
)

// Embedder turns text blobs into vectors for the vector persistence sink.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

// GenAIEmbedder generates embeddings via the Gemini embedding API.
type GenAIEmbedder struct {
	cli   *genai.Client
	model string
}

func NewGenAIEmbedder(ctx context.Context, apiKey, model string) (*GenAIEmbedder, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	if model == "" {
		model = "gemini-embedding-001"
	}
	return &GenAIEmbedder{cli: cli, model: model}, nil
}

func (e *GenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}
	result, err := e.cli.Models.EmbedContent(ctx, e.model, contents, &genai.EmbedContentConfig{
		TaskType: "RETRIEVAL_DOCUMENT",
	})
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embed: got %d embeddings for %d texts", len(result.Embeddings), len(texts))
	}
	out := make([][]float32, len(result.Embeddings))
	for i, emb := range result.Embeddings {
		out[i] = emb.Values
	}
	return out, nil
}

// Dimensions returns the embedding width of gemini-embedding-001 output.
func (e *GenAIEmbedder) Dimensions() int { return 768 }

// FakeEmbedder returns fixed-size zero vectors; used when no API key is set.
type FakeEmbedder struct{ Dim int }

func (f FakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	dim := f.Dim
	if dim <= 0 {
		dim = 8
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, dim)
	}
	return out, nil
}

func (f FakeEmbedder) Dimensions() int {
	if f.Dim <= 0 {
		return 8
	}
	return f.Dim
}
