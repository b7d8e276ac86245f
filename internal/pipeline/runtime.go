package pipeline

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"lossreview/internal/jsonx"
	"lossreview/internal/llm"
	"lossreview/internal/promptstore"
	"lossreview/internal/safety"
)

// Failure reasons embedded verbatim into fallback summaries.
const (
	ReasonCallFailed    = "call failed"
	ReasonBlocked       = "blocked"
	ReasonParseFailed   = "parse failed"
	ReasonSchemaInvalid = "schema invalid"
)

// Runtime bundles the shared dependencies every stage runs against.
type Runtime struct {
	Gateway llm.Gateway
	Prompts promptstore.Store
	Log     *zap.Logger
}

func NewRuntime(gw llm.Gateway, prompts promptstore.Store, log *zap.Logger) *Runtime {
	if log == nil {
		log = zap.NewNop()
	}
	if prompts == nil {
		prompts = promptstore.NewMemory()
	}
	return &Runtime{Gateway: gw, Prompts: prompts, Log: log}
}

// callModel runs the shared front half of a model stage: resolve the prompt,
// send the payload as a single user turn, screen the raw text, and parse it.
// A non-empty reason means the caller must synthesize a fallback; err is only
// non-nil for infrastructure faults that should abort the run (none today —
// model trouble always degrades, never aborts).
func (rt *Runtime) callModel(ctx context.Context, stage string, payload any) (parsed map[string]any, raw string, reason string) {
	prompt, _, err := rt.Prompts.Get(stage)
	if err != nil {
		rt.Log.Warn("prompt lookup failed", zap.String("stage", stage), zap.Error(err))
		return nil, "", ReasonCallFailed
	}

	body, err := json.Marshal(payload)
	if err != nil {
		rt.Log.Warn("payload marshal failed", zap.String("stage", stage), zap.Error(err))
		return nil, "", ReasonCallFailed
	}

	ctx = llm.WithStage(ctx, stage)
	raw, err = rt.Gateway.Generate(ctx, prompt, []llm.Message{{Role: "user", Content: string(body)}}, nil)
	if err != nil {
		rt.Log.Warn("model call failed", zap.String("stage", stage), zap.Error(err))
		return nil, "", ReasonCallFailed
	}

	if safety.ContainsDisallowedContent(raw) {
		rt.Log.Warn("model output blocked", zap.String("stage", stage))
		return nil, raw, ReasonBlocked
	}

	parsed, ok := jsonx.Extract(raw)
	if !ok {
		rt.Log.Warn("model output unparseable", zap.String("stage", stage), zap.Int("raw_len", len(raw)))
		return nil, raw, ReasonParseFailed
	}
	return parsed, raw, ""
}
