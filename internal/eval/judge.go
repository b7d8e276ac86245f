package eval

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"lossreview/internal/jsonx"
	"lossreview/internal/llm"
	"lossreview/internal/review"
)

// Judge grades stage outputs with a model call. The judge follows the same
// discipline as a pipeline stage: any failure degrades to a zero-valued
// report with a diagnostic note instead of erroring.
type Judge struct {
	Gateway llm.Gateway
	Log     *zap.Logger
}

func NewJudge(gw llm.Gateway, log *zap.Logger) *Judge {
	if log == nil {
		log = zap.NewNop()
	}
	return &Judge{Gateway: gw, Log: log}
}

const judgeTechnicalPrompt = `You grade a technical stock analysis for quality.
Score each dimension in [0,1]:
- consistency: internal agreement between summary, prices, and indicators
- indicator_coverage: RSI, MACD, Bollinger all present and interpreted
- trend_consistency: trend label matches the price move
- advice_free: 1 when the text contains no buy/sell directives
- clarity: plain-language quality of the summary

Return STRICT JSON ONLY:
{"consistency": 0.0, "indicator_coverage": 0.0, "trend_consistency": 0.0, "advice_free": 0.0, "clarity": 0.0, "notes": "string"}`

const judgeNewsPrompt = `You grade a financial news analysis for quality.
Score in [0,1]; per_item arrays carry one entry per news item in input order.

Return STRICT JSON ONLY:
{
  "relevance": {"per_item": [0.0], "avg": 0.0},
  "faithfulness": 0.0,
  "signal": {"per_item": [0], "ratio": 0.0},
  "coverage": {"topics": ["string"], "unique_count": 0, "score": 0.0},
  "notes": "string"
}`

// clamp01 clamps a judge score into [0,1]; models occasionally return 0-10
// or 0-100 style values and those must not blow past the display range.
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func judgeMetric(name string, v float64, ok bool) review.Metric {
	score := clamp01(v) * 100
	m := review.Metric{Name: name, Score: score, Passed: ok && score >= passThreshold}
	if !ok {
		m.Score = 0
		m.Passed = false
		m.Reason = "missing from judge output"
	}
	return m
}

func zeroReport(stage, requestID, note string, names []string) review.QualityReport {
	metrics := make([]review.Metric, 0, len(names))
	for _, n := range names {
		metrics = append(metrics, review.Metric{Name: n, Score: 0, Passed: false, Reason: note})
	}
	return buildReport(stage, requestID, metrics, note)
}

func (j *Judge) call(ctx context.Context, stage, prompt string, payload any) (map[string]any, string) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, "judge payload marshal failed"
	}
	ctx = llm.WithStage(ctx, stage)
	raw, err := j.Gateway.Generate(ctx, prompt, []llm.Message{{Role: "user", Content: string(body)}}, nil)
	if err != nil {
		j.Log.Warn("judge call failed", zap.String("stage", stage), zap.Error(err))
		return nil, "judge call failed"
	}
	parsed, ok := jsonx.Extract(raw)
	if !ok {
		j.Log.Warn("judge output unparseable", zap.String("stage", stage))
		return nil, "judge output unparseable"
	}
	return parsed, ""
}

func num(m map[string]any, key string) (float64, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	return f, ok
}

// JudgeTechnical grades a technical analysis on five model-scored dimensions.
func (j *Judge) JudgeTechnical(ctx context.Context, requestID string, t review.TechnicalAnalysis) review.QualityReport {
	names := []string{"consistency", "indicator_coverage", "trend_consistency", "advice_free", "clarity"}
	parsed, failNote := j.call(ctx, "judge_technical", judgeTechnicalPrompt, t)
	if failNote != "" {
		return zeroReport("judge_technical", requestID, failNote, names)
	}

	metrics := make([]review.Metric, 0, len(names))
	for _, name := range names {
		v, ok := num(parsed, name)
		metrics = append(metrics, judgeMetric(name, v, ok))
	}
	notes, _ := parsed["notes"].(string)
	return buildReport("judge_technical", requestID, metrics, notes)
}

// perItemAverage averages a judge per_item array.
func perItemAverage(items []any) (float64, int) {
	var sum float64
	var n int
	for _, it := range items {
		if f, ok := it.(float64); ok {
			sum += clamp01(f)
			n++
		}
	}
	if n == 0 {
		return 0, 0
	}
	return sum / float64(n), n
}

// aggregateOrRecompute trusts the model's aggregate only when its per-item
// count matches the real item count; otherwise the aggregate is recomputed
// from the per-item array, which is the judge's own ground truth.
func aggregateOrRecompute(section map[string]any, aggKey string, wantItems int) (float64, bool) {
	if section == nil {
		return 0, false
	}
	items, _ := section["per_item"].([]any)
	avg, n := perItemAverage(items)
	if agg, ok := num(section, aggKey); ok && n == wantItems {
		return clamp01(agg), true
	}
	if n > 0 {
		return avg, true
	}
	return 0, false
}

// JudgeNews grades a news analysis. Per-item relevance and signal scores are
// cross-checked against the analysis' actual item count.
func (j *Judge) JudgeNews(ctx context.Context, requestID string, n review.NewsAnalysis) review.QualityReport {
	names := []string{"relevance", "faithfulness", "signal", "coverage"}
	parsed, failNote := j.call(ctx, "judge_news", judgeNewsPrompt, n)
	if failNote != "" {
		return zeroReport("judge_news", requestID, failNote, names)
	}

	wantItems := len(n.NewsSummaries)

	relSection, _ := parsed["relevance"].(map[string]any)
	rel, relOK := aggregateOrRecompute(relSection, "avg", wantItems)

	faith, faithOK := num(parsed, "faithfulness")

	sigSection, _ := parsed["signal"].(map[string]any)
	sig, sigOK := aggregateOrRecompute(sigSection, "ratio", wantItems)

	covSection, _ := parsed["coverage"].(map[string]any)
	var cov float64
	var covOK bool
	if covSection != nil {
		cov, covOK = num(covSection, "score")
	}

	metrics := []review.Metric{
		judgeMetric("relevance", rel, relOK),
		judgeMetric("faithfulness", faith, faithOK),
		judgeMetric("signal", sig, sigOK),
		judgeMetric("coverage", cov, covOK),
	}
	notes, _ := parsed["notes"].(string)
	return buildReport("judge_news", requestID, metrics, notes)
}
