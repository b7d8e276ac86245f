package eval

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"lossreview/internal/promptstore"
	"lossreview/internal/review"
)

// Default optimizer thresholds.
const (
	DefaultTargetScore      = 8.0
	DefaultRegressThreshold = 0.1
)

// rulesByMetric maps a failing metric to the remediation line appended to the
// stage prompt. Insertion is idempotent: a rule already present in the text
// is never appended again.
var rulesByMetric = map[string]string{
	"schema_compliance":        "- Output must match the declared JSON schema exactly; include every required key even when a value is unknown.",
	"price_integrity":          "- Keep prices consistent: lowest <= start_price, end_price <= highest, all non-negative.",
	"pct_change_accuracy":      "- Compute pct_change as (end_price - start_price) / start_price * 100 and report that exact value.",
	"trend_return_consistency": "- The trend label must agree with pct_change: positive means up, negative means down, near-zero means sideways.",
	"indicator_coverage":       "- Always report RSI, MACD, and Bollinger Band readings with an interpretation for each.",
	"uncertainty_valid":        "- uncertainty_level must be exactly one of: low, medium, high.",
	"consistency":              "- Cross-check the summary against the numeric fields before answering; remove any contradiction.",
	"trend_consistency":        "- Re-derive the trend from the actual start and end prices before labeling it.",
	"advice_free":              "- Never include buy, sell, or hold recommendations anywhere in the output.",
	"clarity":                  "- Write the summary in plain language a beginner investor can follow, at most three sentences.",
	"relevance":                "- Include only news directly about the ticker within the holding window.",
	"faithfulness":             "- Summarize only what the cited coverage states; never extrapolate beyond it.",
	"signal":                   "- Prefer items with price-moving substance over routine coverage.",
	"coverage":                 "- Span distinct topics (earnings, guidance, sector, macro) rather than repeating one story.",
}

// Optimizer adjusts stage prompts from quality reports. It is the sole
// writer of the history log.
type Optimizer struct {
	Prompts promptstore.Store
	History History
	Log     *zap.Logger

	TargetScore      float64
	RegressThreshold float64
}

func NewOptimizer(prompts promptstore.Store, history History, log *zap.Logger) *Optimizer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Optimizer{
		Prompts:          prompts,
		History:          history,
		Log:              log,
		TargetScore:      DefaultTargetScore,
		RegressThreshold: DefaultRegressThreshold,
	}
}

// plan is the pure decision function: given the last recorded entry (if any),
// the current prompt, and the new report, it returns the action and the text
// the prompt should have afterwards.
func plan(last HistoryEntry, hasLast bool, text string, target, regress float64, report review.QualityReport) (Action, string) {
	score := report.Summary.Score
	failed := report.FailedMetrics()

	if !hasLast {
		return ActionKeep, text
	}
	if promptstore.Hash(text) != last.Hash && last.Score-score >= regress {
		return ActionRollback, last.Prompt
	}
	if score >= target || len(failed) == 0 {
		return ActionKeep, text
	}
	updated := appendRules(text, failed)
	if updated == text {
		return ActionKeep, text
	}
	return ActionUpdate, updated
}

// appendRules adds one remediation line per failing metric to the end of the
// prompt body, skipping rules already present and metrics with no mapping.
func appendRules(text string, failed []string) string {
	var add []string
	for _, name := range failed {
		rule, ok := rulesByMetric[name]
		if !ok {
			continue
		}
		if strings.Contains(text, rule) {
			continue
		}
		add = append(add, rule)
	}
	if len(add) == 0 {
		return text
	}
	out := strings.TrimRight(text, "\n") + "\n" + strings.Join(add, "\n") + "\n"
	return out
}

// Observe records one evaluation of a stage and applies the resulting action
// to the prompt store.
func (o *Optimizer) Observe(stage string, report review.QualityReport) (Action, error) {
	text, hash, err := o.Prompts.Get(stage)
	if err != nil {
		return "", fmt.Errorf("eval: load prompt for %s: %w", stage, err)
	}
	last, hasLast, err := o.History.Last(stage)
	if err != nil {
		return "", fmt.Errorf("eval: read history for %s: %w", stage, err)
	}

	action, next := plan(last, hasLast, text, o.TargetScore, o.RegressThreshold, report)
	if next != text {
		if err := o.Prompts.Set(stage, next); err != nil {
			return "", fmt.Errorf("eval: write prompt for %s: %w", stage, err)
		}
		hash = promptstore.Hash(next)
	}

	entry := newEntry(stage, hash, next, report.Summary.Score, report.FailedMetrics(), action)
	if err := o.History.Append(entry); err != nil {
		return "", fmt.Errorf("eval: append history for %s: %w", stage, err)
	}

	o.Log.Info("prompt evaluation recorded",
		zap.String("stage", stage),
		zap.Float64("score", report.Summary.Score),
		zap.Strings("failed_metrics", report.FailedMetrics()),
		zap.String("action", string(action)),
	)
	return action, nil
}
