// Package eval scores stage outputs and tunes stage prompts. Deterministic
// metrics check what can be verified without a model; the judge adds
// model-graded dimensions; the optimizer turns both into prompt edits.
package eval

import (
	"math"
	"time"

	"lossreview/internal/review"
)

// passThreshold is the per-metric pass bar on the 0-100 scale.
const passThreshold = 70.0

// ScoreTechnical runs the deterministic checks over a technical analysis.
// Every metric is computable from the record alone.
func ScoreTechnical(requestID string, t review.TechnicalAnalysis) review.QualityReport {
	metrics := []review.Metric{
		metricSchemaCompliance(t),
		metricPriceIntegrity(t.PriceMove),
		metricPctChangeAccuracy(t.PriceMove),
		metricTrendReturnConsistency(t),
		metricIndicatorCoverage(t.Indicators),
		metricUncertaintyValid(t.UncertaintyLevel),
	}
	return buildReport("technical", requestID, metrics, "")
}

func buildReport(stage, requestID string, metrics []review.Metric, notes string) review.QualityReport {
	var passed int
	var sum float64
	for _, m := range metrics {
		if m.Passed {
			passed++
		}
		sum += m.Score
	}
	score := 0.0
	if len(metrics) > 0 {
		// 0-100 metric average rescaled to the 0-10 report scale.
		score = math.Round(sum/float64(len(metrics))) / 10
	}
	return review.QualityReport{
		Stage:     stage,
		RequestID: requestID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Summary:   review.QualitySummary{Passed: passed, Total: len(metrics), Score: score},
		Metrics:   metrics,
		Notes:     notes,
	}
}

func boolMetric(name string, ok bool, reason string) review.Metric {
	m := review.Metric{Name: name, Passed: ok, Score: 100}
	if !ok {
		m.Score = 0
		m.Reason = reason
	}
	return m
}

func metricSchemaCompliance(t review.TechnicalAnalysis) review.Metric {
	ok := review.ValidateTechnical(t) && t.Summary != ""
	return boolMetric("schema_compliance", ok, "record fails structural validation")
}

// metricPriceIntegrity checks the ordering invariants of the price move:
// lowest <= start,end <= highest and all prices non-negative.
func metricPriceIntegrity(p review.PriceMove) review.Metric {
	ok := p.Lowest >= 0 &&
		p.Lowest <= p.Highest &&
		p.StartPrice >= p.Lowest && p.StartPrice <= p.Highest &&
		p.EndPrice >= p.Lowest && p.EndPrice <= p.Highest
	return boolMetric("price_integrity", ok, "price bounds are inconsistent")
}

// metricPctChangeAccuracy recomputes pct_change from start/end and compares
// within half a percentage point.
func metricPctChangeAccuracy(p review.PriceMove) review.Metric {
	if p.StartPrice == 0 {
		return boolMetric("pct_change_accuracy", p.PctChange == 0, "pct_change asserted with no start price")
	}
	want := (p.EndPrice - p.StartPrice) / p.StartPrice * 100
	ok := math.Abs(want-p.PctChange) <= 0.5
	return boolMetric("pct_change_accuracy", ok, "pct_change disagrees with start/end prices")
}

// metricTrendReturnConsistency checks that the labeled trend agrees with the
// sign of the return; small moves count as sideways-compatible.
func metricTrendReturnConsistency(t review.TechnicalAnalysis) review.Metric {
	pc := t.PriceMove.PctChange
	var ok bool
	switch t.Trend {
	case review.TrendUp:
		ok = pc > -1
	case review.TrendDown:
		ok = pc < 1
	case review.TrendSideways:
		ok = math.Abs(pc) <= 5
	}
	return boolMetric("trend_return_consistency", ok, "trend label contradicts the return")
}

// metricIndicatorCoverage requires RSI, MACD, and Bollinger readings.
func metricIndicatorCoverage(ind []review.Indicator) review.Metric {
	have := map[string]bool{}
	for _, i := range ind {
		if i.Value != "" {
			have[i.Name] = true
		}
	}
	n := 0
	for _, want := range []string{"rsi", "macd", "bollinger_band"} {
		if have[want] {
			n++
		}
	}
	m := review.Metric{Name: "indicator_coverage", Score: float64(n) / 3 * 100}
	m.Passed = m.Score >= passThreshold
	if !m.Passed {
		m.Reason = "missing required indicator readings"
	}
	return m
}

func metricUncertaintyValid(level string) review.Metric {
	ok := level == review.UncertaintyLow || level == review.UncertaintyMedium || level == review.UncertaintyHigh
	return boolMetric("uncertainty_valid", ok, "uncertainty_level outside the enum")
}
