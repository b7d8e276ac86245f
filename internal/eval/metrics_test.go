package eval

import (
	"testing"

	"lossreview/internal/review"
)

func goodTechnical() review.TechnicalAnalysis {
	return review.TechnicalAnalysis{
		Summary: "Price fell steadily over the holding period.",
		PriceMove: review.PriceMove{
			StartPrice: 100, EndPrice: 90, Highest: 105, Lowest: 88, PctChange: -10,
		},
		Trend: review.TrendDown,
		Indicators: []review.Indicator{
			{Name: "rsi", Value: "34", Interpretation: "oversold"},
			{Name: "macd", Value: "-1.2", Interpretation: "bearish"},
			{Name: "bollinger_band", Value: "below mid", Interpretation: "weak"},
		},
		RiskNotes:        []string{"earnings volatility"},
		UncertaintyLevel: review.UncertaintyLow,
	}
}

func metricByName(t *testing.T, r review.QualityReport, name string) review.Metric {
	t.Helper()
	for _, m := range r.Metrics {
		if m.Name == name {
			return m
		}
	}
	t.Fatalf("metric %s missing from %+v", name, r.Metrics)
	return review.Metric{}
}

func TestScoreTechnicalAllPass(t *testing.T) {
	r := ScoreTechnical("req", goodTechnical())
	if r.Summary.Passed != r.Summary.Total || r.Summary.Total != 6 {
		t.Fatalf("summary = %+v", r.Summary)
	}
	if r.Summary.Score != 10 {
		t.Fatalf("score = %v, want 10", r.Summary.Score)
	}
	if len(r.FailedMetrics()) != 0 {
		t.Fatalf("failed = %v", r.FailedMetrics())
	}
}

func TestScoreTechnicalPctChangeMismatch(t *testing.T) {
	ta := goodTechnical()
	ta.PriceMove.PctChange = -2 // real move is -10
	r := ScoreTechnical("req", ta)
	if m := metricByName(t, r, "pct_change_accuracy"); m.Passed {
		t.Fatal("pct_change_accuracy should fail")
	}
	// -2 still agrees with a down label.
	if m := metricByName(t, r, "trend_return_consistency"); !m.Passed {
		t.Fatal("trend_return_consistency should pass")
	}
}

func TestScoreTechnicalTrendContradiction(t *testing.T) {
	ta := goodTechnical()
	ta.Trend = review.TrendUp
	r := ScoreTechnical("req", ta)
	if m := metricByName(t, r, "trend_return_consistency"); m.Passed {
		t.Fatal("up trend with -10% return must fail")
	}
}

func TestScoreTechnicalPriceBounds(t *testing.T) {
	ta := goodTechnical()
	ta.PriceMove.Lowest = 95 // above end price
	r := ScoreTechnical("req", ta)
	if m := metricByName(t, r, "price_integrity"); m.Passed {
		t.Fatal("inconsistent bounds must fail")
	}
}

func TestScoreTechnicalIndicatorCoveragePartial(t *testing.T) {
	ta := goodTechnical()
	ta.Indicators = ta.Indicators[:2] // drop bollinger
	r := ScoreTechnical("req", ta)
	m := metricByName(t, r, "indicator_coverage")
	if m.Passed {
		t.Fatal("2 of 3 indicators is below the pass bar")
	}
	if m.Score < 66 || m.Score > 67 {
		t.Fatalf("coverage score = %v", m.Score)
	}
}
