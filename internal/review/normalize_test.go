package review

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestNormalizeTechnical_WrappedAndBare(t *testing.T) {
	inner := map[string]any{
		"summary": "dropped 12%",
		"price_move": map[string]any{
			"start_price": "1,200", "end_price": 1056.0,
			"highest": 1250.0, "lowest": 1010.0, "pct_change": "-12.0%",
		},
		"trend": "down",
		"indicators": []any{
			map[string]any{"name": "rsi", "value": 28.0, "interpretation": "oversold"},
		},
		"risk_notes":        []any{"thin volume", ""},
		"uncertainty_level": "medium",
	}

	wrapped := NormalizeTechnical(map[string]any{"stock_analysis": inner})
	bare := NormalizeTechnical(inner)
	if !reflect.DeepEqual(wrapped, bare) {
		t.Fatalf("wrapped and bare forms must normalize identically:\n%+v\n%+v", wrapped, bare)
	}
	if wrapped.PriceMove.StartPrice != 1200 {
		t.Fatalf("start_price = %v", wrapped.PriceMove.StartPrice)
	}
	if wrapped.PriceMove.PctChange != -12.0 {
		t.Fatalf("pct_change = %v", wrapped.PriceMove.PctChange)
	}
	if len(wrapped.RiskNotes) != 1 {
		t.Fatalf("empty list items must be filtered: %v", wrapped.RiskNotes)
	}
	if wrapped.Indicators[0].Value != "28" {
		t.Fatalf("indicator value must be stringified: %q", wrapped.Indicators[0].Value)
	}
}

func TestNormalizeTechnical_EnumFallsBackConservative(t *testing.T) {
	out := NormalizeTechnical(map[string]any{
		"stock_analysis": map[string]any{
			"summary":           "x",
			"trend":             "skyrocketing",
			"uncertainty_level": "extreme",
		},
	})
	if out.Trend != TrendSideways {
		t.Fatalf("trend = %q", out.Trend)
	}
	if out.UncertaintyLevel != UncertaintyHigh {
		t.Fatalf("uncertainty_level = %q", out.UncertaintyLevel)
	}
}

func TestNormalizeTechnical_Idempotent(t *testing.T) {
	once := NormalizeTechnical(map[string]any{
		"summary":           "s",
		"trend":             "up",
		"indicators":        []any{map[string]any{"name": "rsi", "value": "30"}},
		"uncertainty_level": "low",
	})
	b, err := json.Marshal(once)
	if err != nil {
		t.Fatal(err)
	}
	var roundTrip map[string]any
	if err := json.Unmarshal(b, &roundTrip); err != nil {
		t.Fatal(err)
	}
	twice := NormalizeTechnical(roundTrip)
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("normalize must be idempotent:\n%+v\n%+v", once, twice)
	}
}

func TestNormalizeBehavior_GarbageInputStillComplete(t *testing.T) {
	for _, parsed := range []map[string]any{
		{},
		{"behavior_profile": "not an object"},
		{"behavior_profile": map[string]any{"profile_metrics": []any{1, 2}}},
	} {
		out := NormalizeBehavior(parsed)
		if !ValidateBehavior(out) {
			t.Fatalf("normalized output must validate, input %v gave %+v", parsed, out)
		}
		for _, axis := range ProfileAxes {
			if out.ProfileMetrics[axis].Label == "" {
				t.Fatalf("axis %s missing label", axis)
			}
			if out.ProfileMetrics[axis].Score != 50 {
				t.Fatalf("axis %s default score = %d", axis, out.ProfileMetrics[axis].Score)
			}
		}
	}
}

func TestNormalizeBehavior_Idempotent(t *testing.T) {
	once := NormalizeBehavior(map[string]any{
		"behavior_profile": map[string]any{
			"investor_character": map[string]any{"type": "Trend Surfer", "behavioral_bias": "herding_effect"},
			"profile_metrics": map[string]any{
				"analysis_depth": map[string]any{"score": 120, "bias_detected": "Confirmation Bias"},
			},
			"cognitive_analysis": map[string]any{
				"primary_bias": map[string]any{"name": "Herding Effect", "code": "herding_effect"},
			},
			"uncertainty_level": "medium",
		},
	})
	if once.ProfileMetrics["analysis_depth"].Score != 100 {
		t.Fatalf("score must clamp to 100, got %d", once.ProfileMetrics["analysis_depth"].Score)
	}
	b, _ := json.Marshal(once)
	var roundTrip map[string]any
	if err := json.Unmarshal(b, &roundTrip); err != nil {
		t.Fatal(err)
	}
	twice := NormalizeBehavior(roundTrip)
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("normalize must be idempotent:\n%+v\n%+v", once, twice)
	}
}

func TestComputeCauseBreakdown(t *testing.T) {
	causes := []RootCause{
		{Category: CategoryInternal, ImpactScore: 8},
		{Category: CategoryInternal, ImpactScore: 10},
		{Category: CategoryExternal, ImpactScore: 7},
		{Category: CategoryExternal, ImpactScore: 5},
	}
	got := ComputeCauseBreakdown(causes)
	want := CauseBreakdown{InternalRatio: 60, ExternalRatio: 40}
	if got != want {
		t.Fatalf("breakdown = %+v, want %+v", got, want)
	}

	if got := ComputeCauseBreakdown(nil); got.InternalRatio+got.ExternalRatio != 100 {
		t.Fatalf("empty breakdown must still sum to 100: %+v", got)
	}
}

func TestNormalizeCauses_RecomputesModelRatios(t *testing.T) {
	parsed := map[string]any{
		"loss_cause_analysis": map[string]any{
			"loss_check": "loss confirmed",
			"root_causes": []any{
				map[string]any{
					"category": "internal", "impact_score": 9, "title": "a",
					"evidence": []any{map[string]any{"data_point": "x"}},
				},
				map[string]any{
					"category": "external", "impact_score": 3, "title": "b",
					"evidence": []any{map[string]any{"data_point": "y"}},
				},
			},
			// The model asserting 50/50 must be overridden by recomputation.
			"cause_breakdown": map[string]any{"internal_ratio": 50, "external_ratio": 50},
		},
	}
	causes, _, _ := NormalizeCauses(parsed, TradeInput{})
	if causes.CauseBreakdown.InternalRatio != 75 || causes.CauseBreakdown.ExternalRatio != 25 {
		t.Fatalf("breakdown = %+v", causes.CauseBreakdown)
	}
}

func TestNormalizeCauses_ImpactScoreClampedAndLeveled(t *testing.T) {
	parsed := map[string]any{
		"loss_cause_analysis": map[string]any{
			"loss_check": "x",
			"root_causes": []any{
				map[string]any{"category": "internal", "impact_score": 42, "evidence": []any{map[string]any{"data_point": "d"}}},
				map[string]any{"category": "external", "impact_score": "not a number", "evidence": []any{map[string]any{"data_point": "d"}}},
			},
		},
	}
	causes, _, _ := NormalizeCauses(parsed, TradeInput{})
	if causes.RootCauses[0].ImpactScore != 10 || causes.RootCauses[0].ImpactLevel != "critical" {
		t.Fatalf("cause 0 = %+v", causes.RootCauses[0])
	}
	if causes.RootCauses[1].ImpactScore != 5 || causes.RootCauses[1].ImpactLevel != "medium" {
		t.Fatalf("cause 1 = %+v", causes.RootCauses[1])
	}
}

func TestNormalizeReport_InvalidMissionsReplacedFromLookup(t *testing.T) {
	profile := FallbackBehavior("test", "my friend recommended it")
	parsed := map[string]any{
		"review_report": map[string]any{
			"investment_advisor": map[string]any{"advisor_message": "msg"},
			"action_missions":    []any{map[string]any{"title": ""}},
		},
	}
	out := NormalizeReport(parsed, &profile)
	if len(out.ActionMissions) != 1 {
		t.Fatalf("missions = %+v", out.ActionMissions)
	}
	if out.ActionMissions[0].BehavioralTarget != "Reduce herding" {
		t.Fatalf("mission must follow the herding profile: %+v", out.ActionMissions[0])
	}
}

func TestNormalizePayloads_BackfillsFromInput(t *testing.T) {
	in := TradeInput{Ticker: "ABC", BuyDate: "2024-01-01", SellDate: "2024-02-01", DecisionBasis: "basis"}
	out := NormalizePayloads(map[string]any{
		"technical_request": map[string]any{"ticker": "ABC"},
	}, in)
	if out.Technical.BuyDate != "2024-01-01" || out.News.UserBelief != "basis" {
		t.Fatalf("backfill failed: %+v", out)
	}
	if !ValidatePayloads(out) {
		t.Fatalf("backfilled payloads must validate")
	}
}
