package review

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// Every fallback must produce output the stage validator accepts.
func TestFallbacksPassValidators(t *testing.T) {
	in := TradeInput{Ticker: "ABC", BuyDate: "2024-01-01", SellDate: "2024-02-01", DecisionBasis: "a hunch"}

	assert.True(t, ValidatePayloads(FallbackPayloads(in)))
	assert.True(t, ValidateTechnical(FallbackTechnical("call failed", TechnicalRequest{Ticker: "ABC"})))
	assert.True(t, ValidateNews(FallbackNews("call failed", NewsRequest{Ticker: "ABC"})))

	causes, _, behavior := FallbackCauses("call failed", in)
	assert.True(t, ValidateCauses(causes))
	assert.Equal(t, 100, causes.CauseBreakdown.InternalRatio+causes.CauseBreakdown.ExternalRatio)
	assert.Equal(t, in.DecisionBasis, behavior.InvestmentReason)

	profile := FallbackBehavior("call failed", in.DecisionBasis)
	assert.True(t, ValidateBehavior(profile))

	assert.True(t, ValidateReport(FallbackReport("call failed", &profile)))
	assert.True(t, ValidateChat(FallbackChat("call failed")))
}

func TestFallbackEmbedsReason(t *testing.T) {
	tech := FallbackTechnical("call failed", TechnicalRequest{Ticker: "ABC"})
	if !strings.Contains(tech.Summary, "call failed") {
		t.Fatalf("summary must name the failure reason: %q", tech.Summary)
	}
	causes, _, _ := FallbackCauses("parse failed", TradeInput{Ticker: "ABC"})
	if !strings.Contains(causes.LossCheck, "parse failed") {
		t.Fatalf("loss_check must name the failure reason: %q", causes.LossCheck)
	}
}

func TestFallbackBehavior_KeywordRouting(t *testing.T) {
	cases := []struct {
		reason string
		code   string
	}{
		{"my friend recommended it", "herding_effect"},
		{"everyone on the forum was buying", "herding_effect"},
		{"it was surging and I didn't want to miss the move", "fomo"},
		{"looked cheap versus the previous high", "anchoring_effect"},
		{"saw an article about their earnings", "availability_heuristic"},
		{"just felt right", "confirmation_bias"},
		{"", "confirmation_bias"},
	}
	for _, tc := range cases {
		got := FallbackBehavior("x", tc.reason)
		if got.InvestorCharacter.BehavioralBias != tc.code {
			t.Fatalf("reason %q routed to %q, want %q", tc.reason, got.InvestorCharacter.BehavioralBias, tc.code)
		}
		if got.CognitiveAnalysis.PrimaryBias.Code != tc.code {
			t.Fatalf("primary bias code mismatch for %q", tc.reason)
		}
		if got.UncertaintyLevel != UncertaintyHigh {
			t.Fatalf("fallback uncertainty must be high")
		}
	}
}

func TestMissionsForBias_KnownAndUnknown(t *testing.T) {
	herding := MissionsForBias("herding_effect")
	assert.Len(t, herding, 1)
	assert.Equal(t, "Write your own thesis", herding[0].Title)
	assert.True(t, ValidateMissions(herding))

	unknown := MissionsForBias("some_new_bias")
	assert.Equal(t, "Find three counterarguments", unknown[0].Title)
}

func TestValidateCauses_RejectsOneSidedCategories(t *testing.T) {
	onlyInternal := CauseAnalysis{
		LossCheck: "x",
		RootCauses: []RootCause{
			{Category: CategoryInternal, ImpactScore: 5, Evidence: []Evidence{{DataPoint: "d"}}},
		},
		CauseBreakdown: CauseBreakdown{InternalRatio: 100, ExternalRatio: 0},
	}
	if ValidateCauses(onlyInternal) {
		t.Fatalf("cause list without an external entry must not validate")
	}
}
