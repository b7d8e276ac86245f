package review

import (
	"fmt"
	"strings"
)

// Fallback synthesizers. Each produces a complete, validator-passing stage
// output when the model path fails, embedding the failure reason in the
// human-readable message field. Where upstream context exists, the payload is
// selected from a static lookup keyed by detected bias or matched keywords so
// downstream stages stay meaningful even on total model outage.

// FallbackPayloads builds both downstream requests directly from the input.
func FallbackPayloads(in TradeInput) StagePayloads {
	return StagePayloads{
		Technical: TechnicalRequest{Ticker: in.Ticker, BuyDate: in.BuyDate, SellDate: in.SellDate},
		News:      NewsRequest{Ticker: in.Ticker, BuyDate: in.BuyDate, UserBelief: in.DecisionBasis},
	}
}

// FallbackTechnical synthesizes a high-uncertainty technical analysis.
func FallbackTechnical(reason string, req TechnicalRequest) TechnicalAnalysis {
	return TechnicalAnalysis{
		Summary: fmt.Sprintf("Technical analysis for %s could not be generated (%s).", orUnknown(req.Ticker), reason),
		Trend:   TrendSideways,
		Indicators: []Indicator{
			{Name: "rsi", Value: "n/a", Interpretation: "not computed"},
			{Name: "macd", Value: "n/a", Interpretation: "not computed"},
			{Name: "bollinger_band", Value: "n/a", Interpretation: "not computed"},
		},
		RiskNotes:        []string{"Analysis unavailable; treat any conclusion about this trade as unverified."},
		UncertaintyLevel: UncertaintyHigh,
	}
}

// FallbackNews synthesizes a high-uncertainty news analysis.
func FallbackNews(reason string, req NewsRequest) NewsAnalysis {
	return NewsAnalysis{
		Summary:         fmt.Sprintf("News analysis for %s could not be generated (%s).", orUnknown(req.Ticker), reason),
		NewsSummaries:   []NewsItem{},
		MarketSentiment: "unknown",
		FactCheck: FactCheck{
			Claim:       req.UserBelief,
			Verdict:     "unverified",
			Explanation: "No coverage was analyzed.",
		},
		UncertaintyLevel: UncertaintyHigh,
	}
}

// FallbackCauses synthesizes a minimal but validator-passing cause analysis:
// one internal and one external cause of equal weight, each with evidence.
func FallbackCauses(reason string, in TradeInput) (CauseAnalysis, MarketContext, BehaviorInput) {
	causes := []RootCause{
		{
			ID:          "RC001",
			Category:    CategoryInternal,
			Subcategory: "insufficient_research",
			Title:       "Limited pre-trade research",
			Description: "The stated decision basis suggests the position was opened without independent verification.",
			ImpactScore: 5,
			ImpactLevel: "medium",
			Evidence: []Evidence{{
				Source:         "user_input",
				Type:           "user_decision",
				DataPoint:      in.DecisionBasis,
				Interpretation: "Decision basis as stated by the user.",
			}},
			TimelineRelevance: "before_buy",
		},
		{
			ID:          "RC002",
			Category:    CategoryExternal,
			Subcategory: "market_condition",
			Title:       "Unassessed market conditions",
			Description: "Market context over the holding period could not be analyzed and remains a risk factor.",
			ImpactScore: 5,
			ImpactLevel: "medium",
			Evidence: []Evidence{{
				Source:         "user_input",
				Type:           "price",
				DataPoint:      fmt.Sprintf("%s held %s to %s", orUnknown(in.Ticker), in.BuyDate, in.SellDate),
				Interpretation: "Holding window under review.",
			}},
			TimelineRelevance: "during_hold",
		},
	}
	analysis := CauseAnalysis{
		LossCheck:           fmt.Sprintf("Loss analysis could not be generated (%s).", reason),
		LossAmountPct:       "N/A",
		OneLineSummary:      "Cause attribution unavailable; defaults shown.",
		RootCauses:          causes,
		CauseBreakdown:      ComputeCauseBreakdown(causes),
		DetailedExplanation: "The analysis stage failed, so the causes above are generic placeholders rather than findings from this trade's data.",
		ConfidenceLevel:     UncertaintyLow,
	}
	market := MarketContext{
		NewsAtLossTime:          []string{},
		MarketSituationAnalysis: "",
		RelatedNews:             []string{},
	}
	behavior := BehaviorInput{
		InvestmentReason: in.DecisionBasis,
		LossCauseSummary: analysis.OneLineSummary,
		LossCauseDetails: []string{},
		ObjectiveSignals: ObjectiveSignals{
			PriceTrend:          TrendSideways,
			VolatilityLevel:     UncertaintyMedium,
			TechnicalIndicators: []Indicator{},
			NewsFacts:           []string{},
		},
		UncertaintyLevel: UncertaintyHigh,
	}
	return analysis, market, behavior
}

// biasProfile is one canned behavioral diagnosis.
type biasProfile struct {
	characterType string
	characterDesc string
	bias          Bias
	keywords      []string
}

// biasProfiles is checked in order; the first keyword hit on the stated
// investment reason wins. confirmation_bias is the default.
var biasProfiles = []biasProfile{
	{
		characterType: "Trend Surfer",
		characterDesc: "Moves with the crowd and reacts quickly to what others are doing. Building an independent thesis will sharpen these instincts.",
		bias: Bias{
			Name:        "Herding Effect",
			Code:        "herding_effect",
			Description: "Tendency to follow what the majority is doing.",
			Impact:      "When the crowd is wrong, losses arrive together.",
		},
		keywords: []string{"friend", "recommend", "everyone", "community", "forum", "reddit", "youtube", "influencer", "people are buying", "word of mouth"},
	},
	{
		characterType: "Opportunity Hunter",
		characterDesc: "Chases upside energetically and hates missing a move. Waiting one beat before entering can turn that energy into an edge.",
		bias: Bias{
			Name:        "FOMO",
			Code:        "fomo",
			Description: "Urgency driven by fear of missing out.",
			Impact:      "Rushed entries near local tops without enough analysis.",
		},
		keywords: []string{"surge", "rally", "soar", "skyrocket", "missing out", "miss the", "right now", "going up", "opportunity", "moon"},
	},
	{
		characterType: "Bargain Hunter",
		characterDesc: "Hunts for discounts and buys what looks cheap. Checking why it is cheap makes the hunt much safer.",
		bias: Bias{
			Name:        "Anchoring Effect",
			Code:        "anchoring_effect",
			Description: "Judgment anchored to a past reference price.",
			Impact:      "Fixation on the previous high hides an ongoing downtrend.",
		},
		keywords: []string{"cheap", "discount", "bargain", "bottom", "dip", "previous high", "all-time high", "used to trade", "oversold"},
	},
	{
		characterType: "News Hawk",
		characterDesc: "Tracks headlines closely and acts on fresh information. Checking whether the news is already priced in adds the missing step.",
		bias: Bias{
			Name:        "Availability Heuristic",
			Code:        "availability_heuristic",
			Description: "Overweighting recently encountered information.",
			Impact:      "Overreaction to short-term news at the cost of the long view.",
		},
		keywords: []string{"news", "article", "headline", "report", "announcement", "announced", "earnings", "press release"},
	},
}

var confirmationProfile = biasProfile{
	characterType: "Gut-Feel Trader",
	characterDesc: "Trusts instinct over analysis. A systematic review habit will turn those instincts into repeatable results.",
	bias: Bias{
		Name:        "Confirmation Bias",
		Code:        "confirmation_bias",
		Description: "Selectively accepting information that supports an existing belief.",
		Impact:      "Decisions made on conviction rather than objective analysis.",
	},
}

func matchBiasProfile(investmentReason string) biasProfile {
	lower := strings.ToLower(investmentReason)
	for _, p := range biasProfiles {
		for _, kw := range p.keywords {
			if strings.Contains(lower, kw) {
				return p
			}
		}
	}
	return confirmationProfile
}

func defaultPrimaryBias() Bias { return confirmationProfile.bias }

func defaultDecisionProblem() DecisionProblem {
	return DecisionProblem{
		ProblemType:          "Insufficient analysis",
		PsychologicalTrigger: "Time pressure or missing information",
		Situation:            "When an investment decision has to be made quickly",
		ThoughtPattern:       "Deciding on feel without detailed verification",
		Consequence:          "Exposure to risks that were never examined",
		Frequency:            "medium",
	}
}

// FallbackBehavior synthesizes a behavioral profile from keyword matching
// over the stated investment reason.
func FallbackBehavior(reason, investmentReason string) BehavioralProfile {
	p := matchBiasProfile(investmentReason)

	metrics := make(map[string]AxisScore, len(ProfileAxes))
	for _, axis := range ProfileAxes {
		score := 50
		var detected *string
		switch {
		case axis == "analysis_depth" && p.bias.Code == "confirmation_bias":
			score, detected = 45, ptr("Confirmation Bias")
		case axis == "emotional_control" && (p.bias.Code == "herding_effect" || p.bias.Code == "fomo"):
			score, detected = 40, ptr(p.bias.Name)
		case axis == "information_sensitivity" && p.bias.Code == "availability_heuristic":
			score, detected = 40, ptr(p.bias.Name)
		case axis == "risk_management" && p.bias.Code == "anchoring_effect":
			score, detected = 45, ptr(p.bias.Name)
		}
		metrics[axis] = AxisScore{Score: score, Label: AxisLabels[axis], BiasDetected: detected}
	}

	return BehavioralProfile{
		InvestorCharacter: InvestorCharacter{
			Type:           p.characterType,
			Description:    p.characterDesc,
			BehavioralBias: p.bias.Code,
		},
		ProfileMetrics: metrics,
		CognitiveAnalysis: CognitiveAnalysis{
			PrimaryBias:     p.bias,
			SecondaryBiases: []Bias{},
		},
		DecisionProblems: []DecisionProblem{defaultDecisionProblem()},
		UncertaintyLevel: UncertaintyHigh,
	}
}

func ptr(s string) *string { return &s }

// missionTemplates maps a bias code to its remediation mission.
var missionTemplates = map[string]ActionMission{
	"confirmation_bias": {
		Title:            "Find three counterarguments",
		Description:      "Before the next buy, write down at least three negative opinions or risk factors about the stock. This breaks the habit of collecting only supportive news.",
		BehavioralTarget: "Reduce confirmation bias",
	},
	"herding_effect": {
		Title:            "Write your own thesis",
		Description:      "Answer the question 'why this stock?' in at least three lines without referencing anyone else's opinion. Keep the note and compare it with the outcome.",
		BehavioralTarget: "Reduce herding",
	},
	"fomo": {
		Title:            "Apply a 24-hour waiting rule",
		Description:      "When a stock is surging, do not buy the same day. List what you would need to verify, then decide again after 24 hours.",
		BehavioralTarget: "Reduce FOMO",
	},
	"loss_aversion": {
		Title:            "Set a stop-loss before buying",
		Description:      "Decide the exact price at which you will exit before entering the position and write it down. A pre-committed stop is the first step of risk management.",
		BehavioralTarget: "Reduce loss aversion",
	},
	"anchoring_effect": {
		Title:            "Re-value the business today",
		Description:      "Estimate a fair price from current fundamentals (earnings, growth, competition) instead of the previous high. Compare it with the market price before acting.",
		BehavioralTarget: "Reduce anchoring",
	},
	"overconfidence": {
		Title:            "Review your last three trades",
		Description:      "Look at your three most recent decisions and note where the result diverged from your expectation, then identify the cause of each divergence.",
		BehavioralTarget: "Reduce overconfidence",
	},
}

// MissionsForBias returns the canned mission list for a bias code, defaulting
// to the confirmation-bias mission when the code is absent or unknown.
func MissionsForBias(code string) []ActionMission {
	tpl, ok := missionTemplates[code]
	if !ok {
		tpl = missionTemplates["confirmation_bias"]
	}
	tpl.MissionID = "M001"
	tpl.Priority = 1
	tpl.ExpectedOutcome = "Better-grounded investment decisions"
	tpl.Difficulty = "medium"
	tpl.EstimatedImpact = "high"
	return []ActionMission{tpl}
}

// MissionsForProfile keys the mission lookup off the profile's detected bias.
func MissionsForProfile(profile *BehavioralProfile) []ActionMission {
	if profile == nil {
		return MissionsForBias("")
	}
	return MissionsForBias(profile.InvestorCharacter.BehavioralBias)
}

// FallbackReport synthesizes a tutor report whose missions follow the
// behavioral profile detected upstream.
func FallbackReport(reason string, profile *BehavioralProfile) TutorReport {
	return TutorReport{
		CustomLearningPath: LearningPath{
			PathSummary:       "A learning path could not be generated.",
			LearningMaterials: []string{},
			PracticeSteps:     []string{},
			RecommendedTopics: []string{},
		},
		InvestmentAdvisor: AdvisorNote{
			AdvisorMessage:       fmt.Sprintf("The tutor message could not be generated (%s).", reason),
			RecommendedQuestions: []string{},
		},
		ActionMissions:   MissionsForProfile(profile),
		UncertaintyLevel: UncertaintyHigh,
	}
}

// FallbackChat synthesizes an expert reply naming the failure.
func FallbackChat(reason string) ChatReply {
	return ChatReply{
		Summary: "",
		Detail:  fmt.Sprintf("The answer could not be generated (%s).", reason),
	}
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "unknown ticker"
	}
	return s
}
