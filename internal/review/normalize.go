package review

import "fmt"

// Stage normalizers. Each is a total function from an arbitrary parsed value
// to a fully-populated stage output: present and well-typed fields are
// coerced, everything else takes a documented neutral default. Enumerated
// fields outside their member set fall back to the most conservative member.

// NormalizePayloads coerces the intake stage's parsed output, backfilling any
// missing field from the raw trade input.
func NormalizePayloads(parsed map[string]any, in TradeInput) StagePayloads {
	tech := asObject(parsed["technical_request"])
	news := asObject(parsed["news_request"])
	return StagePayloads{
		Technical: TechnicalRequest{
			Ticker:   stringOr(tech["ticker"], in.Ticker),
			BuyDate:  stringOr(tech["buy_date"], in.BuyDate),
			SellDate: stringOr(tech["sell_date"], in.SellDate),
		},
		News: NewsRequest{
			Ticker:     stringOr(news["ticker"], in.Ticker),
			BuyDate:    stringOr(news["buy_date"], in.BuyDate),
			UserBelief: stringOr(news["user_belief"], in.DecisionBasis),
		},
	}
}

// NormalizeTechnical accepts {"stock_analysis": {...}} or the bare shape.
func NormalizeTechnical(parsed map[string]any) TechnicalAnalysis {
	v := unwrap(parsed, "stock_analysis", "summary", "price_move", "trend")
	move := asObject(v["price_move"])
	return TechnicalAnalysis{
		Summary: asString(v["summary"]),
		PriceMove: PriceMove{
			StartPrice: floatOr(move["start_price"], 0),
			EndPrice:   floatOr(move["end_price"], 0),
			Highest:    floatOr(move["highest"], 0),
			Lowest:     floatOr(move["lowest"], 0),
			PctChange:  floatOr(move["pct_change"], 0),
		},
		Trend:            enumOr(v["trend"], trendMembers, TrendSideways),
		Indicators:       normalizeIndicators(v["indicators"]),
		RiskNotes:        stringList(v["risk_notes"]),
		UncertaintyLevel: enumOr(v["uncertainty_level"], uncertaintyMembers, UncertaintyHigh),
	}
}

func normalizeIndicators(v any) []Indicator {
	items := asList(v)
	out := make([]Indicator, 0, len(items))
	for _, item := range items {
		m := asObject(item)
		name := stringOr(m["name"], "")
		if name == "" {
			continue
		}
		out = append(out, Indicator{
			Name:           name,
			Value:          asString(m["value"]),
			Interpretation: asString(m["interpretation"]),
		})
	}
	return out
}

// NormalizeNews accepts {"news_analysis": {...}} or the bare shape.
func NormalizeNews(parsed map[string]any) NewsAnalysis {
	v := unwrap(parsed, "news_analysis", "summary", "news_summaries", "market_sentiment")
	fc := asObject(v["fact_check"])
	items := asList(v["news_summaries"])
	summaries := make([]NewsItem, 0, len(items))
	for _, item := range items {
		m := asObject(item)
		title := stringOr(m["title"], "")
		if title == "" {
			continue
		}
		summaries = append(summaries, NewsItem{
			Title:   title,
			Date:    asString(m["date"]),
			Source:  asString(m["source"]),
			Summary: asString(m["summary"]),
		})
	}
	return NewsAnalysis{
		Summary:         asString(v["summary"]),
		NewsSummaries:   summaries,
		MarketSentiment: asString(v["market_sentiment"]),
		FactCheck: FactCheck{
			Claim:       asString(fc["claim"]),
			Verdict:     enumOr(fc["verdict"], []string{"supported", "refuted", "unverified"}, "unverified"),
			Explanation: asString(fc["explanation"]),
		},
		UncertaintyLevel: enumOr(v["uncertainty_level"], uncertaintyMembers, UncertaintyHigh),
	}
}

// NormalizeCauses coerces the causal stage's three outputs. The
// internal/external breakdown is always recomputed from impact scores; the
// model's own ratios are discarded.
func NormalizeCauses(parsed map[string]any, in TradeInput) (CauseAnalysis, MarketContext, BehaviorInput) {
	cv := unwrap(parsed, "loss_cause_analysis", "loss_check", "root_causes")
	mv := unwrap(parsed, "market_context_analysis", "news_at_loss_time", "market_situation_analysis")
	bv := unwrap(parsed, "behavior_input", "investment_reason", "objective_signals")

	causes := CauseAnalysis{
		LossCheck:           asString(cv["loss_check"]),
		LossAmountPct:       asString(cv["loss_amount_pct"]),
		OneLineSummary:      asString(cv["one_line_summary"]),
		RootCauses:          normalizeRootCauses(cv["root_causes"]),
		DetailedExplanation: asString(cv["detailed_explanation"]),
		ConfidenceLevel:     enumOr(cv["confidence_level"], uncertaintyMembers, UncertaintyLow),
	}
	causes.CauseBreakdown = ComputeCauseBreakdown(causes.RootCauses)

	market := MarketContext{
		NewsAtLossTime:          stringList(mv["news_at_loss_time"]),
		MarketSituationAnalysis: asString(mv["market_situation_analysis"]),
		RelatedNews:             stringList(mv["related_news"]),
	}

	signals := asObject(bv["objective_signals"])
	behavior := BehaviorInput{
		InvestmentReason: stringOr(bv["investment_reason"], in.DecisionBasis),
		LossCauseSummary: asString(bv["loss_cause_summary"]),
		LossCauseDetails: stringList(bv["loss_cause_details"]),
		ObjectiveSignals: ObjectiveSignals{
			PriceTrend:          enumOr(signals["price_trend"], trendMembers, TrendSideways),
			VolatilityLevel:     enumOr(signals["volatility_level"], uncertaintyMembers, UncertaintyMedium),
			TechnicalIndicators: normalizeIndicators(signals["technical_indicators"]),
			NewsFacts:           stringList(signals["news_facts"]),
		},
		UncertaintyLevel: enumOr(bv["uncertainty_level"], uncertaintyMembers, UncertaintyHigh),
	}
	return causes, market, behavior
}

func normalizeRootCauses(v any) []RootCause {
	items := asList(v)
	out := make([]RootCause, 0, len(items))
	for i, item := range items {
		m := asObject(item)
		score := intIn(m["impact_score"], 1, 10, 5)
		out = append(out, RootCause{
			ID:                stringOr(m["id"], fmt.Sprintf("RC%03d", i+1)),
			Category:          enumOr(m["category"], []string{CategoryInternal, CategoryExternal}, CategoryExternal),
			Subcategory:       asString(m["subcategory"]),
			Title:             asString(m["title"]),
			Description:       asString(m["description"]),
			ImpactScore:       score,
			ImpactLevel:       enumOr(m["impact_level"], []string{"low", "medium", "high", "critical"}, impactLevelFor(score)),
			Evidence:          normalizeEvidence(m["evidence"]),
			TimelineRelevance: enumOr(m["timeline_relevance"], []string{"before_buy", "during_hold", "at_sell", "throughout"}, "throughout"),
		})
	}
	return out
}

func impactLevelFor(score int) string {
	switch {
	case score <= 3:
		return "low"
	case score <= 6:
		return "medium"
	case score <= 8:
		return "high"
	default:
		return "critical"
	}
}

func normalizeEvidence(v any) []Evidence {
	items := asList(v)
	out := make([]Evidence, 0, len(items))
	for _, item := range items {
		m := asObject(item)
		point := stringOr(m["data_point"], "")
		if point == "" {
			continue
		}
		out = append(out, Evidence{
			Source:         stringOr(m["source"], "user_input"),
			Type:           asString(m["type"]),
			DataPoint:      point,
			Interpretation: asString(m["interpretation"]),
		})
	}
	return out
}

// ComputeCauseBreakdown derives the internal/external split from the sum of
// impact scores per category. An empty list splits 50/50.
func ComputeCauseBreakdown(causes []RootCause) CauseBreakdown {
	var internal, external int
	for _, c := range causes {
		if c.Category == CategoryInternal {
			internal += c.ImpactScore
		} else {
			external += c.ImpactScore
		}
	}
	total := internal + external
	if total == 0 {
		return CauseBreakdown{InternalRatio: 50, ExternalRatio: 50}
	}
	ratio := int(float64(internal)/float64(total)*100 + 0.5)
	return CauseBreakdown{InternalRatio: ratio, ExternalRatio: 100 - ratio}
}

// NormalizeBehavior accepts {"behavior_profile": {...}} or the bare shape.
func NormalizeBehavior(parsed map[string]any) BehavioralProfile {
	v := unwrap(parsed, "behavior_profile", "investor_character", "profile_metrics", "cognitive_analysis")
	char := asObject(v["investor_character"])
	cog := asObject(v["cognitive_analysis"])

	metrics := make(map[string]AxisScore, len(ProfileAxes))
	raw := asObject(v["profile_metrics"])
	for _, axis := range ProfileAxes {
		m := asObject(raw[axis])
		var detected *string
		if s := stringOr(m["bias_detected"], ""); s != "" && s != "null" {
			detected = &s
		}
		metrics[axis] = AxisScore{
			Score:        intIn(m["score"], 0, 100, 50),
			Label:        AxisLabels[axis],
			BiasDetected: detected,
		}
	}

	problems := normalizeDecisionProblems(v["decision_problems"])
	if len(problems) == 0 {
		problems = []DecisionProblem{defaultDecisionProblem()}
	}

	return BehavioralProfile{
		InvestorCharacter: InvestorCharacter{
			Type:           stringOr(char["type"], "Gut-Feel Trader"),
			Description:    stringOr(char["description"], "Leans on instinct over analysis. Building a systematic review habit will pay off."),
			BehavioralBias: stringOr(char["behavioral_bias"], "confirmation_bias"),
		},
		ProfileMetrics: metrics,
		CognitiveAnalysis: CognitiveAnalysis{
			PrimaryBias:     normalizeBias(cog["primary_bias"], defaultPrimaryBias()),
			SecondaryBiases: normalizeBiasList(cog["secondary_biases"]),
		},
		DecisionProblems: problems,
		UncertaintyLevel: enumOr(v["uncertainty_level"], uncertaintyMembers, UncertaintyHigh),
	}
}

func normalizeBias(v any, def Bias) Bias {
	m := asObject(v)
	if len(m) == 0 {
		return def
	}
	return Bias{
		Name:        stringOr(m["name"], def.Name),
		Code:        stringOr(m["code"], def.Code),
		Description: stringOr(m["description"], def.Description),
		Impact:      stringOr(m["impact"], def.Impact),
	}
}

func normalizeBiasList(v any) []Bias {
	items := asList(v)
	out := make([]Bias, 0, len(items))
	for _, item := range items {
		m := asObject(item)
		name := stringOr(m["name"], "")
		if name == "" {
			continue
		}
		out = append(out, Bias{
			Name:        name,
			Code:        asString(m["code"]),
			Description: asString(m["description"]),
			Impact:      asString(m["impact"]),
		})
	}
	return out
}

func normalizeDecisionProblems(v any) []DecisionProblem {
	items := asList(v)
	out := make([]DecisionProblem, 0, len(items))
	for _, item := range items {
		m := asObject(item)
		pt := stringOr(m["problem_type"], "")
		if pt == "" {
			continue
		}
		out = append(out, DecisionProblem{
			ProblemType:          pt,
			PsychologicalTrigger: asString(m["psychological_trigger"]),
			Situation:            asString(m["situation"]),
			ThoughtPattern:       asString(m["thought_pattern"]),
			Consequence:          asString(m["consequence"]),
			Frequency:            enumOr(m["frequency"], []string{"low", "medium", "high"}, "medium"),
		})
		if len(out) == 3 {
			break
		}
	}
	return out
}

// NormalizeReport accepts {"review_report": {...}} or the bare shape. Missions
// that fail validation are replaced by the bias-keyed lookup.
func NormalizeReport(parsed map[string]any, profile *BehavioralProfile) TutorReport {
	v := unwrap(parsed, "review_report", "custom_learning_path", "investment_advisor", "action_missions")
	path := asObject(v["custom_learning_path"])
	advisor := asObject(v["investment_advisor"])

	missions := normalizeMissions(v["action_missions"])
	if !ValidateMissions(missions) {
		missions = MissionsForProfile(profile)
	}

	return TutorReport{
		CustomLearningPath: LearningPath{
			PathSummary:       asString(path["path_summary"]),
			LearningMaterials: stringList(path["learning_materials"]),
			PracticeSteps:     stringList(path["practice_steps"]),
			RecommendedTopics: stringList(path["recommended_topics"]),
		},
		InvestmentAdvisor: AdvisorNote{
			AdvisorMessage:       asString(advisor["advisor_message"]),
			RecommendedQuestions: stringList(advisor["recommended_questions"]),
		},
		ActionMissions:   missions,
		UncertaintyLevel: enumOr(v["uncertainty_level"], uncertaintyMembers, UncertaintyHigh),
	}
}

func normalizeMissions(v any) []ActionMission {
	items := asList(v)
	out := make([]ActionMission, 0, len(items))
	for i, item := range items {
		m := asObject(item)
		title := stringOr(m["title"], "")
		if title == "" {
			continue
		}
		out = append(out, ActionMission{
			MissionID:        stringOr(m["mission_id"], fmt.Sprintf("M%03d", i+1)),
			Priority:         intIn(m["priority"], 1, 3, i+1),
			Title:            title,
			Description:      asString(m["description"]),
			BehavioralTarget: asString(m["behavioral_target"]),
			ExpectedOutcome:  asString(m["expected_outcome"]),
			Difficulty:       enumOr(m["difficulty"], []string{"easy", "medium", "hard"}, "medium"),
			EstimatedImpact:  enumOr(m["estimated_impact"], []string{"low", "medium", "high"}, "medium"),
		})
	}
	return out
}

// NormalizeChat coerces the expert stage reply. When the parsed value is
// unusable, the raw text lands in the detail field so the user still sees
// the model's answer.
func NormalizeChat(parsed map[string]any, raw string) ChatReply {
	if len(parsed) == 0 {
		return ChatReply{Detail: raw}
	}
	return ChatReply{
		Summary: asString(parsed["summary"]),
		Detail:  asString(parsed["detail"]),
	}
}
