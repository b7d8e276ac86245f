package review

// Stage validators. Each is a pure structural check applied after
// normalization; a false result sends the runner to fallback synthesis.
// Every fallback output in this package passes its own stage validator.

// ValidatePayloads requires both downstream requests to be routable.
func ValidatePayloads(p StagePayloads) bool {
	return p.Technical.Ticker != "" && p.Technical.BuyDate != "" && p.Technical.SellDate != "" &&
		p.News.Ticker != "" && p.News.BuyDate != ""
}

// ValidateTechnical requires a summary and at least one indicator.
func ValidateTechnical(t TechnicalAnalysis) bool {
	return t.Summary != "" && len(t.Indicators) > 0
}

// ValidateNews requires a summary; an empty headline list is acceptable
// (quiet periods are real) as long as the fact check carries a verdict.
func ValidateNews(n NewsAnalysis) bool {
	return n.Summary != "" && n.FactCheck.Verdict != ""
}

// ValidateCauses enforces the category-mix invariant: at least one internal
// and one external cause, each with evidence, and ratios summing to 100.
func ValidateCauses(c CauseAnalysis) bool {
	if c.LossCheck == "" || len(c.RootCauses) == 0 {
		return false
	}
	var internal, external bool
	for _, rc := range c.RootCauses {
		switch rc.Category {
		case CategoryInternal:
			internal = true
		case CategoryExternal:
			external = true
		default:
			return false
		}
		if rc.ImpactScore < 1 || rc.ImpactScore > 10 {
			return false
		}
		if len(rc.Evidence) == 0 {
			return false
		}
	}
	if !internal || !external {
		return false
	}
	return c.CauseBreakdown.InternalRatio+c.CauseBreakdown.ExternalRatio == 100
}

// ValidateBehavior requires all six axes, a primary bias, and 1-3 decision
// problems.
func ValidateBehavior(b BehavioralProfile) bool {
	if len(b.ProfileMetrics) != len(ProfileAxes) {
		return false
	}
	for _, axis := range ProfileAxes {
		m, ok := b.ProfileMetrics[axis]
		if !ok || m.Score < 0 || m.Score > 100 {
			return false
		}
	}
	if b.CognitiveAnalysis.PrimaryBias.Name == "" {
		return false
	}
	n := len(b.DecisionProblems)
	return n >= 1 && n <= 3
}

// ValidateMissions checks the 1-3 mission contract used by both the report
// normalizer and its validator.
func ValidateMissions(missions []ActionMission) bool {
	if len(missions) < 1 || len(missions) > 3 {
		return false
	}
	for _, m := range missions {
		if m.MissionID == "" || m.Title == "" || m.Description == "" || m.BehavioralTarget == "" {
			return false
		}
		if m.Priority < 1 || m.Priority > 3 {
			return false
		}
	}
	return true
}

// ValidateReport requires an advisor message and a valid mission list.
func ValidateReport(r TutorReport) bool {
	return r.InvestmentAdvisor.AdvisorMessage != "" && ValidateMissions(r.ActionMissions)
}

// ValidateChat requires some reply text in either field.
func ValidateChat(c ChatReply) bool {
	return c.Summary != "" || c.Detail != ""
}
