package pipeline

import (
	"context"
	"strings"
	"time"

	"lossreview/internal/review"
)

// StageSpec declares one stage: the state keys it reads, the keys it must
// write, and the run function. Run never returns an error for model trouble;
// every model failure degrades into a fallback record.
type StageSpec struct {
	Key      string
	Requires []string
	Provides []string
	Run      func(ctx context.Context, rt *Runtime, s *State) (Delta, error)
}

func degraded(stage, reason string) []string {
	return []string{stage + ": " + reason}
}

// requiredInputFields returns the blank required fields of a trade input.
func requiredInputFields(in review.TradeInput) []string {
	var missing []string
	if strings.TrimSpace(in.Ticker) == "" {
		missing = append(missing, "ticker")
	}
	if strings.TrimSpace(in.BuyDate) == "" {
		missing = append(missing, "buy_date")
	}
	if strings.TrimSpace(in.DecisionBasis) == "" {
		missing = append(missing, "decision_basis")
	}
	if strings.TrimSpace(in.SellDate) == "" && in.PositionStatus != "holding" {
		missing = append(missing, "sell_date")
	}
	return missing
}

// PrepareInput applies input-level defaults before the graph runs. A position
// still held reviews the paper loss as of today, so the sell date becomes the
// current date.
func PrepareInput(in review.TradeInput, now time.Time) review.TradeInput {
	if in.PositionStatus == "holding" && strings.TrimSpace(in.SellDate) == "" {
		in.SellDate = now.Format("2006-01-02")
	}
	// Without an explicit question the expert reviews the user's own
	// stated reasoning.
	if strings.TrimSpace(in.UserMessage) == "" {
		in.UserMessage = in.DecisionBasis
	}
	return in
}

// StageIntake validates the trade input and projects the payloads for the two
// parallel analysts. Missing required fields short-circuit the whole run.
func StageIntake() StageSpec {
	return StageSpec{
		Key:      "intake",
		Requires: []string{KeyInput},
		Provides: []string{KeyPayloads},
		Run: func(ctx context.Context, rt *Runtime, s *State) (Delta, error) {
			if missing := requiredInputFields(s.Input); len(missing) > 0 {
				p := review.FallbackPayloads(s.Input)
				return Delta{
					InputError: &review.InputError{
						Message: "missing required fields: " + strings.Join(missing, ", "),
						Fields:  missing,
					},
					Payloads: &p,
				}, nil
			}

			parsed, _, reason := rt.callModel(ctx, "intake", s.Input)
			if reason != "" {
				p := review.FallbackPayloads(s.Input)
				return Delta{Payloads: &p, Degraded: degraded("intake", reason)}, nil
			}
			p := review.NormalizePayloads(parsed, s.Input)
			if !review.ValidatePayloads(p) {
				p = review.FallbackPayloads(s.Input)
				return Delta{Payloads: &p, Degraded: degraded("intake", ReasonSchemaInvalid)}, nil
			}
			return Delta{Payloads: &p}, nil
		},
	}
}

// StageTechnical analyzes price action over the holding period.
func StageTechnical() StageSpec {
	return StageSpec{
		Key:      "technical",
		Requires: []string{KeyPayloads},
		Provides: []string{KeyTechnical},
		Run: func(ctx context.Context, rt *Runtime, s *State) (Delta, error) {
			req := s.Payloads.Technical
			parsed, _, reason := rt.callModel(ctx, "technical", req)
			if reason != "" {
				t := review.FallbackTechnical(reason, req)
				return Delta{Technical: &t, Degraded: degraded("technical", reason)}, nil
			}
			t := review.NormalizeTechnical(parsed)
			if !review.ValidateTechnical(t) {
				t = review.FallbackTechnical(ReasonSchemaInvalid, req)
				return Delta{Technical: &t, Degraded: degraded("technical", ReasonSchemaInvalid)}, nil
			}
			return Delta{Technical: &t}, nil
		},
	}
}

// StageNews reviews coverage over the holding window and fact-checks the
// user's stated belief.
func StageNews() StageSpec {
	return StageSpec{
		Key:      "news",
		Requires: []string{KeyPayloads},
		Provides: []string{KeyNews},
		Run: func(ctx context.Context, rt *Runtime, s *State) (Delta, error) {
			req := s.Payloads.News
			parsed, _, reason := rt.callModel(ctx, "news", req)
			if reason != "" {
				n := review.FallbackNews(reason, req)
				return Delta{News: &n, Degraded: degraded("news", reason)}, nil
			}
			n := review.NormalizeNews(parsed)
			if !review.ValidateNews(n) {
				n = review.FallbackNews(ReasonSchemaInvalid, req)
				return Delta{News: &n, Degraded: degraded("news", ReasonSchemaInvalid)}, nil
			}
			return Delta{News: &n}, nil
		},
	}
}

type causesPayload struct {
	Input     review.TradeInput         `json:"trade_input"`
	Technical *review.TechnicalAnalysis `json:"technical_analysis"`
	News      *review.NewsAnalysis      `json:"news_analysis"`
}

// StageCauses attributes the loss to internal and external root causes and
// prepares the bridge payload for the behavior stage.
func StageCauses() StageSpec {
	return StageSpec{
		Key:      "causes",
		Requires: []string{KeyTechnical, KeyNews},
		Provides: []string{KeyCauses, KeyMarketContext, KeyBehaviorInput},
		Run: func(ctx context.Context, rt *Runtime, s *State) (Delta, error) {
			payload := causesPayload{Input: s.Input, Technical: s.Technical, News: s.News}
			parsed, _, reason := rt.callModel(ctx, "causes", payload)
			if reason != "" {
				c, m, b := review.FallbackCauses(reason, s.Input)
				return Delta{Causes: &c, MarketContext: &m, BehaviorInput: &b, Degraded: degraded("causes", reason)}, nil
			}
			c, m, b := review.NormalizeCauses(parsed, s.Input)
			if !review.ValidateCauses(c) {
				c, m, b = review.FallbackCauses(ReasonSchemaInvalid, s.Input)
				return Delta{Causes: &c, MarketContext: &m, BehaviorInput: &b, Degraded: degraded("causes", ReasonSchemaInvalid)}, nil
			}
			return Delta{Causes: &c, MarketContext: &m, BehaviorInput: &b}, nil
		},
	}
}

// StageBehavior diagnoses cognitive bias from the user's rationale and the
// objective signals.
func StageBehavior() StageSpec {
	return StageSpec{
		Key:      "behavior",
		Requires: []string{KeyBehaviorInput},
		Provides: []string{KeyBehavior},
		Run: func(ctx context.Context, rt *Runtime, s *State) (Delta, error) {
			parsed, _, reason := rt.callModel(ctx, "behavior", s.BehaviorInput)
			if reason != "" {
				b := review.FallbackBehavior(reason, s.BehaviorInput.InvestmentReason)
				return Delta{Behavior: &b, Degraded: degraded("behavior", reason)}, nil
			}
			b := review.NormalizeBehavior(parsed)
			if !review.ValidateBehavior(b) {
				b = review.FallbackBehavior(ReasonSchemaInvalid, s.BehaviorInput.InvestmentReason)
				return Delta{Behavior: &b, Degraded: degraded("behavior", ReasonSchemaInvalid)}, nil
			}
			return Delta{Behavior: &b}, nil
		},
	}
}

type reportPayload struct {
	Causes   *review.CauseAnalysis     `json:"loss_cause_analysis"`
	Behavior *review.BehavioralProfile `json:"behavior_profile"`
}

// StageReport writes the learning report and action missions.
func StageReport() StageSpec {
	return StageSpec{
		Key:      "report",
		Requires: []string{KeyCauses, KeyBehavior},
		Provides: []string{KeyReport},
		Run: func(ctx context.Context, rt *Runtime, s *State) (Delta, error) {
			payload := reportPayload{Causes: s.Causes, Behavior: s.Behavior}
			parsed, _, reason := rt.callModel(ctx, "report", payload)
			if reason != "" {
				r := review.FallbackReport(reason, s.Behavior)
				return Delta{Report: &r, Degraded: degraded("report", reason)}, nil
			}
			r := review.NormalizeReport(parsed, s.Behavior)
			if !review.ValidateReport(r) {
				r = review.FallbackReport(ReasonSchemaInvalid, s.Behavior)
				return Delta{Report: &r, Degraded: degraded("report", ReasonSchemaInvalid)}, nil
			}
			return Delta{Report: &r}, nil
		},
	}
}

// StageChatEntry gates the expert QA stage. Without a completed analysis the
// reply points the user at the analyze flow instead of guessing.
func StageChatEntry() StageSpec {
	return StageSpec{
		Key: "chatentry",
		Run: func(ctx context.Context, rt *Runtime, s *State) (Delta, error) {
			if strings.TrimSpace(s.Input.UserMessage) == "" {
				return Delta{
					Reply:    &review.ChatReply{Summary: "Please ask a question about your reviewed trade."},
					Degraded: degraded("chatentry", "empty question"),
				}, nil
			}
			if s.Causes == nil || s.Behavior == nil {
				return Delta{
					Reply: &review.ChatReply{
						Summary: "No completed review is available for this session yet.",
						Detail:  "Run the loss review first, then ask follow-up questions about its findings.",
					},
					Degraded: degraded("chatentry", "analysis missing"),
				}, nil
			}
			return Delta{}, nil
		},
	}
}

type expertPayload struct {
	Question string                    `json:"question"`
	History  []review.ChatMessage      `json:"history,omitempty"`
	Causes   *review.CauseAnalysis     `json:"loss_cause_analysis"`
	Behavior *review.BehavioralProfile `json:"behavior_profile"`
	Report   *review.TutorReport       `json:"review_report,omitempty"`
}

// chatHistoryLimit caps how many prior turns ride along with a question.
const chatHistoryLimit = 10

func recentHistory(history []review.ChatMessage) []review.ChatMessage {
	if len(history) > chatHistoryLimit {
		return history[len(history)-chatHistoryLimit:]
	}
	return history
}

// StageExpert answers a follow-up question grounded in the stored analysis.
func StageExpert() StageSpec {
	return StageSpec{
		Key:      "expert",
		Provides: []string{KeyReply},
		Run: func(ctx context.Context, rt *Runtime, s *State) (Delta, error) {
			if s.Reply != nil {
				// Entry stage already produced the reply.
				return Delta{}, nil
			}
			payload := expertPayload{
				Question: s.Input.UserMessage,
				History:  recentHistory(s.History),
				Causes:   s.Causes,
				Behavior: s.Behavior,
				Report:   s.Report,
			}
			parsed, raw, reason := rt.callModel(ctx, "expert", payload)
			if reason != "" {
				c := review.FallbackChat(reason)
				return Delta{Reply: &c, Degraded: degraded("expert", reason)}, nil
			}
			c := review.NormalizeChat(parsed, raw)
			if !review.ValidateChat(c) {
				c = review.FallbackChat(ReasonSchemaInvalid)
				return Delta{Reply: &c, Degraded: degraded("expert", ReasonSchemaInvalid)}, nil
			}
			return Delta{Reply: &c}, nil
		},
	}
}
