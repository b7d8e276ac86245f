// Package pipeline wires the review stages into executable graphs. Stages
// declare the state keys they require and provide; the graph checks those
// declarations at construction time so a miswired ordering fails before any
// model call is made.
package pipeline

import (
	"fmt"

	"lossreview/internal/review"
)

// State keys used in stage Requires/Provides declarations.
const (
	KeyInput         = "input"
	KeyPayloads      = "payloads"
	KeyTechnical     = "technical"
	KeyNews          = "news"
	KeyCauses        = "causes"
	KeyMarketContext = "market_context"
	KeyBehaviorInput = "behavior_input"
	KeyBehavior      = "behavior"
	KeyReport        = "report"
	KeyReply         = "reply"
)

// State is the accumulated result of a pipeline run. Every field beyond the
// input starts nil and is set exactly once by the stage that provides it.
type State struct {
	RequestID string            `json:"request_id"`
	Input     review.TradeInput `json:"input"`

	InputError *review.InputError `json:"input_error,omitempty"`

	Payloads      *review.StagePayloads     `json:"payloads,omitempty"`
	Technical     *review.TechnicalAnalysis `json:"technical,omitempty"`
	News          *review.NewsAnalysis      `json:"news,omitempty"`
	Causes        *review.CauseAnalysis     `json:"causes,omitempty"`
	MarketContext *review.MarketContext     `json:"market_context,omitempty"`
	BehaviorInput *review.BehaviorInput     `json:"behavior_input,omitempty"`
	Behavior      *review.BehavioralProfile `json:"behavior,omitempty"`
	Report        *review.TutorReport       `json:"report,omitempty"`
	Reply         *review.ChatReply         `json:"reply,omitempty"`

	// History is the expert-QA conversation so far, oldest first. It rides
	// in with the request rather than being provided by a stage.
	History []review.ChatMessage `json:"history,omitempty"`

	// Degraded records "stage: reason" for every stage that fell back.
	Degraded []string `json:"degraded,omitempty"`
}

// Delta is the write set of one stage. Stages never mutate State directly;
// they return a Delta and the graph merges it, which keeps the parallel
// branches free of shared writes.
type Delta struct {
	InputError    *review.InputError
	Payloads      *review.StagePayloads
	Technical     *review.TechnicalAnalysis
	News          *review.NewsAnalysis
	Causes        *review.CauseAnalysis
	MarketContext *review.MarketContext
	BehaviorInput *review.BehaviorInput
	Behavior      *review.BehavioralProfile
	Report        *review.TutorReport
	Reply         *review.ChatReply
	Degraded      []string
}

// apply merges a delta into the state. Double-writes to the same key mean a
// stage graph bug, so they error rather than silently overwrite.
func (s *State) apply(stage string, d Delta) error {
	set := func(key string, have, want bool) error {
		if !want {
			return nil
		}
		if have {
			return fmt.Errorf("pipeline: stage %s rewrites %s", stage, key)
		}
		return nil
	}
	if err := set(KeyPayloads, s.Payloads != nil, d.Payloads != nil); err != nil {
		return err
	}
	if err := set(KeyTechnical, s.Technical != nil, d.Technical != nil); err != nil {
		return err
	}
	if err := set(KeyNews, s.News != nil, d.News != nil); err != nil {
		return err
	}
	if err := set(KeyCauses, s.Causes != nil, d.Causes != nil); err != nil {
		return err
	}
	if err := set(KeyMarketContext, s.MarketContext != nil, d.MarketContext != nil); err != nil {
		return err
	}
	if err := set(KeyBehaviorInput, s.BehaviorInput != nil, d.BehaviorInput != nil); err != nil {
		return err
	}
	if err := set(KeyBehavior, s.Behavior != nil, d.Behavior != nil); err != nil {
		return err
	}
	if err := set(KeyReport, s.Report != nil, d.Report != nil); err != nil {
		return err
	}

	if d.InputError != nil {
		s.InputError = d.InputError
	}
	if d.Payloads != nil {
		s.Payloads = d.Payloads
	}
	if d.Technical != nil {
		s.Technical = d.Technical
	}
	if d.News != nil {
		s.News = d.News
	}
	if d.Causes != nil {
		s.Causes = d.Causes
	}
	if d.MarketContext != nil {
		s.MarketContext = d.MarketContext
	}
	if d.BehaviorInput != nil {
		s.BehaviorInput = d.BehaviorInput
	}
	if d.Behavior != nil {
		s.Behavior = d.Behavior
	}
	if d.Report != nil {
		s.Report = d.Report
	}
	if d.Reply != nil {
		s.Reply = d.Reply
	}
	s.Degraded = append(s.Degraded, d.Degraded...)
	return nil
}

// has reports whether a declared state key is populated.
func (s *State) has(key string) bool {
	switch key {
	case KeyInput:
		return true
	case KeyPayloads:
		return s.Payloads != nil
	case KeyTechnical:
		return s.Technical != nil
	case KeyNews:
		return s.News != nil
	case KeyCauses:
		return s.Causes != nil
	case KeyMarketContext:
		return s.MarketContext != nil
	case KeyBehaviorInput:
		return s.BehaviorInput != nil
	case KeyBehavior:
		return s.Behavior != nil
	case KeyReport:
		return s.Report != nil
	case KeyReply:
		return s.Reply != nil
	default:
		return false
	}
}
