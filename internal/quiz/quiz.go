// Package quiz generates the three-item learning check from a behavioral
// profile: two fixed-answer multiple-choice questions and one reflection
// question with per-option remediation text.
package quiz

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"lossreview/internal/jsonx"
	"lossreview/internal/llm"
	"lossreview/internal/promptstore"
	"lossreview/internal/review"
)

// Generator produces quiz sets with the same call/parse/fallback discipline
// as the pipeline stages.
type Generator struct {
	Gateway llm.Gateway
	Prompts promptstore.Store
	Log     *zap.Logger
}

func NewGenerator(gw llm.Gateway, prompts promptstore.Store, log *zap.Logger) *Generator {
	if prompts == nil {
		prompts = promptstore.NewMemory()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Generator{Gateway: gw, Prompts: prompts, Log: log}
}

// Generate returns a quiz set for the profile. Any failure yields the fixed
// fallback set, never an error.
func (g *Generator) Generate(ctx context.Context, profile review.BehavioralProfile) review.QuizSet {
	prompt, _, err := g.Prompts.Get("quiz")
	if err != nil {
		g.Log.Warn("quiz prompt lookup failed", zap.Error(err))
		return Fallback()
	}
	body, err := json.Marshal(profile)
	if err != nil {
		return Fallback()
	}
	ctx = llm.WithStage(ctx, "quiz")
	raw, err := g.Gateway.Generate(ctx, prompt, []llm.Message{{Role: "user", Content: string(body)}}, nil)
	if err != nil {
		g.Log.Warn("quiz call failed", zap.Error(err))
		return Fallback()
	}
	parsed, ok := jsonx.Extract(raw)
	if !ok {
		g.Log.Warn("quiz output unparseable")
		return Fallback()
	}
	set := Normalize(parsed)
	if !Validate(set) {
		g.Log.Warn("quiz output schema invalid")
		return Fallback()
	}
	return set
}

// Normalize coerces a parsed quiz payload, accepting either the wrapped
// {"quiz_set": {...}} form or a bare quiz set object.
func Normalize(parsed map[string]any) review.QuizSet {
	m := parsed
	if inner, ok := parsed["quiz_set"].(map[string]any); ok {
		m = inner
	}
	set := review.QuizSet{}
	if s, ok := m["quiz_purpose"].(string); ok {
		set.QuizPurpose = s
	}
	items, _ := m["quizzes"].([]any)
	for _, it := range items {
		qm, ok := it.(map[string]any)
		if !ok {
			continue
		}
		set.Quizzes = append(set.Quizzes, normalizeQuiz(qm))
	}
	return set
}

func normalizeQuiz(m map[string]any) review.Quiz {
	q := review.Quiz{}
	if s, ok := m["quiz_id"].(string); ok {
		q.QuizID = s
	}
	if s, ok := m["quiz_type"].(string); ok && (s == "multiple_choice" || s == "reflection") {
		q.QuizType = s
	} else {
		q.QuizType = "multiple_choice"
	}
	if s, ok := m["question"].(string); ok {
		q.Question = s
	}
	if b, ok := m["has_fixed_answer"].(bool); ok {
		q.HasFixedAnswer = b
	}
	if b, ok := m["solution_required"].(bool); ok {
		q.SolutionRequired = b
	}
	if f, ok := m["correct_answer_index"].(float64); ok {
		idx := int(f)
		if idx >= 0 && idx < 4 {
			q.CorrectAnswerIndex = idx
		}
	}
	opts, _ := m["options"].([]any)
	for _, o := range opts {
		switch v := o.(type) {
		case string:
			q.Options = append(q.Options, review.QuizOption{Text: v})
		case map[string]any:
			opt := review.QuizOption{}
			if s, ok := v["text"].(string); ok {
				opt.Text = s
			}
			if s, ok := v["solution"].(string); ok {
				opt.Solution = s
			}
			q.Options = append(q.Options, opt)
		}
	}
	return q
}

// Validate enforces the fixed quiz contract: exactly three items, each with
// four non-empty options; two fixed-answer multiple-choice questions and one
// reflection question whose options all carry remediation text.
func Validate(set review.QuizSet) bool {
	if len(set.Quizzes) != 3 {
		return false
	}
	var mc, refl int
	for _, q := range set.Quizzes {
		if q.Question == "" || len(q.Options) != 4 {
			return false
		}
		for _, o := range q.Options {
			if o.Text == "" {
				return false
			}
		}
		switch q.QuizType {
		case "multiple_choice":
			if !q.HasFixedAnswer || q.CorrectAnswerIndex < 0 || q.CorrectAnswerIndex > 3 {
				return false
			}
			mc++
		case "reflection":
			if q.HasFixedAnswer {
				return false
			}
			for _, o := range q.Options {
				if o.Solution == "" {
					return false
				}
			}
			refl++
		default:
			return false
		}
	}
	return mc == 2 && refl == 1
}

// Fallback is the fixed quiz set used when generation fails.
func Fallback() review.QuizSet {
	return review.QuizSet{
		QuizPurpose: "Check the habits that most often lead to avoidable losses.",
		Quizzes: []review.Quiz{
			{
				QuizID:   "Q1",
				QuizType: "multiple_choice",
				Question: "Before buying a stock, which step most reduces the risk of a one-sided decision?",
				Options: []review.QuizOption{
					{Text: "Reading more articles that agree with your view"},
					{Text: "Writing down at least three risks or counterarguments"},
					{Text: "Checking how many people online are buying it"},
					{Text: "Waiting for the price to rise first"},
				},
				HasFixedAnswer:     true,
				CorrectAnswerIndex: 1,
			},
			{
				QuizID:   "Q2",
				QuizType: "multiple_choice",
				Question: "A position is down 15% and the original thesis no longer holds. What does disciplined risk management suggest?",
				Options: []review.QuizOption{
					{Text: "Hold until it recovers to the purchase price"},
					{Text: "Double the position to lower the average cost"},
					{Text: "Re-evaluate against the pre-committed exit rule"},
					{Text: "Stop checking the price"},
				},
				HasFixedAnswer:     true,
				CorrectAnswerIndex: 2,
			},
			{
				QuizID:   "Q3",
				QuizType: "reflection",
				Question: "What usually triggers your buy decisions?",
				Options: []review.QuizOption{
					{Text: "A tip from someone I trust", Solution: "Outside opinions are a starting point, not a thesis. Write your own three-line rationale before acting on a tip."},
					{Text: "A stock that is already surging", Solution: "Chasing momentum invites FOMO. Apply a 24-hour waiting rule before buying anything that is spiking."},
					{Text: "My own research and valuation", Solution: "Good basis. Stress-test it by listing the strongest argument against your position."},
					{Text: "A price that looks cheap versus its old high", Solution: "A past price is an anchor, not a valuation. Re-value the business from current fundamentals."},
				},
				HasFixedAnswer:   false,
				SolutionRequired: true,
			},
		},
	}
}
