package llm

import "context"

// FakeGateway returns deterministic, minimal JSON payloads per stage for
// offline runs and tests. Responses can be overridden per stage; an override
// of "" makes that stage fail.
type FakeGateway struct {
	Overrides map[string]string
	Err       error
}

func NewFakeGateway() *FakeGateway { return &FakeGateway{} }

func (f *FakeGateway) Name() string { return "FakeLLM" }
func (f *FakeGateway) Close() error { return nil }

func (f *FakeGateway) Generate(ctx context.Context, systemPrompt string, msgs []Message, opts *Options) (string, error) {
	if f.Err != nil {
		return "", f.Err
	}
	stage := StageFrom(ctx)
	if f.Overrides != nil {
		if text, ok := f.Overrides[stage]; ok {
			if text == "" {
				return "", ErrEmptyResponse
			}
			return text, nil
		}
	}
	if text, ok := fakeResponses[stage]; ok {
		return text, nil
	}
	return `{}`, nil
}

var fakeResponses = map[string]string{
	"intake": `{
  "technical_request": {"ticker": "FAKE", "buy_date": "2024-01-01", "sell_date": "2024-02-01"},
  "news_request": {"ticker": "FAKE", "buy_date": "2024-01-01", "user_belief": "fake belief"}
}`,
	"technical": `{
  "stock_analysis": {
    "summary": "fake technical summary",
    "price_move": {"start_price": 100, "end_price": 90, "highest": 105, "lowest": 88, "pct_change": -10.0},
    "trend": "down",
    "indicators": [
      {"name": "rsi", "value": "34", "interpretation": "oversold"},
      {"name": "macd", "value": "-1.2", "interpretation": "bearish crossover"},
      {"name": "bollinger_band", "value": "below mid", "interpretation": "weak momentum"}
    ],
    "risk_notes": ["fake risk note"],
    "uncertainty_level": "medium"
  }
}`,
	"news": `{
  "news_analysis": {
    "summary": "fake news summary",
    "news_summaries": [
      {"title": "Fake headline", "date": "2024-01-15", "source": "FakeWire", "summary": "fake item"}
    ],
    "market_sentiment": "negative",
    "fact_check": {"claim": "fake belief", "verdict": "unverified", "explanation": "no supporting coverage"},
    "uncertainty_level": "medium"
  }
}`,
	"causes": `{
  "loss_cause_analysis": {
    "loss_check": "fake loss confirmed",
    "loss_amount_pct": "-10.0%",
    "one_line_summary": "fake cause summary",
    "root_causes": [
      {
        "id": "RC001", "category": "internal", "subcategory": "insufficient_research",
        "title": "Thin research", "description": "fake description.",
        "impact_score": 6, "impact_level": "medium",
        "evidence": [{"source": "user_input", "type": "user_decision", "data_point": "fake basis", "interpretation": "fake"}],
        "timeline_relevance": "before_buy"
      },
      {
        "id": "RC002", "category": "external", "subcategory": "market_condition",
        "title": "Sector weakness", "description": "fake description.",
        "impact_score": 4, "impact_level": "medium",
        "evidence": [{"source": "technical", "type": "price", "data_point": "-10%", "interpretation": "fake"}],
        "timeline_relevance": "during_hold"
      }
    ],
    "detailed_explanation": "fake detailed explanation",
    "confidence_level": "medium"
  },
  "market_context_analysis": {
    "news_at_loss_time": ["fake news"],
    "market_situation_analysis": "fake market situation",
    "related_news": ["fake related"]
  },
  "behavior_input": {
    "investment_reason": "fake belief",
    "loss_cause_summary": "fake cause summary",
    "loss_cause_details": ["fake detail"],
    "objective_signals": {
      "price_trend": "down", "volatility_level": "medium",
      "technical_indicators": [{"name": "rsi", "value": "34", "interpretation": "oversold"}],
      "news_facts": ["fake fact"]
    },
    "uncertainty_level": "medium"
  }
}`,
	"behavior": `{
  "behavior_profile": {
    "investor_character": {"type": "Gut-Feel Trader", "description": "fake character", "behavioral_bias": "confirmation_bias"},
    "profile_metrics": {
      "information_sensitivity": {"score": 55, "label": "Information Sensitivity", "bias_detected": null},
      "analysis_depth": {"score": 40, "label": "Analysis Depth", "bias_detected": "Confirmation Bias"},
      "risk_management": {"score": 50, "label": "Risk Management", "bias_detected": null},
      "decisiveness": {"score": 60, "label": "Decisiveness", "bias_detected": null},
      "emotional_control": {"score": 45, "label": "Emotional Control", "bias_detected": null},
      "learning_adaptability": {"score": 55, "label": "Learning Adaptability", "bias_detected": null}
    },
    "cognitive_analysis": {
      "primary_bias": {"name": "Confirmation Bias", "code": "confirmation_bias", "description": "fake", "impact": "fake"},
      "secondary_biases": []
    },
    "decision_problems": [
      {"problem_type": "shallow analysis", "psychological_trigger": "time pressure", "situation": "fake", "thought_pattern": "fake", "consequence": "fake", "frequency": "medium"}
    ],
    "uncertainty_level": "medium"
  }
}`,
	"report": `{
  "review_report": {
    "custom_learning_path": {
      "path_summary": "fake path",
      "learning_materials": ["fake material"],
      "practice_steps": ["fake step"],
      "recommended_topics": ["fake topic"]
    },
    "investment_advisor": {"advisor_message": "fake advice", "recommended_questions": ["fake question"]},
    "action_missions": [
      {"mission_id": "M001", "priority": 1, "title": "Find three counterarguments",
       "description": "fake description sentence one. Fake sentence two.",
       "behavioral_target": "confirmation bias", "expected_outcome": "fake outcome",
       "difficulty": "medium", "estimated_impact": "high"}
    ],
    "uncertainty_level": "medium"
  }
}`,
	"expert": `{"summary": "fake answer summary", "detail": "fake answer detail"}`,
	"judge_technical": `{
  "consistency": 0.9, "indicator_coverage": 1.0, "trend_consistency": 0.9,
  "advice_free": 1.0, "clarity": 0.8, "notes": "fake judge notes"
}`,
	"judge_news": `{
  "relevance": {"per_item": [0.8], "avg": 0.8},
  "faithfulness": 0.9,
  "signal": {"per_item": [1], "ratio": 1.0},
  "coverage": {"topics": ["earnings"], "unique_count": 1, "score": 1.0},
  "notes": "fake judge notes"
}`,
	"quiz": `{
  "quiz_set": {
    "quiz_purpose": "fake quiz purpose",
    "quizzes": [
      {"quiz_id": "Q1", "quiz_type": "multiple_choice", "question": "fake q1?",
       "options": [{"text": "a"}, {"text": "b"}, {"text": "c"}, {"text": "d"}],
       "has_fixed_answer": true, "correct_answer_index": 0},
      {"quiz_id": "Q2", "quiz_type": "multiple_choice", "question": "fake q2?",
       "options": [{"text": "a"}, {"text": "b"}, {"text": "c"}, {"text": "d"}],
       "has_fixed_answer": true, "correct_answer_index": 1},
      {"quiz_id": "Q3", "quiz_type": "reflection", "question": "fake q3?",
       "options": [
         {"text": "a", "solution": "fake solution a"},
         {"text": "b", "solution": "fake solution b"},
         {"text": "c", "solution": "fake solution c"},
         {"text": "d", "solution": "fake solution d"}
       ],
       "has_fixed_answer": false, "solution_required": true}
    ]
  }
}`,
}
