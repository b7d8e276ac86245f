// Package review defines the typed stage outputs of the loss-review pipeline
// together with the normalizers, validators, and fallback synthesizers that
// are the only producers of those outputs. Every record here is always fully
// populated regardless of model success.
package review

// TradeInput is the caller-supplied description of one trade under review.
type TradeInput struct {
	Ticker         string `json:"ticker"`
	BuyDate        string `json:"buy_date"`
	SellDate       string `json:"sell_date"`
	DecisionBasis  string `json:"decision_basis"`
	PositionStatus string `json:"position_status,omitempty"`
	UserMessage    string `json:"user_message,omitempty"`
}

// InputError is the short-circuit result of the intake stage when required
// fields are missing or blank.
type InputError struct {
	Message string   `json:"message"`
	Fields  []string `json:"fields"`
}

// TechnicalRequest is the payload the intake stage prepares for the
// technical-analysis stage.
type TechnicalRequest struct {
	Ticker   string `json:"ticker"`
	BuyDate  string `json:"buy_date"`
	SellDate string `json:"sell_date"`
}

// NewsRequest is the payload the intake stage prepares for the news stage.
type NewsRequest struct {
	Ticker     string `json:"ticker"`
	BuyDate    string `json:"buy_date"`
	UserBelief string `json:"user_belief"`
}

// StagePayloads bundles both intake products.
type StagePayloads struct {
	Technical TechnicalRequest `json:"technical_request"`
	News      NewsRequest      `json:"news_request"`
}

// PriceMove captures the price trajectory over the holding period.
type PriceMove struct {
	StartPrice float64 `json:"start_price"`
	EndPrice   float64 `json:"end_price"`
	Highest    float64 `json:"highest"`
	Lowest     float64 `json:"lowest"`
	PctChange  float64 `json:"pct_change"`
}

// Indicator is one named technical indicator reading.
type Indicator struct {
	Name           string `json:"name"`
	Value          string `json:"value"`
	Interpretation string `json:"interpretation"`
}

// TechnicalAnalysis is the technical stage output.
type TechnicalAnalysis struct {
	Summary          string      `json:"summary"`
	PriceMove        PriceMove   `json:"price_move"`
	Trend            string      `json:"trend"` // up|down|sideways
	Indicators       []Indicator `json:"indicators"`
	RiskNotes        []string    `json:"risk_notes"`
	UncertaintyLevel string      `json:"uncertainty_level"` // low|medium|high
}

// NewsItem is one summarized headline.
type NewsItem struct {
	Title   string `json:"title"`
	Date    string `json:"date"`
	Source  string `json:"source"`
	Summary string `json:"summary"`
}

// FactCheck records whether coverage supported the user's stated belief.
type FactCheck struct {
	Claim       string `json:"claim"`
	Verdict     string `json:"verdict"` // supported|refuted|unverified
	Explanation string `json:"explanation"`
}

// NewsAnalysis is the news stage output.
type NewsAnalysis struct {
	Summary          string     `json:"summary"`
	NewsSummaries    []NewsItem `json:"news_summaries"`
	MarketSentiment  string     `json:"market_sentiment"`
	FactCheck        FactCheck  `json:"fact_check"`
	UncertaintyLevel string     `json:"uncertainty_level"`
}

// Evidence ties a root cause back to a concrete upstream data point.
type Evidence struct {
	Source         string `json:"source"` // technical|news|user_input
	Type           string `json:"type"`
	DataPoint      string `json:"data_point"`
	Interpretation string `json:"interpretation"`
}

// RootCause is one attributed cause of the loss.
type RootCause struct {
	ID                string     `json:"id"`
	Category          string     `json:"category"` // internal|external
	Subcategory       string     `json:"subcategory"`
	Title             string     `json:"title"`
	Description       string     `json:"description"`
	ImpactScore       int        `json:"impact_score"` // 1..10
	ImpactLevel       string     `json:"impact_level"` // low|medium|high|critical
	Evidence          []Evidence `json:"evidence"`
	TimelineRelevance string     `json:"timeline_relevance"`
}

// CauseBreakdown is the internal/external attribution split. The ratios are
// recomputed server-side from impact scores and always sum to 100.
type CauseBreakdown struct {
	InternalRatio int `json:"internal_ratio"`
	ExternalRatio int `json:"external_ratio"`
}

// CauseAnalysis is the causal stage's primary output.
type CauseAnalysis struct {
	LossCheck           string         `json:"loss_check"`
	LossAmountPct       string         `json:"loss_amount_pct"`
	OneLineSummary      string         `json:"one_line_summary"`
	RootCauses          []RootCause    `json:"root_causes"`
	CauseBreakdown      CauseBreakdown `json:"cause_breakdown"`
	DetailedExplanation string         `json:"detailed_explanation"`
	ConfidenceLevel     string         `json:"confidence_level"`
}

// MarketContext is the causal stage's secondary output.
type MarketContext struct {
	NewsAtLossTime          []string `json:"news_at_loss_time"`
	MarketSituationAnalysis string   `json:"market_situation_analysis"`
	RelatedNews             []string `json:"related_news"`
}

// ObjectiveSignals summarizes the hard signals handed to the behavior stage.
type ObjectiveSignals struct {
	PriceTrend          string      `json:"price_trend"`
	VolatilityLevel     string      `json:"volatility_level"`
	TechnicalIndicators []Indicator `json:"technical_indicators"`
	NewsFacts           []string    `json:"news_facts"`
}

// BehaviorInput is the causal stage's bridge payload for the behavior stage.
type BehaviorInput struct {
	InvestmentReason string           `json:"investment_reason"`
	LossCauseSummary string           `json:"loss_cause_summary"`
	LossCauseDetails []string         `json:"loss_cause_details"`
	ObjectiveSignals ObjectiveSignals `json:"objective_signals"`
	UncertaintyLevel string           `json:"uncertainty_level"`
}

// AxisScore is one axis of the six-axis behavioral profile.
type AxisScore struct {
	Score        int     `json:"score"` // 0..100
	Label        string  `json:"label"`
	BiasDetected *string `json:"bias_detected"`
}

// ProfileAxes lists the six fixed axis keys in presentation order.
var ProfileAxes = []string{
	"information_sensitivity",
	"analysis_depth",
	"risk_management",
	"decisiveness",
	"emotional_control",
	"learning_adaptability",
}

// AxisLabels maps axis keys to their display labels.
var AxisLabels = map[string]string{
	"information_sensitivity": "Information Sensitivity",
	"analysis_depth":          "Analysis Depth",
	"risk_management":         "Risk Management",
	"decisiveness":            "Decisiveness",
	"emotional_control":       "Emotional Control",
	"learning_adaptability":   "Learning Adaptability",
}

// Bias is one named cognitive bias.
type Bias struct {
	Name        string `json:"name"`
	Code        string `json:"code"`
	Description string `json:"description"`
	Impact      string `json:"impact"`
}

// InvestorCharacter is the friendly one-line persona.
type InvestorCharacter struct {
	Type           string `json:"type"`
	Description    string `json:"description"`
	BehavioralBias string `json:"behavioral_bias"`
}

// DecisionProblem is one concrete decision-making problem spotted in the
// user's rationale.
type DecisionProblem struct {
	ProblemType          string `json:"problem_type"`
	PsychologicalTrigger string `json:"psychological_trigger"`
	Situation            string `json:"situation"`
	ThoughtPattern       string `json:"thought_pattern"`
	Consequence          string `json:"consequence"`
	Frequency            string `json:"frequency"`
}

// CognitiveAnalysis holds the diagnosed biases.
type CognitiveAnalysis struct {
	PrimaryBias     Bias   `json:"primary_bias"`
	SecondaryBiases []Bias `json:"secondary_biases"`
}

// BehavioralProfile is the behavior stage output.
type BehavioralProfile struct {
	InvestorCharacter InvestorCharacter    `json:"investor_character"`
	ProfileMetrics    map[string]AxisScore `json:"profile_metrics"`
	CognitiveAnalysis CognitiveAnalysis    `json:"cognitive_analysis"`
	DecisionProblems  []DecisionProblem    `json:"decision_problems"`
	UncertaintyLevel  string               `json:"uncertainty_level"`
}

// ActionMission is one concrete follow-up exercise for the user.
type ActionMission struct {
	MissionID        string `json:"mission_id"`
	Priority         int    `json:"priority"`
	Title            string `json:"title"`
	Description      string `json:"description"`
	BehavioralTarget string `json:"behavioral_target"`
	ExpectedOutcome  string `json:"expected_outcome"`
	Difficulty       string `json:"difficulty"`
	EstimatedImpact  string `json:"estimated_impact"`
}

// LearningPath is the personalized study plan.
type LearningPath struct {
	PathSummary       string   `json:"path_summary"`
	LearningMaterials []string `json:"learning_materials"`
	PracticeSteps     []string `json:"practice_steps"`
	RecommendedTopics []string `json:"recommended_topics"`
}

// AdvisorNote is the advisor message plus suggested follow-up questions.
type AdvisorNote struct {
	AdvisorMessage       string   `json:"advisor_message"`
	RecommendedQuestions []string `json:"recommended_questions"`
}

// TutorReport is the report stage output.
type TutorReport struct {
	CustomLearningPath LearningPath    `json:"custom_learning_path"`
	InvestmentAdvisor  AdvisorNote     `json:"investment_advisor"`
	ActionMissions     []ActionMission `json:"action_missions"`
	UncertaintyLevel   string          `json:"uncertainty_level"`
}

// ChatMessage is one turn of the expert-QA conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatReply is the expert stage output.
type ChatReply struct {
	Summary string `json:"summary"`
	Detail  string `json:"detail"`
}

// QuizOption is one answer choice; reflection quizzes carry per-option
// remediation text.
type QuizOption struct {
	Text     string `json:"text"`
	Solution string `json:"solution,omitempty"`
}

// Quiz is a single quiz item.
type Quiz struct {
	QuizID             string       `json:"quiz_id"`
	QuizType           string       `json:"quiz_type"` // multiple_choice|reflection
	Question           string       `json:"question"`
	Options            []QuizOption `json:"options"`
	HasFixedAnswer     bool         `json:"has_fixed_answer"`
	CorrectAnswerIndex int          `json:"correct_answer_index,omitempty"`
	SolutionRequired   bool         `json:"solution_required,omitempty"`
}

// QuizSet is the quiz operation output: always exactly three items.
type QuizSet struct {
	QuizPurpose string `json:"quiz_purpose"`
	Quizzes     []Quiz `json:"quizzes"`
}

// Metric is one quality-judge measurement on a 0-100 scale.
type Metric struct {
	Name   string  `json:"name"`
	Passed bool    `json:"passed"`
	Score  float64 `json:"score"`
	Reason string  `json:"reason,omitempty"`
}

// QualitySummary aggregates a report's metrics.
type QualitySummary struct {
	Passed int     `json:"passed"`
	Total  int     `json:"total"`
	Score  float64 `json:"score"` // 0..10
}

// QualityReport scores one stage's output.
type QualityReport struct {
	Stage     string         `json:"stage"`
	RequestID string         `json:"request_id"`
	Timestamp string         `json:"timestamp"`
	Summary   QualitySummary `json:"summary"`
	Metrics   []Metric       `json:"metrics"`
	Notes     string         `json:"notes,omitempty"`
}

// FailedMetrics lists the names of metrics that did not pass.
func (r QualityReport) FailedMetrics() []string {
	var failed []string
	for _, m := range r.Metrics {
		if !m.Passed {
			failed = append(failed, m.Name)
		}
	}
	return failed
}

// Enum members shared across stages.
const (
	UncertaintyLow    = "low"
	UncertaintyMedium = "medium"
	UncertaintyHigh   = "high"

	TrendUp       = "up"
	TrendDown     = "down"
	TrendSideways = "sideways"

	CategoryInternal = "internal"
	CategoryExternal = "external"
)
