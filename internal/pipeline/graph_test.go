package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"lossreview/internal/llm"
	"lossreview/internal/review"
)

func testInput() review.TradeInput {
	return PrepareInput(review.TradeInput{
		Ticker:        "ACME",
		BuyDate:       "2024-01-02",
		SellDate:      "2024-02-15",
		DecisionBasis: "chart looked strong after earnings",
	}, time.Now())
}

func testRuntime(gw llm.Gateway) *Runtime {
	return NewRuntime(gw, nil, zap.NewNop())
}

func TestAnalysisGraphHappyPath(t *testing.T) {
	g, err := NewAnalysisGraph()
	if err != nil {
		t.Fatalf("NewAnalysisGraph: %v", err)
	}
	s := &State{RequestID: "req-1", Input: testInput()}
	if err := g.Run(context.Background(), testRuntime(llm.NewFakeGateway()), s); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if s.InputError != nil {
		t.Fatalf("unexpected input error: %+v", s.InputError)
	}
	if s.Payloads == nil || s.Technical == nil || s.News == nil || s.Causes == nil ||
		s.MarketContext == nil || s.BehaviorInput == nil || s.Behavior == nil || s.Report == nil {
		t.Fatalf("incomplete state: %+v", s)
	}
	if s.Reply == nil || s.Reply.Summary != "fake answer summary" {
		t.Fatalf("terminal expert stage must produce the reply, got %+v", s.Reply)
	}
	if len(s.Degraded) != 0 {
		t.Fatalf("fake run should not degrade, got %v", s.Degraded)
	}

	bd := s.Causes.CauseBreakdown
	if bd.InternalRatio+bd.ExternalRatio != 100 {
		t.Fatalf("breakdown does not sum to 100: %+v", bd)
	}
	if n := len(s.Report.ActionMissions); n < 1 || n > 3 {
		t.Fatalf("want 1..3 missions, got %d", n)
	}
	if !review.ValidateCauses(*s.Causes) || !review.ValidateBehavior(*s.Behavior) || !review.ValidateReport(*s.Report) {
		t.Fatal("happy-path outputs fail their own validators")
	}
}

func TestAnalysisGraphAllCallsFail(t *testing.T) {
	gw := &llm.FakeGateway{Err: errors.New("upstream down")}
	g, _ := NewAnalysisGraph()
	s := &State{RequestID: "req-2", Input: testInput()}
	if err := g.Run(context.Background(), testRuntime(gw), s); err != nil {
		t.Fatalf("Run must not error on model failure: %v", err)
	}

	if s.Technical == nil || s.News == nil || s.Causes == nil || s.Behavior == nil || s.Report == nil {
		t.Fatal("fallbacks must populate every stage output")
	}
	if s.Reply == nil {
		t.Fatal("a full run must end with a reply even when every call fails")
	}
	for _, stage := range []string{"intake", "technical", "news", "causes", "behavior", "report", "expert"} {
		want := stage + ": " + ReasonCallFailed
		found := false
		for _, d := range s.Degraded {
			if d == want {
				found = true
			}
		}
		if !found {
			t.Fatalf("missing degradation %q in %v", want, s.Degraded)
		}
	}
	if s.Technical.UncertaintyLevel != review.UncertaintyHigh {
		t.Fatalf("fallback technical uncertainty = %s", s.Technical.UncertaintyLevel)
	}
	if !strings.Contains(s.Technical.Summary, ReasonCallFailed) {
		t.Fatalf("fallback summary should embed reason, got %q", s.Technical.Summary)
	}
	if !review.ValidateCauses(*s.Causes) || !review.ValidateBehavior(*s.Behavior) || !review.ValidateReport(*s.Report) {
		t.Fatal("fallback outputs fail their own validators")
	}
}

func TestAnalysisGraphHerdingKeywordRouting(t *testing.T) {
	gw := &llm.FakeGateway{Err: errors.New("upstream down")}
	in := testInput()
	in.DecisionBasis = "my friend recommended it so I bought in"
	g, _ := NewAnalysisGraph()
	s := &State{RequestID: "req-3", Input: in}
	if err := g.Run(context.Background(), testRuntime(gw), s); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := s.Behavior.CognitiveAnalysis.PrimaryBias.Code; got != "herding_effect" {
		t.Fatalf("primary bias = %s, want herding_effect", got)
	}
	if got := s.Report.ActionMissions[0].BehavioralTarget; !strings.Contains(got, "herding") {
		t.Fatalf("mission target = %q, want herding remediation", got)
	}
}

func TestAnalysisGraphPartialBranchFailure(t *testing.T) {
	// Technical branch returns garbage; news branch stays healthy.
	gw := &llm.FakeGateway{Overrides: map[string]string{"technical": "not json at all"}}
	g, _ := NewAnalysisGraph()
	s := &State{RequestID: "req-4", Input: testInput()}
	if err := g.Run(context.Background(), testRuntime(gw), s); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(s.Degraded) != 1 || s.Degraded[0] != "technical: "+ReasonParseFailed {
		t.Fatalf("degraded = %v", s.Degraded)
	}
	if s.News.Summary == "" || strings.Contains(s.News.Summary, ReasonParseFailed) {
		t.Fatalf("news branch should be unaffected, got %q", s.News.Summary)
	}
}

func TestAnalysisGraphBlockedOutput(t *testing.T) {
	gw := &llm.FakeGateway{Overrides: map[string]string{
		"news": `{"news_analysis": {"summary": "you should buy the dip", "news_summaries": [], "market_sentiment": "x", "fact_check": {"claim": "c", "verdict": "unverified", "explanation": "e"}, "uncertainty_level": "low"}}`,
	}}
	g, _ := NewAnalysisGraph()
	s := &State{RequestID: "req-5", Input: testInput()}
	if err := g.Run(context.Background(), testRuntime(gw), s); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(s.Degraded) != 1 || s.Degraded[0] != "news: "+ReasonBlocked {
		t.Fatalf("degraded = %v", s.Degraded)
	}
	if !strings.Contains(s.News.Summary, ReasonBlocked) {
		t.Fatalf("blocked branch should carry fallback, got %q", s.News.Summary)
	}
}

func TestAnalysisGraphInputShortCircuit(t *testing.T) {
	in := testInput()
	in.Ticker = "  "
	g, _ := NewAnalysisGraph()
	s := &State{RequestID: "req-6", Input: in}
	if err := g.Run(context.Background(), testRuntime(llm.NewFakeGateway()), s); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if s.InputError == nil {
		t.Fatal("expected input error")
	}
	if len(s.InputError.Fields) != 1 || s.InputError.Fields[0] != "ticker" {
		t.Fatalf("fields = %v", s.InputError.Fields)
	}
	if s.Technical != nil || s.News != nil {
		t.Fatal("analysis stages must not run after input error")
	}
}

func TestPrepareInputHoldingPosition(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	in := review.TradeInput{Ticker: "ACME", BuyDate: "2025-01-01", DecisionBasis: "x", PositionStatus: "holding"}
	got := PrepareInput(in, now)
	if got.SellDate != "2025-03-10" {
		t.Fatalf("sell date = %q", got.SellDate)
	}

	// A stated sell date wins over the holding default.
	in.SellDate = "2025-02-01"
	if got := PrepareInput(in, now); got.SellDate != "2025-02-01" {
		t.Fatalf("sell date overwritten: %q", got.SellDate)
	}
}

func TestPrepareInputDefaultsQuestionToDecisionBasis(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	in := review.TradeInput{Ticker: "ACME", BuyDate: "2025-01-01", SellDate: "2025-02-01", DecisionBasis: "earnings looked good"}
	if got := PrepareInput(in, now); got.UserMessage != "earnings looked good" {
		t.Fatalf("user message = %q", got.UserMessage)
	}

	in.UserMessage = "was the timing wrong?"
	if got := PrepareInput(in, now); got.UserMessage != "was the timing wrong?" {
		t.Fatalf("explicit question overwritten: %q", got.UserMessage)
	}
}

// captureGateway records the last user message so tests can inspect the
// payload a stage actually sent.
type captureGateway struct {
	inner    llm.Gateway
	lastUser string
}

func (c *captureGateway) Name() string { return c.inner.Name() }
func (c *captureGateway) Close() error { return c.inner.Close() }
func (c *captureGateway) Generate(ctx context.Context, systemPrompt string, msgs []llm.Message, opts *llm.Options) (string, error) {
	if len(msgs) > 0 {
		c.lastUser = msgs[len(msgs)-1].Content
	}
	return c.inner.Generate(ctx, systemPrompt, msgs, opts)
}

func TestChatGraphCarriesRecentHistory(t *testing.T) {
	gw := &captureGateway{inner: llm.NewFakeGateway()}
	g, _ := NewChatGraph()
	causes, _, _ := review.FallbackCauses("call failed", testInput())
	behavior := review.FallbackBehavior("call failed", "chart looked strong")
	in := testInput()
	in.UserMessage = "what should I watch next time?"

	var history []review.ChatMessage
	for i := 0; i < 12; i++ {
		history = append(history, review.ChatMessage{Role: "user", Content: fmt.Sprintf("turn %02d", i)})
	}
	s := &State{RequestID: "req-9", Input: in, Causes: &causes, Behavior: &behavior, History: history}
	if err := g.Run(context.Background(), testRuntime(gw), s); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Only the last ten turns ride along with the question.
	if !strings.Contains(gw.lastUser, "turn 11") || !strings.Contains(gw.lastUser, "turn 02") {
		t.Fatalf("recent history missing from payload: %s", gw.lastUser)
	}
	if strings.Contains(gw.lastUser, "turn 01") {
		t.Fatalf("stale history should be trimmed: %s", gw.lastUser)
	}
}

func TestChatGraphWithAnalysis(t *testing.T) {
	g, err := NewChatGraph()
	if err != nil {
		t.Fatalf("NewChatGraph: %v", err)
	}
	causes, _, _ := review.FallbackCauses("call failed", testInput())
	behavior := review.FallbackBehavior("call failed", "chart looked strong")
	in := testInput()
	in.UserMessage = "why did I lose money?"
	s := &State{RequestID: "req-7", Input: in, Causes: &causes, Behavior: &behavior}
	if err := g.Run(context.Background(), testRuntime(llm.NewFakeGateway()), s); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if s.Reply == nil || s.Reply.Summary != "fake answer summary" {
		t.Fatalf("reply = %+v", s.Reply)
	}
}

func TestChatGraphWithoutAnalysis(t *testing.T) {
	g, _ := NewChatGraph()
	in := testInput()
	in.UserMessage = "why did I lose money?"
	s := &State{RequestID: "req-8", Input: in}
	if err := g.Run(context.Background(), testRuntime(llm.NewFakeGateway()), s); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if s.Reply == nil || !strings.Contains(s.Reply.Summary, "No completed review") {
		t.Fatalf("reply = %+v", s.Reply)
	}
	if len(s.Degraded) != 1 || s.Degraded[0] != "chatentry: analysis missing" {
		t.Fatalf("degraded = %v", s.Degraded)
	}
}

func TestNewGraphRejectsMissingRequirement(t *testing.T) {
	_, err := NewGraph("bad", []string{KeyInput},
		[]StageSpec{StageCauses()}, // requires technical+news, nothing provides them
	)
	if err == nil {
		t.Fatal("expected wiring error")
	}
}

func TestNewGraphRejectsSiblingDependency(t *testing.T) {
	// technical provides within the same step causes requires — must fail.
	_, err := NewGraph("bad", []string{KeyInput, KeyPayloads, KeyNews},
		[]StageSpec{StageTechnical(), StageCauses()},
	)
	if err == nil {
		t.Fatal("sibling provides must not satisfy requires")
	}
}
