package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"

	"lossreview/internal/eval"
	"lossreview/internal/llm"
	"lossreview/internal/pipeline"
	"lossreview/internal/promptstore"
	"lossreview/internal/quiz"
	"lossreview/internal/review"
	"lossreview/internal/store"
)

func newTestServer(gw llm.Gateway) *Server {
	prompts := promptstore.NewMemory()
	recorder := store.NewRecorder(store.New(), nil, nil, nil, nil)
	return NewServer(
		pipeline.NewRuntime(gw, prompts, nil),
		recorder,
		quiz.NewGenerator(gw, prompts, nil),
		eval.NewJudge(gw, nil),
		eval.NewOptimizer(prompts, eval.NewMemoryHistory(), nil),
		nil,
	)
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAnalyzeEndpoint(t *testing.T) {
	srv := newTestServer(llm.NewFakeGateway())
	rec := postJSON(t, srv.Routes(), "/v1/analyze", analyzeRequest{
		Ticker: "ACME", BuyDate: "2024-01-02", SellDate: "2024-02-15",
		DecisionBasis: "chart looked strong",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	var st pipeline.State
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.RequestID == "" || st.Report == nil || st.Causes == nil {
		t.Fatalf("incomplete response: %+v", st)
	}
	if st.Reply == nil || st.Reply.Summary != "fake answer summary" {
		t.Fatalf("analyze run must end with the expert reply, got %+v", st.Reply)
	}
	if st.Causes.CauseBreakdown.InternalRatio+st.Causes.CauseBreakdown.ExternalRatio != 100 {
		t.Fatalf("breakdown = %+v", st.Causes.CauseBreakdown)
	}
}

func TestAnalyzeMissingFields(t *testing.T) {
	srv := newTestServer(llm.NewFakeGateway())
	rec := postJSON(t, srv.Routes(), "/v1/analyze", analyzeRequest{Ticker: "ACME"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	var eb errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &eb); err != nil {
		t.Fatal(err)
	}
	for _, f := range []string{"buy_date", "decision_basis", "sell_date"} {
		found := false
		for _, got := range eb.Fields {
			if got == f {
				found = true
			}
		}
		if !found {
			t.Fatalf("fields = %v, missing %s", eb.Fields, f)
		}
	}
}

func TestAnalyzeDegradedGatewayStillOK(t *testing.T) {
	srv := newTestServer(&llm.FakeGateway{Err: errors.New("down")})
	rec := postJSON(t, srv.Routes(), "/v1/analyze", analyzeRequest{
		Ticker: "ACME", BuyDate: "2024-01-02", SellDate: "2024-02-15",
		DecisionBasis: "friend recommended it",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var st pipeline.State
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatal(err)
	}
	if len(st.Degraded) == 0 || st.Report == nil {
		t.Fatalf("state = %+v", st)
	}
	if st.Behavior.CognitiveAnalysis.PrimaryBias.Code != "herding_effect" {
		t.Fatalf("bias = %s", st.Behavior.CognitiveAnalysis.PrimaryBias.Code)
	}
}

func TestChatEndpointAgainstStoredRun(t *testing.T) {
	srv := newTestServer(llm.NewFakeGateway())
	h := srv.Routes()

	rec := postJSON(t, h, "/v1/analyze", analyzeRequest{
		Ticker: "ACME", BuyDate: "2024-01-02", SellDate: "2024-02-15",
		DecisionBasis: "chart looked strong",
	})
	var st pipeline.State
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatal(err)
	}

	rec = postJSON(t, h, "/v1/chat", chatRequest{RequestID: st.RequestID, Message: "what went wrong?"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	var resp chatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Reply == nil || resp.Reply.Summary != "fake answer summary" {
		t.Fatalf("reply = %+v", resp.Reply)
	}
}

func TestChatEndpointEmptyMessageUsesDecisionBasis(t *testing.T) {
	srv := newTestServer(llm.NewFakeGateway())
	h := srv.Routes()

	rec := postJSON(t, h, "/v1/analyze", analyzeRequest{
		Ticker: "ACME", BuyDate: "2024-01-02", SellDate: "2024-02-15",
		DecisionBasis: "chart looked strong",
	})
	var st pipeline.State
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatal(err)
	}

	// Omitting the message turns the stored decision basis into the question.
	rec = postJSON(t, h, "/v1/chat", chatRequest{RequestID: st.RequestID})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	var resp chatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Reply == nil || resp.Reply.Summary != "fake answer summary" {
		t.Fatalf("reply = %+v", resp.Reply)
	}
}

func TestChatEndpointUnknownRun(t *testing.T) {
	srv := newTestServer(llm.NewFakeGateway())
	rec := postJSON(t, srv.Routes(), "/v1/chat", chatRequest{RequestID: "nope", Message: "hello?"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp chatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Reply == nil || !strings.Contains(resp.Reply.Summary, "No completed review") {
		t.Fatalf("reply = %+v", resp.Reply)
	}
}

func TestQuizEndpointInlineProfile(t *testing.T) {
	srv := newTestServer(llm.NewFakeGateway())
	profile := review.FallbackBehavior("call failed", "fomo buy")
	rec := postJSON(t, srv.Routes(), "/v1/quiz", quizRequest{Profile: &profile})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var set review.QuizSet
	if err := json.Unmarshal(rec.Body.Bytes(), &set); err != nil {
		t.Fatal(err)
	}
	if !quiz.Validate(set) {
		t.Fatalf("quiz set invalid: %+v", set)
	}
}

func TestQuizEndpointRequiresProfile(t *testing.T) {
	srv := newTestServer(llm.NewFakeGateway())
	rec := postJSON(t, srv.Routes(), "/v1/quiz", quizRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(llm.NewFakeGateway())
	req := httptest.NewRequest(http.MethodGet, "/v1/health", nil)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" || body["gateway"] != "FakeLLM" {
		t.Fatalf("body = %v", body)
	}
}

func TestChatWebsocket(t *testing.T) {
	srv := newTestServer(llm.NewFakeGateway())
	ts := httptest.NewServer(srv.Routes())
	defer ts.Close()

	// Store a run to chat against.
	rec := postJSON(t, srv.Routes(), "/v1/analyze", analyzeRequest{
		Ticker: "ACME", BuyDate: "2024-01-02", SellDate: "2024-02-15",
		DecisionBasis: "chart looked strong",
	})
	var st pipeline.State
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatal(err)
	}

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/chat/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(wsChatMessage{RequestID: st.RequestID, Message: "what went wrong?"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	var resp chatResponse
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("read: %v", err)
	}
	if resp.Reply == nil || resp.Reply.Summary != "fake answer summary" {
		t.Fatalf("reply = %+v", resp.Reply)
	}
}
