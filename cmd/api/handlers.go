package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"lossreview/internal/eval"
	"lossreview/internal/pipeline"
	"lossreview/internal/review"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error  string   `json:"error"`
	Fields []string `json:"fields,omitempty"`
}

type analyzeRequest struct {
	Ticker         string `json:"ticker"`
	BuyDate        string `json:"buy_date"`
	SellDate       string `json:"sell_date"`
	DecisionBasis  string `json:"decision_basis"`
	PositionStatus string `json:"position_status,omitempty"`
	Message        string `json:"message,omitempty"`
}

// handleAnalyze runs the full review pipeline and returns the merged state.
// Stage failures degrade inside the pipeline; the only 4xx here are malformed
// JSON and missing required fields.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid json body"})
		return
	}

	in := pipeline.PrepareInput(review.TradeInput{
		Ticker:         strings.TrimSpace(req.Ticker),
		BuyDate:        strings.TrimSpace(req.BuyDate),
		SellDate:       strings.TrimSpace(req.SellDate),
		DecisionBasis:  strings.TrimSpace(req.DecisionBasis),
		PositionStatus: strings.TrimSpace(req.PositionStatus),
		UserMessage:    strings.TrimSpace(req.Message),
	}, time.Now())

	st := &pipeline.State{RequestID: uuid.NewString(), Input: in}
	if err := s.analysis.Run(r.Context(), s.rt, st); err != nil {
		s.log.Error("analysis run failed", zap.String("request_id", st.RequestID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "analysis failed"})
		return
	}
	if st.InputError != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: st.InputError.Message, Fields: st.InputError.Fields})
		return
	}

	s.recorder.Record(r.Context(), st)
	s.evaluate(r.Context(), st)

	writeJSON(w, http.StatusOK, st)
}

// evaluate scores the branch outputs and feeds them to the optimizer. The
// technical branch is scored deterministically; the news branch needs the
// model judge. Quality work never affects the response.
func (s *Server) evaluate(ctx context.Context, st *pipeline.State) {
	if s.judge == nil || s.optimizer == nil {
		return
	}
	if st.Technical != nil {
		report := eval.ScoreTechnical(st.RequestID, *st.Technical)
		s.recorder.RecordReport(ctx, st.RequestID, "technical", report)
		if _, err := s.optimizer.Observe("technical", report); err != nil {
			s.log.Warn("optimizer observe failed", zap.String("stage", "technical"), zap.Error(err))
		}
	}
	if st.News != nil {
		report := s.judge.JudgeNews(ctx, st.RequestID, *st.News)
		s.recorder.RecordReport(ctx, st.RequestID, "news", report)
		if _, err := s.optimizer.Observe("news", report); err != nil {
			s.log.Warn("optimizer observe failed", zap.String("stage", "news"), zap.Error(err))
		}
	}
}

type chatRequest struct {
	RequestID string               `json:"request_id"`
	Message   string               `json:"message"`
	History   []review.ChatMessage `json:"history,omitempty"`
}

type chatResponse struct {
	RequestID string            `json:"request_id"`
	Reply     *review.ChatReply `json:"reply"`
	Degraded  []string          `json:"degraded,omitempty"`
}

// handleChat answers a follow-up question against a stored run.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid json body"})
		return
	}
	st, _ := s.recorder.Lookup(r.Context(), strings.TrimSpace(req.RequestID))
	st.RequestID = strings.TrimSpace(req.RequestID)
	st.Input.UserMessage = strings.TrimSpace(req.Message)
	// An omitted question falls back to reviewing the user's own stated
	// reasoning, so a bare follow-up call still gets a substantive answer.
	if st.Input.UserMessage == "" {
		st.Input.UserMessage = st.Input.DecisionBasis
	}
	st.History = req.History
	st.Reply = nil
	st.Degraded = nil

	if err := s.chat.Run(r.Context(), s.rt, &st); err != nil {
		s.log.Error("chat run failed", zap.String("request_id", st.RequestID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "chat failed"})
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{RequestID: st.RequestID, Reply: st.Reply, Degraded: st.Degraded})
}

type quizRequest struct {
	RequestID string                    `json:"request_id,omitempty"`
	Profile   *review.BehavioralProfile `json:"behavior_profile,omitempty"`
}

// handleQuiz generates the three-item learning check from a behavioral
// profile, either inline or looked up from a stored run.
func (s *Server) handleQuiz(w http.ResponseWriter, r *http.Request) {
	var req quizRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid json body"})
		return
	}

	profile := req.Profile
	if profile == nil && strings.TrimSpace(req.RequestID) != "" {
		if st, ok := s.recorder.Lookup(r.Context(), strings.TrimSpace(req.RequestID)); ok {
			profile = st.Behavior
		}
	}
	if profile == nil {
		writeJSON(w, http.StatusBadRequest, errorBody{
			Error:  "behavior_profile or a known request_id is required",
			Fields: []string{"behavior_profile", "request_id"},
		})
		return
	}
	writeJSON(w, http.StatusOK, s.quizzes.Generate(r.Context(), *profile))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"gateway": s.rt.Gateway.Name(),
	})
}
