package main

import (
	"net/http"

	"go.uber.org/zap"

	"lossreview/internal/eval"
	"lossreview/internal/pipeline"
	"lossreview/internal/quiz"
	"lossreview/internal/store"
)

// Server is the HTTP surface over the review pipeline.
type Server struct {
	rt        *pipeline.Runtime
	analysis  *pipeline.Graph
	chat      *pipeline.Graph
	recorder  *store.Recorder
	quizzes   *quiz.Generator
	judge     *eval.Judge
	optimizer *eval.Optimizer
	log       *zap.Logger
}

func NewServer(rt *pipeline.Runtime, recorder *store.Recorder, quizzes *quiz.Generator, judge *eval.Judge, optimizer *eval.Optimizer, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		rt:        rt,
		analysis:  pipeline.MustAnalysisGraph(),
		chat:      pipeline.MustChatGraph(),
		recorder:  recorder,
		quizzes:   quizzes,
		judge:     judge,
		optimizer: optimizer,
		log:       log,
	}
}

// Routes builds the request mux.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/analyze", s.handleAnalyze)
	mux.HandleFunc("POST /v1/chat", s.handleChat)
	mux.HandleFunc("POST /v1/quiz", s.handleQuiz)
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	mux.HandleFunc("GET /v1/chat/ws", s.handleChatWS)
	return mux
}
