package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"lossreview/internal/config"
	"lossreview/internal/eval"
	"lossreview/internal/llm"
	"lossreview/internal/pipeline"
	"lossreview/internal/promptstore"
	"lossreview/internal/quiz"
	"lossreview/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	var log *zap.Logger
	if cfg.IsLocal() {
		log, err = zap.NewDevelopment()
	} else {
		log, err = zap.NewProduction()
	}
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx := context.Background()

	var gw llm.Gateway
	if cfg.Gemini.APIKey == "" {
		log.Warn("GEMINI_API_KEY not set, using the offline fake gateway")
		gw = llm.NewFakeGateway()
	} else {
		g, err := llm.NewGeminiGateway(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
		if err != nil {
			log.Fatal("gemini gateway init failed", zap.Error(err))
		}
		gw = g
	}
	gw = llm.Wrap(gw,
		llm.LogCalls(log),
		llm.Retry(3, 500*time.Millisecond),
		llm.RateLimitFromEnv(),
	)
	defer gw.Close()

	var prompts promptstore.Store
	if cfg.PromptDir != "" {
		dir, err := promptstore.NewDir(cfg.PromptDir)
		if err != nil {
			log.Fatal("prompt dir init failed", zap.Error(err))
		}
		prompts = dir
	} else {
		prompts = promptstore.NewMemory()
	}

	recorder := buildRecorder(ctx, cfg, log)
	judge := eval.NewJudge(gw, log)
	optimizer := eval.NewOptimizer(prompts, eval.NewFileHistory(cfg.PromptHistoryPath), log)

	srv := NewServer(
		pipeline.NewRuntime(gw, prompts, log),
		recorder,
		quiz.NewGenerator(gw, prompts, log),
		judge,
		optimizer,
		log,
	)

	log.Info("starting api server", zap.String("port", cfg.Port), zap.String("gateway", gw.Name()))
	if err := http.ListenAndServe(cfg.Port, h2c.NewHandler(withCORS(srv.Routes()), &http2.Server{})); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func buildRecorder(ctx context.Context, cfg *config.Config, log *zap.Logger) *store.Recorder {
	rel := store.New()
	if cfg.RelationalDSN != "" {
		s, err := store.NewPostgres(cfg.RelationalDSN)
		if err != nil {
			log.Warn("relational store init failed, using memory store", zap.Error(err))
		} else {
			rel = s
		}
	}

	var vec *store.VectorStore
	if cfg.VectorDSN != "" {
		var emb llm.Embedder
		if cfg.Gemini.APIKey != "" {
			e, err := llm.NewGenAIEmbedder(ctx, cfg.Gemini.APIKey, cfg.Gemini.EmbedModel)
			if err != nil {
				log.Warn("embedder init failed, vector sink disabled", zap.Error(err))
			} else {
				emb = e
			}
		} else {
			emb = llm.FakeEmbedder{Dim: 8}
		}
		if emb != nil {
			v, err := store.NewVector(cfg.VectorDSN, emb)
			if err != nil {
				log.Warn("vector store init failed", zap.Error(err))
			} else {
				vec = v
			}
		}
	}

	var snap *store.SnapshotStore
	if cfg.Snapshot.Endpoint != "" {
		s, err := store.NewSnapshotStore(cfg.Snapshot)
		if err != nil {
			log.Warn("snapshot store init failed", zap.Error(err))
		} else {
			snap = s
		}
	}

	var cache *store.Cache
	if cfg.RedisAddr != "" {
		cache = store.NewCache(cfg.RedisAddr, 0)
	}
	return store.NewRecorder(rel, vec, snap, cache, log)
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := strings.TrimSpace(r.Header.Get("Origin"))
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Vary", "Origin")
		} else {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization")
		if r.Method == http.MethodOptions {
			return
		}
		next.ServeHTTP(w, r)
	})
}
