// Package config loads service configuration from the environment, with a
// local .env file as the development convenience layer.
package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"

	"lossreview/internal/store"
)

// Config is the full service configuration.
type Config struct {
	Port string
	Env  string

	Gemini GeminiConfig

	PromptDir         string
	PromptHistoryPath string

	RelationalDSN string
	VectorDSN     string
	RedisAddr     string
	Snapshot      store.SnapshotConfig
}

// GeminiConfig holds model access settings. An empty APIKey selects the
// offline fake gateway.
type GeminiConfig struct {
	APIKey     string
	Model      string
	EmbedModel string
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	port := strings.TrimSpace(os.Getenv("PORT"))
	switch {
	case port == "":
		port = ":8080"
	case !strings.HasPrefix(port, ":"):
		port = ":" + port
	}

	env := firstNonEmpty(strings.TrimSpace(os.Getenv("APP_ENV")), "local")

	return &Config{
		Port: port,
		Env:  env,
		Gemini: GeminiConfig{
			APIKey:     strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
			Model:      firstNonEmpty(strings.TrimSpace(os.Getenv("GEMINI_MODEL")), "gemini-2.0-flash"),
			EmbedModel: firstNonEmpty(strings.TrimSpace(os.Getenv("GEMINI_EMBED_MODEL")), "gemini-embedding-001"),
		},
		PromptDir:         strings.TrimSpace(os.Getenv("PROMPT_DIR")),
		PromptHistoryPath: firstNonEmpty(strings.TrimSpace(os.Getenv("PROMPT_HISTORY_PATH")), "prompt_history.jsonl"),
		RelationalDSN:     strings.TrimSpace(os.Getenv("REVIEW_STORE_PG_DSN")),
		VectorDSN: firstNonEmpty(
			strings.TrimSpace(os.Getenv("REVIEW_VECTOR_PG_DSN")),
			strings.TrimSpace(os.Getenv("REVIEW_STORE_PG_DSN")),
		),
		RedisAddr: strings.TrimSpace(os.Getenv("REVIEW_CACHE_REDIS_ADDR")),
		Snapshot:  store.SnapshotConfigFromEnv(),
	}, nil
}

// IsLocal reports whether the service runs in the local development profile.
func (c *Config) IsLocal() bool {
	return strings.EqualFold(c.Env, "local")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
