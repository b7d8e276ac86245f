package llm

import (
	"context"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// Middleware decorates a Gateway to inject cross-cutting concerns
// (rate limiting, retries, logging).
type Middleware func(Gateway) Gateway

// Wrap applies middlewares in left-to-right order.
// Example: Wrap(inner, A, B) => A(B(inner))
func Wrap(inner Gateway, mws ...Middleware) Gateway {
	out := inner
	for i := len(mws) - 1; i >= 0; i-- {
		out = mws[i](out)
	}
	return out
}

// -------- Rate limiting --------

// RateLimit limits request rate using a token-bucket limiter.
// If rps <= 0, the limiter is effectively disabled.
func RateLimit(rps float64, burst int) Middleware {
	return func(next Gateway) Gateway {
		return &rateLimited{next: next, rl: newRPSLimiter(rps, burst)}
	}
}

type rateLimited struct {
	next Gateway
	rl   *rpsLimiter
}

func (c *rateLimited) Name() string { return c.next.Name() }
func (c *rateLimited) Close() error {
	c.rl.Stop()
	return c.next.Close()
}
func (c *rateLimited) Generate(ctx context.Context, systemPrompt string, msgs []Message, opts *Options) (string, error) {
	if err := c.rl.Acquire(ctx); err != nil {
		return "", err
	}
	return c.next.Generate(ctx, systemPrompt, msgs, opts)
}

// RateLimitFromEnv reads LLM_RPS / LLM_BURST and builds a RateLimit
// middleware. Unset or unparsable values disable the limiter.
func RateLimitFromEnv() Middleware {
	rps, _ := strconv.ParseFloat(os.Getenv("LLM_RPS"), 64)
	burst, _ := strconv.Atoi(os.Getenv("LLM_BURST"))
	return RateLimit(rps, burst)
}

// -------- Retry --------

// Retry retries Generate up to maxAttempts with exponential backoff starting
// at baseDelay. Context cancellation stops retries immediately.
func Retry(maxAttempts int, baseDelay time.Duration) Middleware {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if baseDelay <= 0 {
		baseDelay = 300 * time.Millisecond
	}
	return func(next Gateway) Gateway {
		return &retrying{next: next, max: maxAttempts, base: baseDelay}
	}
}

type retrying struct {
	next Gateway
	max  int
	base time.Duration
}

func (r *retrying) Name() string { return r.next.Name() }
func (r *retrying) Close() error { return r.next.Close() }

func (r *retrying) Generate(ctx context.Context, systemPrompt string, msgs []Message, opts *Options) (string, error) {
	var last error
	for i := 0; i < r.max; i++ {
		text, err := r.next.Generate(ctx, systemPrompt, msgs, opts)
		if err == nil {
			return text, nil
		}
		last = err
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}
		time.Sleep(r.base * time.Duration(1<<i))
	}
	return "", last
}

// -------- Logging --------

// LogCalls logs one line per model call with stage, latency, and outcome.
func LogCalls(log *zap.Logger) Middleware {
	if log == nil {
		log = zap.NewNop()
	}
	return func(next Gateway) Gateway {
		return &logged{next: next, log: log}
	}
}

type logged struct {
	next Gateway
	log  *zap.Logger
}

func (c *logged) Name() string { return c.next.Name() }
func (c *logged) Close() error { return c.next.Close() }

func (c *logged) Generate(ctx context.Context, systemPrompt string, msgs []Message, opts *Options) (string, error) {
	start := time.Now()
	text, err := c.next.Generate(ctx, systemPrompt, msgs, opts)
	fields := []zap.Field{
		zap.String("model", c.next.Name()),
		zap.String("stage", StageFrom(ctx)),
		zap.Duration("elapsed", time.Since(start)),
	}
	if err != nil {
		c.log.Warn("llm call failed", append(fields, zap.Error(err))...)
		return "", err
	}
	c.log.Debug("llm call ok", append(fields, zap.Int("response_bytes", len(text)))...)
	return text, nil
}
