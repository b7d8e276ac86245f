package llm

import (
	"context"
	"errors"
	"testing"
	"time"
)

type countingGateway struct {
	calls int
	failN int
	text  string
}

func (c *countingGateway) Name() string { return "counting" }
func (c *countingGateway) Close() error { return nil }
func (c *countingGateway) Generate(ctx context.Context, systemPrompt string, msgs []Message, opts *Options) (string, error) {
	c.calls++
	if c.calls <= c.failN {
		return "", errors.New("transient")
	}
	return c.text, nil
}

func TestRetryRecovers(t *testing.T) {
	inner := &countingGateway{failN: 2, text: "ok"}
	gw := Wrap(inner, Retry(3, time.Millisecond))
	got, err := gw.Generate(context.Background(), "sys", nil, nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "ok" || inner.calls != 3 {
		t.Fatalf("got %q after %d calls", got, inner.calls)
	}
}

func TestRetryExhausts(t *testing.T) {
	inner := &countingGateway{failN: 10}
	gw := Wrap(inner, Retry(3, time.Millisecond))
	if _, err := gw.Generate(context.Background(), "sys", nil, nil); err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if inner.calls != 3 {
		t.Fatalf("calls = %d, want 3", inner.calls)
	}
}

func TestFakeGatewayStageRouting(t *testing.T) {
	gw := NewFakeGateway()
	ctx := WithStage(context.Background(), "expert")
	got, err := gw.Generate(ctx, "sys", nil, nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != `{"summary": "fake answer summary", "detail": "fake answer detail"}` {
		t.Fatalf("expert response = %q", got)
	}

	// Unknown stages return an empty object, not an error.
	got, err = gw.Generate(context.Background(), "sys", nil, nil)
	if err != nil || got != `{}` {
		t.Fatalf("untagged response = %q err = %v", got, err)
	}
}

func TestFakeGatewayOverrides(t *testing.T) {
	gw := &FakeGateway{Overrides: map[string]string{"technical": ""}}
	ctx := WithStage(context.Background(), "technical")
	if _, err := gw.Generate(ctx, "sys", nil, nil); !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("err = %v, want ErrEmptyResponse", err)
	}
}

func TestWrapOrder(t *testing.T) {
	inner := &countingGateway{text: "ok"}
	gw := Wrap(inner, Retry(2, time.Millisecond), RateLimit(1000, 10))
	if gw.Name() != "counting" {
		t.Fatalf("name = %q", gw.Name())
	}
	if _, err := gw.Generate(context.Background(), "sys", nil, nil); err != nil {
		t.Fatalf("Generate: %v", err)
	}
}

func TestStageContext(t *testing.T) {
	if StageFrom(context.Background()) != "" {
		t.Fatal("empty context must yield empty stage")
	}
	ctx := WithStage(context.Background(), "news")
	if StageFrom(ctx) != "news" {
		t.Fatalf("stage = %q", StageFrom(ctx))
	}
}
