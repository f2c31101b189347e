package providers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Rubr1c/discord-ai-sdk-sub000/internal/tools"
	"github.com/Rubr1c/discord-ai-sdk-sub000/pkg/models"
)

func fastBase() base {
	b := newBase("test")
	b.retryDelay = time.Millisecond
	return b
}

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := fastBase().retry(context.Background(), 2, func() error {
		calls++
		if calls < 3 {
			return errors.New("429 too many requests")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("op ran %d times, want 3", calls)
	}
}

func TestRetry_StopsOnPermanentFailure(t *testing.T) {
	calls := 0
	boom := errors.New("401 invalid api key")
	err := fastBase().retry(context.Background(), 3, func() error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected the permanent error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("permanent failures must not retry, ran %d times", calls)
	}
}

func TestRetry_ExhaustsBudget(t *testing.T) {
	calls := 0
	err := fastBase().retry(context.Background(), 2, func() error {
		calls++
		return errors.New("503 service unavailable")
	})
	if err == nil {
		t.Fatal("expected an error after exhausting retries")
	}
	if calls != 3 {
		t.Errorf("op ran %d times, want maxRetries+1 = 3", calls)
	}
}

func TestRetry_HonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := fastBase().retry(ctx, 5, func() error {
		return errors.New("timeout")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("429 Too Many Requests"), true},
		{errors.New("rate limit exceeded"), true},
		{errors.New("context deadline exceeded"), true},
		{errors.New("502 bad gateway"), true},
		{errors.New("overloaded_error"), true},
		{errors.New("read tcp: connection reset by peer"), true},
		{errors.New("401 unauthorized"), false},
		{errors.New("invalid request body"), false},
	}
	for _, tt := range tests {
		if got := isRetryable(tt.err); got != tt.want {
			t.Errorf("isRetryable(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

// scriptedTool returns a fixed result or error.
type scriptedTool struct {
	result *models.ToolResult
	err    error
	params json.RawMessage
}

func (s *scriptedTool) Name() string            { return "scripted" }
func (s *scriptedTool) Description() string     { return "scripted tool" }
func (s *scriptedTool) Schema() json.RawMessage { return json.RawMessage(`{"type":"object"}`) }
func (s *scriptedTool) Execute(ctx context.Context, params json.RawMessage) (*models.ToolResult, error) {
	s.params = params
	return s.result, s.err
}

func TestExecuteTool(t *testing.T) {
	ctx := context.Background()

	t.Run("success passes result through", func(t *testing.T) {
		tool := &scriptedTool{result: &models.ToolResult{Summary: "done"}}
		bound := map[string]tools.Invocable{"scripted": tool}

		res := executeTool(ctx, bound, "scripted", json.RawMessage(`{"a":1}`))
		if res.Failed() || res.Summary != "done" {
			t.Errorf("result = %+v", res)
		}
		if string(tool.params) != `{"a":1}` {
			t.Errorf("params = %s", tool.params)
		}
	})

	t.Run("unknown tool", func(t *testing.T) {
		res := executeTool(ctx, map[string]tools.Invocable{}, "ghost", nil)
		if !res.Failed() {
			t.Error("unknown tool should fail the result")
		}
	})

	t.Run("raised error is folded in", func(t *testing.T) {
		tool := &scriptedTool{err: errors.New("context canceled")}
		res := executeTool(ctx, map[string]tools.Invocable{"scripted": tool}, "scripted", nil)
		if !res.Failed() {
			t.Error("raised error should fail the result")
		}
	})

	t.Run("nil result", func(t *testing.T) {
		tool := &scriptedTool{}
		res := executeTool(ctx, map[string]tools.Invocable{"scripted": tool}, "scripted", nil)
		if !res.Failed() {
			t.Error("nil result should fail the result")
		}
	})
}
