package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Rubr1c/discord-ai-sdk-sub000/internal/observability"
	"github.com/Rubr1c/discord-ai-sdk-sub000/internal/prompt"
	"github.com/Rubr1c/discord-ai-sdk-sub000/internal/ratelimit"
	"github.com/Rubr1c/discord-ai-sdk-sub000/internal/tools"
	"github.com/Rubr1c/discord-ai-sdk-sub000/pkg/models"
)

// fakeRunner records the run request and replies with a canned result.
type fakeRunner struct {
	result  *models.RunResult
	err     error
	lastReq *RunRequest
	calls   int
}

func (f *fakeRunner) Name() string { return "fake" }

func (f *fakeRunner) Run(ctx context.Context, req *RunRequest) (*models.RunResult, error) {
	f.lastReq = req
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func request() *models.Request {
	return &models.Request{
		ID:        "req-1",
		UserID:    "user-1",
		GuildID:   "guild-1",
		GuildName: "Test Server",
		ChannelID: "chan-1",
	}
}

func newEngine(runner Runner, policy ratelimit.Policy) *Engine {
	return New(Config{
		Model:    "test-model",
		Runner:   runner,
		Prompts:  prompt.NewBuilder("", false),
		Registry: tools.NewRegistry(),
		Limiter:  ratelimit.NewLimiter(ratelimit.StaticPolicy(policy)),
	})
}

func TestHandle_ModelTextWinsVerbatim(t *testing.T) {
	runner := &fakeRunner{result: &models.RunResult{
		Text: "All done!",
		ToolResults: []models.ToolInvocation{
			{ToolName: "send_message", Result: models.ToolResult{Summary: "Sent message"}},
		},
	}}
	eng := newEngine(runner, ratelimit.Policy{Limit: 10, Window: time.Minute})

	got, err := eng.Handle(context.Background(), "do it", request(), true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "All done!" {
		t.Errorf("got %q, want model text verbatim", got)
	}
}

func TestHandle_ToolReportWhenNoText(t *testing.T) {
	runner := &fakeRunner{result: &models.RunResult{
		Text: "   \n",
		ToolResults: []models.ToolInvocation{
			{ToolName: "create_text_channel", Result: models.ToolResult{Summary: "Created channel #general"}},
			{ToolName: "add_role", Result: models.ToolResult{Error: "missing permissions"}},
			{ToolName: "list_roles", Result: models.ToolResult{}},
		},
	}}
	eng := newEngine(runner, ratelimit.Policy{Limit: 10, Window: time.Minute})

	got, err := eng.Handle(context.Background(), "do it", request(), true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.HasPrefix(got, "I completed the following actions:") {
		t.Errorf("report should open with the header, got %q", got)
	}
	for _, want := range []string{
		"**create_text_channel**: Created channel #general",
		"**add_role**: Error - missing permissions",
		"**list_roles**: Tool executed successfully",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("report missing %q in:\n%s", want, got)
		}
	}

	// Results appear in invocation order.
	first := strings.Index(got, "create_text_channel")
	second := strings.Index(got, "add_role")
	third := strings.Index(got, "list_roles")
	if !(first < second && second < third) {
		t.Errorf("tool results out of order:\n%s", got)
	}
}

func TestHandle_FallbackWhenRunIsEmpty(t *testing.T) {
	runner := &fakeRunner{result: &models.RunResult{}}
	eng := newEngine(runner, ratelimit.Policy{Limit: 10, Window: time.Minute})

	got, err := eng.Handle(context.Background(), "do it", request(), true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != fallbackMessage {
		t.Errorf("got %q, want the fallback message", got)
	}
}

func TestHandle_RawTextWithoutPostProcess(t *testing.T) {
	runner := &fakeRunner{result: &models.RunResult{
		ToolResults: []models.ToolInvocation{
			{ToolName: "send_message", Result: models.ToolResult{Summary: "Sent message"}},
		},
	}}
	eng := newEngine(runner, ratelimit.Policy{Limit: 10, Window: time.Minute})

	got, err := eng.Handle(context.Background(), "do it", request(), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "" {
		t.Errorf("raw mode should return the empty model text, got %q", got)
	}
}

func TestHandle_RateLimited(t *testing.T) {
	runner := &fakeRunner{result: &models.RunResult{Text: "ok"}}
	eng := newEngine(runner, ratelimit.Policy{Limit: 1, Window: time.Hour})
	ctx := context.Background()

	if _, err := eng.Handle(ctx, "first", request(), true); err != nil {
		t.Fatalf("first request should pass: %v", err)
	}

	_, err := eng.Handle(ctx, "second", request(), true)
	if !models.IsCode(err, models.CodeRateLimited) {
		t.Fatalf("expected RATE_LIMITED, got %v", err)
	}
	if runner.calls != 1 {
		t.Errorf("runner should not run for a limited request, ran %d times", runner.calls)
	}
}

func TestHandle_RunnerFailureIsNormalized(t *testing.T) {
	cause := errors.New("api: connection reset")
	runner := &fakeRunner{err: cause}
	eng := newEngine(runner, ratelimit.Policy{Limit: 10, Window: time.Minute})

	_, err := eng.Handle(context.Background(), "do it", request(), true)
	if !models.IsCode(err, models.CodeModelExecution) {
		t.Fatalf("expected MODEL_EXECUTION_FAILED, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Error("normalized error should wrap the runner failure")
	}
}

func TestHandle_PassesCeilingsAndPromptToRunner(t *testing.T) {
	runner := &fakeRunner{result: &models.RunResult{Text: "ok"}}
	eng := New(Config{
		Model:    "test-model",
		Runner:   runner,
		Prompts:  prompt.NewBuilder("", false),
		Registry: tools.NewRegistry(),
		Limiter:  ratelimit.NewLimiter(ratelimit.StaticPolicy(ratelimit.Policy{Limit: 10, Window: time.Minute})),
		Options:  Options{MaxRetries: 4, MaxSteps: 7, Temperature: 0.3, MaxTokens: 900},
	})

	if _, err := eng.Handle(context.Background(), "hello there", request(), true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := runner.lastReq
	if got == nil {
		t.Fatal("runner never ran")
	}
	if got.Model != "test-model" {
		t.Errorf("model = %q", got.Model)
	}
	if got.MaxRetries != 4 || got.MaxSteps != 7 || got.Temperature != 0.3 || got.MaxTokens != 900 {
		t.Errorf("ceilings not forwarded: %+v", got)
	}
	if !strings.Contains(got.Prompt, "hello there") {
		t.Errorf("prompt missing user text: %q", got.Prompt)
	}
	if !strings.Contains(got.Prompt, "user-1") || !strings.Contains(got.Prompt, "Test Server") {
		t.Errorf("prompt missing request context: %q", got.Prompt)
	}
	if got.System == "" {
		t.Error("system instruction should be non-empty")
	}
}

func TestNew_AppliesOptionDefaults(t *testing.T) {
	eng := newEngine(&fakeRunner{result: &models.RunResult{Text: "ok"}},
		ratelimit.Policy{Limit: 10, Window: time.Minute})

	opts := eng.Options()
	want := DefaultOptions()
	if opts.MaxRetries != want.MaxRetries || opts.MaxSteps != want.MaxSteps || opts.MaxTokens != want.MaxTokens {
		t.Errorf("defaults not applied: %+v", opts)
	}
	if opts.Temperature != 0 {
		t.Errorf("default temperature should be 0, got %v", opts.Temperature)
	}
}

func TestLoggerRoundTrip(t *testing.T) {
	eng := newEngine(&fakeRunner{result: &models.RunResult{Text: "ok"}},
		ratelimit.Policy{Limit: 10, Window: time.Minute})

	if got := eng.Logger(); got != nil {
		t.Errorf("Logger() = %v, want nil before configuration", got)
	}

	sink := observability.NopSink{}
	eng.SetLogger(sink)
	if got := eng.Logger(); got != sink {
		t.Errorf("Logger() = %v, want the configured sink", got)
	}
}

func TestSummarize(t *testing.T) {
	tests := []struct {
		name string
		res  models.ToolResult
		want string
	}{
		{"error wins over summary", models.ToolResult{Summary: "did it", Error: "boom"}, "Error - boom"},
		{"summary", models.ToolResult{Summary: "did it"}, "did it"},
		{"neither", models.ToolResult{}, "Tool executed successfully"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := summarize(tt.res); got != tt.want {
				t.Errorf("summarize() = %q, want %q", got, tt.want)
			}
		})
	}
}
