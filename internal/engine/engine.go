// Package engine implements the orchestrator that turns a user message into
// a bounded, policy-constrained model run and synthesizes the reply text.
package engine

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/Rubr1c/discord-ai-sdk-sub000/internal/observability"
	"github.com/Rubr1c/discord-ai-sdk-sub000/internal/prompt"
	"github.com/Rubr1c/discord-ai-sdk-sub000/internal/ratelimit"
	"github.com/Rubr1c/discord-ai-sdk-sub000/internal/tools"
	"github.com/Rubr1c/discord-ai-sdk-sub000/pkg/models"
)

// RunRequest carries everything a runner needs for one bounded model/tool
// run: the conversation inputs, the bound tool set, and the run ceilings.
type RunRequest struct {
	// Model is the provider-specific model identifier.
	Model string

	// Prompt is the rendered user turn.
	Prompt string

	// System is the rendered system instruction.
	System string

	// Tools maps tool names to request-bound invocables.
	Tools map[string]tools.Invocable

	// MaxRetries bounds the runner's internal retry attempts per API call.
	MaxRetries int

	// MaxSteps bounds model⇄tool round trips before forced termination.
	MaxSteps int

	// Temperature is the sampling temperature.
	Temperature float64

	// MaxTokens caps the model's output size per step.
	MaxTokens int
}

// Runner is the model-invocation collaborator. It owns the model⇄tool loop
// within the ceilings of the request and fails with an opaque error the
// engine normalizes into MODEL_EXECUTION_FAILED.
type Runner interface {
	// Name identifies the provider for logs and metrics.
	Name() string

	// Run executes one bounded model/tool run.
	Run(ctx context.Context, req *RunRequest) (*models.RunResult, error)
}

// Options holds the engine's run configuration. The zero value is not
// useful; use DefaultOptions.
type Options struct {
	// MaxRetries bounds runner retries per API call. Default: 2.
	MaxRetries int `yaml:"max_retries"`

	// MaxSteps bounds model/tool round trips per run. Default: 5.
	MaxSteps int `yaml:"max_steps"`

	// Temperature is the sampling temperature. Default: 0.
	Temperature float64 `yaml:"temperature"`

	// MaxTokens caps output size per step. Default: 400.
	MaxTokens int `yaml:"max_tokens"`
}

// DefaultOptions returns the default run configuration.
func DefaultOptions() Options {
	return Options{
		MaxRetries:  2,
		MaxSteps:    5,
		Temperature: 0,
		MaxTokens:   400,
	}
}

// fallbackMessage is returned when a run yields neither text nor tool
// results.
const fallbackMessage = "I wasn't able to generate a response for that request. Please try rephrasing it."

// toolReportHeader introduces the tool-result section when the model
// produced no final text of its own.
const toolReportHeader = "I completed the following actions:"

// Engine composes the quota guard, tool catalog, prompt assembler, and a
// model runner into the request pipeline. Configuration setters are safe
// between calls, not during them.
type Engine struct {
	mu       sync.RWMutex
	model    string
	runner   Runner
	prompts  *prompt.Builder
	registry *tools.Registry
	limiter  *ratelimit.Limiter
	logger   observability.Sink
	metrics  *observability.Metrics
	opts     Options
}

// Config collects the engine's collaborators. Runner, Registry, Prompts,
// and Limiter are required; Logger and Metrics may be nil.
type Config struct {
	Model    string
	Runner   Runner
	Prompts  *prompt.Builder
	Registry *tools.Registry
	Limiter  *ratelimit.Limiter
	Logger   observability.Sink
	Metrics  *observability.Metrics
	Options  Options
}

// New creates an engine from the given configuration, applying option
// defaults for unset ceilings.
func New(cfg Config) *Engine {
	opts := cfg.Options
	defaults := DefaultOptions()
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = defaults.MaxRetries
	}
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = defaults.MaxSteps
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = defaults.MaxTokens
	}

	return &Engine{
		model:    cfg.Model,
		runner:   cfg.Runner,
		prompts:  cfg.Prompts,
		registry: cfg.Registry,
		limiter:  cfg.Limiter,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		opts:     opts,
	}
}

// Handle runs the full pipeline for one request: quota check, tool
// resolution, prompt assembly, the bounded model run, and synthesis. It
// fails with a RATE_LIMITED error when the principal is over quota and a
// MODEL_EXECUTION_FAILED error when the runner fails. With postProcess
// false the raw model text is returned as-is, even if empty.
func (e *Engine) Handle(ctx context.Context, text string, req *models.Request, postProcess bool) (string, error) {
	e.mu.RLock()
	limiter := e.limiter
	e.mu.RUnlock()

	limited, err := limiter.Limited(ctx, req)
	if err != nil {
		e.metricsRef().RecordRequest("error")
		return "", err
	}
	if limited {
		e.metricsRef().RecordRequest("rate_limited")
		e.log().Warn(ctx, "request rate limited",
			"user_id", req.UserID,
			"guild_id", req.GuildID,
		)
		return "", models.ErrRateLimited("you are sending requests too quickly, try again shortly")
	}

	result, err := e.callModel(ctx, text, req)
	if err != nil {
		return "", err
	}

	if !postProcess {
		return result.Text, nil
	}
	return e.synthesize(result), nil
}

// callModel assembles the prompt and bound tool set and executes one run,
// normalizing any runner failure into the MODEL_EXECUTION_FAILED condition.
func (e *Engine) callModel(ctx context.Context, text string, req *models.Request) (*models.RunResult, error) {
	e.mu.RLock()
	model := e.model
	runner := e.runner
	prompts := e.prompts
	registry := e.registry
	opts := e.opts
	e.mu.RUnlock()

	system, userPrompt := prompts.Build(text, req)

	bound, err := registry.Bind(ctx, req)
	if err != nil {
		e.metricsRef().RecordRequest("error")
		return nil, err
	}

	start := time.Now()
	result, err := runner.Run(ctx, &RunRequest{
		Model:       model,
		Prompt:      userPrompt,
		System:      system,
		Tools:       bound,
		MaxRetries:  opts.MaxRetries,
		MaxSteps:    opts.MaxSteps,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	})
	e.metricsRef().ObserveModelRun(runner.Name(), model, time.Since(start).Seconds())

	if err != nil {
		e.metricsRef().RecordRequest("model_error")
		e.log().Error(ctx, "model run failed",
			"provider", runner.Name(),
			"model", model,
			"user_id", req.UserID,
			"guild_id", req.GuildID,
			"error", err,
		)
		return nil, models.ErrModelExecution("the model failed to process your request", err)
	}

	for _, inv := range result.ToolResults {
		e.metricsRef().RecordToolInvocation(inv.ToolName, inv.Result.Failed())
	}
	e.metricsRef().RecordRequest("ok")
	e.log().Info(ctx, "model run completed",
		"provider", runner.Name(),
		"model", model,
		"user_id", req.UserID,
		"guild_id", req.GuildID,
		"tool_calls", len(result.ToolResults),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return result, nil
}

// synthesize produces the final response text. Non-empty model text wins
// verbatim; otherwise tool results are rendered one per line under a
// header; with neither, a fixed fallback message is returned.
func (e *Engine) synthesize(result *models.RunResult) string {
	if trimmed := strings.TrimSpace(result.Text); trimmed != "" {
		return result.Text
	}

	if len(result.ToolResults) > 0 {
		var sb strings.Builder
		sb.WriteString(toolReportHeader)
		for _, inv := range result.ToolResults {
			sb.WriteString("\n\n**")
			sb.WriteString(inv.ToolName)
			sb.WriteString("**: ")
			sb.WriteString(summarize(inv.Result))
		}
		return sb.String()
	}

	return fallbackMessage
}

// summarize extracts the per-result line, preferring an explicit error,
// then the summary, then a generic success note.
func summarize(res models.ToolResult) string {
	if res.Error != "" {
		return "Error - " + res.Error
	}
	if res.Summary != "" {
		return res.Summary
	}
	return "Tool executed successfully"
}

// Model returns the active model identifier.
func (e *Engine) Model() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.model
}

// SetModel replaces the active model identifier.
func (e *Engine) SetModel(model string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.model = model
}

// Runner returns the active model runner.
func (e *Engine) Runner() Runner {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.runner
}

// SetRunner replaces the model runner.
func (e *Engine) SetRunner(r Runner) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.runner = r
}

// Prompts returns the prompt builder.
func (e *Engine) Prompts() *prompt.Builder {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.prompts
}

// SetPrompts replaces the prompt builder.
func (e *Engine) SetPrompts(b *prompt.Builder) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.prompts = b
}

// Registry returns the tool registry.
func (e *Engine) Registry() *tools.Registry {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.registry
}

// SetRegistry replaces the tool registry.
func (e *Engine) SetRegistry(r *tools.Registry) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.registry = r
}

// Limiter returns the quota guard.
func (e *Engine) Limiter() *ratelimit.Limiter {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.limiter
}

// SetLimiter replaces the quota guard.
func (e *Engine) SetLimiter(l *ratelimit.Limiter) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.limiter = l
}

// Logger returns the log sink, or nil when none is configured.
func (e *Engine) Logger() observability.Sink {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.logger
}

// SetLogger replaces the log sink.
func (e *Engine) SetLogger(s observability.Sink) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.logger = s
}

// Options returns the active run configuration.
func (e *Engine) Options() Options {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.opts
}

// SetOptions replaces the run configuration for subsequent calls.
func (e *Engine) SetOptions(opts Options) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.opts = opts
}

// log returns the configured sink or a no-op stand-in.
func (e *Engine) log() observability.Sink {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.logger != nil {
		return e.logger
	}
	return observability.NopSink{}
}

// metricsRef returns the configured metrics; the *Metrics methods tolerate
// a nil receiver.
func (e *Engine) metricsRef() *observability.Metrics {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.metrics
}
