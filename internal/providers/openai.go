package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	openai "github.com/sashabaranov/go-openai"

	"github.com/Rubr1c/discord-ai-sdk-sub000/internal/engine"
	"github.com/Rubr1c/discord-ai-sdk-sub000/internal/tools"
	"github.com/Rubr1c/discord-ai-sdk-sub000/pkg/models"
)

// DefaultOpenAIModel is used when the run request does not name a model.
const DefaultOpenAIModel = "gpt-4o"

// OpenAIRunner implements engine.Runner on OpenAI's chat completions API.
// Safe for concurrent use.
type OpenAIRunner struct {
	base
	client *openai.Client
}

// OpenAIConfig configures the OpenAI runner.
type OpenAIConfig struct {
	// APIKey authenticates with the OpenAI API (required).
	APIKey string

	// BaseURL overrides the API endpoint, for Azure or proxies.
	BaseURL string
}

// NewOpenAIRunner creates a runner from the given configuration.
func NewOpenAIRunner(cfg OpenAIConfig) (*OpenAIRunner, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: api key is required")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAIRunner{
		base:   newBase("openai"),
		client: openai.NewClientWithConfig(clientCfg),
	}, nil
}

// Name identifies the provider.
func (r *OpenAIRunner) Name() string {
	return r.name
}

// Run executes the bounded model/tool loop over chat completions. Tool
// calls returned by the model are executed and fed back as tool-role
// messages until the model answers in text or the step ceiling is hit.
func (r *OpenAIRunner) Run(ctx context.Context, req *engine.RunRequest) (*models.RunResult, error) {
	model := req.Model
	if model == "" {
		model = DefaultOpenAIModel
	}

	messages := []openai.ChatCompletionMessage{}
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	toolDefs := openaiTools(req.Tools)
	result := &models.RunResult{}

	for step := 0; step < req.MaxSteps; step++ {
		chatReq := openai.ChatCompletionRequest{
			Model:       model,
			Messages:    messages,
			Temperature: float32(req.Temperature),
			MaxTokens:   req.MaxTokens,
		}
		if len(toolDefs) > 0 {
			chatReq.Tools = toolDefs
		}

		var resp openai.ChatCompletionResponse
		err := r.retry(ctx, req.MaxRetries, func() error {
			var callErr error
			resp, callErr = r.client.CreateChatCompletion(ctx, chatReq)
			return callErr
		})
		if err != nil {
			return nil, fmt.Errorf("openai: completion request failed: %w", err)
		}
		if len(resp.Choices) == 0 {
			return nil, fmt.Errorf("openai: completion returned no choices")
		}

		choice := resp.Choices[0].Message
		result.Text = choice.Content

		if len(choice.ToolCalls) == 0 {
			return result, nil
		}

		messages = append(messages, choice)

		for _, tc := range choice.ToolCalls {
			toolResult := executeTool(ctx, req.Tools, tc.Function.Name, json.RawMessage(tc.Function.Arguments))
			result.ToolResults = append(result.ToolResults, models.ToolInvocation{
				ToolName: tc.Function.Name,
				Result:   toolResult,
			})

			payload, marshalErr := json.Marshal(toolResult)
			if marshalErr != nil {
				payload = []byte(toolResult.Summary)
			}
			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    string(payload),
				ToolCallID: tc.ID,
			})
		}
	}

	return result, nil
}

// openaiTools converts the bound tool set to function definitions, in name
// order for deterministic requests.
func openaiTools(bound map[string]tools.Invocable) []openai.Tool {
	if len(bound) == 0 {
		return nil
	}

	names := make([]string, 0, len(bound))
	for name := range bound {
		names = append(names, name)
	}
	sort.Strings(names)

	defs := make([]openai.Tool, 0, len(names))
	for _, name := range names {
		tool := bound[name]
		defs = append(defs, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Name(),
				Description: tool.Description(),
				Parameters:  tool.Schema(),
			},
		})
	}
	return defs
}
