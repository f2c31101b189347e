package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/Rubr1c/discord-ai-sdk-sub000/internal/engine"
	"github.com/Rubr1c/discord-ai-sdk-sub000/internal/tools"
	"github.com/Rubr1c/discord-ai-sdk-sub000/pkg/models"
)

// DefaultAnthropicModel is used when the run request does not name a model.
const DefaultAnthropicModel = "claude-sonnet-4-20250514"

// AnthropicRunner implements engine.Runner on Anthropic's Messages API.
// Safe for concurrent use; each Run drives an independent conversation.
type AnthropicRunner struct {
	base
	client anthropic.Client
}

// AnthropicConfig configures the Anthropic runner.
type AnthropicConfig struct {
	// APIKey authenticates with the Anthropic API (required).
	APIKey string

	// BaseURL overrides the API endpoint, for proxies.
	BaseURL string
}

// NewAnthropicRunner creates a runner from the given configuration.
func NewAnthropicRunner(cfg AnthropicConfig) (*AnthropicRunner, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic: api key is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &AnthropicRunner{
		base:   newBase("anthropic"),
		client: anthropic.NewClient(opts...),
	}, nil
}

// Name identifies the provider.
func (r *AnthropicRunner) Name() string {
	return r.name
}

// Run executes the bounded model/tool loop. Each step sends the
// conversation, executes any requested tool calls, and appends the results;
// the loop ends when the model stops requesting tools or the step ceiling
// is reached.
func (r *AnthropicRunner) Run(ctx context.Context, req *engine.RunRequest) (*models.RunResult, error) {
	model := req.Model
	if model == "" {
		model = DefaultAnthropicModel
	}

	toolParams, err := anthropicTools(req.Tools)
	if err != nil {
		return nil, err
	}

	messages := []anthropic.MessageParam{
		anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
	}

	result := &models.RunResult{}

	for step := 0; step < req.MaxSteps; step++ {
		params := anthropic.MessageNewParams{
			Model:       anthropic.Model(model),
			MaxTokens:   int64(req.MaxTokens),
			Messages:    messages,
			Temperature: anthropic.Float(req.Temperature),
		}
		if req.System != "" {
			params.System = []anthropic.TextBlockParam{{Type: "text", Text: req.System}}
		}
		if len(toolParams) > 0 {
			params.Tools = toolParams
		}

		var msg *anthropic.Message
		err := r.retry(ctx, req.MaxRetries, func() error {
			var callErr error
			msg, callErr = r.client.Messages.New(ctx, params)
			return callErr
		})
		if err != nil {
			return nil, fmt.Errorf("anthropic: message request failed: %w", err)
		}

		var stepText string
		var toolUses []anthropic.ToolUseBlock
		for _, block := range msg.Content {
			switch b := block.AsAny().(type) {
			case anthropic.TextBlock:
				stepText += b.Text
			case anthropic.ToolUseBlock:
				toolUses = append(toolUses, b)
			}
		}
		result.Text = stepText

		if len(toolUses) == 0 {
			return result, nil
		}

		messages = append(messages, msg.ToParam())

		var resultBlocks []anthropic.ContentBlockParamUnion
		for _, use := range toolUses {
			input, marshalErr := json.Marshal(use.Input)
			if marshalErr != nil {
				input = []byte("{}")
			}
			toolResult := executeTool(ctx, req.Tools, use.Name, input)
			result.ToolResults = append(result.ToolResults, models.ToolInvocation{
				ToolName: use.Name,
				Result:   toolResult,
			})

			payload, marshalErr := json.Marshal(toolResult)
			if marshalErr != nil {
				payload = []byte(toolResult.Summary)
			}
			resultBlocks = append(resultBlocks, anthropic.NewToolResultBlock(
				use.ID,
				string(payload),
				toolResult.Failed(),
			))
		}
		messages = append(messages, anthropic.NewUserMessage(resultBlocks...))
	}

	// Step ceiling reached; return whatever accumulated.
	return result, nil
}

// anthropicTools converts the bound tool set to Messages API tool params,
// in name order for deterministic requests.
func anthropicTools(bound map[string]tools.Invocable) ([]anthropic.ToolUnionParam, error) {
	if len(bound) == 0 {
		return nil, nil
	}

	names := make([]string, 0, len(bound))
	for name := range bound {
		names = append(names, name)
	}
	sort.Strings(names)

	params := make([]anthropic.ToolUnionParam, 0, len(names))
	for _, name := range names {
		tool := bound[name]

		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(tool.Schema(), &schema); err != nil {
			return nil, fmt.Errorf("anthropic: invalid schema for tool %s: %w", name, err)
		}

		toolParam := anthropic.ToolUnionParamOfTool(schema, tool.Name())
		if toolParam.OfTool == nil {
			return nil, fmt.Errorf("anthropic: invalid tool definition for %s", name)
		}
		toolParam.OfTool.Description = anthropic.String(tool.Description())
		params = append(params, toolParam)
	}
	return params, nil
}
