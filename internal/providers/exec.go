package providers

import (
	"context"
	"encoding/json"

	"github.com/Rubr1c/discord-ai-sdk-sub000/internal/tools"
	"github.com/Rubr1c/discord-ai-sdk-sub000/pkg/models"
)

// executeTool runs one model-requested tool call against the bound set and
// always produces a result: unknown tools, raised errors, and nil results
// are all folded into the error field so a failing tool degrades to a
// reported line rather than aborting the run.
func executeTool(ctx context.Context, bound map[string]tools.Invocable, name string, params json.RawMessage) models.ToolResult {
	tool, ok := bound[name]
	if !ok {
		return models.ToolResult{Error: "tool not available: " + name}
	}

	result, err := tool.Execute(ctx, params)
	if err != nil {
		return models.ToolResult{Error: err.Error()}
	}
	if result == nil {
		return models.ToolResult{Error: "tool returned no result: " + name}
	}
	return *result
}
