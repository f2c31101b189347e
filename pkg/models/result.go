package models

// ToolResult is the discriminated result shape every tool returns. Tools
// catch their own failures and report them through Error rather than
// raising, so a single failing tool degrades to a reported line in the
// response instead of aborting the request.
type ToolResult struct {
	// Summary is a human-readable one-line description of what happened.
	Summary string `json:"summary"`

	// Data carries optional structured output for the model to reason over.
	Data any `json:"data,omitempty"`

	// Error holds the failure description when the tool did not succeed.
	// Empty means success.
	Error string `json:"error,omitempty"`
}

// Failed reports whether the result represents a tool failure.
func (r ToolResult) Failed() bool {
	return r.Error != ""
}

// ToolInvocation pairs a tool name with the result it produced during a
// model run, in execution order.
type ToolInvocation struct {
	ToolName string     `json:"tool_name"`
	Result   ToolResult `json:"result"`
}

// RunResult is the outcome of one bounded model/tool-call run: the final
// model text plus every tool invocation that occurred, in order. It is
// immutable once returned by a runner.
type RunResult struct {
	Text        string           `json:"text"`
	ToolResults []ToolInvocation `json:"tool_results,omitempty"`
}
