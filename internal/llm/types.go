// Package llm provides the model gateway: the request/response protocol
// with the hosted language model, including tool-definition advertisement
// and tool-result resubmission.
package llm

import (
	"log/slog"
)

// LevelTrace is below Debug, used for wire-level payload logging.
const LevelTrace = slog.Level(-8)

// Message represents a chat message for the LLM.
type Message struct {
	Role       string     `json:"role"` // system, user, assistant, tool
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"` // For tool responses
}

// ToolCall represents a tool call emitted by the model.
type ToolCall struct {
	ID       string `json:"id,omitempty"` // Provider-assigned ID, required for tool_result correlation
	Function struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	} `json:"function"`
}

// NewToolCall is a convenience constructor; the anonymous Function struct
// is awkward to populate at call sites.
func NewToolCall(id, name string, args map[string]any) ToolCall {
	var tc ToolCall
	tc.ID = id
	tc.Function.Name = name
	tc.Function.Arguments = args
	return tc
}

// ToolDefinition advertises one tool to the model: its name, what it does,
// and the JSON schema of its arguments.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema"`
}

// ChatResponse is the response from the model, normalized to proper Go
// types. Wire format conversion happens at the provider boundary.
type ChatResponse struct {
	Model      string
	Message    Message
	StopReason string

	InputTokens  int
	OutputTokens int
}
