package llm

import "context"

// Client is the interface the orchestrator drives. Implementations
// serialize the working log and tool advertisements into the provider's
// wire format and normalize the response.
type Client interface {
	// Chat sends one protocol round and returns the model's response:
	// either a final text reply or one or more tool calls.
	Chat(ctx context.Context, messages []Message, tools []ToolDefinition) (*ChatResponse, error)

	// Ping checks if the provider is reachable with the configured credentials.
	Ping(ctx context.Context) error
}
