// Package memory provides durable conversation storage. A conversation is
// an append-only log of turns; committed turns are never mutated or
// deleted, and appends are atomic per batch.
package memory

import (
	"context"
	"errors"
	"time"
)

// Turn roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Sentinel errors for store failures.
var (
	// ErrWriteFailed indicates an append did not commit. The conversation
	// is unchanged: appends are all-or-nothing.
	ErrWriteFailed = errors.New("store write failed")

	// ErrReadFailed indicates history could not be loaded.
	ErrReadFailed = errors.New("store read failed")
)

// Turn is one persisted unit of conversation: a user message, an
// assistant message (possibly carrying tool calls), or a tool result.
type Turn struct {
	ID         string    `json:"id"`
	Role       string    `json:"role"`
	Content    string    `json:"content"`
	ToolCalls  string    `json:"tool_calls,omitempty"`   // JSON-encoded []llm.ToolCall
	ToolCallID string    `json:"tool_call_id,omitempty"` // correlation id for tool results
	ToolName   string    `json:"tool_name,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store is the conversation persistence boundary.
type Store interface {
	// AppendTurns commits a batch of turns to a conversation in order,
	// atomically: either every turn commits or none does.
	AppendTurns(ctx context.Context, conversationID string, turns []Turn) error

	// LoadRecent returns the trailing window of up to limit turns for a
	// conversation, in chronological append order.
	LoadRecent(ctx context.Context, conversationID string, limit int) ([]Turn, error)

	// Close releases store resources.
	Close() error
}
