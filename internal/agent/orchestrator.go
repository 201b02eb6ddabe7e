// Package agent implements the turn loop: it carries a user utterance
// through the model, dispatches any tool calls the model requests, feeds
// the results back, and commits the completed turn to memory in one
// atomic batch.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/agentfriend/agentfriend/internal/llm"
	"github.com/agentfriend/agentfriend/internal/memory"
	"github.com/agentfriend/agentfriend/internal/tools"
)

// Defaults applied by New when no option overrides them.
const (
	DefaultMaxRounds     = 8
	DefaultHistoryWindow = 40
)

// Orchestrator drives one conversation turn at a time. It is safe for
// sequential use; concurrent turns on the same conversation are not
// supported.
type Orchestrator struct {
	llm           llm.Client
	registry      *tools.Registry
	store         memory.Store
	systemPrompt  string
	maxRounds     int
	historyWindow int
	logger        *slog.Logger
}

// Option configures the orchestrator.
type Option func(*Orchestrator)

// WithSystemPrompt sets the system prompt sent on every model request.
func WithSystemPrompt(prompt string) Option {
	return func(o *Orchestrator) { o.systemPrompt = prompt }
}

// WithMaxRounds caps how many model round-trips a single turn may take.
func WithMaxRounds(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxRounds = n
		}
	}
}

// WithHistoryWindow sets how many recent turns are loaded as context.
func WithHistoryWindow(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.historyWindow = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// New creates an orchestrator over the given model client, tool registry,
// and conversation store.
func New(client llm.Client, registry *tools.Registry, store memory.Store, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		llm:           client,
		registry:      registry,
		store:         store,
		maxRounds:     DefaultMaxRounds,
		historyWindow: DefaultHistoryWindow,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ProcessTurn runs one full conversation turn and returns the assistant's
// final reply text.
//
// The turn either completes and commits as a whole, or fails and commits
// nothing: the user turn, any assistant tool-call turns, any tool-result
// turns, and the final assistant turn are appended to the store in a
// single atomic batch only after the model produces a reply that requests
// no further tools. A failed turn leaves the conversation exactly as it
// was, so the caller may retry the same input.
func (o *Orchestrator) ProcessTurn(ctx context.Context, conversationID, userText string) (string, error) {
	userText = strings.TrimSpace(userText)
	if userText == "" {
		return "", ErrEmptyInput
	}

	history, err := o.store.LoadRecent(ctx, conversationID, o.historyWindow)
	if err != nil {
		return "", fmt.Errorf("loading history: %w", err)
	}

	// Turns produced by this turn. Persisted as one batch on success.
	pending := []memory.Turn{newTurn(memory.RoleUser, userText)}

	defs := o.registry.Definitions()

	for round := 1; round <= o.maxRounds; round++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		messages, err := o.buildMessages(history, pending)
		if err != nil {
			return "", err
		}

		resp, err := o.llm.Chat(ctx, messages, defs)
		if err != nil {
			return "", fmt.Errorf("model request (round %d): %w", round, err)
		}

		if len(resp.Message.ToolCalls) == 0 {
			pending = append(pending, newTurn(memory.RoleAssistant, resp.Message.Content))
			if err := o.store.AppendTurns(ctx, conversationID, pending); err != nil {
				return "", fmt.Errorf("persisting turn: %w", err)
			}
			o.logger.Debug("turn complete",
				"conversation_id", conversationID,
				"rounds", round,
				"input_tokens", resp.InputTokens,
				"output_tokens", resp.OutputTokens)
			return resp.Message.Content, nil
		}

		assistantTurn, err := assistantToolTurn(resp.Message)
		if err != nil {
			return "", err
		}
		pending = append(pending, assistantTurn)

		for _, call := range resp.Message.ToolCalls {
			name := call.Function.Name
			o.logger.Info("dispatching tool",
				"tool", name,
				"round", round,
				"conversation_id", conversationID)

			outcome := o.registry.Dispatch(ctx, name, call.Function.Arguments)
			if !outcome.OK {
				o.logger.Warn("tool failed",
					"tool", name,
					"reason", string(outcome.Reason),
					"message", outcome.Message)
			}

			pending = append(pending, memory.Turn{
				ID:         uuid.NewString(),
				Role:       memory.RoleTool,
				Content:    outcome.Encode(),
				ToolCallID: call.ID,
				ToolName:   name,
				CreatedAt:  time.Now().UTC(),
			})
		}
	}

	return "", &ToolLoopExceededError{Rounds: o.maxRounds}
}

// buildMessages assembles the model request: system prompt, then the
// persisted history window, then this turn's pending log.
func (o *Orchestrator) buildMessages(history, pending []memory.Turn) ([]llm.Message, error) {
	messages := make([]llm.Message, 0, len(history)+len(pending)+1)
	if o.systemPrompt != "" {
		messages = append(messages, llm.Message{Role: "system", Content: o.systemPrompt})
	}
	for _, t := range history {
		msg, err := turnToMessage(t)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	for _, t := range pending {
		msg, err := turnToMessage(t)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func turnToMessage(t memory.Turn) (llm.Message, error) {
	msg := llm.Message{
		Role:       t.Role,
		Content:    t.Content,
		ToolCallID: t.ToolCallID,
	}
	if t.ToolCalls != "" {
		if err := json.Unmarshal([]byte(t.ToolCalls), &msg.ToolCalls); err != nil {
			return llm.Message{}, fmt.Errorf("decoding stored tool calls for turn %s: %w", t.ID, err)
		}
	}
	return msg, nil
}

// assistantToolTurn records an assistant message that requested tools,
// with the calls JSON-encoded for replay on later rounds.
func assistantToolTurn(msg llm.Message) (memory.Turn, error) {
	encoded, err := json.Marshal(msg.ToolCalls)
	if err != nil {
		return memory.Turn{}, fmt.Errorf("encoding tool calls: %w", err)
	}
	t := newTurn(memory.RoleAssistant, msg.Content)
	t.ToolCalls = string(encoded)
	return t, nil
}

func newTurn(role, content string) memory.Turn {
	return memory.Turn{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}
