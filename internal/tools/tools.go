// Package tools defines the tools available to the agent and dispatches
// tool calls against their backends. The tool set is closed: it is built
// once at process start and must stay in lockstep with what is advertised
// to the model within a round.
package tools

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/agentfriend/agentfriend/internal/llm"
	"github.com/agentfriend/agentfriend/internal/wallet"
	"github.com/agentfriend/agentfriend/internal/weather"
)

// Tool represents a callable tool.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any
	Handler     func(ctx context.Context, args map[string]any) Outcome
}

// Registry holds the available tools and their backends.
type Registry struct {
	tools   map[string]*Tool
	order   []string // registration order, for deterministic advertisement
	weather WeatherService
	wallet  WalletService
	keys    KeyStore
	logger  *slog.Logger
}

// WeatherService is the weather backend boundary.
type WeatherService interface {
	Lookup(ctx context.Context, location string) (*weather.Report, error)
}

// WalletService is the blockchain backend boundary.
type WalletService interface {
	Generate() (*wallet.Keypair, error)
	BalanceOf(ctx context.Context, address string) (*wallet.Balance, error)
	Send(ctx context.Context, from, to string, amountEther float64, privateKey []byte) (string, error)
}

// KeyStore holds private key material between tool calls. Keys never
// appear in tool arguments, outcomes, or logs.
type KeyStore interface {
	Put(address string, key []byte)
	Get(address string) ([]byte, bool)
}

// NewRegistry creates the registry with all built-in tools wired to the
// given backends.
func NewRegistry(weatherSvc WeatherService, walletSvc WalletService, keys KeyStore, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		tools:   make(map[string]*Tool),
		weather: weatherSvc,
		wallet:  walletSvc,
		keys:    keys,
		logger:  logger.With("component", "tools"),
	}
	r.registerWeatherTools()
	r.registerWalletTools()
	return r
}

// Register adds a tool to the registry.
func (r *Registry) Register(t *Tool) {
	if _, exists := r.tools[t.Name]; !exists {
		r.order = append(r.order, t.Name)
	}
	r.tools[t.Name] = t
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) *Tool {
	return r.tools[name]
}

// Names returns the tool names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Definitions returns the schema advertisements for the model gateway,
// in registration order.
func (r *Registry) Definitions() []llm.ToolDefinition {
	defs := make([]llm.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		defs = append(defs, llm.ToolDefinition{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.Parameters,
		})
	}
	return defs
}

// Dispatch runs a tool by name with the given arguments. It always
// returns an outcome value: unknown tools and argument mismatches are
// failures the model can react to, not errors that abort the turn.
func (r *Registry) Dispatch(ctx context.Context, name string, args map[string]any) Outcome {
	tool := r.tools[name]
	if tool == nil {
		r.logger.Warn("unknown tool requested", "tool", name)
		return Failure(ReasonUnknownTool, "no tool named %q is available", name)
	}

	if msg := validateArgs(tool.Parameters, args); msg != "" {
		r.logger.Warn("argument validation failed", "tool", name, "detail", msg)
		return Failure(ReasonInvalidArguments, "%s", msg)
	}

	outcome := tool.Handler(ctx, args)
	if outcome.OK {
		r.logger.Debug("tool dispatched", "tool", name)
	} else {
		r.logger.Debug("tool failed", "tool", name, "reason", outcome.Reason)
	}
	return outcome
}

// validateArgs checks args against the tool's declared schema: required
// parameters must be present and primitive types must match. Extra
// arguments are ignored — models occasionally add them.
func validateArgs(schema map[string]any, args map[string]any) string {
	if schema == nil {
		return ""
	}

	properties, _ := schema["properties"].(map[string]any)

	if required, ok := schema["required"].([]string); ok {
		for _, name := range required {
			if _, present := args[name]; !present {
				return fmt.Sprintf("missing required argument %q", name)
			}
		}
	}

	for name, value := range args {
		prop, ok := properties[name].(map[string]any)
		if !ok {
			continue
		}
		wantType, _ := prop["type"].(string)
		if !typeMatches(wantType, value) {
			return fmt.Sprintf("argument %q must be of type %s", name, wantType)
		}
	}

	return ""
}

// typeMatches checks a decoded JSON value against a schema type name.
func typeMatches(wantType string, value any) bool {
	switch wantType {
	case "string":
		_, ok := value.(string)
		return ok
	case "number", "integer":
		switch value.(type) {
		case float64, int, int64:
			return true
		}
		return false
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "object":
		_, ok := value.(map[string]any)
		return ok
	case "array":
		_, ok := value.([]any)
		return ok
	default:
		return true
	}
}

// stringArg extracts a string argument, trimmed of the whitespace
// models sometimes wrap values in.
func stringArg(args map[string]any, name string) string {
	s, _ := args[name].(string)
	return strings.TrimSpace(s)
}

// numberArg extracts a numeric argument.
func numberArg(args map[string]any, name string) (float64, bool) {
	switch v := args[name].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}
