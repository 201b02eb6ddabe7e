// Agentfriend is a conversational agent with a small set of real-world
// tools: weather lookup, current time, and an Ethereum wallet (generate,
// balance, send).
//
// It runs an interactive chat loop on the terminal. Conversation history
// is persisted to SQLite so a conversation survives restarts.
// Configuration is loaded from a single YAML file discovered
// automatically (see [config.DefaultSearchPaths]).
//
// Usage:
//
//	agentfriend chat             Start an interactive chat session
//	agentfriend ask <question>   Ask a single question and exit
//	agentfriend version          Print version and build information
//	agentfriend -o json version  Output version information as JSON
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/agentfriend/agentfriend/internal/agent"
	"github.com/agentfriend/agentfriend/internal/buildinfo"
	"github.com/agentfriend/agentfriend/internal/config"
	"github.com/agentfriend/agentfriend/internal/llm"
	"github.com/agentfriend/agentfriend/internal/memory"
	"github.com/agentfriend/agentfriend/internal/persona"
	"github.com/agentfriend/agentfriend/internal/tools"
	"github.com/agentfriend/agentfriend/internal/wallet"
	"github.com/agentfriend/agentfriend/internal/weather"
)

// main is intentionally minimal. It constructs the OS-level environment
// (context, stdio, argv) and delegates immediately to [run]. This keeps
// os.Exit, os.Stdout, and os.Args out of the application logic so that
// the full lifecycle can be driven from tests.
func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdin, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the real entry point for the agentfriend command. All OS-level
// dependencies are injected as parameters so tests can drive the whole
// startup-to-shutdown path.
func run(ctx context.Context, stdin io.Reader, stdout io.Writer, stderr io.Writer, args []string) error {
	// Parse arguments by hand. The flag package relies on package-level
	// globals (flag.CommandLine), which makes it impossible to call run()
	// concurrently from tests. Our argument surface is small enough that
	// manual parsing is clearer than bringing in a CLI framework.
	var configPath string
	var outputFmt string // "text" (default) or "json"
	var command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++ // skip the value
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case (args[i] == "-o" || args[i] == "--output") && i+1 < len(args):
			outputFmt = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-o="):
			outputFmt = strings.TrimPrefix(args[i], "-o=")
		case strings.HasPrefix(args[i], "--output="):
			outputFmt = strings.TrimPrefix(args[i], "--output=")
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-") && command == "":
			command = args[i]
		default:
			if command != "" {
				cmdArgs = append(cmdArgs, args[i])
			} else {
				return fmt.Errorf("unknown flag: %s", args[i])
			}
		}
	}

	if outputFmt == "" {
		outputFmt = "text"
	}
	if outputFmt != "text" && outputFmt != "json" {
		return fmt.Errorf("unknown output format: %q (expected text or json)", outputFmt)
	}

	switch command {
	case "chat", "":
		return runChat(ctx, stdin, stdout, stderr, configPath)
	case "ask":
		if len(cmdArgs) == 0 {
			return fmt.Errorf("usage: agentfriend ask <question>")
		}
		return runAsk(ctx, stdout, stderr, configPath, cmdArgs)
	case "version":
		return runVersion(stdout, outputFmt)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// runVersion prints build metadata in the requested output format.
func runVersion(w io.Writer, outputFmt string) error {
	info := buildinfo.Info()
	if outputFmt == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	fmt.Fprintln(w, buildinfo.String())
	// Print fields in a stable order for human readability.
	for _, k := range []string{"version", "git_commit", "build_time", "go_version", "os", "arch"} {
		if v, ok := info[k]; ok {
			fmt.Fprintf(w, "  %-12s %s\n", k+":", v)
		}
	}
	return nil
}

// printUsage writes the top-level help text to w.
func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "Agentfriend - Conversational Agent with Tools")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: agentfriend [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  chat         Start an interactive chat session (default)")
	fmt.Fprintln(w, "  ask          Ask a single question and exit")
	fmt.Fprintln(w, "  version      Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>    Path to config file (default: auto-discover)")
	fmt.Fprintln(w, "  -o, --output fmt  Output format: text (default) or json")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Config search order:")
	fmt.Fprintln(w, "  ./config.yaml, ~/.config/agentfriend/config.yaml, /etc/agentfriend/config.yaml")
	return nil
}

// runAsk handles the "agentfriend ask <question>" subcommand. It boots
// the agent with an in-memory conversation store and processes a single
// question, printing the reply to stdout. Useful for smoke tests and
// scripting without an interactive session.
func runAsk(ctx context.Context, stdout io.Writer, stderr io.Writer, configPath string, args []string) error {
	question := strings.Join(args, " ")

	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(stderr, slog.LevelWarn)

	// In-memory store is fine for a single question — nothing to persist.
	orch, cleanup, err := buildOrchestrator(cfg, memory.NewInMemoryStore(), logger)
	if err != nil {
		return err
	}
	defer cleanup()

	response, err := orch.ProcessTurn(ctx, "cli-ask", question)
	if err != nil {
		return fmt.Errorf("ask: %w", err)
	}

	fmt.Fprintln(stdout, response)
	return nil
}

// runChat handles the interactive session. It reads lines from stdin,
// processes each as one conversation turn, and prints the reply. An
// empty line is skipped; "exit" or EOF ends the session.
func runChat(ctx context.Context, stdin io.Reader, stdout io.Writer, stderr io.Writer, configPath string) error {
	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	level := slog.LevelWarn
	if cfg.LogLevel != "" {
		// ParseLogLevel errors fall back to the quiet default; a bad
		// level in config should not block an interactive session.
		if parsed, err := config.ParseLogLevel(cfg.LogLevel); err == nil {
			level = parsed
		}
	}
	logger := newLogger(stderr, level)
	logger.Info("starting agentfriend", "version", buildinfo.Version, "config", cfgPath)

	// Conversation store: SQLite when a path is configured, otherwise
	// the session is ephemeral.
	var store memory.Store
	if cfg.Store.Path != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0755); err != nil {
			return fmt.Errorf("create data directory: %w", err)
		}
		sqlStore, err := memory.NewSQLiteStore(cfg.Store.Path)
		if err != nil {
			return fmt.Errorf("open conversation database %s: %w", cfg.Store.Path, err)
		}
		store = sqlStore
		logger.Info("conversation database opened", "path", cfg.Store.Path)
	} else {
		store = memory.NewInMemoryStore()
		logger.Warn("no store path configured, conversation will not persist")
	}

	orch, cleanup, err := buildOrchestrator(cfg, store, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	// Ctrl-C cancels the in-flight turn and ends the session.
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	fmt.Fprintln(stdout, "Agent Friend ready. Type 'exit' to quit.")

	scanner := bufio.NewScanner(stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Fprint(stdout, "You: ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" {
			break
		}

		response, err := orch.ProcessTurn(ctx, "default", line)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			var loopErr *agent.ToolLoopExceededError
			switch {
			case errors.Is(err, agent.ErrEmptyInput):
				continue
			case errors.As(err, &loopErr):
				fmt.Fprintf(stdout, "Agent: I could not finish that request (%s). Nothing was saved; please try again.\n", loopErr)
			default:
				logger.Error("turn failed", "error", err)
				fmt.Fprintf(stdout, "Agent: something went wrong (%s). Nothing was saved; please try again.\n", err)
			}
			continue
		}

		fmt.Fprintf(stdout, "Agent: %s\n", response)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	fmt.Fprintln(stdout, "Goodbye!")
	return nil
}

// buildOrchestrator wires the model client, tool registry, and system
// prompt from config. The returned cleanup closes the store and zeroes
// session key material.
func buildOrchestrator(cfg *config.Config, store memory.Store, logger *slog.Logger) (*agent.Orchestrator, func(), error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	systemPrompt := persona.DefaultSystemPrompt
	if cfg.PersonaFile != "" {
		profile, err := persona.Load(cfg.PersonaFile)
		if err != nil {
			return nil, nil, fmt.Errorf("load persona %s: %w", cfg.PersonaFile, err)
		}
		systemPrompt = profile.SystemPrompt()
		logger.Info("persona loaded", "path", cfg.PersonaFile, "name", profile.Name)
	}

	llmClient := llm.NewAnthropicClient(
		cfg.Anthropic.APIKey,
		cfg.Anthropic.Model,
		cfg.Anthropic.MaxTokens,
		logger,
		llm.WithTimeout(cfg.LLMTimeout()),
	)

	weatherClient := weather.NewClient(cfg.Weather.BaseURL, logger)
	walletClient := wallet.NewClient(cfg.Ethereum.RPCURL, cfg.Ethereum.ChainID, logger)
	keyring := wallet.NewKeyring()

	registry := tools.NewRegistry(weatherClient, walletClient, keyring, logger)

	orch := agent.New(llmClient, registry, store,
		agent.WithSystemPrompt(systemPrompt),
		agent.WithMaxRounds(cfg.Agent.MaxRounds),
		agent.WithHistoryWindow(cfg.Agent.HistoryWindow),
		agent.WithLogger(logger),
	)

	cleanup := func() {
		keyring.Close()
		if err := store.Close(); err != nil {
			logger.Warn("store close failed", "error", err)
		}
	}
	return orch, cleanup, nil
}

// newLogger creates a structured text logger that writes to w at the
// given level. Logs go to stderr so they do not interleave with the
// conversation on stdout.
func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// loadConfig locates and parses the YAML configuration file. If explicit
// is non-empty, that exact path is used (and must exist). Otherwise,
// [config.FindConfig] searches the default locations.
func loadConfig(explicit string) (*config.Config, string, error) {
	cfgPath, err := config.FindConfig(explicit)
	if err != nil {
		return nil, "", err
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, cfgPath, fmt.Errorf("load config %s: %w", cfgPath, err)
	}

	return cfg, cfgPath, nil
}
