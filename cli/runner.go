// Command execution for CLI commands.
//
// Information Hiding:
// - Agent assembly hidden from the command layer
// - Interactive approval prompting hidden
// - Output formatting hidden
package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/chrispangg/ai-sdk-deepagent/agent"
	"github.com/chrispangg/ai-sdk-deepagent/backend"
	"github.com/chrispangg/ai-sdk-deepagent/checkpoint"
	"github.com/chrispangg/ai-sdk-deepagent/config"
	"github.com/chrispangg/ai-sdk-deepagent/llm"
	"github.com/chrispangg/ai-sdk-deepagent/model"
	"github.com/chrispangg/ai-sdk-deepagent/storage"
	"github.com/chrispangg/ai-sdk-deepagent/tools"
)

// Options holds CLI execution options.
type Options struct {
	Provider   string
	Thread     string
	DB         string
	Dir        string
	AgentsFile string
	MaxSteps   int
	Verbose    bool
	ApproveAll bool
	EnableExec bool
	EnableHTTP bool
}

// Run executes one task through the agent and streams output to the
// terminal.
func Run(ctx context.Context, task string, opts Options) error {
	cfg, closer, err := buildConfig(opts)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer()
	}

	a, err := agent.New(cfg)
	if err != nil {
		return err
	}

	streaming := false
	for ev := range a.Stream(ctx, agent.Request{Prompt: task, ThreadID: opts.Thread}) {
		switch ev.Type {
		case model.EventText:
			fmt.Print(ev.Text)
			streaming = true
		case model.EventToolCall:
			if streaming {
				fmt.Println()
				streaming = false
			}
			fmt.Printf("⚙ %s %s\n", ev.ToolName, compact(string(ev.Args), 120))
		case model.EventTodosChanged:
			if streaming {
				fmt.Println()
				streaming = false
			}
			for _, todo := range ev.Todos {
				fmt.Printf("  [%s] %s\n", todo.Status, todo.Content)
			}
		case model.EventCheckpointLoaded:
			fmt.Printf("↻ resumed thread %s (%d messages)\n", ev.ThreadID, ev.MessagesCount)
		case model.EventError:
			if streaming {
				fmt.Println()
			}
			return fmt.Errorf("%s", ev.Text)
		case model.EventDone:
			if streaming {
				fmt.Println()
			}
			if ev.Output != nil {
				fmt.Printf("\n%s\n", ev.Output)
			}
		}
	}
	return ctx.Err()
}

// Threads lists the saved threads of the configured checkpointer.
func Threads(ctx context.Context, opts Options) error {
	checkpointer, closer, err := buildCheckpointer(opts)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer()
	}
	if checkpointer == nil {
		return fmt.Errorf("no checkpoint storage configured; pass --db")
	}

	ids, err := checkpointer.List(ctx)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		fmt.Println("no saved threads")
		return nil
	}
	for _, id := range ids {
		fmt.Println(id)
	}
	return nil
}

// DeleteThread removes one saved thread.
func DeleteThread(ctx context.Context, threadID string, opts Options) error {
	checkpointer, closer, err := buildCheckpointer(opts)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer()
	}
	if checkpointer == nil {
		return fmt.Errorf("no checkpoint storage configured; pass --db")
	}
	return checkpointer.Delete(ctx, threadID)
}

// buildConfig assembles the agent configuration from CLI options.
func buildConfig(opts Options) (agent.Config, func(), error) {
	providerName := opts.Provider
	if providerName == "" {
		providerName = "anthropic"
	}
	settings, err := config.New(providerName)
	if err != nil {
		return agent.Config{}, nil, err
	}

	providerType, err := llm.ParseProviderType(settings.LLM.Provider)
	if err != nil {
		return agent.Config{}, nil, err
	}
	provider, err := providerType.
		Model(settings.LLM.Model).
		MaxTokens(settings.LLM.MaxTokens).
		Temperature(float32(settings.LLM.Temperature)).
		FromEnv()
	if err != nil {
		return agent.Config{}, nil, err
	}

	cfg := agent.Config{
		Provider:       provider,
		MaxSteps:       settings.Agent.MaxSteps,
		TokenThreshold: settings.Agent.TokenThreshold,
		KeepMessages:   settings.Agent.KeepMessages,
		EvictionLimit:  settings.Agent.EvictionLimit,
		EnableHTTP:     opts.EnableHTTP,
	}
	if opts.MaxSteps > 0 {
		cfg.MaxSteps = opts.MaxSteps
	}

	if opts.Verbose {
		logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
		cfg.Logger = &logger
	}

	if opts.Dir != "" {
		fs, err := backend.NewFilesystemBackend(opts.Dir)
		if err != nil {
			return agent.Config{}, nil, err
		}
		cfg.Backend = fs
	}

	checkpointer, closer, err := buildCheckpointer(opts)
	if err != nil {
		return agent.Config{}, nil, err
	}
	cfg.Checkpointer = checkpointer

	if opts.AgentsFile != "" {
		agentsFile, err := LoadAgentsFile(opts.AgentsFile)
		if err != nil {
			if closer != nil {
				closer()
			}
			return agent.Config{}, nil, err
		}
		cfg.SystemPrompt = agentsFile.SystemPrompt
		cfg.Subagents = agentsFile.SubagentConfigs()
		cfg.InterruptOn = InterruptPolicies(agentsFile.Interrupt)
	}

	if opts.EnableExec {
		cfg.Sandbox = tools.NewLocalSandbox(0)
	}

	if len(cfg.InterruptOn) > 0 {
		if opts.ApproveAll {
			cfg.OnApprovalRequest = func(ctx context.Context, req model.ApprovalRequest) (bool, error) {
				return true, nil
			}
		} else {
			cfg.OnApprovalRequest = promptApproval
		}
	}

	return cfg, closer, nil
}

// buildCheckpointer opens thread storage when --db is set.
func buildCheckpointer(opts Options) (checkpoint.Checkpointer, func(), error) {
	if opts.DB == "" {
		return nil, nil, nil
	}
	store, err := storage.OpenSqlite(opts.DB)
	if err != nil {
		return nil, nil, err
	}
	return checkpoint.NewStoreCheckpointer(store, "threads:"), func() { store.Close() }, nil
}

// promptApproval asks the user to approve a gated tool call.
func promptApproval(ctx context.Context, req model.ApprovalRequest) (bool, error) {
	fmt.Printf("\nApprove %s %s? [y/N] ", req.ToolName, compact(string(req.Args), 200))
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false, err
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

// compact trims long argument payloads for terminal display.
func compact(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) > max {
		return s[:max] + "…"
	}
	return s
}
