// Package agent provides the tool-loop driver: the orchestration of
// model calls, tool execution, checkpointing, and event emission that
// turns a chat model into a long-running deep agent.
//
// Information Hiding:
// - Loop internals hidden
// - Context-window management (eviction, summarization) hidden
// - Approval gating and checkpoint cadence internalized
package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/chrispangg/ai-sdk-deepagent/backend"
	"github.com/chrispangg/ai-sdk-deepagent/checkpoint"
	"github.com/chrispangg/ai-sdk-deepagent/llm"
	"github.com/chrispangg/ai-sdk-deepagent/model"
	"github.com/chrispangg/ai-sdk-deepagent/tools"
)

// Defaults for the loop bounds and context-window management.
const (
	DefaultMaxSteps         = 100
	DefaultSubagentMaxSteps = 50
	DefaultTokenThreshold   = 170_000
	MaxTokenThreshold       = 200_000
	DefaultKeepMessages     = 6
	DefaultEvictionLimit    = 20_000
)

// ApprovalPolicy configures gating for one tool. Always gates every
// call; ShouldApprove gates per call and may do its own (possibly slow)
// inspection of the arguments.
type ApprovalPolicy struct {
	Always        bool
	ShouldApprove func(ctx context.Context, args json.RawMessage) (bool, error)
}

// AlwaysApprove is the ApprovalPolicy for unconditional gating.
func AlwaysApprove() ApprovalPolicy {
	return ApprovalPolicy{Always: true}
}

// ApprovalCallback receives an approval request and returns the user's
// decision. An absent callback means every gated call is denied.
type ApprovalCallback func(ctx context.Context, req model.ApprovalRequest) (bool, error)

// ModelCall is one invocation of the model with tools.
type ModelCall func(ctx context.Context, messages []llm.ChatMessage, defs []llm.ToolDefinition, onPart llm.PartCallback) (llm.LLMResponse, error)

// Middleware wraps model calls, outermost first.
type Middleware func(next ModelCall) ModelCall

// OutputSchema constrains the final assistant message to a JSON value.
type OutputSchema struct {
	Name   string
	Schema json.RawMessage
}

// Config assembles an Agent. Provider is required; everything else has
// a working default.
type Config struct {
	// Provider is the model client handed to the step loop.
	Provider llm.Provider

	// SystemPrompt seeds fresh conversations.
	SystemPrompt string

	// Tools are additional user-supplied tools registered next to the
	// built-in set.
	Tools []tools.Tool

	// Backend is the virtual filesystem; defaults to an in-memory
	// state backend.
	Backend backend.Backend

	// Checkpointer persists threads; absent means no thread state.
	Checkpointer checkpoint.Checkpointer

	// InterruptOn configures per-tool approval gating.
	InterruptOn map[string]ApprovalPolicy

	// OnApprovalRequest resolves approval requests. Absent means
	// gated calls are denied.
	OnApprovalRequest ApprovalCallback

	// Sandbox enables the execute tool.
	Sandbox tools.Sandbox

	// SearchProvider enables the web_search tool.
	SearchProvider tools.SearchProvider

	// EnableHTTP adds the http_request and fetch_url tools.
	EnableHTTP bool

	// Converter renders fetched HTML as Markdown for fetch_url.
	Converter tools.MarkdownConverter

	// Subagents are the named delegates reachable through the task
	// tool, each with its own tools, prompt, and interrupts.
	Subagents []SubagentConfig

	// MaxSteps bounds the loop (default 100).
	MaxSteps int

	// TokenThreshold triggers summarization (default 170k, capped at
	// 200k).
	TokenThreshold int

	// KeepMessages is how many recent messages survive summarization
	// untouched (default 6).
	KeepMessages int

	// EvictionLimit is the tool-result size, in estimated tokens,
	// beyond which results move into the filesystem (default 20k).
	EvictionLimit int

	// Middleware wraps every model call, outermost first.
	Middleware []Middleware

	// Output optionally constrains the final assistant message.
	Output *OutputSchema

	// Logger receives debug logging; defaults to a no-op logger.
	Logger *zerolog.Logger
}

// withDefaults returns the config with zero values filled in.
func (c Config) withDefaults() (Config, error) {
	if c.Provider == nil {
		return c, fmt.Errorf("agent: provider is required")
	}
	if c.Backend == nil {
		c.Backend = backend.NewStateBackend()
	}
	if c.MaxSteps <= 0 {
		c.MaxSteps = DefaultMaxSteps
	}
	if c.TokenThreshold <= 0 {
		c.TokenThreshold = DefaultTokenThreshold
	}
	if c.TokenThreshold > MaxTokenThreshold {
		c.TokenThreshold = MaxTokenThreshold
	}
	if c.KeepMessages <= 0 {
		c.KeepMessages = DefaultKeepMessages
	}
	if c.EvictionLimit <= 0 {
		c.EvictionLimit = DefaultEvictionLimit
	}
	if c.Logger == nil {
		nop := zerolog.Nop()
		c.Logger = &nop
	}
	return c, nil
}

// Request is one agent invocation: either a prompt appended as a new
// user message, or a caller-supplied full message list. ThreadID makes
// the invocation resumable when a checkpointer is configured.
type Request struct {
	Prompt   string
	Messages []llm.ChatMessage
	ThreadID string
}

// Result is the collected outcome of Run.
type Result struct {
	// Text is the final assistant message.
	Text string

	// Output is the structured value parsed against Config.Output,
	// when configured.
	Output json.RawMessage

	// State is the final agent state snapshot.
	State *model.AgentState

	// Steps is the number of completed loop steps.
	Steps int
}
