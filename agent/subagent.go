// Sub-agents: isolated inner tool loops reachable through the task
// tool. Parent and child share the backend but never the message
// buffer; the child's final assistant text becomes the parent's tool
// result verbatim.
package agent

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/chrispangg/ai-sdk-deepagent/llm"
	"github.com/chrispangg/ai-sdk-deepagent/model"
	"github.com/chrispangg/ai-sdk-deepagent/tools"
)

// generalPurposeName is the sub-agent available even when none are
// configured.
const generalPurposeName = "general-purpose"

const generalPurposePrompt = `You are a focused sub-agent. Complete the ONE task you are given using the available tools, then answer concisely. Return a clear, direct answer, not raw data.`

// SubagentConfig describes one named delegate: its prompt, extra
// tools, approval gating, and loop bound.
type SubagentConfig struct {
	Name        string
	Description string
	Prompt      string
	Tools       []tools.Tool
	InterruptOn map[string]ApprovalPolicy
	MaxSteps    int
}

// subagentInfos renders configs for the task tool description.
func subagentInfos(configs []SubagentConfig) []tools.SubagentInfo {
	infos := []tools.SubagentInfo{{Name: generalPurposeName, Description: "general agent with the standard tool set"}}
	for _, cfg := range configs {
		infos = append(infos, tools.SubagentInfo{Name: cfg.Name, Description: cfg.Description})
	}
	return infos
}

// newSubagentRunner builds the task tool's runner: it resolves the
// named sub-agent and drives an isolated tool loop over the shared
// backend.
func (a *Agent) newSubagentRunner(emit model.Emitter) tools.SubagentRunner {
	return func(ctx context.Context, subagentType, description, prompt string) (string, error) {
		cfg, err := a.resolveSubagent(subagentType)
		if err != nil {
			return "", err
		}
		return a.runSubagent(ctx, cfg, prompt, emit)
	}
}

// resolveSubagent finds a configured sub-agent by name, falling back to
// the general-purpose delegate.
func (a *Agent) resolveSubagent(name string) (SubagentConfig, error) {
	for _, cfg := range a.cfg.Subagents {
		if cfg.Name == name {
			return cfg, nil
		}
	}
	if name == generalPurposeName {
		return SubagentConfig{
			Name:   generalPurposeName,
			Prompt: generalPurposePrompt,
		}, nil
	}
	return SubagentConfig{}, fmt.Errorf("unknown sub-agent type '%s'", name)
}

// runSubagent drives the child loop to completion and returns its
// final assistant text.
func (a *Agent) runSubagent(ctx context.Context, cfg SubagentConfig, prompt string, emit model.Emitter) (string, error) {
	registry := tools.NewRegistry()
	for _, t := range tools.BuiltinTools(a.cfg.Backend, emit) {
		_ = registry.Register(t)
	}
	for _, t := range cfg.Tools {
		registry.Replace(t)
	}
	for name, policy := range cfg.InterruptOn {
		if t, ok := registry.Get(name); ok {
			registry.Replace(wrapWithApproval(t, policy, a.cfg.OnApprovalRequest, emit))
		}
	}
	executor := tools.NewDefaultExecutor()

	systemPrompt := cfg.Prompt
	if systemPrompt == "" {
		systemPrompt = generalPurposePrompt
	}
	messages := []llm.ChatMessage{
		llm.SystemMessage(systemPrompt),
		llm.UserMessage(prompt),
	}

	maxSteps := cfg.MaxSteps
	if maxSteps <= 0 {
		maxSteps = DefaultSubagentMaxSteps
	}

	defs := toolDefinitions(registry)
	for step := 0; step < maxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		emit.Emit(model.Event{Type: model.EventSubagentStep, Subagent: cfg.Name, Step: step + 1})

		resp, err := a.call(ctx, messages, defs, nil)
		if err != nil {
			return "", fmt.Errorf("sub-agent model call failed: %w", err)
		}

		messages = append(messages, llm.ChatMessage{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		if len(resp.ToolCalls) == 0 {
			return resp.Content, nil
		}

		for _, tc := range resp.ToolCalls {
			if tc.ID == "" {
				tc.ID = uuid.New().String()
			}
			text, err := a.executeToolCall(ctx, registry, executor, tc, emit)
			if err != nil {
				return "", err
			}
			text = a.maybeEvict(ctx, tc.Name, tc.ID, text)
			messages = append(messages, llm.ChatMessage{
				Role:       "tool",
				Content:    text,
				ToolCallID: tc.ID,
			})
		}

		messages = a.maybeSummarize(ctx, messages)
	}

	return "", fmt.Errorf("sub-agent reached max steps (%d) without completing", maxSteps)
}
