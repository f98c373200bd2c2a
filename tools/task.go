// Task tool - delegation to ephemeral sub-agents.
//
// The runner is injected by the agent core, which owns the inner tool
// loop; the tool itself only validates arguments and relays the child's
// final text. Parent and child share the backend but never the message
// buffer.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/chrispangg/ai-sdk-deepagent/model"
)

// SubagentRunner executes a named sub-agent against a prompt and
// returns its final assistant text.
type SubagentRunner func(ctx context.Context, subagentType, description, prompt string) (string, error)

// SubagentInfo names an available sub-agent for the tool description.
type SubagentInfo struct {
	Name        string
	Description string
}

// TaskTool spawns a sub-agent with its own tool set and returns only
// its answer, keeping the parent's context small.
type TaskTool struct {
	BaseTool
	runner    SubagentRunner
	subagents []SubagentInfo
	emit      model.Emitter
}

// NewTaskTool creates a task tool over the given runner.
func NewTaskTool(runner SubagentRunner, subagents []SubagentInfo, emit model.Emitter) *TaskTool {
	return &TaskTool{runner: runner, subagents: subagents, emit: emit}
}

// Metadata returns the tool metadata, listing the available sub-agents.
func (t *TaskTool) Metadata() ToolMetadata {
	var names []string
	for _, s := range t.subagents {
		names = append(names, fmt.Sprintf("%s (%s)", s.Name, s.Description))
	}
	available := "general-purpose"
	if len(names) > 0 {
		available = strings.Join(names, ", ")
	}

	return ToolMetadata{
		Name: "task",
		Description: fmt.Sprintf(`Delegate a self-contained task to a sub-agent. The sub-agent works in the shared filesystem but has its own conversation; only its final answer comes back. Use it for work that would otherwise bloat your context.

Available sub-agents: %s`, available),
		Parameters: []ToolParameter{
			{Name: "subagent_type", ParamType: "string", Description: "Which sub-agent to run", Required: true},
			{Name: "description", ParamType: "string", Description: "Short (3-5 word) description of the task", Required: true},
			{Name: "prompt", ParamType: "string", Description: "The full task for the sub-agent", Required: true},
		},
	}
}

type taskArgs struct {
	SubagentType string `json:"subagent_type"`
	Description  string `json:"description"`
	Prompt       string `json:"prompt"`
}

// Validate validates the arguments.
func (t *TaskTool) Validate(args json.RawMessage) error {
	var a taskArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	if a.SubagentType == "" {
		return fmt.Errorf("subagent_type cannot be empty")
	}
	if a.Prompt == "" {
		return fmt.Errorf("prompt cannot be empty")
	}
	return nil
}

// Execute runs the sub-agent to completion.
func (t *TaskTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	var a taskArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return FailureResult(fmt.Errorf("invalid arguments: %w", err)), nil
	}
	if t.runner == nil {
		return FailureResultf("no sub-agent runner configured"), nil
	}

	t.emit.Emit(model.Event{Type: model.EventSubagentStart, Subagent: a.SubagentType, Text: a.Description})
	answer, err := t.runner(ctx, a.SubagentType, a.Description, a.Prompt)
	if err != nil {
		t.emit.Emit(model.Event{Type: model.EventSubagentFinish, Subagent: a.SubagentType})
		return FailureResult(fmt.Errorf("sub-agent failed: %w", err)), nil
	}
	t.emit.Emit(model.Event{Type: model.EventSubagentFinish, Subagent: a.SubagentType, Text: answer})

	if answer == "" {
		return SuccessResult("(sub-agent returned an empty answer)"), nil
	}
	return SuccessResult(answer), nil
}
