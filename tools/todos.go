// Todo tool - the agent's planning surface.
//
// The model maintains its plan by rewriting (or merging into) the todo
// list; the harness stores it in the backend and checkpoints it with
// the thread.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chrispangg/ai-sdk-deepagent/backend"
	"github.com/chrispangg/ai-sdk-deepagent/model"
)

// WriteTodosTool replaces or merges the todo list.
type WriteTodosTool struct {
	BaseTool
	backend backend.Backend
	emit    model.Emitter
}

// NewWriteTodosTool creates a new write_todos tool.
func NewWriteTodosTool(b backend.Backend, emit model.Emitter) *WriteTodosTool {
	return &WriteTodosTool{backend: b, emit: emit}
}

// Metadata returns the tool metadata.
func (t *WriteTodosTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "write_todos",
		Description: "Update the task planning list. Pass the complete list of todos with their current status (pending, in_progress, completed). Set merge=true to update matching IDs in place instead of replacing the list.",
		Parameters: []ToolParameter{
			{Name: "todos", ParamType: "array", Description: "Todo items, each with id, content, and status", Required: true},
			{Name: "merge", ParamType: "boolean", Description: "Merge by ID into the existing list (default: false, replace)", Required: false},
		},
	}
}

type writeTodosArgs struct {
	Todos []model.Todo `json:"todos"`
	Merge bool         `json:"merge"`
}

// Validate validates the arguments.
func (t *WriteTodosTool) Validate(args json.RawMessage) error {
	var a writeTodosArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	for i, todo := range a.Todos {
		if todo.ID == "" {
			return fmt.Errorf("todo at index %d has no id", i)
		}
	}
	return nil
}

// Execute updates the todo list.
func (t *WriteTodosTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	var a writeTodosArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return FailureResult(fmt.Errorf("invalid arguments: %w", err)), nil
	}

	next := a.Todos
	if a.Merge {
		existing, err := t.backend.GetTodos(ctx)
		if err != nil {
			return FailureResult(err), nil
		}
		next = mergeTodos(existing, a.Todos)
	}

	if err := t.backend.SetTodos(ctx, next); err != nil {
		return FailureResult(err), nil
	}
	t.emit.Emit(model.Event{Type: model.EventTodosChanged, Todos: next})

	return SuccessResult(fmt.Sprintf("Updated %d todo(s)", len(next))), nil
}

// mergeTodos updates matching IDs in place and appends the rest,
// preserving the existing order.
func mergeTodos(existing, updates []model.Todo) []model.Todo {
	byID := make(map[string]model.Todo, len(updates))
	for _, todo := range updates {
		byID[todo.ID] = todo
	}

	merged := make([]model.Todo, 0, len(existing)+len(updates))
	seen := make(map[string]bool, len(existing))
	for _, todo := range existing {
		if update, ok := byID[todo.ID]; ok {
			merged = append(merged, update)
		} else {
			merged = append(merged, todo)
		}
		seen[todo.ID] = true
	}
	for _, todo := range updates {
		if !seen[todo.ID] {
			merged = append(merged, todo)
		}
	}
	return merged
}
