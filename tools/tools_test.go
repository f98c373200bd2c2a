package tools

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/chrispangg/ai-sdk-deepagent/backend"
	"github.com/chrispangg/ai-sdk-deepagent/model"
)

// eventRecorder collects emitted events for assertions.
type eventRecorder struct {
	events []model.Event
}

func (r *eventRecorder) emitter() model.Emitter {
	return func(ev model.Event) { r.events = append(r.events, ev) }
}

func (r *eventRecorder) types() []model.EventType {
	var out []model.EventType
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

func raw(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	return data
}

func TestWriteFileToolWritesAndEmits(t *testing.T) {
	b := backend.NewStateBackend()
	rec := &eventRecorder{}
	tool := NewWriteFileTool(b, rec.emitter())
	ctx := context.Background()

	result, err := tool.Execute(ctx, raw(t, map[string]string{
		"path": "/notes.txt", "content": "hello",
	}))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !result.Success() {
		t.Fatalf("expected success, got %v", result.Error)
	}

	data, err := b.ReadRaw(ctx, "/notes.txt")
	if err != nil {
		t.Fatalf("file missing: %v", err)
	}
	if data.Text() != "hello" {
		t.Errorf("unexpected content: %q", data.Text())
	}

	types := rec.types()
	if len(types) != 2 || types[0] != model.EventFileWriteStart || types[1] != model.EventFileWritten {
		t.Errorf("expected file-write-start then file-written, got %v", types)
	}
}

func TestWriteFileToolOverwriteError(t *testing.T) {
	b := backend.NewStateBackend()
	tool := NewWriteFileTool(b, nil)
	ctx := context.Background()

	args := raw(t, map[string]string{"path": "/a.txt", "content": "x"})
	if result, _ := tool.Execute(ctx, args); !result.Success() {
		t.Fatalf("first write should succeed: %v", result.Error)
	}
	result, _ := tool.Execute(ctx, args)
	if result.Success() {
		t.Fatal("second write should fail")
	}
	if !strings.HasPrefix(result.Text(), "Error:") {
		t.Errorf("failure should render with Error prefix: %q", result.Text())
	}
}

func TestReadFileToolFormatsAndEmits(t *testing.T) {
	b := backend.NewStateBackend()
	if err := b.Write(context.Background(), "/f.txt", "line1\nline2"); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	rec := &eventRecorder{}
	tool := NewReadFileTool(b, rec.emitter())

	result, err := tool.Execute(context.Background(), raw(t, map[string]string{"path": "/f.txt"}))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.Output != "     1\tline1\n     2\tline2" {
		t.Errorf("unexpected output: %q", result.Output)
	}
	if len(rec.events) != 1 || rec.events[0].Type != model.EventFileRead {
		t.Errorf("expected file-read event, got %v", rec.types())
	}
}

func TestReadFileToolMissingFilePassesErrorString(t *testing.T) {
	tool := NewReadFileTool(backend.NewStateBackend(), nil)

	result, err := tool.Execute(context.Background(), raw(t, map[string]string{"path": "/gone.txt"}))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.Output != "Error: File '/gone.txt' not found" {
		t.Errorf("unexpected output: %q", result.Output)
	}
}

func TestEditFileToolAmbiguous(t *testing.T) {
	b := backend.NewStateBackend()
	ctx := context.Background()
	if err := b.Write(ctx, "/e.txt", "x x"); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	tool := NewEditFileTool(b, nil)

	result, err := tool.Execute(ctx, raw(t, map[string]interface{}{
		"path": "/e.txt", "old_string": "x", "new_string": "y",
	}))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.Success() {
		t.Fatal("ambiguous edit should fail")
	}
	if !strings.Contains(result.Error.Error(), "appears 2 times") {
		t.Errorf("error should name the count: %v", result.Error)
	}
}

func TestEditFileToolReplaceAllEmits(t *testing.T) {
	b := backend.NewStateBackend()
	ctx := context.Background()
	if err := b.Write(ctx, "/e.txt", "x x"); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	rec := &eventRecorder{}
	tool := NewEditFileTool(b, rec.emitter())

	result, err := tool.Execute(ctx, raw(t, map[string]interface{}{
		"path": "/e.txt", "old_string": "x", "new_string": "y", "replace_all": true,
	}))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !result.Success() || !strings.Contains(result.Output, "2 occurrence") {
		t.Errorf("unexpected result: %+v", result)
	}
	if len(rec.events) != 1 || rec.events[0].Type != model.EventFileEdited {
		t.Errorf("expected file-edited event, got %v", rec.types())
	}
}

func TestLsTool(t *testing.T) {
	b := backend.NewStateBackend()
	ctx := context.Background()
	if err := b.Write(ctx, "/a.txt", "x"); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := b.Write(ctx, "/docs/b.txt", "x"); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	rec := &eventRecorder{}
	tool := NewLsTool(b, rec.emitter())

	result, err := tool.Execute(ctx, raw(t, map[string]string{}))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !strings.Contains(result.Output, "/a.txt") || !strings.Contains(result.Output, "/docs/") {
		t.Errorf("unexpected listing: %q", result.Output)
	}
	if len(rec.events) != 1 || rec.events[0].Type != model.EventLs {
		t.Errorf("expected ls event, got %v", rec.types())
	}
}

func TestGlobTool(t *testing.T) {
	b := backend.NewStateBackend()
	ctx := context.Background()
	if err := b.Write(ctx, "/src/a.go", "x"); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	tool := NewGlobTool(b, nil)

	result, err := tool.Execute(ctx, raw(t, map[string]string{"pattern": "**/*.go"}))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !strings.Contains(result.Output, "/src/a.go") {
		t.Errorf("unexpected output: %q", result.Output)
	}

	result, err = tool.Execute(ctx, raw(t, map[string]string{"pattern": "*.md"}))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !strings.Contains(result.Output, "No files found") {
		t.Errorf("unexpected output: %q", result.Output)
	}
}

func TestGrepToolInvalidPattern(t *testing.T) {
	tool := NewGrepTool(backend.NewStateBackend(), nil)

	result, err := tool.Execute(context.Background(), raw(t, map[string]string{"pattern": "[invalid"}))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !strings.HasPrefix(result.Text(), "Invalid regex pattern:") {
		t.Errorf("expected invalid-pattern message, got %q", result.Text())
	}
}

func TestGrepToolMatches(t *testing.T) {
	b := backend.NewStateBackend()
	ctx := context.Background()
	if err := b.Write(ctx, "/code.go", "func main() {}"); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	rec := &eventRecorder{}
	tool := NewGrepTool(b, rec.emitter())

	result, err := tool.Execute(ctx, raw(t, map[string]string{"pattern": "func"}))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !strings.Contains(result.Output, "/code.go:1:func main() {}") {
		t.Errorf("unexpected output: %q", result.Output)
	}
	if len(rec.events) != 1 || rec.events[0].Type != model.EventGrep {
		t.Errorf("expected grep event, got %v", rec.types())
	}
}

func TestWriteTodosToolReplace(t *testing.T) {
	b := backend.NewStateBackend()
	rec := &eventRecorder{}
	tool := NewWriteTodosTool(b, rec.emitter())
	ctx := context.Background()

	result, err := tool.Execute(ctx, raw(t, map[string]interface{}{
		"todos": []model.Todo{
			{ID: "1", Content: "write spec", Status: model.TodoInProgress},
			{ID: "2", Content: "draft tests", Status: model.TodoPending},
		},
	}))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !result.Success() {
		t.Fatalf("expected success: %v", result.Error)
	}

	todos, err := b.GetTodos(ctx)
	if err != nil {
		t.Fatalf("GetTodos failed: %v", err)
	}
	if len(todos) != 2 || todos[0].Status != model.TodoInProgress {
		t.Errorf("unexpected todos: %v", todos)
	}
	if len(rec.events) != 1 || rec.events[0].Type != model.EventTodosChanged {
		t.Errorf("expected todos-changed event, got %v", rec.types())
	}
}

func TestWriteTodosToolMerge(t *testing.T) {
	b := backend.NewStateBackend()
	tool := NewWriteTodosTool(b, nil)
	ctx := context.Background()

	if _, err := tool.Execute(ctx, raw(t, map[string]interface{}{
		"todos": []model.Todo{
			{ID: "1", Content: "first", Status: model.TodoPending},
			{ID: "2", Content: "second", Status: model.TodoPending},
		},
	})); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if _, err := tool.Execute(ctx, raw(t, map[string]interface{}{
		"merge": true,
		"todos": []model.Todo{
			{ID: "1", Content: "first", Status: model.TodoCompleted},
			{ID: "3", Content: "third", Status: model.TodoPending},
		},
	})); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	todos, err := b.GetTodos(ctx)
	if err != nil {
		t.Fatalf("GetTodos failed: %v", err)
	}
	if len(todos) != 3 {
		t.Fatalf("expected 3 todos after merge, got %v", todos)
	}
	if todos[0].Status != model.TodoCompleted {
		t.Errorf("merge should update matching IDs in place: %v", todos[0])
	}
	if todos[2].ID != "3" {
		t.Errorf("merge should append new IDs: %v", todos[2])
	}
}

func TestTaskToolRelaysRunnerAnswer(t *testing.T) {
	rec := &eventRecorder{}
	tool := NewTaskTool(func(ctx context.Context, subagentType, description, prompt string) (string, error) {
		if subagentType != "researcher" {
			t.Errorf("unexpected subagent type: %s", subagentType)
		}
		return "the answer", nil
	}, []SubagentInfo{{Name: "researcher", Description: "reads things"}}, rec.emitter())

	result, err := tool.Execute(context.Background(), raw(t, map[string]string{
		"subagent_type": "researcher",
		"description":   "look something up",
		"prompt":        "find the answer",
	}))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.Output != "the answer" {
		t.Errorf("unexpected output: %q", result.Output)
	}

	types := rec.types()
	if len(types) != 2 || types[0] != model.EventSubagentStart || types[1] != model.EventSubagentFinish {
		t.Errorf("expected subagent-start then subagent-finish, got %v", types)
	}
}

func TestExecuteToolLocalSandbox(t *testing.T) {
	rec := &eventRecorder{}
	tool := NewExecuteTool(NewLocalSandbox(5), rec.emitter())

	result, err := tool.Execute(context.Background(), raw(t, map[string]string{
		"command": "printf alpha",
	}))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.Output != "alpha" {
		t.Errorf("unexpected output: %q", result.Output)
	}

	types := rec.types()
	if len(types) != 2 || types[0] != model.EventExecuteStart || types[1] != model.EventExecuteFinish {
		t.Errorf("expected execute-start then execute-finish, got %v", types)
	}
}

func TestExecuteToolNonZeroExit(t *testing.T) {
	tool := NewExecuteTool(NewLocalSandbox(5), nil)

	result, err := tool.Execute(context.Background(), raw(t, map[string]string{
		"command": "exit 3",
	}))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.Success() {
		t.Fatal("non-zero exit should be a failed result")
	}
	if !strings.Contains(result.Error.Error(), "exited with code 3") {
		t.Errorf("unexpected error: %v", result.Error)
	}
}

func TestLocalSandboxAllowlist(t *testing.T) {
	sandbox := NewLocalSandbox(5).WithAllowedCommands([]string{"echo"})

	if _, err := sandbox.Exec(context.Background(), "rm -rf /tmp/x"); err == nil {
		t.Error("disallowed command should be rejected")
	}
	if _, err := sandbox.Exec(context.Background(), "echo ok"); err != nil {
		t.Errorf("allowed command should run: %v", err)
	}
}

func TestWebSearchToolFormatsResults(t *testing.T) {
	provider := searchProviderFunc(func(ctx context.Context, query string) ([]SearchResult, error) {
		return []SearchResult{{URL: "https://example.com", Title: "Example", Snippet: "an example"}}, nil
	})
	rec := &eventRecorder{}
	tool := NewWebSearchTool(provider, rec.emitter())

	result, err := tool.Execute(context.Background(), raw(t, map[string]string{"query": "example"}))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !strings.Contains(result.Output, "https://example.com") {
		t.Errorf("unexpected output: %q", result.Output)
	}

	types := rec.types()
	if len(types) != 2 || types[0] != model.EventWebSearchStart || types[1] != model.EventWebSearchFinish {
		t.Errorf("expected web-search events, got %v", types)
	}
}

type searchProviderFunc func(ctx context.Context, query string) ([]SearchResult, error)

func (f searchProviderFunc) Search(ctx context.Context, query string) ([]SearchResult, error) {
	return f(ctx, query)
}

func TestExecutorRejectsInvalidArgs(t *testing.T) {
	executor := NewDefaultExecutor()
	tool := NewReadFileTool(backend.NewStateBackend(), nil)

	result, err := executor.Execute(context.Background(), tool, raw(t, map[string]string{}))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.Success() {
		t.Error("missing path should fail validation")
	}
}
