package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/chrispangg/ai-sdk-deepagent/backend"
	"github.com/chrispangg/ai-sdk-deepagent/checkpoint"
	"github.com/chrispangg/ai-sdk-deepagent/llm"
	"github.com/chrispangg/ai-sdk-deepagent/model"
	"github.com/chrispangg/ai-sdk-deepagent/tools"
)

// fakeProvider replays a script of responses, one per model call, and
// records the message buffers it was handed.
type fakeProvider struct {
	script  []llm.LLMResponse
	calls   int
	buffers [][]llm.ChatMessage
	summary string
}

func (p *fakeProvider) Name() string  { return "fake" }
func (p *fakeProvider) Model() string { return "fake-model" }

func (p *fakeProvider) Chat(ctx context.Context, messages []llm.ChatMessage) (llm.LLMResponse, error) {
	summary := p.summary
	if summary == "" {
		summary = "summary of earlier conversation"
	}
	return llm.LLMResponse{Content: summary}, nil
}

func (p *fakeProvider) ChatWithFormat(ctx context.Context, messages []llm.ChatMessage, format *llm.ResponseFormat) (llm.LLMResponse, error) {
	return p.Chat(ctx, messages)
}

func (p *fakeProvider) ChatWithTools(ctx context.Context, messages []llm.ChatMessage, defs []llm.ToolDefinition) (llm.LLMResponse, error) {
	return p.next(messages)
}

func (p *fakeProvider) StreamChat(ctx context.Context, messages []llm.ChatMessage, chunks chan<- string) (*llm.TokenUsage, error) {
	return nil, nil
}

func (p *fakeProvider) StreamChatWithTools(ctx context.Context, messages []llm.ChatMessage, defs []llm.ToolDefinition, onPart llm.PartCallback) (llm.LLMResponse, error) {
	resp, err := p.next(messages)
	if err != nil {
		return llm.LLMResponse{}, err
	}
	if onPart != nil && resp.Content != "" {
		onPart(llm.StreamPart{Type: llm.PartText, Text: resp.Content})
	}
	for i := range resp.ToolCalls {
		if onPart != nil {
			onPart(llm.StreamPart{Type: llm.PartToolCall, ToolCall: &resp.ToolCalls[i]})
		}
	}
	if onPart != nil {
		onPart(llm.StreamPart{Type: llm.PartStepFinish})
		onPart(llm.StreamPart{Type: llm.PartFinish})
	}
	return resp, nil
}

func (p *fakeProvider) next(messages []llm.ChatMessage) (llm.LLMResponse, error) {
	copied := make([]llm.ChatMessage, len(messages))
	copy(copied, messages)
	p.buffers = append(p.buffers, copied)

	if p.calls >= len(p.script) {
		return llm.LLMResponse{}, fmt.Errorf("fake provider script exhausted at call %d", p.calls)
	}
	resp := p.script[p.calls]
	p.calls++
	return resp, nil
}

var _ llm.Provider = (*fakeProvider)(nil)

func toolCall(id, name string, args map[string]interface{}) llm.ToolCall {
	raw, _ := json.Marshal(args)
	return llm.ToolCall{ID: id, Name: name, Arguments: raw}
}

func collect(t *testing.T, a *Agent, req Request) []model.Event {
	t.Helper()
	var events []model.Event
	for ev := range a.Stream(context.Background(), req) {
		events = append(events, ev)
	}
	return events
}

func eventTypes(events []model.Event) []model.EventType {
	var out []model.EventType
	for _, ev := range events {
		out = append(out, ev.Type)
	}
	return out
}

func findEvent(events []model.Event, kind model.EventType) (model.Event, bool) {
	for _, ev := range events {
		if ev.Type == kind {
			return ev, true
		}
	}
	return model.Event{}, false
}

func indexOfEvent(events []model.Event, kind model.EventType) int {
	for i, ev := range events {
		if ev.Type == kind {
			return i
		}
	}
	return -1
}

func TestAgentPlainAnswer(t *testing.T) {
	provider := &fakeProvider{script: []llm.LLMResponse{
		{Content: "hello there"},
	}}
	a, err := New(Config{Provider: provider})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	events := collect(t, a, Request{Prompt: "hi"})

	done, ok := findEvent(events, model.EventDone)
	if !ok {
		t.Fatalf("expected done event, got %v", eventTypes(events))
	}
	if done.Text != "hello there" {
		t.Errorf("unexpected final text: %q", done.Text)
	}

	// user-message, then step-start, then streamed text before done
	if indexOfEvent(events, model.EventUserMessage) > indexOfEvent(events, model.EventStepStart) {
		t.Errorf("user-message should precede step-start: %v", eventTypes(events))
	}
	if _, ok := findEvent(events, model.EventText); !ok {
		t.Errorf("expected streamed text event: %v", eventTypes(events))
	}
}

func TestAgentToolLoop(t *testing.T) {
	provider := &fakeProvider{script: []llm.LLMResponse{
		{ToolCalls: []llm.ToolCall{toolCall("call-1", "write_file", map[string]interface{}{
			"path": "/out.txt", "content": "generated",
		})}},
		{Content: "wrote the file"},
	}}
	b := backend.NewStateBackend()
	a, err := New(Config{Provider: provider, Backend: b})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	events := collect(t, a, Request{Prompt: "write something"})

	data, err := b.ReadRaw(context.Background(), "/out.txt")
	if err != nil {
		t.Fatalf("tool should have written the file: %v", err)
	}
	if data.Text() != "generated" {
		t.Errorf("unexpected content: %q", data.Text())
	}

	callIdx := indexOfEvent(events, model.EventToolCall)
	resultIdx := indexOfEvent(events, model.EventToolResult)
	if callIdx < 0 || resultIdx < 0 || callIdx > resultIdx {
		t.Errorf("tool-call must precede tool-result: %v", eventTypes(events))
	}

	call, _ := findEvent(events, model.EventToolCall)
	result, _ := findEvent(events, model.EventToolResult)
	if call.ToolCallID != "call-1" || result.ToolCallID != "call-1" {
		t.Errorf("tool call IDs should match: %s vs %s", call.ToolCallID, result.ToolCallID)
	}

	done, _ := findEvent(events, model.EventDone)
	if done.Text != "wrote the file" {
		t.Errorf("unexpected final text: %q", done.Text)
	}
}

func TestAgentApprovalDefaultDeny(t *testing.T) {
	provider := &fakeProvider{script: []llm.LLMResponse{
		{ToolCalls: []llm.ToolCall{toolCall("call-1", "write_file", map[string]interface{}{
			"path": "/blocked.txt", "content": "nope",
		})}},
		{Content: "ok"},
	}}
	b := backend.NewStateBackend()
	a, err := New(Config{
		Provider:    provider,
		Backend:     b,
		InterruptOn: map[string]ApprovalPolicy{"write_file": AlwaysApprove()},
		// No OnApprovalRequest: deterministic deny.
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	events := collect(t, a, Request{Prompt: "try to write"})

	result, ok := findEvent(events, model.EventToolResult)
	if !ok {
		t.Fatalf("expected tool-result: %v", eventTypes(events))
	}
	if result.Text != DeniedMessage {
		t.Errorf("expected denial sentinel, got %q", result.Text)
	}

	// No side effect
	if _, err := b.ReadRaw(context.Background(), "/blocked.txt"); err == nil {
		t.Error("denied write must not create the file")
	}

	// approval-requested precedes tool-call, which precedes tool-result
	reqIdx := indexOfEvent(events, model.EventApprovalRequested)
	respIdx := indexOfEvent(events, model.EventApprovalResponse)
	callIdx := indexOfEvent(events, model.EventToolCall)
	if reqIdx < 0 || callIdx < 0 || reqIdx > callIdx {
		t.Errorf("approval-requested must precede tool-call: %v", eventTypes(events))
	}
	if respIdx < 0 {
		t.Errorf("expected approval-response: %v", eventTypes(events))
	}
	resp, _ := findEvent(events, model.EventApprovalResponse)
	if resp.Approved {
		t.Error("default decision must be deny")
	}
}

func TestAgentApprovalCallbackApproves(t *testing.T) {
	provider := &fakeProvider{script: []llm.LLMResponse{
		{ToolCalls: []llm.ToolCall{toolCall("call-1", "write_file", map[string]interface{}{
			"path": "/approved.txt", "content": "yes",
		})}},
		{Content: "ok"},
	}}
	b := backend.NewStateBackend()
	var sawRequest *model.ApprovalRequest
	a, err := New(Config{
		Provider:    provider,
		Backend:     b,
		InterruptOn: map[string]ApprovalPolicy{"write_file": AlwaysApprove()},
		OnApprovalRequest: func(ctx context.Context, req model.ApprovalRequest) (bool, error) {
			sawRequest = &req
			return true, nil
		},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	collect(t, a, Request{Prompt: "write"})

	if sawRequest == nil {
		t.Fatal("approval callback was not invoked")
	}
	if sawRequest.ToolName != "write_file" || sawRequest.ApprovalID == "" || sawRequest.ToolCallID != "call-1" {
		t.Errorf("malformed approval request: %+v", sawRequest)
	}
	if _, err := b.ReadRaw(context.Background(), "/approved.txt"); err != nil {
		t.Errorf("approved write should land: %v", err)
	}
}

func TestAgentDynamicApprovalPredicate(t *testing.T) {
	provider := &fakeProvider{script: []llm.LLMResponse{
		{ToolCalls: []llm.ToolCall{toolCall("c1", "write_file", map[string]interface{}{
			"path": "/safe.txt", "content": "x",
		})}},
		{Content: "done"},
	}}
	b := backend.NewStateBackend()
	a, err := New(Config{
		Provider: provider,
		Backend:  b,
		InterruptOn: map[string]ApprovalPolicy{"write_file": {
			ShouldApprove: func(ctx context.Context, args json.RawMessage) (bool, error) {
				// Only paths under /protected/ need a decision.
				return strings.Contains(string(args), "/protected/"), nil
			},
		}},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	events := collect(t, a, Request{Prompt: "write"})

	if _, ok := findEvent(events, model.EventApprovalRequested); ok {
		t.Error("ungated path should not request approval")
	}
	if _, err := b.ReadRaw(context.Background(), "/safe.txt"); err != nil {
		t.Errorf("ungated write should succeed: %v", err)
	}
}

func TestAgentEviction(t *testing.T) {
	huge := strings.Repeat("x", 100_000)
	echoTool := &staticTool{name: "dump", output: huge}
	provider := &fakeProvider{script: []llm.LLMResponse{
		{ToolCalls: []llm.ToolCall{toolCall("call-9", "dump", map[string]interface{}{})}},
		{Content: "done"},
	}}
	b := backend.NewStateBackend()
	a, err := New(Config{Provider: provider, Backend: b, Tools: []tools.Tool{echoTool}})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	events := collect(t, a, Request{Prompt: "dump it"})

	result, ok := findEvent(events, model.EventToolResult)
	if !ok {
		t.Fatalf("expected tool-result: %v", eventTypes(events))
	}
	path := "/tool-results/dump-call-9.txt"
	if !strings.Contains(result.Text, path) {
		t.Errorf("result should reference the eviction file: %q", result.Text)
	}
	if len(result.Text) > 1000 {
		t.Errorf("evicted result should be short, got %d chars", len(result.Text))
	}

	data, err := b.ReadRaw(context.Background(), path)
	if err != nil {
		t.Fatalf("evicted file should exist: %v", err)
	}
	if data.Text() != huge {
		t.Error("evicted file should carry the original output")
	}
}

func TestAgentCheckpointAndResume(t *testing.T) {
	cp := checkpoint.NewMemoryCheckpointer()
	provider := &fakeProvider{script: []llm.LLMResponse{
		{ToolCalls: []llm.ToolCall{toolCall("c1", "write_todos", map[string]interface{}{
			"todos": []model.Todo{
				{ID: "1", Content: "write spec", Status: model.TodoCompleted},
				{ID: "2", Content: "draft tests", Status: model.TodoPending},
			},
		})}},
		{Content: "planned"},
	}}
	b := backend.NewStateBackend()
	a, err := New(Config{Provider: provider, Backend: b, Checkpointer: cp})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	events := collect(t, a, Request{Prompt: "plan", ThreadID: "t-1"})

	saved, ok := findEvent(events, model.EventCheckpointSaved)
	if !ok {
		t.Fatalf("expected checkpoint-saved: %v", eventTypes(events))
	}
	if saved.Step != 1 {
		t.Errorf("expected step 1, got %d", saved.Step)
	}

	loaded, err := cp.Load(context.Background(), "t-1")
	if err != nil || loaded == nil {
		t.Fatalf("checkpoint missing: %v", err)
	}
	if len(loaded.State.Todos) != 2 {
		t.Errorf("todos should be checkpointed: %v", loaded.State.Todos)
	}
	savedMessages := len(loaded.Messages)

	// Resume: a fresh invocation on the same thread loads the history.
	provider2 := &fakeProvider{script: []llm.LLMResponse{
		{Content: "resumed"},
	}}
	b2 := backend.NewStateBackend()
	a2, err := New(Config{Provider: provider2, Backend: b2, Checkpointer: cp})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	events2 := collect(t, a2, Request{Prompt: "continue", ThreadID: "t-1"})
	loadedEv, ok := findEvent(events2, model.EventCheckpointLoaded)
	if !ok {
		t.Fatalf("expected checkpoint-loaded: %v", eventTypes(events2))
	}
	if loadedEv.MessagesCount != savedMessages {
		t.Errorf("checkpoint-loaded should report %d messages, got %d", savedMessages, loadedEv.MessagesCount)
	}

	// Restored todos reach the new backend
	todos, err := b2.GetTodos(context.Background())
	if err != nil {
		t.Fatalf("GetTodos failed: %v", err)
	}
	if len(todos) != 2 || todos[1].Content != "draft tests" {
		t.Errorf("todos should be restored: %v", todos)
	}
}

func TestAgentThreadIsolation(t *testing.T) {
	cp := checkpoint.NewMemoryCheckpointer()
	for _, thread := range []string{"alpha", "beta"} {
		provider := &fakeProvider{script: []llm.LLMResponse{
			{ToolCalls: []llm.ToolCall{toolCall("c1", "write_file", map[string]interface{}{
				"path": "/" + thread + ".txt", "content": thread,
			})}},
			{Content: "ok"},
		}}
		a, err := New(Config{Provider: provider, Checkpointer: cp})
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		collect(t, a, Request{Prompt: "go", ThreadID: thread})
	}

	ids, err := cp.List(context.Background())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(ids) != 2 || ids[0] != "alpha" || ids[1] != "beta" {
		t.Errorf("expected exactly the two thread IDs, got %v", ids)
	}

	alpha, err := cp.Load(context.Background(), "alpha")
	if err != nil || alpha == nil {
		t.Fatalf("Load failed: %v", err)
	}
	if _, ok := alpha.State.Files["/beta.txt"]; ok {
		t.Error("threads must not share state")
	}
}

func TestAgentSubagent(t *testing.T) {
	provider := &fakeProvider{script: []llm.LLMResponse{
		// Parent asks for delegation
		{ToolCalls: []llm.ToolCall{toolCall("c1", "task", map[string]interface{}{
			"subagent_type": "researcher",
			"description":   "dig in",
			"prompt":        "find the thing",
		})}},
		// Child answers directly
		{Content: "child answer"},
		// Parent wraps up
		{Content: "parent done"},
	}}
	a, err := New(Config{
		Provider: provider,
		Subagents: []SubagentConfig{{
			Name:        "researcher",
			Description: "looks things up",
			Prompt:      "You research.",
		}},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	events := collect(t, a, Request{Prompt: "delegate"})

	result, ok := findEvent(events, model.EventToolResult)
	if !ok {
		t.Fatalf("expected tool-result: %v", eventTypes(events))
	}
	if result.Text != "child answer" {
		t.Errorf("parent should receive the child's final text verbatim: %q", result.Text)
	}

	startIdx := indexOfEvent(events, model.EventSubagentStart)
	stepIdx := indexOfEvent(events, model.EventSubagentStep)
	finishIdx := indexOfEvent(events, model.EventSubagentFinish)
	if startIdx < 0 || stepIdx < 0 || finishIdx < 0 || !(startIdx < stepIdx && stepIdx < finishIdx) {
		t.Errorf("expected subagent-start < subagent-step < subagent-finish: %v", eventTypes(events))
	}

	// The child saw its own fresh conversation, not the parent's.
	childBuffer := provider.buffers[1]
	if childBuffer[0].Role != "system" || childBuffer[0].Content != "You research." {
		t.Errorf("child should start from its own prompt: %+v", childBuffer[0])
	}
	for _, m := range childBuffer {
		if strings.Contains(m.Content, "delegate") {
			t.Error("child must not inherit the parent's message buffer")
		}
	}
}

func TestAgentMaxStepsBound(t *testing.T) {
	// The model calls a tool forever; the loop must stop at MaxSteps.
	script := make([]llm.LLMResponse, 0, 4)
	for i := 0; i < 3; i++ {
		script = append(script, llm.LLMResponse{ToolCalls: []llm.ToolCall{
			toolCall(fmt.Sprintf("c%d", i), "ls", map[string]interface{}{}),
		}})
	}
	provider := &fakeProvider{script: script}
	a, err := New(Config{Provider: provider, MaxSteps: 3})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	events := collect(t, a, Request{Prompt: "loop forever"})

	if provider.calls != 3 {
		t.Errorf("expected exactly 3 model calls, got %d", provider.calls)
	}
	if _, ok := findEvent(events, model.EventDone); !ok {
		t.Errorf("loop hitting the bound should still end with done: %v", eventTypes(events))
	}
}

func TestAgentOutputSchema(t *testing.T) {
	provider := &fakeProvider{script: []llm.LLMResponse{
		{Content: "Here you go: {\"answer\": 42}"},
	}}
	a, err := New(Config{
		Provider: provider,
		Output:   &OutputSchema{Name: "answer", Schema: json.RawMessage(`{"type":"object"}`)},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	events := collect(t, a, Request{Prompt: "answer"})
	done, _ := findEvent(events, model.EventDone)
	if done.Output == nil {
		t.Fatal("expected structured output")
	}
	var parsed struct {
		Answer int `json:"answer"`
	}
	if err := json.Unmarshal(done.Output, &parsed); err != nil || parsed.Answer != 42 {
		t.Errorf("unexpected output: %s", done.Output)
	}
}

func TestAgentModelErrorBecomesErrorEvent(t *testing.T) {
	provider := &fakeProvider{script: nil} // exhausted immediately
	a, err := New(Config{Provider: provider})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	events := collect(t, a, Request{Prompt: "boom"})
	if _, ok := findEvent(events, model.EventError); !ok {
		t.Errorf("model failure must surface as an error event: %v", eventTypes(events))
	}
	if _, ok := findEvent(events, model.EventDone); ok {
		t.Error("a failed run must not emit done")
	}
}

func TestAgentRunCollectsResult(t *testing.T) {
	provider := &fakeProvider{script: []llm.LLMResponse{
		{Content: "final"},
	}}
	a, err := New(Config{Provider: provider})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	result, err := a.Run(context.Background(), Request{Prompt: "go"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Text != "final" {
		t.Errorf("unexpected text: %q", result.Text)
	}
	if result.State == nil {
		t.Error("result should carry the final state")
	}
}

func TestAgentMiddlewareWrapsModelCalls(t *testing.T) {
	provider := &fakeProvider{script: []llm.LLMResponse{{Content: "done"}}}
	var wrapped int
	mw := func(next ModelCall) ModelCall {
		return func(ctx context.Context, messages []llm.ChatMessage, defs []llm.ToolDefinition, onPart llm.PartCallback) (llm.LLMResponse, error) {
			wrapped++
			return next(ctx, messages, defs, onPart)
		}
	}
	a, err := New(Config{Provider: provider, Middleware: []Middleware{mw}})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	collect(t, a, Request{Prompt: "go"})
	if wrapped != 1 {
		t.Errorf("middleware should wrap the model call, saw %d invocations", wrapped)
	}
}

// staticTool returns a fixed output; used to exercise eviction.
type staticTool struct {
	tools.BaseTool
	name   string
	output string
}

func (t *staticTool) Metadata() tools.ToolMetadata {
	return tools.ToolMetadata{Name: t.name, Description: "returns a fixed payload"}
}

func (t *staticTool) Execute(ctx context.Context, args json.RawMessage) (tools.ToolResult, error) {
	return tools.SuccessResult(t.output), nil
}
