// The tool loop: model call, tool batch, checkpoint, repeat.
package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/chrispangg/ai-sdk-deepagent/backend"
	"github.com/chrispangg/ai-sdk-deepagent/checkpoint"
	jsonutil "github.com/chrispangg/ai-sdk-deepagent/internal/json"
	"github.com/chrispangg/ai-sdk-deepagent/llm"
	"github.com/chrispangg/ai-sdk-deepagent/model"
	"github.com/chrispangg/ai-sdk-deepagent/tools"
)

// Agent drives the tool loop for one configuration. A single Agent may
// serve many invocations; each invocation owns its own message buffer
// and event stream, while the backend is shared.
type Agent struct {
	cfg    Config
	client *llm.Client
	call   ModelCall
}

// New creates an agent from the configuration.
func New(cfg Config) (*Agent, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}

	a := &Agent{
		cfg:    cfg,
		client: llm.NewClient(cfg.Provider),
	}

	// Middleware composes around the raw provider call, outermost first.
	call := ModelCall(func(ctx context.Context, messages []llm.ChatMessage, defs []llm.ToolDefinition, onPart llm.PartCallback) (llm.LLMResponse, error) {
		return cfg.Provider.StreamChatWithTools(ctx, messages, defs, onPart)
	})
	for i := len(cfg.Middleware) - 1; i >= 0; i-- {
		call = cfg.Middleware[i](call)
	}
	a.call = call

	return a, nil
}

// Stream starts an invocation and returns its event stream. The stream
// is finite and non-restartable; exactly one consumer must drain it.
// Abandoning the consumer cancels the run at its next suspension point
// via ctx.
func (a *Agent) Stream(ctx context.Context, req Request) <-chan model.Event {
	ch := make(chan model.Event)
	r := &run{agent: a, ctx: ctx, ch: ch}
	go func() {
		defer close(ch)
		r.execute(req)
	}()
	return ch
}

// Run drives an invocation to completion and collects the result.
func (a *Agent) Run(ctx context.Context, req Request) (*Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	result := &Result{}
	for ev := range a.Stream(ctx, req) {
		switch ev.Type {
		case model.EventError:
			return nil, fmt.Errorf("agent: %s", ev.Text)
		case model.EventDone:
			result.Text = ev.Text
			result.Output = ev.Output
			result.State = ev.State
			result.Steps = ev.Step
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// run is the per-invocation state: the message buffer, the bound tool
// registry, and the event channel.
type run struct {
	agent    *Agent
	ctx      context.Context
	ch       chan model.Event
	registry *tools.Registry
	executor *tools.Executor
	messages []llm.ChatMessage
	threadID string
	step     int
}

// emit hands one event to the consumer, blocking until it is taken.
// Returns false when the consumer is gone.
func (r *run) emit(ev model.Event) bool {
	select {
	case r.ch <- ev:
		return true
	case <-r.ctx.Done():
		return false
	}
}

// emitter adapts emit for tools.
func (r *run) emitter() model.Emitter {
	return func(ev model.Event) { r.emit(ev) }
}

// execute is the invocation body. Every failure funnels into a single
// terminal error event; nothing is thrown across the stream boundary.
func (r *run) execute(req Request) {
	a := r.agent
	r.threadID = req.ThreadID

	if err := r.restore(); err != nil {
		r.fail(err)
		return
	}
	r.seedMessages(req)
	r.bindTools()

	final, err := r.loop()
	if err != nil {
		r.fail(err)
		return
	}

	done := model.Event{Type: model.EventDone, Text: final, Step: r.step}
	if a.cfg.Output != nil && final != "" {
		if extracted, err := jsonutil.ExtractJSON(final); err == nil {
			done.Output = json.RawMessage(extracted)
		}
	}
	if state, err := r.snapshot(); err == nil {
		done.State = state
	}
	r.emit(done)
}

// fail terminates the stream with an error event.
func (r *run) fail(err error) {
	r.agent.cfg.Logger.Error().Err(err).Msg("agent run failed")
	r.emit(model.Event{Type: model.EventError, Text: err.Error()})
}

// restore loads the thread checkpoint, if any, and seeds the message
// buffer and backend state from it.
func (r *run) restore() error {
	a := r.agent
	if r.threadID == "" || a.cfg.Checkpointer == nil {
		return nil
	}

	cp, err := a.cfg.Checkpointer.Load(r.ctx, r.threadID)
	if err != nil {
		return fmt.Errorf("failed to load checkpoint: %w", err)
	}
	if cp == nil {
		return nil
	}

	r.messages = append(r.messages, cp.Messages...)
	r.step = cp.Step
	if snap, ok := a.cfg.Backend.(backend.Snapshotter); ok {
		if err := snap.RestoreState(r.ctx, cp.State); err != nil {
			return fmt.Errorf("failed to restore state: %w", err)
		}
	} else if cp.State != nil {
		if err := a.cfg.Backend.SetTodos(r.ctx, cp.State.Todos); err != nil {
			return fmt.Errorf("failed to restore todos: %w", err)
		}
	}

	r.emit(model.Event{
		Type:          model.EventCheckpointLoaded,
		ThreadID:      r.threadID,
		Step:          cp.Step,
		MessagesCount: len(cp.Messages),
	})
	return nil
}

// seedMessages assembles the buffer: system prompt, prior history, and
// the caller's prompt or message list.
func (r *run) seedMessages(req Request) {
	a := r.agent
	if len(r.messages) == 0 && a.cfg.SystemPrompt != "" {
		r.messages = append(r.messages, llm.SystemMessage(a.cfg.SystemPrompt))
	}

	if len(req.Messages) > 0 {
		r.messages = append(r.messages, req.Messages...)
		for _, m := range req.Messages {
			if m.Role == "user" {
				r.emit(model.Event{Type: model.EventUserMessage, Text: m.Content})
			}
		}
		return
	}
	if req.Prompt != "" {
		r.messages = append(r.messages, llm.UserMessage(req.Prompt))
		r.emit(model.Event{Type: model.EventUserMessage, Text: req.Prompt})
	}
}

// bindTools builds the per-invocation registry: built-ins, optional
// collaborator tools, user tools, then the approval gate over anything
// configured in InterruptOn.
func (r *run) bindTools() {
	a := r.agent
	emit := r.emitter()

	registry := tools.NewRegistry()
	for _, t := range tools.BuiltinTools(a.cfg.Backend, emit) {
		_ = registry.Register(t)
	}
	registry.Replace(tools.NewTaskTool(a.newSubagentRunner(emit), subagentInfos(a.cfg.Subagents), emit))
	if a.cfg.Sandbox != nil {
		registry.Replace(tools.NewExecuteTool(a.cfg.Sandbox, emit))
	}
	if a.cfg.SearchProvider != nil {
		registry.Replace(tools.NewWebSearchTool(a.cfg.SearchProvider, emit))
	}
	if a.cfg.EnableHTTP {
		registry.Replace(tools.NewHTTPTool(0, emit))
		registry.Replace(tools.NewFetchURLTool(0, emit).WithConverter(a.cfg.Converter))
	}
	for _, t := range a.cfg.Tools {
		registry.Replace(t)
	}

	for name, policy := range a.cfg.InterruptOn {
		if t, ok := registry.Get(name); ok {
			registry.Replace(wrapWithApproval(t, policy, a.cfg.OnApprovalRequest, emit))
		}
	}

	r.registry = registry
	r.executor = tools.NewDefaultExecutor()
}

// toolDefinitions renders a registry for the model.
func toolDefinitions(registry *tools.Registry) []llm.ToolDefinition {
	metas := registry.List()
	defs := make([]llm.ToolDefinition, len(metas))
	for i, meta := range metas {
		defs[i] = llm.ToolDefinition{
			Name:        meta.Name,
			Description: meta.Description,
			Parameters:  meta.Schema(),
		}
	}
	return defs
}

// loop runs model calls and tool batches until the model answers
// without tool calls or the step bound is reached. Returns the final
// assistant text.
func (r *run) loop() (string, error) {
	a := r.agent
	final := ""

	for steps := 0; steps < a.cfg.MaxSteps; steps++ {
		if err := r.ctx.Err(); err != nil {
			return "", err
		}

		r.messages = a.maybeSummarize(r.ctx, r.messages)

		if !r.emit(model.Event{Type: model.EventStepStart, Step: r.step + 1}) {
			return "", r.ctx.Err()
		}

		resp, err := a.call(r.ctx, r.messages, toolDefinitions(r.registry), func(part llm.StreamPart) {
			if part.Type == llm.PartText && part.Text != "" {
				r.emit(model.Event{Type: model.EventText, Text: part.Text})
			}
		})
		if err != nil {
			return "", fmt.Errorf("model call failed: %w", err)
		}

		r.messages = append(r.messages, llm.ChatMessage{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		if resp.Content != "" {
			r.emit(model.Event{Type: model.EventTextSegment, Text: resp.Content})
		}

		if len(resp.ToolCalls) == 0 {
			final = resp.Content
			r.step++
			if err := r.saveCheckpoint(); err != nil {
				return "", err
			}
			break
		}

		for _, tc := range resp.ToolCalls {
			if err := r.runToolCall(tc); err != nil {
				return "", err
			}
		}
		r.step++

		if err := r.saveCheckpoint(); err != nil {
			return "", err
		}

		if steps == a.cfg.MaxSteps-1 {
			final = resp.Content
		}
	}

	return final, nil
}

// runToolCall executes one tool call and appends its result to the
// buffer, evicting oversized output into the filesystem first.
func (r *run) runToolCall(tc llm.ToolCall) error {
	a := r.agent
	if tc.ID == "" {
		tc.ID = uuid.New().String()
	}

	text, err := a.executeToolCall(r.ctx, r.registry, r.executor, tc, r.emitter())
	if err != nil {
		// Tool errors become results; an error here is cancellation.
		return err
	}
	text = a.maybeEvict(r.ctx, tc.Name, tc.ID, text)

	r.messages = append(r.messages, llm.ChatMessage{
		Role:       "tool",
		Content:    text,
		ToolCallID: tc.ID,
	})
	if !r.emit(model.Event{Type: model.EventToolResult, ToolCallID: tc.ID, ToolName: tc.Name, Text: text}) {
		return r.ctx.Err()
	}
	return nil
}

// executeToolCall resolves approval first, announces the call, then
// runs the tool. Approval events therefore always precede the
// tool-call event for the same call ID.
func (a *Agent) executeToolCall(ctx context.Context, registry *tools.Registry, executor *tools.Executor, tc llm.ToolCall, emit model.Emitter) (string, error) {
	ctx = withToolCallID(ctx, tc.ID)
	tool, found := registry.Get(tc.Name)

	approved := true
	target := tool
	if found {
		if gate, gated := tool.(*approvalGate); gated {
			var err error
			approved, err = gate.decide(ctx, tc.Arguments)
			if err != nil {
				emit.Emit(model.Event{Type: model.EventToolCall, ToolCallID: tc.ID, ToolName: tc.Name, Args: tc.Arguments})
				return tools.FailureResult(err).Text(), nil
			}
			target = gate.inner
		}
	}

	emit.Emit(model.Event{Type: model.EventToolCall, ToolCallID: tc.ID, ToolName: tc.Name, Args: tc.Arguments})

	if !found {
		return fmt.Sprintf("Error: tool '%s' not found", tc.Name), nil
	}
	if !approved {
		return DeniedMessage, nil
	}

	result, err := executor.Execute(ctx, target, tc.Arguments)
	if err != nil {
		return "", err
	}
	return result.Text(), nil
}

// snapshot captures the backend state for checkpoints and the done
// event.
func (r *run) snapshot() (*model.AgentState, error) {
	a := r.agent
	if snap, ok := a.cfg.Backend.(backend.Snapshotter); ok {
		return snap.SnapshotState(r.ctx)
	}
	todos, err := a.cfg.Backend.GetTodos(r.ctx)
	if err != nil {
		return nil, err
	}
	state := model.NewAgentState()
	state.Todos = todos
	return state, nil
}

// saveCheckpoint persists the thread after a completed step.
func (r *run) saveCheckpoint() error {
	a := r.agent
	if r.threadID == "" || a.cfg.Checkpointer == nil {
		return nil
	}

	state, err := r.snapshot()
	if err != nil {
		return fmt.Errorf("failed to snapshot state: %w", err)
	}
	cp := &checkpoint.Checkpoint{
		ThreadID: r.threadID,
		Step:     r.step,
		Messages: r.messages,
		State:    state,
	}
	if err := a.cfg.Checkpointer.Save(r.ctx, cp); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}

	a.cfg.Logger.Debug().Str("thread", r.threadID).Int("step", r.step).Msg("checkpoint saved")
	if !r.emit(model.Event{Type: model.EventCheckpointSaved, ThreadID: r.threadID, Step: r.step}) {
		return r.ctx.Err()
	}
	return nil
}
