// Human-in-the-loop approval gate.
//
// The gate composes at the tool level: it wraps a tool's Execute while
// leaving its name and schema untouched, so the same backend can serve
// both gated and ungated tools. Without a callback the decision is a
// deterministic deny.
package agent

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/chrispangg/ai-sdk-deepagent/model"
	"github.com/chrispangg/ai-sdk-deepagent/tools"
)

// DeniedMessage is the tool result the model sees when a gated call is
// refused. Denial is a normal result, never an error.
const DeniedMessage = "Tool execution denied by user. The tool call was not executed."

// toolCallIDKey carries the active tool-call ID into wrapped executes.
type toolCallIDKey struct{}

// withToolCallID tags the context with the tool call being executed.
func withToolCallID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, toolCallIDKey{}, id)
}

// toolCallIDFrom recovers the active tool-call ID, if any.
func toolCallIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(toolCallIDKey{}).(string)
	return id
}

// approvalGate wraps a tool's Execute with a user-approval check.
type approvalGate struct {
	inner    tools.Tool
	policy   ApprovalPolicy
	callback ApprovalCallback
	emit     model.Emitter
}

// wrapWithApproval gates a tool according to the policy.
func wrapWithApproval(inner tools.Tool, policy ApprovalPolicy, callback ApprovalCallback, emit model.Emitter) tools.Tool {
	return &approvalGate{inner: inner, policy: policy, callback: callback, emit: emit}
}

// Metadata is the inner tool's metadata, untouched.
func (g *approvalGate) Metadata() tools.ToolMetadata {
	return g.inner.Metadata()
}

// Validate is the inner tool's validation, untouched.
func (g *approvalGate) Validate(args json.RawMessage) error {
	return g.inner.Validate(args)
}

// decide consults the policy and, when gating applies, requests the
// user's decision. The approval-requested event is emitted before the
// loop announces the tool call, so consumers always see the request
// first. The first return reports whether the call may run.
func (g *approvalGate) decide(ctx context.Context, args json.RawMessage) (approved bool, err error) {
	needed := g.policy.Always
	if !needed && g.policy.ShouldApprove != nil {
		needed, err = g.policy.ShouldApprove(ctx, args)
		if err != nil {
			return false, err
		}
	}
	if !needed {
		return true, nil
	}

	req := model.ApprovalRequest{
		ApprovalID: uuid.New().String(),
		ToolCallID: toolCallIDFrom(ctx),
		ToolName:   g.inner.Metadata().Name,
		Args:       args,
	}
	g.emit.Emit(model.Event{Type: model.EventApprovalRequested, Request: &req, ToolCallID: req.ToolCallID, ToolName: req.ToolName})

	if g.callback != nil {
		ok, cbErr := g.callback(ctx, req)
		approved = cbErr == nil && ok
	}
	g.emit.Emit(model.Event{Type: model.EventApprovalResponse, Request: &req, Approved: approved, ToolCallID: req.ToolCallID, ToolName: req.ToolName})
	return approved, nil
}

// Execute consults the policy, requests a decision when needed, and
// either delegates or returns the denial result.
func (g *approvalGate) Execute(ctx context.Context, args json.RawMessage) (tools.ToolResult, error) {
	approved, err := g.decide(ctx, args)
	if err != nil {
		return tools.FailureResult(err), nil
	}
	if !approved {
		return tools.SuccessResult(DeniedMessage), nil
	}
	return g.inner.Execute(ctx, args)
}

var _ tools.Tool = (*approvalGate)(nil)
