// Execute tool - shell commands through a sandbox interface.
//
// Information Hiding:
// - Execution environment hidden behind the Sandbox capability
// - Command validation hidden
// - Output assembly abstracted
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/chrispangg/ai-sdk-deepagent/model"
)

// ExecResult is the outcome of a sandboxed command.
type ExecResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Sandbox is the capability the execute tool passes commands through.
// Callers provide their own isolation; LocalSandbox runs on the host.
type Sandbox interface {
	Exec(ctx context.Context, command string) (ExecResult, error)
}

// LocalSandbox runs commands on the host via sh -c.
type LocalSandbox struct {
	timeoutSecs     uint64
	allowedCommands []string
}

// NewLocalSandbox creates a host sandbox with the given timeout.
func NewLocalSandbox(timeoutSecs uint64) *LocalSandbox {
	if timeoutSecs == 0 {
		timeoutSecs = 30
	}
	return &LocalSandbox{timeoutSecs: timeoutSecs}
}

// WithAllowedCommands sets the allowlist for base commands.
func (s *LocalSandbox) WithAllowedCommands(commands []string) *LocalSandbox {
	s.allowedCommands = commands
	return s
}

// Exec runs the command.
func (s *LocalSandbox) Exec(ctx context.Context, command string) (ExecResult, error) {
	if !s.isCommandAllowed(command) {
		return ExecResult{}, fmt.Errorf("command '%s' is not in the allowed list", command)
	}

	timeout := time.Duration(s.timeoutSecs) * time.Second
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return ExecResult{}, fmt.Errorf("command timed out after %d seconds", s.timeoutSecs)
	}

	result := ExecResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return ExecResult{}, fmt.Errorf("failed to execute command: %w", err)
	}
	return result, nil
}

// isCommandAllowed checks the base command against the allowlist.
func (s *LocalSandbox) isCommandAllowed(command string) bool {
	if len(s.allowedCommands) == 0 {
		return true
	}

	fields := strings.Fields(command)
	if len(fields) == 0 {
		return false
	}
	for _, allowed := range s.allowedCommands {
		if allowed == fields[0] {
			return true
		}
	}
	return false
}

// ExecuteTool runs shell commands through the configured sandbox.
type ExecuteTool struct {
	BaseTool
	sandbox Sandbox
	emit    model.Emitter
}

// NewExecuteTool creates an execute tool over a sandbox.
func NewExecuteTool(sandbox Sandbox, emit model.Emitter) *ExecuteTool {
	return &ExecuteTool{sandbox: sandbox, emit: emit}
}

// Metadata returns the tool metadata.
func (t *ExecuteTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "execute",
		Description: "Execute a shell command in the sandbox and return its output",
		Parameters: []ToolParameter{
			{Name: "command", ParamType: "string", Description: "The shell command to execute", Required: true},
		},
	}
}

type executeArgs struct {
	Command string `json:"command"`
}

// Validate validates the tool arguments.
func (t *ExecuteTool) Validate(args json.RawMessage) error {
	var a executeArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	if a.Command == "" {
		return fmt.Errorf("command cannot be empty")
	}
	return nil
}

// Execute runs the command through the sandbox.
func (t *ExecuteTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	var a executeArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return FailureResult(fmt.Errorf("invalid arguments: %w", err)), nil
	}
	if a.Command == "" {
		return FailureResultf("command cannot be empty"), nil
	}
	if t.sandbox == nil {
		return FailureResultf("no sandbox configured"), nil
	}

	t.emit.Emit(model.Event{Type: model.EventExecuteStart, Command: a.Command})
	result, err := t.sandbox.Exec(ctx, a.Command)
	t.emit.Emit(model.Event{Type: model.EventExecuteFinish, Command: a.Command})
	if err != nil {
		return FailureResult(err), nil
	}

	var b strings.Builder
	if result.Stdout != "" {
		b.WriteString(result.Stdout)
	}
	if result.Stderr != "" {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "stderr: %s", result.Stderr)
	}
	if result.ExitCode != 0 {
		return FailureResultf("command exited with code %d\n%s", result.ExitCode, b.String()), nil
	}
	if b.Len() == 0 {
		return SuccessResult("(no output)"), nil
	}
	return SuccessResult(b.String()), nil
}
