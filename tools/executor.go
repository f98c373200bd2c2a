// Tool Executor with timeout and retry support.
//
// Information Hiding:
// - Retry strategy implementation hidden
// - Backoff algorithm hidden
// - Error classification logic hidden
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Executor provides tool execution with per-call timeouts. Retries apply
// only to tools that declare themselves Retryable; tools that mutate
// state always run exactly once.
type Executor struct {
	config ToolConfig
}

// NewExecutor creates a new tool executor with the given configuration.
func NewExecutor(config ToolConfig) *Executor {
	return &Executor{config: config}
}

// NewDefaultExecutor creates an executor with default configuration.
func NewDefaultExecutor() *Executor {
	return &Executor{config: DefaultToolConfig()}
}

// Execute validates the arguments and runs the tool under the configured
// timeout. Validation failures and tool failures come back as failed
// ToolResults, not errors; the error return is reserved for context
// cancellation.
func (e *Executor) Execute(ctx context.Context, tool Tool, args json.RawMessage) (ToolResult, error) {
	if err := tool.Validate(args); err != nil {
		return FailureResult(err), nil
	}

	if r, ok := tool.(Retryable); ok && r.Retryable() {
		return e.executeWithRetry(ctx, tool, args)
	}
	return e.executeOnce(ctx, tool, args)
}

func (e *Executor) executeOnce(ctx context.Context, tool Tool, args json.RawMessage) (ToolResult, error) {
	timeout := time.Duration(e.config.Timeout()) * time.Second
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := tool.Execute(ctx, args)
	if err != nil {
		if ctx.Err() != nil {
			return ToolResult{}, ctx.Err()
		}
		return FailureResult(err), nil
	}
	return result, nil
}

// executeWithRetry retries transient failures with exponential backoff.
func (e *Executor) executeWithRetry(ctx context.Context, tool Tool, args json.RawMessage) (ToolResult, error) {
	var last ToolResult
	maxRetries := e.config.Retries()

	for attempt := uint32(0); attempt < maxRetries; attempt++ {
		if attempt > 0 {
			backoff := calculateBackoff(attempt)
			select {
			case <-ctx.Done():
				return ToolResult{}, ctx.Err()
			case <-time.After(backoff):
			}
		}

		result, err := e.executeOnce(ctx, tool, args)
		if err != nil {
			return ToolResult{}, err
		}
		if result.Success() || !isTransient(result.Error) {
			return result, nil
		}
		last = result
	}

	toolName := tool.Metadata().Name
	return FailureResultf("tool '%s' failed after %d attempts: %v", toolName, maxRetries, last.Error), nil
}

// calculateBackoff returns the backoff duration for the given attempt.
func calculateBackoff(attempt uint32) time.Duration {
	const (
		baseDelay = 100 * time.Millisecond
		maxDelay  = 5 * time.Second
	)

	delay := baseDelay * time.Duration(1<<attempt)
	if delay > maxDelay {
		delay = maxDelay
	}
	return delay
}

// isTransient reports whether a failure looks worth retrying.
func isTransient(err error) bool {
	if err == nil {
		return false
	}

	errLower := strings.ToLower(err.Error())
	for _, s := range []string{"timeout", "timed out", "connection", "network", "temporarily"} {
		if strings.Contains(errLower, s) {
			return true
		}
	}
	return false
}

// ExecuteOnce runs a tool once without an executor.
func ExecuteOnce(ctx context.Context, tool Tool, args json.RawMessage) (ToolResult, error) {
	if err := tool.Validate(args); err != nil {
		return FailureResult(fmt.Errorf("validation failed: %w", err)), nil
	}

	return tool.Execute(ctx, args)
}
