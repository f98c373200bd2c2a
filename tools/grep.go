// Grep tool - regex search over virtual file content.
//
// Information Hiding:
// - Search engine (in-process RE2) hidden behind the backend contract
// - Match formatting internalized
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/chrispangg/ai-sdk-deepagent/backend"
	"github.com/chrispangg/ai-sdk-deepagent/model"
)

// DefaultGrepMaxMatches bounds grep output.
const DefaultGrepMaxMatches = 200

// GrepTool searches file content with a regular expression.
type GrepTool struct {
	BaseTool
	backend backend.Backend
	emit    model.Emitter
}

// NewGrepTool creates a new grep tool.
func NewGrepTool(b backend.Backend, emit model.Emitter) *GrepTool {
	return &GrepTool{backend: b, emit: emit}
}

// Metadata returns the tool metadata.
func (t *GrepTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "grep",
		Description: "Search file contents with a regular expression. Returns matching lines as path:line:text.",
		Parameters: []ToolParameter{
			{Name: "pattern", ParamType: "string", Description: "Regular expression to search for", Required: true},
			{Name: "path", ParamType: "string", Description: "Directory to search under (default: /)", Required: false},
			{Name: "include", ParamType: "string", Description: "Glob filter on file names (e.g. '*.go')", Required: false},
		},
	}
}

type grepArgs struct {
	Pattern string `json:"pattern"`
	Path    string `json:"path"`
	Include string `json:"include"`
}

// Validate validates the arguments.
func (t *GrepTool) Validate(args json.RawMessage) error {
	var a grepArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	if a.Pattern == "" {
		return fmt.Errorf("pattern is required")
	}
	return nil
}

// Execute runs the search. A malformed pattern comes back as the
// backend's "Invalid regex pattern:" message verbatim, so the model can
// correct it without an error wrapper in the way.
func (t *GrepTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	var a grepArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return FailureResult(fmt.Errorf("invalid arguments: %w", err)), nil
	}

	matches, err := t.backend.GrepRaw(ctx, a.Pattern, a.Path, a.Include)
	if err != nil {
		if strings.HasPrefix(err.Error(), "Invalid regex pattern:") {
			return SuccessResult(err.Error()), nil
		}
		return FailureResult(err), nil
	}
	t.emit.Emit(model.Event{Type: model.EventGrep, Pattern: a.Pattern, Path: a.Path})

	if len(matches) == 0 {
		return SuccessResult(fmt.Sprintf("No matches found for pattern '%s'", a.Pattern)), nil
	}

	truncated := false
	if len(matches) > DefaultGrepMaxMatches {
		matches = matches[:DefaultGrepMaxMatches]
		truncated = true
	}

	var b strings.Builder
	for _, m := range matches {
		fmt.Fprintf(&b, "%s:%d:%s\n", m.Path, m.Line, m.Text)
	}
	if truncated {
		fmt.Fprintf(&b, "(limited to %d matches)", DefaultGrepMaxMatches)
	}
	return SuccessResult(strings.TrimSuffix(b.String(), "\n")), nil
}
