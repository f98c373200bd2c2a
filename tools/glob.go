// Glob tool for file discovery.
//
// Returns virtual file paths matching a glob pattern without reading
// content. Discovery and content loading stay separate so the agent's
// context stays small.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/chrispangg/ai-sdk-deepagent/backend"
	"github.com/chrispangg/ai-sdk-deepagent/model"
)

// DefaultGlobMaxResults is the maximum files reported per query.
const DefaultGlobMaxResults = 100

// GlobTool finds files matching glob patterns.
type GlobTool struct {
	BaseTool
	backend backend.Backend
	emit    model.Emitter
}

// NewGlobTool creates a new glob tool.
func NewGlobTool(b backend.Backend, emit model.Emitter) *GlobTool {
	return &GlobTool{backend: b, emit: emit}
}

// Metadata returns tool metadata.
func (t *GlobTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "glob",
		Description: "Find files matching a glob pattern. Returns file paths only (no content). Hidden entries (starting with .) are skipped unless the pattern names them. Use for discovery, then read_file to load content.",
		Parameters: []ToolParameter{
			{Name: "pattern", ParamType: "string", Description: "Glob pattern (e.g., '**/*.go', 'src/**/*.ts', '*.yaml')", Required: true},
			{Name: "path", ParamType: "string", Description: "Base directory to search from (default: /)", Required: false},
		},
	}
}

type globArgs struct {
	Pattern string `json:"pattern"`
	Path    string `json:"path"`
}

// Validate validates the arguments.
func (t *GlobTool) Validate(args json.RawMessage) error {
	var a globArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	if strings.TrimSpace(a.Pattern) == "" {
		return fmt.Errorf("pattern is required")
	}
	return nil
}

// Execute runs the glob search.
func (t *GlobTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	var a globArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return FailureResult(fmt.Errorf("invalid arguments: %w", err)), nil
	}

	infos, err := t.backend.GlobInfo(ctx, a.Pattern, a.Path)
	if err != nil {
		return FailureResult(err), nil
	}
	t.emit.Emit(model.Event{Type: model.EventGlob, Pattern: a.Pattern, Path: a.Path})

	if len(infos) == 0 {
		return SuccessResult(fmt.Sprintf("No files found matching pattern '%s'", a.Pattern)), nil
	}

	truncated := false
	if len(infos) > DefaultGlobMaxResults {
		infos = infos[:DefaultGlobMaxResults]
		truncated = true
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d files matching '%s':\n", len(infos), a.Pattern)
	for _, info := range infos {
		fmt.Fprintln(&b, info.Path)
	}
	if truncated {
		fmt.Fprintf(&b, "\n(limited to %d results)", DefaultGlobMaxResults)
	}
	return SuccessResult(strings.TrimSuffix(b.String(), "\n")), nil
}
