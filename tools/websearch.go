// Web search tool over an external search provider.
//
// Information Hiding:
// - Search API identity hidden behind the SearchProvider capability
// - Result formatting internalized
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/chrispangg/ai-sdk-deepagent/model"
)

// SearchResult is one hit from a web search.
type SearchResult struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// SearchProvider is the external web-search capability.
type SearchProvider interface {
	Search(ctx context.Context, query string) ([]SearchResult, error)
}

// WebSearchTool queries the configured search provider.
type WebSearchTool struct {
	BaseTool
	provider SearchProvider
	emit     model.Emitter
}

// NewWebSearchTool creates a web search tool.
func NewWebSearchTool(provider SearchProvider, emit model.Emitter) *WebSearchTool {
	return &WebSearchTool{provider: provider, emit: emit}
}

// Retryable marks searches as safe to retry on transient failures.
func (t *WebSearchTool) Retryable() bool { return true }

// Metadata returns the tool metadata.
func (t *WebSearchTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "web_search",
		Description: "Search the web and return result titles, URLs, and snippets",
		Parameters: []ToolParameter{
			{Name: "query", ParamType: "string", Description: "The search query", Required: true},
		},
	}
}

type webSearchArgs struct {
	Query string `json:"query"`
}

// Validate validates the arguments.
func (t *WebSearchTool) Validate(args json.RawMessage) error {
	var a webSearchArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	if strings.TrimSpace(a.Query) == "" {
		return fmt.Errorf("query cannot be empty")
	}
	return nil
}

// Execute runs the search.
func (t *WebSearchTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	var a webSearchArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return FailureResult(fmt.Errorf("invalid arguments: %w", err)), nil
	}
	if t.provider == nil {
		return FailureResultf("no search provider configured"), nil
	}

	t.emit.Emit(model.Event{Type: model.EventWebSearchStart, Query: a.Query})
	results, err := t.provider.Search(ctx, a.Query)
	t.emit.Emit(model.Event{Type: model.EventWebSearchFinish, Query: a.Query})
	if err != nil {
		return FailureResult(fmt.Errorf("search failed: %w", err)), nil
	}

	if len(results) == 0 {
		return SuccessResult(fmt.Sprintf("No results for '%s'", a.Query)), nil
	}

	var b strings.Builder
	for i, r := range results {
		fmt.Fprintf(&b, "%d. %s\n   %s\n   %s\n", i+1, r.Title, r.URL, r.Snippet)
	}
	return SuccessResult(strings.TrimSuffix(b.String(), "\n")), nil
}
