// HTTP tools - raw requests and page fetching.
//
// Information Hiding:
// - HTTP client implementation details hidden
// - Request/response handling abstracted
// - Domain allowlisting internalized
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/chrispangg/ai-sdk-deepagent/model"
)

// httpMaxBody caps response bodies read into tool results.
const httpMaxBody = 512 * 1024

// HTTPTool makes HTTP requests.
type HTTPTool struct {
	BaseTool
	client         *http.Client
	timeoutSecs    uint64
	allowedDomains []string
	emit           model.Emitter
}

// NewHTTPTool creates a new HTTP tool with the given timeout.
func NewHTTPTool(timeoutSecs uint64, emit model.Emitter) *HTTPTool {
	if timeoutSecs == 0 {
		timeoutSecs = 30
	}
	return &HTTPTool{
		client: &http.Client{
			Timeout: time.Duration(timeoutSecs) * time.Second,
		},
		timeoutSecs: timeoutSecs,
		emit:        emit,
	}
}

// WithAllowedDomains sets the allowed domains for requests.
func (t *HTTPTool) WithAllowedDomains(domains []string) *HTTPTool {
	t.allowedDomains = domains
	return t
}

// Retryable marks HTTP requests as safe to retry on transient failures.
func (t *HTTPTool) Retryable() bool { return true }

// Metadata returns the tool metadata.
func (t *HTTPTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "http_request",
		Description: "Make HTTP GET or POST requests to fetch data from URLs",
		Parameters: []ToolParameter{
			{Name: "url", ParamType: "string", Description: "The URL to request", Required: true},
			{Name: "method", ParamType: "string", Description: "HTTP method (GET or POST)", Required: false},
			{Name: "body", ParamType: "string", Description: "Request body for POST requests", Required: false},
		},
	}
}

type httpArgs struct {
	URL    string `json:"url"`
	Method string `json:"method"`
	Body   string `json:"body"`
}

// Validate validates the arguments.
func (t *HTTPTool) Validate(args json.RawMessage) error {
	var a httpArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	if a.URL == "" {
		return fmt.Errorf("URL cannot be empty")
	}
	return nil
}

// Execute makes the HTTP request.
func (t *HTTPTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	var a httpArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return FailureResult(fmt.Errorf("invalid arguments: %w", err)), nil
	}

	if a.URL == "" {
		return FailureResultf("URL cannot be empty"), nil
	}

	if !domainAllowed(a.URL, t.allowedDomains) {
		return FailureResultf("access to domain in '%s' is not allowed", a.URL), nil
	}

	method := strings.ToUpper(a.Method)
	if method == "" {
		method = "GET"
	}
	if method != "GET" && method != "POST" {
		return FailureResultf("only GET and POST methods are supported"), nil
	}

	var req *http.Request
	var err error
	if method == "POST" {
		req, err = http.NewRequestWithContext(ctx, method, a.URL, strings.NewReader(a.Body))
	} else {
		req, err = http.NewRequestWithContext(ctx, method, a.URL, nil)
	}
	if err != nil {
		return FailureResult(fmt.Errorf("failed to create request: %w", err)), nil
	}

	t.emit.Emit(model.Event{Type: model.EventHTTPRequestStart, URL: a.URL})
	resp, err := t.client.Do(req)
	t.emit.Emit(model.Event{Type: model.EventHTTPRequestFinish, URL: a.URL})
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return FailureResultf("request timed out after %d seconds", t.timeoutSecs), nil
		}
		return FailureResult(fmt.Errorf("request failed: %w", err)), nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, httpMaxBody))
	if err != nil {
		return FailureResult(fmt.Errorf("failed to read response body: %w", err)), nil
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return SuccessResult(fmt.Sprintf("Status: %s\n\n%s", resp.Status, string(body))), nil
	}
	return FailureResultf("HTTP error: %s\n\n%s", resp.Status, string(body)), nil
}

// MarkdownConverter turns fetched HTML into model-friendly Markdown.
// Provided by the caller; absent, fetch_url returns the raw body.
type MarkdownConverter interface {
	Convert(html string) (string, error)
}

// FetchURLTool fetches a page and optionally converts it to Markdown.
type FetchURLTool struct {
	BaseTool
	client         *http.Client
	timeoutSecs    uint64
	allowedDomains []string
	converter      MarkdownConverter
	emit           model.Emitter
}

// NewFetchURLTool creates a new fetch_url tool with the given timeout.
func NewFetchURLTool(timeoutSecs uint64, emit model.Emitter) *FetchURLTool {
	if timeoutSecs == 0 {
		timeoutSecs = 30
	}
	return &FetchURLTool{
		client: &http.Client{
			Timeout: time.Duration(timeoutSecs) * time.Second,
		},
		timeoutSecs: timeoutSecs,
		emit:        emit,
	}
}

// WithConverter sets the HTML-to-Markdown converter.
func (t *FetchURLTool) WithConverter(converter MarkdownConverter) *FetchURLTool {
	t.converter = converter
	return t
}

// WithAllowedDomains sets the allowed domains for fetches.
func (t *FetchURLTool) WithAllowedDomains(domains []string) *FetchURLTool {
	t.allowedDomains = domains
	return t
}

// Retryable marks fetches as safe to retry on transient failures.
func (t *FetchURLTool) Retryable() bool { return true }

// Metadata returns the tool metadata.
func (t *FetchURLTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "fetch_url",
		Description: "Fetch a web page and return its content as Markdown",
		Parameters: []ToolParameter{
			{Name: "url", ParamType: "string", Description: "The URL to fetch", Required: true},
		},
	}
}

type fetchURLArgs struct {
	URL string `json:"url"`
}

// Validate validates the arguments.
func (t *FetchURLTool) Validate(args json.RawMessage) error {
	var a fetchURLArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	if a.URL == "" {
		return fmt.Errorf("URL cannot be empty")
	}
	return nil
}

// Execute fetches the page.
func (t *FetchURLTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	var a fetchURLArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return FailureResult(fmt.Errorf("invalid arguments: %w", err)), nil
	}
	if a.URL == "" {
		return FailureResultf("URL cannot be empty"), nil
	}
	if !domainAllowed(a.URL, t.allowedDomains) {
		return FailureResultf("access to domain in '%s' is not allowed", a.URL), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.URL, nil)
	if err != nil {
		return FailureResult(fmt.Errorf("failed to create request: %w", err)), nil
	}

	t.emit.Emit(model.Event{Type: model.EventFetchURLStart, URL: a.URL})
	resp, err := t.client.Do(req)
	t.emit.Emit(model.Event{Type: model.EventFetchURLFinish, URL: a.URL})
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return FailureResultf("request timed out after %d seconds", t.timeoutSecs), nil
		}
		return FailureResult(fmt.Errorf("request failed: %w", err)), nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, httpMaxBody))
	if err != nil {
		return FailureResult(fmt.Errorf("failed to read response body: %w", err)), nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return FailureResultf("HTTP error: %s", resp.Status), nil
	}

	content := string(body)
	if t.converter != nil {
		converted, err := t.converter.Convert(content)
		if err == nil {
			content = converted
		}
	}
	return SuccessResult(content), nil
}

// domainAllowed checks if the URL's domain is in the allowlist.
// Uses proper URL parsing to prevent bypass attacks.
func domainAllowed(urlStr string, allowedDomains []string) bool {
	if len(allowedDomains) == 0 {
		return true
	}

	u, err := url.Parse(urlStr)
	if err != nil {
		return false
	}

	host := u.Hostname()
	for _, domain := range allowedDomains {
		// Exact match or subdomain match
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}
