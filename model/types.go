// Package model provides domain types shared across packages.
package model

import (
	"encoding/json"
	"strings"
	"time"
)

// TodoStatus is the lifecycle state of a todo item.
type TodoStatus string

const (
	TodoPending    TodoStatus = "pending"
	TodoInProgress TodoStatus = "in_progress"
	TodoCompleted  TodoStatus = "completed"
)

// Todo is a single planning item. IDs are unique within a list.
// Keeping at most one item in_progress is a convention the model follows,
// not something the harness enforces.
type Todo struct {
	ID      string     `json:"id"`
	Content string     `json:"content"`
	Status  TodoStatus `json:"status"`
}

// FileData is the stored form of a virtual file: one string per logical
// line plus creation and modification timestamps (ISO-8601).
type FileData struct {
	Content    []string `json:"content"`
	CreatedAt  string   `json:"created_at"`
	ModifiedAt string   `json:"modified_at"`
}

// NewFileData builds a FileData from raw content, splitting on newlines.
func NewFileData(content string, now time.Time) *FileData {
	ts := now.UTC().Format(time.RFC3339)
	return &FileData{
		Content:    strings.Split(content, "\n"),
		CreatedAt:  ts,
		ModifiedAt: ts,
	}
}

// Text joins the stored lines back into the original content.
// Split followed by Text round-trips.
func (f *FileData) Text() string {
	return strings.Join(f.Content, "\n")
}

// Clone returns a deep copy.
func (f *FileData) Clone() *FileData {
	content := make([]string, len(f.Content))
	copy(content, f.Content)
	return &FileData{Content: content, CreatedAt: f.CreatedAt, ModifiedAt: f.ModifiedAt}
}

// AgentState is the mutable state owned by one agent invocation: the todo
// list and, for the in-memory backend, the virtual files keyed by path.
type AgentState struct {
	Todos []Todo               `json:"todos"`
	Files map[string]*FileData `json:"files"`
}

// NewAgentState creates an empty state.
func NewAgentState() *AgentState {
	return &AgentState{
		Todos: []Todo{},
		Files: make(map[string]*FileData),
	}
}

// Clone returns a deep copy of the state.
func (s *AgentState) Clone() *AgentState {
	out := &AgentState{
		Todos: make([]Todo, len(s.Todos)),
		Files: make(map[string]*FileData, len(s.Files)),
	}
	copy(out.Todos, s.Todos)
	for path, data := range s.Files {
		out.Files[path] = data.Clone()
	}
	return out
}

// FileKind distinguishes listing entries.
type FileKind string

const (
	KindFile FileKind = "file"
	KindDir  FileKind = "dir"
)

// FileInfo is one entry in a listing or glob result.
type FileInfo struct {
	Path       string   `json:"path"`
	Kind       FileKind `json:"kind"`
	Size       int      `json:"size,omitempty"`
	ModifiedAt string   `json:"modified_at,omitempty"`
}

// GrepMatch is one matching line from a regex search.
// Line numbers are 1-based.
type GrepMatch struct {
	Path string `json:"path"`
	Line int    `json:"line"`
	Text string `json:"text"`
}

// ApprovalRequest describes a tool call awaiting a user decision.
// It exists from just before a gated tool would execute until the
// decision is delivered.
type ApprovalRequest struct {
	ApprovalID string          `json:"approval_id"`
	ToolCallID string          `json:"tool_call_id"`
	ToolName   string          `json:"tool_name"`
	Args       json.RawMessage `json:"args"`
}
