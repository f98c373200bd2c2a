// Filesystem Tools - ls, read, write, edit over the virtual backend.
//
// Information Hiding:
// - Physical storage hidden behind the backend contract
// - Line rendering and edit semantics delegated to the backend
// - Event emission internalized per tool
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/chrispangg/ai-sdk-deepagent/backend"
	"github.com/chrispangg/ai-sdk-deepagent/model"
)

// LsTool lists entries under a virtual directory.
type LsTool struct {
	BaseTool
	backend backend.Backend
	emit    model.Emitter
}

// NewLsTool creates a new ls tool.
func NewLsTool(b backend.Backend, emit model.Emitter) *LsTool {
	return &LsTool{backend: b, emit: emit}
}

// Metadata returns the tool metadata.
func (t *LsTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "ls",
		Description: "List files and directories at a path in the virtual filesystem",
		Parameters: []ToolParameter{
			{Name: "path", ParamType: "string", Description: "Directory to list (default: /)", Required: false},
		},
	}
}

type lsArgs struct {
	Path string `json:"path"`
}

// Execute lists the directory.
func (t *LsTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	var a lsArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return FailureResult(fmt.Errorf("invalid arguments: %w", err)), nil
	}

	infos, err := t.backend.LsInfo(ctx, a.Path)
	if err != nil {
		return FailureResult(err), nil
	}
	t.emit.Emit(model.Event{Type: model.EventLs, Path: a.Path})

	if len(infos) == 0 {
		return SuccessResult("(empty directory)"), nil
	}

	var b strings.Builder
	for _, info := range infos {
		fmt.Fprintln(&b, info.Path)
	}
	return SuccessResult(strings.TrimSuffix(b.String(), "\n")), nil
}

// ReadFileTool reads a file with line numbers.
type ReadFileTool struct {
	BaseTool
	backend backend.Backend
	emit    model.Emitter
}

// NewReadFileTool creates a new read file tool.
func NewReadFileTool(b backend.Backend, emit model.Emitter) *ReadFileTool {
	return &ReadFileTool{backend: b, emit: emit}
}

// Metadata returns the tool metadata.
func (t *ReadFileTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "read_file",
		Description: "Read a file from the virtual filesystem. Output is numbered by line; long lines are split into sub-numbered chunks.",
		Parameters: []ToolParameter{
			{Name: "path", ParamType: "string", Description: "Path to the file to read", Required: true},
			{Name: "offset", ParamType: "integer", Description: "Zero-based line to start from (default: 0)", Required: false},
			{Name: "limit", ParamType: "integer", Description: "Maximum lines to return (default: all)", Required: false},
		},
	}
}

type readFileArgs struct {
	Path   string `json:"path"`
	Offset int    `json:"offset"`
	Limit  int    `json:"limit"`
}

// Validate validates the arguments.
func (t *ReadFileTool) Validate(args json.RawMessage) error {
	var a readFileArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	if a.Path == "" {
		return fmt.Errorf("path cannot be empty")
	}
	return nil
}

// Execute reads the file. Backend error strings pass through verbatim;
// the model is expected to react to them.
func (t *ReadFileTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	var a readFileArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return FailureResult(fmt.Errorf("invalid arguments: %w", err)), nil
	}
	if a.Path == "" {
		return FailureResultf("path cannot be empty"), nil
	}

	rendered := t.backend.Read(ctx, a.Path, a.Offset, a.Limit)
	t.emit.Emit(model.Event{Type: model.EventFileRead, Path: a.Path})
	return SuccessResult(rendered), nil
}

// WriteFileTool creates a file in the virtual filesystem.
type WriteFileTool struct {
	BaseTool
	backend backend.Backend
	emit    model.Emitter
}

// NewWriteFileTool creates a new write file tool.
func NewWriteFileTool(b backend.Backend, emit model.Emitter) *WriteFileTool {
	return &WriteFileTool{backend: b, emit: emit}
}

// Metadata returns the tool metadata.
func (t *WriteFileTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "write_file",
		Description: "Write a new file to the virtual filesystem. Fails if the file already exists; read it and use edit_file instead.",
		Parameters: []ToolParameter{
			{Name: "path", ParamType: "string", Description: "Path to the file to write", Required: true},
			{Name: "content", ParamType: "string", Description: "Content to write", Required: true},
		},
	}
}

type writeFileArgs struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// Validate validates the arguments.
func (t *WriteFileTool) Validate(args json.RawMessage) error {
	var a writeFileArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	if a.Path == "" {
		return fmt.Errorf("path cannot be empty")
	}
	return nil
}

// Execute writes the file.
func (t *WriteFileTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	var a writeFileArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return FailureResult(fmt.Errorf("invalid arguments: %w", err)), nil
	}
	if a.Path == "" {
		return FailureResultf("path cannot be empty"), nil
	}

	t.emit.Emit(model.Event{Type: model.EventFileWriteStart, Path: a.Path})
	if err := t.backend.Write(ctx, a.Path, a.Content); err != nil {
		return FailureResult(err), nil
	}
	t.emit.Emit(model.Event{Type: model.EventFileWritten, Path: a.Path})

	return SuccessResult(fmt.Sprintf("Successfully wrote %d bytes to %s", len(a.Content), a.Path)), nil
}

// EditFileTool performs literal search/replace on a file.
type EditFileTool struct {
	BaseTool
	backend backend.Backend
	emit    model.Emitter
}

// NewEditFileTool creates a new edit file tool.
func NewEditFileTool(b backend.Backend, emit model.Emitter) *EditFileTool {
	return &EditFileTool{backend: b, emit: emit}
}

// Metadata returns the tool metadata.
func (t *EditFileTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        "edit_file",
		Description: "Edit a file by replacing an exact string. The old string must be unique unless replace_all is set.",
		Parameters: []ToolParameter{
			{Name: "path", ParamType: "string", Description: "Path to the file to edit", Required: true},
			{Name: "old_string", ParamType: "string", Description: "Exact string to replace", Required: true},
			{Name: "new_string", ParamType: "string", Description: "Replacement string", Required: true},
			{Name: "replace_all", ParamType: "boolean", Description: "Replace all occurrences (default: false)", Required: false},
		},
	}
}

type editFileArgs struct {
	Path       string `json:"path"`
	OldString  string `json:"old_string"`
	NewString  string `json:"new_string"`
	ReplaceAll bool   `json:"replace_all"`
}

// Validate validates the arguments.
func (t *EditFileTool) Validate(args json.RawMessage) error {
	var a editFileArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	if a.Path == "" {
		return fmt.Errorf("path cannot be empty")
	}
	if a.OldString == "" {
		return fmt.Errorf("old_string cannot be empty")
	}
	return nil
}

// Execute performs the edit.
func (t *EditFileTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	var a editFileArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return FailureResult(fmt.Errorf("invalid arguments: %w", err)), nil
	}
	if a.Path == "" {
		return FailureResultf("path cannot be empty"), nil
	}
	if a.OldString == "" {
		return FailureResultf("old_string cannot be empty"), nil
	}

	occurrences, err := t.backend.Edit(ctx, a.Path, a.OldString, a.NewString, a.ReplaceAll)
	if err != nil {
		return FailureResult(err), nil
	}
	t.emit.Emit(model.Event{Type: model.EventFileEdited, Path: a.Path})

	return SuccessResult(fmt.Sprintf("Replaced %d occurrence(s) in %s", occurrences, a.Path)), nil
}
