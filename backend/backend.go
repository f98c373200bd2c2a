// Package backend provides the virtual-filesystem layer the agent's
// tools operate on.
//
// Information Hiding:
//   - Physical storage (process memory, disk, key-value store) hidden
//     behind a uniform contract
//   - Line rendering and edit semantics shared across variants
//   - Path normalization internalized
package backend

import (
	"context"
	"fmt"
	"strings"

	"github.com/chrispangg/ai-sdk-deepagent/internal/textutil"
	"github.com/chrispangg/ai-sdk-deepagent/model"
)

// EmptyFileReminder is returned by Read for files that exist but have no
// content.
const EmptyFileReminder = "System reminder: File exists but has empty contents"

// Backend is the uniform contract every filesystem variant satisfies.
// Paths are opaque strings beginning with "/"; backends normalize a
// missing leading slash. Read returns a rendered string: either the
// numbered file content or an error string beginning "Error:".
type Backend interface {
	// Read renders lines offset..offset+limit-1 with line numbers.
	// limit <= 0 means to the end of the file.
	Read(ctx context.Context, path string, offset, limit int) string

	// ReadRaw returns the stored FileData for internal callers that
	// need timestamps or unformatted content.
	ReadRaw(ctx context.Context, path string) (*model.FileData, error)

	// Write creates a file. Writing to an existing path fails with a
	// read-then-edit error unless the backend was built with
	// overwrite enabled.
	Write(ctx context.Context, path, content string) error

	// Edit performs literal substring replacement and returns the
	// number of occurrences replaced.
	Edit(ctx context.Context, path, oldStr, newStr string, replaceAll bool) (int, error)

	// LsInfo lists entries directly under prefix.
	LsInfo(ctx context.Context, prefix string) ([]model.FileInfo, error)

	// GlobInfo returns files under prefix matching pattern. "**"
	// crosses separators; "*" stays within one segment.
	GlobInfo(ctx context.Context, pattern, prefix string) ([]model.FileInfo, error)

	// GrepRaw searches file content with a regular expression,
	// optionally filtered by an include glob on the file name.
	GrepRaw(ctx context.Context, pattern, prefix, include string) ([]model.GrepMatch, error)

	// GetTodos and SetTodos expose the shared todo list.
	GetTodos(ctx context.Context) ([]model.Todo, error)
	SetTodos(ctx context.Context, todos []model.Todo) error
}

// Snapshotter is implemented by backends whose contents live in the
// agent state and therefore travel inside checkpoints. The agent core
// type-asserts for it when saving and restoring threads.
type Snapshotter interface {
	SnapshotState(ctx context.Context) (*model.AgentState, error)
	RestoreState(ctx context.Context, state *model.AgentState) error
}

// renderRead turns a ReadRaw result into the stringly Read contract.
func renderRead(path string, data *model.FileData, err error, offset, limit int) string {
	if err != nil {
		return "Error: " + err.Error()
	}
	content := data.Text()
	if strings.TrimSpace(content) == "" {
		return EmptyFileReminder
	}

	lines := data.Content
	if offset < 0 {
		offset = 0
	}
	if offset >= len(lines) {
		return fmt.Sprintf("Error: Offset %d exceeds file length %d for '%s'", offset, len(lines), path)
	}
	end := len(lines)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return textutil.FormatLines(lines[offset:end], offset+1)
}

// notFoundErr is the canonical missing-file error, shared so every
// variant renders the same Read error string.
func notFoundErr(path string) error {
	return fmt.Errorf("File '%s' not found", path)
}

// existsErr is the canonical overwrite rejection.
func existsErr(path string) error {
	return fmt.Errorf("File '%s' already exists. Read the file first, then use edit_file to modify it", path)
}

// invalidRegexErr is the canonical bad-pattern error. Its message is the
// grep tool's verbatim output, so the prefix is part of the contract.
func invalidRegexErr(err error) error {
	return fmt.Errorf("Invalid regex pattern: %v", err)
}

// applyEdit performs the shared literal-replacement semantics: zero
// matches fail, multiple matches fail unless replaceAll.
func applyEdit(content, oldStr, newStr string, replaceAll bool) (string, int, error) {
	occurrences := strings.Count(content, oldStr)
	if occurrences == 0 {
		return "", 0, fmt.Errorf("String not found in file: '%s'", oldStr)
	}
	if !replaceAll && occurrences > 1 {
		return "", 0, fmt.Errorf("String '%s' appears %d times in file. Use replace_all=true to replace all occurrences, or provide a more specific string", oldStr, occurrences)
	}

	if replaceAll {
		return strings.ReplaceAll(content, oldStr, newStr), occurrences, nil
	}
	return strings.Replace(content, oldStr, newStr, 1), 1, nil
}

// copyTodos clones a todo slice so callers cannot mutate backend state.
func copyTodos(todos []model.Todo) []model.Todo {
	copied := make([]model.Todo, len(todos))
	copy(copied, todos)
	return copied
}
