// In-memory state backend.
//
// Information Hiding:
//   - AgentState ownership and locking hidden
//   - The agent core serializes access through its single-threaded loop;
//     the mutex covers concurrent readers outside the loop
package backend

import (
	"context"
	"sync"
	"time"

	"github.com/chrispangg/ai-sdk-deepagent/internal/textutil"
	"github.com/chrispangg/ai-sdk-deepagent/model"
)

// StateBackend keeps the virtual filesystem and todo list in process
// memory as part of the agent state. It is the default backend and the
// only one whose contents travel inside checkpoints.
type StateBackend struct {
	mu        sync.RWMutex
	state     *model.AgentState
	overwrite bool
}

// NewStateBackend creates an empty in-memory backend.
func NewStateBackend() *StateBackend {
	return &StateBackend{state: model.NewAgentState()}
}

// WithOverwrite allows write_file to replace existing files.
func (b *StateBackend) WithOverwrite(allow bool) *StateBackend {
	b.overwrite = allow
	return b
}

// Read renders a numbered slice of the file.
func (b *StateBackend) Read(ctx context.Context, path string, offset, limit int) string {
	data, err := b.ReadRaw(ctx, path)
	return renderRead(path, data, err, offset, limit)
}

// ReadRaw returns the stored FileData.
func (b *StateBackend) ReadRaw(ctx context.Context, path string) (*model.FileData, error) {
	if err := textutil.ValidatePath(path); err != nil {
		return nil, err
	}
	path = textutil.NormalizePath(path)

	b.mu.RLock()
	defer b.mu.RUnlock()

	data, ok := b.state.Files[path]
	if !ok {
		return nil, notFoundErr(path)
	}
	return data.Clone(), nil
}

// Write creates a file, rejecting overwrites unless enabled.
func (b *StateBackend) Write(ctx context.Context, path, content string) error {
	if err := textutil.ValidatePath(path); err != nil {
		return err
	}
	path = textutil.NormalizePath(path)

	b.mu.Lock()
	defer b.mu.Unlock()

	if existing, ok := b.state.Files[path]; ok {
		if !b.overwrite {
			return existsErr(path)
		}
		updated := model.NewFileData(content, time.Now())
		updated.CreatedAt = existing.CreatedAt
		b.state.Files[path] = updated
		return nil
	}

	b.state.Files[path] = model.NewFileData(content, time.Now())
	return nil
}

// Edit replaces a literal substring in the file.
func (b *StateBackend) Edit(ctx context.Context, path, oldStr, newStr string, replaceAll bool) (int, error) {
	if err := textutil.ValidatePath(path); err != nil {
		return 0, err
	}
	path = textutil.NormalizePath(path)

	b.mu.Lock()
	defer b.mu.Unlock()

	data, ok := b.state.Files[path]
	if !ok {
		return 0, notFoundErr(path)
	}

	updated, occurrences, err := applyEdit(data.Text(), oldStr, newStr, replaceAll)
	if err != nil {
		return 0, err
	}

	next := model.NewFileData(updated, time.Now())
	next.CreatedAt = data.CreatedAt
	b.state.Files[path] = next
	return occurrences, nil
}

// LsInfo lists entries directly under prefix.
func (b *StateBackend) LsInfo(ctx context.Context, prefix string) ([]model.FileInfo, error) {
	prefix = textutil.NormalizePrefix(prefix)

	b.mu.RLock()
	defer b.mu.RUnlock()

	return listEntries(b.state.Files, prefix), nil
}

// GlobInfo returns files matching pattern under prefix.
func (b *StateBackend) GlobInfo(ctx context.Context, pattern, prefix string) ([]model.FileInfo, error) {
	prefix = textutil.NormalizePrefix(prefix)

	b.mu.RLock()
	defer b.mu.RUnlock()

	return globEntries(b.state.Files, pattern, prefix), nil
}

// GrepRaw searches file content with a regular expression.
func (b *StateBackend) GrepRaw(ctx context.Context, pattern, prefix, include string) ([]model.GrepMatch, error) {
	re, err := compileGrep(pattern)
	if err != nil {
		return nil, err
	}
	prefix = textutil.NormalizePrefix(prefix)

	b.mu.RLock()
	defer b.mu.RUnlock()

	return grepEntries(b.state.Files, re, prefix, include), nil
}

// GetTodos returns a copy of the todo list.
func (b *StateBackend) GetTodos(ctx context.Context) ([]model.Todo, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return copyTodos(b.state.Todos), nil
}

// SetTodos replaces the todo list.
func (b *StateBackend) SetTodos(ctx context.Context, todos []model.Todo) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state.Todos = copyTodos(todos)
	return nil
}

// SnapshotState returns a deep copy of the backend state for
// checkpointing.
func (b *StateBackend) SnapshotState(ctx context.Context) (*model.AgentState, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state.Clone(), nil
}

// RestoreState replaces the backend state from a checkpoint.
func (b *StateBackend) RestoreState(ctx context.Context, state *model.AgentState) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if state == nil {
		b.state = model.NewAgentState()
		return nil
	}
	b.state = state.Clone()
	if b.state.Files == nil {
		b.state.Files = make(map[string]*model.FileData)
	}
	return nil
}

var (
	_ Backend     = (*StateBackend)(nil)
	_ Snapshotter = (*StateBackend)(nil)
)
