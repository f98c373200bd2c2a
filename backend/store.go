// Key-value persistent backend.
//
// Information Hiding:
// - Key layout (namespace + virtual path) hidden from callers
// - FileData serialization internalized
// - Enumeration delegated to the store's prefix listing
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chrispangg/ai-sdk-deepagent/internal/textutil"
	"github.com/chrispangg/ai-sdk-deepagent/model"
	"github.com/chrispangg/ai-sdk-deepagent/storage"
)

// todosKey is the per-namespace key holding the todo list. It cannot
// collide with a file key because virtual paths always begin with "/".
const todosKey = "!todos"

// StoreBackend persists one entry per virtual file in a KVStore under an
// optional namespace. Enumeration relies on the store's prefix listing.
type StoreBackend struct {
	store     storage.KVStore
	namespace string
	overwrite bool
	mu        sync.Mutex
}

// NewStoreBackend creates a backend over the given store. The namespace
// isolates multiple backends sharing one store; it may be empty.
func NewStoreBackend(store storage.KVStore, namespace string) *StoreBackend {
	return &StoreBackend{store: store, namespace: namespace}
}

// WithOverwrite allows write_file to replace existing files.
func (b *StoreBackend) WithOverwrite(allow bool) *StoreBackend {
	b.overwrite = allow
	return b
}

func (b *StoreBackend) fileKey(path string) string {
	return b.namespace + path
}

func (b *StoreBackend) loadFile(ctx context.Context, path string) (*model.FileData, error) {
	raw, ok, err := b.store.Get(ctx, b.fileKey(path))
	if err != nil {
		return nil, fmt.Errorf("storage read failed: %w", err)
	}
	if !ok {
		return nil, notFoundErr(path)
	}
	var data model.FileData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("corrupt file entry for '%s': %w", path, err)
	}
	return &data, nil
}

func (b *StoreBackend) saveFile(ctx context.Context, path string, data *model.FileData) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode file entry: %w", err)
	}
	if err := b.store.Set(ctx, b.fileKey(path), raw); err != nil {
		return fmt.Errorf("storage write failed: %w", err)
	}
	return nil
}

// loadAll reads every file under prefix into a map for listing, glob,
// and grep.
func (b *StoreBackend) loadAll(ctx context.Context, prefix string) (map[string]*model.FileData, error) {
	keys, err := b.store.ListWithPrefix(ctx, b.namespace+prefix)
	if err != nil {
		return nil, fmt.Errorf("storage list failed: %w", err)
	}

	files := make(map[string]*model.FileData, len(keys))
	for _, key := range keys {
		path := strings.TrimPrefix(key, b.namespace)
		data, err := b.loadFile(ctx, path)
		if err != nil {
			return nil, err
		}
		files[path] = data
	}
	return files, nil
}

// Read renders a numbered slice of the file.
func (b *StoreBackend) Read(ctx context.Context, path string, offset, limit int) string {
	data, err := b.ReadRaw(ctx, path)
	return renderRead(path, data, err, offset, limit)
}

// ReadRaw returns the stored FileData.
func (b *StoreBackend) ReadRaw(ctx context.Context, path string) (*model.FileData, error) {
	if err := textutil.ValidatePath(path); err != nil {
		return nil, err
	}
	return b.loadFile(ctx, textutil.NormalizePath(path))
}

// Write creates a file, rejecting overwrites unless enabled.
func (b *StoreBackend) Write(ctx context.Context, path, content string) error {
	if err := textutil.ValidatePath(path); err != nil {
		return err
	}
	path = textutil.NormalizePath(path)

	b.mu.Lock()
	defer b.mu.Unlock()

	existing, err := b.loadFile(ctx, path)
	if err == nil {
		if !b.overwrite {
			return existsErr(path)
		}
		updated := model.NewFileData(content, time.Now())
		updated.CreatedAt = existing.CreatedAt
		return b.saveFile(ctx, path, updated)
	}

	return b.saveFile(ctx, path, model.NewFileData(content, time.Now()))
}

// Edit replaces a literal substring in the file.
func (b *StoreBackend) Edit(ctx context.Context, path, oldStr, newStr string, replaceAll bool) (int, error) {
	if err := textutil.ValidatePath(path); err != nil {
		return 0, err
	}
	path = textutil.NormalizePath(path)

	b.mu.Lock()
	defer b.mu.Unlock()

	data, err := b.loadFile(ctx, path)
	if err != nil {
		return 0, err
	}

	updated, occurrences, err := applyEdit(data.Text(), oldStr, newStr, replaceAll)
	if err != nil {
		return 0, err
	}

	next := model.NewFileData(updated, time.Now())
	next.CreatedAt = data.CreatedAt
	if err := b.saveFile(ctx, path, next); err != nil {
		return 0, err
	}
	return occurrences, nil
}

// LsInfo lists entries directly under prefix.
func (b *StoreBackend) LsInfo(ctx context.Context, prefix string) ([]model.FileInfo, error) {
	prefix = textutil.NormalizePrefix(prefix)
	files, err := b.loadAll(ctx, prefix)
	if err != nil {
		return nil, err
	}
	return listEntries(files, prefix), nil
}

// GlobInfo returns files matching pattern under prefix.
func (b *StoreBackend) GlobInfo(ctx context.Context, pattern, prefix string) ([]model.FileInfo, error) {
	prefix = textutil.NormalizePrefix(prefix)
	files, err := b.loadAll(ctx, prefix)
	if err != nil {
		return nil, err
	}
	return globEntries(files, pattern, prefix), nil
}

// GrepRaw searches file content with a regular expression.
func (b *StoreBackend) GrepRaw(ctx context.Context, pattern, prefix, include string) ([]model.GrepMatch, error) {
	re, err := compileGrep(pattern)
	if err != nil {
		return nil, err
	}
	prefix = textutil.NormalizePrefix(prefix)
	files, err := b.loadAll(ctx, prefix)
	if err != nil {
		return nil, err
	}
	return grepEntries(files, re, prefix, include), nil
}

// GetTodos returns the persisted todo list.
func (b *StoreBackend) GetTodos(ctx context.Context) ([]model.Todo, error) {
	raw, ok, err := b.store.Get(ctx, b.namespace+todosKey)
	if err != nil {
		return nil, fmt.Errorf("storage read failed: %w", err)
	}
	if !ok {
		return []model.Todo{}, nil
	}
	var todos []model.Todo
	if err := json.Unmarshal(raw, &todos); err != nil {
		return nil, fmt.Errorf("corrupt todo entry: %w", err)
	}
	return todos, nil
}

// SetTodos replaces the persisted todo list.
func (b *StoreBackend) SetTodos(ctx context.Context, todos []model.Todo) error {
	raw, err := json.Marshal(todos)
	if err != nil {
		return fmt.Errorf("failed to encode todos: %w", err)
	}
	if err := b.store.Set(ctx, b.namespace+todosKey, raw); err != nil {
		return fmt.Errorf("storage write failed: %w", err)
	}
	return nil
}

var _ Backend = (*StoreBackend)(nil)
