// Real-disk backend.
//
// Information Hiding:
// - Translation between the virtual path space and the real root
// - Directory traversal guard internalized
// - Disk timestamps mapped onto the FileData contract
package backend

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/chrispangg/ai-sdk-deepagent/internal/textutil"
	"github.com/chrispangg/ai-sdk-deepagent/model"
)

// FilesystemBackend mirrors the virtual filesystem onto a real disk
// directory. Virtual path /foo/bar maps to <root>/foo/bar. The todo
// list stays in process memory; files are durable on disk.
type FilesystemBackend struct {
	root      string
	overwrite bool

	mu    sync.Mutex
	todos []model.Todo
}

// NewFilesystemBackend creates a backend rooted at dir, creating it if
// missing.
func NewFilesystemBackend(dir string) (*FilesystemBackend, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("invalid root directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("failed to create root directory: %w", err)
	}
	return &FilesystemBackend{root: abs}, nil
}

// WithOverwrite allows write_file to replace existing files.
func (b *FilesystemBackend) WithOverwrite(allow bool) *FilesystemBackend {
	b.overwrite = allow
	return b
}

// realPath maps a virtual path onto the root, rejecting escapes.
func (b *FilesystemBackend) realPath(path string) (string, error) {
	if err := textutil.ValidatePath(path); err != nil {
		return "", err
	}
	path = textutil.NormalizePath(path)

	real := filepath.Join(b.root, filepath.FromSlash(strings.TrimPrefix(path, "/")))
	if real != b.root && !strings.HasPrefix(real, b.root+string(filepath.Separator)) {
		return "", fmt.Errorf("path '%s' escapes the backend root", path)
	}
	return real, nil
}

// Read renders a numbered slice of the file.
func (b *FilesystemBackend) Read(ctx context.Context, path string, offset, limit int) string {
	data, err := b.ReadRaw(ctx, path)
	return renderRead(path, data, err, offset, limit)
}

// ReadRaw loads the file from disk. Created and modified timestamps both
// carry the disk mtime; creation time is not portably available.
func (b *FilesystemBackend) ReadRaw(ctx context.Context, path string) (*model.FileData, error) {
	real, err := b.realPath(path)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(real)
	if os.IsNotExist(err) {
		return nil, notFoundErr(textutil.NormalizePath(path))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("'%s' is a directory", textutil.NormalizePath(path))
	}

	raw, err := os.ReadFile(real)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	ts := info.ModTime().UTC().Format(time.RFC3339)
	return &model.FileData{
		Content:    strings.Split(string(raw), "\n"),
		CreatedAt:  ts,
		ModifiedAt: ts,
	}, nil
}

// Write creates a file, rejecting overwrites unless enabled.
func (b *FilesystemBackend) Write(ctx context.Context, path, content string) error {
	real, err := b.realPath(path)
	if err != nil {
		return err
	}

	if _, err := os.Stat(real); err == nil && !b.overwrite {
		return existsErr(textutil.NormalizePath(path))
	}

	if err := os.MkdirAll(filepath.Dir(real), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(real, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// Edit replaces a literal substring in the file.
func (b *FilesystemBackend) Edit(ctx context.Context, path, oldStr, newStr string, replaceAll bool) (int, error) {
	real, err := b.realPath(path)
	if err != nil {
		return 0, err
	}

	raw, err := os.ReadFile(real)
	if os.IsNotExist(err) {
		return 0, notFoundErr(textutil.NormalizePath(path))
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read file: %w", err)
	}

	updated, occurrences, err := applyEdit(string(raw), oldStr, newStr, replaceAll)
	if err != nil {
		return 0, err
	}

	if err := os.WriteFile(real, []byte(updated), 0644); err != nil {
		return 0, fmt.Errorf("failed to write file: %w", err)
	}
	return occurrences, nil
}

// LsInfo lists directory entries directly under prefix.
func (b *FilesystemBackend) LsInfo(ctx context.Context, prefix string) ([]model.FileInfo, error) {
	prefix = textutil.NormalizePrefix(prefix)
	real, err := b.realPath(prefix)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(real)
	if os.IsNotExist(err) {
		return []model.FileInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list directory: %w", err)
	}

	var infos []model.FileInfo
	for _, entry := range entries {
		if entry.IsDir() {
			infos = append(infos, model.FileInfo{Path: prefix + entry.Name() + "/", Kind: model.KindDir})
			continue
		}
		info := model.FileInfo{Path: prefix + entry.Name(), Kind: model.KindFile}
		if fi, err := entry.Info(); err == nil {
			info.Size = int(fi.Size())
			info.ModifiedAt = fi.ModTime().UTC().Format(time.RFC3339)
		}
		infos = append(infos, info)
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Path < infos[j].Path })
	return infos, nil
}

// GlobInfo returns files matching pattern under prefix.
func (b *FilesystemBackend) GlobInfo(ctx context.Context, pattern, prefix string) ([]model.FileInfo, error) {
	prefix = textutil.NormalizePrefix(prefix)
	real, err := b.realPath(prefix)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(real); os.IsNotExist(err) {
		return []model.FileInfo{}, nil
	}

	rels, err := doublestar.Glob(os.DirFS(real), pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid glob pattern: %w", err)
	}

	allowHidden := patternWantsHidden(pattern)
	var infos []model.FileInfo
	for _, rel := range rels {
		if !allowHidden && isHidden(rel) {
			continue
		}
		fi, err := os.Stat(filepath.Join(real, filepath.FromSlash(rel)))
		if err != nil || fi.IsDir() {
			continue
		}
		infos = append(infos, model.FileInfo{
			Path:       prefix + rel,
			Kind:       model.KindFile,
			Size:       int(fi.Size()),
			ModifiedAt: fi.ModTime().UTC().Format(time.RFC3339),
		})
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Path < infos[j].Path })
	return infos, nil
}

// GrepRaw searches file content under prefix with a regular expression.
func (b *FilesystemBackend) GrepRaw(ctx context.Context, pattern, prefix, include string) ([]model.GrepMatch, error) {
	re, err := compileGrep(pattern)
	if err != nil {
		return nil, err
	}
	prefix = textutil.NormalizePrefix(prefix)
	real, err := b.realPath(prefix)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(real); os.IsNotExist(err) {
		return []model.GrepMatch{}, nil
	}

	var matches []model.GrepMatch
	walkErr := filepath.WalkDir(real, func(path string, entry fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			if os.IsPermission(err) {
				return filepath.SkipDir
			}
			return nil
		}
		if entry.IsDir() {
			if strings.HasPrefix(entry.Name(), ".") && path != real {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(real, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if isHidden(rel) || !includeMatch(include, rel) {
			return nil
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		for i, line := range strings.Split(string(raw), "\n") {
			if re.MatchString(line) {
				matches = append(matches, model.GrepMatch{Path: prefix + rel, Line: i + 1, Text: line})
			}
		}
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}
	return matches, nil
}

// GetTodos returns the in-memory todo list.
func (b *FilesystemBackend) GetTodos(ctx context.Context) ([]model.Todo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return copyTodos(b.todos), nil
}

// SetTodos replaces the in-memory todo list.
func (b *FilesystemBackend) SetTodos(ctx context.Context, todos []model.Todo) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.todos = copyTodos(todos)
	return nil
}

var _ Backend = (*FilesystemBackend)(nil)
