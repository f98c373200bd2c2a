// File checkpointer: one JSON document per thread in a directory.
//
// Information Hiding:
//   - Filename sanitization hidden; the display thread ID lives inside
//     the payload, only the storage key is sanitized
//   - Corrupt files load as missing, never as errors
package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/chrispangg/ai-sdk-deepagent/internal/textutil"
)

// FileCheckpointer stores each thread as <dir>/<sanitized-id>.json.
// A sanitized-name collision between two display IDs is treated as an
// overwrite at save time.
type FileCheckpointer struct {
	dir string
}

// NewFileCheckpointer creates the directory if needed.
func NewFileCheckpointer(dir string) (*FileCheckpointer, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint directory: %w", err)
	}
	return &FileCheckpointer{dir: dir}, nil
}

func (c *FileCheckpointer) path(threadID string) string {
	return filepath.Join(c.dir, textutil.SanitizeThreadID(threadID)+".json")
}

// Save writes the checkpoint, overwriting any existing file.
func (c *FileCheckpointer) Save(ctx context.Context, cp *Checkpoint) error {
	existing, err := c.Load(ctx, cp.ThreadID)
	if err != nil {
		return err
	}

	saved := stamp(cp, existing)
	raw, err := json.MarshalIndent(saved, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}
	if err := os.WriteFile(c.path(cp.ThreadID), raw, 0644); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	return nil
}

// Load reads a checkpoint. Missing and corrupt files both return nil.
func (c *FileCheckpointer) Load(ctx context.Context, threadID string) (*Checkpoint, error) {
	raw, err := os.ReadFile(c.path(threadID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(raw, &cp); err != nil {
		// Corrupt file: treat as missing; the next save overwrites it.
		return nil, nil
	}
	return &cp, nil
}

// List returns the display thread IDs of all saved threads, sorted.
func (c *FileCheckpointer) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoint directory: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(c.dir, entry.Name()))
		if err != nil {
			continue
		}
		var cp Checkpoint
		if err := json.Unmarshal(raw, &cp); err != nil || cp.ThreadID == "" {
			continue
		}
		ids = append(ids, cp.ThreadID)
	}
	sort.Strings(ids)
	return ids, nil
}

// Delete removes a thread's file. Missing files are a no-op.
func (c *FileCheckpointer) Delete(ctx context.Context, threadID string) error {
	err := os.Remove(c.path(threadID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}

// Exists checks for a saved thread file.
func (c *FileCheckpointer) Exists(ctx context.Context, threadID string) (bool, error) {
	_, err := os.Stat(c.path(threadID))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat checkpoint: %w", err)
	}
	return true, nil
}

// Verify FileCheckpointer implements Checkpointer
var _ Checkpointer = (*FileCheckpointer)(nil)
