// In-memory checkpointer.
//
// Information Hiding:
// - Map storage structure hidden from users
// - Thread-safe access via RWMutex hidden behind interface
// - Suitable for testing and ephemeral sessions
package checkpoint

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryCheckpointer keeps checkpoints in a process-local map. The
// optional namespace isolates multiple savers sharing one process.
type MemoryCheckpointer struct {
	mu        sync.RWMutex
	namespace string
	threads   map[string]*Checkpoint
}

// NewMemoryCheckpointer creates an empty in-memory checkpointer.
func NewMemoryCheckpointer() *MemoryCheckpointer {
	return &MemoryCheckpointer{threads: make(map[string]*Checkpoint)}
}

// WithNamespace prefixes all thread keys, isolating this saver from
// others sharing the same process.
func (c *MemoryCheckpointer) WithNamespace(namespace string) *MemoryCheckpointer {
	c.namespace = namespace
	return c
}

func (c *MemoryCheckpointer) key(threadID string) string {
	return c.namespace + threadID
}

// Save stores a deep copy, refreshing UpdatedAt and preserving the
// original CreatedAt.
func (c *MemoryCheckpointer) Save(ctx context.Context, cp *Checkpoint) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.threads[c.key(cp.ThreadID)] = stamp(cp, c.threads[c.key(cp.ThreadID)])
	return nil
}

// Load returns a copy of the saved checkpoint, or nil if absent.
func (c *MemoryCheckpointer) Load(ctx context.Context, threadID string) (*Checkpoint, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cp, ok := c.threads[c.key(threadID)]
	if !ok {
		return nil, nil
	}
	return cp.Clone(), nil
}

// List returns the saved thread IDs in this namespace, sorted.
func (c *MemoryCheckpointer) List(ctx context.Context) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]string, 0, len(c.threads))
	for key, cp := range c.threads {
		if strings.HasPrefix(key, c.namespace) {
			ids = append(ids, cp.ThreadID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Delete removes a thread.
func (c *MemoryCheckpointer) Delete(ctx context.Context, threadID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.threads, c.key(threadID))
	return nil
}

// Exists checks for a saved thread.
func (c *MemoryCheckpointer) Exists(ctx context.Context, threadID string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, ok := c.threads[c.key(threadID)]
	return ok, nil
}

// Verify MemoryCheckpointer implements Checkpointer
var _ Checkpointer = (*MemoryCheckpointer)(nil)
