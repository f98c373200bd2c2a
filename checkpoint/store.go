// Key-value checkpointer layered on the storage.KVStore abstraction.
//
// Information Hiding:
// - Key layout (namespace + thread ID) hidden
// - Serialization format encapsulated
package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/chrispangg/ai-sdk-deepagent/storage"
)

// StoreCheckpointer persists checkpoints in any KVStore with prefix
// listing, namespace-isolated.
type StoreCheckpointer struct {
	store     storage.KVStore
	namespace string
}

// NewStoreCheckpointer creates a checkpointer over the given store. The
// namespace isolates multiple checkpointers sharing one store.
func NewStoreCheckpointer(store storage.KVStore, namespace string) *StoreCheckpointer {
	if namespace == "" {
		namespace = "threads:"
	}
	return &StoreCheckpointer{store: store, namespace: namespace}
}

func (c *StoreCheckpointer) key(threadID string) string {
	return c.namespace + threadID
}

// Save stores the checkpoint, refreshing UpdatedAt and preserving the
// first save's CreatedAt.
func (c *StoreCheckpointer) Save(ctx context.Context, cp *Checkpoint) error {
	existing, err := c.Load(ctx, cp.ThreadID)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(stamp(cp, existing))
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}
	if err := c.store.Set(ctx, c.key(cp.ThreadID), raw); err != nil {
		return fmt.Errorf("failed to store checkpoint: %w", err)
	}
	return nil
}

// Load reads a checkpoint. Missing and corrupt entries both return nil.
func (c *StoreCheckpointer) Load(ctx context.Context, threadID string) (*Checkpoint, error) {
	raw, ok, err := c.store.Get(ctx, c.key(threadID))
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	if !ok {
		return nil, nil
	}

	var cp Checkpoint
	if err := json.Unmarshal(raw, &cp); err != nil {
		return nil, nil
	}
	return &cp, nil
}

// List returns the saved thread IDs in this namespace, sorted.
func (c *StoreCheckpointer) List(ctx context.Context) ([]string, error) {
	keys, err := c.store.ListWithPrefix(ctx, c.namespace)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}

	ids := make([]string, 0, len(keys))
	for _, key := range keys {
		ids = append(ids, strings.TrimPrefix(key, c.namespace))
	}
	return ids, nil
}

// Delete removes a thread.
func (c *StoreCheckpointer) Delete(ctx context.Context, threadID string) error {
	if err := c.store.Delete(ctx, c.key(threadID)); err != nil {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}

// Exists checks for a saved thread.
func (c *StoreCheckpointer) Exists(ctx context.Context, threadID string) (bool, error) {
	_, ok, err := c.store.Get(ctx, c.key(threadID))
	if err != nil {
		return false, fmt.Errorf("failed to check checkpoint: %w", err)
	}
	return ok, nil
}

// Verify StoreCheckpointer implements Checkpointer
var _ Checkpointer = (*StoreCheckpointer)(nil)
