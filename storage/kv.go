// Package storage provides the key-value persistence layer shared by the
// KV filesystem backend and the KV checkpointer.
//
// Information Hiding:
// - Storage backend implementation details hidden behind interface
// - Allows swapping between memory and SQLite without API changes
// - Each implementation encapsulates its own data structures
package storage

import "context"

// KVStore is the minimal key-value capability the harness builds on.
// Implementations must support prefix listing so callers can enumerate
// virtual files and saved threads.
type KVStore interface {
	// Get returns the value for a key. The boolean reports presence;
	// a missing key is not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value, overwriting any existing one.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes a key. Deleting a missing key is a no-op.
	Delete(ctx context.Context, key string) error

	// ListWithPrefix returns all keys starting with prefix, sorted.
	ListWithPrefix(ctx context.Context, prefix string) ([]string, error)
}
