package storage

import (
	"context"
	"testing"
)

func TestMemoryKVSetAndGet(t *testing.T) {
	store := NewMemoryKV()
	ctx := context.Background()

	if err := store.Set(ctx, "a/b", []byte("hello")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	value, ok, err := store.Get(ctx, "a/b")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !ok {
		t.Fatal("expected key to exist")
	}
	if string(value) != "hello" {
		t.Errorf("expected 'hello', got '%s'", value)
	}
}

func TestMemoryKVGetMissing(t *testing.T) {
	store := NewMemoryKV()

	_, ok, err := store.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if ok {
		t.Error("expected missing key to report absent")
	}
}

func TestMemoryKVDelete(t *testing.T) {
	store := NewMemoryKV()
	ctx := context.Background()

	if err := store.Set(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := store.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	_, ok, err := store.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if ok {
		t.Error("expected key to be gone after delete")
	}
}

func TestMemoryKVListWithPrefix(t *testing.T) {
	store := NewMemoryKV()
	ctx := context.Background()

	for _, key := range []string{"fs/a.txt", "fs/b.txt", "threads/t1"} {
		if err := store.Set(ctx, key, []byte("x")); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}

	keys, err := store.ListWithPrefix(ctx, "fs/")
	if err != nil {
		t.Fatalf("ListWithPrefix failed: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("expected 2 keys, got %d", len(keys))
	}
	if keys[0] != "fs/a.txt" || keys[1] != "fs/b.txt" {
		t.Errorf("expected sorted fs keys, got %v", keys)
	}
}

func TestMemoryKVIsolation(t *testing.T) {
	store := NewMemoryKV()
	ctx := context.Background()

	original := []byte("original")
	if err := store.Set(ctx, "k", original); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	// Mutate the slice we handed in
	original[0] = 'X'

	value, _, err := store.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(value) != "original" {
		t.Errorf("store should copy data, got '%s'", value)
	}
}
