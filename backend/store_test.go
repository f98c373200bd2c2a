package backend

import (
	"context"
	"strings"
	"testing"

	"github.com/chrispangg/ai-sdk-deepagent/model"
	"github.com/chrispangg/ai-sdk-deepagent/storage"
)

func newStoreBackend() *StoreBackend {
	return NewStoreBackend(storage.NewMemoryKV(), "fs:")
}

func TestStoreBackendWriteThenRead(t *testing.T) {
	b := newStoreBackend()
	ctx := context.Background()

	if err := b.Write(ctx, "/notes.txt", "one\ntwo"); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	got := b.Read(ctx, "/notes.txt", 0, 0)
	if got != "     1\tone\n     2\ttwo" {
		t.Errorf("unexpected read: %q", got)
	}
}

func TestStoreBackendNamespaceIsolation(t *testing.T) {
	shared := storage.NewMemoryKV()
	a := NewStoreBackend(shared, "a:")
	b := NewStoreBackend(shared, "b:")
	ctx := context.Background()

	if err := a.Write(ctx, "/f.txt", "from a"); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	if _, err := b.ReadRaw(ctx, "/f.txt"); err == nil {
		t.Error("namespaces should isolate files")
	}
}

func TestStoreBackendRejectsOverwrite(t *testing.T) {
	b := newStoreBackend()
	ctx := context.Background()

	if err := b.Write(ctx, "/a.txt", "one"); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	err := b.Write(ctx, "/a.txt", "two")
	if err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Errorf("expected read-then-edit error, got %v", err)
	}
}

func TestStoreBackendEditPreservesCreatedAt(t *testing.T) {
	b := newStoreBackend()
	ctx := context.Background()

	if err := b.Write(ctx, "/e.txt", "before"); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	first, err := b.ReadRaw(ctx, "/e.txt")
	if err != nil {
		t.Fatalf("ReadRaw failed: %v", err)
	}

	if _, err := b.Edit(ctx, "/e.txt", "before", "after", false); err != nil {
		t.Fatalf("Edit failed: %v", err)
	}

	data, err := b.ReadRaw(ctx, "/e.txt")
	if err != nil {
		t.Fatalf("ReadRaw failed: %v", err)
	}
	if data.Text() != "after" {
		t.Errorf("unexpected content: %q", data.Text())
	}
	if data.CreatedAt != first.CreatedAt {
		t.Error("edit should preserve created_at")
	}
}

func TestStoreBackendLsGlobGrep(t *testing.T) {
	b := newStoreBackend()
	ctx := context.Background()

	for path, content := range map[string]string{
		"/src/a.go": "package a",
		"/src/b.go": "package b",
		"/doc.md":   "# doc",
	} {
		if err := b.Write(ctx, path, content); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}

	infos, err := b.LsInfo(ctx, "/")
	if err != nil {
		t.Fatalf("LsInfo failed: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("expected file + dir at root, got %v", infos)
	}

	globbed, err := b.GlobInfo(ctx, "src/*.go", "/")
	if err != nil {
		t.Fatalf("GlobInfo failed: %v", err)
	}
	if len(globbed) != 2 {
		t.Errorf("expected 2 glob matches, got %v", globbed)
	}

	matches, err := b.GrepRaw(ctx, "^package", "/", "*.go")
	if err != nil {
		t.Fatalf("GrepRaw failed: %v", err)
	}
	if len(matches) != 2 {
		t.Errorf("expected 2 grep matches, got %v", matches)
	}
}

func TestStoreBackendTodosPersistInStore(t *testing.T) {
	shared := storage.NewMemoryKV()
	b := NewStoreBackend(shared, "fs:")
	ctx := context.Background()

	todos := []model.Todo{{ID: "1", Content: "draft tests", Status: model.TodoInProgress}}
	if err := b.SetTodos(ctx, todos); err != nil {
		t.Fatalf("SetTodos failed: %v", err)
	}

	// A fresh backend over the same store sees them
	again := NewStoreBackend(shared, "fs:")
	got, err := again.GetTodos(ctx)
	if err != nil {
		t.Fatalf("GetTodos failed: %v", err)
	}
	if len(got) != 1 || got[0].Content != "draft tests" {
		t.Errorf("unexpected todos: %v", got)
	}
}

func TestStoreBackendTodoKeyNotListedAsFile(t *testing.T) {
	b := newStoreBackend()
	ctx := context.Background()

	if err := b.SetTodos(ctx, []model.Todo{{ID: "1", Content: "x", Status: model.TodoPending}}); err != nil {
		t.Fatalf("SetTodos failed: %v", err)
	}
	infos, err := b.LsInfo(ctx, "/")
	if err != nil {
		t.Fatalf("LsInfo failed: %v", err)
	}
	if len(infos) != 0 {
		t.Errorf("todo bookkeeping should not appear in listings: %v", infos)
	}
}
