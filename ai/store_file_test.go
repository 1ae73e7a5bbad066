package ai

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestFileStoreRoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	ctx := context.Background()

	if err := store.Append(ctx, "s1", Turn{RoleUser, "pergunta"}, Turn{RoleAssistant, "resposta"}); err != nil {
		t.Fatalf("append: %v", err)
	}

	turns, err := store.History(ctx, "s1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(turns))
	}
	if turns[0].Role != RoleUser || turns[0].Content != "pergunta" {
		t.Fatalf("unexpected first turn: %+v", turns[0])
	}
	if turns[1].Role != RoleAssistant || turns[1].Content != "resposta" {
		t.Fatalf("unexpected second turn: %+v", turns[1])
	}
}

func TestFileStoreUnknownSessionIsEmpty(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("create store: %v", err)
	}

	turns, err := store.History(context.Background(), "missing")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(turns) != 0 {
		t.Fatalf("expected empty history, got %d turns", len(turns))
	}
}

func TestFileStoreSkipsMalformedLines(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	ctx := context.Background()

	_ = store.Append(ctx, "s", Turn{RoleUser, "q"}, Turn{RoleAssistant, "a"})

	// Corrupt the file with a non-JSON line between appends.
	f, err := os.OpenFile(filepath.Join(dir, "s.jsonl"), os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatalf("open history file: %v", err)
	}
	if _, err := f.WriteString("not json\n"); err != nil {
		t.Fatalf("write garbage: %v", err)
	}
	f.Close()
	_ = store.Append(ctx, "s", Turn{RoleUser, "q2"}, Turn{RoleAssistant, "a2"})

	turns, err := store.History(ctx, "s")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(turns) != 4 {
		t.Fatalf("expected garbage line skipped and 4 turns kept, got %d", len(turns))
	}
}

func TestFileStoreClear(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	ctx := context.Background()
	_ = store.Append(ctx, "s", Turn{RoleUser, "q"}, Turn{RoleAssistant, "a"})

	if err := store.Clear(ctx, "s"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	// A second clear of a missing session is not an error.
	if err := store.Clear(ctx, "s"); err != nil {
		t.Fatalf("clear twice: %v", err)
	}

	turns, err := store.History(ctx, "s")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(turns) != 0 {
		t.Fatalf("expected cleared history, got %d turns", len(turns))
	}
}

func TestFileStoreSanitizesSessionID(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}

	_ = store.Append(context.Background(), "../../etc/passwd", Turn{RoleUser, "q"})

	if _, err := os.Stat(filepath.Join(dir, "passwd.jsonl")); err != nil {
		t.Fatalf("expected traversal-safe file inside base dir: %v", err)
	}
}
