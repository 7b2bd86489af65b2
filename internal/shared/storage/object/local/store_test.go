package local

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"medstudy-backend/internal/shared/storage/object"
)

func TestSaveOpenDelete(t *testing.T) {
	ctx := context.Background()
	store := New(t.TempDir())

	key, size, mime, err := store.Save(ctx, "guest:abc", "notes.csv", strings.NewReader("a,b\n1,2\n"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if size != 8 {
		t.Fatalf("expected 8 bytes, got %d", size)
	}
	if !strings.HasPrefix(mime, "text/") {
		t.Fatalf("expected text mime, got %s", mime)
	}
	if !strings.HasSuffix(key, "_notes.csv") {
		t.Fatalf("unexpected key %s", key)
	}

	rc, err := store.Open(ctx, key)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "a,b\n1,2\n" {
		t.Fatalf("unexpected content %q", data)
	}

	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Open(ctx, key); !errors.Is(err, object.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("second delete should be a no-op, got %v", err)
	}
}

func TestSaveKeysDoNotCollide(t *testing.T) {
	ctx := context.Background()
	store := New(t.TempDir())

	k1, _, _, err := store.Save(ctx, "owner", "same.pdf", strings.NewReader("one"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	k2, _, _, err := store.Save(ctx, "owner", "same.pdf", strings.NewReader("two"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if k1 == k2 {
		t.Fatalf("expected distinct keys, got %s twice", k1)
	}
}

func TestRejectsTraversal(t *testing.T) {
	store := New(t.TempDir())
	if _, err := store.Open(context.Background(), "../etc/passwd"); err == nil {
		t.Fatalf("expected traversal to be rejected")
	}
	if _, _, _, err := store.Save(context.Background(), "owner", "../x.pdf", strings.NewReader("x")); err == nil {
		t.Fatalf("expected invalid file name")
	}
}
