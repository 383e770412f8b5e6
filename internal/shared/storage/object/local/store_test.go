package local

import (
	"bytes"
	"context"
	"io"
	"testing"
)

func TestPutAndOpen(t *testing.T) {
	store := New(t.TempDir())
	ctx := context.Background()

	n, err := store.Put(ctx, "sources/abc/gen-1.png", "image/png", bytes.NewReader([]byte("png-bytes")))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if n != 9 {
		t.Fatalf("expected 9 bytes, got %d", n)
	}

	rc, err := store.Open(ctx, "sources/abc/gen-1.png")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "png-bytes" {
		t.Fatalf("unexpected content %q", data)
	}
}

func TestRejectsTraversal(t *testing.T) {
	store := New(t.TempDir())
	if _, err := store.Put(context.Background(), "../escape", "text/plain", bytes.NewReader(nil)); err == nil {
		t.Fatalf("expected traversal error")
	}
}
