package localfs

import (
	"bytes"
	"context"
	"io"
	"os"
	"testing"

	"github.com/kirillkom/purchase-insights/internal/core/domain"
)

func TestSaveOpenDeleteRoundTrip(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()
	content := []byte("%PDF-1.4\n\x00\xff binary")

	if err := store.Save(ctx, "abc_invoice.pdf", bytes.NewReader(content)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	rc, err := store.Open(ctx, "abc_invoice.pdf")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	got, _ := io.ReadAll(rc)
	_ = rc.Close()
	if !bytes.Equal(got, content) {
		t.Fatalf("round trip mismatch: %q", got)
	}

	if err := store.Delete(ctx, "abc_invoice.pdf"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := store.Delete(ctx, "abc_invoice.pdf"); err != nil {
		t.Fatalf("second Delete() should be a no-op, got %v", err)
	}
	if _, err := store.Open(ctx, "abc_invoice.pdf"); !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store, _ := New(dir)
	_ = store.Save(context.Background(), "k", bytes.NewReader([]byte("x")))

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "k" {
		t.Fatalf("unexpected directory content: %v", entries)
	}
}

func TestRejectsTraversalKeys(t *testing.T) {
	store, _ := New(t.TempDir())
	for _, key := range []string{"", "../escape", "a/b", ".hidden"} {
		if err := store.Save(context.Background(), key, bytes.NewReader(nil)); !domain.IsKind(err, domain.ErrInvalidInput) {
			t.Fatalf("key %q: expected ErrInvalidInput, got %v", key, err)
		}
	}
}
