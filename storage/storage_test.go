package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestStore(t *testing.T) (*DiskStore, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := NewDiskStore(dir, "/uploads/")
	if err != nil {
		t.Fatalf("new disk store: %v", err)
	}
	return store, dir
}

func TestSave_WritesFileAndReturnsURL(t *testing.T) {
	store, dir := newTestStore(t)

	url, err := store.Save(context.Background(), "proof.PNG", "image/png", 4, strings.NewReader("data"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if !strings.HasPrefix(url, "/uploads/") || !strings.HasSuffix(url, ".png") {
		t.Fatalf("unexpected url: %s", url)
	}

	content, err := os.ReadFile(filepath.Join(dir, strings.TrimPrefix(url, "/uploads/")))
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(content) != "data" {
		t.Fatalf("unexpected content: %q", content)
	}
}

func TestSave_RandomizesNames(t *testing.T) {
	store, _ := newTestStore(t)

	first, err := store.Save(context.Background(), "proof.png", "image/png", 1, strings.NewReader("a"))
	if err != nil {
		t.Fatalf("save first: %v", err)
	}
	second, err := store.Save(context.Background(), "proof.png", "image/png", 1, strings.NewReader("b"))
	if err != nil {
		t.Fatalf("save second: %v", err)
	}
	if first == second {
		t.Fatalf("same name twice must not collide: %s", first)
	}
}

func TestSave_RejectsUnsupportedTypes(t *testing.T) {
	store, dir := newTestStore(t)

	for _, ct := range []string{"application/zip", "text/html", ""} {
		if _, err := store.Save(context.Background(), "f.bin", ct, 1, strings.NewReader("x")); !errors.Is(err, ErrUnsupportedType) {
			t.Fatalf("content type %q: want ErrUnsupportedType, got %v", ct, err)
		}
	}
	for _, ct := range []string{"image/png", "image/jpeg", "application/pdf"} {
		if _, err := store.Save(context.Background(), "f", ct, 1, strings.NewReader("x")); err != nil {
			t.Fatalf("content type %q: %v", ct, err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected only accepted files on disk, got %d", len(entries))
	}
}

func TestSave_EnforcesSizeLimit(t *testing.T) {
	store, dir := newTestStore(t)

	if _, err := store.Save(context.Background(), "f.png", "image/png", MaxUploadBytes+1, strings.NewReader("x")); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("declared oversize: want ErrTooLarge, got %v", err)
	}

	// A lying size header does not help; the copy itself is capped.
	big := strings.NewReader(strings.Repeat("a", MaxUploadBytes+1))
	if _, err := store.Save(context.Background(), "f.png", "image/png", 1, big); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("actual oversize: want ErrTooLarge, got %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatal("oversize uploads must not leave files behind")
	}
}

func TestSanitizeExt(t *testing.T) {
	cases := map[string]string{
		"proof.png":        ".png",
		"PROOF.PDF":        ".pdf",
		"no-extension":     "",
		"weird.p!g":        "",
		"trailingdot.":     "",
		"too.longextension": "",
	}
	for name, want := range cases {
		if got := sanitizeExt(name); got != want {
			t.Errorf("sanitizeExt(%q) = %q, want %q", name, got, want)
		}
	}
}
