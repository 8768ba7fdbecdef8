package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteFileAbsolute_OverwritesDanglingSymlink(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "nonexistent")
	dest := filepath.Join(dir, "output.html")

	// Create a dangling symlink at the destination.
	if err := os.Symlink(target, dest); err != nil {
		t.Fatal(err)
	}

	s := &FSStorage{}
	if err := s.writeFileAbsolute(dest, []byte("hello")); err != nil {
		t.Fatalf("writeFileAbsolute failed: %v", err)
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello" {
		t.Fatalf("got %q, want %q", got, "hello")
	}

	// Ensure it's a regular file, not a symlink.
	info, err := os.Lstat(dest)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		t.Fatal("expected regular file, got symlink")
	}
}

func TestWriteFileAbsolute_OverwritesCircularSymlink(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.html")
	b := filepath.Join(dir, "b.html")

	// Create circular symlinks: a -> b -> a
	if err := os.Symlink(b, a); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(a, b); err != nil {
		t.Fatal(err)
	}

	s := &FSStorage{}
	if err := s.writeFileAbsolute(a, []byte("content")); err != nil {
		t.Fatalf("writeFileAbsolute failed: %v", err)
	}

	got, err := os.ReadFile(a)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "content" {
		t.Fatalf("got %q, want %q", got, "content")
	}
}

func TestWritePageAndCache(t *testing.T) {
	s := NewFSStorage(t.TempDir())
	ctx := context.Background()

	if err := s.WritePage(ctx, "/en-us/guide/intro.html", []byte("<p>x</p>")); err != nil {
		t.Fatalf("WritePage: %v", err)
	}
	got, err := s.ReadPage("en-us/guide/intro.html")
	if err != nil || string(got) != "<p>x</p>" {
		t.Fatalf("ReadPage = %q, %v", got, err)
	}

	if s.CheckCache("guide/intro.md", "abc") {
		t.Fatal("cache hit before write")
	}
	if err := s.WriteCache(ctx, "guide/intro.md", "abc"); err != nil {
		t.Fatal(err)
	}
	if !s.CheckCache("guide/intro.md", "abc") {
		t.Fatal("expected cache hit")
	}
	if s.CheckCache("guide/intro.md", "def") {
		t.Fatal("changed digest should miss")
	}
}

func TestWritePageRejectsEscapingPaths(t *testing.T) {
	s := NewFSStorage(t.TempDir())
	for _, p := range []string{"../x.html", "a/../../x.html"} {
		if err := s.WritePage(context.Background(), p, []byte("x")); err == nil {
			t.Errorf("expected error for %q", p)
		}
	}
}

func TestCopyResource(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "logo.png")
	if err := os.WriteFile(src, []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}
	s := NewFSStorage(filepath.Join(dir, "out"))
	if err := s.CopyResource(context.Background(), "media/logo.png", src); err != nil {
		t.Fatalf("CopyResource: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(dir, "out", "media", "logo.png"))
	if err != nil || string(got) != "png" {
		t.Fatalf("copied content = %q, %v", got, err)
	}
}
