package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// cacheDir holds one SHA-1 file per published source, mirroring the
// source tree.
const cacheDir = ".cache"

type FSStorage struct {
	Root string
}

func NewFSStorage(root string) *FSStorage {
	return &FSStorage{Root: root}
}

// WritePage writes a published page at destPath, a slash-separated path
// relative to Root.
func (s *FSStorage) WritePage(ctx context.Context, destPath string, content []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.writeFile(destPath, content)
}

// CopyResource copies a non-document source file (an image, a download)
// to destPath.
func (s *FSStorage) CopyResource(ctx context.Context, destPath string, srcPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("open resource: %w", err)
	}
	defer func() { _ = src.Close() }()

	fullPath, err := s.resolve(destPath)
	if err != nil {
		return err
	}
	if err := prepare(fullPath); err != nil {
		return err
	}
	dst, err := os.OpenFile(fullPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create resource: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return fmt.Errorf("copy resource: %w", err)
	}
	return dst.Close()
}

// ReadPage returns the content of a published page.
func (s *FSStorage) ReadPage(destPath string) ([]byte, error) {
	fullPath, err := s.resolve(destPath)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(fullPath)
}

// CheckCache reports whether the source at srcPath was last published
// with the given digest.
func (s *FSStorage) CheckCache(srcPath string, sha1 string) bool {
	cachePath, err := s.resolve(cacheDir + "/" + srcPath)
	if err != nil {
		return false
	}
	data, err := os.ReadFile(cachePath)
	return err == nil && string(data) == sha1
}

func (s *FSStorage) WriteCache(ctx context.Context, srcPath string, sha1 string) error {
	if srcPath == "" {
		return fmt.Errorf("cache source path required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.writeFile(cacheDir+"/"+srcPath, []byte(sha1))
}

// resolve maps a slash-separated relative path below Root, rejecting
// paths that would escape it.
func (s *FSStorage) resolve(destPath string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(strings.TrimPrefix(destPath, "/")))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) || filepath.IsAbs(clean) {
		return "", fmt.Errorf("path %q escapes storage root", destPath)
	}
	return filepath.Join(s.Root, clean), nil
}

func (s *FSStorage) writeFile(destPath string, content []byte) error {
	fullPath, err := s.resolve(destPath)
	if err != nil {
		return err
	}
	return s.writeFileAbsolute(fullPath, content)
}

func (s *FSStorage) writeFileAbsolute(fullPath string, content []byte) error {
	if err := prepare(fullPath); err != nil {
		return err
	}
	if err := os.WriteFile(fullPath, content, 0o644); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

// prepare creates the parent directory and removes any existing file or
// symlink so writes never follow a stale link.
func prepare(fullPath string) error {
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing: %w", err)
	}
	return nil
}
