// Package fetcher downloads remote publish inputs, such as xref maps
// served by other documentation sites, into a local work directory.
package fetcher

import (
	"compress/gzip"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const defaultAttempts = 3

// Fetcher resolves remote sources to files in WorkDir. Client defaults to
// http.DefaultClient and Attempts to defaultAttempts.
type Fetcher struct {
	WorkDir  string
	Client   *http.Client
	Logger   *slog.Logger
	Attempts int
}

func New(workDir string) *Fetcher {
	return &Fetcher{
		WorkDir: workDir,
		Client:  http.DefaultClient,
	}
}

// IsRemote reports whether src is an http or https URL.
func IsRemote(src string) bool {
	lower := strings.ToLower(src)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// Resolve returns a local path for every source, in order. Local paths
// are returned unchanged; remote sources are downloaded concurrently.
func (f *Fetcher) Resolve(ctx context.Context, sources []string) ([]string, error) {
	paths := make([]string, len(sources))
	errs := make([]error, len(sources))

	var wg sync.WaitGroup
	for i, src := range sources {
		if !IsRemote(src) {
			paths[i] = src
			continue
		}
		wg.Add(1)
		go func(i int, src string) {
			defer wg.Done()
			paths[i], errs[i] = f.Fetch(ctx, src)
		}(i, src)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", sources[i], err)
		}
	}
	return paths, nil
}

// Fetch downloads src into WorkDir and returns the local path. Sources
// ending in .gz are decompressed. A copy left by an earlier run is
// revalidated with If-Modified-Since and kept on 304. Transport errors
// and 5xx responses are retried with a linear backoff; other statuses
// fail at once.
func (f *Fetcher) Fetch(ctx context.Context, src string) (string, error) {
	workDir := f.WorkDir
	if workDir == "" {
		workDir = os.TempDir()
	}
	attempts := f.Attempts
	if attempts <= 0 {
		attempts = defaultAttempts
	}

	u, err := url.Parse(src)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return "", fmt.Errorf("create work dir: %w", err)
	}
	dl := download{
		src:     src,
		dest:    filepath.Join(workDir, localName(src, u.Path)),
		gzipped: strings.HasSuffix(u.Path, ".gz"),
	}

	var lastErr error
	for attempt := range attempts {
		if attempt > 0 {
			f.warn("retrying download", "url", src, "attempt", attempt+1, "error", lastErr)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}
		f.debug("downloading", "url", src, "attempt", attempt+1)

		lastErr = f.get(ctx, dl)
		if lastErr == nil {
			return dl.dest, nil
		}
		var perm *statusError
		if ctx.Err() != nil || (errors.As(lastErr, &perm) && !perm.retryable()) {
			return "", lastErr
		}
	}
	return "", lastErr
}

type download struct {
	src     string
	dest    string
	gzipped bool
}

// statusError is a non-2xx, non-304 response.
type statusError struct {
	code   int
	status string
}

func (e *statusError) Error() string { return "download: status " + e.status }

func (e *statusError) retryable() bool {
	return e.code >= 500 || e.code == http.StatusTooManyRequests
}

// get performs one request for dl and installs the body at dl.dest.
func (f *Fetcher) get(ctx context.Context, dl download) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, dl.src, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if info, err := os.Stat(dl.dest); err == nil {
		req.Header.Set("If-Modified-Since", info.ModTime().UTC().Format(http.TimeFormat))
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		f.debug("download not modified", "url", dl.src)
		return nil
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return &statusError{code: resp.StatusCode, status: resp.Status}
	}

	var body io.ReadCloser = resp.Body
	if dl.gzipped {
		if body, err = wrapGzipReader(resp.Body); err != nil {
			return err
		}
		defer func() { _ = body.Close() }()
	}
	if err := writeAtomic(dl.dest, body); err != nil {
		return err
	}
	if lm, err := http.ParseTime(resp.Header.Get("Last-Modified")); err == nil {
		_ = os.Chtimes(dl.dest, lm, lm)
	}
	return nil
}

// writeAtomic streams r to a temporary file beside dest and renames it
// into place.
func writeAtomic(dest string, r io.Reader) error {
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".fetch-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write file: %w", err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename file: %w", err)
	}
	return nil
}

func (f *Fetcher) warn(msg string, args ...any) {
	if f.Logger != nil {
		f.Logger.Warn(msg, args...)
	}
}

func (f *Fetcher) debug(msg string, args ...any) {
	if f.Logger != nil {
		f.Logger.Debug(msg, args...)
	}
}

// localName derives a file name that is unique per URL and keeps the
// remote base name readable.
func localName(src, urlPath string) string {
	sum := sha1.Sum([]byte(src))
	base := strings.TrimSuffix(path.Base(urlPath), ".gz")
	if base == "" || base == "." || base == "/" {
		base = "download"
	}
	return hex.EncodeToString(sum[:4]) + "-" + base
}

func wrapGzipReader(r io.ReadCloser) (io.ReadCloser, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("gzip reader: %w", err)
	}
	return &gzipReadCloser{ReadCloser: r, Reader: gz}, nil
}

type gzipReadCloser struct {
	io.ReadCloser
	Reader *gzip.Reader
}

func (g *gzipReadCloser) Read(p []byte) (int, error) {
	return g.Reader.Read(p)
}

func (g *gzipReadCloser) Close() error {
	_ = g.Reader.Close()
	return g.ReadCloser.Close()
}
