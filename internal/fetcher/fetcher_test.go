package fetcher

import (
	"bytes"
	"compress/gzip"
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func resetConnection(t *testing.T, w http.ResponseWriter) {
	t.Helper()
	hj, ok := w.(http.Hijacker)
	if !ok {
		t.Fatal("server doesn't support hijacking")
	}
	conn, _, err := hj.Hijack()
	if err != nil {
		t.Fatal(err)
	}
	_ = conn.(*net.TCPConn).SetLinger(0)
	_ = conn.Close()
}

func TestFetch_RetriesOnConnectionReset(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			resetConnection(t, w)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("references: []\n"))
	}))
	defer server.Close()

	fetcher := &Fetcher{WorkDir: t.TempDir(), Client: server.Client()}

	path, err := fetcher.Fetch(context.Background(), server.URL+"/maps/xrefmap.yml")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if !strings.HasSuffix(path, "-xrefmap.yml") {
		t.Fatalf("unexpected path %q", path)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "references: []\n" {
		t.Fatalf("unexpected content %q: %v", data, err)
	}
	if got := attempts.Load(); got != 2 {
		t.Fatalf("expected 2 attempts, got %d", got)
	}
}

func TestFetch_FailsAfterAllRetries(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		resetConnection(t, w)
	}))
	defer server.Close()

	fetcher := &Fetcher{WorkDir: t.TempDir(), Client: server.Client()}

	if _, err := fetcher.Fetch(context.Background(), server.URL+"/xrefmap.yml"); err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if got := attempts.Load(); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestFetch_DecompressesGzip(t *testing.T) {
	var gz bytes.Buffer
	w := gzip.NewWriter(&gz)
	_, _ = w.Write([]byte("references:\n- uid: a\n  href: /a.html\n"))
	_ = w.Close()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(gz.Bytes())
	}))
	defer server.Close()

	fetcher := &Fetcher{WorkDir: t.TempDir(), Client: server.Client(), Attempts: 1}
	path, err := fetcher.Fetch(context.Background(), server.URL+"/xrefmap.yml.gz")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if !strings.HasSuffix(path, "-xrefmap.yml") {
		t.Fatalf("expected .gz suffix dropped, got %q", path)
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "uid: a") {
		t.Fatalf("unexpected content %q", data)
	}
}

func TestFetch_DoesNotRetryClientErrors(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		http.NotFound(w, r)
	}))
	defer server.Close()

	fetcher := &Fetcher{WorkDir: t.TempDir(), Client: server.Client()}
	_, err := fetcher.Fetch(context.Background(), server.URL+"/xrefmap.yml")
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("expected 404 error, got %v", err)
	}
	if got := attempts.Load(); got != 1 {
		t.Fatalf("expected 1 attempt, got %d", got)
	}
}

func TestFetch_RevalidatesCachedCopy(t *testing.T) {
	modified := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	var requests, conditional atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if r.Header.Get("If-Modified-Since") != "" {
			conditional.Add(1)
		}
		http.ServeContent(w, r, "xrefmap.yml", modified, strings.NewReader("references: []\n"))
	}))
	defer server.Close()

	fetcher := &Fetcher{WorkDir: t.TempDir(), Client: server.Client(), Attempts: 1}
	first, err := fetcher.Fetch(context.Background(), server.URL+"/xrefmap.yml")
	if err != nil {
		t.Fatalf("first Fetch: %v", err)
	}
	info, err := os.Stat(first)
	if err != nil {
		t.Fatal(err)
	}
	if !info.ModTime().Equal(modified) {
		t.Fatalf("mtime = %v, want Last-Modified %v", info.ModTime(), modified)
	}

	second, err := fetcher.Fetch(context.Background(), server.URL+"/xrefmap.yml")
	if err != nil {
		t.Fatalf("second Fetch: %v", err)
	}
	if second != first {
		t.Fatalf("paths differ: %q vs %q", first, second)
	}
	if requests.Load() != 2 || conditional.Load() != 1 {
		t.Fatalf("requests = %d, conditional = %d", requests.Load(), conditional.Load())
	}
	data, err := os.ReadFile(second)
	if err != nil || string(data) != "references: []\n" {
		t.Fatalf("cached content %q: %v", data, err)
	}
}

func TestResolveKeepsOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.yml" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(r.URL.Path))
	}))
	defer server.Close()

	fetcher := &Fetcher{WorkDir: t.TempDir(), Client: server.Client(), Attempts: 1}
	paths, err := fetcher.Resolve(context.Background(), []string{
		"/local/map.yml",
		server.URL + "/one.yml",
		server.URL + "/two.yml",
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(paths) != 3 || paths[0] != "/local/map.yml" {
		t.Fatalf("unexpected paths %v", paths)
	}
	for i, want := range []string{"/one.yml", "/two.yml"} {
		data, err := os.ReadFile(paths[i+1])
		if err != nil || string(data) != want {
			t.Fatalf("path %d: got %q (%v), want %q", i+1, data, err, want)
		}
	}

	if _, err := fetcher.Resolve(context.Background(), []string{server.URL + "/missing.yml"}); err == nil {
		t.Fatal("expected error for missing remote map")
	}
}

func TestResolveDefaultWorkDir(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(r.URL.Path))
	}))
	defer server.Close()

	fetcher := &Fetcher{Client: server.Client(), Attempts: 1}
	paths, err := fetcher.Resolve(context.Background(), []string{
		server.URL + "/one.yml",
		server.URL + "/two.yml",
		server.URL + "/three.yml",
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	for _, p := range paths {
		t.Cleanup(func() { _ = os.Remove(p) })
		if filepath.Dir(p) != filepath.Clean(os.TempDir()) {
			t.Errorf("%q not in the temp dir", p)
		}
	}
	if fetcher.WorkDir != "" {
		t.Fatalf("WorkDir modified to %q", fetcher.WorkDir)
	}
}

func TestIsRemote(t *testing.T) {
	for src, want := range map[string]bool{
		"https://docs.example.com/xrefmap.yml": true,
		"HTTP://example.com/a.yml":             true,
		"/srv/xrefmap.yml":                     false,
		"xrefmap.yml":                          false,
		"ftp://example.com/a.yml":              false,
	} {
		if got := IsRemote(src); got != want {
			t.Errorf("IsRemote(%q) = %v, want %v", src, got, want)
		}
	}
}
