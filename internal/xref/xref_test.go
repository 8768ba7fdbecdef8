package xref

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadAndResolve(t *testing.T) {
	path := filepath.Join(t.TempDir(), "xrefmap.yml")
	content := `references:
- uid: System.String
  href: /api/system.string.html
  name: String
  fullName: System.String
- uid: guide.intro
  href: /guide/intro.html?view=full
- uid: System.String
  href: /elsewhere.html
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	m := New()
	n, err := m.Load(path)
	if n != 2 {
		t.Fatalf("expected 2 entries, got %d", n)
	}
	if !errors.Is(err, ErrDuplicateUID) {
		t.Fatalf("expected duplicate uid error, got %v", err)
	}

	tests := []struct {
		ref, href, display string
	}{
		{"System.String", "/api/system.string.html", "String"},
		{"System.String?displayProperty=fullName", "/api/system.string.html", "System.String"},
		{"System.String#remarks", "/api/system.string.html#remarks", "String"},
		{"System.String?text=the+string", "/api/system.string.html", "the string"},
		{"guide.intro", "/guide/intro.html?view=full", "guide.intro"},
		{"guide.intro?tabs=linux", "/guide/intro.html?view=full&tabs=linux", "guide.intro"},
		{"missing", "", ""},
	}
	for _, tt := range tests {
		href, display := m.Resolve(tt.ref)
		if href != tt.href || display != tt.display {
			t.Errorf("Resolve(%q) = (%q, %q), want (%q, %q)", tt.ref, href, display, tt.href, tt.display)
		}
	}
}

func TestLoadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "xrefmap.json")
	content := `{"references": [{"uid": "a", "href": "/a.html", "name": "A"}]}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	m := New()
	if _, err := m.Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if href, display := m.Resolve("a"); href != "/a.html" || display != "A" {
		t.Fatalf("unexpected resolution: %q %q", href, display)
	}
}

func TestAddRejectsEmptyUID(t *testing.T) {
	if err := New().Add(Spec{Href: "/x"}); !errors.Is(err, ErrEmptyUID) {
		t.Fatalf("expected ErrEmptyUID, got %v", err)
	}
}

func TestResolverPort(t *testing.T) {
	m := New()
	if err := m.Add(Spec{UID: "a", Href: "/a.html"}); err != nil {
		t.Fatal(err)
	}
	resolve := m.Resolver(nil, "doc.md")
	if href, display := resolve("a", false, 0); href != "/a.html" || display != "a" {
		t.Fatalf("unexpected resolution: %q %q", href, display)
	}
	if href, _ := resolve("b", true, 1); href != "" {
		t.Fatalf("expected unresolved uid")
	}
}

func TestLoadFiles(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.yml")
	b := filepath.Join(dir, "b.yml")
	if err := os.WriteFile(a, []byte("references:\n- uid: one\n  href: /one.html\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(b, []byte("references:\n- uid: one\n  href: /other.html\n- uid: two\n  href: /two.html\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := LoadFiles(nil, []string{a, b})
	if err != nil {
		t.Fatalf("LoadFiles: %v", err)
	}
	if m.Len() != 2 {
		t.Fatalf("expected 2 uids, got %d", m.Len())
	}
	if s, _ := m.Lookup("one"); s.Href != "/one.html" {
		t.Fatalf("first registration should win, got %q", s.Href)
	}

	if _, err := LoadFiles(nil, []string{filepath.Join(dir, "missing.yml")}); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
