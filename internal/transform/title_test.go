package transform

import (
	"strings"
	"testing"

	"github.com/canonical/docs-publisher/internal/htmlx"
)

func TestTryExtractTitle(t *testing.T) {
	tests := []struct {
		name      string
		in        string
		title     string
		rawTitle  string
		ok        bool
		remaining string
	}{
		{
			name:      "leading heading after comment",
			in:        "<!--c-->\n<h1>T</h1><p>x</p>",
			title:     "T",
			rawTitle:  "<h1>T</h1>",
			ok:        true,
			remaining: "<!--c-->\n<p>x</p>",
		},
		{
			name:      "heading after visible content stays",
			in:        "<p>x</p><h2>T</h2>",
			title:     "T",
			ok:        true,
			remaining: "<p>x</p><h2>T</h2>",
		},
		{
			name:      "no heading",
			in:        "<p>no heading</p><h4>deep</h4>",
			remaining: "<p>no heading</p><h4>deep</h4>",
		},
		{
			name:      "decoded text",
			in:        `<h3 id="x">A &amp; <code>B</code></h3>rest`,
			title:     "A & B",
			rawTitle:  `<h3 id="x">A &amp; <code>B</code></h3>`,
			ok:        true,
			remaining: "rest",
		},
		{
			name:      "nested heading is not a title",
			in:        "<div><h1>T</h1></div>",
			remaining: "<div><h1>T</h1></div>",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := htmlx.Load(tt.in)
			if err != nil {
				t.Fatal(err)
			}
			title, raw, ok := TryExtractTitle(doc.Root())
			if title != tt.title || raw != tt.rawTitle || ok != tt.ok {
				t.Fatalf("got (%q, %q, %v), want (%q, %q, %v)", title, raw, ok, tt.title, tt.rawTitle, tt.ok)
			}
			out, err := doc.String()
			if err != nil {
				t.Fatal(err)
			}
			if out != tt.remaining {
				t.Fatalf("remaining = %q, want %q", out, tt.remaining)
			}
		})
	}
}

func TestTitleFromFilename(t *testing.T) {
	tests := []struct {
		input, want string
	}{
		{"docs/getting-started.md", "getting-started"},
		{`docs\intro.MD`, "intro"},
		{"page.html", "page"},
		{"notes.txt", "notes.txt"},
		{"", "Untitled"},
	}
	for _, tt := range tests {
		if got := titleFromFilename(tt.input); got != tt.want {
			t.Errorf("titleFromFilename(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestCapDescription(t *testing.T) {
	short := "A short description."
	if got := capDescription(short); got != short {
		t.Fatalf("short description changed: %q", got)
	}
	long := strings.Repeat("word ", 60)
	got := capDescription(long)
	if len(got) > MaxDescriptionLen+len(" …") {
		t.Fatalf("description not capped: %d bytes", len(got))
	}
	if !strings.HasSuffix(got, "word …") {
		t.Fatalf("expected cut at a word boundary, got %q", got)
	}
}
