package pipeline

import "testing"

func TestOutputPath(t *testing.T) {
	tests := []struct {
		locale, rel, want string
	}{
		{"en-us", "guide/intro.md", "en-us/guide/intro.html"},
		{"EN-US", "index.markdown", "en-us/index.html"},
		{"fr-fr", "page.htm", "fr-fr/page.html"},
		{"en-us", "media/logo.png", "en-us/media/logo.png"},
		{"en-us", `win\path\a.md`, "en-us/win/path/a.html"},
		{"en-us", "../escape.md", "en-us/escape.html"},
	}
	for _, tt := range tests {
		if got := OutputPath(tt.locale, tt.rel); got != tt.want {
			t.Errorf("OutputPath(%q, %q) = %q, want %q", tt.locale, tt.rel, got, tt.want)
		}
	}
}

func TestRewriteDocumentLink(t *testing.T) {
	tests := []struct {
		href, want string
	}{
		{"intro.md", "intro.html"},
		{"../guide/intro.md#setup", "../guide/intro.html#setup"},
		{"a.MD?tabs=linux#x", "a.html?tabs=linux#x"},
		{"notes.markdown", "notes.html"},
		{"/abs/intro.md", "/abs/intro.md"},
		{"https://example.com/readme.md", "https://example.com/readme.md"},
		{"#section", "#section"},
		{"image.png", "image.png"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := RewriteDocumentLink(tt.href); got != tt.want {
			t.Errorf("RewriteDocumentLink(%q) = %q, want %q", tt.href, got, tt.want)
		}
	}
}

func TestIsDocument(t *testing.T) {
	for rel, want := range map[string]bool{
		"a.md": true, "b.HTML": true, "c.markdown": true, "d.png": false, "Makefile": false,
	} {
		if got := IsDocument(rel); got != want {
			t.Errorf("IsDocument(%q) = %v, want %v", rel, got, want)
		}
	}
}
