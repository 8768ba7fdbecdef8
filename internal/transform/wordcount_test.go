package transform

import (
	"testing"

	"github.com/canonical/docs-publisher/internal/htmlx"
)

func TestCountWords(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"<p>one, two.  three</p>", 3},
		{"<p>one,two</p>", 1},
		{"<p>(a) [b]</p><p>c</p>", 3},
		{"<p>visible</p><!-- four five six -->", 1},
		{"<p>. , ; :</p>", 0},
		{"<p><b>foo</b>bar</p>", 2},
		{"<ul>\n<li>tab\tseparated</li>\n</ul>", 2},
		{"", 0},
	}
	for _, tt := range tests {
		doc, err := htmlx.Load(tt.in)
		if err != nil {
			t.Fatal(err)
		}
		if got := CountWords(doc.Root()); got != tt.want {
			t.Errorf("CountWords(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestGetBookmarks(t *testing.T) {
	doc, err := htmlx.Load(`<h2 id="intro">I</h2><a name="anchor"></a><p id="">x</p><div id="intro"></div>`)
	if err != nil {
		t.Fatal(err)
	}
	b := GetBookmarks(doc.Root())
	if len(b) != 2 || !b.Has("intro") || !b.Has("anchor") {
		t.Fatalf("unexpected bookmarks: %v", b.Sorted())
	}
	if s := b.Sorted(); s[0] != "anchor" || s[1] != "intro" {
		t.Fatalf("unexpected order: %v", s)
	}
}
