package transform

import (
	"strings"
	"testing"

	"github.com/canonical/docs-publisher/internal/metadata"
)

func TestPipeline(t *testing.T) {
	rawHTML := `<h1 id="hello">Hello</h1>
<p>See <xref href="a.b" data-raw-source="@a.b"></xref> and <a href="other.md#x">o</a>.</p><script>bad()</script>`

	md, err := metadata.Parse([]byte("uid: guide.hello\ndescription: A guide.\nms.topic: article\n"))
	if err != nil {
		t.Fatal(err)
	}

	var rewritten []string
	doc, err := Pipeline("guide/hello.md", rawHTML, md, Config{
		Options: Options{Locale: "en-us"},
		Xref: func(uid string, _ bool, _ int) (string, string) {
			if uid == "a.b" {
				return "/api/a.b.html", "a.b"
			}
			return "", ""
		},
		Links: func(href string, _ int) string {
			rewritten = append(rewritten, href)
			return strings.Replace(href, ".md", ".html", 1)
		},
	})
	if err != nil {
		t.Fatalf("Pipeline: %v", err)
	}

	if doc.Title != "Hello" || !strings.HasPrefix(doc.RawTitle, "<h1") {
		t.Fatalf("unexpected title: %q %q", doc.Title, doc.RawTitle)
	}
	if doc.Desc != "A guide." {
		t.Fatalf("unexpected description: %q", doc.Desc)
	}
	// Words are counted before StripTags, so the text of the <script>
	// element is included in the count.
	if doc.WordCount != 6 {
		t.Fatalf("expected 6 words, got %d", doc.WordCount)
	}
	if !doc.Bookmarks.Has("hello") {
		t.Fatalf("expected hello bookmark, got %v", doc.Bookmarks.Sorted())
	}

	// The resolved xref is an <a> by the time links are rewritten.
	if len(rewritten) != 2 || rewritten[0] != "/api/a.b.html" || rewritten[1] != "other.md#x" {
		t.Fatalf("unexpected rewriter calls: %v", rewritten)
	}

	for _, unwanted := range []string{"<h1", "<script", "<xref"} {
		if strings.Contains(doc.Body, unwanted) {
			t.Fatalf("body should not contain %s: %s", unwanted, doc.Body)
		}
	}
	for _, want := range []string{
		`<a href="/en-us/api/a.b.html" data-linktype="absolute-path">a.b</a>`,
		`<a href="other.html#x" data-linktype="relative-path">o</a>`,
	} {
		if !strings.Contains(doc.Body, want) {
			t.Fatalf("expected %s in body: %s", want, doc.Body)
		}
	}
	if doc.MetaTags != `<meta name="uid" content="guide.hello" />`+"\n"+
		`<meta name="description" content="A guide." />`+"\n"+
		`<meta name="ms.topic" content="article" />`+"\n" {
		t.Fatalf("unexpected meta tags: %q", doc.MetaTags)
	}

	if !strings.HasPrefix(doc.Page, "<!--META:") {
		t.Fatalf("expected META comment prefix")
	}
	fm, body, err := ParseFragmentMeta(doc.Page)
	if err != nil {
		t.Fatalf("ParseFragmentMeta: %v", err)
	}
	if fm.Title != "Hello" || fm.UID != "guide.hello" || fm.WordCount != 6 || fm.Locale != "en-us" {
		t.Fatalf("unexpected fragment meta: %+v", fm)
	}
	if body != doc.Body {
		t.Fatalf("body after header should equal doc.Body")
	}
}

func TestPipelineTitleFallbacks(t *testing.T) {
	md := metadata.Metadata{{Key: "title", Value: metadata.Value{Kind: metadata.Scalar, Text: "From metadata"}}}
	doc, err := Pipeline("a/b.md", "<p>First paragraph text.</p>", md, Config{})
	if err != nil {
		t.Fatal(err)
	}
	if doc.Title != "From metadata" || doc.Desc != "First paragraph text." {
		t.Fatalf("unexpected title/desc: %q %q", doc.Title, doc.Desc)
	}

	doc, err = Pipeline("a/b.md", "", nil, Config{})
	if err != nil {
		t.Fatal(err)
	}
	if doc.Title != "b" || doc.Body != "<div></div>" {
		t.Fatalf("unexpected fallback: %q %q", doc.Title, doc.Body)
	}
}

func TestParseFragmentMetaWithoutHeader(t *testing.T) {
	fm, body, err := ParseFragmentMeta("<p>x</p>")
	if err != nil || fm.Title != "" || body != "<p>x</p>" {
		t.Fatalf("unexpected result: %+v %q %v", fm, body, err)
	}
	if _, _, err := ParseFragmentMeta("<!--META:{\"title\":"); err == nil {
		t.Fatalf("expected error for unterminated header")
	}
}
