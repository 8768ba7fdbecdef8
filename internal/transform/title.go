package transform

import (
	"path"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"

	"github.com/canonical/docs-publisher/internal/htmlx"
)

// TryExtractTitle finds the first top-level h1, h2 or h3 child of n and
// returns its decoded text as title. When every child before the heading
// is invisible (a comment or whitespace-only text) the heading is also
// returned as rawTitle markup and removed from n. A heading preceded by
// visible content is reported as the title but stays in place and
// rawTitle is "". ok is false when n has no such heading child.
func TryExtractTitle(n *html.Node) (title, rawTitle string, ok bool) {
	visible := false
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if isInvisible(c) {
			continue
		}
		if htmlx.IsElement(c, "h1", "h2", "h3") {
			title = htmlx.InnerText(c)
			if !visible {
				rawTitle = outerHTML(c)
				htmlx.Remove(c)
			}
			return title, rawTitle, true
		}
		visible = true
	}
	return "", "", false
}

func isInvisible(n *html.Node) bool {
	switch n.Type {
	case html.CommentNode:
		return true
	case html.TextNode:
		return strings.TrimSpace(n.Data) == ""
	}
	return false
}

// outerHTML renders n; parsed trees always render, so errors yield "".
func outerHTML(n *html.Node) string {
	s, err := htmlx.Render(n)
	if err != nil {
		return ""
	}
	return s
}

// collapseWhitespace replaces runs of whitespace (including newlines)
// with a single space.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// firstParagraph returns the collapsed text of the first <p> below n.
func firstParagraph(n *html.Node) string {
	for _, p := range htmlx.ElementsByTag(n, "p") {
		if text := collapseWhitespace(htmlx.InnerText(p)); text != "" {
			return text
		}
	}
	return ""
}

// MaxDescriptionLen is the maximum length of a description before truncation.
const MaxDescriptionLen = 200

func capDescription(desc string) string {
	if len(desc) <= MaxDescriptionLen {
		return desc
	}
	cut := strings.LastIndex(desc[:MaxDescriptionLen], " ")
	if cut <= 0 {
		cut = MaxDescriptionLen
		for cut > 0 && !utf8.RuneStart(desc[cut]) {
			cut--
		}
	}
	return strings.TrimRight(desc[:cut], ".,;: ") + " …"
}

// titleFromFilename is the last-resort title for documents without a
// heading or a title metadata entry.
func titleFromFilename(filename string) string {
	name := path.Base(strings.ReplaceAll(filename, `\`, "/"))
	for _, ext := range []string{".md", ".markdown", ".html", ".htm"} {
		if strings.HasSuffix(strings.ToLower(name), ext) {
			name = name[:len(name)-len(ext)]
			break
		}
	}
	if name == "" || name == "." || name == "/" {
		return "Untitled"
	}
	return name
}
