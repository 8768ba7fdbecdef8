package transform

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/canonical/docs-publisher/internal/htmlx"
)

var encoder = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#39;",
)

// Encode HTML-escapes s for use in text or a quoted attribute value.
func Encode(s string) string {
	return encoder.Replace(s)
}

// StripTags removes every script, link and style element below and
// including root, and drops the style attribute from every remaining
// element. Text and comments are untouched.
func StripTags(root *html.Node) {
	var remove []*html.Node
	for _, n := range htmlx.DescendantsAndSelf(root) {
		if n.Type != html.ElementNode {
			continue
		}
		if htmlx.IsElement(n, "script", "link", "style") {
			remove = append(remove, n)
			continue
		}
		htmlx.RemoveAttr(n, "style")
	}
	for _, n := range remove {
		htmlx.Remove(n)
	}
}
