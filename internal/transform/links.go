package transform

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/canonical/docs-publisher/internal/htmlx"
)

// linkAttrs are the link-bearing attributes TransformLinks rewrites.
var linkAttrs = map[string]string{
	"a":   "href",
	"img": "src",
}

// TransformLinks passes the decoded value of every <a href> and <img src>
// in src through rewrite and splices the HTML-encoded result back at the
// value's original position. All text outside the rewritten values is
// copied byte for byte, including whitespace, comments and attribute
// quoting. A link attribute written without a value is passed to rewrite
// as "" and only gains a value when rewrite returns one.
func TransformLinks(src string, rewrite LinkRewriter) string {
	if !hasLinkMarkers(src) {
		return src
	}
	refs := htmlx.ScanAttrs(src, linkAttrs)
	if len(refs) == 0 {
		return src
	}

	var b strings.Builder
	b.Grow(len(src) + len(src)/8)
	pos := 0
	for ordinal, ref := range refs {
		b.WriteString(src[pos:ref.ValueStart])
		if v := rewrite(html.UnescapeString(ref.Value), ordinal); v != "" || ref.HasValue {
			b.WriteString(spliceValue(v, ref))
		}
		pos = ref.ValueEnd
	}
	b.WriteString(src[pos:])
	return b.String()
}

// hasLinkMarkers is a cheap case-insensitive pre-check that lets inputs
// without any candidate link skip tokenization.
func hasLinkMarkers(src string) bool {
	lower := strings.ToLower(src)
	return (strings.Contains(lower, "<a") && strings.Contains(lower, "href")) ||
		(strings.Contains(lower, "<img") && strings.Contains(lower, "src"))
}

// spliceValue encodes v for the slot ref occupied. Bare attributes gain a
// quoted value; unquoted values are quoted when the new text is empty or
// would otherwise end the value early, since an empty unquoted value
// lets the next attribute take its place.
func spliceValue(v string, ref htmlx.AttributeRef) string {
	enc := Encode(v)
	switch {
	case !ref.HasValue:
		return `="` + enc + `"`
	case ref.Quote == 0 && (enc == "" || strings.ContainsAny(enc, " \t\n\r\f=`")):
		return `"` + enc + `"`
	default:
		return enc
	}
}
