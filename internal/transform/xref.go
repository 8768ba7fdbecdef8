package transform

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/canonical/docs-publisher/internal/htmlx"
)

type xrefReplacement struct {
	node      *html.Node
	with      []*html.Node
	keepInner bool // children were siblings in the source
}

// TransformXref replaces every <xref> element in src. A resolved uid
// becomes <a href="target">display</a>; an unresolved one is replaced by
// its raw authored markup from data-raw-html, or data-raw-source when that
// is absent, so the original text survives. Inputs without an <xref>
// start tag and an href are returned unchanged. Otherwise the whole
// fragment is re-serialized.
//
// The replacement stands for the whole element, so content written
// inside <xref>...</xref> is dropped. An <xref .../> written self-closing
// is an open element to the HTML parser and swallows the siblings that
// follow it; those are kept after the replacement.
func TransformXref(src string, resolve XrefResolver) (string, error) {
	lower := strings.ToLower(src)
	if !strings.Contains(lower, "<xref") || !strings.Contains(lower, "href") {
		return src, nil
	}

	doc, err := htmlx.Load(src)
	if err != nil {
		return "", err
	}

	selfClosed := htmlx.SelfClosed(src, "xref")

	// Collect first: replacing while walking would skip nested xrefs.
	var pending []xrefReplacement
	ordinal := 0
	for _, n := range htmlx.Descendants(doc.Root()) {
		if !htmlx.IsElement(n, "xref") {
			continue
		}
		uid, _ := htmlx.Attr(n, "href")
		raw, ok := htmlx.Attr(n, "data-raw-html")
		if !ok {
			raw, _ = htmlx.Attr(n, "data-raw-source")
		}

		target, display := resolve(uid, strings.HasPrefix(raw, "@"), ordinal)

		r := xrefReplacement{node: n, keepInner: ordinal < len(selfClosed) && selfClosed[ordinal]}
		if target == "" {
			r.with, err = htmlx.ParseFragmentIn(n.Parent, raw)
			if err != nil {
				return "", err
			}
		} else {
			a := htmlx.NewElement("a", html.Attribute{Key: "href", Val: target})
			a.AppendChild(htmlx.NewText(display))
			r.with = []*html.Node{a}
		}
		pending = append(pending, r)
		ordinal++
	}

	for _, r := range pending {
		nodes := r.with
		if r.keepInner {
			for c := r.node.FirstChild; c != nil; c = c.NextSibling {
				nodes = append(nodes, c)
			}
		}
		htmlx.Replace(r.node, nodes...)
	}
	return doc.String()
}
