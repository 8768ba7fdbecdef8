// Package htmlx adapts golang.org/x/net/html to the operations the
// post-processing transforms need: loading a fragment into a tree,
// ordered traversal, in-place mutation and serialization. It also carries
// a tokenizer-based scanner that reports attribute value offsets in the
// source string, for transforms that must splice the original markup
// instead of re-serializing the tree.
package htmlx

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// bodyContext is the context element fragments are parsed in when no
// better context is known. Markdown renderers emit body content.
var bodyContext = &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}

// Document owns a parsed fragment. Its root is a synthetic DocumentNode
// whose children are the top-level nodes of the fragment.
type Document struct {
	root *html.Node
}

// Load parses s as a body fragment. The parser is permissive: malformed
// markup is repaired by the HTML5 tree construction rules, never rejected.
func Load(s string) (*Document, error) {
	nodes, err := ParseFragmentIn(nil, s)
	if err != nil {
		return nil, err
	}
	root := &html.Node{Type: html.DocumentNode}
	for _, n := range nodes {
		root.AppendChild(n)
	}
	return &Document{root: root}, nil
}

// Root returns the synthetic root node.
func (d *Document) Root() *html.Node {
	return d.root
}

// String serializes every top-level node of the document.
func (d *Document) String() (string, error) {
	var b strings.Builder
	for c := d.root.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&b, c); err != nil {
			return "", fmt.Errorf("render: %w", err)
		}
	}
	return b.String(), nil
}

// ParseFragmentIn parses s as it would appear inside context. A nil or
// non-element context falls back to <body>. The returned nodes are
// detached and ready to be inserted.
func ParseFragmentIn(context *html.Node, s string) ([]*html.Node, error) {
	if context == nil || context.Type != html.ElementNode {
		context = bodyContext
	}
	nodes, err := html.ParseFragment(strings.NewReader(s), context)
	if err != nil {
		return nil, fmt.Errorf("parse fragment: %w", err)
	}
	return nodes, nil
}

// Render serializes n and its subtree.
func Render(n *html.Node) (string, error) {
	var b strings.Builder
	if err := html.Render(&b, n); err != nil {
		return "", fmt.Errorf("render: %w", err)
	}
	return b.String(), nil
}

// Descendants returns every node below n in document order. The result is
// a snapshot, so callers may mutate the tree while ranging over it.
func Descendants(n *html.Node) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(p *html.Node) {
		for c := p.FirstChild; c != nil; c = c.NextSibling {
			out = append(out, c)
			walk(c)
		}
	}
	walk(n)
	return out
}

// DescendantsAndSelf is Descendants with n itself in front.
func DescendantsAndSelf(n *html.Node) []*html.Node {
	return append([]*html.Node{n}, Descendants(n)...)
}

// ElementsByTag returns the element descendants of n named tag, compared
// case-insensitively, in document order.
func ElementsByTag(n *html.Node, tag string) []*html.Node {
	var out []*html.Node
	for _, d := range Descendants(n) {
		if IsElement(d, tag) {
			out = append(out, d)
		}
	}
	return out
}

// IsElement reports whether n is an element named one of tags.
func IsElement(n *html.Node, tags ...string) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	for _, t := range tags {
		if strings.EqualFold(n.Data, t) {
			return true
		}
	}
	return false
}

// Attr returns the value of the first attribute named key.
func Attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, key) {
			return a.Val, true
		}
	}
	return "", false
}

// SetAttr overwrites the first attribute named key, or appends it.
func SetAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, key) {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// RemoveAttr deletes every attribute named key.
func RemoveAttr(n *html.Node, key string) {
	kept := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, key) {
			continue
		}
		kept = append(kept, a)
	}
	n.Attr = kept
}

// Remove detaches n from its parent. Detached nodes are left alone.
func Remove(n *html.Node) {
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

// Replace puts nodes where old was, in order, and detaches old.
func Replace(old *html.Node, nodes ...*html.Node) {
	parent := old.Parent
	if parent == nil {
		return
	}
	for _, n := range nodes {
		Remove(n)
		parent.InsertBefore(n, old)
	}
	parent.RemoveChild(old)
}

// InnerText concatenates the text nodes below n. Comments are skipped.
// Text in the tree is already entity-decoded.
func InnerText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for _, d := range Descendants(n) {
		if d.Type == html.TextNode {
			b.WriteString(d.Data)
		}
	}
	return b.String()
}

// NewElement builds a detached element.
func NewElement(tag string, attrs ...html.Attribute) *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
		Attr:     attrs,
	}
}

// NewText builds a detached text node holding s verbatim.
func NewText(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}
