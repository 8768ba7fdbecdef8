package pipeline

import (
	"bytes"
	"unicode"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// KindXref is the kind of Xref AST node.
var KindXref = ast.NewNodeKind("Xref")

const (
	xrefTransformerPriority = 100
	xrefRendererPriority    = 500
)

var xrefScheme = []byte("xref:")

// Xref is an unresolved cross reference. It renders as an <xref> element
// that the HTML stage resolves against the xref map. RawSource is the
// Markdown text the reference was written as; it is shown verbatim when
// the uid does not resolve.
type Xref struct {
	ast.BaseInline
	UID       []byte
	RawSource []byte
}

// Kind returns the kind of this node.
func (n *Xref) Kind() ast.NodeKind {
	return KindXref
}

// Dump dumps the node for debugging.
func (n *Xref) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{
		"UID":       string(n.UID),
		"RawSource": string(n.RawSource),
	}, nil)
}

// xrefTransformer turns <xref:uid> autolinks, and optionally @uid
// shorthand in prose, into Xref nodes.
type xrefTransformer struct {
	shorthand bool
}

func (t *xrefTransformer) Transform(node *ast.Document, reader text.Reader, pc parser.Context) {
	source := reader.Source()

	var autoLinks []*ast.AutoLink
	var texts []*ast.Text
	_ = ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := n.(type) {
		case *ast.AutoLink:
			if v.AutoLinkType == ast.AutoLinkURL && hasXrefScheme(v.URL(source)) {
				autoLinks = append(autoLinks, v)
			}
			return ast.WalkSkipChildren, nil
		case *ast.CodeSpan, *ast.Link, *ast.Image:
			return ast.WalkSkipChildren, nil
		case *ast.Text:
			if t.shorthand && bytes.IndexByte(v.Segment.Value(source), '@') >= 0 {
				texts = append(texts, v)
			}
		}
		return ast.WalkContinue, nil
	})

	for _, al := range autoLinks {
		parent := al.Parent()
		if parent == nil {
			continue
		}
		url := al.URL(source)
		raw := make([]byte, 0, len(url)+2)
		raw = append(append(append(raw, '<'), url...), '>')
		parent.ReplaceChild(parent, al, &Xref{
			UID:       append([]byte(nil), url[len(xrefScheme):]...),
			RawSource: raw,
		})
	}
	for _, tn := range texts {
		splitShorthand(tn, source)
	}
}

func hasXrefScheme(url []byte) bool {
	return len(url) > len(xrefScheme) && bytes.EqualFold(url[:len(xrefScheme)], xrefScheme)
}

// splitShorthand replaces tn with text segments around every @uid
// occurrence. The line break flags of tn move to the last segment.
func splitShorthand(tn *ast.Text, source []byte) {
	parent := tn.Parent()
	if parent == nil {
		return
	}
	seg := tn.Segment
	value := seg.Value(source)

	var nodes []ast.Node
	pos := 0
	for i := 0; i < len(value); i++ {
		if value[i] != '@' || !shorthandBoundary(source, seg.Start+i) {
			continue
		}
		uid, end := scanShorthand(value, i+1)
		if uid == nil {
			continue
		}
		if i > pos {
			nodes = append(nodes, ast.NewTextSegment(text.NewSegment(seg.Start+pos, seg.Start+i)))
		}
		nodes = append(nodes, &Xref{
			UID:       uid,
			RawSource: append([]byte(nil), value[i:end]...),
		})
		pos = end
		i = end - 1
	}
	if len(nodes) == 0 {
		return
	}

	var last *ast.Text
	if pos < len(value) {
		last = ast.NewTextSegment(text.NewSegment(seg.Start+pos, seg.Stop))
		nodes = append(nodes, last)
	} else {
		last = ast.NewTextSegment(text.NewSegment(seg.Stop, seg.Stop))
		nodes = append(nodes, last)
	}
	last.SetSoftLineBreak(tn.SoftLineBreak())
	last.SetHardLineBreak(tn.HardLineBreak())

	for _, n := range nodes {
		parent.InsertBefore(parent, tn, n)
	}
	parent.RemoveChild(parent, tn)
}

// shorthandBoundary reports whether the '@' at offset i starts a
// shorthand: it must not follow a word character, so addresses such as
// user@host stay text.
func shorthandBoundary(source []byte, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRune(source[:i])
	return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_')
}

// scanShorthand reads the uid after '@' starting at value[start]. Quoted
// uids (@"a b" or @'a b') run to the closing quote; bare uids start with
// a letter and stop at the first character outside the uid alphabet, with
// trailing sentence punctuation dropped.
func scanShorthand(value []byte, start int) (uid []byte, end int) {
	if start >= len(value) {
		return nil, start
	}
	if q := value[start]; q == '"' || q == '\'' {
		closing := bytes.IndexByte(value[start+1:], q)
		if closing <= 0 {
			return nil, start
		}
		end = start + 1 + closing
		return append([]byte(nil), value[start+1:end]...), end + 1
	}
	if !isASCIILetter(value[start]) {
		return nil, start
	}
	end = start
	for end < len(value) && isUIDChar(value[end]) {
		end++
	}
	for end > start && bytes.IndexByte([]byte(".,:;*#"), value[end-1]) >= 0 {
		end--
	}
	return append([]byte(nil), value[start:end]...), end
}

func isASCIILetter(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func isUIDChar(c byte) bool {
	if isASCIILetter(c) || c >= '0' && c <= '9' {
		return true
	}
	switch c {
	case '.', '_', '-', '#', '*', ':', '/', '~', '%', '`':
		return true
	}
	return false
}

// xrefHTMLRenderer renders Xref nodes as <xref> pseudo-elements.
type xrefHTMLRenderer struct{}

// RegisterFuncs registers the render functions.
func (r *xrefHTMLRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(KindXref, r.renderXref)
}

func (r *xrefHTMLRenderer) renderXref(w util.BufWriter, source []byte, n ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	x := n.(*Xref)
	_, _ = w.WriteString(`<xref href="`)
	_, _ = w.Write(util.EscapeHTML(x.UID))
	// data-raw-source holds markup: escape the source text once to make
	// it markup and once more for the attribute.
	_, _ = w.WriteString(`" data-raw-source="`)
	_, _ = w.Write(util.EscapeHTML(util.EscapeHTML(x.RawSource)))
	_, _ = w.WriteString(`"></xref>`)
	return ast.WalkSkipChildren, nil
}

// xrefExtension is the goldmark extension for cross references.
type xrefExtension struct {
	shorthand bool
}

// Extend extends the goldmark markdown parser/renderer.
func (e *xrefExtension) Extend(m goldmark.Markdown) {
	m.Parser().AddOptions(
		parser.WithASTTransformers(
			util.Prioritized(&xrefTransformer{shorthand: e.shorthand}, xrefTransformerPriority),
		),
	)
	m.Renderer().AddOptions(
		renderer.WithNodeRenderers(
			util.Prioritized(&xrefHTMLRenderer{}, xrefRendererPriority),
		),
	)
}
