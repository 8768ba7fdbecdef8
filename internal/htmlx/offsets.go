package htmlx

import (
	"strings"

	"golang.org/x/net/html"
)

// AttributeRef locates one attribute occurrence in a source string.
// Offsets are byte offsets into the string given to ScanAttrs.
type AttributeRef struct {
	Tag        string // lower-cased tag name
	Name       string // lower-cased attribute name
	Value      string // value as written in the source, entities not decoded
	ValueStart int
	ValueEnd   int
	Quote      byte // '"', '\'' or 0 when unquoted
	HasValue   bool // false for a bare attribute such as <a href>
}

// ScanAttrs walks the start tags of src in source order. For every tag
// named in want it reports the first occurrence of the attribute
// want[tag]; tags lacking that attribute are skipped. Duplicated
// attributes resolve to the first one, as the HTML5 parser does.
//
// Token boundaries come from html.Tokenizer, whose Raw bytes are
// contiguous, so summing their lengths yields each tag's source offset.
// Attribute spans are then recovered by re-scanning the raw tag bytes
// with the tokenizer's own attribute rules.
func ScanAttrs(src string, want map[string]string) []AttributeRef {
	var refs []AttributeRef
	walkStartTags(src, func(raw string, start int, _ bool) {
		tag := tagName(raw)
		name, ok := want[tag]
		if !ok {
			return
		}
		ref, ok := findAttr(raw, name)
		if !ok {
			return
		}
		ref.Tag = tag
		ref.ValueStart += start
		ref.ValueEnd += start
		refs = append(refs, ref)
	})
	return refs
}

// SelfClosed reports, for every start tag named tag in source order,
// whether it was written with a trailing slash as in <tag/>.
func SelfClosed(src, tag string) []bool {
	tag = strings.ToLower(tag)
	var out []bool
	walkStartTags(src, func(raw string, _ int, selfClosing bool) {
		if tagName(raw) == tag {
			out = append(out, selfClosing)
		}
	})
	return out
}

// walkStartTags calls fn with the raw bytes and source offset of every
// start tag of src. Inside <svg> and <math> the tokenizer is kept out of
// raw text mode, so an svg <title> holds markup as it does for the
// parser. Foreign content is tracked by nesting alone; an HTML tag that
// makes the parser leave foreign content early is not detected.
func walkStartTags(src string, fn func(raw string, start int, selfClosing bool)) {
	z := html.NewTokenizer(strings.NewReader(src))
	offset, foreign := 0, 0
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return
		}
		start := offset
		offset += len(z.Raw())
		switch tt {
		case html.StartTagToken, html.SelfClosingTagToken:
			raw := src[start:offset]
			tag := tagName(raw)
			if tt == html.StartTagToken && (tag == "svg" || tag == "math") {
				foreign++
			}
			if foreign > 0 {
				z.NextIsNotRawText()
			}
			fn(raw, start, tt == html.SelfClosingTagToken)
		case html.EndTagToken:
			if name, _ := z.TagName(); foreign > 0 && (string(name) == "svg" || string(name) == "math") {
				foreign--
			}
		}
	}
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\n', '\r', '\t', '\f':
		return true
	}
	return false
}

func skipSpace(raw string, i int) int {
	for i < len(raw) && isSpace(raw[i]) {
		i++
	}
	return i
}

// tagName reads the lower-cased name of a raw start tag.
func tagName(raw string) string {
	i := 1
	for i < len(raw) && !isSpace(raw[i]) && raw[i] != '/' && raw[i] != '>' {
		i++
	}
	return strings.ToLower(raw[1:i])
}

// findAttr scans a raw start tag for the first attribute named want.
// Offsets in the returned ref are relative to raw.
func findAttr(raw, want string) (AttributeRef, bool) {
	i := 1
	for i < len(raw) && !isSpace(raw[i]) && raw[i] != '/' && raw[i] != '>' {
		i++
	}
	for i < len(raw) {
		for i < len(raw) && (isSpace(raw[i]) || raw[i] == '/') {
			i++
		}
		if i >= len(raw) || raw[i] == '>' {
			break
		}

		// A leading '=' belongs to the attribute name.
		keyStart := i
		i++
		for i < len(raw) && !isSpace(raw[i]) && raw[i] != '/' && raw[i] != '>' && raw[i] != '=' {
			i++
		}
		key := strings.ToLower(raw[keyStart:i])
		ref := AttributeRef{Name: key, ValueStart: i, ValueEnd: i}

		j := skipSpace(raw, i)
		if j < len(raw) && raw[j] == '=' {
			j = skipSpace(raw, j+1)
			switch {
			case j >= len(raw) || raw[j] == '>':
				ref.HasValue = true
				ref.ValueStart, ref.ValueEnd = j, j
				i = j
			case raw[j] == '"' || raw[j] == '\'':
				q := raw[j]
				end := strings.IndexByte(raw[j+1:], q)
				if end < 0 {
					end = len(raw) - j - 1
				}
				ref.HasValue = true
				ref.Quote = q
				ref.ValueStart, ref.ValueEnd = j+1, j+1+end
				i = ref.ValueEnd + 1
			default:
				end := j
				for end < len(raw) && !isSpace(raw[end]) && raw[end] != '>' {
					end++
				}
				ref.HasValue = true
				ref.ValueStart, ref.ValueEnd = j, end
				i = end
			}
		}
		ref.Value = raw[ref.ValueStart:ref.ValueEnd]

		if key == want {
			return ref, true
		}
	}
	return AttributeRef{}, false
}
