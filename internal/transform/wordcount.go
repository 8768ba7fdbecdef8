package transform

import (
	"sort"
	"strings"

	"golang.org/x/net/html"

	"github.com/canonical/docs-publisher/internal/htmlx"
)

// wordDelimiters separate words; wordIgnored neither separate words nor
// count as word characters, so "one,two" is one word.
const (
	wordDelimiters = " \t\n"
	wordIgnored    = ".?!;:,()[]"
)

// CountWords returns the number of words in the text below n. Comments
// contribute nothing.
func CountWords(n *html.Node) int64 {
	switch n.Type {
	case html.CommentNode:
		return 0
	case html.TextNode:
		return countWordsInText(n.Data)
	}
	var total int64
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		total += CountWords(c)
	}
	return total
}

func countWordsInText(text string) int64 {
	var count int64
	inWord := false
	for _, r := range text {
		switch {
		case strings.ContainsRune(wordDelimiters, r):
			if inWord {
				count++
				inWord = false
			}
		case strings.ContainsRune(wordIgnored, r):
		default:
			inWord = true
		}
	}
	if inWord {
		count++
	}
	return count
}

// Bookmarks is a set of in-page anchor names.
type Bookmarks map[string]struct{}

// Has reports whether name is an anchor of the page.
func (b Bookmarks) Has(name string) bool {
	_, ok := b[name]
	return ok
}

// Sorted returns the anchors in lexical order.
func (b Bookmarks) Sorted() []string {
	out := make([]string, 0, len(b))
	for k := range b {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// GetBookmarks collects the non-empty id and name attribute values of n
// and its descendants.
func GetBookmarks(n *html.Node) Bookmarks {
	set := make(Bookmarks)
	for _, d := range htmlx.DescendantsAndSelf(n) {
		if d.Type != html.ElementNode {
			continue
		}
		for _, key := range []string{"id", "name"} {
			if v, _ := htmlx.Attr(d, key); v != "" {
				set[v] = struct{}{}
			}
		}
	}
	return set
}
