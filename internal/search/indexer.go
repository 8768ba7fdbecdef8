package search

import (
	"context"
	htmlutil "html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Indexer abstracts search indexing so the pipeline package does not depend
// on a specific search implementation.
type Indexer interface {
	IndexDocument(ctx context.Context, doc Document) error
	Close() error
}

// Document represents a published page to be indexed for search.
type Document struct {
	Title       string
	Path        string
	Locale      string
	Description string
	WordCount   int64
	Bookmarks   []string
	Content     string // plain text, see PlainText
}

var textPolicy = func() *bluemonday.Policy {
	p := bluemonday.StrictPolicy()
	p.AddSpaceWhenStrippingTag(true)
	return p
}()

// PlainText reduces published HTML to whitespace-collapsed text for the
// full-text index. Script and style content is dropped.
func PlainText(html string) string {
	text := htmlutil.UnescapeString(textPolicy.Sanitize(html))
	return strings.Join(strings.Fields(text), " ")
}
