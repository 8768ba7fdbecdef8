package transform

import (
	"strings"

	"github.com/canonical/docs-publisher/internal/metadata"
)

// FragmentMeta is the metadata prepended to a published page.
type FragmentMeta struct {
	Title       string   `json:"title"`
	RawTitle    string   `json:"rawTitle,omitempty"`
	Description string   `json:"description,omitempty"`
	Locale      string   `json:"locale,omitempty"`
	UID         string   `json:"uid,omitempty"`
	WordCount   int64    `json:"wordCount"`
	Bookmarks   []string `json:"bookmarks,omitempty"`
	MetaTags    string   `json:"metaTags,omitempty"`
}

// CreateHTMLMetaTags renders one <meta name content> line per scalar
// metadata entry, in metadata order. Object values and hidden keys are
// skipped; arrays contribute one line per scalar element under the same
// name. Booleans render as "true" or "false".
func CreateHTMLMetaTags(md metadata.Metadata, cfg MetaConfig) string {
	var b strings.Builder
	for _, e := range md {
		if e.Value.Kind == metadata.Object || cfg.Hidden[e.Key] {
			continue
		}
		name := e.Key
		if n, ok := cfg.Names[e.Key]; ok {
			name = n
		}
		if e.Value.Kind != metadata.Array {
			writeMetaTag(&b, name, e.Value.String())
			continue
		}
		for _, item := range e.Value.Items {
			if item.Kind == metadata.Array || item.Kind == metadata.Object {
				continue
			}
			writeMetaTag(&b, name, item.String())
		}
	}
	return b.String()
}

func writeMetaTag(b *strings.Builder, name, content string) {
	b.WriteString(`<meta name="`)
	b.WriteString(Encode(name))
	b.WriteString(`" content="`)
	b.WriteString(Encode(content))
	b.WriteString("\" />\n")
}
