package transform

import (
	"strings"

	"github.com/canonical/docs-publisher/internal/htmlx"
	"github.com/canonical/docs-publisher/internal/locale"
)

// emptyPage replaces output that would be blank; the hosting layer serves
// empty content as a 404.
const emptyPage = "<div></div>"

// PostProcess prepares rendered document markup for publishing: it strips
// disallowed tags, classifies and localizes links, hides the codepen rerun
// button, and adds a left-to-right marker for right-to-left locales.
func PostProcess(src string, opts Options) (string, error) {
	doc, err := htmlx.Load(src)
	if err != nil {
		return "", err
	}
	return PostProcessDocument(doc, opts)
}

// PostProcessDocument is PostProcess over an already loaded tree, for
// callers that run tree queries (title, word count) first. The tree is
// modified in place.
func PostProcessDocument(doc *htmlx.Document, opts Options) (string, error) {
	root := doc.Root()
	StripTags(root)
	AddLinkType(root, strings.ToLower(opts.Locale), opts.classifier(), opts.validator())
	RemoveRerunCodepenIframes(root)

	out, err := doc.String()
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(out) == "" {
		return emptyPage, nil
	}
	return locale.AddLeftToRightMarker(opts.Locale, out), nil
}
