package pipeline

import (
	"path"
	"strings"

	"github.com/canonical/docs-publisher/internal/urlutil"
)

var documentExts = map[string]bool{
	".md":       true,
	".markdown": true,
	".html":     true,
	".htm":      true,
}

// IsDocument reports whether the slash-separated source path is a
// document to publish, as opposed to a resource copied verbatim.
func IsDocument(relPath string) bool {
	return documentExts[strings.ToLower(path.Ext(relPath))]
}

// OutputPath maps a source path relative to the source root to the path
// of its published page below the output root:
//
//	guide/intro.md  → en-us/guide/intro.html
//	media/logo.png  → en-us/media/logo.png
func OutputPath(locale, relPath string) string {
	rel := strings.TrimPrefix(path.Clean("/"+strings.ReplaceAll(relPath, `\`, "/")), "/")
	if IsDocument(rel) {
		rel = strings.TrimSuffix(rel, path.Ext(rel)) + ".html"
	}
	return path.Join(strings.ToLower(locale), rel)
}

// RewriteDocumentLink points relative links at Markdown sources to the
// published page. Query and fragment are kept; every other link is
// returned unchanged.
func RewriteDocumentLink(href string) string {
	if urlutil.GetLinkType(href) != urlutil.RelativePath {
		return href
	}
	target, suffix := href, ""
	if i := strings.IndexAny(target, "?#"); i >= 0 {
		target, suffix = target[:i], target[i:]
	}
	ext := path.Ext(target)
	switch strings.ToLower(ext) {
	case ".md", ".markdown":
		return strings.TrimSuffix(target, ext) + ".html" + suffix
	}
	return href
}
