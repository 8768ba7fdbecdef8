package transform

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/canonical/docs-publisher/internal/urlutil"
)

const codepenRerunHidden = "&rerun-position=hidden&"

// AddLinkType tags every <a href> and <img src> below root with a
// data-linktype attribute and prefixes absolute paths with locale when
// they do not already start with a locale segment. Empty values are
// skipped. Existing data-linktype values are overwritten, so running the
// pass twice gives the same tree.
func AddLinkType(root *html.Node, locale string, classifier LinkClassifier, validator LocaleValidator) {
	doc := goquery.NewDocumentFromNode(root)
	addLinkType(doc, "a", "href", locale, classifier, validator)
	addLinkType(doc, "img", "src", locale, classifier, validator)
}

func addLinkType(doc *goquery.Document, tag, attr, locale string, classifier LinkClassifier, validator LocaleValidator) {
	doc.Find(tag).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr(attr)
		if !ok || href == "" {
			return
		}
		switch lt := classifier.LinkType(href); lt {
		case urlutil.AbsolutePath:
			s.SetAttr("data-linktype", lt.String())
			s.SetAttr(attr, AddLocaleIfMissing(href, locale, validator))
		case urlutil.SelfBookmark, urlutil.RelativePath, urlutil.External:
			s.SetAttr("data-linktype", lt.String())
		}
	})
}

// AddLocaleIfMissing returns href unchanged when the segment between its
// first character and the next '/' or '\' is a valid locale, and
// "/"+locale+href otherwise.
func AddLocaleIfMissing(href, locale string, validator LocaleValidator) string {
	if len(href) > 1 {
		if i := strings.IndexAny(href[1:], `/\`); i >= 0 {
			if validator.IsValidLocale(href[1 : i+1]) {
				return href
			}
		}
	}
	return "/" + locale + href
}

// RemoveRerunCodepenIframes hides the rerun button of embedded codepen
// iframes through the codepen embed API; the button is not accessible.
func RemoveRerunCodepenIframes(root *html.Node) {
	goquery.NewDocumentFromNode(root).Find("iframe").Each(func(_ int, s *goquery.Selection) {
		src, ok := s.Attr("src")
		if !ok || !strings.Contains(strings.ToLower(src), "codepen.io") {
			return
		}
		if strings.Contains(src, codepenRerunHidden) {
			return
		}
		s.SetAttr("src", src+codepenRerunHidden)
	})
}
