// Package sitemap writes XML sitemaps for the published tree.
package sitemap

import (
	"context"
	"encoding/xml"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	maxSitemapURLs = 50000
	sitemapNS      = "http://www.sitemaps.org/schemas/sitemap/0.9"
	xhtmlNS        = "http://www.w3.org/1999/xhtml"
	dateLayout     = "2006-01-02"
)

type sitemapURL struct {
	XMLName    xml.Name           `xml:"url"`
	Loc        string             `xml:"loc"`
	LastMod    string             `xml:"lastmod,omitempty"`
	Alternates []sitemapAlternate `xml:"xhtml:link,omitempty"`
}

// sitemapAlternate links a page to its translation in another locale.
type sitemapAlternate struct {
	Rel      string `xml:"rel,attr"`
	HrefLang string `xml:"hreflang,attr"`
	Href     string `xml:"href,attr"`
}

type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	XHTML   string       `xml:"xmlns:xhtml,attr,omitempty"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapIndex struct {
	XMLName  xml.Name          `xml:"sitemapindex"`
	XMLNS    string            `xml:"xmlns,attr"`
	Sitemaps []sitemapIndexRef `xml:"sitemap"`
}

type sitemapIndexRef struct {
	XMLName xml.Name `xml:"sitemap"`
	Loc     string   `xml:"loc"`
	LastMod string   `xml:"lastmod,omitempty"`
}

// page is a published page below one locale directory.
type page struct {
	rel     string // slash-separated, relative to the locale directory
	lastMod string
}

// SitemapGenerator creates sitemap XML files by walking the published
// output tree.
type SitemapGenerator struct {
	Root    string // PublicHTMLDir
	SiteURL string // e.g. "https://docs.example.com"
	Logger  *slog.Logger
}

// Generate writes one sitemap per locale (chunked at maxSitemapURLs), a
// sitemap of the site and locale roots, and a sitemap index, all under
// {Root}/sitemaps/. Pages published under more than one locale list
// their translations as hreflang alternates.
func (g *SitemapGenerator) Generate(ctx context.Context, locales []string) error {
	sitemapDir := filepath.Join(g.Root, "sitemaps")
	if err := os.MkdirAll(sitemapDir, 0o755); err != nil {
		return fmt.Errorf("create sitemaps dir: %w", err)
	}

	locales = append([]string(nil), locales...)
	sort.Strings(locales)
	now := time.Now().UTC().Format(dateLayout)

	pages := make(map[string][]page, len(locales))
	translations := make(map[string][]string) // rel -> locales
	for _, loc := range locales {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		found, err := g.walkLocale(ctx, loc)
		if err != nil {
			g.warn("sitemap locale error", "locale", loc, "error", err)
			continue
		}
		pages[loc] = found
		for _, p := range found {
			translations[p.rel] = append(translations[p.rel], loc)
		}
	}

	rootURLs := []sitemapURL{{Loc: g.SiteURL + "/", LastMod: now}}
	for _, loc := range locales {
		if len(pages[loc]) > 0 {
			rootURLs = append(rootURLs, sitemapURL{Loc: g.SiteURL + "/" + loc + "/", LastMod: now})
		}
	}
	const rootFile = "sitemap-static.xml"
	if err := g.writeSitemap(filepath.Join(sitemapDir, rootFile), rootURLs); err != nil {
		return fmt.Errorf("write static sitemap: %w", err)
	}
	indexRefs := []sitemapIndexRef{{Loc: g.SiteURL + "/sitemaps/" + rootFile, LastMod: now}}

	for _, loc := range locales {
		if len(pages[loc]) == 0 {
			continue
		}
		urls := make([]sitemapURL, 0, len(pages[loc]))
		for _, p := range pages[loc] {
			urls = append(urls, sitemapURL{
				Loc:        g.pageURL(loc, p.rel),
				LastMod:    p.lastMod,
				Alternates: g.alternates(p.rel, translations[p.rel]),
			})
		}
		refs, err := g.writeLocale(sitemapDir, loc, urls, now)
		if err != nil {
			return err
		}
		indexRefs = append(indexRefs, refs...)
	}

	idx := sitemapIndex{XMLNS: sitemapNS, Sitemaps: indexRefs}
	return writeXML(filepath.Join(sitemapDir, "sitemap-index.xml"), idx)
}

// walkLocale lists the .html pages under {Root}/{locale} in lexical
// order. Directories starting with a dot are skipped and a missing
// locale directory has no pages.
func (g *SitemapGenerator) walkLocale(ctx context.Context, locale string) ([]page, error) {
	localeDir := filepath.Join(g.Root, locale)
	var pages []page
	err := filepath.WalkDir(localeDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == localeDir {
				return fs.SkipAll
			}
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if path != localeDir && strings.HasPrefix(d.Name(), ".") {
				return fs.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(d.Name(), ".html") {
			return nil
		}
		rel, err := filepath.Rel(localeDir, path)
		if err != nil {
			return err
		}
		p := page{rel: filepath.ToSlash(rel)}
		if info, err := d.Info(); err == nil {
			p.lastMod = info.ModTime().UTC().Format(dateLayout)
		}
		pages = append(pages, p)
		return nil
	})
	return pages, err
}

func (g *SitemapGenerator) pageURL(locale, rel string) string {
	return g.SiteURL + "/" + locale + "/" + rel
}

// alternates returns hreflang links for every locale publishing rel,
// including the page's own, or nil for untranslated pages.
func (g *SitemapGenerator) alternates(rel string, locales []string) []sitemapAlternate {
	if len(locales) < 2 {
		return nil
	}
	out := make([]sitemapAlternate, 0, len(locales))
	for _, loc := range locales {
		out = append(out, sitemapAlternate{Rel: "alternate", HrefLang: loc, Href: g.pageURL(loc, rel)})
	}
	return out
}

func (g *SitemapGenerator) writeLocale(sitemapDir, locale string, urls []sitemapURL, now string) ([]sitemapIndexRef, error) {
	var refs []sitemapIndexRef
	chunks := splitURLs(urls, maxSitemapURLs)
	for i, chunk := range chunks {
		filename := "sitemap-" + locale
		if len(chunks) > 1 {
			filename = fmt.Sprintf("%s-%d", filename, i+1)
		}
		filename += ".xml"

		if err := g.writeSitemap(filepath.Join(sitemapDir, filename), chunk); err != nil {
			return nil, fmt.Errorf("write %s: %w", filename, err)
		}
		refs = append(refs, sitemapIndexRef{Loc: g.SiteURL + "/sitemaps/" + filename, LastMod: now})
	}
	return refs, nil
}

func (g *SitemapGenerator) writeSitemap(path string, urls []sitemapURL) error {
	urlset := sitemapURLSet{XMLNS: sitemapNS, URLs: urls}
	for _, u := range urls {
		if len(u.Alternates) > 0 {
			urlset.XHTML = xhtmlNS
			break
		}
	}
	return writeXML(path, urlset)
}

func (g *SitemapGenerator) warn(msg string, args ...any) {
	if g.Logger != nil {
		g.Logger.Warn(msg, args...)
	}
}

// writeXML encodes v to a temporary file and renames it over path, so
// crawlers never read a partial sitemap.
func writeXML(path string, v any) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".sitemap-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := tmp.WriteString(xml.Header); err != nil {
		_ = tmp.Close()
		return err
	}
	enc := xml.NewEncoder(tmp)
	enc.Indent("", "  ")
	if err := enc.Encode(v); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

func splitURLs(urls []sitemapURL, maxPerFile int) [][]sitemapURL {
	var chunks [][]sitemapURL
	for len(urls) > maxPerFile {
		chunks = append(chunks, urls[:maxPerFile])
		urls = urls[maxPerFile:]
	}
	return append(chunks, urls)
}
