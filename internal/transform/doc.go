// Package transform implements the HTML post-processing applied to every
// rendered document before it is published.
//
// The pipeline runs as a sequence of named stages:
//  1. Resolve <xref> cross references
//  2. Rewrite link targets in place
//  3. Count words and collect bookmarks
//  4. Extract the title heading
//  5. Sanitize, classify links and add the direction marker
//  6. Render meta tags from metadata
//  7. Prepend metadata JSON header
package transform

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/canonical/docs-publisher/internal/htmlx"
	"github.com/canonical/docs-publisher/internal/metadata"
)

// Doc holds the state of one document as it passes through the pipeline.
type Doc struct {
	Path      string
	Locale    string
	Meta      metadata.Metadata
	Body      string // HTML body, final after stage 5
	Title     string // set by stage 4
	RawTitle  string // set by stage 4 when the heading was removed
	Desc      string
	WordCount int64     // set by stage 3
	Bookmarks Bookmarks // set by stage 3
	MetaTags  string    // set by stage 6
	Page      string    // metadata header followed by Body, set by stage 7
}

// Config wires the oracles and settings used by the stages. A nil Xref or
// Links skips that stage.
type Config struct {
	Options
	Meta  MetaConfig
	Xref  XrefResolver
	Links LinkRewriter
}

// Pipeline runs all transformation stages on rendered document HTML.
// path names the source document and is only used for the fallback title.
func Pipeline(path, rawHTML string, md metadata.Metadata, cfg Config) (Doc, error) {
	doc := Doc{
		Path:   path,
		Locale: cfg.Locale,
		Meta:   md,
		Body:   rawHTML,
	}

	// Stage 1: Resolve cross references.
	if cfg.Xref != nil {
		body, err := TransformXref(doc.Body, cfg.Xref)
		if err != nil {
			return doc, fmt.Errorf("resolve xrefs: %w", err)
		}
		doc.Body = body
	}

	// Stage 2: Rewrite links.
	if cfg.Links != nil {
		doc.Body = TransformLinks(doc.Body, cfg.Links)
	}

	tree, err := htmlx.Load(doc.Body)
	if err != nil {
		return doc, fmt.Errorf("parse body: %w", err)
	}

	// Stage 3: Count words and collect bookmarks.
	doc.WordCount = CountWords(tree.Root())
	doc.Bookmarks = GetBookmarks(tree.Root())

	// Stage 4: Extract title.
	stageExtractTitle(&doc, tree)

	// Stage 5: Post-process.
	doc.Body, err = PostProcessDocument(tree, cfg.Options)
	if err != nil {
		return doc, fmt.Errorf("post-process: %w", err)
	}

	// Stage 6: Render meta tags.
	doc.MetaTags = CreateHTMLMetaTags(md, cfg.Meta)

	// Stage 7: Prepend metadata JSON.
	if err := stagePrependMeta(&doc); err != nil {
		return doc, fmt.Errorf("prepend meta: %w", err)
	}
	return doc, nil
}

// stageExtractTitle takes the title from the leading heading, falling back
// to the title metadata entry and then the file name. The description
// comes from metadata or the first paragraph.
func stageExtractTitle(doc *Doc, tree *htmlx.Document) {
	title, rawTitle, ok := TryExtractTitle(tree.Root())
	title = collapseWhitespace(title)
	switch {
	case ok && title != "":
	case doc.Meta.GetString("title") != "":
		title = doc.Meta.GetString("title")
	default:
		title = titleFromFilename(doc.Path)
	}
	doc.Title, doc.RawTitle = title, rawTitle

	desc := collapseWhitespace(doc.Meta.GetString("description"))
	if desc == "" {
		desc = firstParagraph(tree.Root())
	}
	doc.Desc = capDescription(desc)
}

// stagePrependMeta builds the FragmentMeta JSON and prepends it as a
// <!--META:...--> comment to the body.
func stagePrependMeta(doc *Doc) error {
	fm := FragmentMeta{
		Title:       doc.Title,
		RawTitle:    doc.RawTitle,
		Description: doc.Desc,
		Locale:      strings.ToLower(doc.Locale),
		UID:         doc.Meta.GetString("uid"),
		WordCount:   doc.WordCount,
		Bookmarks:   doc.Bookmarks.Sorted(),
		MetaTags:    doc.MetaTags,
	}

	metaJSON, err := json.Marshal(fm)
	if err != nil {
		return err
	}

	var b strings.Builder
	b.Grow(len("<!--META:") + len(metaJSON) + len("-->\n") + len(doc.Body))
	b.WriteString("<!--META:")
	b.Write(metaJSON)
	b.WriteString("-->\n")
	b.WriteString(doc.Body)
	doc.Page = b.String()
	return nil
}

// ParseFragmentMeta splits a published page into its metadata header and
// body. Pages without a header yield a zero FragmentMeta.
func ParseFragmentMeta(page string) (FragmentMeta, string, error) {
	var fm FragmentMeta
	if !strings.HasPrefix(page, "<!--META:") {
		return fm, page, nil
	}
	end := strings.Index(page, "-->\n")
	if end < 0 {
		return fm, page, fmt.Errorf("unterminated metadata header")
	}
	if err := json.Unmarshal([]byte(page[len("<!--META:"):end]), &fm); err != nil {
		return fm, page, fmt.Errorf("decode metadata header: %w", err)
	}
	return fm, page[end+len("-->\n"):], nil
}
