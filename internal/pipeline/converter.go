package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

// Converter renders document sources to HTML fragments.
type Converter struct {
	md goldmark.Markdown
}

// NewConverter builds a GFM converter with automatic heading IDs and raw
// HTML pass-through. <xref:uid> autolinks always become <xref> elements;
// shorthand enables the @uid form in prose as well.
func NewConverter(shorthand bool) *Converter {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			&xrefExtension{shorthand: shorthand},
		),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
	)
	return &Converter{md: md}
}

// ConvertMarkdown renders a Markdown body (front matter already removed).
func (c *Converter) ConvertMarkdown(ctx context.Context, body string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var buf bytes.Buffer
	buf.Grow(len(body) + len(body)/2)
	if err := c.md.Convert([]byte(body), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// Convert renders body according to the source file type. HTML sources
// pass through unchanged.
func (c *Converter) Convert(ctx context.Context, relPath string, body string) (string, error) {
	switch strings.ToLower(path.Ext(relPath)) {
	case ".md", ".markdown":
		return c.ConvertMarkdown(ctx, body)
	case ".html", ".htm":
		return body, ctx.Err()
	}
	return "", fmt.Errorf("unsupported document type %q", path.Ext(relPath))
}
