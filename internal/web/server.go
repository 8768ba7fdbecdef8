package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/canonical/docs-publisher/internal/config"
	"github.com/canonical/docs-publisher/internal/locale"
	"github.com/canonical/docs-publisher/internal/metadata"
	"github.com/canonical/docs-publisher/internal/pipeline"
	"github.com/canonical/docs-publisher/internal/search"
	"github.com/canonical/docs-publisher/internal/transform"
	"github.com/canonical/docs-publisher/internal/xref"
)

//go:embed templates/base.html templates/page.html templates/404.html
var webAssets embed.FS

const (
	defaultSearchLimit = 50
	maxSearchLimit     = 100
	maxRenderBytes     = 1 << 20
	defaultRenderPath  = "preview.md"
)

type Server struct {
	cfg        *config.Config
	logger     *slog.Logger
	page       *template.Template
	notFound   *template.Template
	search     *search.SQLiteSearcher
	converter  *pipeline.Converter
	xrefs      *xref.Map
	globalMeta metadata.Metadata
}

type pageView struct {
	Title        string
	Description  string
	Locale       string
	RightToLeft  bool
	MetaTags     template.HTML
	RawTitle     template.HTML
	Body         template.HTML
	SiteURL      string
	CanonicalURL string
	JSONLD       template.HTML
}

type renderResponse struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Locale      string   `json:"locale"`
	HTML        string   `json:"html"`
	WordCount   int64    `json:"wordCount"`
	Bookmarks   []string `json:"bookmarks"`
	MetaTags    string   `json:"metaTags,omitempty"`
}

// NewServer builds a server for the published tree in cfg. xrefs backs
// cross reference resolution in the render API and may be nil.
func NewServer(cfg *config.Config, logger *slog.Logger, xrefs *xref.Map) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	page := template.Must(template.ParseFS(webAssets, "templates/base.html", "templates/page.html"))
	notFound := template.Must(template.ParseFS(webAssets, "templates/base.html", "templates/404.html"))

	var searcher *search.SQLiteSearcher
	if _, err := os.Stat(cfg.IndexPath()); err != nil {
		logger.Warn("search index unavailable", "path", cfg.IndexPath(), "error", err)
	} else if searcher, err = search.NewSQLiteSearcher(cfg.IndexPath()); err != nil {
		logger.Warn("search index unavailable", "path", cfg.IndexPath(), "error", err)
	}

	globalMeta, err := cfg.Metadata()
	if err != nil {
		logger.Warn("ignoring global metadata", "error", err)
	}

	return &Server{
		cfg:        cfg,
		logger:     logger,
		page:       page,
		notFound:   notFound,
		search:     searcher,
		converter:  pipeline.NewConverter(cfg.XrefShorthand),
		xrefs:      xrefs,
		globalMeta: globalMeta,
	}
}

// Handler returns the routed handler with request logging and response
// compression.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.Use(middleware.Compress(5))

	r.Get("/healthz", s.handleHealth)
	r.Get("/robots.txt", s.handleRobotsTxt)
	r.Get("/llms.txt", s.handleLlmsTxt)
	r.Get("/api/search", s.handleSearch)
	r.Post("/api/render", s.handleRender)

	sitemapDir := filepath.Join(s.cfg.PublicHTMLDir, "sitemaps")
	r.Handle("/sitemaps/*", http.StripPrefix("/sitemaps/", http.FileServer(http.Dir(sitemapDir))))

	r.Get("/*", s.handlePage)
	r.NotFound(s.renderNotFound)
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Close() error {
	if s.search == nil {
		return nil
	}
	return s.search.Close()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.search == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "search index unavailable",
		})
		return
	}

	query := r.URL.Query().Get("q")
	loc := r.URL.Query().Get("locale")
	if loc != "" && !locale.IsValidLocale(loc) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid locale"})
		return
	}
	limit := min(parseIntQuery(r, "limit", defaultSearchLimit), maxSearchLimit)
	offset := parseIntQuery(r, "offset", 0)

	results, err := s.search.Search(r.Context(), query, loc, limit, offset)
	if err != nil {
		s.logger.Error("search failed", "query", query, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "search failed",
		})
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// handleRender previews a Markdown document: the request body goes
// through the same conversion and transforms as a published page.
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRenderBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "document too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "read body"})
		return
	}

	relPath := r.URL.Query().Get("path")
	if relPath == "" {
		relPath = defaultRenderPath
	}
	if !pipeline.IsDocument(relPath) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "path must name a .md or .html document"})
		return
	}

	loc := s.cfg.DefaultLocale()
	if q := r.URL.Query().Get("locale"); q != "" {
		if !locale.IsValidLocale(q) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid locale"})
			return
		}
		loc = locale.Normalize(q)
	}

	fileMeta, body, err := metadata.SplitFrontMatter(string(raw))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if l := fileMeta.GetString("locale"); l != "" && locale.IsValidLocale(l) {
		loc = locale.Normalize(l)
	}

	src := pipeline.SourceFile{
		RelativePath: relPath,
		OutputPath:   pipeline.OutputPath(loc, relPath),
		Locale:       loc,
		Meta:         s.globalMeta.Merge(fileMeta),
		Body:         body,
	}
	cfg := transform.Config{
		Options: transform.Options{Locale: loc},
		Meta:    s.cfg.MetaConfig(),
		Links: func(href string, _ int) string {
			return pipeline.RewriteDocumentLink(href)
		},
	}
	if s.xrefs != nil {
		cfg.Xref = s.xrefs.Resolver(s.logger, relPath)
	}

	doc, err := pipeline.RenderDocument(r.Context(), src, s.converter, cfg)
	if err != nil {
		var ce *pipeline.ConvertError
		if errors.As(err, &ce) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
			return
		}
		s.logger.Error("render failed", "path", relPath, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "render failed"})
		return
	}

	writeJSON(w, http.StatusOK, renderResponse{
		Title:       doc.Title,
		Description: doc.Desc,
		Locale:      loc,
		HTML:        doc.Body,
		WordCount:   doc.WordCount,
		Bookmarks:   doc.Bookmarks.Sorted(),
		MetaTags:    doc.MetaTags,
	})
}

// handlePage serves the published tree. Pages are wrapped in the site
// template, other files are served as is, and a .txt suffix returns the
// plain text of the matching page.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	clean := path.Clean("/" + r.URL.Path)
	if clean == "/" {
		http.Redirect(w, r, "/"+s.cfg.DefaultLocale()+"/", http.StatusFound)
		return
	}
	if hasHiddenSegment(clean) {
		s.renderNotFound(w, r)
		return
	}

	fsPath := filepath.Join(s.cfg.PublicHTMLDir, filepath.FromSlash(clean))
	if strings.HasSuffix(clean, ".txt") {
		if _, err := os.Stat(fsPath); err != nil {
			s.servePageText(w, r, strings.TrimSuffix(fsPath, ".txt")+".html")
			return
		}
	}

	info, err := os.Stat(fsPath)
	if err != nil {
		s.renderNotFound(w, r)
		return
	}
	if info.IsDir() {
		if !strings.HasSuffix(r.URL.Path, "/") {
			http.Redirect(w, r, r.URL.Path+"/", http.StatusMovedPermanently)
			return
		}
		fsPath = filepath.Join(fsPath, "index.html")
		if _, err := os.Stat(fsPath); err != nil {
			s.renderNotFound(w, r)
			return
		}
		clean += "/"
	}

	if strings.HasSuffix(fsPath, ".html") {
		s.servePage(w, r, fsPath, clean)
		return
	}
	http.ServeFile(w, r, fsPath)
}

func (s *Server) servePage(w http.ResponseWriter, r *http.Request, fsPath, urlPath string) {
	raw, err := os.ReadFile(fsPath)
	if err != nil {
		s.renderNotFound(w, r)
		return
	}

	fm, body, err := transform.ParseFragmentMeta(string(raw))
	if err != nil {
		s.logger.Warn("bad page header", "path", urlPath, "error", err)
	}

	siteURL := s.cfg.SiteURL()
	view := pageView{
		Title:        fm.Title,
		Description:  fm.Description,
		Locale:       fm.Locale,
		MetaTags:     template.HTML(fm.MetaTags),
		RawTitle:     template.HTML(fm.RawTitle),
		Body:         template.HTML(body),
		SiteURL:      siteURL,
		CanonicalURL: siteURL + urlPath,
	}
	if view.Title == "" {
		view.Title = strings.TrimSuffix(filepath.Base(fsPath), ".html")
	}
	if view.Locale == "" {
		view.Locale = s.cfg.DefaultLocale()
	}
	view.RightToLeft = locale.IsRightToLeft(view.Locale)
	view.JSONLD = buildPageJSONLD(view, fm.WordCount)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.page.ExecuteTemplate(w, "base", view); err != nil {
		s.logger.Error("render error", "template", "page", "error", err)
	}
}

func (s *Server) servePageText(w http.ResponseWriter, r *http.Request, htmlPath string) {
	raw, err := os.ReadFile(htmlPath)
	if err != nil {
		s.renderNotFound(w, r)
		return
	}

	fm, body, _ := transform.ParseFragmentMeta(string(raw))
	var b strings.Builder
	if fm.Title != "" {
		b.WriteString(fm.Title)
		b.WriteString("\n\n")
	}
	b.WriteString(search.PlainText(body))
	b.WriteString("\n")

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(b.String()))
}

func (s *Server) renderNotFound(w http.ResponseWriter, r *http.Request) {
	view := pageView{
		Title:   "Page not found",
		Locale:  s.cfg.DefaultLocale(),
		SiteURL: s.cfg.SiteURL(),
	}
	view.RightToLeft = locale.IsRightToLeft(view.Locale)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	if err := s.notFound.ExecuteTemplate(w, "base", view); err != nil {
		s.logger.Error("render error", "template", "404", "error", err)
	}
}

func (s *Server) handleRobotsTxt(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = fmt.Fprintf(w, `User-agent: *
Allow: /
Disallow: /api/
Disallow: /healthz

Sitemap: %s/sitemaps/sitemap-index.xml
`, s.cfg.SiteURL())
}

func (s *Server) handleLlmsTxt(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = fmt.Fprintf(w, `# Documentation

> Published documentation pages, rendered from Markdown sources.

## Content Structure

- %[1]s/{locale}/{path}.html: Individual page
- %[1]s/{locale}/: Documentation home for a locale

## Plain Text

Change .html to .txt on any page URL for a plain text rendition:
- %[1]s/{locale}/{path}.txt

## API

- GET /api/search?q={query}&locale={locale}&limit={n}&offset={n}
  Returns JSON with fields: total, results (array of {title, path, locale, description, wordCount})
- POST /api/render?locale={locale}&path={path}
  Renders the Markdown request body and returns JSON with fields: title, html, wordCount, bookmarks
`, s.cfg.SiteURL())
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.statusCode = http.StatusOK
		rw.written = true
	}
	return rw.ResponseWriter.Write(b)
}

// Flush implements http.Flusher, delegating to the underlying writer.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w}
		next.ServeHTTP(rw, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", path.Clean("/"+r.URL.Path),
			"status", rw.statusCode,
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func parseIntQuery(r *http.Request, key string, fallback int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}

// hasHiddenSegment reports whether a cleaned URL path names a dot file or
// directory, such as the publish cache.
func hasHiddenSegment(p string) bool {
	for _, seg := range strings.Split(p, "/") {
		if strings.HasPrefix(seg, ".") {
			return true
		}
	}
	return false
}

func buildPageJSONLD(view pageView, wordCount int64) template.HTML {
	data := map[string]any{
		"@context":   "https://schema.org",
		"@type":      "TechArticle",
		"name":       view.Title,
		"url":        view.CanonicalURL,
		"inLanguage": view.Locale,
		"isPartOf": map[string]any{
			"@type": "WebSite",
			"url":   view.SiteURL,
		},
	}
	if view.Description != "" {
		data["description"] = view.Description
	}
	if wordCount > 0 {
		data["wordCount"] = wordCount
	}
	b, err := json.Marshal(data)
	if err != nil {
		return ""
	}
	return template.HTML(`<script type="application/ld+json">` + string(b) + `</script>`)
}
