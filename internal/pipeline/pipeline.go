package pipeline

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/canonical/docs-publisher/internal/locale"
	"github.com/canonical/docs-publisher/internal/metadata"
	"github.com/canonical/docs-publisher/internal/search"
	"github.com/canonical/docs-publisher/internal/sitemap"
	"github.com/canonical/docs-publisher/internal/storage"
	"github.com/canonical/docs-publisher/internal/transform"
	"github.com/canonical/docs-publisher/internal/urlutil"
	"github.com/canonical/docs-publisher/internal/xref"
)

// Runner publishes a source tree in two phases. The scan phase reads
// every source, parses front matter and registers document uids in the
// xref map. The publish phase then renders documents concurrently, so
// every document can reference every other one.
type Runner struct {
	Converter        *Converter
	Xrefs            *xref.Map
	Indexer          search.Indexer
	Storage          *storage.FSStorage
	SitemapGenerator *sitemap.SitemapGenerator
	Logger           *slog.Logger
	SourceDir        string
	Locale           string
	Workers          int
	GlobalMetadata   metadata.Metadata
	MetaConfig       transform.MetaConfig
	FailuresDir      string
	ForceProcess     bool

	mu       sync.Mutex
	status   RunStatus
	failures []string
	locales  map[string]bool
}

// Status returns a snapshot of the run's progress.
func (r *Runner) Status() RunStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Failures returns the failure messages recorded so far.
func (r *Runner) Failures() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.failures...)
}

func (r *Runner) Run(ctx context.Context) error {
	if r.Converter == nil || r.Storage == nil || r.SourceDir == "" {
		return errors.New("pipeline runner missing dependencies")
	}

	r.mu.Lock()
	r.status = RunStatus{Stage: "scanning"}
	r.failures = nil
	r.locales = make(map[string]bool)
	if r.FailuresDir != "" {
		r.status.FailuresPath = filepath.Join(r.FailuresDir, "publish-failures.log")
	}
	failPath := r.status.FailuresPath
	r.mu.Unlock()

	// Create the failure log up front so users can tail it during processing.
	if failPath != "" {
		_ = os.MkdirAll(filepath.Dir(failPath), 0o755)
		_ = os.WriteFile(failPath, nil, 0o644)
	}

	r.logger().Info("scanning sources", "dir", r.SourceDir)
	sources, err := r.Scan(ctx)
	if err != nil {
		r.setStage("error")
		return fmt.Errorf("scan %s: %w", r.SourceDir, err)
	}

	r.mu.Lock()
	r.status.Stage = "publishing"
	r.status.Total = len(sources)
	r.mu.Unlock()

	workers := r.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for _, src := range sources {
		if ctx.Err() != nil {
			break
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(src SourceFile) {
			defer wg.Done()
			defer func() { <-sem }()
			r.publishSource(ctx, src)
			r.mu.Lock()
			r.status.Done++
			r.mu.Unlock()
		}(src)
	}

	wg.Wait()

	if r.Indexer != nil {
		if err := r.Indexer.Close(); err != nil {
			r.setStage("error")
			return fmt.Errorf("close indexer: %w", err)
		}
	}

	if r.SitemapGenerator != nil {
		if err := r.SitemapGenerator.Generate(ctx, r.publishedLocales()); err != nil {
			// Non-fatal: the pages are published either way.
			r.logger().Error("sitemap generation failed", "error", err)
		}
	}

	if err := ctx.Err(); err != nil {
		r.setStage("error")
		return err
	}

	s := r.Status()
	if s.Errors > 0 {
		r.logger().Warn("publish completed with failures", "count", s.Errors, "log", s.FailuresPath)
	}
	r.logger().Info("publish done", "total", s.Total, "skipped", s.Skipped, "errors", s.Errors)
	r.setStage("done")
	return nil
}

// Scan walks SourceDir and loads every file. Hidden files and
// directories are skipped. Sources that cannot be loaded are recorded as
// failures and left out.
func (r *Runner) Scan(ctx context.Context) ([]SourceFile, error) {
	var sources []SourceFile
	err := filepath.WalkDir(r.SourceDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if strings.HasPrefix(d.Name(), ".") && p != r.SourceDir {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(r.SourceDir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		src, err := r.load(p, rel)
		if err != nil {
			r.recordFailure("scan", rel, err)
			return nil
		}
		sources = append(sources, src)
		return nil
	})
	return sources, err
}

func (r *Runner) load(p, rel string) (SourceFile, error) {
	content, err := os.ReadFile(p)
	if err != nil {
		return SourceFile{}, fmt.Errorf("read source: %w", err)
	}
	sum := sha1.Sum(content)
	src := SourceFile{
		Path:         p,
		RelativePath: rel,
		Locale:       locale.Normalize(r.Locale),
		SHA1:         hex.EncodeToString(sum[:]),
	}

	if !IsDocument(rel) {
		src.Resource = true
		src.OutputPath = OutputPath(src.Locale, rel)
		return src, nil
	}

	fileMeta, body, err := metadata.SplitFrontMatter(string(content))
	if err != nil {
		return SourceFile{}, err
	}
	if l := fileMeta.GetString("locale"); l != "" && locale.IsValidLocale(l) {
		src.Locale = locale.Normalize(l)
	}
	src.Meta = r.GlobalMetadata.Merge(fileMeta)
	src.Body = body
	src.OutputPath = OutputPath(src.Locale, rel)

	if uid := fileMeta.GetString("uid"); uid != "" && r.Xrefs != nil {
		spec := xref.Spec{UID: uid, Href: "/" + src.OutputPath, Name: fileMeta.GetString("title")}
		if err := r.Xrefs.Add(spec); err != nil {
			r.logger().Warn("uid not registered", "path", rel, "error", err)
		}
	}
	return src, nil
}

func (r *Runner) publishSource(ctx context.Context, src SourceFile) {
	r.mu.Lock()
	r.locales[src.Locale] = true
	r.mu.Unlock()

	err := r.publish(ctx, src)
	if err == nil {
		return
	}
	var ce *ConvertError
	if errors.As(err, &ce) {
		r.recordFailure("convert", src.RelativePath, ce.Unwrap())
		return
	}
	r.recordFailure("publish", src.RelativePath, err)
}

func (r *Runner) publish(ctx context.Context, src SourceFile) error {
	if !r.ForceProcess && r.Storage.CheckCache(src.RelativePath, src.SHA1) {
		if src.Resource || r.reindex(ctx, src) == nil {
			r.logger().Debug("skipping unchanged source", "path", src.RelativePath)
			r.mu.Lock()
			r.status.Skipped++
			r.mu.Unlock()
			return nil
		}
	}

	if src.Resource {
		if err := r.Storage.CopyResource(ctx, src.OutputPath, src.Path); err != nil {
			return fmt.Errorf("copy resource %s: %w", src.OutputPath, err)
		}
		return r.Storage.WriteCache(ctx, src.RelativePath, src.SHA1)
	}

	r.logger().Debug("publishing", "path", src.RelativePath, "locale", src.Locale)

	tdoc, err := r.Render(ctx, src)
	if err != nil {
		return err
	}

	if err := r.Storage.WritePage(ctx, src.OutputPath, []byte(tdoc.Page)); err != nil {
		return fmt.Errorf("write page %s: %w", src.OutputPath, err)
	}

	if r.Indexer != nil {
		doc := search.Document{
			Title:       tdoc.Title,
			Path:        "/" + src.OutputPath,
			Locale:      src.Locale,
			Description: tdoc.Desc,
			WordCount:   tdoc.WordCount,
			Bookmarks:   tdoc.Bookmarks.Sorted(),
			Content:     search.PlainText(tdoc.Body),
		}
		if err := r.Indexer.IndexDocument(ctx, doc); err != nil {
			return fmt.Errorf("index %s: %w", src.OutputPath, err)
		}
	}

	if err := r.Storage.WriteCache(ctx, src.RelativePath, src.SHA1); err != nil {
		return fmt.Errorf("write cache for %s: %w", src.RelativePath, err)
	}
	return nil
}

// Render converts and transforms one scanned document with the runner's
// settings. In-page links whose anchor is missing are logged.
func (r *Runner) Render(ctx context.Context, src SourceFile) (transform.Doc, error) {
	var anchors []selfBookmark
	cfg := transform.Config{
		Options: transform.Options{Locale: src.Locale},
		Meta:    r.MetaConfig,
		Links: func(href string, ordinal int) string {
			if urlutil.GetLinkType(href) == urlutil.SelfBookmark {
				anchors = append(anchors, selfBookmark{name: href[1:], ordinal: ordinal})
				return href
			}
			return RewriteDocumentLink(href)
		},
	}
	if r.Xrefs != nil {
		cfg.Xref = r.Xrefs.Resolver(r.logger(), src.RelativePath)
	}

	tdoc, err := RenderDocument(ctx, src, r.Converter, cfg)
	if err != nil {
		return tdoc, err
	}
	r.checkBookmarks(src.RelativePath, tdoc.Bookmarks, anchors)
	return tdoc, nil
}

// RenderDocument converts and transforms a single document using the
// provided pipeline components. Conversion failures are returned as
// *ConvertError so callers can decide whether they are fatal.
func RenderDocument(ctx context.Context, src SourceFile, converter *Converter, cfg transform.Config) (transform.Doc, error) {
	rawHTML, err := converter.Convert(ctx, src.RelativePath, src.Body)
	if err != nil {
		return transform.Doc{}, &ConvertError{Err: fmt.Errorf("convert %s: %w", src.RelativePath, err)}
	}
	tdoc, err := transform.Pipeline(src.RelativePath, rawHTML, src.Meta, cfg)
	if err != nil {
		return tdoc, fmt.Errorf("transform %s: %w", src.RelativePath, err)
	}
	return tdoc, nil
}

// reindex feeds an unchanged, already published page back into the
// search index, which is rebuilt on every run.
func (r *Runner) reindex(ctx context.Context, src SourceFile) error {
	if r.Indexer == nil {
		return nil
	}
	page, err := r.Storage.ReadPage(src.OutputPath)
	if err != nil {
		return err
	}
	fm, body, err := transform.ParseFragmentMeta(string(page))
	if err != nil {
		return err
	}
	return r.Indexer.IndexDocument(ctx, search.Document{
		Title:       fm.Title,
		Path:        "/" + src.OutputPath,
		Locale:      src.Locale,
		Description: fm.Description,
		WordCount:   fm.WordCount,
		Bookmarks:   fm.Bookmarks,
		Content:     search.PlainText(body),
	})
}

type selfBookmark struct {
	name    string
	ordinal int
}

// checkBookmarks warns about in-page links whose anchor does not exist.
// The ordinal is the link's position among the page's links.
func (r *Runner) checkBookmarks(path string, bookmarks transform.Bookmarks, anchors []selfBookmark) {
	for _, a := range anchors {
		if a.name == "" || bookmarks.Has(a.name) {
			continue
		}
		if decoded, err := url.PathUnescape(a.name); err == nil && bookmarks.Has(decoded) {
			continue
		}
		r.logger().Warn("bookmark not found", "path", path, "bookmark", a.name, "ordinal", a.ordinal)
	}
}

func (r *Runner) publishedLocales() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.locales))
	for l := range r.locales {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

func (r *Runner) setStage(stage string) {
	r.mu.Lock()
	r.status.Stage = stage
	r.mu.Unlock()
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

func (r *Runner) recordFailure(stage string, path string, err error) {
	message := strings.TrimSpace(fmt.Sprintf("%s %s: %v", stage, path, err))
	r.mu.Lock()
	r.failures = append(r.failures, message)
	r.status.Errors++
	failPath := r.status.FailuresPath
	r.mu.Unlock()

	// Append to the failure log immediately so users can tail it.
	if failPath != "" {
		f, ferr := os.OpenFile(failPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if ferr == nil {
			_, _ = fmt.Fprintln(f, message)
			_ = f.Close()
		}
	}

	r.logger().Warn("pipeline failure", "stage", stage, "path", path, "error", err)
}
