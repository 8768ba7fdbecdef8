package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/canonical/docs-publisher/internal/config"
	"github.com/canonical/docs-publisher/internal/fetcher"
	"github.com/canonical/docs-publisher/internal/logging"
	"github.com/canonical/docs-publisher/internal/pipeline"
	"github.com/canonical/docs-publisher/internal/storage"
	"github.com/canonical/docs-publisher/internal/xref"
)

func main() {
	configPath := flag.String("config", config.DefaultPath(), "Path to config JSON")
	logLevel := flag.String("log-level", "debug", "Log level (debug, info, warn, error)")
	file := flag.String("file", "", "Source document to render, relative to the source directory (required)")
	source := flag.String("source", "", "Override source directory")
	write := flag.Bool("write", false, "Write the page to the output directory instead of stdout")
	asJSON := flag.Bool("json", false, "Print the page metadata and body as JSON")
	flag.Parse()

	logger := logging.BuildLogger(*logLevel, "text")

	if *file == "" {
		fmt.Fprintf(os.Stderr, "Usage: render -file <path>\n\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	if err := run(logger, *configPath, *source, *file, *write, *asJSON); err != nil {
		logger.Error("render failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, configPath, sourceDir, file string, write, asJSON bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if sourceDir != "" {
		cfg.SourceDir = sourceDir
	}
	if cfg.SourceDir == "" {
		return fmt.Errorf("no source directory configured")
	}

	globalMeta, err := cfg.Metadata()
	if err != nil {
		return err
	}

	ctx := context.Background()

	workDir, err := os.MkdirTemp("", "docs-render-")
	if err != nil {
		return fmt.Errorf("create work dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(workDir) }()

	mapFetcher := fetcher.New(workDir)
	mapFetcher.Logger = logger
	mapPaths, err := mapFetcher.Resolve(ctx, cfg.XrefMaps)
	if err != nil {
		return fmt.Errorf("fetch xref maps: %w", err)
	}
	xrefs, err := xref.LoadFiles(logger, mapPaths)
	if err != nil {
		return fmt.Errorf("load xref maps: %w", err)
	}

	runner := &pipeline.Runner{
		Converter:      pipeline.NewConverter(cfg.XrefShorthand),
		Xrefs:          xrefs,
		Storage:        storage.NewFSStorage(cfg.PublicHTMLDir),
		Logger:         logger,
		SourceDir:      cfg.SourceDir,
		Locale:         cfg.DefaultLocale(),
		GlobalMetadata: globalMeta,
		MetaConfig:     cfg.MetaConfig(),
	}

	// Scan the whole tree so links to other documents' uids resolve.
	sources, err := runner.Scan(ctx)
	if err != nil {
		return fmt.Errorf("scan %s: %w", cfg.SourceDir, err)
	}

	rel := filepath.ToSlash(filepath.Clean(file))
	var src *pipeline.SourceFile
	for i := range sources {
		if sources[i].RelativePath == rel {
			src = &sources[i]
			break
		}
	}
	if src == nil {
		return fmt.Errorf("document %q not found in %s (%d sources scanned)", rel, cfg.SourceDir, len(sources))
	}
	if src.Resource {
		return fmt.Errorf("%q is not a document", rel)
	}

	doc, err := runner.Render(ctx, *src)
	if err != nil {
		return err
	}

	switch {
	case write:
		if err := runner.Storage.WritePage(ctx, src.OutputPath, []byte(doc.Page)); err != nil {
			return fmt.Errorf("write page: %w", err)
		}
		logger.Info("done", "path", rel, "output", filepath.Join(cfg.PublicHTMLDir, src.OutputPath), "words", doc.WordCount)
	case asJSON:
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"title":       doc.Title,
			"description": doc.Desc,
			"locale":      src.Locale,
			"output":      src.OutputPath,
			"wordCount":   doc.WordCount,
			"bookmarks":   doc.Bookmarks.Sorted(),
			"metaTags":    doc.MetaTags,
			"html":        doc.Body,
		})
	default:
		_, err = fmt.Fprintln(os.Stdout, doc.Page)
		return err
	}
	return nil
}
