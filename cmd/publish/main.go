package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/canonical/docs-publisher/internal/config"
	"github.com/canonical/docs-publisher/internal/fetcher"
	"github.com/canonical/docs-publisher/internal/locale"
	"github.com/canonical/docs-publisher/internal/logging"
	"github.com/canonical/docs-publisher/internal/pipeline"
	"github.com/canonical/docs-publisher/internal/search"
	"github.com/canonical/docs-publisher/internal/sitemap"
	"github.com/canonical/docs-publisher/internal/storage"
	"github.com/canonical/docs-publisher/internal/xref"
)

type options struct {
	configPath string
	source     string
	output     string
	locale     string
	workdir    string
	workers    int
	force      bool
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", config.DefaultPath(), "Path to config JSON")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", "text", "Log format (text, json)")
	flag.StringVar(&opts.source, "source", "", "Override source directory")
	flag.StringVar(&opts.output, "output", "", "Override public HTML output directory")
	flag.StringVar(&opts.locale, "locale", "", "Override publishing locale")
	flag.StringVar(&opts.workdir, "workdir", "", "Working directory for downloaded xref maps")
	flag.IntVar(&opts.workers, "workers", 0, "Number of concurrent workers (default: config or CPU count)")
	flag.BoolVar(&opts.force, "force", false, "Force reprocessing of all sources (ignore publish cache)")
	flag.Parse()

	logger := logging.BuildLogger(*logLevel, *logFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := publish(ctx, logger, opts); err != nil {
		logger.Error("publish failed", "error", err)
		os.Exit(1)
	}
}

var errNoSource = errors.New("no source directory configured")

func publish(ctx context.Context, logger *slog.Logger, opts options) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if opts.source != "" {
		cfg.SourceDir = opts.source
	}
	if opts.output != "" {
		cfg.PublicHTMLDir = opts.output
	}
	if opts.locale != "" {
		if !locale.IsValidLocale(opts.locale) {
			return fmt.Errorf("invalid locale %q", opts.locale)
		}
		cfg.Locale = opts.locale
	}
	if opts.workers > 0 {
		cfg.Workers = opts.workers
	}
	if cfg.SourceDir == "" {
		return errNoSource
	}

	globalMeta, err := cfg.Metadata()
	if err != nil {
		return err
	}

	workDir := opts.workdir
	if workDir == "" {
		workDir, err = os.MkdirTemp("", "docs-publish-")
		if err != nil {
			return fmt.Errorf("create work dir: %w", err)
		}
		defer func() { _ = os.RemoveAll(workDir) }()
	}

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

	indexer, err := search.NewSQLiteIndexer(cfg.IndexPath())
	if err != nil {
		return err
	}

	sitemapGen := &sitemap.SitemapGenerator{
		Root:    cfg.PublicHTMLDir,
		SiteURL: cfg.SiteURL(),
		Logger:  logger,
	}

	runner := &pipeline.Runner{
		Converter:        pipeline.NewConverter(cfg.XrefShorthand),
		Xrefs:            xrefs,
		Indexer:          indexer,
		Storage:          storage.NewFSStorage(cfg.PublicHTMLDir),
		SitemapGenerator: sitemapGen,
		Logger:           logger,
		SourceDir:        cfg.SourceDir,
		Locale:           cfg.DefaultLocale(),
		Workers:          cfg.WorkerCount(),
		GlobalMetadata:   globalMeta,
		MetaConfig:       cfg.MetaConfig(),
		FailuresDir:      cfg.PublicHTMLDir,
		ForceProcess:     opts.force,
	}

	return runner.Run(ctx)
}
