package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/canonical/docs-publisher/internal/config"
	"github.com/canonical/docs-publisher/internal/fetcher"
	"github.com/canonical/docs-publisher/internal/logging"
	"github.com/canonical/docs-publisher/internal/web"
	"github.com/canonical/docs-publisher/internal/xref"
)

func main() {
	configPath := flag.String("config", config.DefaultPath(), "Path to config JSON")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", "text", "Log format (text, json)")
	addr := flag.String("addr", ":8080", "HTTP bind address")
	flag.Parse()

	logger := logging.BuildLogger(*logLevel, *logFormat)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The render API resolves cross references against the configured
	// maps only; published document uids are known to the publish run.
	workDir, err := os.MkdirTemp("", "docs-server-")
	if err != nil {
		logger.Error("create work dir", "error", err)
		os.Exit(1)
	}
	defer func() { _ = os.RemoveAll(workDir) }()

	mapFetcher := fetcher.New(workDir)
	mapFetcher.Logger = logger
	var xrefs *xref.Map
	if paths, err := mapFetcher.Resolve(ctx, cfg.XrefMaps); err != nil {
		logger.Warn("xref maps unavailable", "error", err)
	} else if xrefs, err = xref.LoadFiles(logger, paths); err != nil {
		logger.Warn("xref maps unavailable", "error", err)
	}

	server := web.NewServer(cfg, logger, xrefs)
	defer func() { _ = server.Close() }()

	if err := server.ListenAndServe(ctx, *addr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
