package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/canonical/docs-publisher/internal/locale"
	"github.com/canonical/docs-publisher/internal/metadata"
	"github.com/canonical/docs-publisher/internal/transform"
)

const (
	defaultConfigPath = "/app/www/config.json"
	defaultLocale     = "en-us"
)

// Config is the JSON configuration shared by the publish and server
// commands.
type Config struct {
	Site           string            `json:"site"`
	SourceDir      string            `json:"source_dir"`
	PublicHTMLDir  string            `json:"public_html_dir"`
	IndexDir       string            `json:"index_dir"`
	Locale         string            `json:"locale"`
	Workers        int               `json:"workers"`
	GlobalMetadata json.RawMessage   `json:"global_metadata,omitempty"`
	HTMLMetaHidden []string          `json:"html_meta_hidden"`
	HTMLMetaNames  map[string]string `json:"html_meta_names"`
	XrefMaps       []string          `json:"xref_maps"`
	XrefShorthand  bool              `json:"xref_shorthand"`
}

func DefaultPath() string {
	if path := os.Getenv("DOCS_CONFIG_FILE"); path != "" {
		return path
	}
	return defaultConfigPath
}

func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Relative xref map paths are relative to the config file.
	for i, p := range cfg.XrefMaps {
		if p != "" && !filepath.IsAbs(p) && !strings.Contains(p, "://") {
			cfg.XrefMaps[i] = filepath.Join(filepath.Dir(path), p)
		}
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Site == "" {
		return errors.New("config site is required")
	}
	if c.PublicHTMLDir == "" {
		return errors.New("config public_html_dir is required")
	}
	if c.Locale != "" && !locale.IsValidLocale(c.Locale) {
		return fmt.Errorf("config locale %q is not a valid locale", c.Locale)
	}
	if c.Workers < 0 {
		return errors.New("config workers must not be negative")
	}
	if _, err := c.Metadata(); err != nil {
		return err
	}
	return nil
}

// IndexPath returns the search database location.
func (c *Config) IndexPath() string {
	if c.IndexDir != "" {
		return filepath.Join(c.IndexDir, "search.db")
	}
	return filepath.Join(c.PublicHTMLDir, "search.db")
}

func (c *Config) SiteURL() string {
	return strings.TrimRight(c.Site, "/")
}

// DefaultLocale is the normalized publishing locale, en-us when unset.
func (c *Config) DefaultLocale() string {
	if c.Locale == "" {
		return defaultLocale
	}
	return locale.Normalize(c.Locale)
}

// WorkerCount returns the configured worker count or the number of CPUs.
func (c *Config) WorkerCount() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.NumCPU()
}

// Metadata parses global_metadata keeping the key order of the file.
func (c *Config) Metadata() (metadata.Metadata, error) {
	if len(c.GlobalMetadata) == 0 || string(c.GlobalMetadata) == "null" {
		return nil, nil
	}
	md, err := metadata.Parse(c.GlobalMetadata)
	if err != nil {
		return nil, fmt.Errorf("config global_metadata: %w", err)
	}
	return md, nil
}

// MetaConfig returns the meta tag settings for the transform pipeline.
func (c *Config) MetaConfig() transform.MetaConfig {
	hidden := make(map[string]bool, len(c.HTMLMetaHidden))
	for _, k := range c.HTMLMetaHidden {
		hidden[k] = true
	}
	return transform.MetaConfig{Hidden: hidden, Names: c.HTMLMetaNames}
}
