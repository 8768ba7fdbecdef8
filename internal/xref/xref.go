// Package xref maps cross-reference uids to published locations.
package xref

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/canonical/docs-publisher/internal/transform"
)

var (
	ErrEmptyUID     = errors.New("xref: empty uid")
	ErrDuplicateUID = errors.New("xref: duplicate uid")
)

// Spec is one cross-reference target.
type Spec struct {
	UID      string `yaml:"uid"`
	Href     string `yaml:"href"`
	Name     string `yaml:"name,omitempty"`
	FullName string `yaml:"fullName,omitempty"`
}

// Map is a concurrency-safe uid index.
type Map struct {
	mu    sync.RWMutex
	specs map[string]Spec
}

// New returns an empty map.
func New() *Map {
	return &Map{specs: make(map[string]Spec)}
}

// Add registers s. The first registration of a uid wins; later ones
// return ErrDuplicateUID.
func (m *Map) Add(s Spec) error {
	if s.UID == "" {
		return ErrEmptyUID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.specs[s.UID]; ok {
		return fmt.Errorf("%w: %s (already points to %s)", ErrDuplicateUID, s.UID, prev.Href)
	}
	m.specs[s.UID] = s
	return nil
}

// Load reads a YAML or JSON xref map file of the form
//
//	references:
//	- uid: System.String
//	  href: /api/system.string.html
//	  name: String
//
// and registers every entry. It returns the number of entries added;
// duplicates are skipped and reported in the joined error.
func (m *Map) Load(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read xref map: %w", err)
	}
	var file struct {
		References []Spec `yaml:"references"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return 0, fmt.Errorf("parse xref map %s: %w", path, err)
	}
	added := 0
	var errs []error
	for _, s := range file.References {
		if err := m.Add(s); err != nil {
			errs = append(errs, err)
			continue
		}
		added++
	}
	return added, errors.Join(errs...)
}

// Lookup returns the spec registered for uid.
func (m *Map) Lookup(uid string) (Spec, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.specs[uid]
	return s, ok
}

// Len returns the number of registered uids.
func (m *Map) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.specs)
}

// Resolve turns an xref href into a link target and display text. The
// href is a uid optionally followed by a query and a fragment:
//
//	System.String?displayProperty=fullName#remarks
//
// displayProperty selects name or fullName for the display text and text
// overrides it; other query parameters and the fragment are carried over
// to the target. The display text falls back to the uid. An unknown uid
// yields an empty href.
func (m *Map) Resolve(ref string) (href, display string) {
	uid, query, fragment := splitRef(ref)
	s, ok := m.Lookup(uid)
	if !ok {
		if u, err := url.PathUnescape(uid); err == nil && u != uid {
			s, ok = m.Lookup(u)
		}
	}
	if !ok || s.Href == "" {
		return "", ""
	}

	values, _ := url.ParseQuery(query)
	display = s.Name
	if values.Get("displayProperty") == "fullName" && s.FullName != "" {
		display = s.FullName
	}
	if text := values.Get("text"); text != "" {
		display = text
	}
	if display == "" {
		display = s.UID
	}
	values.Del("displayProperty")
	values.Del("text")

	href = s.Href
	if len(values) > 0 {
		sep := "?"
		if strings.Contains(href, "?") {
			sep = "&"
		}
		href += sep + values.Encode()
	}
	if fragment != "" {
		if i := strings.IndexByte(href, '#'); i >= 0 {
			href = href[:i]
		}
		href += "#" + fragment
	}
	return href, display
}

func splitRef(ref string) (uid, query, fragment string) {
	uid = ref
	if i := strings.IndexByte(uid, '#'); i >= 0 {
		uid, fragment = uid[:i], uid[i+1:]
	}
	if i := strings.IndexByte(uid, '?'); i >= 0 {
		uid, query = uid[:i], uid[i+1:]
	}
	return uid, query, fragment
}

// Resolver adapts m to the transform port. Unresolved uids are logged
// with the document path; @uid shorthand is ordinary prose as often as
// not, so it is logged at debug level only.
func (m *Map) Resolver(logger *slog.Logger, path string) transform.XrefResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return func(uid string, shorthand bool, ordinal int) (string, string) {
		href, display := m.Resolve(uid)
		if href == "" {
			level := slog.LevelWarn
			if shorthand {
				level = slog.LevelDebug
			}
			logger.Log(context.Background(), level, "unresolved xref", "path", path, "uid", uid, "ordinal", ordinal)
		}
		return href, display
	}
}

// LoadFiles builds a map from xref map files. Duplicate uids are logged
// and skipped; a file that cannot be read or parsed is an error.
func LoadFiles(logger *slog.Logger, paths []string) (*Map, error) {
	if logger == nil {
		logger = slog.Default()
	}
	m := New()
	for _, p := range paths {
		n, err := m.Load(p)
		if err != nil && !errors.Is(err, ErrDuplicateUID) {
			return nil, err
		}
		if err != nil {
			logger.Warn("duplicate xref uids skipped", "file", p, "error", err)
		}
		logger.Info("loaded xref map", "file", p, "count", n)
	}
	return m, nil
}
