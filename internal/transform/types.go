package transform

import (
	"github.com/canonical/docs-publisher/internal/locale"
	"github.com/canonical/docs-publisher/internal/urlutil"
)

// LinkClassifier decides how a link target relates to the document.
type LinkClassifier interface {
	LinkType(href string) urlutil.LinkType
}

// LocaleValidator decides whether a path segment names a culture.
type LocaleValidator interface {
	IsValidLocale(code string) bool
}

// LinkRewriter returns the replacement for a decoded href or src value.
// Returning "" deletes the value. The ordinal counts links in document
// order starting at zero; it stands in for a source column and is only an
// approximation of the link's real position.
type LinkRewriter func(href string, ordinal int) string

// XrefResolver resolves a cross-reference uid. shorthand is true for the
// @uid syntax. An empty href means the uid did not resolve; display is
// ignored in that case. The ordinal has the same meaning as for
// LinkRewriter.
type XrefResolver func(uid string, shorthand bool, ordinal int) (href, display string)

// MetaConfig controls meta tag synthesis: keys in Hidden are never
// emitted, Names overrides the emitted name of a key.
type MetaConfig struct {
	Hidden map[string]bool
	Names  map[string]string
}

// Options configures PostProcess. Nil oracles fall back to the defaults
// in urlutil and locale.
type Options struct {
	Locale     string
	Classifier LinkClassifier
	Validator  LocaleValidator
}

func (o Options) classifier() LinkClassifier {
	if o.Classifier == nil {
		return urlutil.Classifier{}
	}
	return o.Classifier
}

func (o Options) validator() LocaleValidator {
	if o.Validator == nil {
		return locale.Validator{}
	}
	return o.Validator
}
