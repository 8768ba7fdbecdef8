package pipeline

import (
	"github.com/canonical/docs-publisher/internal/metadata"
)

// SourceFile is one file found under the source root during the scan
// phase.
type SourceFile struct {
	Path         string // absolute path on disk
	RelativePath string // slash-separated, relative to the source root
	OutputPath   string // slash-separated, relative to the output root
	Locale       string
	SHA1         string
	Resource     bool              // copied verbatim, not transformed
	Meta         metadata.Metadata // global metadata merged under front matter
	Body         string            // content after front matter
}

// RunStatus represents the current progress of a publish run.
type RunStatus struct {
	Stage        string // "waiting", "scanning", "publishing", "done", "error"
	Total        int
	Done         int
	Skipped      int
	Errors       int
	FailuresPath string
}

// ConvertError wraps a document conversion failure so callers can
// distinguish it from other pipeline errors (e.g. to treat it as non-fatal).
type ConvertError struct{ Err error }

func (e *ConvertError) Error() string { return e.Err.Error() }
func (e *ConvertError) Unwrap() error { return e.Err }
