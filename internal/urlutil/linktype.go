// Package urlutil classifies link targets found in rendered documents.
package urlutil

import (
	"net/url"
	"strings"
)

// LinkType says how a link target relates to the document containing it.
type LinkType int

const (
	SelfBookmark LinkType = iota
	AbsolutePath
	RelativePath
	External
)

// String returns the value written to data-linktype attributes.
func (t LinkType) String() string {
	switch t {
	case SelfBookmark:
		return "self-bookmark"
	case AbsolutePath:
		return "absolute-path"
	case RelativePath:
		return "relative-path"
	case External:
		return "external"
	}
	return "unknown"
}

// GetLinkType classifies href.
//
//	#top              SelfBookmark
//	//cdn.example/x   External (protocol relative)
//	/docs/a, \docs\a  AbsolutePath
//	c:\docs\a         AbsolutePath
//	https://x, mailto:a@b  External
//	a.md, ../b.md     RelativePath
func GetLinkType(href string) LinkType {
	if href == "" {
		return RelativePath
	}
	switch href[0] {
	case '#':
		return SelfBookmark
	case '/', '\\':
		if len(href) > 1 && (href[1] == '/' || href[1] == '\\') {
			return External
		}
		return AbsolutePath
	}
	if isWindowsDrivePath(href) {
		return AbsolutePath
	}
	if u, err := url.Parse(href); err == nil && u.Scheme != "" {
		return External
	}
	// url.Parse rejects some sloppy absolute URLs (spaces, stray
	// percent signs) that browsers still follow.
	if i := strings.Index(href, "://"); i > 0 && isScheme(href[:i]) {
		return External
	}
	return RelativePath
}

// Classifier is the default link classification oracle.
type Classifier struct{}

// LinkType implements the classifier port used by the transforms.
func (Classifier) LinkType(href string) LinkType {
	return GetLinkType(href)
}

func isWindowsDrivePath(s string) bool {
	return len(s) >= 3 && isASCIILetter(s[0]) && s[1] == ':' && (s[2] == '\\' || s[2] == '/')
}

func isScheme(s string) bool {
	if s == "" || !isASCIILetter(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		c := s[i]
		if !isASCIILetter(c) && !('0' <= c && c <= '9') && c != '+' && c != '-' && c != '.' {
			return false
		}
	}
	return true
}

func isASCIILetter(c byte) bool {
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}
