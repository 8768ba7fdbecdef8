package urlutil

import "testing"

func TestGetLinkType(t *testing.T) {
	tests := []struct {
		href string
		want LinkType
	}{
		{"#top", SelfBookmark},
		{"#", SelfBookmark},
		{"/docs/a", AbsolutePath},
		{`\docs\a`, AbsolutePath},
		{"//cdn.example.com/x.png", External},
		{`\\share\x`, External},
		{"https://example.com/a", External},
		{"mailto:someone@example.com", External},
		{"http://example.com/a b%zz", External},
		{`c:\docs\a.md`, AbsolutePath},
		{"a.md", RelativePath},
		{"../b/c.md#x", RelativePath},
		{"", RelativePath},
	}
	for _, tt := range tests {
		if got := GetLinkType(tt.href); got != tt.want {
			t.Errorf("GetLinkType(%q) = %v, want %v", tt.href, got, tt.want)
		}
	}
}

func TestLinkTypeString(t *testing.T) {
	tests := map[LinkType]string{
		SelfBookmark: "self-bookmark",
		AbsolutePath: "absolute-path",
		RelativePath: "relative-path",
		External:     "external",
	}
	for lt, want := range tests {
		if lt.String() != want {
			t.Errorf("%d.String() = %q, want %q", lt, lt.String(), want)
		}
	}
}
