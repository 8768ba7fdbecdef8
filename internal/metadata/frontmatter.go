package metadata

import (
	"fmt"
	"strings"
)

// SplitFrontMatter separates a leading YAML front matter block, delimited
// by "---" lines, from the document body. Content without front matter is
// returned unchanged with empty metadata. An unterminated block is treated
// as body text.
func SplitFrontMatter(content string) (Metadata, string, error) {
	if !strings.HasPrefix(content, "---\n") && !strings.HasPrefix(content, "---\r\n") {
		return Metadata{}, content, nil
	}

	lines := strings.SplitAfter(content, "\n")
	offset := len(lines[0])
	for i := 1; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "---" || line == "..." {
			yamlContent := content[len(lines[0]):offset]
			md, err := Parse([]byte(yamlContent))
			if err != nil {
				return nil, content, fmt.Errorf("front matter: %w", err)
			}
			return md, content[offset+len(lines[i]):], nil
		}
		offset += len(lines[i])
	}
	return Metadata{}, content, nil
}
