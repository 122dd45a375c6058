package parser

import (
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Frontmatter is the decoded metadata block at the top of a document.
type Frontmatter map[string]any

// String returns the value of key as a trimmed string, or "".
func (f Frontmatter) String(key string) string {
	v, ok := f[key]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

// SplitFrontmatter separates a leading YAML ("---") or TOML ("+++") block
// from the body. A block that fails to decode is still removed from the body
// and yields an empty Frontmatter.
func SplitFrontmatter(text string) (Frontmatter, string) {
	text = strings.TrimPrefix(text, "\ufeff")
	normalized := strings.ReplaceAll(text, "\r\n", "\n")

	var delim string
	switch {
	case strings.HasPrefix(normalized, "---\n"):
		delim = "---"
	case strings.HasPrefix(normalized, "+++\n"):
		delim = "+++"
	default:
		return Frontmatter{}, text
	}

	rest := normalized[len(delim)+1:]
	end := -1
	offset := 0
	for _, line := range strings.SplitAfter(rest, "\n") {
		if strings.TrimRight(line, "\r\n") == delim {
			end = offset
			break
		}
		offset += len(line)
	}
	if end < 0 {
		// No closing delimiter: not frontmatter.
		return Frontmatter{}, text
	}

	block := rest[:end]
	body := rest[end:]
	body = strings.TrimPrefix(body, delim)
	body = strings.TrimPrefix(body, "\n")

	fm := Frontmatter{}
	var err error
	if delim == "---" {
		err = yaml.Unmarshal([]byte(block), &fm)
	} else {
		_, err = toml.Decode(block, &fm)
	}
	if err != nil || fm == nil {
		fm = Frontmatter{}
	}
	return fm, body
}
