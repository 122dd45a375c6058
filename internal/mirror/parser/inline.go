package parser

import (
	"regexp"
	"strings"
	"unicode"
)

var inlineRules = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`!\[([^\]]*)\]\([^)]*\)`), "$1"},
	{regexp.MustCompile(`\[\[([^\]|]+)\|([^\]]+)\]\]`), "$2"},
	{regexp.MustCompile(`\[\[([^\]]+)\]\]`), "$1"},
	{regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`), "$1"},
	{regexp.MustCompile("`([^`]*)`"), "$1"},
	{regexp.MustCompile(`\*\*(.+?)\*\*`), "$1"},
	{regexp.MustCompile(`__(.+?)__`), "$1"},
	{regexp.MustCompile(`~~(.+?)~~`), "$1"},
	{regexp.MustCompile(`\*([^*\s][^*]*?)\*`), "$1"},
	{regexp.MustCompile(`(^|[^\w])_([^_\s][^_]*?)_([^\w]|$)`), "$1$2$3"},
}

var spaceRun = regexp.MustCompile(`[ \t]{2,}`)

// StripInline removes inline markdown styling and collapses runs of spaces.
func StripInline(s string) string {
	for _, rule := range inlineRules {
		s = rule.re.ReplaceAllString(s, rule.repl)
	}
	s = spaceRun.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// CleanHeading strips inline styling and leading/trailing emoji or symbols
// from heading text, leaving the human name ("🔴 **Urgent**" → "Urgent").
func CleanHeading(s string) string {
	s = StripInline(s)
	s = strings.TrimLeftFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	s = strings.TrimRightFunc(s, isDecoration)
	return strings.TrimSpace(s)
}

func isDecoration(r rune) bool {
	return unicode.IsSpace(r) ||
		unicode.Is(unicode.So, r) ||
		unicode.Is(unicode.Sk, r) ||
		r == '\uFE0F' || r == '\u200D' || r == ':'
}

// placeholder reports whether a cell carries no value ("", "-", "—", "n/a", "tbd").
func placeholder(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "-", "--", "—", "–", "n/a", "na", "tbd", "?":
		return true
	}
	return false
}

// cellText strips inline styling and maps placeholders to "".
func cellText(s string) string {
	s = StripInline(s)
	if placeholder(s) {
		return ""
	}
	return s
}

var linkRe = regexp.MustCompile(`\[[^\]]*\]\(([^)\s]+)[^)]*\)`)

// linkTarget returns the URL of the first markdown link in s, or the
// stripped cell text when s holds no link.
func linkTarget(s string) string {
	if m := linkRe.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return cellText(s)
}
