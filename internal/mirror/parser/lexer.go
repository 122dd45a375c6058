package parser

import (
	"regexp"
	"strings"
)

// TokenKind classifies a single line of a document.
type TokenKind int

const (
	// Blank is an empty or whitespace-only line.
	Blank TokenKind = iota
	// Text is any line that is not one of the other kinds.
	Text
	// Heading is an ATX heading ("## Title").
	Heading
	// ListItem is a bullet or ordered list item, optionally with a checkbox.
	ListItem
	// TableRow is a line starting with "|".
	TableRow
	// TableSeparator is a table row made only of dash/colon cells.
	TableSeparator
)

// String returns a human-readable representation of the kind.
func (k TokenKind) String() string {
	switch k {
	case Blank:
		return "blank"
	case Text:
		return "text"
	case Heading:
		return "heading"
	case ListItem:
		return "list_item"
	case TableRow:
		return "table_row"
	case TableSeparator:
		return "table_separator"
	default:
		return "unknown"
	}
}

// Token is one classified line.
type Token struct {
	Kind TokenKind
	// Line is the 1-based line number in the lexed text.
	Line int
	// Raw is the line exactly as it appeared.
	Raw string
	// Text is the payload: heading text, list item text without the marker
	// and checkbox, or the trimmed line for other kinds.
	Text string
	// Level is the heading level (1-6). Zero for other kinds.
	Level int
	// Indent is the leading whitespace width of a list item, tabs counting 4.
	Indent int
	// Checked is nil for list items without a checkbox.
	Checked *bool
	// Cells holds the trimmed cells of a table row.
	Cells []string
}

var (
	headingRe  = regexp.MustCompile(`^(#{1,6})\s+(.*?)(?:\s+#+)?\s*$`)
	listItemRe = regexp.MustCompile(`^(\s*)(?:[-*+]|\d+[.)])\s+(?:\[([ xX])\]\s*)?(.*)$`)
	fenceRe    = regexp.MustCompile("^\\s*(```|~~~)")
)

// Lex splits text into classified tokens, one per line.
func Lex(text string) []Token {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")
	tokens := make([]Token, 0, len(lines))

	inFence := false
	for i, raw := range lines {
		tok := Token{Line: i + 1, Raw: raw}
		trimmed := strings.TrimSpace(raw)

		if fenceRe.MatchString(raw) {
			inFence = !inFence
			tok.Kind = Text
			tok.Text = trimmed
			tokens = append(tokens, tok)
			continue
		}
		if inFence {
			tok.Kind = Text
			tok.Text = trimmed
			tokens = append(tokens, tok)
			continue
		}

		switch {
		case trimmed == "":
			tok.Kind = Blank
		case headingRe.MatchString(trimmed) && !strings.HasPrefix(raw, "    ") && !strings.HasPrefix(raw, "\t"):
			m := headingRe.FindStringSubmatch(trimmed)
			tok.Kind = Heading
			tok.Level = len(m[1])
			tok.Text = strings.TrimSpace(m[2])
		case strings.HasPrefix(trimmed, "|"):
			tok.Cells = splitRow(trimmed)
			tok.Text = trimmed
			if isSeparator(tok.Cells) {
				tok.Kind = TableSeparator
			} else {
				tok.Kind = TableRow
			}
		case listItemRe.MatchString(raw):
			m := listItemRe.FindStringSubmatch(raw)
			tok.Kind = ListItem
			tok.Indent = indentWidth(m[1])
			if m[2] != "" {
				checked := m[2] == "x" || m[2] == "X"
				tok.Checked = &checked
			}
			tok.Text = strings.TrimSpace(m[3])
		default:
			tok.Kind = Text
			tok.Text = trimmed
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

// splitRow splits a table row on "|", trims every cell and drops the empty
// leading and trailing cells produced by the outer pipes.
func splitRow(line string) []string {
	parts := strings.Split(line, "|")
	if len(parts) > 0 && strings.TrimSpace(parts[0]) == "" {
		parts = parts[1:]
	}
	if len(parts) > 0 && strings.TrimSpace(parts[len(parts)-1]) == "" {
		parts = parts[:len(parts)-1]
	}
	cells := make([]string, len(parts))
	for i, p := range parts {
		cells[i] = strings.TrimSpace(p)
	}
	return cells
}

func isSeparator(cells []string) bool {
	if len(cells) == 0 {
		return false
	}
	for _, c := range cells {
		if c == "" || !strings.Contains(c, "-") {
			return false
		}
		if strings.Trim(c, "-:") != "" {
			return false
		}
	}
	return true
}

func indentWidth(ws string) int {
	n := 0
	for _, r := range ws {
		if r == '\t' {
			n += 4
		} else {
			n++
		}
	}
	return n
}
