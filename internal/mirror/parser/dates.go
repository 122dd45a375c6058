package parser

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"github.com/mdmirror/mdmirror/internal/mirror/schema"
)

var dateParser = newDateParser()

func newDateParser() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}

// Options carries per-document context into the parse functions.
type Options struct {
	// Source is the file base name recorded on records that keep it.
	Source string
	// Reference anchors relative dates ("next friday"). The syncer passes
	// the file's modification time so identical content parses identically.
	// A zero Reference disables natural-language date parsing.
	Reference time.Time
}

// NormalizeDate renders date-ish text as YYYY-MM-DD when it can, and
// returns the stripped text otherwise.
func NormalizeDate(raw string, ref time.Time) string {
	s := cellText(raw)
	if s == "" {
		return ""
	}
	if len(s) >= 10 && schema.IsISODate(s[:10]) {
		return s[:10]
	}
	if d, ok := parseDate(s, ref); ok {
		return d
	}
	return s
}

func parseDate(s string, ref time.Time) (string, bool) {
	if schema.IsISODate(s) {
		return s, true
	}
	if ref.IsZero() {
		return "", false
	}
	r, err := dateParser.Parse(s, ref)
	if err != nil || r == nil {
		return "", false
	}
	return r.Time.Format(schema.DateLayout), true
}

var firstInt = regexp.MustCompile(`\d[\d,]*`)

// parseInt returns the first integer in s ("85%", "1,200 words"), or nil.
func parseInt(s string) *int {
	m := firstInt.FindString(StripInline(s))
	if m == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.ReplaceAll(m, ",", ""))
	if err != nil {
		return nil
	}
	return &n
}

// parseScore is parseInt bounded to 0..100.
func parseScore(s string) *int {
	n := parseInt(s)
	if n == nil || *n > 100 {
		return nil
	}
	return n
}
