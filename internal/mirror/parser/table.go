package parser

import (
	"strings"
)

// Table is a markdown table located by its separator row.
type Table struct {
	// Heading is the text of the nearest heading above the table, if any.
	Heading string
	// Header holds the lower-cased, stripped header names.
	Header []string
	// Rows holds the body rows' raw cells.
	Rows [][]string

	index map[string]int
}

// Field describes one logical column and the header names that mean it.
type Field struct {
	Name     string
	Synonyms []string
}

// Columns maps logical field names to header indexes.
type Columns map[string]int

// Cell returns the raw cell for field in row, or "" when the field was not
// resolved or the row is short.
func (c Columns) Cell(row []string, field string) string {
	i, ok := c[field]
	if !ok || i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

// Has reports whether field was resolved.
func (c Columns) Has(field string) bool {
	_, ok := c[field]
	return ok
}

// Resolve maps fields to header columns. Fields are resolved in order; a
// column claimed by an earlier field is not reused. Exact header names win
// over substring matches.
func (t Table) Resolve(fields ...Field) Columns {
	cols := Columns{}
	claimed := map[int]bool{}

	for _, f := range fields {
		if i, ok := t.find(f.Synonyms, claimed, true); ok {
			cols[f.Name] = i
			claimed[i] = true
		}
	}
	for _, f := range fields {
		if cols.Has(f.Name) {
			continue
		}
		if i, ok := t.find(f.Synonyms, claimed, false); ok {
			cols[f.Name] = i
			claimed[i] = true
		}
	}
	return cols
}

func (t Table) find(synonyms []string, claimed map[int]bool, exact bool) (int, bool) {
	for _, syn := range synonyms {
		if exact {
			if i, ok := t.index[syn]; ok && !claimed[i] {
				return i, true
			}
			continue
		}
		for i, name := range t.Header {
			if !claimed[i] && strings.Contains(name, syn) {
				return i, true
			}
		}
	}
	return -1, false
}

// Tables extracts every well-formed table from tokens. Table rows that are
// not preceded by a header and separator are ignored.
func Tables(tokens []Token) []Table {
	acc := tableAcc{}
	for i, tok := range tokens {
		acc = acc.step(tokens, i, tok)
	}
	return acc.flush().tables
}

type tableAcc struct {
	heading string
	current *Table
	tables  []Table
}

func (a tableAcc) flush() tableAcc {
	if a.current != nil {
		a.tables = append(a.tables, *a.current)
		a.current = nil
	}
	return a
}

func (a tableAcc) step(tokens []Token, i int, tok Token) tableAcc {
	switch tok.Kind {
	case Heading:
		a = a.flush()
		a.heading = tok.Text
	case TableSeparator:
		a = a.flush()
		if i > 0 && tokens[i-1].Kind == TableRow {
			a.current = newTable(a.heading, tokens[i-1].Cells)
		}
	case TableRow:
		if a.current != nil {
			a.current.Rows = append(a.current.Rows, tok.Cells)
		}
	default:
		a = a.flush()
	}
	return a
}

func newTable(heading string, headerCells []string) *Table {
	t := &Table{
		Heading: heading,
		Header:  make([]string, len(headerCells)),
		index:   make(map[string]int, len(headerCells)),
	}
	for i, cell := range headerCells {
		name := strings.ToLower(CleanHeading(cell))
		t.Header[i] = name
		if _, dup := t.index[name]; !dup {
			t.index[name] = i
		}
	}
	return t
}
