// Package parser converts markdown systems of record into typed records.
//
// Every exported Parse function is pure: it takes the raw document text and
// returns records, never an error. Constructs the parser does not recognize
// are skipped, so a malformed document yields fewer (or zero) records.
//
// # Pipeline
//
// Parsing runs in three stages:
//
//	text ──Lex──▶ []Token ──Segment(rules)──▶ []Event ──reducer──▶ []record
//
// In order:
//   - Lex classifies each line: Heading, ListItem, TableRow, TableSeparator,
//     Text or Blank. Fenced code blocks are always Text.
//   - Segment applies per-document Rules and emits a flat event stream:
//     SectionStart, RecordStart, Line, RecordEnd, SectionEnd. A record is
//     always closed before the next record, the next section or the end of
//     input.
//   - Each document type folds the events into records with an accumulator
//     value that the step function returns, so no state is shared between
//     calls.
//
// # Shared conventions
//
// Status markers are emoji matched by substring containment against the raw
// heading or cell text. The first table entry that matches wins.
//
// Markdown tables are located by their separator row (cells made only of
// dashes and colons); the row right above is the header. Logical fields are
// resolved against header names through synonym lists, exact names first and
// substring matches second.
//
// Inline styling (bold, italic, strikethrough, code, links, images, wiki
// links) is stripped before storage. The stripping is lossy.
package parser
