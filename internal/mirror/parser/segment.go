package parser

// EventKind identifies an event in the segmented stream.
type EventKind int

const (
	SectionStart EventKind = iota
	RecordStart
	Line
	RecordEnd
	SectionEnd
)

// String returns a human-readable representation of the event kind.
func (k EventKind) String() string {
	switch k {
	case SectionStart:
		return "section_start"
	case RecordStart:
		return "record_start"
	case Line:
		return "line"
	case RecordEnd:
		return "record_end"
	case SectionEnd:
		return "section_end"
	default:
		return "unknown"
	}
}

// Event is one element of the segmented stream. Token is the heading for
// SectionStart, the opener for RecordStart and the line itself for Line.
// End events carry the token that opened the section or record.
type Event struct {
	Kind  EventKind
	Token Token
}

// Rules tell Segment how a document type is structured.
type Rules struct {
	// SectionLevel is the deepest heading level that can open or close a
	// section. Deeper headings are handed to OpensRecord or become lines.
	SectionLevel int

	// OpensSection reports whether a heading at or above SectionLevel opens
	// a section. A heading that does not still closes the current one.
	OpensSection func(heading Token) bool

	// OpensRecord reports whether tok opens a record inside a section. open
	// is the opener of the currently open record, or nil.
	OpensRecord func(tok Token, open *Token) bool
}

// segmentState is the explicit accumulator threaded through Segment.
type segmentState struct {
	section *Token
	record  *Token
	events  []Event
}

func (s segmentState) closeRecord() segmentState {
	if s.record != nil {
		s.events = append(s.events, Event{Kind: RecordEnd, Token: *s.record})
		s.record = nil
	}
	return s
}

func (s segmentState) closeSection() segmentState {
	s = s.closeRecord()
	if s.section != nil {
		s.events = append(s.events, Event{Kind: SectionEnd, Token: *s.section})
		s.section = nil
	}
	return s
}

// Segment turns tokens into a flat event stream. Tokens outside any section
// produce no events.
func Segment(tokens []Token, rules Rules) []Event {
	state := segmentState{}
	for _, tok := range tokens {
		state = segmentStep(state, tok, rules)
	}
	return state.closeSection().events
}

func segmentStep(s segmentState, tok Token, rules Rules) segmentState {
	if tok.Kind == Heading && tok.Level <= rules.SectionLevel {
		s = s.closeSection()
		if rules.OpensSection != nil && rules.OpensSection(tok) {
			opener := tok
			s.section = &opener
			s.events = append(s.events, Event{Kind: SectionStart, Token: tok})
		}
		return s
	}

	if s.section == nil {
		return s
	}

	if rules.OpensRecord != nil && rules.OpensRecord(tok, s.record) {
		s = s.closeRecord()
		opener := tok
		s.record = &opener
		s.events = append(s.events, Event{Kind: RecordStart, Token: tok})
		return s
	}

	s.events = append(s.events, Event{Kind: Line, Token: tok})
	return s
}

// reduce folds events into an accumulator with a pure step function.
func reduce[A any](events []Event, acc A, step func(A, Event) A) A {
	for _, ev := range events {
		acc = step(acc, ev)
	}
	return acc
}
