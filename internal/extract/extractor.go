package extract

import (
	"fmt"
	"unicode/utf8"
)

// Extractor turns model replies into validated records. It holds no mutable
// state after construction and is safe for concurrent use.
type Extractor struct {
	rules []Rule
}

type options struct {
	calendar Calendar
	glyphs   map[string]string
}

// Option configures an Extractor.
type Option func(*options)

// WithCalendar selects how numeric dates are interpreted.
func WithCalendar(c Calendar) Option {
	return func(o *options) {
		if c != "" {
			o.calendar = c
		}
	}
}

// WithSexGlyphs adds entries to the sex glyph table. Values must be "M" or "F".
func WithSexGlyphs(m map[string]string) Option {
	return func(o *options) {
		o.glyphs = m
	}
}

// New builds an Extractor with the default rule set.
func New(opts ...Option) *Extractor {
	o := options{calendar: CalendarGregorian}
	for _, fn := range opts {
		fn(&o)
	}
	return &Extractor{rules: defaultRules(o.calendar, newGlyphTable(o.glyphs))}
}

// Extract resolves every field of reply. Content problems are reported per
// field on the record; only a reply that is not valid UTF-8 is an error.
func (e *Extractor) Extract(filename, reply string) (*Record, error) {
	if !utf8.ValidString(reply) {
		return nil, fmt.Errorf("%s: %w", filename, ErrInvalidReply)
	}
	rec := NewRecord(filename)
	for _, rule := range e.rules {
		rec.Fields[rule.Field] = rule.resolve(reply)
	}
	return rec, nil
}

var defaultExtractor = New()

// Extract runs the default Extractor.
func Extract(filename, reply string) (*Record, error) {
	return defaultExtractor.Extract(filename, reply)
}
