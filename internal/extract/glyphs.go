package extract

import (
	"regexp"
	"sort"
	"strings"
)

// DefaultSexGlyphs maps Ge'ez script gender markers to canonical codes.
var DefaultSexGlyphs = map[string]string{
	"ወ":   "M",
	"ሴ":   "F",
	"ወንድ": "M",
	"ሴት":  "F",
}

type glyphTable map[string]string

func newGlyphTable(extra map[string]string) glyphTable {
	t := make(glyphTable, len(DefaultSexGlyphs)+len(extra))
	for k, v := range DefaultSexGlyphs {
		t[k] = v
	}
	for k, v := range extra {
		k = strings.TrimSpace(k)
		if k == "" || (v != "M" && v != "F") {
			continue
		}
		t[k] = v
	}
	return t
}

func (t glyphTable) lookup(s string) (string, bool) {
	v, ok := t[strings.TrimSpace(s)]
	return v, ok
}

// standalonePattern matches any glyph key that is not part of a longer word.
func (t glyphTable) standalonePattern() Strategy {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	for i, k := range keys {
		keys[i] = regexp.QuoteMeta(k)
	}
	return Pattern(`(?:^|[^\p{L}])(` + strings.Join(keys, "|") + `)(?:[^\p{L}]|$)`)
}
