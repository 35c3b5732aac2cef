package extract

import (
	"regexp"
	"strings"
)

// Strategy finds a raw candidate for a field in a model reply.
type Strategy interface {
	Find(reply string) (string, bool)
	Source() Source
}

// Normalizer turns a candidate into its canonical form, reporting whether it is valid.
type Normalizer func(candidate string) (string, bool)

// Rule is the ordered strategy list and normalizer for one field.
type Rule struct {
	Field      Field
	Strategies []Strategy
	Normalize  Normalizer
}

func (r Rule) resolve(reply string) FieldResult {
	for _, s := range r.Strategies {
		cand, ok := s.Find(reply)
		if !ok {
			continue
		}
		res := FieldResult{Source: s.Source(), Candidate: cand}
		if v, valid := r.Normalize(cand); valid {
			res.Value = v
			res.Outcome = OutcomeOK
		} else {
			res.Outcome = OutcomeInvalid
		}
		return res
	}
	return missing()
}

type tagStrategy struct {
	re *regexp.Regexp
}

// Tag matches <name>VALUE</name> for any of the given tag names, case-insensitively.
// The first tag with a non-empty trimmed value wins.
func Tag(names ...string) Strategy {
	quoted := make([]string, 0, len(names))
	for _, n := range names {
		quoted = append(quoted, regexp.QuoteMeta(n))
	}
	alt := strings.Join(quoted, "|")
	return tagStrategy{
		re: regexp.MustCompile(`(?is)<\s*(?:` + alt + `)\s*>(.*?)<\s*/\s*(?:` + alt + `)\s*>`),
	}
}

func (t tagStrategy) Find(reply string) (string, bool) {
	for _, m := range t.re.FindAllStringSubmatch(reply, -1) {
		if v := strings.TrimSpace(m[1]); v != "" {
			return v, true
		}
	}
	return "", false
}

func (tagStrategy) Source() Source { return SourceTag }

type patternStrategy struct {
	re *regexp.Regexp
}

// Pattern matches a label-like expression. The first capture group is the
// candidate, or the whole match when the expression has no group.
func Pattern(expr string) Strategy {
	return patternStrategy{re: regexp.MustCompile(expr)}
}

func (p patternStrategy) Find(reply string) (string, bool) {
	m := p.re.FindStringSubmatch(reply)
	if m == nil {
		return "", false
	}
	v := m[0]
	if len(m) > 1 {
		v = m[1]
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (patternStrategy) Source() Source { return SourcePattern }
