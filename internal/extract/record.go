package extract

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrFieldMissing marks a field for which no tag or pattern matched.
	ErrFieldMissing = errors.New("field missing")
	// ErrFieldInvalid marks a field whose candidate failed validation.
	ErrFieldInvalid = errors.New("field invalid")
	// ErrInvalidReply is returned when the model reply is not valid UTF-8 text.
	ErrInvalidReply = errors.New("reply is not valid text")
)

// FieldError describes one field that is not ok.
type FieldError struct {
	Field     Field
	Outcome   Outcome
	Candidate string
}

func (e *FieldError) Error() string {
	if e.Candidate != "" {
		return fmt.Sprintf("%s: %s (%q)", e.Field, e.Outcome, e.Candidate)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Outcome)
}

func (e *FieldError) Unwrap() error {
	if e.Outcome == OutcomeInvalid {
		return ErrFieldInvalid
	}
	return ErrFieldMissing
}

// Record is the structured result for one processed image.
type Record struct {
	Filename string                `json:"filename"`
	Fields   map[Field]FieldResult `json:"fields"`
}

// NewRecord returns a record with every field missing.
func NewRecord(filename string) *Record {
	r := &Record{
		Filename: filename,
		Fields:   make(map[Field]FieldResult, len(Fields)),
	}
	for _, f := range Fields {
		r.Fields[f] = missing()
	}
	return r
}

// Result returns the state of f; unknown fields report missing.
func (r *Record) Result(f Field) FieldResult {
	if res, ok := r.Fields[f]; ok {
		return res
	}
	return missing()
}

// Value returns the normalized value of f when it is ok.
func (r *Record) Value(f Field) (string, bool) {
	res := r.Result(f)
	if !res.OK() {
		return "", false
	}
	return res.Value, true
}

// Age returns the validated age as an integer.
func (r *Record) Age() (int, bool) {
	v, ok := r.Value(FieldAge)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Complete reports whether every recognized field is ok.
func (r *Record) Complete() bool {
	for _, f := range Fields {
		if !r.Result(f).OK() {
			return false
		}
	}
	return true
}

// Problems lists the fields that are not ok, in extraction order.
func (r *Record) Problems() []*FieldError {
	var out []*FieldError
	for _, f := range Fields {
		res := r.Result(f)
		if res.OK() {
			continue
		}
		out = append(out, &FieldError{Field: f, Outcome: res.Outcome, Candidate: res.Candidate})
	}
	return out
}

// Notes renders the problems as a single review note.
func (r *Record) Notes() string {
	probs := r.Problems()
	if len(probs) == 0 {
		return ""
	}
	parts := make([]string, 0, len(probs))
	for _, p := range probs {
		parts = append(parts, p.Error())
	}
	return strings.Join(parts, "; ")
}
