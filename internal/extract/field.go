package extract

// Field names a value read off a medical card.
type Field string

const (
	FieldName      Field = "name"
	FieldAge       Field = "age"
	FieldSex       Field = "sex"
	FieldTelephone Field = "telephone"
	FieldAddress   Field = "address"
	FieldKebele    Field = "kebele"
	FieldDate      Field = "date"
)

// Fields lists every recognized field in extraction order.
var Fields = []Field{
	FieldName,
	FieldAge,
	FieldSex,
	FieldTelephone,
	FieldAddress,
	FieldKebele,
	FieldDate,
}

// Outcome is the per-field validation status.
type Outcome string

const (
	OutcomeOK      Outcome = "ok"
	OutcomeMissing Outcome = "missing"
	OutcomeInvalid Outcome = "invalid_format"
)

// Source records which strategy produced a candidate.
type Source string

const (
	SourceNone    Source = ""
	SourceTag     Source = "tag"
	SourcePattern Source = "pattern"
)

// FieldResult is the resolved state of one field.
// Value is set only when Outcome is OutcomeOK.
type FieldResult struct {
	Value     string  `json:"value,omitempty"`
	Outcome   Outcome `json:"outcome"`
	Source    Source  `json:"source,omitempty"`
	Candidate string  `json:"candidate,omitempty"`
}

// OK reports whether the field resolved to a valid value.
func (r FieldResult) OK() bool { return r.Outcome == OutcomeOK }

func missing() FieldResult {
	return FieldResult{Outcome: OutcomeMissing}
}
