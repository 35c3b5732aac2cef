package entity

import (
	"time"

	"github.com/joseph-ayodele/medcards-tracker/constants"
	"github.com/joseph-ayodele/medcards-tracker/internal/extract"
)

// CardRecord is the stored, flattened result for one image.
type CardRecord struct {
	Filename    string            `json:"filename"`
	Name        string            `json:"name"`
	Age         string            `json:"age"`
	Sex         string            `json:"sex"`
	Telephone   string            `json:"telephone"`
	Address     string            `json:"address"`
	Kebele      string            `json:"kebele"`
	Date        string            `json:"date"`
	Status      string            `json:"status"`
	Notes       string            `json:"notes,omitempty"`
	Outcomes    map[string]string `json:"outcomes,omitempty"`
	ContentHash string            `json:"content_hash,omitempty"`
	JobID       string            `json:"job_id,omitempty"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// FromExtract flattens an extracted record; status is COMPLETE or NEEDS_REVIEW.
func FromExtract(rec *extract.Record) *CardRecord {
	out := &CardRecord{
		Filename:  rec.Filename,
		Name:      value(rec, extract.FieldName),
		Age:       value(rec, extract.FieldAge),
		Sex:       value(rec, extract.FieldSex),
		Telephone: value(rec, extract.FieldTelephone),
		Address:   value(rec, extract.FieldAddress),
		Kebele:    value(rec, extract.FieldKebele),
		Date:      value(rec, extract.FieldDate),
		Status:    string(constants.JobStatusNeedsReview),
		Notes:     rec.Notes(),
		Outcomes:  make(map[string]string, len(extract.Fields)),
	}
	if rec.Complete() {
		out.Status = string(constants.JobStatusComplete)
	}
	for _, f := range extract.Fields {
		out.Outcomes[string(f)] = string(rec.Result(f).Outcome)
	}
	return out
}

func value(rec *extract.Record, f extract.Field) string {
	v, _ := rec.Value(f)
	return v
}

// Failed builds the row for an image whose model call or read failed.
func Failed(filename, reason string) *CardRecord {
	return &CardRecord{
		Filename: filename,
		Status:   string(constants.JobStatusFailed),
		Notes:    reason,
	}
}

// Values returns the field values in column order.
func (r *CardRecord) Values() []string {
	return []string{r.Name, r.Age, r.Sex, r.Telephone, r.Address, r.Kebele, r.Date}
}
