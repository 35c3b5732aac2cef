package constants

// JobStatus is the canonical status for rows in extract_job and card_record.
type JobStatus string

// Stable values (store these exact strings in DB).
const (
	JobStatusQueued      JobStatus = "QUEUED"
	JobStatusRunning     JobStatus = "RUNNING"
	JobStatusComplete    JobStatus = "COMPLETE"     // every field ok
	JobStatusNeedsReview JobStatus = "NEEDS_REVIEW" // at least one field missing or invalid
	JobStatusFailed      JobStatus = "FAILED"       // read, model or store error
)

// Terminal reports whether s is a final state.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusComplete, JobStatusNeedsReview, JobStatusFailed:
		return true
	}
	return false
}
