package server

import (
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/medcards-tracker/constants"
	"github.com/joseph-ayodele/medcards-tracker/internal/entity"
	"github.com/joseph-ayodele/medcards-tracker/internal/extract"
	"github.com/joseph-ayodele/medcards-tracker/internal/ingest"
	"github.com/joseph-ayodele/medcards-tracker/internal/pipeline"
)

func recordMap(r *entity.CardRecord) map[string]any {
	m := map[string]any{
		"filename":  r.Filename,
		"name":      r.Name,
		"age":       r.Age,
		"sex":       r.Sex,
		"telephone": r.Telephone,
		"address":   r.Address,
		"kebele":    r.Kebele,
		"date":      r.Date,
		"status":    r.Status,
		"notes":     r.Notes,
	}
	if len(r.Outcomes) > 0 {
		outcomes := make(map[string]any, len(r.Outcomes))
		for k, v := range r.Outcomes {
			outcomes[k] = v
		}
		m["outcomes"] = outcomes
	}
	if r.JobID != "" {
		m["job_id"] = r.JobID
	}
	if !r.UpdatedAt.IsZero() {
		m["updated_at"] = r.UpdatedAt.UTC().Format(time.RFC3339Nano)
	}
	return m
}

func recordStruct(r *entity.CardRecord) (*structpb.Struct, error) {
	return structpb.NewStruct(recordMap(r))
}

// extractStruct renders a parsed reply with the per-field outcome next to each value.
func extractStruct(rec *extract.Record) (*structpb.Struct, error) {
	fields := make(map[string]any, len(extract.Fields))
	for _, f := range extract.Fields {
		res := rec.Result(f)
		fields[string(f)] = map[string]any{
			"value":     res.Value,
			"outcome":   string(res.Outcome),
			"candidate": res.Candidate,
		}
	}
	status := constants.JobStatusComplete
	if !rec.Complete() {
		status = constants.JobStatusNeedsReview
	}
	return structpb.NewStruct(map[string]any{
		"filename": rec.Filename,
		"status":   string(status),
		"notes":    rec.Notes(),
		"fields":   fields,
	})
}

func resultStruct(res *pipeline.Result) (*structpb.Struct, error) {
	m := map[string]any{
		"filename":   res.Filename,
		"status":     string(res.Status),
		"skipped":    res.Skipped,
		"attempts":   res.Attempts,
		"elapsed_ms": res.Elapsed.Milliseconds(),
	}
	if res.JobID != uuid.Nil {
		m["job_id"] = res.JobID.String()
	}
	if res.Card != nil {
		m["record"] = recordMap(res.Card)
	}
	return structpb.NewStruct(m)
}

func ingestStruct(enqueued int, stats ingest.DirStats) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"enqueued": enqueued,
		"scanned":  stats.Scanned,
		"matched":  stats.Matched,
		"skipped":  stats.Skipped,
		"failed":   stats.Failed,
	})
}

func stringField(s *structpb.Struct, key string) string {
	if s == nil {
		return ""
	}
	return s.GetFields()[key].GetStringValue()
}

func boolField(s *structpb.Struct, key string) bool {
	if s == nil {
		return false
	}
	return s.GetFields()[key].GetBoolValue()
}

func intField(s *structpb.Struct, key string) int {
	if s == nil {
		return 0
	}
	return int(s.GetFields()[key].GetNumberValue())
}
