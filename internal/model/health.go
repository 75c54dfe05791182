package model

import "time"

// HealthStatus is the outcome of one collector run.
type HealthStatus string

const (
	HealthSuccess HealthStatus = "success"
	HealthFailed  HealthStatus = "failed"
)

// HealthRecord is one append-only row in data_source_health.
type HealthRecord struct {
	ID                  int64        `json:"id,omitempty"`
	RunID               string       `json:"run_id,omitempty"`
	SourceName          string       `json:"source_name"`
	LastAttempt         time.Time    `json:"last_attempt"`
	LastSuccessfulFetch *time.Time   `json:"last_successful_fetch,omitempty"`
	Status              HealthStatus `json:"status"`
	ErrorMessage        *string      `json:"error_message,omitempty"`
	RecordsFetched      int          `json:"records_fetched"`
	CreatedAt           time.Time    `json:"created_at,omitempty"`
}

// RunResult is what a collector run reports back to its trigger.
type RunResult struct {
	RunID          string        `json:"run_id"`
	Success        bool          `json:"success"`
	RecordsFetched int           `json:"records_fetched"`
	Error          string        `json:"error,omitempty"`
	Files          []FileOutcome `json:"files,omitempty"`
}

// FileStatus describes what happened to one discovered file.
type FileStatus string

const (
	FileImported FileStatus = "imported"
	FileSkipped  FileStatus = "skipped"
	FileFailed   FileStatus = "failed"
)

// FileOutcome is the per-file result collected during a run.
type FileOutcome struct {
	URL         string     `json:"url"`
	Kind        EntityKind `json:"kind"`
	Status      FileStatus `json:"status"`
	RowsRead    int        `json:"rows_read"`
	RowsSkipped int        `json:"rows_skipped"`
	Imported    int        `json:"imported"`
	Inserted    int64      `json:"inserted"`
	Reason      string     `json:"reason,omitempty"`
}
