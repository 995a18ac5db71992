package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// ReportStatus tracks the lifecycle of an async comparison report.
type ReportStatus string

const (
	ReportStatusQueued     ReportStatus = "QUEUED"
	ReportStatusProcessing ReportStatus = "PROCESSING"
	ReportStatusCompleted  ReportStatus = "COMPLETED"
	ReportStatusFailed     ReportStatus = "FAILED"
)

// ReportFormat selects the rendered output.
type ReportFormat string

const (
	ReportFormatPDF ReportFormat = "pdf"
	ReportFormatCSV ReportFormat = "csv"
)

// UpdateReportJobParams carries the mutable fields of a job row. Nil fields
// are left untouched.
type UpdateReportJobParams struct {
	Status       ReportStatus
	FilePath     *string
	ResultURL    *string
	ErrorMessage *string
	StartedAt    *time.Time
	FinishedAt   *time.Time
}

// ReportJob is a queued whole-week comparison report for a set of users.
type ReportJob struct {
	ID           string         `db:"id" json:"id"`
	Status       ReportStatus   `db:"status" json:"status"`
	Format       ReportFormat   `db:"format" json:"format"`
	Usernames    types.JSONText `db:"usernames" json:"-"`
	AllTies      bool           `db:"all_ties" json:"all_ties"`
	FilePath     *string        `db:"file_path" json:"-"`
	ResultURL    *string        `db:"result_url" json:"result_url,omitempty"`
	ErrorMessage *string        `db:"error_message" json:"error,omitempty"`
	CreatedBy    string         `db:"created_by" json:"created_by"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	StartedAt    *time.Time     `db:"started_at" json:"started_at,omitempty"`
	FinishedAt   *time.Time     `db:"finished_at" json:"finished_at,omitempty"`
}
