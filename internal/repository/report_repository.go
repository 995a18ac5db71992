package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/gpt400/schedule-gap-api/internal/models"
)

// ReportRepository provides data access for queued comparison reports.
type ReportRepository struct {
	db *sqlx.DB
}

// NewReportRepository creates a new report repository.
func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// Create inserts a new job row.
func (r *ReportRepository) Create(ctx context.Context, job *models.ReportJob) error {
	query := `
		INSERT INTO report_jobs (id, status, format, usernames, all_ties, created_by, created_at)
		VALUES (:id, :status, :format, :usernames, :all_ties, :created_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("insert report job: %w", err)
	}
	return nil
}

// GetByID fetches one job row.
func (r *ReportRepository) GetByID(ctx context.Context, id string) (*models.ReportJob, error) {
	var job models.ReportJob
	query := `SELECT * FROM report_jobs WHERE id = $1`
	if err := r.db.GetContext(ctx, &job, query, id); err != nil {
		return nil, fmt.Errorf("find report job: %w", err)
	}
	return &job, nil
}

// Update writes the job's status plus whichever optional fields are set.
func (r *ReportRepository) Update(ctx context.Context, id string, params models.UpdateReportJobParams) error {
	sets := []string{"status = $1"}
	args := []interface{}{params.Status}
	argIndex := 2

	appendSet := func(column string, value interface{}) {
		sets = append(sets, fmt.Sprintf("%s = $%d", column, argIndex))
		args = append(args, value)
		argIndex++
	}
	if params.FilePath != nil {
		appendSet("file_path", *params.FilePath)
	}
	if params.ResultURL != nil {
		appendSet("result_url", *params.ResultURL)
	}
	if params.ErrorMessage != nil {
		appendSet("error_message", *params.ErrorMessage)
	}
	if params.StartedAt != nil {
		appendSet("started_at", *params.StartedAt)
	}
	if params.FinishedAt != nil {
		appendSet("finished_at", *params.FinishedAt)
	}

	query := fmt.Sprintf("UPDATE report_jobs SET %s WHERE id = $%d", strings.Join(sets, ", "), argIndex)
	args = append(args, id)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update report job: %w", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return fmt.Errorf("update report job: job %q not found", id)
	}
	return nil
}

// ListQueued returns jobs still waiting for a worker, oldest first.
func (r *ReportRepository) ListQueued(ctx context.Context) ([]models.ReportJob, error) {
	jobs := []models.ReportJob{}
	query := `SELECT * FROM report_jobs WHERE status = $1 ORDER BY created_at`
	if err := r.db.SelectContext(ctx, &jobs, query, models.ReportStatusQueued); err != nil {
		return nil, fmt.Errorf("list queued report jobs: %w", err)
	}
	return jobs, nil
}

// ListFinishedBefore returns completed or failed jobs finished before the cutoff.
func (r *ReportRepository) ListFinishedBefore(ctx context.Context, cutoff time.Time) ([]models.ReportJob, error) {
	jobs := []models.ReportJob{}
	query := `
		SELECT * FROM report_jobs
		WHERE status IN ($1, $2) AND finished_at IS NOT NULL AND finished_at < $3
		ORDER BY finished_at`
	if err := r.db.SelectContext(ctx, &jobs, query, models.ReportStatusCompleted, models.ReportStatusFailed, cutoff); err != nil {
		return nil, fmt.Errorf("list finished report jobs: %w", err)
	}
	return jobs, nil
}

// Delete removes a job row.
func (r *ReportRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM report_jobs WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete report job: %w", err)
	}
	return nil
}
