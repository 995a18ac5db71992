package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/gpt400/schedule-gap-api/internal/models"
)

func reportColumns() []string {
	return []string{"id", "status", "format", "usernames", "all_ties", "file_path", "result_url", "error_message", "created_by", "created_at", "started_at", "finished_at"}
}

func TestReportRepositoryCreateAndGet(t *testing.T) {
	db, mock, cleanup := newUserRepoMock(t)
	defer cleanup()

	repo := NewReportRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO report_jobs")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	job := &models.ReportJob{
		ID:        "job-1",
		Status:    models.ReportStatusQueued,
		Format:    models.ReportFormatPDF,
		Usernames: []byte(`["alice","bob"]`),
		CreatedBy: "alice",
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, repo.Create(context.Background(), job))

	rows := sqlmock.NewRows(reportColumns()).
		AddRow("job-1", "QUEUED", "pdf", []byte(`["alice","bob"]`), false, nil, nil, nil, "alice", time.Now(), nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM report_jobs WHERE id = $1")).
		WithArgs("job-1").
		WillReturnRows(rows)

	found, err := repo.GetByID(context.Background(), "job-1")
	require.NoError(t, err)
	require.Equal(t, models.ReportStatusQueued, found.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryUpdatePartialFields(t *testing.T) {
	db, mock, cleanup := newUserRepoMock(t)
	defer cleanup()

	repo := NewReportRepository(db)
	started := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE report_jobs SET status = $1, started_at = $2 WHERE id = $3")).
		WithArgs(string(models.ReportStatusProcessing), started, "job-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Update(context.Background(), "job-1", models.UpdateReportJobParams{
		Status:    models.ReportStatusProcessing,
		StartedAt: &started,
	}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryUpdateCompleted(t *testing.T) {
	db, mock, cleanup := newUserRepoMock(t)
	defer cleanup()

	repo := NewReportRepository(db)
	filePath := "job-1/comparison.pdf"
	resultURL := "/api/v1/reports/download?token=abc"
	finished := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE report_jobs SET status = $1, file_path = $2, result_url = $3, finished_at = $4 WHERE id = $5")).
		WithArgs(string(models.ReportStatusCompleted), filePath, resultURL, finished, "job-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Update(context.Background(), "job-1", models.UpdateReportJobParams{
		Status:     models.ReportStatusCompleted,
		FilePath:   &filePath,
		ResultURL:  &resultURL,
		FinishedAt: &finished,
	}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryUpdateMissingJob(t *testing.T) {
	db, mock, cleanup := newUserRepoMock(t)
	defer cleanup()

	repo := NewReportRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE report_jobs SET status = $1")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), "ghost", models.UpdateReportJobParams{Status: models.ReportStatusFailed})
	require.Error(t, err)
}

func TestReportRepositoryListQueued(t *testing.T) {
	db, mock, cleanup := newUserRepoMock(t)
	defer cleanup()

	repo := NewReportRepository(db)
	rows := sqlmock.NewRows(reportColumns()).
		AddRow("job-1", "QUEUED", "csv", []byte(`["alice"]`), false, nil, nil, nil, "alice", time.Now(), nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM report_jobs WHERE status = $1 ORDER BY created_at")).
		WithArgs(string(models.ReportStatusQueued)).
		WillReturnRows(rows)

	jobs, err := repo.ListQueued(context.Background())
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryListFinishedBeforeAndDelete(t *testing.T) {
	db, mock, cleanup := newUserRepoMock(t)
	defer cleanup()

	repo := NewReportRepository(db)
	cutoff := time.Now().UTC()
	finished := cutoff.Add(-2 * time.Hour)
	path := "job-1/comparison.pdf"

	rows := sqlmock.NewRows(reportColumns()).
		AddRow("job-1", "COMPLETED", "pdf", []byte(`["alice"]`), false, path, nil, nil, "alice", finished.Add(-time.Minute), finished.Add(-time.Minute), finished)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM report_jobs")).
		WithArgs(string(models.ReportStatusCompleted), string(models.ReportStatusFailed), cutoff).
		WillReturnRows(rows)

	jobs, err := repo.ListFinishedBefore(context.Background(), cutoff)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.NotNil(t, jobs[0].FilePath)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM report_jobs WHERE id = $1")).
		WithArgs("job-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Delete(context.Background(), "job-1"))

	require.NoError(t, mock.ExpectationsWereMet())
}
