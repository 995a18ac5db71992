package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gpt400/schedule-gap-api/internal/models"
	appErrors "github.com/gpt400/schedule-gap-api/pkg/errors"
	"github.com/gpt400/schedule-gap-api/pkg/jobs"
	"github.com/gpt400/schedule-gap-api/pkg/storage"
)

type fakeReportRepo struct {
	mu   sync.Mutex
	jobs map[string]*models.ReportJob
}

func newFakeReportRepo() *fakeReportRepo {
	return &fakeReportRepo{jobs: make(map[string]*models.ReportJob)}
}

func (f *fakeReportRepo) Create(_ context.Context, job *models.ReportJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := *job
	f.jobs[job.ID] = &stored
	return nil
}

func (f *fakeReportRepo) GetByID(_ context.Context, id string) (*models.ReportJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *job
	return &cp, nil
}

func (f *fakeReportRepo) Update(_ context.Context, id string, params models.UpdateReportJobParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok {
		return sql.ErrNoRows
	}
	job.Status = params.Status
	if params.FilePath != nil {
		job.FilePath = params.FilePath
	}
	if params.ResultURL != nil {
		job.ResultURL = params.ResultURL
	}
	if params.ErrorMessage != nil {
		job.ErrorMessage = params.ErrorMessage
	}
	if params.StartedAt != nil {
		job.StartedAt = params.StartedAt
	}
	if params.FinishedAt != nil {
		job.FinishedAt = params.FinishedAt
	}
	return nil
}

func (f *fakeReportRepo) ListQueued(context.Context) ([]models.ReportJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	queued := make([]models.ReportJob, 0)
	for _, job := range f.jobs {
		if job.Status == models.ReportStatusQueued {
			queued = append(queued, *job)
		}
	}
	return queued, nil
}

func (f *fakeReportRepo) ListFinishedBefore(context.Context, time.Time) ([]models.ReportJob, error) {
	return nil, nil
}

func (f *fakeReportRepo) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.jobs, id)
	return nil
}

func newReportFixture(t *testing.T, compareRepo compareUserRepository) (*ReportService, *fakeReportRepo) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	exporter := NewExportService(store, storage.NewSignedURLSigner("test-secret", time.Hour))

	repo := newFakeReportRepo()
	svc := NewReportService(repo, newCompareService(compareRepo), exporter, nil, zap.NewNop(), ReportConfig{})
	return svc, repo
}

func TestCreateJobRequiresUsers(t *testing.T) {
	svc, _ := newReportFixture(t, &fakeCompareRepo{})

	_, err := svc.CreateJob(context.Background(), ReportRequest{}, "alice")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.CreateJob(context.Background(), ReportRequest{Usernames: []string{"alice"}, Format: "docx"}, "alice")
	require.Error(t, err)
}

func TestCreateJobAndProcess(t *testing.T) {
	compareRepo := &fakeCompareRepo{rows: []models.UserSchedule{
		scheduleRow(t, "alice", true, func(w models.WeekSchedule) {
			require.NoError(t, w.ToggleHour(models.Monday, 0, true))
		}),
		scheduleRow(t, "bob", true, nil),
	}}
	svc, repo := newReportFixture(t, compareRepo)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	queue := jobs.NewQueue("reports-test", svc.Process, jobs.QueueConfig{Workers: 1, Logger: zap.NewNop()})
	svc.Attach(queue)
	queue.Start(ctx)
	defer queue.Stop()

	job, err := svc.CreateJob(context.Background(), ReportRequest{
		Usernames: []string{"bob", "alice"},
		Format:    "csv",
	}, "alice")
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusQueued, job.Status)
	assert.Equal(t, models.ReportFormatCSV, job.Format)

	require.Eventually(t, func() bool {
		stored, err := repo.GetByID(context.Background(), job.ID)
		return err == nil && stored.Status == models.ReportStatusCompleted
	}, 5*time.Second, 20*time.Millisecond)

	stored, err := repo.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.FilePath)
	require.NotNil(t, stored.ResultURL)
	assert.Contains(t, *stored.ResultURL, "/reports/download?token=")

	status, err := svc.GetStatus(context.Background(), job.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusCompleted, status.Status)

	token := (*stored.ResultURL)[len("/api/v1/reports/download?token="):]
	download, err := svc.ResolveDownload(context.Background(), token)
	require.NoError(t, err)
	defer download.File.Close()
	assert.Equal(t, "text/csv", download.ContentType)
}

func TestGetStatusOwnerOnly(t *testing.T) {
	svc, repo := newReportFixture(t, &fakeCompareRepo{})
	require.NoError(t, repo.Create(context.Background(), &models.ReportJob{
		ID:        "job-1",
		Status:    models.ReportStatusQueued,
		CreatedBy: "alice",
	}))

	_, err := svc.GetStatus(context.Background(), "job-1", "bob")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.GetStatus(context.Background(), "missing", "alice")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestProcessMarksFailure(t *testing.T) {
	compareRepo := &fakeCompareRepo{err: errors.New("db down")}
	svc, repo := newReportFixture(t, compareRepo)

	require.NoError(t, repo.Create(context.Background(), &models.ReportJob{
		ID:        "job-1",
		Status:    models.ReportStatusQueued,
		Format:    models.ReportFormatPDF,
		Usernames: []byte(`["alice"]`),
		CreatedBy: "alice",
	}))

	err := svc.Process(context.Background(), jobs.Job{ID: "job-1"})
	require.Error(t, err)

	stored, err := repo.GetByID(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusFailed, stored.Status)
	require.NotNil(t, stored.ErrorMessage)
}

func TestResolveDownloadRejectsBadToken(t *testing.T) {
	svc, _ := newReportFixture(t, &fakeCompareRepo{})

	_, err := svc.ResolveDownload(context.Background(), "bogus")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}
