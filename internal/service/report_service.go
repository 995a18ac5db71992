package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gpt400/schedule-gap-api/internal/models"
	appErrors "github.com/gpt400/schedule-gap-api/pkg/errors"
	"github.com/gpt400/schedule-gap-api/pkg/jobs"
)

type reportJobRepository interface {
	Create(ctx context.Context, job *models.ReportJob) error
	GetByID(ctx context.Context, id string) (*models.ReportJob, error)
	Update(ctx context.Context, id string, params models.UpdateReportJobParams) error
	ListQueued(ctx context.Context) ([]models.ReportJob, error)
	ListFinishedBefore(ctx context.Context, cutoff time.Time) ([]models.ReportJob, error)
	Delete(ctx context.Context, id string) error
}

// ReportRequest is the payload to queue a whole-week comparison report.
type ReportRequest struct {
	Usernames []string `json:"usernames" validate:"required,min=1,dive,required"`
	Format    string   `json:"format" validate:"omitempty,oneof=pdf csv"`
	AllTies   bool     `json:"all_ties"`
}

// ReportConfig controls report generation and retention.
type ReportConfig struct {
	DownloadPath string
	ResultTTL    time.Duration
}

// ReportDownload is a resolved, verified download.
type ReportDownload struct {
	File        *os.File
	Filename    string
	ContentType string
}

// ReportService queues comparison report jobs, processes them on the worker
// pool and serves the resulting files through signed URLs.
type ReportService struct {
	repo      reportJobRepository
	compare   *CompareService
	exporter  *ExportService
	queue     *jobs.Queue
	validator *validator.Validate
	logger    *zap.Logger
	config    ReportConfig
}

// NewReportService constructs the report service. Attach the queue afterwards;
// the queue handler is the service's own Process method.
func NewReportService(repo reportJobRepository, compare *CompareService, exporter *ExportService, validate *validator.Validate, logger *zap.Logger, config ReportConfig) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.DownloadPath == "" {
		config.DownloadPath = "/api/v1/reports/download"
	}
	if config.ResultTTL <= 0 {
		config.ResultTTL = 24 * time.Hour
	}
	return &ReportService{
		repo:      repo,
		compare:   compare,
		exporter:  exporter,
		validator: validate,
		logger:    logger,
		config:    config,
	}
}

// Attach wires the worker queue in after construction.
func (s *ReportService) Attach(queue *jobs.Queue) {
	s.queue = queue
}

// CreateJob validates the request, persists a queued job row and enqueues it.
func (s *ReportService) CreateJob(ctx context.Context, req ReportRequest, createdBy string) (*models.ReportJob, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid report request")
	}

	usernames, _, err := normalizeSelection(req.Usernames, string(models.Monday))
	if err != nil {
		return nil, err
	}

	format := models.ReportFormat(req.Format)
	if format == "" {
		format = models.ReportFormatPDF
	}

	rawUsernames, err := json.Marshal(usernames)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode selection")
	}

	job := &models.ReportJob{
		ID:        uuid.NewString(),
		Status:    models.ReportStatusQueued,
		Format:    format,
		Usernames: rawUsernames,
		AllTies:   req.AllTies,
		CreatedBy: createdBy,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create report job")
	}

	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: "comparison_report"}); err != nil {
		s.logger.Error("failed to enqueue report job", zap.String("job_id", job.ID), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue report job")
	}

	s.logger.Info("report job queued", zap.String("job_id", job.ID), zap.String("created_by", createdBy))
	return job, nil
}

// GetStatus returns a job's state. Only its creator may see it.
func (s *ReportService) GetStatus(ctx context.Context, id, requester string) (*models.ReportJob, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report job")
	}
	if job.CreatedBy != requester {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "report belongs to another user")
	}
	return job, nil
}

// ResolveDownload validates a signed token and opens the stored file.
func (s *ReportService) ResolveDownload(ctx context.Context, token string) (*ReportDownload, error) {
	jobID, relPath, _, err := s.exporter.ParseToken(token, false)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid download token")
	}

	job, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report job")
	}
	if job.Status != models.ReportStatusCompleted || job.FilePath == nil || *job.FilePath != relPath {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "report file is not available")
	}

	file, err := s.exporter.OpenStored(relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "report file is gone")
	}

	contentType := "application/pdf"
	if job.Format == models.ReportFormatCSV {
		contentType = "text/csv"
	}
	return &ReportDownload{
		File:        file,
		Filename:    fmt.Sprintf("comparison-%s.%s", job.ID, job.Format),
		ContentType: contentType,
	}, nil
}

// Process is the queue handler: it runs the whole-week comparison for the
// job's user set, renders the table and stores the file behind a signed URL.
func (s *ReportService) Process(ctx context.Context, job jobs.Job) error {
	record, err := s.repo.GetByID(ctx, job.ID)
	if err != nil {
		return fmt.Errorf("load report job %s: %w", job.ID, err)
	}

	now := time.Now().UTC()
	if err := s.repo.Update(ctx, record.ID, models.UpdateReportJobParams{
		Status:    models.ReportStatusProcessing,
		StartedAt: &now,
	}); err != nil {
		return fmt.Errorf("mark report job %s processing: %w", record.ID, err)
	}

	if err := s.generate(ctx, record); err != nil {
		message := err.Error()
		finished := time.Now().UTC()
		if updateErr := s.repo.Update(ctx, record.ID, models.UpdateReportJobParams{
			Status:       models.ReportStatusFailed,
			ErrorMessage: &message,
			FinishedAt:   &finished,
		}); updateErr != nil {
			s.logger.Error("failed to mark report job failed", zap.String("job_id", record.ID), zap.Error(updateErr))
		}
		return fmt.Errorf("generate report %s: %w", record.ID, err)
	}
	return nil
}

func (s *ReportService) generate(ctx context.Context, record *models.ReportJob) error {
	var usernames []string
	if err := json.Unmarshal(record.Usernames, &usernames); err != nil {
		return fmt.Errorf("decode selection: %w", err)
	}

	free := make([]*models.CommonFreeResult, 0, len(models.Weekdays()))
	best := make([]*models.BestHourResult, 0, len(models.Weekdays()))
	for _, day := range models.Weekdays() {
		req := CompareRequest{Usernames: usernames, Day: string(day), AllTies: record.AllTies}

		freeResult, err := s.compare.FindCommonFree(ctx, req)
		if err != nil {
			return fmt.Errorf("common free for %s: %w", day, err)
		}
		free = append(free, freeResult)

		bestResult, err := s.compare.FindBestHour(ctx, req)
		if err != nil {
			return fmt.Errorf("best hour for %s: %w", day, err)
		}
		best = append(best, bestResult)
	}

	rendered, err := s.exporter.RenderComparison(free, best, record.Format)
	if err != nil {
		return err
	}

	relPath, err := s.exporter.Store(record.ID, record.Format, rendered)
	if err != nil {
		return fmt.Errorf("store report: %w", err)
	}

	token, _, err := s.exporter.SignToken(record.ID, relPath)
	if err != nil {
		return fmt.Errorf("sign download token: %w", err)
	}
	resultURL := fmt.Sprintf("%s?token=%s", s.config.DownloadPath, token)

	finished := time.Now().UTC()
	if err := s.repo.Update(ctx, record.ID, models.UpdateReportJobParams{
		Status:     models.ReportStatusCompleted,
		FilePath:   &relPath,
		ResultURL:  &resultURL,
		FinishedAt: &finished,
	}); err != nil {
		return fmt.Errorf("mark report job completed: %w", err)
	}

	s.logger.Info("report job completed", zap.String("job_id", record.ID), zap.String("file", relPath))
	return nil
}

// Recover re-enqueues jobs that were queued when the process last stopped.
func (s *ReportService) Recover(ctx context.Context) error {
	queued, err := s.repo.ListQueued(ctx)
	if err != nil {
		return fmt.Errorf("list queued report jobs: %w", err)
	}
	for _, job := range queued {
		if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: "comparison_report"}); err != nil {
			s.logger.Error("failed to requeue report job", zap.String("job_id", job.ID), zap.Error(err))
		}
	}
	if len(queued) > 0 {
		s.logger.Info("requeued pending report jobs", zap.Int("count", len(queued)))
	}
	return nil
}

// CleanupExpired drops report files past their TTL and the finished job rows
// that pointed at them.
func (s *ReportService) CleanupExpired(ctx context.Context) error {
	deleted, err := s.exporter.CleanupStored(s.config.ResultTTL)
	if err != nil {
		return err
	}
	if len(deleted) > 0 {
		s.logger.Info("removed expired report files", zap.Int("count", len(deleted)))
	}

	cutoff := time.Now().UTC().Add(-s.config.ResultTTL)
	finished, err := s.repo.ListFinishedBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("list finished report jobs: %w", err)
	}
	for _, job := range finished {
		if job.FilePath != nil {
			if err := s.exporter.DeleteStored(*job.FilePath); err != nil {
				s.logger.Warn("failed to delete report file", zap.String("job_id", job.ID), zap.Error(err))
			}
		}
		if err := s.repo.Delete(ctx, job.ID); err != nil {
			s.logger.Warn("failed to delete report job row", zap.String("job_id", job.ID), zap.Error(err))
		}
	}
	return nil
}
