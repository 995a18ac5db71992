package service

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gpt400/schedule-gap-api/internal/models"
	"github.com/gpt400/schedule-gap-api/pkg/export"
	appErrors "github.com/gpt400/schedule-gap-api/pkg/errors"
	"github.com/gpt400/schedule-gap-api/pkg/storage"
)

// ExportService renders week grids and comparison tables into CSV or PDF and
// manages stored report files plus their signed download tokens.
type ExportService struct {
	pdf     *export.PDFExporter
	csv     *export.CSVExporter
	storage *storage.LocalStorage
	signer  *storage.SignedURLSigner
}

// NewExportService constructs the export service.
func NewExportService(store *storage.LocalStorage, signer *storage.SignedURLSigner) *ExportService {
	return &ExportService{
		pdf:     export.NewPDFExporter(),
		csv:     export.NewCSVExporter(),
		storage: store,
		signer:  signer,
	}
}

// RenderWeek renders one user's full grid. Supported formats: csv, pdf.
func (s *ExportService) RenderWeek(username string, week models.WeekSchedule, format models.ReportFormat) ([]byte, string, string, error) {
	data := weekDataset(week)
	title := fmt.Sprintf("Weekly schedule - %s", username)

	switch format {
	case models.ReportFormatCSV:
		raw, err := s.csv.Render(data)
		if err != nil {
			return nil, "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return raw, fmt.Sprintf("schedule-%s.csv", username), "text/csv", nil
	case models.ReportFormatPDF:
		raw, err := s.pdf.Render(data, title)
		if err != nil {
			return nil, "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return raw, fmt.Sprintf("schedule-%s.pdf", username), "application/pdf", nil
	default:
		return nil, "", "", appErrors.Clone(appErrors.ErrInvalidArgument, fmt.Sprintf("unsupported format %q", format))
	}
}

// RenderComparison renders the whole-week comparison table for a report job.
func (s *ExportService) RenderComparison(free []*models.CommonFreeResult, best []*models.BestHourResult, format models.ReportFormat) ([]byte, error) {
	data := comparisonDataset(free, best)

	switch format {
	case models.ReportFormatCSV:
		raw, err := s.csv.Render(data)
		if err != nil {
			return nil, fmt.Errorf("render comparison csv: %w", err)
		}
		return raw, nil
	case models.ReportFormatPDF:
		raw, err := s.pdf.Render(data, "Shared schedule comparison")
		if err != nil {
			return nil, fmt.Errorf("render comparison pdf: %w", err)
		}
		return raw, nil
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
}

// Store persists rendered report bytes under the job's directory.
func (s *ExportService) Store(jobID string, format models.ReportFormat, data []byte) (string, error) {
	relPath := fmt.Sprintf("%s/comparison.%s", jobID, format)
	if _, err := s.storage.Save(relPath, data); err != nil {
		return "", err
	}
	return relPath, nil
}

// OpenStored returns a read handle for a stored report file.
func (s *ExportService) OpenStored(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// DeleteStored removes a stored report file.
func (s *ExportService) DeleteStored(relPath string) error {
	return s.storage.Delete(relPath)
}

// CleanupStored removes report files older than the TTL.
func (s *ExportService) CleanupStored(ttl time.Duration) ([]string, error) {
	return s.storage.CleanupOlderThan(ttl)
}

// SignToken returns a download token for a stored report.
func (s *ExportService) SignToken(jobID, relPath string) (string, time.Time, error) {
	return s.signer.Generate(jobID, relPath)
}

// ParseToken validates a download token.
func (s *ExportService) ParseToken(token string, allowExpired bool) (string, string, time.Time, error) {
	return s.signer.Parse(token, allowExpired)
}

// weekDataset lays the grid out like the editor: one row per 15-minute
// block, one column per weekday, "busy" marks.
func weekDataset(week models.WeekSchedule) export.Dataset {
	headers := []string{"Time"}
	for _, day := range models.Weekdays() {
		headers = append(headers, string(day))
	}

	rows := make([]map[string]string, 0, models.BlocksPerDay)
	for b := 0; b < models.BlocksPerDay; b++ {
		row := map[string]string{"Time": models.BlockLabel(b)}
		for _, day := range models.Weekdays() {
			if week[day][b] {
				row[string(day)] = "busy"
			}
		}
		rows = append(rows, row)
	}
	return export.Dataset{Headers: headers, Rows: rows}
}

// comparisonDataset summarises one row per weekday.
func comparisonDataset(free []*models.CommonFreeResult, best []*models.BestHourResult) export.Dataset {
	headers := []string{"Day", "Free Runs", "One-Hour Runs", "Best Hour", "Conflicts", "Conflicting Users"}

	bestByDay := make(map[models.Weekday]*models.BestHourResult, len(best))
	for _, result := range best {
		bestByDay[result.Day] = result
	}

	rows := make([]map[string]string, 0, len(free))
	for _, result := range free {
		row := map[string]string{
			"Day":           string(result.Day),
			"Free Runs":     formatRuns(result.Runs),
			"One-Hour Runs": formatRuns(result.MeetingRuns),
		}
		if b, ok := bestByDay[result.Day]; ok && len(b.Suggestions) > 0 {
			top := b.Suggestions[0]
			row["Best Hour"] = fmt.Sprintf("%s-%s", top.Start, top.End)
			row["Conflicts"] = fmt.Sprintf("%d", top.ConflictCount)
			row["Conflicting Users"] = strings.Join(top.ConflictUsernames, ", ")
		}
		rows = append(rows, row)
	}
	return export.Dataset{Headers: headers, Rows: rows}
}

func formatRuns(runs []models.FreeRun) string {
	if len(runs) == 0 {
		return "none"
	}
	parts := make([]string, 0, len(runs))
	for _, run := range runs {
		parts = append(parts, fmt.Sprintf("%s-%s (%dm)", run.Start, run.End, run.Minutes))
	}
	return strings.Join(parts, "; ")
}
