package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gpt400/schedule-gap-api/internal/models"
	"github.com/gpt400/schedule-gap-api/pkg/storage"
)

func newExportService(t *testing.T) *ExportService {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-secret", 0)
	return NewExportService(store, signer)
}

func TestWeekDatasetShape(t *testing.T) {
	week := models.NewWeekSchedule()
	require.NoError(t, week.SetBlock(models.Monday, 0, true))
	require.NoError(t, week.SetBlock(models.Sunday, 59, true))

	data := weekDataset(week)
	require.Len(t, data.Headers, 8)
	assert.Equal(t, "Time", data.Headers[0])
	assert.Equal(t, "Monday", data.Headers[1])
	assert.Equal(t, "Sunday", data.Headers[7])

	require.Len(t, data.Rows, models.BlocksPerDay)
	assert.Equal(t, "06:00", data.Rows[0]["Time"])
	assert.Equal(t, "busy", data.Rows[0]["Monday"])
	assert.Empty(t, data.Rows[0]["Tuesday"])
	assert.Equal(t, "20:45", data.Rows[59]["Time"])
	assert.Equal(t, "busy", data.Rows[59]["Sunday"])
}

func TestRenderWeekCSV(t *testing.T) {
	svc := newExportService(t)
	week := models.NewWeekSchedule()
	require.NoError(t, week.ToggleHour(models.Friday, 3, true))

	data, filename, contentType, err := svc.RenderWeek("alice", week, models.ReportFormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "schedule-alice.csv", filename)
	assert.Equal(t, "text/csv", contentType)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, models.BlocksPerDay+1)
	assert.Equal(t, "Time,Monday,Tuesday,Wednesday,Thursday,Friday,Saturday,Sunday", lines[0])
	// hour 3 starts at 09:00, block 12
	assert.Contains(t, lines[13], "09:00")
	assert.Contains(t, lines[13], "busy")
}

func TestRenderWeekPDF(t *testing.T) {
	svc := newExportService(t)
	week := models.NewWeekSchedule()

	data, filename, contentType, err := svc.RenderWeek("bob", week, models.ReportFormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "schedule-bob.pdf", filename)
	assert.Equal(t, "application/pdf", contentType)
	assert.True(t, strings.HasPrefix(string(data), "%PDF"))
}

func TestRenderWeekUnknownFormat(t *testing.T) {
	svc := newExportService(t)
	_, _, _, err := svc.RenderWeek("alice", models.NewWeekSchedule(), models.ReportFormat("xlsx"))
	require.Error(t, err)
}

func TestComparisonDataset(t *testing.T) {
	free := []*models.CommonFreeResult{
		{
			Day: models.Monday,
			Runs: []models.FreeRun{
				{Start: "10:00", End: "10:30", Minutes: 30},
			},
			MeetingRuns: []models.FreeRun{},
		},
	}
	best := []*models.BestHourResult{
		{
			Day: models.Monday,
			Suggestions: []models.HourSuggestion{
				{Hour: 4, Start: "10:00", End: "11:00", ConflictCount: 1, ConflictUsernames: []string{"bob"}},
			},
		},
	}

	data := comparisonDataset(free, best)
	require.Len(t, data.Rows, 1)
	row := data.Rows[0]
	assert.Equal(t, "Monday", row["Day"])
	assert.Equal(t, "10:00-10:30 (30m)", row["Free Runs"])
	assert.Equal(t, "none", row["One-Hour Runs"])
	assert.Equal(t, "10:00-11:00", row["Best Hour"])
	assert.Equal(t, "1", row["Conflicts"])
	assert.Equal(t, "bob", row["Conflicting Users"])
}

func TestStoreAndOpen(t *testing.T) {
	svc := newExportService(t)

	relPath, err := svc.Store("job-1", models.ReportFormatCSV, []byte("a,b\n"))
	require.NoError(t, err)
	assert.Equal(t, "job-1/comparison.csv", relPath)

	file, err := svc.OpenStored(relPath)
	require.NoError(t, err)
	defer file.Close()

	token, _, err := svc.SignToken("job-1", relPath)
	require.NoError(t, err)
	jobID, parsedPath, _, err := svc.ParseToken(token, false)
	require.NoError(t, err)
	assert.Equal(t, "job-1", jobID)
	assert.Equal(t, relPath, parsedPath)
}
