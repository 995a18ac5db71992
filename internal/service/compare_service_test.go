package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gpt400/schedule-gap-api/internal/models"
	appErrors "github.com/gpt400/schedule-gap-api/pkg/errors"
)

type fakeCompareRepo struct {
	rows []models.UserSchedule
	err  error
}

func (f *fakeCompareRepo) SchedulesByUsernames(context.Context, []string) ([]models.UserSchedule, error) {
	return f.rows, f.err
}

func scheduleRow(t *testing.T, username string, active bool, mutate func(models.WeekSchedule)) models.UserSchedule {
	t.Helper()
	week := models.NewWeekSchedule()
	if mutate != nil {
		mutate(week)
	}
	raw, err := week.ToJSON()
	require.NoError(t, err)
	return models.UserSchedule{Username: username, Active: active, Schedule: raw}
}

func newCompareService(repo compareUserRepository) *CompareService {
	cache := NewCacheService(nil, nil, 0, zap.NewNop(), false)
	return NewCompareService(repo, cache, NewMetricsService(), zap.NewNop(), 0)
}

func TestFindCommonFree(t *testing.T) {
	repo := &fakeCompareRepo{rows: []models.UserSchedule{
		scheduleRow(t, "alice", true, func(w models.WeekSchedule) {
			for b := 0; b < 20; b++ {
				require.NoError(t, w.SetBlock(models.Monday, b, true))
			}
		}),
		scheduleRow(t, "bob", true, func(w models.WeekSchedule) {
			for b := 40; b < 60; b++ {
				require.NoError(t, w.SetBlock(models.Monday, b, true))
			}
		}),
	}}
	svc := newCompareService(repo)

	result, err := svc.FindCommonFree(context.Background(), CompareRequest{
		Usernames: []string{"bob", "alice"},
		Day:       "monday",
	})
	require.NoError(t, err)

	assert.Equal(t, models.Monday, result.Day)
	// usernames come back sorted regardless of selection order
	assert.Equal(t, []string{"alice", "bob"}, result.Usernames)
	require.Len(t, result.Blocks, 20)
	assert.Equal(t, 20, result.Blocks[0])

	require.Len(t, result.Runs, 1)
	assert.Equal(t, "11:00", result.Runs[0].Start)
	assert.Equal(t, "16:00", result.Runs[0].End)
	assert.Equal(t, 300, result.Runs[0].Minutes)
	require.Len(t, result.MeetingRuns, 1)
}

func TestFindCommonFreeOtherDaysUnaffected(t *testing.T) {
	repo := &fakeCompareRepo{rows: []models.UserSchedule{
		scheduleRow(t, "alice", true, func(w models.WeekSchedule) {
			require.NoError(t, w.ToggleHour(models.Monday, 0, true))
		}),
	}}
	svc := newCompareService(repo)

	result, err := svc.FindCommonFree(context.Background(), CompareRequest{
		Usernames: []string{"alice"},
		Day:       "Tuesday",
	})
	require.NoError(t, err)
	assert.Len(t, result.Blocks, models.BlocksPerDay)
}

func TestCompareNormalizesSelection(t *testing.T) {
	repo := &fakeCompareRepo{rows: []models.UserSchedule{
		scheduleRow(t, "alice", true, nil),
	}}
	svc := newCompareService(repo)

	result, err := svc.FindCommonFree(context.Background(), CompareRequest{
		Usernames: []string{" alice ", "alice", ""},
		Day:       "Friday",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, result.Usernames)
}

func TestCompareRejectsEmptySelection(t *testing.T) {
	svc := newCompareService(&fakeCompareRepo{})

	_, err := svc.FindCommonFree(context.Background(), CompareRequest{
		Usernames: []string{"  ", ""},
		Day:       "Monday",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidArgument.Code, appErrors.FromError(err).Code)
}

func TestCompareRejectsUnknownDay(t *testing.T) {
	svc := newCompareService(&fakeCompareRepo{})

	_, err := svc.FindBestHour(context.Background(), CompareRequest{
		Usernames: []string{"alice"},
		Day:       "Caturday",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidArgument.Code, appErrors.FromError(err).Code)
}

func TestCompareUnknownUser(t *testing.T) {
	repo := &fakeCompareRepo{rows: []models.UserSchedule{
		scheduleRow(t, "alice", true, nil),
	}}
	svc := newCompareService(repo)

	_, err := svc.FindCommonFree(context.Background(), CompareRequest{
		Usernames: []string{"alice", "ghost"},
		Day:       "Monday",
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "ghost")
}

func TestCompareInactiveUser(t *testing.T) {
	repo := &fakeCompareRepo{rows: []models.UserSchedule{
		scheduleRow(t, "alice", false, nil),
	}}
	svc := newCompareService(repo)

	_, err := svc.FindBestHour(context.Background(), CompareRequest{
		Usernames: []string{"alice"},
		Day:       "Monday",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidArgument.Code, appErrors.FromError(err).Code)
}

func TestFindBestHourAllTies(t *testing.T) {
	repo := &fakeCompareRepo{rows: []models.UserSchedule{
		scheduleRow(t, "alice", true, func(w models.WeekSchedule) {
			for h := 0; h < models.HoursPerDay; h++ {
				require.NoError(t, w.ToggleHour(models.Wednesday, h, true))
			}
		}),
		scheduleRow(t, "bob", true, nil),
	}}
	svc := newCompareService(repo)

	single, err := svc.FindBestHour(context.Background(), CompareRequest{
		Usernames: []string{"alice", "bob"},
		Day:       "Wednesday",
	})
	require.NoError(t, err)
	require.Len(t, single.Suggestions, 1)
	assert.Equal(t, 0, single.Suggestions[0].Hour)
	assert.Equal(t, 1, single.Suggestions[0].ConflictCount)

	all, err := svc.FindBestHour(context.Background(), CompareRequest{
		Usernames: []string{"alice", "bob"},
		Day:       "Wednesday",
		AllTies:   true,
	})
	require.NoError(t, err)
	assert.Len(t, all.Suggestions, models.HoursPerDay)
}
