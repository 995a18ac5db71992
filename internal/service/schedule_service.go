package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/gpt400/schedule-gap-api/internal/models"
	appErrors "github.com/gpt400/schedule-gap-api/pkg/errors"
)

type scheduleUserRepository interface {
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	UpdateSchedule(ctx context.Context, username string, schedule types.JSONText, updatedAt time.Time) error
}

// ScheduleService applies grid edits to a user's week and writes them
// through immediately, so the next comparison reads the saved state.
type ScheduleService struct {
	repo   scheduleUserRepository
	cache  *CacheService
	logger *zap.Logger
}

// NewScheduleService constructs the schedule service.
func NewScheduleService(repo scheduleUserRepository, cache *CacheService, logger *zap.Logger) *ScheduleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleService{repo: repo, cache: cache, logger: logger}
}

// Week returns the full seven-day grid for a user.
func (s *ScheduleService) Week(ctx context.Context, username string) (models.WeekSchedule, error) {
	week, _, err := s.loadWeek(ctx, username)
	return week, err
}

// DayGrid returns a single weekday's grid.
func (s *ScheduleService) DayGrid(ctx context.Context, username, rawDay string) (models.DaySchedule, error) {
	day, err := models.ParseWeekday(rawDay)
	if err != nil {
		return nil, err
	}
	week, _, err := s.loadWeek(ctx, username)
	if err != nil {
		return nil, err
	}
	return week.Day(day)
}

// SetBlock marks one 15-minute block busy or free and persists the week.
func (s *ScheduleService) SetBlock(ctx context.Context, username, rawDay string, block int, busy bool) (models.DaySchedule, error) {
	day, err := models.ParseWeekday(rawDay)
	if err != nil {
		return nil, err
	}
	week, _, err := s.loadWeek(ctx, username)
	if err != nil {
		return nil, err
	}
	if err := week.SetBlock(day, block, busy); err != nil {
		return nil, err
	}
	if err := s.persist(ctx, username, week); err != nil {
		return nil, err
	}
	return week.Day(day)
}

// ToggleHour sets all four blocks of an hour in one edit and persists the
// week. Validation happens before any flag changes, so the edit either fully
// applies or fully fails.
func (s *ScheduleService) ToggleHour(ctx context.Context, username, rawDay string, hour int, busy bool) (models.DaySchedule, error) {
	day, err := models.ParseWeekday(rawDay)
	if err != nil {
		return nil, err
	}
	week, _, err := s.loadWeek(ctx, username)
	if err != nil {
		return nil, err
	}
	if err := week.ToggleHour(day, hour, busy); err != nil {
		return nil, err
	}
	if err := s.persist(ctx, username, week); err != nil {
		return nil, err
	}
	return week.Day(day)
}

func (s *ScheduleService) loadWeek(ctx context.Context, username string) (models.WeekSchedule, *models.User, error) {
	user, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("user %q not found", username))
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if !user.Active {
		return nil, nil, appErrors.Clone(appErrors.ErrInactiveAccount, "account is inactive")
	}

	week, err := models.WeekScheduleFromJSON(user.Schedule)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "corrupt stored schedule")
	}
	return week, user, nil
}

func (s *ScheduleService) persist(ctx context.Context, username string, week models.WeekSchedule) error {
	raw, err := week.ToJSON()
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to serialize schedule")
	}
	if err := s.repo.UpdateSchedule(ctx, username, raw, time.Now().UTC()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save schedule")
	}

	// Invalidate cached comparisons that may include this user.
	if _, err := s.cache.Bump(ctx, compareVersionKey); err != nil {
		s.logger.Warn("failed to bump compare cache version", zap.String("username", username), zap.Error(err))
	}
	return nil
}
