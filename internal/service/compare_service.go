package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gpt400/schedule-gap-api/internal/models"
	appErrors "github.com/gpt400/schedule-gap-api/pkg/errors"
)

// compareVersionKey versions every comparison cache key. Schedule saves bump
// it, so a comparison never reads an overlap computed before the last edit.
const compareVersionKey = "compare:version"

type compareUserRepository interface {
	SchedulesByUsernames(ctx context.Context, usernames []string) ([]models.UserSchedule, error)
}

// CompareRequest selects the users and weekday for one comparison call.
type CompareRequest struct {
	Usernames []string `json:"usernames"`
	Day       string   `json:"day"`
	AllTies   bool     `json:"all_ties"`
}

// CompareService computes shared availability across users. It is the pure
// gap engine plus schedule loading, caching and metrics.
type CompareService struct {
	repo     compareUserRepository
	cache    *CacheService
	metrics  *MetricsService
	logger   *zap.Logger
	cacheTTL time.Duration
}

// NewCompareService constructs the comparison service.
func NewCompareService(repo compareUserRepository, cache *CacheService, metrics *MetricsService, logger *zap.Logger, cacheTTL time.Duration) *CompareService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CompareService{repo: repo, cache: cache, metrics: metrics, logger: logger, cacheTTL: cacheTTL}
}

// FindCommonFree returns every block on the requested day where all selected
// users are simultaneously free, grouped into 30-minute and one-hour runs.
func (s *CompareService) FindCommonFree(ctx context.Context, req CompareRequest) (*models.CommonFreeResult, error) {
	usernames, day, err := normalizeSelection(req.Usernames, req.Day)
	if err != nil {
		return nil, err
	}

	key := s.cacheKey(ctx, "free", day, usernames, false)
	var cached models.CommonFreeResult
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, nil
	}

	snapshots, err := s.loadSnapshots(ctx, usernames, day)
	if err != nil {
		return nil, err
	}

	blocks := commonFreeBlocks(snapshots)
	result := &models.CommonFreeResult{
		Day:         day,
		Usernames:   usernames,
		Blocks:      blocks,
		Runs:        freeRuns(blocks, models.BlocksPerHour/2), // 30-minute minimum
		MeetingRuns: freeRuns(blocks, models.BlocksPerHour),
	}
	s.metrics.RecordComparison("common_free")

	if err := s.cache.Set(ctx, key, result, s.cacheTTL); err != nil {
		s.logger.Warn("failed to cache common-free result", zap.Error(err))
	}
	return result, nil
}

// FindBestHour scores all 15 hour-aligned windows and returns the one(s) with
// the fewest conflicting users. With AllTies set, every window tied on the
// minimum comes back in ascending hour order; otherwise only the earliest.
// A window is always returned, even when every user is busy all day.
func (s *CompareService) FindBestHour(ctx context.Context, req CompareRequest) (*models.BestHourResult, error) {
	usernames, day, err := normalizeSelection(req.Usernames, req.Day)
	if err != nil {
		return nil, err
	}

	key := s.cacheKey(ctx, "best-hour", day, usernames, req.AllTies)
	var cached models.BestHourResult
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, nil
	}

	snapshots, err := s.loadSnapshots(ctx, usernames, day)
	if err != nil {
		return nil, err
	}

	result := &models.BestHourResult{
		Day:         day,
		Usernames:   usernames,
		Suggestions: bestHourWindows(snapshots, req.AllTies),
	}
	s.metrics.RecordComparison("best_hour")

	if err := s.cache.Set(ctx, key, result, s.cacheTTL); err != nil {
		s.logger.Warn("failed to cache best-hour result", zap.Error(err))
	}
	return result, nil
}

// normalizeSelection validates the user set and day, deduplicates usernames
// and sorts them so the result is independent of selection order.
func normalizeSelection(usernames []string, rawDay string) ([]string, models.Weekday, error) {
	seen := make(map[string]struct{}, len(usernames))
	normalized := make([]string, 0, len(usernames))
	for _, username := range usernames {
		username = strings.TrimSpace(username)
		if username == "" {
			continue
		}
		if _, dup := seen[username]; dup {
			continue
		}
		seen[username] = struct{}{}
		normalized = append(normalized, username)
	}
	if len(normalized) == 0 {
		return nil, "", appErrors.Clone(appErrors.ErrInvalidArgument, "at least one user must be selected")
	}
	sort.Strings(normalized)

	day, err := models.ParseWeekday(rawDay)
	if err != nil {
		return nil, "", err
	}
	return normalized, day, nil
}

// loadSnapshots fetches and decodes a consistent copy of every selected
// user's day grid.
func (s *CompareService) loadSnapshots(ctx context.Context, usernames []string, day models.Weekday) ([]daySnapshot, error) {
	rows, err := s.repo.SchedulesByUsernames(ctx, usernames)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedules")
	}

	byName := make(map[string]models.UserSchedule, len(rows))
	for _, row := range rows {
		byName[row.Username] = row
	}

	snapshots := make([]daySnapshot, 0, len(usernames))
	for _, username := range usernames {
		row, ok := byName[username]
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("user %q not found", username))
		}
		if !row.Active {
			return nil, appErrors.Clone(appErrors.ErrInvalidArgument, fmt.Sprintf("user %q is inactive", username))
		}
		week, err := models.WeekScheduleFromJSON(row.Schedule)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, fmt.Sprintf("corrupt schedule for user %q", username))
		}
		grid, err := week.Day(day)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, daySnapshot{Username: username, Blocks: grid})
	}
	return snapshots, nil
}

func (s *CompareService) cacheKey(ctx context.Context, mode string, day models.Weekday, usernames []string, allTies bool) string {
	version := s.cache.Version(ctx, compareVersionKey)
	suffix := ""
	if allTies {
		suffix = ":all"
	}
	return fmt.Sprintf("compare:v%d:%s:%s:%s%s", version, mode, day, strings.Join(usernames, "|"), suffix)
}
