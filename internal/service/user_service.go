package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/gpt400/schedule-gap-api/internal/models"
	appErrors "github.com/gpt400/schedule-gap-api/pkg/errors"
)

type userRepository interface {
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	ListActive(ctx context.Context) ([]models.User, error)
	Deactivate(ctx context.Context, username string) error
}

// UserService exposes lookup and listing for the comparison picker.
type UserService struct {
	repo   userRepository
	logger *zap.Logger
}

// NewUserService constructs the user service.
func NewUserService(repo userRepository, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{repo: repo, logger: logger}
}

// Get returns public info for one user.
func (s *UserService) Get(ctx context.Context, username string) (*models.UserInfo, error) {
	user, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("user %q not found", username))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return &models.UserInfo{ID: user.ID, Username: user.Username, Semester: user.Semester}, nil
}

// List returns users matching the filter with pagination metadata.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.UserInfo, *models.Pagination, error) {
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}

	infos := make([]models.UserInfo, 0, len(users))
	for _, user := range users {
		infos = append(infos, models.UserInfo{ID: user.ID, Username: user.Username, Semester: user.Semester})
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return infos, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Roster groups active users by semester tag, the shape the comparison
// selection screen works with.
func (s *UserService) Roster(ctx context.Context) ([]models.SemesterGroup, error) {
	users, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}

	grouped := make(map[string][]models.UserInfo)
	for _, user := range users {
		grouped[user.Semester] = append(grouped[user.Semester], models.UserInfo{
			ID:       user.ID,
			Username: user.Username,
			Semester: user.Semester,
		})
	}

	semesters := make([]string, 0, len(grouped))
	for semester := range grouped {
		semesters = append(semesters, semester)
	}
	sort.Strings(semesters)

	groups := make([]models.SemesterGroup, 0, len(semesters))
	for _, semester := range semesters {
		members := grouped[semester]
		sort.Slice(members, func(i, j int) bool { return members[i].Username < members[j].Username })
		groups = append(groups, models.SemesterGroup{Semester: semester, Users: members})
	}
	return groups, nil
}

// Deactivate soft-deletes a user; schedules are never removed by this core.
func (s *UserService) Deactivate(ctx context.Context, username string) error {
	if _, err := s.Get(ctx, username); err != nil {
		return err
	}
	if err := s.repo.Deactivate(ctx, username); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate user")
	}
	return nil
}
