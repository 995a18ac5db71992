package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/gpt400/schedule-gap-api/internal/models"
	appErrors "github.com/gpt400/schedule-gap-api/pkg/errors"
)

type fakeAuthRepo struct {
	users  map[string]*models.User
	tokens map[string]*models.RefreshToken

	lastLoginCalls int
}

func newFakeAuthRepo() *fakeAuthRepo {
	return &fakeAuthRepo{
		users:  make(map[string]*models.User),
		tokens: make(map[string]*models.RefreshToken),
	}
}

func (f *fakeAuthRepo) FindByUsername(_ context.Context, username string) (*models.User, error) {
	user, ok := f.users[username]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func (f *fakeAuthRepo) FindByID(_ context.Context, id string) (*models.User, error) {
	for _, user := range f.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeAuthRepo) Create(_ context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = "user-" + user.Username
	}
	f.users[user.Username] = user
	return nil
}

func (f *fakeAuthRepo) UpdateLastLogin(context.Context, string, time.Time) error {
	f.lastLoginCalls++
	return nil
}

func (f *fakeAuthRepo) CreateRefreshToken(_ context.Context, token *models.RefreshToken) error {
	f.tokens[token.Token] = token
	return nil
}

func (f *fakeAuthRepo) FindRefreshToken(_ context.Context, token string) (*models.RefreshToken, error) {
	stored, ok := f.tokens[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return stored, nil
}

func (f *fakeAuthRepo) RevokeRefreshToken(_ context.Context, id string, revokedAt time.Time) error {
	for _, token := range f.tokens {
		if token.ID == id {
			token.Revoked = true
			token.RevokedAt = &revokedAt
		}
	}
	return nil
}

func (f *fakeAuthRepo) RevokeUserRefreshTokens(_ context.Context, userID string) error {
	now := time.Now().UTC()
	for _, token := range f.tokens {
		if token.UserID == userID {
			token.Revoked = true
			token.RevokedAt = &now
		}
	}
	return nil
}

func newAuthService(repo authUserRepository) *AuthService {
	return NewAuthService(repo, nil, zap.NewNop(), AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "schedule-gap-api-test",
	})
}

func TestRegisterCreatesAllFreeSchedule(t *testing.T) {
	repo := newFakeAuthRepo()
	svc := newAuthService(repo)

	res, err := svc.Register(context.Background(), RegisterRequest{
		Username: "alice",
		Password: "secret1",
		Semester: "Fall 2025",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.Equal(t, "alice", res.User.Username)

	stored := repo.users["alice"]
	require.NotNil(t, stored)
	assert.True(t, stored.Active)

	week, err := models.WeekScheduleFromJSON(stored.Schedule)
	require.NoError(t, err)
	for _, day := range models.Weekdays() {
		for _, busy := range week[day] {
			assert.False(t, busy)
		}
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	repo := newFakeAuthRepo()
	svc := newAuthService(repo)

	_, err := svc.Register(context.Background(), RegisterRequest{Username: "alice", Password: "secret1", Semester: "Fall 2025"})
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), RegisterRequest{Username: "alice", Password: "other12", Semester: "Spring 2026"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestRegisterRejectsBadSemester(t *testing.T) {
	svc := newAuthService(newFakeAuthRepo())

	for _, semester := range []string{"Winter 2025", "Fall25", "fall 2025", "Fall  2025"} {
		_, err := svc.Register(context.Background(), RegisterRequest{Username: "alice", Password: "secret1", Semester: semester})
		require.Error(t, err, "semester %q", semester)
		assert.Equal(t, appErrors.ErrInvalidArgument.Code, appErrors.FromError(err).Code)
	}
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	svc := newAuthService(newFakeAuthRepo())

	_, err := svc.Register(context.Background(), RegisterRequest{Username: "alice", Password: "abc", Semester: "Fall 2025"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestLogin(t *testing.T) {
	repo := newFakeAuthRepo()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.MinCost)
	require.NoError(t, err)
	repo.users["alice"] = &models.User{ID: "user-1", Username: "alice", Semester: "Fall 2025", PasswordHash: string(hash), Active: true}
	svc := newAuthService(repo)

	res, err := svc.Login(context.Background(), models.LoginRequest{Username: "alice", Password: "secret1"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.Equal(t, 1, repo.lastLoginCalls)

	claims, err := svc.ValidateToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "Fall 2025", claims.Semester)
}

func TestLoginWrongPassword(t *testing.T) {
	repo := newFakeAuthRepo()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.MinCost)
	require.NoError(t, err)
	repo.users["alice"] = &models.User{ID: "user-1", Username: "alice", PasswordHash: string(hash), Active: true}
	svc := newAuthService(repo)

	_, err = svc.Login(context.Background(), models.LoginRequest{Username: "alice", Password: "wrong12"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)

	// unknown usernames fail with the same error
	_, err = svc.Login(context.Background(), models.LoginRequest{Username: "ghost", Password: "secret1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestLoginInactiveAccount(t *testing.T) {
	repo := newFakeAuthRepo()
	repo.users["alice"] = &models.User{ID: "user-1", Username: "alice", PasswordHash: "x", Active: false}
	svc := newAuthService(repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "alice", Password: "secret1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestRefreshTokenRotation(t *testing.T) {
	repo := newFakeAuthRepo()
	svc := newAuthService(repo)

	registered, err := svc.Register(context.Background(), RegisterRequest{Username: "alice", Password: "secret1", Semester: "Fall 2025"})
	require.NoError(t, err)

	refreshed, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: registered.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, registered.RefreshToken, refreshed.RefreshToken)

	// the used token is revoked and cannot be replayed
	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: registered.RefreshToken})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestLogoutRevokesAllSessions(t *testing.T) {
	repo := newFakeAuthRepo()
	svc := newAuthService(repo)

	registered, err := svc.Register(context.Background(), RegisterRequest{Username: "alice", Password: "secret1", Semester: "Fall 2025"})
	require.NoError(t, err)

	require.NoError(t, svc.Logout(context.Background(), registered.User.ID))

	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: registered.RefreshToken})
	require.Error(t, err)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	svc := newAuthService(newFakeAuthRepo())

	_, err := svc.ValidateToken("not-a-token")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}
