package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/sma-correction-api/internal/models"
	appErrors "github.com/noah-isme/sma-correction-api/pkg/errors"
)

type userRepoStub struct {
	users   map[string]*models.User
	created []*models.User
	logs    []*models.OperationLog
}

func newUserRepoStub() *userRepoStub {
	return &userRepoStub{users: make(map[string]*models.User)}
}

func (r *userRepoStub) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	if user, ok := r.users[username]; ok {
		copy := *user
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (r *userRepoStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	for _, user := range r.users {
		if user.ID == id {
			copy := *user
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r *userRepoStub) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	return nil
}

func (r *userRepoStub) Count(ctx context.Context) (int, error) {
	return len(r.users), nil
}

func (r *userRepoStub) Create(ctx context.Context, user *models.User) error {
	r.users[user.Username] = user
	r.created = append(r.created, user)
	return nil
}

func (r *userRepoStub) CreateOperationLog(ctx context.Context, log *models.OperationLog) error {
	r.logs = append(r.logs, log)
	return nil
}

func newAuthServiceForTest(t *testing.T, repo *userRepoStub) *AuthService {
	t.Helper()
	return NewAuthService(repo, nil, nil, AuthConfig{
		Secret:     "test-secret",
		Expiration: time.Hour,
		Issuer:     "sma-correction-api",
	})
}

func addUser(t *testing.T, repo *userRepoStub, username, password string, role models.UserRole, active bool) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	repo.users[username] = &models.User{
		ID:           "user-" + username,
		Username:     username,
		PasswordHash: string(hash),
		FullName:     "管理者",
		StaffID:      "ADM001",
		Role:         role,
		Active:       active,
	}
}

func TestAuthServiceLoginSuccess(t *testing.T) {
	repo := newUserRepoStub()
	addUser(t, repo, "admin", "admin123", models.RoleAdmin, true)
	svc := newAuthServiceForTest(t, repo)

	resp, err := svc.Login(context.Background(), models.LoginRequest{
		Username: "admin",
		Password: "admin123",
		IP:       "192.168.1.10",
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.AccessToken)
	require.Equal(t, "admin", resp.User.Username)
	require.Equal(t, models.RoleAdmin, resp.User.Role)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "管理者", claims.FullName)
	require.Equal(t, "ADM001", claims.StaffID)
	require.True(t, claims.Role.Privileged())

	require.Len(t, repo.logs, 1)
	require.Equal(t, models.OperationLogin, repo.logs[0].OperationType)
	require.Equal(t, "192.168.1.10", repo.logs[0].IPAddress)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	repo := newUserRepoStub()
	addUser(t, repo, "admin", "admin123", models.RoleAdmin, true)
	svc := newAuthServiceForTest(t, repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "admin", Password: "nope"})
	require.ErrorIs(t, err, appErrors.ErrInvalidCredentials)
	require.Empty(t, repo.logs)
}

func TestAuthServiceLoginUnknownUser(t *testing.T) {
	svc := newAuthServiceForTest(t, newUserRepoStub())

	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "ghost", Password: "whatever"})
	require.ErrorIs(t, err, appErrors.ErrInvalidCredentials)
}

func TestAuthServiceLoginInactive(t *testing.T) {
	repo := newUserRepoStub()
	addUser(t, repo, "user1", "user123", models.RoleStaff, false)
	svc := newAuthServiceForTest(t, repo)

	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "user1", Password: "user123"})
	require.ErrorIs(t, err, appErrors.ErrInactiveAccount)
}

func TestAuthServiceValidateTokenRejectsGarbage(t *testing.T) {
	svc := newAuthServiceForTest(t, newUserRepoStub())

	_, err := svc.ValidateToken("not-a-token")
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, appErrors.ErrUnauthorized.Code, appErr.Code)
}

func TestAuthServiceSeedDefaultUsers(t *testing.T) {
	repo := newUserRepoStub()
	svc := newAuthServiceForTest(t, repo)

	require.NoError(t, svc.SeedDefaultUsers(context.Background()))
	require.Len(t, repo.created, 2)
	require.Equal(t, "admin", repo.created[0].Username)
	require.Equal(t, models.RoleAdmin, repo.created[0].Role)
	require.Equal(t, "user1", repo.created[1].Username)
	require.Equal(t, models.RoleStaff, repo.created[1].Role)

	// A populated table is left alone.
	require.NoError(t, svc.SeedDefaultUsers(context.Background()))
	require.Len(t, repo.created, 2)
}
