package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-correction-api/internal/models"
)

func TestUserRepositoryFindByUsername(t *testing.T) {
	db, mock, cleanup := newCorrectionRepoMock(t)
	defer cleanup()

	repo := NewUserRepository(db)
	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "username", "password_hash", "full_name", "staff_id", "role", "active", "last_login", "created_at", "updated_at"}).
		AddRow("user-1", "admin", "hash", "管理者", "ADM001", "ADMIN", true, nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, username, password_hash")).
		WithArgs("admin").
		WillReturnRows(rows)

	user, err := repo.FindByUsername(context.Background(), "admin")
	require.NoError(t, err)
	require.Equal(t, "user-1", user.ID)
	require.Equal(t, models.RoleAdmin, user.Role)
	require.True(t, user.Active)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryFindByUsernameMissing(t *testing.T) {
	db, mock, cleanup := newCorrectionRepoMock(t)
	defer cleanup()

	repo := NewUserRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, username, password_hash")).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByUsername(context.Background(), "ghost")
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestUserRepositoryCreateAssignsID(t *testing.T) {
	db, mock, cleanup := newCorrectionRepoMock(t)
	defer cleanup()

	repo := NewUserRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	user := &models.User{Username: "user1", FullName: "田中太郎", StaffID: "USR001", Role: models.RoleStaff, Active: true}
	require.NoError(t, repo.Create(context.Background(), user))
	require.NotEmpty(t, user.ID)
	require.False(t, user.UpdatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryCreateOperationLog(t *testing.T) {
	db, mock, cleanup := newCorrectionRepoMock(t)
	defer cleanup()

	repo := NewUserRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO operation_logs")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	log := &models.OperationLog{OperationType: models.OperationLogin, OperatorName: "管理者"}
	require.NoError(t, repo.CreateOperationLog(context.Background(), log))
	require.NotEmpty(t, log.ID)
	require.False(t, log.Timestamp.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}
