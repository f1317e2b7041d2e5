package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-correction-api/internal/models"
)

func newCorrectionRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func attendanceCreateParams() CreateRequestParams {
	return CreateRequestParams{
		Request: &models.CorrectionRequest{
			RequestedAt:    time.Date(2025, 6, 10, 9, 30, 0, 0, time.UTC),
			ApplicantName:  "田中太郎",
			Reason:         "体調不良による早退の記録漏れ",
			CorrectionType: models.CorrectionTypeAttendance,
			CreatedIP:      "192.168.1.10",
		},
		Targets: []models.CorrectionTarget{
			{StudentNumber: "F1234", StudentName: "山田花子"},
			{StudentNumber: "F5678", StudentName: "佐藤次郎"},
		},
		Attendance: &models.AttendanceCorrection{
			Date:          "2025-06-09",
			PeriodNumbers: "3,4",
			Subject:       "数学",
			CourseName:    "数学I",
			BeforeStatus:  models.AttendanceAbsent,
			AfterStatus:   models.AttendancePresent,
		},
		Periods:    []string{"前期中間"},
		LogDetails: []byte(`{"action":"新規申請作成"}`),
	}
}

func TestCorrectionRepositoryCreateAttendance(t *testing.T) {
	db, mock, cleanup := newCorrectionRepoMock(t)
	defer cleanup()

	repo := NewCorrectionRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO correction_requests")).
		WillReturnRows(sqlmock.NewRows([]string{"request_id"}).AddRow(int64(7)))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO operation_logs")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO correction_targets")).
		WillReturnRows(sqlmock.NewRows([]string{"target_id"}).AddRow(int64(11)))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO attendance_corrections")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO correction_periods")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO correction_targets")).
		WillReturnRows(sqlmock.NewRows([]string{"target_id"}).AddRow(int64(12)))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO attendance_corrections")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO correction_periods")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	params := attendanceCreateParams()
	id, err := repo.Create(context.Background(), params)
	require.NoError(t, err)
	require.Equal(t, int64(7), id)
	require.Equal(t, int64(11), params.Targets[0].ID)
	require.Equal(t, int64(12), params.Targets[1].ID)
	require.Equal(t, int64(7), params.Targets[1].RequestID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCorrectionRepositoryCreateRollsBackOnFailure(t *testing.T) {
	db, mock, cleanup := newCorrectionRepoMock(t)
	defer cleanup()

	repo := NewCorrectionRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO correction_requests")).
		WillReturnRows(sqlmock.NewRows([]string{"request_id"}).AddRow(int64(7)))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO operation_logs")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO correction_targets")).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := repo.Create(context.Background(), attendanceCreateParams())
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCorrectionRepositoryCreateDetailMismatch(t *testing.T) {
	db, mock, cleanup := newCorrectionRepoMock(t)
	defer cleanup()

	repo := NewCorrectionRepository(db)

	params := attendanceCreateParams()
	params.Request.CorrectionType = models.CorrectionTypeGrade
	_, err := repo.Create(context.Background(), params)
	require.ErrorIs(t, err, ErrDetailMismatch)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCorrectionRepositoryDecideApprove(t *testing.T) {
	db, mock, cleanup := newCorrectionRepoMock(t)
	defer cleanup()

	repo := NewCorrectionRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status FROM correction_requests")).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("pending"))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE correction_requests SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO operation_logs")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Decide(context.Background(), DecideParams{
		RequestID:    7,
		Approve:      true,
		ApproverName: "管理者",
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCorrectionRepositoryDecideNotFound(t *testing.T) {
	db, mock, cleanup := newCorrectionRepoMock(t)
	defer cleanup()

	repo := NewCorrectionRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status FROM correction_requests")).
		WithArgs(int64(99)).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	err := repo.Decide(context.Background(), DecideParams{RequestID: 99, Approve: true})
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCorrectionRepositoryDecideAlreadyDecided(t *testing.T) {
	db, mock, cleanup := newCorrectionRepoMock(t)
	defer cleanup()

	repo := NewCorrectionRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status FROM correction_requests")).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("approved"))
	mock.ExpectRollback()

	err := repo.Decide(context.Background(), DecideParams{
		RequestID:       7,
		Approve:         false,
		RejectionReason: "対象日が誤っています",
		ApproverName:    "管理者",
	})
	require.ErrorIs(t, err, ErrAlreadyDecided)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCorrectionRepositoryGetTargetsAndPeriods(t *testing.T) {
	db, mock, cleanup := newCorrectionRepoMock(t)
	defer cleanup()

	repo := NewCorrectionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT target_id, request_id, student_number, student_name")).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"target_id", "request_id", "student_number", "student_name"}).
			AddRow(int64(11), int64(7), "F1234", "山田花子").
			AddRow(int64(12), int64(7), "F5678", "佐藤次郎"))

	targets, err := repo.GetTargets(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, targets, 2)
	require.Equal(t, "F1234", targets[0].StudentNumber)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT p.period_name")).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"period_name"}).AddRow("前期中間").AddRow("前期期末"))

	periods, err := repo.GetPeriods(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, []string{"前期中間", "前期期末"}, periods)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDecodeGradeItems(t *testing.T) {
	items := DecodeGradeItems("evaluation,observation")
	require.Equal(t, []models.GradeItem{models.GradeItemEvaluation, models.GradeItemObservation}, items)
	require.Nil(t, DecodeGradeItems(""))
	require.Empty(t, DecodeGradeItems("bogus"))
}
