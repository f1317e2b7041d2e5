package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-correction-api/internal/models"
	"github.com/noah-isme/sma-correction-api/internal/repository"
	appErrors "github.com/noah-isme/sma-correction-api/pkg/errors"
)

type listingStoreStub struct {
	rows   []repository.SummaryRow
	filter models.HistoryFilter
}

func (s *listingStoreStub) ListPending(ctx context.Context) ([]repository.SummaryRow, error) {
	return s.rows, nil
}

func (s *listingStoreStub) ListHistory(ctx context.Context, filter models.HistoryFilter) ([]repository.SummaryRow, error) {
	s.filter = filter
	return s.rows, nil
}

type detailStoreStub struct {
	request *models.CorrectionRequest
	targets []models.CorrectionTarget
	periods []string
}

func (s *detailStoreStub) GetByID(ctx context.Context, id int64) (*models.CorrectionRequest, error) {
	if s.request == nil {
		return nil, sql.ErrNoRows
	}
	return s.request, nil
}

func (s *detailStoreStub) GetTargets(ctx context.Context, requestID int64) ([]models.CorrectionTarget, error) {
	return s.targets, nil
}

func (s *detailStoreStub) GetPeriods(ctx context.Context, requestID int64) ([]string, error) {
	return s.periods, nil
}

func attendanceRow(id int64, before, after string) repository.SummaryRow {
	return repository.SummaryRow{
		RequestID:        id,
		RequestDate:      time.Date(2025, 6, 11, 14, 30, 0, 0, time.UTC),
		ApplicantName:    "田中太郎",
		CorrectionType:   models.CorrectionTypeAttendance,
		Status:           models.RequestStatusPending,
		Reason:           "記録漏れ",
		StudentNumber:    sql.NullString{String: "F1234", Valid: true},
		StudentName:      sql.NullString{String: "山田花子", Valid: true},
		Subject:          sql.NullString{String: "数学", Valid: true},
		AttendanceCourse: sql.NullString{String: "数学I", Valid: true},
		PeriodNumber:     sql.NullString{String: "3", Valid: true},
		BeforeStatus:     sql.NullString{String: before, Valid: true},
		AfterStatus:      sql.NullString{String: after, Valid: true},
	}
}

func TestListingServiceListPending(t *testing.T) {
	store := &listingStoreStub{rows: []repository.SummaryRow{
		attendanceRow(9, "欠席", "出席"),
		attendanceRow(8, "遅刻", "出席"),
	}}
	svc := NewListingService(store, &detailStoreStub{}, 0, nil)

	list, err := svc.ListPending(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, int64(9), list[0].RequestID)
	require.Equal(t, "2025-06-11", list[0].Date)
	require.Equal(t, "出欠", list[0].TypeLabel)
	require.Equal(t, "欠席→出席", list[0].ChangeDetail)
	require.Equal(t, "遅刻→出席", list[1].ChangeDetail)
}

func TestListingServiceHistoryGradeDetails(t *testing.T) {
	evalRow := repository.SummaryRow{
		RequestID:        5,
		RequestDate:      time.Date(2025, 6, 9, 9, 15, 0, 0, time.UTC),
		ApplicantName:    "鈴木一郎",
		CorrectionType:   models.CorrectionTypeGrade,
		Status:           models.RequestStatusApproved,
		Reason:           "採点ミス",
		ApproverName:     sql.NullString{String: "管理者", Valid: true},
		GradeCourse:      sql.NullString{String: "物理基礎", Valid: true},
		BeforeEvaluation: sql.NullInt64{Int64: 3, Valid: true},
		AfterEvaluation:  sql.NullInt64{Int64: 4, Valid: true},
	}
	obsRow := evalRow
	obsRow.RequestID = 4
	obsRow.Status = models.RequestStatusRejected
	obsRow.BeforeEvaluation = sql.NullInt64{}
	obsRow.AfterEvaluation = sql.NullInt64{}
	obsRow.BeforeObservation = sql.NullString{String: "ABB", Valid: true}
	obsRow.AfterObservation = sql.NullString{String: "AAB", Valid: true}

	store := &listingStoreStub{rows: []repository.SummaryRow{evalRow, obsRow}}
	svc := NewListingService(store, &detailStoreStub{}, 0, nil)

	list, err := svc.ListHistory(context.Background(), "all")
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "評価:3→4", list[0].ChangeDetail)
	require.Equal(t, "承認済", list[0].StatusLabel)
	require.Equal(t, "物理基礎", list[0].CourseName)
	require.Equal(t, "09:15", list[0].Time)
	require.Equal(t, "観点:ABB→AAB", list[1].ChangeDetail)
	require.Equal(t, "差戻し", list[1].StatusLabel)
}

func TestListingServiceHistoryPeriodLabel(t *testing.T) {
	store := &listingStoreStub{rows: []repository.SummaryRow{attendanceRow(9, "欠席", "出席")}}
	svc := NewListingService(store, &detailStoreStub{}, 0, nil)

	list, err := svc.ListHistory(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, "3限", list[0].PeriodLabel)
	require.Equal(t, "数学", list[0].Subject)
	require.Equal(t, "数学I", list[0].CourseName)
	require.Equal(t, models.RequestStatus(""), store.filter.Status)
	require.Equal(t, 200, store.filter.Limit)
}

func TestListingServiceHistoryStatusFilter(t *testing.T) {
	store := &listingStoreStub{}
	svc := NewListingService(store, &detailStoreStub{}, 50, nil)

	_, err := svc.ListHistory(context.Background(), "approved")
	require.NoError(t, err)
	require.Equal(t, models.RequestStatusApproved, store.filter.Status)
	require.Equal(t, 50, store.filter.Limit)

	_, err = svc.ListHistory(context.Background(), "bogus")
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestListingServiceTruncatesReason(t *testing.T) {
	exact := strings.Repeat("あ", 30)
	long := strings.Repeat("い", 31)

	row := attendanceRow(9, "欠席", "出席")
	row.Reason = exact
	longRow := attendanceRow(8, "欠席", "出席")
	longRow.Reason = long

	store := &listingStoreStub{rows: []repository.SummaryRow{row, longRow}}
	svc := NewListingService(store, &detailStoreStub{}, 0, nil)

	list, err := svc.ListPending(context.Background())
	require.NoError(t, err)
	require.Equal(t, exact, list[0].Reason)
	require.Equal(t, strings.Repeat("い", 30)+"...", list[1].Reason)
}

func TestListingServiceGetDetail(t *testing.T) {
	details := &detailStoreStub{
		request: &models.CorrectionRequest{ID: 7, ApplicantName: "田中太郎"},
		targets: []models.CorrectionTarget{{ID: 11, StudentNumber: "F1234"}},
		periods: []string{"前期中間"},
	}
	svc := NewListingService(&listingStoreStub{}, details, 0, nil)

	detail, err := svc.GetDetail(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, int64(7), detail.Request.ID)
	require.Len(t, detail.Targets, 1)
	require.Equal(t, []string{"前期中間"}, detail.Periods)
}

func TestListingServiceGetDetailNotFound(t *testing.T) {
	svc := NewListingService(&listingStoreStub{}, &detailStoreStub{}, 0, nil)

	_, err := svc.GetDetail(context.Background(), 99)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}
