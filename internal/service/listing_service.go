package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-correction-api/internal/dto"
	"github.com/noah-isme/sma-correction-api/internal/models"
	"github.com/noah-isme/sma-correction-api/internal/repository"
	appErrors "github.com/noah-isme/sma-correction-api/pkg/errors"
)

// reasonPreviewRunes is where listing rows cut the reason text off.
const reasonPreviewRunes = 30

type listingStore interface {
	ListPending(ctx context.Context) ([]repository.SummaryRow, error)
	ListHistory(ctx context.Context, filter models.HistoryFilter) ([]repository.SummaryRow, error)
}

type detailStore interface {
	GetByID(ctx context.Context, id int64) (*models.CorrectionRequest, error)
	GetTargets(ctx context.Context, requestID int64) ([]models.CorrectionTarget, error)
	GetPeriods(ctx context.Context, requestID int64) ([]string, error)
}

// ListingService produces the read-only projections backing the approval
// queue, the history view, and the request detail dialog.
type ListingService struct {
	listings     listingStore
	details      detailStore
	historyLimit int
	logger       *zap.Logger
}

// NewListingService constructs the service.
func NewListingService(listings listingStore, details detailStore, historyLimit int, logger *zap.Logger) *ListingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if historyLimit <= 0 {
		historyLimit = 200
	}
	return &ListingService{listings: listings, details: details, historyLimit: historyLimit, logger: logger}
}

// ListPending returns the approval queue, newest first.
func (s *ListingService) ListPending(ctx context.Context) ([]dto.PendingSummary, error) {
	rows, err := s.listings.ListPending(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pending requests")
	}
	summaries := make([]dto.PendingSummary, 0, len(rows))
	for i := range rows {
		row := &rows[i]
		summaries = append(summaries, dto.PendingSummary{
			RequestID:     row.RequestID,
			Date:          row.RequestDate.Format("2006-01-02"),
			ApplicantName: row.ApplicantName,
			StudentNumber: row.StudentNumber.String,
			StudentName:   row.StudentName.String,
			TypeLabel:     row.CorrectionType.Label(),
			ChangeDetail:  changeDetail(row),
			Reason:        truncateReason(row.Reason),
		})
	}
	return summaries, nil
}

// ListHistory returns the most recent requests, optionally filtered by
// status keyword (all/pending/approved/rejected).
func (s *ListingService) ListHistory(ctx context.Context, statusKeyword string) ([]dto.HistorySummary, error) {
	filter := models.HistoryFilter{Limit: s.historyLimit}
	switch statusKeyword {
	case "", "all":
	default:
		status := models.RequestStatus(statusKeyword)
		if !status.Valid() {
			return nil, appErrors.Validation([]string{fmt.Sprintf("状態「%s」が不正です", statusKeyword)})
		}
		filter.Status = status
	}

	rows, err := s.listings.ListHistory(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list request history")
	}
	summaries := make([]dto.HistorySummary, 0, len(rows))
	for i := range rows {
		row := &rows[i]
		summary := dto.HistorySummary{
			RequestID:     row.RequestID,
			Date:          row.RequestDate.Format("2006-01-02"),
			Time:          row.RequestDate.Format("15:04"),
			ApplicantName: row.ApplicantName,
			StudentNumber: row.StudentNumber.String,
			StudentName:   row.StudentName.String,
			TypeLabel:     row.CorrectionType.Label(),
			ChangeDetail:  changeDetail(row),
			Reason:        truncateReason(row.Reason),
			StatusLabel:   row.Status.Label(),
			ApproverName:  row.ApproverName.String,
		}
		if row.CorrectionType == models.CorrectionTypeAttendance {
			summary.Subject = row.Subject.String
			summary.CourseName = row.AttendanceCourse.String
			if row.PeriodNumber.String != "" {
				summary.PeriodLabel = row.PeriodNumber.String + "限"
			}
		} else {
			summary.CourseName = row.GradeCourse.String
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// GetDetail returns the full record for one request.
func (s *ListingService) GetDetail(ctx context.Context, id int64) (*dto.RequestDetail, error) {
	request, err := s.details.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("申請ID %d が見つかりません", id))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load correction request")
	}
	targets, err := s.details.GetTargets(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load correction targets")
	}
	periods, err := s.details.GetPeriods(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load correction periods")
	}
	return &dto.RequestDetail{Request: *request, Targets: targets, Periods: periods}, nil
}

// changeDetail derives the one-line before/after summary shown in listings.
func changeDetail(row *repository.SummaryRow) string {
	if row.CorrectionType == models.CorrectionTypeAttendance {
		if !row.BeforeStatus.Valid || !row.AfterStatus.Valid {
			return ""
		}
		return row.BeforeStatus.String + "→" + row.AfterStatus.String
	}
	if row.BeforeEvaluation.Valid && row.AfterEvaluation.Valid {
		return fmt.Sprintf("評価:%d→%d", row.BeforeEvaluation.Int64, row.AfterEvaluation.Int64)
	}
	if row.BeforeObservation.Valid && row.AfterObservation.Valid {
		return "観点:" + row.BeforeObservation.String + "→" + row.AfterObservation.String
	}
	return ""
}

// truncateReason cuts long reasons for listing rows, counting runes so
// multibyte text is not split.
func truncateReason(reason string) string {
	runes := []rune(reason)
	if len(runes) <= reasonPreviewRunes {
		return reason
	}
	return string(runes[:reasonPreviewRunes]) + "..."
}
