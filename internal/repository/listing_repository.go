package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-correction-api/internal/models"
)

// ListingRepository serves the read-side projections used by the approval
// queue and the history view. It never mutates.
type ListingRepository struct {
	db *sqlx.DB
}

// NewListingRepository constructs the repository.
func NewListingRepository(db *sqlx.DB) *ListingRepository {
	return &ListingRepository{db: db}
}

// SummaryRow is a request flattened with its first target and that
// target's detail row. Detail columns are nullable because exactly one of
// the attendance/grade joins matches.
type SummaryRow struct {
	RequestID         int64                 `db:"request_id"`
	RequestDate       time.Time             `db:"request_date"`
	ApplicantName     string                `db:"applicant_name"`
	CorrectionType    models.CorrectionType `db:"correction_type"`
	Status            models.RequestStatus  `db:"status"`
	Reason            string                `db:"reason"`
	ApproverName      sql.NullString        `db:"approver_name"`
	StudentNumber     sql.NullString        `db:"student_number"`
	StudentName       sql.NullString        `db:"student_name"`
	Subject           sql.NullString        `db:"subject"`
	AttendanceCourse  sql.NullString        `db:"attendance_course"`
	GradeCourse       sql.NullString        `db:"grade_course"`
	PeriodNumber      sql.NullString        `db:"period_number"`
	BeforeStatus      sql.NullString        `db:"before_status"`
	AfterStatus       sql.NullString        `db:"after_status"`
	BeforeEvaluation  sql.NullInt64         `db:"before_evaluation"`
	AfterEvaluation   sql.NullInt64         `db:"after_evaluation"`
	BeforeObservation sql.NullString        `db:"before_observation"`
	AfterObservation  sql.NullString        `db:"after_observation"`
}

// Requests are flattened against their first target only; all targets of a
// request share one detail payload, so the summary is the same whichever
// target represents it.
const summarySelect = `SELECT
	r.request_id,
	r.request_date,
	r.applicant_name,
	r.correction_type,
	r.status,
	r.reason,
	r.approver_name,
	t.student_number,
	t.student_name,
	a.subject,
	a.course_name AS attendance_course,
	g.course_name AS grade_course,
	a.period_number,
	a.before_status,
	a.after_status,
	g.before_evaluation,
	g.after_evaluation,
	g.before_observation,
	g.after_observation
FROM correction_requests r
LEFT JOIN LATERAL (
	SELECT target_id, student_number, student_name
	FROM correction_targets
	WHERE request_id = r.request_id
	ORDER BY target_id
	LIMIT 1
) t ON TRUE
LEFT JOIN attendance_corrections a ON a.target_id = t.target_id
LEFT JOIN grade_corrections g ON g.target_id = t.target_id`

// ListPending returns all pending requests, newest submission first with
// identifier as the deterministic tie-break.
func (r *ListingRepository) ListPending(ctx context.Context) ([]SummaryRow, error) {
	query := summarySelect + `
WHERE r.status = 'pending'
ORDER BY r.request_date DESC, r.request_id DESC`
	var rows []SummaryRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list pending requests: %w", err)
	}
	return rows, nil
}

// ListHistory returns the most recent requests, optionally filtered by
// status, ordered like ListPending.
func (r *ListingRepository) ListHistory(ctx context.Context, filter models.HistoryFilter) ([]SummaryRow, error) {
	query := summarySelect
	args := make([]interface{}, 0, 2)
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf("\nWHERE r.status = $%d", len(args))
	}
	query += "\nORDER BY r.request_date DESC, r.request_id DESC"

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 200
	}
	args = append(args, limit)
	query += fmt.Sprintf("\nLIMIT $%d", len(args))

	var rows []SummaryRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list request history: %w", err)
	}
	return rows, nil
}
