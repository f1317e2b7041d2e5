package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-correction-api/internal/models"
)

// ErrAlreadyDecided is returned when a decision targets a request that has
// already left the pending state.
var ErrAlreadyDecided = errors.New("correction request already decided")

// ErrDetailMismatch is returned when the supplied detail payload does not
// match the request's declared correction type.
var ErrDetailMismatch = errors.New("correction detail does not match declared type")

// CorrectionRepository persists correction requests and their child rows.
type CorrectionRepository struct {
	db *sqlx.DB
}

// NewCorrectionRepository constructs the repository.
func NewCorrectionRepository(db *sqlx.DB) *CorrectionRepository {
	return &CorrectionRepository{db: db}
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		username VARCHAR(50) NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		full_name VARCHAR(100) NOT NULL,
		staff_id VARCHAR(50) NOT NULL,
		role VARCHAR(20) NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		last_login TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS correction_requests (
		request_id BIGSERIAL PRIMARY KEY,
		request_date TIMESTAMPTZ NOT NULL DEFAULT now(),
		applicant_name VARCHAR(100) NOT NULL,
		applicant_id VARCHAR(50),
		reason TEXT NOT NULL,
		correction_type VARCHAR(20) NOT NULL CHECK (correction_type IN ('attendance', 'grade')),
		status VARCHAR(20) NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'approved', 'rejected')),
		created_by_ip VARCHAR(45) NOT NULL DEFAULT '',
		created_by_hostname VARCHAR(255) NOT NULL DEFAULT '',
		created_by_user_agent TEXT NOT NULL DEFAULT '',
		created_by_os VARCHAR(100) NOT NULL DEFAULT '',
		approved_date TIMESTAMPTZ,
		approver_name VARCHAR(100),
		approver_id VARCHAR(50),
		approved_by_ip VARCHAR(45),
		approved_by_hostname VARCHAR(255),
		approved_by_user_agent TEXT,
		approved_by_os VARCHAR(100),
		rejection_reason TEXT,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		CHECK ((status = 'rejected') = (rejection_reason IS NOT NULL))
	)`,
	`CREATE TABLE IF NOT EXISTS correction_targets (
		target_id BIGSERIAL PRIMARY KEY,
		request_id BIGINT NOT NULL REFERENCES correction_requests(request_id),
		student_number VARCHAR(5) NOT NULL,
		student_name VARCHAR(100) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS attendance_corrections (
		correction_id BIGSERIAL PRIMARY KEY,
		target_id BIGINT NOT NULL UNIQUE REFERENCES correction_targets(target_id),
		attendance_date DATE NOT NULL,
		period_number VARCHAR(40) NOT NULL,
		subject VARCHAR(50) NOT NULL,
		course_name VARCHAR(100) NOT NULL,
		before_status VARCHAR(20) NOT NULL,
		after_status VARCHAR(20) NOT NULL,
		link_to_grade BOOLEAN NOT NULL DEFAULT TRUE,
		link_to_observation BOOLEAN NOT NULL DEFAULT TRUE,
		link_to_total BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE TABLE IF NOT EXISTS grade_corrections (
		correction_id BIGSERIAL PRIMARY KEY,
		target_id BIGINT NOT NULL UNIQUE REFERENCES correction_targets(target_id),
		course_name VARCHAR(100) NOT NULL,
		correction_item VARCHAR(40) NOT NULL,
		before_evaluation INTEGER CHECK (before_evaluation BETWEEN 0 AND 5),
		after_evaluation INTEGER CHECK (after_evaluation BETWEEN 0 AND 5),
		before_observation VARCHAR(3),
		after_observation VARCHAR(3)
	)`,
	`CREATE TABLE IF NOT EXISTS correction_periods (
		period_id BIGSERIAL PRIMARY KEY,
		target_id BIGINT NOT NULL REFERENCES correction_targets(target_id),
		period_name VARCHAR(30) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS operation_logs (
		log_id UUID PRIMARY KEY,
		request_id BIGINT REFERENCES correction_requests(request_id),
		operation_type VARCHAR(50) NOT NULL,
		operator_name VARCHAR(100) NOT NULL DEFAULT '',
		operator_id VARCHAR(50),
		operation_timestamp TIMESTAMPTZ NOT NULL DEFAULT now(),
		ip_address VARCHAR(45) NOT NULL DEFAULT '',
		hostname VARCHAR(255) NOT NULL DEFAULT '',
		user_agent TEXT NOT NULL DEFAULT '',
		os_info VARCHAR(100) NOT NULL DEFAULT '',
		details JSONB
	)`,
	`CREATE INDEX IF NOT EXISTS idx_request_status ON correction_requests(status)`,
	`CREATE INDEX IF NOT EXISTS idx_request_date ON correction_requests(request_date)`,
	`CREATE INDEX IF NOT EXISTS idx_student_number ON correction_targets(student_number)`,
	`CREATE INDEX IF NOT EXISTS idx_operation_logs_request ON operation_logs(request_id)`,
}

// InitSchema ensures all tables and indexes exist. Safe to call on every
// startup.
func (r *CorrectionRepository) InitSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("initialize schema: %w", err)
		}
	}
	return nil
}

// CreateRequestParams groups everything persisted on submission. Detail is
// a template shared by every target: "multiple targets, same reason" means
// one change payload fanned out per student.
type CreateRequestParams struct {
	Request    *models.CorrectionRequest
	Targets    []models.CorrectionTarget
	Attendance *models.AttendanceCorrection
	Grade      *models.GradeCorrection
	Periods    []string
	LogDetails []byte
}

// Create persists a request and all child rows in a single transaction:
// the request, every target, the type-matching detail per target, the
// period rows, and the create operation-log entry. Any failure rolls the
// whole transaction back.
func (r *CorrectionRepository) Create(ctx context.Context, params CreateRequestParams) (int64, error) {
	req := params.Request
	switch req.CorrectionType {
	case models.CorrectionTypeAttendance:
		if params.Attendance == nil || params.Grade != nil {
			return 0, ErrDetailMismatch
		}
	case models.CorrectionTypeGrade:
		if params.Grade == nil || params.Attendance != nil {
			return 0, ErrDetailMismatch
		}
	default:
		return 0, fmt.Errorf("unsupported correction type %q", req.CorrectionType)
	}
	if len(params.Targets) == 0 {
		return 0, fmt.Errorf("create correction request: no targets")
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin create correction request: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			tx.Rollback()
		}
	}()

	if req.RequestedAt.IsZero() {
		req.RequestedAt = time.Now().UTC()
	}
	req.Status = models.RequestStatusPending

	const insertRequest = `INSERT INTO correction_requests
	(request_date, applicant_name, applicant_id, reason, correction_type, status,
	 created_by_ip, created_by_hostname, created_by_user_agent, created_by_os, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $1)
	RETURNING request_id`
	var requestID int64
	if err := tx.QueryRowxContext(ctx, insertRequest,
		req.RequestedAt, req.ApplicantName, req.ApplicantID, req.Reason,
		req.CorrectionType, req.Status,
		req.CreatedIP, req.CreatedHostname, req.CreatedClient, req.CreatedOS,
	).Scan(&requestID); err != nil {
		return 0, fmt.Errorf("insert correction request: %w", err)
	}
	req.ID = requestID

	log := &models.OperationLog{
		RequestID:     &requestID,
		OperationType: models.OperationCreate,
		OperatorName:  req.ApplicantName,
		OperatorID:    req.ApplicantID,
		Timestamp:     req.RequestedAt,
		IPAddress:     req.CreatedIP,
		Hostname:      req.CreatedHostname,
		UserAgent:     req.CreatedClient,
		OSInfo:        req.CreatedOS,
		Details:       params.LogDetails,
	}
	if err := insertOperationLog(ctx, tx, log); err != nil {
		return 0, err
	}

	const insertTarget = `INSERT INTO correction_targets (request_id, student_number, student_name)
	VALUES ($1, $2, $3) RETURNING target_id`
	const insertAttendance = `INSERT INTO attendance_corrections
	(target_id, attendance_date, period_number, subject, course_name,
	 before_status, after_status, link_to_grade, link_to_observation, link_to_total)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	const insertGrade = `INSERT INTO grade_corrections
	(target_id, course_name, correction_item, before_evaluation, after_evaluation,
	 before_observation, after_observation)
	VALUES ($1, $2, $3, $4, $5, $6, $7)`
	const insertPeriod = `INSERT INTO correction_periods (target_id, period_name) VALUES ($1, $2)`

	for i := range params.Targets {
		target := &params.Targets[i]
		var targetID int64
		if err := tx.QueryRowxContext(ctx, insertTarget, requestID, target.StudentNumber, target.StudentName).Scan(&targetID); err != nil {
			return 0, fmt.Errorf("insert correction target: %w", err)
		}
		target.ID = targetID
		target.RequestID = requestID

		if req.CorrectionType == models.CorrectionTypeAttendance {
			a := params.Attendance
			if _, err := tx.ExecContext(ctx, insertAttendance,
				targetID, a.Date, a.PeriodNumbers, a.Subject, a.CourseName,
				a.BeforeStatus, a.AfterStatus, a.LinkEvaluation, a.LinkObservation, a.LinkTotal,
			); err != nil {
				return 0, fmt.Errorf("insert attendance correction: %w", err)
			}
		} else {
			g := params.Grade
			if _, err := tx.ExecContext(ctx, insertGrade,
				targetID, g.CourseName, encodeGradeItems(g.Items),
				g.BeforeEvaluation, g.AfterEvaluation, g.BeforeObservation, g.AfterObservation,
			); err != nil {
				return 0, fmt.Errorf("insert grade correction: %w", err)
			}
		}

		for _, period := range params.Periods {
			if _, err := tx.ExecContext(ctx, insertPeriod, targetID, period); err != nil {
				return 0, fmt.Errorf("insert correction period: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit correction request: %w", err)
	}
	commit = true
	return requestID, nil
}

// DecideParams groups the columns written by an approval or rejection.
type DecideParams struct {
	RequestID       int64
	Approve         bool
	RejectionReason string
	ApproverName    string
	ApproverID      *string
	Context         models.ClientContext
	LogDetails      []byte
}

// Decide transitions a pending request to approved or rejected. The status
// read and the decision write share one transaction with the row locked,
// so two decisions can never race on the same identifier. Returns
// sql.ErrNoRows when the request does not exist and ErrAlreadyDecided when
// it is no longer pending.
func (r *CorrectionRepository) Decide(ctx context.Context, params DecideParams) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin decide: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			tx.Rollback()
		}
	}()

	var status models.RequestStatus
	const lockQuery = `SELECT status FROM correction_requests WHERE request_id = $1 FOR UPDATE`
	if err := tx.QueryRowxContext(ctx, lockQuery, params.RequestID).Scan(&status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sql.ErrNoRows
		}
		return fmt.Errorf("lock correction request: %w", err)
	}
	if status != models.RequestStatusPending {
		return ErrAlreadyDecided
	}

	now := time.Now().UTC()
	newStatus := models.RequestStatusApproved
	operation := models.OperationApprove
	var rejectionReason *string
	if !params.Approve {
		newStatus = models.RequestStatusRejected
		operation = models.OperationReject
		rejectionReason = &params.RejectionReason
	}

	const update = `UPDATE correction_requests SET
		status = $2,
		approved_date = $3,
		approver_name = $4,
		approver_id = $5,
		approved_by_ip = $6,
		approved_by_hostname = $7,
		approved_by_user_agent = $8,
		approved_by_os = $9,
		rejection_reason = $10,
		updated_at = $3
	WHERE request_id = $1`
	if _, err := tx.ExecContext(ctx, update,
		params.RequestID, newStatus, now,
		params.ApproverName, params.ApproverID,
		params.Context.IPAddress, params.Context.Hostname,
		params.Context.UserAgent, params.Context.OSInfo,
		rejectionReason,
	); err != nil {
		return fmt.Errorf("update correction request: %w", err)
	}

	log := &models.OperationLog{
		RequestID:     &params.RequestID,
		OperationType: operation,
		OperatorName:  params.ApproverName,
		OperatorID:    params.ApproverID,
		Timestamp:     now,
		IPAddress:     params.Context.IPAddress,
		Hostname:      params.Context.Hostname,
		UserAgent:     params.Context.UserAgent,
		OSInfo:        params.Context.OSInfo,
		Details:       params.LogDetails,
	}
	if err := insertOperationLog(ctx, tx, log); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit decide: %w", err)
	}
	commit = true
	return nil
}

// GetByID fetches a request header by identifier.
func (r *CorrectionRepository) GetByID(ctx context.Context, id int64) (*models.CorrectionRequest, error) {
	const query = `SELECT request_id, request_date, applicant_name, applicant_id, reason,
	correction_type, status, created_by_ip, created_by_hostname, created_by_user_agent, created_by_os,
	approved_date, approver_name, approver_id, approved_by_ip, approved_by_hostname,
	approved_by_user_agent, approved_by_os, rejection_reason, updated_at
	FROM correction_requests WHERE request_id = $1`
	var request models.CorrectionRequest
	if err := r.db.GetContext(ctx, &request, query, id); err != nil {
		return nil, err
	}
	return &request, nil
}

// GetTargets returns the targets of a request ordered by identifier.
func (r *CorrectionRepository) GetTargets(ctx context.Context, requestID int64) ([]models.CorrectionTarget, error) {
	const query = `SELECT target_id, request_id, student_number, student_name
	FROM correction_targets WHERE request_id = $1 ORDER BY target_id`
	var targets []models.CorrectionTarget
	if err := r.db.SelectContext(ctx, &targets, query, requestID); err != nil {
		return nil, fmt.Errorf("list correction targets: %w", err)
	}
	return targets, nil
}

// GetPeriods returns the distinct grading periods attached to a request.
func (r *CorrectionRepository) GetPeriods(ctx context.Context, requestID int64) ([]string, error) {
	const query = `SELECT DISTINCT p.period_name
	FROM correction_periods p
	JOIN correction_targets t ON t.target_id = p.target_id
	WHERE t.request_id = $1
	ORDER BY p.period_name`
	var periods []string
	if err := r.db.SelectContext(ctx, &periods, query, requestID); err != nil {
		return nil, fmt.Errorf("list correction periods: %w", err)
	}
	return periods, nil
}

func insertOperationLog(ctx context.Context, ext sqlx.ExtContext, log *models.OperationLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.Timestamp.IsZero() {
		log.Timestamp = time.Now().UTC()
	}
	const query = `INSERT INTO operation_logs
	(log_id, request_id, operation_type, operator_name, operator_id, operation_timestamp,
	 ip_address, hostname, user_agent, os_info, details)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	if _, err := ext.ExecContext(ctx, query,
		log.ID, log.RequestID, log.OperationType, log.OperatorName, log.OperatorID,
		log.Timestamp, log.IPAddress, log.Hostname, log.UserAgent, log.OSInfo, log.Details,
	); err != nil {
		return fmt.Errorf("insert operation log: %w", err)
	}
	return nil
}

func encodeGradeItems(items []models.GradeItem) string {
	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = string(item)
	}
	return strings.Join(parts, ",")
}

// DecodeGradeItems parses the stored comma-joined item list.
func DecodeGradeItems(raw string) []models.GradeItem {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	items := make([]models.GradeItem, 0, len(parts))
	for _, part := range parts {
		item := models.GradeItem(strings.TrimSpace(part))
		if item.Valid() {
			items = append(items, item)
		}
	}
	return items
}
