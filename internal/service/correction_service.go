package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-correction-api/internal/dto"
	"github.com/noah-isme/sma-correction-api/internal/models"
	"github.com/noah-isme/sma-correction-api/internal/repository"
	appErrors "github.com/noah-isme/sma-correction-api/pkg/errors"
)

type correctionStore interface {
	Create(ctx context.Context, params repository.CreateRequestParams) (int64, error)
	Decide(ctx context.Context, params repository.DecideParams) error
	GetByID(ctx context.Context, id int64) (*models.CorrectionRequest, error)
}

type lifecycleMetrics interface {
	RecordSubmission(correctionType string)
	RecordDecision(operation string)
}

// CorrectionService orchestrates the request lifecycle: it validates
// submissions, fans them into the store, and applies approve/reject rules.
type CorrectionService struct {
	repo    correctionStore
	metrics lifecycleMetrics
	logger  *zap.Logger
}

// CorrectionServiceOption configures the service.
type CorrectionServiceOption func(*CorrectionService)

// WithLifecycleMetrics attaches submission/decision counters.
func WithLifecycleMetrics(m lifecycleMetrics) CorrectionServiceOption {
	return func(s *CorrectionService) {
		if m != nil {
			s.metrics = m
		}
	}
}

// NewCorrectionService constructs the service.
func NewCorrectionService(repo correctionStore, logger *zap.Logger, opts ...CorrectionServiceOption) *CorrectionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &CorrectionService{repo: repo, logger: logger}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Submit validates a submission and persists it atomically. Violations are
// accumulated and returned together; the store is never touched when any
// rule fails.
func (s *CorrectionService) Submit(ctx context.Context, req dto.CreateCorrectionRequest, actor *models.JWTClaims, client models.ClientContext) (int64, error) {
	if actor == nil {
		return 0, appErrors.ErrUnauthorized
	}

	targets, violations := validateSubmission(&req)
	if len(violations) > 0 {
		return 0, appErrors.Validation(violations)
	}

	var applicantID *string
	if actor.StaffID != "" {
		staffID := actor.StaffID
		applicantID = &staffID
	}
	request := &models.CorrectionRequest{
		ApplicantName:   strings.TrimSpace(req.ApplicantName),
		ApplicantID:     applicantID,
		Reason:          strings.TrimSpace(req.Reason),
		CorrectionType:  models.CorrectionType(req.CorrectionType),
		CreatedIP:       client.IPAddress,
		CreatedHostname: client.Hostname,
		CreatedClient:   client.UserAgent,
		CreatedOS:       client.OSInfo,
	}

	details, err := json.Marshal(map[string]interface{}{
		"action": "新規申請作成",
		"form":   req,
	})
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to serialize submission")
	}

	params := repository.CreateRequestParams{
		Request:    request,
		Targets:    targets,
		Periods:    req.Periods,
		LogDetails: details,
	}
	switch request.CorrectionType {
	case models.CorrectionTypeAttendance:
		params.Attendance = attendanceFromInput(req.Attendance)
	case models.CorrectionTypeGrade:
		params.Grade = gradeFromInput(req.Grade)
	}

	id, err := s.repo.Create(ctx, params)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save correction request")
	}
	if s.metrics != nil {
		s.metrics.RecordSubmission(string(request.CorrectionType))
	}
	s.logger.Info("correction request created",
		zap.Int64("request_id", id),
		zap.String("type", string(request.CorrectionType)),
		zap.Int("targets", len(targets)),
	)
	return id, nil
}

// Approve transitions a pending request to approved as the acting user.
func (s *CorrectionService) Approve(ctx context.Context, id int64, actor *models.JWTClaims, client models.ClientContext) error {
	return s.decide(ctx, id, true, "", actor, client)
}

// Reject transitions a pending request to rejected, recording the
// mandatory reason.
func (s *CorrectionService) Reject(ctx context.Context, id int64, reason string, actor *models.JWTClaims, client models.ClientContext) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return appErrors.Validation([]string{"却下理由を入力してください"})
	}
	return s.decide(ctx, id, false, reason, actor, client)
}

func (s *CorrectionService) decide(ctx context.Context, id int64, approve bool, reason string, actor *models.JWTClaims, client models.ClientContext) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if !actor.Role.Privileged() {
		return appErrors.ErrForbidden
	}

	operation := models.OperationApprove
	if !approve {
		operation = models.OperationReject
	}
	details, err := json.Marshal(map[string]interface{}{
		"action": operation,
		"reason": reason,
	})
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to serialize decision")
	}

	var approverID *string
	if actor.StaffID != "" {
		staffID := actor.StaffID
		approverID = &staffID
	}
	err = s.repo.Decide(ctx, repository.DecideParams{
		RequestID:       id,
		Approve:         approve,
		RejectionReason: reason,
		ApproverName:    actor.FullName,
		ApproverID:      approverID,
		Context:         client,
		LogDetails:      details,
	})
	switch {
	case err == nil:
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("申請ID %d が見つかりません", id))
	case errors.Is(err, repository.ErrAlreadyDecided):
		return appErrors.ErrInvalidTransition
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update correction request")
	}

	if s.metrics != nil {
		s.metrics.RecordDecision(operation)
	}
	s.logger.Info("correction request decided",
		zap.Int64("request_id", id),
		zap.String("operation", operation),
		zap.String("approver", actor.FullName),
	)
	return nil
}

// validateSubmission checks every rule and returns the surviving targets
// together with all accumulated violations.
func validateSubmission(req *dto.CreateCorrectionRequest) ([]models.CorrectionTarget, []string) {
	var violations []string

	if strings.TrimSpace(req.ApplicantName) == "" {
		violations = append(violations, "記入者名を入力してください")
	}
	if strings.TrimSpace(req.Reason) == "" {
		violations = append(violations, "訂正理由を入力してください")
	}

	correctionType := models.CorrectionType(req.CorrectionType)
	if !correctionType.Valid() {
		violations = append(violations, "訂正種別が不正です")
	}

	targets := collectTargets(req, &violations)

	if len(req.Periods) == 0 {
		violations = append(violations, "対象期間を選択してください")
	}
	for _, period := range req.Periods {
		if !models.ValidGradingPeriod(period) {
			violations = append(violations, fmt.Sprintf("対象期間「%s」が不正です", period))
		}
	}

	switch correctionType {
	case models.CorrectionTypeAttendance:
		validateAttendance(req.Attendance, &violations)
	case models.CorrectionTypeGrade:
		validateGrade(req.Grade, &violations)
	}

	return targets, violations
}

func collectTargets(req *dto.CreateCorrectionRequest, violations *[]string) []models.CorrectionTarget {
	switch req.TargetMode {
	case dto.TargetModeIndividual:
		if len(req.Targets) != 1 {
			*violations = append(*violations, "対象者を1名指定してください")
			return nil
		}
		target := req.Targets[0]
		number := strings.TrimSpace(target.Number)
		name := strings.TrimSpace(target.Name)
		if number == "" {
			*violations = append(*violations, "組番号を入力してください")
		} else if !models.ValidStudentNumber(number) {
			*violations = append(*violations, "組番号は「アルファベット1文字+4桁数字」の形式で入力してください（例: F1234）")
		}
		if name == "" {
			*violations = append(*violations, "氏名を入力してください")
		}
		return []models.CorrectionTarget{{StudentNumber: number, StudentName: name}}
	case dto.TargetModeMultiple:
		// Rows missing either field are dropped before the count check.
		targets := make([]models.CorrectionTarget, 0, len(req.Targets))
		for _, t := range req.Targets {
			number := strings.TrimSpace(t.Number)
			name := strings.TrimSpace(t.Name)
			if number == "" || name == "" {
				continue
			}
			if !models.ValidStudentNumber(number) {
				*violations = append(*violations, fmt.Sprintf("組番号「%s」の形式が不正です", number))
				continue
			}
			targets = append(targets, models.CorrectionTarget{StudentNumber: number, StudentName: name})
		}
		if len(targets) == 0 {
			*violations = append(*violations, "対象者を1名以上入力してください")
		}
		return targets
	default:
		*violations = append(*violations, "対象者の指定方法が不正です")
		return nil
	}
}

func validateAttendance(in *dto.AttendanceInput, violations *[]string) {
	if in == nil {
		*violations = append(*violations, "出欠訂正の内容を入力してください")
		return
	}
	if strings.TrimSpace(in.Date) == "" {
		*violations = append(*violations, "出欠訂正の日付を入力してください")
	} else if _, err := time.Parse("2006-01-02", in.Date); err != nil {
		*violations = append(*violations, "日付はYYYY-MM-DD形式で入力してください")
	}
	if len(in.Periods) == 0 {
		*violations = append(*violations, "時限を選択してください")
	}
	for _, p := range in.Periods {
		if p < 1 || p > 12 {
			*violations = append(*violations, fmt.Sprintf("時限「%d」が不正です", p))
		}
	}
	if strings.TrimSpace(in.Subject) == "" {
		*violations = append(*violations, "科目を入力してください")
	}
	if strings.TrimSpace(in.CourseName) == "" {
		*violations = append(*violations, "講座名を入力してください")
	}
	if !models.AttendanceStatus(in.BeforeStatus).Valid() {
		*violations = append(*violations, "訂正前の出欠状態を選択してください")
	}
	if !models.AttendanceStatus(in.AfterStatus).Valid() {
		*violations = append(*violations, "訂正後の出欠状態を選択してください")
	}
}

func validateGrade(in *dto.GradeInput, violations *[]string) {
	if in == nil {
		*violations = append(*violations, "成績訂正の内容を入力してください")
		return
	}
	if strings.TrimSpace(in.CourseName) == "" {
		*violations = append(*violations, "講座名を入力してください")
	}
	if len(in.Items) == 0 {
		*violations = append(*violations, "訂正項目を選択してください")
		return
	}
	items := make([]models.GradeItem, 0, len(in.Items))
	for _, raw := range in.Items {
		item := models.GradeItem(raw)
		if !item.Valid() {
			*violations = append(*violations, fmt.Sprintf("訂正項目「%s」が不正です", raw))
			continue
		}
		items = append(items, item)
	}

	hasEvaluation := false
	hasObservation := false
	for _, item := range items {
		switch item {
		case models.GradeItemEvaluation:
			hasEvaluation = true
		case models.GradeItemObservation:
			hasObservation = true
		}
	}

	if hasEvaluation {
		if in.BeforeEvaluation == nil || in.AfterEvaluation == nil {
			*violations = append(*violations, "訂正前後の評定を入力してください")
		} else if !validEvaluation(*in.BeforeEvaluation) || !validEvaluation(*in.AfterEvaluation) {
			*violations = append(*violations, "評定は0〜5で入力してください")
		}
	}
	if hasObservation {
		if !validObservation(in.BeforeObservation) || !validObservation(in.AfterObservation) {
			*violations = append(*violations, "観点別評価はA/B/Cの3文字で入力してください")
		}
	}
}

func validEvaluation(v int) bool {
	return v >= 0 && v <= 5
}

func validObservation(v string) bool {
	if len(v) != 3 {
		return false
	}
	for _, c := range v {
		if c != 'A' && c != 'B' && c != 'C' {
			return false
		}
	}
	return true
}

func attendanceFromInput(in *dto.AttendanceInput) *models.AttendanceCorrection {
	parts := make([]string, len(in.Periods))
	for i, p := range in.Periods {
		parts[i] = fmt.Sprintf("%d", p)
	}
	return &models.AttendanceCorrection{
		Date:            in.Date,
		PeriodNumbers:   strings.Join(parts, ","),
		Subject:         strings.TrimSpace(in.Subject),
		CourseName:      strings.TrimSpace(in.CourseName),
		BeforeStatus:    models.AttendanceStatus(in.BeforeStatus),
		AfterStatus:     models.AttendanceStatus(in.AfterStatus),
		LinkEvaluation:  linkFlag(in.LinkEvaluation),
		LinkObservation: linkFlag(in.LinkObservation),
		LinkTotal:       linkFlag(in.LinkTotal),
	}
}

// linkFlag resolves an omitted link checkbox to its checked default.
func linkFlag(v *bool) bool {
	if v == nil {
		return true
	}
	return *v
}

func gradeFromInput(in *dto.GradeInput) *models.GradeCorrection {
	items := make([]models.GradeItem, 0, len(in.Items))
	for _, raw := range in.Items {
		item := models.GradeItem(raw)
		if item.Valid() {
			items = append(items, item)
		}
	}
	grade := &models.GradeCorrection{
		CourseName: strings.TrimSpace(in.CourseName),
		Items:      items,
	}
	for _, item := range items {
		switch item {
		case models.GradeItemEvaluation:
			grade.BeforeEvaluation = in.BeforeEvaluation
			grade.AfterEvaluation = in.AfterEvaluation
		case models.GradeItemObservation:
			before := in.BeforeObservation
			after := in.AfterObservation
			grade.BeforeObservation = &before
			grade.AfterObservation = &after
		}
	}
	return grade
}
