package models

import (
	"regexp"
	"time"
)

// CorrectionType selects which detail row every target of a request carries.
type CorrectionType string

const (
	CorrectionTypeAttendance CorrectionType = "attendance"
	CorrectionTypeGrade      CorrectionType = "grade"
)

// Valid returns true when the type is a supported value.
func (t CorrectionType) Valid() bool {
	return t == CorrectionTypeAttendance || t == CorrectionTypeGrade
}

// Label returns the Japanese display label used by the form client.
func (t CorrectionType) Label() string {
	switch t {
	case CorrectionTypeAttendance:
		return "出欠"
	case CorrectionTypeGrade:
		return "成績"
	default:
		return ""
	}
}

// RequestStatus captures the workflow state of a correction request.
type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusApproved RequestStatus = "approved"
	RequestStatusRejected RequestStatus = "rejected"
)

// Valid returns true when the status is a supported value.
func (s RequestStatus) Valid() bool {
	switch s {
	case RequestStatusPending, RequestStatusApproved, RequestStatusRejected:
		return true
	default:
		return false
	}
}

// Label returns the Japanese display label used in listings.
func (s RequestStatus) Label() string {
	switch s {
	case RequestStatusPending:
		return "処理中"
	case RequestStatusApproved:
		return "承認済"
	case RequestStatusRejected:
		return "差戻し"
	default:
		return ""
	}
}

// AttendanceStatus is the closed vocabulary for before/after attendance states.
type AttendanceStatus string

const (
	AttendancePresent    AttendanceStatus = "出席"
	AttendanceAbsent     AttendanceStatus = "欠席"
	AttendanceTardy      AttendanceStatus = "遅刻"
	AttendanceEarlyLeave AttendanceStatus = "早退"
	AttendanceSuspension AttendanceStatus = "出席停止"
	AttendanceBereaved   AttendanceStatus = "忌引"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendancePresent, AttendanceAbsent, AttendanceTardy,
		AttendanceEarlyLeave, AttendanceSuspension, AttendanceBereaved:
		return true
	default:
		return false
	}
}

// GradeItem names one correctable grade component.
type GradeItem string

const (
	GradeItemEvaluation  GradeItem = "evaluation"
	GradeItemObservation GradeItem = "observation"
	GradeItemTotal       GradeItem = "total"
)

// Valid returns true when the item is a supported value.
func (i GradeItem) Valid() bool {
	return i == GradeItemEvaluation || i == GradeItemObservation || i == GradeItemTotal
}

// GradingPeriods is the closed vocabulary of grading periods a correction
// may apply to.
var GradingPeriods = []string{
	"前期中間", "前期期末", "前期総合", "後期中間",
	"後期期末", "後期総合", "仮評定", "最終評定",
}

// ValidGradingPeriod reports whether name belongs to the period vocabulary.
func ValidGradingPeriod(name string) bool {
	for _, p := range GradingPeriods {
		if p == name {
			return true
		}
	}
	return false
}

var studentNumberPattern = regexp.MustCompile(`^[A-Za-z][0-9]{4}$`)

// ValidStudentNumber reports whether the number is one ASCII letter
// followed by exactly four digits, e.g. "F1234".
func ValidStudentNumber(number string) bool {
	return studentNumberPattern.MatchString(number)
}

// ClientContext is the opaque origin metadata recorded with every request
// creation and audit entry.
type ClientContext struct {
	IPAddress string `json:"ip_address"`
	Hostname  string `json:"hostname"`
	UserAgent string `json:"user_agent"`
	OSInfo    string `json:"os_info"`
}

// CorrectionRequest is one submitted correction episode, the unit of approval.
type CorrectionRequest struct {
	ID             int64          `db:"request_id" json:"id"`
	RequestedAt    time.Time      `db:"request_date" json:"requested_at"`
	ApplicantName  string         `db:"applicant_name" json:"applicant_name"`
	ApplicantID    *string        `db:"applicant_id" json:"applicant_id,omitempty"`
	Reason         string         `db:"reason" json:"reason"`
	CorrectionType CorrectionType `db:"correction_type" json:"correction_type"`
	Status         RequestStatus  `db:"status" json:"status"`

	CreatedIP       string `db:"created_by_ip" json:"created_by_ip"`
	CreatedHostname string `db:"created_by_hostname" json:"created_by_hostname"`
	CreatedClient   string `db:"created_by_user_agent" json:"created_by_user_agent"`
	CreatedOS       string `db:"created_by_os" json:"created_by_os"`

	DecidedAt        *time.Time `db:"approved_date" json:"decided_at,omitempty"`
	ApproverName     *string    `db:"approver_name" json:"approver_name,omitempty"`
	ApproverID       *string    `db:"approver_id" json:"approver_id,omitempty"`
	ApproverIP       *string    `db:"approved_by_ip" json:"approved_by_ip,omitempty"`
	ApproverHostname *string    `db:"approved_by_hostname" json:"approved_by_hostname,omitempty"`
	ApproverClient   *string    `db:"approved_by_user_agent" json:"approved_by_user_agent,omitempty"`
	ApproverOS       *string    `db:"approved_by_os" json:"approved_by_os,omitempty"`
	RejectionReason  *string    `db:"rejection_reason" json:"rejection_reason,omitempty"`

	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// CorrectionTarget is one student affected by a request.
type CorrectionTarget struct {
	ID            int64  `db:"target_id" json:"id"`
	RequestID     int64  `db:"request_id" json:"request_id"`
	StudentNumber string `db:"student_number" json:"student_number"`
	StudentName   string `db:"student_name" json:"student_name"`
}

// AttendanceCorrection is the change detail for one target of an
// attendance-type request. PeriodNumbers keeps the original encoding of
// one-to-twelve class periods selected together, e.g. "3" or "1,2,5".
type AttendanceCorrection struct {
	TargetID        int64            `db:"target_id" json:"target_id"`
	Date            string           `db:"attendance_date" json:"date"`
	PeriodNumbers   string           `db:"period_number" json:"period_numbers"`
	Subject         string           `db:"subject" json:"subject"`
	CourseName      string           `db:"course_name" json:"course_name"`
	BeforeStatus    AttendanceStatus `db:"before_status" json:"before_status"`
	AfterStatus     AttendanceStatus `db:"after_status" json:"after_status"`
	LinkEvaluation  bool             `db:"link_to_grade" json:"link_to_grade"`
	LinkObservation bool             `db:"link_to_observation" json:"link_to_observation"`
	LinkTotal       bool             `db:"link_to_total" json:"link_to_total"`
}

// GradeCorrection is the change detail for one target of a grade-type
// request. Evaluation values use 0-5 (0 meaning "no evaluation") and
// observation ratings are three characters of A/B/C, one per perspective.
type GradeCorrection struct {
	TargetID          int64       `db:"target_id" json:"target_id"`
	CourseName        string      `db:"course_name" json:"course_name"`
	Items             []GradeItem `db:"-" json:"items"`
	ItemsRaw          string      `db:"correction_item" json:"-"`
	BeforeEvaluation  *int        `db:"before_evaluation" json:"before_evaluation,omitempty"`
	AfterEvaluation   *int        `db:"after_evaluation" json:"after_evaluation,omitempty"`
	BeforeObservation *string     `db:"before_observation" json:"before_observation,omitempty"`
	AfterObservation  *string     `db:"after_observation" json:"after_observation,omitempty"`
}

// HasItem reports whether the given component was selected for correction.
func (g *GradeCorrection) HasItem(item GradeItem) bool {
	for _, i := range g.Items {
		if i == item {
			return true
		}
	}
	return false
}

// CorrectionPeriod names one grading period a target's correction applies to.
type CorrectionPeriod struct {
	ID         int64  `db:"period_id" json:"id"`
	TargetID   int64  `db:"target_id" json:"target_id"`
	PeriodName string `db:"period_name" json:"period_name"`
}

// HistoryFilter constrains history listings.
type HistoryFilter struct {
	Status RequestStatus
	Limit  int
}
