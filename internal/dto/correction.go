package dto

import "github.com/noah-isme/sma-correction-api/internal/models"

// Target modes accepted on submission.
const (
	TargetModeIndividual = "individual"
	TargetModeMultiple   = "multiple"
)

// TargetInput is one student row of the submission form.
type TargetInput struct {
	Number string `json:"number"`
	Name   string `json:"name"`
}

// AttendanceInput carries the change detail for an attendance correction.
// The link flags are checked by default on the form, so an omitted flag
// means true, not false.
type AttendanceInput struct {
	Date            string `json:"date"`
	Periods         []int  `json:"periods"`
	Subject         string `json:"subject"`
	CourseName      string `json:"course_name"`
	BeforeStatus    string `json:"before_status"`
	AfterStatus     string `json:"after_status"`
	LinkEvaluation  *bool  `json:"link_to_grade,omitempty"`
	LinkObservation *bool  `json:"link_to_observation,omitempty"`
	LinkTotal       *bool  `json:"link_to_total,omitempty"`
}

// GradeInput carries the change detail for a grade correction.
type GradeInput struct {
	CourseName        string   `json:"course_name"`
	Items             []string `json:"items"`
	BeforeEvaluation  *int     `json:"before_evaluation,omitempty"`
	AfterEvaluation   *int     `json:"after_evaluation,omitempty"`
	BeforeObservation string   `json:"before_observation"`
	AfterObservation  string   `json:"after_observation"`
}

// CreateCorrectionRequest is the full submission payload supplied by the form.
type CreateCorrectionRequest struct {
	ApplicantName  string           `json:"applicant_name"`
	Reason         string           `json:"reason"`
	CorrectionType string           `json:"correction_type"`
	TargetMode     string           `json:"target_mode"`
	Targets        []TargetInput    `json:"targets"`
	Periods        []string         `json:"periods"`
	Attendance     *AttendanceInput `json:"attendance,omitempty"`
	Grade          *GradeInput      `json:"grade,omitempty"`
}

// CreateCorrectionResponse returns the identifier assigned on creation.
type CreateCorrectionResponse struct {
	RequestID int64 `json:"request_id"`
}

// RejectRequest carries the mandatory rejection reason.
type RejectRequest struct {
	Reason string `json:"reason"`
}

// PendingSummary is one row of the approval queue.
type PendingSummary struct {
	RequestID     int64  `json:"request_id"`
	Date          string `json:"date"`
	ApplicantName string `json:"applicant_name"`
	StudentNumber string `json:"student_number"`
	StudentName   string `json:"student_name"`
	TypeLabel     string `json:"type"`
	ChangeDetail  string `json:"change_detail"`
	Reason        string `json:"reason"`
}

// HistorySummary is one row of the history listing.
type HistorySummary struct {
	RequestID     int64  `json:"request_id"`
	Date          string `json:"date"`
	Time          string `json:"time"`
	ApplicantName string `json:"applicant_name"`
	StudentNumber string `json:"student_number"`
	StudentName   string `json:"student_name"`
	TypeLabel     string `json:"type"`
	Subject       string `json:"subject"`
	CourseName    string `json:"course_name"`
	PeriodLabel   string `json:"period"`
	ChangeDetail  string `json:"change_detail"`
	Reason        string `json:"reason"`
	StatusLabel   string `json:"status"`
	ApproverName  string `json:"approver_name"`
}

// RequestDetail is the full record for one request.
type RequestDetail struct {
	Request models.CorrectionRequest  `json:"request"`
	Targets []models.CorrectionTarget `json:"targets"`
	Periods []string                  `json:"periods"`
}
