package models

import "time"

// Operation types recorded in the operation log.
const (
	OperationCreate  = "create"
	OperationApprove = "approve"
	OperationReject  = "reject"
	OperationLogin   = "login"
)

// OperationLog is an append-only audit entry. Rows are never updated or
// deleted; they outlive the request they reference.
type OperationLog struct {
	ID            string    `db:"log_id" json:"id"`
	RequestID     *int64    `db:"request_id" json:"request_id,omitempty"`
	OperationType string    `db:"operation_type" json:"operation_type"`
	OperatorName  string    `db:"operator_name" json:"operator_name"`
	OperatorID    *string   `db:"operator_id" json:"operator_id,omitempty"`
	Timestamp     time.Time `db:"operation_timestamp" json:"timestamp"`
	IPAddress     string    `db:"ip_address" json:"ip_address"`
	Hostname      string    `db:"hostname" json:"hostname"`
	UserAgent     string    `db:"user_agent" json:"user_agent"`
	OSInfo        string    `db:"os_info" json:"os_info"`
	Details       []byte    `db:"details" json:"details,omitempty"`
}
