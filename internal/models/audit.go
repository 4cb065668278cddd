package models

import "time"

// AuditAction constants represent actions to be logged.
const (
	AuditActionSubmissionCreate  = "SUBMISSION_CREATE"
	AuditActionSubmissionApprove = "SUBMISSION_APPROVE"
	AuditActionSubmissionReject  = "SUBMISSION_REJECT"
)

// AuditTargetSubmission is the target type for submission records.
const AuditTargetSubmission = "SUBMISSION"

// AuditRecord is an append-only trail entry. Exactly one record is written
// per successful mutating action, in the same transaction as the mutation;
// records are never updated or deleted.
type AuditRecord struct {
	ID         string    `db:"id" json:"id"`
	Action     string    `db:"action" json:"action"`
	TargetType string    `db:"target_type" json:"target_type"`
	TargetID   string    `db:"target_id" json:"target_id"`
	ActorID    string    `db:"actor_id" json:"actor_id"`
	Details    []byte    `db:"details" json:"details,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
