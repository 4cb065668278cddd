package dto

import (
	"encoding/json"
	"time"

	"github.com/NeuEntity/surm-student-portal-sub000/internal/models"
)

// CreateSubmissionRequest is the payload for submitting a new request. The
// details blob is decoded once into the category's typed variant.
type CreateSubmissionRequest struct {
	Category models.SubmissionCategory `json:"category" binding:"required" validate:"required"`
	Details  json.RawMessage           `json:"details" binding:"required" validate:"required"`
	FileKey  string                    `json:"file_key"`
}

// DecisionRequest captures a reviewer's decision and optional comments.
type DecisionRequest struct {
	Decision models.SubmissionStatus `json:"decision" binding:"required"`
	Comments string                  `json:"comments"`
}

// SubmissionQuery mirrors the supported listing filters.
type SubmissionQuery struct {
	RequesterID string
	Category    models.SubmissionCategory
	Status      []models.SubmissionStatus
	DateFrom    *time.Time
	DateTo      *time.Time
	Page        int
	PageSize    int
	SortBy      string
	SortOrder   string
}

// AttachmentURLResponse carries a signed download token for an attachment.
type AttachmentURLResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// LeaveOverviewResponse is the cached dashboard view of a person's year.
type LeaveOverviewResponse struct {
	PersonID    string              `json:"person_id"`
	Year        int                 `json:"year"`
	Balance     models.LeaveBalance `json:"balance"`
	Pending     int                 `json:"pending_submissions"`
	Decided     int                 `json:"decided_submissions"`
	GeneratedAt time.Time           `json:"generated_at"`
}
