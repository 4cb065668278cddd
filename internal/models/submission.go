package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// SubmissionCategory enumerates the supported submission types.
type SubmissionCategory string

const (
	CategoryAnnualLeave    SubmissionCategory = "ANNUAL_LEAVE"
	CategoryMedicalCert    SubmissionCategory = "MEDICAL_CERT"
	CategoryAssignment     SubmissionCategory = "ASSIGNMENT"
	CategoryEarlyDismissal SubmissionCategory = "EARLY_DISMISSAL"
	CategoryLetters        SubmissionCategory = "LETTERS"
)

// Valid returns true when the category is a supported value.
func (c SubmissionCategory) Valid() bool {
	switch c {
	case CategoryAnnualLeave, CategoryMedicalCert, CategoryAssignment, CategoryEarlyDismissal, CategoryLetters:
		return true
	default:
		return false
	}
}

// BalanceTracked reports whether the category draws on a per-year day
// balance when requested by staff.
func (c SubmissionCategory) BalanceTracked() bool {
	return c == CategoryAnnualLeave || c == CategoryMedicalCert
}

// SubmissionStatus captures the lifecycle states of a submission.
type SubmissionStatus string

const (
	StatusPending  SubmissionStatus = "PENDING"
	StatusApproved SubmissionStatus = "APPROVED"
	StatusRejected SubmissionStatus = "REJECTED"
)

// Valid returns true when the status is a supported value.
func (s SubmissionStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	default:
		return false
	}
}

// NoAttachmentKey is the sentinel stored when a submission carries no file.
const NoAttachmentKey = "-"

// Submission is the central entity of the engine. Details hold the decoded,
// category-tagged request payload serialized as JSON; reviewer fields live in
// dedicated columns so a review can never clobber requester-supplied data.
type Submission struct {
	ID             string             `db:"id" json:"id"`
	RequesterID    string             `db:"requester_id" json:"requester_id"`
	Category       SubmissionCategory `db:"category" json:"category"`
	Status         SubmissionStatus   `db:"status" json:"status"`
	FileKey        string             `db:"file_key" json:"file_key"`
	Details        json.RawMessage    `db:"details" json:"details"`
	ReviewedBy     *string            `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt     *time.Time         `db:"reviewed_at" json:"reviewed_at,omitempty"`
	ReviewComments *string            `db:"review_comments" json:"review_comments,omitempty"`
	CreatedAt      time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time          `db:"updated_at" json:"updated_at"`
}

// LeaveDetails is the payload for ANNUAL_LEAVE and staff/student
// MEDICAL_CERT submissions. Days is the inclusive span length.
type LeaveDetails struct {
	Days      int    `json:"days"`
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// EarlyDismissalDetails is the payload for student early-dismissal forms.
type EarlyDismissalDetails struct {
	Date   string `json:"date"`
	Time   string `json:"time,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// LetterDetails is the payload for student letter submissions.
type LetterDetails struct {
	Subject string `json:"subject"`
	Body    string `json:"body,omitempty"`
}

// AssignmentDetails is the payload for assignment uploads.
type AssignmentDetails struct {
	Title string `json:"title"`
	Notes string `json:"notes,omitempty"`
}

// SubmissionDetails is the tagged variant decoded once at the boundary. At
// most one branch is set, matching the submission category.
type SubmissionDetails struct {
	Leave          *LeaveDetails
	EarlyDismissal *EarlyDismissalDetails
	Letter         *LetterDetails
	Assignment     *AssignmentDetails
}

// Days returns the day count the submission draws from a balance, or zero
// for categories without one. Missing payloads contribute zero; that is a
// data-quality edge case, not an error.
func (d SubmissionDetails) Days() int {
	if d.Leave == nil {
		return 0
	}
	return d.Leave.Days
}

const dateLayout = "2006-01-02"

// DecodeDetails parses and validates a raw payload against the category's
// variant. Validation failures are user-correctable and reported verbatim.
func DecodeDetails(category SubmissionCategory, raw json.RawMessage) (SubmissionDetails, error) {
	var details SubmissionDetails
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	switch category {
	case CategoryAnnualLeave, CategoryMedicalCert:
		var leave LeaveDetails
		if err := json.Unmarshal(raw, &leave); err != nil {
			return details, fmt.Errorf("invalid leave details: %w", err)
		}
		if leave.Days <= 0 {
			return details, fmt.Errorf("days must be a positive integer")
		}
		if leave.StartDate != "" && leave.EndDate != "" {
			start, err := time.Parse(dateLayout, leave.StartDate)
			if err != nil {
				return details, fmt.Errorf("invalid start_date: %w", err)
			}
			end, err := time.Parse(dateLayout, leave.EndDate)
			if err != nil {
				return details, fmt.Errorf("invalid end_date: %w", err)
			}
			if end.Before(start) {
				return details, fmt.Errorf("end_date before start_date")
			}
		}
		details.Leave = &leave
	case CategoryEarlyDismissal:
		var ed EarlyDismissalDetails
		if err := json.Unmarshal(raw, &ed); err != nil {
			return details, fmt.Errorf("invalid early dismissal details: %w", err)
		}
		if ed.Date == "" {
			return details, fmt.Errorf("date is required")
		}
		if _, err := time.Parse(dateLayout, ed.Date); err != nil {
			return details, fmt.Errorf("invalid date: %w", err)
		}
		details.EarlyDismissal = &ed
	case CategoryLetters:
		var letter LetterDetails
		if err := json.Unmarshal(raw, &letter); err != nil {
			return details, fmt.Errorf("invalid letter details: %w", err)
		}
		if letter.Subject == "" {
			return details, fmt.Errorf("subject is required")
		}
		details.Letter = &letter
	case CategoryAssignment:
		var assignment AssignmentDetails
		if err := json.Unmarshal(raw, &assignment); err != nil {
			return details, fmt.Errorf("invalid assignment details: %w", err)
		}
		details.Assignment = &assignment
	default:
		return details, fmt.Errorf("unsupported category: %s", category)
	}
	return details, nil
}

// Encode serializes the populated variant back to JSON for persistence.
func (d SubmissionDetails) Encode() (json.RawMessage, error) {
	switch {
	case d.Leave != nil:
		return json.Marshal(d.Leave)
	case d.EarlyDismissal != nil:
		return json.Marshal(d.EarlyDismissal)
	case d.Letter != nil:
		return json.Marshal(d.Letter)
	case d.Assignment != nil:
		return json.Marshal(d.Assignment)
	default:
		return json.RawMessage("{}"), nil
	}
}

// DecodedDetails re-decodes the stored payload. Decode failures on stored
// rows degrade to an empty variant rather than failing reads.
func (s *Submission) DecodedDetails() SubmissionDetails {
	details, err := DecodeDetails(s.Category, s.Details)
	if err != nil {
		return SubmissionDetails{}
	}
	return details
}

// SubmissionFilter scopes listing queries.
type SubmissionFilter struct {
	RequesterID string
	Category    SubmissionCategory
	Status      []SubmissionStatus
	DateFrom    *time.Time
	DateTo      *time.Time
	Page        int
	PageSize    int
	SortBy      string
	SortOrder   string
}

// CategoryUsage is one aggregation row: total days and submission count per
// category and status within a year window.
type CategoryUsage struct {
	Category SubmissionCategory `db:"category"`
	Status   SubmissionStatus   `db:"status"`
	Days     int                `db:"days"`
	Count    int                `db:"count"`
}

// CategoryBalance is the per-category view returned by the aggregator.
type CategoryBalance struct {
	Total     int `json:"total"`
	Used      int `json:"used"`
	Pending   int `json:"pending"`
	Remaining int `json:"remaining"`
}

// LeaveBalance groups both balance-tracked categories for a person/year.
type LeaveBalance struct {
	PersonID     string          `json:"person_id"`
	Year         int             `json:"year"`
	AnnualLeave  CategoryBalance `json:"annual_leave"`
	MedicalLeave CategoryBalance `json:"medical_leave"`
}

// YearWindow returns the UTC calendar-year bounds used by the aggregator:
// [start of year, start of next year).
func YearWindow(year int) (time.Time, time.Time) {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(1, 0, 0)
}
