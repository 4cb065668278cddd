package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/NeuEntity/surm-student-portal-sub000/internal/models"
	appErrors "github.com/NeuEntity/surm-student-portal-sub000/pkg/errors"
)

type auditReader interface {
	ListByTarget(ctx context.Context, targetType, targetID string) ([]models.AuditRecord, error)
}

type submissionReader interface {
	GetByID(ctx context.Context, id string) (*models.Submission, error)
}

// AuditService serves the audit trail for a submission. Scope follows the
// submission itself: whoever may read the submission may read its trail.
type AuditService struct {
	audit       auditReader
	submissions submissionReader
	users       userFinder
}

// NewAuditService constructs the service.
func NewAuditService(audit auditReader, submissions submissionReader, users userFinder) *AuditService {
	return &AuditService{audit: audit, submissions: submissions, users: users}
}

// Trail returns the ordered audit records for one submission.
func (s *AuditService) Trail(ctx context.Context, submissionID string, actor *models.JWTClaims) ([]models.AuditRecord, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to load submission")
	}
	if submission.RequesterID != actor.UserID {
		allowed, err := wideScope(ctx, s.users, actor)
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, appErrors.ErrForbidden
		}
	}
	records, err := s.audit.ListByTarget(ctx, models.AuditTargetSubmission, submissionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to load audit trail")
	}
	return records, nil
}
