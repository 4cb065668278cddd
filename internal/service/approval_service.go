package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/NeuEntity/surm-student-portal-sub000/internal/dto"
	"github.com/NeuEntity/surm-student-portal-sub000/internal/models"
	"github.com/NeuEntity/surm-student-portal-sub000/internal/repository"
	appErrors "github.com/NeuEntity/surm-student-portal-sub000/pkg/errors"
)

// ApprovalService applies reviewer decisions. Authorization is evaluated on
// every call against the current user record, and the PENDING guard lives in
// the store's UPDATE, so a stale read here can never double-decide.
type ApprovalService struct {
	repo     submissionStore
	users    userFinder
	overview overviewInvalidator
	logger   *zap.Logger
}

// NewApprovalService constructs the service.
func NewApprovalService(repo submissionStore, users userFinder, overview overviewInvalidator, logger *zap.Logger) *ApprovalService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ApprovalService{repo: repo, users: users, overview: overview, logger: logger}
}

// Decide transitions a PENDING submission to APPROVED or REJECTED. Repeating
// a decision, or contradicting one, fails the same way: the submission is no
// longer PENDING.
func (s *ApprovalService) Decide(ctx context.Context, id string, req dto.DecisionRequest, actor *models.JWTClaims) (*models.Submission, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if req.Decision != models.StatusApproved && req.Decision != models.StatusRejected {
		return nil, appErrors.Clone(appErrors.ErrValidation, "decision must be APPROVED or REJECTED")
	}

	submission, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to load submission")
	}

	requester, err := s.users.FindByID(ctx, submission.RequesterID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "requester not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to load requester")
	}

	capability, reviewed := models.DecisionCapability(submission.Category, requester.Role)
	if !reviewed {
		return nil, appErrors.Clone(appErrors.ErrValidation, "submissions in this category are not reviewed")
	}

	reviewer, err := s.users.FindByID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrForbidden
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to load reviewer")
	}
	if !models.HasCapability(reviewer, capability) {
		return nil, appErrors.ErrForbidden
	}
	if reviewer.ID == submission.RequesterID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot review your own submission")
	}

	if submission.Status != models.StatusPending {
		return nil, appErrors.ErrInvalidTransition
	}

	action := models.AuditActionSubmissionApprove
	if req.Decision == models.StatusRejected {
		action = models.AuditActionSubmissionReject
	}
	audit := &models.AuditRecord{
		Action:  action,
		ActorID: reviewer.ID,
		Details: auditDetails(map[string]interface{}{
			"decision": req.Decision,
			"comments": req.Comments,
		}),
	}

	err = s.repo.UpdateStatus(ctx, repository.UpdateStatusParams{
		ID:         submission.ID,
		Status:     req.Decision,
		ReviewerID: reviewer.ID,
		Comments:   req.Comments,
	}, audit)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Lost the race to another reviewer between read and update.
			return nil, appErrors.ErrInvalidTransition
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to apply decision")
	}

	now := time.Now().UTC()
	submission.Status = req.Decision
	submission.ReviewedBy = &reviewer.ID
	submission.ReviewedAt = &now
	if req.Comments != "" {
		submission.ReviewComments = &req.Comments
	}
	submission.UpdatedAt = now

	if s.overview != nil {
		s.overview.InvalidatePerson(ctx, submission.RequesterID)
	}
	return submission, nil
}
