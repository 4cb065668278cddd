package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/NeuEntity/surm-student-portal-sub000/internal/dto"
	"github.com/NeuEntity/surm-student-portal-sub000/internal/models"
	"github.com/NeuEntity/surm-student-portal-sub000/internal/repository"
	appErrors "github.com/NeuEntity/surm-student-portal-sub000/pkg/errors"
)

type submissionStore interface {
	CreateWithQuota(ctx context.Context, submission *models.Submission, quota *repository.Quota, audit *models.AuditRecord) error
	GetByID(ctx context.Context, id string) (*models.Submission, error)
	List(ctx context.Context, filter models.SubmissionFilter) ([]models.Submission, int, error)
	UpdateStatus(ctx context.Context, params repository.UpdateStatusParams, audit *models.AuditRecord) error
}

type overviewInvalidator interface {
	InvalidatePerson(ctx context.Context, personID string)
}

// studentCountedCategories share one bounded submission count per year.
var studentCountedCategories = []models.SubmissionCategory{
	models.CategoryLetters,
	models.CategoryEarlyDismissal,
	models.CategoryMedicalCert,
}

// SubmissionService validates and persists new submissions and serves reads.
// Admission control runs inside the store transaction, so validation here is
// shape and eligibility only; balance math is never done on stale reads.
type SubmissionService struct {
	repo       submissionStore
	users      userFinder
	table      *models.EntitlementTable
	studentCap int
	overview   overviewInvalidator
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewSubmissionService constructs the service.
func NewSubmissionService(repo submissionStore, users userFinder, table *models.EntitlementTable, studentCap int, overview overviewInvalidator, logger *zap.Logger) *SubmissionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubmissionService{
		repo:       repo,
		users:      users,
		table:      table,
		studentCap: studentCap,
		overview:   overview,
		validator:  validator.New(),
		logger:     logger,
	}
}

// Create validates the request against the requester's eligibility, routes it
// to the right admission check and persists it. Assignments skip review and
// are stored APPROVED; everything else starts PENDING.
func (s *SubmissionService) Create(ctx context.Context, req dto.CreateSubmissionRequest, actor *models.JWTClaims) (*models.Submission, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid submission payload")
	}
	if !req.Category.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported category: %s", req.Category))
	}

	details, err := models.DecodeDetails(req.Category, req.Details)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}

	requester, err := s.users.FindByID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "unknown requester")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to load requester")
	}
	if !requester.Active {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "account is inactive")
	}

	quota, status, err := s.route(requester, req.Category, details)
	if err != nil {
		return nil, err
	}

	encoded, err := details.Encode()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode details")
	}

	submission := &models.Submission{
		RequesterID: requester.ID,
		Category:    req.Category,
		Status:      status,
		FileKey:     req.FileKey,
		Details:     encoded,
	}
	audit := &models.AuditRecord{
		Action:  models.AuditActionSubmissionCreate,
		ActorID: requester.ID,
		Details: auditDetails(map[string]interface{}{
			"category": req.Category,
			"status":   status,
			"days":     details.Days(),
		}),
	}

	if err := s.repo.CreateWithQuota(ctx, submission, quota, audit); err != nil {
		var quotaErr *repository.QuotaError
		if errors.As(err, &quotaErr) {
			return nil, appErrors.Clone(appErrors.ErrQuotaExceeded, quotaMessage(req.Category, quotaErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to create submission")
	}

	s.invalidateOverview(ctx, requester.ID)
	return submission, nil
}

// route maps (requester, category) to the admission check and initial status.
// Staff leave draws on a per-category day balance; student letters, early
// dismissals and medical certificates share one counted allowance.
func (s *SubmissionService) route(requester *models.User, category models.SubmissionCategory, details models.SubmissionDetails) (*repository.Quota, models.SubmissionStatus, error) {
	switch category {
	case models.CategoryAssignment:
		if requester.Role != models.RoleStudent {
			return nil, "", appErrors.Clone(appErrors.ErrValidation, "assignments can only be submitted by students")
		}
		return nil, models.StatusApproved, nil

	case models.CategoryAnnualLeave:
		if !requester.IsStaff() {
			return nil, "", appErrors.Clone(appErrors.ErrValidation, "annual leave is only available to staff")
		}
		return s.dayQuota(requester, category, details), models.StatusPending, nil

	case models.CategoryMedicalCert:
		if requester.IsStaff() {
			return s.dayQuota(requester, category, details), models.StatusPending, nil
		}
		return s.studentQuota(), models.StatusPending, nil

	case models.CategoryLetters, models.CategoryEarlyDismissal:
		if requester.Role != models.RoleStudent {
			return nil, "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s submissions are only available to students", category))
		}
		return s.studentQuota(), models.StatusPending, nil

	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported category: %s", category))
	}
}

func (s *SubmissionService) dayQuota(requester *models.User, category models.SubmissionCategory, details models.SubmissionDetails) *repository.Quota {
	return &repository.Quota{
		Ledger:     "days:" + string(category),
		Categories: []models.SubmissionCategory{category},
		Limit:      s.table.DaysFor(requester.Employment, category),
		Requested:  details.Days(),
		Unit:       repository.QuotaDays,
	}
}

func (s *SubmissionService) studentQuota() *repository.Quota {
	return &repository.Quota{
		Ledger:     "count:student",
		Categories: studentCountedCategories,
		Limit:      s.studentCap,
		Requested:  1,
		Unit:       repository.QuotaCount,
	}
}

func quotaMessage(category models.SubmissionCategory, err *repository.QuotaError) string {
	if err.Unit == repository.QuotaDays {
		return fmt.Sprintf("Insufficient %s balance. Remaining: %d days.", category, err.Remaining)
	}
	return fmt.Sprintf("Submission limit reached. Remaining: %d this year.", err.Remaining)
}

// Get returns a submission enforcing scope: requesters see their own, staff
// with decision rights and admins see everything.
func (s *SubmissionService) Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.Submission, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	submission, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to load submission")
	}
	if submission.RequesterID == actor.UserID {
		return submission, nil
	}
	wide, err := s.hasWideScope(ctx, actor)
	if err != nil {
		return nil, err
	}
	if !wide {
		return nil, appErrors.ErrForbidden
	}
	return submission, nil
}

// List returns submissions the actor may see, with the total count for
// pagination.
func (s *SubmissionService) List(ctx context.Context, query dto.SubmissionQuery, actor *models.JWTClaims) ([]models.Submission, int, error) {
	if actor == nil {
		return nil, 0, appErrors.ErrUnauthorized
	}
	filter := models.SubmissionFilter{
		RequesterID: query.RequesterID,
		Category:    query.Category,
		Status:      query.Status,
		DateFrom:    query.DateFrom,
		DateTo:      query.DateTo,
		Page:        query.Page,
		PageSize:    query.PageSize,
		SortBy:      query.SortBy,
		SortOrder:   query.SortOrder,
	}

	wide, err := s.hasWideScope(ctx, actor)
	if err != nil {
		return nil, 0, err
	}
	if !wide {
		filter.RequesterID = actor.UserID
	}

	submissions, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to list submissions")
	}
	return submissions, total, nil
}

// hasWideScope reports whether the actor may see submissions beyond their
// own.
func (s *SubmissionService) hasWideScope(ctx context.Context, actor *models.JWTClaims) (bool, error) {
	return wideScope(ctx, s.users, actor)
}

func (s *SubmissionService) invalidateOverview(ctx context.Context, personID string) {
	if s.overview == nil {
		return
	}
	s.overview.InvalidatePerson(ctx, personID)
}

func auditDetails(payload map[string]interface{}) []byte {
	raw, err := json.Marshal(payload)
	if err != nil {
		return []byte("{}")
	}
	return raw
}
