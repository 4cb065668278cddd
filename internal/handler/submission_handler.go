package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/NeuEntity/surm-student-portal-sub000/internal/dto"
	"github.com/NeuEntity/surm-student-portal-sub000/internal/models"
	"github.com/NeuEntity/surm-student-portal-sub000/internal/service"
	appErrors "github.com/NeuEntity/surm-student-portal-sub000/pkg/errors"
	"github.com/NeuEntity/surm-student-portal-sub000/pkg/response"
	"github.com/NeuEntity/surm-student-portal-sub000/pkg/storage"
)

type submissionService interface {
	Create(ctx context.Context, req dto.CreateSubmissionRequest, actor *models.JWTClaims) (*models.Submission, error)
	Get(ctx context.Context, id string, actor *models.JWTClaims) (*models.Submission, error)
	List(ctx context.Context, query dto.SubmissionQuery, actor *models.JWTClaims) ([]models.Submission, int, error)
}

type approvalService interface {
	Decide(ctx context.Context, id string, req dto.DecisionRequest, actor *models.JWTClaims) (*models.Submission, error)
}

type balanceService interface {
	Balance(ctx context.Context, personID string, year int, actor *models.JWTClaims) (*models.LeaveBalance, error)
}

type overviewService interface {
	Overview(ctx context.Context, personID string, year int, actor *models.JWTClaims) (*dto.LeaveOverviewResponse, bool, error)
}

type auditService interface {
	Trail(ctx context.Context, submissionID string, actor *models.JWTClaims) ([]models.AuditRecord, error)
}

// SubmissionHandler exposes the REST endpoints for the submission engine.
type SubmissionHandler struct {
	submissions submissionService
	approvals   approvalService
	balances    balanceService
	overviews   overviewService
	audits      auditService
	signer      *storage.AttachmentSigner
	metrics     *service.MetricsService
}

// NewSubmissionHandler constructs the handler.
func NewSubmissionHandler(submissions submissionService, approvals approvalService, balances balanceService, overviews overviewService, audits auditService, signer *storage.AttachmentSigner, metrics *service.MetricsService) *SubmissionHandler {
	return &SubmissionHandler{
		submissions: submissions,
		approvals:   approvals,
		balances:    balances,
		overviews:   overviews,
		audits:      audits,
		signer:      signer,
		metrics:     metrics,
	}
}

// Create godoc
// @Summary Submit a leave request, letter, form or assignment
// @Tags Submissions
// @Accept json
// @Produce json
// @Param payload body dto.CreateSubmissionRequest true "Submission payload"
// @Success 201 {object} response.Envelope
// @Router /submissions [post]
func (h *SubmissionHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreateSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid submission payload"))
		return
	}
	submission, err := h.submissions.Create(c.Request.Context(), req, claims)
	if err != nil {
		if appErrors.FromError(err).Code == appErrors.ErrQuotaExceeded.Code {
			h.metrics.RecordQuotaRejection(req.Category)
		}
		response.Error(c, err)
		return
	}
	h.metrics.RecordSubmissionCreated(submission.Category)
	response.Created(c, submission)
}

// List godoc
// @Summary List submissions visible to the caller
// @Tags Submissions
// @Produce json
// @Param requester_id query string false "Requester ID"
// @Param category query string false "Category"
// @Param status query string false "Comma separated statuses"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /submissions [get]
func (h *SubmissionHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	query := dto.SubmissionQuery{
		RequesterID: strings.TrimSpace(c.Query("requester_id")),
		SortBy:      c.Query("sort_by"),
		SortOrder:   c.Query("sort_order"),
	}
	if raw := c.Query("category"); raw != "" {
		query.Category = models.SubmissionCategory(strings.ToUpper(raw))
	}
	if raw := c.Query("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			part = strings.ToUpper(strings.TrimSpace(part))
			if part != "" {
				query.Status = append(query.Status, models.SubmissionStatus(part))
			}
		}
	}
	query.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	query.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if from, err := time.Parse("2006-01-02", c.Query("date_from")); err == nil {
		query.DateFrom = &from
	}
	if to, err := time.Parse("2006-01-02", c.Query("date_to")); err == nil {
		query.DateTo = &to
	}

	submissions, total, err := h.submissions.List(c.Request.Context(), query, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submissions, &models.Pagination{
		Page:       query.Page,
		PageSize:   query.PageSize,
		TotalCount: total,
	})
}

// Get godoc
// @Summary Get submission detail
// @Tags Submissions
// @Produce json
// @Param id path string true "Submission ID"
// @Success 200 {object} response.Envelope
// @Router /submissions/{id} [get]
func (h *SubmissionHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	submission, err := h.submissions.Get(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submission, nil)
}

// Decide godoc
// @Summary Approve or reject a pending submission
// @Tags Submissions
// @Accept json
// @Produce json
// @Param id path string true "Submission ID"
// @Param payload body dto.DecisionRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Router /submissions/{id}/decision [post]
func (h *SubmissionHandler) Decide(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid decision payload"))
		return
	}
	submission, err := h.approvals.Decide(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordDecision(submission.Status)
	response.JSON(c, http.StatusOK, submission, nil)
}

// Balance godoc
// @Summary Get a person's leave balance for a year
// @Tags Balances
// @Produce json
// @Param id path string true "Person ID"
// @Param year query int false "Calendar year, defaults to current"
// @Success 200 {object} response.Envelope
// @Router /users/{id}/leave-balance [get]
func (h *SubmissionHandler) Balance(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	year, err := yearParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	balance, err := h.balances.Balance(c.Request.Context(), c.Param("id"), year, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, balance, nil)
}

// Overview godoc
// @Summary Get a cached overview of a person's leave year
// @Tags Balances
// @Produce json
// @Param id path string true "Person ID"
// @Param year query int false "Calendar year, defaults to current"
// @Success 200 {object} response.Envelope
// @Router /users/{id}/leave-overview [get]
func (h *SubmissionHandler) Overview(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	year, err := yearParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	overview, cached, err := h.overviews.Overview(c.Request.Context(), c.Param("id"), year, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordCacheOperation(cached)
	response.JSON(c, http.StatusOK, overview, nil, map[string]interface{}{"cache_hit": cached})
}

// AuditTrail godoc
// @Summary Get the audit trail of a submission
// @Tags Submissions
// @Produce json
// @Param id path string true "Submission ID"
// @Success 200 {object} response.Envelope
// @Router /submissions/{id}/audit [get]
func (h *SubmissionHandler) AuditTrail(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	records, err := h.audits.Trail(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}

// AttachmentURL godoc
// @Summary Get a signed download token for a submission attachment
// @Tags Submissions
// @Produce json
// @Param id path string true "Submission ID"
// @Success 200 {object} response.Envelope
// @Router /submissions/{id}/attachment-url [get]
func (h *SubmissionHandler) AttachmentURL(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	submission, err := h.submissions.Get(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	if submission.FileKey == "" || submission.FileKey == models.NoAttachmentKey {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "submission has no attachment"))
		return
	}
	token, expiresAt, err := h.signer.Generate(submission.ID, submission.FileKey)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign attachment url"))
		return
	}
	response.JSON(c, http.StatusOK, dto.AttachmentURLResponse{Token: token, ExpiresAt: expiresAt}, nil)
}

// yearParam defaults to the current UTC year when the query is absent. A
// year that is present but unparseable or out of range is rejected rather
// than silently replaced.
func yearParam(c *gin.Context) (int, error) {
	raw := c.Query("year")
	if raw == "" {
		return time.Now().UTC().Year(), nil
	}
	year, err := strconv.Atoi(raw)
	if err != nil || year < 2000 || year > 2200 {
		return 0, appErrors.Clone(appErrors.ErrValidation, "year must be a number between 2000 and 2200")
	}
	return year, nil
}
