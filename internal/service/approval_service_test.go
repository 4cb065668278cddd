package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NeuEntity/surm-student-portal-sub000/internal/dto"
	"github.com/NeuEntity/surm-student-portal-sub000/internal/models"
	appErrors "github.com/NeuEntity/surm-student-portal-sub000/pkg/errors"
)

func pendingLeave(requesterID string) *models.Submission {
	return &models.Submission{
		ID:          "sub-1",
		RequesterID: requesterID,
		Category:    models.CategoryAnnualLeave,
		Status:      models.StatusPending,
		Details:     []byte(`{"days":2}`),
	}
}

func principalUser(id string) *models.User {
	user := staffUser(id)
	user.RoleFlags = []string{"PRINCIPAL"}
	return user
}

func adminUser(id string) *models.User {
	return &models.User{ID: id, Role: models.RoleAdmin, Active: true}
}

func TestDecideApproveStaffLeave(t *testing.T) {
	store := newStubStore()
	store.getResult = pendingLeave("staff-1")
	users := &stubUsers{users: map[string]*models.User{
		"staff-1":     staffUser("staff-1"),
		"principal-1": principalUser("principal-1"),
	}}
	svc := NewApprovalService(store, users, nil, nil)

	submission, err := svc.Decide(context.Background(), "sub-1", dto.DecisionRequest{
		Decision: models.StatusApproved,
		Comments: "enjoy",
	}, &models.JWTClaims{UserID: "principal-1", Role: models.RoleTeacher})
	require.NoError(t, err)

	assert.Equal(t, models.StatusApproved, submission.Status)
	require.NotNil(t, submission.ReviewedBy)
	assert.Equal(t, "principal-1", *submission.ReviewedBy)
	require.NotNil(t, submission.ReviewComments)
	assert.Equal(t, "enjoy", *submission.ReviewComments)
	// Requester-supplied fields survive the review untouched.
	assert.Equal(t, "staff-1", submission.RequesterID)
	assert.JSONEq(t, `{"days":2}`, string(submission.Details))

	require.Len(t, store.updated, 1)
	assert.Equal(t, models.StatusApproved, store.updated[0].Status)
	require.Len(t, store.audits, 1)
	assert.Equal(t, models.AuditActionSubmissionApprove, store.audits[0].Action)
	assert.Equal(t, "principal-1", store.audits[0].ActorID)
}

func TestDecideAuthorizationMatrix(t *testing.T) {
	users := &stubUsers{users: map[string]*models.User{
		"staff-1":     staffUser("staff-1"),
		"student-1":   studentUser("student-1"),
		"teacher-2":   staffUser("teacher-2"),
		"admin-1":     adminUser("admin-1"),
		"principal-1": principalUser("principal-1"),
	}}

	cases := []struct {
		name      string
		requester string
		category  models.SubmissionCategory
		actor     *models.JWTClaims
		wantCode  string
	}{
		{
			name:      "plain teacher cannot decide staff leave",
			requester: "staff-1",
			category:  models.CategoryAnnualLeave,
			actor:     &models.JWTClaims{UserID: "teacher-2", Role: models.RoleTeacher},
			wantCode:  appErrors.ErrForbidden.Code,
		},
		{
			name:      "admin cannot decide staff leave",
			requester: "staff-1",
			category:  models.CategoryAnnualLeave,
			actor:     &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin},
			wantCode:  appErrors.ErrForbidden.Code,
		},
		{
			name:      "principal cannot decide student letters",
			requester: "student-1",
			category:  models.CategoryLetters,
			actor:     &models.JWTClaims{UserID: "principal-1", Role: models.RoleTeacher},
			wantCode:  appErrors.ErrForbidden.Code,
		},
		{
			name:      "principal cannot decide their own leave",
			requester: "principal-1",
			category:  models.CategoryAnnualLeave,
			actor:     &models.JWTClaims{UserID: "principal-1", Role: models.RoleTeacher},
			wantCode:  appErrors.ErrForbidden.Code,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newStubStore()
			submission := pendingLeave(tc.requester)
			submission.Category = tc.category
			store.getResult = submission
			svc := NewApprovalService(store, users, nil, nil)

			_, err := svc.Decide(context.Background(), "sub-1", dto.DecisionRequest{Decision: models.StatusApproved}, tc.actor)
			require.Error(t, err)
			assert.Equal(t, tc.wantCode, appErrors.FromError(err).Code)
			assert.Empty(t, store.updated)
		})
	}
}

func TestDecideAdminApprovesStudentSubmission(t *testing.T) {
	store := newStubStore()
	submission := pendingLeave("student-1")
	submission.Category = models.CategoryEarlyDismissal
	store.getResult = submission
	users := &stubUsers{users: map[string]*models.User{
		"student-1": studentUser("student-1"),
		"admin-1":   adminUser("admin-1"),
	}}
	svc := NewApprovalService(store, users, nil, nil)

	decided, err := svc.Decide(context.Background(), "sub-1", dto.DecisionRequest{Decision: models.StatusRejected},
		&models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, decided.Status)
	require.Len(t, store.audits, 1)
	assert.Equal(t, models.AuditActionSubmissionReject, store.audits[0].Action)
}

func TestDecideAlreadyDecided(t *testing.T) {
	store := newStubStore()
	submission := pendingLeave("staff-1")
	submission.Status = models.StatusRejected
	store.getResult = submission
	users := &stubUsers{users: map[string]*models.User{
		"staff-1":     staffUser("staff-1"),
		"principal-1": principalUser("principal-1"),
	}}
	svc := NewApprovalService(store, users, nil, nil)

	// Repeating or contradicting a decision fails identically.
	for _, decision := range []models.SubmissionStatus{models.StatusRejected, models.StatusApproved} {
		_, err := svc.Decide(context.Background(), "sub-1", dto.DecisionRequest{Decision: decision},
			&models.JWTClaims{UserID: "principal-1", Role: models.RoleTeacher})
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
	}
	assert.Empty(t, store.updated)
}

func TestDecideLostRaceMapsToInvalidTransition(t *testing.T) {
	store := newStubStore()
	store.getResult = pendingLeave("staff-1")
	store.updateErr = sql.ErrNoRows
	users := &stubUsers{users: map[string]*models.User{
		"staff-1":     staffUser("staff-1"),
		"principal-1": principalUser("principal-1"),
	}}
	svc := NewApprovalService(store, users, nil, nil)

	_, err := svc.Decide(context.Background(), "sub-1", dto.DecisionRequest{Decision: models.StatusApproved},
		&models.JWTClaims{UserID: "principal-1", Role: models.RoleTeacher})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
}

func TestDecideAssignmentNeverReviewed(t *testing.T) {
	store := newStubStore()
	submission := pendingLeave("student-1")
	submission.Category = models.CategoryAssignment
	store.getResult = submission
	users := &stubUsers{users: map[string]*models.User{
		"student-1": studentUser("student-1"),
		"admin-1":   adminUser("admin-1"),
	}}
	svc := NewApprovalService(store, users, nil, nil)

	_, err := svc.Decide(context.Background(), "sub-1", dto.DecisionRequest{Decision: models.StatusApproved},
		&models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestDecideNotFound(t *testing.T) {
	store := newStubStore()
	store.getErr = sql.ErrNoRows
	svc := NewApprovalService(store, &stubUsers{users: map[string]*models.User{}}, nil, nil)

	_, err := svc.Decide(context.Background(), "missing", dto.DecisionRequest{Decision: models.StatusApproved},
		&models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestDecideInvalidDecisionValue(t *testing.T) {
	store := newStubStore()
	svc := NewApprovalService(store, &stubUsers{users: map[string]*models.User{}}, nil, nil)

	_, err := svc.Decide(context.Background(), "sub-1", dto.DecisionRequest{Decision: models.StatusPending},
		&models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
