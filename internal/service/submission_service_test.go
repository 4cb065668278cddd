package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NeuEntity/surm-student-portal-sub000/internal/dto"
	"github.com/NeuEntity/surm-student-portal-sub000/internal/models"
	"github.com/NeuEntity/surm-student-portal-sub000/internal/repository"
	"github.com/NeuEntity/surm-student-portal-sub000/pkg/config"
	appErrors "github.com/NeuEntity/surm-student-portal-sub000/pkg/errors"
)

// stubStore mimics the transactional store. The mutex stands in for the
// per-ledger advisory lock: usage reads and inserts are atomic per call.
type stubStore struct {
	mu       sync.Mutex
	consumed map[string]int

	created []*models.Submission
	audits  []*models.AuditRecord

	getResult *models.Submission
	getErr    error

	updated   []repository.UpdateStatusParams
	updateErr error

	listResult []models.Submission
	listTotal  int
	lastFilter models.SubmissionFilter
}

func newStubStore() *stubStore {
	return &stubStore{consumed: map[string]int{}}
}

func (s *stubStore) CreateWithQuota(_ context.Context, submission *models.Submission, quota *repository.Quota, audit *models.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if quota != nil {
		remaining := quota.Limit - s.consumed[quota.Ledger]
		if remaining < 0 {
			remaining = 0
		}
		if quota.Requested > remaining {
			return &repository.QuotaError{Remaining: remaining, Requested: quota.Requested, Unit: quota.Unit}
		}
		s.consumed[quota.Ledger] += quota.Requested
	}
	submission.ID = fmt.Sprintf("sub-%d", len(s.created)+1)
	s.created = append(s.created, submission)
	if audit != nil {
		audit.TargetID = submission.ID
		s.audits = append(s.audits, audit)
	}
	return nil
}

func (s *stubStore) GetByID(context.Context, string) (*models.Submission, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.getResult, nil
}

func (s *stubStore) List(_ context.Context, filter models.SubmissionFilter) ([]models.Submission, int, error) {
	s.lastFilter = filter
	return s.listResult, s.listTotal, nil
}

func (s *stubStore) UpdateStatus(_ context.Context, params repository.UpdateStatusParams, audit *models.AuditRecord) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	s.updated = append(s.updated, params)
	if audit != nil {
		audit.TargetID = params.ID
		s.audits = append(s.audits, audit)
	}
	return nil
}

type stubUsers struct {
	users map[string]*models.User
}

func (s *stubUsers) FindByID(_ context.Context, id string) (*models.User, error) {
	user, ok := s.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func testTable() *models.EntitlementTable {
	return models.NewEntitlementTable(config.EntitlementConfig{
		FullTimeAnnual:           14,
		FullTimeMedical:          14,
		PermanentPartTimeAnnual:  10,
		PermanentPartTimeMedical: 14,
		PartTimeAnnual:           7,
		PartTimeMedical:          7,
	})
}

func staffUser(id string) *models.User {
	return &models.User{ID: id, Role: models.RoleTeacher, Employment: models.EmploymentFullTime, Active: true}
}

func studentUser(id string) *models.User {
	return &models.User{ID: id, Role: models.RoleStudent, Active: true}
}

func claimsFor(user *models.User) *models.JWTClaims {
	return &models.JWTClaims{UserID: user.ID, Role: user.Role}
}

func newSubmissionServiceForTest(store *stubStore, users *stubUsers) *SubmissionService {
	return NewSubmissionService(store, users, testTable(), 5, nil, nil)
}

func TestCreateStaffAnnualLeave(t *testing.T) {
	store := newStubStore()
	staff := staffUser("staff-1")
	svc := newSubmissionServiceForTest(store, &stubUsers{users: map[string]*models.User{"staff-1": staff}})

	submission, err := svc.Create(context.Background(), dto.CreateSubmissionRequest{
		Category: models.CategoryAnnualLeave,
		Details:  []byte(`{"days":3,"start_date":"2026-03-02","end_date":"2026-03-04"}`),
	}, claimsFor(staff))
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, submission.Status)
	require.Len(t, store.created, 1)
	assert.Equal(t, 3, store.consumed["days:ANNUAL_LEAVE"])

	require.Len(t, store.audits, 1)
	assert.Equal(t, models.AuditActionSubmissionCreate, store.audits[0].Action)
	assert.Equal(t, submission.ID, store.audits[0].TargetID)
	assert.Equal(t, "staff-1", store.audits[0].ActorID)
}

func TestCreateAssignmentAutoApproved(t *testing.T) {
	store := newStubStore()
	student := studentUser("student-1")
	svc := newSubmissionServiceForTest(store, &stubUsers{users: map[string]*models.User{"student-1": student}})

	submission, err := svc.Create(context.Background(), dto.CreateSubmissionRequest{
		Category: models.CategoryAssignment,
		Details:  []byte(`{"title":"essay"}`),
	}, claimsFor(student))
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, submission.Status)
	assert.Empty(t, store.consumed)
}

func TestCreateStudentCountedQuota(t *testing.T) {
	store := newStubStore()
	student := studentUser("student-1")
	svc := newSubmissionServiceForTest(store, &stubUsers{users: map[string]*models.User{"student-1": student}})

	// LETTERS, EARLY_DISMISSAL and student MEDICAL_CERT share one counter.
	for i, req := range []dto.CreateSubmissionRequest{
		{Category: models.CategoryLetters, Details: []byte(`{"subject":"absence"}`)},
		{Category: models.CategoryEarlyDismissal, Details: []byte(`{"date":"2026-05-11"}`)},
		{Category: models.CategoryMedicalCert, Details: []byte(`{"days":1}`)},
		{Category: models.CategoryLetters, Details: []byte(`{"subject":"trip"}`)},
		{Category: models.CategoryLetters, Details: []byte(`{"subject":"late"}`)},
	} {
		_, err := svc.Create(context.Background(), req, claimsFor(student))
		require.NoError(t, err, "request %d", i)
	}
	assert.Equal(t, 5, store.consumed["count:student"])

	_, err := svc.Create(context.Background(), dto.CreateSubmissionRequest{
		Category: models.CategoryLetters,
		Details:  []byte(`{"subject":"one too many"}`),
	}, claimsFor(student))
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrQuotaExceeded.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "Submission limit reached")
}

func TestCreateQuotaExceededMessage(t *testing.T) {
	store := newStubStore()
	store.consumed["days:ANNUAL_LEAVE"] = 12
	staff := staffUser("staff-1")
	svc := newSubmissionServiceForTest(store, &stubUsers{users: map[string]*models.User{"staff-1": staff}})

	_, err := svc.Create(context.Background(), dto.CreateSubmissionRequest{
		Category: models.CategoryAnnualLeave,
		Details:  []byte(`{"days":3}`),
	}, claimsFor(staff))
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrQuotaExceeded.Code, appErr.Code)
	assert.Equal(t, "Insufficient ANNUAL_LEAVE balance. Remaining: 2 days.", appErr.Message)
	assert.Empty(t, store.created)
	assert.Empty(t, store.audits)
}

func TestCreateRoutingRejectsWrongRole(t *testing.T) {
	store := newStubStore()
	staff := staffUser("staff-1")
	student := studentUser("student-1")
	svc := newSubmissionServiceForTest(store, &stubUsers{users: map[string]*models.User{
		"staff-1":   staff,
		"student-1": student,
	}})

	_, err := svc.Create(context.Background(), dto.CreateSubmissionRequest{
		Category: models.CategoryAnnualLeave,
		Details:  []byte(`{"days":2}`),
	}, claimsFor(student))
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Create(context.Background(), dto.CreateSubmissionRequest{
		Category: models.CategoryLetters,
		Details:  []byte(`{"subject":"hello"}`),
	}, claimsFor(staff))
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCreateInvalidDetails(t *testing.T) {
	store := newStubStore()
	staff := staffUser("staff-1")
	svc := newSubmissionServiceForTest(store, &stubUsers{users: map[string]*models.User{"staff-1": staff}})

	_, err := svc.Create(context.Background(), dto.CreateSubmissionRequest{
		Category: models.CategoryAnnualLeave,
		Details:  []byte(`{"days":0}`),
	}, claimsFor(staff))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, store.created)
}

func TestCreateConcurrentRequestsNeverOverdraw(t *testing.T) {
	store := newStubStore()
	store.consumed["days:ANNUAL_LEAVE"] = 11 // 3 days remaining
	staff := staffUser("staff-1")
	svc := newSubmissionServiceForTest(store, &stubUsers{users: map[string]*models.User{"staff-1": staff}})

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = svc.Create(context.Background(), dto.CreateSubmissionRequest{
				Category: models.CategoryAnnualLeave,
				Details:  []byte(`{"days":2}`),
			}, claimsFor(staff))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
		} else {
			assert.Equal(t, appErrors.ErrQuotaExceeded.Code, appErrors.FromError(err).Code)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 13, store.consumed["days:ANNUAL_LEAVE"])
}

func TestListScopesNonPrivilegedToOwn(t *testing.T) {
	store := newStubStore()
	student := studentUser("student-1")
	svc := newSubmissionServiceForTest(store, &stubUsers{users: map[string]*models.User{"student-1": student}})

	_, _, err := svc.List(context.Background(), dto.SubmissionQuery{RequesterID: "someone-else"}, claimsFor(student))
	require.NoError(t, err)
	assert.Equal(t, "student-1", store.lastFilter.RequesterID)
}

func TestListPrincipalSeesAll(t *testing.T) {
	store := newStubStore()
	principal := staffUser("principal-1")
	principal.RoleFlags = []string{"PRINCIPAL"}
	svc := newSubmissionServiceForTest(store, &stubUsers{users: map[string]*models.User{"principal-1": principal}})

	_, _, err := svc.List(context.Background(), dto.SubmissionQuery{}, claimsFor(principal))
	require.NoError(t, err)
	assert.Empty(t, store.lastFilter.RequesterID)
}

func TestGetForbiddenForOtherRequester(t *testing.T) {
	store := newStubStore()
	store.getResult = &models.Submission{ID: "sub-1", RequesterID: "student-2"}
	student := studentUser("student-1")
	svc := newSubmissionServiceForTest(store, &stubUsers{users: map[string]*models.User{"student-1": student}})

	_, err := svc.Get(context.Background(), "sub-1", claimsFor(student))
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}
