package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/NeuEntity/surm-student-portal-sub000/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func newSubmissionRepo(db *sqlx.DB) *SubmissionRepository {
	return NewSubmissionRepository(db, NewAuditRepository(db))
}

func TestSubmissionRepositoryCreateWithQuota(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := newSubmissionRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("COALESCE(SUM(COALESCE((details->>'days')::int, 0)), 0)")).
		WillReturnRows(sqlmock.NewRows([]string{"days", "count"}).AddRow(5, 2))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO submissions")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_records")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	submission := &models.Submission{
		RequesterID: "staff-1",
		Category:    models.CategoryAnnualLeave,
		Status:      models.StatusPending,
		Details:     []byte(`{"days":3}`),
	}
	quota := &Quota{
		Ledger:     "days:ANNUAL_LEAVE",
		Categories: []models.SubmissionCategory{models.CategoryAnnualLeave},
		Limit:      14,
		Requested:  3,
		Unit:       QuotaDays,
	}
	audit := &models.AuditRecord{Action: models.AuditActionSubmissionCreate, ActorID: "staff-1"}

	require.NoError(t, repo.CreateWithQuota(context.Background(), submission, quota, audit))
	require.NotEmpty(t, submission.ID)
	require.Equal(t, submission.ID, audit.TargetID)
	require.Equal(t, models.NoAttachmentKey, submission.FileKey)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryCreateWithQuotaRejectsOverdraft(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := newSubmissionRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("COALESCE(SUM(COALESCE((details->>'days')::int, 0)), 0)")).
		WillReturnRows(sqlmock.NewRows([]string{"days", "count"}).AddRow(12, 4))
	mock.ExpectRollback()

	submission := &models.Submission{
		RequesterID: "staff-1",
		Category:    models.CategoryAnnualLeave,
		Status:      models.StatusPending,
		Details:     []byte(`{"days":3}`),
	}
	quota := &Quota{
		Ledger:     "days:ANNUAL_LEAVE",
		Categories: []models.SubmissionCategory{models.CategoryAnnualLeave},
		Limit:      14,
		Requested:  3,
		Unit:       QuotaDays,
	}

	err := repo.CreateWithQuota(context.Background(), submission, quota, nil)
	var quotaErr *QuotaError
	require.ErrorAs(t, err, &quotaErr)
	require.Equal(t, 2, quotaErr.Remaining)
	require.Equal(t, 3, quotaErr.Requested)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryCreateWithoutQuotaSkipsLock(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := newSubmissionRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO submissions")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_records")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	submission := &models.Submission{
		RequesterID: "student-1",
		Category:    models.CategoryAssignment,
		Status:      models.StatusApproved,
		Details:     []byte(`{"title":"essay"}`),
	}
	audit := &models.AuditRecord{Action: models.AuditActionSubmissionCreate, ActorID: "student-1"}
	require.NoError(t, repo.CreateWithQuota(context.Background(), submission, nil, audit))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryUpdateStatus(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := newSubmissionRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE submissions")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_records")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	audit := &models.AuditRecord{Action: models.AuditActionSubmissionApprove, ActorID: "principal-1"}
	err := repo.UpdateStatus(context.Background(), UpdateStatusParams{
		ID:         "sub-1",
		Status:     models.StatusApproved,
		ReviewerID: "principal-1",
		Comments:   "enjoy",
	}, audit)
	require.NoError(t, err)
	require.Equal(t, "sub-1", audit.TargetID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryUpdateStatusNotPending(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := newSubmissionRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE submissions")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.UpdateStatus(context.Background(), UpdateStatusParams{
		ID:         "sub-1",
		Status:     models.StatusRejected,
		ReviewerID: "principal-1",
	}, nil)
	require.True(t, errors.Is(err, sql.ErrNoRows))
	require.NoError(t, mock.ExpectationsWereMet())
}

func submissionRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "requester_id", "category", "status", "file_key", "details",
		"reviewed_by", "reviewed_at", "review_comments", "created_at", "updated_at",
	})
}

func TestSubmissionRepositoryGetByID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := newSubmissionRepo(db)
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, requester_id, category, status")).
		WithArgs("sub-1").
		WillReturnRows(submissionRows().
			AddRow("sub-1", "staff-1", "ANNUAL_LEAVE", "PENDING", "-", []byte(`{"days":2}`), nil, nil, nil, now, now))

	found, err := repo.GetByID(context.Background(), "sub-1")
	require.NoError(t, err)
	require.Equal(t, models.CategoryAnnualLeave, found.Category)
	require.Equal(t, 2, found.DecodedDetails().Days())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := newSubmissionRepo(db)
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM submissions")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, requester_id, category, status")).
		WillReturnRows(submissionRows().
			AddRow("sub-2", "student-1", "LETTERS", "PENDING", "-", []byte(`{"subject":"absence"}`), nil, nil, nil, now, now))

	list, total, err := repo.List(context.Background(), models.SubmissionFilter{
		RequesterID: "student-1",
		Status:      []models.SubmissionStatus{models.StatusPending},
		Page:        1,
		PageSize:    10,
	})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, list, 1)
	require.Equal(t, "sub-2", list[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryUsage(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := newSubmissionRepo(db)
	mock.ExpectQuery(regexp.QuoteMeta("GROUP BY category, status")).
		WillReturnRows(sqlmock.NewRows([]string{"category", "status", "days", "count"}).
			AddRow("ANNUAL_LEAVE", "APPROVED", 4, 2).
			AddRow("ANNUAL_LEAVE", "PENDING", 2, 1))

	usage, err := repo.Usage(context.Background(), "staff-1",
		[]models.SubmissionCategory{models.CategoryAnnualLeave}, 2026)
	require.NoError(t, err)
	require.Len(t, usage, 2)
	require.Equal(t, 4, usage[0].Days)
	require.Equal(t, models.StatusPending, usage[1].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepositoryListByTarget(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewAuditRepository(db)
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM audit_records")).
		WithArgs("SUBMISSION", "sub-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "action", "target_type", "target_id", "actor_id", "details", "created_at"}).
			AddRow("audit-1", "SUBMISSION_CREATE", "SUBMISSION", "sub-1", "staff-1", []byte(`{}`), now).
			AddRow("audit-2", "SUBMISSION_APPROVE", "SUBMISSION", "sub-1", "principal-1", []byte(`{}`), now))

	records, err := repo.ListByTarget(context.Background(), models.AuditTargetSubmission, "sub-1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, models.AuditActionSubmissionCreate, records[0].Action)
	require.NoError(t, mock.ExpectationsWereMet())
}
