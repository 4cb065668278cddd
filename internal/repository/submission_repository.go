package repository

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/NeuEntity/surm-student-portal-sub000/internal/models"
)

// QuotaUnit selects how a quota is consumed: day balances for staff leave,
// submission counts for student bounded categories.
type QuotaUnit string

const (
	QuotaDays  QuotaUnit = "days"
	QuotaCount QuotaUnit = "count"
)

// Quota describes the admission check a creation must pass. Ledger is an
// opaque discriminator for the advisory lock, so concurrent requests against
// the same ledger serialize while unrelated ledgers proceed in parallel.
type Quota struct {
	Ledger     string
	Categories []models.SubmissionCategory
	Limit      int
	Requested  int
	Unit       QuotaUnit
}

// QuotaError reports an admission rejection together with the remaining
// allowance observed inside the transaction.
type QuotaError struct {
	Remaining int
	Requested int
	Unit      QuotaUnit
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("quota exceeded: requested %d, remaining %d", e.Requested, e.Remaining)
}

// SubmissionRepository owns the submissions table. All writes go through
// single transactions that also carry the audit record.
type SubmissionRepository struct {
	db    *sqlx.DB
	audit *AuditRepository
}

// NewSubmissionRepository constructs the repository.
func NewSubmissionRepository(db *sqlx.DB, audit *AuditRepository) *SubmissionRepository {
	return &SubmissionRepository{db: db, audit: audit}
}

const insertSubmissionQuery = `INSERT INTO submissions (id, requester_id, category, status, file_key, details, created_at, updated_at)
	VALUES (:id, :requester_id, :category, :status, :file_key, :details, :created_at, :updated_at)`

const selectSubmissionColumns = `id, requester_id, category, status, file_key, details,
	reviewed_by, reviewed_at, review_comments, created_at, updated_at`

// lockKey derives a stable 64-bit advisory lock key from the quota scope.
// Collisions between unrelated ledgers only cost extra serialization, never
// correctness.
func lockKey(requesterID, ledger string, year int) int64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%s|%d", requesterID, ledger, year)
	return int64(h.Sum64())
}

// CreateWithQuota persists a submission and its audit record in one
// transaction. When a quota is given, the current usage is re-read under a
// per-ledger advisory lock inside the same transaction, so two concurrent
// requests can never both pass a check that only one of them fits.
func (r *SubmissionRepository) CreateWithQuota(ctx context.Context, submission *models.Submission, quota *Quota, audit *models.AuditRecord) error {
	now := time.Now().UTC()
	if submission.ID == "" {
		submission.ID = uuid.NewString()
	}
	submission.CreatedAt = now
	submission.UpdatedAt = now
	if submission.FileKey == "" {
		submission.FileKey = models.NoAttachmentKey
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if quota != nil {
		if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", lockKey(submission.RequesterID, quota.Ledger, now.Year())); err != nil {
			return fmt.Errorf("acquire ledger lock: %w", err)
		}
		if err := r.checkQuota(ctx, tx, submission.RequesterID, quota, now.Year()); err != nil {
			return err
		}
	}

	if _, err := tx.NamedExecContext(ctx, insertSubmissionQuery, submission); err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	if audit != nil {
		audit.TargetID = submission.ID
		if err := r.audit.InsertTx(ctx, tx, audit); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// checkQuota sums usage over PENDING and APPROVED submissions in the current
// calendar year and rejects the request when it does not fit. Rows whose
// payload lacks a day count contribute zero days.
func (r *SubmissionRepository) checkQuota(ctx context.Context, tx *sqlx.Tx, requesterID string, quota *Quota, year int) error {
	start, end := models.YearWindow(year)
	query, args, err := sqlx.In(`SELECT
			COALESCE(SUM(COALESCE((details->>'days')::int, 0)), 0) AS days,
			COUNT(*) AS count
		FROM submissions
		WHERE requester_id = ? AND category IN (?) AND status IN ('PENDING', 'APPROVED')
			AND created_at >= ? AND created_at < ?`,
		requesterID, quota.Categories, start, end)
	if err != nil {
		return fmt.Errorf("build usage query: %w", err)
	}

	var usage struct {
		Days  int `db:"days"`
		Count int `db:"count"`
	}
	if err := tx.GetContext(ctx, &usage, tx.Rebind(query), args...); err != nil {
		return fmt.Errorf("read usage: %w", err)
	}

	consumed := usage.Count
	if quota.Unit == QuotaDays {
		consumed = usage.Days
	}
	remaining := quota.Limit - consumed
	if remaining < 0 {
		remaining = 0
	}
	if quota.Requested > remaining {
		return &QuotaError{Remaining: remaining, Requested: quota.Requested, Unit: quota.Unit}
	}
	return nil
}

// UpdateStatusParams carries a reviewer's decision.
type UpdateStatusParams struct {
	ID         string
	Status     models.SubmissionStatus
	ReviewerID string
	Comments   string
}

// UpdateStatus applies a decision to a PENDING submission and appends the
// audit record in the same transaction. The status guard in the WHERE clause
// makes the transition atomic: a submission that is no longer PENDING matches
// zero rows and the call returns sql.ErrNoRows.
func (r *SubmissionRepository) UpdateStatus(ctx context.Context, params UpdateStatusParams, audit *models.AuditRecord) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	result, err := tx.ExecContext(ctx, `UPDATE submissions
		SET status = $2, reviewed_by = $3, reviewed_at = $4, review_comments = $5, updated_at = $4
		WHERE id = $1 AND status = 'PENDING'`,
		params.ID, params.Status, params.ReviewerID, now, params.Comments)
	if err != nil {
		return fmt.Errorf("update submission status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	if audit != nil {
		audit.TargetID = params.ID
		if err := r.audit.InsertTx(ctx, tx, audit); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// GetByID returns one submission or sql.ErrNoRows.
func (r *SubmissionRepository) GetByID(ctx context.Context, id string) (*models.Submission, error) {
	var submission models.Submission
	query := fmt.Sprintf("SELECT %s FROM submissions WHERE id = $1", selectSubmissionColumns)
	if err := r.db.GetContext(ctx, &submission, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get submission: %w", err)
	}
	return &submission, nil
}

var submissionSortColumns = map[string]string{
	"created_at": "created_at",
	"updated_at": "updated_at",
	"category":   "category",
	"status":     "status",
}

// List returns a filtered, paginated page of submissions plus the total
// matching count.
func (r *SubmissionRepository) List(ctx context.Context, filter models.SubmissionFilter) ([]models.Submission, int, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}

	if filter.RequesterID != "" {
		conditions = append(conditions, "requester_id = ?")
		args = append(args, filter.RequesterID)
	}
	if filter.Category != "" {
		conditions = append(conditions, "category = ?")
		args = append(args, filter.Category)
	}
	if len(filter.Status) > 0 {
		conditions = append(conditions, "status IN (?)")
		args = append(args, filter.Status)
	}
	if filter.DateFrom != nil {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		conditions = append(conditions, "created_at < ?")
		args = append(args, *filter.DateTo)
	}
	where := strings.Join(conditions, " AND ")

	countQuery, countArgs, err := sqlx.In("SELECT COUNT(*) FROM submissions WHERE "+where, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("build count query: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, r.db.Rebind(countQuery), countArgs...); err != nil {
		return nil, 0, fmt.Errorf("count submissions: %w", err)
	}

	sortColumn, ok := submissionSortColumns[filter.SortBy]
	if !ok {
		sortColumn = "created_at"
	}
	sortOrder := "DESC"
	if strings.EqualFold(filter.SortOrder, "asc") {
		sortOrder = "ASC"
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	offset := (filter.Page - 1) * filter.PageSize

	listQuery, listArgs, err := sqlx.In(fmt.Sprintf(
		"SELECT %s FROM submissions WHERE %s ORDER BY %s %s LIMIT ? OFFSET ?",
		selectSubmissionColumns, where, sortColumn, sortOrder),
		append(args, filter.PageSize, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("build list query: %w", err)
	}
	submissions := []models.Submission{}
	if err := r.db.SelectContext(ctx, &submissions, r.db.Rebind(listQuery), listArgs...); err != nil {
		return nil, 0, fmt.Errorf("list submissions: %w", err)
	}
	return submissions, total, nil
}

// Usage aggregates day totals and submission counts per category and status
// for one requester inside a calendar year. Only PENDING and APPROVED rows
// participate; rejected submissions never consume balance.
func (r *SubmissionRepository) Usage(ctx context.Context, requesterID string, categories []models.SubmissionCategory, year int) ([]models.CategoryUsage, error) {
	start, end := models.YearWindow(year)
	query, args, err := sqlx.In(`SELECT category, status,
			COALESCE(SUM(COALESCE((details->>'days')::int, 0)), 0) AS days,
			COUNT(*) AS count
		FROM submissions
		WHERE requester_id = ? AND category IN (?) AND status IN ('PENDING', 'APPROVED')
			AND created_at >= ? AND created_at < ?
		GROUP BY category, status`,
		requesterID, categories, start, end)
	if err != nil {
		return nil, fmt.Errorf("build usage query: %w", err)
	}
	usage := []models.CategoryUsage{}
	if err := r.db.SelectContext(ctx, &usage, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("aggregate usage: %w", err)
	}
	return usage, nil
}
