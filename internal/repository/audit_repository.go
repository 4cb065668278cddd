package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/NeuEntity/surm-student-portal-sub000/internal/models"
)

// AuditRepository persists the append-only audit trail. There is no update
// or delete path by construction.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository constructs the repository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

const insertAuditQuery = `INSERT INTO audit_records (id, action, target_type, target_id, actor_id, details, created_at)
	VALUES (:id, :action, :target_type, :target_id, :actor_id, :details, :created_at)`

// InsertTx appends a record inside the caller's transaction so the audit
// write commits or rolls back with the mutation it describes.
func (r *AuditRepository) InsertTx(ctx context.Context, tx *sqlx.Tx, record *models.AuditRecord) error {
	prepare(record)
	if _, err := tx.NamedExecContext(ctx, insertAuditQuery, record); err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

// ListByTarget returns the trail for one submission, oldest first, so the
// full decision history can be reconstructed.
func (r *AuditRepository) ListByTarget(ctx context.Context, targetType, targetID string) ([]models.AuditRecord, error) {
	const query = `SELECT id, action, target_type, target_id, actor_id, details, created_at
	FROM audit_records WHERE target_type = $1 AND target_id = $2 ORDER BY created_at ASC`
	var records []models.AuditRecord
	if err := r.db.SelectContext(ctx, &records, query, targetType, targetID); err != nil {
		return nil, fmt.Errorf("list audit records: %w", err)
	}
	return records, nil
}

func prepare(record *models.AuditRecord) {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.TargetType == "" {
		record.TargetType = models.AuditTargetSubmission
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	if len(record.Details) == 0 {
		record.Details = []byte("{}")
	}
}
