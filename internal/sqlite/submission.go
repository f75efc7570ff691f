package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ganot/stepwise/internal/domain/submission"
	"github.com/ganot/stepwise/internal/domain/wizard"
	"github.com/ganot/stepwise/internal/repository"
)

// SubmissionRepository implements submission.Repository for SQLite
type SubmissionRepository struct {
	db *DB
}

// NewSubmissionRepository creates a new SubmissionRepository
func NewSubmissionRepository(db *DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

// Create stores a submission and supersedes the tenant's saved progress in
// one transaction.
func (r *SubmissionRepository) Create(ctx context.Context, tenantID string, rec *submission.Record) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO submissions (id, tenant_id, wizard_id, payload, submitted_at)
		VALUES (?, ?, ?, ?, ?)
	`, rec.ID, tenantID, rec.WizardID, string(rec.Payload), rec.SubmittedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("failed to create submission: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE wizard_progress
		SET status = ?, updated_at = ?
		WHERE tenant_id = ? AND wizard_id = ? AND status = ?
	`, wizard.StatusSuperseded, rec.SubmittedAt, tenantID, rec.WizardID, wizard.StatusActive)
	if err != nil {
		return fmt.Errorf("failed to supersede progress: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit submission: %w", err)
	}
	rec.TenantID = tenantID
	return nil
}

// Get retrieves a submission by ID
func (r *SubmissionRepository) Get(ctx context.Context, tenantID, id string) (*submission.Record, error) {
	var rec submission.Record
	var payload string
	err := r.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, wizard_id, payload, submitted_at
		FROM submissions
		WHERE id = ? AND tenant_id = ?
	`, id, tenantID).Scan(&rec.ID, &rec.TenantID, &rec.WizardID, &payload, &rec.SubmittedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	rec.Payload = []byte(payload)
	return &rec, nil
}
