package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ganot/stepwise/internal/domain/progress"
	"github.com/ganot/stepwise/internal/domain/wizard"
	"github.com/ganot/stepwise/internal/repository"
)

// ProgressRepository implements progress.Repository for SQLite
type ProgressRepository struct {
	db *DB
}

// NewProgressRepository creates a new ProgressRepository
func NewProgressRepository(db *DB) *ProgressRepository {
	return &ProgressRepository{db: db}
}

// Save upserts one step draft and the step pointer. Saving over superseded
// progress starts a fresh session.
func (r *ProgressRepository) Save(ctx context.Context, tenantID string, w *progress.StepWrite) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		DELETE FROM progress_drafts
		WHERE tenant_id = ? AND wizard_id = ?
		  AND EXISTS (
			SELECT 1 FROM wizard_progress
			WHERE tenant_id = ? AND wizard_id = ? AND status = 'superseded'
		  )
	`, tenantID, w.WizardID, tenantID, w.WizardID)
	if err != nil {
		return fmt.Errorf("failed to clear superseded drafts: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO wizard_progress (tenant_id, wizard_id, current_step, status, updated_at)
		VALUES (?, ?, ?, 'active', ?)
		ON CONFLICT (tenant_id, wizard_id) DO UPDATE SET
			current_step = excluded.current_step,
			status = 'active',
			updated_at = excluded.updated_at
	`, tenantID, w.WizardID, w.CurrentStep, w.SavedAt)
	if err != nil {
		return fmt.Errorf("failed to save progress: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO progress_drafts (tenant_id, wizard_id, step_key, draft, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id, wizard_id, step_key) DO UPDATE SET
			draft = excluded.draft,
			updated_at = excluded.updated_at
	`, tenantID, w.WizardID, string(w.StepKey), string(w.Draft), w.SavedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return repository.ErrInvalidInput
		}
		return fmt.Errorf("failed to save step draft: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit progress: %w", err)
	}
	return nil
}

// Get retrieves saved progress with all step drafts
func (r *ProgressRepository) Get(ctx context.Context, tenantID, wizardID string) (*progress.Record, error) {
	rec := progress.Record{TenantID: tenantID, WizardID: wizardID}
	err := r.db.QueryRowContext(ctx, `
		SELECT current_step, status, updated_at
		FROM wizard_progress
		WHERE tenant_id = ? AND wizard_id = ?
	`, tenantID, wizardID).Scan(&rec.CurrentStep, &rec.Status, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get progress: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT step_key, draft
		FROM progress_drafts
		WHERE tenant_id = ? AND wizard_id = ?
		ORDER BY step_key
	`, tenantID, wizardID)
	if err != nil {
		return nil, fmt.Errorf("failed to load step drafts: %w", err)
	}
	defer rows.Close()

	rec.Drafts = wizard.RawDrafts{}
	for rows.Next() {
		var key, draft string
		if err := rows.Scan(&key, &draft); err != nil {
			return nil, fmt.Errorf("failed to scan step draft: %w", err)
		}
		rec.Drafts[wizard.StepKey(key)] = json.RawMessage(draft)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating step drafts: %w", err)
	}

	return &rec, nil
}
