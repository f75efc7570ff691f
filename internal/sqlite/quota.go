package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ganot/stepwise/internal/domain/quota"
	"github.com/ganot/stepwise/internal/repository"
)

// QuotaRepository implements quota.Repository for SQLite
type QuotaRepository struct {
	db *DB
}

// NewQuotaRepository creates a new QuotaRepository
func NewQuotaRepository(db *DB) *QuotaRepository {
	return &QuotaRepository{db: db}
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Get retrieves a tenant's counter
func (r *QuotaRepository) Get(ctx context.Context, tenantID string) (*quota.Usage, error) {
	return getUsage(ctx, r.db, tenantID)
}

func getUsage(ctx context.Context, q queryRower, tenantID string) (*quota.Usage, error) {
	usage := quota.Usage{TenantID: tenantID}
	err := q.QueryRowContext(ctx, `
		SELECT used, resets_at FROM suggestion_quotas WHERE tenant_id = ?
	`, tenantID).Scan(&usage.Used, &usage.ResetsAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get quota: %w", err)
	}
	usage.ResetsAt = usage.ResetsAt.UTC()
	return &usage, nil
}

// Create inserts a counter unless one already exists
func (r *QuotaRepository) Create(ctx context.Context, usage *quota.Usage) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO suggestion_quotas (tenant_id, used, resets_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (tenant_id) DO NOTHING
	`, usage.TenantID, usage.Used, usage.ResetsAt.UTC(), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to create quota: %w", err)
	}
	return nil
}

// Increment adds one use if the counter is below limit. The check and the
// update are a single statement, so concurrent callers cannot overshoot.
func (r *QuotaRepository) Increment(ctx context.Context, tenantID string, limit int) (*quota.Usage, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE suggestion_quotas
		SET used = used + 1, updated_at = ?
		WHERE tenant_id = ? AND used < ?
	`, time.Now().UTC(), tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to increment quota: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}

	usage, err := getUsage(ctx, tx, tenantID)
	if err != nil {
		return nil, err
	}
	if rowsAffected == 0 {
		return nil, repository.ErrLimitReached
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit quota: %w", err)
	}
	return usage, nil
}

// Decrement removes one use, never going below zero
func (r *QuotaRepository) Decrement(ctx context.Context, tenantID string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE suggestion_quotas
		SET used = used - 1, updated_at = ?
		WHERE tenant_id = ? AND used > 0
	`, time.Now().UTC(), tenantID)
	if err != nil {
		return fmt.Errorf("failed to decrement quota: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		if _, err := r.Get(ctx, tenantID); err != nil {
			return err
		}
	}
	return nil
}

// Reset starts a new period for one tenant if its period has ended. A counter
// another caller already rolled over is left untouched.
func (r *QuotaRepository) Reset(ctx context.Context, tenantID string, now, resetsAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE suggestion_quotas
		SET used = 0, resets_at = ?, updated_at = ?
		WHERE tenant_id = ? AND resets_at <= ?
	`, resetsAt.UTC(), now.UTC(), tenantID, now.UTC())
	if err != nil {
		return fmt.Errorf("failed to reset quota: %w", err)
	}
	return nil
}

// ResetExpired starts a new period for every counter whose period has ended
func (r *QuotaRepository) ResetExpired(ctx context.Context, now, resetsAt time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE suggestion_quotas
		SET used = 0, resets_at = ?, updated_at = ?
		WHERE resets_at <= ?
	`, resetsAt.UTC(), now.UTC(), now.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to reset expired quotas: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected, nil
}
