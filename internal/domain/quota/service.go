package quota

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ganot/stepwise/internal/domain/wizard"
	"github.com/ganot/stepwise/internal/repository"
)

// Service tracks per-tenant suggestion allowances.
type Service struct {
	repo   Repository
	limits Limits
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a new quota service.
func NewService(repo Repository, limits Limits, logger *slog.Logger) *Service {
	return &Service{repo: repo, limits: limits, logger: logger, now: time.Now}
}

// WithClock replaces the service clock.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Get returns the tenant's quota for the current period. Expired periods are
// rolled over before the quota is reported.
func (s *Service) Get(ctx context.Context, tenantID string) (*wizard.Quota, error) {
	usage, err := s.current(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return s.view(usage), nil
}

// Reserve consumes one suggestion. It fails with ErrQuotaExceeded when the
// allowance is used up, leaving the counter as it was.
func (s *Service) Reserve(ctx context.Context, tenantID string) (*wizard.Quota, error) {
	if _, err := s.current(ctx, tenantID); err != nil {
		return nil, err
	}
	usage, err := s.repo.Increment(ctx, tenantID, s.limits.For(tenantID))
	if err != nil {
		if errors.Is(err, repository.ErrLimitReached) {
			return nil, ErrQuotaExceeded
		}
		return nil, fmt.Errorf("reserving suggestion: %w", err)
	}
	return s.view(usage), nil
}

// Release returns one reserved suggestion. The counter never goes below zero.
func (s *Service) Release(ctx context.Context, tenantID string) error {
	if err := s.repo.Decrement(ctx, tenantID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("releasing suggestion: %w", err)
	}
	return nil
}

// RolloverExpired resets every counter whose period ended at or before now.
func (s *Service) RolloverExpired(ctx context.Context) (int64, error) {
	now := s.now().UTC().Truncate(time.Second)
	n, err := s.repo.ResetExpired(ctx, now, NextReset(now))
	if err != nil {
		return 0, fmt.Errorf("rolling over quotas: %w", err)
	}
	if s.logger != nil && n > 0 {
		s.logger.Info("quota periods rolled over", "count", n)
	}
	return n, nil
}

func (s *Service) current(ctx context.Context, tenantID string) (*Usage, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenant is required", ErrInvalidInput)
	}
	now := s.now().UTC().Truncate(time.Second)

	usage, err := s.repo.Get(ctx, tenantID)
	if errors.Is(err, repository.ErrNotFound) {
		usage = &Usage{TenantID: tenantID, ResetsAt: NextReset(now)}
		if err := s.repo.Create(ctx, usage); err != nil {
			return nil, fmt.Errorf("creating quota: %w", err)
		}
		return s.repo.Get(ctx, tenantID)
	}
	if err != nil {
		return nil, fmt.Errorf("loading quota: %w", err)
	}

	if !usage.ResetsAt.After(now) {
		if err := s.repo.Reset(ctx, tenantID, now, NextReset(now)); err != nil {
			return nil, fmt.Errorf("rolling over quota: %w", err)
		}
		// Another caller may have rolled over and reserved since the read.
		if usage, err = s.repo.Get(ctx, tenantID); err != nil {
			return nil, fmt.Errorf("loading quota: %w", err)
		}
	}
	return usage, nil
}

func (s *Service) view(u *Usage) *wizard.Quota {
	used := u.Used
	if used < 0 {
		used = 0
	}
	return &wizard.Quota{Used: used, Limit: s.limits.For(u.TenantID), ResetsAt: u.ResetsAt}
}
