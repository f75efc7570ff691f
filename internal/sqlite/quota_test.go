package sqlite

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ganot/stepwise/internal/domain/quota"
	"github.com/ganot/stepwise/internal/repository"
	"github.com/stretchr/testify/require"
)

func TestQuotaRepository_IncrementStopsAtLimit(t *testing.T) {
	db := NewTestDB(t)
	repo := NewQuotaRepository(db)
	ctx := context.Background()
	resets := time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)

	_, err := repo.Increment(ctx, "tenant1", 2)
	require.ErrorIs(t, err, repository.ErrNotFound)

	require.NoError(t, repo.Create(ctx, &quota.Usage{TenantID: "tenant1", ResetsAt: resets}))
	require.NoError(t, repo.Create(ctx, &quota.Usage{TenantID: "tenant1", Used: 9, ResetsAt: resets}), "create keeps the existing row")

	u, err := repo.Increment(ctx, "tenant1", 2)
	require.NoError(t, err)
	require.Equal(t, 1, u.Used)
	require.True(t, u.ResetsAt.Equal(resets))

	_, err = repo.Increment(ctx, "tenant1", 2)
	require.NoError(t, err)
	_, err = repo.Increment(ctx, "tenant1", 2)
	require.ErrorIs(t, err, repository.ErrLimitReached)

	u, err = repo.Get(ctx, "tenant1")
	require.NoError(t, err)
	require.Equal(t, 2, u.Used)
}

func TestQuotaRepository_ConcurrentIncrements(t *testing.T) {
	db := NewTestDB(t)
	repo := NewQuotaRepository(db)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, &quota.Usage{TenantID: "tenant1", ResetsAt: time.Now().Add(time.Hour).UTC()}))

	var wg sync.WaitGroup
	var mu sync.Mutex
	granted := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.Increment(ctx, "tenant1", 5); err == nil {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 5, granted)
	u, err := repo.Get(ctx, "tenant1")
	require.NoError(t, err)
	require.Equal(t, 5, u.Used)
}

func TestQuotaRepository_DecrementNeverNegative(t *testing.T) {
	db := NewTestDB(t)
	repo := NewQuotaRepository(db)
	ctx := context.Background()

	require.ErrorIs(t, repo.Decrement(ctx, "tenant1"), repository.ErrNotFound)

	require.NoError(t, repo.Create(ctx, &quota.Usage{TenantID: "tenant1", Used: 1, ResetsAt: time.Now().UTC()}))
	require.NoError(t, repo.Decrement(ctx, "tenant1"))
	require.NoError(t, repo.Decrement(ctx, "tenant1"))

	u, err := repo.Get(ctx, "tenant1")
	require.NoError(t, err)
	require.Equal(t, 0, u.Used)
}

func TestQuotaRepository_ResetExpired(t *testing.T) {
	db := NewTestDB(t)
	repo := NewQuotaRepository(db)
	ctx := context.Background()
	now := time.Date(2026, 11, 1, 0, 1, 0, 0, time.UTC)
	next := time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Create(ctx, &quota.Usage{TenantID: "expired", Used: 4, ResetsAt: time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)}))
	require.NoError(t, repo.Create(ctx, &quota.Usage{TenantID: "current", Used: 3, ResetsAt: next}))

	n, err := repo.ResetExpired(ctx, now, next)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	expired, err := repo.Get(ctx, "expired")
	require.NoError(t, err)
	require.Equal(t, 0, expired.Used)
	require.True(t, expired.ResetsAt.Equal(next))

	current, err := repo.Get(ctx, "current")
	require.NoError(t, err)
	require.Equal(t, 3, current.Used)

}

func TestQuotaRepository_ResetOnlyExpired(t *testing.T) {
	db := NewTestDB(t)
	repo := NewQuotaRepository(db)
	ctx := context.Background()
	now := time.Date(2026, 11, 1, 0, 1, 0, 0, time.UTC)
	next := time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Create(ctx, &quota.Usage{TenantID: "expired", Used: 4, ResetsAt: time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)}))
	require.NoError(t, repo.Create(ctx, &quota.Usage{TenantID: "current", Used: 3, ResetsAt: next}))

	require.NoError(t, repo.Reset(ctx, "expired", now, next))
	require.NoError(t, repo.Reset(ctx, "current", now, next))
	require.NoError(t, repo.Reset(ctx, "missing", now, next))

	expired, err := repo.Get(ctx, "expired")
	require.NoError(t, err)
	require.Equal(t, 0, expired.Used)
	require.True(t, expired.ResetsAt.Equal(next))

	current, err := repo.Get(ctx, "current")
	require.NoError(t, err)
	require.Equal(t, 3, current.Used)
}

// pausingQuotaRepo holds the first Get caller after its read until resume is
// closed.
type pausingQuotaRepo struct {
	*QuotaRepository
	paused atomic.Bool
	read   chan struct{}
	resume chan struct{}
}

func (r *pausingQuotaRepo) Get(ctx context.Context, tenantID string) (*quota.Usage, error) {
	usage, err := r.QuotaRepository.Get(ctx, tenantID)
	if r.paused.CompareAndSwap(false, true) {
		close(r.read)
		<-r.resume
	}
	return usage, err
}

func TestQuotaService_RolloverKeepsConcurrentReservation(t *testing.T) {
	db := NewTestDB(t)
	repo := &pausingQuotaRepo{
		QuotaRepository: NewQuotaRepository(db),
		read:            make(chan struct{}),
		resume:          make(chan struct{}),
	}
	ctx := context.Background()
	now := time.Date(2026, 11, 1, 0, 1, 0, 0, time.UTC)
	require.NoError(t, repo.Create(ctx, &quota.Usage{TenantID: "t1", Used: 5, ResetsAt: time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)}))
	svc := quota.NewService(repo, quota.Limits{Default: 5}, nil).WithClock(func() time.Time { return now })

	slow := make(chan error, 1)
	go func() {
		_, err := svc.Reserve(ctx, "t1")
		slow <- err
	}()
	<-repo.read

	fast, err := svc.Reserve(ctx, "t1")
	require.NoError(t, err)
	require.Equal(t, 1, fast.Used)

	close(repo.resume)
	require.NoError(t, <-slow)

	got, err := repo.QuotaRepository.Get(ctx, "t1")
	require.NoError(t, err)
	require.Equal(t, 2, got.Used)
}
