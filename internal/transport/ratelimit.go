package transport

import (
	"net/http"
	"sync"

	"github.com/ganot/stepwise/internal/api"
	"golang.org/x/time/rate"
)

// TenantLimiter hands out one token bucket per tenant.
type TenantLimiter struct {
	limit    rate.Limit
	burst    int
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewTenantLimiter allows perSecond requests per tenant with the given burst.
func NewTenantLimiter(perSecond float64, burst int) *TenantLimiter {
	if burst < 1 {
		burst = 1
	}
	return &TenantLimiter{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Allow reports whether the tenant may make a request now.
func (l *TenantLimiter) Allow(tenantID string) bool {
	l.mu.Lock()
	limiter, ok := l.limiters[tenantID]
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters[tenantID] = limiter
	}
	l.mu.Unlock()
	return limiter.Allow()
}

// Middleware rejects requests over the tenant's rate. It must run after the
// tenant is known.
func (l *TenantLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenantID, _ := TenantFromContext(r.Context())
		if !l.Allow(tenantID) {
			writeError(w, http.StatusTooManyRequests, api.CodeRateLimited, "too many requests, slow down", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
