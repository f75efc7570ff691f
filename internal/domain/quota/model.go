package quota

import "time"

// Usage is the stored suggestion counter for one tenant and period.
type Usage struct {
	TenantID string    `json:"tenant_id"`
	Used     int       `json:"used"`
	ResetsAt time.Time `json:"resets_at"`
}

// Limits maps tenants to their plan allowance.
type Limits struct {
	Default     int
	Plans       map[string]int
	TenantPlans map[string]string
}

// For returns the per-period limit for a tenant.
func (l Limits) For(tenantID string) int {
	if plan, ok := l.TenantPlans[tenantID]; ok {
		if limit, ok := l.Plans[plan]; ok {
			return limit
		}
	}
	return l.Default
}

// NextReset returns the start of the billing period after t, in UTC.
// Periods are calendar months.
func NextReset(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, time.UTC)
}
