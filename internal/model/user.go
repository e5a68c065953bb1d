// Package model defines domain entities for the application.
package model

import "time"

// Plan is the billing tier of a user. Plan changes are made by the billing
// provider; this service only reads the value.
type Plan string

const (
	PlanFree Plan = "free"
	PlanPro  Plan = "pro"
)

// IsValid reports whether p is a known plan.
func (p Plan) IsValid() bool {
	return p == PlanFree || p == PlanPro
}

// User owns categories and events. Users are created lazily on the first
// successful session authentication.
type User struct {
	ID         string `json:"id"`
	ExternalID string `json:"external_id,omitempty"` // identity provider subject, empty for key-only users
	Email      string `json:"email"`

	// API key: only the visible prefix and the Argon2id hash are stored.
	APIKeyPrefix string `json:"api_key_prefix"`
	APIKeyHash   string `json:"-"`

	Plan Plan `json:"plan"`

	// Quota counters. QuotaUsed counts events accepted since QuotaPeriodStart.
	QuotaLimit       int       `json:"quota_limit"`
	QuotaUsed        int       `json:"quota_used"`
	QuotaPeriodStart time.Time `json:"quota_period_start"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// QuotaRemaining returns how many events the user may still ingest in the
// period that starts at periodStart.
func (u *User) QuotaRemaining(periodStart time.Time) int {
	used := u.QuotaUsed
	if u.QuotaPeriodStart.Before(periodStart) {
		used = 0
	}
	if remaining := u.QuotaLimit - used; remaining > 0 {
		return remaining
	}
	return 0
}
