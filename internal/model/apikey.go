// Package model defines domain entities for the application.
package model

// AuthMethod names the credential kind that resolved a request.
type AuthMethod string

const (
	AuthMethodAPIKey  AuthMethod = "api_key"
	AuthMethodSession AuthMethod = "session"
)

// RateLimitConfig defines rate limit parameters per plan.
type RateLimitConfig struct {
	RequestsPerMinute int
	Burst             int
}

// TierConfigs maps plans to their API rate limit configurations.
var TierConfigs = map[Plan]RateLimitConfig{
	PlanFree: {RequestsPerMinute: 60, Burst: 10},
	PlanPro:  {RequestsPerMinute: 600, Burst: 50},
}

// RateLimitFor returns the rate limit configuration for a plan.
func RateLimitFor(plan Plan) RateLimitConfig {
	if config, ok := TierConfigs[plan]; ok {
		return config
	}
	return TierConfigs[PlanFree]
}

// AuthContext holds the resolved actor of a request.
// This is injected into the request context by auth middleware.
type AuthContext struct {
	UserID    string
	Email     string
	Plan      Plan
	Method    AuthMethod
	KeyPrefix string // set for API key authentication only
}

// IsSession reports whether the actor authenticated with a delegated session.
func (a *AuthContext) IsSession() bool {
	return a.Method == AuthMethodSession
}

// APIKeyRotateResponse includes the new plaintext key (shown only once).
type APIKeyRotateResponse struct {
	Key       string `json:"key"`
	KeyPrefix string `json:"key_prefix"`
}
