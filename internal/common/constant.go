// Package common contains shared constants and sentinel errors used across
// the sessionkeeper client components.
package common

import "time"

// Header names used on outbound requests and read from responses.
const (
	AuthorizationHeaderName = "Authorization"
	RetryAfterHeaderName    = "Retry-After"
	RequestIDHeaderName     = "X-Request-ID"
	ContentTypeHeaderName   = "Content-Type"

	BearerPrefix    = "Bearer "
	ContentTypeJSON = "application/json"
)

// Server endpoints consumed by the client.
const (
	LoginPath    = "/auth/login"
	RegisterPath = "/auth/register"
	RefreshPath  = "/auth/refresh"
	LogoutPath   = "/auth/logout"
	ProfilePath  = "/user/profile"
	HealthPath   = "/health"
)

// Storage names are observable by tooling that inspects the local database,
// keep them stable.
const (
	SessionStorageKey = "auth_session"
	RedisCachePrefix  = "cache:"
)

const (
	// CacheTTL bounds the validity of a cached GET response.
	CacheTTL = 5 * time.Minute
	// RefreshThreshold is the session age after which an opportunistic
	// refresh is attempted.
	RefreshThreshold = 5 * time.Minute

	DefaultRequestTimeout      = 30 * time.Second
	DefaultRetryAfter          = 1 * time.Second
	DefaultMaxRateLimitRetries = 5
)
