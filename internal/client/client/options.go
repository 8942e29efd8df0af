package client

import (
	"net/http"
	"net/url"
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/client/models"
	"golang.org/x/time/rate"
)

// Doer sends a single HTTP request. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Option func(*HTTPClient)

// WithDoer replaces the underlying transport.
func WithDoer(d Doer) Option {
	return func(c *HTTPClient) { c.doer = d }
}

// WithTimeout bounds every individual send, including reading the body.
func WithTimeout(d time.Duration) Option {
	return func(c *HTTPClient) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithMaxRateLimitRetries caps how many times a request is resent after 429.
func WithMaxRateLimitRetries(n int) Option {
	return func(c *HTTPClient) {
		if n >= 0 {
			c.maxRateLimitRetries = n
		}
	}
}

// WithDefaultRetryAfter sets the wait used when a 429 carries no usable
// Retry-After header.
func WithDefaultRetryAfter(d time.Duration) Option {
	return func(c *HTTPClient) { c.defaultRetryAfter = d }
}

// WithRequestsPerSecond paces outbound sends. Zero or less disables pacing.
func WithRequestsPerSecond(rps float64) Option {
	return func(c *HTTPClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// RequestOption adjusts a single call.
type RequestOption func(*models.Request)

func WithQuery(q url.Values) RequestOption {
	return func(r *models.Request) { r.Query = q }
}

func WithHeader(key, value string) RequestOption {
	return func(r *models.Request) {
		if r.Header == nil {
			r.Header = http.Header{}
		}
		r.Header.Set(key, value)
	}
}

// WithoutQueue fails the call instead of parking it in the offline queue.
func WithoutQueue() RequestOption {
	return func(r *models.Request) { r.SkipQueue = true }
}

// WithoutRefresh surfaces a 401 directly, without refreshing the session.
func WithoutRefresh() RequestOption {
	return func(r *models.Request) { r.SkipRefresh = true }
}
