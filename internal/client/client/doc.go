// Package client contains the resilient HTTP client used by every
// sessionkeeper component that talks to the API.
//
// # Overview
//
// HTTPClient wraps an http.Client and, for every call:
//  1. Attaches the stored session token as a bearer credential.
//  2. On 401, refreshes the session once and resends. Concurrent 401s share
//     a single refresh. A second 401 or a failed refresh clears the session,
//     fires the OnUnauthorized hooks and returns ErrUnauthorized.
//  3. On 429, waits for Retry-After (1s when absent) and resends, up to a
//     configurable number of times.
//  4. Writes successful GET bodies to the response cache.
//  5. When the server is unreachable, serves GETs from the cache and parks
//     everything else in the offline queue until connectivity returns.
//
// # Error Handling
//
// Failures match one of the sentinel errors with errors.Is:
// ErrNetworkUnavailable, ErrTimeout, ErrUnauthorized, ErrRateLimited,
// ErrServer, ErrValidation, ErrQueueAbandoned. Non-2xx responses are
// returned as *HTTPError, which carries the status and body. CanRetry tells
// which failures deserve a retry affordance.
//
// # Concurrency and Contexts
//
// HTTPClient is safe for concurrent use. Every call takes a context; a call
// waiting in the offline queue is withdrawn when its context ends, and one
// already being replayed has that replay canceled.
package client
