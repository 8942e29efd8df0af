package models

import (
	"net/http"
	"net/url"
)

// Request describes one outbound API call independently of any attempt to
// send it. It is a value: retries and replays never mutate the caller's copy.
type Request struct {
	ID     string
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte

	// SkipQueue makes the call fail fast with a connectivity error instead of
	// waiting in the offline queue.
	SkipQueue bool
	// SkipRefresh disables refresh-on-401 for this call.
	SkipRefresh bool
}

// IsRead reports whether the request is a GET, the only method served
// from the response cache.
func (r Request) IsRead() bool {
	return r.Method == http.MethodGet
}
