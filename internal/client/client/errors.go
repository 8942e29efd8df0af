package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/sessionkeeper/internal/client/queue"
)

var (
	ErrNetworkUnavailable = errors.New("network unavailable")
	ErrTimeout            = errors.New("request timed out")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrRateLimited        = errors.New("rate limited")
	ErrServer             = errors.New("server error")
	ErrValidation         = errors.New("validation error")
	ErrQueueAbandoned     = queue.ErrAbandoned
)

// HTTPError is a non-2xx response surfaced to the caller. It unwraps to one
// of ErrUnauthorized, ErrRateLimited, ErrServer or ErrValidation.
type HTTPError struct {
	StatusCode int
	Kind       error
	Message    string
	Body       []byte
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: status %d", e.Kind, e.StatusCode)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Kind, e.StatusCode, e.Message)
}

func (e *HTTPError) Unwrap() error {
	return e.Kind
}

// CanRetry reports whether err is worth offering a retry for: connectivity
// problems, timeouts, rate limiting and 5xx responses. Validation failures
// and rejected credentials are not.
func CanRetry(err error) bool {
	return errors.Is(err, ErrNetworkUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrServer)
}

func isConnectivity(err error) bool {
	return errors.Is(err, ErrNetworkUnavailable) || errors.Is(err, ErrTimeout)
}

func statusKind(code int) error {
	switch {
	case code == http.StatusUnauthorized:
		return ErrUnauthorized
	case code == http.StatusTooManyRequests:
		return ErrRateLimited
	case code >= http.StatusInternalServerError:
		return ErrServer
	default:
		return ErrValidation
	}
}

// errorBody covers the error envelopes the API is known to return.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func mapStatus(code int, body []byte) *HTTPError {
	e := &HTTPError{StatusCode: code, Kind: statusKind(code), Body: body}

	var eb errorBody
	if json.Unmarshal(body, &eb) == nil {
		e.Message = eb.Message
		if e.Message == "" {
			e.Message = eb.Error
		}
	}
	if e.Message == "" {
		e.Message = strings.ToLower(http.StatusText(code))
	}
	return e
}
