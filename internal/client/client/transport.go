package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/client/models"
	"github.com/dmitrijs2005/sessionkeeper/internal/common"
)

// send performs one HTTP exchange and reads the whole body. Transport
// failures map to ErrNetworkUnavailable or ErrTimeout; any HTTP status,
// error or not, is returned as a response.
func (c *HTTPClient) send(ctx context.Context, req models.Request, token string) (*models.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	sendCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u := c.baseURL + req.Path
	if len(req.Query) > 0 {
		u += "?" + req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	hr, err := http.NewRequestWithContext(sendCtx, req.Method, u, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	for k, v := range req.Header {
		hr.Header[k] = append([]string(nil), v...)
	}
	hr.Header.Set(common.RequestIDHeaderName, req.ID)
	if token != "" {
		hr.Header.Set(common.AuthorizationHeaderName, common.BearerPrefix+token)
	}

	res, err := c.doer.Do(hr)
	if err != nil {
		return nil, c.transportError(ctx, err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, c.transportError(ctx, err)
	}

	return &models.Response{StatusCode: res.StatusCode, Header: res.Header, Data: data}, nil
}

// transportError classifies a failed exchange. The caller's own
// cancellation is returned as is; it says nothing about connectivity.
func (c *HTTPClient) transportError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return fmt.Errorf("%w after %s", ErrTimeout, c.timeout)
	}
	return fmt.Errorf("%w: %v", ErrNetworkUnavailable, err)
}

// retryAfter reads the Retry-After header as delay-seconds or an HTTP date.
func retryAfter(h http.Header, def time.Duration, now time.Time) time.Duration {
	v := h.Get(common.RetryAfterHeaderName)
	if v == "" {
		return def
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
		return 0
	}
	return def
}
