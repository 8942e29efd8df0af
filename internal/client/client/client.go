package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/client/cache"
	"github.com/dmitrijs2005/sessionkeeper/internal/client/connectivity"
	"github.com/dmitrijs2005/sessionkeeper/internal/client/models"
	"github.com/dmitrijs2005/sessionkeeper/internal/client/queue"
	"github.com/dmitrijs2005/sessionkeeper/internal/client/session"
	"github.com/dmitrijs2005/sessionkeeper/internal/common"
	"github.com/dmitrijs2005/sessionkeeper/internal/logging"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// SessionStore is the part of session.Store the client needs.
type SessionStore interface {
	Load(ctx context.Context) (session.AuthSession, bool)
	Save(ctx context.Context, token string, user models.User)
	Clear(ctx context.Context)
}

type HTTPClient struct {
	baseURL  string
	doer     Doer
	sessions SessionStore
	cache    cache.Store
	queue    *queue.Queue
	monitor  *connectivity.Monitor
	log      logging.Logger

	timeout             time.Duration
	defaultRetryAfter   time.Duration
	maxRateLimitRetries int
	limiter             *rate.Limiter

	refreshGroup singleflight.Group

	hooksMu        sync.Mutex
	onUnauthorized []func()

	// serializes the compare-and-clear in unauthorized
	clearMu sync.Mutex

	// lifetime of background drains
	ctx    context.Context
	cancel context.CancelFunc

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// attempt is the per-call retry bookkeeping, threaded through the send loop
// so the caller's request is never mutated.
type attempt struct {
	refreshed        bool
	rateLimitRetries int
}

func New(baseURL string, sessions SessionStore, responses cache.Store, log logging.Logger, opts ...Option) *HTTPClient {
	ctx, cancel := context.WithCancel(context.Background())

	c := &HTTPClient{
		baseURL:             strings.TrimSuffix(baseURL, "/"),
		doer:                &http.Client{},
		sessions:            sessions,
		cache:               responses,
		log:                 log,
		timeout:             common.DefaultRequestTimeout,
		defaultRetryAfter:   common.DefaultRetryAfter,
		maxRateLimitRetries: common.DefaultMaxRateLimitRetries,
		ctx:                 ctx,
		cancel:              cancel,
		now:                 time.Now,
		sleep:               sleepContext,
	}
	for _, o := range opts {
		o(c)
	}

	c.queue = queue.New(log, queue.WithRequeue(isConnectivity))
	c.monitor = connectivity.NewMonitor(c.Ping, log)
	c.monitor.OnChange(func(_, to connectivity.Mode) {
		if to == connectivity.ModeOnline {
			go c.drain()
		}
	})

	return c
}

func (c *HTTPClient) Get(ctx context.Context, path string, opts ...RequestOption) (*models.Response, error) {
	return c.call(ctx, http.MethodGet, path, nil, opts)
}

func (c *HTTPClient) Post(ctx context.Context, path string, body any, opts ...RequestOption) (*models.Response, error) {
	return c.call(ctx, http.MethodPost, path, body, opts)
}

func (c *HTTPClient) Put(ctx context.Context, path string, body any, opts ...RequestOption) (*models.Response, error) {
	return c.call(ctx, http.MethodPut, path, body, opts)
}

func (c *HTTPClient) Delete(ctx context.Context, path string, opts ...RequestOption) (*models.Response, error) {
	return c.call(ctx, http.MethodDelete, path, nil, opts)
}

func (c *HTTPClient) call(ctx context.Context, method, path string, body any, opts []RequestOption) (*models.Response, error) {
	req := models.Request{Method: method, Path: path}
	if body != nil {
		data, err := encodeBody(body)
		if err != nil {
			return nil, err
		}
		req.Body = data
		req.Header = http.Header{common.ContentTypeHeaderName: []string{common.ContentTypeJSON}}
	}
	for _, o := range opts {
		o(&req)
	}
	return c.Do(ctx, req)
}

func encodeBody(body any) ([]byte, error) {
	switch b := body.(type) {
	case []byte:
		return b, nil
	case json.RawMessage:
		return b, nil
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request body: %w", err)
	}
	return data, nil
}

// Do runs req through the full pipeline: credentials, refresh on 401,
// backoff on 429, caching of successful GETs, and the offline fallback.
func (c *HTTPClient) Do(ctx context.Context, req models.Request) (*models.Response, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	if !c.monitor.Online() {
		return c.fallback(ctx, req, ErrNetworkUnavailable)
	}

	resp, err := c.execute(ctx, req)
	if err == nil || !isConnectivity(err) {
		return resp, err
	}

	// A transport failure alone does not mean we are offline.
	if c.monitor.Check(ctx) == connectivity.ModeOnline {
		return nil, err
	}
	return c.fallback(ctx, req, err)
}

// execute sends req until it gets a final answer, handling 401 and 429.
func (c *HTTPClient) execute(ctx context.Context, req models.Request) (*models.Response, error) {
	var at attempt
	for {
		token := c.token(ctx)

		resp, err := c.send(ctx, req, token)
		if err != nil {
			return nil, err
		}

		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			httpErr := mapStatus(resp.StatusCode, resp.Data)
			if req.SkipRefresh {
				return nil, httpErr
			}
			if at.refreshed || token == "" {
				c.unauthorized(ctx, token, "request rejected after refresh")
				return nil, httpErr
			}
			at.refreshed = true

			if err := c.refreshAfter(ctx, token); err != nil {
				if isConnectivity(err) || ctx.Err() != nil {
					return nil, err
				}
				c.log.Warn(ctx, "session refresh failed", "request_id", req.ID, "error", err)
				c.unauthorized(ctx, token, "refresh failed")
				return nil, httpErr
			}
			c.log.Debug(ctx, "retrying request with refreshed session", "request_id", req.ID)
			continue

		case resp.StatusCode == http.StatusTooManyRequests:
			if at.rateLimitRetries >= c.maxRateLimitRetries {
				c.log.Warn(ctx, "giving up after repeated rate limiting",
					"request_id", req.ID, "retries", at.rateLimitRetries)
				return nil, mapStatus(resp.StatusCode, resp.Data)
			}
			at.rateLimitRetries++

			wait := retryAfter(resp.Header, c.defaultRetryAfter, c.now())
			c.log.Debug(ctx, "rate limited, backing off",
				"request_id", req.ID, "wait", wait, "retry", at.rateLimitRetries)
			if err := c.sleep(ctx, wait); err != nil {
				return nil, err
			}
			continue

		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			return nil, mapStatus(resp.StatusCode, resp.Data)
		}

		if req.IsRead() {
			key := cache.Key(req.Method, req.Path, req.Query)
			if err := c.cache.Put(ctx, key, resp.Data); err != nil {
				c.log.Warn(ctx, "failed to cache response", "key", key, "error", err)
			}
		}
		return resp, nil
	}
}

// fallback serves req without the network: from the cache for GETs, else
// by parking it in the offline queue until it is replayed or ctx ends.
func (c *HTTPClient) fallback(ctx context.Context, req models.Request, cause error) (*models.Response, error) {
	if req.IsRead() {
		key := cache.Key(req.Method, req.Path, req.Query)
		data, err := c.cache.Get(ctx, key)
		if err == nil {
			c.log.Debug(ctx, "served from cache while offline", "request_id", req.ID, "key", key)
			return &models.Response{StatusCode: http.StatusOK, Data: data, FromCache: true}, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			c.log.Warn(ctx, "cache read failed", "key", key, "error", err)
		}
	}

	if req.SkipQueue {
		return nil, cause
	}

	p := c.queue.Enqueue(req)
	// Connectivity may have returned between the failed send and the enqueue.
	if c.monitor.Online() {
		go c.drain()
	}
	return p.Wait(ctx)
}

func (c *HTTPClient) drain() {
	c.queue.Drain(c.ctx, c.replay)
}

func (c *HTTPClient) replay(ctx context.Context, req models.Request) (*models.Response, error) {
	resp, err := c.execute(ctx, req)
	if err != nil && isConnectivity(err) {
		c.monitor.SetMode(connectivity.ModeOffline)
	}
	return resp, err
}

func (c *HTTPClient) token(ctx context.Context) string {
	if s, ok := c.sessions.Load(ctx); ok {
		return s.Token
	}
	return ""
}

// refreshAfter refreshes the session unless it already changed since stale
// was sent, which means a concurrent caller refreshed it.
func (c *HTTPClient) refreshAfter(ctx context.Context, stale string) error {
	if current := c.token(ctx); current != "" && current != stale {
		return nil
	}
	return c.Refresh(ctx)
}

// Refresh exchanges the current session for a new one. Concurrent callers
// share a single in-flight call to the refresh endpoint.
func (c *HTTPClient) Refresh(ctx context.Context) error {
	ch := c.refreshGroup.DoChan("refresh", func() (any, error) {
		return nil, c.refresh(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

type refreshResponse struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

func (c *HTTPClient) refresh(ctx context.Context) error {
	sess, ok := c.sessions.Load(ctx)
	if !ok {
		return ErrUnauthorized
	}

	req := models.Request{ID: uuid.NewString(), Method: http.MethodPost, Path: common.RefreshPath}
	resp, err := c.send(ctx, req, sess.Token)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return mapStatus(resp.StatusCode, resp.Data)
	}

	var out refreshResponse
	if err := resp.Decode(&out); err != nil {
		return err
	}
	if out.Token == "" {
		return fmt.Errorf("%w: refresh returned no token", ErrUnauthorized)
	}
	if out.User.ID == "" {
		out.User = sess.User
	}

	c.sessions.Save(ctx, out.Token, out.User)
	c.log.Info(ctx, "session refreshed", "user", out.User.ID)
	return nil
}

// unauthorized drops the session if it still holds the rejected token.
// Callers racing on the same token clear it and fire the hooks once.
func (c *HTTPClient) unauthorized(ctx context.Context, rejected, reason string) {
	c.clearMu.Lock()
	cur, ok := c.sessions.Load(ctx)
	if !ok || cur.Token != rejected {
		c.clearMu.Unlock()
		return
	}
	c.sessions.Clear(ctx)
	c.clearMu.Unlock()

	c.log.Info(ctx, "session cleared", "reason", reason)

	c.hooksMu.Lock()
	hooks := append([]func(){}, c.onUnauthorized...)
	c.hooksMu.Unlock()

	for _, fn := range hooks {
		fn()
	}
}

// OnUnauthorized registers fn to run whenever the session is dropped because
// the server no longer accepts it.
func (c *HTTPClient) OnUnauthorized(fn func()) {
	c.hooksMu.Lock()
	defer c.hooksMu.Unlock()
	c.onUnauthorized = append(c.onUnauthorized, fn)
}

// Ping reports whether the server answers at all. Any HTTP status counts.
func (c *HTTPClient) Ping(ctx context.Context) error {
	req := models.Request{ID: uuid.NewString(), Method: http.MethodGet, Path: common.HealthPath}
	_, err := c.send(ctx, req, "")
	return err
}

// ClearCache drops every cached response.
func (c *HTTPClient) ClearCache(ctx context.Context) error {
	return c.cache.Clear(ctx)
}

func (c *HTTPClient) Connectivity() *connectivity.Monitor {
	return c.monitor
}

// Queued returns the number of requests waiting for connectivity.
func (c *HTTPClient) Queued() int {
	return c.queue.Len()
}

// Close stops background replay and rejects requests still queued.
func (c *HTTPClient) Close() error {
	c.cancel()
	if n := c.queue.Abandon(); n > 0 {
		c.log.Warn(context.Background(), "abandoned queued requests", "count", n)
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
