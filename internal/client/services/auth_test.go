package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/client/client"
	"github.com/dmitrijs2005/sessionkeeper/internal/client/models"
	"github.com/dmitrijs2005/sessionkeeper/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/sessionkeeper/internal/client/session"
	"github.com/dmitrijs2005/sessionkeeper/internal/client/storage"
	"github.com/dmitrijs2005/sessionkeeper/internal/common"
	"github.com/dmitrijs2005/sessionkeeper/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---- fake API ----

type call struct {
	Method string
	Path   string
	Body   any
	Req    models.Request
}

type reply struct {
	body any
	err  error
}

// fakeAPI answers by path and records every call with the options applied.
type fakeAPI struct {
	mu       sync.Mutex
	replies  map[string]reply
	calls    []call
	closed   bool
	pingErr  error
	purges   int
	purgeErr error
	// gate, when set, blocks Get until closed
	gate chan struct{}
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{replies: map[string]reply{}}
}

func (f *fakeAPI) on(path string, body any, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies[path] = reply{body: body, err: err}
}

func (f *fakeAPI) answer(method, path string, body any, opts []client.RequestOption) (*models.Response, error) {
	var req models.Request
	for _, o := range opts {
		o(&req)
	}

	f.mu.Lock()
	f.calls = append(f.calls, call{Method: method, Path: path, Body: body, Req: req})
	r, ok := f.replies[path]
	f.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("%w: no reply for %s", client.ErrValidation, path)
	}
	if r.err != nil {
		return nil, r.err
	}
	data, err := json.Marshal(r.body)
	if err != nil {
		return nil, err
	}
	return &models.Response{StatusCode: http.StatusOK, Data: data}, nil
}

func (f *fakeAPI) Get(_ context.Context, path string, opts ...client.RequestOption) (*models.Response, error) {
	if f.gate != nil {
		<-f.gate
	}
	return f.answer(http.MethodGet, path, nil, opts)
}

func (f *fakeAPI) Post(_ context.Context, path string, body any, opts ...client.RequestOption) (*models.Response, error) {
	return f.answer(http.MethodPost, path, body, opts)
}

func (f *fakeAPI) ClearCache(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.purges++
	return f.purgeErr
}

func (f *fakeAPI) Purges() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.purges
}

func (f *fakeAPI) Ping(context.Context) error {
	return f.pingErr
}

func (f *fakeAPI) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeAPI) Calls() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

// ---- helpers ----

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func setup(t *testing.T) (*authService, *fakeAPI, *session.Store, *clock) {
	t.Helper()

	db, err := storage.InitDatabase(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	clk := &clock{t: time.Date(2026, 2, 3, 9, 0, 0, 0, time.UTC)}
	store := session.NewStore(metadata.NewSQLiteRepository(db), logging.Discard(), session.WithClock(clk.Now))
	api := newFakeAPI()

	svc := NewAuthService(api, store, logging.Discard()).(*authService)
	return svc, api, store, clk
}

var ann = models.User{ID: "u-1", Email: "ann@example.com", Name: "Ann"}

// ---- tests ----

func TestLogin_SuccessSavesSessionAndResetsCounter(t *testing.T) {
	ctx := context.Background()
	svc, api, store, _ := setup(t)

	api.on(common.LoginPath, nil, &client.HTTPError{StatusCode: 401, Kind: client.ErrUnauthorized})
	res := svc.Login(ctx, "ann@example.com", []byte("wrong"))
	require.False(t, res.OK)
	require.Equal(t, 1, svc.RetryCount())

	api.on(common.LoginPath, map[string]any{"token": "tok-1", "user": ann}, nil)
	res = svc.Login(ctx, "ann@example.com", []byte("secret"))

	require.True(t, res.OK)
	require.NoError(t, res.Err)
	assert.Equal(t, ann, res.User)
	assert.Zero(t, svc.RetryCount())

	s, ok := store.Load(ctx)
	require.True(t, ok)
	assert.Equal(t, "tok-1", s.Token)
	assert.Equal(t, ann, s.User)

	calls := api.Calls()
	last := calls[len(calls)-1]
	assert.Equal(t, loginRequest{Email: "ann@example.com", Password: "secret"}, last.Body)
	assert.True(t, last.Req.SkipQueue)
	assert.True(t, last.Req.SkipRefresh)
}

func TestLogin_FailureClassification(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		canRetry bool
	}{
		{"bad credentials", &client.HTTPError{StatusCode: 401, Kind: client.ErrUnauthorized}, false},
		{"validation", &client.HTTPError{StatusCode: 422, Kind: client.ErrValidation}, false},
		{"server", &client.HTTPError{StatusCode: 503, Kind: client.ErrServer}, true},
		{"offline", client.ErrNetworkUnavailable, true},
		{"timeout", client.ErrTimeout, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			svc, api, _, _ := setup(t)
			api.on(common.LoginPath, nil, tt.err)

			res := svc.Login(ctx, "ann@example.com", []byte("pw"))

			assert.False(t, res.OK)
			assert.ErrorIs(t, res.Err, tt.err)
			assert.Equal(t, tt.canRetry, res.CanRetry)
			assert.Equal(t, 1, res.Attempts)
			assert.False(t, svc.IsAuthenticated(ctx))
		})
	}
}

func TestLogin_CounterRestartsWithEachAttempt(t *testing.T) {
	ctx := context.Background()
	svc, api, _, _ := setup(t)
	api.on(common.LoginPath, nil, client.ErrNetworkUnavailable)

	for range 3 {
		res := svc.Login(ctx, "ann@example.com", []byte("pw"))
		assert.Equal(t, 1, res.Attempts)
		assert.Equal(t, 1, svc.RetryCount())
	}
}

func TestLogin_MissingTokenIsServerError(t *testing.T) {
	ctx := context.Background()
	svc, api, _, _ := setup(t)
	api.on(common.LoginPath, map[string]any{"user": ann}, nil)

	res := svc.Login(ctx, "ann@example.com", []byte("pw"))
	assert.False(t, res.OK)
	assert.ErrorIs(t, res.Err, client.ErrServer)
	assert.False(t, svc.IsAuthenticated(ctx))
}

func TestRegister(t *testing.T) {
	t.Run("with token", func(t *testing.T) {
		ctx := context.Background()
		svc, api, _, _ := setup(t)
		api.on(common.RegisterPath, map[string]any{"token": "tok-r", "user": ann}, nil)

		res := svc.Register(ctx, "Ann", "ann@example.com", []byte("pw"))
		require.True(t, res.OK)
		assert.False(t, res.RequiresVerification)

		u, ok := svc.CurrentUser(ctx)
		require.True(t, ok)
		assert.Equal(t, ann, u)

		assert.Equal(t, registerRequest{Name: "Ann", Email: "ann@example.com", Password: "pw"}, api.Calls()[0].Body)
	})

	t.Run("requires verification", func(t *testing.T) {
		ctx := context.Background()
		svc, api, _, _ := setup(t)
		api.on(common.RegisterPath, map[string]any{"user": ann, "requiresVerification": true}, nil)

		res := svc.Register(ctx, "Ann", "ann@example.com", []byte("pw"))
		require.True(t, res.OK)
		assert.True(t, res.RequiresVerification)
		assert.False(t, svc.IsAuthenticated(ctx))
	})

	t.Run("rejected", func(t *testing.T) {
		ctx := context.Background()
		svc, api, _, _ := setup(t)
		api.on(common.RegisterPath, nil, &client.HTTPError{StatusCode: 409, Kind: client.ErrValidation, Message: "email is taken"})

		res := svc.Register(ctx, "Ann", "ann@example.com", []byte("pw"))
		assert.False(t, res.OK)
		assert.ErrorIs(t, res.Err, client.ErrValidation)
		assert.False(t, res.CanRetry)
		assert.Zero(t, svc.RetryCount(), "only logins feed the retry counter")
	})
}

func TestLogout_ClearsEvenWhenServerFails(t *testing.T) {
	ctx := context.Background()
	svc, api, store, _ := setup(t)
	store.Save(ctx, "tok", ann)
	api.on(common.LogoutPath, nil, client.ErrNetworkUnavailable)

	svc.Logout(ctx)

	assert.False(t, svc.IsAuthenticated(ctx))
	calls := api.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, common.LogoutPath, calls[0].Path)
	assert.Equal(t, 1, api.Purges())
}

func TestLogout_WithoutSessionSkipsServer(t *testing.T) {
	ctx := context.Background()
	svc, api, _, _ := setup(t)

	svc.Logout(ctx)
	assert.Empty(t, api.Calls())
	assert.Equal(t, 1, api.Purges(), "cached responses are dropped regardless")
}

func TestLogout_CachePurgeFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	svc, api, store, _ := setup(t)
	store.Save(ctx, "tok", ann)
	api.on(common.LogoutPath, map[string]any{}, nil)
	api.purgeErr = errors.New("disk I/O error")

	svc.Logout(ctx)

	assert.False(t, svc.IsAuthenticated(ctx))
	assert.Equal(t, 1, api.Purges())
}

func TestReloadUser_KeepsToken(t *testing.T) {
	ctx := context.Background()
	svc, api, store, clk := setup(t)
	store.Save(ctx, "tok", ann)
	clk.Advance(time.Minute)

	renamed := ann
	renamed.Name = "Ann B."
	api.on(common.ProfilePath, map[string]any{"user": renamed}, nil)

	u, err := svc.ReloadUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, renamed, u)

	s, ok := store.Load(ctx)
	require.True(t, ok)
	assert.Equal(t, "tok", s.Token)
	assert.Equal(t, renamed, s.User)
	assert.Equal(t, clk.Now(), s.IssuedAt)

	c := api.Calls()[0]
	assert.True(t, c.Req.SkipQueue)
	assert.False(t, c.Req.SkipRefresh)
}

func TestReloadUser_Errors(t *testing.T) {
	ctx := context.Background()
	svc, api, store, _ := setup(t)

	_, err := svc.ReloadUser(ctx)
	require.ErrorIs(t, err, client.ErrUnauthorized)
	assert.Empty(t, api.Calls())

	store.Save(ctx, "tok", ann)
	api.on(common.ProfilePath, nil, client.ErrServer)
	_, err = svc.ReloadUser(ctx)
	require.ErrorIs(t, err, client.ErrServer)

	s, _ := store.Load(ctx)
	assert.Equal(t, ann, s.User, "failed reload leaves the session alone")
}

func TestInit_StaleSessionReloadsInBackground(t *testing.T) {
	ctx := context.Background()
	svc, api, store, clk := setup(t)
	store.Save(ctx, "tok", ann)
	clk.Advance(common.RefreshThreshold + time.Second)

	renamed := ann
	renamed.Name = "Ann B."
	api.on(common.ProfilePath, map[string]any{"user": renamed}, nil)
	api.gate = make(chan struct{})

	done := svc.Init(ctx)

	// Init must not block on the reload.
	select {
	case <-done:
		t.Fatal("Init waited for the reload")
	default:
	}
	assert.True(t, svc.IsAuthenticated(ctx))

	close(api.gate)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("background reload did not finish")
	}

	u, ok := svc.CurrentUser(ctx)
	require.True(t, ok)
	assert.Equal(t, renamed, u)
}

func TestInit_FreshOrMissingSessionDoesNothing(t *testing.T) {
	ctx := context.Background()
	svc, api, store, clk := setup(t)

	<-svc.Init(ctx)

	store.Save(ctx, "tok", ann)
	clk.Advance(common.RefreshThreshold)
	<-svc.Init(ctx)

	assert.Empty(t, api.Calls())
}

func TestPingAndClose(t *testing.T) {
	ctx := context.Background()
	svc, api, _, _ := setup(t)

	api.pingErr = errors.New("down")
	assert.Error(t, svc.Ping(ctx))

	require.NoError(t, svc.Close(ctx))
	assert.True(t, api.closed)
}
