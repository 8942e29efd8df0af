// Package services contains application services for the sessionkeeper
// client. This file defines the authentication service: login, register,
// logout, profile reload and the opportunistic refresh on startup.
package services

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/dmitrijs2005/sessionkeeper/internal/client/client"
	"github.com/dmitrijs2005/sessionkeeper/internal/client/models"
	"github.com/dmitrijs2005/sessionkeeper/internal/client/session"
	"github.com/dmitrijs2005/sessionkeeper/internal/common"
	"github.com/dmitrijs2005/sessionkeeper/internal/logging"
)

// API is the subset of client.HTTPClient the service calls.
type API interface {
	Get(ctx context.Context, path string, opts ...client.RequestOption) (*models.Response, error)
	Post(ctx context.Context, path string, body any, opts ...client.RequestOption) (*models.Response, error)
	ClearCache(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// SessionStore is the subset of session.Store the service uses.
type SessionStore interface {
	client.SessionStore
	NeedsRefresh(s session.AuthSession) bool
}

// AuthResult is the outcome of Login and Register, shaped for display.
type AuthResult struct {
	OK   bool
	User models.User
	Err  error
	// CanRetry is set for connectivity and server-side failures, cleared
	// for rejected input such as bad credentials.
	CanRetry             bool
	RequiresVerification bool
	// Attempts is the number of consecutive failed logins so far.
	Attempts int
}

// AuthService defines authentication operations for the CLI.
//
// Contract:
//   - Init: restore the persisted session and refresh it in the background
//     when it is getting old.
//   - Login/Register: authenticate against the server and persist the session.
//   - Logout: best-effort server-side logout, then drop the local session
//     and the cached responses fetched under it.
//   - ReloadUser: refetch the profile and store it with the current token.
//   - Ping: check server liveness.
//   - Close: release underlying client resources.
//
// All methods must honor context cancellation/timeouts.
type AuthService interface {
	Init(ctx context.Context) <-chan struct{}
	Login(ctx context.Context, email string, password []byte) AuthResult
	Register(ctx context.Context, name, email string, password []byte) AuthResult
	Logout(ctx context.Context)
	ReloadUser(ctx context.Context) (models.User, error)
	CurrentUser(ctx context.Context) (models.User, bool)
	IsAuthenticated(ctx context.Context) bool
	RetryCount() int
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

type authService struct {
	api      API
	sessions SessionStore
	log      logging.Logger

	// failed logins since the last successful one
	retries atomic.Int32
}

// NewAuthService constructs an AuthService bound to the given API client and
// session store.
func NewAuthService(api API, sessions SessionStore, log logging.Logger) AuthService {
	return &authService{api: api, sessions: sessions, log: log}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token                string      `json:"token"`
	User                 models.User `json:"user"`
	RequiresVerification bool        `json:"requiresVerification"`
}

type profileResponse struct {
	User models.User `json:"user"`
}

// Auth endpoints never wait in the offline queue and never trigger a
// refresh: a 401 there means the credentials were rejected.
var authCallOpts = []client.RequestOption{client.WithoutQueue(), client.WithoutRefresh()}

// Init restores the persisted session. If it needs a refresh, ReloadUser
// runs in the background; the returned channel is closed when that work is
// finished, or immediately when there is nothing to do.
func (a *authService) Init(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})

	sess, ok := a.sessions.Load(ctx)
	if !ok || !a.sessions.NeedsRefresh(sess) {
		close(done)
		return done
	}

	go func() {
		defer close(done)
		if _, err := a.ReloadUser(ctx); err != nil {
			a.log.Warn(ctx, "background session refresh failed", "error", err)
		}
	}()
	return done
}

// Login authenticates against the server and saves the returned session.
// The retry counter starts from zero on every attempt and a failure
// increments it.
func (a *authService) Login(ctx context.Context, email string, password []byte) AuthResult {
	a.retries.Store(0)

	resp, err := a.api.Post(ctx, common.LoginPath,
		loginRequest{Email: email, Password: string(password)}, authCallOpts...)
	if err != nil {
		return a.loginFailed(ctx, err)
	}

	out, err := decodeAuth(resp)
	if err != nil {
		return a.loginFailed(ctx, err)
	}
	if out.Token == "" {
		return a.loginFailed(ctx, fmt.Errorf("%w: login returned no token", client.ErrServer))
	}

	a.sessions.Save(ctx, out.Token, out.User)
	a.log.Info(ctx, "logged in", "user", out.User.ID)

	return AuthResult{OK: true, User: out.User, RequiresVerification: out.RequiresVerification}
}

func (a *authService) loginFailed(ctx context.Context, err error) AuthResult {
	n := a.retries.Add(1)
	a.log.Info(ctx, "login failed", "attempts", n, "error", err)
	return AuthResult{Err: err, CanRetry: client.CanRetry(err), Attempts: int(n)}
}

// Register creates an account. The session is saved only when the server
// hands out a token right away; accounts pending verification get none.
func (a *authService) Register(ctx context.Context, name, email string, password []byte) AuthResult {
	resp, err := a.api.Post(ctx, common.RegisterPath,
		registerRequest{Name: name, Email: email, Password: string(password)}, authCallOpts...)
	if err != nil {
		return AuthResult{Err: err, CanRetry: client.CanRetry(err), Attempts: a.RetryCount()}
	}

	out, err := decodeAuth(resp)
	if err != nil {
		return AuthResult{Err: err, Attempts: a.RetryCount()}
	}

	if out.Token != "" {
		a.sessions.Save(ctx, out.Token, out.User)
	}
	a.log.Info(ctx, "registered", "user", out.User.ID, "requires_verification", out.RequiresVerification)

	return AuthResult{OK: true, User: out.User, RequiresVerification: out.RequiresVerification}
}

func decodeAuth(resp *models.Response) (authResponse, error) {
	var out authResponse
	if err := resp.Decode(&out); err != nil {
		return authResponse{}, err
	}
	return out, nil
}

// Logout tells the server to drop the session, ignoring any failure, and
// always clears the local session and the response cache, so the next user
// is never served this user's data offline.
func (a *authService) Logout(ctx context.Context) {
	if _, ok := a.sessions.Load(ctx); ok {
		if _, err := a.api.Post(ctx, common.LogoutPath, nil, authCallOpts...); err != nil {
			a.log.Debug(ctx, "server logout failed", "error", err)
		}
	}
	a.sessions.Clear(ctx)
	if err := a.api.ClearCache(ctx); err != nil {
		a.log.Warn(ctx, "response cache not cleared", "error", err)
	}
	a.log.Info(ctx, "logged out")
}

// ReloadUser fetches the profile and rewrites the session with it, keeping
// the token.
func (a *authService) ReloadUser(ctx context.Context) (models.User, error) {
	if _, ok := a.sessions.Load(ctx); !ok {
		return models.User{}, client.ErrUnauthorized
	}

	resp, err := a.api.Get(ctx, common.ProfilePath, client.WithoutQueue())
	if err != nil {
		return models.User{}, fmt.Errorf("reload user: %w", err)
	}

	var out profileResponse
	if err := resp.Decode(&out); err != nil {
		return models.User{}, fmt.Errorf("reload user: %w", err)
	}

	// Reread: the token may have been refreshed during the call.
	cur, ok := a.sessions.Load(ctx)
	if !ok {
		return models.User{}, client.ErrUnauthorized
	}
	a.sessions.Save(ctx, cur.Token, out.User)
	return out.User, nil
}

func (a *authService) CurrentUser(ctx context.Context) (models.User, bool) {
	s, ok := a.sessions.Load(ctx)
	return s.User, ok
}

func (a *authService) IsAuthenticated(ctx context.Context) bool {
	_, ok := a.sessions.Load(ctx)
	return ok
}

func (a *authService) RetryCount() int {
	return int(a.retries.Load())
}

// Ping proxies a liveness check to the underlying client.
func (a *authService) Ping(ctx context.Context) error {
	return a.api.Ping(ctx)
}

// Close releases resources held by the underlying client.
func (a *authService) Close(ctx context.Context) error {
	return a.api.Close()
}
