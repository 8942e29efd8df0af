package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/client/cache"
	"github.com/dmitrijs2005/sessionkeeper/internal/client/client"
	"github.com/dmitrijs2005/sessionkeeper/internal/client/config"
	"github.com/dmitrijs2005/sessionkeeper/internal/client/connectivity"
	"github.com/dmitrijs2005/sessionkeeper/internal/client/models"
	"github.com/dmitrijs2005/sessionkeeper/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/sessionkeeper/internal/client/services"
	"github.com/dmitrijs2005/sessionkeeper/internal/client/session"
	"github.com/dmitrijs2005/sessionkeeper/internal/client/storage"
	"github.com/dmitrijs2005/sessionkeeper/internal/logging"
)

// apiClient is the request surface of client.HTTPClient used by the
// generic get/post/put/delete commands.
type apiClient interface {
	Get(ctx context.Context, path string, opts ...client.RequestOption) (*models.Response, error)
	Post(ctx context.Context, path string, body any, opts ...client.RequestOption) (*models.Response, error)
	Put(ctx context.Context, path string, body any, opts ...client.RequestOption) (*models.Response, error)
	Delete(ctx context.Context, path string, opts ...client.RequestOption) (*models.Response, error)
	Queued() int
}

type App struct {
	config      *config.Config
	authService services.AuthService
	api         apiClient
	monitor     *connectivity.Monitor
	log         logging.Logger
	reader      *bufio.Reader
	out         io.Writer

	// released in reverse order by Close
	closers []func() error
}

func NewApp(ctx context.Context, c *config.Config, log logging.Logger) (*App, error) {
	db, err := storage.InitDatabase(ctx, c.DatabasePath)
	if err != nil {
		log.Error(ctx, "error initializing database", "path", c.DatabasePath, "error", err)
		return nil, err
	}

	sessions := session.NewStore(metadata.NewSQLiteRepository(db), log)
	responses := cache.New(ctx, db, cache.RedisOptions{Addr: c.RedisAddr, Password: c.RedisPassword}, log)

	api := client.New(c.ServerURL, sessions, responses, log,
		client.WithTimeout(c.RequestTimeout),
		client.WithMaxRateLimitRetries(c.MaxRateLimitRetries),
		client.WithRequestsPerSecond(c.RequestsPerSecond),
	)

	a := &App{
		config:      c,
		authService: services.NewAuthService(api, sessions, log),
		api:         api,
		monitor:     api.Connectivity(),
		log:         log,
		reader:      bufio.NewReader(os.Stdin),
		out:         os.Stdout,
	}

	a.closers = append(a.closers, db.Close)
	if cl, ok := responses.(io.Closer); ok {
		a.closers = append(a.closers, cl.Close)
	}
	a.closers = append(a.closers, func() error { return a.authService.Close(context.Background()) })

	api.OnUnauthorized(func() {
		fmt.Fprintln(a.out, "Session expired, please log in again.")
	})
	a.monitor.OnChange(func(_, to connectivity.Mode) {
		fmt.Fprintf(a.out, "\nSwitched to %s mode\n", to)
	})

	return a, nil
}

func (a *App) Run(ctx context.Context) {
	defer func() {
		if err := a.Close(); err != nil {
			a.log.Warn(ctx, "shutdown incomplete", "error", err)
		}
	}()
	a.Root(ctx)
}

// Close releases the client, the cache and the database.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) isLoggedIn(ctx context.Context) bool {
	return a.authService.IsAuthenticated(ctx)
}

// StartOnlineStatusWatcher probes the server every interval until ctx ends.
// Mode changes are announced through the monitor's listeners.
func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	a.monitor.Run(ctx, interval)
}
