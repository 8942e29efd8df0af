package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
)

func (a *App) getStatus(ctx context.Context) string {
	s := ""
	if u, ok := a.authService.CurrentUser(ctx); ok {
		s = displayName(u) + " "
	}
	if a.monitor != nil {
		s = s + string(a.monitor.Mode())
	}
	if a.api != nil {
		if n := a.api.Queued(); n > 0 {
			s = fmt.Sprintf("%s, %d queued", s, n)
		}
	}
	if s != "" {
		s = fmt.Sprintf("(%s)", s)
	}
	return s
}

// Root restores the saved session, starts the connectivity watcher and runs
// the REPL until the user exits or stdin closes.
func (a *App) Root(ctx context.Context) {
	fmt.Fprintln(a.out, "Welcome to sessionkeeper CLI (type 'help' for commands)")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	restored := a.authService.Init(ctx)
	if !a.isLoggedIn(ctx) {
		fmt.Fprintln(a.out, "Not logged in, use 'login' or 'register'.")
	}

	go a.StartOnlineStatusWatcher(ctx, a.config.OnlineCheckInterval)

	runREPL(ctx, a, func() string { return a.getStatus(ctx) }, bufio.NewScanner(os.Stdin))

	cancel()
	<-restored
}
