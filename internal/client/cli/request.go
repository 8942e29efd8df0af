package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/client/client"
	"github.com/dmitrijs2005/sessionkeeper/internal/client/models"
)

var errInvalidBody = errors.New("body is not valid JSON")

// Request runs one generic API call. For GET and DELETE the arguments after
// the path are query parameters in k=v form; for POST and PUT they are the
// JSON body, which is prompted for when omitted.
func (a *App) Request(ctx context.Context, method string, args []string) error {
	path := args[0]
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	rest := args[1:]

	var call func() (*models.Response, error)
	switch method {
	case http.MethodGet, http.MethodDelete:
		q, err := parseQuery(rest)
		if err != nil {
			fmt.Fprintln(a.out, err)
			return err
		}
		call = func() (*models.Response, error) {
			if method == http.MethodGet {
				return a.api.Get(ctx, path, client.WithQuery(q))
			}
			return a.api.Delete(ctx, path, client.WithQuery(q))
		}

	case http.MethodPost, http.MethodPut:
		body, err := a.readBody(rest)
		if err != nil {
			fmt.Fprintln(a.out, err)
			return err
		}
		call = func() (*models.Response, error) {
			if method == http.MethodPost {
				return a.api.Post(ctx, path, body)
			}
			return a.api.Put(ctx, path, body)
		}

	default:
		return fmt.Errorf("unsupported method %s", method)
	}

	return a.await(method, path, call)
}

// queuedNoticeDelay is how long a call may wait while offline before the
// prompt is handed back to the user.
var queuedNoticeDelay = 200 * time.Millisecond

// await runs call and reports its outcome. A call parked in the offline
// queue does not hold the prompt: its result is printed once it is replayed.
func (a *App) await(method, path string, call func() (*models.Response, error)) error {
	type result struct {
		resp *models.Response
		err  error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := call()
		done <- result{resp, err}
	}()

	report := func(r result) error {
		if r.err != nil {
			a.reportRequestError(r.err)
			return r.err
		}
		a.printResponse(r.resp)
		return nil
	}

	ticker := time.NewTicker(queuedNoticeDelay)
	defer ticker.Stop()
	for {
		select {
		case r := <-done:
			return report(r)
		case <-ticker.C:
			if a.monitor == nil || a.monitor.Online() {
				continue
			}
			fmt.Fprintf(a.out, "Offline: %s %s queued, it will be sent when the server is reachable.\n", method, path)
			go func() {
				r := <-done
				fmt.Fprintf(a.out, "\nQueued %s %s finished:\n", method, path)
				_ = report(r)
			}()
			return nil
		}
	}
}

func parseQuery(args []string) (url.Values, error) {
	if len(args) == 0 {
		return nil, nil
	}
	q := url.Values{}
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("query parameter %q must look like key=value", arg)
		}
		q.Add(k, v)
	}
	return q, nil
}

func (a *App) readBody(args []string) (json.RawMessage, error) {
	text := strings.Join(args, " ")
	if text == "" {
		var err error
		text, err = GetMultiline(a.reader, "Enter JSON body", a.out)
		if err != nil {
			return nil, err
		}
	}
	if text == "" {
		return json.RawMessage("{}"), nil
	}
	if !json.Valid([]byte(text)) {
		return nil, errInvalidBody
	}
	return json.RawMessage(text), nil
}

func (a *App) printResponse(resp *models.Response) {
	status := fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	if resp.FromCache {
		status += " (offline, served from cache)"
	}
	fmt.Fprintln(a.out, status)

	if len(resp.Data) == 0 {
		return
	}
	var pretty bytes.Buffer
	if json.Indent(&pretty, resp.Data, "", "  ") == nil {
		fmt.Fprintln(a.out, pretty.String())
		return
	}
	fmt.Fprintln(a.out, string(resp.Data))
}

func (a *App) reportRequestError(err error) {
	switch {
	case errors.Is(err, client.ErrUnauthorized):
		fmt.Fprintf(a.out, "Not authorized: %v\n", err)
	case errors.Is(err, client.ErrQueueAbandoned):
		fmt.Fprintln(a.out, "Request dropped while waiting for connectivity.")
	default:
		fmt.Fprintf(a.out, "Request failed: %v\n", err)
	}
	if client.CanRetry(err) {
		fmt.Fprintln(a.out, "You can retry this request.")
	}
}

// Status prints connectivity, session and offline queue state.
func (a *App) Status(ctx context.Context) error {
	fmt.Fprintf(a.out, "server:  %s (%s)\n", a.config.ServerURL, a.monitor.Mode())
	if u, ok := a.authService.CurrentUser(ctx); ok {
		fmt.Fprintf(a.out, "session: %s\n", displayName(u))
	} else {
		fmt.Fprintln(a.out, "session: none")
	}
	fmt.Fprintf(a.out, "queued:  %d\n", a.api.Queued())
	return nil
}
