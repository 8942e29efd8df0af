package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeExec struct {
	loggedIn bool
	calls    []string
}

func (f *fakeExec) isLoggedIn(context.Context) bool { return f.loggedIn }

func (f *fakeExec) Register(context.Context) error {
	f.calls = append(f.calls, "register")
	return nil
}

func (f *fakeExec) Login(context.Context) error {
	f.calls = append(f.calls, "login")
	f.loggedIn = true
	return nil
}

func (f *fakeExec) Logout(context.Context) error {
	f.calls = append(f.calls, "logout")
	f.loggedIn = false
	return nil
}

func (f *fakeExec) WhoAmI(context.Context) error {
	f.calls = append(f.calls, "whoami")
	return nil
}

func (f *fakeExec) Reload(context.Context) error {
	f.calls = append(f.calls, "reload")
	return nil
}

func (f *fakeExec) Request(_ context.Context, method string, args []string) error {
	f.calls = append(f.calls, method+" "+strings.Join(args, " "))
	return nil
}

func (f *fakeExec) Status(context.Context) error {
	f.calls = append(f.calls, "status")
	return nil
}

func capturePrintln(t *testing.T) *[]string {
	t.Helper()
	var lines []string
	orig := printlnFn
	printlnFn = func(a ...any) (int, error) {
		lines = append(lines, strings.TrimSuffix(fmt.Sprintln(a...), "\n"))
		return 0, nil
	}
	t.Cleanup(func() { printlnFn = orig })
	return &lines
}

func TestRunREPL_DispatchesCommands(t *testing.T) {
	capturePrintln(t)

	input := strings.NewReader(strings.Join([]string{
		"help",
		"login",
		"whoami",
		"get /items page=2",
		"post /notes {\"title\":\"x\"}",
		"put notes/1",
		"delete /notes/1",
		"",
		"reload",
		"status",
		"logout",
		"register",
		"exit",
		"whoami",
	}, "\n"))

	exec := &fakeExec{}
	runREPL(context.Background(), exec, func() string { return "status" }, bufio.NewScanner(input))

	assert.Equal(t, []string{
		"login",
		"whoami",
		"GET /items page=2",
		"POST /notes {\"title\":\"x\"}",
		"PUT notes/1",
		"DELETE /notes/1",
		"reload",
		"status",
		"logout",
		"register",
	}, exec.calls)
}

func TestRunREPL_UsageUnknownAndQuit(t *testing.T) {
	lines := capturePrintln(t)

	input := strings.NewReader("get\nfoobar\nquit\n")
	exec := &fakeExec{loggedIn: true}

	runREPL(context.Background(), exec, func() string { return "s" }, bufio.NewScanner(input))

	assert.Empty(t, exec.calls)
	assert.Contains(t, *lines, "Usage: get <path>")
	assert.Contains(t, *lines, "Unknown command: foobar")
	assert.Contains(t, *lines, "Bye!")
}

func TestRunREPL_HelpDependsOnLogin(t *testing.T) {
	lines := capturePrintln(t)

	input := strings.NewReader("help\nlogin\nhelp\n")
	runREPL(context.Background(), &fakeExec{}, func() string { return "" }, bufio.NewScanner(input))

	var help []string
	for _, l := range *lines {
		if strings.HasPrefix(l, "Available commands") {
			help = append(help, l)
		}
	}
	if assert.Len(t, help, 2) {
		assert.Contains(t, help[0], "register, login")
		assert.Contains(t, help[1], "logout")
	}
}
