package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn(ctx context.Context) bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	WhoAmI(ctx context.Context) error
	Reload(ctx context.Context) error
	Request(ctx context.Context, method string, args []string) error
	Status(ctx context.Context) error
}

// runREPL starts a simple read–eval–print loop for the sessionkeeper CLI.
//
// It reads a line from the provided scanner, parses the first token as the
// command, and dispatches to methods on 'a'. Unknown commands are reported
// back to the user. The loop exits on scanner EOF or when the user types
// "exit" or "quit".
//
// Prompt & Commands
//
// The prompt shows the current status (from statusFn) and accepts commands:
//
//	Always:
//	  - help                      show available commands
//	  - get <path> [k=v ...]      GET with optional query parameters
//	  - post|put <path> [json]    send a JSON body (prompted when omitted)
//	  - delete <path>             DELETE
//	  - status                    connectivity and offline queue state
//	  - exit | quit               leave the program
//
//	Not logged in:
//	  - register, login
//
//	Logged in:
//	  - whoami, reload, logout
//
// Any errors returned by command handlers are ignored here; handlers report
// their own errors. This keeps the REPL loop resilient and focused on I/O.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("sk %s> ", statusFn()))
		if !scanner.Scan() {
			return
		}
		line := scanner.Text()
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help":
			if a.isLoggedIn(ctx) {
				printlnFn("Available commands: whoami, reload, get, post, put, delete, status, logout, exit")
			} else {
				printlnFn("Available commands: register, login, get, post, put, delete, status, exit")
			}

		case "register":
			_ = a.Register(ctx)

		case "login":
			_ = a.Login(ctx)

		case "logout":
			_ = a.Logout(ctx)

		case "whoami":
			_ = a.WhoAmI(ctx)

		case "reload":
			_ = a.Reload(ctx)

		case "get", "post", "put", "delete":
			if len(args) == 0 {
				printlnFn(fmt.Sprintf("Usage: %s <path>", cmd))
				continue
			}
			_ = a.Request(ctx, strings.ToUpper(cmd), args)

		case "status":
			_ = a.Status(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}
