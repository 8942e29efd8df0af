// Package cli provides the interactive sessionkeeper command-line client.
//
// It wires configuration, local storage, the resilient API client and an
// interactive REPL that keeps working while the server is unreachable.
// Typical flow: restore the saved session (refreshing it in the background
// when it is old), start a connectivity watcher, and execute user commands.
//
// Key features:
//   - Register / Login / Logout, whoami and profile reload
//   - Generic get/post/put/delete calls against the API
//   - Offline operation: cached GETs, queued writes replayed on reconnect
//   - Connectivity and queue status in the prompt
//
// The REPL is started via App.Root(ctx), which blocks until the user exits.
// See App, StartOnlineStatusWatcher, and runREPL for details.
package cli
