// Package cli provides the interactive tokenkeeper command-line client.
//
// The REPL covers the whole session lifecycle: register, login, whoami,
// refresh, revoke and logout. Access tokens that expire mid-session are
// renewed transparently by the underlying gRPC client.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
