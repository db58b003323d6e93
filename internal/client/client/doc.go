// Package client contains the client-side gRPC binding for tokenkeeper.
//
// GRPCClient keeps the current token pair in memory, attaches the access
// token to every call through a unary interceptor and, when the server
// answers Unauthenticated with "token expired", exchanges the pair via
// Refresh once and retries the original call. Concurrent callers that hit
// the same expired token share a single refresh.
//
// gRPC status codes are mapped to the sentinel errors in errors.go so the
// CLI can match them with errors.Is.
package client
