// Package api provides the HTTP read API over the published listing snapshot.
//
// Routes are served by echo under /api/v1 and every response uses the
// {success, message, data, error} envelope.
package api
