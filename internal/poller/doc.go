// Package poller fetches the platform's status endpoints on fixed intervals.
//
// Each [Poller] owns one category: it waits its interval, issues a GET, checks
// that the body is JSON, and hands a [store.Update] to its sink. Failures are
// logged and absorbed; the next tick is the retry. The jobs poller carries a
// [TokenSource] and sends a bearer token with every request.
//
// The main components are:
//
//   - [Client]: HTTP client with per-request timeouts and a body size limit
//   - [Poller]: the per-category poll loop
//   - [NetworkError], [ParseError], [TokenError]: the failure taxonomy
package poller
