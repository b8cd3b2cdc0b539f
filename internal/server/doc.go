// Package server exposes the snapshot over HTTP.
//
// Routes:
//
//   - GET /: the current snapshot as a JSON document
//   - GET /healthz: fixed liveness response, independent of snapshot state
//   - GET /metrics: Prometheus exposition
//
// Every response allows cross-origin reads. The server shuts down gracefully
// when its context is cancelled, with a 5-second timeout for in-flight requests.
package server
