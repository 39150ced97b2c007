// Package handlers declares herald's HTTP endpoints.
//
// [Callbacks] receives signed results from the compute provider at
// POST /job-callback. [Operator] exposes broadcast and job management behind
// bearer authentication:
//
//	POST /broadcasts
//	GET  /broadcasts/{id}
//	POST /broadcasts/{id}/cancel
//	POST /broadcasts/{id}/retry-failed
//	GET  /broadcasts/{id}/stats
//	POST /jobs
//	GET  /jobs/{id}
//
// Handlers depend on small interfaces rather than concrete services so tests
// can run them over the in-memory store.
package handlers
