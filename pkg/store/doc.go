// Package store defines the record store contract for broadcasts, deliveries
// and external compute jobs.
//
// Two implementations are provided: store/postgres for production and
// store/memory for tests and single-process deployments. Both honor the same
// guarantees:
//
//   - ClaimDueBroadcasts hands each due broadcast to exactly one caller.
//   - Lease renewal and completion succeed only for the current claim.
//   - ClaimRetry admits one retry-failed pass per broadcast while its lease lives.
//   - UpsertDelivery is idempotent per (broadcast, recipient).
//   - MarkDelivery never overwrites a terminal row.
//   - FinalizeJob applies at most one terminal result per job.
package store
