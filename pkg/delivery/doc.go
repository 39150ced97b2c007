// Package delivery drives broadcasts to completion and delivers single
// messages outside of broadcasts.
//
// An [Engine] walks the recipient list of a claimed broadcast in fixed-size
// batches. Before each batch it polls the broadcast status, so an operator
// cancel takes effect at the next batch boundary; recipients never reached
// are recorded as skipped. Inside a batch recipients are processed
// concurrently: the delivery row is upserted, the shared rate limiter is
// consulted and the message is sent with a per-call timeout.
//
// Outcomes map onto delivery rows:
//
//   - accepted by the channel: sent
//   - permanently rejected: blocked, never retried
//   - anything else: retry_count is incremented; the recipient is queued for
//     the next pass after an exponential backoff, or marked failed once
//     retry_count reaches max retries
//
// Because retry_count is persisted and the upsert is idempotent, a pass that
// dies halfway is resumed by the next claimer without resending to
// recipients that already have a terminal row.
package delivery
