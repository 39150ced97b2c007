package store

import (
	"context"
	"time"
)

// BroadcastStore holds broadcast rows.
type BroadcastStore interface {
	// CreateBroadcast inserts a broadcast in draft or scheduled status.
	CreateBroadcast(ctx context.Context, b Broadcast) (Broadcast, error)

	// GetBroadcast loads one broadcast.
	GetBroadcast(ctx context.Context, id string) (Broadcast, error)

	// GetBroadcastStatus returns the current status only; used for cancellation polling.
	GetBroadcastStatus(ctx context.Context, id string) (BroadcastStatus, error)

	// ClaimDueBroadcasts atomically moves up to limit due broadcasts to sending
	// and returns them. Due means scheduled with scheduled_at <= now, or sending
	// with an expired lease. Concurrent callers never receive the same row.
	// Every claim gets a fresh ClaimID; the previous holder loses the lease.
	// A limit <= 0 claims nothing.
	ClaimDueBroadcasts(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]Broadcast, error)

	// RenewLease extends the lease held by claimID.
	// Returns ErrLeaseLost if another claim took the broadcast over, and
	// ErrInvalidTransition if the lease was ended (completed, cancelled or released).
	RenewLease(ctx context.Context, id, claimID string, until time.Time) error

	// CompleteBroadcast moves a sending broadcast held by claimID to completed.
	// Errors as RenewLease.
	CompleteBroadcast(ctx context.Context, id, claimID string) error

	// ClaimRetry takes a lease on a final broadcast for a retry-failed pass.
	// Returns ErrClaimed while another retry lease is live and
	// ErrInvalidTransition if the broadcast is not final.
	ClaimRetry(ctx context.Context, id string, now time.Time, lease time.Duration) (Broadcast, error)

	// ReleaseRetry ends a retry lease held by claimID.
	ReleaseRetry(ctx context.Context, id, claimID string) error

	// MarkBroadcast moves a broadcast to status.
	// Returns ErrInvalidTransition if the move is not monotonic.
	MarkBroadcast(ctx context.Context, id string, status BroadcastStatus) error

	// ScheduleBroadcast moves a draft broadcast to scheduled at the given time.
	ScheduleBroadcast(ctx context.Context, id string, at time.Time) error

	// CancelBroadcast marks a broadcast cancelled. Running passes observe it at
	// the next batch boundary.
	CancelBroadcast(ctx context.Context, id string) error
}

// DeliveryStore holds per-recipient delivery rows.
type DeliveryStore interface {
	// UpsertDelivery returns the row for (broadcastID, recipientID),
	// creating it as pending if absent.
	UpsertDelivery(ctx context.Context, broadcastID, recipientID string, maxRetries int) (Delivery, error)

	// MarkDelivery writes a terminal status.
	// Returns ErrTerminal without modifying the row if it is already terminal.
	MarkDelivery(ctx context.Context, id string, status DeliveryStatus, lastErr string) (Delivery, error)

	// RecordRetry increments retry_count of a pending row and stores lastErr.
	RecordRetry(ctx context.Context, id string, lastErr string) (Delivery, error)

	// SkipPending marks pending rows of the broadcast as skipped and creates
	// skipped rows for the given recipients that have none yet.
	SkipPending(ctx context.Context, broadcastID string, recipientIDs []string) (int, error)

	// ResetFailed reopens failed rows with retry_count 0 and returns them
	// together with the rows that were already pending, ordered by recipient.
	ResetFailed(ctx context.Context, broadcastID string) ([]Delivery, error)

	// ListDeliveries returns rows of the broadcast, optionally filtered by status.
	ListDeliveries(ctx context.Context, broadcastID string, statuses ...DeliveryStatus) ([]Delivery, error)

	// DeliveryStats counts rows of the broadcast by status.
	DeliveryStats(ctx context.Context, broadcastID string) (DeliveryStats, error)
}

// JobStore holds external compute jobs.
type JobStore interface {
	// CreateJob inserts a queued job.
	CreateJob(ctx context.Context, j Job) (Job, error)

	// GetJob loads one job.
	GetJob(ctx context.Context, id string) (Job, error)

	// MarkJobDispatched records the provider handle and moves a queued job to dispatched.
	MarkJobDispatched(ctx context.Context, id, handle string) (Job, error)

	// FinalizeJob applies a terminal result if the job is not terminal yet.
	// The returned bool is false when another writer finalized it first.
	FinalizeJob(ctx context.Context, id string, res JobResult) (Job, bool, error)

	// FailStaleJobs fails queued or dispatched jobs dispatched before deadline.
	// Jobs never dispatched are aged by created_at.
	FailStaleJobs(ctx context.Context, deadline time.Time, reason string) ([]Job, error)

	// SetJobDelivery records the outcome of delivering a job result.
	// Returns ErrTerminal if a delivery outcome is already recorded.
	SetJobDelivery(ctx context.Context, id string, status DeliveryStatus, lastErr string) error
}

// RecipientResolver expands a broadcast target into concrete recipient ids.
type RecipientResolver interface {
	ResolveRecipients(ctx context.Context, target Target) ([]string, error)
}

// Store is the full record store contract.
type Store interface {
	BroadcastStore
	DeliveryStore
	JobStore
	RecipientResolver
}
