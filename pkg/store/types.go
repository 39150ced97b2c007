package store

import (
	"encoding/json"
	"slices"
	"time"
)

// BroadcastStatus is the lifecycle state of a broadcast.
type BroadcastStatus string

const (
	BroadcastDraft     BroadcastStatus = "draft"
	BroadcastScheduled BroadcastStatus = "scheduled"
	BroadcastSending   BroadcastStatus = "sending"
	BroadcastCompleted BroadcastStatus = "completed"
	BroadcastCancelled BroadcastStatus = "cancelled"
	BroadcastFailed    BroadcastStatus = "failed"
)

// IsFinal reports whether no further delivery pass may start for the broadcast.
func (s BroadcastStatus) IsFinal() bool {
	switch s {
	case BroadcastCompleted, BroadcastCancelled, BroadcastFailed:
		return true
	}
	return false
}

// broadcastTransitions lists allowed status changes. Transitions are monotonic.
var broadcastTransitions = map[BroadcastStatus][]BroadcastStatus{
	BroadcastDraft:     {BroadcastScheduled, BroadcastCancelled},
	BroadcastScheduled: {BroadcastSending, BroadcastCancelled},
	BroadcastSending:   {BroadcastCompleted, BroadcastCancelled, BroadcastFailed},
}

// CanTransition reports whether a broadcast may move from one status to another.
func CanTransition(from, to BroadcastStatus) bool {
	return slices.Contains(broadcastTransitions[from], to)
}

// TransitionSources lists the statuses from which a broadcast may move to status.
func TransitionSources(to BroadcastStatus) []BroadcastStatus {
	out := make([]BroadcastStatus, 0, 3)
	for _, from := range []BroadcastStatus{BroadcastDraft, BroadcastScheduled, BroadcastSending} {
		if CanTransition(from, to) {
			out = append(out, from)
		}
	}
	return out
}

// TargetKind selects how a broadcast target is expanded into recipients.
type TargetKind string

const (
	TargetAll     TargetKind = "all"
	TargetIDs     TargetKind = "ids"
	TargetGroup   TargetKind = "group"
	TargetExclude TargetKind = "exclude"
)

// Target describes the recipient set of a broadcast.
type Target struct {
	Kind  TargetKind `json:"kind"`
	Group string     `json:"group,omitempty"`
	IDs   []string   `json:"ids,omitempty"`
}

// Content is the payload delivered to each recipient.
type Content struct {
	// Text is rich text (HTML or Markdown, see Format).
	Text string `json:"text"`
	// Format is "html" (default) or "markdown".
	Format string `json:"format,omitempty"`
	// MediaURL is an optional photo sent with Text as caption.
	MediaURL string `json:"media_url,omitempty"`
}

// Broadcast is one bulk-send campaign.
type Broadcast struct {
	ScheduledAt    time.Time       `json:"scheduled_at"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	LeaseExpiresAt *time.Time      `json:"lease_expires_at,omitempty"`
	ID             string          `json:"id"`
	ClaimID        string          `json:"claim_id,omitempty"`
	Status         BroadcastStatus `json:"status"`
	Content        Content         `json:"content"`
	Target         Target          `json:"target"`
}

// DeliveryStatus is the per-recipient outcome of a broadcast.
type DeliveryStatus string

const (
	DeliveryPending DeliveryStatus = "pending"
	DeliverySent    DeliveryStatus = "sent"
	DeliveryFailed  DeliveryStatus = "failed"
	DeliveryBlocked DeliveryStatus = "blocked"
	// DeliverySkipped marks recipients left unprocessed by a cancelled broadcast.
	DeliverySkipped DeliveryStatus = "skipped"
)

// IsTerminal reports whether a delivery row accepts no further mark writes.
func (s DeliveryStatus) IsTerminal() bool {
	return s != DeliveryPending
}

// Delivery is the per-recipient record of a broadcast.
type Delivery struct {
	UpdatedAt   time.Time      `json:"updated_at"`
	SentAt      *time.Time     `json:"sent_at,omitempty"`
	ID          string         `json:"id"`
	BroadcastID string         `json:"broadcast_id"`
	RecipientID string         `json:"recipient_id"`
	Status      DeliveryStatus `json:"status"`
	LastError   string         `json:"last_error,omitempty"`
	RetryCount  int            `json:"retry_count"`
	MaxRetries  int            `json:"max_retries"`
}

// DeliveryStats aggregates delivery rows of one broadcast by status.
type DeliveryStats struct {
	Total   int `json:"total"`
	Pending int `json:"pending"`
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
	Blocked int `json:"blocked"`
	Skipped int `json:"skipped"`
}

// Add counts n rows with the given status.
func (s *DeliveryStats) Add(status DeliveryStatus, n int) {
	s.Total += n
	switch status {
	case DeliveryPending:
		s.Pending += n
	case DeliverySent:
		s.Sent += n
	case DeliveryFailed:
		s.Failed += n
	case DeliveryBlocked:
		s.Blocked += n
	case DeliverySkipped:
		s.Skipped += n
	}
}

// JobStatus is the lifecycle state of an external compute job.
type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobDispatched JobStatus = "dispatched"
	JobSucceeded  JobStatus = "succeeded"
	JobFailed     JobStatus = "failed"
)

// IsTerminal reports whether the job has been finalized.
func (s JobStatus) IsTerminal() bool {
	return s == JobSucceeded || s == JobFailed
}

// Job is one external asynchronous compute request.
type Job struct {
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	DispatchedAt   *time.Time      `json:"dispatched_at,omitempty"`
	FinishedAt     *time.Time      `json:"finished_at,omitempty"`
	ID             string          `json:"id"`
	RequesterID    string          `json:"requester_id"`
	Status         JobStatus       `json:"status"`
	ProviderHandle string          `json:"provider_handle,omitempty"`
	ResultRef      string          `json:"result_ref,omitempty"`
	Error          string          `json:"error,omitempty"`
	CallbackToken  string          `json:"-"`
	DeliveryStatus DeliveryStatus  `json:"delivery_status,omitempty"`
	DeliveryError  string          `json:"delivery_error,omitempty"`
	Params         json.RawMessage `json:"params,omitempty"`
}

// JobResult is the terminal outcome applied to a job.
type JobResult struct {
	Status    JobStatus
	ResultRef string
	Error     string
}
