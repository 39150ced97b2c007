// Package memory is an in-process implementation of store.Store.
// It is safe for concurrent use and mirrors the postgres semantics.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/herald/pkg/store"
)

type recipient struct {
	id     string
	groups []string
	active bool
}

// Store keeps all records in maps guarded by a single mutex.
type Store struct {
	now        func() time.Time
	broadcasts map[string]*store.Broadcast
	deliveries map[string]*store.Delivery
	byPair     map[pairKey]string
	jobs       map[string]*store.Job
	recipients []recipient
	mu         sync.Mutex
}

type pairKey struct {
	broadcastID string
	recipientID string
}

var _ store.Store = (*Store)(nil)

// Option configures a memory Store.
type Option func(*Store)

// WithClock overrides the clock used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		now:        time.Now,
		broadcasts: make(map[string]*store.Broadcast),
		deliveries: make(map[string]*store.Delivery),
		byPair:     make(map[pairKey]string),
		jobs:       make(map[string]*store.Job),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddRecipient registers an active recipient for target resolution.
func (s *Store) AddRecipient(id string, groups ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.recipients {
		if s.recipients[i].id == id {
			s.recipients[i].groups = groups
			s.recipients[i].active = true
			return
		}
	}
	s.recipients = append(s.recipients, recipient{id: id, groups: groups, active: true})
}

// DeactivateRecipient excludes a recipient from future target resolution.
func (s *Store) DeactivateRecipient(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.recipients {
		if s.recipients[i].id == id {
			s.recipients[i].active = false
		}
	}
}

// Broadcasts

func (s *Store) CreateBroadcast(_ context.Context, b store.Broadcast) (store.Broadcast, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.Status == "" {
		b.Status = store.BroadcastScheduled
	}
	now := s.now()
	b.CreatedAt, b.UpdatedAt = now, now
	if b.ScheduledAt.IsZero() {
		b.ScheduledAt = now
	}
	cp := b
	s.broadcasts[b.ID] = &cp
	return b, nil
}

func (s *Store) GetBroadcast(_ context.Context, id string) (store.Broadcast, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.broadcasts[id]
	if !ok {
		return store.Broadcast{}, store.ErrNotFound
	}
	return *b, nil
}

func (s *Store) GetBroadcastStatus(_ context.Context, id string) (store.BroadcastStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.broadcasts[id]
	if !ok {
		return "", store.ErrNotFound
	}
	return b.Status, nil
}

func (s *Store) ClaimDueBroadcasts(_ context.Context, now time.Time, limit int, lease time.Duration) ([]store.Broadcast, error) {
	if limit <= 0 {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	due := make([]*store.Broadcast, 0)
	for _, b := range s.broadcasts {
		switch {
		case b.Status == store.BroadcastScheduled && !b.ScheduledAt.After(now):
			due = append(due, b)
		case b.Status == store.BroadcastSending && b.LeaseExpiresAt != nil && b.LeaseExpiresAt.Before(now):
			due = append(due, b)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].ScheduledAt.Before(due[j].ScheduledAt)
	})
	if len(due) > limit {
		due = due[:limit]
	}

	until := now.Add(lease)
	out := make([]store.Broadcast, 0, len(due))
	for _, b := range due {
		b.Status = store.BroadcastSending
		b.LeaseExpiresAt = &until
		b.ClaimID = uuid.NewString()
		b.UpdatedAt = s.now()
		out = append(out, *b)
	}
	return out, nil
}

func (s *Store) RenewLease(_ context.Context, id, claimID string, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := s.claimed(id, claimID)
	if err != nil {
		return err
	}
	b.LeaseExpiresAt = &until
	b.UpdatedAt = s.now()
	return nil
}

func (s *Store) CompleteBroadcast(_ context.Context, id, claimID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := s.claimed(id, claimID)
	if err != nil {
		return err
	}
	if b.Status != store.BroadcastSending {
		return store.ErrInvalidTransition
	}
	b.Status = store.BroadcastCompleted
	b.LeaseExpiresAt = nil
	b.UpdatedAt = s.now()
	return nil
}

func (s *Store) ClaimRetry(_ context.Context, id string, now time.Time, lease time.Duration) (store.Broadcast, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.broadcasts[id]
	switch {
	case !ok:
		return store.Broadcast{}, store.ErrNotFound
	case !b.Status.IsFinal():
		return store.Broadcast{}, store.ErrInvalidTransition
	case b.LeaseExpiresAt != nil && !b.LeaseExpiresAt.Before(now):
		return store.Broadcast{}, store.ErrClaimed
	}
	until := now.Add(lease)
	b.LeaseExpiresAt = &until
	b.ClaimID = uuid.NewString()
	b.UpdatedAt = s.now()
	return *b, nil
}

func (s *Store) ReleaseRetry(_ context.Context, id, claimID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := s.claimed(id, claimID)
	if err != nil {
		return err
	}
	if !b.Status.IsFinal() {
		return store.ErrInvalidTransition
	}
	b.LeaseExpiresAt = nil
	b.UpdatedAt = s.now()
	return nil
}

// claimed returns the broadcast whose live lease is held by claimID. Callers hold mu.
func (s *Store) claimed(id, claimID string) (*store.Broadcast, error) {
	b, ok := s.broadcasts[id]
	switch {
	case !ok:
		return nil, store.ErrNotFound
	case b.ClaimID != claimID:
		return nil, store.ErrLeaseLost
	case b.LeaseExpiresAt == nil:
		return nil, store.ErrInvalidTransition
	}
	return b, nil
}

func (s *Store) MarkBroadcast(_ context.Context, id string, status store.BroadcastStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.broadcasts[id]
	if !ok {
		return store.ErrNotFound
	}
	if !store.CanTransition(b.Status, status) {
		return store.ErrInvalidTransition
	}
	b.Status = status
	b.UpdatedAt = s.now()
	if status.IsFinal() {
		b.LeaseExpiresAt = nil
	}
	return nil
}

func (s *Store) ScheduleBroadcast(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.broadcasts[id]
	if !ok {
		return store.ErrNotFound
	}
	if b.Status != store.BroadcastDraft {
		return store.ErrInvalidTransition
	}
	b.Status = store.BroadcastScheduled
	b.ScheduledAt = at
	b.UpdatedAt = s.now()
	return nil
}

func (s *Store) CancelBroadcast(ctx context.Context, id string) error {
	return s.MarkBroadcast(ctx, id, store.BroadcastCancelled)
}

// Deliveries

func (s *Store) UpsertDelivery(_ context.Context, broadcastID, recipientID string, maxRetries int) (store.Delivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey{broadcastID, recipientID}
	if id, ok := s.byPair[key]; ok {
		return *s.deliveries[id], nil
	}
	d := &store.Delivery{
		ID:          uuid.NewString(),
		BroadcastID: broadcastID,
		RecipientID: recipientID,
		Status:      store.DeliveryPending,
		MaxRetries:  maxRetries,
		UpdatedAt:   s.now(),
	}
	s.deliveries[d.ID] = d
	s.byPair[key] = d.ID
	return *d, nil
}

func (s *Store) MarkDelivery(_ context.Context, id string, status store.DeliveryStatus, lastErr string) (store.Delivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.deliveries[id]
	if !ok {
		return store.Delivery{}, store.ErrNotFound
	}
	if d.Status.IsTerminal() {
		return *d, store.ErrTerminal
	}
	now := s.now()
	d.Status = status
	d.LastError = lastErr
	d.UpdatedAt = now
	if status == store.DeliverySent {
		d.SentAt = &now
	}
	return *d, nil
}

func (s *Store) RecordRetry(_ context.Context, id string, lastErr string) (store.Delivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.deliveries[id]
	if !ok {
		return store.Delivery{}, store.ErrNotFound
	}
	if d.Status.IsTerminal() {
		return *d, store.ErrTerminal
	}
	d.RetryCount++
	d.LastError = lastErr
	d.UpdatedAt = s.now()
	return *d, nil
}

func (s *Store) SkipPending(_ context.Context, broadcastID string, recipientIDs []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	n := 0
	for _, d := range s.deliveries {
		if d.BroadcastID == broadcastID && d.Status == store.DeliveryPending {
			d.Status = store.DeliverySkipped
			d.UpdatedAt = now
			n++
		}
	}
	for _, rid := range recipientIDs {
		key := pairKey{broadcastID, rid}
		if _, ok := s.byPair[key]; ok {
			continue
		}
		d := &store.Delivery{
			ID:          uuid.NewString(),
			BroadcastID: broadcastID,
			RecipientID: rid,
			Status:      store.DeliverySkipped,
			UpdatedAt:   now,
		}
		s.deliveries[d.ID] = d
		s.byPair[key] = d.ID
		n++
	}
	return n, nil
}

func (s *Store) ResetFailed(_ context.Context, broadcastID string) ([]store.Delivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	out := make([]store.Delivery, 0)
	for _, d := range s.deliveries {
		if d.BroadcastID != broadcastID {
			continue
		}
		switch d.Status {
		case store.DeliveryFailed:
			d.Status = store.DeliveryPending
			d.RetryCount = 0
			d.UpdatedAt = now
			out = append(out, *d)
		case store.DeliveryPending:
			out = append(out, *d)
		}
	}
	sortDeliveries(out)
	return out, nil
}

func (s *Store) ListDeliveries(_ context.Context, broadcastID string, statuses ...store.DeliveryStatus) ([]store.Delivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]store.Delivery, 0)
	for _, d := range s.deliveries {
		if d.BroadcastID != broadcastID {
			continue
		}
		if len(statuses) > 0 && !slices.Contains(statuses, d.Status) {
			continue
		}
		out = append(out, *d)
	}
	sortDeliveries(out)
	return out, nil
}

func (s *Store) DeliveryStats(_ context.Context, broadcastID string) (store.DeliveryStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var st store.DeliveryStats
	for _, d := range s.deliveries {
		if d.BroadcastID == broadcastID {
			st.Add(d.Status, 1)
		}
	}
	return st, nil
}

func sortDeliveries(ds []store.Delivery) {
	sort.Slice(ds, func(i, j int) bool {
		return ds[i].RecipientID < ds[j].RecipientID
	})
}

// Jobs

func (s *Store) CreateJob(_ context.Context, j store.Job) (store.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	now := s.now()
	j.Status = store.JobQueued
	j.CreatedAt, j.UpdatedAt = now, now
	cp := j
	s.jobs[j.ID] = &cp
	return j, nil
}

func (s *Store) GetJob(_ context.Context, id string) (store.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return store.Job{}, store.ErrNotFound
	}
	return *j, nil
}

func (s *Store) MarkJobDispatched(_ context.Context, id, handle string) (store.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return store.Job{}, store.ErrNotFound
	}
	if j.Status != store.JobQueued {
		return *j, store.ErrTerminal
	}
	now := s.now()
	j.Status = store.JobDispatched
	j.ProviderHandle = handle
	j.DispatchedAt = &now
	j.UpdatedAt = now
	return *j, nil
}

func (s *Store) FinalizeJob(_ context.Context, id string, res store.JobResult) (store.Job, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return store.Job{}, false, store.ErrNotFound
	}
	if j.Status.IsTerminal() {
		return *j, false, nil
	}
	now := s.now()
	j.Status = res.Status
	j.ResultRef = res.ResultRef
	j.Error = res.Error
	j.FinishedAt = &now
	j.UpdatedAt = now
	return *j, true, nil
}

func (s *Store) FailStaleJobs(_ context.Context, deadline time.Time, reason string) ([]store.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	out := make([]store.Job, 0)
	for _, j := range s.jobs {
		if j.Status.IsTerminal() || !dispatchedAt(j).Before(deadline) {
			continue
		}
		j.Status = store.JobFailed
		j.Error = reason
		j.FinishedAt = &now
		j.UpdatedAt = now
		out = append(out, *j)
	}
	return out, nil
}

func dispatchedAt(j *store.Job) time.Time {
	if j.DispatchedAt != nil {
		return *j.DispatchedAt
	}
	return j.CreatedAt
}

func (s *Store) SetJobDelivery(_ context.Context, id string, status store.DeliveryStatus, lastErr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return store.ErrNotFound
	}
	if j.DeliveryStatus != "" {
		return store.ErrTerminal
	}
	j.DeliveryStatus = status
	j.DeliveryError = lastErr
	j.UpdatedAt = s.now()
	return nil
}

// Recipients

func (s *Store) ResolveRecipients(_ context.Context, target store.Target) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch target.Kind {
	case store.TargetIDs:
		return slices.Clone(target.IDs), nil
	case store.TargetAll, store.TargetGroup, store.TargetExclude:
	default:
		return nil, store.ErrInvalidTarget
	}
	if target.Kind != store.TargetAll && target.Group == "" {
		return nil, store.ErrInvalidTarget
	}

	out := make([]string, 0, len(s.recipients))
	for _, r := range s.recipients {
		if !r.active {
			continue
		}
		inGroup := slices.Contains(r.groups, target.Group)
		switch target.Kind {
		case store.TargetGroup:
			if !inGroup {
				continue
			}
		case store.TargetExclude:
			if inGroup {
				continue
			}
		}
		out = append(out, r.id)
	}
	return out, nil
}
