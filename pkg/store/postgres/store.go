// Package postgres implements store.Store on PostgreSQL via pgx.
package postgres

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/herald/pkg/db"
	"github.com/dmitrymomot/herald/pkg/store"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrations returns the embedded schema migrations rooted at the migrations directory.
func Migrations() embed.FS {
	return migrations
}

// Migrate applies the embedded schema migrations.
func Migrate(ctx context.Context, pool *pgxpool.Pool, table string, log *slog.Logger) error {
	return db.Migrate(ctx, pool, migrations, "migrations", table, log)
}

// Store is a PostgreSQL backed store.Store.
type Store struct {
	pool *pgxpool.Pool
}

var _ store.Store = (*Store)(nil)

// New wraps a pgx pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBroadcast(row rowScanner) (store.Broadcast, error) {
	var (
		b       store.Broadcast
		content []byte
		target  []byte
	)
	if err := row.Scan(&b.ID, &b.Status, &content, &target, &b.ScheduledAt, &b.LeaseExpiresAt, &b.ClaimID, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return store.Broadcast{}, err
	}
	if err := json.Unmarshal(content, &b.Content); err != nil {
		return store.Broadcast{}, err
	}
	if err := json.Unmarshal(target, &b.Target); err != nil {
		return store.Broadcast{}, err
	}
	return b, nil
}

func scanDelivery(row rowScanner) (store.Delivery, error) {
	var d store.Delivery
	err := row.Scan(&d.ID, &d.BroadcastID, &d.RecipientID, &d.Status, &d.LastError,
		&d.RetryCount, &d.MaxRetries, &d.SentAt, &d.UpdatedAt)
	return d, err
}

func scanJob(row rowScanner) (store.Job, error) {
	var j store.Job
	err := row.Scan(&j.ID, &j.RequesterID, &j.Status, &j.Params, &j.ProviderHandle, &j.CallbackToken,
		&j.ResultRef, &j.Error, &j.DeliveryStatus, &j.DeliveryError,
		&j.DispatchedAt, &j.FinishedAt, &j.CreatedAt, &j.UpdatedAt)
	return j, err
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

// Broadcasts

func (s *Store) CreateBroadcast(ctx context.Context, b store.Broadcast) (store.Broadcast, error) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.Status == "" {
		b.Status = store.BroadcastScheduled
	}
	if b.ScheduledAt.IsZero() {
		b.ScheduledAt = time.Now()
	}
	content, err := json.Marshal(b.Content)
	if err != nil {
		return store.Broadcast{}, err
	}
	target, err := json.Marshal(b.Target)
	if err != nil {
		return store.Broadcast{}, err
	}
	return scanBroadcast(s.pool.QueryRow(ctx, qCreateBroadcast, b.ID, b.Status, content, target, b.ScheduledAt))
}

func (s *Store) GetBroadcast(ctx context.Context, id string) (store.Broadcast, error) {
	b, err := scanBroadcast(s.pool.QueryRow(ctx, qGetBroadcast, id))
	return b, notFound(err)
}

func (s *Store) GetBroadcastStatus(ctx context.Context, id string) (store.BroadcastStatus, error) {
	var status store.BroadcastStatus
	if err := s.pool.QueryRow(ctx, qGetBroadcastStatus, id).Scan(&status); err != nil {
		return "", notFound(err)
	}
	return status, nil
}

func (s *Store) ClaimDueBroadcasts(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]store.Broadcast, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, qClaimDueBroadcasts, now, limit, now.Add(lease))
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.Broadcast, error) {
		return scanBroadcast(row)
	})
}

func (s *Store) RenewLease(ctx context.Context, id, claimID string, until time.Time) error {
	return s.execClaimed(ctx, qRenewLease, id, claimID, until)
}

func (s *Store) CompleteBroadcast(ctx context.Context, id, claimID string) error {
	return s.execClaimed(ctx, qCompleteBroadcast, id, claimID)
}

func (s *Store) ClaimRetry(ctx context.Context, id string, now time.Time, lease time.Duration) (store.Broadcast, error) {
	b, err := scanBroadcast(s.pool.QueryRow(ctx, qClaimRetry, id, now, now.Add(lease)))
	if !errors.Is(err, pgx.ErrNoRows) {
		return b, err
	}
	status, err := s.GetBroadcastStatus(ctx, id)
	switch {
	case err != nil:
		return store.Broadcast{}, err
	case !status.IsFinal():
		return store.Broadcast{}, store.ErrInvalidTransition
	}
	return store.Broadcast{}, store.ErrClaimed
}

func (s *Store) ReleaseRetry(ctx context.Context, id, claimID string) error {
	return s.execClaimed(ctx, qReleaseRetry, id, claimID)
}

// execClaimed runs an update guarded by id and claim_id and explains a miss.
func (s *Store) execClaimed(ctx context.Context, query, id, claimID string, args ...any) error {
	tag, err := s.pool.Exec(ctx, query, append([]any{id, claimID}, args...)...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	var current string
	if err := s.pool.QueryRow(ctx, qGetBroadcastClaim, id).Scan(&current); err != nil {
		return notFound(err)
	}
	if current != claimID {
		return store.ErrLeaseLost
	}
	return store.ErrInvalidTransition
}

func (s *Store) MarkBroadcast(ctx context.Context, id string, status store.BroadcastStatus) error {
	sources := store.TransitionSources(status)
	if len(sources) == 0 {
		return store.ErrInvalidTransition
	}
	from := make([]string, len(sources))
	for i, src := range sources {
		from[i] = string(src)
	}
	tag, err := s.pool.Exec(ctx, qMarkBroadcast, id, status, from, status.IsFinal())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return s.transitionError(ctx, id)
	}
	return nil
}

func (s *Store) ScheduleBroadcast(ctx context.Context, id string, at time.Time) error {
	tag, err := s.pool.Exec(ctx, qScheduleBroadcast, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return s.transitionError(ctx, id)
	}
	return nil
}

func (s *Store) CancelBroadcast(ctx context.Context, id string) error {
	return s.MarkBroadcast(ctx, id, store.BroadcastCancelled)
}

// transitionError tells a missing broadcast apart from a rejected transition.
func (s *Store) transitionError(ctx context.Context, id string) error {
	if _, err := s.GetBroadcastStatus(ctx, id); err != nil {
		return err
	}
	return store.ErrInvalidTransition
}

// Deliveries

func (s *Store) UpsertDelivery(ctx context.Context, broadcastID, recipientID string, maxRetries int) (store.Delivery, error) {
	return scanDelivery(s.pool.QueryRow(ctx, qUpsertDelivery, uuid.NewString(), broadcastID, recipientID, maxRetries))
}

func (s *Store) MarkDelivery(ctx context.Context, id string, status store.DeliveryStatus, lastErr string) (store.Delivery, error) {
	d, err := scanDelivery(s.pool.QueryRow(ctx, qMarkDelivery, id, status, lastErr))
	if errors.Is(err, pgx.ErrNoRows) {
		return s.terminalError(ctx, id)
	}
	return d, err
}

func (s *Store) RecordRetry(ctx context.Context, id string, lastErr string) (store.Delivery, error) {
	d, err := scanDelivery(s.pool.QueryRow(ctx, qRecordRetry, id, lastErr))
	if errors.Is(err, pgx.ErrNoRows) {
		return s.terminalError(ctx, id)
	}
	return d, err
}

// terminalError loads the current row after a guarded update matched nothing.
func (s *Store) terminalError(ctx context.Context, id string) (store.Delivery, error) {
	d, err := scanDelivery(s.pool.QueryRow(ctx, qGetDelivery, id))
	if err != nil {
		return store.Delivery{}, notFound(err)
	}
	return d, store.ErrTerminal
}

func (s *Store) SkipPending(ctx context.Context, broadcastID string, recipientIDs []string) (int, error) {
	var n int64
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, qSkipPendingRows, broadcastID)
		if err != nil {
			return err
		}
		n = tag.RowsAffected()
		if len(recipientIDs) == 0 {
			return nil
		}
		tag, err = tx.Exec(ctx, qSkipMissingRows, broadcastID, recipientIDs)
		if err != nil {
			return err
		}
		n += tag.RowsAffected()
		return nil
	})
	return int(n), err
}

func (s *Store) ResetFailed(ctx context.Context, broadcastID string) ([]store.Delivery, error) {
	return s.queryDeliveries(ctx, qResetFailed, broadcastID)
}

func (s *Store) ListDeliveries(ctx context.Context, broadcastID string, statuses ...store.DeliveryStatus) ([]store.Delivery, error) {
	filter := make([]string, len(statuses))
	for i, st := range statuses {
		filter[i] = string(st)
	}
	return s.queryDeliveries(ctx, qListDeliveries, broadcastID, filter)
}

func (s *Store) queryDeliveries(ctx context.Context, query string, args ...any) ([]store.Delivery, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.Delivery, error) {
		return scanDelivery(row)
	})
}

func (s *Store) DeliveryStats(ctx context.Context, broadcastID string) (store.DeliveryStats, error) {
	var stats store.DeliveryStats
	rows, err := s.pool.Query(ctx, qDeliveryStats, broadcastID)
	if err != nil {
		return stats, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			status store.DeliveryStatus
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return stats, err
		}
		stats.Add(status, n)
	}
	return stats, rows.Err()
}

// Jobs

func (s *Store) CreateJob(ctx context.Context, j store.Job) (store.Job, error) {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	var params []byte
	if len(j.Params) > 0 {
		params = j.Params
	}
	return scanJob(s.pool.QueryRow(ctx, qCreateJob, j.ID, j.RequesterID, params, j.CallbackToken))
}

func (s *Store) GetJob(ctx context.Context, id string) (store.Job, error) {
	j, err := scanJob(s.pool.QueryRow(ctx, qGetJob, id))
	return j, notFound(err)
}

func (s *Store) MarkJobDispatched(ctx context.Context, id, handle string) (store.Job, error) {
	j, err := scanJob(s.pool.QueryRow(ctx, qMarkJobDispatched, id, handle))
	if errors.Is(err, pgx.ErrNoRows) {
		current, gerr := s.GetJob(ctx, id)
		if gerr != nil {
			return store.Job{}, gerr
		}
		return current, store.ErrTerminal
	}
	return j, err
}

func (s *Store) FinalizeJob(ctx context.Context, id string, res store.JobResult) (store.Job, bool, error) {
	j, err := scanJob(s.pool.QueryRow(ctx, qFinalizeJob, id, res.Status, res.ResultRef, res.Error))
	if errors.Is(err, pgx.ErrNoRows) {
		current, gerr := s.GetJob(ctx, id)
		return current, false, gerr
	}
	if err != nil {
		return store.Job{}, false, err
	}
	return j, true, nil
}

func (s *Store) FailStaleJobs(ctx context.Context, deadline time.Time, reason string) ([]store.Job, error) {
	rows, err := s.pool.Query(ctx, qFailStaleJobs, deadline, reason)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.Job, error) {
		return scanJob(row)
	})
}

func (s *Store) SetJobDelivery(ctx context.Context, id string, status store.DeliveryStatus, lastErr string) error {
	tag, err := s.pool.Exec(ctx, qSetJobDelivery, id, status, lastErr)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	var exists bool
	if err := s.pool.QueryRow(ctx, qJobExists, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return store.ErrNotFound
	}
	return store.ErrTerminal
}

// Recipients

func (s *Store) ResolveRecipients(ctx context.Context, target store.Target) ([]string, error) {
	var (
		query string
		args  []any
	)
	switch target.Kind {
	case store.TargetIDs:
		return append([]string(nil), target.IDs...), nil
	case store.TargetAll:
		query = qResolveAll
	case store.TargetGroup, store.TargetExclude:
		if target.Group == "" {
			return nil, store.ErrInvalidTarget
		}
		query = qResolveGroup
		if target.Kind == store.TargetExclude {
			query = qResolveExclude
		}
		args = append(args, target.Group)
	default:
		return nil, store.ErrInvalidTarget
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// UpsertRecipient registers or reactivates a recipient with the given groups.
func (s *Store) UpsertRecipient(ctx context.Context, id string, groups ...string) error {
	if groups == nil {
		groups = []string{}
	}
	_, err := s.pool.Exec(ctx, qUpsertRecipient, id, groups)
	return err
}
