package delivery

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/herald/pkg/channel"
	"github.com/dmitrymomot/herald/pkg/content"
	"github.com/dmitrymomot/herald/pkg/logger"
	"github.com/dmitrymomot/herald/pkg/store"
)

// Store is the part of the record store the engine needs.
type Store interface {
	store.BroadcastStore
	store.DeliveryStore
	store.RecipientResolver
}

// RateLimiter is a shared, non-blocking call budget.
type RateLimiter interface {
	Allow(ctx context.Context, subject string, limit int, window time.Duration) (bool, int64)
}

// Report summarizes one engine run.
type Report struct {
	BroadcastID string                `json:"broadcast_id"`
	Status      store.BroadcastStatus `json:"status"`
	Total       int                   `json:"total"`
	Sent        int                   `json:"sent"`
	Blocked     int                   `json:"blocked"`
	Failed      int                   `json:"failed"`
	Skipped     int                   `json:"skipped"`
	Retries     int                   `json:"retries"`
}

// Engine delivers broadcasts in batches.
type Engine struct {
	store   Store
	sender  channel.Sender
	limiter RateLimiter
	logger  *slog.Logger
	now     func() time.Time
	backoff ExponentialBackoff

	rateSubject string
	rateWindow  time.Duration
	rateLimit   int

	batchSize   int
	concurrency int
	maxRetries  int
	sendTimeout time.Duration
	lease       time.Duration
}

// NewEngine creates an Engine. A nil limiter disables the shared rate cap.
func NewEngine(st Store, sender channel.Sender, limiter RateLimiter, opts ...Option) *Engine {
	e := &Engine{
		store:       st,
		sender:      sender,
		limiter:     limiter,
		logger:      logger.NewNope(),
		now:         time.Now,
		backoff:     ExponentialBackoff{Initial: time.Second, Max: 30 * time.Second},
		batchSize:   30,
		concurrency: 10,
		maxRetries:  3,
		sendTimeout: 10 * time.Second,
		lease:       5 * time.Minute,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// item is one recipient waiting for an attempt.
type item struct {
	nextAt      time.Time
	recipientID string
}

type outcome struct {
	item    item
	status  store.DeliveryStatus
	retried bool
}

// DeliverBroadcast loads a claimed broadcast and runs it.
// It returns ErrBroadcastInactive without sending when the broadcast is no
// longer sending, e.g. a duplicate task for a finished broadcast, and
// ErrLeaseLost when claimID is set and the broadcast was claimed again since.
func (e *Engine) DeliverBroadcast(ctx context.Context, broadcastID, claimID string) (Report, error) {
	b, err := e.store.GetBroadcast(ctx, broadcastID)
	if err != nil {
		return Report{BroadcastID: broadcastID}, err
	}
	if b.Status != store.BroadcastSending {
		return Report{BroadcastID: broadcastID, Status: b.Status}, ErrBroadcastInactive
	}
	if claimID != "" && b.ClaimID != claimID {
		return Report{BroadcastID: broadcastID, Status: b.Status}, ErrLeaseLost
	}
	return e.Deliver(ctx, b)
}

// Deliver resolves the broadcast target and runs the broadcast.
// A resolution failure marks the broadcast failed.
func (e *Engine) Deliver(ctx context.Context, b store.Broadcast) (Report, error) {
	recipients, err := e.store.ResolveRecipients(ctx, b.Target)
	if err != nil {
		return e.fail(ctx, b.ID, errors.Join(ErrResolveRecipients, err))
	}
	return e.Run(ctx, b, recipients)
}

// Run delivers b to recipients. The broadcast must be claimed (sending) and
// b.ClaimID must be the current claim.
// On return the broadcast is completed or cancelled, unless an error is
// returned, in which case it stays sending until its lease expires.
// ErrLeaseLost means another pass took the broadcast over; this pass
// stops at the next batch boundary without completing it.
func (e *Engine) Run(ctx context.Context, b store.Broadcast, recipients []string) (Report, error) {
	msg, err := e.render(b.Content)
	if err != nil {
		return e.fail(ctx, b.ID, err)
	}

	log := e.logger.With(slog.String("broadcast_id", b.ID))
	queue := dedupe(recipients)
	log.InfoContext(ctx, "broadcast delivery started",
		slog.Int("recipients", len(queue)),
		slog.Int("batch_size", e.batchSize),
	)

	report, cancelled, err := e.drive(ctx, b.ID, queue, msg, func(ctx context.Context) (bool, error) {
		return e.checkpoint(ctx, b.ID, b.ClaimID)
	})
	if err != nil {
		log.ErrorContext(ctx, "broadcast delivery interrupted", slog.Any("error", err))
		return report, err
	}

	if cancelled {
		report.Status = store.BroadcastCancelled
	} else {
		report.Status = store.BroadcastCompleted
		if err := e.store.CompleteBroadcast(ctx, b.ID, b.ClaimID); err != nil {
			if errors.Is(err, store.ErrLeaseLost) {
				log.WarnContext(ctx, "broadcast claimed by another pass before completion")
				return report, errors.Join(ErrLeaseLost, err)
			}
			if !errors.Is(err, store.ErrInvalidTransition) {
				return report, err
			}
			// Cancelled after the last batch check; keep the operator's decision.
			status, serr := e.store.GetBroadcastStatus(ctx, b.ID)
			if serr != nil {
				return report, serr
			}
			report.Status = status
		}
	}

	e.logStats(ctx, log, report)
	return report, nil
}

// RetryFailed reopens every failed delivery of a finished broadcast and
// attempts them again, together with rows an interrupted retry left pending.
// Pending rows of a cancelled broadcast are skipped instead. The broadcast
// status is left unchanged.
//
// One retry pass runs per broadcast at a time; while another holds the
// retry lease, ErrRetryInProgress is returned.
func (e *Engine) RetryFailed(ctx context.Context, broadcastID string) (Report, error) {
	b, err := e.store.GetBroadcast(ctx, broadcastID)
	if err != nil {
		return Report{BroadcastID: broadcastID}, err
	}
	if !b.Status.IsFinal() {
		return Report{BroadcastID: broadcastID, Status: b.Status}, ErrBroadcastBusy
	}

	msg, err := e.render(b.Content)
	if err != nil {
		return Report{BroadcastID: broadcastID, Status: b.Status}, err
	}

	b, err = e.store.ClaimRetry(ctx, broadcastID, e.now(), e.lease)
	switch {
	case errors.Is(err, store.ErrClaimed):
		return Report{BroadcastID: broadcastID}, errors.Join(ErrRetryInProgress, err)
	case errors.Is(err, store.ErrInvalidTransition):
		return Report{BroadcastID: broadcastID}, ErrBroadcastBusy
	case err != nil:
		return Report{BroadcastID: broadcastID}, err
	}
	defer e.releaseRetry(ctx, b)

	skipped := 0
	if b.Status == store.BroadcastCancelled {
		skipped, err = e.store.SkipPending(ctx, broadcastID, nil)
		if err != nil {
			return Report{BroadcastID: broadcastID, Status: b.Status}, err
		}
	}

	rows, err := e.store.ResetFailed(ctx, broadcastID)
	if err != nil {
		return Report{BroadcastID: broadcastID, Status: b.Status, Skipped: skipped}, err
	}
	ids := make([]string, len(rows))
	for i, d := range rows {
		ids[i] = d.RecipientID
	}

	e.logger.InfoContext(ctx, "retrying failed deliveries",
		slog.String("broadcast_id", broadcastID),
		slog.Int("count", len(ids)),
	)

	report, _, err := e.drive(ctx, broadcastID, dedupe(ids), msg, func(ctx context.Context) (bool, error) {
		return false, e.renew(ctx, broadcastID, b.ClaimID)
	})
	report.Status = b.Status
	report.Skipped += skipped
	return report, err
}

// releaseRetry ends the retry lease so the next retry need not wait for it
// to expire. It runs after cancellation too.
func (e *Engine) releaseRetry(ctx context.Context, b store.Broadcast) {
	err := e.store.ReleaseRetry(context.WithoutCancel(ctx), b.ID, b.ClaimID)
	if err != nil && !errors.Is(err, store.ErrLeaseLost) {
		e.logger.WarnContext(ctx, "release retry lease",
			slog.String("broadcast_id", b.ID),
			slog.Any("error", err),
		)
	}
}

// drive runs passes over queue until every recipient has a terminal row.
// check runs before each batch; it reports cancellation or stops the pass.
func (e *Engine) drive(ctx context.Context, broadcastID string, queue []item, msg channel.Message, check func(context.Context) (bool, error)) (Report, bool, error) {
	report := Report{BroadcastID: broadcastID, Total: len(queue)}

	for len(queue) > 0 {
		var next []item
		for start := 0; start < len(queue); start += e.batchSize {
			cancelled, err := check(ctx)
			if err != nil {
				return report, false, err
			}
			if cancelled {
				remaining := make([]string, 0, len(queue)-start+len(next))
				for _, it := range queue[start:] {
					remaining = append(remaining, it.recipientID)
				}
				for _, it := range next {
					remaining = append(remaining, it.recipientID)
				}
				n, err := e.store.SkipPending(ctx, broadcastID, remaining)
				if err != nil {
					return report, true, err
				}
				report.Skipped += n
				return report, true, nil
			}

			end := min(start+e.batchSize, len(queue))
			results, err := e.runBatch(ctx, broadcastID, queue[start:end], msg)
			if err != nil {
				return report, false, err
			}
			for _, r := range results {
				if r.retried {
					report.Retries++
				}
				switch r.status {
				case store.DeliverySent:
					report.Sent++
				case store.DeliveryBlocked:
					report.Blocked++
				case store.DeliveryFailed:
					report.Failed++
				case store.DeliverySkipped:
					report.Skipped++
				case store.DeliveryPending:
					next = append(next, r.item)
				}
			}
		}
		queue = next
	}
	return report, false, nil
}

// checkpoint reports whether the broadcast was cancelled and renews the lease otherwise.
// A lease held by another claim, or a broadcast no longer sending, stops the pass.
func (e *Engine) checkpoint(ctx context.Context, broadcastID, claimID string) (bool, error) {
	status, err := e.store.GetBroadcastStatus(ctx, broadcastID)
	if err != nil {
		return false, err
	}
	if status == store.BroadcastCancelled {
		return true, nil
	}

	err = e.renew(ctx, broadcastID, claimID)
	if errors.Is(err, store.ErrInvalidTransition) {
		// Cancelled between the status read and the renewal.
		status, serr := e.store.GetBroadcastStatus(ctx, broadcastID)
		if serr != nil {
			return false, serr
		}
		if status == store.BroadcastCancelled {
			return true, nil
		}
	}
	return false, err
}

// renew extends the lease of claimID. A lease taken over or ended stops the pass.
func (e *Engine) renew(ctx context.Context, broadcastID, claimID string) error {
	err := e.store.RenewLease(ctx, broadcastID, claimID, e.now().Add(e.lease))
	if errors.Is(err, store.ErrLeaseLost) || errors.Is(err, store.ErrInvalidTransition) {
		return errors.Join(ErrLeaseLost, err)
	}
	return err
}

func (e *Engine) runBatch(ctx context.Context, broadcastID string, batch []item, msg channel.Message) ([]outcome, error) {
	results := make([]outcome, len(batch))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, it := range batch {
		g.Go(func() error {
			r, err := e.attempt(gctx, broadcastID, it, msg)
			results[i] = r
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// attempt makes one delivery attempt for one recipient and records the outcome.
// Returned errors are store or context failures that abort the pass.
func (e *Engine) attempt(ctx context.Context, broadcastID string, it item, msg channel.Message) (outcome, error) {
	out := outcome{item: it}
	if err := ctx.Err(); err != nil {
		return out, err
	}

	d, err := e.store.UpsertDelivery(ctx, broadcastID, it.recipientID, e.maxRetries)
	if err != nil {
		return out, err
	}
	if d.Status.IsTerminal() {
		out.status = d.Status
		return out, nil
	}

	if err := sleepUntil(ctx, e.now, it.nextAt); err != nil {
		return out, err
	}

	sendErr := e.send(ctx, it.recipientID, msg)
	if sendErr != nil && ctx.Err() != nil {
		// Shutdown, not a recipient failure; the row stays pending for the next claimer.
		return out, ctx.Err()
	}

	switch {
	case sendErr == nil:
		return e.mark(ctx, out, d.ID, store.DeliverySent, "")
	case channel.IsPermanent(sendErr):
		return e.mark(ctx, out, d.ID, store.DeliveryBlocked, sendErr.Error())
	}

	d, err = e.store.RecordRetry(ctx, d.ID, sendErr.Error())
	if errors.Is(err, store.ErrTerminal) {
		out.status = d.Status
		return out, nil
	}
	if err != nil {
		return out, err
	}

	out.retried = true
	limit := d.MaxRetries
	if limit <= 0 {
		limit = e.maxRetries
	}
	if d.RetryCount < limit {
		out.status = store.DeliveryPending
		out.item.nextAt = e.now().Add(e.backoff.NextDelay(d.RetryCount))
		e.logger.DebugContext(ctx, "delivery will be retried",
			slog.String("broadcast_id", broadcastID),
			slog.String("recipient_id", it.recipientID),
			slog.Int("retry_count", d.RetryCount),
			slog.Any("error", sendErr),
		)
		return out, nil
	}

	e.logger.WarnContext(ctx, "delivery failed after retries",
		slog.String("broadcast_id", broadcastID),
		slog.String("recipient_id", it.recipientID),
		slog.Int("retry_count", d.RetryCount),
		slog.Any("error", sendErr),
	)
	return e.mark(ctx, out, d.ID, store.DeliveryFailed, sendErr.Error())
}

// mark writes a terminal status. A row finalized concurrently keeps its status.
func (e *Engine) mark(ctx context.Context, out outcome, deliveryID string, status store.DeliveryStatus, lastErr string) (outcome, error) {
	d, err := e.store.MarkDelivery(ctx, deliveryID, status, lastErr)
	switch {
	case errors.Is(err, store.ErrTerminal):
		out.status = d.Status
	case err != nil:
		return out, err
	default:
		out.status = status
	}
	return out, nil
}

// send consults the shared limiter and calls the channel with a timeout.
func (e *Engine) send(ctx context.Context, recipientID string, msg channel.Message) error {
	if e.limiter != nil && e.rateLimit > 0 {
		if ok, _ := e.limiter.Allow(ctx, e.rateSubject, e.rateLimit, e.rateWindow); !ok {
			return ErrRateLimited
		}
	}
	sctx, cancel := context.WithTimeout(ctx, e.sendTimeout)
	defer cancel()
	return e.sender.Send(sctx, recipientID, msg)
}

func (e *Engine) render(c store.Content) (channel.Message, error) {
	text, err := content.Render(c.Text, c.Format)
	if err != nil {
		return channel.Message{}, errors.Join(ErrRenderContent, err)
	}
	msg := channel.Message{Text: text, MediaURL: c.MediaURL}
	if msg.IsEmpty() {
		return msg, ErrEmptyContent
	}
	return msg, nil
}

// fail marks the broadcast failed and returns cause.
func (e *Engine) fail(ctx context.Context, broadcastID string, cause error) (Report, error) {
	e.logger.ErrorContext(ctx, "broadcast failed",
		slog.String("broadcast_id", broadcastID),
		slog.Any("error", cause),
	)
	if err := e.store.MarkBroadcast(ctx, broadcastID, store.BroadcastFailed); err != nil {
		return Report{BroadcastID: broadcastID}, errors.Join(cause, err)
	}
	return Report{BroadcastID: broadcastID, Status: store.BroadcastFailed}, cause
}

func (e *Engine) logStats(ctx context.Context, log *slog.Logger, r Report) {
	attrs := []any{
		slog.String("status", string(r.Status)),
		slog.Int("sent", r.Sent),
		slog.Int("blocked", r.Blocked),
		slog.Int("failed", r.Failed),
		slog.Int("skipped", r.Skipped),
		slog.Int("retries", r.Retries),
	}
	if stats, err := e.store.DeliveryStats(ctx, r.BroadcastID); err == nil {
		attrs = append(attrs, slog.Int("rows", stats.Total), slog.Int("pending", stats.Pending))
	}
	log.InfoContext(ctx, "broadcast delivery finished", attrs...)
}

func dedupe(ids []string) []item {
	seen := make(map[string]struct{}, len(ids))
	out := make([]item, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, item{recipientID: id})
	}
	return out
}

func sleepUntil(ctx context.Context, now func() time.Time, at time.Time) error {
	if at.IsZero() {
		return nil
	}
	d := at.Sub(now())
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
