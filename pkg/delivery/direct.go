package delivery

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/herald/pkg/channel"
	"github.com/dmitrymomot/herald/pkg/store"
)

// DirectResult is the outcome of a single-recipient delivery.
type DirectResult struct {
	Err      error
	Status   store.DeliveryStatus
	Attempts int
}

// DeliverDirect sends msg to one recipient outside of any broadcast. It uses
// the engine limiter, timeout and backoff, retries transient failures up to
// max retries in-process, and writes no delivery row.
func (e *Engine) DeliverDirect(ctx context.Context, recipientID string, msg channel.Message) DirectResult {
	var res DirectResult
	for {
		res.Attempts++
		err := e.send(ctx, recipientID, msg)
		switch {
		case err == nil:
			res.Status, res.Err = store.DeliverySent, nil
			return res
		case channel.IsPermanent(err):
			res.Status, res.Err = store.DeliveryBlocked, err
			return res
		}

		res.Err = err
		if ctx.Err() != nil || res.Attempts >= e.maxRetries {
			res.Status = store.DeliveryFailed
			e.logger.WarnContext(ctx, "direct delivery failed",
				slog.String("recipient_id", recipientID),
				slog.Int("attempts", res.Attempts),
				slog.Any("error", err),
			)
			return res
		}

		if err := sleepUntil(ctx, e.now, e.now().Add(e.backoff.NextDelay(res.Attempts))); err != nil {
			res.Status, res.Err = store.DeliveryFailed, err
			return res
		}
	}
}
