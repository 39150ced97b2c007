package compute

import (
	"context"

	"github.com/dmitrymomot/herald/pkg/delivery"
	"github.com/dmitrymomot/herald/pkg/store"
)

// ResultNotifier triggers delivery of a succeeded job's result.
type ResultNotifier interface {
	NotifyResult(ctx context.Context, job store.Job) error
}

// NotifierFunc adapts a function to ResultNotifier.
type NotifierFunc func(ctx context.Context, job store.Job) error

func (f NotifierFunc) NotifyResult(ctx context.Context, job store.Job) error {
	return f(ctx, job)
}

// ResultDeliverer is implemented by Dispatcher.
type ResultDeliverer interface {
	DeliverResult(ctx context.Context, jobID string) (delivery.DirectResult, error)
}

// DirectNotifier delivers the result in the calling goroutine.
type DirectNotifier struct {
	Deliverer ResultDeliverer
}

func (n DirectNotifier) NotifyResult(ctx context.Context, job store.Job) error {
	_, err := n.Deliverer.DeliverResult(ctx, job.ID)
	return err
}
