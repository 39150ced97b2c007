package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/dmitrymomot/herald/pkg/delivery"
	"github.com/dmitrymomot/herald/pkg/logger"
	"github.com/dmitrymomot/herald/pkg/store"
)

// Deliverer runs one delivery pass for a claimed broadcast.
type Deliverer interface {
	Deliver(ctx context.Context, b store.Broadcast) (delivery.Report, error)
}

// PoolDispatcher runs delivery passes on a bounded set of goroutines.
type PoolDispatcher struct {
	deliverer Deliverer
	logger    *slog.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	size      int
	active    int
	closed    bool
}

// PoolOption configures a PoolDispatcher.
type PoolOption func(*PoolDispatcher)

// WithPoolLogger sets the logger used to report pass outcomes.
func WithPoolLogger(l *slog.Logger) PoolOption {
	return func(p *PoolDispatcher) {
		p.logger = l
	}
}

// NewPoolDispatcher creates a pool running at most size passes at once.
func NewPoolDispatcher(d Deliverer, size int, opts ...PoolOption) *PoolDispatcher {
	if size <= 0 {
		size = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &PoolDispatcher{
		deliverer: d,
		logger:    logger.NewNope(),
		ctx:       ctx,
		cancel:    cancel,
		size:      size,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *PoolDispatcher) Available() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0
	}
	return p.size - p.active
}

// Dispatch starts a pass in the background. Passes run on the pool context,
// not ctx, so they outlive the tick that claimed them.
func (p *PoolDispatcher) Dispatch(_ context.Context, b store.Broadcast) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrDispatcherClosed
	}
	if p.active >= p.size {
		return ErrPoolFull
	}
	p.active++
	p.wg.Add(1)

	go func() {
		defer p.done()
		report, err := p.deliverer.Deliver(p.ctx, b)
		if errors.Is(err, delivery.ErrLeaseLost) {
			p.logger.WarnContext(p.ctx, "broadcast claimed by another pass",
				slog.String("broadcast_id", b.ID),
				slog.Int("sent", report.Sent),
			)
			return
		}
		if err != nil {
			p.logger.ErrorContext(p.ctx, "broadcast pass failed",
				slog.String("broadcast_id", b.ID),
				slog.String("status", string(report.Status)),
				slog.Any("error", err),
			)
			return
		}
		p.logger.DebugContext(p.ctx, "broadcast pass finished",
			slog.String("broadcast_id", b.ID),
			slog.String("status", string(report.Status)),
		)
	}()
	return nil
}

func (p *PoolDispatcher) done() {
	p.mu.Lock()
	p.active--
	p.mu.Unlock()
	p.wg.Done()
}

// Shutdown stops accepting work and waits for running passes. When ctx
// expires first, running passes are cancelled; their pending rows are picked
// up again after the lease expires.
func (p *PoolDispatcher) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		<-finished
		return ErrShutdownTimeout
	}
}
