package tasks_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/herald/handlers"
	"github.com/dmitrymomot/herald/pkg/channel"
	"github.com/dmitrymomot/herald/pkg/compute"
	"github.com/dmitrymomot/herald/pkg/delivery"
	"github.com/dmitrymomot/herald/pkg/job"
	"github.com/dmitrymomot/herald/pkg/scheduler"
	"github.com/dmitrymomot/herald/pkg/store"
	"github.com/dmitrymomot/herald/pkg/store/memory"
	"github.com/dmitrymomot/herald/tasks"
)

var (
	_ scheduler.Dispatcher    = (*tasks.QueueDispatcher)(nil)
	_ compute.ResultNotifier  = (*tasks.ResultNotifier)(nil)
	_ handlers.RetryScheduler = (*tasks.RetryQueue)(nil)
	_ tasks.BroadcastEngine   = (*delivery.Engine)(nil)
	_ tasks.Ticker            = (*scheduler.Scheduler)(nil)
	_ tasks.Sweeper           = (*compute.Dispatcher)(nil)
	_ tasks.Enqueuer          = (*job.Manager)(nil)
	_ tasks.Enqueuer          = (*job.Enqueuer)(nil)
)

type enqueued struct {
	name    string
	payload any
	opts    int
}

type fakeEnqueuer struct {
	err  error
	jobs []enqueued
	mu   sync.Mutex
}

func (f *fakeEnqueuer) Enqueue(_ context.Context, name string, payload any, opts ...job.EnqueueOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, enqueued{name: name, payload: payload, opts: len(opts)})
	return nil
}

type fakeEngine struct {
	report delivery.Report
	err    error
}

func (f *fakeEngine) DeliverBroadcast(context.Context, string, string) (delivery.Report, error) {
	return f.report, f.err
}

func (f *fakeEngine) RetryFailed(context.Context, string) (delivery.Report, error) {
	return f.report, f.err
}

func TestDeliverBroadcast_Handle(t *testing.T) {
	t.Parallel()

	boom := errors.New("store unavailable")
	tests := []struct {
		name    string
		err     error
		wantErr error
	}{
		{name: "delivered"},
		{name: "inactive is dropped", err: delivery.ErrBroadcastInactive},
		{name: "missing is dropped", err: store.ErrNotFound},
		{name: "lost claim is dropped", err: errors.Join(delivery.ErrLeaseLost, store.ErrLeaseLost)},
		{name: "other errors retry", err: boom, wantErr: boom},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			task := tasks.NewDeliverBroadcast(&fakeEngine{err: tt.err})
			assert.Equal(t, tasks.TaskDeliverBroadcast, task.Name())

			err := task.Handle(context.Background(), tasks.BroadcastPayload{BroadcastID: "b1"})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestRetryFailed_Handle(t *testing.T) {
	t.Parallel()

	task := tasks.NewRetryFailed(&fakeEngine{err: delivery.ErrBroadcastBusy})
	assert.NoError(t, task.Handle(context.Background(), tasks.BroadcastPayload{BroadcastID: "b1"}))

	boom := errors.New("boom")
	task = tasks.NewRetryFailed(&fakeEngine{err: boom})
	assert.ErrorIs(t, task.Handle(context.Background(), tasks.BroadcastPayload{BroadcastID: "b1"}), boom)

	task = tasks.NewRetryFailed(&fakeEngine{err: errors.Join(delivery.ErrRetryInProgress, store.ErrClaimed)})
	assert.ErrorIs(t, task.Handle(context.Background(), tasks.BroadcastPayload{BroadcastID: "b1"}), delivery.ErrRetryInProgress)
}

func TestDeliverBroadcast_WithEngine(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	st := memory.New()
	for _, id := range []string{"1", "2", "3"} {
		st.AddRecipient(id)
	}
	var (
		mu   sync.Mutex
		sent []string
	)
	sender := channel.SenderFunc(func(_ context.Context, id string, _ channel.Message) error {
		mu.Lock()
		defer mu.Unlock()
		sent = append(sent, id)
		return nil
	})
	engine := delivery.NewEngine(st, sender, nil, delivery.WithBatchSize(2))

	b, err := st.CreateBroadcast(ctx, store.Broadcast{
		Content: store.Content{Text: "hello"},
		Target:  store.Target{Kind: store.TargetAll},
	})
	require.NoError(t, err)
	claimed, err := st.ClaimDueBroadcasts(ctx, time.Now().Add(time.Second), 1, time.Minute)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	task := tasks.NewDeliverBroadcast(engine)

	// A task left over from an earlier claim sends nothing.
	require.NoError(t, task.Handle(ctx, tasks.BroadcastPayload{BroadcastID: b.ID, ClaimID: "earlier-claim"}))
	assert.Empty(t, sent)

	require.NoError(t, task.Handle(ctx, tasks.BroadcastPayload{BroadcastID: b.ID, ClaimID: claimed[0].ClaimID}))
	assert.ElementsMatch(t, []string{"1", "2", "3"}, sent)

	// A duplicate job after completion sends nothing.
	require.NoError(t, task.Handle(ctx, tasks.BroadcastPayload{BroadcastID: b.ID}))
	assert.Len(t, sent, 3)

	status, err := st.GetBroadcastStatus(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, store.BroadcastCompleted, status)
}

func TestQueueDispatcher(t *testing.T) {
	t.Parallel()

	q := &fakeEnqueuer{}
	d := tasks.NewQueueDispatcher(q, 0, 0)
	assert.Equal(t, 1, d.Available())

	require.NoError(t, d.Dispatch(context.Background(), store.Broadcast{ID: "b1", ClaimID: "c1"}))
	require.Len(t, q.jobs, 1)
	assert.Equal(t, tasks.TaskDeliverBroadcast, q.jobs[0].name)
	assert.Equal(t, tasks.BroadcastPayload{BroadcastID: "b1", ClaimID: "c1"}, q.jobs[0].payload)
	assert.Equal(t, 3, q.jobs[0].opts)
}

func TestQueueDispatcher_WithScheduler(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	st := memory.New()
	for range 3 {
		_, err := st.CreateBroadcast(ctx, store.Broadcast{Content: store.Content{Text: "hi"}, Target: store.Target{Kind: store.TargetAll}})
		require.NoError(t, err)
	}

	q := &fakeEnqueuer{}
	sched := scheduler.New(st, tasks.NewQueueDispatcher(q, 2, time.Minute),
		scheduler.WithClock(func() time.Time { return time.Now().Add(time.Second) }))
	tick := tasks.NewDispatchDue(sched, "")
	assert.Equal(t, "@every 1m", tick.Schedule())

	require.NoError(t, tick.Handle(ctx))
	assert.Len(t, q.jobs, 2)
	require.NoError(t, tick.Handle(ctx))
	assert.Len(t, q.jobs, 3)
}

func TestRetryQueue(t *testing.T) {
	t.Parallel()

	q := &fakeEnqueuer{}
	require.NoError(t, tasks.NewRetryQueue(q).ScheduleRetry(context.Background(), "b1"))
	require.Len(t, q.jobs, 1)
	assert.Equal(t, tasks.TaskRetryFailed, q.jobs[0].name)

	q.err = errors.New("queue down")
	assert.Error(t, tasks.NewRetryQueue(q).ScheduleRetry(context.Background(), "b2"))
}

func TestResultNotifier_WithDispatcher(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	st := memory.New()
	var sends int
	sender := channel.SenderFunc(func(context.Context, string, channel.Message) error {
		sends++
		return nil
	})
	engine := delivery.NewEngine(st, sender, nil)
	provider := compute.ProviderFunc(func(_ context.Context, req compute.SubmitRequest) (string, error) {
		return "h-" + req.JobID, nil
	})

	q := &fakeEnqueuer{}
	d, err := compute.New(st, provider, engine, compute.Config{Secret: "s"},
		compute.WithNotifier(tasks.NewResultNotifier(q)))
	require.NoError(t, err)

	j, err := d.Submit(ctx, "42", nil)
	require.NoError(t, err)
	body := []byte(`{"status":"succeeded","result_url":"https://cdn.example.com/a.png"}`)
	res, err := d.HandleCallback(ctx, compute.CallbackRequest{
		JobID: j.ID, Token: j.CallbackToken, Signature: d.Signer().Sign(body), Body: body,
	})
	require.NoError(t, err)
	assert.Equal(t, compute.CallbackAccepted, res)

	// The callback only queued delivery.
	assert.Zero(t, sends)
	require.Len(t, q.jobs, 1)
	assert.Equal(t, tasks.TaskDeliverJobResult, q.jobs[0].name)

	task := tasks.NewDeliverJobResult(d)
	require.NoError(t, task.Handle(ctx, q.jobs[0].payload.(tasks.JobResultPayload)))
	assert.Equal(t, 1, sends)

	// Replays are no-ops.
	require.NoError(t, task.Handle(ctx, tasks.JobResultPayload{JobID: j.ID}))
	assert.Equal(t, 1, sends)

	got, err := st.GetJob(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, store.DeliverySent, got.DeliveryStatus)
}

type fakeSweeper struct{ n int }

func (f *fakeSweeper) SweepTimeouts(context.Context, time.Time) (int, error) { return f.n, nil }

func TestSweepJobTimeouts(t *testing.T) {
	t.Parallel()

	task := tasks.NewSweepJobTimeouts(&fakeSweeper{n: 2}, "*/5 * * * *")
	assert.Equal(t, tasks.TaskSweepJobs, task.Name())
	assert.Equal(t, "*/5 * * * *", task.Schedule())
	assert.NoError(t, task.Handle(context.Background()))
}

func TestTasksRegister(t *testing.T) {
	t.Parallel()

	// Registration only checks that the task shapes match what job expects.
	opts := []job.Option{
		job.WithTask(tasks.NewDeliverBroadcast(&fakeEngine{})),
		job.WithTask(tasks.NewRetryFailed(&fakeEngine{})),
		job.WithScheduledTask(tasks.NewSweepJobTimeouts(&fakeSweeper{}, "")),
	}
	assert.Len(t, opts, 3)
}
