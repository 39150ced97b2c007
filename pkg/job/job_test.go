package job

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type broadcastPayload struct {
	BroadcastID string `json:"broadcast_id"`
}

type deliverTask struct {
	got []string
	err error
}

func (t *deliverTask) Name() string { return "deliver_broadcast" }

func (t *deliverTask) Handle(_ context.Context, p broadcastPayload) error {
	t.got = append(t.got, p.BroadcastID)
	return t.err
}

type sweepTask struct {
	schedule string
	runs     int
}

func (t *sweepTask) Name() string                 { return "sweep_job_timeouts" }
func (t *sweepTask) Schedule() string             { return t.schedule }
func (t *sweepTask) Handle(context.Context) error { t.runs++; return nil }

func newTestConfig(opts ...Option) *config {
	cfg := &config{tasks: map[string]runFunc{}, queues: map[string]int{}}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

func TestWithTask(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	task := &deliverTask{}
	cfg := newTestConfig(WithTask(task))
	run, ok := cfg.tasks["deliver_broadcast"]
	require.True(t, ok)

	require.NoError(t, run(ctx, json.RawMessage(`{"broadcast_id":"b1"}`)))
	require.NoError(t, run(ctx, nil), "empty payload decodes to zero value")
	assert.Equal(t, []string{"b1", ""}, task.got)

	err := run(ctx, json.RawMessage(`{"broadcast_id":`))
	assert.ErrorIs(t, err, ErrInvalidPayload)

	task.err = errors.New("store down")
	assert.ErrorIs(t, run(ctx, json.RawMessage(`{}`)), task.err)
}

func TestOptions(t *testing.T) {
	t.Parallel()

	sweep := &sweepTask{schedule: "@every 1m"}
	cfg := newTestConfig(
		WithScheduledTask(sweep),
		WithQueue("broadcasts", 4),
		WithQueue("results", 0),
		WithQueue("", 3),
		WithMaxWorkers(8),
		WithMaxWorkers(-1),
		WithLogger(nil),
	)

	require.Len(t, cfg.periodic, 1)
	assert.Equal(t, "sweep_job_timeouts", cfg.periodic[0].name)
	require.NoError(t, cfg.periodic[0].run(context.Background()))
	assert.Equal(t, 1, sweep.runs)
	assert.Equal(t, map[string]int{"broadcasts": 4}, cfg.queues)
	assert.Equal(t, 8, cfg.maxWorkers)
	assert.Nil(t, cfg.logger)
}

func TestNewInsert(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		payload    any
		opts       []EnqueueOption
		wantKey    string
		wantQueue  string
		wantUnique bool
		wantErr    error
	}{
		{name: "no payload"},
		{name: "queue and attempts", payload: broadcastPayload{BroadcastID: "b1"}, opts: []EnqueueOption{InQueue("broadcasts"), MaxAttempts(3)}, wantQueue: "broadcasts"},
		{name: "unique", opts: []EnqueueOption{UniqueFor(time.Minute), UniqueKey("b1")}, wantKey: "b1", wantUnique: true},
		{name: "key without period", opts: []EnqueueOption{UniqueKey("b1")}},
		{name: "bad payload", payload: make(chan int), wantErr: ErrInvalidPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			args, ins, err := newInsert("deliver_broadcast", tt.payload, tt.opts)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "deliver_broadcast", args.Task)
			assert.Equal(t, tt.wantKey, args.UniqueKey)
			assert.Equal(t, tt.wantQueue, ins.Queue)
			assert.Equal(t, tt.wantUnique, ins.UniqueOpts.ByArgs)
			if tt.payload == nil {
				assert.Empty(t, args.Payload)
			}
		})
	}

	_, ins, err := newInsert("x", nil, []EnqueueOption{MaxAttempts(3), MaxAttempts(0)})
	require.NoError(t, err)
	assert.Equal(t, 3, ins.MaxAttempts)
	assert.Equal(t, "herald:task", taskArgs{}.Kind())
}

func TestParseSchedule(t *testing.T) {
	t.Parallel()

	from := time.Date(2026, 10, 19, 12, 0, 30, 0, time.UTC)
	tests := []struct {
		expr string
		want time.Time
	}{
		{"@every 1m", from.Add(time.Minute)},
		{"*/5 * * * *", time.Date(2026, 10, 19, 12, 5, 0, 0, time.UTC)},
		{"@hourly", time.Date(2026, 10, 19, 13, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		s, err := parseSchedule(tt.expr)
		require.NoError(t, err, tt.expr)
		assert.Equal(t, tt.want, s.Next(from), tt.expr)
	}

	for _, bad := range []string{"", "every minute", "* * * * * *", "@every"} {
		_, err := parseSchedule(bad)
		assert.ErrorIs(t, err, ErrInvalidCron, bad)
	}
}

func TestNewManager_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewManager(nil)
	assert.ErrorIs(t, err, ErrPoolRequired)
	_, err = NewEnqueuer(nil)
	assert.ErrorIs(t, err, ErrPoolRequired)
	assert.ErrorIs(t, Migrate(context.Background(), nil, nil), ErrPoolRequired)
}

func TestHealthcheck(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	err := Healthcheck(nil)(ctx)
	assert.ErrorIs(t, err, ErrHealthcheckFailed)
	assert.ErrorIs(t, err, ErrNotConfigured)

	m := &Manager{tasks: map[string]runFunc{}}
	err = Healthcheck(m)(ctx)
	assert.ErrorIs(t, err, ErrNotStarted)
	assert.False(t, m.Running())
}
