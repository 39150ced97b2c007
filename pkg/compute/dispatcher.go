package compute

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/herald/pkg/channel"
	"github.com/dmitrymomot/herald/pkg/delivery"
	"github.com/dmitrymomot/herald/pkg/logger"
	"github.com/dmitrymomot/herald/pkg/storage"
	"github.com/dmitrymomot/herald/pkg/store"
)

// Config holds dispatcher settings, populated from environment variables.
type Config struct {
	Secret string `env:"COMPUTE_CALLBACK_SECRET"`
	// CallbackURL is the public address of the job callback endpoint.
	CallbackURL   string        `env:"COMPUTE_CALLBACK_URL"`
	SubmitTimeout time.Duration `env:"COMPUTE_SUBMIT_TIMEOUT" envDefault:"15s"`
	JobTimeout    time.Duration `env:"COMPUTE_JOB_TIMEOUT" envDefault:"10m"`
	ResultCaption string        `env:"COMPUTE_RESULT_CAPTION" envDefault:"Your result is ready"`
	ResultPrefix  string        `env:"COMPUTE_RESULT_PREFIX" envDefault:"results"`
}

// DirectSender delivers one message to one recipient with bounded retries.
type DirectSender interface {
	DeliverDirect(ctx context.Context, recipientID string, msg channel.Message) delivery.DirectResult
}

// Dispatcher submits jobs and reconciles them from callbacks.
type Dispatcher struct {
	store    store.JobStore
	provider Provider
	sender   DirectSender
	signer   *Signer
	media    storage.Storage
	notifier ResultNotifier
	logger   *slog.Logger
	now      func() time.Time
	cfg      Config
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithStorage sets where inline results are uploaded.
func WithStorage(s storage.Storage) Option {
	return func(d *Dispatcher) {
		d.media = s
	}
}

// WithNotifier replaces the default in-process result delivery.
func WithNotifier(n ResultNotifier) Option {
	return func(d *Dispatcher) {
		d.notifier = n
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = l
	}
}

// WithClock sets the clock SweepTimeouts uses when called with a zero time.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		d.now = now
	}
}

// New creates a Dispatcher. cfg.Secret is required.
func New(st store.JobStore, provider Provider, sender DirectSender, cfg Config, opts ...Option) (*Dispatcher, error) {
	signer, err := NewSigner(cfg.Secret)
	if err != nil {
		return nil, err
	}
	if cfg.SubmitTimeout <= 0 {
		cfg.SubmitTimeout = 15 * time.Second
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 10 * time.Minute
	}
	if cfg.ResultPrefix == "" {
		cfg.ResultPrefix = "results"
	}

	d := &Dispatcher{
		store:    st,
		provider: provider,
		sender:   sender,
		signer:   signer,
		logger:   logger.NewNope(),
		now:      time.Now,
		cfg:      cfg,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.notifier == nil {
		d.notifier = DirectNotifier{Deliverer: d}
	}
	return d, nil
}

// Signer returns the signer used to verify callbacks.
func (d *Dispatcher) Signer() *Signer {
	return d.signer
}

// Submit creates a queued job and hands it to the provider. A provider error
// fails the job immediately and returns ErrSubmitFailed; resubmitting is the
// caller's decision.
func (d *Dispatcher) Submit(ctx context.Context, requesterID string, params json.RawMessage) (store.Job, error) {
	requesterID = strings.TrimSpace(requesterID)
	if requesterID == "" {
		return store.Job{}, errors.Join(ErrInvalidRequest, errors.New("requester id is required"))
	}
	if len(params) > 0 && !json.Valid(params) {
		return store.Job{}, errors.Join(ErrInvalidRequest, errors.New("params must be valid JSON"))
	}

	job, err := d.store.CreateJob(ctx, store.Job{
		RequesterID:   requesterID,
		Params:        params,
		CallbackToken: uuid.NewString(),
	})
	if err != nil {
		return store.Job{}, err
	}
	log := d.logger.With(slog.String("job_id", job.ID), slog.String("requester_id", requesterID))

	sctx, cancel := context.WithTimeout(ctx, d.cfg.SubmitTimeout)
	handle, err := d.provider.Submit(sctx, SubmitRequest{
		JobID:       job.ID,
		CallbackURL: d.callbackURL(job),
		Params:      params,
	})
	cancel()
	if err != nil {
		log.WarnContext(ctx, "job submission failed", slog.Any("error", err))
		failed, _, ferr := d.store.FinalizeJob(ctx, job.ID, store.JobResult{
			Status: store.JobFailed,
			Error:  err.Error(),
		})
		if ferr != nil {
			return job, errors.Join(ErrSubmitFailed, err, ferr)
		}
		return failed, errors.Join(ErrSubmitFailed, err)
	}

	dispatched, err := d.store.MarkJobDispatched(ctx, job.ID, handle)
	if errors.Is(err, store.ErrTerminal) {
		// The callback beat us; the job is already final.
		return dispatched, nil
	}
	if err != nil {
		return job, err
	}
	log.InfoContext(ctx, "job dispatched", slog.String("handle", handle))
	return dispatched, nil
}

// Job returns a job by id.
func (d *Dispatcher) Job(ctx context.Context, jobID string) (store.Job, error) {
	return d.store.GetJob(ctx, jobID)
}

// DeliverResult sends a succeeded job's result to its requester and records
// the outcome on the job. A job that already has a delivery status is not
// sent again.
func (d *Dispatcher) DeliverResult(ctx context.Context, jobID string) (delivery.DirectResult, error) {
	job, err := d.store.GetJob(ctx, jobID)
	if err != nil {
		return delivery.DirectResult{}, err
	}
	if job.Status != store.JobSucceeded {
		return delivery.DirectResult{}, ErrJobNotSucceeded
	}
	if job.DeliveryStatus != "" {
		return delivery.DirectResult{Status: job.DeliveryStatus}, nil
	}

	res := d.sender.DeliverDirect(ctx, job.RequesterID, d.resultMessage(job))
	if err := ctx.Err(); err != nil {
		return res, err
	}

	var lastErr string
	if res.Err != nil {
		lastErr = res.Err.Error()
	}
	if err := d.store.SetJobDelivery(ctx, job.ID, res.Status, lastErr); err != nil && !errors.Is(err, store.ErrTerminal) {
		return res, err
	}

	d.logger.InfoContext(ctx, "job result delivered",
		slog.String("job_id", job.ID),
		slog.String("status", string(res.Status)),
		slog.Int("attempts", res.Attempts),
	)
	return res, nil
}

// SweepTimeouts fails every unfinished job last touched before now minus the
// job timeout and returns how many were failed.
func (d *Dispatcher) SweepTimeouts(ctx context.Context, now time.Time) (int, error) {
	if now.IsZero() {
		now = d.now()
	}
	jobs, err := d.store.FailStaleJobs(ctx, now.Add(-d.cfg.JobTimeout), "timeout")
	if err != nil {
		return 0, err
	}
	for _, j := range jobs {
		d.logger.WarnContext(ctx, "job timed out",
			slog.String("job_id", j.ID),
			slog.String("handle", j.ProviderHandle),
		)
	}
	return len(jobs), nil
}

func (d *Dispatcher) resultMessage(job store.Job) channel.Message {
	return channel.Message{
		Text:     d.cfg.ResultCaption,
		MediaURL: job.ResultRef,
	}
}

func (d *Dispatcher) callbackURL(job store.Job) string {
	if d.cfg.CallbackURL == "" {
		return ""
	}
	u, err := url.Parse(d.cfg.CallbackURL)
	if err != nil {
		return ""
	}
	q := u.Query()
	q.Set("job_id", job.ID)
	q.Set("token", job.CallbackToken)
	u.RawQuery = q.Encode()
	return u.String()
}
