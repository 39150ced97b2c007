package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrymomot/herald"
	"github.com/dmitrymomot/herald/pkg/cache"
	"github.com/dmitrymomot/herald/pkg/compute"
	"github.com/dmitrymomot/herald/pkg/content"
	"github.com/dmitrymomot/herald/pkg/store"
)

// Broadcasts is the slice of the record store the operator API reads and writes.
type Broadcasts interface {
	CreateBroadcast(ctx context.Context, b store.Broadcast) (store.Broadcast, error)
	GetBroadcast(ctx context.Context, id string) (store.Broadcast, error)
	CancelBroadcast(ctx context.Context, id string) error
	DeliveryStats(ctx context.Context, broadcastID string) (store.DeliveryStats, error)
}

// RetryScheduler starts a retry-failed pass in the background.
type RetryScheduler interface {
	ScheduleRetry(ctx context.Context, broadcastID string) error
}

// Jobs submits and reads external compute jobs.
type Jobs interface {
	Submit(ctx context.Context, requesterID string, params json.RawMessage) (store.Job, error)
	Job(ctx context.Context, jobID string) (store.Job, error)
}

// Operator serves the management API.
type Operator struct {
	broadcasts Broadcasts
	retries    RetryScheduler
	jobs       Jobs
	auth       herald.Middleware
	stats      cache.Cache[store.DeliveryStats]
	statsTTL   time.Duration
}

// OperatorOption configures an Operator.
type OperatorOption func(*Operator)

// WithStatsCache keeps stats of finished broadcasts in c for ttl.
// Stats of running broadcasts are always read from the store.
func WithStatsCache(c cache.Cache[store.DeliveryStats], ttl time.Duration) OperatorOption {
	return func(h *Operator) {
		h.stats = c
		h.statsTTL = ttl
	}
}

// NewOperator creates the operator API. auth guards every route and is
// usually middlewares.BearerAuth.
func NewOperator(broadcasts Broadcasts, retries RetryScheduler, jobs Jobs, auth herald.Middleware, opts ...OperatorOption) *Operator {
	h := &Operator{broadcasts: broadcasts, retries: retries, jobs: jobs, auth: auth}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes implements herald.Handler.
func (h *Operator) Routes(r herald.Router) {
	r.Group(func(r herald.Router) {
		if h.auth != nil {
			r.Use(h.auth)
		}
		r.POST("/broadcasts", h.createBroadcast)
		r.Route("/broadcasts/{id}", func(r herald.Router) {
			r.GET("/", h.getBroadcast)
			r.POST("/cancel", h.cancelBroadcast)
			r.POST("/retry-failed", h.retryFailed)
			r.GET("/stats", h.getStats)
		})
		r.POST("/jobs", h.submitJob)
		r.GET("/jobs/{id}", h.getJob)
	})
}

type createBroadcastRequest struct {
	ScheduledAt *time.Time    `json:"scheduled_at,omitempty"`
	Content     store.Content `json:"content"`
	Target      store.Target  `json:"target"`
	Draft       bool          `json:"draft,omitempty"`
}

func (p *createBroadcastRequest) Validate() error {
	if strings.TrimSpace(p.Content.Text) == "" && p.Content.MediaURL == "" {
		return errors.New("content needs text or media_url")
	}
	switch p.Content.Format {
	case "", "html", "markdown":
	default:
		return errors.New("content.format must be html or markdown")
	}
	if _, err := content.Render(p.Content.Text, p.Content.Format); err != nil {
		return err
	}
	switch p.Target.Kind {
	case store.TargetAll:
	case store.TargetIDs, store.TargetExclude:
		if p.Target.Kind == store.TargetIDs && len(p.Target.IDs) == 0 {
			return errors.New("target.ids is required")
		}
	case store.TargetGroup:
		if p.Target.Group == "" {
			return errors.New("target.group is required")
		}
	default:
		return errors.New("target.kind must be all, ids, group or exclude")
	}
	return nil
}

type statsResponse struct {
	BroadcastID string                `json:"broadcast_id"`
	Status      store.BroadcastStatus `json:"status"`
	Stats       store.DeliveryStats   `json:"stats"`
}

type submitJobRequest struct {
	RequesterID string          `json:"requester_id"`
	Params      json.RawMessage `json:"params,omitempty"`
}

func (p *submitJobRequest) Validate() error {
	if strings.TrimSpace(p.RequesterID) == "" {
		return errors.New("requester_id is required")
	}
	return nil
}

func (h *Operator) createBroadcast(c herald.Context) error {
	var req createBroadcastRequest
	if err := c.BindJSON(&req); err != nil {
		return err
	}

	b := store.Broadcast{
		Content: req.Content,
		Target:  req.Target,
		Status:  store.BroadcastScheduled,
	}
	if req.Draft {
		b.Status = store.BroadcastDraft
	}
	if req.ScheduledAt != nil {
		b.ScheduledAt = req.ScheduledAt.UTC()
	}

	b, err := h.broadcasts.CreateBroadcast(c, b)
	if err != nil {
		return err
	}
	c.LogInfo("broadcast created",
		"broadcast_id", b.ID,
		"status", string(b.Status),
		"scheduled_at", b.ScheduledAt,
	)
	return c.JSON(http.StatusCreated, b)
}

func (h *Operator) getBroadcast(c herald.Context) error {
	b, err := h.broadcasts.GetBroadcast(c, c.Param("id"))
	if err != nil {
		return broadcastError(err)
	}
	return c.JSON(http.StatusOK, b)
}

func (h *Operator) cancelBroadcast(c herald.Context) error {
	id := c.Param("id")
	if err := h.broadcasts.CancelBroadcast(c, id); err != nil {
		return broadcastError(err)
	}
	c.LogInfo("broadcast cancelled", "broadcast_id", id)
	return c.JSON(http.StatusOK, map[string]string{
		"id":     id,
		"status": string(store.BroadcastCancelled),
	})
}

// retryFailed only queues the pass. Busy broadcasts are refused here so the
// operator gets a 409 instead of a background error.
func (h *Operator) retryFailed(c herald.Context) error {
	id := c.Param("id")
	b, err := h.broadcasts.GetBroadcast(c, id)
	if err != nil {
		return broadcastError(err)
	}
	if !b.Status.IsFinal() {
		return herald.ErrConflict("broadcast is still " + string(b.Status))
	}
	if err := h.retries.ScheduleRetry(c, id); err != nil {
		return err
	}
	if h.stats != nil {
		if err := h.stats.Delete(c, id); err != nil {
			c.LogWarn("drop cached stats", "broadcast_id", id, "error", err)
		}
	}
	c.LogInfo("retry of failed deliveries queued", "broadcast_id", id)
	return c.JSON(http.StatusAccepted, map[string]string{
		"id":     id,
		"status": "queued",
	})
}

func (h *Operator) getStats(c herald.Context) error {
	id := c.Param("id")
	b, err := h.broadcasts.GetBroadcast(c, id)
	if err != nil {
		return broadcastError(err)
	}
	stats, err := h.deliveryStats(c, b)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, statsResponse{
		BroadcastID: id,
		Status:      b.Status,
		Stats:       stats,
	})
}

func (h *Operator) deliveryStats(ctx context.Context, b store.Broadcast) (store.DeliveryStats, error) {
	if h.stats == nil || !b.Status.IsFinal() {
		return h.broadcasts.DeliveryStats(ctx, b.ID)
	}
	return cache.GetOrSet(ctx, h.stats, b.ID, func(ctx context.Context) (store.DeliveryStats, time.Duration, error) {
		s, err := h.broadcasts.DeliveryStats(ctx, b.ID)
		return s, h.statsTTL, err
	})
}

func (h *Operator) submitJob(c herald.Context) error {
	var req submitJobRequest
	if err := c.BindJSON(&req); err != nil {
		return err
	}

	job, err := h.jobs.Submit(c, req.RequesterID, req.Params)
	switch {
	case err == nil:
	case errors.Is(err, compute.ErrInvalidRequest):
		return herald.ErrUnprocessable(err.Error(), herald.WithError(err))
	case errors.Is(err, compute.ErrSubmitFailed):
		return herald.NewHTTPError(http.StatusBadGateway, "compute provider unavailable")
	default:
		return err
	}
	return c.JSON(http.StatusCreated, job)
}

func (h *Operator) getJob(c herald.Context) error {
	job, err := h.jobs.Job(c, c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return herald.ErrNotFound("job not found")
		}
		return err
	}
	return c.JSON(http.StatusOK, job)
}

func broadcastError(err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return herald.ErrNotFound("broadcast not found")
	case errors.Is(err, store.ErrInvalidTransition):
		return herald.ErrConflict("broadcast can no longer change state")
	}
	return err
}
