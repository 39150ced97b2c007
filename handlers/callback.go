package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/herald"
	"github.com/dmitrymomot/herald/pkg/compute"
	"github.com/dmitrymomot/herald/pkg/store"
)

// SignatureHeader carries the hex HMAC-SHA256 of the callback body.
const SignatureHeader = "X-Signature"

// CallbackProcessor verifies and applies provider callbacks.
type CallbackProcessor interface {
	HandleCallback(ctx context.Context, req compute.CallbackRequest) (compute.CallbackResult, error)
}

// Callbacks serves the provider webhook.
type Callbacks struct {
	jobs CallbackProcessor
	mw   []herald.Middleware
}

// NewCallbacks creates the webhook handler. mw wraps the callback route only,
// e.g. a per-IP rate limit.
func NewCallbacks(jobs CallbackProcessor, mw ...herald.Middleware) *Callbacks {
	return &Callbacks{jobs: jobs, mw: mw}
}

// Routes implements herald.Handler.
func (h *Callbacks) Routes(r herald.Router) {
	r.POST("/job-callback", h.receive, h.mw...)
}

type callbackResponse struct {
	Status compute.CallbackResult `json:"status"`
}

// receive answers 401 for any verification failure without saying which
// part failed.
func (h *Callbacks) receive(c herald.Context) error {
	body, err := c.Body()
	if err != nil {
		if errors.Is(err, herald.ErrBodyTooLarge) {
			return herald.NewHTTPError(http.StatusRequestEntityTooLarge, "request body too large")
		}
		return herald.ErrBadRequest("cannot read request body", herald.WithError(err))
	}

	signature := c.Header(SignatureHeader)
	if signature == "" {
		signature = c.Query("signature")
	}
	jobID := c.Query("job_id")
	if jobID == "" || signature == "" {
		return herald.ErrUnauthorized("unauthorized")
	}

	res, err := h.jobs.HandleCallback(c, compute.CallbackRequest{
		JobID:     jobID,
		Token:     c.Query("token"),
		Signature: signature,
		Body:      body,
	})
	switch {
	case err == nil:
	case errors.Is(err, compute.ErrInvalidSignature):
		c.LogWarn("rejected job callback", slog.String("job_id", jobID))
		return herald.ErrUnauthorized("unauthorized", herald.WithError(err))
	case errors.Is(err, store.ErrNotFound):
		return herald.ErrNotFound("job not found", herald.WithError(err))
	case errors.Is(err, compute.ErrInvalidPayload):
		return herald.ErrBadRequest("invalid callback payload", herald.WithError(err))
	default:
		return err
	}

	return c.JSON(http.StatusOK, callbackResponse{Status: res})
}
