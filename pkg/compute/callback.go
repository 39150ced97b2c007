package compute

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/dmitrymomot/herald/pkg/storage"
	"github.com/dmitrymomot/herald/pkg/store"
)

// CallbackRequest is an inbound provider callback.
type CallbackRequest struct {
	JobID     string
	Token     string
	Signature string
	Body      []byte
}

// CallbackPayload is the JSON body a provider posts.
type CallbackPayload struct {
	Status       string `json:"status"`
	ResultURL    string `json:"result_url,omitempty"`
	ResultBase64 string `json:"result_base64,omitempty"`
	Error        string `json:"error,omitempty"`
}

// CallbackResult tells the caller whether a callback changed the job.
type CallbackResult string

const (
	CallbackAccepted  CallbackResult = "accepted"
	CallbackDuplicate CallbackResult = "duplicate"
)

// HandleCallback verifies and applies a provider callback.
//
// The signature is checked before the job is read; any mismatch returns
// ErrInvalidSignature and touches nothing. A callback for a job that is
// already final returns CallbackDuplicate with a nil error.
func (d *Dispatcher) HandleCallback(ctx context.Context, req CallbackRequest) (CallbackResult, error) {
	if err := d.signer.Verify(req.Body, req.Signature); err != nil {
		return "", ErrInvalidSignature
	}

	var p CallbackPayload
	if err := json.Unmarshal(req.Body, &p); err != nil {
		return "", errors.Join(ErrInvalidPayload, err)
	}

	job, err := d.store.GetJob(ctx, req.JobID)
	if err != nil {
		return "", err
	}
	if job.CallbackToken != "" && subtle.ConstantTimeCompare([]byte(job.CallbackToken), []byte(req.Token)) != 1 {
		return "", ErrInvalidSignature
	}
	log := d.logger.With(slog.String("job_id", job.ID))

	if job.Status.IsTerminal() {
		log.DebugContext(ctx, "duplicate job callback", slog.String("status", string(job.Status)))
		return CallbackDuplicate, nil
	}

	res, err := d.applyPayload(ctx, job, p)
	if err != nil {
		return "", err
	}

	job, applied, err := d.store.FinalizeJob(ctx, job.ID, res)
	if err != nil {
		return "", err
	}
	if !applied {
		log.DebugContext(ctx, "job finalized concurrently", slog.String("status", string(job.Status)))
		return CallbackDuplicate, nil
	}
	log.InfoContext(ctx, "job finalized", slog.String("status", string(job.Status)))

	if job.Status == store.JobSucceeded {
		// The job is final either way; a notify failure is logged, not
		// returned, so the provider does not redeliver into a duplicate.
		if err := d.notifier.NotifyResult(ctx, job); err != nil {
			log.ErrorContext(ctx, "failed to deliver job result", slog.Any("error", err))
		}
	}
	return CallbackAccepted, nil
}

// applyPayload turns a payload into a terminal result, uploading inline media.
func (d *Dispatcher) applyPayload(ctx context.Context, job store.Job, p CallbackPayload) (store.JobResult, error) {
	status := strings.ToLower(strings.TrimSpace(p.Status))
	if p.Error != "" || status == "failed" || status == "error" {
		reason := p.Error
		if reason == "" {
			reason = "provider reported failure"
		}
		return store.JobResult{Status: store.JobFailed, Error: reason}, nil
	}

	switch status {
	case "", "succeeded", "success", "completed", "done":
	default:
		return store.JobResult{}, errors.Join(ErrInvalidPayload, errors.New("unknown status "+p.Status))
	}

	if p.ResultURL != "" {
		return store.JobResult{Status: store.JobSucceeded, ResultRef: p.ResultURL}, nil
	}
	if p.ResultBase64 == "" {
		return store.JobResult{}, errors.Join(ErrInvalidPayload, errors.New("result is empty"))
	}
	if d.media == nil {
		return store.JobResult{}, ErrNoStorage
	}

	info, err := storage.PutBase64(ctx, d.media, p.ResultBase64,
		storage.WithPrefix(d.cfg.ResultPrefix),
		storage.WithAccept(storage.IsImageMIME),
	)
	if errors.Is(err, storage.ErrInvalidBase64) || errors.Is(err, storage.ErrEmptyFile) || errors.Is(err, storage.ErrUnsupportedType) {
		return store.JobResult{}, errors.Join(ErrInvalidPayload, err)
	}
	if err != nil {
		return store.JobResult{}, errors.Join(ErrUploadResult, err)
	}
	ref, err := d.media.URL(ctx, info.Key)
	if err != nil {
		return store.JobResult{}, errors.Join(ErrUploadResult, err)
	}
	d.logger.DebugContext(ctx, "inline job result stored",
		slog.String("job_id", job.ID),
		slog.String("key", info.Key),
		slog.Int64("size", info.Size),
	)
	return store.JobResult{Status: store.JobSucceeded, ResultRef: ref}, nil
}
