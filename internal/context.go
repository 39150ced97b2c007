package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/herald/pkg/job"
)

// DefaultBodyLimit caps what Body and BindJSON read unless WithBodyLimit says otherwise.
const DefaultBodyLimit int64 = 1 << 20

var ErrBodyTooLarge = errors.New("request body too large")

// Validator is run by BindJSON after decoding; its error becomes a 422.
type Validator interface {
	Validate() error
}

// Context is the per-request handle passed to handlers. It is itself a
// context.Context bound to the request, so it can be handed to stores and
// dispatchers directly.
type Context interface {
	context.Context

	Request() *http.Request
	Response() http.ResponseWriter
	ResponseWriter() *ResponseWriter
	Context() context.Context

	Param(name string) string
	Query(name string) string
	QueryDefault(name, def string) string
	Header(name string) string
	SetHeader(name, value string)

	// Body reads the request once and caches the bytes, so a signature can
	// be checked over exactly what is later decoded.
	Body() ([]byte, error)
	// BindJSON decodes the body into v: 400 for unreadable or malformed
	// input, 413 above the body limit, 422 when v.Validate fails.
	BindJSON(v any) error

	JSON(code int, v any) error
	String(code int, s string) error
	NoContent(code int) error
	Error(code int, message string, opts ...HTTPErrorOption) *HTTPError
	Written() bool

	Logger() *slog.Logger
	LogDebug(msg string, attrs ...any)
	LogInfo(msg string, attrs ...any)
	LogWarn(msg string, attrs ...any)
	LogError(msg string, attrs ...any)

	// Set stores a request-scoped value visible to later middleware,
	// the handler and context extractors of the logger.
	Set(key, value any)
	Get(key any) any

	// Enqueue and EnqueueTx return job.ErrNotConfigured unless the app has
	// a job manager or enqueuer.
	Enqueue(name string, payload any, opts ...job.EnqueueOption) error
	EnqueueTx(tx pgx.Tx, name string, payload any, opts ...job.EnqueueOption) error
}

type requestContext struct {
	req       *http.Request
	rw        *ResponseWriter
	logger    *slog.Logger
	jobs      enqueuer
	body      []byte
	bodyLimit int64
	bodyRead  bool
}

func newContext(w http.ResponseWriter, r *http.Request, app *App) *requestContext {
	rw, ok := w.(*ResponseWriter)
	if !ok {
		rw = NewResponseWriter(w)
	}
	return &requestContext{
		req:       r,
		rw:        rw,
		logger:    app.logger,
		jobs:      app.jobs,
		bodyLimit: app.bodyLimit,
	}
}

func (c *requestContext) Deadline() (time.Time, bool) { return c.req.Context().Deadline() }
func (c *requestContext) Done() <-chan struct{}       { return c.req.Context().Done() }
func (c *requestContext) Err() error                  { return c.req.Context().Err() }
func (c *requestContext) Value(key any) any           { return c.req.Context().Value(key) }

func (c *requestContext) Request() *http.Request          { return c.req }
func (c *requestContext) Response() http.ResponseWriter   { return c.rw }
func (c *requestContext) ResponseWriter() *ResponseWriter { return c.rw }
func (c *requestContext) Context() context.Context        { return c.req.Context() }

func (c *requestContext) Param(name string) string  { return chi.URLParam(c.req, name) }
func (c *requestContext) Query(name string) string  { return c.req.URL.Query().Get(name) }
func (c *requestContext) Header(name string) string { return c.req.Header.Get(name) }

func (c *requestContext) QueryDefault(name, def string) string {
	if v := c.Query(name); v != "" {
		return v
	}
	return def
}

func (c *requestContext) SetHeader(name, value string) {
	c.rw.Header().Set(name, value)
}

func (c *requestContext) Body() ([]byte, error) {
	if c.bodyRead {
		return c.body, nil
	}
	c.bodyRead = true
	if c.req.Body == nil {
		return nil, nil
	}

	limit := c.bodyLimit
	if limit <= 0 {
		limit = DefaultBodyLimit
	}
	b, err := io.ReadAll(io.LimitReader(c.req.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(b)) > limit {
		return nil, ErrBodyTooLarge
	}
	c.body = b
	c.req.Body = io.NopCloser(bytes.NewReader(b))
	return b, nil
}

func (c *requestContext) BindJSON(v any) error {
	body, err := c.Body()
	switch {
	case errors.Is(err, ErrBodyTooLarge):
		return NewHTTPError(http.StatusRequestEntityTooLarge, "request body too large")
	case err != nil:
		return ErrBadRequest("cannot read request body", WithError(err))
	case len(bytes.TrimSpace(body)) == 0:
		return ErrBadRequest("request body is empty")
	}
	if err := json.Unmarshal(body, v); err != nil {
		return ErrBadRequest("malformed JSON", WithError(err))
	}
	if val, ok := v.(Validator); ok {
		if err := val.Validate(); err != nil {
			return ErrUnprocessable(err.Error(), WithError(err))
		}
	}
	return nil
}

func (c *requestContext) JSON(code int, v any) error {
	c.rw.Header().Set("Content-Type", "application/json; charset=utf-8")
	c.rw.WriteHeader(code)
	return json.NewEncoder(c.rw).Encode(v)
}

func (c *requestContext) String(code int, s string) error {
	c.rw.Header().Set("Content-Type", "text/plain; charset=utf-8")
	c.rw.WriteHeader(code)
	_, err := io.WriteString(c.rw, s)
	return err
}

func (c *requestContext) NoContent(code int) error {
	c.rw.WriteHeader(code)
	return nil
}

func (c *requestContext) Error(code int, message string, opts ...HTTPErrorOption) *HTTPError {
	return NewHTTPError(code, message, opts...)
}

func (c *requestContext) Written() bool { return c.rw.Written() }

func (c *requestContext) Logger() *slog.Logger { return c.logger }

func (c *requestContext) LogDebug(msg string, attrs ...any) { c.logger.DebugContext(c, msg, attrs...) }
func (c *requestContext) LogInfo(msg string, attrs ...any)  { c.logger.InfoContext(c, msg, attrs...) }
func (c *requestContext) LogWarn(msg string, attrs ...any)  { c.logger.WarnContext(c, msg, attrs...) }
func (c *requestContext) LogError(msg string, attrs ...any) { c.logger.ErrorContext(c, msg, attrs...) }

func (c *requestContext) Set(key, value any) {
	c.req = c.req.WithContext(context.WithValue(c.req.Context(), key, value))
}

func (c *requestContext) Get(key any) any { return c.req.Context().Value(key) }

func (c *requestContext) Enqueue(name string, payload any, opts ...job.EnqueueOption) error {
	if c.jobs == nil {
		return job.ErrNotConfigured
	}
	return c.jobs.Enqueue(c, name, payload, opts...)
}

func (c *requestContext) EnqueueTx(tx pgx.Tx, name string, payload any, opts ...job.EnqueueOption) error {
	if c.jobs == nil {
		return job.ErrNotConfigured
	}
	return c.jobs.EnqueueTx(c, tx, name, payload, opts...)
}
