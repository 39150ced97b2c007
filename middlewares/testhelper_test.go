package middlewares_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/dmitrymomot/herald/internal"
)

// testContext backs the part of internal.Context the middlewares use with
// a real ResponseWriter. Anything else hits the nil embedded interface.
// Log calls are recorded as "LEVEL msg" lines.
// baseContext names the embedded field so it does not clash with the
// Context method of internal.Context.
type baseContext = internal.Context

type testContext struct {
	baseContext
	rw  *internal.ResponseWriter
	req *http.Request

	mu   sync.Mutex
	logs []string
}

func newTestContext(w http.ResponseWriter, r *http.Request) *testContext {
	return &testContext{rw: internal.NewResponseWriter(w), req: r}
}

func (c *testContext) Deadline() (time.Time, bool) { return c.req.Context().Deadline() }
func (c *testContext) Done() <-chan struct{}       { return c.req.Context().Done() }
func (c *testContext) Err() error                  { return c.req.Context().Err() }
func (c *testContext) Value(key any) any           { return c.req.Context().Value(key) }
func (c *testContext) Context() context.Context    { return c.req.Context() }

func (c *testContext) Request() *http.Request                   { return c.req }
func (c *testContext) Response() http.ResponseWriter            { return c.rw }
func (c *testContext) ResponseWriter() *internal.ResponseWriter { return c.rw }
func (c *testContext) Written() bool                            { return c.rw.Written() }
func (c *testContext) Header(name string) string                { return c.req.Header.Get(name) }
func (c *testContext) SetHeader(name, value string)             { c.rw.Header().Set(name, value) }
func (c *testContext) Query(name string) string                 { return c.req.URL.Query().Get(name) }

func (c *testContext) Set(key, value any) {
	c.req = c.req.WithContext(context.WithValue(c.req.Context(), key, value))
}

func (c *testContext) Get(key any) any { return c.req.Context().Value(key) }

func (c *testContext) JSON(code int, v any) error {
	c.rw.Header().Set("Content-Type", "application/json; charset=utf-8")
	c.rw.WriteHeader(code)
	return json.NewEncoder(c.rw).Encode(v)
}

func (c *testContext) NoContent(code int) error {
	c.rw.WriteHeader(code)
	return nil
}

func (c *testContext) Error(code int, message string, opts ...internal.HTTPErrorOption) *internal.HTTPError {
	return internal.NewHTTPError(code, message, opts...)
}

func (c *testContext) LogDebug(msg string, _ ...any) { c.log("DEBUG", msg) }
func (c *testContext) LogInfo(msg string, _ ...any)  { c.log("INFO", msg) }
func (c *testContext) LogWarn(msg string, _ ...any)  { c.log("WARN", msg) }
func (c *testContext) LogError(msg string, _ ...any) { c.log("ERROR", msg) }

func (c *testContext) log(level, msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logs = append(c.logs, fmt.Sprintf("%s %s", level, msg))
}

func (c *testContext) Logs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.logs...)
}
