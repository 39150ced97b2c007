package internal_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/herald/internal"
)

type routesFunc func(r internal.Router)

func (f routesFunc) Routes(r internal.Router) { f(r) }

func serve(app *internal.App, method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	app.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w
}

func TestApp_ErrorHandling(t *testing.T) {
	t.Parallel()

	routes := routesFunc(func(r internal.Router) {
		r.GET("/http", func(c internal.Context) error {
			return internal.ErrNotFound("broadcast not found")
		})
		r.GET("/plain", func(c internal.Context) error {
			return errors.New("boom")
		})
		r.GET("/written", func(c internal.Context) error {
			_ = c.String(http.StatusAccepted, "partial")
			return errors.New("late failure")
		})
	})

	t.Run("default handler", func(t *testing.T) {
		t.Parallel()
		app := internal.New(internal.WithHandlers(routes))

		w := serve(app, http.MethodGet, "/http")
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), "broadcast not found")

		w = serve(app, http.MethodGet, "/plain")
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "boom")
	})

	t.Run("custom handler", func(t *testing.T) {
		t.Parallel()
		var got error
		app := internal.New(
			internal.WithHandlers(routes),
			internal.WithErrorHandler(func(c internal.Context, err error) error {
				got = err
				return c.JSON(http.StatusTeapot, map[string]string{"error": "custom"})
			}),
		)

		w := serve(app, http.MethodGet, "/plain")
		assert.Equal(t, http.StatusTeapot, w.Code)
		assert.EqualError(t, got, "boom")
	})

	t.Run("written response is kept", func(t *testing.T) {
		t.Parallel()
		app := internal.New(internal.WithHandlers(routes))

		w := serve(app, http.MethodGet, "/written")
		assert.Equal(t, http.StatusAccepted, w.Code)
		assert.Equal(t, "partial", w.Body.String())
	})

	t.Run("not found and method not allowed", func(t *testing.T) {
		t.Parallel()
		app := internal.New(
			internal.WithHandlers(routes),
			internal.WithNotFoundHandler(func(c internal.Context) error {
				return c.JSON(http.StatusNotFound, map[string]string{"error": "no route"})
			}),
			internal.WithMethodNotAllowedHandler(func(c internal.Context) error {
				return c.NoContent(http.StatusMethodNotAllowed)
			}),
		)

		assert.Equal(t, http.StatusNotFound, serve(app, http.MethodGet, "/nope").Code)
		assert.Equal(t, http.StatusMethodNotAllowed, serve(app, http.MethodPost, "/http").Code)
	})
}

func TestApp_Middleware(t *testing.T) {
	t.Parallel()

	type key struct{}
	var order []string
	mw := func(name string) internal.Middleware {
		return func(next internal.HandlerFunc) internal.HandlerFunc {
			return func(c internal.Context) error {
				order = append(order, name)
				c.Set(key{}, name)
				return next(c)
			}
		}
	}

	app := internal.New(
		internal.WithMiddleware(mw("global")),
		internal.WithHandlers(routesFunc(func(r internal.Router) {
			r.Route("/ops", func(r internal.Router) {
				r.Use(mw("group"))
				r.GET("/x", func(c internal.Context) error {
					return c.String(http.StatusOK, c.Get(key{}).(string))
				}, mw("route"))
			})
		})),
	)

	w := serve(app, http.MethodGet, "/ops/x")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "route", w.Body.String())
	assert.Equal(t, []string{"global", "group", "route"}, order)
}

func TestApp_HealthChecks(t *testing.T) {
	t.Parallel()

	t.Run("healthy", func(t *testing.T) {
		t.Parallel()
		app := internal.New(internal.WithHealthChecks(
			internal.WithReadinessCheck("db", func(context.Context) error { return nil }),
		))

		assert.Equal(t, http.StatusOK, serve(app, http.MethodGet, "/health/live").Code)
		assert.Equal(t, http.StatusOK, serve(app, http.MethodGet, "/health/ready").Code)
	})

	t.Run("unhealthy on custom path", func(t *testing.T) {
		t.Parallel()
		app := internal.New(internal.WithHealthChecks(
			internal.WithReadinessPath("/ready"),
			internal.WithReadinessCheck("redis", func(context.Context) error { return errors.New("down") }),
		))

		assert.Equal(t, http.StatusServiceUnavailable, serve(app, http.MethodGet, "/ready").Code)
	})
}

func TestApp_Run(t *testing.T) {
	t.Parallel()

	t.Run("startup failure aborts", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("migrations failed")
		err := internal.New().Run("127.0.0.1:0",
			internal.StartupHook(func(context.Context) error { return boom }),
		)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("base context ends run and hooks fire", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		var started, stopped bool

		done := make(chan error, 1)
		go func() {
			done <- internal.New().Run("127.0.0.1:0",
				internal.WithContext(ctx),
				internal.ShutdownTimeout(time.Second),
				internal.StartupHook(func(context.Context) error { started = true; return nil }),
				internal.ShutdownHook(func(context.Context) error { stopped = true; return nil }),
			)
		}()

		time.Sleep(50 * time.Millisecond)
		cancel()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("Run did not return")
		}
		assert.True(t, started)
		assert.True(t, stopped)
	})
}
