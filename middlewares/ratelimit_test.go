package middlewares_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/herald/internal"
	"github.com/dmitrymomot/herald/middlewares"
	"github.com/dmitrymomot/herald/pkg/ratelimit"
)

func TestRateLimit(t *testing.T) {
	t.Parallel()

	fixed := time.Date(2025, 1, 1, 12, 0, 30, 0, time.UTC)
	newLimiter := func() *ratelimit.Limiter {
		return ratelimit.New(ratelimit.NewMemoryCounter(), ratelimit.WithClock(func() time.Time { return fixed }))
	}

	call := func(mw internal.Middleware, remote string) (*httptest.ResponseRecorder, error) {
		req := httptest.NewRequest(http.MethodPost, "/job-callback", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		err := mw(func(c internal.Context) error { return nil })(newTestContext(rec, req))
		return rec, err
	}

	t.Run("allows up to limit per client", func(t *testing.T) {
		t.Parallel()
		mw := middlewares.RateLimit(newLimiter(), 2, time.Minute)

		for range 2 {
			rec, err := call(mw, "10.0.0.1:5000")
			require.NoError(t, err)
			assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
		}

		rec, err := call(mw, "10.0.0.1:5001")
		httpErr := internal.AsHTTPError(err)
		require.NotNil(t, httpErr)
		assert.Equal(t, http.StatusTooManyRequests, httpErr.Code)
		assert.Equal(t, "60", rec.Header().Get("Retry-After"))

		_, err = call(mw, "10.0.0.2:5000")
		assert.NoError(t, err)
	})

	t.Run("custom key", func(t *testing.T) {
		t.Parallel()
		mw := middlewares.RateLimit(newLimiter(), 1, time.Minute,
			middlewares.WithRateLimitKey(func(internal.Context) string { return "global" }),
		)

		_, err := call(mw, "10.0.0.1:1")
		require.NoError(t, err)
		_, err = call(mw, "10.0.0.2:1")
		assert.Error(t, err)
	})
}
