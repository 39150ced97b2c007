package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/herald/pkg/health"
)

func ok(context.Context) error { return nil }

func TestRun(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		checks health.Checks
		opts   []health.Option
		want   string
	}{
		{name: "no checks", want: health.StatusHealthy},
		{
			name:   "all pass",
			checks: health.Checks{"db": ok, "redis": ok},
			want:   health.StatusHealthy,
		},
		{
			name:   "required fails",
			checks: health.Checks{"db": ok, "redis": func(context.Context) error { return errors.New("down") }},
			want:   health.StatusUnhealthy,
		},
		{
			name:   "optional fails",
			checks: health.Checks{"db": ok, "provider": func(context.Context) error { return errors.New("down") }},
			opts:   []health.Option{health.WithOptional("provider")},
			want:   health.StatusDegraded,
		},
		{
			name: "optional and required fail",
			checks: health.Checks{
				"provider": func(context.Context) error { return errors.New("down") },
				"redis":    func(context.Context) error { return errors.New("down") },
			},
			opts: []health.Option{health.WithOptional("provider")},
			want: health.StatusUnhealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			resp := health.Run(context.Background(), tt.checks, tt.opts...)
			assert.Equal(t, tt.want, resp.Status)
			assert.Len(t, resp.Checks, len(tt.checks))
		})
	}
}

func TestRun_Timeout(t *testing.T) {
	t.Parallel()

	slow := func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}
	resp := health.Run(context.Background(), health.Checks{"db": slow}, health.WithTimeout(20*time.Millisecond))

	assert.Equal(t, health.StatusUnhealthy, resp.Status)
	assert.Equal(t, health.ErrCheckTimeout.Error(), resp.Checks["db"].Error)
	assert.ErrorIs(t, resp.Err(), health.ErrCheckFailed)
	assert.ErrorContains(t, resp.Err(), "db: health: check timeout")
	assert.GreaterOrEqual(t, resp.Checks["db"].TookMS, int64(20))
}

func TestReadinessHandler(t *testing.T) {
	t.Parallel()

	down := func(context.Context) error { return errors.New("connection refused") }

	t.Run("plain text", func(t *testing.T) {
		t.Parallel()
		w := httptest.NewRecorder()
		health.ReadinessHandler(health.Checks{"redis": down})(w, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, "Service Unavailable", w.Body.String())
	})

	t.Run("json degraded is 200", func(t *testing.T) {
		t.Parallel()
		w := httptest.NewRecorder()
		h := health.ReadinessHandler(health.Checks{"db": ok, "provider": down}, health.WithOptional("provider"))
		h(w, httptest.NewRequest(http.MethodGet, "/?format=json", nil))

		require.Equal(t, http.StatusOK, w.Code)
		var resp health.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, health.StatusDegraded, resp.Status)
		assert.True(t, resp.Checks["provider"].Optional)
		assert.Equal(t, "connection refused", resp.Checks["provider"].Error)
	})
}

func TestLivenessHandler(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept", "application/json")
	health.LivenessHandler()(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, w.Body.String())
}
