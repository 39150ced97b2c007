package compute_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/herald/pkg/compute"
)

func TestHTTPProvider_Submit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		status     int
		response   string
		wantHandle string
		wantErr    string
	}{
		{name: "id", status: http.StatusAccepted, response: `{"id":"gen-1"}`, wantHandle: "gen-1"},
		{name: "handle", status: http.StatusOK, response: `{"handle":"gen-2","id":"ignored"}`, wantHandle: "gen-2"},
		{name: "error message", status: http.StatusServiceUnavailable, response: `{"error":"overloaded"}`, wantErr: "http 503: overloaded"},
		{name: "non json error", status: http.StatusBadGateway, response: `<html>bad gateway</html>`, wantErr: "http 502"},
		{name: "empty handle", status: http.StatusOK, response: `{}`, wantErr: "empty job handle"},
		{name: "malformed", status: http.StatusOK, response: `{`, wantErr: "malformed response"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var got compute.SubmitRequest
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "Bearer key-1", r.Header.Get("Authorization"))
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.response))
			}))
			defer srv.Close()

			p := compute.NewHTTPProvider(compute.ProviderConfig{URL: srv.URL, APIKey: "key-1"}, srv.Client())
			handle, err := p.Submit(context.Background(), compute.SubmitRequest{
				JobID:       "job-1",
				CallbackURL: "https://herald.example.com/job-callback?job_id=job-1",
				Params:      json.RawMessage(`{"prompt":"a cat"}`),
			})
			if tt.wantErr != "" {
				require.ErrorIs(t, err, compute.ErrProviderRejected)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantHandle, handle)
			assert.Equal(t, "job-1", got.JobID)
			assert.JSONEq(t, `{"prompt":"a cat"}`, string(got.Params))
		})
	}
}

func TestHTTPProvider_NotConfigured(t *testing.T) {
	t.Parallel()
	_, err := compute.NewHTTPProvider(compute.ProviderConfig{}, nil).Submit(context.Background(), compute.SubmitRequest{JobID: "j"})
	assert.ErrorIs(t, err, compute.ErrProviderRejected)
}
