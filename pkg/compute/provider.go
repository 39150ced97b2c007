package compute

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// SubmitRequest is what a provider receives for one job.
type SubmitRequest struct {
	JobID       string          `json:"job_id"`
	CallbackURL string          `json:"callback_url"`
	Params      json.RawMessage `json:"params,omitempty"`
}

// Provider submits jobs to an external compute service and returns its handle.
type Provider interface {
	Submit(ctx context.Context, req SubmitRequest) (string, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, req SubmitRequest) (string, error)

func (f ProviderFunc) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	return f(ctx, req)
}

// ProviderConfig configures HTTPProvider.
type ProviderConfig struct {
	URL     string        `env:"COMPUTE_PROVIDER_URL"`
	APIKey  string        `env:"COMPUTE_PROVIDER_API_KEY"`
	Timeout time.Duration `env:"COMPUTE_PROVIDER_TIMEOUT" envDefault:"30s"`
}

// HTTPProvider posts jobs as JSON to a provider endpoint.
type HTTPProvider struct {
	client *http.Client
	url    string
	token  string
}

// NewHTTPProvider creates an HTTPProvider. A nil client gets one with cfg.Timeout.
func NewHTTPProvider(cfg ProviderConfig, client *http.Client) *HTTPProvider {
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &HTTPProvider{
		client: client,
		url:    strings.TrimSpace(cfg.URL),
		token:  strings.TrimSpace(cfg.APIKey),
	}
}

type submitResponse struct {
	ID      string `json:"id"`
	Handle  string `json:"handle"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (r submitResponse) handle() string {
	if r.Handle != "" {
		return r.Handle
	}
	return r.ID
}

func (r submitResponse) reason() string {
	if r.Error != "" {
		return r.Error
	}
	return r.Message
}

func (p *HTTPProvider) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	if p.url == "" {
		return "", fmt.Errorf("%w: provider url is not configured", ErrProviderRejected)
	}
	body, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.token)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out submitResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&out)
	if resp.StatusCode >= http.StatusBadRequest {
		if reason := out.reason(); decodeErr == nil && reason != "" {
			return "", fmt.Errorf("%w: http %d: %s", ErrProviderRejected, resp.StatusCode, reason)
		}
		return "", fmt.Errorf("%w: http %d", ErrProviderRejected, resp.StatusCode)
	}
	if decodeErr != nil {
		return "", fmt.Errorf("%w: malformed response: %v", ErrProviderRejected, decodeErr)
	}
	handle := out.handle()
	if handle == "" {
		return "", fmt.Errorf("%w: empty job handle", ErrProviderRejected)
	}
	return handle, nil
}
