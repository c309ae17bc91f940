package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// WebhookEndpoints is the three configured outbound URLs (§6.3).
type WebhookEndpoints struct {
	Verdict          string
	SubmissionResult string
	Error            string
}

func (e WebhookEndpoints) urlFor(ep WebhookEndpoint) string {
	switch ep {
	case VerdictEndpoint:
		return e.Verdict
	case SubmissionResultEndpoint:
		return e.SubmissionResult
	default:
		return e.Error
	}
}

// WebhookDispatcher is a long-lived HTTP client posting typed events to
// endpoints chosen by event kind (C4, §4.4).
type WebhookDispatcher struct {
	client    *http.Client
	endpoints WebhookEndpoints
	metrics   *WorkerMetricsCollector
}

// NewWebhookDispatcher builds a dispatcher with a 10-second total request
// timeout and a reused underlying transport (connection pooling), matching
// the teacher's long-lived *http.Client idiom for its judge client. metrics
// may be nil, e.g. in tests that don't exercise the /metrics surface.
func NewWebhookDispatcher(endpoints WebhookEndpoints, metrics *WorkerMetricsCollector) *WebhookDispatcher {
	return &WebhookDispatcher{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		endpoints: endpoints,
		metrics:   metrics,
	}
}

// DispatchWebhookCallback serializes event to camelCase JSON and POSTs it
// to the endpoint selected by its variant. Returns the HTTP status on 2xx;
// on non-2xx or transport error, returns the known status code, else 500.
// It does not retry (§4.4); the supervisor decides teardown.
func (d *WebhookDispatcher) DispatchWebhookCallback(ctx context.Context, event WebhookEvent) (int, error) {
	url := d.endpoints.urlFor(event.Endpoint())
	body, err := json.Marshal(event)
	if err != nil {
		return 0, fmt.Errorf("core: marshal webhook event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("core: build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := d.client.Do(req)
	if d.metrics != nil {
		d.metrics.WebhookLatency.WithLabelValues(event.Endpoint().String()).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return 500, fmt.Errorf("core: webhook request to %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("%w: %s returned %d", ErrWebhookRejected, url, resp.StatusCode)
	}
	return resp.StatusCode, nil
}

// Shutdown releases the underlying connection pool.
func (d *WebhookDispatcher) Shutdown() {
	d.client.CloseIdleConnections()
}
