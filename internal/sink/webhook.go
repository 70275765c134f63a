package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/andresmejia3/facepack/internal/types"
)

// Webhook POSTs batches to a time series portal with retry and exponential
// backoff.
type Webhook struct {
	url        string
	seriesType string
	session    string
	client     *http.Client
	maxRetries int
	backoff    time.Duration
	logger     *slog.Logger
}

// WebhookOption configures a Webhook sink.
type WebhookOption func(*Webhook)

// WithWebhookRetries sets the maximum number of retries. Default: 3.
func WithWebhookRetries(n int) WebhookOption {
	return func(w *Webhook) { w.maxRetries = n }
}

// WithWebhookBackoff sets the first retry delay; it doubles per attempt.
// Default: 1s.
func WithWebhookBackoff(d time.Duration) WebhookOption {
	return func(w *Webhook) { w.backoff = d }
}

// WithWebhookClient replaces the HTTP client.
func WithWebhookClient(c *http.Client) WebhookOption {
	return func(w *Webhook) { w.client = c }
}

// WithWebhookLogger sets a custom logger.
func WithWebhookLogger(l *slog.Logger) WebhookOption {
	return func(w *Webhook) { w.logger = l }
}

// TimeSeriesURL joins the portal base with the time series route.
func TimeSeriesURL(portal, seriesType string) (string, error) {
	base, err := url.Parse(portal)
	if err != nil {
		return "", fmt.Errorf("webhook: portal: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return "", fmt.Errorf("webhook: portal %q is not an absolute URL", portal)
	}
	return base.JoinPath("v6", "time_series", seriesType).String(), nil
}

// NewWebhook creates a Webhook sink posting to
// {portal}/v6/time_series/{seriesType} on behalf of session.
func NewWebhook(portal, seriesType, session string, opts ...WebhookOption) (*Webhook, error) {
	u, err := TimeSeriesURL(portal, seriesType)
	if err != nil {
		return nil, err
	}

	w := &Webhook{
		url:        u,
		seriesType: seriesType,
		session:    session,
		client:     &http.Client{Timeout: 10 * time.Second},
		maxRetries: 3,
		backoff:    time.Second,
		logger:     slog.Default(),
	}
	for _, o := range opts {
		o(w)
	}
	return w, nil
}

type timeSeriesBody struct {
	SessionGUID string            `json:"sessionGUID"`
	SeriesType  string            `json:"seriesType"`
	Data        []json.RawMessage `json:"data"`
}

func (w *Webhook) Send(ctx context.Context, frames []types.CompactedFrame) error {
	if len(frames) == 0 {
		return nil
	}

	data := make([]json.RawMessage, len(frames))
	for i, f := range frames {
		data[i] = json.RawMessage(bytes.TrimSpace(f.Payload))
	}
	body, err := json.Marshal(timeSeriesBody{SessionGUID: w.session, SeriesType: w.seriesType, Data: data})
	if err != nil {
		return fmt.Errorf("webhook: marshal: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= w.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := w.backoff * time.Duration(1<<uint(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("webhook: new request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")

		resp, err := w.client.Do(req)
		if err != nil {
			lastErr = err
			w.logger.Warn("webhook: request failed", "attempt", attempt+1, "error", err)
			continue
		}
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		lastErr = fmt.Errorf("webhook: status %d", resp.StatusCode)
		if !retryable(resp.StatusCode) {
			return lastErr
		}
		w.logger.Warn("webhook: bad status", "attempt", attempt+1, "status", resp.StatusCode)
	}
	return fmt.Errorf("webhook: all retries exhausted: %w", lastErr)
}

func (w *Webhook) Close() error { return nil }

// retryable reports whether a failed status may succeed on a later attempt.
// Client errors other than timeouts and rate limits will not.
func retryable(status int) bool {
	if status == http.StatusRequestTimeout || status == http.StatusTooManyRequests {
		return true
	}
	return status < 400 || status >= 500
}
