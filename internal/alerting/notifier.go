package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/nichewatch/nichewatch/internal/model"
	"github.com/nichewatch/nichewatch/internal/resilience"
)

// Notifier delivers alerts to the configured webhook. Delivery is best
// effort: failures are logged and counted, never fatal to the run.
// Transient webhook errors are retried with backoff; a breaker stops
// delivery for the batch once the endpoint looks down.
type Notifier struct {
	cfg     Config
	client  *http.Client
	retry   resilience.RetryConfig
	breaker *resilience.CircuitBreaker
}

// maxNotifiedOpportunities caps how many opportunities ride along with a
// webhook delivery.
const maxNotifiedOpportunities = 10

// webhookPayload is the JSON body posted to the webhook: the run's
// alerts in detection order plus its highest scored opportunities.
type webhookPayload struct {
	RunID            string              `json:"run_id"`
	Alerts           []model.Alert       `json:"alerts"`
	TopOpportunities []model.Opportunity `json:"top_opportunities"`
}

func NewNotifier(cfg Config) *Notifier {
	return &Notifier{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		retry: resilience.RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: 200 * time.Millisecond,
			MaxBackoff:     2 * time.Second,
			Multiplier:     2.0,
			OnRetry:        resilience.RetryLogger("alerting", "webhook post"),
		},
		breaker: resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig()),
	}
}

// Send posts the run's alerts and top opportunities to the webhook URL
// as one payload and returns how many alerts were delivered. With no
// webhook configured, or nothing to alert on, it is a no-op. An open
// breaker drops the delivery; undelivered alerts are still in the store.
func (n *Notifier) Send(ctx context.Context, runID string, alerts []model.Alert, opportunities []model.Opportunity) int {
	if n.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	top := opportunities
	if len(top) > maxNotifiedOpportunities {
		top = top[:maxNotifiedOpportunities]
	}
	payload := webhookPayload{RunID: runID, Alerts: alerts, TopOpportunities: top}

	err := n.breaker.Execute(ctx, func(ctx context.Context) error {
		return resilience.Do(ctx, n.retry, func(ctx context.Context) error {
			return n.post(ctx, payload)
		})
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		zap.L().Error("alerting: webhook unavailable, dropping alerts",
			zap.String("run_id", runID),
			zap.Int("alerts", len(alerts)),
		)
		return 0
	}
	if err != nil {
		zap.L().Error("alerting: failed to deliver alerts",
			zap.String("run_id", runID),
			zap.Int("alerts", len(alerts)),
			zap.Error(err),
		)
		return 0
	}
	zap.L().Info("alerting: alerts delivered",
		zap.String("run_id", runID),
		zap.Int("alerts", len(alerts)),
		zap.Int("opportunities", len(top)),
	)
	return len(alerts)
}

func (n *Notifier) post(ctx context.Context, body webhookPayload) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return eris.Wrap(err, "alerting: marshal webhook payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "alerting: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "alerting: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		err := eris.Errorf("alerting: webhook returned status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return resilience.NewTransientError(err, resp.StatusCode)
		}
		return err
	}
	return nil
}
