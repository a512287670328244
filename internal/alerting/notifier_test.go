package alerting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nichewatch/nichewatch/internal/model"
)

func testAlert(productID string) model.Alert {
	return model.Alert{
		Type:      model.AlertVelocitySpike,
		Platform:  "gumroad",
		ProductID: productID,
		RunID:     "run-1",
		Message:   "spiking",
		CreatedAt: time.Now().UTC(),
	}
}

func testOpportunity(productID string, score float64) model.Opportunity {
	return model.Opportunity{
		Platform:   "gumroad",
		ProductID:  productID,
		RunID:      "run-1",
		Score:      score,
		Confidence: model.ConfidenceMed,
		Reason:     "strong velocity",
		ComputedAt: time.Now().UTC(),
	}
}

func TestNotifier_Send(t *testing.T) {
	var received webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.WebhookURL = srv.URL
	n := NewNotifier(cfg)

	alerts := []model.Alert{testAlert("alpha"), testAlert("beta")}
	opps := []model.Opportunity{testOpportunity("alpha", 0.9), testOpportunity("beta", 0.7)}

	sent := n.Send(context.Background(), "run-1", alerts, opps)
	assert.Equal(t, 2, sent)
	assert.Equal(t, "run-1", received.RunID)
	require.Len(t, received.Alerts, 2)
	assert.Equal(t, "alpha", received.Alerts[0].ProductID)
	assert.Equal(t, "beta", received.Alerts[1].ProductID)
	require.Len(t, received.TopOpportunities, 2)
	assert.Equal(t, "alpha", received.TopOpportunities[0].ProductID)
}

func TestNotifier_CapsOpportunities(t *testing.T) {
	var received webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.WebhookURL = srv.URL
	n := NewNotifier(cfg)

	opps := make([]model.Opportunity, 15)
	for i := range opps {
		opps[i] = testOpportunity("p", 1.0-float64(i)/20)
	}

	sent := n.Send(context.Background(), "run-1", []model.Alert{testAlert("alpha")}, opps)
	assert.Equal(t, 1, sent)
	assert.Len(t, received.TopOpportunities, maxNotifiedOpportunities)
}

func TestNotifier_ServerErrorRetriedNotFatal(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.WebhookURL = srv.URL
	n := NewNotifier(cfg)
	n.retry.InitialBackoff = time.Millisecond
	n.retry.MaxBackoff = time.Millisecond

	sent := n.Send(context.Background(), "run-1", []model.Alert{testAlert("alpha")}, nil)
	assert.Equal(t, 0, sent)
	// 502 is transient, so the post is retried to exhaustion.
	assert.Equal(t, 3, requests)
}

func TestNotifier_ClientErrorNotRetried(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.WebhookURL = srv.URL
	n := NewNotifier(cfg)

	sent := n.Send(context.Background(), "run-1", []model.Alert{testAlert("alpha")}, nil)
	assert.Equal(t, 0, sent)
	assert.Equal(t, 1, requests)
}

func TestNotifier_OpenBreakerStopsPosting(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.WebhookURL = srv.URL
	n := NewNotifier(cfg)
	n.retry.MaxAttempts = 1

	alerts := []model.Alert{testAlert("alpha")}
	for i := 0; i < 7; i++ {
		assert.Equal(t, 0, n.Send(context.Background(), "run-1", alerts, nil))
	}
	// The breaker opens after five failed deliveries and later sends are
	// dropped without hitting the webhook.
	assert.Equal(t, 5, requests)
}

func TestNotifier_NoWebhookConfigured(t *testing.T) {
	n := NewNotifier(DefaultConfig())
	assert.Equal(t, 0, n.Send(context.Background(), "run-1", []model.Alert{testAlert("alpha")}, nil))
}
