package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/ohss-collector/internal/config"
	"github.com/sells-group/ohss-collector/internal/resilience"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertConsecutiveFailures AlertType = "consecutive_failures"
	AlertStaleData           AlertType = "stale_data"
	AlertNeverSucceeded      AlertType = "never_succeeded"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Source    string         `json:"source"`
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a Snapshot against configured thresholds
// and sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
	retry  resilience.RetryConfig
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		retry: resilience.RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: 500 * time.Millisecond,
			MaxBackoff:     5 * time.Second,
			JitterFraction: 0.25,
		},
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
// Ages are measured from the snapshot's CollectedAt.
func (a *Alerter) Evaluate(snap *Snapshot) []Alert {
	var alerts []Alert
	now := snap.CollectedAt

	if a.cfg.MaxConsecutiveFailures > 0 && snap.ConsecutiveFailures >= a.cfg.MaxConsecutiveFailures {
		alerts = append(alerts, Alert{
			Source:   snap.SourceName,
			Type:     AlertConsecutiveFailures,
			Severity: "high",
			Message: fmt.Sprintf(
				"%s collection failed %d times in a row (threshold %d): %s",
				snap.SourceName, snap.ConsecutiveFailures, a.cfg.MaxConsecutiveFailures, snap.LastError,
			),
			Details: map[string]any{
				"consecutive_failures": snap.ConsecutiveFailures,
				"threshold":            a.cfg.MaxConsecutiveFailures,
				"last_error":           snap.LastError,
			},
			Timestamp: now,
		})
	}

	switch {
	case snap.LastSuccess == nil:
		if snap.Runs > 0 {
			alerts = append(alerts, Alert{
				Source:   snap.SourceName,
				Type:     AlertNeverSucceeded,
				Severity: "high",
				Message: fmt.Sprintf(
					"%s has no successful collection in the last %d runs",
					snap.SourceName, snap.Runs,
				),
				Details: map[string]any{
					"runs":   snap.Runs,
					"failed": snap.Failed,
				},
				Timestamp: now,
			})
		}
	case a.cfg.StaleAfterHours > 0:
		age := now.Sub(*snap.LastSuccess)
		limit := time.Duration(a.cfg.StaleAfterHours) * time.Hour
		if age > limit {
			alerts = append(alerts, Alert{
				Source:   snap.SourceName,
				Type:     AlertStaleData,
				Severity: "medium",
				Message: fmt.Sprintf(
					"%s data is %.1fh old, exceeding %dh",
					snap.SourceName, age.Hours(), a.cfg.StaleAfterHours,
				),
				Details: map[string]any{
					"last_success":      snap.LastSuccess.Format(time.RFC3339),
					"age_hours":         age.Hours(),
					"stale_after_hours": a.cfg.StaleAfterHours,
				},
				Timestamp: now,
			})
		}
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL, retrying
// transient webhook failures. Returns the number of alerts delivered.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		retry := a.retry
		retry.OnRetry = resilience.RetryLogger("webhook", string(alert.Type))
		_, err := resilience.Do(ctx, retry, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, a.post(ctx, alert)
		})
		if err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

func (a *Alerter) post(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close() //nolint:errcheck
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return &resilience.StatusError{URL: a.cfg.WebhookURL, StatusCode: resp.StatusCode}
	}
	return nil
}
