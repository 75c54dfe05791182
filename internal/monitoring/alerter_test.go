package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/ohss-collector/internal/config"
)

func testMonitoringConfig() config.MonitoringConfig {
	return config.MonitoringConfig{StaleAfterHours: 48, MaxConsecutiveFailures: 3}
}

func timePtr(t time.Time) *time.Time { return &t }

func TestAlerter_Evaluate_Healthy(t *testing.T) {
	a := NewAlerter(testMonitoringConfig())
	snap := &Snapshot{
		SourceName:  "OHSS",
		Runs:        5,
		Succeeded:   5,
		LastSuccess: timePtr(checkNow.Add(-2 * time.Hour)),
		CollectedAt: checkNow,
	}
	assert.Empty(t, a.Evaluate(snap))
}

func TestAlerter_Evaluate_ConsecutiveFailures(t *testing.T) {
	a := NewAlerter(testMonitoringConfig())
	snap := &Snapshot{
		SourceName:          "OHSS",
		Runs:                4,
		Failed:              3,
		ConsecutiveFailures: 3,
		LastError:           "listing 503",
		LastSuccess:         timePtr(checkNow.Add(-10 * time.Hour)),
		CollectedAt:         checkNow,
	}

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertConsecutiveFailures, alerts[0].Type)
	assert.Equal(t, "high", alerts[0].Severity)
	assert.Contains(t, alerts[0].Message, "3 times in a row")
	assert.Contains(t, alerts[0].Message, "listing 503")
	assert.Equal(t, checkNow, alerts[0].Timestamp)
}

func TestAlerter_Evaluate_StaleData(t *testing.T) {
	a := NewAlerter(testMonitoringConfig())
	snap := &Snapshot{
		SourceName:  "OHSS",
		Runs:        1,
		Succeeded:   1,
		LastSuccess: timePtr(checkNow.Add(-72 * time.Hour)),
		CollectedAt: checkNow,
	}

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertStaleData, alerts[0].Type)
	assert.Contains(t, alerts[0].Message, "72.0h old")
}

func TestAlerter_Evaluate_NeverSucceeded(t *testing.T) {
	a := NewAlerter(testMonitoringConfig())
	snap := &Snapshot{
		SourceName:          "OHSS",
		Runs:                5,
		Failed:              5,
		ConsecutiveFailures: 5,
		CollectedAt:         checkNow,
	}

	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 2)
	assert.Equal(t, AlertConsecutiveFailures, alerts[0].Type)
	assert.Equal(t, AlertNeverSucceeded, alerts[1].Type)
}

func TestAlerter_Evaluate_NoHistory(t *testing.T) {
	a := NewAlerter(testMonitoringConfig())
	assert.Empty(t, a.Evaluate(&Snapshot{CollectedAt: checkNow}))
}

func TestAlerter_Evaluate_ZeroThresholdsDisable(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{})
	snap := &Snapshot{
		Runs:                10,
		ConsecutiveFailures: 9,
		LastSuccess:         timePtr(checkNow.Add(-1000 * time.Hour)),
		CollectedAt:         checkNow,
	}
	assert.Empty(t, a.Evaluate(snap))
}

func TestAlerter_SendAlerts_Webhook(t *testing.T) {
	var received atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var alert Alert
		err := json.NewDecoder(r.Body).Decode(&alert)
		require.NoError(t, err)
		assert.NotEmpty(t, alert.Type)
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	a := NewAlerter(config.MonitoringConfig{WebhookURL: ts.URL})

	alerts := []Alert{
		{Type: AlertConsecutiveFailures, Severity: "high", Message: "test alert 1"},
		{Type: AlertStaleData, Severity: "medium", Message: "test alert 2"},
	}

	sent := a.SendAlerts(context.Background(), alerts)
	assert.Equal(t, 2, sent)
	assert.Equal(t, int32(2), received.Load())
}

func TestAlerter_SendAlerts_EmptyURL(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{})

	sent := a.SendAlerts(context.Background(), []Alert{
		{Type: AlertStaleData, Message: "test"},
	})
	assert.Equal(t, 0, sent)
}

func TestAlerter_SendAlerts_EmptyAlerts(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{WebhookURL: "http://example.com"})

	sent := a.SendAlerts(context.Background(), nil)
	assert.Equal(t, 0, sent)
}

func fastRetry(a *Alerter) *Alerter {
	a.retry.InitialBackoff = time.Millisecond
	a.retry.MaxBackoff = 5 * time.Millisecond
	return a
}

func TestAlerter_SendAlerts_WebhookError(t *testing.T) {
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	a := fastRetry(NewAlerter(config.MonitoringConfig{WebhookURL: ts.URL}))

	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertStaleData, Message: "test"}})
	assert.Equal(t, 0, sent)
	assert.Equal(t, int32(3), hits.Load(), "5xx is retried up to the attempt limit")
}

func TestAlerter_SendAlerts_RetriesTransient(t *testing.T) {
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	a := fastRetry(NewAlerter(config.MonitoringConfig{WebhookURL: ts.URL}))

	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertStaleData, Message: "test"}})
	assert.Equal(t, 1, sent)
	assert.Equal(t, int32(2), hits.Load())
}

func TestAlerter_SendAlerts_ClientErrorNotRetried(t *testing.T) {
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer ts.Close()

	a := fastRetry(NewAlerter(config.MonitoringConfig{WebhookURL: ts.URL}))

	assert.Equal(t, 0, a.SendAlerts(context.Background(), []Alert{{Type: AlertStaleData}}))
	assert.Equal(t, int32(1), hits.Load())
}
