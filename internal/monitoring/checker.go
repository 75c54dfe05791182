package monitoring

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/ohss-collector/internal/config"
)

// Checker evaluates collection health on an interval. An alert is delivered
// when its condition first appears and again only after it has cleared.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	cfg       config.MonitoringConfig

	mu     sync.Mutex
	firing map[AlertType]bool
}

// NewChecker creates a background alert checker.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	return &Checker{
		collector: collector,
		alerter:   alerter,
		cfg:       cfg,
		firing:    make(map[AlertType]bool),
	}
}

// Run checks once immediately and then on every tick. It blocks until ctx
// is cancelled.
func (c *Checker) Run(ctx context.Context) {
	interval := time.Duration(c.cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = 15 * time.Minute
	}

	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("starting alert checker",
		zap.Duration("interval", interval),
		zap.Int("lookback_runs", c.cfg.LookbackRuns),
	)

	if ctx.Err() == nil {
		c.Check(ctx)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("alert checker stopped")
			return
		case <-ticker.C:
			c.Check(ctx)
		}
	}
}

// Check evaluates one snapshot and sends the alerts that were not already
// firing. It returns every alert currently triggered.
func (c *Checker) Check(ctx context.Context) []Alert {
	log := zap.L().With(zap.String("component", "monitoring.checker"))

	snap, err := c.collector.Collect(ctx, c.cfg.LookbackRuns)
	if err != nil {
		log.Error("monitoring: failed to collect snapshot", zap.Error(err))
		return nil
	}
	alerts := c.alerter.Evaluate(snap)

	c.mu.Lock()
	current := make(map[AlertType]bool, len(alerts))
	var fresh []Alert
	for _, a := range alerts {
		current[a.Type] = true
		if !c.firing[a.Type] {
			fresh = append(fresh, a)
		}
	}
	for t := range c.firing {
		if !current[t] {
			log.Info("monitoring: alert cleared", zap.String("type", string(t)))
		}
	}
	c.firing = current
	c.mu.Unlock()

	if len(fresh) == 0 {
		log.Debug("monitoring: no new alerts", zap.Int("firing", len(alerts)))
		return alerts
	}

	sent := c.alerter.SendAlerts(ctx, fresh)
	log.Info("monitoring: alert check complete",
		zap.Int("alerts_firing", len(alerts)),
		zap.Int("alerts_new", len(fresh)),
		zap.Int("alerts_sent", sent),
	)
	return alerts
}
