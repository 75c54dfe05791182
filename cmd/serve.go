package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/ohss-collector/internal/api"
	"github.com/sells-group/ohss-collector/internal/metrics"
	"github.com/sells-group/ohss-collector/internal/monitoring"
	"github.com/sells-group/ohss-collector/internal/schedule"
	"github.com/sells-group/ohss-collector/internal/store"
)

var servePort int

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the read API and run scheduled collections",
	Long:  "Starts the HTTP API, the cron-triggered collector (when collector.enabled) and the health alert checker (when monitoring.enabled).",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initMigratedStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		m := metrics.New()

		var sched *schedule.Scheduler
		if cfg.Collector.Enabled {
			if sched, err = initScheduler(st, m); err != nil {
				return err
			}
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           api.NewServer(st, m, nil).Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		g, gctx := errgroup.WithContext(ctx)

		g.Go(func() error {
			zap.L().Info("starting server", zap.Int("port", port))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return eris.Wrap(err, "server listen")
			}
			return nil
		})

		g.Go(func() error {
			<-gctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})

		if sched != nil {
			g.Go(func() error { return sched.Run(gctx) })
		} else {
			zap.L().Info("scheduled collection disabled")
		}

		if cfg.Monitoring.Enabled {
			checker := monitoring.NewChecker(
				monitoring.NewCollector(st, cfg.Collector.SourceName, nil),
				monitoring.NewAlerter(cfg.Monitoring),
				cfg.Monitoring,
			)
			g.Go(func() error {
				checker.Run(gctx)
				return nil
			})
		}

		return g.Wait()
	},
}

func initScheduler(st store.Store, m *metrics.Metrics) (*schedule.Scheduler, error) {
	c, err := initCollector(st, m)
	if err != nil {
		return nil, err
	}
	return schedule.New(c, schedule.Options{
		Spec:       cfg.Schedule.Cron,
		Timezone:   cfg.Schedule.Timezone,
		RunOnStart: cfg.Schedule.RunOnStart,
	})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
