package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/ohss-collector/internal/fetcher"
	"github.com/sells-group/ohss-collector/internal/metrics"
	"github.com/sells-group/ohss-collector/internal/ohss"
	"github.com/sells-group/ohss-collector/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return store.NewSQLite(cfg.Store.SQLitePath)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, cfg.Store.PoolConfig())
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initMigratedStore opens the store and brings its schema up to date.
func initMigratedStore(ctx context.Context) (store.Store, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

func initFetcher() *fetcher.HTTPFetcher {
	return fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:  cfg.Collector.UserAgent,
		Timeout:    cfg.Collector.Timeout(),
		MaxRetries: cfg.Collector.MaxRetries,
	})
}

// initCollector wires the collector from config. sink may be nil for
// discovery-only use.
func initCollector(sink store.Sink, m *metrics.Metrics) (*ohss.Collector, error) {
	schema, err := ohss.LoadSchema(cfg.Schema.AliasesFile)
	if err != nil {
		return nil, err
	}
	if cfg.Schema.AliasesFile != "" {
		zap.L().Info("loaded column aliases", zap.String("path", cfg.Schema.AliasesFile))
	}

	return ohss.NewCollector(ohss.Config{
		BaseURL:    cfg.Collector.BaseURL,
		DataPath:   cfg.Collector.DataPath,
		SourceName: cfg.Collector.SourceName,
		ArchiveDir: cfg.Collector.ArchiveDir,
		Schema:     schema,
	}, initFetcher(), sink, m), nil
}
