package ohss

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/ohss-collector/internal/fetcher"
	"github.com/sells-group/ohss-collector/internal/health"
	"github.com/sells-group/ohss-collector/internal/metrics"
	"github.com/sells-group/ohss-collector/internal/model"
	"github.com/sells-group/ohss-collector/internal/store"
)

// Default portal location.
const (
	DefaultBaseURL  = "https://ohss.dhs.gov"
	DefaultDataPath = "/topics/immigration/immigration-enforcement/monthly-tables"
)

// Config configures a Collector.
type Config struct {
	BaseURL    string
	DataPath   string
	SourceName string
	// ArchiveDir, when set, receives a copy of every downloaded file.
	ArchiveDir string
	Schema     Schema
	// Now is the clock for fallback timestamps and health records.
	Now func() time.Time
}

// Collector runs the OHSS job: discover the published files, import each in
// turn, and record one health entry per run.
type Collector struct {
	cfg      Config
	fetcher  fetcher.Fetcher
	sink     store.Sink
	importer *Importer
	reporter *health.Reporter
	metrics  *metrics.Metrics
}

// NewCollector wires a Collector. m may be nil.
func NewCollector(cfg Config, f fetcher.Fetcher, sink store.Sink, m *metrics.Metrics) *Collector {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.DataPath == "" {
		cfg.DataPath = DefaultDataPath
	}
	if cfg.SourceName == "" {
		cfg.SourceName = model.DefaultDataSource
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Collector{
		cfg:      cfg,
		fetcher:  f,
		sink:     sink,
		importer: NewImporter(cfg.Schema, cfg.SourceName, cfg.Now),
		reporter: health.NewReporter(sink, cfg.SourceName, cfg.Now),
		metrics:  m,
	}
}

// ListingURL is the page scanned for data files.
func (c *Collector) ListingURL() string {
	return strings.TrimRight(c.cfg.BaseURL, "/") + c.cfg.DataPath
}

// Discover fetches the listing page and returns the data file references on
// it without importing anything.
func (c *Collector) Discover(ctx context.Context) ([]model.DataFileReference, error) {
	listing := c.ListingURL()
	page, err := c.fetcher.Fetch(ctx, listing)
	if err != nil {
		return nil, eris.Wrapf(err, "ohss: fetch listing %s", listing)
	}
	refs, err := DiscoverLinks(page, c.cfg.BaseURL)
	if err != nil {
		return nil, eris.Wrapf(err, "ohss: read listing %s", listing)
	}
	return refs, nil
}

// Run executes one collection pass. Per-file failures are recorded in the
// result's file outcomes and never fail the run; only an unreachable listing,
// cancellation, or a panic does. Exactly one health record is appended.
func (c *Collector) Run(ctx context.Context) (res model.RunResult) {
	res.RunID = uuid.NewString()
	start := c.cfg.Now()
	log := zap.L().With(zap.String("component", "ohss.collector"), zap.String("run_id", res.RunID))

	defer func() {
		c.reporter.Report(ctx, res)
		finished := c.cfg.Now()
		c.metrics.ObserveRun(res, finished.Sub(start), finished)
	}()
	defer func() {
		if r := recover(); r != nil {
			log.Error("run aborted by panic", zap.Any("panic", r))
			res.Success = false
			res.Error = fmt.Sprintf("ohss: run panicked: %v", r)
		}
	}()

	log.Info("starting run", zap.String("listing", c.ListingURL()))

	refs, err := c.Discover(ctx)
	if err != nil {
		log.Error("run failed", zap.Error(err))
		res.Error = err.Error()
		return res
	}
	log.Info("data files discovered", zap.Int("count", len(refs)))

	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			res.Error = eris.Wrap(err, "ohss: run cancelled").Error()
			log.Warn("run cancelled", zap.Int("files_done", len(res.Files)))
			return res
		}
		out := c.processFile(ctx, ref)
		res.Files = append(res.Files, out)
		res.RecordsFetched += out.Imported
	}

	res.Success = true
	log.Info("run complete",
		zap.Int("files", len(res.Files)),
		zap.Int("records", res.RecordsFetched),
		zap.Duration("elapsed", c.cfg.Now().Sub(start)),
	)
	return res
}

// processFile fetches, parses, imports, and commits one file. Every failure
// is captured in the returned outcome.
func (c *Collector) processFile(ctx context.Context, ref model.DataFileReference) model.FileOutcome {
	out := model.FileOutcome{URL: ref.URL, Kind: ref.Kind}
	log := zap.L().With(
		zap.String("component", "ohss.collector"),
		zap.String("url", ref.URL),
		zap.String("kind", string(ref.Kind)),
	)
	fail := func(err error) model.FileOutcome {
		out.Status = model.FileFailed
		out.Imported = 0
		out.Reason = err.Error()
		log.Error("file failed", zap.Error(err))
		return out
	}

	if !ref.Kind.Importable() {
		out.Status = model.FileSkipped
		out.Reason = "unclassified file"
		log.Info("skipping unclassified file", zap.String("text", ref.DisplayText))
		return out
	}

	data, err := c.fetcher.Fetch(ctx, ref.URL)
	if err != nil {
		return fail(eris.Wrap(err, "ohss: fetch file"))
	}
	if err := c.archive(ref.URL, data); err != nil {
		log.Warn("could not archive file", zap.Error(err))
	}

	table, err := fetcher.ParseTable(ref.URL, data)
	if err != nil {
		return fail(err)
	}

	batch, err := c.importer.Import(ref.Kind, table, ref)
	if err != nil {
		return fail(err)
	}
	recs := batch.Records()
	out.RowsRead = len(table.Rows)
	out.RowsSkipped = batch.Skipped()

	if len(recs) > 0 {
		inserted, err := c.sink.CommitBatch(ctx, ref.Kind, recs)
		if err != nil {
			return fail(eris.Wrap(err, "ohss: commit batch"))
		}
		out.Inserted = inserted
	}
	out.Imported = len(recs)
	out.Status = model.FileImported

	log.Info("file imported",
		zap.Int("rows", out.RowsRead),
		zap.Int("skipped", out.RowsSkipped),
		zap.Int("imported", out.Imported),
		zap.Int64("inserted", out.Inserted),
	)
	return out
}

// archive writes data under ArchiveDir using the URL's base name.
func (c *Collector) archive(rawURL string, data []byte) error {
	if c.cfg.ArchiveDir == "" {
		return nil
	}
	name := path.Base(rawURL)
	if u, err := url.Parse(rawURL); err == nil {
		name = path.Base(u.Path)
	}
	if name == "" || name == "." || name == "/" {
		return eris.Errorf("ohss: no file name in %s", rawURL)
	}
	if err := os.MkdirAll(c.cfg.ArchiveDir, 0o755); err != nil {
		return eris.Wrap(err, "ohss: create archive dir")
	}
	dst := filepath.Join(c.cfg.ArchiveDir, filepath.Base(name))
	return eris.Wrapf(os.WriteFile(dst, data, 0o644), "ohss: archive %s", dst)
}
