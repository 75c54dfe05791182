// Package schedule triggers collector runs on a cron schedule.
package schedule

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"github.com/robfig/cron"
	"go.uber.org/zap"

	"github.com/sells-group/ohss-collector/internal/model"
)

// Runner is the trigger target.
type Runner interface {
	Run(ctx context.Context) model.RunResult
}

// Options configures a Scheduler.
type Options struct {
	// Spec is a standard five-field cron expression or a descriptor such
	// as @daily.
	Spec       string
	Timezone   string
	RunOnStart bool
}

// Scheduler fires the runner on each tick. At most one run is active at a
// time; a tick that fires during a run is skipped.
type Scheduler struct {
	runner Runner
	opts   Options
	sched  cron.Schedule
	loc    *time.Location

	active sync.Mutex
	wg     sync.WaitGroup
}

// New parses the schedule and timezone. An empty timezone means UTC.
func New(runner Runner, opts Options) (*Scheduler, error) {
	sched, err := cron.ParseStandard(opts.Spec)
	if err != nil {
		return nil, eris.Wrapf(err, "schedule: parse %q", opts.Spec)
	}
	loc := time.UTC
	if opts.Timezone != "" {
		if loc, err = time.LoadLocation(opts.Timezone); err != nil {
			return nil, eris.Wrapf(err, "schedule: load timezone %q", opts.Timezone)
		}
	}
	return &Scheduler{runner: runner, opts: opts, sched: sched, loc: loc}, nil
}

// Next returns the first tick after t.
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.sched.Next(t.In(s.loc))
}

// Trigger runs the collector unless a run is already active. The second
// return is false when the trigger was skipped.
func (s *Scheduler) Trigger(ctx context.Context) (model.RunResult, bool) {
	log := zap.L().With(zap.String("component", "schedule"))
	if !s.active.TryLock() {
		log.Warn("schedule: run already active, skipping tick")
		return model.RunResult{}, false
	}
	defer s.active.Unlock()

	start := time.Now()
	res := s.runner.Run(ctx)
	log.Info("schedule: run finished",
		zap.String("run_id", res.RunID),
		zap.Bool("success", res.Success),
		zap.Int("records_fetched", res.RecordsFetched),
		zap.Duration("elapsed", time.Since(start)),
		zap.String("error", res.Error),
	)
	return res, true
}

// Run starts the cron loop and blocks until ctx is cancelled, then waits for
// any in-flight run to return.
func (s *Scheduler) Run(ctx context.Context) error {
	log := zap.L().With(zap.String("component", "schedule"))

	c := cron.NewWithLocation(s.loc)
	c.Schedule(s.sched, cron.FuncJob(func() { s.spawn(ctx) }))
	c.Start()

	log.Info("schedule: started",
		zap.String("spec", s.opts.Spec),
		zap.String("timezone", s.loc.String()),
		zap.Time("next", s.Next(time.Now())),
	)

	if s.opts.RunOnStart {
		s.spawn(ctx)
	}

	<-ctx.Done()
	c.Stop()
	s.wg.Wait()
	log.Info("schedule: stopped")
	return nil
}

func (s *Scheduler) spawn(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.Trigger(ctx)
	}()
}
