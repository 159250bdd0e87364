package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/segyhp/mediatheque/internal/config"
	"github.com/segyhp/mediatheque/internal/domain"
)

const (
	JobOverdueSweep       = "overdue-sweep"
	JobSubscriptionNotice = "subscription-notice"
)

// Jobs is the work the scheduler triggers
type Jobs interface {
	OverdueSweep(ctx context.Context) (domain.SweepReport, error)
	NotifyExpiringSubscriptions(ctx context.Context) (domain.NoticeReport, error)
}

type Scheduler struct {
	cron   *cron.Cron
	jobs   Jobs
	locker Locker
	ttl    time.Duration
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// New registers the overdue sweep and the subscription notices on a cron
// running in loc. A job still running when its next tick fires is skipped.
func New(cfg config.SchedulerConfig, loc *time.Location, jobs Jobs, locker Locker, logger *slog.Logger) (*Scheduler, error) {
	cronLog := cronLogger{logger: logger}
	ctx, cancel := context.WithCancel(context.Background())

	s := &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(loc),
			cron.WithLogger(cronLog),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
		jobs:   jobs,
		locker: locker,
		ttl:    cfg.LockTTL,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}

	if _, err := s.cron.AddFunc(cfg.OverdueSweepCron, func() { s.Run(s.ctx, JobOverdueSweep) }); err != nil {
		cancel()
		return nil, fmt.Errorf("scheduling %s: %w", JobOverdueSweep, err)
	}
	if _, err := s.cron.AddFunc(cfg.SubscriptionNoticeCron, func() { s.Run(s.ctx, JobSubscriptionNotice) }); err != nil {
		cancel()
		return nil, fmt.Errorf("scheduling %s: %w", JobSubscriptionNotice, err)
	}

	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop cancels running jobs and waits for them until ctx expires
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	s.cancel()

	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run executes one job under its lease. It returns false when the job did
// not run, because it is unknown or its lease is held elsewhere.
func (s *Scheduler) Run(ctx context.Context, name string) bool {
	logger := s.logger.With("job", name)

	work, ok := s.work(name)
	if !ok {
		logger.ErrorContext(ctx, "unknown job")
		return false
	}

	token, ok, err := s.locker.Acquire(ctx, name, s.ttl)
	if err != nil {
		logger.ErrorContext(ctx, "lease unavailable", "error", err)
		return false
	}
	if !ok {
		logger.InfoContext(ctx, "job already running on another replica")
		return false
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.locker.Release(releaseCtx, name, token); err != nil {
			logger.Warn("lease release failed", "error", err)
		}
	}()

	jobCtx, cancel := context.WithTimeout(ctx, s.ttl)
	defer cancel()

	start := time.Now()
	report, err := work(jobCtx)
	if err != nil {
		logger.ErrorContext(ctx, "job failed", "error", err, "duration_ms", time.Since(start).Milliseconds())
		return true
	}

	logger.InfoContext(ctx, "job finished", "report", report, "duration_ms", time.Since(start).Milliseconds())
	return true
}

func (s *Scheduler) work(name string) (func(ctx context.Context) (interface{}, error), bool) {
	switch name {
	case JobOverdueSweep:
		return func(ctx context.Context) (interface{}, error) { return s.jobs.OverdueSweep(ctx) }, true
	case JobSubscriptionNotice:
		return func(ctx context.Context) (interface{}, error) { return s.jobs.NotifyExpiringSubscriptions(ctx) }, true
	default:
		return nil, false
	}
}

// cronLogger routes robfig/cron's own logging to slog
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
