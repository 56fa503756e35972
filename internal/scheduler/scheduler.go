// Package scheduler triggers the relay cycle on a cron schedule. It is a
// thin wrapper over robfig/cron: one job, one spec, per-run timeout.
package scheduler

import (
	"context"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	logx "restockbot/pkg/logx"
)

// Job is one run of the scheduled work. The context carries the per-run
// timeout; the job must respect it.
type Job func(ctx context.Context) error

type Scheduler struct {
	parser cron.Parser
	c      *cron.Cron

	spec    string
	timeout time.Duration
	job     Job
	log     logx.Logger

	baseCtx context.Context
	cancel  context.CancelFunc
}

// New builds a scheduler for a single job. spec accepts standard cron
// expressions (optional seconds field) and descriptors like "@every 10s".
func New(spec string, timeout time.Duration, job Job, log logx.Logger) (*Scheduler, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Scheduler{
		parser: cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour |
			cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		spec:    strings.TrimSpace(spec),
		timeout: timeout,
		job:     job,
		log:     log,
	}
	// Validate up front so a bad spec fails at startup, not at first tick.
	if _, err := s.parser.Parse(s.spec); err != nil {
		return nil, err
	}
	return s, nil
}

// Start begins ticking. Runs stop when ctx dies or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.baseCtx, s.cancel = context.WithCancel(ctx)

	s.c = cron.New(cron.WithParser(s.parser), cron.WithLocation(time.UTC))
	if _, err := s.c.AddFunc(s.spec, s.run); err != nil {
		s.cancel()
		return err
	}
	s.c.Start()
	s.log.Info("scheduler started", logx.String("spec", s.spec),
		logx.Duration("run_timeout", s.timeout))
	return nil
}

func (s *Scheduler) run() {
	ctx := s.baseCtx
	if ctx.Err() != nil {
		return
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	if err := s.job(ctx); err != nil {
		s.log.Error("scheduled run failed", logx.Err(err),
			logx.Duration("took", time.Since(start)))
		return
	}
	s.log.Debug("scheduled run complete", logx.Duration("took", time.Since(start)))
}

// Stop halts ticking and waits for an in-flight run's cron goroutine to
// return. The run's context is cancelled so it cannot linger.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.c != nil {
		<-s.c.Stop().Done()
	}
	s.log.Info("scheduler stopped")
}
