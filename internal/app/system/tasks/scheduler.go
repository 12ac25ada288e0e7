// Package tasks runs background jobs on cron schedules.
package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/crewfund/crew/internal/app/system/timeouts"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job is a named unit of background work.
type Job struct {
	Name string
	// Schedule is a standard five-field cron spec or a descriptor such as
	// "@every 1h".
	Schedule string
	// Timeout bounds one run. Zero uses timeouts.Batch().
	Timeout time.Duration
	Run     func(ctx context.Context) error
}

// Scheduler wraps a cron runner. A job still running when its next tick
// arrives is skipped, and a panicking job is logged and recovered.
type Scheduler struct {
	cron *cron.Cron
	log  *zap.Logger

	mu     sync.Mutex
	jobs   map[string]Job
	base   context.Context
	cancel context.CancelFunc
}

func NewScheduler(log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	cl := cronLogger{log.Named("cron").Sugar()}
	base, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		log:    log,
		jobs:   make(map[string]Job),
		base:   base,
		cancel: cancel,
	}
}

// Add registers j. Names must be unique.
func (s *Scheduler) Add(j Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.jobs[j.Name]; dup {
		return fmt.Errorf("tasks: duplicate job %q", j.Name)
	}
	if _, err := s.cron.AddFunc(j.Schedule, func() { _ = s.run(s.base, j) }); err != nil {
		return fmt.Errorf("tasks: job %q: bad schedule %q: %w", j.Name, j.Schedule, err)
	}
	s.jobs[j.Name] = j
	s.log.Info("scheduled job", zap.String("job", j.Name), zap.String("schedule", j.Schedule))
	return nil
}

// RunNow runs a registered job immediately on the caller's goroutine.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	j, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("tasks: unknown job %q", name)
	}
	return s.run(ctx, j)
}

// Jobs returns the registered job names.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		out = append(out, name)
	}
	return out
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels running jobs and waits for them to return or for ctx to end.
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

func (s *Scheduler) run(parent context.Context, j Job) error {
	timeout := j.Timeout
	if timeout <= 0 {
		timeout = timeouts.Batch()
	}
	ctx, cancel := timeouts.WithTimeout(parent, timeout, s.log, "job."+j.Name)
	defer cancel()

	start := time.Now()
	err := j.Run(ctx)
	if err != nil {
		s.log.Error("job failed", zap.String("job", j.Name), zap.Duration("took", time.Since(start)), zap.Error(err))
		return err
	}
	s.log.Debug("job finished", zap.String("job", j.Name), zap.Duration("took", time.Since(start)))
	return nil
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
