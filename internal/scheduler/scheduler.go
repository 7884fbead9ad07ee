// Package scheduler runs the periodic expiration sweep of the board.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"jobboard/internal/middleware"
	"jobboard/internal/observability"

	"github.com/robfig/cron/v3"
)

// Sweeper purges expired posts and reports how many were removed.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// Scheduler wraps robfig/cron and manages the sweep loop.
type Scheduler struct {
	cron    *cron.Cron
	sweeper Sweeper
	spec    string
	job     cron.Job
	timeout time.Duration
	// tracks the startup sweep, which cron does not know about
	startup sync.WaitGroup
}

// New creates a Scheduler that sweeps on spec (e.g. "@every 1m").
func New(sweeper Sweeper, spec string) *Scheduler {
	logger := cronLogger{l: middleware.Logger}
	s := &Scheduler{
		cron:    cron.New(cron.WithLogger(logger)),
		sweeper: sweeper,
		spec:    spec,
		timeout: 30 * time.Second,
	}
	// one wrapped job shared by the startup run and the ticks, so they never overlap
	s.job = cron.NewChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)).
		Then(cron.FuncJob(s.runSweep))
	return s
}

// Start registers the job, starts the scheduler and runs one sweep
// immediately so stale posts are purged without waiting for the first tick.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddJob(s.spec, s.job); err != nil {
		return fmt.Errorf("cron.AddJob: %w", err)
	}

	s.cron.Start()
	middleware.Logger.Info("Sweep scheduler started", slog.String("spec", s.spec))

	s.startup.Add(1)
	go func() {
		defer s.startup.Done()
		s.job.Run()
	}()
	return nil
}

// Stop halts the scheduler and waits for running sweeps, the startup one
// included, to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.startup.Wait()
	middleware.Logger.Info("Sweep scheduler stopped")
}

// RunOnce performs a single sweep through the same non-overlapping job.
func (s *Scheduler) RunOnce() {
	s.job.Run()
}

func (s *Scheduler) runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	ctx = observability.WithCorrelationID(ctx, observability.GenerateCorrelationID())

	start := time.Now()
	observability.LogAsyncOperationStart(ctx, "expiration_sweep", nil)

	removed, err := s.sweeper.Sweep(ctx)
	if err != nil {
		observability.LogAsyncOperationError(ctx, "expiration_sweep", err, nil)
		return
	}

	observability.LogAsyncOperationEnd(ctx, "expiration_sweep", map[string]interface{}{
		"removed":     removed,
		"duration_ms": time.Since(start).Milliseconds(),
	})
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
