// Package scheduler runs the periodic archive sweep.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const sweepTimeout = 5 * time.Minute

// Archiver writes completed batches missing from the archive.
type Archiver interface {
	ArchiveCompleted(ctx context.Context) (int, error)
}

// Scheduler manages scheduled tasks.
type Scheduler struct {
	cron     *cron.Cron
	archiver Archiver
	schedule string
	logger   *zap.Logger
}

// NewScheduler creates a scheduler running the archive sweep on schedule, a
// standard five-field cron expression. An empty schedule disables the sweep.
func NewScheduler(schedule string, archiver Archiver, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	cl := cronLogger{logger}
	c := cron.New(cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))
	return &Scheduler{
		cron:     c,
		archiver: archiver,
		schedule: schedule,
		logger:   logger,
	}
}

// Start registers the sweep and starts the cron loop.
func (s *Scheduler) Start() error {
	if s.schedule == "" {
		s.logger.Info("archive sweep disabled")
		return nil
	}
	if _, err := s.cron.AddFunc(s.schedule, s.sweep); err != nil {
		return err
	}
	s.logger.Info("starting scheduler", zap.String("schedule", s.schedule))
	s.cron.Start()
	return nil
}

// Stop stops the scheduler and waits for a running sweep to finish.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	<-s.cron.Stop().Done()
}

// RunNow performs one sweep synchronously.
func (s *Scheduler) RunNow(ctx context.Context) (int, error) {
	n, err := s.archiver.ArchiveCompleted(ctx)
	if err != nil {
		s.logger.Error("archive sweep failed", zap.Int("archived", n), zap.Error(err))
		return n, err
	}
	if n > 0 {
		s.logger.Info("archive sweep completed", zap.Int("archived", n))
	}
	return n, nil
}

func (s *Scheduler) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()
	_, _ = s.RunNow(ctx)
}

// cronLogger routes cron's own messages into zap.
type cronLogger struct {
	log *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
