package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	applogger "AaveRisk/pkg/logger"
)

// Task is a scheduled unit of work. The context is cancelled on Stop.
type Task func(ctx context.Context)

// Scheduler runs named cron tasks (with a seconds field) in UTC.
type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	logger *applogger.Logger
	names  map[cron.EntryID]string
}

// Option configures Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger.
func WithLogger(l *applogger.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a scheduler; tasks that panic are recovered and logged by cron.
func New(opts ...Option) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		ctx:    ctx,
		cancel: cancel,
		logger: applogger.Nop(),
		names:  make(map[cron.EntryID]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cron = cron.New(
		cron.WithSeconds(),
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.Recover(cronLogger{s.logger})),
	)
	return s
}

// Register adds a named task on a six-field cron spec.
func (s *Scheduler) Register(name, spec string, task Task) error {
	id, err := s.cron.AddFunc(spec, func() {
		start := time.Now()
		s.logger.Info("scheduled task started", applogger.String("task", name))
		task(s.ctx)
		s.logger.Info("scheduled task finished",
			applogger.String("task", name),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	})
	if err != nil {
		return fmt.Errorf("register %s task: %w", name, err)
	}
	s.names[id] = name
	s.logger.Info("scheduled task registered", applogger.String("task", name), applogger.String("spec", spec))
	return nil
}

// Next returns the next activation time of a registered task.
func (s *Scheduler) Next(name string) (time.Time, bool) {
	for _, e := range s.cron.Entries() {
		if s.names[e.ID] == name {
			return e.Next, true
		}
	}
	return time.Time{}, false
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", applogger.Int("tasks", len(s.names)))
}

// Stop cancels running tasks and waits for them until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
}

type cronLogger struct {
	l *applogger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug("cron: "+msg, applogger.Any("kv", keysAndValues))
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error("cron: "+msg, applogger.Error(err), applogger.Any("kv", keysAndValues))
}
