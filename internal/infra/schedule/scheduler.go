package schedule

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs named jobs on cron specs. A run still in progress when the
// next tick fires is skipped.
type Scheduler struct {
	Logger  *slog.Logger
	Timeout time.Duration

	once sync.Once
	cron *cron.Cron

	mu  sync.RWMutex
	ctx context.Context
}

func New(logger *slog.Logger, timeout time.Duration) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{Logger: logger, Timeout: timeout}
}

func (s *Scheduler) init() {
	s.once.Do(func() {
		if s.Logger == nil {
			s.Logger = slog.Default()
		}
		logger := cronLogger{s.Logger}
		s.cron = cron.New(
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		)
		s.ctx = context.Background()
	})
}

// Add registers fn under spec (standard five-field syntax or descriptors such as "@every 15m").
func (s *Scheduler) Add(name, spec string, fn func(ctx context.Context) error) error {
	s.init()
	_, err := s.cron.AddFunc(spec, func() {
		s.mu.RLock()
		base := s.ctx
		s.mu.RUnlock()
		ctx := base
		if s.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(base, s.Timeout)
			defer cancel()
		}
		start := time.Now()
		if err := fn(ctx); err != nil {
			s.Logger.Error("scheduled job failed", "job", name, "duration", time.Since(start), "err", err)
			return
		}
		s.Logger.Info("scheduled job finished", "job", name, "duration", time.Since(start))
	})
	return err
}

// Run starts the scheduler and blocks until ctx is done, then waits for running jobs.
func (s *Scheduler) Run(ctx context.Context) error {
	s.init()
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()
	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
	return nil
}

func (s *Scheduler) Len() int {
	s.init()
	return len(s.cron.Entries())
}

type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error("cron: "+msg, append(keysAndValues, "err", err)...)
}

var _ cron.Logger = cronLogger{}
