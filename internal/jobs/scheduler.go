package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"talkify/api/internal/config"
	"talkify/api/internal/service"
)

const (
	chatResyncLock    = "jobs:chat-resync"
	chatResyncTimeout = 5 * time.Minute
)

type Resyncer interface {
	ResyncStale(ctx context.Context, limit int) (service.ResyncReport, error)
}

// Locker keeps replicas from running the same job at once.
type Locker interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (func(context.Context), bool, error)
}

type Scheduler struct {
	cron     *cron.Cron
	resyncer Resyncer
	locker   Locker
	cfg      config.JobsConfig
	log      zerolog.Logger
}

func NewScheduler(resyncer Resyncer, locker Locker, cfg config.JobsConfig, log zerolog.Logger) *Scheduler {
	log = log.With().Str("component", "scheduler").Logger()
	c := cron.New(
		cron.WithSeconds(),
		cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(&log))),
	)
	return &Scheduler{
		cron:     c,
		resyncer: resyncer,
		locker:   locker,
		cfg:      cfg,
		log:      log,
	}
}

// Start registers the jobs and starts the cron loop. An empty schedule
// disables the chat resync.
func (s *Scheduler) Start() error {
	if s.cfg.ChatResyncSchedule == "" {
		s.log.Info().Msg("chat resync disabled")
		return nil
	}

	if _, err := s.cron.AddFunc(s.cfg.ChatResyncSchedule, func() {
		s.RunChatResync(context.Background())
	}); err != nil {
		return err
	}

	s.cron.Start()
	s.log.Info().Str("schedule", s.cfg.ChatResyncSchedule).Msg("scheduler started")
	return nil
}

// Stop halts the cron loop. The returned context is done once running
// jobs have finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) RunChatResync(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, chatResyncTimeout)
	defer cancel()

	if s.locker != nil {
		release, acquired, err := s.locker.Acquire(ctx, chatResyncLock, chatResyncTimeout)
		if err != nil {
			s.log.Error().Err(err).Msg("acquire chat resync lock failed")
			return
		}
		if !acquired {
			s.log.Debug().Msg("chat resync running elsewhere")
			return
		}
		defer release(context.WithoutCancel(ctx))
	}

	start := time.Now()
	report, err := s.resyncer.ResyncStale(ctx, s.cfg.ChatResyncBatch)
	if err != nil {
		s.log.Error().Err(err).Msg("chat resync failed")
		return
	}

	event := s.log.Info()
	if report.Failed > 0 {
		event = s.log.Warn()
	}
	event.
		Int("synced", report.Synced).
		Int("failed", report.Failed).
		Dur("took", time.Since(start)).
		Msg("chat resync finished")
}
