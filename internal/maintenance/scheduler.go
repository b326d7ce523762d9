// Package maintenance runs wishd's periodic background jobs: rate
// window replenishment, tracker and session sweeps, presence liveness
// checks, and abuse record decay.
package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"wishd/internal/metrics"
)

// Jobs names the work the scheduler drives. Each hook is optional; a
// nil hook simply never runs.
type Jobs struct {
	ReplenishRate func(ctx context.Context, now time.Time) error
	SweepTrackers func(ctx context.Context, now time.Time) (int64, error)
	SweepSessions func(ctx context.Context, now time.Time) (int64, error)
	SweepPresence func(now time.Time) int
	DecayAbuse    func(ctx context.Context, now time.Time) (int64, error)
}

// Config holds the cadence of each job.
type Config struct {
	ReplenishEvery     time.Duration
	TrackerSweepEvery  time.Duration
	PresenceSweepEvery time.Duration
	SessionSweepEvery  time.Duration
	AbuseDecayEvery    time.Duration
	JobTimeout         time.Duration
}

// DefaultConfig returns the standard maintenance cadence.
func DefaultConfig() Config {
	return Config{
		ReplenishEvery:     30 * time.Second,
		TrackerSweepEvery:  time.Minute,
		PresenceSweepEvery: time.Minute,
		SessionSweepEvery:  6 * time.Hour,
		AbuseDecayEvery:    24 * time.Hour,
		JobTimeout:         time.Minute,
	}
}

// Scheduler owns the cron runner and serializes lifecycle transitions.
type Scheduler struct {
	cfg  Config
	jobs Jobs
	log  *slog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

// NewScheduler creates a stopped scheduler.
func NewScheduler(cfg Config, jobs Jobs, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		cfg:  cfg,
		jobs: jobs,
		log:  log.With("component", "maintenance"),
		cron: cron.New(),
	}
}

// Start registers all configured jobs and begins running them. The
// scheduler stops itself when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	type entry struct {
		name  string
		every time.Duration
		run   func(context.Context, time.Time) error
	}
	entries := []entry{
		{"rate_replenish", s.cfg.ReplenishEvery, s.replenishRate},
		{"tracker_sweep", s.cfg.TrackerSweepEvery, s.sweepTrackers},
		{"presence_sweep", s.cfg.PresenceSweepEvery, s.sweepPresence},
		{"session_sweep", s.cfg.SessionSweepEvery, s.sweepSessions},
		{"abuse_decay", s.cfg.AbuseDecayEvery, s.decayAbuse},
	}

	for _, e := range entries {
		if e.every <= 0 {
			return fmt.Errorf("maintenance: non-positive interval for %s", e.name)
		}
		name, run := e.name, e.run
		spec := "@every " + e.every.String()
		_, err := s.cron.AddFunc(spec, func() { s.runJob(ctx, name, run) })
		if err != nil {
			return fmt.Errorf("maintenance: schedule %s: %w", name, err)
		}
	}

	s.cron.Start()
	s.running = true
	s.log.Info("maintenance.start",
		"replenish_every", s.cfg.ReplenishEvery,
		"tracker_sweep_every", s.cfg.TrackerSweepEvery,
		"presence_sweep_every", s.cfg.PresenceSweepEvery,
		"session_sweep_every", s.cfg.SessionSweepEvery,
		"abuse_decay_every", s.cfg.AbuseDecayEvery,
	)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// Stop halts scheduling and waits for in-flight jobs.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.running = false
	s.log.Info("maintenance.stop")
}

// IsRunning reports whether the scheduler has been started.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// runJob wraps a job with a timeout, failure logging, and a duration
// observation. Job failures never stop the schedule.
func (s *Scheduler) runJob(ctx context.Context, name string, run func(context.Context, time.Time) error) {
	jobCtx, cancel := context.WithTimeout(ctx, s.cfg.JobTimeout)
	defer cancel()

	start := time.Now()
	err := run(jobCtx, start.UTC())
	metrics.MaintenanceDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		s.log.Error("maintenance.job.fail", "job", name, "err", err)
	}
}

func (s *Scheduler) replenishRate(ctx context.Context, now time.Time) error {
	if s.jobs.ReplenishRate == nil {
		return nil
	}
	return s.jobs.ReplenishRate(ctx, now)
}

func (s *Scheduler) sweepTrackers(ctx context.Context, now time.Time) error {
	if s.jobs.SweepTrackers == nil {
		return nil
	}
	n, err := s.jobs.SweepTrackers(ctx, now)
	if err == nil && n > 0 {
		s.log.Debug("maintenance.tracker_sweep", "deleted", n)
	}
	return err
}

func (s *Scheduler) sweepSessions(ctx context.Context, now time.Time) error {
	if s.jobs.SweepSessions == nil {
		return nil
	}
	n, err := s.jobs.SweepSessions(ctx, now)
	if err == nil && n > 0 {
		s.log.Info("maintenance.session_sweep", "deleted", n)
	}
	return err
}

func (s *Scheduler) sweepPresence(_ context.Context, now time.Time) error {
	if s.jobs.SweepPresence == nil {
		return nil
	}
	if n := s.jobs.SweepPresence(now); n > 0 {
		s.log.Info("maintenance.presence_sweep", "closed", n)
	}
	return nil
}

func (s *Scheduler) decayAbuse(ctx context.Context, now time.Time) error {
	if s.jobs.DecayAbuse == nil {
		return nil
	}
	n, err := s.jobs.DecayAbuse(ctx, now)
	if err == nil && n > 0 {
		s.log.Info("maintenance.abuse_decay", "deleted", n)
	}
	return err
}
