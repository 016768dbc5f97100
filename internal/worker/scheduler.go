package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	wlog "wastewise/internal/log"
)

// SchedulerConfig holds the periodic job intervals.
type SchedulerConfig struct {
	// SyncInterval is how often the pending sweep runs (default: 30s)
	SyncInterval time.Duration

	// RefreshInterval is how often the challenge catalogue is pulled (default: 15m)
	RefreshInterval time.Duration
}

// DefaultSchedulerConfig returns sensible defaults
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		SyncInterval:    30 * time.Second,
		RefreshInterval: 15 * time.Minute,
	}
}

// Jobs are the periodic tasks a Scheduler drives.
type Jobs interface {
	ProcessPendingEntries(ctx context.Context) error
	RefreshChallenges(ctx context.Context) error
}

// Scheduler runs the pending sweep and the catalogue refresh on tickers.
type Scheduler struct {
	jobs   Jobs
	config SchedulerConfig

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewScheduler(jobs Jobs, config SchedulerConfig) *Scheduler {
	def := DefaultSchedulerConfig()
	if config.SyncInterval <= 0 {
		config.SyncInterval = def.SyncInterval
	}
	if config.RefreshInterval <= 0 {
		config.RefreshInterval = def.RefreshInterval
	}
	return &Scheduler{jobs: jobs, config: config}
}

// Start begins the loop. Returns an error if already running.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("scheduler is already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})

	go s.runLoop(ctx, s.stopCh, s.doneCh)

	slog.InfoContext(ctx, "Scheduler started",
		wlog.FieldComponent, wlog.ComponentWorker,
		wlog.FieldOperation, wlog.OpStartup,
		"sync_interval", s.config.SyncInterval,
		"refresh_interval", s.config.RefreshInterval)
	return nil
}

// Stop signals the loop and waits for the job in flight to finish.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	stopCh, doneCh := s.stopCh, s.doneCh
	s.running = false
	s.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Scheduler stopped gracefully",
			wlog.FieldComponent, wlog.ComponentWorker,
			wlog.FieldOperation, wlog.OpShutdown)
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Scheduler stop timed out",
			wlog.FieldComponent, wlog.ComponentWorker,
			wlog.FieldOperation, wlog.OpShutdown,
			wlog.FieldErrorType, wlog.ErrorTypeTimeout)
		return ctx.Err()
	}
}

// IsRunning returns whether the loop is active
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) runLoop(ctx context.Context, stopCh <-chan struct{}, doneCh chan struct{}) {
	defer close(doneCh)
	defer s.finish(doneCh)

	syncTicker := time.NewTicker(s.config.SyncInterval)
	defer syncTicker.Stop()

	refreshTicker := time.NewTicker(s.config.RefreshInterval)
	defer refreshTicker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-syncTicker.C:
			if err := s.jobs.ProcessPendingEntries(ctx); err != nil {
				slog.ErrorContext(ctx, "Pending sweep failed",
					wlog.FieldComponent, wlog.ComponentWorker,
					wlog.FieldOperation, wlog.OpSync,
					wlog.FieldError, err)
			}
		case <-refreshTicker.C:
			if err := s.jobs.RefreshChallenges(ctx); err != nil {
				slog.ErrorContext(ctx, "Challenge refresh failed",
					wlog.FieldComponent, wlog.ComponentWorker,
					wlog.FieldOperation, wlog.OpRefresh,
					wlog.FieldError, err)
			}
		}
	}
}

// finish marks the scheduler stopped when its loop exits on its own, which
// happens when the start context ends. A loop from an earlier run must not
// clear the state of a newer one.
func (s *Scheduler) finish(doneCh chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doneCh == doneCh {
		s.running = false
	}
}
