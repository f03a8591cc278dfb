package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ignite/campaign-targeting/internal/pkg/distlock"
	"github.com/ignite/campaign-targeting/internal/pkg/logger"
)

// ErrRunInProgress is returned when a fleet run is requested while one is
// still going, here or on another instance.
var ErrRunInProgress = errors.New("fleet run already in progress")

const (
	// DefaultInterval is how often the fleet runs.
	DefaultInterval = time.Hour

	fleetLockKey = "fleet-run"
)

// Locker hands out named locks shared between instances.
type Locker interface {
	Lock(key string) distlock.DistLock
}

// Scheduler triggers a fleet run at every interval boundary. Runs never
// overlap: a tick that finds a run in progress is skipped.
type Scheduler struct {
	fleet    *FleetRunner
	locks    Locker
	interval time.Duration
	now      func() time.Time

	inFlight atomic.Bool

	// Stats
	runs    int64
	skipped int64
	aborted int64

	// Control
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	mu      sync.RWMutex
}

// NewScheduler creates a scheduler. locks may be nil for a single instance.
func NewScheduler(fleet *FleetRunner, locks Locker, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{fleet: fleet, locks: locks, interval: interval, now: time.Now}
}

// Start begins the scheduling loop.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already running")
	}
	s.running = true
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.mu.Unlock()

	logger.Info("Fleet scheduler starting", "interval", s.interval.String(), "next", s.nextRun(s.now()).Format(time.RFC3339))

	s.wg.Add(1)
	go s.loop()
	return nil
}

// Stop cancels the loop, including a run in progress, and waits for it.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	logger.Info("Fleet scheduler stopped", "runs", atomic.LoadInt64(&s.runs), "skipped", atomic.LoadInt64(&s.skipped))
}

// IsRunning reports whether the loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Stats returns run counters.
func (s *Scheduler) Stats() map[string]int64 {
	return map[string]int64{
		"runs":    atomic.LoadInt64(&s.runs),
		"skipped": atomic.LoadInt64(&s.skipped),
		"aborted": atomic.LoadInt64(&s.aborted),
	}
}

func (s *Scheduler) loop() {
	defer s.wg.Done()

	timer := time.NewTimer(s.nextRun(s.now()).Sub(s.now()))
	defer timer.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-timer.C:
			if _, err := s.RunNow(s.ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Scheduled fleet run failed", "error", err)
			}
			timer.Reset(s.nextRun(s.now()).Sub(s.now()))
		}
	}
}

// nextRun is the first interval boundary after now.
func (s *Scheduler) nextRun(now time.Time) time.Time {
	return now.Truncate(s.interval).Add(s.interval)
}

// RunNow performs a fleet run unless one is already in progress.
func (s *Scheduler) RunNow(ctx context.Context) (*FleetSummary, error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		atomic.AddInt64(&s.skipped, 1)
		logger.Warn("Skipping fleet run, previous run still in progress")
		return nil, ErrRunInProgress
	}
	defer s.inFlight.Store(false)

	if s.locks != nil {
		lock := s.locks.Lock(fleetLockKey)
		ok, err := lock.Acquire(ctx)
		if err != nil {
			return nil, fmt.Errorf("acquiring fleet lock: %w", err)
		}
		if !ok {
			atomic.AddInt64(&s.skipped, 1)
			logger.Info("Fleet run held by another instance")
			return nil, ErrRunInProgress
		}
		defer func() {
			rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = lock.Release(rctx)
		}()
	}

	summary, err := s.fleet.Run(ctx)
	if err != nil {
		atomic.AddInt64(&s.aborted, 1)
		return nil, err
	}
	atomic.AddInt64(&s.runs, 1)
	return summary, nil
}
