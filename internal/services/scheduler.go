package services

import (
	"context"
	"sync"
	"time"

	"auction-core/internal/domain"
	"auction-core/pkg/logger"
)

// TimerScheduler fires exactly-once closure callbacks at auction end times.
// It owns a process-wide registry of one-shot timers keyed by auction id and a
// bounded worker pool that executes fired closures. The registry survives
// restarts through Recover, which reschedules every open auction with a future
// end time.
type TimerScheduler struct {
	auctionRepo domain.AuctionRepository
	closer      domain.AuctionCloser
	grace       time.Duration
	log         logger.Logger

	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool

	jobs chan string
	quit chan struct{}
	wg   sync.WaitGroup
}

func NewTimerScheduler(auctionRepo domain.AuctionRepository, workers int,
	grace time.Duration, log logger.Logger) *TimerScheduler {
	if workers <= 0 {
		workers = 30
	}

	s := &TimerScheduler{
		auctionRepo: auctionRepo,
		grace:       grace,
		log:         log,
		timers:      make(map[string]*time.Timer),
		jobs:        make(chan string, workers),
		quit:        make(chan struct{}),
	}

	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}

	return s
}

// SetCloser wires the closure executor. Set once during startup, before any
// timer can fire.
func (s *TimerScheduler) SetCloser(closer domain.AuctionCloser) {
	s.closer = closer
}

// Schedule registers a one-shot closure timer for the auction, replacing any
// prior timer for the same id. The fire time must be strictly in the future.
func (s *TimerScheduler) Schedule(auctionID string, fireAt time.Time) error {
	delay := time.Until(fireAt)
	if delay <= 0 {
		return domain.ErrInvalidSchedule
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return domain.ErrSchedulerStopped
	}

	if prev, exists := s.timers[auctionID]; exists {
		prev.Stop()
	}

	timer := time.AfterFunc(delay, func() {
		s.enqueue(auctionID)
	})
	s.timers[auctionID] = timer

	s.log.Info("Closure scheduled", "auction_id", auctionID,
		"fire_in", delay.String(), "registered_timers", len(s.timers))
	return nil
}

// Cancel removes and stops the auction's timer. A callback already handed to
// a worker cannot be retracted; the closure executor's idempotent guards make
// the late fire harmless.
func (s *TimerScheduler) Cancel(auctionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if timer, exists := s.timers[auctionID]; exists {
		timer.Stop()
		delete(s.timers, auctionID)
		s.log.Info("Closure schedule cancelled", "auction_id", auctionID)
	}
}

// Recover rebuilds the timer set after a restart: every auction that is still
// open with a future end time gets its closure rescheduled. Safe to call more
// than once since Schedule replaces existing timers.
func (s *TimerScheduler) Recover(ctx context.Context) error {
	s.log.Info("Recovering closure schedules")

	auctions, err := s.auctionRepo.GetOpenAuctionsEndingAfter(ctx, time.Now())
	if err != nil {
		return err
	}

	recovered := 0
	for _, auction := range auctions {
		if err := s.Schedule(auction.ID, auction.EndTime); err != nil {
			// End time slipped into the past between query and schedule.
			s.log.Warn("Skipping unrecoverable auction", "auction_id", auction.ID, "error", err)
			continue
		}
		recovered++
	}

	s.log.Info("Closure schedules recovered", "count", recovered)
	return nil
}

// Shutdown stops accepting new timers, cancels pending ones and drains the
// worker pool for a bounded grace period. It never blocks process exit
// indefinitely: workers still running after the grace are abandoned.
func (s *TimerScheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	for auctionID, timer := range s.timers {
		timer.Stop()
		delete(s.timers, auctionID)
	}
	s.mu.Unlock()

	close(s.quit)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info("Scheduler workers drained")
	case <-time.After(s.grace):
		s.log.Warn("Scheduler drain exceeded grace period, forcing shutdown", "grace", s.grace.String())
	case <-ctx.Done():
		s.log.Warn("Scheduler shutdown interrupted, forcing shutdown", "error", ctx.Err())
	}

	return nil
}

func (s *TimerScheduler) enqueue(auctionID string) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	select {
	case s.jobs <- auctionID:
	case <-s.quit:
	}
}

func (s *TimerScheduler) worker() {
	defer s.wg.Done()

	for {
		select {
		case auctionID := <-s.jobs:
			s.runClosure(auctionID)
		case <-s.quit:
			return
		}
	}
}

// runClosure executes a fired callback. The handle is removed whether or not
// the closure succeeds; a failed closure is logged and never retried, leaving
// the auction open past its nominal end until manually resolved.
func (s *TimerScheduler) runClosure(auctionID string) {
	defer s.removeTimer(auctionID)

	if err := s.closer.CloseAuction(context.Background(), auctionID); err != nil {
		s.log.Error("Auction closure failed", "auction_id", auctionID, "error", err)
	}
}

func (s *TimerScheduler) removeTimer(auctionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.timers, auctionID)
}
