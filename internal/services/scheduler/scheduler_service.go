package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	lsync "github.com/matchdaylabs/leaguesync/internal/sync"
)

// Service triggers coordinator batch runs on a cron schedule. Overlapping
// triggers are skipped rather than queued: the remote session is sequential
// and a still-running batch means the data is already being refreshed.
type Service struct {
	coordinator *lsync.Coordinator
	cron        *cron.Cron
	logger      arbor.ILogger

	mu      sync.Mutex
	running bool
	entryID cron.EntryID

	inFlight atomic.Bool
	lastRun  atomic.Pointer[time.Time]
}

// NewService creates a scheduler over the given coordinator.
func NewService(coordinator *lsync.Coordinator, logger arbor.ILogger) *Service {
	return &Service{
		coordinator: coordinator,
		cron:        cron.New(),
		logger:      logger,
	}
}

// Start begins triggering batch runs on the given cron expression.
func (s *Service) Start(cronExpr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	if cronExpr == "" {
		cronExpr = "0 */6 * * *" // Default: every 6 hours
	}

	entryID, err := s.cron.AddFunc(cronExpr, s.runBatch)
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}
	s.entryID = entryID

	s.cron.Start()
	s.running = true

	s.logger.Info().
		Str("cron_expr", cronExpr).
		Msg("Sync scheduler started")

	return nil
}

// Stop halts the scheduler. An in-flight batch finishes on its own.
func (s *Service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(5 * time.Second):
		s.logger.Warn().Msg("Scheduler stop timed out waiting for cron entries")
	}

	s.running = false
	s.logger.Info().Msg("Sync scheduler stopped")
	return nil
}

// NextRun returns the next scheduled trigger time, zero when not running.
func (s *Service) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Next
}

// LastRun returns when the most recent batch was triggered.
func (s *Service) LastRun() time.Time {
	if t := s.lastRun.Load(); t != nil {
		return *t
	}
	return time.Time{}
}

// runBatch executes one coordinator batch, skipping when one is in flight.
func (s *Service) runBatch() {
	if !s.inFlight.CompareAndSwap(false, true) {
		s.logger.Warn().Msg("Skipping scheduled sync - previous batch still running")
		return
	}
	defer s.inFlight.Store(false)

	now := time.Now()
	s.lastRun.Store(&now)

	s.logger.Info().Msg("Scheduled sync batch triggered")
	results := s.coordinator.RunAll(context.Background())

	failed := 0
	for _, r := range results {
		if !r.Success {
			failed++
		}
	}
	s.logger.Info().
		Int("job_count", len(results)).
		Int("failed", failed).
		Msg("Scheduled sync batch finished")
}
