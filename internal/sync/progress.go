package sync

import (
	gosync "sync"

	"github.com/ternarybob/arbor"

	"github.com/matchdaylabs/leaguesync/internal/interfaces"
	"github.com/matchdaylabs/leaguesync/internal/models"
)

// Reporter fans out progress updates, terminal results, and errors to
// registered subscribers. It is a pure data relay with no business logic.
//
// Delivery is synchronous and in subscription order, which preserves the
// stage-ordering guarantee for each job: updates are emitted by a single
// pipeline worker, so a later-stage update is never observed before an
// earlier one.
type Reporter struct {
	mu          gosync.RWMutex
	subscribers map[int]interfaces.ProgressSubscriber
	nextID      int
	logger      arbor.ILogger
}

// NewReporter creates an empty progress reporter.
func NewReporter(logger arbor.ILogger) *Reporter {
	return &Reporter{
		subscribers: make(map[int]interfaces.ProgressSubscriber),
		logger:      logger,
	}
}

// Subscribe registers a subscriber and returns a function that removes it.
func (r *Reporter) Subscribe(sub interfaces.ProgressSubscriber) func() {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextID
	r.nextID++
	r.subscribers[id] = sub

	r.logger.Debug().
		Int("subscriber_count", len(r.subscribers)).
		Msg("Progress subscriber registered")

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.subscribers, id)
	}
}

// Progress forwards a per-job progress update. The progress value is cloned
// so subscribers can never mutate pipeline-owned state.
func (r *Reporter) Progress(jobID string, progress models.SyncProgress) {
	for _, sub := range r.snapshot() {
		sub.OnProgress(jobID, progress.Clone())
	}
}

// JobComplete forwards a terminal result for one job.
func (r *Reporter) JobComplete(result models.SyncResult) {
	for _, sub := range r.snapshot() {
		sub.OnJobComplete(result)
	}
}

// AllComplete forwards the ordered result list for a finished batch.
func (r *Reporter) AllComplete(results []models.SyncResult) {
	out := append([]models.SyncResult(nil), results...)
	for _, sub := range r.snapshot() {
		sub.OnAllComplete(out)
	}
}

// Error forwards a job-level extraction error.
func (r *Reporter) Error(err *models.ExtractionError) {
	for _, sub := range r.snapshot() {
		sub.OnError(err)
	}
}

// snapshot returns subscribers in registration order under the read lock.
func (r *Reporter) snapshot() []interfaces.ProgressSubscriber {
	r.mu.RLock()
	defer r.mu.RUnlock()

	subs := make([]interfaces.ProgressSubscriber, 0, len(r.subscribers))
	for id := 0; id < r.nextID; id++ {
		if sub, ok := r.subscribers[id]; ok {
			subs = append(subs, sub)
		}
	}
	return subs
}
