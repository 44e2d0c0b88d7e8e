package interfaces

import "github.com/matchdaylabs/leaguesync/internal/models"

// ProgressSubscriber receives per-job progress updates and terminal results.
// For a given job, OnProgress calls arrive in stage order; OnJobComplete is
// called exactly once per run, and OnAllComplete once per batch.
type ProgressSubscriber interface {
	OnProgress(jobID string, progress models.SyncProgress)
	OnJobComplete(result models.SyncResult)
	OnAllComplete(results []models.SyncResult)
	OnError(err *models.ExtractionError)
}
