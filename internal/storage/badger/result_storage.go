package badger

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/matchdaylabs/leaguesync/internal/interfaces"
	"github.com/matchdaylabs/leaguesync/internal/models"
)

// ResultStorage persists terminal sync results in Badger, keyed by result id
// and indexed by job id for history queries.
type ResultStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewResultStorage creates a ResultStorage instance.
func NewResultStorage(db *BadgerDB, logger arbor.ILogger) interfaces.ResultStorage {
	return &ResultStorage{
		db:     db,
		logger: logger,
	}
}

// SaveResult upserts one terminal result.
func (s *ResultStorage) SaveResult(ctx context.Context, result *models.SyncResult) error {
	if result == nil {
		return fmt.Errorf("result cannot be nil")
	}
	if result.ID == "" {
		return fmt.Errorf("result ID is required")
	}

	if err := s.db.Store().Upsert(result.ID, result); err != nil {
		return fmt.Errorf("failed to save sync result: %w", err)
	}

	s.logger.Debug().
		Str("result_id", result.ID).
		Str("job_id", result.JobID).
		Bool("success", result.Success).
		Msg("Sync result persisted")

	return nil
}

// GetResult retrieves one result by id.
func (s *ResultStorage) GetResult(ctx context.Context, id string) (*models.SyncResult, error) {
	var result models.SyncResult
	if err := s.db.Store().Get(id, &result); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("sync result not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get sync result: %w", err)
	}
	return &result, nil
}

// ListResults returns a job's result history, newest first. An empty jobID
// lists results across all jobs.
func (s *ResultStorage) ListResults(ctx context.Context, jobID string, limit int) ([]*models.SyncResult, error) {
	var query *badgerhold.Query
	if jobID != "" {
		query = badgerhold.Where("JobID").Eq(jobID).Index("JobID")
	} else {
		query = badgerhold.Where("ID").Ne("")
	}

	query = query.SortBy("Timestamp").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}

	var results []models.SyncResult
	if err := s.db.Store().Find(&results, query); err != nil {
		return nil, fmt.Errorf("failed to list sync results: %w", err)
	}

	out := make([]*models.SyncResult, len(results))
	for i := range results {
		out[i] = &results[i]
	}
	return out, nil
}
