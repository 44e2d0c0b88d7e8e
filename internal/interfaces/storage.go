package interfaces

import (
	"context"

	"github.com/matchdaylabs/leaguesync/internal/models"
)

// ResultStorage persists terminal sync results. The coordinator treats the
// store as optional: a nil store disables history without affecting runs.
type ResultStorage interface {
	SaveResult(ctx context.Context, result *models.SyncResult) error
	GetResult(ctx context.Context, id string) (*models.SyncResult, error)
	ListResults(ctx context.Context, jobID string, limit int) ([]*models.SyncResult, error)
}
