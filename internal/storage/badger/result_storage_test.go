package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/matchdaylabs/leaguesync/internal/models"
)

func newTestStore(t *testing.T) *ResultStorage {
	t.Helper()

	db, err := NewInMemoryBadgerDB(arbor.NewLogger())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewResultStorage(db, arbor.NewLogger()).(*ResultStorage)
}

func sampleResult(id, jobID string, success bool, ts time.Time) *models.SyncResult {
	return &models.SyncResult{
		ID:        id,
		JobID:     jobID,
		Success:   success,
		Duration:  42 * time.Second,
		Timestamp: ts,
		DataExtracted: models.DataExtracted{
			Settings: true,
			Members:  true,
		},
	}
}

func TestResultStorageSaveAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	saved := sampleResult("res-1", "league-1", true, time.Now())
	require.NoError(t, store.SaveResult(ctx, saved))

	got, err := store.GetResult(ctx, "res-1")
	require.NoError(t, err)
	assert.Equal(t, "league-1", got.JobID)
	assert.True(t, got.Success)
	assert.True(t, got.DataExtracted.Settings)
}

func TestResultStorageGetMissing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetResult(context.Background(), "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestResultStorageValidation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.Error(t, store.SaveResult(ctx, nil))
	require.Error(t, store.SaveResult(ctx, &models.SyncResult{JobID: "league-1"}))
}

func TestResultStorageListByJobNewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	require.NoError(t, store.SaveResult(ctx, sampleResult("res-old", "league-1", false, base)))
	require.NoError(t, store.SaveResult(ctx, sampleResult("res-mid", "league-1", true, base.Add(10*time.Minute))))
	require.NoError(t, store.SaveResult(ctx, sampleResult("res-new", "league-1", true, base.Add(20*time.Minute))))
	require.NoError(t, store.SaveResult(ctx, sampleResult("res-other", "league-2", true, base.Add(30*time.Minute))))

	results, err := store.ListResults(ctx, "league-1", 0)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "res-new", results[0].ID)
	assert.Equal(t, "res-mid", results[1].ID)
	assert.Equal(t, "res-old", results[2].ID)
}

func TestResultStorageListLimit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Now()
	for i := 0; i < 5; i++ {
		r := sampleResult("res-"+string(rune('a'+i)), "league-1", true, base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, store.SaveResult(ctx, r))
	}

	results, err := store.ListResults(ctx, "league-1", 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestResultStorageListAllJobs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, store.SaveResult(ctx, sampleResult("res-1", "league-1", true, now)))
	require.NoError(t, store.SaveResult(ctx, sampleResult("res-2", "league-2", true, now.Add(time.Minute))))

	results, err := store.ListResults(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestResultStorageUpsertOverwrites(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ts := time.Now()
	require.NoError(t, store.SaveResult(ctx, sampleResult("res-1", "league-1", false, ts)))
	require.NoError(t, store.SaveResult(ctx, sampleResult("res-1", "league-1", true, ts)))

	got, err := store.GetResult(ctx, "res-1")
	require.NoError(t, err)
	assert.True(t, got.Success)

	results, err := store.ListResults(ctx, "league-1", 0)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}
