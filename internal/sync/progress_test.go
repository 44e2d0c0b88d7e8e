package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/matchdaylabs/leaguesync/internal/models"
)

// collectingSubscriber records everything it receives.
type collectingSubscriber struct {
	name     string
	progress []models.SyncProgress
	jobs     []models.SyncResult
	batches  [][]models.SyncResult
	errors   []*models.ExtractionError
	order    *[]string // shared across subscribers to observe delivery order
}

func (c *collectingSubscriber) OnProgress(jobID string, progress models.SyncProgress) {
	c.progress = append(c.progress, progress)
	if c.order != nil {
		*c.order = append(*c.order, c.name)
	}
}

func (c *collectingSubscriber) OnJobComplete(result models.SyncResult) {
	c.jobs = append(c.jobs, result)
}

func (c *collectingSubscriber) OnAllComplete(results []models.SyncResult) {
	c.batches = append(c.batches, results)
}

func (c *collectingSubscriber) OnError(err *models.ExtractionError) {
	c.errors = append(c.errors, err)
}

func TestReporterFansOutInRegistrationOrder(t *testing.T) {
	reporter := NewReporter(arbor.NewLogger())

	var order []string
	first := &collectingSubscriber{name: "first", order: &order}
	second := &collectingSubscriber{name: "second", order: &order}

	reporter.Subscribe(first)
	reporter.Subscribe(second)

	reporter.Progress("job-1", models.SyncProgress{JobID: "job-1", Stage: models.StageNavigating})

	assert.Equal(t, []string{"first", "second"}, order)
	require.Len(t, first.progress, 1)
	require.Len(t, second.progress, 1)
}

func TestReporterUnsubscribeStopsDelivery(t *testing.T) {
	reporter := NewReporter(arbor.NewLogger())

	sub := &collectingSubscriber{}
	unsubscribe := reporter.Subscribe(sub)

	reporter.Progress("job-1", models.SyncProgress{JobID: "job-1"})
	unsubscribe()
	reporter.Progress("job-1", models.SyncProgress{JobID: "job-1"})

	assert.Len(t, sub.progress, 1)
}

func TestReporterDeliversStageOrderedUpdates(t *testing.T) {
	reporter := NewReporter(arbor.NewLogger())

	sub := &collectingSubscriber{}
	reporter.Subscribe(sub)

	stages := []models.SyncStage{
		models.StageAuthenticating,
		models.StageNavigating,
		models.StageExtractingSettings,
		models.StageComplete,
	}
	for _, stage := range stages {
		reporter.Progress("job-1", models.SyncProgress{JobID: "job-1", Stage: stage})
	}

	require.Len(t, sub.progress, len(stages))
	for i := 1; i < len(sub.progress); i++ {
		assert.Greater(t, sub.progress[i].Stage.Order(), sub.progress[i-1].Stage.Order())
	}
}

func TestReporterClonesProgressForSubscribers(t *testing.T) {
	reporter := NewReporter(arbor.NewLogger())

	sub := &collectingSubscriber{}
	reporter.Subscribe(sub)

	progress := models.SyncProgress{
		JobID:    "job-1",
		Warnings: []string{"original"},
	}
	reporter.Progress("job-1", progress)

	require.Len(t, sub.progress, 1)
	sub.progress[0].Warnings[0] = "mutated by subscriber"
	assert.Equal(t, "original", progress.Warnings[0])
}

func TestReporterTerminalEvents(t *testing.T) {
	reporter := NewReporter(arbor.NewLogger())

	sub := &collectingSubscriber{}
	reporter.Subscribe(sub)

	reporter.JobComplete(models.SyncResult{ID: "res-1", JobID: "job-1", Success: true})
	reporter.AllComplete([]models.SyncResult{{ID: "res-1"}, {ID: "res-2"}})
	reporter.Error(models.NewExtractionError(models.ErrKindNavigation, models.StageNavigating, "job-1", "unreachable", nil))

	require.Len(t, sub.jobs, 1)
	assert.Equal(t, "job-1", sub.jobs[0].JobID)
	require.Len(t, sub.batches, 1)
	assert.Len(t, sub.batches[0], 2)
	require.Len(t, sub.errors, 1)
	assert.Equal(t, models.ErrKindNavigation, sub.errors[0].Kind)
}
