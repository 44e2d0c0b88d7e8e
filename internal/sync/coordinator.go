package sync

import (
	"context"
	"fmt"
	"sort"
	gosync "sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/matchdaylabs/leaguesync/internal/common"
	"github.com/matchdaylabs/leaguesync/internal/interfaces"
	"github.com/matchdaylabs/leaguesync/internal/models"
)

// Coordinator runs a set of jobs through one shared pipeline. Jobs execute
// strictly sequentially in priority order against the single remote session;
// one job's failure never aborts the batch.
type Coordinator struct {
	pipeline *Pipeline
	reporter *Reporter
	store    interfaces.ResultStorage // nil when result history is disabled
	logger   arbor.ILogger

	jobPacing time.Duration
	sleep     func(ctx context.Context, d time.Duration) error

	// runMu serializes batch runs; the session cannot host two jobs at once.
	runMu gosync.Mutex

	mu      gosync.RWMutex
	jobs    []models.Job
	results map[string]models.SyncResult // latest result per job id
}

// NewCoordinator creates a coordinator over the given job set. The store may
// be nil; persistence is then skipped.
func NewCoordinator(pipeline *Pipeline, reporter *Reporter, store interfaces.ResultStorage, jobs []models.Job, jobPacing time.Duration, logger arbor.ILogger) *Coordinator {
	return &Coordinator{
		pipeline:  pipeline,
		reporter:  reporter,
		store:     store,
		logger:    logger,
		jobPacing: jobPacing,
		sleep:     sleepCtx,
		jobs:      append([]models.Job(nil), jobs...),
		results:   make(map[string]models.SyncResult),
	}
}

// Jobs returns the configured job set in execution order.
func (c *Coordinator) Jobs() []models.Job {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ordered := append([]models.Job(nil), c.jobs...)
	sortJobs(ordered)
	return ordered
}

// Result returns the most recent result for a job id.
func (c *Coordinator) Result(jobID string) (models.SyncResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.results[jobID]
	return r, ok
}

// RunAll executes every configured job in priority order and returns results
// in that same order. The returned slice always has one entry per job, even
// when the context is cancelled mid-batch (remaining jobs get failed results).
func (c *Coordinator) RunAll(ctx context.Context) []models.SyncResult {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	jobs := c.Jobs()
	results := make([]models.SyncResult, 0, len(jobs))

	runID := common.NewRunID()
	c.logger.Info().Str("run_id", runID).Int("job_count", len(jobs)).Msg("Starting sync batch")
	start := time.Now()

	for i, job := range jobs {
		if i > 0 && c.jobPacing > 0 {
			if err := c.sleep(ctx, c.jobPacing); err != nil {
				c.logger.Warn().Err(err).Msg("Batch cancelled between jobs")
			}
		}

		if err := ctx.Err(); err != nil {
			result := c.cancelledResult(job, err)
			results = append(results, result)
			c.record(result)
			continue
		}

		result := c.runOne(ctx, job)
		results = append(results, result)
		c.record(result)
	}

	c.reporter.AllComplete(results)

	succeeded := 0
	for _, r := range results {
		if r.Success {
			succeeded++
		}
	}
	c.logger.Info().
		Str("run_id", runID).
		Int("job_count", len(jobs)).
		Int("succeeded", succeeded).
		Int("failed", len(jobs)-succeeded).
		Dur("duration", time.Since(start)).
		Msg("Sync batch complete")

	return results
}

// RerunJob executes a single job by id without touching the others.
func (c *Coordinator) RerunJob(ctx context.Context, jobID string) (models.SyncResult, error) {
	c.mu.RLock()
	var job *models.Job
	for i := range c.jobs {
		if c.jobs[i].ID == jobID {
			j := c.jobs[i]
			job = &j
			break
		}
	}
	c.mu.RUnlock()

	if job == nil {
		return models.SyncResult{}, fmt.Errorf("unknown job id: %s", jobID)
	}

	c.runMu.Lock()
	defer c.runMu.Unlock()

	c.logger.Info().Str("job_id", jobID).Msg("Rerunning single job")

	result := c.runOne(ctx, *job)
	c.record(result)
	c.reporter.AllComplete([]models.SyncResult{result})
	return result, nil
}

// runOne executes one job with panic isolation. A panicking pipeline yields
// a failed result instead of taking down the batch.
func (c *Coordinator) runOne(ctx context.Context, job models.Job) (result models.SyncResult) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().
				Str("job_id", job.ID).
				Str("panic", fmt.Sprintf("%v", r)).
				Str("stack", common.GetStackTrace()).
				Msg("Pipeline panicked")

			result = models.SyncResult{
				ID:        common.NewResultID(),
				JobID:     job.ID,
				Success:   false,
				Errors:    []string{fmt.Sprintf("%s: pipeline panic: %v", models.ErrKindUnknown, r)},
				Timestamp: time.Now(),
			}
			c.reporter.JobComplete(result)
		}
	}()

	result = c.pipeline.Run(ctx, job)
	c.reporter.JobComplete(result)
	return result
}

// record stores the latest result in memory and, when a store is configured,
// persists it best-effort.
func (c *Coordinator) record(result models.SyncResult) {
	c.mu.Lock()
	c.results[result.JobID] = result
	c.mu.Unlock()

	if c.store == nil {
		return
	}
	if err := c.store.SaveResult(context.Background(), &result); err != nil {
		c.logger.Warn().
			Err(err).
			Str("job_id", result.JobID).
			Msg("Failed to persist sync result")
	}
}

func (c *Coordinator) cancelledResult(job models.Job, err error) models.SyncResult {
	result := models.SyncResult{
		ID:        common.NewResultID(),
		JobID:     job.ID,
		Success:   false,
		Errors:    []string{fmt.Sprintf("%s: batch cancelled before job started: %v", models.ErrKindUnknown, err)},
		Timestamp: time.Now(),
	}
	c.reporter.JobComplete(result)
	return result
}

// sortJobs orders jobs by ascending priority, preserving configuration order
// for equal priorities.
func sortJobs(jobs []models.Job) {
	sort.SliceStable(jobs, func(i, j int) bool {
		return jobs[i].Priority < jobs[j].Priority
	})
}
