package sync

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/matchdaylabs/leaguesync/internal/common"
	"github.com/matchdaylabs/leaguesync/internal/interfaces"
	"github.com/matchdaylabs/leaguesync/internal/models"
)

// PipelineConfig tunes stage behavior. Zero values are replaced with
// production defaults by NewPipeline.
type PipelineConfig struct {
	MaxAttempts      int           // retry attempts per driver operation
	AttemptTimeout   time.Duration // hard timeout per attempt
	AuthPollAttempts int           // polls waiting for authenticated markers
	AuthPollInterval time.Duration // spacing between auth polls
	MemberPacing     time.Duration // delay between member detail fetches
	RecoveryWait     time.Duration // fixed delay used by recovery actions
	LoginPath        string        // path on the source origin holding the login surface
}

func (c *PipelineConfig) applyDefaults() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = 30 * time.Second
	}
	if c.AuthPollAttempts <= 0 {
		c.AuthPollAttempts = 15
	}
	if c.AuthPollInterval <= 0 {
		c.AuthPollInterval = 2 * time.Second
	}
	if c.RecoveryWait <= 0 {
		c.RecoveryWait = 3 * time.Second
	}
	if c.LoginPath == "" {
		c.LoginPath = "/login"
	}
}

// Pipeline is the per-job sequential state machine:
// authenticate -> navigate -> extract settings -> extract members ->
// extract sub-records -> extract metadata -> aggregate -> complete/error.
//
// One pipeline drives one shared remote session; callers must not run jobs
// concurrently through it.
type Pipeline struct {
	nav     interfaces.Navigator
	snap    interfaces.Snapshotter
	click   interfaces.Clicker
	typer   interfaces.Typer
	capture interfaces.ArtifactCapturer

	session  *models.SessionState
	retry    *RetryExecutor
	stuck    *StuckDetector
	recovery *RecoveryDispatcher
	reporter *Reporter
	cfg      PipelineConfig
	logger   arbor.ILogger

	sleep func(ctx context.Context, d time.Duration) error
}

// NewPipeline probes the driver's capability set once and wires the stage
// machinery around the shared session state. A driver offering fewer than
// models.MinDriverCapabilities capabilities is marked unavailable and every
// run falls back to synthesized data.
func NewPipeline(driver any, session *models.SessionState, reporter *Reporter, cfg PipelineConfig, logger arbor.ILogger) *Pipeline {
	cfg.applyDefaults()

	caps := interfaces.ProbeCapabilities(driver)
	session.SetCapabilities(caps)

	p := &Pipeline{
		session:  session,
		reporter: reporter,
		cfg:      cfg,
		logger:   logger,
		sleep:    sleepCtx,
	}

	if driver != nil {
		p.nav, _ = driver.(interfaces.Navigator)
		p.snap, _ = driver.(interfaces.Snapshotter)
		p.click, _ = driver.(interfaces.Clicker)
		p.typer, _ = driver.(interfaces.Typer)
		p.capture, _ = driver.(interfaces.ArtifactCapturer)
	}

	p.retry = NewRetryExecutor(logger)
	p.stuck = NewStuckDetector(logger)
	p.recovery = NewRecoveryDispatcher(p.nav, session, cfg.RecoveryWait, logger)

	logger.Info().
		Int("capabilities", len(caps)).
		Bool("driver_available", session.DriverAvailable()).
		Msg("Driver capabilities probed")

	return p
}

// runState carries the mutable state of one job run through the stages.
type runState struct {
	job       models.Job
	progress  *models.SyncProgress
	data      models.LeagueData
	extracted models.DataExtracted
	logger    arbor.ILogger
}

func (st *runState) warn(msg string) {
	st.progress.Warnings = append(st.progress.Warnings, msg)
	st.logger.Warn().Str("job_id", st.job.ID).Msg(msg)
}

// Run executes the full stage pipeline for one job and always returns a
// terminal SyncResult; job-level failures are captured, never propagated.
func (p *Pipeline) Run(ctx context.Context, job models.Job) models.SyncResult {
	start := time.Now()

	st := &runState{
		job: job,
		progress: &models.SyncProgress{
			JobID:     job.ID,
			Stage:     models.StageAuthenticating,
			StartTime: start,
		},
		data:   models.LeagueData{JobID: job.ID},
		logger: p.logger.WithCorrelationId(job.ID),
	}

	st.logger.Info().
		Str("job_id", job.ID).
		Str("job_name", job.Name()).
		Str("source_url", job.SourceURL).
		Msg("Starting sync pipeline")

	err := p.runStages(ctx, st)

	result := models.SyncResult{
		ID:            common.NewResultID(),
		JobID:         job.ID,
		Duration:      time.Since(start),
		DataExtracted: st.extracted,
		Warnings:      append([]string(nil), st.progress.Warnings...),
		Timestamp:     time.Now(),
	}

	if err != nil {
		var xerr *models.ExtractionError
		if !errors.As(err, &xerr) {
			xerr = models.NewExtractionError(models.ErrKindUnknown, st.progress.Stage, job.ID, "unclassified failure", err)
		}

		p.captureDiagnostic(ctx, job.ID)

		st.progress.Errors = append(st.progress.Errors, xerr.Error())
		p.setStage(st, models.StageError, xerr.Message, st.progress.Progress)
		p.reporter.Error(xerr)

		result.Success = false
		result.Errors = append([]string(nil), st.progress.Errors...)

		st.logger.Error().
			Err(xerr).
			Str("job_id", job.ID).
			Str("stage", string(xerr.Stage)).
			Msg("Sync pipeline failed")
		return result
	}

	p.setStage(st, models.StageComplete, "Sync complete", 100)
	result.Success = true

	st.logger.Info().
		Str("job_id", job.ID).
		Dur("duration", result.Duration).
		Int("members", len(st.data.Members)).
		Msg("Sync pipeline complete")

	return result
}

// runStages advances through the linear stage progression. Stages after
// settings extraction are best-effort and degrade instead of failing.
func (p *Pipeline) runStages(ctx context.Context, st *runState) error {
	if err := p.authenticate(ctx, st); err != nil {
		return err
	}
	if err := p.navigate(ctx, st); err != nil {
		return err
	}
	if err := p.extractSettings(ctx, st); err != nil {
		return err
	}
	p.extractMembers(ctx, st)
	p.extractSubRecords(ctx, st)
	p.extractMetadata(ctx, st)
	p.aggregate(st)
	return nil
}

// authenticate navigates to the login surface and waits for authenticated
// markers. If the polling budget is exhausted without a definitive signal it
// proceeds optimistically - downstream stages fail naturally when
// authentication truly did not succeed.
func (p *Pipeline) authenticate(ctx context.Context, st *runState) error {
	p.setStage(st, models.StageAuthenticating, "Checking session authentication", 5)

	if !p.session.DriverAvailable() {
		st.warn("driver unavailable - continuing with synthesized data")
		return nil
	}

	if p.session.Authenticated() {
		st.logger.Debug().Msg("Session already authenticated, skipping login")
		p.setStage(st, models.StageAuthenticating, "Session already authenticated", 15)
		return nil
	}

	loginURL := p.loginURL(st.job.SourceURL)
	if p.nav != nil {
		err := p.retry.Execute(ctx, "navigate-login", p.cfg.MaxAttempts, p.cfg.AttemptTimeout, func(ctx context.Context) error {
			return p.nav.Navigate(ctx, loginURL)
		})
		if err != nil {
			return models.NewExtractionError(models.ErrKindAuthentication, models.StageAuthenticating, st.job.ID, "login surface unreachable", err)
		}
		p.session.Touch(loginURL)
	}

	p.submitCredentials(ctx, st)

	if p.snap == nil {
		// No way to verify; optimistic continuation.
		st.warn("authentication unverifiable without snapshot capability - assuming success")
		p.session.SetAuthenticated(true)
		return nil
	}

	for poll := 1; poll <= p.cfg.AuthPollAttempts; poll++ {
		snapshot, err := p.snap.Snapshot(ctx)
		if err == nil {
			if hasAuthenticatedMarkers(snapshot) {
				p.session.SetAuthenticated(true)
				p.session.Touch(snapshot.URL)
				p.setStage(st, models.StageAuthenticating, "Authenticated", 15)
				return nil
			}
			if hasLoginMarkers(snapshot) && poll == 1 && st.job.Credentials != nil {
				// First poll still shows the form; give the submission one
				// more chance before settling into the wait loop.
				p.submitCredentials(ctx, st)
			}
		} else {
			st.logger.Debug().Err(err).Int("poll", poll).Msg("Snapshot failed during auth polling")
		}

		pct := 5 + (poll*10)/p.cfg.AuthPollAttempts
		p.setStage(st, models.StageAuthenticating,
			fmt.Sprintf("Waiting for authentication (%d/%d)", poll, p.cfg.AuthPollAttempts), pct)

		if err := p.sleep(ctx, p.cfg.AuthPollInterval); err != nil {
			return models.NewExtractionError(models.ErrKindAuthentication, models.StageAuthenticating, st.job.ID, "cancelled while waiting for authentication", err)
		}
	}

	// Budget exhausted without a definitive signal: availability over
	// certainty.
	st.warn(fmt.Sprintf("authentication unconfirmed after %d polls - continuing optimistically", p.cfg.AuthPollAttempts))
	p.session.SetAuthenticated(true)
	return nil
}

// submitCredentials types the job credentials into the login form and
// submits. Best-effort: failures are logged, not fatal, because the polling
// loop decides the stage outcome.
func (p *Pipeline) submitCredentials(ctx context.Context, st *runState) {
	if st.job.Credentials == nil || p.typer == nil || p.click == nil {
		return
	}

	creds := st.job.Credentials
	if err := p.typer.Type(ctx, `input[type="email"], input[name="username"], #username`, creds.Username); err != nil {
		st.logger.Debug().Err(err).Msg("Username entry failed")
		return
	}
	if err := p.typer.Type(ctx, `input[type="password"]`, creds.Password); err != nil {
		st.logger.Debug().Err(err).Msg("Password entry failed")
		return
	}
	if err := p.click.Click(ctx, []string{`button[type="submit"]`, `input[type="submit"]`, `button:contains("Sign In")`}); err != nil {
		st.logger.Debug().Err(err).Msg("Login submit failed")
	}
}

// navigate loads the job's source location. Failure here is fatal for the
// job - there is no optimistic continuation past a failed navigation.
func (p *Pipeline) navigate(ctx context.Context, st *runState) error {
	p.setStage(st, models.StageNavigating, "Navigating to league", 20)

	if !p.session.DriverAvailable() || p.nav == nil {
		return nil
	}

	err := p.retry.Execute(ctx, "navigate-league", p.cfg.MaxAttempts, p.cfg.AttemptTimeout, func(ctx context.Context) error {
		return p.nav.Navigate(ctx, st.job.SourceURL)
	})
	if err != nil {
		return models.NewExtractionError(models.ErrKindNavigation, models.StageNavigating, st.job.ID, fmt.Sprintf("failed to reach %s", st.job.SourceURL), err)
	}
	p.session.Touch(st.job.SourceURL)

	// The navigation may have "succeeded" into a stalled page; consult the
	// detector before trusting it.
	if reason, failed := p.resolveStall(ctx, st); failed {
		return models.NewExtractionError(models.ErrKindNavigation, models.StageNavigating, st.job.ID, fmt.Sprintf("session stuck after navigation (%s)", reason), nil)
	}

	return nil
}

// extractSettings parses coarse league configuration. A parse failure
// against a real snapshot is fatal; defaults are substituted only when the
// driver lacks snapshot capability entirely.
func (p *Pipeline) extractSettings(ctx context.Context, st *runState) error {
	p.setStage(st, models.StageExtractingSettings, "Extracting league settings", 35)

	if !p.session.DriverAvailable() || p.snap == nil {
		st.data.Settings = models.DefaultLeagueSettings()
		st.warn("league settings synthesized - snapshot capability unavailable")
		return nil
	}

	snapshot, err := p.snap.Snapshot(ctx)
	if err != nil {
		return models.NewExtractionError(models.ErrKindParsing, models.StageExtractingSettings, st.job.ID, "snapshot unavailable for settings extraction", err)
	}

	settings, perr := parseLeagueSettings(snapshot)
	if perr != nil {
		// The page may be stalled rather than malformed; allow one recovery
		// then one re-parse.
		if _, failed := p.resolveStall(ctx, st); !failed {
			if snapshot, err = p.snap.Snapshot(ctx); err == nil {
				settings, perr = parseLeagueSettings(snapshot)
			}
		}
	}
	if perr != nil {
		return models.NewExtractionError(models.ErrKindParsing, models.StageExtractingSettings, st.job.ID, "league settings not recognized", perr)
	}

	st.data.Settings = settings
	st.extracted.Settings = true
	st.logger.Debug().
		Int("league_size", settings.LeagueSize).
		Str("scoring", settings.ScoringType).
		Msg("League settings extracted")
	return nil
}

// extractMembers locates the roster listing and parses members. Extraction
// is best-effort from here on: total failure falls back to a synthesized
// placeholder roster instead of failing the job.
func (p *Pipeline) extractMembers(ctx context.Context, st *runState) {
	p.setStage(st, models.StageExtractingMembers, "Locating league members", 45)

	if p.session.DriverAvailable() && p.snap != nil {
		if p.click != nil {
			err := p.retry.Execute(ctx, "open-members", p.cfg.MaxAttempts, p.cfg.AttemptTimeout, func(ctx context.Context) error {
				return p.click.Click(ctx, memberListLocators)
			})
			if err != nil {
				st.warn("members listing affordance not found - parsing current page")
			}
		}

		if snapshot, err := p.snap.Snapshot(ctx); err == nil {
			if members, perr := parseMembers(snapshot); perr == nil {
				st.data.Members = members
				st.extracted.Members = true
				p.setStage(st, models.StageExtractingMembers, fmt.Sprintf("Found %d members", len(members)), 50)
				return
			}
		}
	}

	st.data.Members = placeholderMembers(st.data.Settings.LeagueSize)
	st.warn(fmt.Sprintf("member extraction failed - synthesized %d placeholder members", len(st.data.Members)))
	p.setStage(st, models.StageExtractingMembers, "Using placeholder members", 50)
}

// extractSubRecords fetches per-member detail records sequentially with a
// pacing delay. Individual member failures are warnings, never fatal.
func (p *Pipeline) extractSubRecords(ctx context.Context, st *runState) {
	total := len(st.data.Members)
	if total == 0 {
		return
	}
	p.setStage(st, models.StageExtractingSubRecords, fmt.Sprintf("Fetching records for %d members", total), 55)

	realRecords := 0
	for i, member := range st.data.Members {
		if i > 0 && p.cfg.MemberPacing > 0 {
			if err := p.sleep(ctx, p.cfg.MemberPacing); err != nil {
				st.warn("cancelled during member record fetch")
				break
			}
		}

		record := models.MemberRecord{MemberID: member.ID}

		if p.session.DriverAvailable() && p.snap != nil && !member.Placeholder {
			if p.click != nil {
				candidates := []string{
					fmt.Sprintf(`[data-team-id=%q]`, member.ID),
					fmt.Sprintf(`a:contains(%q)`, member.TeamName),
				}
				if err := p.click.Click(ctx, candidates); err != nil {
					st.warn(fmt.Sprintf("member %s: detail page not reachable", member.ID))
				}
			}

			if snapshot, err := p.snap.Snapshot(ctx); err == nil {
				if parsed, perr := parseMemberRecord(snapshot, member.ID); perr == nil {
					record = parsed
					realRecords++
				} else {
					st.warn(fmt.Sprintf("member %s: no record recognized", member.ID))
				}
			} else {
				st.warn(fmt.Sprintf("member %s: snapshot failed", member.ID))
			}
		}

		st.data.Records = append(st.data.Records, record)

		pct := 55 + ((i+1)*20)/total
		p.setStage(st, models.StageExtractingSubRecords,
			fmt.Sprintf("Fetched records %d/%d", i+1, total), pct)
	}

	st.extracted.SubRecords = realRecords > 0
}

// extractMetadata fetches schedule/ordering information. Failure is
// non-fatal and degrades to defaults.
func (p *Pipeline) extractMetadata(ctx context.Context, st *runState) {
	p.setStage(st, models.StageExtractingMetadata, "Extracting schedule metadata", 85)

	if p.session.DriverAvailable() && p.snap != nil {
		if snapshot, err := p.snap.Snapshot(ctx); err == nil {
			if meta, perr := parseLeagueMetadata(snapshot); perr == nil {
				st.data.Metadata = meta
				st.extracted.Metadata = true
				return
			}
		}
	}

	st.data.Metadata = models.DefaultLeagueMetadata()
	st.warn("schedule metadata unavailable - using defaults")
}

// aggregate assembles the final league data object from prior stage outputs.
func (p *Pipeline) aggregate(st *runState) {
	p.setStage(st, models.StageAggregating, "Assembling league data", 95)
	st.data.JobID = st.job.ID
}

// resolveStall consults the stuck detector and, on a stall, attempts
// recovery at most once. A second detection within the same stage (same or
// different reason) escalates to stage failure - this prevents infinite
// recovery loops.
func (p *Pipeline) resolveStall(ctx context.Context, st *runState) (StuckReason, bool) {
	if p.snap == nil {
		return ReasonNone, false
	}

	snapshot, err := p.snap.Snapshot(ctx)
	if err != nil {
		// Fails open: absence of signal is not proof of a stall.
		return ReasonNone, false
	}

	reason, stuck := p.stuck.Detect(snapshot)
	if !stuck {
		return ReasonNone, false
	}

	st.logger.Warn().
		Str("reason", string(reason)).
		Str("stage", string(st.progress.Stage)).
		Msg("Stuck state detected")

	if !p.recovery.Attempt(ctx, reason) {
		return reason, true
	}

	// Re-check once after recovery; a repeated stall escalates.
	snapshot, err = p.snap.Snapshot(ctx)
	if err != nil {
		return ReasonNone, false
	}
	if again, stillStuck := p.stuck.Detect(snapshot); stillStuck {
		st.logger.Warn().
			Str("reason", string(again)).
			Msg("Session still stuck after recovery - escalating to stage failure")
		return again, true
	}

	st.warn(fmt.Sprintf("recovered from stuck session (%s)", reason))
	return ReasonNone, false
}

// captureDiagnostic saves a screenshot for post-mortem inspection.
// Best-effort with its own deadline so terminal reporting is never blocked.
func (p *Pipeline) captureDiagnostic(ctx context.Context, jobID string) {
	if p.capture == nil {
		return
	}

	name := fmt.Sprintf("%s-failure-%s", jobID, time.Now().Format("20060102-150405"))
	captureCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if err := p.capture.CaptureArtifact(captureCtx, name); err != nil {
		p.logger.Debug().Err(err).Str("artifact", name).Msg("Diagnostic capture failed")
	} else {
		p.logger.Info().Str("artifact", name).Msg("Diagnostic artifact captured")
	}
}

// setStage records a stage transition and emits a progress update. The
// percentage is clamped to be non-decreasing within a run.
func (p *Pipeline) setStage(st *runState, stage models.SyncStage, message string, pct int) {
	st.progress.Stage = stage
	st.progress.Message = message
	if pct > st.progress.Progress {
		st.progress.Progress = pct
	}
	if st.progress.Progress > 0 && st.progress.Progress < 100 {
		elapsed := time.Since(st.progress.StartTime)
		st.progress.EstimatedTimeRemaining = elapsed * time.Duration(100-st.progress.Progress) / time.Duration(st.progress.Progress)
	} else {
		st.progress.EstimatedTimeRemaining = 0
	}

	p.reporter.Progress(st.job.ID, *st.progress)

	st.logger.Debug().
		Str("stage", string(stage)).
		Int("progress", st.progress.Progress).
		Msg(message)
}

// loginURL derives the login surface from the job's source URL origin.
func (p *Pipeline) loginURL(sourceURL string) string {
	u, err := url.Parse(sourceURL)
	if err != nil || u.Scheme == "" {
		return sourceURL
	}
	return u.Scheme + "://" + u.Host + p.cfg.LoginPath
}
