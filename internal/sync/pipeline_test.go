package sync

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/matchdaylabs/leaguesync/internal/models"
)

const (
	sourceURL  = "https://leagues.example.com/league/1"
	loginURL   = "https://leagues.example.com/login"
	membersURL = "https://leagues.example.com/league/1/standings"
	recordURL  = "https://leagues.example.com/league/1/team"
)

// fakeDriver is a full-capability scripted driver. Snapshots are served per
// navigated location; clicks move between locations by selector substring.
type fakeDriver struct {
	pages     map[string]*models.PageSnapshot
	navErr    map[string]error
	clickMap  map[string]string // selector substring -> destination URL
	clickErr  error
	snapErr   error
	current   string
	navigated []string
	clicked   [][]string
	typed     []string
	captured  []string
}

func (f *fakeDriver) Navigate(ctx context.Context, url string) error {
	f.navigated = append(f.navigated, url)
	if err := f.navErr[url]; err != nil {
		return err
	}
	f.current = url
	return nil
}

func (f *fakeDriver) Snapshot(ctx context.Context) (*models.PageSnapshot, error) {
	if f.snapErr != nil {
		return nil, f.snapErr
	}
	if page, ok := f.pages[f.current]; ok {
		return page, nil
	}
	return &models.PageSnapshot{URL: f.current, HTML: "<html></html>", Text: "blank"}, nil
}

func (f *fakeDriver) Click(ctx context.Context, candidates []string) error {
	f.clicked = append(f.clicked, candidates)
	if f.clickErr != nil {
		return f.clickErr
	}
	for _, candidate := range candidates {
		for sub, url := range f.clickMap {
			if strings.Contains(candidate, sub) {
				f.current = url
				return nil
			}
		}
	}
	return errors.New("no locator candidate matched")
}

func (f *fakeDriver) Type(ctx context.Context, locator, text string) error {
	f.typed = append(f.typed, text)
	return nil
}

func (f *fakeDriver) CaptureArtifact(ctx context.Context, name string) error {
	f.captured = append(f.captured, name)
	return nil
}

// navSnapDriver offers only two capabilities, below the usability threshold.
type navSnapDriver struct{}

func (navSnapDriver) Navigate(ctx context.Context, url string) error { return nil }
func (navSnapDriver) Snapshot(ctx context.Context) (*models.PageSnapshot, error) {
	return &models.PageSnapshot{HTML: "<html></html>"}, nil
}

func authenticatedLoginPage() *models.PageSnapshot {
	return &models.PageSnapshot{
		URL:  loginURL,
		Text: "Welcome back! My Leagues | Sign out",
		HTML: "<html><body>Welcome back! <a>Sign out</a></body></html>",
	}
}

func leagueHomePage() *models.PageSnapshot {
	return &models.PageSnapshot{
		URL:  sourceURL,
		Text: "Dynasty Dozen league home",
		HTML: settingsPageHTML,
	}
}

func standingsPage() *models.PageSnapshot {
	return &models.PageSnapshot{
		URL:  membersURL,
		HTML: standingsPageHTML,
	}
}

func teamPage() *models.PageSnapshot {
	return &models.PageSnapshot{
		URL:  recordURL,
		Text: "Team season summary 8-4-1. PF: 1,204.5 PA: 1,100.2. Week 7 of 14.",
		HTML: "<html><body>team page</body></html>",
	}
}

func newHappyPathDriver() *fakeDriver {
	return &fakeDriver{
		pages: map[string]*models.PageSnapshot{
			loginURL:   authenticatedLoginPage(),
			sourceURL:  leagueHomePage(),
			membersURL: standingsPage(),
			recordURL:  teamPage(),
		},
		navErr: map[string]error{},
		clickMap: map[string]string{
			"standings":    membersURL,
			"data-team-id": recordURL,
		},
	}
}

func newTestPipeline(t *testing.T, driver any) (*Pipeline, *models.SessionState, *Reporter) {
	t.Helper()

	session := models.NewSessionState()
	reporter := NewReporter(arbor.NewLogger())

	p := NewPipeline(driver, session, reporter, PipelineConfig{
		MaxAttempts:      1,
		AttemptTimeout:   time.Second,
		AuthPollAttempts: 2,
		AuthPollInterval: time.Millisecond,
		RecoveryWait:     time.Millisecond,
		LoginPath:        "/login",
	}, arbor.NewLogger())

	p.sleep = instantSleep
	p.retry.sleep = instantSleep
	p.recovery.sleep = instantSleep

	return p, session, reporter
}

func testJob() models.Job {
	return models.Job{
		ID:          "league-1",
		DisplayName: "Dynasty Dozen",
		SourceURL:   sourceURL,
		Priority:    1,
	}
}

func TestPipelineHappyPath(t *testing.T) {
	driver := newHappyPathDriver()
	p, session, _ := newTestPipeline(t, driver)

	result := p.Run(context.Background(), testJob())

	assert.True(t, result.Success)
	assert.Empty(t, result.Errors)
	assert.True(t, session.Authenticated())
	assert.True(t, result.DataExtracted.Settings)
	assert.True(t, result.DataExtracted.Members)
	assert.True(t, result.DataExtracted.SubRecords)
	assert.True(t, result.DataExtracted.Metadata)
	assert.NotEmpty(t, result.ID)
	assert.Equal(t, "league-1", result.JobID)
}

func TestPipelineProgressIsMonotonic(t *testing.T) {
	driver := newHappyPathDriver()
	p, _, reporter := newTestPipeline(t, driver)

	sub := &collectingSubscriber{}
	reporter.Subscribe(sub)

	result := p.Run(context.Background(), testJob())
	require.True(t, result.Success)

	require.NotEmpty(t, sub.progress)
	last := sub.progress[0].Progress
	for _, update := range sub.progress[1:] {
		assert.GreaterOrEqual(t, update.Progress, last)
		last = update.Progress
	}
	final := sub.progress[len(sub.progress)-1]
	assert.Equal(t, models.StageComplete, final.Stage)
	assert.Equal(t, 100, final.Progress)
}

func TestPipelineNavigationFailureIsFatal(t *testing.T) {
	driver := newHappyPathDriver()
	driver.navErr[sourceURL] = errors.New("connection reset")

	p, _, reporter := newTestPipeline(t, driver)

	sub := &collectingSubscriber{}
	reporter.Subscribe(sub)

	result := p.Run(context.Background(), testJob())

	assert.False(t, result.Success)
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0], string(models.ErrKindNavigation))

	// Diagnostic screenshot captured best-effort on failure.
	assert.Len(t, driver.captured, 1)

	require.NotEmpty(t, sub.errors)
	assert.Equal(t, models.ErrKindNavigation, sub.errors[0].Kind)
	assert.Equal(t, models.StageNavigating, sub.errors[0].Stage)
}

func TestPipelineOptimisticAuthContinuation(t *testing.T) {
	driver := newHappyPathDriver()
	// The login page never shows a definitive marker either way.
	driver.pages[loginURL] = &models.PageSnapshot{
		URL:  loginURL,
		Text: "Home page with nothing decisive",
		HTML: "<html><body>Home</body></html>",
	}

	p, session, _ := newTestPipeline(t, driver)

	result := p.Run(context.Background(), testJob())

	assert.True(t, result.Success)
	assert.True(t, session.Authenticated())

	found := false
	for _, w := range result.Warnings {
		if strings.Contains(w, "continuing optimistically") {
			found = true
		}
	}
	assert.True(t, found, "expected an optimistic-continuation warning, got %v", result.Warnings)
}

func TestPipelineSubmitsCredentials(t *testing.T) {
	driver := newHappyPathDriver()
	p, _, _ := newTestPipeline(t, driver)

	job := testJob()
	job.Credentials = &models.Credentials{Username: "manager@example.com", Password: "hunter2"}

	result := p.Run(context.Background(), job)

	require.True(t, result.Success)
	require.Len(t, driver.typed, 2)
	assert.Equal(t, "manager@example.com", driver.typed[0])
	assert.Equal(t, "hunter2", driver.typed[1])
}

func TestPipelineSettingsParseFailureIsFatal(t *testing.T) {
	driver := newHappyPathDriver()
	driver.pages[sourceURL] = &models.PageSnapshot{
		URL:  sourceURL,
		Text: "Nothing league-like on this surface",
		HTML: "<html><body><p>Nothing league-like on this surface</p></body></html>",
	}

	p, _, _ := newTestPipeline(t, driver)

	result := p.Run(context.Background(), testJob())

	assert.False(t, result.Success)
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0], string(models.ErrKindParsing))
	assert.False(t, result.DataExtracted.Settings)
}

func TestPipelineStuckNavigationRecoversOnce(t *testing.T) {
	driver := newHappyPathDriver()
	// First snapshot after navigation shows an endless loading stall; the
	// recovery reload replaces it with the healthy page.
	stalled := &models.PageSnapshot{
		URL:  sourceURL,
		Text: "Loading... please wait while we fetch your league",
		HTML: "<html><body>Loading...</body></html>",
	}
	driver.pages[sourceURL] = stalled

	p, _, _ := newTestPipeline(t, driver)

	// The recovery reload sleeps before re-checking; swap in the healthy
	// page there to simulate the stall clearing.
	p.recovery.sleep = func(ctx context.Context, d time.Duration) error {
		driver.pages[sourceURL] = leagueHomePage()
		return ctx.Err()
	}

	result := p.Run(context.Background(), testJob())

	assert.True(t, result.Success)
	found := false
	for _, w := range result.Warnings {
		if strings.Contains(w, "recovered from stuck session") {
			found = true
		}
	}
	assert.True(t, found, "expected a recovery warning, got %v", result.Warnings)
}

func TestPipelineMemberFallbackToPlaceholders(t *testing.T) {
	driver := newHappyPathDriver()
	driver.clickErr = errors.New("element not interactable")

	p, _, _ := newTestPipeline(t, driver)

	result := p.Run(context.Background(), testJob())

	// Member extraction failure is never fatal.
	assert.True(t, result.Success)
	assert.True(t, result.DataExtracted.Settings)
	assert.False(t, result.DataExtracted.Members)

	found := false
	for _, w := range result.Warnings {
		if strings.Contains(w, "placeholder members") {
			found = true
		}
	}
	assert.True(t, found, "expected a placeholder warning, got %v", result.Warnings)
}

func TestPipelineNoDriverSynthesizesData(t *testing.T) {
	p, session, _ := newTestPipeline(t, nil)

	assert.False(t, session.DriverAvailable())
	assert.Equal(t, 0, session.CapabilityCount())

	result := p.Run(context.Background(), testJob())

	assert.True(t, result.Success)
	assert.Empty(t, result.Errors)
	assert.NotEmpty(t, result.Warnings)
	assert.False(t, result.DataExtracted.Settings)
	assert.False(t, result.DataExtracted.Members)
	assert.False(t, result.DataExtracted.SubRecords)
	assert.False(t, result.DataExtracted.Metadata)
}

func TestPipelineBelowCapabilityThreshold(t *testing.T) {
	p, session, _ := newTestPipeline(t, navSnapDriver{})

	assert.Equal(t, 2, session.CapabilityCount())
	assert.False(t, session.DriverAvailable())

	result := p.Run(context.Background(), testJob())
	assert.True(t, result.Success)
}

func TestPipelineConcurrentSessionReads(t *testing.T) {
	driver := newHappyPathDriver()
	p, session, _ := newTestPipeline(t, driver)

	// Status handlers read the session while a run mutates it. Hammer the
	// read side for the duration of a full run; go test -race flags any
	// unsynchronized access.
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			default:
			}
			snap := session.Snapshot()
			_ = snap.CurrentURL
			_ = session.Authenticated()
			_ = session.CurrentURL()
			_ = session.DriverAvailable()
		}
	}()

	result := p.Run(context.Background(), testJob())
	close(stop)
	<-done

	assert.True(t, result.Success)
	assert.True(t, session.Snapshot().IsAuthenticated)
}

func TestPipelineFullCapabilityProbe(t *testing.T) {
	_, session, _ := newTestPipeline(t, newHappyPathDriver())

	assert.Equal(t, models.MinDriverCapabilities+2, session.CapabilityCount())
	assert.True(t, session.DriverAvailable())
	assert.True(t, session.HasCapability(models.CapabilityNavigate))
	assert.True(t, session.HasCapability(models.CapabilitySnapshot))
	assert.True(t, session.HasCapability(models.CapabilityClick))
	assert.True(t, session.HasCapability(models.CapabilityType))
	assert.True(t, session.HasCapability(models.CapabilityCapture))
}
