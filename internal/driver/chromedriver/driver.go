package chromedriver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	gosync "sync"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"

	"github.com/matchdaylabs/leaguesync/internal/common"
	"github.com/matchdaylabs/leaguesync/internal/models"
)

// Driver drives a single headless Chrome instance. It implements the full
// automation capability set: navigate, snapshot, click, type, and artifact
// capture. The pipeline probes these via interface assertions, so a build
// swapping in a reduced driver degrades gracefully rather than failing.
type Driver struct {
	cfg    common.DriverConfig
	logger arbor.ILogger

	mu              gosync.Mutex
	browserCtx      context.Context
	browserCancel   context.CancelFunc
	allocatorCancel context.CancelFunc
	started         bool
}

// New creates a driver; Start must be called before use.
func New(cfg common.DriverConfig, logger arbor.ILogger) *Driver {
	if cfg.UserAgent == "" {
		cfg.UserAgent = "LeagueSync/1.0"
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 30 * time.Second
	}
	return &Driver{cfg: cfg, logger: logger}
}

// Start launches the browser process and verifies it responds.
func (d *Driver) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started {
		return fmt.Errorf("driver already started")
	}

	startTime := time.Now()

	allocatorOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", d.cfg.Headless),
		chromedp.Flag("disable-gpu", d.cfg.DisableGPU),
		chromedp.Flag("no-sandbox", d.cfg.NoSandbox),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(d.cfg.UserAgent),
	)

	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), allocatorOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)

	// Startup test: a browser that cannot load about:blank is unusable.
	testCtx, testCancel := context.WithTimeout(browserCtx, d.cfg.NavigationTimeout)
	defer testCancel()

	if err := chromedp.Run(testCtx, chromedp.Navigate("about:blank")); err != nil {
		browserCancel()
		allocatorCancel()
		return fmt.Errorf("browser failed startup test: %w", err)
	}

	d.browserCtx = browserCtx
	d.browserCancel = browserCancel
	d.allocatorCancel = allocatorCancel
	d.started = true

	d.logger.Info().
		Bool("headless", d.cfg.Headless).
		Str("user_agent", d.cfg.UserAgent).
		Dur("startup_time", time.Since(startTime)).
		Msg("Browser driver started")

	return nil
}

// Stop shuts the browser down. Safe to call more than once.
func (d *Driver) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.started {
		return
	}
	d.browserCancel()
	d.allocatorCancel()
	d.started = false
	d.logger.Info().Msg("Browser driver stopped")
}

// run executes chromedp actions against the browser with a deadline, honoring
// the caller's context for cancellation. chromedp actions must run on the
// browser context chain, so cancellation is bridged manually.
func (d *Driver) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	d.mu.Lock()
	browserCtx := d.browserCtx
	started := d.started
	d.mu.Unlock()

	if !started {
		return fmt.Errorf("driver not started")
	}

	runCtx, cancel := context.WithTimeout(browserCtx, timeout)
	defer cancel()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-done:
		}
	}()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return nil
}

// Navigate loads the URL and waits for the render settle delay.
func (d *Driver) Navigate(ctx context.Context, url string) error {
	actions := []chromedp.Action{chromedp.Navigate(url)}
	if d.cfg.RenderWaitTime > 0 {
		actions = append(actions, chromedp.Sleep(d.cfg.RenderWaitTime))
	}

	if err := d.run(ctx, d.cfg.NavigationTimeout, actions...); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}

	d.logger.Debug().Str("url", url).Msg("Navigated")
	return nil
}

// Snapshot captures the current page as HTML plus a markdown text rendering.
func (d *Driver) Snapshot(ctx context.Context) (*models.PageSnapshot, error) {
	var (
		location string
		title    string
		html     string
	)

	err := d.run(ctx, d.cfg.NavigationTimeout,
		chromedp.Location(&location),
		chromedp.Title(&title),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}

	snapshot := &models.PageSnapshot{
		URL:        location,
		Title:      title,
		HTML:       html,
		CapturedAt: time.Now(),
	}

	converter := md.NewConverter(location, true, nil)
	if text, convErr := converter.ConvertString(html); convErr == nil {
		snapshot.Text = text
	} else {
		d.logger.Debug().Err(convErr).Str("url", location).Msg("Markdown conversion failed, snapshot carries HTML only")
	}

	return snapshot, nil
}

// Click tries each locator candidate in order and returns on the first
// success. CSS selectors run through querySelector; jQuery-style
// :contains() candidates are translated to XPath text matches.
func (d *Driver) Click(ctx context.Context, candidates []string) error {
	var lastErr error
	for _, candidate := range candidates {
		sel, opt := translateLocator(candidate)

		err := d.run(ctx, d.cfg.NavigationTimeout,
			chromedp.Click(sel, opt, chromedp.NodeVisible),
		)
		if err == nil {
			if d.cfg.RenderWaitTime > 0 {
				_ = d.run(ctx, d.cfg.NavigationTimeout, chromedp.Sleep(d.cfg.RenderWaitTime))
			}
			d.logger.Debug().Str("locator", candidate).Msg("Clicked")
			return nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no locator candidates provided")
	}
	return fmt.Errorf("click failed for all %d candidates: %w", len(candidates), lastErr)
}

// Type enters text into the first element matching the locator.
func (d *Driver) Type(ctx context.Context, locator, text string) error {
	sel, opt := translateLocator(locator)

	err := d.run(ctx, d.cfg.NavigationTimeout,
		chromedp.SendKeys(sel, text, opt),
	)
	if err != nil {
		return fmt.Errorf("type into %s: %w", locator, err)
	}
	return nil
}

// CaptureArtifact saves a full-page screenshot under the artifact directory.
func (d *Driver) CaptureArtifact(ctx context.Context, name string) error {
	var buf []byte
	capture := chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		buf, err = page.CaptureScreenshot().
			WithCaptureBeyondViewport(true).
			Do(ctx)
		return err
	})
	if err := d.run(ctx, d.cfg.NavigationTimeout, capture); err != nil {
		return fmt.Errorf("capture screenshot: %w", err)
	}

	dir := d.cfg.ArtifactDir
	if dir == "" {
		dir = "artifacts"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}

	path := filepath.Join(dir, name+".png")
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}

	d.logger.Debug().Str("path", path).Int("bytes", len(buf)).Msg("Artifact captured")
	return nil
}

// translateLocator maps a locator candidate to a chromedp selector and query
// option. jQuery-style tag:contains("text") becomes an XPath text search
// since querySelector has no :contains pseudo-class.
func translateLocator(locator string) (string, chromedp.QueryOption) {
	idx := strings.Index(locator, ":contains(")
	if idx < 0 {
		return locator, chromedp.ByQuery
	}

	tag := strings.TrimSpace(locator[:idx])
	if i := strings.LastIndexAny(tag, " >"); i >= 0 {
		tag = tag[i+1:]
	}
	if tag == "" {
		tag = "*"
	}

	text := locator[idx+len(":contains("):]
	text = strings.TrimSuffix(text, ")")
	text = strings.Trim(text, `"'`)

	return fmt.Sprintf(`//%s[contains(., "%s")]`, tag, text), chromedp.BySearch
}
