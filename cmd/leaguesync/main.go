package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/matchdaylabs/leaguesync/internal/common"
	"github.com/matchdaylabs/leaguesync/internal/driver/chromedriver"
	"github.com/matchdaylabs/leaguesync/internal/handlers"
	"github.com/matchdaylabs/leaguesync/internal/interfaces"
	"github.com/matchdaylabs/leaguesync/internal/jobs"
	"github.com/matchdaylabs/leaguesync/internal/models"
	"github.com/matchdaylabs/leaguesync/internal/server"
	"github.com/matchdaylabs/leaguesync/internal/services/events"
	"github.com/matchdaylabs/leaguesync/internal/services/scheduler"
	badgerstore "github.com/matchdaylabs/leaguesync/internal/storage/badger"
	lsync "github.com/matchdaylabs/leaguesync/internal/sync"
)

// configPaths is a custom flag type that allows multiple -config flags
type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	configFiles  configPaths
	serverPort   = flag.Int("port", 0, "Server port (overrides config)")
	serverHost   = flag.String("host", "", "Server host (overrides config)")
	runOnce      = flag.Bool("once", false, "Run all jobs once and exit")
	runJob       = flag.String("job", "", "Run a single job by id and exit")
	showVersion  = flag.Bool("version", false, "Print version information")
	showVersionV = flag.Bool("v", false, "Print version information (shorthand)")

	config *common.Config
	logger arbor.ILogger
)

func init() {
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times, later files override earlier ones)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
}

func main() {
	flag.Parse()

	if *showVersion || *showVersionV {
		fmt.Printf("LeagueSync version %s\n", common.GetVersion())
		os.Exit(0)
	}

	// Startup sequence (REQUIRED ORDER):
	// 1. Load config (defaults -> files -> env)
	// 2. Apply CLI overrides (highest priority)
	// 3. Initialize logger
	// 4. Print banner

	if len(configFiles) == 0 {
		if _, err := os.Stat("leaguesync.toml"); err == nil {
			configFiles = append(configFiles, "leaguesync.toml")
		}
	}

	var err error
	config, err = common.LoadFromFiles(configFiles...)
	if err != nil {
		tempLogger := arbor.NewLogger()
		tempLogger.Fatal().Strs("paths", configFiles).Err(err).Msg("Failed to load configuration")
		os.Exit(1)
	}

	common.ApplyFlagOverrides(config, *serverPort, *serverHost)

	logger = common.InitLogger(config)
	common.PrintBanner(common.GetVersion())
	common.InstallCrashHandler("./logs")

	logger.Info().
		Strs("config_files", configFiles).
		Str("environment", config.Environment).
		Str("log_level", config.Logging.Level).
		Msg("Configuration loaded")

	if code := run(); code != 0 {
		os.Exit(code)
	}
}

// run wires the application together and executes the requested mode.
func run() int {
	// Browser driver. A driver that fails to start is replaced by no driver
	// at all; the pipeline then runs in synthesized-data mode instead of
	// failing every job on a broken browser.
	var driver any
	chrome := chromedriver.New(config.Driver, logger)
	if err := chrome.Start(); err != nil {
		logger.Warn().Err(err).Msg("Browser driver unavailable - continuing with synthesized data")
	} else {
		driver = chrome
		defer chrome.Stop()
	}

	session := models.NewSessionState()
	reporter := lsync.NewReporter(logger)

	eventService := events.NewService(logger)
	defer eventService.Close()
	unsubscribe := reporter.Subscribe(events.NewProgressBridge(eventService, logger))
	defer unsubscribe()

	pipeline := lsync.NewPipeline(driver, session, reporter, lsync.PipelineConfig{
		MaxAttempts:      config.Sync.MaxAttempts,
		AttemptTimeout:   config.Sync.AttemptTimeout,
		AuthPollAttempts: config.Sync.AuthPollAttempts,
		AuthPollInterval: config.Sync.AuthPollInterval,
		MemberPacing:     config.Sync.MemberPacing,
		RecoveryWait:     config.Sync.RecoveryWait,
		LoginPath:        config.Sync.LoginPath,
	}, logger)

	// Result history store.
	var store interfaces.ResultStorage
	var db *badgerstore.BadgerDB
	if config.Storage.Badger.Enabled {
		opened, err := badgerstore.NewBadgerDB(logger, &config.Storage.Badger)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to open result store - history disabled")
		} else {
			db = opened
			defer db.Close()
			store = badgerstore.NewResultStorage(db, logger)
		}
	}

	loader := jobs.NewLoader(config.Jobs.DefinitionsDir, logger)
	jobList, err := loader.Load()
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load job definitions")
		return 1
	}
	if len(jobList) == 0 {
		logger.Warn().Str("dir", config.Jobs.DefinitionsDir).Msg("No job definitions found")
	}

	coordinator := lsync.NewCoordinator(pipeline, reporter, store, jobList, config.Sync.JobPacing, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if db != nil {
		go db.GCLoop(ctx, time.Hour)
	}

	// One-shot modes.
	if *runJob != "" {
		result, err := coordinator.RerunJob(ctx, *runJob)
		if err != nil {
			logger.Error().Err(err).Str("job_id", *runJob).Msg("Job run failed")
			return 1
		}
		if !result.Success {
			return 1
		}
		return 0
	}
	if *runOnce {
		results := coordinator.RunAll(ctx)
		for _, r := range results {
			if !r.Success {
				return 1
			}
		}
		return 0
	}

	// Server mode: HTTP API, optional websocket streaming, optional cron.
	var sched *scheduler.Service
	if config.Scheduler.Enabled {
		sched = scheduler.NewService(coordinator, logger)
		if err := sched.Start(config.Scheduler.Schedule); err != nil {
			logger.Error().Err(err).Msg("Failed to start scheduler")
			return 1
		}
		defer sched.Stop()
	}

	var ws *handlers.WebSocketHandler
	if config.WebSocket.Enabled {
		ws = handlers.NewWebSocketHandler(eventService, logger, &config.WebSocket)
	}

	api := handlers.NewAPIHandler(coordinator, store, session, sched, ws, logger)
	srv := server.New(config, api, ws, logger)

	go func() {
		defer common.RecoverWithCrashFile()
		if err := srv.Start(); err != nil {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	logger.Info().
		Str("url", fmt.Sprintf("http://%s:%d", config.Server.Host, config.Server.Port)).
		Msg("Server ready - Press Ctrl+C to stop")

	<-ctx.Done()
	logger.Info().Msg("Interrupt signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server shutdown failed")
		return 1
	}

	logger.Info().Msg("Server stopped")
	return 0
}
