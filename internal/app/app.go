package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/ainaju618-blip/koreanewskorea-sub009/internal/config"
	"github.com/ainaju618-blip/koreanewskorea-sub009/internal/infrastructure/behavior"
	"github.com/ainaju618-blip/koreanewskorea-sub009/internal/infrastructure/llm"
	"github.com/ainaju618-blip/koreanewskorea-sub009/internal/infrastructure/parser"
	"github.com/ainaju618-blip/koreanewskorea-sub009/internal/infrastructure/process"
	"github.com/ainaju618-blip/koreanewskorea-sub009/internal/infrastructure/scheduler"
	"github.com/ainaju618-blip/koreanewskorea-sub009/internal/infrastructure/storage"
	"github.com/ainaju618-blip/koreanewskorea-sub009/internal/infrastructure/telegram"
	"github.com/ainaju618-blip/koreanewskorea-sub009/internal/logging"
	"github.com/ainaju618-blip/koreanewskorea-sub009/internal/ports"
	"github.com/ainaju618-blip/koreanewskorea-sub009/internal/scanner"
	"github.com/ainaju618-blip/koreanewskorea-sub009/internal/transport/httpapi"
	"github.com/ainaju618-blip/koreanewskorea-sub009/internal/usecase"
)

const (
	shutdownTimeout     = 15 * time.Second
	orphanedRunMessage  = "process restarted before the run finished"
	readHeaderTimeout   = 10 * time.Second
	rewriteWriteTimeout = 30 * time.Minute
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg    config.Config
	logger *slog.Logger

	db        *sql.DB
	redis     *behavior.RedisStore
	runLogs   *storage.RunLogRepository
	cron      *scheduler.CronScheduler
	scheduler *usecase.TestScheduler
	server    *http.Server
}

// New connects the stores and builds every use case.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.NewWithFormat(os.Stdout, cfg.Logging.Level, cfg.Logging.Format)
	}
	component := func(name string) *slog.Logger { return baseLogger.With("component", name) }

	db, err := storage.Open(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	if err := storage.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	a := &Application{cfg: cfg, logger: baseLogger, db: db}

	a.runLogs = storage.NewRunLogRepository(db)
	articles := storage.NewArticleRepository(db)
	settings := storage.NewSettingsRepository(db)
	sweeps := storage.NewSweepRepository(db)
	boosts := storage.NewBoostRepository(db)

	var behaviorStore ports.BehaviorStore
	if cfg.Redis.Addr != "" {
		a.redis = behavior.NewRedisStore(cfg.Redis)
		if err := a.redis.Ping(ctx); err != nil {
			// Feeds fall back to time-only scoring without behavior counters.
			baseLogger.Warn("viewer behavior store unavailable", "addr", cfg.Redis.Addr, "error", err)
		}
		behaviorStore = a.redis
	}

	var notifier ports.Notifier
	if tg := telegram.NewNotifier(cfg.Notifications.Telegram.BotToken, cfg.Notifications.Telegram.ChatID); tg.Configured() {
		notifier = tg
	}

	generator, err := llm.New(cfg.Model)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("model client: %w", err)
	}

	registry := scanner.NewRegistry()
	registry.Register(scanner.SpecializedScripts{Dir: cfg.Scraper.ScriptsDir, Interpreter: cfg.Scraper.Interpreter})
	registry.Register(scanner.RegionalScripts{Dir: cfg.Scraper.ScriptsDir, Interpreter: cfg.Scraper.Interpreter})
	registry.Register(scanner.UniversalScript{Path: cfg.Scraper.UniversalScript, Interpreter: cfg.Scraper.Interpreter})

	runner := process.NewExecRunner("")
	regions := cfg.RegionIDs()

	launcher := usecase.NewLauncher(usecase.LauncherDeps{
		Registry:   registry,
		Runner:     runner,
		Logs:       a.runLogs,
		Regions:    regions,
		OutputCap:  cfg.Scraper.OutputCap,
		MaxRuntime: cfg.Scraper.MaxRuntime,
		Logger:     component("launcher"),
	})

	verifier := usecase.NewVerifier(generator, cfg.Verification.MinLengthRatio, component("verifier"))
	loop := usecase.NewVerificationLoop(
		usecase.NewRewriter(generator, component("rewriter")),
		verifier,
		cfg.Verification.MaxAttempts,
		component("verification"),
	)
	processor := usecase.NewArticleProcessor(usecase.PipelineDeps{
		Articles:      articles,
		Loop:          loop,
		Notifier:      notifier,
		Normalize:     parser.PlainText,
		HoldForReview: cfg.Verification.HoldForReview,
		Logger:        component("pipeline"),
	})

	loc := cfg.Scheduler.Location()
	a.cron = scheduler.NewCronScheduler(loc, component("cron"))
	a.scheduler = usecase.NewTestScheduler(usecase.TestSchedulerDeps{
		Driver:       a.cron,
		Launcher:     launcher,
		Settings:     settings,
		History:      sweeps,
		Notifier:     notifier,
		Regions:      regions,
		DefaultCrons: cfg.Scheduler.DefaultCrons,
		Validate:     scheduler.Validate,
		Logger:       component("test-scheduler"),
		Now:          func() time.Time { return time.Now().In(loc) },
	})

	feed := usecase.NewFeedService(usecase.FeedDeps{
		Articles: articles,
		Settings: settings,
		Boosts:   boosts,
		Behavior: behaviorStore,
		Logger:   component("feed"),
	})

	var model *usecase.ModelServer
	if stop := cfg.Model.StopCommand; len(stop) > 0 {
		model = usecase.NewModelServer(runner, stop[0], stop[1:], component("model-server"))
	}

	api := httpapi.New(httpapi.Deps{
		Scraper:   launcher,
		RunLogs:   a.runLogs,
		Articles:  processor,
		Scheduler: a.scheduler,
		Feed:      feed,
		Model:     modelControl(model),
		Logger:    baseLogger,
	})
	a.server = &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api,
		ReadHeaderTimeout: readHeaderTimeout,
		// Synchronous rewrite and sweep requests wait on several model calls.
		WriteTimeout: rewriteWriteTimeout,
	}

	return a, nil
}

// modelControl keeps a nil *ModelServer from becoming a non-nil interface.
func modelControl(m *usecase.ModelServer) httpapi.ModelControl {
	if m == nil {
		return nil
	}
	return m
}

// Run arms the scheduler, serves HTTP until ctx is cancelled and then shuts
// everything down.
func (a *Application) Run(ctx context.Context) error {
	defer a.close()

	if n, err := a.runLogs.ResetStaleRunLogs(ctx, time.Now(), orphanedRunMessage); err != nil {
		a.logger.Warn("reset orphaned runs", "error", err)
	} else if n > 0 {
		a.logger.Info("reset orphaned runs", "count", n)
	}

	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start test scheduler: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	a.scheduler.Stop()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("http shutdown", "error", err)
	}
	if err := a.cron.Stop(shutdownCtx); err != nil {
		a.logger.Warn("cron shutdown", "error", err)
	}

	if serveErr != nil {
		return fmt.Errorf("http server: %w", serveErr)
	}
	return nil
}

func (a *Application) close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("close redis", "error", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("close database", "error", err)
		}
	}
}
