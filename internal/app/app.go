package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	_ "github.com/lib/pq"

	"TrafficSync/internal/config"
	"TrafficSync/internal/domain"
	"TrafficSync/internal/infrastructure/analytics"
	"TrafficSync/internal/infrastructure/catalog"
	"TrafficSync/internal/infrastructure/scheduler"
	"TrafficSync/internal/logging"
	"TrafficSync/internal/server"
	"TrafficSync/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	db        *sql.DB
	pipeline  *usecase.Pipeline
	scheduler *usecase.Scheduler
	server    *server.Server
}

// New builds a runnable application instance. Configuration problems (an
// unreachable catalog DSN, for example) surface here, before any run starts.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}

	db, err := sql.Open("postgres", cfg.Catalog.DSN)
	if err != nil {
		return nil, fmt.Errorf("open catalog connection: %w", err)
	}

	warehouse := analytics.NewClient(cfg.Analytics, cfg.Content, nil, baseLogger.With("component", "analytics"))
	contentCatalog := catalog.NewPostgresCatalog(db, baseLogger.With("component", "catalog"))

	loader := usecase.NewMappingLoader(contentCatalog, cfg.Content.Section, cfg.Sync.MappingLimit,
		baseLogger.With("component", "mapping"))
	fetcher := usecase.NewFetcher(warehouse, cfg.Sync.RowLimit, nil, nil,
		baseLogger.With("component", "fetcher"))
	reconciler := usecase.NewReconciler(cfg.Content.Host, cfg.Content.Section,
		baseLogger.With("component", "reconciler"))
	dispatcher := usecase.NewDispatcher(contentCatalog, cfg.Sync.BatchSize,
		baseLogger.With("component", "dispatcher"))

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Loader:     loader,
		Fetcher:    fetcher,
		Reconciler: reconciler,
		Dispatcher: dispatcher,
		Budget:     cfg.Sync.Budget(),
		Logger:     baseLogger.With("component", "pipeline"),
	})

	application := &Application{
		cfg:      cfg,
		logger:   baseLogger,
		db:       db,
		pipeline: pipeline,
		server:   server.New(pipeline, cfg.Sync.DaysBack, baseLogger.With("component", "server")),
	}

	if cfg.Scheduler.Enabled {
		driver := scheduler.NewIntervalScheduler(cfg.Scheduler.Every())
		application.scheduler = usecase.NewScheduler(driver, pipeline, cfg.Sync.DaysBack,
			baseLogger.With("component", "scheduler"))
	}

	return application, nil
}

// Run starts the scheduler (when enabled) and serves the HTTP trigger until
// the context is cancelled or the listener fails.
func (a *Application) Run(ctx context.Context) error {
	if a.scheduler != nil {
		if err := a.scheduler.Start(ctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		defer func() { _ = a.scheduler.Stop(context.Background()) }()
	}

	httpServer := &http.Server{
		Addr:    a.cfg.Server.Addr,
		Handler: a.server.Routes(),
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http trigger listening", "addr", a.cfg.Server.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		_ = httpServer.Shutdown(context.Background())
		return nil
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	}
}

// RunOnce executes a single reconciliation pass and returns its result.
func (a *Application) RunOnce(ctx context.Context) domain.SyncResult {
	return a.pipeline.Run(ctx, a.cfg.Sync.DaysBack)
}

// Close releases held resources.
func (a *Application) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}
