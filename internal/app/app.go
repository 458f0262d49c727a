package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/heygregwood/woodhouse-creative-sub001/internal/common"
	"github.com/heygregwood/woodhouse-creative-sub001/internal/handlers"
	"github.com/heygregwood/woodhouse-creative-sub001/internal/interfaces"
	"github.com/heygregwood/woodhouse-creative-sub001/internal/queue"
	"github.com/heygregwood/woodhouse-creative-sub001/internal/services/drive"
	"github.com/heygregwood/woodhouse-creative-sub001/internal/services/renderer"
	"github.com/heygregwood/woodhouse-creative-sub001/internal/services/schedule"
	"github.com/heygregwood/woodhouse-creative-sub001/internal/services/scheduler"
	"github.com/heygregwood/woodhouse-creative-sub001/internal/storage/badger"
)

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	StorageManager interfaces.StorageManager

	// Domain services
	RendererClient   interfaces.RendererClient
	DriveClient      *drive.Client
	FolderResolver   interfaces.FolderResolver
	ScheduleSource   interfaces.ScheduleSource
	SchedulerService interfaces.SchedulerService

	// Queue components
	Aggregator        *queue.Aggregator
	JobManager        *queue.JobManager
	Dispatcher        *queue.Dispatcher
	CompletionHandler *queue.CompletionHandler
	Archiver          *queue.Archiver
	Poller            *queue.Poller

	// HTTP handlers
	APIHandler     *handlers.APIHandler
	WebhookHandler *handlers.WebhookHandler
	BatchHandler   *handlers.BatchHandler
	JobHandler     *handlers.JobHandler
	DealerHandler  *handlers.DealerHandler
}

// New initializes the application with all dependencies
func New(ctx context.Context, cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := app.initStorage(); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	if err := app.initServices(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.initQueue()
	app.initHandlers()

	if err := app.registerScheduledTasks(); err != nil {
		return nil, fmt.Errorf("failed to register scheduled tasks: %w", err)
	}

	logger.Info().
		Str("dispatch_schedule", cfg.Queue.DispatchSchedule).
		Str("poll_schedule", cfg.Queue.PollSchedule).
		Msg("Application initialization complete")

	return app, nil
}

// initStorage initializes the storage layer (Badger)
func (a *App) initStorage() error {
	storageManager, err := badger.NewManager(a.Logger, &a.Config.Storage.Badger)
	if err != nil {
		return fmt.Errorf("failed to create storage manager: %w", err)
	}

	a.StorageManager = storageManager
	a.Logger.Debug().
		Str("storage", "badger").
		Str("path", a.Config.Storage.Badger.Path).
		Msg("Storage layer initialized")

	return nil
}

// initServices creates the renderer, Drive, and schedule clients
func (a *App) initServices(ctx context.Context) error {
	rendererOpts := []renderer.ClientOption{
		renderer.WithLogger(a.Logger),
		renderer.WithRateLimit(a.Config.Creatomate.RatePerSecond),
	}
	if a.Config.Creatomate.BaseURL != "" {
		rendererOpts = append(rendererOpts, renderer.WithBaseURL(a.Config.Creatomate.BaseURL))
	}
	if a.Config.Creatomate.WebhookURL != "" {
		rendererOpts = append(rendererOpts, renderer.WithWebhookURL(a.Config.Creatomate.WebhookURL))
	}
	if timeout, err := time.ParseDuration(a.Config.Creatomate.RequestTimeout); err == nil && timeout > 0 {
		rendererOpts = append(rendererOpts, renderer.WithHTTPClient(&http.Client{Timeout: timeout}))
	}
	if timeout, err := time.ParseDuration(a.Config.Creatomate.DownloadTimeout); err == nil && timeout > 0 {
		rendererOpts = append(rendererOpts, renderer.WithDownloadClient(&http.Client{Timeout: timeout}))
	}
	a.RendererClient = renderer.NewClient(a.Config.Creatomate.APIKey, rendererOpts...)

	driveClient, err := drive.NewClient(
		ctx,
		a.Config.Drive.ServiceAccountEmail,
		a.Config.Drive.PrivateKey,
		drive.WithLogger(a.Logger),
	)
	if err != nil {
		return fmt.Errorf("failed to create drive client: %w", err)
	}
	a.DriveClient = driveClient
	a.FolderResolver = drive.NewResolver(driveClient, a.Config.Drive.RootFolderID, a.Logger)

	scheduleSource, err := a.buildScheduleSource(ctx)
	if err != nil {
		return fmt.Errorf("failed to create schedule source: %w", err)
	}
	a.ScheduleSource = scheduleSource

	a.SchedulerService = scheduler.NewService(a.Logger)

	return nil
}

// buildScheduleSource prefers the spreadsheet when configured, otherwise the
// static post list from config
func (a *App) buildScheduleSource(ctx context.Context) (interfaces.ScheduleSource, error) {
	if a.Config.Schedule.SpreadsheetID == "" {
		a.Logger.Info().
			Int("active_posts", len(a.Config.Schedule.ActivePosts)).
			Msg("Using static schedule source")
		return schedule.NewStaticSource(a.Config.Schedule.ActivePosts), nil
	}

	opts := []schedule.SourceOption{}
	if refresh, err := time.ParseDuration(a.Config.Schedule.RefreshInterval); err == nil && refresh > 0 {
		opts = append(opts, schedule.WithRefreshInterval(refresh))
	}

	return schedule.NewSheetsSource(
		ctx,
		a.Config.Drive.ServiceAccountEmail,
		a.Config.Drive.PrivateKey,
		a.Config.Schedule.SpreadsheetID,
		a.Config.Schedule.Range,
		a.Logger,
		opts...,
	)
}

// initQueue wires the batch aggregation and job lifecycle components
func (a *App) initQueue() {
	a.Aggregator = queue.NewAggregator(a.StorageManager, a.Logger)
	a.JobManager = queue.NewJobManager(a.StorageManager, a.Aggregator, a.Logger)
	a.Dispatcher = queue.NewDispatcher(a.StorageManager, a.RendererClient, a.Aggregator, a.Config.Queue.DispatchLimit, a.Logger)
	a.Archiver = queue.NewArchiver(a.DriveClient, a.FolderResolver, a.Logger)
	a.CompletionHandler = queue.NewCompletionHandler(
		a.StorageManager,
		a.RendererClient,
		a.FolderResolver,
		a.DriveClient,
		a.Archiver,
		a.ScheduleSource,
		a.Aggregator,
		a.Config.Drive.DealersFolder,
		a.Config.Queue.MaxRetries,
		a.Logger,
	)
	a.Poller = queue.NewPoller(a.StorageManager, a.RendererClient, a.CompletionHandler, a.Config.Queue.StaleThresholdDuration(), a.Logger)
}

// initHandlers creates the HTTP handlers
func (a *App) initHandlers() {
	a.APIHandler = handlers.NewAPIHandler()
	a.WebhookHandler = handlers.NewWebhookHandler(a.CompletionHandler)
	a.BatchHandler = handlers.NewBatchHandler(a.JobManager, a.StorageManager)
	a.JobHandler = handlers.NewJobHandler(a.JobManager, a.StorageManager)
	a.DealerHandler = handlers.NewDealerHandler(a.StorageManager)
}

// registerScheduledTasks puts the dispatcher and backup poller on their cron
// schedules
func (a *App) registerScheduledTasks() error {
	if err := a.SchedulerService.Register("dispatch-pending", a.Config.Queue.DispatchSchedule, a.Dispatcher.DispatchPending); err != nil {
		return err
	}
	if err := a.SchedulerService.Register("poll-stale", a.Config.Queue.PollSchedule, a.Poller.PollStale); err != nil {
		return err
	}
	return nil
}

// Start begins background processing
func (a *App) Start() error {
	return a.SchedulerService.Start()
}

// Close shuts down background processing and releases resources
func (a *App) Close() error {
	if a.SchedulerService != nil {
		if err := a.SchedulerService.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop scheduler service")
		}
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close storage")
			return err
		}
	}

	a.Logger.Info().Msg("Application shutdown complete")
	return nil
}
