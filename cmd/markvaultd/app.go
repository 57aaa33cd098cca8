package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/markvault/markvault/internal/action"
	"github.com/markvault/markvault/internal/api"
	"github.com/markvault/markvault/internal/bookmarks"
	"github.com/markvault/markvault/internal/config"
	"github.com/markvault/markvault/internal/domain"
	"github.com/markvault/markvault/internal/events"
	"github.com/markvault/markvault/internal/github"
	"github.com/markvault/markvault/internal/kv"
	"github.com/markvault/markvault/internal/platform/logger"
	"github.com/markvault/markvault/internal/scheduler"
	"github.com/markvault/markvault/internal/store"
	"github.com/markvault/markvault/internal/task"
)

// application holds the wired dependency graph of the daemon.
type application struct {
	config    *config.Config
	logger    *slog.Logger
	bolt      *kv.Bolt
	taskStore *store.TaskStore
	bookmarks *bookmarks.MemoryStore
	emitter   *events.InMemoryEmitter
	executor  *task.Executor
	scheduler *scheduler.Scheduler
	taskAPI   *api.TaskHandler
	eventAPI  *api.EventHandler
}

// initializeApp loads configuration and wires every component: storage,
// bookmark store, action handlers, executor, dispatcher, scheduler, and the
// API handlers. It also performs startup recovery of interrupted and failed
// tasks.
func initializeApp(ctx context.Context) (*application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger := logger.Setup(cfg.Server)
	appLogger.Info("configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"storage_path", cfg.Storage.Path)

	// Durable key-value storage with bounded write retries.
	bolt, err := kv.OpenBolt(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("open storage %s: %w", cfg.Storage.Path, err)
	}
	kvStore := kv.WithRetry(bolt, appLogger)

	taskStore := store.NewTaskStore(kvStore, appLogger)
	bookmarkStore := bookmarks.NewMemoryStore()

	// GitHub credentials: a configured token seeds the store once, tokens
	// set later through storage win.
	creds := github.NewKVCredentialStore(kvStore)
	if cfg.GitHub.Token != "" {
		if _, err := creds.GetGitHubCredentials(ctx); err != nil {
			if err := creds.SetGitHubCredentials(ctx, github.Credentials{Token: cfg.GitHub.Token}); err != nil {
				return nil, fmt.Errorf("seed GitHub credentials: %w", err)
			}
			appLogger.Info("seeded GitHub credentials from configuration")
		}
	}

	// Action handlers.
	registry := action.NewRegistry()
	backupHandler := action.NewBackupHandler(creds, github.Dial, bookmarkStore, appLogger)
	pushHandler := action.NewPushHandler(creds, github.Dial, bookmarkStore, appLogger)
	registry.Register(domain.ActionTypeBackup, backupHandler)
	registry.Register(domain.ActionTypeOrganize, action.NewOrganizeHandler(bookmarkStore, appLogger))
	registry.Register(domain.ActionTypePush, pushHandler)
	registry.Register(domain.ActionTypeSelectivePush, pushHandler)

	// Executor and dispatcher over the shared store.
	executor := task.NewExecutor(taskStore, registry, task.ExecutorConfig{
		Timeout:    cfg.Executor.Timeout(),
		MaxRetries: cfg.Executor.MaxRetries,
		RetryDelay: cfg.Executor.RetryDelay(),
	}, appLogger)
	dispatcher := task.NewDispatcher(taskStore, executor, appLogger)

	// Event pipeline: bookmark mutations and external events both flow
	// through the emitter into the dispatcher.
	emitter := events.NewInMemoryEmitter(appLogger)
	emitter.RegisterHandler(dispatcher)
	bookmarkStore.OnMutation(func(kind domain.EventKind, node *bookmarks.Node) {
		event := events.Event{Kind: kind, Data: map[string]string{
			"url":   node.URL,
			"title": node.Title,
		}}
		if err := emitter.EmitEvent(context.Background(), event); err != nil {
			appLogger.Warn("bookmark event handling reported an error",
				"event", kind, "error", err)
		}
	})

	// Startup recovery: interrupted RUNNING tasks fail, recoverable FAILED
	// tasks re-enable.
	if err := executor.Init(ctx); err != nil {
		return nil, fmt.Errorf("executor startup recovery: %w", err)
	}
	if err := dispatcher.Init(ctx); err != nil {
		return nil, fmt.Errorf("dispatcher startup recovery: %w", err)
	}

	sched := scheduler.New(taskStore, dispatcher, appLogger)

	taskHandler := api.NewTaskHandler(taskStore, executor, sched.Sync, appLogger)
	eventHandler := api.NewEventHandler(emitter, appLogger)

	return &application{
		config:    cfg,
		logger:    appLogger,
		bolt:      bolt,
		taskStore: taskStore,
		bookmarks: bookmarkStore,
		emitter:   emitter,
		executor:  executor,
		scheduler: sched,
		taskAPI:   taskHandler,
		eventAPI:  eventHandler,
	}, nil
}

// run starts the scheduler and the HTTP server and blocks until ctx is
// cancelled or the server fails.
func (app *application) run(ctx context.Context) error {
	app.scheduler.Start(ctx)
	if err := app.scheduler.Sync(ctx); err != nil {
		return fmt.Errorf("initial schedule sync: %w", err)
	}

	// Startup counts as a browser-startup occurrence for event triggers.
	if err := app.emitter.EmitEvent(ctx, events.Event{Kind: domain.EventBrowserStartup}); err != nil {
		app.logger.Warn("startup event handling reported an error", "error", err)
	}

	router := api.NewRouter(app.taskAPI, app.eventAPI)
	return app.startHTTPServer(ctx, router)
}

// cleanup releases resources on shutdown.
func (app *application) cleanup() {
	app.scheduler.Stop()
	if err := app.bolt.Close(); err != nil {
		app.logger.Error("failed to close storage", "error", err)
	}
}
