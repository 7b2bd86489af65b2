package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"medstudy-backend/internal/ai"
	"medstudy-backend/internal/ai/gemini"
	"medstudy-backend/internal/ai/openai"
	"medstudy-backend/internal/archive"
	"medstudy-backend/internal/documents"
	"medstudy-backend/internal/extract"
	"medstudy-backend/internal/ingestion"
	"medstudy-backend/internal/progress"
	"medstudy-backend/internal/qa"
	"medstudy-backend/internal/queue"
	"medstudy-backend/internal/shared/config"
	"medstudy-backend/internal/shared/server"
	"medstudy-backend/internal/shared/storage/db"
	"medstudy-backend/internal/shared/storage/object"
	localstore "medstudy-backend/internal/shared/storage/object/local"
	s3store "medstudy-backend/internal/shared/storage/object/s3"
	"medstudy-backend/internal/shared/telemetry"
	"medstudy-backend/internal/subjects"
	"medstudy-backend/internal/topics"
)

// App holds shared dependencies for the API and worker processes.
type App struct {
	Config config.Config
	Router *gin.Engine
	DB     *sql.DB
	Store  object.ObjectStore
	// Queue is what uploads enqueue on. LocalQueue is set when the
	// in-process queue backs it.
	Queue      queue.Client
	LocalQueue *queue.LocalQueue
	Assistant  ai.Capability

	DocumentsRepo documents.DocumentsRepo
	SubjectsRepo  subjects.Repo
	TopicsRepo    topics.Repo
	HistoryRepo   qa.HistoryRepo
	ProgressRepo  progress.Repo

	DocumentsService *documents.Service
	TopicsService    *topics.Service
	QAService        *qa.Service
	ProgressService  *progress.Service
	Orchestrator     *ingestion.Orchestrator
	Sweeper          *ingestion.Sweeper

	closers []func() error
}

// Options tunes Build for the process being started.
type Options struct {
	// DBOptions overrides the pool defaults; zero means DefaultServerOptions.
	DBOptions db.Options
	// SkipRouter leaves Router nil, e.g. for the queue worker.
	SkipRouter bool
}

// Build wires repositories, services and handlers from cfg.
func Build(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	app := &App{Config: cfg}

	sqlDB, err := buildDB(ctx, cfg, opts.DBOptions)
	if err != nil {
		return nil, err
	}
	app.DB = sqlDB
	if sqlDB != nil {
		app.closers = append(app.closers, sqlDB.Close)
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Store = store

	provider, err := buildProvider(ctx, app, cfg)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Assistant = ai.NewAssistant(provider)

	buildRepos(app)

	textStore, _ := store.(object.KeySaver)
	app.Orchestrator = &ingestion.Orchestrator{
		Documents: app.DocumentsRepo,
		Extractor: &extract.Extractor{Store: store},
		TextStore: textStore,
		AI:        app.Assistant,
		Subjects:  &subjects.Resolver{Repo: app.SubjectsRepo},
		Topics:    app.TopicsRepo,
	}
	if err := buildQueue(ctx, app, cfg); err != nil {
		app.Close()
		return nil, err
	}
	app.Sweeper = &ingestion.Sweeper{
		Documents:  app.DocumentsRepo,
		Queue:      app.Queue,
		StaleAfter: cfg.StaleProcessingAfter,
	}

	app.DocumentsService = &documents.Service{
		Store:           store,
		Repo:            app.DocumentsRepo,
		Archives:        &archive.Expander{Store: store, MaxEntryBytes: cfg.UploadMaxBytes},
		Queue:           app.Queue,
		StorageProvider: cfg.ObjectStoreType,
		MaxUploadBytes:  cfg.UploadMaxBytes,
	}
	app.TopicsService = &topics.Service{Repo: app.TopicsRepo, Documents: app.DocumentsRepo}
	app.QAService = &qa.Service{Topics: app.TopicsRepo, AI: app.Assistant, History: app.HistoryRepo}
	app.ProgressService = &progress.Service{
		Repo:      app.ProgressRepo,
		Topics:    app.TopicsRepo,
		Documents: app.DocumentsRepo,
		Subjects:  app.SubjectsRepo,
	}

	if !opts.SkipRouter {
		app.Router = server.NewRouter(server.RouterDeps{
			Config:          cfg,
			DB:              sqlDB,
			DocumentHandler: documents.NewHandler(app.DocumentsService),
			TopicHandler:    topics.NewHandler(app.TopicsService),
			SubjectHandler:  subjects.NewHandler(app.SubjectsRepo),
			QAHandler:       qa.NewHandler(app.QAService),
			ProgressHandler: progress.NewHandler(app.ProgressService),
		})
	}

	return app, nil
}

// Start launches the in-process queue workers and the stale sweeper. With the
// in-process queue, documents a previous process left pending are enqueued
// again, since its buffer did not survive the restart.
func (a *App) Start(ctx context.Context) error {
	if a.LocalQueue != nil {
		a.LocalQueue.Start(ctx)
		if a.Sweeper != nil {
			n, err := a.Sweeper.Requeue(ctx, time.Now().UTC())
			if err != nil {
				telemetry.Error("bootstrap.requeue_failed", map[string]any{"error": err.Error()})
			} else if n > 0 {
				telemetry.Info("bootstrap.requeued_pending", map[string]any{"documents": n})
			}
		}
	}
	if a.Sweeper != nil {
		if err := a.Sweeper.Start(a.Config.StaleSweepSchedule); err != nil {
			return err
		}
	}
	return nil
}

// Close drains queued jobs, stops background work and releases resources.
func (a *App) Close() error {
	if a.Sweeper != nil {
		a.Sweeper.Stop()
	}
	var errs []error
	if a.LocalQueue != nil {
		if err := a.LocalQueue.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close queue: %w", err))
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func buildDB(ctx context.Context, cfg config.Config, opts db.Options) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if cfg.IsDevLike() {
			telemetry.Warn("bootstrap.memory_store", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if opts == (db.Options{}) {
		opts = db.DefaultServerOptions()
	}
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(opts))
	if err != nil {
		if cfg.IsDevLike() {
			telemetry.Warn("bootstrap.memory_store", map[string]any{"reason": "connect failed", "error": err.Error()})
			return nil, nil
		}
		return nil, err
	}
	if cfg.AutoMigrate {
		if err := db.RunMigrations(ctx, sqlDB); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

// NewProvider builds the language-model backend named by cfg.LLMProvider.
// The returned close func is never nil.
func NewProvider(ctx context.Context, cfg config.Config) (ai.Provider, func() error, error) {
	noop := func() error { return nil }
	switch cfg.LLMProvider {
	case "openai":
		client, err := openai.NewClient(cfg.OpenAIAPIKey, cfg.LLMModel, cfg.OpenAITimeout)
		if err != nil {
			return nil, noop, err
		}
		return client, noop, nil
	case "gemini":
		client, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.LLMModel)
		if err != nil {
			return nil, noop, err
		}
		return client, client.Close, nil
	default:
		return ai.PlaceholderProvider{}, noop, nil
	}
}

// buildProvider degrades to the placeholder in dev-like environments so
// uploads still complete without a key.
func buildProvider(ctx context.Context, app *App, cfg config.Config) (ai.Provider, error) {
	provider, closeFn, err := NewProvider(ctx, cfg)
	if err != nil {
		if cfg.IsDevLike() {
			telemetry.Warn("bootstrap.llm_placeholder", map[string]any{"provider": cfg.LLMProvider, "error": err.Error()})
			return ai.PlaceholderProvider{}, nil
		}
		return nil, fmt.Errorf("configure %s provider: %w", cfg.LLMProvider, err)
	}
	app.closers = append(app.closers, closeFn)
	return provider, nil
}

func buildRepos(app *App) {
	if app.DB != nil {
		app.DocumentsRepo = &documents.PGRepo{DB: app.DB}
		app.SubjectsRepo = &subjects.PGRepo{DB: app.DB}
		app.TopicsRepo = &topics.PGRepo{DB: app.DB}
		app.HistoryRepo = &qa.PGRepo{DB: app.DB}
		app.ProgressRepo = &progress.PGRepo{DB: app.DB}
		return
	}
	app.DocumentsRepo = documents.NewMemoryRepo()
	app.SubjectsRepo = subjects.NewMemoryRepo(subjects.Seed...)
	app.TopicsRepo = topics.NewMemoryRepo()
	app.HistoryRepo = qa.NewMemoryRepo()
	app.ProgressRepo = progress.NewMemoryRepo()
}

func buildQueue(ctx context.Context, app *App, cfg config.Config) error {
	if strings.TrimSpace(cfg.SQSQueueURL) != "" {
		client, err := queue.NewSQSClient(ctx, cfg.SQSQueueURL, cfg.AWSRegion)
		if err != nil {
			return err
		}
		app.Queue = client
		return nil
	}
	local := queue.NewLocalQueue(app.Orchestrator.HandleMessage, cfg.IngestWorkers, cfg.IngestQueueSize)
	app.LocalQueue = local
	app.Queue = local
	return nil
}
