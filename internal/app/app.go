// Package app assembles a learner session from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/felixgeelhaar/sqlvalley/internal/achievement"
	"github.com/felixgeelhaar/sqlvalley/internal/catalog"
	"github.com/felixgeelhaar/sqlvalley/internal/config"
	"github.com/felixgeelhaar/sqlvalley/internal/domain"
	"github.com/felixgeelhaar/sqlvalley/internal/drafts"
	"github.com/felixgeelhaar/sqlvalley/internal/events"
	"github.com/felixgeelhaar/sqlvalley/internal/grading"
	"github.com/felixgeelhaar/sqlvalley/internal/metrics"
	"github.com/felixgeelhaar/sqlvalley/internal/progress"
	"github.com/felixgeelhaar/sqlvalley/internal/queryengine"
	"github.com/felixgeelhaar/sqlvalley/internal/session"
	"github.com/felixgeelhaar/sqlvalley/internal/storage"
	"github.com/felixgeelhaar/sqlvalley/internal/storage/local"
	"github.com/felixgeelhaar/sqlvalley/internal/storage/postgres"
	"github.com/felixgeelhaar/sqlvalley/internal/storage/redis"
	"github.com/felixgeelhaar/sqlvalley/internal/storage/sqlite"
)

// App owns every long-lived component of a session
type App struct {
	Config     *config.Config
	Logger     *slog.Logger
	Catalog    *catalog.Catalog
	Engine     *queryengine.Engine
	Store      storage.Store
	Metrics    *metrics.Metrics
	Dispatcher *domain.EventDispatcher
	Detector   *achievement.Detector
	Session    *session.Service

	conn        *events.Connection
	publisher   *events.Publisher
	stopMetrics context.CancelFunc
	metricsDone chan error
	logCloser   io.Closer
}

// Options controls process-level concerns
type Options struct {
	Stderr  io.Writer
	Verbose bool
}

// New builds and starts a session from cfg. On error everything opened so
// far is released.
func New(ctx context.Context, cfg *config.Config, opts Options) (a *App, err error) {
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	a = &App{Config: cfg}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
			a = nil
		}
	}()

	a.Logger, a.logCloser, err = NewLogger(cfg, opts.Stderr, opts.Verbose)
	if err != nil {
		return a, fmt.Errorf("setup logging: %w", err)
	}

	a.Catalog, err = loadCatalog(cfg.Engine.CatalogDir)
	if err != nil {
		return a, fmt.Errorf("load catalog: %w", err)
	}

	a.Engine, err = queryengine.New(ctx, queryengine.Config{
		Timeout: cfg.Engine.QueryTimeout,
		Logger:  a.Logger,
	})
	if err != nil {
		return a, fmt.Errorf("create query engine: %w", err)
	}

	a.Store, err = OpenStore(ctx, cfg.Storage, a.Logger)
	if err != nil {
		return a, fmt.Errorf("open %s store: %w", cfg.Storage.Backend, err)
	}

	a.Metrics = metrics.New()
	a.Dispatcher = domain.NewEventDispatcher()
	a.Metrics.Attach(a.Dispatcher)
	a.startMetrics()
	a.startEvents()

	a.Detector = achievement.NewDetector(
		achievement.BuiltIn(a.Catalog.IDs(), achievement.DefaultThresholds()),
		a.Catalog.Achievements(),
		a.Logger,
	)

	a.Session = session.NewService(session.Deps{
		Catalog: a.Catalog,
		Engine:  a.Engine,
		Grader:  grading.NewGrader(a.Logger),
		Progress: progress.NewManager(a.Store, a.Detector, progress.Options{
			Logger:           a.Logger,
			OnPersistFailure: a.Metrics.RecordPersistFailure,
		}),
		Drafts: drafts.NewQueue(a.Store, drafts.Options{
			Delay:            cfg.Engine.AutosaveDelay,
			Logger:           a.Logger,
			OnPersistFailure: a.Metrics.RecordPersistFailure,
		}),
		Dispatcher: a.Dispatcher,
		Logger:     a.Logger,
	})
	if err := a.Session.Start(ctx); err != nil {
		return a, fmt.Errorf("start session: %w", err)
	}

	a.Logger.Debug("session ready",
		"catalog", a.Catalog.Name(),
		"exercises", a.Catalog.Len(),
		"backend", cfg.Storage.Backend,
	)
	return a, nil
}

func loadCatalog(dir string) (*catalog.Catalog, error) {
	if dir == "" {
		return catalog.Default()
	}
	return catalog.Load(os.DirFS(dir))
}

// OpenStore opens the configured backend. Every backend except memory is
// wrapped with retries and a circuit breaker.
func OpenStore(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (storage.Store, error) {
	var (
		inner storage.Store
		err   error
	)
	switch cfg.Backend {
	case config.BackendMemory:
		return storage.NewMemoryStore(), nil
	case config.BackendLocal:
		inner, err = local.NewStore(cfg.Path)
	case config.BackendSQLite:
		inner, err = sqlite.NewStore(ctx, cfg.Path, logger)
	case config.BackendRedis:
		inner, err = redis.NewStore(ctx, redis.Config{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			Namespace: cfg.Redis.Namespace,
		})
	case config.BackendPostgres:
		inner, err = postgres.NewStore(ctx, cfg.Postgres.DSN, cfg.Postgres.Namespace)
	default:
		return nil, fmt.Errorf("%w: unknown storage backend %q", config.ErrInvalidConfig, cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	return storage.NewResilientStore(inner, storage.ResilientConfig{
		MaxAttempts:      cfg.Resilience.MaxAttempts,
		FailureThreshold: cfg.Resilience.FailureThreshold,
		OpenTimeout:      cfg.Resilience.OpenTimeout,
		Logger:           logger,
	}), nil
}

func (a *App) startMetrics() {
	if a.Config.Metrics.Addr == "" {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.stopMetrics = cancel
	a.metricsDone = make(chan error, 1)
	go func() {
		a.metricsDone <- a.Metrics.Serve(ctx, a.Config.Metrics.Addr, a.Logger)
	}()
}

// startEvents connects the AMQP publisher when configured. A broker that is
// down only disables publishing.
func (a *App) startEvents() {
	if a.Config.Events.AMQPURL == "" {
		return
	}
	conn, err := events.Dial(a.Config.Events.AMQPURL, a.Config.Events.Exchange, a.Logger)
	if err != nil {
		a.Logger.Warn("event publishing disabled", "error", err)
		return
	}
	a.conn = conn
	a.publisher = events.NewPublisher(conn, events.PublisherConfig{
		Logger:    a.Logger,
		OnPublish: a.Metrics.RecordEventPublished,
	})
	a.publisher.Attach(a.Dispatcher)
}

// Close saves pending work and releases every resource
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Session != nil {
		if err := a.Session.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close session: %w", err))
		}
	}
	if a.publisher != nil {
		if err := a.publisher.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close publisher: %w", err))
		}
	}
	if a.conn != nil {
		if err := a.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close amqp: %w", err))
		}
	}
	if a.stopMetrics != nil {
		a.stopMetrics()
		if err := <-a.metricsDone; err != nil {
			errs = append(errs, fmt.Errorf("metrics server: %w", err))
		}
	}
	if a.Engine != nil {
		if err := a.Engine.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close engine: %w", err))
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	if a.logCloser != nil {
		if err := a.logCloser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close log file: %w", err))
		}
	}
	return errors.Join(errs...)
}
