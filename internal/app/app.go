// Package app wires the engines, the activity log and the HTTP API into
// one process lifecycle.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/munsocial/graphbench/internal/activity"
	httpapi "github.com/munsocial/graphbench/internal/api/http"
	"github.com/munsocial/graphbench/internal/config"
	"github.com/munsocial/graphbench/internal/graphstore"
	"github.com/munsocial/graphbench/internal/harness"
	"github.com/munsocial/graphbench/internal/logger"
	"github.com/munsocial/graphbench/internal/observability"
	"github.com/munsocial/graphbench/internal/report"
	"github.com/munsocial/graphbench/internal/seed"
	"github.com/munsocial/graphbench/internal/server"
	"github.com/munsocial/graphbench/internal/sqlstore"
	"github.com/munsocial/graphbench/internal/storage"
)

// statsWindow is how long a query name stays in the /v1/stats view
// without being recorded again.
const statsWindow = 24 * time.Hour

// App manages the graphbench service lifecycle.
type App struct {
	cfg *config.Config
	log logger.Logger

	// Shared resources
	sql      *sqlstore.Store
	graph    *graphstore.Store
	activity activity.Log
	storage  storage.ObjectStorage
	metrics  *observability.Metrics
	runner   *harness.Runner
	shutdown *server.ShutdownManager

	httpServer *http.Server

	// Lifecycle
	mu      sync.Mutex
	running bool
	wg      sync.WaitGroup
	errCh   chan error
}

// New creates a new App with the given configuration.
func New(cfg *config.Config, log logger.Logger) (*App, error) {
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &App{
		cfg:   cfg,
		log:   log,
		errCh: make(chan error, 1),
	}, nil
}

// Start opens every resource and starts serving HTTP.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("app is already running")
	}
	a.running = true
	a.mu.Unlock()

	a.shutdown = server.NewShutdownManager(server.DefaultShutdownConfig(), a.log)

	if err := a.initSharedResources(ctx); err != nil {
		a.shutdown.Shutdown(context.Background(), "startup failed")
		a.mu.Lock()
		a.running = false
		a.mu.Unlock()
		return fmt.Errorf("failed to initialize shared resources: %w", err)
	}

	a.startHTTP()
	a.log.Info("graphbench started",
		logger.String("addr", a.cfg.HTTP.Addr),
		logger.String("activity_backend", string(a.cfg.Activity.Backend)),
		logger.String("storage", a.cfg.Storage.Type))
	return nil
}

// initSharedResources opens the engines, the activity log and the report
// store. Each one is registered for shutdown as soon as it is open.
func (a *App) initSharedResources(ctx context.Context) error {
	var err error

	a.sql, err = sqlstore.Open(a.cfg.SQLite.Path)
	if err != nil {
		return err
	}
	a.shutdown.Register("sqlite", func(context.Context) error { return a.sql.Close() })
	a.log.Info("sqlite opened", logger.String("path", a.cfg.SQLite.Path))

	a.graph, err = graphstore.Open(ctx, graphstore.Config{
		URI:      a.cfg.Neo4j.URI,
		Username: a.cfg.Neo4j.Username,
		Password: a.cfg.Neo4j.Password,
		Database: a.cfg.Neo4j.Database,
	}, a.sql)
	if err != nil {
		return err
	}
	a.shutdown.Register("neo4j", a.graph.Close)
	a.log.Info("neo4j connected", logger.String("uri", a.cfg.Neo4j.URI))

	a.activity, err = newActivityLog(ctx, a.cfg.Activity)
	if err != nil {
		return err
	}
	a.shutdown.Register("activity", a.activity.Close)
	a.log.Info("activity log ready", logger.String("backend", string(a.cfg.Activity.Backend)))

	a.storage, err = newStorage(ctx, a.cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	if a.cfg.Storage.Type == "s3" {
		a.log.Info("report storage ready",
			logger.String("bucket", a.cfg.Storage.S3.Bucket),
			logger.String("region", a.cfg.Storage.S3.Region),
			logger.String("endpoint", a.cfg.Storage.S3.Endpoint))
	}

	a.metrics = observability.NewMetrics(observability.NewQueryStats(statsWindow))
	a.runner = harness.New(harness.Config{
		SQL:       a.sql,
		Graph:     a.graph,
		Log:       a.activity,
		Generator: seed.NewGenerator(time.Now().UnixNano()),
		Logger:    a.log.With(logger.String("component", "harness")),
		Observer:  a.metrics,
	})
	return nil
}

// newActivityLog opens the configured activity backend.
func newActivityLog(ctx context.Context, cfg config.ActivityConfig) (activity.Log, error) {
	switch cfg.Backend {
	case config.ActivityBackendMemory:
		return activity.NewMemoryLog(), nil
	case config.ActivityBackendMongo:
		return activity.NewMongoLog(ctx, activity.MongoConfig{
			URI:        cfg.URI,
			Database:   cfg.Database,
			Collection: cfg.Collection,
		})
	default:
		return nil, fmt.Errorf("unsupported activity backend: %s", cfg.Backend)
	}
}

// newStorage opens the report archive store.
func newStorage(ctx context.Context, cfg config.StorageConfig) (storage.ObjectStorage, error) {
	switch cfg.Type {
	case "local":
		return storage.NewLocalStorage(cfg.Path)
	case "s3":
		return storage.NewS3Storage(ctx, cfg.S3.Bucket, storage.S3Config{
			Region:       cfg.S3.Region,
			Endpoint:     cfg.S3.Endpoint,
			UsePathStyle: cfg.S3.Endpoint != "",
		})
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// Handler builds the full route table.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	middleware := httpapi.ChainMiddleware(
		server.ShutdownMiddleware(a.shutdown),
		a.metrics.Middleware,
		httpapi.DefaultMiddleware(a.log.With(logger.String("component", "http"))),
	)

	httpapi.Register(mux, httpapi.Handlers{
		Runner:   a.runner,
		Activity: a.activity,
		Social:   a.sql,
		Archiver: report.NewArchiver(a.storage, os.TempDir()),
		Stats:    a.metrics.Stats(),
		Logger:   a.log,
	}, middleware)

	mux.HandleFunc("GET /health", a.healthHandler())
	mux.Handle("GET /metrics", a.metrics.Handler())
	return mux
}

func (a *App) startHTTP() {
	a.httpServer = &http.Server{
		Addr:         a.cfg.HTTP.Addr,
		Handler:      a.Handler(),
		ReadTimeout:  a.cfg.HTTP.ReadTimeout,
		WriteTimeout: a.cfg.HTTP.WriteTimeout,
		IdleTimeout:  a.cfg.HTTP.IdleTimeout,
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.log.Info("http listening", logger.String("addr", a.cfg.HTTP.Addr))
		if err := a.shutdown.Serve("http", a.httpServer); err != nil {
			a.log.Error("http server failed", logger.Error(err))
			select {
			case a.errCh <- err:
			default:
			}
		}
	}()
}

// Stop gracefully stops the server and releases resources.
func (a *App) Stop(ctx context.Context) error {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return nil
	}
	a.running = false
	a.mu.Unlock()

	err := a.shutdown.Shutdown(ctx, "stop requested")

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		a.log.Warn("shutdown timeout, http server goroutine still running")
	}

	a.log.Info("graphbench stopped")
	return err
}

// WaitForShutdown blocks until a signal arrives, ctx is cancelled or the
// HTTP server fails.
func (a *App) WaitForShutdown(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	serveErr := make(chan error, 1)
	go func() {
		select {
		case err := <-a.errCh:
			serveErr <- err
			cancel()
		case <-ctx.Done():
		}
	}()

	err := a.shutdown.ListenForSignals(ctx)
	select {
	case e := <-serveErr:
		return errors.Join(e, err)
	default:
		return err
	}
}

// HealthResponse reports the reachability of both engines.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// healthHandler pings both engines.
func (a *App) healthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		resp := HealthResponse{Status: "healthy", Checks: map[string]string{}}
		check := func(name string, ping func(context.Context) error) {
			if err := ping(ctx); err != nil {
				resp.Status = "degraded"
				resp.Checks[name] = err.Error()
				return
			}
			resp.Checks[name] = "ok"
		}
		check("sqlite", a.sql.Ping)
		check("neo4j", a.graph.Ping)

		status := http.StatusOK
		if resp.Status != "healthy" {
			status = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(resp)
	}
}
