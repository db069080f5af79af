// Package server coordinates graceful shutdown of the graphbench process.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/munsocial/graphbench/internal/logger"
)

// CloseFunc releases one resource. It must honour ctx.
type CloseFunc func(ctx context.Context) error

type closer struct {
	name string
	fn   CloseFunc
}

// ShutdownManager tracks in-flight requests and closes registered
// resources in reverse order once they have drained.
type ShutdownManager struct {
	shutdownTimeout time.Duration
	drainTimeout    time.Duration
	log             logger.Logger

	shutdownCh     chan struct{}
	shutdownOnce   sync.Once
	inFlight       atomic.Int64
	isShuttingDown atomic.Bool

	// baseCtx parents every request context. It is cancelled once
	// draining ends so a running experiment stops before its next run.
	baseCtx    context.Context
	cancelBase context.CancelFunc

	closersMu sync.Mutex
	closers   []closer
}

// ShutdownConfig holds configuration for the shutdown manager.
type ShutdownConfig struct {
	// ShutdownTimeout bounds the whole shutdown. Default: 60 seconds
	ShutdownTimeout time.Duration

	// DrainTimeout bounds the wait for in-flight requests. Experiments can
	// be long, so this is larger than a typical API drain. Default: 45 seconds
	DrainTimeout time.Duration
}

// DefaultShutdownConfig returns the default shutdown configuration.
func DefaultShutdownConfig() ShutdownConfig {
	return ShutdownConfig{
		ShutdownTimeout: 60 * time.Second,
		DrainTimeout:    45 * time.Second,
	}
}

// NewShutdownManager creates a new shutdown manager.
func NewShutdownManager(config ShutdownConfig, log logger.Logger) *ShutdownManager {
	def := DefaultShutdownConfig()
	if config.ShutdownTimeout == 0 {
		config.ShutdownTimeout = def.ShutdownTimeout
	}
	if config.DrainTimeout == 0 {
		config.DrainTimeout = def.DrainTimeout
	}
	if log == nil {
		log = logger.NewNopLogger()
	}

	baseCtx, cancel := context.WithCancel(context.Background())
	return &ShutdownManager{
		shutdownTimeout: config.ShutdownTimeout,
		drainTimeout:    config.DrainTimeout,
		log:             log,
		shutdownCh:      make(chan struct{}),
		baseCtx:         baseCtx,
		cancelBase:      cancel,
	}
}

// Register adds a resource to close during shutdown. Resources close in
// reverse order of registration.
func (sm *ShutdownManager) Register(name string, fn CloseFunc) {
	sm.closersMu.Lock()
	defer sm.closersMu.Unlock()
	sm.closers = append(sm.closers, closer{name: name, fn: fn})
}

// BaseContext is the parent context for request handlers.
func (sm *ShutdownManager) BaseContext() context.Context {
	return sm.baseCtx
}

// ListenForSignals blocks until SIGINT/SIGTERM, ctx cancellation or a
// shutdown started elsewhere, and then shuts down.
func (sm *ShutdownManager) ListenForSignals(ctx context.Context) error {
	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	select {
	case <-sigCtx.Done():
		reason := "context cancelled"
		if ctx.Err() == nil {
			reason = "received signal"
		}
		return sm.Shutdown(context.Background(), reason)
	case <-sm.shutdownCh:
		return nil
	}
}

// Shutdown drains in-flight requests and closes every registered resource.
// Only the first call does any work.
func (sm *ShutdownManager) Shutdown(ctx context.Context, reason string) error {
	var errs []error

	sm.shutdownOnce.Do(func() {
		sm.isShuttingDown.Store(true)
		close(sm.shutdownCh)
		sm.log.Info("shutting down",
			logger.String("reason", reason),
			logger.Int64("in_flight", sm.inFlight.Load()))

		shutdownCtx, cancel := context.WithTimeout(ctx, sm.shutdownTimeout)
		defer cancel()

		if err := sm.drainInFlight(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("drain failed: %w", err))
		}
		sm.cancelBase()

		sm.closersMu.Lock()
		closers := sm.closers
		sm.closersMu.Unlock()

		for i := len(closers) - 1; i >= 0; i-- {
			c := closers[i]
			if err := c.fn(shutdownCtx); err != nil {
				sm.log.Warn("close failed", logger.String("resource", c.name), logger.Error(err))
				errs = append(errs, fmt.Errorf("close %s: %w", c.name, err))
				continue
			}
			sm.log.Debug("closed", logger.String("resource", c.name))
		}
	})

	return errors.Join(errs...)
}

func (sm *ShutdownManager) drainInFlight(ctx context.Context) error {
	drainCtx, cancel := context.WithTimeout(ctx, sm.drainTimeout)
	defer cancel()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		if sm.inFlight.Load() == 0 {
			return nil
		}

		select {
		case <-drainCtx.Done():
			if remaining := sm.inFlight.Load(); remaining > 0 {
				return fmt.Errorf("timeout waiting for %d in-flight requests", remaining)
			}
			return nil
		case <-ticker.C:
		}
	}
}

// TrackRequest counts a request in. It returns false once shutdown has
// started and the request must be rejected.
func (sm *ShutdownManager) TrackRequest() bool {
	if sm.isShuttingDown.Load() {
		return false
	}
	sm.inFlight.Add(1)
	return true
}

// UntrackRequest counts a request out.
func (sm *ShutdownManager) UntrackRequest() {
	sm.inFlight.Add(-1)
}

// IsShuttingDown reports whether shutdown has been initiated.
func (sm *ShutdownManager) IsShuttingDown() bool {
	return sm.isShuttingDown.Load()
}

// InFlightCount returns the current number of in-flight requests.
func (sm *ShutdownManager) InFlightCount() int64 {
	return sm.inFlight.Load()
}

// ShutdownCh is closed when shutdown begins.
func (sm *ShutdownManager) ShutdownCh() <-chan struct{} {
	return sm.shutdownCh
}

// Serve runs srv until it fails or shutdown closes it. The server is
// registered so Shutdown stops it before the resources behind it.
func (sm *ShutdownManager) Serve(name string, srv *http.Server) error {
	srv.BaseContext = func(net.Listener) context.Context { return sm.baseCtx }
	sm.Register(name, func(ctx context.Context) error {
		return srv.Shutdown(ctx)
	})

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ShutdownMiddleware tracks in-flight requests and rejects new ones
// during shutdown.
func ShutdownMiddleware(sm *ShutdownManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !sm.TrackRequest() {
				w.Header().Set("Connection", "close")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(map[string]string{"error": "shutting down"})
				return
			}
			defer sm.UntrackRequest()

			next.ServeHTTP(w, r)
		})
	}
}
