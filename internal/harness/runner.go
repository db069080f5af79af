// Package harness runs paired experiments: every operation is executed
// against the relational engine and then the graph engine, and each engine
// call is recorded as one activity.
package harness

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/munsocial/graphbench/internal/activity"
	benchErrors "github.com/munsocial/graphbench/internal/errors"
	"github.com/munsocial/graphbench/internal/logger"
	"github.com/munsocial/graphbench/internal/seed"
	"github.com/munsocial/graphbench/pkg/types"
)

// SQLEngine is the relational side of an experiment.
type SQLEngine interface {
	ClearCaches(ctx context.Context) error
	RandomUsers(ctx context.Context, limit int) ([]types.User, error)
	UserByID(ctx context.Context, id int64) (*types.User, error)
	PostByID(ctx context.Context, id int64) (*types.Post, error)

	InsertUsers(ctx context.Context, users []seed.UserSeed) (types.Measurement, error)
	InsertPosts(ctx context.Context, posts []seed.PostSeed) (types.Measurement, error)
	InsertComments(ctx context.Context, levels [][]seed.CommentSeed) (types.Measurement, error)
	InsertLikes(ctx context.Context, likes []seed.LikeSeed) types.Measurement
	InsertFollows(ctx context.Context, follows []seed.FollowSeed) types.Measurement

	FetchPosts(ctx context.Context, limit, offset int) ([]types.Post, types.Measurement, error)
	FetchComments(ctx context.Context, postID int64, limit, offset int) ([]types.Comment, types.Measurement, error)
	FetchLikes(ctx context.Context, postID int64, limit, offset int) ([]types.Like, types.Measurement, error)
	FetchFollowers(ctx context.Context, userID int64, limit, offset int) ([]types.Follow, types.Measurement, error)
	FetchFollowing(ctx context.Context, userID int64, limit, offset int) ([]types.Follow, types.Measurement, error)
}

// GraphEngine is the graph side of an experiment. Entities are addressed
// by identifier.
type GraphEngine interface {
	ClearCaches(ctx context.Context) error
	SyncUsers(ctx context.Context, users []types.User) error

	InsertUsers(ctx context.Context, users []seed.UserSeed) (types.Measurement, error)
	InsertPosts(ctx context.Context, posts []seed.PostSeed) (types.Measurement, error)
	InsertComments(ctx context.Context, postIdentifier string, levels [][]seed.CommentSeed) (types.Measurement, error)
	InsertLikes(ctx context.Context, likes []seed.LikeSeed) types.Measurement
	InsertFollows(ctx context.Context, follows []seed.FollowSeed) types.Measurement

	FetchPosts(ctx context.Context, limit, offset int) ([]types.Post, types.Measurement, error)
	FetchComments(ctx context.Context, postIdentifier string, limit, offset int) ([]types.Comment, types.Measurement, error)
	FetchLikes(ctx context.Context, postIdentifier string, limit, offset int) ([]types.Like, types.Measurement, error)
	FetchFollowers(ctx context.Context, userIdentifier string, limit, offset int) ([]types.Follow, types.Measurement, error)
	FetchFollowing(ctx context.Context, userIdentifier string, limit, offset int) ([]types.Follow, types.Measurement, error)
}

// Observer receives every measured engine call.
type Observer interface {
	ObserveEngineCall(query, engine, cachePhase string, latencyMs float64, success bool)
}

// Config wires a Runner.
type Config struct {
	SQL       SQLEngine
	Graph     GraphEngine
	Log       activity.Log
	Generator *seed.Generator
	Logger    logger.Logger
	Observer  Observer
}

// Runner executes experiments one at a time.
type Runner struct {
	sql      SQLEngine
	graph    GraphEngine
	log      activity.Log
	gen      *seed.Generator
	logger   logger.Logger
	observer Observer
	sem      *semaphore.Weighted
	newID    func() string
}

// New creates a Runner. A nil generator or logger gets a default.
func New(cfg Config) *Runner {
	gen := cfg.Generator
	if gen == nil {
		gen = seed.NewGenerator(time.Now().UnixNano())
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Runner{
		sql:      cfg.SQL,
		graph:    cfg.Graph,
		log:      cfg.Log,
		gen:      gen,
		logger:   log,
		observer: cfg.Observer,
		sem:      semaphore.NewWeighted(1),
		newID:    uuid.NewString,
	}
}

// acquire takes the experiment slot or fails immediately.
func (r *Runner) acquire() error {
	if !r.sem.TryAcquire(1) {
		return benchErrors.New(benchErrors.ErrCategoryInternal, benchErrors.CodeBusy, "another experiment is running")
	}
	return nil
}

func (r *Runner) release() {
	r.sem.Release(1)
}

// clearCaches resets both engines before a cold run.
func (r *Runner) clearCaches(ctx context.Context, phase types.CachePhase) error {
	if phase != types.CacheCold {
		return nil
	}
	if err := r.sql.ClearCaches(ctx); err != nil {
		return err
	}
	return r.graph.ClearCaches(ctx)
}

// randomUsers loads a pool from the relational engine and mirrors it into
// the graph.
func (r *Runner) randomUsers(ctx context.Context, n int) ([]types.User, error) {
	users, err := r.sql.RandomUsers(ctx, n)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, benchErrors.NewValidationError(benchErrors.CodeEmptyUserPool, "no users found; run the users experiment first")
	}
	if err := r.graph.SyncUsers(ctx, users); err != nil {
		return nil, err
	}
	return users, nil
}

// call describes one measured engine call.
type call struct {
	correlationID string
	stepID        string
	queryName     string
	scale         int
	phase         types.CachePhase
	runIndex      int
	params        map[string]any
}

// record writes the activity of one engine call.
func (r *Runner) record(ctx context.Context, c call, engine types.Engine, m types.Measurement) error {
	a := types.Activity{
		CorrelationID: c.correlationID,
		StepID:        c.stepID,
		QueryName:     c.queryName,
		Engine:        engine,
		DatasetScale:  c.scale,
		CachePhase:    c.phase,
		RunIndex:      c.runIndex,
		LatencyMs:     m.LatencyMs(),
		RowsReturned:  m.RowsReturned,
		Success:       m.Success,
		ErrorMessage:  m.ErrorMessage,
		Params:        c.params,
	}
	if engine == types.EngineNeo4j {
		a.Neo4jProfile = m.Statement
	} else {
		a.SQLiteExplain = m.Statement
	}

	if r.observer != nil {
		r.observer.ObserveEngineCall(c.queryName, string(engine), string(c.phase), a.LatencyMs, a.Success)
	}
	r.logger.Debug("engine call",
		logger.String("correlation_id", c.correlationID),
		logger.String("query", c.queryName),
		logger.String("engine", string(engine)),
		logger.Int("scale", c.scale),
		logger.Int("run", c.runIndex),
		logger.Float64("latency_ms", a.LatencyMs),
		logger.Bool("success", a.Success),
	)
	return r.log.Record(ctx, a)
}

// recordResult records a measurement and passes through the engine error.
// A failed call is still recorded before the error is returned.
func (r *Runner) recordResult(ctx context.Context, c call, engine types.Engine, m types.Measurement, err error) error {
	if err != nil {
		m.Success = false
		m.ErrorMessage = err.Error()
	}
	if recErr := r.record(ctx, c, engine, m); recErr != nil {
		if err != nil {
			return err
		}
		return recErr
	}
	return err
}
