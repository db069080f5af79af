package harness

import (
	"context"
	"fmt"
	"slices"

	benchErrors "github.com/munsocial/graphbench/internal/errors"
	"github.com/munsocial/graphbench/internal/logger"
	"github.com/munsocial/graphbench/internal/seed"
	"github.com/munsocial/graphbench/pkg/types"
)

// Kind names a create experiment.
type Kind string

const (
	KindUsers     Kind = "users"
	KindPosts     Kind = "posts"
	KindComments  Kind = "comments"
	KindLikes     Kind = "likes"
	KindFollowers Kind = "followers"
	KindFollowing Kind = "following"
)

// QueryName returns the activity query name of the experiment.
func (k Kind) QueryName() string {
	return "create_" + string(k)
}

const (
	// postAuthorPool is the number of random users posts are spread over.
	postAuthorPool = 10

	defaultDepth = 2
)

type experimentDefaults struct {
	scales []int
	phase  types.CachePhase
}

var defaultsByKind = map[Kind]experimentDefaults{
	KindUsers:     {scales: []int{1000, 2000, 5000}, phase: types.CacheCold},
	KindPosts:     {scales: []int{1000, 2000, 5000}, phase: types.CacheCold},
	KindComments:  {scales: []int{20}, phase: types.CacheCold},
	KindLikes:     {scales: []int{100, 500, 1000}, phase: types.CacheCold},
	KindFollowers: {scales: []int{100, 500, 1000}, phase: types.CacheWarm},
	KindFollowing: {scales: []int{100, 500, 1000}, phase: types.CacheCold},
}

// ParseKind validates a create experiment kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if _, ok := defaultsByKind[k]; !ok {
		return "", benchErrors.NewValidationError(benchErrors.CodeUnknownKind, fmt.Sprintf("unknown experiment %q", s))
	}
	return k, nil
}

// ExperimentRequest configures a create experiment. Zero values take the
// defaults of the experiment kind.
type ExperimentRequest struct {
	DataScales  []int            `json:"dataScales,omitempty"`
	Repetitions int              `json:"repetitions,omitempty"`
	CachePhase  types.CachePhase `json:"cachePhase,omitempty"`
	PostID      int64            `json:"postId,omitempty"`
	UserID      int64            `json:"userId,omitempty"`
	Depth       *int             `json:"depth,omitempty"`
}

// ExperimentResult summarizes a finished create experiment.
type ExperimentResult struct {
	CorrelationID string `json:"correlationId"`
	QueryName     string `json:"queryName"`
	Runs          int    `json:"runs"`
	Skipped       int    `json:"skipped"`
}

// Normalize fills defaults and validates the request for kind.
func (req ExperimentRequest) Normalize(kind Kind) (ExperimentRequest, error) {
	d, ok := defaultsByKind[kind]
	if !ok {
		return req, benchErrors.NewValidationError(benchErrors.CodeUnknownKind, fmt.Sprintf("unknown experiment %q", kind))
	}
	if len(req.DataScales) == 0 {
		req.DataScales = slices.Clone(d.scales)
	}
	for _, s := range req.DataScales {
		if s <= 0 {
			return req, benchErrors.NewValidationError(benchErrors.CodeInvalidParams, fmt.Sprintf("data scale must be positive, got %d", s)).
				WithDetails(map[string]interface{}{"dataScale": s})
		}
	}
	if req.Repetitions == 0 {
		req.Repetitions = 1
	}
	if req.Repetitions < 0 {
		return req, benchErrors.NewValidationError(benchErrors.CodeInvalidParams, "repetitions must be positive")
	}
	if req.CachePhase == "" {
		req.CachePhase = d.phase
	}
	if _, err := types.ParseCachePhase(string(req.CachePhase)); err != nil {
		return req, benchErrors.NewValidationError(benchErrors.CodeInvalidParams, err.Error())
	}

	switch kind {
	case KindComments:
		if req.Depth == nil {
			depth := defaultDepth
			req.Depth = &depth
		}
		if *req.Depth < 0 {
			return req, benchErrors.NewValidationError(benchErrors.CodeInvalidParams, "depth must not be negative")
		}
		fallthrough
	case KindLikes:
		if req.PostID <= 0 {
			return req, benchErrors.NewValidationError(benchErrors.CodeInvalidParams, "postId is required")
		}
	case KindFollowers, KindFollowing:
		if req.UserID <= 0 {
			return req, benchErrors.NewValidationError(benchErrors.CodeInvalidParams, "userId is required")
		}
	}
	return req, nil
}

// RunExperiment runs a create experiment to completion. It fails fast
// with a BUSY error when another experiment holds the runner.
func (r *Runner) RunExperiment(ctx context.Context, kind Kind, req ExperimentRequest) (*ExperimentResult, error) {
	req, err := req.Normalize(kind)
	if err != nil {
		return nil, err
	}
	if err := r.acquire(); err != nil {
		return nil, err
	}
	defer r.release()

	res := &ExperimentResult{CorrelationID: r.newID(), QueryName: kind.QueryName()}
	log := r.logger.With(
		logger.String("correlation_id", res.CorrelationID),
		logger.String("query", res.QueryName),
	)
	log.Info("experiment started",
		logger.Any("scales", req.DataScales),
		logger.Int("repetitions", req.Repetitions),
		logger.String("cache_phase", string(req.CachePhase)),
	)

	switch kind {
	case KindUsers:
		err = r.createUsers(ctx, req, res)
	case KindPosts:
		err = r.createPosts(ctx, req, res)
	case KindComments:
		err = r.createComments(ctx, req, res)
	case KindLikes:
		err = r.createLikes(ctx, req, res)
	case KindFollowers, KindFollowing:
		err = r.createFollows(ctx, kind, req, res)
	}
	if err != nil {
		log.Error("experiment failed", logger.Error(err))
		return nil, err
	}
	log.Info("experiment finished", logger.Int("runs", res.Runs), logger.Int("skipped", res.Skipped))
	return res, nil
}

// loop runs fn once per scale and repetition, clearing caches first when
// the experiment is cold. remaining reports the pool entries left; a nil
// remaining means the experiment generates its own rows. A run whose pool
// is empty is skipped before any cache is cleared.
func (r *Runner) loop(ctx context.Context, req ExperimentRequest, res *ExperimentResult, remaining func() int, fn func(c call) error) error {
	for _, scale := range req.DataScales {
		for run := 1; run <= req.Repetitions; run++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			if remaining != nil && remaining() == 0 {
				res.Skipped++
				r.logger.Warn("no pool entries left, skipping run",
					logger.String("correlation_id", res.CorrelationID),
					logger.Int("scale", scale),
					logger.Int("run", run),
				)
				continue
			}
			if err := r.clearCaches(ctx, req.CachePhase); err != nil {
				return err
			}
			c := call{
				correlationID: res.CorrelationID,
				queryName:     res.QueryName,
				scale:         scale,
				phase:         req.CachePhase,
				runIndex:      run,
			}
			if err := fn(c); err != nil {
				return err
			}
			res.Runs++
		}
	}
	return nil
}

// countParams records the generated row count next to the requested scale.
// Edge experiments then plot the row count as the dataset scale, which is
// smaller than the request once the pool runs short.
func countParams(count int, c call) map[string]any {
	return map[string]any{
		"count":      count,
		"dataScale":  c.scale,
		"runIndex":   c.runIndex,
		"cachePhase": string(c.phase),
	}
}

func (r *Runner) createUsers(ctx context.Context, req ExperimentRequest, res *ExperimentResult) error {
	return r.loop(ctx, req, res, nil, func(c call) error {
		users := r.gen.Users(c.scale)
		c.params = countParams(len(users), c)

		m, err := r.sql.InsertUsers(ctx, users)
		if err := r.recordResult(ctx, c, types.EngineSQLite, m, err); err != nil {
			return err
		}
		m, err = r.graph.InsertUsers(ctx, users)
		return r.recordResult(ctx, c, types.EngineNeo4j, m, err)
	})
}

func (r *Runner) createPosts(ctx context.Context, req ExperimentRequest, res *ExperimentResult) error {
	authors, err := r.randomUsers(ctx, postAuthorPool)
	if err != nil {
		return err
	}
	return r.loop(ctx, req, res, nil, func(c call) error {
		posts, err := r.gen.Posts(c.scale, authors)
		if err != nil {
			return err
		}
		c.params = countParams(len(posts), c)

		m, err := r.sql.InsertPosts(ctx, posts)
		if err := r.recordResult(ctx, c, types.EngineSQLite, m, err); err != nil {
			return err
		}
		m, err = r.graph.InsertPosts(ctx, posts)
		return r.recordResult(ctx, c, types.EngineNeo4j, m, err)
	})
}

func (r *Runner) createComments(ctx context.Context, req ExperimentRequest, res *ExperimentResult) error {
	post, err := r.sql.PostByID(ctx, req.PostID)
	if err != nil {
		return err
	}
	depth := *req.Depth
	pool, err := r.randomUsers(ctx, seed.CommentPoolSize(slices.Max(req.DataScales), depth, req.Repetitions))
	if err != nil {
		return err
	}
	cursor := seed.NewCursor(pool)

	return r.loop(ctx, req, res, cursor.Remaining, func(c call) error {
		users := cursor.Next(c.scale * (depth + 1))
		levels := r.gen.CommentLevels(*post, users, c.scale, depth)
		c.params = map[string]any{"dataScale": c.scale, "levels": len(levels)}

		m, err := r.sql.InsertComments(ctx, levels)
		if err := r.recordResult(ctx, c, types.EngineSQLite, m, err); err != nil {
			return err
		}
		m, err = r.graph.InsertComments(ctx, post.Identifier, levels)
		return r.recordResult(ctx, c, types.EngineNeo4j, m, err)
	})
}

func (r *Runner) createLikes(ctx context.Context, req ExperimentRequest, res *ExperimentResult) error {
	post, err := r.sql.PostByID(ctx, req.PostID)
	if err != nil {
		return err
	}
	pool, err := r.randomUsers(ctx, seed.EdgePoolSize(slices.Max(req.DataScales), req.Repetitions))
	if err != nil {
		return err
	}
	cursor := seed.NewCursor(pool)

	return r.loop(ctx, req, res, cursor.Remaining, func(c call) error {
		likes := r.gen.Likes(*post, cursor.Next(c.scale))
		c.params = countParams(len(likes), c)
		c.scale = len(likes)

		if err := r.record(ctx, c, types.EngineSQLite, r.sql.InsertLikes(ctx, likes)); err != nil {
			return err
		}
		return r.record(ctx, c, types.EngineNeo4j, r.graph.InsertLikes(ctx, likes))
	})
}

func (r *Runner) createFollows(ctx context.Context, kind Kind, req ExperimentRequest, res *ExperimentResult) error {
	target, err := r.sql.UserByID(ctx, req.UserID)
	if err != nil {
		return err
	}
	pool, err := r.randomUsers(ctx, seed.EdgePoolSize(slices.Max(req.DataScales), req.Repetitions))
	if err != nil {
		return err
	}
	cursor := seed.NewCursor(pool)

	return r.loop(ctx, req, res, cursor.Remaining, func(c call) error {
		users := cursor.Next(c.scale)
		var follows []seed.FollowSeed
		if kind == KindFollowers {
			follows = r.gen.Followers(*target, users)
		} else {
			follows = r.gen.Following(*target, users)
		}
		c.params = countParams(len(follows), c)
		c.scale = len(follows)

		if err := r.record(ctx, c, types.EngineSQLite, r.sql.InsertFollows(ctx, follows)); err != nil {
			return err
		}
		return r.record(ctx, c, types.EngineNeo4j, r.graph.InsertFollows(ctx, follows))
	})
}
