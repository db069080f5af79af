package harness

import (
	"context"
	"fmt"

	"github.com/munsocial/graphbench/internal/analysis"
	benchErrors "github.com/munsocial/graphbench/internal/errors"
	"github.com/munsocial/graphbench/internal/logger"
	"github.com/munsocial/graphbench/pkg/types"
)

// FetchKind names a fetch step.
type FetchKind string

const (
	FetchPosts     FetchKind = "posts"
	FetchComments  FetchKind = "comments"
	FetchLikes     FetchKind = "likes"
	FetchFollowers FetchKind = "followers"
	FetchFollowing FetchKind = "following"
)

// displayRows is the number of rows echoed back for display.
const displayRows = 5

var fetchQueryNames = map[FetchKind]string{
	FetchPosts:     "fetch_posts",
	FetchComments:  "fetch_comments_recursive",
	FetchLikes:     "fetch_likes",
	FetchFollowers: "fetch_followers",
	FetchFollowing: "fetch_following",
}

var fetchDefaultLimits = map[FetchKind]int{
	FetchPosts:     5,
	FetchComments:  5,
	FetchLikes:     5,
	FetchFollowers: 10,
	FetchFollowing: 10,
}

// ParseFetchKind validates a fetch step kind.
func ParseFetchKind(s string) (FetchKind, error) {
	k := FetchKind(s)
	if _, ok := fetchQueryNames[k]; !ok {
		return "", benchErrors.NewValidationError(benchErrors.CodeUnknownKind, fmt.Sprintf("unknown fetch %q", s))
	}
	return k, nil
}

// QueryName returns the activity query name of the step.
func (k FetchKind) QueryName() string {
	return fetchQueryNames[k]
}

// FetchRequest configures one fetch step.
type FetchRequest struct {
	CorrelationID string           `json:"correlationId,omitempty"`
	Limit         int              `json:"limit,omitempty"`
	Offset        int              `json:"offset,omitempty"`
	CachePhase    types.CachePhase `json:"cachePhase,omitempty"`
	Engine        string           `json:"engine,omitempty"`
	PostID        int64            `json:"postId,omitempty"`
	UserID        int64            `json:"userId,omitempty"`
}

// FetchResult is the response of one fetch step. Rows come from the
// engine chosen for display.
type FetchResult struct {
	CorrelationID string `json:"correlationId"`
	StepID        string `json:"stepId"`
	Loaded        int    `json:"loaded"`
	Rows          any    `json:"rows"`
	RowsToDisplay any    `json:"rowsToDisplay"`
	HasMore       bool   `json:"hasMore"`
}

// DisplayEngine maps the engine selector to an engine. "graph" and
// "neo4j" pick the graph engine; anything else the relational one.
func DisplayEngine(s string) types.Engine {
	if s == "graph" || s == string(types.EngineNeo4j) {
		return types.EngineNeo4j
	}
	return types.EngineSQLite
}

// Normalize fills defaults and validates the request for kind.
func (req FetchRequest) Normalize(kind FetchKind) (FetchRequest, error) {
	def, ok := fetchDefaultLimits[kind]
	if !ok {
		return req, benchErrors.NewValidationError(benchErrors.CodeUnknownKind, fmt.Sprintf("unknown fetch %q", kind))
	}
	if req.Limit == 0 {
		req.Limit = def
	}
	if req.Limit < 0 || req.Offset < 0 {
		return req, benchErrors.NewValidationError(benchErrors.CodeInvalidParams, "limit and offset must not be negative")
	}
	phase, err := types.ParseCachePhase(string(req.CachePhase))
	if err != nil {
		return req, benchErrors.NewValidationError(benchErrors.CodeInvalidParams, err.Error())
	}
	req.CachePhase = phase

	switch kind {
	case FetchComments, FetchLikes:
		if req.PostID <= 0 {
			return req, benchErrors.NewValidationError(benchErrors.CodeInvalidParams, "postId is required")
		}
	case FetchFollowers, FetchFollowing:
		if req.UserID <= 0 {
			return req, benchErrors.NewValidationError(benchErrors.CodeInvalidParams, "userId is required")
		}
	}
	return req, nil
}

// stepRows is what one engine returned for a step.
type stepRows struct {
	rows   any
	parity map[string]any
}

// Fetch runs one fetch step against both engines. Steps of the same
// experiment share a CorrelationID; each step gets its own StepID.
func (r *Runner) Fetch(ctx context.Context, kind FetchKind, req FetchRequest) (*FetchResult, error) {
	req, err := req.Normalize(kind)
	if err != nil {
		return nil, err
	}
	if err := r.acquire(); err != nil {
		return nil, err
	}
	defer r.release()

	if req.CorrelationID == "" {
		req.CorrelationID = r.newID()
	}
	c := call{
		correlationID: req.CorrelationID,
		stepID:        r.newID(),
		queryName:     kind.QueryName(),
		scale:         req.Limit,
		phase:         req.CachePhase,
		runIndex:      1,
	}

	if err := r.clearCaches(ctx, req.CachePhase); err != nil {
		return nil, err
	}

	var sqlRows, graphRows stepRows
	switch kind {
	case FetchPosts:
		sqlRows, graphRows, err = r.fetchPosts(ctx, c, req)
	case FetchComments:
		sqlRows, graphRows, err = r.fetchComments(ctx, c, req)
	case FetchLikes:
		sqlRows, graphRows, err = r.fetchLikes(ctx, c, req)
	case FetchFollowers, FetchFollowing:
		sqlRows, graphRows, err = r.fetchFollows(ctx, kind, c, req)
	}
	if err != nil {
		r.logger.Error("fetch step failed",
			logger.String("correlation_id", c.correlationID),
			logger.String("query", c.queryName),
			logger.Error(err),
		)
		return nil, err
	}

	shown := sqlRows.rows
	if DisplayEngine(req.Engine) == types.EngineNeo4j {
		shown = graphRows.rows
	}
	return &FetchResult{
		CorrelationID: c.correlationID,
		StepID:        c.stepID,
		Loaded:        req.Offset + req.Limit,
		Rows:          shown,
		RowsToDisplay: firstRows(shown, displayRows),
		HasMore:       true,
	}, nil
}

// stepParams builds the params of one engine's activity.
func stepParams(req FetchRequest, parity map[string]any) map[string]any {
	p := map[string]any{
		"limit":      req.Limit,
		"offset":     req.Offset,
		"cachePhase": string(req.CachePhase),
	}
	if req.PostID > 0 {
		p["postId"] = req.PostID
	}
	if req.UserID > 0 {
		p["userId"] = req.UserID
	}
	for k, v := range parity {
		p[k] = v
	}
	return p
}

// pair records both engine calls of a step, relational first.
func (r *Runner) pair(ctx context.Context, c call, req FetchRequest,
	sqlFn func() (stepRows, types.Measurement, error),
	graphFn func() (stepRows, types.Measurement, error),
) (stepRows, stepRows, error) {
	sqlRows, m, err := sqlFn()
	c.params = stepParams(req, sqlRows.parity)
	if err := r.recordResult(ctx, c, types.EngineSQLite, m, err); err != nil {
		return stepRows{}, stepRows{}, err
	}

	graphRows, m, err := graphFn()
	c.params = stepParams(req, graphRows.parity)
	if err := r.recordResult(ctx, c, types.EngineNeo4j, m, err); err != nil {
		return stepRows{}, stepRows{}, err
	}
	return sqlRows, graphRows, nil
}

func (r *Runner) fetchPosts(ctx context.Context, c call, req FetchRequest) (stepRows, stepRows, error) {
	return r.pair(ctx, c, req,
		func() (stepRows, types.Measurement, error) {
			rows, m, err := r.sql.FetchPosts(ctx, req.Limit, req.Offset)
			return stepRows{rows: rows, parity: PostsParity(rows)}, m, err
		},
		func() (stepRows, types.Measurement, error) {
			rows, m, err := r.graph.FetchPosts(ctx, req.Limit, req.Offset)
			return stepRows{rows: rows, parity: PostsParity(rows)}, m, err
		},
	)
}

func (r *Runner) fetchComments(ctx context.Context, c call, req FetchRequest) (stepRows, stepRows, error) {
	post, err := r.sql.PostByID(ctx, req.PostID)
	if err != nil {
		return stepRows{}, stepRows{}, err
	}
	return r.pair(ctx, c, req,
		func() (stepRows, types.Measurement, error) {
			rows, m, err := r.sql.FetchComments(ctx, post.PostID, req.Limit, req.Offset)
			return stepRows{rows: rows, parity: CommentsParity(rows)}, m, err
		},
		func() (stepRows, types.Measurement, error) {
			rows, m, err := r.graph.FetchComments(ctx, post.Identifier, req.Limit, req.Offset)
			return stepRows{rows: rows, parity: CommentsParity(rows)}, m, err
		},
	)
}

func (r *Runner) fetchLikes(ctx context.Context, c call, req FetchRequest) (stepRows, stepRows, error) {
	post, err := r.sql.PostByID(ctx, req.PostID)
	if err != nil {
		return stepRows{}, stepRows{}, err
	}
	return r.pair(ctx, c, req,
		func() (stepRows, types.Measurement, error) {
			rows, m, err := r.sql.FetchLikes(ctx, post.PostID, req.Limit, req.Offset)
			return stepRows{rows: rows, parity: LikesParity(rows)}, m, err
		},
		func() (stepRows, types.Measurement, error) {
			rows, m, err := r.graph.FetchLikes(ctx, post.Identifier, req.Limit, req.Offset)
			return stepRows{rows: rows, parity: LikesParity(rows)}, m, err
		},
	)
}

func (r *Runner) fetchFollows(ctx context.Context, kind FetchKind, c call, req FetchRequest) (stepRows, stepRows, error) {
	user, err := r.sql.UserByID(ctx, req.UserID)
	if err != nil {
		return stepRows{}, stepRows{}, err
	}
	sqlFetch, graphFetch := r.sql.FetchFollowing, r.graph.FetchFollowing
	param := analysis.ParamFollowingCount
	if kind == FetchFollowers {
		sqlFetch, graphFetch = r.sql.FetchFollowers, r.graph.FetchFollowers
		param = analysis.ParamFollowersCount
	}
	return r.pair(ctx, c, req,
		func() (stepRows, types.Measurement, error) {
			rows, m, err := sqlFetch(ctx, user.UserID, req.Limit, req.Offset)
			return stepRows{rows: rows, parity: map[string]any{param: len(rows)}}, m, err
		},
		func() (stepRows, types.Measurement, error) {
			rows, m, err := graphFetch(ctx, user.Identifier, req.Limit, req.Offset)
			return stepRows{rows: rows, parity: map[string]any{param: len(rows)}}, m, err
		},
	)
}

// firstRows returns at most n leading rows of a typed slice.
func firstRows(rows any, n int) any {
	switch v := rows.(type) {
	case []types.Post:
		return v[:min(n, len(v))]
	case []types.Comment:
		return v[:min(n, len(v))]
	case []types.Like:
		return v[:min(n, len(v))]
	case []types.Follow:
		return v[:min(n, len(v))]
	default:
		return rows
	}
}
