package harness

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/munsocial/graphbench/internal/activity"
	"github.com/munsocial/graphbench/internal/analysis"
	benchErrors "github.com/munsocial/graphbench/internal/errors"
	"github.com/munsocial/graphbench/internal/seed"
	"github.com/munsocial/graphbench/pkg/types"
)

// fakeEngine is the state shared by the sqlSide and graphSide fakes.
type fakeEngine struct {
	mu       sync.Mutex
	users    []types.User
	posts    []types.Post
	clears   int
	synced   int
	inserted map[string]int
	failWith error
	block    chan struct{}
}

func newFakeEngine(nUsers int) *fakeEngine {
	f := &fakeEngine{inserted: make(map[string]int)}
	for i := 1; i <= nUsers; i++ {
		f.users = append(f.users, types.User{UserID: int64(i), Identifier: fmt.Sprintf("u%d", i)})
	}
	f.posts = []types.Post{{PostID: 1, Identifier: "p1", UserID: 1, CommentCount: 3, LikeCount: 2,
		User: &types.User{UserID: 1, FollowersCount: 4, FollowingCount: 1}}}
	return f
}

func (f *fakeEngine) ok(rows int) types.Measurement {
	return types.Measurement{Latency: time.Millisecond, RowsReturned: rows, Statement: "stmt", Success: true}
}

func (f *fakeEngine) add(key string, n int) (types.Measurement, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return types.Measurement{Statement: "stmt"}, f.failWith
	}
	f.inserted[key] += n
	return f.ok(0), nil
}

func (f *fakeEngine) ClearCaches(context.Context) error {
	f.mu.Lock()
	f.clears++
	f.mu.Unlock()
	return nil
}

func (f *fakeEngine) RandomUsers(_ context.Context, limit int) ([]types.User, error) {
	return f.users[:min(limit, len(f.users))], nil
}

func (f *fakeEngine) SyncUsers(_ context.Context, users []types.User) error {
	f.synced += len(users)
	return nil
}

func (f *fakeEngine) UserByID(_ context.Context, id int64) (*types.User, error) {
	for _, u := range f.users {
		if u.UserID == id {
			return &u, nil
		}
	}
	return nil, benchErrors.NewNotFoundError(benchErrors.CodeUserNotFound, "missing")
}

func (f *fakeEngine) PostByID(_ context.Context, id int64) (*types.Post, error) {
	for _, p := range f.posts {
		if p.PostID == id {
			return &p, nil
		}
	}
	return nil, benchErrors.NewNotFoundError(benchErrors.CodePostNotFound, "missing")
}

func (f *fakeEngine) InsertUsers(_ context.Context, users []seed.UserSeed) (types.Measurement, error) {
	return f.add("users", len(users))
}

func (f *fakeEngine) InsertPosts(_ context.Context, posts []seed.PostSeed) (types.Measurement, error) {
	return f.add("posts", len(posts))
}

func (f *fakeEngine) InsertComments(_ context.Context, levels [][]seed.CommentSeed) (types.Measurement, error) {
	return f.add("comments", len(seed.Flatten(levels)))
}

func (f *fakeEngine) InsertLikes(_ context.Context, likes []seed.LikeSeed) types.Measurement {
	m, err := f.add("likes", len(likes))
	if err != nil {
		m.ErrorMessage = err.Error()
	}
	return m
}

func (f *fakeEngine) InsertFollows(_ context.Context, follows []seed.FollowSeed) types.Measurement {
	m, _ := f.add("follows", len(follows))
	return m
}

func (f *fakeEngine) FetchPosts(_ context.Context, limit, offset int) ([]types.Post, types.Measurement, error) {
	return f.posts, f.ok(len(f.posts)), nil
}

func (f *fakeEngine) comments() []types.Comment {
	return []types.Comment{{CommentID: 1, ReplyCount: 2}, {CommentID: 2, ReplyCount: 1}}
}

func (f *fakeEngine) likes() []types.Like {
	out := make([]types.Like, 7)
	for i := range out {
		out[i] = types.Like{User: &types.User{FollowersCount: 1}}
	}
	return out
}

func (f *fakeEngine) follows() []types.Follow {
	return []types.Follow{{FollowerID: 2}, {FollowerID: 3}}
}

// sqlSide and graphSide adapt fakeEngine to the id- and identifier-keyed
// fetch signatures.
type sqlSide struct{ *fakeEngine }

func (s sqlSide) FetchComments(context.Context, int64, int, int) ([]types.Comment, types.Measurement, error) {
	return s.comments(), s.ok(2), nil
}

func (s sqlSide) FetchLikes(context.Context, int64, int, int) ([]types.Like, types.Measurement, error) {
	return s.likes(), s.ok(7), nil
}

func (s sqlSide) FetchFollowers(context.Context, int64, int, int) ([]types.Follow, types.Measurement, error) {
	return s.follows(), s.ok(2), nil
}

func (s sqlSide) FetchFollowing(context.Context, int64, int, int) ([]types.Follow, types.Measurement, error) {
	return s.follows()[:1], s.ok(1), nil
}

type graphSide struct {
	*fakeEngine
	lastIdentifier string
}

func (g *graphSide) InsertComments(ctx context.Context, ident string, levels [][]seed.CommentSeed) (types.Measurement, error) {
	g.lastIdentifier = ident
	return g.fakeEngine.InsertComments(ctx, levels)
}

func (g *graphSide) FetchComments(_ context.Context, ident string, _, _ int) ([]types.Comment, types.Measurement, error) {
	g.lastIdentifier = ident
	return g.comments(), g.ok(2), nil
}

func (g *graphSide) FetchLikes(_ context.Context, ident string, _, _ int) ([]types.Like, types.Measurement, error) {
	g.lastIdentifier = ident
	// one like short of the relational side
	return g.likes()[:6], g.ok(6), nil
}

func (g *graphSide) FetchFollowers(_ context.Context, ident string, _, _ int) ([]types.Follow, types.Measurement, error) {
	g.lastIdentifier = ident
	return g.follows(), g.ok(2), nil
}

func (g *graphSide) FetchFollowing(_ context.Context, ident string, _, _ int) ([]types.Follow, types.Measurement, error) {
	g.lastIdentifier = ident
	return g.follows()[:1], g.ok(1), nil
}

type countingObserver struct {
	calls    int
	failures int
}

func (o *countingObserver) ObserveEngineCall(_, _, _ string, _ float64, success bool) {
	o.calls++
	if !success {
		o.failures++
	}
}

type fixture struct {
	runner   *Runner
	sql      *fakeEngine
	graph    *graphSide
	log      *activity.MemoryLog
	observer *countingObserver
}

func newFixture(t *testing.T, nUsers int) *fixture {
	t.Helper()
	sqlEngine := newFakeEngine(nUsers)
	graph := &graphSide{fakeEngine: newFakeEngine(nUsers)}
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	log := activity.NewMemoryLog().WithClock(func() time.Time {
		clock = clock.Add(time.Millisecond)
		return clock
	})
	obs := &countingObserver{}
	r := New(Config{
		SQL:       sqlSide{sqlEngine},
		Graph:     graph,
		Log:       log,
		Generator: seed.NewGenerator(1),
		Observer:  obs,
	})
	return &fixture{runner: r, sql: sqlEngine, graph: graph, log: log, observer: obs}
}

func (f *fixture) activities(t *testing.T, correlationID string) []types.Activity {
	t.Helper()
	c, err := f.log.GetCorrelation(context.Background(), correlationID)
	require.NoError(t, err)
	return c.Activities
}

func TestRunExperiment_Users(t *testing.T) {
	f := newFixture(t, 0)
	res, err := f.runner.RunExperiment(context.Background(), KindUsers, ExperimentRequest{
		DataScales:  []int{3, 5},
		Repetitions: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, "create_users", res.QueryName)
	assert.Equal(t, 4, res.Runs)

	assert.Equal(t, 16, f.sql.inserted["users"])
	assert.Equal(t, 16, f.graph.inserted["users"])
	assert.Equal(t, 4, f.sql.clears)
	assert.Equal(t, 4, f.graph.clears)
	assert.Equal(t, 8, f.observer.calls)

	acts := f.activities(t, res.CorrelationID)
	require.Len(t, acts, 8)
	// newest first: the graph call of the last run
	assert.Equal(t, types.EngineNeo4j, acts[0].Engine)
	assert.Equal(t, 2, acts[0].RunIndex)
	assert.Equal(t, 5, acts[0].DatasetScale)
	assert.Equal(t, types.EngineSQLite, acts[1].Engine)
	assert.Equal(t, "stmt", acts[1].SQLiteExplain)
	assert.Equal(t, 5, acts[0].Params["count"])
	assert.Empty(t, acts[0].StepID)

	list, err := f.log.ListCorrelations(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, []int{3, 5}, list[0].Scales)

	result := analysis.Analyse(res.QueryName, acts)
	require.Len(t, result.Performance, 2)
	assert.Len(t, result.Performance[0].Runs, 2)
}

func TestRunExperiment_PostsNeedUsers(t *testing.T) {
	f := newFixture(t, 0)
	_, err := f.runner.RunExperiment(context.Background(), KindPosts, ExperimentRequest{DataScales: []int{2}})
	require.Error(t, err)
	assert.Equal(t, benchErrors.CodeEmptyUserPool, benchErrors.GetCode(err))
}

func TestRunExperiment_PostsSyncAuthors(t *testing.T) {
	f := newFixture(t, 20)
	res, err := f.runner.RunExperiment(context.Background(), KindPosts, ExperimentRequest{DataScales: []int{4}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Runs)
	assert.Equal(t, postAuthorPool, f.graph.synced)
	assert.Equal(t, 4, f.graph.inserted["posts"])
}

func TestRunExperiment_CommentsSkipWhenPoolExhausted(t *testing.T) {
	// 5 users cover one run of scale 2 at depth 1 (4 users) and one user
	// of the next; the third run finds the pool empty.
	f := newFixture(t, 5)
	depth := 1
	res, err := f.runner.RunExperiment(context.Background(), KindComments, ExperimentRequest{
		DataScales:  []int{2},
		Repetitions: 3,
		PostID:      1,
		Depth:       &depth,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Runs)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 8, f.sql.inserted["comments"])
	assert.Equal(t, "p1", f.graph.lastIdentifier)
	// the skipped run does not clear caches
	assert.Equal(t, 2, f.sql.clears)
	assert.Equal(t, 2, f.graph.clears)

	acts := f.activities(t, res.CorrelationID)
	require.Len(t, acts, 4)
	assert.Equal(t, 2, acts[0].Params["levels"])
}

func TestRunExperiment_LikesFailureIsRecorded(t *testing.T) {
	f := newFixture(t, 3)
	f.sql.failWith = errors.New("constraint failed")

	res, err := f.runner.RunExperiment(context.Background(), KindLikes, ExperimentRequest{
		DataScales: []int{3},
		PostID:     1,
	})
	require.NoError(t, err)

	acts := f.activities(t, res.CorrelationID)
	require.Len(t, acts, 2)
	assert.True(t, acts[0].Success)
	assert.False(t, acts[1].Success)
	assert.Equal(t, "constraint failed", acts[1].ErrorMessage)
	assert.Equal(t, 1, f.observer.failures)
}

func TestRunExperiment_LikesScaleIsRowCount(t *testing.T) {
	// 150 users cover the run of scale 100 and half of the run of 500.
	f := newFixture(t, 150)
	res, err := f.runner.RunExperiment(context.Background(), KindLikes, ExperimentRequest{
		DataScales: []int{100, 500},
		PostID:     1,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Runs)
	assert.Equal(t, 150, f.sql.inserted["likes"])

	acts := f.activities(t, res.CorrelationID)
	require.Len(t, acts, 4)
	for _, a := range acts[:2] {
		assert.Equal(t, 50, a.DatasetScale)
		assert.Equal(t, 50, a.Params["count"])
		assert.Equal(t, 500, a.Params["dataScale"])
	}
	for _, a := range acts[2:] {
		assert.Equal(t, 100, a.DatasetScale)
		assert.Equal(t, 100, a.Params["dataScale"])
	}

	list, err := f.log.ListCorrelations(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, []int{50, 100}, list[0].Scales)
}

func TestRunExperiment_FollowersDefaultWarm(t *testing.T) {
	f := newFixture(t, 4)
	res, err := f.runner.RunExperiment(context.Background(), KindFollowers, ExperimentRequest{
		DataScales: []int{4},
		UserID:     1,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, f.sql.clears)
	// self edge dropped
	assert.Equal(t, 3, f.sql.inserted["follows"])

	acts := f.activities(t, res.CorrelationID)
	assert.Equal(t, types.CacheWarm, acts[0].CachePhase)
	assert.Equal(t, 3, acts[0].DatasetScale)
	assert.Equal(t, 4, acts[0].Params["dataScale"])
}

func TestRunExperiment_EngineErrorAborts(t *testing.T) {
	f := newFixture(t, 0)
	f.graph.failWith = errors.New("neo4j down")

	_, err := f.runner.RunExperiment(context.Background(), KindUsers, ExperimentRequest{DataScales: []int{1, 2}})
	require.Error(t, err)
	assert.Equal(t, 1, f.sql.inserted["users"])

	assert.Equal(t, 2, f.log.Len())
}

func TestRunExperiment_Validation(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	cases := []struct {
		name string
		kind Kind
		req  ExperimentRequest
	}{
		{"unknown kind", Kind("votes"), ExperimentRequest{}},
		{"bad scale", KindUsers, ExperimentRequest{DataScales: []int{0}}},
		{"bad phase", KindUsers, ExperimentRequest{CachePhase: "hot"}},
		{"likes without post", KindLikes, ExperimentRequest{}},
		{"comments without post", KindComments, ExperimentRequest{}},
		{"followers without user", KindFollowers, ExperimentRequest{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.runner.RunExperiment(ctx, tc.kind, tc.req)
			require.Error(t, err)
			assert.Equal(t, benchErrors.ErrCategoryValidation, benchErrors.GetCategory(err))
		})
	}

	_, err := f.runner.RunExperiment(ctx, KindLikes, ExperimentRequest{PostID: 99})
	assert.Equal(t, benchErrors.CodePostNotFound, benchErrors.GetCode(err))
}

func TestNormalize_Defaults(t *testing.T) {
	req, err := ExperimentRequest{PostID: 1}.Normalize(KindComments)
	require.NoError(t, err)
	assert.Equal(t, []int{20}, req.DataScales)
	assert.Equal(t, 1, req.Repetitions)
	assert.Equal(t, 2, *req.Depth)
	assert.Equal(t, types.CacheCold, req.CachePhase)

	req, err = ExperimentRequest{}.Normalize(KindUsers)
	require.NoError(t, err)
	assert.Equal(t, []int{1000, 2000, 5000}, req.DataScales)

	_, err = ExperimentRequest{DataScales: []int{10, -3}}.Normalize(KindUsers)
	require.Error(t, err)
	assert.Equal(t, -3, benchErrors.GetDetails(err)["dataScale"])
}

func TestRunExperiment_Busy(t *testing.T) {
	f := newFixture(t, 0)
	f.sql.block = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := f.runner.RunExperiment(context.Background(), KindUsers, ExperimentRequest{DataScales: []int{1}})
		done <- err
	}()

	require.Eventually(t, func() bool {
		_, err := f.runner.Fetch(context.Background(), FetchPosts, FetchRequest{})
		return benchErrors.GetCode(err) == benchErrors.CodeBusy
	}, time.Second, 5*time.Millisecond)

	close(f.sql.block)
	require.NoError(t, <-done)
}

func TestFetch_PostsStep(t *testing.T) {
	f := newFixture(t, 2)
	res, err := f.runner.Fetch(context.Background(), FetchPosts, FetchRequest{Offset: 5})
	require.NoError(t, err)
	assert.NotEmpty(t, res.CorrelationID)
	assert.NotEmpty(t, res.StepID)
	assert.Equal(t, 10, res.Loaded)
	assert.True(t, res.HasMore)
	assert.Len(t, res.Rows, 1)

	acts := f.activities(t, res.CorrelationID)
	require.Len(t, acts, 2)
	for _, a := range acts {
		assert.Equal(t, res.StepID, a.StepID)
		assert.Equal(t, "fetch_posts", a.QueryName)
		assert.Equal(t, 5, a.DatasetScale)
		assert.Equal(t, 1, a.RunIndex)
		assert.Equal(t, 1, a.RowsReturned)
		assert.Equal(t, int64(3), a.Params[analysis.ParamCommentsCount])
		assert.Equal(t, 1, a.Params[analysis.ParamPostsCount])
	}
	assert.Equal(t, 1, f.sql.clears)
}

func TestFetch_StepsShareCorrelation(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()

	first, err := f.runner.Fetch(ctx, FetchLikes, FetchRequest{PostID: 1, Limit: 7, Engine: "graph"})
	require.NoError(t, err)
	assert.Equal(t, "p1", f.graph.lastIdentifier)
	assert.Len(t, first.Rows, 6)
	assert.Len(t, first.RowsToDisplay, displayRows)

	second, err := f.runner.Fetch(ctx, FetchLikes, FetchRequest{PostID: 1, Limit: 14, Offset: 7, CorrelationID: first.CorrelationID})
	require.NoError(t, err)
	assert.Equal(t, first.CorrelationID, second.CorrelationID)
	assert.NotEqual(t, first.StepID, second.StepID)
	assert.Len(t, second.Rows, 7)

	acts := f.activities(t, first.CorrelationID)
	require.Len(t, acts, 4)

	checks := analysis.Verify("fetch_likes", acts)
	require.NotEmpty(t, checks)
	for _, v := range checks {
		if v.Metric == analysis.ParamLikesCount {
			assert.False(t, v.Match)
			assert.Equal(t, float64(7), v.SQLite)
			assert.Equal(t, float64(6), v.Neo4j)
		}
	}
}

func TestFetch_Follows(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()

	res, err := f.runner.Fetch(ctx, FetchFollowers, FetchRequest{UserID: 1, CachePhase: types.CacheWarm})
	require.NoError(t, err)
	assert.Equal(t, "u1", f.graph.lastIdentifier)
	assert.Equal(t, 10, res.Loaded)
	assert.Equal(t, 0, f.sql.clears)

	acts := f.activities(t, res.CorrelationID)
	assert.Equal(t, 2, acts[0].Params[analysis.ParamFollowersCount])

	_, err = f.runner.Fetch(ctx, FetchFollowing, FetchRequest{UserID: 42})
	assert.Equal(t, benchErrors.CodeUserNotFound, benchErrors.GetCode(err))

	_, err = f.runner.Fetch(ctx, FetchComments, FetchRequest{})
	assert.Equal(t, benchErrors.ErrCategoryValidation, benchErrors.GetCategory(err))
}

func TestDisplayEngineAndKinds(t *testing.T) {
	assert.Equal(t, types.EngineNeo4j, DisplayEngine("graph"))
	assert.Equal(t, types.EngineNeo4j, DisplayEngine("neo4j"))
	assert.Equal(t, types.EngineSQLite, DisplayEngine("sql"))
	assert.Equal(t, types.EngineSQLite, DisplayEngine(""))

	k, err := ParseFetchKind("comments")
	require.NoError(t, err)
	assert.Equal(t, "fetch_comments_recursive", k.QueryName())
	_, err = ParseFetchKind("votes")
	assert.Error(t, err)

	ek, err := ParseKind("following")
	require.NoError(t, err)
	assert.Equal(t, "create_following", ek.QueryName())
}

func TestParity(t *testing.T) {
	p := CommentsParity([]types.Comment{{ReplyCount: 2}, {ReplyCount: 3}})
	assert.Equal(t, 2, p[analysis.ParamCommentsCount])
	assert.Equal(t, int64(5), p[analysis.ParamRepliesCount])

	l := LikesParity([]types.Like{{User: &types.User{FollowersCount: 2, FollowingCount: 1}}, {}})
	assert.Equal(t, 2, l[analysis.ParamLikesCount])
	assert.Equal(t, int64(2), l[analysis.ParamFollowersCount])
}
