package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/munsocial/graphbench/pkg/types"
)

func TestVerify_PairsByStep(t *testing.T) {
	records := []types.Activity{
		{StepID: "b", Engine: types.EngineNeo4j, DatasetScale: 10, LatencyMs: 7,
			Params: map[string]any{ParamFollowersCount: int64(4)}},
		{StepID: "a", Engine: types.EngineSQLite, DatasetScale: 5, LatencyMs: 1,
			Params: map[string]any{ParamFollowersCount: 3}},
		{StepID: "a", Engine: types.EngineNeo4j, DatasetScale: 5, LatencyMs: 2,
			Params: map[string]any{ParamFollowersCount: float64(3)}},
		{StepID: "b", Engine: types.EngineSQLite, DatasetScale: 10, LatencyMs: 6,
			Params: map[string]any{ParamFollowersCount: int32(5)}},
	}

	got := Verify("fetch_followers", records)
	require.Len(t, got, 2)

	assert.Equal(t, "a", got[0].StepID)
	assert.True(t, got[0].Match)
	assert.Equal(t, 1.0, got[0].SQLiteLatencyMs)
	assert.Equal(t, 2.0, got[0].Neo4jLatencyMs)

	assert.Equal(t, "b", got[1].StepID)
	assert.False(t, got[1].Match)
	assert.Equal(t, 5.0, got[1].SQLite)
	assert.Equal(t, 4.0, got[1].Neo4j)
}

func TestVerify_MissingEngine(t *testing.T) {
	records := []types.Activity{
		{StepID: "s", Engine: types.EngineSQLite, DatasetScale: 5,
			Params: map[string]any{ParamLikesCount: 2}},
	}
	got := Verify("fetch_likes", records)
	require.Len(t, got, len(Metrics("fetch_likes")))
	for _, v := range got {
		assert.True(t, v.Missing)
		assert.False(t, v.Match)
	}
}

func TestVerify_MissingParam(t *testing.T) {
	records := []types.Activity{
		{StepID: "s", Engine: types.EngineSQLite, Params: map[string]any{}},
		{StepID: "s", Engine: types.EngineNeo4j, Params: map[string]any{ParamFollowingCount: 1}},
	}
	got := Verify("fetch_following", records)
	require.Len(t, got, 1)
	assert.True(t, got[0].Missing)
	assert.False(t, got[0].Match)
}

func TestVerify_UnknownQuery(t *testing.T) {
	assert.Nil(t, Verify("create_users", []types.Activity{{Engine: types.EngineSQLite}}))
}
