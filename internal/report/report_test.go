package report

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	benchErrors "github.com/munsocial/graphbench/internal/errors"
	"github.com/munsocial/graphbench/internal/storage"
	"github.com/munsocial/graphbench/pkg/types"
)

func newArchiver(t *testing.T) (*Archiver, *storage.LocalStorage) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	a := NewArchiver(store, t.TempDir())
	a.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return a, store
}

func sampleCorrelation() types.Correlation {
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	activity := func(engine types.Engine, scale int, latency float64, at time.Duration) types.Activity {
		return types.Activity{
			CorrelationID: "corr-1",
			QueryName:     "create_users",
			Engine:        engine,
			DatasetScale:  scale,
			CachePhase:    types.CacheCold,
			RunIndex:      1,
			LatencyMs:     latency,
			Success:       true,
			CreatedAt:     base.Add(at),
		}
	}
	return types.Correlation{
		CorrelationID:   "corr-1",
		QueryName:       "create_users",
		TotalActivities: 4,
		Scales:          []int{10, 20},
		Activities: []types.Activity{
			activity(types.EngineSQLite, 10, 4, 0),
			activity(types.EngineNeo4j, 10, 8, time.Second),
			activity(types.EngineSQLite, 20, 6, 2*time.Second),
			activity(types.EngineNeo4j, 20, 12, 3*time.Second),
		},
	}
}

func TestArchiver_RoundTrip(t *testing.T) {
	a, store := newArchiver(t)
	ctx := context.Background()

	r := a.Build(sampleCorrelation())
	require.Len(t, r.Analysis.Performance, 2)

	objectPath, err := a.Archive(ctx, r)
	require.NoError(t, err)
	assert.Equal(t, "reports/corr-1.json.sz", objectPath)

	exists, err := store.Exists(ctx, objectPath)
	require.NoError(t, err)
	assert.True(t, exists)

	loaded, err := a.Load(ctx, "corr-1")
	require.NoError(t, err)
	assert.Equal(t, "corr-1", loaded.Correlation.CorrelationID)
	assert.Len(t, loaded.Correlation.Activities, 4)
	assert.True(t, loaded.ArchivedAt.Equal(r.ArchivedAt))
	require.Len(t, loaded.Analysis.Performance, 2)
	assert.Equal(t, 20, loaded.Analysis.Performance[1].Scale)
	assert.InDelta(t, 12.0, float64(loaded.Analysis.Performance[1].Runs[0].Neo4j), 1e-9)
}

func TestArchiver_LoadMissing(t *testing.T) {
	a, _ := newArchiver(t)

	_, err := a.Load(context.Background(), "nope")
	require.Error(t, err)
	assert.Equal(t, benchErrors.ErrCategoryNotFound, benchErrors.GetCategory(err))
	assert.Equal(t, benchErrors.CodeReportNotFound, benchErrors.GetCode(err))
}

func TestArchiver_RejectsEmptyCorrelation(t *testing.T) {
	a, _ := newArchiver(t)

	_, err := a.Archive(context.Background(), Report{})
	assert.Equal(t, benchErrors.ErrCategoryValidation, benchErrors.GetCategory(err))
}

func TestArchiver_List(t *testing.T) {
	a, _ := newArchiver(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b"} {
		c := sampleCorrelation()
		c.CorrelationID = id
		_, err := a.Archive(ctx, a.Build(c))
		require.NoError(t, err)
	}

	ids, err := a.List(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, ids)
}

func TestArchiver_CorruptArchive(t *testing.T) {
	a, store := newArchiver(t)
	ctx := context.Background()

	src := filepath.Join(t.TempDir(), "junk")
	require.NoError(t, os.WriteFile(src, []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}, 0644))
	require.NoError(t, store.Upload(ctx, src, ObjectPath("bad")))

	_, err := a.Load(ctx, "bad")
	require.Error(t, err)
	assert.Equal(t, benchErrors.ErrCategoryStorage, benchErrors.GetCategory(err))
}
