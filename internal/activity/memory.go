package activity

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	benchErrors "github.com/munsocial/graphbench/internal/errors"
	"github.com/munsocial/graphbench/pkg/types"
)

// MemoryLog keeps activities in process. It answers the same queries as
// MongoLog and backs tests and the memory activity backend.
type MemoryLog struct {
	mu         sync.RWMutex
	activities []types.Activity
	now        func() time.Time
}

// NewMemoryLog creates an empty in-memory log.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{now: time.Now}
}

// WithClock replaces the clock used to stamp activities.
func (m *MemoryLog) WithClock(now func() time.Time) *MemoryLog {
	m.now = now
	return m
}

// Record implements Log.
func (m *MemoryLog) Record(_ context.Context, a types.Activity) error {
	if a.CorrelationID == "" {
		return benchErrors.NewActivityLogError(benchErrors.CodeRecordFailed, "activity has no correlation id", nil)
	}
	ts := m.now()
	a.CreatedAt = ts
	a.UpdatedAt = ts

	m.mu.Lock()
	m.activities = append(m.activities, a)
	m.mu.Unlock()
	return nil
}

// newestFirst returns a copy of the activities sorted by CreatedAt
// descending; ties keep the most recently recorded first.
func (m *MemoryLog) newestFirst(filter func(*types.Activity) bool) []types.Activity {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]types.Activity, 0, len(m.activities))
	for i := len(m.activities) - 1; i >= 0; i-- {
		if filter == nil || filter(&m.activities[i]) {
			out = append(out, m.activities[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// group folds activities sorted newest first into one correlation.
func group(sorted []types.Activity) types.Correlation {
	c := types.Correlation{
		CorrelationID:   sorted[0].CorrelationID,
		QueryName:       sorted[0].QueryName,
		NewestAt:        sorted[0].CreatedAt,
		OldestAt:        sorted[len(sorted)-1].CreatedAt,
		TotalActivities: len(sorted),
	}
	seen := make(map[int]bool)
	for _, a := range sorted {
		if !a.Success {
			c.AnyFailure = true
		}
		if !seen[a.DatasetScale] {
			seen[a.DatasetScale] = true
			c.Scales = append(c.Scales, a.DatasetScale)
		}
	}
	sort.Ints(c.Scales)
	return c
}

// ListCorrelations implements Log.
func (m *MemoryLog) ListCorrelations(_ context.Context, limit int) ([]types.Correlation, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	byID := make(map[string][]types.Activity)
	var order []string
	for _, a := range m.newestFirst(nil) {
		if _, ok := byID[a.CorrelationID]; !ok {
			order = append(order, a.CorrelationID)
		}
		byID[a.CorrelationID] = append(byID[a.CorrelationID], a)
	}

	var out []types.Correlation
	for _, id := range order {
		c := group(byID[id])
		if len(c.Scales) <= 1 {
			continue
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].NewestAt.After(out[j].NewestAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// GetCorrelation implements Log.
func (m *MemoryLog) GetCorrelation(_ context.Context, correlationID string) (*types.Correlation, error) {
	activities := m.newestFirst(func(a *types.Activity) bool {
		return a.CorrelationID == correlationID
	})
	if len(activities) == 0 {
		return nil, benchErrors.NewNotFoundError(benchErrors.CodeCorrelationNotFound,
			fmt.Sprintf("correlation %s not found", correlationID))
	}

	c := group(activities)
	c.Activities = activities
	c.SQLQuery, c.Neo4jQuery = statements(activities)
	return &c, nil
}

// statements picks the SQL text of the oldest sqlite activity and the
// Cypher text of the newest neo4j activity.
func statements(newestFirst []types.Activity) (sqlQuery, cypher string) {
	for i := len(newestFirst) - 1; i >= 0; i-- {
		if newestFirst[i].Engine == types.EngineSQLite {
			sqlQuery = newestFirst[i].Statement()
			break
		}
	}
	for _, a := range newestFirst {
		if a.Engine == types.EngineNeo4j {
			cypher = a.Statement()
			break
		}
	}
	return sqlQuery, cypher
}

// Len returns the number of recorded activities.
func (m *MemoryLog) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.activities)
}

// Close implements Log.
func (m *MemoryLog) Close(context.Context) error {
	return nil
}
