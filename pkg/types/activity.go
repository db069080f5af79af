// Package types defines the shared data model for graphbench: measured
// activities, correlations, and the entity shapes both engines normalize into.
package types

import (
	"fmt"
	"time"
)

// Engine identifies the database engine an activity was measured against.
type Engine string

const (
	EngineSQLite Engine = "sqlite"
	EngineNeo4j  Engine = "neo4j"
)

// CachePhase controls whether engine caches are cleared before measuring.
type CachePhase string

const (
	CacheCold CachePhase = "cold"
	CacheWarm CachePhase = "warm"
)

// ParseCachePhase parses a cache phase, defaulting to cold when empty.
func ParseCachePhase(s string) (CachePhase, error) {
	switch CachePhase(s) {
	case "":
		return CacheCold, nil
	case CacheCold, CacheWarm:
		return CachePhase(s), nil
	default:
		return "", fmt.Errorf("invalid cache phase %q (must be cold or warm)", s)
	}
}

// Activity is one measurement of one operation against one engine.
// It is written once by the harness and never mutated.
type Activity struct {
	CorrelationID string         `json:"correlationId" bson:"correlationId"`
	StepID        string         `json:"stepId,omitempty" bson:"stepId,omitempty"`
	QueryName     string         `json:"queryName" bson:"queryName"`
	Engine        Engine         `json:"engine" bson:"engine"`
	DatasetScale  int            `json:"datasetScale" bson:"datasetScale"`
	CachePhase    CachePhase     `json:"cachePhase" bson:"cachePhase"`
	RunIndex      int            `json:"runIndex" bson:"runIndex"`
	LatencyMs     float64        `json:"latencyMs" bson:"latencyMs"`
	RowsReturned  int            `json:"rowsReturned" bson:"rowsReturned"`
	Success       bool           `json:"success" bson:"success"`
	ErrorMessage  string         `json:"errorMessage,omitempty" bson:"errorMessage,omitempty"`
	SQLiteExplain string         `json:"sqliteExplain,omitempty" bson:"sqliteExplain,omitempty"`
	Neo4jProfile  string         `json:"neo4jProfile,omitempty" bson:"neo4jProfile,omitempty"`
	Params        map[string]any `json:"params,omitempty" bson:"params,omitempty"`
	CreatedAt     time.Time      `json:"createdAt" bson:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt" bson:"updatedAt"`
}

// Statement returns the engine statement recorded with the activity.
func (a *Activity) Statement() string {
	if a.Engine == EngineNeo4j {
		return a.Neo4jProfile
	}
	return a.SQLiteExplain
}

// Correlation groups all activities of one experiment.
type Correlation struct {
	CorrelationID   string     `json:"correlationId" bson:"correlationId"`
	QueryName       string     `json:"queryName" bson:"queryName"`
	NewestAt        time.Time  `json:"newestAt" bson:"newestAt"`
	OldestAt        time.Time  `json:"oldestAt" bson:"oldestAt"`
	TotalActivities int        `json:"totalActivities" bson:"totalActivities"`
	AnyFailure      bool       `json:"anyFailure" bson:"anyFailure"`
	Scales          []int      `json:"scales,omitempty" bson:"scales,omitempty"`
	SQLQuery        string     `json:"sqlQuery,omitempty" bson:"sqlQuery,omitempty"`
	Neo4jQuery      string     `json:"neo4jQuery,omitempty" bson:"neo4jQuery,omitempty"`
	Activities      []Activity `json:"activities,omitempty" bson:"activities,omitempty"`
}

// Measurement is what an engine call reports back to the harness.
// Latency covers the engine call only, never statement preparation.
type Measurement struct {
	Latency      time.Duration
	RowsReturned int
	Statement    string
	Success      bool
	ErrorMessage string
}

// LatencyMs returns the latency in fractional milliseconds.
func (m Measurement) LatencyMs() float64 {
	return float64(m.Latency) / float64(time.Millisecond)
}
