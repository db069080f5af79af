// Package analysis turns recorded activities into latency comparisons.
// Every function here is pure.
package analysis

import (
	"encoding/json"
	"math"
	"sort"
	"strings"

	"github.com/munsocial/graphbench/pkg/types"
)

// Latency is a mean latency in milliseconds. NaN means "no finite sample"
// and is encoded as JSON null.
type Latency float64

// IsAbsent reports whether no finite sample contributed to the value.
func (l Latency) IsAbsent() bool {
	return math.IsNaN(float64(l))
}

func (l Latency) MarshalJSON() ([]byte, error) {
	f := float64(l)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(f)
}

func (l *Latency) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*l = Latency(math.NaN())
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*l = Latency(f)
	return nil
}

// Run is one side-by-side comparison for a scale.
type Run struct {
	RunIndex int     `json:"runIndex"`
	SQLite   Latency `json:"sqlite"`
	Neo4j    Latency `json:"neo4j"`
}

// ScalePerformance groups the runs measured at one dataset scale.
type ScalePerformance struct {
	Scale int   `json:"scale"`
	Runs  []Run `json:"runs"`
}

// Point is the mean latency of one engine at one scale.
type Point struct {
	Scale       int     `json:"scale"`
	MeanLatency Latency `json:"meanLatency"`
}

// Scalability is the latency trend per engine.
type Scalability struct {
	SQLite []Point `json:"sqlite"`
	Neo4j  []Point `json:"neo4j"`
}

// ScaleRow is a scalability point with both engines side by side.
type ScaleRow struct {
	Scale  int     `json:"scale"`
	SQLite Latency `json:"sqlite"`
	Neo4j  Latency `json:"neo4j"`
}

// Result is the analysis attached to a correlation detail.
type Result struct {
	Performance     []ScalePerformance `json:"performance"`
	Scalability     Scalability        `json:"scalability"`
	ScalabilityRows []ScaleRow         `json:"scalabilityRows"`
	Verification    []Verification     `json:"verification,omitempty"`
}

// SafeMean is the arithmetic mean of the finite values; NaN when none remain.
func SafeMean(values []float64) float64 {
	var sum float64
	n := 0
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

type engineSamples struct {
	sqlite []float64
	neo4j  []float64
}

func (s *engineSamples) add(a types.Activity) {
	switch a.Engine {
	case types.EngineSQLite:
		s.sqlite = append(s.sqlite, a.LatencyMs)
	case types.EngineNeo4j:
		s.neo4j = append(s.neo4j, a.LatencyMs)
	}
}

func groupByScale(records []types.Activity) (map[int][]types.Activity, []int) {
	groups := make(map[int][]types.Activity)
	var scales []int
	for _, r := range records {
		if _, ok := groups[r.DatasetScale]; !ok {
			scales = append(scales, r.DatasetScale)
		}
		groups[r.DatasetScale] = append(groups[r.DatasetScale], r)
	}
	sort.Ints(scales)
	return groups, scales
}

// CreatePerformance averages each engine per scale and run index.
func CreatePerformance(records []types.Activity) []ScalePerformance {
	groups, scales := groupByScale(records)
	out := make([]ScalePerformance, 0, len(scales))

	for _, scale := range scales {
		byRun := make(map[int]*engineSamples)
		var runIdx []int
		for _, r := range groups[scale] {
			s, ok := byRun[r.RunIndex]
			if !ok {
				s = &engineSamples{}
				byRun[r.RunIndex] = s
				runIdx = append(runIdx, r.RunIndex)
			}
			s.add(r)
		}
		sort.Ints(runIdx)

		runs := make([]Run, 0, len(runIdx))
		for _, idx := range runIdx {
			s := byRun[idx]
			runs = append(runs, Run{
				RunIndex: idx,
				SQLite:   Latency(SafeMean(s.sqlite)),
				Neo4j:    Latency(SafeMean(s.neo4j)),
			})
		}
		out = append(out, ScalePerformance{Scale: scale, Runs: runs})
	}
	return out
}

// FetchPerformance averages each engine per scale into a single run.
// Fetch steps only ever run once per scale.
func FetchPerformance(records []types.Activity) []ScalePerformance {
	groups, scales := groupByScale(records)
	out := make([]ScalePerformance, 0, len(scales))

	for _, scale := range scales {
		var s engineSamples
		for _, r := range groups[scale] {
			s.add(r)
		}
		out = append(out, ScalePerformance{
			Scale: scale,
			Runs: []Run{{
				RunIndex: 1,
				SQLite:   Latency(SafeMean(s.sqlite)),
				Neo4j:    Latency(SafeMean(s.neo4j)),
			}},
		})
	}
	return out
}

// ComputeScalability returns the mean latency per scale for each engine.
func ComputeScalability(records []types.Activity) Scalability {
	groups, scales := groupByScale(records)
	sc := Scalability{
		SQLite: make([]Point, 0, len(scales)),
		Neo4j:  make([]Point, 0, len(scales)),
	}
	for _, scale := range scales {
		var s engineSamples
		for _, r := range groups[scale] {
			s.add(r)
		}
		sc.SQLite = append(sc.SQLite, Point{Scale: scale, MeanLatency: Latency(SafeMean(s.sqlite))})
		sc.Neo4j = append(sc.Neo4j, Point{Scale: scale, MeanLatency: Latency(SafeMean(s.neo4j))})
	}
	return sc
}

// FlattenScalability merges both engine series into one row per scale.
// A scale missing from one series gets an absent latency for that engine.
func FlattenScalability(sc Scalability) []ScaleRow {
	rows := make(map[int]*ScaleRow)
	var scales []int
	get := func(scale int) *ScaleRow {
		r, ok := rows[scale]
		if !ok {
			r = &ScaleRow{Scale: scale, SQLite: Latency(math.NaN()), Neo4j: Latency(math.NaN())}
			rows[scale] = r
			scales = append(scales, scale)
		}
		return r
	}
	for _, p := range sc.SQLite {
		get(p.Scale).SQLite = p.MeanLatency
	}
	for _, p := range sc.Neo4j {
		get(p.Scale).Neo4j = p.MeanLatency
	}
	sort.Ints(scales)

	out := make([]ScaleRow, 0, len(scales))
	for _, s := range scales {
		out = append(out, *rows[s])
	}
	return out
}

// IsCreate reports whether a query name belongs to a create experiment.
func IsCreate(queryName string) bool {
	return strings.HasPrefix(queryName, "create")
}

// Analyse picks the create or fetch analysis based on the query name.
func Analyse(queryName string, records []types.Activity) Result {
	sc := ComputeScalability(records)
	res := Result{
		Scalability:     sc,
		ScalabilityRows: FlattenScalability(sc),
	}
	if IsCreate(queryName) {
		res.Performance = CreatePerformance(records)
		return res
	}
	res.Performance = FetchPerformance(records)
	res.Verification = Verify(queryName, records)
	return res
}
