package analysis

import (
	"sort"
	"strconv"

	"github.com/munsocial/graphbench/pkg/types"
)

// Parity count keys recorded in fetch activity params.
const (
	ParamPostsCount     = "postsCount"
	ParamCommentsCount  = "commentsCount"
	ParamRepliesCount   = "repliesCount"
	ParamLikesCount     = "likesCount"
	ParamFollowersCount = "followersCount"
	ParamFollowingCount = "followingCount"
)

var metricsByQuery = map[string][]string{
	"fetch_posts":              {ParamPostsCount, ParamCommentsCount, ParamLikesCount, ParamFollowersCount, ParamFollowingCount},
	"fetch_comments_recursive": {ParamCommentsCount, ParamRepliesCount},
	"fetch_likes":              {ParamLikesCount, ParamFollowersCount, ParamFollowingCount},
	"fetch_followers":          {ParamFollowersCount},
	"fetch_following":          {ParamFollowingCount},
}

// Metrics returns the parity counts compared for a fetch query.
func Metrics(queryName string) []string {
	return metricsByQuery[queryName]
}

// Verification compares one parity count of a fetch step across engines.
type Verification struct {
	StepID          string  `json:"stepId,omitempty"`
	Scale           int     `json:"scale"`
	Metric          string  `json:"metric"`
	SQLite          float64 `json:"sqlite"`
	Neo4j           float64 `json:"neo4j"`
	SQLiteLatencyMs float64 `json:"sqliteLatencyMs"`
	Neo4jLatencyMs  float64 `json:"neo4jLatencyMs"`
	Match           bool    `json:"match"`
	Missing         bool    `json:"missing,omitempty"`
}

type stepPair struct {
	key    string
	scale  int
	order  int
	sqlite *types.Activity
	neo4j  *types.Activity
}

// Verify pairs the two engine activities of every fetch step and compares
// the parity counts each one recorded. Steps are matched by StepID, or by
// scale for activities recorded without one.
func Verify(queryName string, records []types.Activity) []Verification {
	metrics := Metrics(queryName)
	if len(metrics) == 0 {
		return nil
	}

	pairs := make(map[string]*stepPair)
	var ordered []*stepPair
	for i := range records {
		r := &records[i]
		key := r.StepID
		if key == "" {
			key = "scale:" + strconv.Itoa(r.DatasetScale)
		}
		p, ok := pairs[key]
		if !ok {
			p = &stepPair{key: key, scale: r.DatasetScale, order: len(ordered)}
			pairs[key] = p
			ordered = append(ordered, p)
		}
		switch r.Engine {
		case types.EngineSQLite:
			if p.sqlite == nil {
				p.sqlite = r
			}
		case types.EngineNeo4j:
			if p.neo4j == nil {
				p.neo4j = r
			}
		}
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].scale != ordered[j].scale {
			return ordered[i].scale < ordered[j].scale
		}
		return ordered[i].order < ordered[j].order
	})

	var out []Verification
	for _, p := range ordered {
		stepID := ""
		if p.sqlite != nil {
			stepID = p.sqlite.StepID
		} else if p.neo4j != nil {
			stepID = p.neo4j.StepID
		}
		for _, m := range metrics {
			v := Verification{StepID: stepID, Scale: p.scale, Metric: m}
			if p.sqlite == nil || p.neo4j == nil {
				v.Missing = true
				out = append(out, v)
				continue
			}
			sv, okS := number(p.sqlite.Params[m])
			nv, okN := number(p.neo4j.Params[m])
			v.SQLite = sv
			v.Neo4j = nv
			v.SQLiteLatencyMs = p.sqlite.LatencyMs
			v.Neo4jLatencyMs = p.neo4j.LatencyMs
			v.Missing = !okS || !okN
			v.Match = okS && okN && sv == nv
			out = append(out, v)
		}
	}
	return out
}

// number converts the numeric shapes params take after a round trip
// through JSON or BSON.
func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
