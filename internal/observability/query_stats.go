// Package observability tracks engine call statistics and exports them as
// prometheus metrics.
package observability

import (
	"sort"
	"sync"
	"time"
)

// QueryStats tracks how often each query ran against each engine.
type QueryStats struct {
	mu      sync.RWMutex
	queries map[string]*QueryStat
	window  time.Duration
	now     func() time.Time
}

// QueryStat holds the statistics of one query name.
type QueryStat struct {
	QueryName string           `json:"queryName"`
	Frequency int64            `json:"frequency"`
	Failures  int64            `json:"failures"`
	LastSeen  time.Time        `json:"lastSeen"`
	Engines   map[string]int64 `json:"engines"` // engine → count
}

// NewQueryStats creates a tracker that forgets queries not seen within window.
func NewQueryStats(window time.Duration) *QueryStats {
	return &QueryStats{
		queries: make(map[string]*QueryStat),
		window:  window,
		now:     time.Now,
	}
}

// Record records one engine call of a query.
// This method is O(1) and thread-safe.
func (q *QueryStats) Record(queryName, engine string, success bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	stat, exists := q.queries[queryName]
	if !exists {
		stat = &QueryStat{
			QueryName: queryName,
			Engines:   make(map[string]int64),
		}
		q.queries[queryName] = stat
	}

	stat.Frequency++
	if !success {
		stat.Failures++
	}
	stat.LastSeen = q.now()
	stat.Engines[engine]++
}

// Top returns the top n queries by frequency, as copies.
func (q *QueryStats) Top(n int) []QueryStat {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if n <= 0 || len(q.queries) == 0 {
		return []QueryStat{}
	}

	stats := make([]QueryStat, 0, len(q.queries))
	for _, s := range q.queries {
		c := *s
		c.Engines = make(map[string]int64, len(s.Engines))
		for e, count := range s.Engines {
			c.Engines[e] = count
		}
		stats = append(stats, c)
	}

	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Frequency != stats[j].Frequency {
			return stats[i].Frequency > stats[j].Frequency
		}
		return stats[i].QueryName < stats[j].QueryName
	})

	if n > len(stats) {
		n = len(stats)
	}
	return stats[:n]
}

// Prune removes queries not seen within the window.
func (q *QueryStats) Prune() {
	q.mu.Lock()
	defer q.mu.Unlock()

	threshold := q.now().Add(-q.window)
	for name, stat := range q.queries {
		if stat.LastSeen.Before(threshold) {
			delete(q.queries, name)
		}
	}
}
