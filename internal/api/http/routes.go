package http

import (
	"net/http"

	"github.com/munsocial/graphbench/internal/activity"
	"github.com/munsocial/graphbench/internal/logger"
	"github.com/munsocial/graphbench/internal/observability"
	"github.com/munsocial/graphbench/internal/report"
)

// defaultTopQueries is the number of entries GET /v1/stats returns.
const defaultTopQueries = 10

// Handlers bundles what the API routes are served from. Social and
// Archiver are optional.
type Handlers struct {
	Runner   ExperimentRunner
	Activity activity.Log
	Social   SocialStore
	Archiver *report.Archiver
	Stats    *observability.QueryStats
	Logger   logger.Logger
}

// Register mounts every API route on mux behind middleware.
func Register(mux *http.ServeMux, h Handlers, middleware func(http.Handler) http.Handler) {
	if h.Logger == nil {
		h.Logger = logger.NewNopLogger()
	}
	wrap := func(f http.HandlerFunc) http.Handler { return middleware(f) }

	mux.Handle("POST /v1/experiments/{kind}", middleware(NewExperimentHandler(h.Runner, h.Logger)))
	mux.Handle("POST /v1/fetch/{kind}", middleware(NewFetchHandler(h.Runner)))

	activities := NewActivityHandler(h.Activity, h.Archiver)
	mux.Handle("GET /v1/activities", wrap(activities.List))
	mux.Handle("GET /v1/activities/{id}", wrap(activities.Detail))
	mux.Handle("POST /v1/activities/{id}/archive", wrap(activities.Archive))
	mux.Handle("GET /v1/activities/{id}/archive", wrap(activities.Archived))
	mux.Handle("GET /v1/reports", wrap(activities.Reports))

	if h.Social != nil {
		social := NewSocialHandler(h.Social)
		mux.Handle("GET /v1/posts", wrap(social.ListPosts))
		mux.Handle("POST /v1/posts", wrap(social.CreatePost))
		mux.Handle("POST /v1/connections", wrap(social.Connect))
		mux.Handle("GET /v1/users/{id}/connections", wrap(social.ListConnections))
	}

	if h.Stats != nil {
		mux.Handle("GET /v1/stats", wrap(statsHandler(h.Stats)))
	}
}

// statsHandler returns the most frequently recorded queries.
func statsHandler(stats *observability.QueryStats) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := queryInt(r, "top", defaultTopQueries)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "top must be a positive integer", GetRequestID(r.Context()))
			return
		}
		stats.Prune()
		writeJSON(w, http.StatusOK, stats.Top(n))
	}
}
