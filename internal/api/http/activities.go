package http

import (
	"net/http"
	"sort"
	"strconv"

	"github.com/munsocial/graphbench/internal/activity"
	"github.com/munsocial/graphbench/internal/analysis"
	"github.com/munsocial/graphbench/internal/report"
	"github.com/munsocial/graphbench/pkg/types"
)

// CorrelationDetail is a correlation with its latency analysis.
type CorrelationDetail struct {
	types.Correlation
	Analysis analysis.Result `json:"analysis"`
}

// ArchiveResponse is returned after a report is archived.
type ArchiveResponse struct {
	CorrelationID string `json:"correlationId"`
	Object        string `json:"object"`
}

// ActivityHandler serves the correlation list, detail and archive routes.
type ActivityHandler struct {
	log      activity.Log
	archiver *report.Archiver
}

// NewActivityHandler creates a new activity handler. A nil archiver
// disables the archive routes.
func NewActivityHandler(log activity.Log, archiver *report.Archiver) *ActivityHandler {
	return &ActivityHandler{log: log, archiver: archiver}
}

// List handles GET /v1/activities.
func (h *ActivityHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", activity.DefaultListLimit)
	if err != nil || limit <= 0 {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer", GetRequestID(r.Context()))
		return
	}

	correlations, err := h.log.ListCorrelations(r.Context(), limit)
	if err != nil {
		writeBenchError(w, r, err)
		return
	}
	if correlations == nil {
		correlations = []types.Correlation{}
	}
	writeJSON(w, http.StatusOK, correlations)
}

// Detail handles GET /v1/activities/{id}.
func (h *ActivityHandler) Detail(w http.ResponseWriter, r *http.Request) {
	c, err := h.log.GetCorrelation(r.Context(), r.PathValue("id"))
	if err != nil {
		writeBenchError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CorrelationDetail{
		Correlation: *c,
		Analysis:    analysis.Analyse(c.QueryName, c.Activities),
	})
}

// Archive handles POST /v1/activities/{id}/archive.
func (h *ActivityHandler) Archive(w http.ResponseWriter, r *http.Request) {
	if h.archiver == nil {
		writeError(w, http.StatusNotImplemented, "report archive is not configured", GetRequestID(r.Context()))
		return
	}

	c, err := h.log.GetCorrelation(r.Context(), r.PathValue("id"))
	if err != nil {
		writeBenchError(w, r, err)
		return
	}
	object, err := h.archiver.Archive(r.Context(), h.archiver.Build(*c))
	if err != nil {
		writeBenchError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ArchiveResponse{CorrelationID: c.CorrelationID, Object: object})
}

// Archived handles GET /v1/activities/{id}/archive.
func (h *ActivityHandler) Archived(w http.ResponseWriter, r *http.Request) {
	if h.archiver == nil {
		writeError(w, http.StatusNotImplemented, "report archive is not configured", GetRequestID(r.Context()))
		return
	}

	rep, err := h.archiver.Load(r.Context(), r.PathValue("id"))
	if err != nil {
		writeBenchError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// ReportList is the body of GET /v1/reports.
type ReportList struct {
	CorrelationIDs []string `json:"correlationIds"`
}

// Reports handles GET /v1/reports.
func (h *ActivityHandler) Reports(w http.ResponseWriter, r *http.Request) {
	if h.archiver == nil {
		writeError(w, http.StatusNotImplemented, "report archive is not configured", GetRequestID(r.Context()))
		return
	}

	ids, err := h.archiver.List(r.Context())
	if err != nil {
		writeBenchError(w, r, err)
		return
	}
	sort.Strings(ids)
	writeJSON(w, http.StatusOK, ReportList{CorrelationIDs: ids})
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func queryInt64(r *http.Request, key string) (int64, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}
	return strconv.ParseInt(v, 10, 64)
}
