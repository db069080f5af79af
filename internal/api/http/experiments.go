package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/munsocial/graphbench/internal/harness"
	"github.com/munsocial/graphbench/internal/logger"
)

// ExperimentRunner runs experiments and fetch steps. *harness.Runner
// implements it.
type ExperimentRunner interface {
	RunExperiment(ctx context.Context, kind harness.Kind, req harness.ExperimentRequest) (*harness.ExperimentResult, error)
	Fetch(ctx context.Context, kind harness.FetchKind, req harness.FetchRequest) (*harness.FetchResult, error)
}

// ExperimentHandler handles POST /v1/experiments/{kind}.
type ExperimentHandler struct {
	runner ExperimentRunner
	log    logger.Logger
}

// NewExperimentHandler creates a new experiment handler.
func NewExperimentHandler(runner ExperimentRunner, log logger.Logger) *ExperimentHandler {
	return &ExperimentHandler{runner: runner, log: log}
}

// ServeHTTP runs the experiment synchronously and returns its summary.
func (h *ExperimentHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	kind, err := harness.ParseKind(r.PathValue("kind"))
	if err != nil {
		writeBenchError(w, r, err)
		return
	}

	var req harness.ExperimentRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err), GetRequestID(r.Context()))
		return
	}

	start := time.Now()
	res, err := h.runner.RunExperiment(r.Context(), kind, req)
	if err != nil {
		h.log.Warn("experiment failed",
			logger.String("kind", string(kind)),
			logger.Error(err))
		writeBenchError(w, r, err)
		return
	}

	h.log.Info("experiment finished",
		logger.String("kind", string(kind)),
		logger.String("correlation_id", res.CorrelationID),
		logger.Int("runs", res.Runs),
		logger.Int("skipped", res.Skipped),
		logger.Duration("elapsed", time.Since(start)))
	writeJSON(w, http.StatusOK, res)
}

// FetchHandler handles POST /v1/fetch/{kind}.
type FetchHandler struct {
	runner ExperimentRunner
}

// NewFetchHandler creates a new fetch handler.
func NewFetchHandler(runner ExperimentRunner) *FetchHandler {
	return &FetchHandler{runner: runner}
}

// ServeHTTP runs one fetch step.
func (h *FetchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	kind, err := harness.ParseFetchKind(r.PathValue("kind"))
	if err != nil {
		writeBenchError(w, r, err)
		return
	}

	var req harness.FetchRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err), GetRequestID(r.Context()))
		return
	}

	res, err := h.runner.Fetch(r.Context(), kind, req)
	if err != nil {
		writeBenchError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// decodeBody decodes a JSON body. An empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
