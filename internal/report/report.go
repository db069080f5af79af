// Package report archives a correlation together with its analysis as a
// snappy-compressed JSON object.
package report

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang/snappy"

	benchErrors "github.com/munsocial/graphbench/internal/errors"
	"github.com/munsocial/graphbench/internal/analysis"
	"github.com/munsocial/graphbench/internal/storage"
	"github.com/munsocial/graphbench/pkg/types"
)

// Prefix is the object prefix every archive is written under.
const Prefix = "reports"

// Report is the archived form of one experiment.
type Report struct {
	Correlation types.Correlation `json:"correlation"`
	Analysis    analysis.Result   `json:"analysis"`
	ArchivedAt  time.Time         `json:"archivedAt"`
}

// ObjectPath returns the object path of a correlation's archive.
func ObjectPath(correlationID string) string {
	return path.Join(Prefix, correlationID+".json.sz")
}

// Archiver writes and reads reports through an object store.
type Archiver struct {
	store   storage.ObjectStorage
	tempDir string
	now     func() time.Time
}

// NewArchiver creates an archiver staging files in tempDir. An empty
// tempDir uses the OS default.
func NewArchiver(store storage.ObjectStorage, tempDir string) *Archiver {
	return &Archiver{store: store, tempDir: tempDir, now: time.Now}
}

// Build analyses a correlation and wraps it into a report.
func (a *Archiver) Build(c types.Correlation) Report {
	return Report{
		Correlation: c,
		Analysis:    analysis.Analyse(c.QueryName, c.Activities),
		ArchivedAt:  a.now().UTC(),
	}
}

// Archive writes the report and returns its object path. Archiving the
// same correlation twice replaces the previous object.
func (a *Archiver) Archive(ctx context.Context, r Report) (string, error) {
	if r.Correlation.CorrelationID == "" {
		return "", benchErrors.NewValidationError(benchErrors.CodeInvalidParams, "report has no correlation id")
	}

	data, err := json.Marshal(r)
	if err != nil {
		return "", benchErrors.NewInternalError("failed to encode report", err)
	}

	tmp, err := os.CreateTemp(a.tempDir, "report-*.json.sz")
	if err != nil {
		return "", benchErrors.NewStorageError(benchErrors.CodeUploadFailed, "failed to stage report", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(snappy.Encode(nil, data)); err != nil {
		tmp.Close()
		return "", benchErrors.NewStorageError(benchErrors.CodeUploadFailed, "failed to stage report", err)
	}
	if err := tmp.Close(); err != nil {
		return "", benchErrors.NewStorageError(benchErrors.CodeUploadFailed, "failed to stage report", err)
	}

	objectPath := ObjectPath(r.Correlation.CorrelationID)
	if err := a.store.Upload(ctx, tmp.Name(), objectPath); err != nil {
		return "", benchErrors.NewStorageError(benchErrors.CodeUploadFailed, "failed to upload report", err)
	}
	return objectPath, nil
}

// Load reads an archived report back.
func (a *Archiver) Load(ctx context.Context, correlationID string) (*Report, error) {
	dir, err := os.MkdirTemp(a.tempDir, "report-")
	if err != nil {
		return nil, benchErrors.NewStorageError(benchErrors.CodeDownloadFailed, "failed to stage report", err)
	}
	defer os.RemoveAll(dir)

	local := filepath.Join(dir, "report.json.sz")
	if err := a.store.Download(ctx, ObjectPath(correlationID), local); err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, benchErrors.NewNotFoundError(benchErrors.CodeReportNotFound, "no report archived for "+correlationID)
		}
		return nil, benchErrors.NewStorageError(benchErrors.CodeDownloadFailed, "failed to download report", err)
	}

	compressed, err := os.ReadFile(local)
	if err != nil {
		return nil, benchErrors.NewStorageError(benchErrors.CodeDownloadFailed, "failed to read report", err)
	}
	data, err := snappy.Decode(nil, compressed)
	if err != nil {
		return nil, benchErrors.NewStorageError(benchErrors.CodeDownloadFailed, "corrupt report archive", err)
	}

	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, benchErrors.NewStorageError(benchErrors.CodeDownloadFailed, "corrupt report archive", err)
	}
	return &r, nil
}

// List returns the correlation ids that have an archive.
func (a *Archiver) List(ctx context.Context) ([]string, error) {
	objects, err := a.store.ListObjects(ctx, Prefix)
	if err != nil {
		return nil, benchErrors.NewStorageError(benchErrors.CodeDownloadFailed, "failed to list reports", err)
	}
	ids := make([]string, 0, len(objects))
	for _, o := range objects {
		base := path.Base(o)
		if id, ok := strings.CutSuffix(base, ".json.sz"); ok && id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
