// Package activity records one document per engine call and answers the
// correlation list and detail views over them.
package activity

import (
	"context"

	"github.com/munsocial/graphbench/pkg/types"
)

// DefaultListLimit is the number of correlations listed when no limit is given.
const DefaultListLimit = 10

// Log stores activities and groups them into correlations.
type Log interface {
	// Record persists one activity. CreatedAt and UpdatedAt are set by the log.
	Record(ctx context.Context, a types.Activity) error

	// ListCorrelations returns the newest correlations that span more than
	// one dataset scale, newest first.
	ListCorrelations(ctx context.Context, limit int) ([]types.Correlation, error)

	// GetCorrelation returns one correlation with its activities, newest
	// first, or a NOT_FOUND error.
	GetCorrelation(ctx context.Context, correlationID string) (*types.Correlation, error)

	// Close releases the underlying connection.
	Close(ctx context.Context) error
}
