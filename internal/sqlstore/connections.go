package sqlstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	benchErrors "github.com/munsocial/graphbench/internal/errors"
	"github.com/munsocial/graphbench/pkg/types"
)

// Connect records a connection between two users, or updates its status
// if the pair is already connected.
func (s *Store) Connect(ctx context.Context, userID1, userID2 int64, status types.ConnectionStatus) (*types.Connection, error) {
	if userID1 == userID2 {
		return nil, benchErrors.NewValidationError(benchErrors.CodeInvalidParams, "a user cannot connect to itself")
	}
	switch status {
	case "":
		status = types.ConnectionPending
	case types.ConnectionPending, types.ConnectionAccepted, types.ConnectionBlocked:
	default:
		return nil, benchErrors.NewValidationError(benchErrors.CodeInvalidParams, fmt.Sprintf("invalid connection status %q", status))
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO connections (user_id1, user_id2, identifier, status)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id1, user_id2) DO UPDATE SET status = excluded.status`,
		userID1, userID2, uuid.NewString(), string(status))
	if err != nil {
		return nil, benchErrors.NewSQLError(benchErrors.CodeExecFailed, "connect users", err)
	}

	var c types.Connection
	var st string
	err = s.db.QueryRowContext(ctx, `
		SELECT connection_id, user_id1, user_id2, COALESCE(identifier, ''), status, created_at
		FROM connections WHERE user_id1 = ? AND user_id2 = ?`, userID1, userID2).
		Scan(&c.ConnectionID, &c.UserID1, &c.UserID2, &c.Identifier, &st, &c.CreatedAt)
	if err != nil {
		return nil, benchErrors.NewSQLError(benchErrors.CodeQueryFailed, "read connection", err)
	}
	c.Status = types.ConnectionStatus(st)
	return &c, nil
}

// ListConnections returns every connection a user takes part in.
func (s *Store) ListConnections(ctx context.Context, userID int64) ([]types.Connection, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT connection_id, user_id1, user_id2, COALESCE(identifier, ''), status, created_at
		FROM connections
		WHERE user_id1 = ? OR user_id2 = ?
		ORDER BY connection_id`, userID, userID)
	if err != nil {
		return nil, benchErrors.NewSQLError(benchErrors.CodeQueryFailed, "list connections", err)
	}
	defer rows.Close()

	var out []types.Connection
	for rows.Next() {
		var c types.Connection
		var st string
		if err := rows.Scan(&c.ConnectionID, &c.UserID1, &c.UserID2, &c.Identifier, &st, &c.CreatedAt); err != nil {
			return nil, benchErrors.NewSQLError(benchErrors.CodeQueryFailed, "scan connection", err)
		}
		c.Status = types.ConnectionStatus(st)
		out = append(out, c)
	}
	return out, rows.Err()
}
