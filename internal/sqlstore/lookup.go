package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	benchErrors "github.com/munsocial/graphbench/internal/errors"
	"github.com/munsocial/graphbench/pkg/types"
)

// Table names a table whose rows carry a cross-engine identifier.
type Table string

const (
	TableUsers     Table = "users"
	TableComments  Table = "comments"
	TablePosts     Table = "posts"
	TablePostLikes Table = "post_likes"
)

var idColumns = map[Table]string{
	TableUsers:     "user_id",
	TablePosts:     "post_id",
	TableComments:  "comment_id",
	TablePostLikes: "like_id",
}

// RandomUsers returns up to limit users in random order.
func (s *Store) RandomUsers(ctx context.Context, limit int) ([]types.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, COALESCE(username, ''), COALESCE(email, ''), COALESCE(identifier, '')
		FROM users
		ORDER BY RANDOM()
		LIMIT ?`, limit)
	if err != nil {
		return nil, benchErrors.NewSQLError(benchErrors.CodeQueryFailed, "random users", err)
	}
	defer rows.Close()

	var users []types.User
	for rows.Next() {
		var u types.User
		if err := rows.Scan(&u.UserID, &u.Username, &u.Email, &u.Identifier); err != nil {
			return nil, benchErrors.NewSQLError(benchErrors.CodeQueryFailed, "scan user", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, benchErrors.NewSQLError(benchErrors.CodeQueryFailed, "random users", err)
	}
	return users, nil
}

// UserByID returns a user or a NOT_FOUND error.
func (s *Store) UserByID(ctx context.Context, id int64) (*types.User, error) {
	var u types.User
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, COALESCE(username, ''), COALESCE(email, ''), COALESCE(identifier, ''), created_at
		FROM users WHERE user_id = ?`, id).
		Scan(&u.UserID, &u.Username, &u.Email, &u.Identifier, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, benchErrors.NewNotFoundError(benchErrors.CodeUserNotFound, fmt.Sprintf("user %d not found", id))
	}
	if err != nil {
		return nil, benchErrors.NewSQLError(benchErrors.CodeQueryFailed, "user by id", err)
	}
	return &u, nil
}

// PostByID returns a post or a NOT_FOUND error.
func (s *Store) PostByID(ctx context.Context, id int64) (*types.Post, error) {
	var p types.Post
	err := s.db.QueryRowContext(ctx, `
		SELECT post_id, user_id, COALESCE(identifier, ''), COALESCE(title, ''), COALESCE(content, ''),
		       COALESCE(media_url, ''), created_at
		FROM posts WHERE post_id = ?`, id).
		Scan(&p.PostID, &p.UserID, &p.Identifier, &p.Title, &p.Content, &p.MediaURL, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, benchErrors.NewNotFoundError(benchErrors.CodePostNotFound, fmt.Sprintf("post %d not found", id))
	}
	if err != nil {
		return nil, benchErrors.NewSQLError(benchErrors.CodeQueryFailed, "post by id", err)
	}
	return &p, nil
}

// lookupChunkSize bounds the IN list of one identifier lookup, keeping it
// under SQLITE_MAX_VARIABLE_NUMBER.
var lookupChunkSize = 1000

// IDsByIdentifier maps cross-engine identifiers to local row ids.
// Unknown identifiers are absent from the result.
func (s *Store) IDsByIdentifier(ctx context.Context, table Table, identifiers []string) (map[string]int64, error) {
	col, ok := idColumns[table]
	if !ok {
		return nil, benchErrors.NewValidationError(benchErrors.CodeInvalidParams, fmt.Sprintf("unknown table %q", table))
	}
	out := make(map[string]int64, len(identifiers))
	for chunk := range slices.Chunk(identifiers, lookupChunkSize) {
		if err := s.lookupIDs(ctx, col, table, chunk, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Store) lookupIDs(ctx context.Context, col string, table Table, identifiers []string, out map[string]int64) error {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(identifiers)), ",")
	args := make([]any, len(identifiers))
	for i, id := range identifiers {
		args[i] = id
	}
	query := fmt.Sprintf("SELECT %s, identifier FROM %s WHERE identifier IN (%s)", col, table, placeholders)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return benchErrors.NewSQLError(benchErrors.CodeQueryFailed, "ids by identifier", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var identifier string
		if err := rows.Scan(&id, &identifier); err != nil {
			return benchErrors.NewSQLError(benchErrors.CodeQueryFailed, "scan id", err)
		}
		out[identifier] = id
	}
	if err := rows.Err(); err != nil {
		return benchErrors.NewSQLError(benchErrors.CodeQueryFailed, "ids by identifier", err)
	}
	return nil
}

// CreatePostInput is a single post written from the create-post endpoint.
type CreatePostInput struct {
	UserID   int64  `json:"user_id"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	MediaURL string `json:"media_url"`
}

// CreatePost inserts one post and returns the stored row.
func (s *Store) CreatePost(ctx context.Context, in CreatePostInput) (*types.Post, error) {
	if in.UserID <= 0 || strings.TrimSpace(in.Content) == "" {
		return nil, benchErrors.NewValidationError(benchErrors.CodeInvalidParams, "user_id and content are required")
	}
	res, err := s.db.ExecContext(ctx, insertPostSQL, in.UserID, uuid.NewString(), in.Title, in.Content, in.MediaURL)
	if err != nil {
		return nil, benchErrors.NewSQLError(benchErrors.CodeExecFailed, "create post", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, benchErrors.NewSQLError(benchErrors.CodeExecFailed, "create post", err)
	}
	return s.PostByID(ctx, id)
}

// ListPostsInput filters the home feed.
type ListPostsInput struct {
	UserID int64
	Limit  int
	Offset int
}

// ListPosts returns the home feed, optionally restricted to one author.
func (s *Store) ListPosts(ctx context.Context, in ListPostsInput) ([]types.Post, error) {
	if in.Limit <= 0 {
		in.Limit = 20
	}

	where := ""
	args := []any{}
	if in.UserID > 0 {
		where = "WHERE p.user_id = ?"
		args = append(args, in.UserID)
	}
	args = append(args, in.Limit, in.Offset)

	query := fmt.Sprintf(`
		SELECT p.post_id, p.user_id, COALESCE(p.identifier, ''), COALESCE(p.title, ''), COALESCE(p.content, ''),
		       COALESCE(p.media_url, ''), p.created_at,
		       COALESCE(u.username, ''), u.user_id,
		       COUNT(DISTINCT pl.like_id) AS like_count,
		       COUNT(DISTINCT c.comment_id) AS comment_count
		FROM posts p
		JOIN users u ON p.user_id = u.user_id
		LEFT JOIN post_likes pl ON p.post_id = pl.post_id
		LEFT JOIN comments c ON p.post_id = c.post_id
		%s
		GROUP BY p.post_id
		ORDER BY p.created_at DESC, p.identifier
		LIMIT ? OFFSET ?`, where)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, benchErrors.NewSQLError(benchErrors.CodeQueryFailed, "list posts", err)
	}
	defer rows.Close()

	var posts []types.Post
	for rows.Next() {
		var p types.Post
		u := &types.User{}
		if err := rows.Scan(&p.PostID, &p.UserID, &p.Identifier, &p.Title, &p.Content, &p.MediaURL, &p.CreatedAt,
			&u.Username, &u.UserID, &p.LikeCount, &p.CommentCount); err != nil {
			return nil, benchErrors.NewSQLError(benchErrors.CodeQueryFailed, "scan post", err)
		}
		p.User = u
		posts = append(posts, p)
	}
	return posts, rows.Err()
}
