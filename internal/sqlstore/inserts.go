package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	benchErrors "github.com/munsocial/graphbench/internal/errors"
	"github.com/munsocial/graphbench/internal/seed"
	"github.com/munsocial/graphbench/pkg/types"
)

const (
	insertUserSQL = `INSERT INTO users (identifier, username, email, password_hash)
VALUES (?, ?, ?, ?)`

	insertPostSQL = `INSERT INTO posts (user_id, identifier, title, content, media_url)
VALUES (?, ?, ?, ?, ?)`

	insertCommentSQL = `INSERT INTO comments (post_id, user_id, parent_comment_id, identifier, content)
VALUES (?, ?, ?, ?, ?)`

	insertLikeSQL = `INSERT OR IGNORE INTO post_likes (post_id, user_id, identifier)
VALUES (?, ?, ?)`

	insertFollowSQL = `INSERT OR IGNORE INTO followers (follower_id, followed_id, identifier)
VALUES (?, ?, ?)`
)

// batch runs exec for every row inside one transaction with a single
// prepared statement. Only the execution and commit are timed.
func (s *Store) batch(ctx context.Context, statement string, n int, exec func(stmt *sql.Stmt, i int) error) (types.Measurement, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return types.Measurement{}, fmt.Errorf("begin: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, statement)
	if err != nil {
		tx.Rollback()
		return types.Measurement{}, fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	start := s.now()
	for i := 0; i < n; i++ {
		if err := exec(stmt, i); err != nil {
			tx.Rollback()
			return types.Measurement{Latency: s.now().Sub(start), Statement: statement}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return types.Measurement{Latency: s.now().Sub(start), Statement: statement}, fmt.Errorf("commit: %w", err)
	}
	return s.measure(start, 0, statement), nil
}

// InsertUsers inserts users in one transaction.
func (s *Store) InsertUsers(ctx context.Context, users []seed.UserSeed) (types.Measurement, error) {
	m, err := s.batch(ctx, insertUserSQL, len(users), func(stmt *sql.Stmt, i int) error {
		u := users[i]
		_, err := stmt.ExecContext(ctx, u.Identifier, u.Username, u.Email, u.PasswordHash)
		return err
	})
	if err != nil {
		return m, benchErrors.NewSQLError(benchErrors.CodeExecFailed, "insert users", err)
	}
	return m, nil
}

// InsertPosts inserts posts in one transaction.
func (s *Store) InsertPosts(ctx context.Context, posts []seed.PostSeed) (types.Measurement, error) {
	m, err := s.batch(ctx, insertPostSQL, len(posts), func(stmt *sql.Stmt, i int) error {
		p := posts[i]
		_, err := stmt.ExecContext(ctx, p.UserID, p.Identifier, p.Title, p.Content, p.MediaURL)
		return err
	})
	if err != nil {
		return m, benchErrors.NewSQLError(benchErrors.CodeExecFailed, "insert posts", err)
	}
	return m, nil
}

// InsertComments inserts a level-ordered thread in one transaction.
// Parents are always inserted before their replies, so each reply's
// parent_comment_id is resolved from the rowids assigned earlier in the
// same transaction.
func (s *Store) InsertComments(ctx context.Context, levels [][]seed.CommentSeed) (types.Measurement, error) {
	flat := seed.Flatten(levels)
	rowIDs := make(map[int]int64, len(flat))

	m, err := s.batch(ctx, insertCommentSQL, len(flat), func(stmt *sql.Stmt, i int) error {
		c := flat[i]
		var parent sql.NullInt64
		if c.IsReply() {
			id, ok := rowIDs[c.ParentSeqID]
			if !ok {
				return fmt.Errorf("comment %d: parent %d not inserted yet", c.SeqID, c.ParentSeqID)
			}
			parent = sql.NullInt64{Int64: id, Valid: true}
		}
		res, err := stmt.ExecContext(ctx, c.PostID, c.UserID, parent, c.Identifier, c.Content)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		rowIDs[c.SeqID] = id
		return nil
	})
	if err != nil {
		return m, benchErrors.NewSQLError(benchErrors.CodeExecFailed, "insert comments", err)
	}
	return m, nil
}

// InsertLikes inserts likes, ignoring ones that already exist. A failed
// batch is reported in the measurement rather than as an error.
func (s *Store) InsertLikes(ctx context.Context, likes []seed.LikeSeed) types.Measurement {
	m, err := s.batch(ctx, insertLikeSQL, len(likes), func(stmt *sql.Stmt, i int) error {
		l := likes[i]
		_, err := stmt.ExecContext(ctx, l.PostID, l.UserID, l.Identifier)
		return err
	})
	if err != nil {
		return failed(m, insertLikeSQL, err)
	}
	return m
}

// InsertFollows inserts follow edges, ignoring ones that already exist.
// A failed batch is reported in the measurement rather than as an error.
func (s *Store) InsertFollows(ctx context.Context, follows []seed.FollowSeed) types.Measurement {
	m, err := s.batch(ctx, insertFollowSQL, len(follows), func(stmt *sql.Stmt, i int) error {
		f := follows[i]
		_, err := stmt.ExecContext(ctx, f.FollowerID, f.FollowedID, f.Identifier)
		return err
	})
	if err != nil {
		return failed(m, insertFollowSQL, err)
	}
	return m
}

func failed(m types.Measurement, statement string, err error) types.Measurement {
	m.Statement = statement
	m.Success = false
	m.ErrorMessage = err.Error()
	return m
}
