package sqlstore

import (
	"context"
	"database/sql"

	benchErrors "github.com/munsocial/graphbench/internal/errors"
	"github.com/munsocial/graphbench/pkg/types"
)

// FetchPostsSQL is the home feed: newest posts with their creator, the
// creator's follow counts, and the post's comment and like counts.
const FetchPostsSQL = `
SELECT
    p.post_id,
    COALESCE(p.identifier, ''),
    p.user_id,
    COALESCE(p.title, ''),
    COALESCE(p.content, ''),
    COALESCE(p.media_url, ''),
    p.created_at,
    u.user_id,
    COALESCE(u.username, ''),
    COALESCE(u.email, ''),
    COALESCE(u.identifier, ''),
    (SELECT COUNT(*) FROM followers f WHERE f.followed_id = u.user_id) AS followers_count,
    (SELECT COUNT(*) FROM followers f WHERE f.follower_id = u.user_id) AS following_count,
    (SELECT COUNT(*) FROM comments c WHERE c.post_id = p.post_id) AS comment_count,
    (SELECT COUNT(*) FROM post_likes l WHERE l.post_id = p.post_id) AS like_count
FROM posts p
JOIN users u ON u.user_id = p.user_id
ORDER BY p.created_at DESC, p.identifier
LIMIT ? OFFSET ?`

// FetchCommentsSQL returns the top-level comments of a post, oldest first,
// each with the size of its whole reply subtree.
const FetchCommentsSQL = `
SELECT
    c.comment_id,
    COALESCE(c.identifier, ''),
    c.post_id,
    c.user_id,
    c.parent_comment_id,
    c.content,
    c.created_at,
    u.user_id,
    COALESCE(u.username, ''),
    COALESCE(u.email, ''),
    COALESCE(u.identifier, ''),
    (
        WITH RECURSIVE subtree(comment_id) AS (
            SELECT r.comment_id FROM comments r WHERE r.parent_comment_id = c.comment_id
            UNION ALL
            SELECT child.comment_id
            FROM comments child
            JOIN subtree parent ON child.parent_comment_id = parent.comment_id
        )
        SELECT COUNT(*) FROM subtree
    ) AS reply_count
FROM comments c
JOIN users u ON u.user_id = c.user_id
WHERE c.post_id = ?
  AND c.parent_comment_id IS NULL
ORDER BY c.created_at ASC, c.identifier
LIMIT ? OFFSET ?`

// FetchLikesSQL returns the likes of a post, newest first, with each
// liker's follow counts.
const FetchLikesSQL = `
SELECT
    l.like_id,
    l.post_id,
    l.user_id,
    COALESCE(l.identifier, ''),
    l.created_at,
    u.user_id,
    COALESCE(u.username, ''),
    COALESCE(u.email, ''),
    COALESCE(u.identifier, ''),
    u.created_at,
    (SELECT COUNT(*) FROM followers ff WHERE ff.followed_id = u.user_id) AS followers_count,
    (SELECT COUNT(*) FROM followers ff2 WHERE ff2.follower_id = u.user_id) AS following_count
FROM post_likes l
JOIN users u ON u.user_id = l.user_id
WHERE l.post_id = ?
ORDER BY l.created_at DESC, l.identifier
LIMIT ? OFFSET ?`

// FetchFollowersSQL returns the users following a user.
const FetchFollowersSQL = `
SELECT
    f.follower_id,
    f.followed_id,
    COALESCE(f.identifier, ''),
    f.created_at,
    u.user_id,
    COALESCE(u.username, ''),
    COALESCE(u.email, ''),
    COALESCE(u.identifier, ''),
    u.created_at,
    (SELECT COUNT(*) FROM followers ff WHERE ff.followed_id = u.user_id) AS followers_count,
    (SELECT COUNT(*) FROM followers ff2 WHERE ff2.follower_id = u.user_id) AS following_count
FROM followers f
JOIN users u ON u.user_id = f.follower_id
WHERE f.followed_id = ?
ORDER BY f.created_at DESC, f.identifier
LIMIT ? OFFSET ?`

// FetchFollowingSQL returns the users a user follows.
const FetchFollowingSQL = `
SELECT
    f.follower_id,
    f.followed_id,
    COALESCE(f.identifier, ''),
    f.created_at,
    u.user_id,
    COALESCE(u.username, ''),
    COALESCE(u.email, ''),
    COALESCE(u.identifier, ''),
    u.created_at,
    (SELECT COUNT(*) FROM followers ff WHERE ff.followed_id = u.user_id) AS followers_count,
    (SELECT COUNT(*) FROM followers ff2 WHERE ff2.follower_id = u.user_id) AS following_count
FROM followers f
JOIN users u ON u.user_id = f.followed_id
WHERE f.follower_id = ?
ORDER BY f.created_at DESC, f.identifier
LIMIT ? OFFSET ?`

// query runs a read statement and scans every row; the measurement covers
// execution and row iteration.
func (s *Store) query(ctx context.Context, statement string, scan func(*sql.Rows) error, args ...any) (types.Measurement, error) {
	stmt, err := s.db.PrepareContext(ctx, statement)
	if err != nil {
		return types.Measurement{}, benchErrors.NewSQLError(benchErrors.CodeQueryFailed, "prepare", err)
	}
	defer stmt.Close()

	start := s.now()
	rows, err := stmt.QueryContext(ctx, args...)
	if err != nil {
		return types.Measurement{}, benchErrors.NewSQLError(benchErrors.CodeQueryFailed, "query", err)
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		if err := scan(rows); err != nil {
			return types.Measurement{}, benchErrors.NewSQLError(benchErrors.CodeQueryFailed, "scan", err)
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return types.Measurement{}, benchErrors.NewSQLError(benchErrors.CodeQueryFailed, "iterate", err)
	}
	return s.measure(start, n, statement), nil
}

// FetchPosts returns a page of the home feed.
func (s *Store) FetchPosts(ctx context.Context, limit, offset int) ([]types.Post, types.Measurement, error) {
	var posts []types.Post
	m, err := s.query(ctx, FetchPostsSQL, func(rows *sql.Rows) error {
		var p types.Post
		u := &types.User{}
		if err := rows.Scan(
			&p.PostID, &p.Identifier, &p.UserID, &p.Title, &p.Content, &p.MediaURL, &p.CreatedAt,
			&u.UserID, &u.Username, &u.Email, &u.Identifier, &u.FollowersCount, &u.FollowingCount,
			&p.CommentCount, &p.LikeCount,
		); err != nil {
			return err
		}
		p.UserIdentifier = u.Identifier
		p.User = u
		posts = append(posts, p)
		return nil
	}, limit, offset)
	return posts, m, err
}

// FetchComments returns a page of top-level comments of a post.
func (s *Store) FetchComments(ctx context.Context, postID int64, limit, offset int) ([]types.Comment, types.Measurement, error) {
	var comments []types.Comment
	m, err := s.query(ctx, FetchCommentsSQL, func(rows *sql.Rows) error {
		var c types.Comment
		var parent sql.NullInt64
		u := &types.User{}
		if err := rows.Scan(
			&c.CommentID, &c.Identifier, &c.PostID, &c.UserID, &parent, &c.Content, &c.CreatedAt,
			&u.UserID, &u.Username, &u.Email, &u.Identifier, &c.ReplyCount,
		); err != nil {
			return err
		}
		if parent.Valid {
			c.ParentCommentID = &parent.Int64
		}
		c.User = u
		comments = append(comments, c)
		return nil
	}, postID, limit, offset)
	return comments, m, err
}

// FetchLikes returns a page of the likes of a post.
func (s *Store) FetchLikes(ctx context.Context, postID int64, limit, offset int) ([]types.Like, types.Measurement, error) {
	var likes []types.Like
	m, err := s.query(ctx, FetchLikesSQL, func(rows *sql.Rows) error {
		var l types.Like
		u := &types.User{}
		if err := rows.Scan(
			&l.LikeID, &l.PostID, &l.UserID, &l.Identifier, &l.CreatedAt,
			&u.UserID, &u.Username, &u.Email, &u.Identifier, &u.CreatedAt, &u.FollowersCount, &u.FollowingCount,
		); err != nil {
			return err
		}
		l.User = u
		likes = append(likes, l)
		return nil
	}, postID, limit, offset)
	return likes, m, err
}

// FetchFollowers returns a page of the followers of a user.
func (s *Store) FetchFollowers(ctx context.Context, userID int64, limit, offset int) ([]types.Follow, types.Measurement, error) {
	var follows []types.Follow
	m, err := s.query(ctx, FetchFollowersSQL, func(rows *sql.Rows) error {
		f, u, err := scanFollow(rows)
		if err != nil {
			return err
		}
		f.Follower = u
		follows = append(follows, f)
		return nil
	}, userID, limit, offset)
	return follows, m, err
}

// FetchFollowing returns a page of the users a user follows.
func (s *Store) FetchFollowing(ctx context.Context, userID int64, limit, offset int) ([]types.Follow, types.Measurement, error) {
	var follows []types.Follow
	m, err := s.query(ctx, FetchFollowingSQL, func(rows *sql.Rows) error {
		f, u, err := scanFollow(rows)
		if err != nil {
			return err
		}
		f.Followed = u
		follows = append(follows, f)
		return nil
	}, userID, limit, offset)
	return follows, m, err
}

func scanFollow(rows *sql.Rows) (types.Follow, *types.User, error) {
	var f types.Follow
	u := &types.User{}
	err := rows.Scan(
		&f.FollowerID, &f.FollowedID, &f.Identifier, &f.CreatedAt,
		&u.UserID, &u.Username, &u.Email, &u.Identifier, &u.CreatedAt, &u.FollowersCount, &u.FollowingCount,
	)
	return f, u, err
}
