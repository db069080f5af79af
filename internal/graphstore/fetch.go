package graphstore

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	benchErrors "github.com/munsocial/graphbench/internal/errors"
	"github.com/munsocial/graphbench/internal/sqlstore"
	"github.com/munsocial/graphbench/pkg/types"
)

// FetchPostsCypher is the graph home feed.
const FetchPostsCypher = `
MATCH (p:Post)<-[:POSTED]-(u:User)
WITH p, u,
  COUNT { (p)<-[:ON_POST]-(:Comment)<-[:REPLY_TO*0..]-(:Comment) } AS comment_count,
  COUNT { (:User)-[:LIKED]->(p) } AS like_count,
  COUNT { (:User)-[:FOLLOWS]->(u) } AS followers_count,
  COUNT { (u)-[:FOLLOWS]->(:User) } AS following_count
ORDER BY p.created_at DESC, p.identifier
SKIP $offset LIMIT $limit
RETURN p.identifier AS identifier, p.title AS title, p.content AS content,
  p.media_url AS media_url, toString(p.created_at) AS created_at,
  u.identifier AS user_identifier, u.username AS username, u.email AS email,
  comment_count, like_count, followers_count, following_count`

// FetchCommentsCypher returns the top-level comments of a post, oldest
// first, with the size of each reply subtree.
const FetchCommentsCypher = `
MATCH (p:Post {identifier: $post_identifier})<-[:ON_POST]-(c:Comment)
MATCH (c)-[:COMMENTED_BY]->(u:User)
WHERE NOT (c)-[:REPLY_TO]->(:Comment)
WITH c, u, COUNT { (c)<-[:REPLY_TO*1..]-(:Comment) } AS reply_count
ORDER BY c.created_at ASC, c.identifier
SKIP $offset LIMIT $limit
RETURN c.identifier AS identifier, c.content AS content, toString(c.created_at) AS created_at,
  u.identifier AS user_identifier, u.username AS username, u.email AS email,
  reply_count`

// FetchLikesCypher returns the likes of a post, newest first.
const FetchLikesCypher = `
MATCH (u:User)-[l:LIKED]->(p:Post {identifier: $post_identifier})
WITH u, l,
  COUNT { (u)<-[:FOLLOWS]-(:User) } AS followers_count,
  COUNT { (u)-[:FOLLOWS]->(:User) } AS following_count
ORDER BY l.created_at DESC, l.identifier
SKIP $offset LIMIT $limit
RETURN l.identifier AS identifier, toString(l.created_at) AS created_at,
  u.identifier AS user_identifier, u.username AS username, u.email AS email,
  toString(u.created_at) AS user_created_at, followers_count, following_count`

// FetchFollowersCypher returns the followers of a user, newest first.
const FetchFollowersCypher = `
MATCH (other:User)-[r:FOLLOWS]->(:User {identifier: $identifier})
WITH other, r,
  COUNT { (other)<-[:FOLLOWS]-(:User) } AS followers_count,
  COUNT { (other)-[:FOLLOWS]->(:User) } AS following_count
ORDER BY r.created_at DESC, r.identifier
SKIP $offset LIMIT $limit
RETURN r.identifier AS identifier, toString(r.created_at) AS created_at,
  other.identifier AS user_identifier, other.username AS username, other.email AS email,
  toString(other.created_at) AS user_created_at, followers_count, following_count`

// FetchFollowingCypher returns the users a user follows, newest first.
const FetchFollowingCypher = `
MATCH (:User {identifier: $identifier})-[r:FOLLOWS]->(other:User)
WITH other, r,
  COUNT { (other)<-[:FOLLOWS]-(:User) } AS followers_count,
  COUNT { (other)-[:FOLLOWS]->(:User) } AS following_count
ORDER BY r.created_at DESC, r.identifier
SKIP $offset LIMIT $limit
RETURN r.identifier AS identifier, toString(r.created_at) AS created_at,
  other.identifier AS user_identifier, other.username AS username, other.email AS email,
  toString(other.created_at) AS user_created_at, followers_count, following_count`

func page(limit, offset int, extra map[string]any) map[string]any {
	params := map[string]any{"limit": int64(limit), "offset": int64(offset)}
	for k, v := range extra {
		params[k] = v
	}
	return params
}

// FetchPosts returns a page of the home feed.
func (s *Store) FetchPosts(ctx context.Context, limit, offset int) ([]types.Post, types.Measurement, error) {
	records, m, err := s.read(ctx, FetchPostsCypher, page(limit, offset, nil))
	if err != nil {
		return nil, m, benchErrors.NewGraphError(benchErrors.CodeQueryFailed, "fetch posts", err)
	}

	posts := make([]types.Post, 0, len(records))
	for _, rec := range records {
		r := row(rec)
		u := r.user()
		posts = append(posts, types.Post{
			Identifier:     r.str("identifier"),
			UserIdentifier: u.Identifier,
			Title:          r.str("title"),
			Content:        r.str("content"),
			MediaURL:       r.str("media_url"),
			CreatedAt:      r.str("created_at"),
			User:           u,
			CommentCount:   r.int("comment_count"),
			LikeCount:      r.int("like_count"),
		})
	}

	h := newHydrator()
	for i := range posts {
		h.want(sqlstore.TablePosts, posts[i].Identifier)
		h.want(sqlstore.TableUsers, posts[i].UserIdentifier)
	}
	if err := h.resolve(ctx, s.ids); err != nil {
		return nil, m, err
	}
	for i := range posts {
		posts[i].PostID = h.id(sqlstore.TablePosts, posts[i].Identifier)
		posts[i].UserID = h.id(sqlstore.TableUsers, posts[i].UserIdentifier)
		posts[i].User.UserID = posts[i].UserID
	}
	return posts, m, nil
}

// FetchComments returns a page of top-level comments of a post.
func (s *Store) FetchComments(ctx context.Context, postIdentifier string, limit, offset int) ([]types.Comment, types.Measurement, error) {
	records, m, err := s.read(ctx, FetchCommentsCypher, page(limit, offset, map[string]any{
		"post_identifier": postIdentifier,
	}))
	if err != nil {
		return nil, m, benchErrors.NewGraphError(benchErrors.CodeQueryFailed, "fetch comments", err)
	}

	comments := make([]types.Comment, 0, len(records))
	for _, rec := range records {
		r := row(rec)
		comments = append(comments, types.Comment{
			Identifier:     r.str("identifier"),
			PostIdentifier: postIdentifier,
			Content:        r.str("content"),
			CreatedAt:      r.str("created_at"),
			User:           r.user(),
			ReplyCount:     r.int("reply_count"),
		})
	}

	h := newHydrator()
	h.want(sqlstore.TablePosts, postIdentifier)
	for i := range comments {
		h.want(sqlstore.TableComments, comments[i].Identifier)
		h.want(sqlstore.TableUsers, comments[i].User.Identifier)
	}
	if err := h.resolve(ctx, s.ids); err != nil {
		return nil, m, err
	}
	postID := h.id(sqlstore.TablePosts, postIdentifier)
	for i := range comments {
		c := &comments[i]
		c.CommentID = h.id(sqlstore.TableComments, c.Identifier)
		c.PostID = postID
		c.UserID = h.id(sqlstore.TableUsers, c.User.Identifier)
		c.User.UserID = c.UserID
	}
	return comments, m, nil
}

// FetchLikes returns a page of the likes of a post.
func (s *Store) FetchLikes(ctx context.Context, postIdentifier string, limit, offset int) ([]types.Like, types.Measurement, error) {
	records, m, err := s.read(ctx, FetchLikesCypher, page(limit, offset, map[string]any{
		"post_identifier": postIdentifier,
	}))
	if err != nil {
		return nil, m, benchErrors.NewGraphError(benchErrors.CodeQueryFailed, "fetch likes", err)
	}

	likes := make([]types.Like, 0, len(records))
	for _, rec := range records {
		r := row(rec)
		likes = append(likes, types.Like{
			Identifier: r.str("identifier"),
			CreatedAt:  r.str("created_at"),
			User:       r.user(),
		})
	}

	h := newHydrator()
	h.want(sqlstore.TablePosts, postIdentifier)
	for i := range likes {
		h.want(sqlstore.TablePostLikes, likes[i].Identifier)
		h.want(sqlstore.TableUsers, likes[i].User.Identifier)
	}
	if err := h.resolve(ctx, s.ids); err != nil {
		return nil, m, err
	}
	postID := h.id(sqlstore.TablePosts, postIdentifier)
	for i := range likes {
		l := &likes[i]
		l.LikeID = h.id(sqlstore.TablePostLikes, l.Identifier)
		l.PostID = postID
		l.UserID = h.id(sqlstore.TableUsers, l.User.Identifier)
		l.User.UserID = l.UserID
	}
	return likes, m, nil
}

// FetchFollowers returns a page of the followers of a user.
func (s *Store) FetchFollowers(ctx context.Context, userIdentifier string, limit, offset int) ([]types.Follow, types.Measurement, error) {
	return s.fetchFollows(ctx, FetchFollowersCypher, userIdentifier, limit, offset, true)
}

// FetchFollowing returns a page of the users a user follows.
func (s *Store) FetchFollowing(ctx context.Context, userIdentifier string, limit, offset int) ([]types.Follow, types.Measurement, error) {
	return s.fetchFollows(ctx, FetchFollowingCypher, userIdentifier, limit, offset, false)
}

func (s *Store) fetchFollows(ctx context.Context, cypher, userIdentifier string, limit, offset int, followers bool) ([]types.Follow, types.Measurement, error) {
	records, m, err := s.read(ctx, cypher, page(limit, offset, map[string]any{
		"identifier": userIdentifier,
	}))
	if err != nil {
		return nil, m, benchErrors.NewGraphError(benchErrors.CodeQueryFailed, "fetch follows", err)
	}

	others := make([]*types.User, 0, len(records))
	follows := make([]types.Follow, 0, len(records))
	h := newHydrator()
	h.want(sqlstore.TableUsers, userIdentifier)
	for _, rec := range records {
		r := row(rec)
		u := r.user()
		others = append(others, u)
		follows = append(follows, types.Follow{Identifier: r.str("identifier"), CreatedAt: r.str("created_at")})
		h.want(sqlstore.TableUsers, u.Identifier)
	}
	if err := h.resolve(ctx, s.ids); err != nil {
		return nil, m, err
	}

	self := h.id(sqlstore.TableUsers, userIdentifier)
	for i, u := range others {
		u.UserID = h.id(sqlstore.TableUsers, u.Identifier)
		if followers {
			follows[i].FollowerID = u.UserID
			follows[i].FollowedID = self
			follows[i].Follower = u
		} else {
			follows[i].FollowerID = self
			follows[i].FollowedID = u.UserID
			follows[i].Followed = u
		}
	}
	return follows, m, nil
}

// record reads typed values out of a driver record.
type record struct{ rec *neo4j.Record }

func row(rec *neo4j.Record) record { return record{rec: rec} }

func (r record) str(key string) string {
	v, _ := r.rec.Get(key)
	return AsString(v)
}

func (r record) int(key string) int64 {
	v, _ := r.rec.Get(key)
	return AsInt64(v)
}

// user reads the user columns shared by every fetch.
func (r record) user() *types.User {
	return &types.User{
		Identifier:     r.str("user_identifier"),
		Username:       r.str("username"),
		Email:          r.str("email"),
		CreatedAt:      r.str("user_created_at"),
		FollowersCount: r.int("followers_count"),
		FollowingCount: r.int("following_count"),
	}
}
