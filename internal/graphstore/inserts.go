package graphstore

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	benchErrors "github.com/munsocial/graphbench/internal/errors"
	"github.com/munsocial/graphbench/internal/seed"
	"github.com/munsocial/graphbench/pkg/types"
)

const (
	mergeUserCypher = `MERGE (u:User {identifier: $identifier})
ON CREATE SET u.username = $username, u.email = $email, u.password_hash = "placeholder", u.created_at = datetime()
ON MATCH SET u.username = $username, u.email = $email`

	createUserCypher = `CREATE (u:User {
  identifier: $identifier,
  username: $username,
  email: $email,
  password_hash: $password_hash,
  created_at: datetime()
})`

	createPostCypher = `MATCH (u:User {identifier: $user_identifier})
CREATE (u)-[:POSTED]->(p:Post {
  identifier: $identifier,
  title: $title,
  content: $content,
  media_url: $media_url,
  created_at: datetime()
})`

	createCommentsCypher = `UNWIND $comments AS c
CREATE (:Comment {identifier: c.identifier, content: c.content, created_at: datetime()})`

	attachCommentsCypher = `MATCH (p:Post {identifier: $post_identifier})
UNWIND $parents AS pid
MATCH (c:Comment {identifier: pid})
CREATE (p)<-[:ON_POST]-(c)`

	replyEdgesCypher = `UNWIND $edges AS e
MATCH (child:Comment {identifier: e.child})
MATCH (parent:Comment {identifier: e.parent})
CREATE (child)-[:REPLY_TO]->(parent)`

	commentedByCypher = `UNWIND $authors AS a
MATCH (c:Comment {identifier: a.comment})
MATCH (u:User {identifier: a.user})
CREATE (c)-[:COMMENTED_BY]->(u)`

	createLikeCypher = `MATCH (u:User {identifier: $user_identifier})
MATCH (p:Post {identifier: $post_identifier})
WITH u, p
WHERE NOT EXISTS { MATCH (u)-[:LIKED]->(p) }
CREATE (u)-[:LIKED {identifier: $identifier, created_at: datetime()}]->(p)`

	mergeFollowCypher = `MATCH (follower:User {identifier: $follower_identifier})
MATCH (followed:User {identifier: $followed_identifier})
MERGE (follower)-[r:FOLLOWS]->(followed)
ON CREATE SET r.identifier = $identifier, r.created_at = datetime()`
)

// CommentsStatement is recorded as the statement of a comment batch.
var CommentsStatement = createCommentsCypher + ";\n" + attachCommentsCypher + ";\n" + replyEdgesCypher + ";\n" + commentedByCypher

// SyncUsers mirrors relational users into the graph, merging on identifier.
func (s *Store) SyncUsers(ctx context.Context, users []types.User) error {
	_, err := s.write(ctx, mergeUserCypher, func(tx neo4j.ManagedTransaction) error {
		for _, u := range users {
			err := exec(ctx, tx, mergeUserCypher, map[string]any{
				"identifier": u.Identifier,
				"username":   u.Username,
				"email":      u.Email,
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return benchErrors.NewGraphError(benchErrors.CodeExecFailed, "sync users", err)
	}
	return nil
}

// InsertUsers creates one User node per seed.
func (s *Store) InsertUsers(ctx context.Context, users []seed.UserSeed) (types.Measurement, error) {
	m, err := s.write(ctx, createUserCypher, func(tx neo4j.ManagedTransaction) error {
		for _, u := range users {
			if err := exec(ctx, tx, createUserCypher, UserParams(u)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return m, benchErrors.NewGraphError(benchErrors.CodeExecFailed, "insert users", err)
	}
	return m, nil
}

// InsertPosts creates one Post node per seed, attached to its author.
func (s *Store) InsertPosts(ctx context.Context, posts []seed.PostSeed) (types.Measurement, error) {
	m, err := s.write(ctx, createPostCypher, func(tx neo4j.ManagedTransaction) error {
		for _, p := range posts {
			if err := exec(ctx, tx, createPostCypher, PostParams(p)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return m, benchErrors.NewGraphError(benchErrors.CodeExecFailed, "insert posts", err)
	}
	return m, nil
}

// InsertComments creates a level-ordered thread with four batched statements.
func (s *Store) InsertComments(ctx context.Context, postIdentifier string, levels [][]seed.CommentSeed) (types.Measurement, error) {
	b := BuildCommentBatch(postIdentifier, levels)
	m, err := s.write(ctx, CommentsStatement, func(tx neo4j.ManagedTransaction) error {
		if err := exec(ctx, tx, createCommentsCypher, map[string]any{"comments": b.Comments}); err != nil {
			return err
		}
		err := exec(ctx, tx, attachCommentsCypher, map[string]any{
			"post_identifier": b.PostIdentifier,
			"parents":         b.Parents,
		})
		if err != nil {
			return err
		}
		if len(b.Edges) > 0 {
			if err := exec(ctx, tx, replyEdgesCypher, map[string]any{"edges": b.Edges}); err != nil {
				return err
			}
		}
		return exec(ctx, tx, commentedByCypher, map[string]any{"authors": b.Authors})
	})
	if err != nil {
		return m, benchErrors.NewGraphError(benchErrors.CodeExecFailed, "insert comments", err)
	}
	return m, nil
}

// InsertLikes creates LIKED edges that do not exist yet. A failed batch is
// reported in the measurement rather than as an error.
func (s *Store) InsertLikes(ctx context.Context, likes []seed.LikeSeed) types.Measurement {
	m, err := s.write(ctx, createLikeCypher, func(tx neo4j.ManagedTransaction) error {
		for _, l := range likes {
			err := exec(ctx, tx, createLikeCypher, map[string]any{
				"identifier":      l.Identifier,
				"user_identifier": l.UserIdentifier,
				"post_identifier": l.PostIdentifier,
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		m.ErrorMessage = err.Error()
	}
	return m
}

// InsertFollows merges FOLLOWS edges. A failed batch is reported in the
// measurement rather than as an error.
func (s *Store) InsertFollows(ctx context.Context, follows []seed.FollowSeed) types.Measurement {
	m, err := s.write(ctx, mergeFollowCypher, func(tx neo4j.ManagedTransaction) error {
		for _, f := range follows {
			err := exec(ctx, tx, mergeFollowCypher, map[string]any{
				"identifier":          f.Identifier,
				"follower_identifier": f.FollowerIdentifier,
				"followed_identifier": f.FollowedIdentifier,
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		m.ErrorMessage = err.Error()
	}
	return m
}
