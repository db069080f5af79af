package sqlstore

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	benchErrors "github.com/munsocial/graphbench/internal/errors"
	"github.com/munsocial/graphbench/internal/seed"
	"github.com/munsocial/graphbench/pkg/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "mun_social.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedUsers(t *testing.T, s *Store, n int) []types.User {
	t.Helper()
	ctx := context.Background()
	m, err := s.InsertUsers(ctx, seed.NewGenerator(1).Users(n))
	require.NoError(t, err)
	require.True(t, m.Success)

	users, err := s.RandomUsers(ctx, n)
	require.NoError(t, err)
	require.Len(t, users, n)
	return users
}

func seedPost(t *testing.T, s *Store, author types.User) types.Post {
	t.Helper()
	ctx := context.Background()
	posts, err := seed.NewGenerator(1).Posts(1, []types.User{author})
	require.NoError(t, err)
	_, err = s.InsertPosts(ctx, posts)
	require.NoError(t, err)

	ids, err := s.IDsByIdentifier(ctx, TablePosts, []string{posts[0].Identifier})
	require.NoError(t, err)
	p, err := s.PostByID(ctx, ids[posts[0].Identifier])
	require.NoError(t, err)
	return *p
}

func TestOpen_AppliesSchema(t *testing.T) {
	s := openTestStore(t)
	for _, table := range []string{"users", "posts", "comments", "post_likes", "connections", "followers"} {
		var name string
		err := s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		assert.NoError(t, err, "table %s missing", table)
	}
	require.NoError(t, s.ClearCaches(context.Background()))
}

func TestOpen_UnusablePathIsSchemaError(t *testing.T) {
	// a directory cannot be opened as a database file
	_, err := Open(t.TempDir())
	require.Error(t, err)
	assert.Equal(t, benchErrors.ErrCategorySQL, benchErrors.GetCategory(err))
	assert.Equal(t, benchErrors.CodeSchemaFailed, benchErrors.GetCode(err))
}

func TestInsertUsers_DuplicateIdentifierFails(t *testing.T) {
	s := openTestStore(t)
	users := seed.NewGenerator(1).Users(2)
	users[1].Identifier = users[0].Identifier

	_, err := s.InsertUsers(context.Background(), users)
	require.Error(t, err)
	assert.Equal(t, benchErrors.ErrCategorySQL, benchErrors.GetCategory(err))

	// the whole batch rolled back
	got, err := s.RandomUsers(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestInsertComments_ResolvesParents(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	users := seedUsers(t, s, 4)
	post := seedPost(t, s, users[0])

	levels := seed.NewGenerator(1).CommentLevels(post, users, 3, 2)
	m, err := s.InsertComments(ctx, levels)
	require.NoError(t, err)
	assert.True(t, m.Success)
	assert.Equal(t, insertCommentSQL, m.Statement)

	comments, fm, err := s.FetchComments(ctx, post.PostID, 10, 0)
	require.NoError(t, err)
	require.Len(t, comments, 3)
	assert.Equal(t, 3, fm.RowsReturned)
	for _, c := range comments {
		assert.Nil(t, c.ParentCommentID)
		// each top-level comment has one child and one grandchild
		assert.Equal(t, int64(2), c.ReplyCount)
		require.NotNil(t, c.User)
		assert.NotEmpty(t, c.User.Identifier)
	}

	// verify the stored parent of every reply is one level up
	flat := seed.Flatten(levels)
	idents := make([]string, len(flat))
	for i, c := range flat {
		idents[i] = c.Identifier
	}
	ids, err := s.IDsByIdentifier(ctx, TableComments, idents)
	require.NoError(t, err)
	bySeq := make(map[int]seed.CommentSeed)
	for _, c := range flat {
		bySeq[c.SeqID] = c
	}
	for _, c := range flat {
		var parent *int64
		require.NoError(t, s.db.QueryRow("SELECT parent_comment_id FROM comments WHERE comment_id = ?", ids[c.Identifier]).Scan(&parent))
		if !c.IsReply() {
			assert.Nil(t, parent)
			continue
		}
		require.NotNil(t, parent)
		assert.Equal(t, ids[bySeq[c.ParentSeqID].Identifier], *parent)
	}
}

func TestInsertLikes_IgnoresDuplicates(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	users := seedUsers(t, s, 3)
	post := seedPost(t, s, users[0])

	gen := seed.NewGenerator(1)
	m := s.InsertLikes(ctx, gen.Likes(post, users))
	assert.True(t, m.Success)
	m = s.InsertLikes(ctx, gen.Likes(post, users))
	assert.True(t, m.Success)

	likes, _, err := s.FetchLikes(ctx, post.PostID, 10, 0)
	require.NoError(t, err)
	assert.Len(t, likes, 3)
}

func TestFetchLikes_SameTimestampOrdersByIdentifier(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	users := seedUsers(t, s, 5)
	post := seedPost(t, s, users[0])

	require.True(t, s.InsertLikes(ctx, seed.NewGenerator(1).Likes(post, users)).Success)
	_, err := s.db.Exec("UPDATE post_likes SET created_at = '2024-01-01 00:00:00'")
	require.NoError(t, err)

	var got []string
	for offset := 0; offset < 5; offset += 2 {
		page, _, err := s.FetchLikes(ctx, post.PostID, 2, offset)
		require.NoError(t, err)
		for _, l := range page {
			got = append(got, l.Identifier)
		}
	}
	require.Len(t, got, 5)
	assert.True(t, sort.StringsAreSorted(got), "pages must follow identifier order: %v", got)

	ids, err := s.IDsByIdentifier(ctx, TablePostLikes, got)
	require.NoError(t, err)
	assert.Len(t, ids, 5)
}

func TestFetchComments_SameTimestampOrdersByIdentifier(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	users := seedUsers(t, s, 6)
	post := seedPost(t, s, users[0])

	_, err := s.InsertComments(ctx, seed.NewGenerator(1).CommentLevels(post, users, 6, 0))
	require.NoError(t, err)
	_, err = s.db.Exec("UPDATE comments SET created_at = '2024-01-01 00:00:00'")
	require.NoError(t, err)

	first, _, err := s.FetchComments(ctx, post.PostID, 3, 0)
	require.NoError(t, err)
	second, _, err := s.FetchComments(ctx, post.PostID, 3, 3)
	require.NoError(t, err)

	var got []string
	for _, c := range append(first, second...) {
		got = append(got, c.Identifier)
	}
	require.Len(t, got, 6)
	assert.True(t, sort.StringsAreSorted(got), "pages must follow identifier order: %v", got)
}

func TestIDsByIdentifier_Chunked(t *testing.T) {
	s := openTestStore(t)
	users := seedUsers(t, s, 5)

	prev := lookupChunkSize
	lookupChunkSize = 2
	t.Cleanup(func() { lookupChunkSize = prev })

	idents := []string{"unknown"}
	for _, u := range users {
		idents = append(idents, u.Identifier)
	}
	ids, err := s.IDsByIdentifier(context.Background(), TableUsers, idents)
	require.NoError(t, err)
	require.Len(t, ids, 5)
	for _, u := range users {
		assert.Equal(t, u.UserID, ids[u.Identifier])
	}

	empty, err := s.IDsByIdentifier(context.Background(), TableUsers, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestInsertLikes_FailureBecomesMeasurement(t *testing.T) {
	s := openTestStore(t)
	users := seedUsers(t, s, 1)

	// post 999 does not exist; the foreign key rejects the batch
	m := s.InsertLikes(context.Background(), []seed.LikeSeed{{PostID: 999, UserID: users[0].UserID, Identifier: "x"}})
	assert.False(t, m.Success)
	assert.NotEmpty(t, m.ErrorMessage)
	assert.Equal(t, insertLikeSQL, m.Statement)
}

func TestFollows_FetchBothDirections(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	users := seedUsers(t, s, 5)
	target := users[0]

	gen := seed.NewGenerator(1)
	require.True(t, s.InsertFollows(ctx, gen.Followers(target, users)).Success)
	require.True(t, s.InsertFollows(ctx, gen.Following(target, users[1:3])).Success)

	followers, m, err := s.FetchFollowers(ctx, target.UserID, 10, 0)
	require.NoError(t, err)
	assert.Len(t, followers, 4)
	assert.Equal(t, 4, m.RowsReturned)
	for _, f := range followers {
		require.NotNil(t, f.Follower)
		assert.Equal(t, target.UserID, f.FollowedID)
		assert.Equal(t, f.FollowerID, f.Follower.UserID)
		assert.Equal(t, int64(1), f.Follower.FollowingCount)
	}

	following, _, err := s.FetchFollowing(ctx, target.UserID, 10, 0)
	require.NoError(t, err)
	assert.Len(t, following, 2)
	for _, f := range following {
		require.NotNil(t, f.Followed)
		assert.Equal(t, target.UserID, f.FollowerID)
	}

	page, _, err := s.FetchFollowers(ctx, target.UserID, 3, 3)
	require.NoError(t, err)
	assert.Len(t, page, 1)
}

func TestFetchPosts_Counts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	users := seedUsers(t, s, 3)
	post := seedPost(t, s, users[0])

	gen := seed.NewGenerator(1)
	require.True(t, s.InsertLikes(ctx, gen.Likes(post, users[1:])).Success)
	_, err := s.InsertComments(ctx, gen.CommentLevels(post, users, 2, 1))
	require.NoError(t, err)
	require.True(t, s.InsertFollows(ctx, gen.Followers(users[0], users)).Success)

	posts, m, err := s.FetchPosts(ctx, 5, 0)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, FetchPostsSQL, m.Statement)

	p := posts[0]
	assert.Equal(t, post.Identifier, p.Identifier)
	assert.Equal(t, int64(2), p.LikeCount)
	assert.Equal(t, int64(4), p.CommentCount)
	require.NotNil(t, p.User)
	assert.Equal(t, users[0].Identifier, p.UserIdentifier)
	assert.Equal(t, int64(2), p.User.FollowersCount)
	assert.Equal(t, int64(0), p.User.FollowingCount)
}

func TestLookups_NotFound(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.UserByID(ctx, 12345)
	assert.Equal(t, benchErrors.CodeUserNotFound, benchErrors.GetCode(err))

	_, err = s.PostByID(ctx, 12345)
	assert.Equal(t, benchErrors.CodePostNotFound, benchErrors.GetCode(err))

	_, err = s.IDsByIdentifier(ctx, Table("sqlite_master"), []string{"x"})
	assert.Equal(t, benchErrors.ErrCategoryValidation, benchErrors.GetCategory(err))
}

func TestCreateAndListPosts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	users := seedUsers(t, s, 2)

	_, err := s.CreatePost(ctx, CreatePostInput{UserID: users[0].UserID, Content: "  "})
	assert.Equal(t, benchErrors.ErrCategoryValidation, benchErrors.GetCategory(err))

	for i := 0; i < 3; i++ {
		p, err := s.CreatePost(ctx, CreatePostInput{
			UserID:  users[i%2].UserID,
			Title:   fmt.Sprintf("title %d", i),
			Content: "hello",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, p.Identifier)
	}

	all, err := s.ListPosts(ctx, ListPostsInput{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	mine, err := s.ListPosts(ctx, ListPostsInput{UserID: users[0].UserID})
	require.NoError(t, err)
	assert.Len(t, mine, 2)
}

func TestConnections(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	users := seedUsers(t, s, 3)

	c, err := s.Connect(ctx, users[0].UserID, users[1].UserID, "")
	require.NoError(t, err)
	assert.Equal(t, types.ConnectionPending, c.Status)

	c, err = s.Connect(ctx, users[0].UserID, users[1].UserID, types.ConnectionAccepted)
	require.NoError(t, err)
	assert.Equal(t, types.ConnectionAccepted, c.Status)

	_, err = s.Connect(ctx, users[2].UserID, users[0].UserID, types.ConnectionBlocked)
	require.NoError(t, err)

	_, err = s.Connect(ctx, users[0].UserID, users[0].UserID, "")
	assert.Error(t, err)
	_, err = s.Connect(ctx, users[0].UserID, users[2].UserID, "friends")
	assert.Error(t, err)

	conns, err := s.ListConnections(ctx, users[0].UserID)
	require.NoError(t, err)
	assert.Len(t, conns, 2)
}
