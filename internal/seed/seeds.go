// Package seed generates the synthetic rows inserted by create experiments.
//
// Structural relationships (who posts, who replies to whom, who follows
// whom) are a pure function of the user pool and the requested shape.
// Only textual content and identifiers are random.
package seed

// UserSeed is a user that does not exist in either engine yet.
type UserSeed struct {
	Identifier   string
	Username     string
	Email        string
	PasswordHash string
}

// PostSeed is a post authored by an existing user.
type PostSeed struct {
	UserID         int64
	UserIdentifier string
	Identifier     string
	Title          string
	Content        string
	MediaURL       string
}

// CommentSeed is one comment of a level-ordered thread.
// SeqID is local to the batch; ParentSeqID is 0 for level 0.
type CommentSeed struct {
	SeqID            int
	Level            int
	ParentSeqID      int
	PostID           int64
	UserID           int64
	Identifier       string
	PostIdentifier   string
	UserIdentifier   string
	ParentIdentifier string
	Content          string
}

// IsReply reports whether the comment replies to another comment.
func (c CommentSeed) IsReply() bool {
	return c.ParentSeqID != 0
}

// LikeSeed is a like edge from a user to a post.
type LikeSeed struct {
	PostID         int64
	UserID         int64
	Identifier     string
	UserIdentifier string
	PostIdentifier string
}

// FollowSeed is a follow edge from follower to followed.
type FollowSeed struct {
	FollowerID         int64
	FollowedID         int64
	Identifier         string
	FollowerIdentifier string
	FollowedIdentifier string
}

// Flatten returns the comments of all levels in level order.
func Flatten(levels [][]CommentSeed) []CommentSeed {
	n := 0
	for _, l := range levels {
		n += len(l)
	}
	out := make([]CommentSeed, 0, n)
	for _, l := range levels {
		out = append(out, l...)
	}
	return out
}
