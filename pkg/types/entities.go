package types

// User is a row of the users table, optionally carrying follow counts.
type User struct {
	UserID         int64  `json:"user_id,omitempty"`
	Username       string `json:"username"`
	Identifier     string `json:"identifier,omitempty"`
	Email          string `json:"email"`
	PasswordHash   string `json:"-"`
	CreatedAt      string `json:"created_at,omitempty"`
	FollowersCount int64  `json:"followers_count"`
	FollowingCount int64  `json:"following_count"`
}

// Post is a post with its creator and interaction counts.
type Post struct {
	PostID         int64  `json:"post_id,omitempty"`
	UserID         int64  `json:"user_id"`
	Identifier     string `json:"identifier,omitempty"`
	UserIdentifier string `json:"user_identifier,omitempty"`
	Title          string `json:"title,omitempty"`
	Content        string `json:"content"`
	MediaURL       string `json:"media_url,omitempty"`
	CreatedAt      string `json:"created_at,omitempty"`
	User           *User  `json:"user,omitempty"`
	CommentCount   int64  `json:"comment_count"`
	LikeCount      int64  `json:"like_count"`
}

// Comment is a comment with its commenter and recursive reply count.
type Comment struct {
	CommentID       int64  `json:"comment_id,omitempty"`
	PostID          int64  `json:"post_id"`
	UserID          int64  `json:"user_id"`
	ParentCommentID *int64 `json:"parent_comment_id"`
	Identifier      string `json:"identifier,omitempty"`
	PostIdentifier  string `json:"post_identifier,omitempty"`
	Content         string `json:"content"`
	CreatedAt       string `json:"created_at,omitempty"`
	User            *User  `json:"user,omitempty"`
	ReplyCount      int64  `json:"reply_count"`
}

// Like is a post like with the liking user.
type Like struct {
	LikeID     int64  `json:"like_id,omitempty"`
	PostID     int64  `json:"post_id"`
	UserID     int64  `json:"user_id"`
	Identifier string `json:"identifier,omitempty"`
	CreatedAt  string `json:"created_at,omitempty"`
	User       *User  `json:"user,omitempty"`
}

// Follow is a follower edge. Exactly one of Follower/Followed is joined,
// depending on which side of the edge was queried.
type Follow struct {
	FollowerID int64  `json:"follower_id"`
	FollowedID int64  `json:"followed_id"`
	Identifier string `json:"identifier,omitempty"`
	CreatedAt  string `json:"created_at,omitempty"`
	Follower   *User  `json:"follower,omitempty"`
	Followed   *User  `json:"followed,omitempty"`
}

// ConnectionStatus is the state of a mutual connection request.
type ConnectionStatus string

const (
	ConnectionPending  ConnectionStatus = "pending"
	ConnectionAccepted ConnectionStatus = "accepted"
	ConnectionBlocked  ConnectionStatus = "blocked"
)

// Connection is a row of the connections table.
type Connection struct {
	ConnectionID int64            `json:"connection_id,omitempty"`
	UserID1      int64            `json:"user_id1"`
	UserID2      int64            `json:"user_id2"`
	Identifier   string           `json:"identifier,omitempty"`
	Status       ConnectionStatus `json:"status"`
	CreatedAt    string           `json:"created_at,omitempty"`
}
