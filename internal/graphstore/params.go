package graphstore

import (
	"github.com/munsocial/graphbench/internal/seed"
)

// UserParams returns the CREATE parameters of a user seed.
func UserParams(u seed.UserSeed) map[string]any {
	return map[string]any{
		"identifier":    u.Identifier,
		"username":      u.Username,
		"email":         u.Email,
		"password_hash": u.PasswordHash,
	}
}

// PostParams returns the CREATE parameters of a post seed.
func PostParams(p seed.PostSeed) map[string]any {
	return map[string]any{
		"user_identifier": p.UserIdentifier,
		"identifier":      p.Identifier,
		"title":           p.Title,
		"content":         p.Content,
		"media_url":       p.MediaURL,
	}
}

// CommentBatch holds the UNWIND lists of one comment thread.
type CommentBatch struct {
	PostIdentifier string
	Comments       []any
	Parents        []any
	Edges          []any
	Authors        []any
}

// BuildCommentBatch splits a level-ordered thread into the lists consumed
// by the comment statements. Level 0 comments attach to the post; every
// reply gets a REPLY_TO edge to its own parent.
//
// The lists are []any of map[string]any because the driver only accepts
// those as parameter values.
func BuildCommentBatch(postIdentifier string, levels [][]seed.CommentSeed) CommentBatch {
	b := CommentBatch{PostIdentifier: postIdentifier}
	for _, c := range seed.Flatten(levels) {
		b.Comments = append(b.Comments, map[string]any{
			"identifier": c.Identifier,
			"content":    c.Content,
		})
		b.Authors = append(b.Authors, map[string]any{
			"comment": c.Identifier,
			"user":    c.UserIdentifier,
		})
		if c.IsReply() {
			b.Edges = append(b.Edges, map[string]any{
				"child":  c.Identifier,
				"parent": c.ParentIdentifier,
			})
		} else {
			b.Parents = append(b.Parents, c.Identifier)
		}
	}
	return b
}
