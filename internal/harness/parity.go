package harness

import (
	"github.com/munsocial/graphbench/internal/analysis"
	"github.com/munsocial/graphbench/pkg/types"
)

// The parity counts are recorded with every fetch activity so the
// aggregator can check both engines returned the same data.

// PostsParity counts the rows and totals of a posts page.
func PostsParity(posts []types.Post) map[string]any {
	var comments, likes, followers, following int64
	for _, p := range posts {
		comments += p.CommentCount
		likes += p.LikeCount
		if p.User != nil {
			followers += p.User.FollowersCount
			following += p.User.FollowingCount
		}
	}
	return map[string]any{
		analysis.ParamPostsCount:     len(posts),
		analysis.ParamCommentsCount:  comments,
		analysis.ParamLikesCount:     likes,
		analysis.ParamFollowersCount: followers,
		analysis.ParamFollowingCount: following,
	}
}

// CommentsParity counts the top-level comments and their replies.
func CommentsParity(comments []types.Comment) map[string]any {
	var replies int64
	for _, c := range comments {
		replies += c.ReplyCount
	}
	return map[string]any{
		analysis.ParamCommentsCount: len(comments),
		analysis.ParamRepliesCount:  replies,
	}
}

// LikesParity counts the likes and the likers' follow totals.
func LikesParity(likes []types.Like) map[string]any {
	var followers, following int64
	for _, l := range likes {
		if l.User != nil {
			followers += l.User.FollowersCount
			following += l.User.FollowingCount
		}
	}
	return map[string]any{
		analysis.ParamLikesCount:     len(likes),
		analysis.ParamFollowersCount: followers,
		analysis.ParamFollowingCount: following,
	}
}
