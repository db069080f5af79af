package seed

import (
	"encoding/binary"
	"fmt"
	"strings"
	"sync"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/spaolacci/murmur3"

	"github.com/munsocial/graphbench/pkg/types"
)

// ErrEmptyPool is returned when a generator needs at least one existing user.
var ErrEmptyPool = fmt.Errorf("seed: user pool is empty")

// Generator builds seeds for create experiments.
type Generator struct {
	mu    sync.Mutex
	faker *gofakeit.Faker
	newID func() string
}

// NewGenerator creates a generator. A zero fakerSeed gives random content.
func NewGenerator(fakerSeed int64) *Generator {
	return &Generator{
		faker: gofakeit.New(fakerSeed),
		newID: uuid.NewString,
	}
}

// Users returns n fresh users.
func (g *Generator) Users(n int) []UserSeed {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]UserSeed, n)
	for i := range out {
		out[i] = UserSeed{
			Identifier:   g.newID(),
			Username:     strings.ToLower(g.faker.Username()),
			Email:        g.faker.Email(),
			PasswordHash: g.faker.Password(true, true, true, false, false, 16),
		}
	}
	return out
}

// Posts returns n posts spread over authors. The author of post i is
// picked by hashing i, so the same pool always yields the same authorship.
func (g *Generator) Posts(n int, authors []types.User) ([]PostSeed, error) {
	if len(authors) == 0 {
		return nil, ErrEmptyPool
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]PostSeed, n)
	for i := range out {
		author := authors[AuthorIndex(i, len(authors))]
		out[i] = PostSeed{
			UserID:         author.UserID,
			UserIdentifier: author.Identifier,
			Identifier:     g.newID(),
			Title:          g.faker.Sentence(5),
			Content:        g.faker.Paragraph(1, 4, 12, " "),
			MediaURL:       g.faker.ImageURL(640, 480),
		}
	}
	return out, nil
}

// AuthorIndex maps a post index onto a pool of size n.
func AuthorIndex(i, n int) int {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(i))
	return int(murmur3.Sum32(buf[:]) % uint32(n))
}

// CommentLevels builds depth+1 levels of exactly scale comments each.
// Users are assigned round-robin across the whole thread; comment i of
// level d replies to comment i%len(level d-1) of level d-1. SeqIDs run
// 1..N in level order. An empty user pool yields nil.
func (g *Generator) CommentLevels(post types.Post, users []types.User, scale, depth int) [][]CommentSeed {
	if len(users) == 0 || scale <= 0 || depth < 0 {
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	levels := make([][]CommentSeed, 0, depth+1)
	seq := 1
	u := 0
	for d := 0; d <= depth; d++ {
		level := make([]CommentSeed, scale)
		for i := range level {
			user := users[u%len(users)]
			u++

			c := CommentSeed{
				SeqID:          seq,
				Level:          d,
				PostID:         post.PostID,
				UserID:         user.UserID,
				Identifier:     g.newID(),
				PostIdentifier: post.Identifier,
				UserIdentifier: user.Identifier,
				Content:        g.faker.Sentence(10),
			}
			if d > 0 {
				prev := levels[d-1]
				parent := prev[i%len(prev)]
				c.ParentSeqID = parent.SeqID
				c.ParentIdentifier = parent.Identifier
			}
			level[i] = c
			seq++
		}
		levels = append(levels, level)
	}
	return levels
}

// Likes returns one like of post per user.
func (g *Generator) Likes(post types.Post, users []types.User) []LikeSeed {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]LikeSeed, 0, len(users))
	for _, u := range users {
		out = append(out, LikeSeed{
			PostID:         post.PostID,
			UserID:         u.UserID,
			Identifier:     g.newID(),
			UserIdentifier: u.Identifier,
			PostIdentifier: post.Identifier,
		})
	}
	return out
}

// Followers returns one edge user->followed per user, skipping followed itself.
func (g *Generator) Followers(followed types.User, users []types.User) []FollowSeed {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]FollowSeed, 0, len(users))
	for _, u := range users {
		if u.UserID == followed.UserID {
			continue
		}
		out = append(out, FollowSeed{
			FollowerID:         u.UserID,
			FollowedID:         followed.UserID,
			Identifier:         g.newID(),
			FollowerIdentifier: u.Identifier,
			FollowedIdentifier: followed.Identifier,
		})
	}
	return out
}

// Following returns one edge follower->user per user, skipping follower itself.
func (g *Generator) Following(follower types.User, users []types.User) []FollowSeed {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]FollowSeed, 0, len(users))
	for _, u := range users {
		if u.UserID == follower.UserID {
			continue
		}
		out = append(out, FollowSeed{
			FollowerID:         follower.UserID,
			FollowedID:         u.UserID,
			Identifier:         g.newID(),
			FollowerIdentifier: follower.Identifier,
			FollowedIdentifier: u.Identifier,
		})
	}
	return out
}
