package seed

// Cursor walks a pre-fetched pool with index-based slices.
// It never wraps: once the pool is exhausted Next returns an empty slice.
type Cursor[T any] struct {
	items []T
	pos   int
}

// NewCursor creates a cursor positioned at the start of items.
func NewCursor[T any](items []T) *Cursor[T] {
	return &Cursor[T]{items: items}
}

// Next returns the next n items, or fewer if the pool runs short.
func (c *Cursor[T]) Next(n int) []T {
	if n <= 0 || c.pos >= len(c.items) {
		return nil
	}
	end := c.pos + n
	if end > len(c.items) {
		end = len(c.items)
	}
	out := c.items[c.pos:end]
	c.pos = end
	return out
}

// Remaining returns how many items have not been handed out yet.
func (c *Cursor[T]) Remaining() int {
	return len(c.items) - c.pos
}

// CommentPoolSize is the number of users needed to give every comment of
// every run its own user.
func CommentPoolSize(maxScale, depth, repetitions int) int {
	return maxScale * (depth + 1) * repetitions
}

// EdgePoolSize is the number of users needed for like or follow runs.
func EdgePoolSize(maxScale, repetitions int) int {
	return maxScale * repetitions
}
