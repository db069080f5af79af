package seed

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestCursor_ClampsAndNeverWraps(t *testing.T) {
	c := NewCursor([]int{1, 2, 3, 4, 5})

	if got := c.Next(2); len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("first slice = %v", got)
	}
	if got := c.Next(10); len(got) != 3 || got[0] != 3 {
		t.Fatalf("clamped slice = %v", got)
	}
	if got := c.Next(1); len(got) != 0 {
		t.Fatalf("exhausted cursor returned %v", got)
	}
	if c.Remaining() != 0 {
		t.Errorf("Remaining = %d, want 0", c.Remaining())
	}
}

func TestCursor_NonPositive(t *testing.T) {
	c := NewCursor([]int{1, 2})
	if got := c.Next(0); got != nil {
		t.Errorf("Next(0) = %v, want nil", got)
	}
	if c.Remaining() != 2 {
		t.Errorf("Next(0) consumed items")
	}
}

func TestProperty_CursorPartitionsPool(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("slices are disjoint and cover a prefix of the pool", prop.ForAll(
		func(size, step int) bool {
			pool := make([]int, size)
			for i := range pool {
				pool[i] = i
			}
			c := NewCursor(pool)
			next := 0
			for i := 0; i < size+2; i++ {
				for _, v := range c.Next(step) {
					if v != next {
						return false
					}
					next++
				}
			}
			return next == size && c.Remaining() == 0
		},
		gen.IntRange(0, 200),
		gen.IntRange(1, 50),
	))

	properties.TestingRun(t)
}

func TestPoolSizes(t *testing.T) {
	if got := CommentPoolSize(20, 2, 3); got != 180 {
		t.Errorf("CommentPoolSize = %d, want 180", got)
	}
	if got := EdgePoolSize(1000, 2); got != 2000 {
		t.Errorf("EdgePoolSize = %d, want 2000", got)
	}
}
