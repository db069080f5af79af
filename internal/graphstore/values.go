package graphstore

import (
	"context"
	"fmt"
	"sort"

	"github.com/munsocial/graphbench/internal/sqlstore"
)

// AsString converts a driver value to a string; nil becomes "".
func AsString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// AsInt64 converts a driver numeric value to int64; anything else is 0.
func AsInt64(v any) int64 {
	switch x := v.(type) {
	case int64:
		return x
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case float64:
		return int64(x)
	default:
		return 0
	}
}

// hydrator batches identifier lookups per table.
type hydrator struct {
	wanted map[sqlstore.Table]map[string]struct{}
	ids    map[sqlstore.Table]map[string]int64
}

func newHydrator() *hydrator {
	return &hydrator{
		wanted: make(map[sqlstore.Table]map[string]struct{}),
		ids:    make(map[sqlstore.Table]map[string]int64),
	}
}

func (h *hydrator) want(table sqlstore.Table, identifier string) {
	if identifier == "" {
		return
	}
	set, ok := h.wanted[table]
	if !ok {
		set = make(map[string]struct{})
		h.wanted[table] = set
	}
	set[identifier] = struct{}{}
}

// resolve runs one lookup per table. Identifiers unknown to the resolver
// hydrate to 0.
func (h *hydrator) resolve(ctx context.Context, r IDResolver) error {
	if r == nil {
		return nil
	}
	for table, set := range h.wanted {
		identifiers := make([]string, 0, len(set))
		for id := range set {
			identifiers = append(identifiers, id)
		}
		sort.Strings(identifiers)

		ids, err := r.IDsByIdentifier(ctx, table, identifiers)
		if err != nil {
			return err
		}
		h.ids[table] = ids
	}
	return nil
}

func (h *hydrator) id(table sqlstore.Table, identifier string) int64 {
	return h.ids[table][identifier]
}
