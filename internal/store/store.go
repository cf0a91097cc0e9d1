// Package store is the table-level interface fixtures are written through.
// The Supabase REST client and the direct Postgres store both implement it.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// Row is one table row keyed by column name.
type Row map[string]any

// Filter operators, named after their PostgREST spelling.
const (
	OpEq   = "eq"
	OpNeq  = "neq"
	OpGt   = "gt"
	OpGte  = "gte"
	OpLt   = "lt"
	OpLte  = "lte"
	OpLike = "like"
	OpIs   = "is"
)

var validOps = map[string]bool{
	OpEq: true, OpNeq: true, OpGt: true, OpGte: true,
	OpLt: true, OpLte: true, OpLike: true, OpIs: true,
}

// Filter restricts a query to rows where Column Op Value holds.
// For OpIs, Value is nil (null), true or false.
type Filter struct {
	Column string
	Op     string
	Value  any
}

// Eq is shorthand for an equality filter.
func Eq(column string, value any) Filter {
	return Filter{Column: column, Op: OpEq, Value: value}
}

// Gte is shorthand for a >= filter.
func Gte(column string, value any) Filter {
	return Filter{Column: column, Op: OpGte, Value: value}
}

// Order sorts by Column.
type Order struct {
	Column string
	Desc   bool
}

// Query selects, updates or deletes rows.
type Query struct {
	Columns []string // empty selects all
	Filters []Filter
	Order   []Order
	Limit   int
}

// Validate rejects unknown operators and empty column names.
func (q Query) Validate() error {
	for _, f := range q.Filters {
		if f.Column == "" {
			return fmt.Errorf("filter column is required")
		}
		if !validOps[f.Op] {
			return fmt.Errorf("unsupported filter operator %q", f.Op)
		}
		if f.Op == OpIs {
			switch f.Value.(type) {
			case nil, bool:
			default:
				return fmt.Errorf("filter %s is: value must be null, true or false", f.Column)
			}
		}
	}
	for _, o := range q.Order {
		if o.Column == "" {
			return fmt.Errorf("order column is required")
		}
	}
	if q.Limit < 0 {
		return fmt.Errorf("limit must not be negative")
	}
	return nil
}

// Store is a table-oriented data store.
type Store interface {
	Insert(ctx context.Context, table string, rows ...Row) ([]Row, error)
	Select(ctx context.Context, table string, q Query) ([]Row, error)
	Update(ctx context.Context, table string, values Row, q Query) ([]Row, error)
	// Delete removes matching rows. Callers must pass at least one filter.
	Delete(ctx context.Context, table string, q Query) ([]Row, error)
	Close() error
}

var (
	// ErrUnfilteredDelete guards against wiping a table.
	ErrUnfilteredDelete = errors.New("refusing to delete without a filter")

	// ErrConflict matches (via errors.Is) a unique-key violation from any
	// backend.
	ErrConflict = errors.New("row already exists")
)

// Columns returns the sorted union of keys across rows.
func Columns(rows []Row) []string {
	seen := map[string]bool{}
	var cols []string
	for _, r := range rows {
		for k := range r {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	sort.Strings(cols)
	return cols
}
