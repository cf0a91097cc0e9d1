// Package storetest provides an in-memory store.Store for tests.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/neboloop/agencycheck/internal/store"
)

// Memory keeps rows per table. Inserting an existing "id", or a row equal to
// an existing one on a table's Unique columns, returns store.ErrConflict.
// Rows get a created_at if they have none.
type Memory struct {
	mu     sync.Mutex
	tables map[string][]store.Row

	// Fail makes operations on a table return the given error.
	Fail map[string]error
	// Unique lists a natural key per table, e.g. "services": {"name"}.
	Unique map[string][]string
	// Now stamps created_at; defaults to time.Now.
	Now func() time.Time
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{tables: map[string][]store.Row{}, Fail: map[string]error{}}
}

// Rows returns a copy of a table's rows.
func (m *Memory) Rows(table string) []store.Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]store.Row(nil), m.tables[table]...)
}

func (m *Memory) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

func (m *Memory) Insert(ctx context.Context, table string, rows ...store.Row) ([]store.Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.Fail[table]; err != nil {
		return nil, err
	}
	for _, r := range rows {
		for _, existing := range m.tables[table] {
			if r["id"] != nil && existing["id"] == r["id"] {
				return nil, fmt.Errorf("%w: %s id %v", store.ErrConflict, table, r["id"])
			}
			if cols := m.Unique[table]; len(cols) > 0 && sameOn(r, existing, cols) {
				return nil, fmt.Errorf("%w: %s %v", store.ErrConflict, table, cols)
			}
		}
	}
	out := make([]store.Row, len(rows))
	for i, r := range rows {
		c := store.Row{}
		for k, v := range r {
			c[k] = v
		}
		if _, ok := c["created_at"]; !ok {
			c["created_at"] = m.now()
		}
		m.tables[table] = append(m.tables[table], c)
		out[i] = c
	}
	return out, nil
}

func (m *Memory) Select(ctx context.Context, table string, q store.Query) ([]store.Row, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.Fail[table]; err != nil {
		return nil, err
	}
	var out []store.Row
	for _, r := range m.tables[table] {
		ok, err := matches(r, q.Filters)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, r)
			if q.Limit > 0 && len(out) == q.Limit {
				break
			}
		}
	}
	return out, nil
}

func (m *Memory) Update(ctx context.Context, table string, values store.Row, q store.Query) ([]store.Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.Fail[table]; err != nil {
		return nil, err
	}
	var out []store.Row
	for _, r := range m.tables[table] {
		ok, err := matches(r, q.Filters)
		if err != nil {
			return nil, err
		}
		if ok {
			for k, v := range values {
				r[k] = v
			}
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *Memory) Delete(ctx context.Context, table string, q store.Query) ([]store.Row, error) {
	if len(q.Filters) == 0 {
		return nil, store.ErrUnfilteredDelete
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.Fail[table]; err != nil {
		return nil, err
	}
	var kept, removed []store.Row
	for _, r := range m.tables[table] {
		ok, err := matches(r, q.Filters)
		if err != nil {
			return nil, err
		}
		if ok {
			removed = append(removed, r)
		} else {
			kept = append(kept, r)
		}
	}
	m.tables[table] = kept
	return removed, nil
}

func (m *Memory) Close() error { return nil }

func sameOn(a, b store.Row, cols []string) bool {
	for _, c := range cols {
		if a[c] != b[c] {
			return false
		}
	}
	return true
}

func matches(r store.Row, filters []store.Filter) (bool, error) {
	for _, f := range filters {
		v := r[f.Column]
		switch f.Op {
		case store.OpEq:
			if v != f.Value {
				return false, nil
			}
		case store.OpNeq:
			if v == f.Value {
				return false, nil
			}
		case store.OpIs:
			if v != f.Value {
				return false, nil
			}
		case store.OpLike:
			pat := strings.ReplaceAll(fmt.Sprint(f.Value), "*", "")
			if !strings.Contains(fmt.Sprint(v), pat) {
				return false, nil
			}
		case store.OpGt, store.OpGte, store.OpLt, store.OpLte:
			c, err := compare(v, f.Value)
			if err != nil {
				return false, err
			}
			if !holds(f.Op, c) {
				return false, nil
			}
		default:
			return false, fmt.Errorf("unsupported filter operator %q", f.Op)
		}
	}
	return true, nil
}

func holds(op string, c int) bool {
	switch op {
	case store.OpGt:
		return c > 0
	case store.OpGte:
		return c >= 0
	case store.OpLt:
		return c < 0
	default:
		return c <= 0
	}
}

var errIncomparable = errors.New("values are not comparable")

func compare(a, b any) (int, error) {
	switch av := a.(type) {
	case time.Time:
		bv, ok := b.(time.Time)
		if !ok {
			return 0, errIncomparable
		}
		return av.Compare(bv), nil
	case int:
		bv, ok := b.(int)
		if !ok {
			return 0, errIncomparable
		}
		return av - bv, nil
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, errIncomparable
		}
		return strings.Compare(av, bv), nil
	}
	return 0, errIncomparable
}

var _ store.Store = (*Memory)(nil)
