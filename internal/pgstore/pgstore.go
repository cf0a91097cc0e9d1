// Package pgstore implements store.Store directly over Postgres, for runs
// that have a database URL but should not go through PostgREST.
package pgstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/neboloop/agencycheck/internal/store"
)

// Store is a store.Store backed by database/sql and lib/pq.
type Store struct {
	db     *sql.DB
	schema string
}

// Open connects to dsn and pings it.
func Open(ctx context.Context, dsn, schema string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pgstore: database url is required")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("pgstore: open: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pgstore: connection test failed: %w", err)
	}
	return New(db, schema), nil
}

// New wraps an open handle.
func New(db *sql.DB, schema string) *Store {
	if schema == "" {
		schema = "public"
	}
	return &Store{db: db, schema: schema}
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Insert(ctx context.Context, table string, rows ...store.Row) ([]store.Row, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	query, args, err := buildInsert(s.schema, table, rows)
	if err != nil {
		return nil, err
	}
	out, err := s.query(ctx, query, args)
	if err != nil {
		return nil, fmt.Errorf("insert %s: %w", table, err)
	}
	return out, nil
}

func (s *Store) Select(ctx context.Context, table string, q store.Query) ([]store.Row, error) {
	query, args, err := buildSelect(s.schema, table, q)
	if err != nil {
		return nil, err
	}
	out, err := s.query(ctx, query, args)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", table, err)
	}
	return out, nil
}

func (s *Store) Update(ctx context.Context, table string, values store.Row, q store.Query) ([]store.Row, error) {
	query, args, err := buildUpdate(s.schema, table, values, q)
	if err != nil {
		return nil, err
	}
	out, err := s.query(ctx, query, args)
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", table, err)
	}
	return out, nil
}

func (s *Store) Delete(ctx context.Context, table string, q store.Query) ([]store.Row, error) {
	query, args, err := buildDelete(s.schema, table, q)
	if err != nil {
		return nil, err
	}
	out, err := s.query(ctx, query, args)
	if err != nil {
		return nil, fmt.Errorf("delete %s: %w", table, err)
	}
	return out, nil
}

func (s *Store) query(ctx context.Context, query string, args []any) ([]store.Row, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()
	out, err := scanRows(rows)
	return out, translateError(err)
}

func scanRows(rows *sql.Rows) ([]store.Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []store.Row
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(store.Row, len(cols))
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				row[c] = string(b)
			} else {
				row[c] = vals[i]
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// translateError maps unique violations onto store.ErrConflict.
func translateError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
		return fmt.Errorf("%w: %s", store.ErrConflict, pqErr.Message)
	}
	return err
}

func qualified(schema, table string) string {
	return pq.QuoteIdentifier(schema) + "." + pq.QuoteIdentifier(table)
}

// argValue encodes maps and slices as JSON for json/jsonb columns.
func argValue(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.Map, reflect.Slice:
		if _, isBytes := v.([]byte); isBytes {
			return v, nil
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	}
	return v, nil
}

func buildInsert(schema, table string, rows []store.Row) (string, []any, error) {
	cols := store.Columns(rows)
	if len(cols) == 0 {
		return "", nil, fmt.Errorf("insert %s: rows have no columns", table)
	}
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pq.QuoteIdentifier(c)
	}

	var args []any
	tuples := make([]string, len(rows))
	for r, row := range rows {
		ph := make([]string, len(cols))
		for i, c := range cols {
			v, ok := row[c]
			if !ok {
				ph[i] = "DEFAULT"
				continue
			}
			av, err := argValue(v)
			if err != nil {
				return "", nil, fmt.Errorf("insert %s: column %s: %w", table, c, err)
			}
			args = append(args, av)
			ph[i] = fmt.Sprintf("$%d", len(args))
		}
		tuples[r] = "(" + strings.Join(ph, ", ") + ")"
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s RETURNING *",
		qualified(schema, table), strings.Join(quoted, ", "), strings.Join(tuples, ", "))
	return query, args, nil
}

func buildSelect(schema, table string, q store.Query) (string, []any, error) {
	if err := q.Validate(); err != nil {
		return "", nil, err
	}
	cols := "*"
	if len(q.Columns) > 0 {
		quoted := make([]string, len(q.Columns))
		for i, c := range q.Columns {
			quoted[i] = pq.QuoteIdentifier(c)
		}
		cols = strings.Join(quoted, ", ")
	}
	where, args, err := buildWhere(q.Filters, nil)
	if err != nil {
		return "", nil, err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s%s", cols, qualified(schema, table), where)
	if len(q.Order) > 0 {
		parts := make([]string, len(q.Order))
		for i, o := range q.Order {
			parts[i] = pq.QuoteIdentifier(o.Column)
			if o.Desc {
				parts[i] += " DESC"
			}
		}
		fmt.Fprintf(&b, " ORDER BY %s", strings.Join(parts, ", "))
	}
	if q.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", q.Limit)
	}
	return b.String(), args, nil
}

func buildUpdate(schema, table string, values store.Row, q store.Query) (string, []any, error) {
	if err := q.Validate(); err != nil {
		return "", nil, err
	}
	if len(values) == 0 {
		return "", nil, fmt.Errorf("update %s: no values", table)
	}
	cols := store.Columns([]store.Row{values})
	var args []any
	sets := make([]string, len(cols))
	for i, c := range cols {
		av, err := argValue(values[c])
		if err != nil {
			return "", nil, fmt.Errorf("update %s: column %s: %w", table, c, err)
		}
		args = append(args, av)
		sets[i] = fmt.Sprintf("%s = $%d", pq.QuoteIdentifier(c), len(args))
	}
	where, args, err := buildWhere(q.Filters, args)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("UPDATE %s SET %s%s RETURNING *", qualified(schema, table), strings.Join(sets, ", "), where), args, nil
}

func buildDelete(schema, table string, q store.Query) (string, []any, error) {
	if len(q.Filters) == 0 {
		return "", nil, store.ErrUnfilteredDelete
	}
	if err := q.Validate(); err != nil {
		return "", nil, err
	}
	where, args, err := buildWhere(q.Filters, nil)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("DELETE FROM %s%s RETURNING *", qualified(schema, table), where), args, nil
}

var sqlOps = map[string]string{
	store.OpEq:   "=",
	store.OpNeq:  "<>",
	store.OpGt:   ">",
	store.OpGte:  ">=",
	store.OpLt:   "<",
	store.OpLte:  "<=",
	store.OpLike: "LIKE",
}

// buildWhere appends placeholders after any args already bound.
func buildWhere(filters []store.Filter, args []any) (string, []any, error) {
	if len(filters) == 0 {
		return "", args, nil
	}
	conds := make([]string, len(filters))
	for i, f := range filters {
		col := pq.QuoteIdentifier(f.Column)
		if f.Op == store.OpIs {
			switch f.Value {
			case nil:
				conds[i] = col + " IS NULL"
			case true:
				conds[i] = col + " IS TRUE"
			default:
				conds[i] = col + " IS FALSE"
			}
			continue
		}
		op, ok := sqlOps[f.Op]
		if !ok {
			return "", nil, fmt.Errorf("unsupported filter operator %q", f.Op)
		}
		v := f.Value
		if f.Op == store.OpLike {
			// PostgREST uses * as the wildcard
			v = strings.ReplaceAll(fmt.Sprint(v), "*", "%")
		}
		av, err := argValue(v)
		if err != nil {
			return "", nil, err
		}
		args = append(args, av)
		conds[i] = fmt.Sprintf("%s %s $%d", col, op, len(args))
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

var _ store.Store = (*Store)(nil)
