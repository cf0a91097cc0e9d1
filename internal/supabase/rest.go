package supabase

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/neboloop/agencycheck/internal/store"
)

// Insert adds rows to table and returns them as stored.
func (c *Client) Insert(ctx context.Context, table string, rows ...store.Row) ([]store.Row, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	params := url.Values{}
	if len(rows) > 1 {
		// Bulk inserts need an explicit column list when rows have different keys.
		params.Set("columns", strings.Join(store.Columns(rows), ","))
	}
	var out []store.Row
	err := c.doJSON(ctx, http.MethodPost, c.tablePath(table, params), c.writeHeaders(), rows, &out)
	if err != nil {
		return nil, fmt.Errorf("insert %s: %w", table, err)
	}
	return out, nil
}

// Select returns rows matching q.
func (c *Client) Select(ctx context.Context, table string, q store.Query) ([]store.Row, error) {
	params, err := queryParams(q, true)
	if err != nil {
		return nil, err
	}
	var out []store.Row
	if err := c.doJSON(ctx, http.MethodGet, c.tablePath(table, params), c.readHeaders(), nil, &out); err != nil {
		return nil, fmt.Errorf("select %s: %w", table, err)
	}
	return out, nil
}

// Update sets values on rows matching q and returns the updated rows.
func (c *Client) Update(ctx context.Context, table string, values store.Row, q store.Query) ([]store.Row, error) {
	params, err := queryParams(q, false)
	if err != nil {
		return nil, err
	}
	var out []store.Row
	if err := c.doJSON(ctx, http.MethodPatch, c.tablePath(table, params), c.writeHeaders(), values, &out); err != nil {
		return nil, fmt.Errorf("update %s: %w", table, err)
	}
	return out, nil
}

// Delete removes rows matching q and returns them. q must have a filter.
func (c *Client) Delete(ctx context.Context, table string, q store.Query) ([]store.Row, error) {
	if len(q.Filters) == 0 {
		return nil, store.ErrUnfilteredDelete
	}
	params, err := queryParams(q, false)
	if err != nil {
		return nil, err
	}
	var out []store.Row
	if err := c.doJSON(ctx, http.MethodDelete, c.tablePath(table, params), c.writeHeaders(), nil, &out); err != nil {
		return nil, fmt.Errorf("delete %s: %w", table, err)
	}
	return out, nil
}

// Close is a no-op; the HTTP client holds no per-store state.
func (c *Client) Close() error { return nil }

func (c *Client) tablePath(table string, params url.Values) string {
	p := "/rest/v1/" + url.PathEscape(table)
	if len(params) > 0 {
		p += "?" + params.Encode()
	}
	return p
}

func (c *Client) readHeaders() map[string]string {
	return map[string]string{"Accept-Profile": c.schema}
}

func (c *Client) writeHeaders() map[string]string {
	return map[string]string{
		"Content-Profile": c.schema,
		"Prefer":          "return=representation",
	}
}

// queryParams renders q in PostgREST's query syntax.
func queryParams(q store.Query, withSelect bool) (url.Values, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	params := url.Values{}
	if withSelect {
		cols := "*"
		if len(q.Columns) > 0 {
			cols = strings.Join(q.Columns, ",")
		}
		params.Set("select", cols)
	}
	for _, f := range q.Filters {
		params.Add(f.Column, f.Op+"."+filterValue(f))
	}
	if len(q.Order) > 0 {
		parts := make([]string, len(q.Order))
		for i, o := range q.Order {
			dir := "asc"
			if o.Desc {
				dir = "desc"
			}
			parts[i] = o.Column + "." + dir
		}
		params.Set("order", strings.Join(parts, ","))
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	return params, nil
}

func filterValue(f store.Filter) string {
	switch v := f.Value.(type) {
	case nil:
		return "null"
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano)
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

var _ store.Store = (*Client)(nil)
