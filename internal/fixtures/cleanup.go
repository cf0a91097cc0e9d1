package fixtures

import (
	"context"
	"fmt"
	"time"

	"github.com/neboloop/agencycheck/internal/check"
	"github.com/neboloop/agencycheck/internal/store"
)

const defaultRealtimeTimeout = 10 * time.Second

// cleanupOrder is every fixture table, children before parents.
func cleanupOrder() []string {
	var tables []string
	for i := len(fixtureSets) - 1; i >= 0; i-- {
		ts := fixtureSets[i].tables
		for j := len(ts) - 1; j >= 0; j-- {
			tables = append(tables, ts[j])
		}
	}
	return tables
}

// Cleanup deletes fixture rows created within window, children first, and
// auth users for the demo identities created in the same window. Each table
// is its own check; a failure does not stop the rest.
func (s *Seeder) Cleanup(ctx context.Context, window time.Duration) (check.Results, error) {
	if window <= 0 {
		return check.Results{}, fmt.Errorf("cleanup window must be positive, got %s", window)
	}
	cutoff := s.now().Add(-window)
	var r check.Results
	for _, table := range cleanupOrder() {
		label := "Clean up " + table
		rows, err := s.Store.Delete(ctx, table, store.Query{Filters: []store.Filter{store.Gte("created_at", cutoff)}})
		if r.RecordErr(label, err) {
			s.logger().Info("cleaned up", "table", table, "rows", len(rows))
		}
	}
	if s.Admin != nil {
		for _, name := range s.identityOrder() {
			id, _ := s.Config.Identity(name)
			u, err := s.Admin.FindUserByEmail(ctx, id.Email)
			if err != nil {
				r.RecordErr("Clean up auth user "+id.Email, err)
				continue
			}
			if u == nil || u.CreatedAt.Before(cutoff) {
				continue
			}
			r.RecordErr("Clean up auth user "+id.Email, s.Admin.DeleteUser(ctx, u.ID))
		}
	}
	return r.Tag("cleanup", ""), nil
}
