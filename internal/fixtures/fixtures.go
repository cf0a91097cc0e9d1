// Package fixtures seeds, verifies and cleans up the demo data the app's
// end-to-end scenarios depend on.
//
// Every operation records its own check. Nothing spans a transaction: a
// failed insert is recorded and the next one still runs, except that rows
// whose parent insert failed are skipped with a failure of their own.
package fixtures

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/neboloop/agencycheck/internal/check"
	"github.com/neboloop/agencycheck/internal/config"
	"github.com/neboloop/agencycheck/internal/logging"
	"github.com/neboloop/agencycheck/internal/store"
	"github.com/neboloop/agencycheck/internal/supabase"
)

// Admin is the auth admin API used to create demo users.
type Admin interface {
	CreateUser(ctx context.Context, attrs supabase.UserAttributes) (*supabase.User, error)
	FindUserByEmail(ctx context.Context, email string) (*supabase.User, error)
	DeleteUser(ctx context.Context, id string) error
}

// Files is the storage API exercised by the storage round trip.
type Files interface {
	EnsureBucket(ctx context.Context, name string) error
	Upload(ctx context.Context, bucket, path string, data []byte, contentType string) error
	Download(ctx context.Context, bucket, path string) ([]byte, error)
	CreateSignedURL(ctx context.Context, bucket, path string, expiresIn int) (string, error)
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
	Remove(ctx context.Context, bucket string, paths ...string) error
}

// ChangeStream delivers realtime changes.
type ChangeStream interface {
	WaitFor(ctx context.Context, match func(supabase.Change) bool) (supabase.Change, error)
	Close() error
}

// Realtime opens change streams.
type Realtime interface {
	Listen(ctx context.Context, filter supabase.ChangeFilter) (ChangeStream, error)
}

type clientRealtime struct{ c *supabase.Client }

func (r clientRealtime) Listen(ctx context.Context, filter supabase.ChangeFilter) (ChangeStream, error) {
	return r.c.Subscribe(ctx, filter)
}

// RealtimeFrom adapts a Supabase client to Realtime.
func RealtimeFrom(c *supabase.Client) Realtime {
	return clientRealtime{c: c}
}

// Credentials resolves demo passwords.
type Credentials interface {
	First(names ...string) (string, error)
}

// Seeder writes and checks fixture sets through a store.
type Seeder struct {
	Store    store.Store
	Admin    Admin    // nil when the auth admin API is unavailable
	Files    Files    // nil disables the storage round trip
	Realtime Realtime // nil disables the realtime check
	Config   *config.Config
	Creds    Credentials
	RunID    string
	Log      *slog.Logger

	// Now defaults to time.Now.
	Now func() time.Time
	// NewID defaults to a random UUID.
	NewID func() string
}

func (s *Seeder) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Seeder) logger() *slog.Logger {
	if s.Log != nil {
		return s.Log
	}
	return logging.Component("fixtures")
}

// Set names accepted by Seed and Verify.
const (
	SetUsers     = "users"
	SetServices  = "services"
	SetEmail     = "email"
	SetChat      = "chat"
	SetTemplates = "templates"
	SetKnowledge = "knowledge"

	// Verify-only checks.
	SetStorage  = "storage"
	SetRealtime = "realtime"
)

type fixtureSet struct {
	name   string
	tables []string // parents before children
	seed   func(ctx context.Context, s *Seeder) check.Results
}

var fixtureSets = []fixtureSet{
	{SetUsers, []string{"profiles"}, seedUsers},
	{SetServices, []string{"services", "milestones", "tasks"}, seedServices},
	{SetEmail, []string{"email_templates", "email_logs"}, seedEmail},
	{SetChat, []string{"conversations", "messages"}, seedChat},
	{SetTemplates, []string{"service_templates"}, seedTemplates},
	{SetKnowledge, []string{"collections", "resources"}, seedKnowledge},
}

func lookupSet(name string) (fixtureSet, bool) {
	for _, fs := range fixtureSets {
		if fs.name == name {
			return fs, true
		}
	}
	return fixtureSet{}, false
}

// SetNames lists the seedable sets in dependency order.
func SetNames() []string {
	names := make([]string, len(fixtureSets))
	for i, fs := range fixtureSets {
		names[i] = fs.name
	}
	return names
}

// resolveSets defaults to the configured sets and rejects unknown names.
// extra names (storage, realtime) are allowed when verifyOnly is set.
func (s *Seeder) resolveSets(names []string, verifyOnly bool) ([]string, error) {
	if len(names) == 0 {
		names = s.Config.Fixtures.Sets
		if len(names) == 0 {
			names = SetNames()
		}
		if verifyOnly {
			names = append(append([]string{}, names...), SetStorage, SetRealtime)
		}
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if _, ok := lookupSet(n); ok {
			out = append(out, n)
			continue
		}
		if verifyOnly && (n == SetStorage || n == SetRealtime) {
			out = append(out, n)
			continue
		}
		valid := SetNames()
		if verifyOnly {
			valid = append(valid, SetStorage, SetRealtime)
		}
		sort.Strings(valid)
		return nil, fmt.Errorf("unknown fixture set %q (have: %s)", n, strings.Join(valid, ", "))
	}
	return out, nil
}

// Seed inserts the named fixture sets (default: the configured ones).
func (s *Seeder) Seed(ctx context.Context, sets ...string) (check.Results, error) {
	names, err := s.resolveSets(sets, false)
	if err != nil {
		return check.Results{}, err
	}
	var all check.Results
	for _, name := range names {
		fs, _ := lookupSet(name)
		s.logger().Info("seeding", "set", name)
		all.Merge(fs.seed(ctx, s).Tag("seed", name))
	}
	return all, nil
}

// insert records one check for a single insert and returns whether it
// succeeded. A duplicate counts as present.
func (s *Seeder) insert(ctx context.Context, r *check.Results, label, table string, rows ...store.Row) bool {
	_, err := s.Store.Insert(ctx, table, rows...)
	switch {
	case err == nil:
		r.Pass(label)
		return true
	case isConflict(err):
		s.logger().Info("fixture already present", "table", table, "label", label)
		r.Pass(label)
		return true
	default:
		r.RecordFailure(check.StepFailure{Step: label, Reason: err.Error()})
		return false
	}
}

// insertParent inserts a row that children reference and returns the id
// they must use. On a duplicate the stored row is looked up by its natural
// keys, since the fresh id in row was never written.
func (s *Seeder) insertParent(ctx context.Context, r *check.Results, label, table string, row store.Row, keys ...string) (string, bool) {
	_, err := s.Store.Insert(ctx, table, row)
	if err == nil {
		r.Pass(label)
		return fmt.Sprint(row["id"]), true
	}
	if !isConflict(err) {
		r.RecordFailure(check.StepFailure{Step: label, Reason: err.Error()})
		return "", false
	}

	q := store.Query{Columns: []string{"id"}, Limit: 1}
	var desc []string
	for _, k := range keys {
		q.Filters = append(q.Filters, store.Eq(k, row[k]))
		desc = append(desc, fmt.Sprintf("%s=%v", k, row[k]))
	}
	existing, err := s.Store.Select(ctx, table, q)
	if err != nil {
		r.RecordFailure(check.StepFailure{Step: label, Reason: "already present, lookup failed: " + err.Error()})
		return "", false
	}
	if len(existing) == 0 || existing[0]["id"] == nil {
		r.RecordFailure(check.StepFailure{Step: label, Reason: "already present but no row with " + strings.Join(desc, ", ")})
		return "", false
	}
	s.logger().Info("fixture already present", "table", table, "label", label)
	r.Pass(label)
	return fmt.Sprint(existing[0]["id"]), true
}

// skip records a dependent insert that cannot run.
func skip(r *check.Results, label, parent string) {
	r.RecordFailure(check.StepFailure{Step: label, Reason: "skipped: " + parent + " was not inserted"})
}

func isConflict(err error) bool {
	return errors.Is(err, store.ErrConflict)
}

func (s *Seeder) id() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}
