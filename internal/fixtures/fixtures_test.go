package fixtures

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neboloop/agencycheck/internal/config"
	"github.com/neboloop/agencycheck/internal/store"
	"github.com/neboloop/agencycheck/internal/store/storetest"
	"github.com/neboloop/agencycheck/internal/supabase"
)

const testConfig = `
app:
  base_url: http://app.test
identities:
  admin: {label: Admin, email: admin@demo.com, landing: /admin}
  client: {label: Client, email: client@demo.com, landing: /client}
browser:
  driver: playwright
poll:
  timeout: 200ms
supabase:
  schema: public
  bucket: e2e-fixtures
fixtures:
  sets: [users, services, email, chat, templates, knowledge]
`

type fakeCreds map[string]string

func (c fakeCreds) First(names ...string) (string, error) {
	for _, n := range names {
		if v, ok := c[n]; ok {
			return v, nil
		}
	}
	return "", fmt.Errorf("none of %s set", strings.Join(names, ", "))
}

type fakeAdmin struct {
	mu      sync.Mutex
	users   []supabase.User
	deleted []string
	now     time.Time
}

func (a *fakeAdmin) CreateUser(ctx context.Context, attrs supabase.UserAttributes) (*supabase.User, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, u := range a.users {
		if u.Email == attrs.Email {
			return nil, &supabase.APIError{Status: 422, Code: "email_exists", Message: "already registered"}
		}
	}
	u := supabase.User{ID: "uid-" + attrs.Email, Email: attrs.Email, CreatedAt: a.now}
	a.users = append(a.users, u)
	return &u, nil
}

func (a *fakeAdmin) FindUserByEmail(ctx context.Context, email string) (*supabase.User, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range a.users {
		if a.users[i].Email == email {
			u := a.users[i]
			return &u, nil
		}
	}
	return nil, nil
}

func (a *fakeAdmin) DeleteUser(ctx context.Context, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.deleted = append(a.deleted, id)
	return nil
}

type fakeFiles struct {
	objects   map[string][]byte
	uploadErr error
	corrupt   bool
}

func (f *fakeFiles) EnsureBucket(ctx context.Context, name string) error { return nil }

func (f *fakeFiles) Upload(ctx context.Context, bucket, path string, data []byte, contentType string) error {
	if f.uploadErr != nil {
		return f.uploadErr
	}
	f.objects[bucket+"/"+path] = data
	return nil
}

func (f *fakeFiles) Download(ctx context.Context, bucket, path string) ([]byte, error) {
	data, ok := f.objects[bucket+"/"+path]
	if !ok {
		return nil, &supabase.APIError{Status: 404, Message: "Object not found"}
	}
	if f.corrupt {
		return []byte("garbage"), nil
	}
	return data, nil
}

func (f *fakeFiles) CreateSignedURL(ctx context.Context, bucket, path string, expiresIn int) (string, error) {
	return "signed://" + bucket + "/" + path, nil
}

func (f *fakeFiles) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	return f.objects[strings.TrimPrefix(rawURL, "signed://")], nil
}

func (f *fakeFiles) Remove(ctx context.Context, bucket string, paths ...string) error {
	for _, p := range paths {
		delete(f.objects, bucket+"/"+p)
	}
	return nil
}

// fakeRealtime delivers every insert into messages made through its store.
type fakeRealtime struct {
	store   *notifyingStore
	drop    bool
	hang    bool // Listen blocks until its context ends
	filters []supabase.ChangeFilter
}

type fakeStream struct {
	ch     chan supabase.Change
	closed bool
}

func (s *fakeStream) WaitFor(ctx context.Context, match func(supabase.Change) bool) (supabase.Change, error) {
	for {
		select {
		case c := <-s.ch:
			if match(c) {
				return c, nil
			}
		case <-ctx.Done():
			return supabase.Change{}, ctx.Err()
		}
	}
}

func (s *fakeStream) Close() error {
	s.closed = true
	return nil
}

func (r *fakeRealtime) Listen(ctx context.Context, filter supabase.ChangeFilter) (ChangeStream, error) {
	r.filters = append(r.filters, filter)
	if r.hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	s := &fakeStream{ch: make(chan supabase.Change, 8)}
	if !r.drop {
		r.store.listeners = append(r.store.listeners, s.ch)
	}
	return s, nil
}

type notifyingStore struct {
	*storetest.Memory
	listeners []chan supabase.Change
}

func (n *notifyingStore) Insert(ctx context.Context, table string, rows ...store.Row) ([]store.Row, error) {
	out, err := n.Memory.Insert(ctx, table, rows...)
	if err == nil && table == "messages" {
		for _, r := range out {
			for _, l := range n.listeners {
				l <- supabase.Change{Type: "INSERT", Table: table, Record: r}
			}
		}
	}
	return out, err
}

type fixture struct {
	seeder *Seeder
	mem    *storetest.Memory
	admin  *fakeAdmin
	files  *fakeFiles
	rt     *fakeRealtime
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg, err := config.LoadFromBytes([]byte(testConfig))
	require.NoError(t, err)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mem := storetest.NewMemory()
	mem.Now = func() time.Time { return now }
	ns := &notifyingStore{Memory: mem}
	n := 0
	f := &fixture{
		mem:   mem,
		admin: &fakeAdmin{now: now},
		files: &fakeFiles{objects: map[string][]byte{}},
		rt:    &fakeRealtime{store: ns},
	}
	f.seeder = &Seeder{
		Store:    ns,
		Admin:    f.admin,
		Files:    f.files,
		Realtime: f.rt,
		Config:   cfg,
		Creds:    fakeCreds{"E2E_DEMO_PASSWORD": "pw"},
		RunID:    "run-1",
		Now:      func() time.Time { return now.Add(time.Minute) },
		NewID: func() string {
			n++
			return "id-" + strconv.Itoa(n)
		},
	}
	return f
}

func TestSeedAll(t *testing.T) {
	f := newFixture(t)

	res, err := f.seeder.Seed(context.Background())
	require.NoError(t, err)

	assert.Empty(t, res.Failed())
	assert.Equal(t, 0, res.ExitCode())
	assert.Len(t, f.mem.Rows("profiles"), 2)
	assert.Len(t, f.mem.Rows("services"), 2)
	assert.Len(t, f.mem.Rows("milestones"), 5)
	assert.Len(t, f.mem.Rows("tasks"), 10)
	assert.Len(t, f.mem.Rows("email_templates"), 3)
	assert.Len(t, f.mem.Rows("email_logs"), 1)
	assert.Len(t, f.mem.Rows("conversations"), 1)
	assert.Len(t, f.mem.Rows("messages"), 2)
	assert.Len(t, f.mem.Rows("service_templates"), 2)
	assert.Len(t, f.mem.Rows("collections"), 1)
	assert.Len(t, f.mem.Rows("resources"), 2)

	assert.Equal(t, "seed", res.Checks[0].Scenario)
	assert.Equal(t, "users", res.Checks[0].Step)
	assert.Equal(t, "Create user admin@demo.com", res.Checks[0].Label)
	assert.Equal(t, "uid-admin@demo.com", f.mem.Rows("profiles")[0]["id"])
}

func TestSeedLinksChildrenToParents(t *testing.T) {
	f := newFixture(t)

	_, err := f.seeder.Seed(context.Background(), "services")
	require.NoError(t, err)

	serviceIDs := map[any]bool{}
	for _, s := range f.mem.Rows("services") {
		serviceIDs[s["id"]] = true
	}
	milestoneIDs := map[any]bool{}
	for _, m := range f.mem.Rows("milestones") {
		assert.True(t, serviceIDs[m["service_id"]])
		milestoneIDs[m["id"]] = true
	}
	for _, task := range f.mem.Rows("tasks") {
		assert.True(t, milestoneIDs[task["milestone_id"]])
	}
}

func TestSeedIsIdempotentForUsers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.seeder.Seed(ctx, "users")
	require.NoError(t, err)
	res, err := f.seeder.Seed(ctx, "users")
	require.NoError(t, err)

	assert.Empty(t, res.Failed())
	assert.Len(t, f.mem.Rows("profiles"), 2)
}

func TestSeedSkipsChildrenOfFailedParent(t *testing.T) {
	f := newFixture(t)
	f.mem.Fail["services"] = errors.New("permission denied for table services")

	res, err := f.seeder.Seed(context.Background(), "services")
	require.NoError(t, err)

	assert.Empty(t, res.Passed())
	assert.Equal(t, res.Total(), len(res.Failed()))
	assert.Contains(t, res.Failed(), "Insert service E2E SEO Audit failed")
	assert.Contains(t, res.Failed(), "Insert milestone E2E SEO Audit / Crawl failed")
	assert.Empty(t, f.mem.Rows("milestones"))
	for _, c := range res.FailedChecks() {
		if strings.HasPrefix(c.Label, "Insert milestone") {
			assert.Contains(t, c.Reason, "skipped")
		}
	}
}

func TestSeedRecordsForeignKeyViolations(t *testing.T) {
	f := newFixture(t)
	f.mem.Fail["milestones"] = &supabase.APIError{
		Status:  409,
		Code:    "23503",
		Message: `insert or update on table "milestones" violates foreign key constraint "milestones_service_id_fkey"`,
	}

	res, err := f.seeder.Seed(context.Background(), "services")
	require.NoError(t, err)

	assert.Equal(t, 1, res.ExitCode())
	assert.Equal(t, []string{"Insert service E2E Website Redesign", "Insert service E2E SEO Audit"}, res.Passed())
	assert.Contains(t, res.Failed(), "Insert milestone E2E Website Redesign / Discovery failed")
	assert.Contains(t, res.Failed(), "Insert tasks for E2E SEO Audit / Report failed")
	for _, c := range res.FailedChecks() {
		if strings.HasPrefix(c.Label, "Insert milestone") {
			assert.Contains(t, c.Reason, "23503")
		}
	}
	assert.Empty(t, f.mem.Rows("tasks"))
}

func TestReseedLinksChildrenToExistingParents(t *testing.T) {
	f := newFixture(t)
	f.mem.Unique = map[string][]string{
		"services":      {"name"},
		"milestones":    {"service_id", "title"},
		"conversations": {"title"},
		"collections":   {"name"},
	}
	ctx := context.Background()

	_, err := f.seeder.Seed(ctx, "services", "chat", "knowledge")
	require.NoError(t, err)
	res, err := f.seeder.Seed(ctx, "services", "chat", "knowledge")
	require.NoError(t, err)
	assert.Empty(t, res.Failed())

	require.Len(t, f.mem.Rows("services"), 2)
	require.Len(t, f.mem.Rows("milestones"), 5)
	milestoneIDs := map[any]bool{}
	for _, m := range f.mem.Rows("milestones") {
		milestoneIDs[m["id"]] = true
	}
	tasks := f.mem.Rows("tasks")
	assert.Len(t, tasks, 20)
	for _, task := range tasks {
		assert.True(t, milestoneIDs[task["milestone_id"]], "task %v has no parent", task["title"])
	}

	convID := f.mem.Rows("conversations")[0]["id"]
	require.Len(t, f.mem.Rows("conversations"), 1)
	for _, m := range f.mem.Rows("messages") {
		assert.Equal(t, convID, m["conversation_id"])
	}
	collID := f.mem.Rows("collections")[0]["id"]
	for _, row := range f.mem.Rows("resources") {
		assert.Equal(t, collID, row["collection_id"])
	}
}

func TestReseedFailsWhenExistingParentIsMissing(t *testing.T) {
	f := newFixture(t)
	f.mem.Fail["conversations"] = store.ErrConflict

	res, err := f.seeder.Seed(context.Background(), "chat")
	require.NoError(t, err)

	assert.Equal(t, []string{"Insert conversation failed", "Insert messages failed"}, res.Failed())
	assert.Contains(t, res.FailedChecks()[0].Reason, "lookup failed")
	assert.Empty(t, f.mem.Rows("messages"))
}

func TestSeedIndependentFailures(t *testing.T) {
	f := newFixture(t)
	f.mem.Fail["email_logs"] = errors.New("relation does not exist")

	res, err := f.seeder.Seed(context.Background(), "email")
	require.NoError(t, err)

	assert.Equal(t, []string{"Insert email log failed"}, res.Failed())
	assert.Len(t, res.Passed(), 3)
}

func TestSeedUsersWithoutPassword(t *testing.T) {
	f := newFixture(t)
	f.seeder.Creds = fakeCreds{}

	res, err := f.seeder.Seed(context.Background(), "users")
	require.NoError(t, err)

	assert.Contains(t, res.Failed(), "Create user admin@demo.com failed")
	assert.Contains(t, res.Failed(), "Insert profile admin@demo.com failed")
	assert.Empty(t, f.admin.users)
}

func TestSeedUsersWithoutAdminAPI(t *testing.T) {
	f := newFixture(t)
	f.seeder.Admin = nil

	res, err := f.seeder.Seed(context.Background(), "users")
	require.NoError(t, err)
	assert.Len(t, res.Failed(), 4)
	assert.Contains(t, res.FailedChecks()[0].Reason, "auth admin API unavailable")
}

func TestUnknownSet(t *testing.T) {
	f := newFixture(t)
	_, err := f.seeder.Seed(context.Background(), "invoices")
	assert.ErrorContains(t, err, `unknown fixture set "invoices"`)

	_, err = f.seeder.Seed(context.Background(), "storage")
	assert.ErrorContains(t, err, `unknown fixture set "storage"`)
}

func TestVerifyAfterSeed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.seeder.Seed(ctx)
	require.NoError(t, err)

	res, err := f.seeder.Verify(ctx)
	require.NoError(t, err)

	assert.Empty(t, res.Failed())
	assert.Contains(t, res.Passed(), "Table tasks has rows")
	assert.Contains(t, res.Passed(), "Auth user client@demo.com exists")
	assert.Contains(t, res.Passed(), "Storage download matches")
	assert.Contains(t, res.Passed(), "Signed URL serves object")
	assert.Contains(t, res.Passed(), "Realtime delivers messages INSERT")
	assert.Empty(t, f.files.objects, "storage sample removed")
	assert.Len(t, f.mem.Rows("messages"), 2, "realtime message removed")
	require.Len(t, f.rt.filters, 1)
	assert.Equal(t, "messages", f.rt.filters[0].Table)
	assert.Equal(t, "INSERT", f.rt.filters[0].Event)
}

func TestVerifyEmptyTables(t *testing.T) {
	f := newFixture(t)

	res, err := f.seeder.Verify(context.Background(), "knowledge")
	require.NoError(t, err)

	assert.Equal(t, []string{"Table collections has rows failed", "Table resources has rows failed"}, res.Failed())
	assert.Equal(t, "verify", res.Checks[0].Scenario)
	assert.Equal(t, "knowledge", res.Checks[0].Step)
}

func TestVerifyStorageMismatch(t *testing.T) {
	f := newFixture(t)
	f.files.corrupt = true

	res, err := f.seeder.Verify(context.Background(), "storage")
	require.NoError(t, err)

	assert.Equal(t, []string{"Storage download matches failed"}, res.Failed())
	assert.Contains(t, res.Passed(), "Signed URL serves object")
}

func TestVerifyStorageUploadFails(t *testing.T) {
	f := newFixture(t)
	f.files.uploadErr = errors.New("bucket not found")

	res, err := f.seeder.Verify(context.Background(), "storage")
	require.NoError(t, err)

	assert.Equal(t, []string{"Storage upload failed", "Storage download matches failed", "Signed URL serves object failed"}, res.Failed())
	assert.Empty(t, res.Passed())
}

func TestVerifyRealtimeNotDelivered(t *testing.T) {
	f := newFixture(t)
	f.rt.drop = true
	ctx := context.Background()
	_, err := f.seeder.Seed(ctx, "chat")
	require.NoError(t, err)

	res, err := f.seeder.Verify(ctx, "realtime")
	require.NoError(t, err)

	assert.Equal(t, []string{"Realtime subscribe"}, res.Passed())
	assert.Equal(t, []string{"Realtime delivers messages INSERT failed"}, res.Failed())
}

func TestVerifyRealtimeSubscribeIsBounded(t *testing.T) {
	f := newFixture(t)
	f.rt.hang = true
	ctx := context.Background()
	_, err := f.seeder.Seed(ctx, "chat")
	require.NoError(t, err)

	start := time.Now()
	res, err := f.seeder.Verify(ctx, "realtime")
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 5*time.Second)
	require.Equal(t, []string{"Realtime subscribe failed"}, res.Failed())
	assert.Contains(t, res.FailedChecks()[0].Reason, context.DeadlineExceeded.Error())
	assert.Len(t, f.mem.Rows("messages"), 2, "no check message inserted")
}

func TestVerifyRealtimeNeedsConversation(t *testing.T) {
	f := newFixture(t)

	res, err := f.seeder.Verify(context.Background(), "realtime")
	require.NoError(t, err)

	require.Len(t, res.FailedChecks(), 1)
	assert.Contains(t, res.FailedChecks()[0].Reason, "seed the chat set first")
}

func TestCleanup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.seeder.Seed(ctx)
	require.NoError(t, err)
	old := store.Row{"id": "old", "title": "keep me", "created_at": time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	_, err = f.mem.Insert(ctx, "tasks", old)
	require.NoError(t, err)

	res, err := f.seeder.Cleanup(ctx, 5*time.Minute)
	require.NoError(t, err)

	assert.Empty(t, res.Failed())
	assert.Equal(t, "Clean up resources", res.Checks[0].Label)
	assert.Equal(t, "cleanup", res.Checks[0].Scenario)
	assert.Empty(t, f.mem.Rows("services"))
	assert.Empty(t, f.mem.Rows("profiles"))
	require.Len(t, f.mem.Rows("tasks"), 1)
	assert.Equal(t, "old", f.mem.Rows("tasks")[0]["id"])
	assert.ElementsMatch(t, []string{"uid-admin@demo.com", "uid-client@demo.com"}, f.admin.deleted)
}

func TestCleanupContinuesAfterFailure(t *testing.T) {
	f := newFixture(t)
	f.mem.Fail["messages"] = errors.New("timeout")

	res, err := f.seeder.Cleanup(context.Background(), time.Hour)
	require.NoError(t, err)

	assert.Equal(t, []string{"Clean up messages failed"}, res.Failed())
	assert.Contains(t, res.Passed(), "Clean up conversations")
	assert.Contains(t, res.Passed(), "Clean up profiles")
}

func TestCleanupRejectsZeroWindow(t *testing.T) {
	f := newFixture(t)
	_, err := f.seeder.Cleanup(context.Background(), 0)
	assert.Error(t, err)
}

func TestCleanupOrderChildrenFirst(t *testing.T) {
	order := cleanupOrder()
	index := map[string]int{}
	for i, tbl := range order {
		index[tbl] = i
	}
	assert.Less(t, index["tasks"], index["milestones"])
	assert.Less(t, index["milestones"], index["services"])
	assert.Less(t, index["messages"], index["conversations"])
	assert.Less(t, index["resources"], index["collections"])
}
