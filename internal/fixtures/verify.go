package fixtures

import (
	"bytes"
	"context"
	"fmt"

	"github.com/neboloop/agencycheck/internal/check"
	"github.com/neboloop/agencycheck/internal/store"
	"github.com/neboloop/agencycheck/internal/supabase"
)

// Verify checks that the named sets are present and, for the storage and
// realtime pseudo-sets, that those services work end to end.
func (s *Seeder) Verify(ctx context.Context, sets ...string) (check.Results, error) {
	names, err := s.resolveSets(sets, true)
	if err != nil {
		return check.Results{}, err
	}
	var all check.Results
	for _, name := range names {
		var r check.Results
		switch name {
		case SetStorage:
			r = s.verifyStorage(ctx)
		case SetRealtime:
			r = s.verifyRealtime(ctx)
		default:
			fs, _ := lookupSet(name)
			r = s.verifyTables(ctx, fs.tables)
			if name == SetUsers {
				r.Merge(s.verifyAuthUsers(ctx))
			}
		}
		all.Merge(r.Tag("verify", name))
	}
	return all, nil
}

func (s *Seeder) verifyTables(ctx context.Context, tables []string) check.Results {
	var r check.Results
	for _, table := range tables {
		label := "Table " + table + " has rows"
		rows, err := s.Store.Select(ctx, table, store.Query{Limit: 1})
		switch {
		case err != nil:
			r.RecordFailure(check.StepFailure{Step: label, Reason: err.Error()})
		case len(rows) == 0:
			r.RecordFailure(check.StepFailure{Step: label, Reason: "no rows"})
		default:
			r.Pass(label)
		}
	}
	return r
}

func (s *Seeder) verifyAuthUsers(ctx context.Context) check.Results {
	var r check.Results
	for _, name := range s.identityOrder() {
		id, _ := s.Config.Identity(name)
		label := "Auth user " + id.Email + " exists"
		if s.Admin == nil {
			r.RecordFailure(check.StepFailure{Step: label, Reason: "auth admin API unavailable"})
			continue
		}
		u, err := s.Admin.FindUserByEmail(ctx, id.Email)
		switch {
		case err != nil:
			r.RecordFailure(check.StepFailure{Step: label, Reason: err.Error()})
		case u == nil:
			r.RecordFailure(check.StepFailure{Step: label, Reason: "not found"})
		default:
			r.Pass(label)
		}
	}
	return r
}

// verifyStorage uploads a sample object, reads it back directly and through
// a signed URL, then removes it.
func (s *Seeder) verifyStorage(ctx context.Context) check.Results {
	var r check.Results
	const (
		upload   = "Storage upload"
		download = "Storage download matches"
		signed   = "Signed URL serves object"
		cleanup  = "Storage sample removed"
	)
	if s.Files == nil {
		r.RecordFailure(check.StepFailure{Step: upload, Reason: "storage API unavailable"})
		return r
	}
	bucket := s.Config.Supabase.Bucket
	path := fmt.Sprintf("runs/%s/sample.txt", s.RunID)
	payload := []byte("agencycheck storage sample " + s.RunID)

	err := s.Files.EnsureBucket(ctx, bucket)
	if err == nil {
		err = s.Files.Upload(ctx, bucket, path, payload, "text/plain")
	}
	if !r.RecordErr(upload, err) {
		skip(&r, download, "sample object")
		skip(&r, signed, "sample object")
		return r
	}

	got, err := s.Files.Download(ctx, bucket, path)
	if err == nil && !bytes.Equal(got, payload) {
		err = fmt.Errorf("downloaded %d bytes, want %d matching bytes", len(got), len(payload))
	}
	r.RecordErr(download, err)

	u, err := s.Files.CreateSignedURL(ctx, bucket, path, 60)
	if err == nil {
		got, err = s.Files.Fetch(ctx, u)
	}
	if err == nil && !bytes.Equal(got, payload) {
		err = fmt.Errorf("signed url returned different content")
	}
	r.RecordErr(signed, err)

	r.RecordErr(cleanup, s.Files.Remove(ctx, bucket, path))
	return r
}

// verifyRealtime subscribes to message inserts, inserts a tagged message
// and waits for it to arrive.
func (s *Seeder) verifyRealtime(ctx context.Context) check.Results {
	var r check.Results
	const (
		subscribe = "Realtime subscribe"
		deliver   = "Realtime delivers messages INSERT"
	)
	if s.Realtime == nil {
		r.RecordFailure(check.StepFailure{Step: subscribe, Reason: "realtime API unavailable"})
		return r
	}
	timeout := s.Config.Poll.Timeout
	if timeout <= 0 {
		timeout = defaultRealtimeTimeout
	}
	listenCtx, cancelListen := context.WithTimeout(ctx, timeout)
	stream, err := s.Realtime.Listen(listenCtx, supabase.ChangeFilter{
		Event:  "INSERT",
		Schema: s.Config.Supabase.Schema,
		Table:  "messages",
	})
	cancelListen()
	if !r.RecordErr(subscribe, err) {
		return r
	}
	defer stream.Close()

	convs, err := s.Store.Select(ctx, "conversations", store.Query{Columns: []string{"id"}, Limit: 1})
	if err == nil && len(convs) == 0 {
		err = fmt.Errorf("no conversation to post into; seed the chat set first")
	}
	if err != nil {
		r.RecordFailure(check.StepFailure{Step: deliver, Reason: err.Error()})
		return r
	}

	msgID := s.id()
	content := "E2E realtime check " + s.RunID
	if _, err := s.Store.Insert(ctx, "messages", store.Row{
		"id":              msgID,
		"conversation_id": convs[0]["id"],
		"content":         content,
	}); err != nil {
		r.RecordFailure(check.StepFailure{Step: deliver, Reason: err.Error()})
		return r
	}
	defer func() {
		if _, err := s.Store.Delete(context.WithoutCancel(ctx), "messages", store.Query{Filters: []store.Filter{store.Eq("id", msgID)}}); err != nil {
			s.logger().Warn("remove realtime check message", "error", err)
		}
	}()

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	_, err = stream.WaitFor(waitCtx, func(ch supabase.Change) bool {
		return ch.Record["content"] == content
	})
	r.RecordErr(deliver, err)
	return r
}
