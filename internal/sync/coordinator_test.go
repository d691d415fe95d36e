package sync

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jobsheet/jobsheet/internal/auth"
	"github.com/jobsheet/jobsheet/internal/cache"
	"github.com/jobsheet/jobsheet/internal/connectivity"
	"github.com/jobsheet/jobsheet/internal/notice"
	"github.com/jobsheet/jobsheet/internal/record"
	"github.com/jobsheet/jobsheet/internal/remote"
	"github.com/jobsheet/jobsheet/internal/remote/remotetest"
	"github.com/jobsheet/jobsheet/internal/store"
)

const sheetID = "sheet-1"

type fixture struct {
	srv     *remotetest.Server
	kv      *cache.Memory
	store   *store.Store
	monitor *connectivity.Monitor
	notices *notice.Board
	coord   Coordinator
}

// newFixture wires a coordinator to an in-memory cache and a fake remote.
// mods can adjust the config before the coordinator is built.
func newFixture(t *testing.T, mods ...func(*Config)) *fixture {
	t.Helper()

	srv := remotetest.NewServer()
	t.Cleanup(srv.Close)
	srv.AddSpreadsheet(sheetID)

	f := &fixture{
		srv:     srv,
		kv:      cache.NewMemory(),
		monitor: connectivity.NewMonitor(true),
		notices: notice.NewBoard(),
	}
	f.store = store.New(f.kv)

	quiet := log.New(io.Discard, "", 0)
	cfg := &Config{
		Store:   f.store,
		Remote:  remote.NewSheets(remote.WithEndpoint(srv.Endpoint()), remote.WithLogger(quiet)),
		Monitor: f.monitor,
		Tokens:  auth.Static("tok"),
		Target:  remote.Config{SpreadsheetID: sheetID},
		Notices: f.notices,
		Logger:  quiet,
	}
	for _, mod := range mods {
		mod(cfg)
	}

	coord, err := New(cfg)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	f.coord = coord
	return f
}

func unconfigured(cfg *Config) {
	cfg.Target = remote.Config{}
}

func rec(id int64, company string) record.Record {
	return record.Record{ID: id, Company: company, Position: "Engineer", Date: "2024-03-01", Status: record.StatusApplied}
}

func seed(t *testing.T, f *fixture, records ...record.Record) {
	t.Helper()
	if _, err := f.store.ReplaceAll(context.Background(), records); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
}

func companies(records []record.Record) string {
	names := make([]string, len(records))
	for i, r := range records {
		names[i] = r.Company
	}
	return strings.Join(names, ",")
}

func TestNew_RequiresCollaborators(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Error("New(nil) succeeded")
	}
	if _, err := New(&Config{Remote: remote.NewSheets()}); err == nil {
		t.Error("New() without store succeeded")
	}
	if _, err := New(&Config{Store: store.New(cache.NewMemory())}); err == nil {
		t.Error("New() without remote succeeded")
	}
}

// TestAdd_RejectsMissingCompany tests that validation fails before any I/O
func TestAdd_RejectsMissingCompany(t *testing.T) {
	f := newFixture(t)
	seed(t, f, rec(1, "A"))

	_, err := f.coord.Add(context.Background(), record.Record{Company: "", Position: "X", Date: "2024-01-01"})
	if !errors.Is(err, record.ErrValidation) {
		t.Fatalf("Add() = %v, want validation error", err)
	}
	if !strings.Contains(err.Error(), "Company name is required") {
		t.Errorf("error %q does not mention the company", err)
	}
	if got := companies(f.store.All()); got != "A" {
		t.Errorf("store = %s, want unchanged A", got)
	}
	if n := len(f.srv.Requests()); n != 0 {
		t.Errorf("%d remote requests made for an invalid record", n)
	}
}

// TestPush_Offline tests the local-only fallback: no network call, store
// holds exactly the pushed records
func TestPush_Offline(t *testing.T) {
	f := newFixture(t)
	f.monitor.Set(false)
	seed(t, f, rec(9, "Old"))

	res, err := f.coord.Push(context.Background(), []record.Record{rec(1, "A"), rec(2, "B")})
	if err != nil {
		t.Fatalf("Push() offline = %v, want nil", err)
	}
	if res.Outcome != OutcomeSavedLocally {
		t.Errorf("Outcome = %v, want saved_locally", res.Outcome)
	}
	if res.Message != MsgPushOffline {
		t.Errorf("Message = %q", res.Message)
	}
	if got := companies(f.store.All()); got != "A,B" {
		t.Errorf("store = %s, want A,B", got)
	}
	if n := len(f.srv.Requests()); n != 0 {
		t.Errorf("%d remote requests made while offline", n)
	}
	if !f.coord.Pending() {
		t.Error("Pending() = false after offline push")
	}
}

// TestPending_SurvivesRestart tests that a coordinator built over the same
// cache sees changes left pending by an earlier one
func TestPending_SurvivesRestart(t *testing.T) {
	f := newFixture(t)
	f.monitor.Set(false)
	ctx := context.Background()

	if _, err := f.coord.Push(ctx, []record.Record{rec(1, "A")}); err != nil {
		t.Fatal(err)
	}

	st := store.New(f.kv)
	if _, err := st.Load(ctx); err != nil {
		t.Fatal(err)
	}
	next, err := New(&Config{Store: st, Remote: remote.NewSheets(), Logger: log.New(io.Discard, "", 0)})
	if err != nil {
		t.Fatal(err)
	}
	if !next.Pending() {
		t.Error("Pending() = false after restart")
	}

	f.monitor.Set(true)
	if _, err := f.coord.Push(ctx, f.coord.Records()); err != nil {
		t.Fatal(err)
	}
	if string(mustGet(t, f.kv, store.KeyPending)) != "false" {
		t.Error("successful push did not clear the persisted flag")
	}
}

// openShared builds a coordinator over its own handle on the SQLite cache
// at path, the way each jobsheet process does.
func openShared(t *testing.T, path string, srv *remotetest.Server, monitor *connectivity.Monitor) Coordinator {
	t.Helper()
	ctx := context.Background()

	db, err := cache.Open(path)
	if err != nil {
		t.Fatalf("cache.Open() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.InitSchemaContext(ctx); err != nil {
		t.Fatal(err)
	}
	st := store.New(db)
	if _, err := st.Load(ctx); err != nil {
		t.Fatal(err)
	}

	quiet := log.New(io.Discard, "", 0)
	coord, err := New(&Config{
		Store:   st,
		Remote:  remote.NewSheets(remote.WithEndpoint(srv.Endpoint()), remote.WithLogger(quiet)),
		Monitor: monitor,
		Tokens:  auth.Static("tok"),
		Target:  remote.Config{SpreadsheetID: sheetID},
		Logger:  quiet,
	})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return coord
}

// TestFlush_SharedCache tests that a long-lived coordinator pushes records
// another process added to the cache after it started, and sees the
// pending flag that process left
func TestFlush_SharedCache(t *testing.T) {
	ctx := context.Background()
	srv := remotetest.NewServer()
	t.Cleanup(srv.Close)
	srv.AddSpreadsheet(sheetID)
	path := filepath.Join(t.TempDir(), "jobsheet.db")

	cli := openShared(t, path, srv, connectivity.NewMonitor(false))
	if _, err := cli.Add(ctx, rec(0, "A")); err != nil {
		t.Fatalf("Add(A) failed: %v", err)
	}

	daemonMonitor := connectivity.NewMonitor(false)
	daemon := openShared(t, path, srv, daemonMonitor)
	if !daemon.Pending() {
		t.Fatal("Pending() = false for changes left by another process")
	}

	if _, err := cli.Add(ctx, rec(0, "B")); err != nil {
		t.Fatalf("Add(B) failed: %v", err)
	}

	if err := daemon.Reload(ctx); err != nil {
		t.Fatalf("Reload() failed: %v", err)
	}
	if got := companies(daemon.Records()); got != "A,B" {
		t.Errorf("Records() after Reload = %s, want A,B", got)
	}

	daemonMonitor.Set(true)
	res, err := daemon.Flush(ctx)
	if err != nil {
		t.Fatalf("Flush() failed: %v", err)
	}
	if res.Outcome != OutcomeSynced || companies(res.Records) != "A,B" {
		t.Errorf("Flush() = %+v, want A,B synced", res)
	}
	if rows := srv.Rows(sheetID); len(rows) != 3 || rows[1][0] != "A" || rows[2][0] != "B" {
		t.Errorf("remote rows = %v, want header, A, B", rows)
	}

	// The other process sees the cleared flag and both records.
	if err := cli.Reload(ctx); err != nil {
		t.Fatal(err)
	}
	if cli.Pending() || companies(cli.Records()) != "A,B" {
		t.Errorf("other process: pending=%t records=%s", cli.Pending(), companies(cli.Records()))
	}
}

// TestPush_NormalizesStatus tests that pushed records never carry a status
// outside the enumeration
func TestPush_NormalizesStatus(t *testing.T) {
	f := newFixture(t)
	r := rec(1, "A")
	r.Status = "Bogus"
	blank := rec(2, "B")
	blank.Status = ""

	res, err := f.coord.Push(context.Background(), []record.Record{r, blank})
	if err != nil {
		t.Fatalf("Push() failed: %v", err)
	}
	for _, got := range append(res.Records, f.store.All()...) {
		if got.Status != record.StatusApplied {
			t.Errorf("record %d status = %q, want Applied", got.ID, got.Status)
		}
	}
	for _, row := range f.srv.Rows(sheetID)[1:] {
		if row[3] != string(record.StatusApplied) {
			t.Errorf("remote status = %q, want Applied", row[3])
		}
	}
}

// TestPush_AssignsMissingIDs tests that records without an id get unique
// fresh ones instead of colliding
func TestPush_AssignsMissingIDs(t *testing.T) {
	f := newFixture(t)
	seed(t, f, rec(500, "Seed"))

	res, err := f.coord.Push(context.Background(), []record.Record{rec(0, "A"), rec(0, "B"), rec(7, "C")})
	if err != nil {
		t.Fatalf("Push() failed: %v", err)
	}
	seen := map[int64]bool{}
	for _, r := range res.Records {
		if r.ID == 0 || seen[r.ID] {
			t.Errorf("record %s has id %d", r.Company, r.ID)
		}
		seen[r.ID] = true
	}
	if res.Records[2].ID != 7 {
		t.Errorf("existing id changed to %d", res.Records[2].ID)
	}
	if res.Records[0].ID <= 500 {
		t.Errorf("fresh id %d not above ids already seen", res.Records[0].ID)
	}
}

func mustGet(t *testing.T, kv *cache.Memory, key string) []byte {
	t.Helper()
	v, ok, err := kv.Get(context.Background(), key)
	if err != nil || !ok {
		t.Fatalf("Get(%s) = %v, %v", key, ok, err)
	}
	return v
}

func TestPush_NotConfigured(t *testing.T) {
	f := newFixture(t, unconfigured)
	seed(t, f, rec(1, "A"))

	_, err := f.coord.Push(context.Background(), []record.Record{rec(2, "B")})
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("Push() = %v, want ErrNotConfigured", err)
	}
	if got := companies(f.store.All()); got != "A" {
		t.Errorf("store = %s, want unchanged A", got)
	}
}

func TestPush_NoCredentials(t *testing.T) {
	f := newFixture(t, func(cfg *Config) { cfg.Tokens = auth.Static("") })

	if _, err := f.coord.Push(context.Background(), nil); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Push() = %v, want ErrNotConfigured", err)
	}
	if f.coord.Configured(context.Background()) {
		t.Error("Configured() = true without a token")
	}
}

func TestPush_APIKeyOnly(t *testing.T) {
	f := newFixture(t, func(cfg *Config) {
		cfg.Tokens = nil
		cfg.Target.APIKey = "k-1"
	})

	if _, err := f.coord.Push(context.Background(), []record.Record{rec(1, "A")}); err != nil {
		t.Fatalf("Push() failed: %v", err)
	}
	reqs := f.srv.Requests()
	if len(reqs) == 0 || reqs[0].APIKey != "k-1" {
		t.Errorf("requests = %+v, want api key", reqs)
	}
}

func TestPush_Online(t *testing.T) {
	f := newFixture(t)

	res, err := f.coord.Push(context.Background(), []record.Record{rec(1, "A"), rec(2, "B")})
	if err != nil {
		t.Fatalf("Push() failed: %v", err)
	}
	if res.Outcome != OutcomeSynced || res.Message != MsgPushed {
		t.Errorf("result = %+v", res)
	}
	if res.OpID == "" {
		t.Error("OpID not set")
	}
	if rows := f.srv.Rows(sheetID); len(rows) != 3 {
		t.Errorf("remote has %d rows, want header + 2", len(rows))
	}
	if got := companies(f.store.All()); got != "A,B" {
		t.Errorf("store = %s", got)
	}
	if f.coord.Pending() {
		t.Error("Pending() = true after successful push")
	}
}

// TestPush_RemoteFailure tests that local edits survive a failed remote write
func TestPush_RemoteFailure(t *testing.T) {
	f := newFixture(t)
	f.srv.FailWith(http.StatusInternalServerError)

	res, err := f.coord.Push(context.Background(), []record.Record{rec(1, "A")})
	if !errors.Is(err, remote.ErrUnavailable) {
		t.Fatalf("Push() = %v, want ErrUnavailable", err)
	}
	if res.Outcome != OutcomeRemoteFailed {
		t.Errorf("Outcome = %v, want remote_failed", res.Outcome)
	}
	if !strings.HasPrefix(res.Message, "Save failed: HTTP 500") || !strings.HasSuffix(res.Message, "Changes saved locally.") {
		t.Errorf("Message = %q", res.Message)
	}
	if got := companies(f.store.All()); got != "A" {
		t.Errorf("store = %s, want A", got)
	}
	if !f.coord.Pending() {
		t.Error("Pending() = false after failed push")
	}

	active := f.notices.Active()
	if len(active) == 0 || active[0].Level != notice.LevelError {
		t.Errorf("notices = %+v, want an error", active)
	}
}

func TestPush_RejectsDuplicateIDs(t *testing.T) {
	f := newFixture(t)

	_, err := f.coord.Push(context.Background(), []record.Record{rec(1, "A"), rec(1, "B")})
	if !errors.Is(err, store.ErrDuplicateID) {
		t.Fatalf("Push() = %v, want ErrDuplicateID", err)
	}
	if n := len(f.srv.Requests()); n != 0 {
		t.Errorf("%d remote requests for a rejected collection", n)
	}
}

// TestPush_PersistFailure tests that a failed local write is fatal
func TestPush_PersistFailure(t *testing.T) {
	f := newFixture(t)
	f.monitor.Set(false)
	seed(t, f, rec(1, "A"))
	f.kv.FailPuts = errors.New("disk full")

	res, err := f.coord.Push(context.Background(), []record.Record{rec(2, "B")})
	if !errors.Is(err, ErrPersist) {
		t.Fatalf("Push() = %v, want ErrPersist", err)
	}
	if res.Outcome.Committed() {
		t.Errorf("Outcome = %v, want none", res.Outcome)
	}
	if got := companies(f.store.All()); got != "A" {
		t.Errorf("store = %s, want A", got)
	}
	if msg := UserMessage(err); msg != "Could not save to local cache: failed to persist records: disk full" {
		t.Errorf("UserMessage() = %q", msg)
	}
}

// TestPull_HeaderOnlyEmptiesStore tests that pull is destructive
func TestPull_HeaderOnlyEmptiesStore(t *testing.T) {
	f := newFixture(t)
	seed(t, f, rec(1, "A"), rec(2, "B"))
	f.srv.SetRows(sheetID, [][]string{record.Header})

	res, err := f.coord.Pull(context.Background())
	if err != nil {
		t.Fatalf("Pull() failed: %v", err)
	}
	if res.Outcome != OutcomePulled {
		t.Errorf("Outcome = %v", res.Outcome)
	}
	if n := f.store.Len(); n != 0 {
		t.Errorf("store has %d records, want 0", n)
	}
}

func TestPull_MapsRows(t *testing.T) {
	f := newFixture(t)
	f.srv.SetRows(sheetID, [][]string{
		record.Header,
		{"Acme", "Dev", "2024-01-01", "Bogus"},
		{"   ", "Ignored"},
		{"Globex", "SRE", "2024-01-02", "Rejected", "LinkedIn", "", "120k"},
	})

	res, err := f.coord.Pull(context.Background())
	if err != nil {
		t.Fatalf("Pull() failed: %v", err)
	}
	got := res.Records
	if companies(got) != "Acme,Globex" {
		t.Fatalf("records = %+v", got)
	}
	if got[0].Status != record.StatusApplied {
		t.Errorf("Bogus status mapped to %q, want Applied", got[0].Status)
	}
	if got[1].Salary != "120k" || got[1].Source != "LinkedIn" {
		t.Errorf("second record = %+v", got[1])
	}
	if got[0].ID == got[1].ID || got[0].ID == 0 {
		t.Errorf("ids %d, %d not unique", got[0].ID, got[1].ID)
	}
}

func TestPull_Offline(t *testing.T) {
	f := newFixture(t)
	f.monitor.Set(false)
	seed(t, f, rec(1, "A"))

	res, err := f.coord.Pull(context.Background())
	if !errors.Is(err, ErrOffline) {
		t.Fatalf("Pull() = %v, want ErrOffline", err)
	}
	if res.Message != MsgPullOffline {
		t.Errorf("Message = %q", res.Message)
	}
	if got := companies(f.store.All()); got != "A" {
		t.Errorf("store = %s, want A", got)
	}
	if n := len(f.srv.Requests()); n != 0 {
		t.Errorf("%d remote requests made while offline", n)
	}
}

func TestPull_NotConfigured(t *testing.T) {
	f := newFixture(t, unconfigured)

	if _, err := f.coord.Pull(context.Background()); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Pull() = %v, want ErrNotConfigured", err)
	}
	if UserMessage(ErrNotConfigured) != MsgNotConfigured {
		t.Error("UserMessage(ErrNotConfigured) mismatch")
	}
}

// TestPull_FailureKeepsStore tests that remote errors leave the cache alone
func TestPull_FailureKeepsStore(t *testing.T) {
	f := newFixture(t)
	seed(t, f, rec(1, "A"))
	f.srv.FailWith(http.StatusForbidden)

	res, err := f.coord.Pull(context.Background())
	if kind, _ := remote.KindOf(err); kind != remote.KindForbidden {
		t.Fatalf("Pull() = %v, want forbidden", err)
	}
	if res.Message != "Sync failed: API key invalid or quota exceeded" {
		t.Errorf("Message = %q", res.Message)
	}
	if got := companies(f.store.All()); got != "A" {
		t.Errorf("store = %s, want A", got)
	}
}

// TestTimeout tests that a stuck remote resolves to a transport failure
func TestTimeout(t *testing.T) {
	f := newFixture(t, func(cfg *Config) { cfg.Timeout = 50 * time.Millisecond })
	f.srv.SetDelay(2 * time.Second)

	res, err := f.coord.Push(context.Background(), []record.Record{rec(1, "A")})
	if kind, _ := remote.KindOf(err); kind != remote.KindTransport {
		t.Fatalf("Push() = %v, want transport failure", err)
	}
	if res.Outcome != OutcomeRemoteFailed || f.store.Len() != 1 {
		t.Errorf("Outcome = %v, store len %d", res.Outcome, f.store.Len())
	}
	if f.coord.Busy() {
		t.Error("Busy() = true after the operation returned")
	}
}

func TestAdd_Online(t *testing.T) {
	f := newFixture(t)
	seed(t, f, rec(1, "A"))

	res, err := f.coord.Add(context.Background(), record.Record{Company: " Initech ", Position: "QA", Date: "2024-04-01"})
	if err != nil {
		t.Fatalf("Add() failed: %v", err)
	}
	if res.Outcome != OutcomeSynced {
		t.Errorf("Outcome = %v", res.Outcome)
	}
	added := res.Records[1]
	if added.Company != "Initech" || added.Status != record.StatusApplied || added.ID <= 1 {
		t.Errorf("added record = %+v", added)
	}
	rows := f.srv.Rows(sheetID)
	if len(rows) != 3 || rows[2][0] != "Initech" {
		t.Errorf("remote rows = %v", rows)
	}
}

func TestAdd_DuplicateID(t *testing.T) {
	f := newFixture(t)
	seed(t, f, rec(5, "A"))

	r := rec(5, "B")
	if _, err := f.coord.Add(context.Background(), r); !errors.Is(err, store.ErrDuplicateID) {
		t.Errorf("Add() = %v, want ErrDuplicateID", err)
	}
}

// TestAdd_LocalOnly tests that mutations work without any remote
func TestAdd_LocalOnly(t *testing.T) {
	f := newFixture(t, unconfigured)

	res, err := f.coord.Add(context.Background(), record.Record{Company: "A", Position: "B", Date: "2024-01-01"})
	if err != nil {
		t.Fatalf("Add() failed: %v", err)
	}
	if res.Outcome != OutcomeLocalOnly {
		t.Errorf("Outcome = %v, want local_only", res.Outcome)
	}
	if f.store.Len() != 1 || !f.coord.Pending() {
		t.Errorf("store len %d pending %v", f.store.Len(), f.coord.Pending())
	}
	if n := len(f.srv.Requests()); n != 0 {
		t.Errorf("%d remote requests without configuration", n)
	}
}

// TestAdd_SameTickUniqueIDs tests ids stay unique on a frozen clock
func TestAdd_SameTickUniqueIDs(t *testing.T) {
	frozen := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	f := newFixture(t, unconfigured, func(cfg *Config) {
		cfg.IDs = record.NewIDGeneratorWithClock(func() time.Time { return frozen })
	})

	for i := 0; i < 5; i++ {
		if _, err := f.coord.Add(context.Background(), record.Record{Company: "C", Position: "P", Date: "2024-01-01"}); err != nil {
			t.Fatalf("Add() failed: %v", err)
		}
	}
	if _, dup := record.DuplicateID(f.store.All()); dup {
		t.Error("duplicate ids generated within one tick")
	}
}

func TestUpdate(t *testing.T) {
	f := newFixture(t)
	seed(t, f, rec(1, "A"), rec(2, "B"))

	notes := "called back"
	res, err := f.coord.Update(context.Background(), 2, record.Patch{Notes: &notes})
	if err != nil {
		t.Fatalf("Update() failed: %v", err)
	}
	if res.Records[1].ID != 2 || res.Records[1].Notes != notes {
		t.Errorf("updated = %+v", res.Records[1])
	}
	if rows := f.srv.Rows(sheetID); rows[2][5] != notes {
		t.Errorf("remote row = %v", rows[2])
	}
}

func TestUpdate_Validation(t *testing.T) {
	f := newFixture(t)
	seed(t, f, rec(1, "A"))

	empty := "  "
	if _, err := f.coord.Update(context.Background(), 1, record.Patch{Position: &empty}); !errors.Is(err, record.ErrValidation) {
		t.Errorf("Update() = %v, want validation error", err)
	}
	if _, err := f.coord.Update(context.Background(), 99, record.Patch{Position: &empty}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update(absent) = %v, want ErrNotFound", err)
	}
}

func TestSetStatus(t *testing.T) {
	f := newFixture(t, unconfigured)
	seed(t, f, rec(1, "A"))

	res, err := f.coord.SetStatus(context.Background(), 1, record.StatusOfferReceived)
	if err != nil {
		t.Fatalf("SetStatus() failed: %v", err)
	}
	if res.Records[0].Status != record.StatusOfferReceived {
		t.Errorf("status = %q", res.Records[0].Status)
	}

	if _, err := f.coord.SetStatus(context.Background(), 1, record.Status("Ghosted")); !errors.Is(err, record.ErrValidation) {
		t.Errorf("SetStatus(unknown) = %v, want validation error", err)
	}
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	seed(t, f, rec(1, "A"), rec(2, "B"), rec(3, "C"))

	res, err := f.coord.Delete(context.Background(), 2)
	if err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if companies(res.Records) != "A,C" {
		t.Errorf("records = %s", companies(res.Records))
	}
	if rows := f.srv.Rows(sheetID); len(rows) != 3 {
		t.Errorf("remote rows = %v, want header + 2", rows)
	}

	if _, err := f.coord.Delete(context.Background(), 2); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete(absent) = %v, want ErrNotFound", err)
	}
}

// TestSync tests push-then-pull
func TestSync(t *testing.T) {
	f := newFixture(t)
	seed(t, f, rec(1, "A"), rec(2, "B"))

	res, err := f.coord.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync() failed: %v", err)
	}
	if res.Outcome != OutcomePulled || companies(res.Records) != "A,B" {
		t.Errorf("result = %+v", res)
	}

	reqs := f.srv.Requests()
	if len(reqs) != 3 || reqs[2].Method != http.MethodGet {
		t.Errorf("requests = %+v, want put, clear, get", reqs)
	}
}

func TestSync_Offline(t *testing.T) {
	f := newFixture(t)
	f.monitor.Set(false)

	res, err := f.coord.Sync(context.Background())
	if !errors.Is(err, ErrOffline) || res.Message != MsgSyncOffline {
		t.Errorf("Sync() = %+v, %v", res, err)
	}
}

// TestSync_PushFailureSkipsPull tests that a failed push never pulls over
// local edits
func TestSync_PushFailureSkipsPull(t *testing.T) {
	f := newFixture(t)
	seed(t, f, rec(1, "A"))
	f.srv.FailWith(http.StatusNotFound)

	res, err := f.coord.Sync(context.Background())
	if kind, _ := remote.KindOf(err); kind != remote.KindNotFound {
		t.Fatalf("Sync() = %v", err)
	}
	if res.Outcome != OutcomeRemoteFailed {
		t.Errorf("Outcome = %v", res.Outcome)
	}
	for _, r := range f.srv.Requests() {
		if r.Method == http.MethodGet {
			t.Error("pull attempted after failed push")
		}
	}
}

func TestImport(t *testing.T) {
	f := newFixture(t)
	seed(t, f, rec(1, "Old"))

	res, err := f.coord.Import(context.Background(), []record.Record{
		{ID: 10, Company: "A", Position: "P", Status: "Nope"},
		{ID: 10, Company: "B", Position: "P"},
		{Company: "C", Position: "P"},
	})
	if err != nil {
		t.Fatalf("Import() failed: %v", err)
	}
	if res.Outcome != OutcomeImported || companies(res.Records) != "A,B,C" {
		t.Errorf("result = %+v", res)
	}
	if _, dup := record.DuplicateID(res.Records); dup {
		t.Error("import kept duplicate ids")
	}
	if res.Records[0].ID != 10 || res.Records[0].Status != record.StatusApplied {
		t.Errorf("first record = %+v", res.Records[0])
	}
	if !f.coord.Pending() {
		t.Error("Pending() = false after import")
	}
	if n := len(f.srv.Requests()); n != 0 {
		t.Errorf("import made %d remote requests", n)
	}

	if _, err := f.coord.Import(context.Background(), []record.Record{{Company: "A"}}); !errors.Is(err, record.ErrValidation) {
		t.Errorf("Import(missing position) = %v, want validation error", err)
	}
}

func TestConfigure(t *testing.T) {
	f := newFixture(t, unconfigured)
	ctx := context.Background()

	if err := f.coord.Configure(ctx, remote.Config{}); !errors.Is(err, ErrNoSpreadsheet) {
		t.Errorf("Configure(empty) = %v, want ErrNoSpreadsheet", err)
	}

	if err := f.coord.Configure(ctx, remote.Config{SpreadsheetID: sheetID}); err != nil {
		t.Fatalf("Configure() failed: %v", err)
	}
	if got := f.coord.Target(); got.SpreadsheetID != sheetID || got.Range != remote.DefaultRange {
		t.Errorf("Target() = %+v", got)
	}
	if !f.coord.Configured(ctx) {
		t.Error("Configured() = false after Configure")
	}

	saved, err := f.store.LoadConfig(ctx)
	if err != nil || saved.SpreadsheetID != sheetID {
		t.Errorf("persisted config = %+v, %v", saved, err)
	}
}

// TestSingleFlight tests that operations queue behind a running one
func TestSingleFlight(t *testing.T) {
	f := newFixture(t)
	f.srv.SetDelay(300 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = f.coord.Push(context.Background(), []record.Record{rec(1, "A")})
	}()

	deadline := time.Now().Add(2 * time.Second)
	for !f.coord.Busy() {
		if time.Now().After(deadline) {
			t.Fatal("push never became busy")
		}
		time.Sleep(5 * time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := f.coord.Pull(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Pull() while busy = %v, want to time out waiting", err)
	}

	<-done
}

// TestConcurrentAdds tests that serialized pushes never lose a record
func TestConcurrentAdds(t *testing.T) {
	f := newFixture(t)
	const n = 10

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.coord.Add(context.Background(), record.Record{Company: "C", Position: "P", Date: "2024-01-01"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("Add() failed: %v", err)
		}
	}
	if f.store.Len() != n {
		t.Errorf("store has %d records, want %d", f.store.Len(), n)
	}
	if rows := f.srv.Rows(sheetID); len(rows) != n+1 {
		t.Errorf("remote has %d rows, want %d", len(rows), n+1)
	}
}

func TestSubscribe(t *testing.T) {
	f := newFixture(t)

	var events []Event
	unsubscribe := f.coord.Subscribe(func(ev Event) { events = append(events, ev) })

	if _, err := f.coord.Push(context.Background(), []record.Record{rec(1, "A")}); err != nil {
		t.Fatal(err)
	}
	unsubscribe()
	if _, err := f.coord.Pull(context.Background()); err != nil {
		t.Fatal(err)
	}

	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	ev := events[0]
	if ev.Op != "push" || ev.Outcome != "synced" || ev.Records != 1 || !ev.Online || ev.OpID == "" {
		t.Errorf("event = %+v", ev)
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrOffline, MsgPullOffline},
		{ErrNoSpreadsheet, MsgNoSpreadsheet},
		{remote.StatusError("read", 404, nil), "Sync failed: Spreadsheet not found or not publicly accessible"},
		{remote.StatusError("overwrite", 403, nil), "Save failed: API key invalid or quota exceeded. Changes saved locally."},
		{&record.ValidationError{Problems: []string{"Company name is required", "Position is required"}}, "Company name is required, Position is required"},
	}
	for _, tt := range tests {
		if got := UserMessage(tt.err); got != tt.want {
			t.Errorf("UserMessage(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
