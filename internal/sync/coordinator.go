package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/jobsheet/jobsheet/internal/auth"
	"github.com/jobsheet/jobsheet/internal/connectivity"
	"github.com/jobsheet/jobsheet/internal/metrics"
	"github.com/jobsheet/jobsheet/internal/notice"
	"github.com/jobsheet/jobsheet/internal/record"
	"github.com/jobsheet/jobsheet/internal/remote"
	"github.com/jobsheet/jobsheet/internal/store"
)

// DefaultTimeout bounds a single remote call.
const DefaultTimeout = 30 * time.Second

// Config holds the collaborators of a Coordinator.
type Config struct {
	// Store is the record store. Required; it should already be loaded.
	Store *store.Store

	// Remote is the spreadsheet adapter. Required.
	Remote remote.Adapter

	// Monitor reports connectivity. Nil means always online.
	Monitor *connectivity.Monitor

	// Tokens supplies the bearer token. Nil means none; an API key in
	// Target can still authenticate.
	Tokens auth.TokenSource

	// Target is the initial remote target.
	Target remote.Config

	// Notices receives user-facing messages. Nil creates a private board.
	Notices *notice.Board

	// IDs assigns record ids. Nil creates a generator seeded from Store.
	IDs *record.IDGenerator

	// Timeout bounds each remote call. Zero uses DefaultTimeout.
	Timeout time.Duration

	Logger *log.Logger
}

// coordinator implements Coordinator.
type coordinator struct {
	store   *store.Store
	remote  remote.Adapter
	monitor *connectivity.Monitor
	tokens  auth.TokenSource
	notices *notice.Board
	ids     *record.IDGenerator
	timeout time.Duration
	logger  *log.Logger

	guard *semaphore.Weighted
	busy  atomic.Bool

	mu      sync.Mutex
	target  remote.Config
	pending bool
	subs    map[int]func(Event)
	nextSub int
}

// New creates a Coordinator.
func New(config *Config) (Coordinator, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if config.Store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if config.Remote == nil {
		return nil, fmt.Errorf("remote cannot be nil")
	}

	c := &coordinator{
		store:   config.Store,
		remote:  config.Remote,
		monitor: config.Monitor,
		tokens:  config.Tokens,
		notices: config.Notices,
		ids:     config.IDs,
		timeout: config.Timeout,
		logger:  config.Logger,
		guard:   semaphore.NewWeighted(1),
		target:  config.Target.WithDefaults(),
		subs:    make(map[int]func(Event)),
		pending: config.Store.Pending(),
	}
	if c.monitor == nil {
		c.monitor = connectivity.NewMonitor(true)
	}
	if c.notices == nil {
		c.notices = notice.NewBoard()
	}
	if c.ids == nil {
		c.ids = record.NewIDGenerator()
	}
	c.ids.Observe(c.store.All())
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.logger == nil {
		c.logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}

	metrics.SetOnline(c.monitor.IsOnline())
	metrics.SetRecords(c.store.Len())
	c.monitor.Subscribe(metrics.SetOnline)

	return c, nil
}

// run executes fn under the single-slot guard and reports its result.
func (c *coordinator) run(ctx context.Context, name string, fn func(ctx context.Context) (Result, error)) (Result, error) {
	if err := c.guard.Acquire(ctx, 1); err != nil {
		return Result{}, fmt.Errorf("%s: %w", name, err)
	}

	opID := uuid.NewString()
	start := time.Now()
	c.busy.Store(true)

	res, err := func() (Result, error) {
		defer func() {
			c.busy.Store(false)
			c.guard.Release(1)
		}()
		// Other processes share the cache; start from what it holds now.
		if err := c.reload(ctx); err != nil {
			return Result{}, err
		}
		return fn(ctx)
	}()

	res.OpID = opID
	if res.Message == "" && err != nil {
		res.Message = UserMessage(err)
	}
	c.report(name, start, res, err)
	return res, err
}

// report posts the notice, records metrics, logs and publishes the event.
func (c *coordinator) report(name string, start time.Time, res Result, err error) {
	switch {
	case res.Outcome == OutcomeSavedLocally || errors.Is(err, ErrOffline):
		c.notices.Warning(res.Message)
	case err != nil:
		c.notices.Error(res.Message)
	case res.Message != "":
		c.notices.Success(res.Message)
	}

	pending := c.Pending()
	count := c.store.Len()
	metrics.IncOperation(name, res.Outcome.String())
	metrics.SetRecords(count)
	metrics.SetPending(pending)

	dur := time.Since(start)
	short := res.OpID
	if len(short) > 8 {
		short = short[:8]
	}
	if err != nil {
		c.logger.Printf("%s [%s] %s: %v (%v)", name, short, res.Outcome, err, dur)
	} else {
		c.logger.Printf("%s [%s] %s: %d records (%v)", name, short, res.Outcome, count, dur)
	}

	ev := Event{
		OpID:     res.OpID,
		Op:       name,
		Outcome:  res.Outcome.String(),
		Message:  res.Message,
		Records:  count,
		Online:   c.monitor.IsOnline(),
		Pending:  pending,
		Duration: dur,
		Time:     time.Now(),
	}
	if err != nil {
		ev.Error = err.Error()
	}
	c.publish(ev)
}

// resolve returns the active target, the credentials for it, and whether
// both are usable.
func (c *coordinator) resolve(ctx context.Context) (remote.Config, remote.Credentials, bool) {
	c.mu.Lock()
	target := c.target
	c.mu.Unlock()

	creds := remote.Credentials{APIKey: target.APIKey}
	if c.tokens != nil {
		if tok, ok := c.tokens.Token(ctx); ok {
			creds.Token = tok
		}
	}
	return target, creds, !target.IsZero() && !creds.Empty()
}

// Pull implements Coordinator.
func (c *coordinator) Pull(ctx context.Context) (Result, error) {
	return c.run(ctx, "pull", c.pull)
}

func (c *coordinator) pull(ctx context.Context) (Result, error) {
	target, creds, ok := c.resolve(ctx)
	if !ok {
		return Result{}, ErrNotConfigured
	}
	if !c.monitor.IsOnline() {
		return Result{Message: MsgPullOffline}, ErrOffline
	}

	rows, err := c.readRemote(ctx, target, creds)
	if err != nil {
		return Result{}, err
	}

	saved, err := c.commit(ctx, record.FromRows(rows, c.ids.Next))
	if err != nil {
		return Result{}, err
	}
	c.setPending(ctx, false)
	return Result{Outcome: OutcomePulled, Records: saved, Message: MsgPulled}, nil
}

// Push implements Coordinator.
func (c *coordinator) Push(ctx context.Context, records []record.Record) (Result, error) {
	return c.run(ctx, "push", func(ctx context.Context) (Result, error) {
		return c.push(ctx, records)
	})
}

// Flush implements Coordinator.
func (c *coordinator) Flush(ctx context.Context) (Result, error) {
	return c.run(ctx, "push", func(ctx context.Context) (Result, error) {
		return c.push(ctx, c.store.All())
	})
}

func (c *coordinator) push(ctx context.Context, records []record.Record) (Result, error) {
	target, creds, ok := c.resolve(ctx)
	if !ok {
		return Result{}, ErrNotConfigured
	}
	records = c.preparePush(records)
	if err := checkCollection(records, false); err != nil {
		return Result{}, err
	}

	if !c.monitor.IsOnline() {
		saved, err := c.commit(ctx, records)
		if err != nil {
			return Result{}, err
		}
		c.setPending(ctx, true)
		return Result{Outcome: OutcomeSavedLocally, Records: saved, Message: MsgPushOffline}, nil
	}

	remoteErr := c.overwriteRemote(ctx, target, creds, records)
	saved, err := c.commit(ctx, records)
	if remoteErr != nil {
		c.setPending(ctx, true)
		if err != nil {
			return Result{}, errors.Join(err, remoteErr)
		}
		return Result{Outcome: OutcomeRemoteFailed, Records: saved, Message: UserMessage(remoteErr)}, remoteErr
	}
	if err != nil {
		return Result{}, err
	}
	c.setPending(ctx, false)
	return Result{Outcome: OutcomeSynced, Records: saved, Message: MsgPushed}, nil
}

// mutate pushes target, or applies local when no remote is configured.
func (c *coordinator) mutate(ctx context.Context, target []record.Record, local func(context.Context) ([]record.Record, error)) (Result, error) {
	if _, _, ok := c.resolve(ctx); !ok {
		saved, err := local(ctx)
		if err != nil {
			return Result{}, &persistError{cause: err}
		}
		c.ids.Observe(saved)
		c.setPending(ctx, true)
		return Result{Outcome: OutcomeLocalOnly, Records: saved, Message: MsgLocalOnly}, nil
	}
	return c.push(ctx, target)
}

// Add implements Coordinator.
func (c *coordinator) Add(ctx context.Context, r record.Record) (Result, error) {
	return c.run(ctx, "add", func(ctx context.Context) (Result, error) {
		r = r.Normalize()
		if err := r.Validate(); err != nil {
			return Result{}, err
		}

		current := c.store.All()
		if r.ID == 0 {
			r.ID = c.ids.Next()
		} else if record.IndexOf(current, r.ID) >= 0 {
			return Result{}, fmt.Errorf("%w: %d", store.ErrDuplicateID, r.ID)
		}

		return c.mutate(ctx, record.Append(current, r), func(ctx context.Context) ([]record.Record, error) {
			return c.store.Add(ctx, r)
		})
	})
}

// Update implements Coordinator.
func (c *coordinator) Update(ctx context.Context, id int64, patch record.Patch) (Result, error) {
	return c.run(ctx, "update", func(ctx context.Context) (Result, error) {
		return c.update(ctx, id, patch)
	})
}

// SetStatus implements Coordinator.
func (c *coordinator) SetStatus(ctx context.Context, id int64, status record.Status) (Result, error) {
	return c.run(ctx, "status", func(ctx context.Context) (Result, error) {
		return c.update(ctx, id, record.Patch{Status: &status})
	})
}

func (c *coordinator) update(ctx context.Context, id int64, patch record.Patch) (Result, error) {
	current := c.store.All()
	i := record.IndexOf(current, id)
	if i < 0 {
		return Result{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if patch.IsEmpty() {
		return Result{Records: current}, nil
	}

	updated := patch.Apply(current[i]).Normalize()
	if err := updated.Validate(); err != nil {
		return Result{}, err
	}

	target := record.Clone(current)
	target[i] = updated
	return c.mutate(ctx, target, func(ctx context.Context) ([]record.Record, error) {
		return c.store.UpdateByID(ctx, id, fullPatch(updated))
	})
}

// Delete implements Coordinator.
func (c *coordinator) Delete(ctx context.Context, id int64) (Result, error) {
	return c.run(ctx, "delete", func(ctx context.Context) (Result, error) {
		target, found := record.Remove(c.store.All(), id)
		if !found {
			return Result{}, fmt.Errorf("%w: %d", ErrNotFound, id)
		}
		return c.mutate(ctx, target, func(ctx context.Context) ([]record.Record, error) {
			return c.store.RemoveByID(ctx, id)
		})
	})
}

// Sync implements Coordinator.
func (c *coordinator) Sync(ctx context.Context) (Result, error) {
	return c.run(ctx, "sync", func(ctx context.Context) (Result, error) {
		if _, _, ok := c.resolve(ctx); !ok {
			return Result{}, ErrNotConfigured
		}
		if !c.monitor.IsOnline() {
			return Result{Message: MsgSyncOffline}, ErrOffline
		}
		if res, err := c.push(ctx, c.store.All()); err != nil {
			return res, err
		}
		return c.pull(ctx)
	})
}

// Import implements Coordinator.
func (c *coordinator) Import(ctx context.Context, records []record.Record) (Result, error) {
	return c.run(ctx, "import", func(ctx context.Context) (Result, error) {
		prepared := c.prepareImport(records)
		if err := checkCollection(prepared, true); err != nil {
			return Result{}, err
		}
		saved, err := c.commit(ctx, prepared)
		if err != nil {
			return Result{}, err
		}
		c.setPending(ctx, true)
		return Result{Outcome: OutcomeImported, Records: saved, Message: MsgImported}, nil
	})
}

// prepareImport normalizes imported records and gives a fresh id to every
// record whose id is missing or already taken.
func (c *coordinator) prepareImport(records []record.Record) []record.Record {
	out := make([]record.Record, len(records))
	seen := make(map[int64]struct{}, len(records))
	c.ids.Observe(records)
	for i, r := range records {
		r.Company = strings.TrimSpace(r.Company)
		r.Position = strings.TrimSpace(r.Position)
		r.Status = record.NormalizeStatus(string(r.Status))
		if _, dup := seen[r.ID]; r.ID == 0 || dup {
			r.ID = c.ids.Next()
		}
		seen[r.ID] = struct{}{}
		out[i] = r
	}
	return out
}

// Configure implements Coordinator.
func (c *coordinator) Configure(ctx context.Context, cfg remote.Config) error {
	cfg = cfg.WithDefaults()
	if cfg.IsZero() {
		c.notices.Error(MsgNoSpreadsheet)
		return ErrNoSpreadsheet
	}

	if err := c.guard.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("configure: %w", err)
	}
	defer c.guard.Release(1)

	if err := c.store.SaveConfig(ctx, cfg); err != nil {
		perr := &persistError{cause: err}
		c.notices.Error(UserMessage(perr))
		return perr
	}

	c.mu.Lock()
	c.target = cfg
	c.mu.Unlock()

	c.logger.Printf("Configured spreadsheet %s range %s", cfg.SpreadsheetID, cfg.Range)
	c.notices.Success(MsgConfigured)
	return nil
}

// Target implements Coordinator.
func (c *coordinator) Target() remote.Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target
}

// Configured implements Coordinator.
func (c *coordinator) Configured(ctx context.Context) bool {
	_, _, ok := c.resolve(ctx)
	return ok
}

// Reload implements Coordinator.
func (c *coordinator) Reload(ctx context.Context) error {
	if err := c.guard.Acquire(ctx, 1); err != nil {
		return err
	}
	defer c.guard.Release(1)
	return c.reload(ctx)
}

// reload refreshes the store and the pending flag from the cache. Caller
// holds the guard.
func (c *coordinator) reload(ctx context.Context) error {
	saved, err := c.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to reload local records: %w", err)
	}
	c.ids.Observe(saved)

	pending := c.store.Pending()
	c.mu.Lock()
	c.pending = pending
	c.mu.Unlock()

	metrics.SetRecords(len(saved))
	metrics.SetPending(pending)
	return nil
}

// Records implements Coordinator.
func (c *coordinator) Records() []record.Record {
	return c.store.All()
}

// Busy implements Coordinator.
func (c *coordinator) Busy() bool {
	return c.busy.Load()
}

// Pending implements Coordinator.
func (c *coordinator) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// setPending records whether local changes await a push. The flag is
// persisted so later runs see it; a failed write is logged only.
func (c *coordinator) setPending(ctx context.Context, v bool) {
	c.mu.Lock()
	c.pending = v
	c.mu.Unlock()

	if err := c.store.SetPending(ctx, v); err != nil {
		c.logger.Printf("Warning: %v", err)
	}
}

// Subscribe implements Coordinator.
func (c *coordinator) Subscribe(fn func(Event)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
		})
	}
}

func (c *coordinator) publish(ev Event) {
	c.mu.Lock()
	subs := make([]func(Event), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	for _, fn := range subs {
		fn(ev)
	}
}

// commit replaces the store contents.
func (c *coordinator) commit(ctx context.Context, records []record.Record) ([]record.Record, error) {
	saved, err := c.store.ReplaceAll(ctx, records)
	if err != nil {
		return nil, &persistError{cause: err}
	}
	c.ids.Observe(saved)
	return saved, nil
}

func (c *coordinator) readRemote(ctx context.Context, target remote.Config, creds remote.Credentials) ([][]string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	rows, err := c.remote.ReadAll(ctx, target, creds)
	metrics.ObserveRemote("read", time.Since(start).Seconds())
	if err != nil {
		return nil, c.remoteFailure("read", err)
	}
	return rows, nil
}

func (c *coordinator) overwriteRemote(ctx context.Context, target remote.Config, creds remote.Credentials, records []record.Record) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	err := c.remote.OverwriteAll(ctx, target, creds, records)
	metrics.ObserveRemote("overwrite", time.Since(start).Seconds())
	if err != nil {
		return c.remoteFailure("overwrite", err)
	}
	return nil
}

// remoteFailure makes sure every adapter failure matches
// remote.ErrUnavailable and counts it.
func (c *coordinator) remoteFailure(call string, err error) error {
	var rerr *remote.Error
	if !errors.As(err, &rerr) {
		rerr = &remote.Error{Op: call, Kind: remote.KindTransport, Err: err}
		err = rerr
	}
	metrics.IncRemoteError(call, rerr.Kind.String())
	return err
}

// checkCollection enforces what every stored collection must meet:
// non-empty company, unique ids. Position is only enforced when
// requirePosition is set, since rows pulled from the remote may lack it.
func checkCollection(records []record.Record, requirePosition bool) error {
	var problems []string
	for i, r := range records {
		if strings.TrimSpace(r.Company) == "" {
			problems = append(problems, fmt.Sprintf("Record %d: Company name is required", i+1))
		}
		if requirePosition && strings.TrimSpace(r.Position) == "" {
			problems = append(problems, fmt.Sprintf("Record %d: Position is required", i+1))
		}
	}
	if len(problems) > 0 {
		return &record.ValidationError{Problems: problems}
	}
	if id, dup := record.DuplicateID(records); dup {
		return fmt.Errorf("%w: %d", store.ErrDuplicateID, id)
	}
	return nil
}

// preparePush returns a copy of records with statuses normalized and an id
// on every record that lacks one.
func (c *coordinator) preparePush(records []record.Record) []record.Record {
	out := record.Clone(records)
	c.ids.Observe(out)
	for i := range out {
		out[i].Status = record.NormalizeStatus(string(out[i].Status))
		if out[i].ID == 0 {
			out[i].ID = c.ids.Next()
		}
	}
	return out
}

// fullPatch sets every field of r.
func fullPatch(r record.Record) record.Patch {
	return record.Patch{
		Company:  &r.Company,
		Position: &r.Position,
		Date:     &r.Date,
		Status:   &r.Status,
		Source:   &r.Source,
		Notes:    &r.Notes,
		Salary:   &r.Salary,
	}
}
