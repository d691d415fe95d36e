// Package loadtest drives the record store and sync coordinator with many
// concurrent readers and writers against an in-process spreadsheet.
//
// It checks that single-flight mutations neither lose nor duplicate
// records under contention, and measures how long reads take while writes
// are queued.
package loadtest

import (
	"context"
	"fmt"
	"io"
	"log"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/jobsheet/jobsheet/internal/auth"
	"github.com/jobsheet/jobsheet/internal/cache"
	"github.com/jobsheet/jobsheet/internal/connectivity"
	"github.com/jobsheet/jobsheet/internal/record"
	"github.com/jobsheet/jobsheet/internal/remote"
	"github.com/jobsheet/jobsheet/internal/remote/remotetest"
	"github.com/jobsheet/jobsheet/internal/store"
	jsync "github.com/jobsheet/jobsheet/internal/sync"
)

// SpreadsheetID is the id of the spreadsheet served to the fixture.
const SpreadsheetID = "loadtest"

// Fixture is a coordinator wired to a real cache and a fake spreadsheet.
type Fixture struct {
	Coord   jsync.Coordinator
	Store   *store.Store
	Monitor *connectivity.Monitor
	Server  *remotetest.Server

	db *cache.DB
}

// LatencyStats captures timings from a load run.
type LatencyStats struct {
	Min        time.Duration
	Max        time.Duration
	Mean       time.Duration
	P50        time.Duration // Median
	P95        time.Duration
	P99        time.Duration
	Operations int
	Errors     int
	Durations  []time.Duration
}

// NewFixture opens a cache at dbPath, or an in-memory one when dbPath is
// empty, and starts a fake spreadsheet.
func NewFixture(ctx context.Context, dbPath string, online bool) (*Fixture, error) {
	f := &Fixture{Monitor: connectivity.NewMonitor(online)}

	var kv cache.KV = cache.NewMemory()
	if dbPath != "" {
		db, err := cache.Open(dbPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open cache: %w", err)
		}
		if err := db.InitSchemaContext(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to initialize cache: %w", err)
		}
		f.db = db
		kv = db
	}

	f.Store = store.New(kv)
	if _, err := f.Store.Load(ctx); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to load store: %w", err)
	}

	f.Server = remotetest.NewServer()
	f.Server.AddSpreadsheet(SpreadsheetID)

	quiet := log.New(io.Discard, "", 0)
	coord, err := jsync.New(&jsync.Config{
		Store:   f.Store,
		Remote:  remote.NewSheets(remote.WithEndpoint(f.Server.Endpoint()), remote.WithLogger(quiet)),
		Monitor: f.Monitor,
		Tokens:  auth.Static("loadtest"),
		Target:  remote.Config{SpreadsheetID: SpreadsheetID},
		Logger:  quiet,
	})
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	f.Coord = coord
	return f, nil
}

// Close stops the fake spreadsheet and closes the cache.
func (f *Fixture) Close() error {
	if f.Server != nil {
		f.Server.Close()
	}
	if f.db != nil {
		return f.db.Close()
	}
	return nil
}

// Seed replaces the local list with n generated records and pushes them.
// Offline, the push leaves them pending.
func (f *Fixture) Seed(ctx context.Context, n int) error {
	if _, err := f.Coord.Import(ctx, generateRecords(n, time.Now())); err != nil {
		return fmt.Errorf("failed to import seed records: %w", err)
	}
	if _, err := f.Coord.Flush(ctx); err != nil {
		return fmt.Errorf("failed to push seed records: %w", err)
	}
	return nil
}

// RunConcurrentReads starts numReaders goroutines that each list, filter
// and summarize the records perReader times.
func (f *Fixture) RunConcurrentReads(numReaders, perReader int) (*LatencyStats, error) {
	statuses := record.Statuses()
	return run(numReaders, perReader, func(reader, i int) error {
		records := f.Coord.Records()
		status := string(statuses[(reader+i)%len(statuses)])
		_ = record.Filter(records, "a", status)
		_ = record.ComputeStats(records, time.Now(), 0)
		for _, r := range records {
			if r.ID == 0 {
				return fmt.Errorf("reader %d saw a record without an id", reader)
			}
		}
		return nil
	})
}

// RunConcurrentAdds starts numWriters goroutines that each add perWriter
// records through the coordinator.
func (f *Fixture) RunConcurrentAdds(ctx context.Context, numWriters, perWriter int) (*LatencyStats, error) {
	return run(numWriters, perWriter, func(writer, i int) error {
		r := record.Record{
			Company:  fmt.Sprintf("Writer %d Co %d", writer, i),
			Position: "Engineer",
			Date:     time.Now().Format(record.DateLayout),
		}
		res, err := f.Coord.Add(ctx, r)
		if err != nil {
			return fmt.Errorf("writer %d add %d failed: %w", writer, i, err)
		}
		if res.Outcome != jsync.OutcomeSynced && res.Outcome != jsync.OutcomeSavedLocally {
			return fmt.Errorf("writer %d add %d ended %s", writer, i, res.Outcome)
		}
		return nil
	})
}

// VerifyConsistency checks that the store holds want records with unique
// ids, and that the spreadsheet matches the store unless changes are
// pending.
func (f *Fixture) VerifyConsistency(want int) error {
	records := f.Coord.Records()
	if len(records) != want {
		return fmt.Errorf("store holds %d records, want %d", len(records), want)
	}
	if id, dup := record.DuplicateID(records); dup {
		return fmt.Errorf("duplicate id %d", id)
	}
	for _, r := range records {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("record %d: %w", r.ID, err)
		}
	}

	if f.Coord.Pending() {
		return nil
	}
	rows := f.Server.Rows(SpreadsheetID)
	if len(rows) != want+1 {
		return fmt.Errorf("spreadsheet holds %d rows, want %d plus header", len(rows), want)
	}
	body := record.ToRows(records)
	for i := range body {
		if fmt.Sprint(rows[i]) != fmt.Sprint(body[i]) {
			return fmt.Errorf("spreadsheet row %d = %v, store has %v", i, rows[i], body[i])
		}
	}
	return nil
}

// run calls op perWorker times from each of numWorkers goroutines and
// collects the latency of every call.
func run(numWorkers, perWorker int, op func(worker, i int) error) (*LatencyStats, error) {
	var wg sync.WaitGroup
	resultsChan := make(chan []time.Duration, numWorkers)
	errorsChan := make(chan error, numWorkers)

	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()

			durations := make([]time.Duration, 0, perWorker)
			for i := 0; i < perWorker; i++ {
				start := time.Now()
				err := op(worker, i)
				durations = append(durations, time.Since(start))
				if err != nil {
					errorsChan <- err
					break
				}
			}
			resultsChan <- durations
		}(w)
	}

	wg.Wait()
	close(resultsChan)
	close(errorsChan)

	var all []time.Duration
	for durations := range resultsChan {
		all = append(all, durations...)
	}

	var firstErr error
	errorCount := 0
	for err := range errorsChan {
		errorCount++
		if firstErr == nil {
			firstErr = err
		}
	}

	if len(all) == 0 {
		return nil, fmt.Errorf("no operations completed")
	}
	stats := computeLatencyStats(all)
	stats.Errors = errorCount
	return stats, firstErr
}

var (
	companies = []string{"Acme", "Globex", "Initech", "Umbrella", "Hooli", "Stark", "Wayne", "Wonka"}
	positions = []string{"Backend Engineer", "SRE", "Data Engineer", "Frontend Engineer", "Engineering Manager"}
	sources   = []string{"LinkedIn", "Referral", "Company site", "Recruiter", ""}
)

// generateRecords creates n records spread over the last 60 days, weighted
// toward the early pipeline stages.
func generateRecords(n int, now time.Time) []record.Record {
	rng := rand.New(rand.NewSource(42))
	statuses := record.Statuses()
	out := make([]record.Record, n)
	for i := range out {
		// Half of all records are still at the first two stages.
		si := rng.Intn(len(statuses))
		if rng.Float64() < 0.5 {
			si = rng.Intn(2)
		}
		out[i] = record.Record{
			Company:  fmt.Sprintf("%s %d", companies[rng.Intn(len(companies))], i),
			Position: positions[rng.Intn(len(positions))],
			Date:     now.AddDate(0, 0, -rng.Intn(60)).Format(record.DateLayout),
			Status:   statuses[si],
			Source:   sources[rng.Intn(len(sources))],
		}
	}
	return out
}

// computeLatencyStats calculates statistics from a slice of durations.
func computeLatencyStats(durations []time.Duration) *LatencyStats {
	if len(durations) == 0 {
		return &LatencyStats{}
	}

	sorted := make([]time.Duration, len(durations))
	copy(sorted, durations)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}

	return &LatencyStats{
		Min:        sorted[0],
		Max:        sorted[len(sorted)-1],
		Mean:       sum / time.Duration(len(durations)),
		P50:        sorted[len(sorted)*50/100],
		P95:        sorted[len(sorted)*95/100],
		P99:        sorted[len(sorted)*99/100],
		Operations: len(durations),
		Durations:  sorted,
	}
}

// PrintStats writes latency statistics to w.
func (s *LatencyStats) PrintStats(w io.Writer) {
	fmt.Fprintf(w, "Latency Statistics:\n")
	fmt.Fprintf(w, "  Operations:    %d\n", s.Operations)
	fmt.Fprintf(w, "  Errors:        %d\n", s.Errors)
	fmt.Fprintf(w, "  Min:           %v\n", s.Min)
	fmt.Fprintf(w, "  P50 (Median):  %v\n", s.P50)
	fmt.Fprintf(w, "  Mean:          %v\n", s.Mean)
	fmt.Fprintf(w, "  P95:           %v\n", s.P95)
	fmt.Fprintf(w, "  P99:           %v\n", s.P99)
	fmt.Fprintf(w, "  Max:           %v\n", s.Max)
}
