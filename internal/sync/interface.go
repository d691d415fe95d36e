package sync

import (
	"context"
	"time"

	"github.com/jobsheet/jobsheet/internal/record"
	"github.com/jobsheet/jobsheet/internal/remote"
)

// Coordinator keeps the record store and the remote spreadsheet in step.
//
// All methods are safe for concurrent use. Operations that touch the store
// or the remote run one at a time.
type Coordinator interface {
	// Pull replaces the local collection with the remote one.
	//
	// Returns ErrNotConfigured without a spreadsheet or credentials,
	// ErrOffline when offline (the store is untouched), or a remote error
	// (the store is untouched).
	Pull(ctx context.Context) (Result, error)

	// Push writes records to the remote and commits them locally.
	//
	// Statuses are normalized and records without an id get a fresh one.
	// Offline, records are committed locally only and the result is
	// OutcomeSavedLocally with a nil error. A remote failure still commits
	// locally and returns the error with OutcomeRemoteFailed.
	Push(ctx context.Context, records []record.Record) (Result, error)

	// Flush is Push of the collection as it is in the local cache when the
	// operation starts, including changes written by other processes.
	Flush(ctx context.Context) (Result, error)

	// Add validates r, assigns an id when r.ID is zero, and pushes the
	// collection with r appended.
	Add(ctx context.Context, r record.Record) (Result, error)

	// Update applies patch to the record with id and pushes.
	Update(ctx context.Context, id int64, patch record.Patch) (Result, error)

	// SetStatus is Update for the status field alone.
	SetStatus(ctx context.Context, id int64, status record.Status) (Result, error)

	// Delete removes the record with id and pushes.
	Delete(ctx context.Context, id int64) (Result, error)

	// Sync pushes the current collection and then pulls. Requires online.
	Sync(ctx context.Context) (Result, error)

	// Import replaces the local collection with records without touching
	// the remote. The change is left pending.
	Import(ctx context.Context, records []record.Record) (Result, error)

	// Configure persists and activates a new remote target.
	Configure(ctx context.Context, cfg remote.Config) error

	// Target returns the active remote target.
	Target() remote.Config

	// Configured reports whether a spreadsheet and a credential are
	// available.
	Configured(ctx context.Context) bool

	// Reload rereads the collection and the pending flag from the local
	// cache. Every operation does this first; long-lived callers use it to
	// refresh Records and Pending between operations.
	Reload(ctx context.Context) error

	// Records returns a copy of the collection as of the last operation
	// or Reload.
	Records() []record.Record

	// Busy reports whether an operation is running.
	Busy() bool

	// Pending reports whether local changes have not reached the remote.
	Pending() bool

	// Subscribe registers fn for operation events and returns a function
	// that removes it.
	Subscribe(fn func(Event)) (unsubscribe func())
}

// Outcome is how an operation ended.
type Outcome int

const (
	// OutcomeNone means the operation failed before changing anything.
	OutcomeNone Outcome = iota
	// OutcomeSynced means the remote and the store both hold the result.
	OutcomeSynced
	// OutcomePulled means the store was replaced by remote data.
	OutcomePulled
	// OutcomeSavedLocally means the device was offline; the remote was not
	// contacted.
	OutcomeSavedLocally
	// OutcomeRemoteFailed means the remote call failed but the store was
	// still committed.
	OutcomeRemoteFailed
	// OutcomeLocalOnly means no remote is configured.
	OutcomeLocalOnly
	// OutcomeImported means the store was replaced from an import.
	OutcomeImported
)

// String returns the outcome name used in logs, metrics and events.
func (o Outcome) String() string {
	switch o {
	case OutcomeNone:
		return "none"
	case OutcomeSynced:
		return "synced"
	case OutcomePulled:
		return "pulled"
	case OutcomeSavedLocally:
		return "saved_locally"
	case OutcomeRemoteFailed:
		return "remote_failed"
	case OutcomeLocalOnly:
		return "local_only"
	case OutcomeImported:
		return "imported"
	default:
		return "unknown"
	}
}

// Committed reports whether the store holds the operation's result.
func (o Outcome) Committed() bool {
	return o != OutcomeNone
}

// Result describes a finished operation.
type Result struct {
	OpID    string
	Outcome Outcome
	Records []record.Record
	Message string
}

// Event is published to subscribers after every operation.
type Event struct {
	OpID     string        `json:"op_id"`
	Op       string        `json:"op"`
	Outcome  string        `json:"outcome"`
	Error    string        `json:"error,omitempty"`
	Message  string        `json:"message,omitempty"`
	Records  int           `json:"records"`
	Online   bool          `json:"online"`
	Pending  bool          `json:"pending"`
	Duration time.Duration `json:"duration"`
	Time     time.Time     `json:"time"`
}
