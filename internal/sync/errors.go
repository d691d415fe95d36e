package sync

import (
	"errors"

	"github.com/jobsheet/jobsheet/internal/record"
	"github.com/jobsheet/jobsheet/internal/remote"
	"github.com/jobsheet/jobsheet/internal/store"
)

// Sentinel errors for coordinator operations.
var (
	// ErrNotConfigured is returned when no spreadsheet id or no usable
	// credential is available for a remote operation.
	ErrNotConfigured = errors.New("remote not configured")

	// ErrOffline is returned by operations that cannot degrade to local
	// work while offline.
	ErrOffline = errors.New("offline")

	// ErrPersist wraps a failed write to the local cache.
	ErrPersist = errors.New("failed to save locally")

	// ErrNotFound is returned when an edit or delete names an unknown id.
	ErrNotFound = errors.New("record not found")

	// ErrNoSpreadsheet is returned by Configure without a spreadsheet id.
	ErrNoSpreadsheet = errors.New("spreadsheet id required")
)

// User-facing messages.
const (
	MsgNotConfigured = "Please sign in and configure Spreadsheet ID first"
	MsgPullOffline   = "You're offline. Using cached data."
	MsgPushOffline   = "You're offline. Changes saved locally and will sync when online."
	MsgSyncOffline   = "You must be online to sync with Google Sheets."
	MsgPulled        = "Data synced successfully!"
	MsgPushed        = "Changes saved and synced!"
	MsgLocalOnly     = "Changes saved locally."
	MsgImported      = "Data imported successfully!"
	MsgConfigured    = "Configuration saved!"
	MsgNoSpreadsheet = "Please provide Spreadsheet ID"
	MsgNotFound      = "No application with that id"
)

// UserMessage converts an error returned by a Coordinator into the text
// shown to the user.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var verr *record.ValidationError
	if errors.As(err, &verr) {
		return verr.Error()
	}

	var perr *persistError
	var rerr *remote.Error
	switch {
	case errors.As(err, &perr):
		return "Could not save to local cache: " + perr.cause.Error()
	case errors.As(err, &rerr):
		text := (&remote.Error{Kind: rerr.Kind, StatusCode: rerr.StatusCode, Err: rerr.Err}).Error()
		if rerr.Op == "overwrite" {
			return "Save failed: " + text + ". " + MsgLocalOnly
		}
		return "Sync failed: " + text
	case errors.Is(err, ErrNotConfigured):
		return MsgNotConfigured
	case errors.Is(err, ErrOffline):
		return MsgPullOffline
	case errors.Is(err, ErrNoSpreadsheet):
		return MsgNoSpreadsheet
	case errors.Is(err, ErrNotFound):
		return MsgNotFound
	case errors.Is(err, store.ErrDuplicateID):
		return err.Error()
	}
	return err.Error()
}

// persistError wraps a store failure so it matches ErrPersist and keeps the
// cause reachable.
type persistError struct {
	cause error
}

func (e *persistError) Error() string {
	return ErrPersist.Error() + ": " + e.cause.Error()
}

func (e *persistError) Unwrap() error {
	return e.cause
}

func (e *persistError) Is(target error) bool {
	return target == ErrPersist
}
