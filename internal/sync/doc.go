// Package sync coordinates the local record store with the remote
// spreadsheet.
//
// Overview
//
// The coordinator is the only component that decides whether a change is
// written locally, remotely, or both. The local store is always the source
// the user edits; the remote spreadsheet is a mirror that receives the
// whole collection on every successful push and replaces the whole local
// collection on every successful pull.
//
//	             mutation (add / edit / delete)
//	                        ↓
//	                   Coordinator ── offline / unconfigured ──→ Store
//	                        ↓ online
//	              Remote.OverwriteAll
//	                        ↓ (success or failure)
//	                      Store
//
// Usage
//
//	db, err := cache.Open(path)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	st := store.New(db)
//	if _, err := st.Load(ctx); err != nil {
//	    return err
//	}
//
//	coord, err := sync.New(&sync.Config{
//	    Store:   st,
//	    Remote:  remote.NewSheets(),
//	    Monitor: connectivity.NewMonitor(true),
//	    Tokens:  auth.Static(token),
//	    Target:  remote.Config{SpreadsheetID: id},
//	})
//	if err != nil {
//	    return err
//	}
//
//	res, err := coord.Add(ctx, record.Record{Company: "Acme", Position: "Dev", Date: "2024-05-01"})
//
// Concurrency
//
// Every operation holds a single-slot guard for its whole duration, so
// pushes and pulls never overlap. Waiting callers queue on the guard and
// give up when their context is done. Connectivity is read once when an
// operation starts and is not re-checked while it runs.
//
// A push always transmits the entire collection. Pushing a stale snapshot
// after another push has advanced the remote rolls the remote back; the
// last push to complete wins.
//
// Error Handling
//
// Offline pushes are not errors: the collection is saved locally and the
// change stays pending. Remote failures during a push still commit the
// collection locally and return the remote error. A failed local write is
// fatal to the operation (ErrPersist) and leaves memory unchanged.
package sync
