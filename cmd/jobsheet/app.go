package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/jobsheet/jobsheet/internal/auth"
	"github.com/jobsheet/jobsheet/internal/cache"
	"github.com/jobsheet/jobsheet/internal/config"
	"github.com/jobsheet/jobsheet/internal/connectivity"
	"github.com/jobsheet/jobsheet/internal/logging"
	"github.com/jobsheet/jobsheet/internal/notice"
	"github.com/jobsheet/jobsheet/internal/remote"
	"github.com/jobsheet/jobsheet/internal/store"
	jsync "github.com/jobsheet/jobsheet/internal/sync"
	"github.com/jobsheet/jobsheet/internal/ui"
)

// app is everything a command needs, opened from the loaded config.
type app struct {
	cfg     *config.Config
	logs    *logging.Logs
	db      *cache.DB
	store   *store.Store
	monitor *connectivity.Monitor
	prober  *connectivity.Prober
	tokens  *tokenSources
	notices *notice.Board
	coord   jsync.Coordinator
}

// tokenSources keeps the file source reachable for the daemon's watcher.
type tokenSources struct {
	auth.Chain
	file *auth.FileSource
}

// openOptions tunes openApp for long-running commands.
type openOptions struct {
	// daemon logs regardless of --verbose and skips the startup probe,
	// which the daemon runs itself.
	daemon bool
}

// openApp opens the cache and wires the coordinator.
func openApp(ctx context.Context, opts openOptions) (*app, error) {
	logs := logging.New(logging.Config{
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
		Quiet:      !verbose && !opts.daemon && cfg.Log.File == "",
	})

	db, err := cache.Open(cfg.CachePath())
	if err != nil {
		logs.Close()
		return nil, err
	}
	if err := db.InitSchemaContext(ctx); err != nil {
		db.Close()
		logs.Close()
		return nil, err
	}

	st := store.New(db)
	if _, err := st.Load(ctx); err != nil {
		db.Close()
		logs.Close()
		return nil, err
	}

	// Settings from the file, env or flags win over the target saved by
	// an earlier "init".
	saved, err := st.LoadConfig(ctx)
	if err != nil {
		logs.For("app").Printf("Warning: ignoring saved remote config: %v", err)
	}
	target := saved.Merge(cfg.RemoteTarget())

	tokens := &tokenSources{}
	if cfg.Auth.Token != "" {
		tokens.Chain = append(tokens.Chain, auth.Static(cfg.Auth.Token))
	}
	if cfg.Auth.TokenFile != "" {
		tokens.file = auth.NewFileSource(cfg.Auth.TokenFile, logs.For("auth"))
		tokens.Chain = append(tokens.Chain, tokens.file)
	}

	monitor := connectivity.NewMonitor(!cfg.Sync.Offline)
	var prober *connectivity.Prober
	if !cfg.Sync.Offline {
		prober = connectivity.NewProber(monitor, &connectivity.ProberConfig{
			Addr:     cfg.Sync.ProbeAddr,
			Interval: cfg.Sync.ProbeInterval,
			Logger:   logs.For("probe"),
		})
		if !opts.daemon && !target.IsZero() {
			prober.Check(ctx)
		}
	}

	var sheetOpts []remote.SheetsOption
	sheetOpts = append(sheetOpts, remote.WithLogger(logs.For("remote")))
	if cfg.Remote.Endpoint != "" {
		sheetOpts = append(sheetOpts, remote.WithEndpoint(cfg.Remote.Endpoint))
	}

	notices := notice.NewBoard()
	coord, err := jsync.New(&jsync.Config{
		Store:   st,
		Remote:  remote.NewSheets(sheetOpts...),
		Monitor: monitor,
		Tokens:  tokens,
		Target:  target,
		Notices: notices,
		Timeout: cfg.Sync.Timeout,
		Logger:  logs.For("sync"),
	})
	if err != nil {
		db.Close()
		logs.Close()
		return nil, err
	}

	return &app{
		cfg:     cfg,
		logs:    logs,
		db:      db,
		store:   st,
		monitor: monitor,
		prober:  prober,
		tokens:  tokens,
		notices: notices,
		coord:   coord,
	}, nil
}

// Close releases the cache and the log file.
func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	_ = a.logs.Close()
}

// mustOpen is openApp for commands that cannot continue without it.
func mustOpen(ctx context.Context) *app {
	a, err := openApp(ctx, openOptions{})
	if err != nil {
		fatalf("Error: %v", err)
	}
	return a
}

// report prints the outcome of a coordinator operation and exits 1 on
// error. Local commits that failed to reach the remote still exit 1 so
// scripts notice.
func (a *app) report(res jsync.Result, err error) {
	msg := res.Message
	if msg == "" && err != nil {
		msg = jsync.UserMessage(err)
	}

	switch {
	case err != nil && errors.Is(err, jsync.ErrOffline):
		fmt.Fprintf(os.Stderr, "%s %s\n", ui.RenderWarn("⚠"), msg)
		a.Close()
		os.Exit(1)
	case err != nil:
		fmt.Fprintf(os.Stderr, "%s %s\n", ui.RenderFail("✗"), msg)
		if verbose {
			fmt.Fprintf(os.Stderr, "   %v\n", err)
		}
		a.Close()
		os.Exit(1)
	case res.Outcome == jsync.OutcomeSavedLocally:
		fmt.Printf("%s %s\n", ui.RenderWarn("⚠"), msg)
	case res.Outcome == jsync.OutcomeLocalOnly:
		fmt.Printf("%s %s\n", ui.RenderPass("✓"), msg)
		fmt.Printf("   %s\n", ui.RenderMuted("Run 'jobsheet init' to sync with Google Sheets."))
	case msg != "":
		fmt.Printf("%s %s\n", ui.RenderPass("✓"), msg)
	}
}
