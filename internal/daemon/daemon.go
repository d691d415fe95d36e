// Package daemon runs jobsheet as a long-lived process.
//
// The daemon:
//  1. Probes connectivity on an interval and feeds the monitor
//  2. Pushes locally pending changes when connectivity returns (optional)
//  3. Re-reads the token file when it changes
//  4. Serves the status dashboard
//  5. Rereads the local cache on an interval, since CLI commands write it
//     from other processes
//  6. Handles graceful shutdown
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jobsheet/jobsheet/internal/connectivity"
	"github.com/jobsheet/jobsheet/internal/dashboard"
	jsync "github.com/jobsheet/jobsheet/internal/sync"
)

// Watcher is a background task that runs until ctx is cancelled, such as
// auth.FileSource.Watch.
type Watcher interface {
	Watch(ctx context.Context) error
}

// Config holds configuration for the daemon.
type Config struct {
	// PushOnReconnect pushes the local collection when the monitor goes
	// back online with changes pending.
	PushOnReconnect bool

	// PullOnStart pulls the remote collection once at startup when online,
	// configured and nothing is pending.
	PullOnStart bool

	// Prober feeds the monitor. Nil leaves the monitor as it is.
	Prober *connectivity.Prober

	// Watchers run alongside the daemon, e.g. the token file watcher.
	Watchers []Watcher

	// Dashboard is started with the daemon and stopped on shutdown.
	Dashboard *dashboard.Server

	// RefreshInterval is how often the coordinator rereads the local
	// cache. Zero disables the refresh.
	RefreshInterval time.Duration

	// Logger for daemon activity
	Logger *log.Logger
}

// DefaultRefreshInterval is the default cache refresh period.
const DefaultRefreshInterval = 5 * time.Second

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		PullOnStart:     true,
		RefreshInterval: DefaultRefreshInterval,
		Logger:          log.New(os.Stderr, "[daemon] ", log.LstdFlags),
	}
}

// Daemon drives a coordinator from connectivity changes.
type Daemon struct {
	coord   jsync.Coordinator
	monitor *connectivity.Monitor
	config  *Config

	reconnect chan struct{}
}

// New creates a Daemon with default configuration.
func New(coord jsync.Coordinator, monitor *connectivity.Monitor) (*Daemon, error) {
	return NewWithConfig(coord, monitor, DefaultConfig())
}

// NewWithConfig creates a daemon with custom configuration.
func NewWithConfig(coord jsync.Coordinator, monitor *connectivity.Monitor, config *Config) (*Daemon, error) {
	if coord == nil {
		return nil, fmt.Errorf("coordinator cannot be nil")
	}
	if monitor == nil {
		return nil, fmt.Errorf("monitor cannot be nil")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[daemon] ", log.LstdFlags)
	}

	return &Daemon{
		coord:     coord,
		monitor:   monitor,
		config:    config,
		reconnect: make(chan struct{}, 1),
	}, nil
}

// Start runs the daemon until ctx is cancelled or a background task fails.
// Cancellation is a clean shutdown and returns nil.
func (d *Daemon) Start(ctx context.Context) error {
	logger := d.config.Logger
	logger.Println("Starting daemon")

	unsubscribe := d.monitor.Subscribe(func(online bool) {
		if online {
			d.config.Logger.Println("Connectivity restored")
			d.signal()
		}
	})
	defer unsubscribe()

	srv := d.config.Dashboard
	if srv != nil {
		if err := srv.Start(); err != nil {
			return fmt.Errorf("failed to start dashboard: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	if srv != nil {
		detach := dashboard.NewHandler(srv, logger).Attach(d.coord, d.monitor)
		g.Go(func() error {
			<-gctx.Done()
			detach()
			return srv.Stop()
		})
	}
	if d.config.Prober != nil {
		g.Go(func() error { return d.config.Prober.Run(gctx) })
	}
	for _, w := range d.config.Watchers {
		g.Go(func() error { return w.Watch(gctx) })
	}
	if d.config.RefreshInterval > 0 {
		g.Go(func() error { return d.refreshLoop(gctx) })
	}

	if d.config.PullOnStart {
		d.pullOnStart(gctx)
	}

	// Changes left pending by an earlier run go out as soon as possible.
	if d.monitor.IsOnline() {
		d.signal()
	}
	g.Go(func() error { return d.reconnectLoop(gctx) })

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Printf("Daemon stopped with error: %v", err)
		return err
	}
	logger.Println("Daemon stopped")
	return nil
}

func (d *Daemon) pullOnStart(ctx context.Context) {
	if !d.monitor.IsOnline() || !d.coord.Configured(ctx) {
		return
	}
	if err := d.coord.Reload(ctx); err != nil {
		d.config.Logger.Printf("Warning: %v", err)
		return
	}
	if d.coord.Pending() {
		d.config.Logger.Println("Skipping initial pull: local changes pending")
		return
	}
	if _, err := d.coord.Pull(ctx); err != nil {
		d.config.Logger.Printf("Warning: initial pull failed: %v", err)
	}
}

func (d *Daemon) signal() {
	select {
	case d.reconnect <- struct{}{}:
	default:
	}
}

// reconnectLoop pushes pending changes after each offline-to-online
// transition.
func (d *Daemon) reconnectLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-d.reconnect:
			if err := d.PushPending(ctx); err != nil {
				d.config.Logger.Printf("Warning: push on reconnect failed: %v", err)
			}
		}
	}
}

// refreshLoop rereads the cache so Records and Pending reflect writes made
// by other processes.
func (d *Daemon) refreshLoop(ctx context.Context) error {
	ticker := time.NewTicker(d.config.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := d.coord.Reload(ctx); err != nil && ctx.Err() == nil {
				d.config.Logger.Printf("Warning: %v", err)
			}
		}
	}
}

// PushPending pushes the local collection as stored in the cache if
// PushOnReconnect is set and changes are pending. It is a no-op otherwise.
func (d *Daemon) PushPending(ctx context.Context) error {
	if !d.config.PushOnReconnect || !d.coord.Configured(ctx) {
		return nil
	}
	if err := d.coord.Reload(ctx); err != nil {
		return err
	}
	if !d.coord.Pending() {
		return nil
	}
	start := time.Now()
	res, err := d.coord.Flush(ctx)
	if err != nil {
		return err
	}
	d.config.Logger.Printf("Pushed %d pending records in %v", len(res.Records), time.Since(start).Round(time.Millisecond))
	return nil
}
