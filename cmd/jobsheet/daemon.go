package main

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/jobsheet/jobsheet/internal/daemon"
	"github.com/jobsheet/jobsheet/internal/dashboard"
	"github.com/jobsheet/jobsheet/internal/metrics"
	"github.com/jobsheet/jobsheet/internal/ui"
)

var daemonCmd = &cobra.Command{
	Use:     "daemon",
	GroupID: "sync",
	Short:   "Run in the foreground: watch connectivity and serve the dashboard",
	Long: `Run jobsheet as a long-lived process.

The daemon will:
  1. Probe the Sheets API every sync.probe_interval and track connectivity
  2. Pull the spreadsheet at startup unless local changes are pending
  3. Push pending changes when the connection returns (--push-on-reconnect)
  4. Re-read the token file whenever it changes
  5. Serve a status dashboard with a WebSocket feed and /metrics

Dashboard endpoints:
  http://localhost:<port>/api/records   records, filter with ?q= and ?status=
  http://localhost:<port>/api/stats     totals, daily average, goal progress
  http://localhost:<port>/api/status    connectivity, pending changes, notices
  ws://localhost:<port>/ws              live sync, stats and connectivity events
  http://localhost:<port>/metrics       Prometheus metrics`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a, err := openApp(ctx, openOptions{daemon: true})
		if err != nil {
			fatalf("Error: %v", err)
		}
		defer a.Close()

		if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
			fatalf("Error: failed to register metrics: %v", err)
		}

		dcfg := &daemon.Config{
			PushOnReconnect: a.cfg.Sync.PushOnReconnect,
			PullOnStart:     true,
			Prober:          a.prober,
			RefreshInterval: daemon.DefaultRefreshInterval,
			Logger:          a.logs.For("daemon"),
		}
		if noPull, _ := cmd.Flags().GetBool("no-pull"); noPull {
			dcfg.PullOnStart = false
		}
		if a.tokens.file != nil {
			dcfg.Watchers = append(dcfg.Watchers, a.tokens.file)
		}

		port := a.cfg.Dashboard.Port
		if port > 0 {
			srv, err := dashboard.NewServer(&dashboard.Config{
				Port:     port,
				Source:   a.coord,
				Monitor:  a.monitor,
				Notices:  a.notices,
				Gatherer: prometheus.DefaultGatherer,
				Goal:     a.cfg.Goal,
				Logger:   a.logs.For("dashboard"),
			})
			if err != nil {
				fatalf("Error: %v", err)
			}
			dcfg.Dashboard = srv
		}

		d, err := daemon.NewWithConfig(a.coord, a.monitor, dcfg)
		if err != nil {
			fatalf("Error creating daemon: %v", err)
		}

		fmt.Printf("%s Starting jobsheet daemon...\n", ui.RenderAccent("🚀"))
		fmt.Printf("   Cache: %s\n", a.db.Path())
		if t := a.coord.Target(); !t.IsZero() {
			fmt.Printf("   Spreadsheet: %s\n", t.SpreadsheetID)
		} else {
			fmt.Printf("   Spreadsheet: %s\n", ui.RenderWarn("not configured"))
		}
		if port > 0 {
			fmt.Printf("   Dashboard: http://localhost:%d\n", port)
		}
		fmt.Printf("   Push on reconnect: %t\n", dcfg.PushOnReconnect)
		fmt.Printf("\nPress Ctrl+C to stop\n\n")

		if err := d.Start(ctx); err != nil {
			a.Close()
			fatalf("Daemon stopped with error: %v", err)
		}
	},
}

func init() {
	daemonCmd.Flags().IntP("port", "p", 0, "Dashboard port (default from dashboard.port; -1 disables)")
	daemonCmd.Flags().Bool("push-on-reconnect", false, "Push pending changes when the connection returns")
	daemonCmd.Flags().Bool("no-pull", false, "Skip the pull at startup")

	bindFlag("dashboard.port", daemonCmd, "port")
	bindFlag("sync.push_on_reconnect", daemonCmd, "push-on-reconnect")
	rootCmd.AddCommand(daemonCmd)
}
