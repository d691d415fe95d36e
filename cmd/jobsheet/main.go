// Command jobsheet tracks job applications in a local cache and keeps them
// in step with a Google Sheets spreadsheet.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jobsheet/jobsheet/internal/config"
)

var (
	configPath string
	verbose    bool

	loader *config.Loader
	cfg    *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "jobsheet",
	Short: "Track job applications offline and sync them to Google Sheets",
	Long: `jobsheet keeps a local list of job applications and mirrors it to a
Google Sheets spreadsheet.

Every change is saved to the local cache first. When online and configured,
the whole list is written to the spreadsheet; when offline, changes stay
local and go out with the next push or sync.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		var err error
		cfg, err = loader.Load()
		if err != nil {
			fatalf("Error: %v", err)
		}
	},
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: "records", Title: "Records:"},
		&cobra.Group{ID: "sync", Title: "Sync:"},
		&cobra.Group{ID: "setup", Title: "Setup:"},
	)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "Config file (default ~/.jobsheet/config.toml)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Log sync activity to stderr")
	flags.Bool("offline", false, "Work offline; never contact the spreadsheet")
	flags.String("token", "", "OAuth access token for the Sheets API")
	flags.String("data-dir", "", "Directory holding the local cache")

	bindFlag("sync.offline", rootCmd, "offline")
	bindFlag("auth.token", rootCmd, "token")
	bindFlag("data_dir", rootCmd, "data-dir")

	cobra.OnInitialize(func() {
		loader = config.NewLoader(configPath)
		for _, bind := range bindings {
			bind()
		}
	})
}

// bindings run once the loader exists, after --config is parsed.
var bindings []func()

// bindFlag makes flag name of cmd override config key when set.
func bindFlag(key string, cmd *cobra.Command, name string) {
	bindings = append(bindings, func() {
		f := cmd.Flags().Lookup(name)
		if f == nil {
			f = cmd.PersistentFlags().Lookup(name)
		}
		_ = loader.Viper().BindPFlag(key, f)
	})
}

// fatalf prints an error line to stderr and exits 1.
func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	cancel()
	if err != nil {
		os.Exit(1)
	}
}
