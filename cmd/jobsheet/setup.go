package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jobsheet/jobsheet/internal/config"
	"github.com/jobsheet/jobsheet/internal/remote"
	"github.com/jobsheet/jobsheet/internal/store"
	jsync "github.com/jobsheet/jobsheet/internal/sync"
	"github.com/jobsheet/jobsheet/internal/ui"
)

var initCmd = &cobra.Command{
	Use:     "init",
	GroupID: "setup",
	Short:   "Connect jobsheet to a spreadsheet",
	Long: `Save the spreadsheet to sync with and how to authenticate.

The spreadsheet id is the long token in the sheet's URL. Authenticate with
an API key (read-only sheets) or an OAuth access token, either given with
--token or kept in a file that another tool refreshes (--token-file).

Without --spreadsheet on a terminal, an interactive form asks for the
settings.

Examples:
  jobsheet init --spreadsheet 1AbC... --token-file ~/.config/gcloud/sheets.token
  jobsheet init --spreadsheet 1AbC... --api-key AIza... --range "Jobs!A:H"`,
	Run: func(cmd *cobra.Command, args []string) {
		target := remote.Config{Range: cfg.Remote.Range}
		target.SpreadsheetID, _ = cmd.Flags().GetString("spreadsheet")
		if r, _ := cmd.Flags().GetString("range"); r != "" {
			target.Range = r
		}
		target.APIKey, _ = cmd.Flags().GetString("api-key")
		tokenFile, _ := cmd.Flags().GetString("token-file")

		if target.SpreadsheetID == "" && ui.IsTerminal(os.Stdin) {
			var err error
			target, tokenFile, err = promptInit(target, tokenFile)
			if errors.Is(err, huh.ErrUserAborted) {
				return
			}
			if err != nil {
				fatalf("Error: %v", err)
			}
		}
		if strings.TrimSpace(target.SpreadsheetID) == "" {
			fatalf("%s %s", ui.RenderFail("✗"), jsync.MsgNoSpreadsheet)
		}

		if err := saveInit(loader.Path(), target, tokenFile); err != nil {
			fatalf("Error: %v", err)
		}
		if tokenFile != "" {
			cfg.Auth.TokenFile = tokenFile
		}
		cfg.Remote.SpreadsheetID = target.SpreadsheetID
		cfg.Remote.Range = target.Range
		cfg.Remote.APIKey = target.APIKey

		ctx := cmd.Context()
		a := mustOpen(ctx)
		defer a.Close()
		if err := a.coord.Configure(ctx, target); err != nil {
			fatalf("%s %s", ui.RenderFail("✗"), jsync.UserMessage(err))
		}

		fmt.Printf("%s %s\n", ui.RenderPass("✓"), jsync.MsgConfigured)
		fmt.Printf("   Config: %s\n", loader.Path())
		fmt.Printf("   Spreadsheet: %s\n", target.SpreadsheetID)
		fmt.Printf("   Range: %s\n", a.coord.Target().Range)
		if !a.coord.Configured(ctx) {
			fmt.Printf("\n%s No credentials found yet\n", ui.RenderWarn("⚠"))
			fmt.Printf("   Pass --api-key, --token or --token-file before syncing\n")
		}
	},
}

// saveInit writes the init settings. A missing file is created with every
// default spelled out; an existing one only has the given keys changed.
func saveInit(path string, target remote.Config, tokenFile string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		out := *cfg
		out.Remote.SpreadsheetID = target.SpreadsheetID
		out.Remote.Range = target.Range
		out.Remote.APIKey = target.APIKey
		out.Auth.TokenFile = tokenFile
		// Tokens given with --token or JOBSHEET_AUTH_TOKEN stay out of the file.
		out.Auth.Token = ""
		return config.WriteFile(path, &out)
	}

	updates := map[string]string{
		"remote.spreadsheet_id": target.SpreadsheetID,
		"remote.range":          target.Range,
	}
	if target.APIKey != "" {
		updates["remote.api_key"] = target.APIKey
	}
	if tokenFile != "" {
		updates["auth.token_file"] = tokenFile
	}
	for key, value := range updates {
		if err := config.Set(path, key, value); err != nil {
			return err
		}
	}
	return nil
}

func promptInit(target remote.Config, tokenFile string) (remote.Config, string, error) {
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Spreadsheet ID").
				Description("The long token in the sheet's URL").
				Value(&target.SpreadsheetID).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New(jsync.MsgNoSpreadsheet)
					}
					return nil
				}),
			huh.NewInput().Title("Range").Value(&target.Range),
			huh.NewInput().Title("API key").Description("Optional; for public sheets").EchoMode(huh.EchoModePassword).Value(&target.APIKey),
			huh.NewInput().Title("Token file").Description("Optional; file holding an OAuth access token").Value(&tokenFile),
		),
	)
	err := form.Run()
	return target, tokenFile, err
}

var configCmd = &cobra.Command{
	Use:     "config",
	GroupID: "setup",
	Short:   "Show or change settings",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective settings",
	Long: `Print the settings after merging the config file, JOBSHEET_* environment
variables and flags. Secrets are masked.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("# %s\n", loader.Path())
		if err := config.Encode(os.Stdout, cfg.Redacted()); err != nil {
			fatalf("Error: %v", err)
		}
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change one setting in the config file",
	Long: `Change one setting in the config file.

Keys:
  ` + strings.Join(config.Keys(), "\n  "),
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		if err := config.Set(loader.Path(), args[0], args[1]); err != nil {
			fatalf("Error: %v", err)
		}
		fmt.Printf("%s %s = %s\n", ui.RenderPass("✓"), args[0], args[1])
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(loader.Path())
	},
}

var infoCmd = &cobra.Command{
	Use:     "info",
	GroupID: "setup",
	Short:   "Show cache and connection status",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a := mustOpen(ctx)
		defer a.Close()

		path := a.db.Path()
		size := "unknown"
		if fi, err := os.Stat(path); err == nil {
			size = humanize.Bytes(uint64(fi.Size()))
		}
		modified := "never"
		if t, ok, err := a.db.UpdatedAt(ctx, store.KeyApplications); err == nil && ok {
			modified = fmt.Sprintf("%s (%s)", t.Local().Format("2006-01-02 15:04:05"), humanize.Time(t))
		}

		target := a.coord.Target()
		online := ui.RenderPass("online")
		if !a.monitor.IsOnline() {
			online = ui.RenderWarn("offline")
		}

		fmt.Printf("\n%s jobsheet Status\n\n", ui.RenderAccent("📊"))
		fmt.Printf("Cache: %s\n", path)
		fmt.Printf("Size: %s\n", size)
		fmt.Printf("Records: %s\n", humanize.Comma(int64(a.store.Len())))
		fmt.Printf("Modified: %s\n", modified)
		fmt.Printf("Pending: %t\n", a.coord.Pending())
		fmt.Println()
		if target.IsZero() {
			fmt.Printf("%s %s\n", ui.RenderWarn("⚠"), jsync.MsgNotConfigured)
			fmt.Printf("   Run 'jobsheet init' to connect a spreadsheet\n\n")
			return
		}
		fmt.Printf("Spreadsheet: %s\n", target.SpreadsheetID)
		fmt.Printf("Range: %s\n", target.Range)
		fmt.Printf("Credentials: %t\n", a.coord.Configured(ctx))
		fmt.Printf("Connection: %s\n\n", online)
	},
}

func init() {
	initCmd.Flags().String("spreadsheet", "", "Spreadsheet id")
	initCmd.Flags().String("range", "", "A1 range holding the records (default \""+remote.DefaultRange+"\")")
	initCmd.Flags().String("api-key", "", "API key for public sheets")
	initCmd.Flags().String("token-file", "", "File holding an OAuth access token")

	configCmd.AddCommand(configShowCmd, configSetCmd, configPathCmd)
	rootCmd.AddCommand(initCmd, configCmd, infoCmd)
}
