package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jobsheet/jobsheet/internal/ui"
)

var pullCmd = &cobra.Command{
	Use:     "pull",
	GroupID: "sync",
	Short:   "Replace the local list with the spreadsheet",
	Long: `Read the spreadsheet and replace the local list with it.

Local changes that were never pushed are lost. Run 'jobsheet sync' to push
them first.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a := mustOpen(ctx)
		defer a.Close()

		if a.coord.Pending() {
			force, _ := cmd.Flags().GetBool("force")
			if !force {
				fmt.Printf("%s Local changes not yet synced would be lost\n", ui.RenderWarn("⚠"))
				fmt.Printf("   Run 'jobsheet sync' first, or pass --force\n")
				a.Close()
				os.Exit(1)
			}
		}

		start := time.Now()
		res, err := a.coord.Pull(ctx)
		a.report(res, err)
		fmt.Printf("   Records: %d\n", len(res.Records))
		fmt.Printf("   Took: %v\n", time.Since(start).Round(time.Millisecond))
	},
}

var pushCmd = &cobra.Command{
	Use:     "push",
	GroupID: "sync",
	Short:   "Write the local list to the spreadsheet",
	Long: `Overwrite the spreadsheet with the local list.

Offline, nothing is sent and the list stays marked as pending.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a := mustOpen(ctx)
		defer a.Close()

		res, err := a.coord.Flush(ctx)
		a.report(res, err)
		fmt.Printf("   Records: %d\n", len(res.Records))
	},
}

var syncCmd = &cobra.Command{
	Use:     "sync",
	GroupID: "sync",
	Short:   "Push local changes, then pull the spreadsheet",
	Long: `Write the local list to the spreadsheet and read it back.

Requires a connection. If the push fails, the pull is skipped and the local
list is left as it was.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a := mustOpen(ctx)
		defer a.Close()

		fmt.Printf("%s Syncing with spreadsheet %s...\n", ui.RenderAccent("🔄"), a.coord.Target().SpreadsheetID)
		start := time.Now()
		res, err := a.coord.Sync(ctx)
		a.report(res, err)
		fmt.Printf("   Records: %d\n", len(res.Records))
		fmt.Printf("   Took: %v\n", time.Since(start).Round(time.Millisecond))
	},
}

func init() {
	pullCmd.Flags().Bool("force", false, "Pull even if local changes are pending")
	rootCmd.AddCommand(pullCmd, pushCmd, syncCmd)
}
