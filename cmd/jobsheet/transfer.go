package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jobsheet/jobsheet/internal/record"
	"github.com/jobsheet/jobsheet/internal/transfer"
	"github.com/jobsheet/jobsheet/internal/ui"
)

var exportCmd = &cobra.Command{
	Use:     "export [file]",
	GroupID: "records",
	Short:   "Write all applications to a file",
	Long: `Write all applications to a JSON or YAML file, chosen by extension.
The default file is ` + transfer.DefaultFileName + `. Use "-" for stdout.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		path := transfer.DefaultFileName
		if len(args) == 1 {
			path = args[0]
		}

		ctx := cmd.Context()
		a := mustOpen(ctx)
		defer a.Close()
		records := a.coord.Records()

		if path == "-" {
			format, err := transfer.ParseFormat(formatFlag(cmd))
			if err != nil {
				fatalf("Error: %v", err)
			}
			if err := transfer.Encode(os.Stdout, records, format); err != nil {
				fatalf("Error: %v", err)
			}
			return
		}
		if err := transfer.WriteFile(path, records); err != nil {
			fatalf("Error: %v", err)
		}
		fmt.Printf("%s Exported %d applications to %s\n", ui.RenderPass("✓"), len(records), path)
	},
}

var importCmd = &cobra.Command{
	Use:     "import <file>",
	GroupID: "records",
	Short:   "Replace all applications with a file's contents",
	Long: `Replace the local list with the records in a JSON or YAML file.

The spreadsheet is not touched; run 'jobsheet push' or 'jobsheet sync'
afterwards to send the imported list. Records without an id, or with an id
already used in the file, get a new one. Use "-" to read stdin.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		path := args[0]

		var (
			records []record.Record
			err     error
		)
		if path == "-" {
			format, ferr := transfer.ParseFormat(formatFlag(cmd))
			if ferr != nil {
				fatalf("Error: %v", ferr)
			}
			records, err = transfer.Decode(os.Stdin, format)
		} else {
			records, err = transfer.ReadFile(path)
		}
		if err != nil {
			fatalf("%s %s", ui.RenderFail("✗"), transfer.UserMessage(err))
		}

		ctx := cmd.Context()
		a := mustOpen(ctx)
		defer a.Close()
		res, err := a.coord.Import(ctx, records)
		a.report(res, err)
		fmt.Printf("   Records: %d\n", len(res.Records))
		fmt.Printf("   Run 'jobsheet push' to send them to the spreadsheet\n")
	},
}

func formatFlag(cmd *cobra.Command) string {
	f, _ := cmd.Flags().GetString("format")
	return f
}

func init() {
	exportCmd.Flags().String("format", "json", "Output format for stdout: json or yaml")
	importCmd.Flags().String("format", "json", "Input format for stdin: json or yaml")
	rootCmd.AddCommand(exportCmd, importCmd)
}
