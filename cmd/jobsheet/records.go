package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/jobsheet/jobsheet/internal/record"
	"github.com/jobsheet/jobsheet/internal/ui"
)

var addCmd = &cobra.Command{
	Use:     "add",
	GroupID: "records",
	Short:   "Add a job application",
	Long: `Add a job application and push the list to the spreadsheet.

Without --company and --position on a terminal, an interactive form asks
for the fields. Dates accept YYYY-MM-DD or phrases such as "yesterday" or
"last friday"; the default is today.

Examples:
  jobsheet add --company Acme --position "Backend Engineer"
  jobsheet add -c Acme -p SRE --date yesterday --source LinkedIn`,
	Run: func(cmd *cobra.Command, args []string) {
		r, err := recordFromFlags(cmd, time.Now())
		if err != nil {
			fatalf("Error: %v", err)
		}

		interactive := !cmd.Flags().Changed("company") && !cmd.Flags().Changed("position")
		if interactive {
			if !ui.IsTerminal(os.Stdin) {
				fatalf("Error: --company and --position are required when not on a terminal")
			}
			if r, err = promptRecord(r); err != nil {
				if errors.Is(err, huh.ErrUserAborted) {
					return
				}
				fatalf("Error: %v", err)
			}
		}

		ctx := cmd.Context()
		a := mustOpen(ctx)
		defer a.Close()
		a.report(a.coord.Add(ctx, r))
	},
}

var editCmd = &cobra.Command{
	Use:     "edit <id>",
	GroupID: "records",
	Short:   "Change fields of an application",
	Long: `Change one or more fields of an application. Only the flags given are
changed.

Example:
  jobsheet edit 1714560000000 --status "Phone Screen" --notes "Call Tuesday"`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id := parseID(args[0])
		patch, err := patchFromFlags(cmd, time.Now())
		if err != nil {
			fatalf("Error: %v", err)
		}
		if patch.IsEmpty() {
			fatalf("Error: nothing to change; pass at least one field flag")
		}

		ctx := cmd.Context()
		a := mustOpen(ctx)
		defer a.Close()
		a.report(a.coord.Update(ctx, id, patch))
	},
}

var statusCmd = &cobra.Command{
	Use:     "status <id> <status>",
	GroupID: "records",
	Short:   "Move an application to a new stage",
	Long: `Move an application to a new stage. The stage name is matched without
regard to case.

Stages: ` + statusList(),
	Args: cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		id := parseID(args[0])
		status, err := record.ParseStatus(strings.Join(args[1:], " "))
		if err != nil {
			fatalf("Error: %v", err)
		}

		ctx := cmd.Context()
		a := mustOpen(ctx)
		defer a.Close()
		a.report(a.coord.SetStatus(ctx, id, status))
	},
}

var deleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm"},
	GroupID: "records",
	Short:   "Delete an application",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id := parseID(args[0])

		ctx := cmd.Context()
		a := mustOpen(ctx)
		defer a.Close()
		a.report(a.coord.Delete(ctx, id))
	},
}

var listCmd = &cobra.Command{
	Use:     "list [search]",
	Aliases: []string{"ls"},
	GroupID: "records",
	Short:   "List applications",
	Long: `List applications from the local cache. The optional search term matches
company, position, source and notes without regard to case.

Examples:
  jobsheet list
  jobsheet list backend --status "Phone Screen"
  jobsheet list --json`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		term := ""
		if len(args) == 1 {
			term = args[0]
		}
		status, _ := cmd.Flags().GetString("status")
		if status != "" && status != record.AllStatuses {
			s, err := record.ParseStatus(status)
			if err != nil {
				fatalf("Error: %v", err)
			}
			status = string(s)
		}
		jsonOutput, _ := cmd.Flags().GetBool("json")

		ctx := cmd.Context()
		a := mustOpen(ctx)
		defer a.Close()

		records := record.Filter(a.coord.Records(), term, status)
		if jsonOutput {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(records); err != nil {
				fatalf("Error: %v", err)
			}
			return
		}
		if len(records) == 0 {
			fmt.Println("No applications found.")
			return
		}
		fmt.Println(ui.RecordsTable(records))
		fmt.Printf("%d of %d applications\n", len(records), a.store.Len())
		if a.coord.Pending() {
			fmt.Printf("%s Local changes not yet synced\n", ui.RenderWarn("⚠"))
		}
	},
}

var statsCmd = &cobra.Command{
	Use:     "stats",
	GroupID: "records",
	Short:   "Show application statistics",
	Run: func(cmd *cobra.Command, args []string) {
		jsonOutput, _ := cmd.Flags().GetBool("json")

		ctx := cmd.Context()
		a := mustOpen(ctx)
		defer a.Close()

		st := record.ComputeStats(a.coord.Records(), time.Now(), a.cfg.Goal)
		if jsonOutput {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(st); err != nil {
				fatalf("Error: %v", err)
			}
			return
		}
		fmt.Println()
		fmt.Print(ui.RenderStats(st))
		fmt.Println()
	},
}

// addFieldFlags registers the record field flags shared by add and edit.
func addFieldFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("company", "c", "", "Company name")
	cmd.Flags().StringP("position", "p", "", "Position title")
	cmd.Flags().StringP("date", "d", "", "Application date (YYYY-MM-DD or e.g. \"yesterday\")")
	cmd.Flags().StringP("status", "s", "", "Stage, e.g. \"Phone Screen\"")
	cmd.Flags().String("source", "", "Where the posting was found")
	cmd.Flags().String("salary", "", "Salary range")
	cmd.Flags().String("notes", "", "Free-form notes")
}

// recordFromFlags builds a new record from the field flags. Unset date
// and status default to today and Applied.
func recordFromFlags(cmd *cobra.Command, now time.Time) (record.Record, error) {
	get := func(name string) string {
		v, _ := cmd.Flags().GetString(name)
		return v
	}

	r := record.Record{
		Company:  get("company"),
		Position: get("position"),
		Date:     now.Format(record.DateLayout),
		Status:   record.DefaultStatus,
		Source:   get("source"),
		Salary:   get("salary"),
		Notes:    get("notes"),
	}
	if d := get("date"); d != "" {
		date, err := record.ParseDate(d, now)
		if err != nil {
			return r, err
		}
		r.Date = date
	}
	if s := get("status"); s != "" {
		status, err := record.ParseStatus(s)
		if err != nil {
			return r, err
		}
		r.Status = status
	}
	return r, nil
}

// patchFromFlags builds a patch from the field flags that were set.
func patchFromFlags(cmd *cobra.Command, now time.Time) (record.Patch, error) {
	var p record.Patch
	set := func(name string) *string {
		if !cmd.Flags().Changed(name) {
			return nil
		}
		v, _ := cmd.Flags().GetString(name)
		return &v
	}

	p.Company = set("company")
	p.Position = set("position")
	p.Source = set("source")
	p.Salary = set("salary")
	p.Notes = set("notes")
	if d := set("date"); d != nil {
		date, err := record.ParseDate(*d, now)
		if err != nil {
			return p, err
		}
		p.Date = &date
	}
	if s := set("status"); s != nil {
		status, err := record.ParseStatus(*s)
		if err != nil {
			return p, err
		}
		p.Status = &status
	}
	return p, nil
}

// promptRecord asks for the record fields, starting from r.
func promptRecord(r record.Record) (record.Record, error) {
	status := string(r.Status)
	options := make([]string, 0, len(record.Statuses()))
	for _, s := range record.Statuses() {
		options = append(options, string(s))
	}
	required := func(msg string) func(string) error {
		return func(s string) error {
			if strings.TrimSpace(s) == "" {
				return errors.New(msg)
			}
			return nil
		}
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Company").Value(&r.Company).Validate(required("Company name is required")),
			huh.NewInput().Title("Position").Value(&r.Position).Validate(required("Position is required")),
			huh.NewInput().Title("Date").Description("YYYY-MM-DD").Value(&r.Date).Validate(func(s string) error {
				_, err := record.ParseDate(s, time.Now())
				return err
			}),
			huh.NewSelect[string]().Title("Status").Options(huh.NewOptions(options...)...).Value(&status),
		),
		huh.NewGroup(
			huh.NewInput().Title("Source").Placeholder("LinkedIn, referral, ...").Value(&r.Source),
			huh.NewInput().Title("Salary").Value(&r.Salary),
			huh.NewText().Title("Notes").Value(&r.Notes),
		),
	)
	if err := form.Run(); err != nil {
		return r, err
	}

	date, err := record.ParseDate(r.Date, time.Now())
	if err != nil {
		return r, err
	}
	r.Date = date
	r.Status = record.Status(status)
	return r, nil
}

func parseID(s string) int64 {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		fatalf("Error: invalid id %q", s)
	}
	return id
}

func statusList() string {
	names := make([]string, 0, len(record.Statuses()))
	for _, s := range record.Statuses() {
		names = append(names, string(s))
	}
	return strings.Join(names, ", ")
}

func init() {
	addFieldFlags(addCmd)
	addFieldFlags(editCmd)
	listCmd.Flags().StringP("status", "s", "", "Only show this stage (or \"All\")")
	listCmd.Flags().Bool("json", false, "Output as JSON")
	statsCmd.Flags().Bool("json", false, "Output as JSON")

	rootCmd.AddCommand(addCmd, editCmd, statusCmd, deleteCmd, listCmd, statsCmd)
}
