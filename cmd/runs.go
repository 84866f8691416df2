package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/leads-cli/internal/model"
	"github.com/sells-group/leads-cli/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect lead run history",
	Long:  "Commands for listing and viewing past lead generation runs.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List runs, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		status, _ := cmd.Flags().GetString("status")
		source, _ := cmd.Flags().GetString("source")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := st.ListRuns(ctx, store.RunFilter{
			Status: model.RunStatus(status),
			Source: source,
			Limit:  limit,
		})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show full details of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}
		return writeJSON(os.Stdout, run)
	},
}

// -- runs last --

var runsLastCmd = &cobra.Command{
	Use:   "last",
	Short: "Show the most recent completed run",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.LatestCompletedRun(ctx)
		if err != nil {
			return eris.Wrap(err, "runs last")
		}

		asJSON, _ := cmd.Flags().GetBool("json")
		if asJSON || run.Result == nil {
			return writeJSON(os.Stdout, run)
		}
		printResult(os.Stdout, run.Result)
		return nil
	},
}

func init() {
	runsListCmd.Flags().String("status", "", "filter by run status (running, complete, cancelled, failed)")
	runsListCmd.Flags().String("source", "", "filter by discovery source")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")

	runsLastCmd.Flags().Bool("json", false, "print the full run as JSON")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsLastCmd)
	rootCmd.AddCommand(runsCmd)
}

// formatRunsList writes a table of runs to out.
func formatRunsList(out io.Writer, runs []model.Run) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.AppendHeader(table.Row{"id", "query", "source", "status", "outcome", "leads", "created", "duration"})

	for _, r := range runs {
		query := r.Query.Niche
		if r.Query.Location != "" {
			query += " @ " + r.Query.Location
		}
		if len(query) > 40 {
			query = query[:37] + "..."
		}

		outcome, leads := "", ""
		if r.Result != nil {
			outcome = string(r.Result.Outcome)
			leads = fmt.Sprintf("%d", len(r.Result.Leads))
		}

		t.AppendRow(table.Row{
			truncateID(r.ID),
			query,
			r.Query.Source,
			r.Status,
			outcome,
			leads,
			r.CreatedAt.Format("2006-01-02 15:04"),
			r.UpdatedAt.Sub(r.CreatedAt).Round(time.Second).String(),
		})
	}
	t.Render()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
