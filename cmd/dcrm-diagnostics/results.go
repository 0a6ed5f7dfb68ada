// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/dcrm-diagnostics/internal/results"
	"github.com/pdiddy/dcrm-diagnostics/pkg/types"
)

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Inspect persisted diagnosis runs (list, show, export, delete)",
	Long: `Results reads the SQLite database that serve writes uploads to (and that
predict --save writes to). Set it with --results-db or server.results_db.`,
}

// --- list subcommand ---

var resultsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List runs, newest first",
	RunE:  runResultsList,
}

func runResultsList(cmd *cobra.Command, args []string) error {
	store, err := openResults()
	if err != nil {
		return err
	}
	defer store.Close()

	opts, err := listOptsFromFlags(cmd)
	if err != nil {
		return err
	}
	runs, err := store.List(cmd.Context(), opts)
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		return writeJSON(cmd.OutOrStdout(), runs)
	}
	formatRuns(cmd.OutOrStdout(), runs)
	return nil
}

func formatRuns(w io.Writer, runs []types.RunSummary) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs found.")
		return
	}
	fmt.Fprintf(w, "%-36s  %-30s  %-20s  %-6s  %s\n", "ID", "Source", "Created", "Rows", "Faulty")
	fmt.Fprintln(w, strings.Repeat("-", 108))
	for _, r := range runs {
		fmt.Fprintf(w, "%-36s  %-30s  %-20s  %-6s  %d\n",
			r.ID, truncate(r.Source, 30), r.CreatedAt.Format(time.DateTime),
			fmt.Sprintf("%d/%d", r.ProcessedRows, r.TotalRows), r.FaultyRows)
	}
	fmt.Fprintf(w, "\n%d runs\n", len(runs))
}

// --- show subcommand ---

var resultsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one run with its diagnoses",
	Args:  cobra.ExactArgs(1),
	RunE:  runResultsShow,
}

func runResultsShow(cmd *cobra.Command, args []string) error {
	store, err := openResults()
	if err != nil {
		return err
	}
	defer store.Close()

	run, err := store.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		return writeJSON(out, run)
	}

	fmt.Fprintf(out, "Run %s\n", run.ID)
	fmt.Fprintf(out, "Source:  %s\n", run.Source)
	fmt.Fprintf(out, "Created: %s\n", run.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(out, "Rows:    %d of %d diagnosed, %d faulty\n\n", run.ProcessedRows, run.TotalRows, run.FaultyRows())
	formatDiagnoses(out, run.Diagnoses)
	if run.Advanced != nil {
		fmt.Fprintln(out)
		formatBatch(out, *run.Advanced)
	}
	if run.Attribution != nil {
		fmt.Fprintln(out)
		formatAttribution(out, run.Attribution)
	}
	return nil
}

// --- export subcommand ---

var resultsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export runs to YAML or JSON",
	Long: `Export writes the selected runs, diagnoses included, to --output or to
stdout. It accepts the same filters as list.`,
	RunE: runResultsExport,
}

func runResultsExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	output, _ := cmd.Flags().GetString("output")

	store, err := openResults()
	if err != nil {
		return err
	}
	defer store.Close()

	opts, err := listOptsFromFlags(cmd)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("creating %s: %w", output, err)
		}
		defer f.Close()
		w = f
	}

	switch format {
	case "yaml", "":
		err = store.ExportYAML(cmd.Context(), w, opts)
	case "json":
		err = store.ExportJSON(cmd.Context(), w, opts)
	default:
		return fmt.Errorf("unsupported format %q: use yaml or json", format)
	}
	if err != nil {
		return err
	}
	if output != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Exported to %s\n", output)
	}
	return nil
}

// --- delete subcommand ---

var resultsDeleteCmd = &cobra.Command{
	Use:   "delete <run-id>",
	Short: "Delete a run and its diagnoses",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openResults()
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted run %s\n", args[0])
		return nil
	},
}

// --- shared helpers ---

func openResults() (*results.Store, error) {
	path := viper.GetString(keyResultsDB)
	if path == "" {
		return nil, fmt.Errorf("no results database: set --results-db or server.results_db")
	}
	return results.Open(path)
}

func listOptsFromFlags(cmd *cobra.Command) (results.ListOptions, error) {
	limit, _ := cmd.Flags().GetInt("limit")
	faulty, _ := cmd.Flags().GetBool("faulty")
	since, _ := cmd.Flags().GetDuration("since")

	opts := results.ListOptions{Limit: limit, FaultyOnly: faulty}
	if since < 0 {
		return opts, fmt.Errorf("--since must be positive")
	}
	if since > 0 {
		opts.Since = time.Now().Add(-since)
	}
	return opts, nil
}

func init() {
	for _, c := range []*cobra.Command{resultsListCmd, resultsExportCmd} {
		c.Flags().Bool("faulty", false, "only runs with at least one faulty diagnosis")
		c.Flags().Duration("since", 0, "only runs created within this duration (e.g. 24h)")
	}
	resultsListCmd.Flags().Int("limit", 0, "maximum runs (0 = default 20)")
	resultsListCmd.Flags().Bool("json", false, "output as JSON")

	resultsShowCmd.Flags().Bool("json", false, "output as JSON")

	resultsExportCmd.Flags().Int("limit", 0, "maximum runs (0 = all)")
	resultsExportCmd.Flags().String("format", "yaml", "export format: yaml or json")
	resultsExportCmd.Flags().String("output", "", "write to this file instead of stdout")

	resultsCmd.AddCommand(resultsListCmd)
	resultsCmd.AddCommand(resultsShowCmd)
	resultsCmd.AddCommand(resultsExportCmd)
	resultsCmd.AddCommand(resultsDeleteCmd)

	rootCmd.AddCommand(resultsCmd)
}
