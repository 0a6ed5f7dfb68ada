// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/dcrm-diagnostics/internal/artifact"
	"github.com/pdiddy/dcrm-diagnostics/internal/frame"
	"github.com/pdiddy/dcrm-diagnostics/internal/results"
	"github.com/pdiddy/dcrm-diagnostics/pkg/types"
)

// --- features subcommand ---

var featuresCmd = &cobra.Command{
	Use:   "features",
	Short: "List the feature schema of an artifact set",
	RunE:  runFeatures,
}

func runFeatures(cmd *cobra.Command, args []string) error {
	layout, _ := cmd.Flags().GetString("layout")
	svc := newService(loadConfig(viper.GetViper()).Diagnostics)

	m := svc.Manager(layout)
	if m == nil {
		return fmt.Errorf("unknown layout %q: use dcrm, advanced or attribution", layout)
	}
	b, err := m.EnsureReady()
	if err != nil {
		return err
	}
	for _, name := range b.Schema.Names() {
		fmt.Fprintln(cmd.OutOrStdout(), name)
	}
	return nil
}

// --- predict subcommand ---

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Diagnose the rows of a CSV test file",
	Long: `Predict reads a CSV file and diagnoses its rows locally. The dcrm layout
runs the feature-dict classifier pair on each row; the advanced layout runs
the encoded batch path with the reconstruction anomaly signal. Files with a
preamble are read from the row carrying the coil-current header.`,
	RunE: runPredict,
}

func runPredict(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("file")
	if path == "" {
		return fmt.Errorf("--file is required")
	}
	layout, _ := cmd.Flags().GetString("layout")
	limit, _ := cmd.Flags().GetInt("limit")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	save, _ := cmd.Flags().GetBool("save")

	table, err := frame.ReadFile(path, frame.Options{HeaderMarker: frame.DCRMHeaderMarker, MarkerOptional: true})
	if err != nil {
		return err
	}
	if table.Len() == 0 {
		return fmt.Errorf("%s has no data rows", path)
	}
	rows := table.Head(limit).Rows()

	cfg := loadConfig(viper.GetViper())
	svc := newService(cfg.Diagnostics)
	out := cmd.OutOrStdout()

	switch layout {
	case artifact.LayoutDCRM:
		diags := make([]types.Diagnosis, 0, len(rows))
		for i, row := range rows {
			d, err := svc.PredictFeatures(row)
			if err != nil {
				return fmt.Errorf("row %d: %w", i, err)
			}
			d.RowIndex = i
			diags = append(diags, d)
		}
		if save {
			run := &types.Run{
				Source:        filepath.Base(path),
				TotalRows:     table.Len(),
				ProcessedRows: len(diags),
				Diagnoses:     diags,
			}
			if err := saveRun(cmd.Context(), cfg.Server.ResultsDB, run); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Saved run %s\n", run.ID)
		}
		if jsonOutput {
			return writeJSON(out, diags)
		}
		formatDiagnoses(out, diags)
		return nil

	case artifact.LayoutAdvanced:
		res, err := svc.PredictBatch(rows)
		if err != nil {
			return err
		}
		if jsonOutput {
			if err := writeJSON(out, res); err != nil {
				return err
			}
		} else {
			formatBatch(out, res)
		}
		if res.HasFailures() {
			return fmt.Errorf("%d row(s) failed", res.Failed())
		}
		return nil

	default:
		return fmt.Errorf("unsupported layout %q: use dcrm or advanced", layout)
	}
}

func saveRun(ctx context.Context, dbPath string, run *types.Run) error {
	if dbPath == "" {
		return fmt.Errorf("--save needs a results database (--results-db or server.results_db)")
	}
	store, err := results.Open(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.Save(ctx, run)
}

func formatDiagnoses(w io.Writer, diags []types.Diagnosis) {
	fmt.Fprintf(w, "%-5s  %-24s  %-10s  %-24s  %s\n", "Row", "Diagnosis", "Confidence", "Secondary", "Status")
	fmt.Fprintln(w, strings.Repeat("-", 80))
	faulty := 0
	for _, d := range diags {
		if d.Status != types.StatusHealthy {
			faulty++
		}
		fmt.Fprintf(w, "%-5d  %-24s  %9.2f%%  %-24s  %s\n",
			d.RowIndex, truncate(d.Diagnosis, 24), d.Confidence, truncate(d.SecondaryDiagnosis, 24), d.Status)
	}
	fmt.Fprintf(w, "\n%d rows, %d faulty\n", len(diags), faulty)
}

func formatBatch(w io.Writer, res types.BatchResult) {
	fmt.Fprintf(w, "%-5s  %-24s  %-10s  %-24s  %-12s  %s\n",
		"Row", "Primary", "Confidence", "Secondary", "Recon error", "Anomaly")
	fmt.Fprintln(w, strings.Repeat("-", 96))
	for _, r := range res.Results {
		recon, anomaly := "-", "-"
		if r.Reconstruction != nil {
			recon = fmt.Sprintf("%.4f", r.Reconstruction.ReconstructionError)
			anomaly = fmt.Sprintf("%t", r.Reconstruction.IsAnomaly)
		}
		fmt.Fprintf(w, "%-5d  %-24s  %9.2f%%  %-24s  %-12s  %s\n",
			r.RowIndex, truncate(r.Primary.Label, 24), r.Primary.Confidence,
			truncate(r.Secondary.Label, 24), recon, anomaly)
	}
	for _, e := range res.Errors {
		fmt.Fprintf(w, "row %d failed: %s\n", e.RowIndex, e.Error)
	}
	fmt.Fprintf(w, "\n%d succeeded, %d failed\n", res.Succeeded(), res.Failed())
}

// --- explain subcommand ---

var explainCmd = &cobra.Command{
	Use:   "explain",
	Short: "Attribute a waveform diagnosis to channels over time windows",
	Long: `Explain reads a DCRM waveform CSV, splits its time axis into windows and
reports, per model, how much each channel group (resistance, travel,
current) contributed to the prediction in each window. Scores are
normalised to [0,1] per channel.`,
	RunE: runExplain,
}

func runExplain(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("file")
	if path == "" {
		return fmt.Errorf("--file is required")
	}
	windowMs, _ := cmd.Flags().GetFloat64("window-ms")
	marker, _ := cmd.Flags().GetString("header-marker")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	table, err := frame.ReadFile(path, frame.Options{HeaderMarker: marker, MarkerOptional: true})
	if err != nil {
		return err
	}

	svc := newService(loadConfig(viper.GetViper()).Diagnostics)
	res, err := svc.Explain(table.Waveform(), windowMs)
	if err != nil {
		return err
	}
	if jsonOutput {
		return writeJSON(cmd.OutOrStdout(), res)
	}
	formatAttribution(cmd.OutOrStdout(), res)
	return nil
}

func formatAttribution(w io.Writer, res *types.AttributionResult) {
	fmt.Fprintf(w, "%d windows", len(res.Windows))
	if n := len(res.Windows); n > 0 {
		fmt.Fprintf(w, " (%.2f-%.2f ms)", res.Windows[0].StartMs, res.Windows[n-1].EndMs)
	}
	fmt.Fprintln(w)

	for _, name := range []string{types.ModelXGBoost, types.ModelAdaBoost} {
		attr, ok := res.Attributions[name]
		if !ok {
			continue
		}
		fmt.Fprintf(w, "\n%s\n", name)
		for _, g := range types.ChannelGroups {
			scores := attr[g]
			cells := make([]string, len(scores))
			for i, v := range scores {
				cells[i] = fmt.Sprintf("%.2f", v)
			}
			fmt.Fprintf(w, "  %-10s  %s\n", g, strings.Join(cells, " "))
		}
	}
	if len(res.Degraded) > 0 {
		fmt.Fprintf(w, "\nfell back to zeros: %s\n", strings.Join(res.Degraded, ", "))
	}
}

// --- shared helpers ---

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func init() {
	featuresCmd.Flags().String("layout", artifact.LayoutDCRM, "artifact set: dcrm, advanced or attribution")

	predictCmd.Flags().String("file", "", "CSV test file")
	predictCmd.Flags().String("layout", artifact.LayoutDCRM, "inference path: dcrm or advanced")
	predictCmd.Flags().Int("limit", 0, "diagnose at most this many rows (0 = all)")
	predictCmd.Flags().Bool("json", false, "output results as JSON")
	predictCmd.Flags().Bool("save", false, "persist the run to the results database (dcrm layout)")

	explainCmd.Flags().String("file", "", "waveform CSV file")
	explainCmd.Flags().Float64("window-ms", 0, "window width in ms (0 = configured default)")
	explainCmd.Flags().String("header-marker", frame.DCRMHeaderMarker, "cell that marks the header row")
	explainCmd.Flags().Bool("json", false, "output the attribution as JSON")

	rootCmd.AddCommand(featuresCmd)
	rootCmd.AddCommand(predictCmd)
	rootCmd.AddCommand(explainCmd)
}
