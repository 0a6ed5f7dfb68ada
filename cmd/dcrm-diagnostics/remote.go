// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/dcrm-diagnostics/internal/artifact"
	"github.com/pdiddy/dcrm-diagnostics/internal/client"
	"github.com/pdiddy/dcrm-diagnostics/internal/frame"
	"github.com/pdiddy/dcrm-diagnostics/pkg/types"
)

const (
	defaultRemoteURL     = "http://localhost:8000"
	defaultRemoteTimeout = 30 * time.Second
)

var remoteCmd = &cobra.Command{
	Use:   "remote",
	Short: "Call a running diagnostics server",
	Long: `Remote sends requests to a dcrm-diagnostics server. Responses of 429 and
503 (artifacts not loaded yet) are retried with backoff.`,
}

var remoteStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Fetch the advanced model status",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := remoteClient(cmd)
		st, err := c.Status(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			return writeJSON(cmd.OutOrStdout(), st)
		}
		return writeYAML(cmd.OutOrStdout(), st)
	},
}

var remoteFeaturesCmd = &cobra.Command{
	Use:   "features",
	Short: "Fetch the advanced feature space",
	RunE: func(cmd *cobra.Command, args []string) error {
		fs, err := remoteClient(cmd).FeatureSpace(cmd.Context())
		if err != nil {
			return err
		}
		for _, f := range fs.Features {
			fmt.Fprintln(cmd.OutOrStdout(), f)
		}
		return nil
	},
}

var remotePredictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Diagnose a CSV file on the server",
	RunE:  runRemotePredict,
}

func runRemotePredict(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("file")
	if path == "" {
		return fmt.Errorf("--file is required")
	}
	layout, _ := cmd.Flags().GetString("layout")
	limit, _ := cmd.Flags().GetInt("limit")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	table, err := frame.ReadFile(path, frame.Options{HeaderMarker: frame.DCRMHeaderMarker, MarkerOptional: true})
	if err != nil {
		return err
	}
	rows := table.Head(limit).Rows()
	c := remoteClient(cmd)
	out := cmd.OutOrStdout()

	switch layout {
	case artifact.LayoutDCRM:
		diags := make([]types.Diagnosis, 0, len(rows))
		for i, row := range rows {
			d, err := c.PredictFeatures(cmd.Context(), row)
			if err != nil {
				return fmt.Errorf("row %d: %w", i, err)
			}
			d.RowIndex = i
			diags = append(diags, d)
		}
		if jsonOutput {
			return writeJSON(out, diags)
		}
		formatDiagnoses(out, diags)
		return nil

	case artifact.LayoutAdvanced:
		res, err := c.PredictBatch(cmd.Context(), rows)
		if err != nil {
			return err
		}
		if jsonOutput {
			return writeJSON(out, res)
		}
		formatBatch(out, res)
		return nil

	default:
		return fmt.Errorf("unsupported layout %q: use dcrm or advanced", layout)
	}
}

func remoteClient(cmd *cobra.Command) *client.Client {
	url, _ := cmd.Flags().GetString("url")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	if timeout == 0 {
		timeout = defaultRemoteTimeout
	}
	retries, _ := cmd.Flags().GetInt("max-retries")

	return client.New(strings.TrimRight(url, "/"), types.HTTPConfig{
		Timeout:    timeout,
		UserAgent:  "dcrm-diagnostics/" + version,
		MaxRetries: retries,
	}, logger.Slog)
}

func init() {
	remoteCmd.PersistentFlags().String("url", defaultRemoteURL, "server base URL")
	remoteCmd.PersistentFlags().Duration("timeout", 0, "HTTP request timeout (default 30s)")
	remoteCmd.PersistentFlags().Int("max-retries", 0, "retries on 429/503 (default 5)")
	remoteCmd.PersistentFlags().Bool("json", false, "output as JSON")

	remotePredictCmd.Flags().String("file", "", "CSV test file")
	remotePredictCmd.Flags().String("layout", artifact.LayoutAdvanced, "inference path: dcrm or advanced")
	remotePredictCmd.Flags().Int("limit", 0, "send at most this many rows (0 = all)")

	remoteCmd.AddCommand(remoteStatusCmd)
	remoteCmd.AddCommand(remoteFeaturesCmd)
	remoteCmd.AddCommand(remotePredictCmd)

	rootCmd.AddCommand(remoteCmd)
}
