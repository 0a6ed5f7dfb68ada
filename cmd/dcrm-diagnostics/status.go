// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/dcrm-diagnostics/internal/artifact"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Describe an artifact set without running inference",
	Long: `Status lists the artifacts found in a layout's directory and, when the
set loads, its feature count, class labels and available models. A set that
does not load is still listed, and the command exits non-zero.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().String("layout", artifact.LayoutAdvanced, "artifact set: dcrm, advanced or attribution")
	statusCmd.Flags().Bool("json", false, "output as JSON (default YAML)")

	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	layout, _ := cmd.Flags().GetString("layout")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	svc := newService(loadConfig(viper.GetViper()).Diagnostics)
	st, statusErr := svc.StatusFor(layout)
	if st.Layout == "" {
		return statusErr
	}

	out := cmd.OutOrStdout()
	var err error
	if jsonOutput {
		err = writeJSON(out, st)
	} else {
		err = writeYAML(out, st)
	}
	if err != nil {
		return err
	}
	return statusErr
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding yaml: %w", err)
	}
	return enc.Close()
}
