// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the dcrm-diagnostics CLI. It serves
// the diagnostics API, runs the same inference locally against CSV test
// files, and manages persisted upload runs.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/dcrm-diagnostics/internal/diagnostics"
	"github.com/pdiddy/dcrm-diagnostics/internal/logging"
	"github.com/pdiddy/dcrm-diagnostics/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// Viper keys. Nested keys map to DCRM_DIAGNOSTICS_<KEY> with dots as
// underscores.
const (
	keyDCRMModelDir        = "diagnostics.artifacts.dcrm_model_dir"
	keyAdvancedModelDir    = "diagnostics.artifacts.advanced_model_dir"
	keyAttributionModelDir = "diagnostics.artifacts.attribution_model_dir"
	keySentinel            = "diagnostics.sentinel_value"
	keyWindowSizeMs        = "diagnostics.window_size_ms"
	keySampleIntervalMs    = "diagnostics.sample_interval_ms"
	keyAddr                = "server.addr"
	keyProduction          = "server.production"
	keyUploadRowLimit      = "server.upload_row_limit"
	keyMaxUploadBytes      = "server.max_upload_bytes"
	keyCORSOrigins         = "server.cors_origins"
	keyResultsDB           = "server.results_db"
)

// legacyEnv keeps the environment variable names deployments already set.
var legacyEnv = map[string]string{
	keyDCRMModelDir:        "DCRM_MODEL_DIR",
	keyAdvancedModelDir:    "ADVANCED_MODEL_DIR",
	keyAttributionModelDir: "ATTRIBUTION_MODEL_DIR",
	keyUploadRowLimit:      "UPLOAD_DIAGNOSTIC_ROW_LIMIT",
}

// logger is built once flags are parsed.
var logger = logging.Nop()

var rootCmd = &cobra.Command{
	Use:   "dcrm-diagnostics",
	Short: "Circuit-breaker DCRM diagnostics",
	Long: `dcrm-diagnostics classifies circuit-breaker Dynamic Contact Resistance
Measurement tests with pre-trained models, flags reconstruction anomalies,
and explains waveform diagnoses over time windows.

Use serve to expose the HTTP API, or predict, explain and status to run the
same inference locally. Artifacts are read from the directories configured
under diagnostics.artifacts and loaded on first use.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbose, _ := cmd.Flags().GetBool("verbose")
		l, err := logging.New(viper.GetBool(keyProduction), verbose)
		if err != nil {
			return fmt.Errorf("building logger: %w", err)
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./dcrm-diagnostics.yaml or ~/.config/dcrm-diagnostics/config.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().String("dcrm-model-dir", "", "directory of the feature-dict classifier pair")
	rootCmd.PersistentFlags().String("advanced-model-dir", "", "directory of the advanced artifact set")
	rootCmd.PersistentFlags().String("attribution-model-dir", "", "directory of the attribution models")
	rootCmd.PersistentFlags().String("results-db", "", "SQLite file of persisted runs (serve persists nothing when empty)")

	_ = viper.BindPFlag(keyDCRMModelDir, rootCmd.PersistentFlags().Lookup("dcrm-model-dir"))
	_ = viper.BindPFlag(keyAdvancedModelDir, rootCmd.PersistentFlags().Lookup("advanced-model-dir"))
	_ = viper.BindPFlag(keyAttributionModelDir, rootCmd.PersistentFlags().Lookup("attribution-model-dir"))
	_ = viper.BindPFlag(keyResultsDB, rootCmd.PersistentFlags().Lookup("results-db"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("dcrm-diagnostics")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "dcrm-diagnostics"))
		}
	}

	viper.SetEnvPrefix("DCRM_DIAGNOSTICS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	for key, env := range legacyEnv {
		_ = viper.BindEnv(key, "DCRM_DIAGNOSTICS_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env)
	}

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig reads the effective configuration from v. Zero values are
// filled in by the consuming packages.
func loadConfig(v *viper.Viper) types.ServiceConfig {
	cfg := types.ServiceConfig{
		Diagnostics: types.DiagnosticsConfig{
			Artifacts: types.ArtifactsConfig{
				DCRMModelDir:        v.GetString(keyDCRMModelDir),
				AdvancedModelDir:    v.GetString(keyAdvancedModelDir),
				AttributionModelDir: v.GetString(keyAttributionModelDir),
			},
			WindowSizeMs:     v.GetInt(keyWindowSizeMs),
			SampleIntervalMs: v.GetFloat64(keySampleIntervalMs),
		},
		Server: types.ServerConfig{
			Addr:           v.GetString(keyAddr),
			Production:     v.GetBool(keyProduction),
			UploadRowLimit: v.GetInt(keyUploadRowLimit),
			MaxUploadBytes: v.GetInt64(keyMaxUploadBytes),
			CORSOrigins:    v.GetStringSlice(keyCORSOrigins),
			ResultsDB:      v.GetString(keyResultsDB),
		},
	}
	if v.IsSet(keySentinel) {
		s := v.GetFloat64(keySentinel)
		cfg.Diagnostics.SentinelValue = &s
	}
	return cfg
}

func newService(cfg types.DiagnosticsConfig) *diagnostics.Service {
	return diagnostics.New(cfg, diagnostics.WithLogger(logger.Slog))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
