// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/dcrm-diagnostics/internal/results"
	"github.com/pdiddy/dcrm-diagnostics/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the diagnostics HTTP API",
	Long: `Serve exposes the feature-dict diagnostics, the advanced models, windowed
attribution and CSV uploads over HTTP. Artifact sets load on first request;
use --preload to load them at startup. When a results database is set every
upload is persisted and can be read back with the results command.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default :8000)")
	serveCmd.Flags().Int("upload-row-limit", 0, "rows diagnosed per upload (default 50)")
	serveCmd.Flags().StringSlice("cors-origin", nil, "allowed CORS origin (repeatable; default all)")
	serveCmd.Flags().Bool("production", false, "JSON logs and gin release mode")
	serveCmd.Flags().Bool("preload", false, "load every artifact set before serving")

	_ = viper.BindPFlag(keyAddr, serveCmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag(keyUploadRowLimit, serveCmd.Flags().Lookup("upload-row-limit"))
	_ = viper.BindPFlag(keyCORSOrigins, serveCmd.Flags().Lookup("cors-origin"))
	_ = viper.BindPFlag(keyProduction, serveCmd.Flags().Lookup("production"))

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig(viper.GetViper())
	svc := newService(cfg.Diagnostics)

	if preload, _ := cmd.Flags().GetBool("preload"); preload {
		if err := svc.Reload(); err != nil {
			logger.Slog.Warn("some artifact sets are unavailable at startup", "error", err)
		}
	}

	var opts []server.Option
	if cfg.Server.ResultsDB != "" {
		store, err := results.Open(cfg.Server.ResultsDB)
		if err != nil {
			return err
		}
		defer store.Close()
		opts = append(opts, server.WithRunStore(store))
		logger.Slog.Info("persisting uploads", "db", cfg.Server.ResultsDB)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.New(svc, cfg.Server, logger.Zap, opts...).Run(ctx)
}
