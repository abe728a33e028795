// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/media-convert/internal/config"
	"github.com/pdiddy/media-convert/internal/deps"
	"github.com/pdiddy/media-convert/internal/notify"
	"github.com/pdiddy/media-convert/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP conversion server",
	Long: `Serve starts the HTTP API:

  POST /api/convert      multipart upload, field "files"
  GET  /api/health       liveness check
  GET  /api/history      recent conversions
  GET  /converted/<name> converted files

The server stops gracefully on SIGINT or SIGTERM.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := appConfig
	if err := ensureDirs(cfg.Paths); err != nil {
		return err
	}

	for _, name := range deps.MissingRequired(deps.Check(cfg.Conversion)) {
		logger.Warn("dependency missing; video conversions will fail", slog.String("dependency", name))
	}

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	opts := server.Options{
		Config:    cfg.Server,
		UploadDir: cfg.Paths.UploadDir,
		Converter: a.dispatcher,
		Notifier:  notify.NewService(cfg.Notify),
		Logger:    logger,
	}
	if a.history != nil {
		opts.History = a.history
	}
	srv, err := server.New(opts)
	if err != nil {
		return err
	}

	logger.Info("media-convert starting",
		slog.String("version", version),
		slog.String("addr", cfg.Server.Addr),
		slog.String("output_dir", cfg.Paths.OutputDir),
		slog.String("ffmpeg_backend", string(cfg.Conversion.FFmpegBackend)),
	)
	if err := srv.Run(ctx); err != nil && err != context.Canceled {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default "+config.DefaultAddr+")")
	serveCmd.Flags().String("upload-dir", "", "directory for temporary uploads")
	serveCmd.Flags().String("output-dir", "", "directory converted files are written to and served from")

	_ = viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("paths.upload_dir", serveCmd.Flags().Lookup("upload-dir"))
	_ = viper.BindPFlag("paths.output_dir", serveCmd.Flags().Lookup("output-dir"))

	rootCmd.AddCommand(serveCmd)
}
