// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/pdiddy/media-convert/internal/container"
	"github.com/pdiddy/media-convert/internal/convert"
	"github.com/pdiddy/media-convert/internal/history"
	"github.com/pdiddy/media-convert/internal/storage"
	"github.com/pdiddy/media-convert/pkg/types"
)

// app bundles the components a command needs. close releases them.
type app struct {
	dispatcher *convert.Dispatcher
	history    *history.Store
}

func (a *app) close() {
	if a.history != nil {
		a.history.Close()
	}
}

// newApp builds the dispatcher and its optional history and storage
// backends from cfg.
func newApp(ctx context.Context, cfg types.Config, logger *slog.Logger) (*app, error) {
	videos, err := newVideoConverter(ctx, cfg.Conversion)
	if err != nil {
		return nil, err
	}

	a := &app{}
	opts := convert.Options{
		Images:    convert.NewHEICConverter(cfg.Conversion.JPEGQuality),
		Videos:    videos,
		OutputDir: cfg.Paths.OutputDir,
		Timeout:   cfg.Conversion.Timeout,
		Logger:    logger,
	}

	if cfg.History.Enabled {
		store, err := history.NewStore(history.ResolvePath(cfg.History, cfg.Paths.DataDir), cfg.History.MaxResults)
		if err != nil {
			return nil, fmt.Errorf("opening history: %w", err)
		}
		a.history = store
		opts.Recorder = store
	}

	if cfg.Storage.Enabled {
		pub, err := storage.New(ctx, cfg.Storage, logger)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("connecting storage: %w", err)
		}
		opts.Publisher = pub
	}

	d, err := convert.NewDispatcher(opts)
	if err != nil {
		a.close()
		return nil, err
	}
	a.dispatcher = d
	return a, nil
}

func newVideoConverter(ctx context.Context, cfg types.ConversionConfig) (*convert.FFmpegConverter, error) {
	var conv *convert.FFmpegConverter
	switch cfg.FFmpegBackend {
	case types.BackendContainer:
		rt, err := container.DetectRuntime(ctx)
		if err != nil {
			return nil, err
		}
		conv, err = convert.NewContainerFFmpegConverter(ctx, rt, cfg.FFmpegImage)
		if err != nil {
			return nil, err
		}
	default:
		conv = convert.NewFFmpegConverter(cfg.FFmpegBin)
	}
	if cfg.VerifyOutput {
		conv.WithVerification(convert.NewFFprobe(cfg.FFprobeBin))
	}
	return conv, nil
}

// ensureDirs creates the working directories the service writes to.
func ensureDirs(paths types.PathsConfig) error {
	for _, dir := range []string{paths.UploadDir, paths.OutputDir, paths.DataDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return nil
}
