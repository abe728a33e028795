// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package server exposes the conversion service over HTTP: uploads are
// accepted on /api/convert, converted files are served under /converted.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pdiddy/media-convert/internal/convert"
	"github.com/pdiddy/media-convert/internal/history"
	"github.com/pdiddy/media-convert/internal/logging"
	"github.com/pdiddy/media-convert/internal/notify"
	"github.com/pdiddy/media-convert/pkg/types"
)

const (
	defaultShutdownTimeout = 10 * time.Second
	notifyTimeout          = 30 * time.Second
)

// BatchConverter converts a request's uploads. *convert.Dispatcher
// implements it.
type BatchConverter interface {
	ConvertBatch(ctx context.Context, uploads []types.Upload) ([]types.Result, convert.Summary)
	OutputDir() string
}

// HistoryLister lists past conversions. *history.Store implements it.
type HistoryLister interface {
	List(ctx context.Context, opts history.QueryOptions) ([]types.ConversionRecord, error)
}

// Options configures a Server. Converter and UploadDir are required.
type Options struct {
	Config    types.ServerConfig
	UploadDir string
	Converter BatchConverter
	History   HistoryLister
	Notifier  notify.Service
	Logger    *slog.Logger
}

// Server is the HTTP front end of the converter.
type Server struct {
	cfg        types.ServerConfig
	uploadDir  string
	converter  BatchConverter
	history    HistoryLister
	notifier   notify.Service
	logger     *slog.Logger
	engine     *gin.Engine
	background sync.WaitGroup
}

// New builds the router. The upload directory must already exist.
func New(opts Options) (*Server, error) {
	if opts.Converter == nil {
		return nil, errors.New("server: converter is required")
	}
	if strings.TrimSpace(opts.UploadDir) == "" {
		return nil, errors.New("server: upload directory is required")
	}
	s := &Server{
		cfg:       opts.Config,
		uploadDir: opts.UploadDir,
		converter: opts.Converter,
		history:   opts.History,
		notifier:  opts.Notifier,
		logger:    logging.Component(opts.Logger, "server"),
	}
	s.engine = s.routes()
	return s, nil
}

func (s *Server) routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.MaxMultipartMemory = 32 << 20
	r.Use(requestID(), accessLog(s.logger), recovery(s.logger), corsMiddleware(s.cfg.CORSOrigins))

	api := r.Group("/api")
	{
		api.GET("/health", s.handleHealth)
		api.POST("/convert", s.handleConvert)
		api.GET("/history", s.handleHistory)
	}
	r.Static(convert.DefaultURLPrefix, s.converter.OutputDir())
	return r
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.engine }

// Wait blocks until background work started by requests has finished.
func (s *Server) Wait() { s.background.Wait() }

// Run listens on the configured address and serves until ctx is cancelled,
// then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, listener)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(listener)
	}()
	s.logger.Info("listening", slog.String("address", listener.Addr().String()))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.logger.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.background.Wait()
	return nil
}
