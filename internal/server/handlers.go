// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"context"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/pdiddy/media-convert/internal/config"
	"github.com/pdiddy/media-convert/internal/convert"
	"github.com/pdiddy/media-convert/internal/history"
	"github.com/pdiddy/media-convert/internal/logging"
	"github.com/pdiddy/media-convert/pkg/types"
)

// FormField is the multipart field that carries uploaded files.
const FormField = "files"

// MessageConversionFailed is the error text for request-level failures.
const MessageConversionFailed = "Conversion failed"

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, types.HealthResponse{Status: "ok"})
}

func (s *Server) handleConvert(c *gin.Context) {
	ctx := c.Request.Context()
	logger := logging.WithContext(ctx, s.logger)

	if limit := config.MaxUploadBytes(s.cfg); limit > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	}

	form, err := c.MultipartForm()
	if err != nil {
		s.fail(c, fmt.Errorf("parsing upload: %w", err))
		return
	}
	defer form.RemoveAll()

	headers := form.File[FormField]
	uploads := make([]types.Upload, 0, len(headers))
	for _, fh := range headers {
		up, err := s.saveUpload(c, fh)
		if err != nil {
			for _, saved := range uploads {
				_ = os.Remove(saved.TempPath)
			}
			s.fail(c, err)
			return
		}
		uploads = append(uploads, up)
	}

	logger.Info("conversion request", slog.Int("files", len(uploads)))
	results, summary := s.converter.ConvertBatch(ctx, uploads)
	s.notifyBatch(ctx, summary)

	c.JSON(http.StatusOK, types.ConvertResponse{Files: results})
}

// saveUpload stores one multipart file in the upload directory under a
// uuid name that keeps the original extension.
func (s *Server) saveUpload(c *gin.Context, fh *multipart.FileHeader) (types.Upload, error) {
	ext := convert.Ext(fh.Filename)
	dst := filepath.Join(s.uploadDir, uuid.NewString()+ext)
	if err := c.SaveUploadedFile(fh, dst); err != nil {
		return types.Upload{}, fmt.Errorf("saving upload %s: %w", fh.Filename, err)
	}
	return convert.NewUpload(fh.Filename, dst, fh.Size), nil
}

func (s *Server) notifyBatch(ctx context.Context, summary convert.Summary) {
	if s.notifier == nil || summary.Total() == 0 {
		return
	}
	logger := logging.WithContext(ctx, s.logger)
	ctx = context.WithoutCancel(ctx)
	s.background.Go(func() {
		ctx, cancel := context.WithTimeout(ctx, notifyTimeout)
		defer cancel()
		if err := s.notifier.NotifyBatch(ctx, summary); err != nil {
			logger.Warn("batch notification failed", slog.String("error", err.Error()))
		}
	})
}

func (s *Server) handleHistory(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusOK, gin.H{"conversions": []types.ConversionRecord{}})
		return
	}

	opts := history.QueryOptions{
		Type:      types.FileKind(c.Query("type")),
		Name:      c.Query("name"),
		RequestID: c.Query("request_id"),
	}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, types.ErrorResponse{Error: "Invalid limit", Details: raw})
			return
		}
		opts.MaxResults = n
	}

	records, err := s.history.List(c.Request.Context(), opts)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, types.ErrorResponse{Error: "History unavailable", Details: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversions": records})
}

func (s *Server) fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, types.ErrorResponse{
		Error:   MessageConversionFailed,
		Details: err.Error(),
	})
}
