// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert routes uploaded files to the matching converter: HEIC/HEIF
// images are re-encoded as JPEG, MOV/QT videos are transcoded to MP4, and
// everything else is reported as unsupported.
//
// Files are processed one at a time. A failure on one file becomes an error
// result for that file and never stops the rest of the batch. The temporary
// upload is removed once its file has been processed, whatever the outcome.
package convert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/pdiddy/media-convert/internal/logging"
	"github.com/pdiddy/media-convert/pkg/types"
)

const (
	// DefaultURLPrefix is the route under which the output directory is served.
	DefaultURLPrefix = "/converted"

	// MessageUnsupported is reported for files that are neither HEIC/HEIF nor MOV/QT.
	MessageUnsupported = "Only HEIC/HEIF and MOV files are supported"

	// MessageConversionError is used when a converter fails without a message.
	MessageConversionError = "Conversion error"
)

// Converter transforms the file at inputPath and writes the result to
// outputPath. Image and video backends implement this interface.
type Converter interface {
	Convert(ctx context.Context, inputPath, outputPath string) error
}

// Publisher mirrors a converted file to remote storage and returns the
// object key it was stored under.
type Publisher interface {
	Publish(ctx context.Context, localPath, name string) (string, error)
}

// Recorder persists one history record per processed file.
type Recorder interface {
	Record(ctx context.Context, rec types.ConversionRecord) error
}

// Summary counts the outcomes of a batch.
type Summary struct {
	Converted   int
	Unsupported int
	Failed      int
	BytesIn     int64
	Duration    time.Duration
}

// Total returns the number of files processed.
func (s Summary) Total() int {
	return s.Converted + s.Unsupported + s.Failed
}

// HasFailures reports whether any file failed conversion.
func (s Summary) HasFailures() bool {
	return s.Failed > 0
}

// Options configures a Dispatcher. Images and Videos are required.
type Options struct {
	Images    Converter
	Videos    Converter
	OutputDir string
	// URLPrefix defaults to DefaultURLPrefix.
	URLPrefix string
	// Timeout bounds each file; zero means no limit beyond the caller's context.
	Timeout   time.Duration
	Publisher Publisher
	Recorder  Recorder
	Logger    *slog.Logger
}

// Dispatcher classifies uploads and invokes the matching converter.
type Dispatcher struct {
	images    Converter
	videos    Converter
	outputDir string
	urlPrefix string
	timeout   time.Duration
	publisher Publisher
	recorder  Recorder
	logger    *slog.Logger
	now       func() time.Time
}

// NewDispatcher validates opts and creates the output directory.
func NewDispatcher(opts Options) (*Dispatcher, error) {
	if opts.Images == nil || opts.Videos == nil {
		return nil, errors.New("dispatcher: image and video converters are required")
	}
	if strings.TrimSpace(opts.OutputDir) == "" {
		return nil, errors.New("dispatcher: output directory is required")
	}
	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	prefix := strings.TrimRight(opts.URLPrefix, "/")
	if prefix == "" {
		prefix = DefaultURLPrefix
	}
	return &Dispatcher{
		images:    opts.Images,
		videos:    opts.Videos,
		outputDir: opts.OutputDir,
		urlPrefix: prefix,
		timeout:   opts.Timeout,
		publisher: opts.Publisher,
		recorder:  opts.Recorder,
		logger:    logging.Component(opts.Logger, "convert"),
		now:       time.Now,
	}, nil
}

// OutputDir returns the directory converted files are written to.
func (d *Dispatcher) OutputDir() string { return d.outputDir }

// NewUpload builds an Upload for a file stored at tempPath.
func NewUpload(originalName, tempPath string, size int64) types.Upload {
	return types.Upload{
		OriginalName: originalName,
		TempPath:     tempPath,
		Ext:          Ext(originalName),
		Size:         size,
	}
}

// Ext returns the lowercased extension of name including the dot. A name
// that is only a leading-dot extension (".heic") has no extension.
func Ext(name string) string {
	base := baseName(name)
	if strings.HasPrefix(base, ".") && strings.Count(base, ".") == 1 {
		return ""
	}
	return strings.ToLower(path.Ext(base))
}

// Classify maps a filename to the kind of conversion it needs.
func Classify(name string) types.FileKind {
	return classifyExt(Ext(name))
}

func classifyExt(ext string) types.FileKind {
	switch ext {
	case ".heic", ".heif":
		return types.KindImage
	case ".mov", ".qt":
		return types.KindVideo
	default:
		return types.KindUnsupported
	}
}

// OutputName returns the converted filename for name: the base name without
// its extension plus ".jpg" for images or ".mp4" for videos. Directory
// components supplied by the client are dropped.
func OutputName(name string, kind types.FileKind) string {
	base := baseName(name)
	stem := strings.TrimSuffix(base, path.Ext(base))
	if ext := Ext(name); ext == "" {
		stem = base
	}
	switch kind {
	case types.KindImage:
		return stem + ".jpg"
	case types.KindVideo:
		return stem + ".mp4"
	default:
		return ""
	}
}

// baseName strips any client-side directory, accepting both separators.
func baseName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	base := path.Base(name)
	if base == "/" || base == "." || base == ".." {
		return ""
	}
	return base
}

// ConvertFile processes a single upload and always returns exactly one
// Result. The temporary upload is removed before returning.
func (d *Dispatcher) ConvertFile(ctx context.Context, up types.Upload) types.Result {
	start := d.now()
	defer removeTemp(up.TempPath)

	logger := logging.WithContext(ctx, d.logger).With(slog.String(logging.FieldFile, up.OriginalName))

	res, objectKey := d.convert(ctx, up, logger)
	elapsed := d.now().Sub(start)

	switch res.Type {
	case types.KindError:
		logger.Error("conversion failed", slog.String("error", res.Message), slog.Duration("elapsed", elapsed))
	case types.KindUnsupported:
		logger.Info("unsupported file type", slog.String("ext", up.Ext))
	default:
		logger.Info("file converted",
			slog.String("type", string(res.Type)),
			slog.String("output", res.ConvertedName),
			slog.Int64("bytes_in", up.Size),
			slog.Duration("elapsed", elapsed),
		)
	}

	d.record(ctx, up, res, objectKey, start, elapsed, logger)
	return res
}

// ConvertBatch processes uploads sequentially in input order and returns one
// Result per upload along with a summary.
func (d *Dispatcher) ConvertBatch(ctx context.Context, uploads []types.Upload) ([]types.Result, Summary) {
	start := d.now()
	results := make([]types.Result, 0, len(uploads))
	var summary Summary
	for _, up := range uploads {
		res := d.ConvertFile(ctx, up)
		results = append(results, res)
		summary.BytesIn += up.Size
		switch res.Type {
		case types.KindUnsupported:
			summary.Unsupported++
		case types.KindError:
			summary.Failed++
		default:
			summary.Converted++
		}
	}
	summary.Duration = d.now().Sub(start)
	return results, summary
}

func (d *Dispatcher) convert(ctx context.Context, up types.Upload, logger *slog.Logger) (types.Result, string) {
	ext := up.Ext
	if ext == "" {
		ext = Ext(up.OriginalName)
	}
	kind := classifyExt(ext)

	var conv Converter
	switch kind {
	case types.KindImage:
		conv = d.images
	case types.KindVideo:
		conv = d.videos
	default:
		return types.Result{
			Type:         types.KindUnsupported,
			OriginalName: up.OriginalName,
			Message:      MessageUnsupported,
		}, ""
	}

	outName := OutputName(up.OriginalName, kind)
	outPath := filepath.Join(d.outputDir, outName)

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	if err := safeConvert(ctx, conv, up.TempPath, outPath); err != nil {
		return errorResult(up, err), ""
	}

	var objectKey string
	if d.publisher != nil {
		key, err := d.publisher.Publish(ctx, outPath, outName)
		if err != nil {
			logger.Warn("publishing converted file failed", slog.String("error", err.Error()))
		} else {
			objectKey = key
		}
	}

	return types.Result{
		Type:          kind,
		OriginalName:  up.OriginalName,
		ConvertedName: outName,
		URL:           d.urlPrefix + "/" + url.PathEscape(outName),
	}, objectKey
}

// safeConvert turns a converter panic into an error so the rest of the
// batch still runs.
func safeConvert(ctx context.Context, conv Converter, in, out string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("converter panic: %v", r)
		}
	}()
	return conv.Convert(ctx, in, out)
}

func errorResult(up types.Upload, err error) types.Result {
	msg := strings.TrimSpace(err.Error())
	if msg == "" {
		msg = MessageConversionError
	}
	return types.Result{
		Type:         types.KindError,
		OriginalName: up.OriginalName,
		Message:      msg,
	}
}

func (d *Dispatcher) record(ctx context.Context, up types.Upload, res types.Result, objectKey string, start time.Time, elapsed time.Duration, logger *slog.Logger) {
	if d.recorder == nil {
		return
	}
	requestID, _ := logging.RequestIDFromContext(ctx)
	rec := types.ConversionRecord{
		RequestID:     requestID,
		OriginalName:  up.OriginalName,
		Type:          res.Type,
		ConvertedName: res.ConvertedName,
		URL:           res.URL,
		Message:       res.Message,
		ObjectKey:     objectKey,
		InputBytes:    up.Size,
		DurationMS:    elapsed.Milliseconds(),
		CreatedAt:     start.UTC(),
	}
	// The request context may already be cancelled; history is still written.
	if err := d.recorder.Record(context.WithoutCancel(ctx), rec); err != nil {
		logger.Warn("recording history failed", slog.String("error", err.Error()))
	}
}

// removeTemp deletes a temporary upload. Failures are ignored.
func removeTemp(p string) {
	if p == "" {
		return
	}
	_ = os.Remove(p)
}
