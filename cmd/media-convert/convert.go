// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/pdiddy/media-convert/internal/convert"
	"github.com/pdiddy/media-convert/internal/logging"
	"github.com/pdiddy/media-convert/internal/notify"
	"github.com/pdiddy/media-convert/pkg/types"
)

var convertCmd = &cobra.Command{
	Use:   "convert [files...]",
	Short: "Convert HEIC/HEIF and MOV files from the command line",
	Long: `Convert runs the same pipeline as the HTTP API on local files. Each input
is copied into the upload directory first, so the originals are left in
place. Results are written to the output directory.

The command exits non-zero when any file fails to convert. Unsupported
files are reported but do not count as failures.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runConvert,
}

func runConvert(cmd *cobra.Command, args []string) error {
	ctx := logging.WithRequestID(cmd.Context(), "cli-"+uuid.NewString())
	cfg := appConfig
	if outDir, _ := cmd.Flags().GetString("output-dir"); outDir != "" {
		cfg.Paths.OutputDir = outDir
	}
	if err := ensureDirs(cfg.Paths); err != nil {
		return err
	}

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	uploads := make([]types.Upload, 0, len(args))
	for _, path := range args {
		up, err := stageInput(path, cfg.Paths.UploadDir)
		if err != nil {
			for _, staged := range uploads {
				_ = os.Remove(staged.TempPath)
			}
			return err
		}
		uploads = append(uploads, up)
	}

	results, summary := a.dispatcher.ConvertBatch(ctx, uploads)
	out := cmd.OutOrStdout()
	printResults(out, a.dispatcher.OutputDir(), results)
	printSummary(out, summary)

	if err := notify.NewService(cfg.Notify).NotifyBatch(ctx, summary); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: notification failed: %v\n", err)
	}

	if summary.HasFailures() {
		return fmt.Errorf("%d file(s) failed conversion", summary.Failed)
	}
	return nil
}

// stageInput copies path into uploadDir under a uuid name with the same
// extension, as the HTTP handler does for multipart parts.
func stageInput(path, uploadDir string) (types.Upload, error) {
	src, err := os.Open(path)
	if err != nil {
		return types.Upload{}, fmt.Errorf("opening %s: %w", path, err)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return types.Upload{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return types.Upload{}, fmt.Errorf("%s is a directory", path)
	}

	name := filepath.Base(path)
	dst := filepath.Join(uploadDir, uuid.NewString()+convert.Ext(name))
	out, err := os.Create(dst)
	if err != nil {
		return types.Upload{}, fmt.Errorf("staging %s: %w", path, err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		os.Remove(dst)
		return types.Upload{}, fmt.Errorf("staging %s: %w", path, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return types.Upload{}, fmt.Errorf("staging %s: %w", path, err)
	}
	return convert.NewUpload(name, dst, info.Size()), nil
}

func printResults(w io.Writer, outputDir string, results []types.Result) {
	for _, r := range results {
		switch r.Type {
		case types.KindImage, types.KindVideo:
			fmt.Fprintf(w, "  ok           %s -> %s\n", r.OriginalName, filepath.Join(outputDir, r.ConvertedName))
		case types.KindUnsupported:
			fmt.Fprintf(w, "  unsupported  %s: %s\n", r.OriginalName, r.Message)
		default:
			fmt.Fprintf(w, "  error        %s: %s\n", r.OriginalName, r.Message)
		}
	}
}

func printSummary(w io.Writer, s convert.Summary) {
	fmt.Fprintf(w, "\n%d converted, %d unsupported, %d failed (%s read in %s)\n",
		s.Converted, s.Unsupported, s.Failed,
		humanize.Bytes(uint64(max(s.BytesIn, 0))), s.Duration.Round(time.Millisecond))
}

func init() {
	convertCmd.Flags().String("output-dir", "", "override the output directory")

	rootCmd.AddCommand(convertCmd)
}
