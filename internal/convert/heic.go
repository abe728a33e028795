// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"os"
	"path/filepath"

	"github.com/gen2brain/heic"
)

// DefaultJPEGQuality matches a 0.9 quality factor.
const DefaultJPEGQuality = 90

// HEICConverter decodes HEIC/HEIF images and re-encodes them as JPEG.
type HEICConverter struct {
	quality int
	decode  func(io.Reader) (image.Image, error)
}

// NewHEICConverter returns a converter encoding at the given JPEG quality.
// Out-of-range values fall back to DefaultJPEGQuality.
func NewHEICConverter(quality int) *HEICConverter {
	if quality < 1 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	return &HEICConverter{quality: quality, decode: heic.Decode}
}

// Convert reads the HEIC file at inputPath and writes a JPEG to outputPath.
// The JPEG is written to a temporary file next to outputPath and renamed
// into place so a partially written image is never served.
func (c *HEICConverter) Convert(ctx context.Context, inputPath, outputPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("reading upload: %w", err)
	}

	img, err := c.decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("decoding HEIC image: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(outputPath), ".jpeg-*")
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := jpeg.Encode(tmp, img, &jpeg.Options{Quality: c.quality}); err != nil {
		tmp.Close()
		return fmt.Errorf("encoding JPEG: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing JPEG: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("writing JPEG: %w", err)
	}
	if err := os.Rename(tmpName, outputPath); err != nil {
		return fmt.Errorf("moving JPEG into place: %w", err)
	}
	return nil
}
