// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/pdiddy/media-convert/internal/container"
)

// Fixed transcoding settings: H.264 video and AAC audio in an MP4 container.
const (
	VideoCodec = "libx264"
	AudioCodec = "aac"

	containerInputDir  = "/input"
	containerOutputDir = "/output"

	// stderrTailBytes bounds how much ffmpeg output is carried in errors.
	stderrTailBytes = 1024
)

// TranscodeArgs builds the ffmpeg arguments for a MOV to MP4 transcode.
func TranscodeArgs(inputPath, outputPath string) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", inputPath,
		"-c:v", VideoCodec,
		"-c:a", AudioCodec,
		outputPath,
	}
}

// ffmpegRunner launches one ffmpeg invocation.
type ffmpegRunner interface {
	run(ctx context.Context, inputPath, outputPath string, stderr io.Writer) error
}

// nativeRunner runs an ffmpeg binary from the host.
type nativeRunner struct {
	bin string
}

func (r nativeRunner) run(ctx context.Context, inputPath, outputPath string, stderr io.Writer) error {
	cmd := exec.CommandContext(ctx, r.bin, TranscodeArgs(inputPath, outputPath)...)
	cmd.Stderr = stderr
	return cmd.Run()
}

// containerRunner runs ffmpeg inside a container whose entrypoint is ffmpeg,
// mounting the input directory read-only and the output directory writable.
type containerRunner struct {
	rt    container.Runtime
	image string
}

func (r containerRunner) run(ctx context.Context, inputPath, outputPath string, stderr io.Writer) error {
	inAbs, err := filepath.Abs(inputPath)
	if err != nil {
		return err
	}
	outAbs, err := filepath.Abs(outputPath)
	if err != nil {
		return err
	}
	return r.rt.Run(ctx, container.RunSpec{
		Image: r.image,
		Mounts: []container.Mount{
			{HostPath: filepath.Dir(inAbs), ContainerPath: containerInputDir, ReadOnly: true},
			{HostPath: filepath.Dir(outAbs), ContainerPath: containerOutputDir},
		},
		Args: TranscodeArgs(
			containerInputDir+"/"+filepath.Base(inAbs),
			containerOutputDir+"/"+filepath.Base(outAbs),
		),
		Stderr: stderr,
	})
}

// FFmpegConverter transcodes QuickTime videos to MP4 with ffmpeg.
type FFmpegConverter struct {
	runner ffmpegRunner
	prober Prober
}

// NewFFmpegConverter returns a converter that runs the ffmpeg binary bin
// from the host. An empty bin means "ffmpeg" on PATH.
func NewFFmpegConverter(bin string) *FFmpegConverter {
	bin = strings.TrimSpace(bin)
	if bin == "" {
		bin = "ffmpeg"
	}
	return &FFmpegConverter{runner: nativeRunner{bin: bin}}
}

// NewContainerFFmpegConverter returns a converter that runs ffmpeg from
// image through the given container runtime. It fails when the image is not
// present locally.
func NewContainerFFmpegConverter(ctx context.Context, rt container.Runtime, image string) (*FFmpegConverter, error) {
	if err := rt.ImageExists(ctx, image); err != nil {
		return nil, fmt.Errorf("ffmpeg image not available in %s: %w", rt.Name(), err)
	}
	return &FFmpegConverter{runner: containerRunner{rt: rt, image: image}}, nil
}

// WithVerification makes the converter inspect every output with p and
// reject files without a video stream.
func (c *FFmpegConverter) WithVerification(p Prober) *FFmpegConverter {
	c.prober = p
	return c
}

// Convert transcodes inputPath to outputPath. A failed run removes any
// partial output.
func (c *FFmpegConverter) Convert(ctx context.Context, inputPath, outputPath string) error {
	var stderr bytes.Buffer
	if err := c.runner.run(ctx, inputPath, outputPath, &stderr); err != nil {
		_ = os.Remove(outputPath)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("ffmpeg interrupted: %w", ctxErr)
		}
		return ffmpegError(err, stderr.Bytes())
	}

	if _, err := os.Stat(outputPath); err != nil {
		return fmt.Errorf("ffmpeg produced no output: %w", err)
	}

	if c.prober != nil {
		streams, err := c.prober.VideoStreams(ctx, outputPath)
		if err != nil {
			_ = os.Remove(outputPath)
			return fmt.Errorf("verifying output: %w", err)
		}
		if streams == 0 {
			_ = os.Remove(outputPath)
			return errors.New("verifying output: no video stream in transcoded file")
		}
	}
	return nil
}

func ffmpegError(err error, stderr []byte) error {
	tail := strings.TrimSpace(string(stderr))
	if len(tail) > stderrTailBytes {
		tail = tail[len(tail)-stderrTailBytes:]
		if i := strings.IndexByte(tail, '\n'); i >= 0 {
			tail = tail[i+1:]
		}
	}
	if tail == "" {
		return fmt.Errorf("ffmpeg exited: %w", err)
	}
	return fmt.Errorf("ffmpeg exited: %w: %s", err, tail)
}
