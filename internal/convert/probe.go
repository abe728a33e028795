// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Prober inspects a media file and reports how many video streams it holds.
type Prober interface {
	VideoStreams(ctx context.Context, path string) (int, error)
}

// probeResult is the subset of ffprobe's JSON output we read.
type probeResult struct {
	Streams []struct {
		Index     int    `json:"index"`
		CodecName string `json:"codec_name"`
		CodecType string `json:"codec_type"`
	} `json:"streams"`
}

// FFprobe runs an ffprobe binary from the host.
type FFprobe struct {
	bin    string
	output func(ctx context.Context, bin string, args ...string) ([]byte, error)
}

// NewFFprobe returns a Prober backed by bin; empty means "ffprobe" on PATH.
func NewFFprobe(bin string) *FFprobe {
	bin = strings.TrimSpace(bin)
	if bin == "" {
		bin = "ffprobe"
	}
	return &FFprobe{bin: bin, output: combinedOutput}
}

func combinedOutput(ctx context.Context, bin string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, bin, args...).CombinedOutput()
}

// VideoStreams implements Prober.
func (p *FFprobe) VideoStreams(ctx context.Context, path string) (int, error) {
	if strings.TrimSpace(path) == "" {
		return 0, errors.New("ffprobe: empty path")
	}
	out, err := p.output(ctx, p.bin, "-v", "error", "-hide_banner", "-show_streams", "-of", "json", "--", path)
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w: %s", err, strings.TrimSpace(string(out)))
	}
	var res probeResult
	if err := json.Unmarshal(out, &res); err != nil {
		return 0, fmt.Errorf("ffprobe parse: %w", err)
	}
	count := 0
	for _, s := range res.Streams {
		if strings.EqualFold(s.CodecType, "video") {
			count++
		}
	}
	return count, nil
}
