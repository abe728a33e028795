// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package deps reports whether the external tools conversion relies on are
// installed.
package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/pdiddy/media-convert/pkg/types"
)

// Requirement defines an external binary the service may invoke.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a requirement.
type Status struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// Requirements lists the binaries needed for cfg. The native backend needs
// ffmpeg on the host; the container backend needs docker or podman, so both
// are listed as optional. ffprobe is required only when outputs are verified.
func Requirements(cfg types.ConversionConfig) []Requirement {
	var reqs []Requirement
	switch cfg.FFmpegBackend {
	case types.BackendContainer:
		reqs = append(reqs,
			Requirement{Name: "Docker", Command: "docker", Description: "Runs the ffmpeg image", Optional: true},
			Requirement{Name: "Podman", Command: "podman", Description: "Runs the ffmpeg image when docker is absent", Optional: true},
		)
	default:
		reqs = append(reqs, Requirement{
			Name:        "FFmpeg",
			Command:     orDefault(cfg.FFmpegBin, "ffmpeg"),
			Description: "Transcodes MOV/QT videos to MP4",
		})
	}
	reqs = append(reqs, Requirement{
		Name:        "FFprobe",
		Command:     orDefault(cfg.FFprobeBin, "ffprobe"),
		Description: "Verifies transcoded MP4 files",
		Optional:    !cfg.VerifyOutput,
	})
	return reqs
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	return checkWith(requirements, exec.LookPath)
}

func checkWith(requirements []Requirement, lookPath func(string) (string, error)) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		switch {
		case cmd == "":
			status.Detail = "command not configured"
		default:
			if _, err := lookPath(cmd); err != nil {
				status.Detail = fmt.Sprintf("binary %q not found", cmd)
			} else {
				status.Available = true
			}
		}
		results = append(results, status)
	}
	return results
}

// Check reports the status of every binary cfg needs.
func Check(cfg types.ConversionConfig) []Status {
	return CheckBinaries(Requirements(cfg))
}

// MissingRequired returns the names of unavailable non-optional requirements.
// For the container backend, at least one runtime must be present.
func MissingRequired(statuses []Status) []string {
	var missing []string
	runtimes, runtimeFound := 0, false
	for _, s := range statuses {
		if s.Command == "docker" || s.Command == "podman" {
			runtimes++
			runtimeFound = runtimeFound || s.Available
			continue
		}
		if !s.Optional && !s.Available {
			missing = append(missing, s.Name)
		}
	}
	if runtimes > 0 && !runtimeFound {
		missing = append(missing, "Docker or Podman")
	}
	return missing
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v == "" {
		return def
	}
	return v
}
