// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/media-convert/internal/container"
	"github.com/pdiddy/media-convert/internal/deps"
	"github.com/pdiddy/media-convert/internal/notify"
	"github.com/pdiddy/media-convert/pkg/types"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check external tools and configuration",
	Long: `Doctor reports whether the binaries conversion relies on are installed
for the configured ffmpeg backend. With the container backend it also checks
that the ffmpeg image is present. Use --notify to send a test notification.`,
	RunE: runDoctor,
}

func runDoctor(cmd *cobra.Command, args []string) error {
	cfg := appConfig
	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	statuses := deps.Check(cfg.Conversion)
	printDependencies(out, statuses)

	if cfg.Conversion.FFmpegBackend == types.BackendContainer {
		rt, err := container.DetectRuntime(ctx)
		switch {
		case err != nil:
			fmt.Fprintf(out, "container runtime: %v\n", err)
		case rt.ImageExists(ctx, cfg.Conversion.FFmpegImage) != nil:
			fmt.Fprintf(out, "ffmpeg image %s: missing (run: %s pull %s)\n", cfg.Conversion.FFmpegImage, rt.Name(), cfg.Conversion.FFmpegImage)
		default:
			fmt.Fprintf(out, "ffmpeg image %s: present (%s)\n", cfg.Conversion.FFmpegImage, rt.Name())
		}
	}

	if sendTest, _ := cmd.Flags().GetBool("notify"); sendTest {
		if strings.TrimSpace(cfg.Notify.TopicURL) == "" {
			fmt.Fprintln(out, "notifications: no topic configured")
		} else if err := notify.NewService(cfg.Notify).TestNotification(ctx); err != nil {
			fmt.Fprintf(out, "notifications: %v\n", err)
		} else {
			fmt.Fprintln(out, "notifications: test sent")
		}
	}

	if missing := deps.MissingRequired(statuses); len(missing) > 0 {
		return errors.New("missing required dependencies: " + strings.Join(missing, ", "))
	}
	return nil
}

func printDependencies(w io.Writer, statuses []deps.Status) {
	rows := make([][]string, 0, len(statuses))
	for _, s := range statuses {
		state := "ok"
		if !s.Available {
			state = "missing"
			if s.Optional {
				state = "missing (optional)"
			}
		}
		detail := s.Description
		if s.Detail != "" {
			detail = s.Detail
		}
		rows = append(rows, []string{s.Name, s.Command, state, detail})
	}
	fmt.Fprintln(w, renderTable([]string{"Dependency", "Command", "Status", "Detail"}, rows, nil))
}

func init() {
	doctorCmd.Flags().Bool("notify", false, "send a test notification")

	rootCmd.AddCommand(doctorCmd)
}
