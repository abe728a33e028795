// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the media-convert CLI and server.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/media-convert/internal/config"
	"github.com/pdiddy/media-convert/internal/logging"
	"github.com/pdiddy/media-convert/internal/secrets"
	"github.com/pdiddy/media-convert/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// secretsDir holds one file per credential.
const secretsDir = ".secrets/"

// appConfig and logger are populated by the root command before any
// subcommand runs.
var (
	appConfig types.Config
	logger    *slog.Logger
)

// rootCmd is the base command for the media-convert CLI.
var rootCmd = &cobra.Command{
	Use:   "media-convert",
	Short: "Convert HEIC/HEIF images to JPG and MOV videos to MP4",
	Long: `media-convert accepts HEIC/HEIF photos and QuickTime MOV videos and
converts them to JPG and MP4. Run "serve" to expose the HTTP upload API, or
"convert" to process files from the command line.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfgFile, _ := cmd.Flags().GetString("config")
		used, err := config.Init(viper.GetViper(), cfgFile)
		if err != nil {
			return err
		}
		cfg, err := config.Load(viper.GetViper())
		if err != nil {
			return err
		}

		if err := secrets.Apply(&cfg, secretsDir); err != nil {
			return err
		}
		appConfig = cfg

		l, err := logging.NewFromConfig(cfg.Log)
		if err != nil {
			return err
		}
		logger = l
		slog.SetDefault(l)

		if used != "" {
			logger.Debug("using config file", slog.String("path", used))
		}
		if s, _ := secrets.Load(secretsDir); len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			logger.Debug("loaded secrets", slog.Any("keys", keys))
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default: ./media-convert.yaml or ~/.config/media-convert/media-convert.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "", "log format: console or json")

	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
