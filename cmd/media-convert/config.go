// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/media-convert/pkg/types"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the effective configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the merged configuration",
	Long: `Show prints the configuration after defaults, the config file, and
MEDIA_CONVERT_* environment variables have been merged. Credentials are
masked.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		return writeConfig(cmd.OutOrStdout(), redact(appConfig), format)
	},
}

// redact masks credentials so the output is safe to share.
func redact(cfg types.Config) types.Config {
	mask := func(s *string) {
		if *s != "" {
			*s = "****"
		}
	}
	mask(&cfg.Storage.AccessKey)
	mask(&cfg.Storage.SecretKey)
	mask(&cfg.Notify.Token)
	return cfg
}

func writeConfig(w io.Writer, cfg types.Config, format string) error {
	switch format {
	case "yaml", "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return fmt.Errorf("encoding YAML: %w", err)
		}
		return enc.Close()
	case "toml":
		// Round-trip through yaml to keep snake_case keys.
		var generic map[string]any
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		if err := yaml.Unmarshal(data, &generic); err != nil {
			return err
		}
		enc := toml.NewEncoder(w)
		enc.SetIndentTables(true)
		return enc.Encode(generic)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	default:
		return fmt.Errorf("unsupported format %q (want yaml, toml or json)", format)
	}
}

func init() {
	configShowCmd.Flags().String("format", "yaml", "output format: yaml, toml or json")

	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
