// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package config loads the service configuration from defaults, an optional
// YAML file, and MEDIA_CONVERT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/pdiddy/media-convert/pkg/types"
)

const (
	// Name is the config file base name and the directory under ~/.config.
	Name = "media-convert"

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "MEDIA_CONVERT"

	// DefaultAddr is the listen address when neither config nor PORT set one.
	DefaultAddr = ":5000"
)

// defaults mirrors types.Config. Every key is listed so that environment
// variables can override keys that are absent from the config file.
var defaults = map[string]any{
	"server.addr":             DefaultAddr,
	"server.cors_origins":     []string{"http://localhost:5173"},
	"server.max_upload_mb":    512,
	"server.shutdown_timeout": 10 * time.Second,

	"paths.upload_dir": "uploads",
	"paths.output_dir": "converted",
	"paths.data_dir":   "data",

	"conversion.jpeg_quality":   90,
	"conversion.ffmpeg_backend": string(types.BackendNative),
	"conversion.ffmpeg_bin":     "ffmpeg",
	"conversion.ffprobe_bin":    "ffprobe",
	"conversion.ffmpeg_image":   "linuxserver/ffmpeg:latest",
	"conversion.verify_output":  false,
	"conversion.timeout":        30 * time.Minute,

	"storage.enabled":    false,
	"storage.endpoint":   "",
	"storage.bucket":     "media-convert",
	"storage.prefix":     "converted",
	"storage.access_key": "",
	"storage.secret_key": "",
	"storage.use_ssl":    false,

	"history.enabled":     true,
	"history.path":        "",
	"history.max_results": 50,

	"notify.topic_url":   "",
	"notify.token":       "",
	"notify.timeout":     10 * time.Second,
	"notify.max_retries": 3,

	"log.level":  "info",
	"log.format": "console",
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}

// Init wires v to the config file and environment. cfgFile, when set, is
// read instead of searching the default locations. It returns the path of
// the file that was read, or "" when none was found.
func Init(v *viper.Viper, cfgFile string) (string, error) {
	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(Name)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", Name))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return "", nil
		}
		if cfgFile == "" && errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("reading config: %w", err)
	}
	return v.ConfigFileUsed(), nil
}

// Load unmarshals v into a Config, applies the PORT convention and
// validates the result.
func Load(v *viper.Viper) (types.Config, error) {
	var cfg types.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return types.Config{}, fmt.Errorf("decoding config: %w", err)
	}

	// PORT is honored when no explicit address was configured.
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" && cfg.Server.Addr == DefaultAddr {
		cfg.Server.Addr = ":" + port
	}
	cfg.Conversion.FFmpegBackend = types.FFmpegBackend(strings.ToLower(strings.TrimSpace(string(cfg.Conversion.FFmpegBackend))))

	if err := Validate(cfg); err != nil {
		return types.Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting in cfg.
func Validate(cfg types.Config) error {
	var errs []error
	if strings.TrimSpace(cfg.Server.Addr) == "" {
		errs = append(errs, errors.New("server.addr must not be empty"))
	}
	if cfg.Server.MaxUploadMB <= 0 {
		errs = append(errs, fmt.Errorf("server.max_upload_mb must be positive, got %d", cfg.Server.MaxUploadMB))
	}
	if strings.TrimSpace(cfg.Paths.UploadDir) == "" {
		errs = append(errs, errors.New("paths.upload_dir must not be empty"))
	}
	if strings.TrimSpace(cfg.Paths.OutputDir) == "" {
		errs = append(errs, errors.New("paths.output_dir must not be empty"))
	}
	if q := cfg.Conversion.JPEGQuality; q < 1 || q > 100 {
		errs = append(errs, fmt.Errorf("conversion.jpeg_quality must be between 1 and 100, got %d", q))
	}
	switch cfg.Conversion.FFmpegBackend {
	case types.BackendNative, types.BackendContainer:
	default:
		errs = append(errs, fmt.Errorf("conversion.ffmpeg_backend must be %q or %q, got %q",
			types.BackendNative, types.BackendContainer, cfg.Conversion.FFmpegBackend))
	}
	if cfg.Conversion.FFmpegBackend == types.BackendContainer && strings.TrimSpace(cfg.Conversion.FFmpegImage) == "" {
		errs = append(errs, errors.New("conversion.ffmpeg_image is required for the container backend"))
	}
	if cfg.Storage.Enabled {
		if strings.TrimSpace(cfg.Storage.Endpoint) == "" {
			errs = append(errs, errors.New("storage.endpoint is required when storage is enabled"))
		}
		if strings.TrimSpace(cfg.Storage.Bucket) == "" {
			errs = append(errs, errors.New("storage.bucket is required when storage is enabled"))
		}
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Log.Format)) {
	case "", "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be console or json, got %q", cfg.Log.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// MaxUploadBytes converts the configured upload limit to bytes.
func MaxUploadBytes(cfg types.ServerConfig) int64 {
	return cfg.MaxUploadMB << 20
}
