// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads credentials from a directory of plain-text files.
// Each file in the directory represents one secret: the filename is the key
// name and the file contents (trimmed) are the value.
package secrets

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/media-convert/pkg/types"
)

// Recognised key files.
const (
	KeyMinioAccess = "minio-access-key"
	KeyMinioSecret = "minio-secret-key"
	KeyNtfyToken   = "ntfy-token"
)

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory or missing files are not errors; Load returns an empty map.
// Unreadable files are logged and skipped.
func Load(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			slog.Warn("could not read secret", slog.String("name", name), slog.String("error", err.Error()))
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}

// Apply fills empty credential fields in cfg from the secrets in dir.
// Values already set through the config file or environment win.
func Apply(cfg *types.Config, dir string) error {
	values, err := Load(dir)
	if err != nil {
		return err
	}
	fill := func(dst *string, key string) {
		if *dst == "" {
			*dst = values[key]
		}
	}
	fill(&cfg.Storage.AccessKey, KeyMinioAccess)
	fill(&cfg.Storage.SecretKey, KeyMinioSecret)
	fill(&cfg.Notify.Token, KeyNtfyToken)
	return nil
}
