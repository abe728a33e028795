// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/media-convert/internal/convert"
	"github.com/pdiddy/media-convert/internal/deps"
	"github.com/pdiddy/media-convert/internal/history"
	"github.com/pdiddy/media-convert/internal/logging"
	"github.com/pdiddy/media-convert/pkg/types"
)

func testConfig(t *testing.T) types.Config {
	t.Helper()
	root := t.TempDir()
	return types.Config{
		Server: types.ServerConfig{Addr: ":5000", MaxUploadMB: 10},
		Paths: types.PathsConfig{
			UploadDir: filepath.Join(root, "uploads"),
			OutputDir: filepath.Join(root, "converted"),
			DataDir:   filepath.Join(root, "data"),
		},
		Conversion: types.ConversionConfig{
			JPEGQuality:   90,
			FFmpegBackend: types.BackendNative,
			FFmpegBin:     "ffmpeg",
			Timeout:       time.Minute,
		},
		History: types.HistoryConfig{Enabled: true, MaxResults: 10},
		Storage: types.StorageConfig{AccessKey: "ak", SecretKey: "sk"},
		Notify:  types.NotifyConfig{Token: "tk"},
		Log:     types.LogConfig{Level: "info", Format: "console"},
	}
}

func TestNewApp(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, ensureDirs(cfg.Paths))

	a, err := newApp(context.Background(), cfg, logging.NewNop())
	require.NoError(t, err)
	defer a.close()

	require.NotNil(t, a.dispatcher)
	require.NotNil(t, a.history)
	assert.Equal(t, filepath.Join(cfg.Paths.DataDir, "history.db"), a.history.Path())
	assert.Equal(t, cfg.Paths.OutputDir, a.dispatcher.OutputDir())
}

func TestNewApp_HistoryDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.History.Enabled = false

	a, err := newApp(context.Background(), cfg, logging.NewNop())
	require.NoError(t, err)
	defer a.close()
	assert.Nil(t, a.history)
}

func TestNewApp_UnsupportedFileIsRecorded(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, ensureDirs(cfg.Paths))

	a, err := newApp(context.Background(), cfg, logging.NewNop())
	require.NoError(t, err)
	defer a.close()

	src := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(src, []byte("hello"), 0o644))
	up, err := stageInput(src, cfg.Paths.UploadDir)
	require.NoError(t, err)

	results, summary := a.dispatcher.ConvertBatch(context.Background(), []types.Upload{up})
	require.Len(t, results, 1)
	assert.Equal(t, types.KindUnsupported, results[0].Type)
	assert.Equal(t, 1, summary.Unsupported)

	_, err = os.Stat(up.TempPath)
	assert.True(t, os.IsNotExist(err), "staged copy is removed")
	_, err = os.Stat(src)
	assert.NoError(t, err, "original is kept")

	records, err := a.history.List(context.Background(), history.QueryOptions{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "notes.txt", records[0].OriginalName)
}

func TestStageInput(t *testing.T) {
	uploadDir := t.TempDir()
	src := filepath.Join(t.TempDir(), "IMG_0042.HEIC")
	require.NoError(t, os.WriteFile(src, []byte("heic"), 0o644))

	up, err := stageInput(src, uploadDir)
	require.NoError(t, err)
	assert.Equal(t, "IMG_0042.HEIC", up.OriginalName)
	assert.Equal(t, ".heic", up.Ext)
	assert.Equal(t, int64(4), up.Size)
	assert.Equal(t, uploadDir, filepath.Dir(up.TempPath))
	assert.Equal(t, ".heic", filepath.Ext(up.TempPath))

	data, err := os.ReadFile(up.TempPath)
	require.NoError(t, err)
	assert.Equal(t, "heic", string(data))

	_, err = stageInput(filepath.Join(t.TempDir(), "missing.mov"), uploadDir)
	assert.Error(t, err)

	_, err = stageInput(t.TempDir(), uploadDir)
	assert.ErrorContains(t, err, "is a directory")
}

func TestPrintResultsAndSummary(t *testing.T) {
	var buf bytes.Buffer
	printResults(&buf, "converted", []types.Result{
		{Type: types.KindImage, OriginalName: "a.heic", ConvertedName: "a.jpg"},
		{Type: types.KindUnsupported, OriginalName: "b.txt", Message: convert.MessageUnsupported},
		{Type: types.KindError, OriginalName: "c.mov", Message: "ffmpeg exited: exit status 1"},
	})
	printSummary(&buf, convert.Summary{Converted: 1, Unsupported: 1, Failed: 1, BytesIn: 2_500_000, Duration: 1500 * time.Millisecond})

	out := buf.String()
	assert.Contains(t, out, "a.heic -> "+filepath.Join("converted", "a.jpg"))
	assert.Contains(t, out, "unsupported  b.txt: "+convert.MessageUnsupported)
	assert.Contains(t, out, "error        c.mov: ffmpeg exited")
	assert.Contains(t, out, "1 converted, 1 unsupported, 1 failed (2.5 MB read in 1.5s)")
}

func TestPrintHistory(t *testing.T) {
	var buf bytes.Buffer
	printHistory(&buf, nil)
	assert.Equal(t, "No conversions recorded.\n", buf.String())

	buf.Reset()
	printHistory(&buf, []types.ConversionRecord{
		{ID: 2, Type: types.KindError, OriginalName: "broken.mov", Message: "ffmpeg exited", InputBytes: 1000, DurationMS: 250, CreatedAt: time.Now()},
		{ID: 1, Type: types.KindImage, OriginalName: "a.heic", ConvertedName: "a.jpg", InputBytes: 2048, DurationMS: 12, CreatedAt: time.Now()},
	})
	out := buf.String()
	assert.Contains(t, out, "broken.mov")
	assert.Contains(t, out, "ffmpeg exited")
	assert.Contains(t, out, "a.jpg")
	assert.Contains(t, out, "250ms")
	assert.Contains(t, out, "2 record(s)")
}

func TestPrintDependencies(t *testing.T) {
	var buf bytes.Buffer
	printDependencies(&buf, []deps.Status{
		{Name: "FFmpeg", Command: "ffmpeg", Description: "Transcodes", Available: true},
		{Name: "FFprobe", Command: "ffprobe", Optional: true, Detail: `binary "ffprobe" not found`},
	})
	out := buf.String()
	assert.Contains(t, out, "FFmpeg")
	assert.Contains(t, out, "missing (optional)")
	assert.Contains(t, out, `binary "ffprobe" not found`)
}

func TestRenderTable(t *testing.T) {
	assert.Empty(t, renderTable(nil, nil, nil))

	out := renderTable([]string{"A", "B"}, [][]string{{"1"}, {"2", "two"}}, []columnAlignment{alignRight})
	lines := strings.Split(out, "\n")
	assert.True(t, strings.HasPrefix(lines[0], "╭"), "rounded style")
	assert.Contains(t, out, "two")
}

func TestWriteConfig(t *testing.T) {
	cfg := redact(testConfig(t))
	assert.Equal(t, "****", cfg.Storage.AccessKey)
	assert.Equal(t, "****", cfg.Storage.SecretKey)
	assert.Equal(t, "****", cfg.Notify.Token)

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeConfig(&buf, cfg, "yaml"))
		var got map[string]any
		require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
		assert.Contains(t, got, "conversion")
		assert.Contains(t, buf.String(), "jpeg_quality: 90")
	})

	t.Run("toml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeConfig(&buf, cfg, "toml"))
		var got map[string]any
		require.NoError(t, toml.Unmarshal(buf.Bytes(), &got))
		conv, ok := got["conversion"].(map[string]any)
		require.True(t, ok)
		assert.EqualValues(t, 90, conv["jpeg_quality"])
		assert.Equal(t, "1m0s", conv["timeout"])
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeConfig(&buf, cfg, "json"))
		var got types.Config
		require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
		assert.Equal(t, cfg.Paths, got.Paths)
	})

	t.Run("unknown", func(t *testing.T) {
		assert.Error(t, writeConfig(&bytes.Buffer{}, cfg, "ini"))
	})
}
