// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/media-convert/internal/convert"
	"github.com/pdiddy/media-convert/internal/history"
	"github.com/pdiddy/media-convert/internal/logging"
	"github.com/pdiddy/media-convert/pkg/types"
)

// fakeConverter records the uploads it receives and answers with one
// result per upload, mimicking the dispatcher's classification.
type fakeConverter struct {
	outputDir string
	panicMsg  string

	mu       sync.Mutex
	uploads  []types.Upload
	contents []string
}

func (f *fakeConverter) OutputDir() string { return f.outputDir }

func (f *fakeConverter) ConvertBatch(_ context.Context, uploads []types.Upload) ([]types.Result, convert.Summary) {
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	var summary convert.Summary
	results := make([]types.Result, 0, len(uploads))
	for _, up := range uploads {
		data, _ := os.ReadFile(up.TempPath)
		f.uploads = append(f.uploads, up)
		f.contents = append(f.contents, string(data))
		_ = os.Remove(up.TempPath)

		kind := convert.Classify(up.OriginalName)
		if kind == types.KindUnsupported {
			summary.Unsupported++
			results = append(results, types.Result{Type: kind, OriginalName: up.OriginalName, Message: convert.MessageUnsupported})
			continue
		}
		name := convert.OutputName(up.OriginalName, kind)
		summary.Converted++
		results = append(results, types.Result{Type: kind, OriginalName: up.OriginalName, ConvertedName: name, URL: "/converted/" + name})
	}
	return results, summary
}

type fakeHistory struct {
	records []types.ConversionRecord
	err     error
	got     history.QueryOptions
}

func (f *fakeHistory) List(_ context.Context, opts history.QueryOptions) ([]types.ConversionRecord, error) {
	f.got = opts
	return f.records, f.err
}

type fakeNotifier struct {
	mu        sync.Mutex
	summaries []convert.Summary
}

func (f *fakeNotifier) NotifyBatch(_ context.Context, s convert.Summary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summaries = append(f.summaries, s)
	return errors.New("ntfy down")
}

func (f *fakeNotifier) TestNotification(context.Context) error { return nil }

type testEnv struct {
	server    *Server
	conv      *fakeConverter
	uploadDir string
}

func newTestEnv(t *testing.T, mutate func(*Options)) *testEnv {
	t.Helper()
	root := t.TempDir()
	uploadDir := filepath.Join(root, "uploads")
	outputDir := filepath.Join(root, "converted")
	require.NoError(t, os.MkdirAll(uploadDir, 0o755))
	require.NoError(t, os.MkdirAll(outputDir, 0o755))

	conv := &fakeConverter{outputDir: outputDir}
	opts := Options{
		Config:    types.ServerConfig{Addr: "127.0.0.1:0", MaxUploadMB: 1, CORSOrigins: []string{"http://localhost:5173"}},
		UploadDir: uploadDir,
		Converter: conv,
		Logger:    logging.NewNop(),
	}
	if mutate != nil {
		mutate(&opts)
	}
	srv, err := New(opts)
	require.NoError(t, err)
	return &testEnv{server: srv, conv: conv, uploadDir: uploadDir}
}

type part struct {
	name, content string
}

func multipartBody(t *testing.T, field string, parts ...part) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, p := range parts {
		fw, err := w.CreateFormFile(field, p.name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(p.content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Options{UploadDir: "uploads"})
	assert.ErrorContains(t, err, "converter is required")

	_, err = New(Options{Converter: &fakeConverter{}})
	assert.ErrorContains(t, err, "upload directory is required")
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestConvert_MixedBatch(t *testing.T) {
	env := newTestEnv(t, nil)
	body, ctype := multipartBody(t, FormField,
		part{"IMG_0001.HEIC", "heic-bytes"},
		part{"holiday.mov", "mov-bytes"},
		part{"notes.txt", "text"},
	)
	req := httptest.NewRequest(http.MethodPost, "/api/convert", body)
	req.Header.Set("Content-Type", ctype)

	rec := env.do(req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp types.ConvertResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Files, 3)
	assert.Equal(t, types.Result{Type: types.KindImage, OriginalName: "IMG_0001.HEIC", ConvertedName: "IMG_0001.jpg", URL: "/converted/IMG_0001.jpg"}, resp.Files[0])
	assert.Equal(t, types.Result{Type: types.KindVideo, OriginalName: "holiday.mov", ConvertedName: "holiday.mp4", URL: "/converted/holiday.mp4"}, resp.Files[1])
	assert.Equal(t, types.Result{Type: types.KindUnsupported, OriginalName: "notes.txt", Message: convert.MessageUnsupported}, resp.Files[2])

	require.Len(t, env.conv.uploads, 3)
	assert.Equal(t, []string{"heic-bytes", "mov-bytes", "text"}, env.conv.contents)
	for _, up := range env.conv.uploads {
		assert.Equal(t, env.uploadDir, filepath.Dir(up.TempPath))
		assert.Equal(t, convert.Ext(up.OriginalName), filepath.Ext(up.TempPath))
		assert.NotEqual(t, up.OriginalName, filepath.Base(up.TempPath))
	}
	assert.Equal(t, ".heic", env.conv.uploads[0].Ext)
	assert.Equal(t, int64(len("heic-bytes")), env.conv.uploads[0].Size)
}

func TestConvert_NoFiles(t *testing.T) {
	env := newTestEnv(t, nil)
	body, ctype := multipartBody(t, "other")
	req := httptest.NewRequest(http.MethodPost, "/api/convert", body)
	req.Header.Set("Content-Type", ctype)

	rec := env.do(req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"files":[]}`, rec.Body.String())
}

func TestConvert_IgnoresOtherFields(t *testing.T) {
	env := newTestEnv(t, nil)
	body, ctype := multipartBody(t, "attachments", part{"a.heic", "x"})
	req := httptest.NewRequest(http.MethodPost, "/api/convert", body)
	req.Header.Set("Content-Type", ctype)

	rec := env.do(req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"files":[]}`, rec.Body.String())
	assert.Empty(t, env.conv.uploads)
}

func TestConvert_RequestFailures(t *testing.T) {
	tests := []struct {
		name  string
		build func(t *testing.T) *http.Request
	}{
		{
			name: "not multipart",
			build: func(t *testing.T) *http.Request {
				req := httptest.NewRequest(http.MethodPost, "/api/convert", strings.NewReader(`{"files":[]}`))
				req.Header.Set("Content-Type", "application/json")
				return req
			},
		},
		{
			name: "upload larger than limit",
			build: func(t *testing.T) *http.Request {
				body, ctype := multipartBody(t, FormField, part{"big.mov", strings.Repeat("x", 2<<20)})
				req := httptest.NewRequest(http.MethodPost, "/api/convert", body)
				req.Header.Set("Content-Type", ctype)
				return req
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			rec := env.do(tt.build(t))

			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			var resp types.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, MessageConversionFailed, resp.Error)
			assert.NotEmpty(t, resp.Details)
			assert.Empty(t, env.conv.uploads)
		})
	}
}

func TestConvert_SaveFailureCleansUp(t *testing.T) {
	env := newTestEnv(t, nil)
	// A regular file where the upload directory should be makes saving fail.
	require.NoError(t, os.RemoveAll(env.uploadDir))
	require.NoError(t, os.WriteFile(env.uploadDir, []byte("not a dir"), 0o644))

	body, ctype := multipartBody(t, FormField, part{"a.heic", "x"})
	req := httptest.NewRequest(http.MethodPost, "/api/convert", body)
	req.Header.Set("Content-Type", ctype)

	rec := env.do(req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), MessageConversionFailed)
}

func TestConvert_NotifiesInBackground(t *testing.T) {
	notifier := &fakeNotifier{}
	env := newTestEnv(t, func(o *Options) { o.Notifier = notifier })

	body, ctype := multipartBody(t, FormField, part{"a.heic", "x"}, part{"b.txt", "y"})
	req := httptest.NewRequest(http.MethodPost, "/api/convert", body)
	req.Header.Set("Content-Type", ctype)

	rec := env.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	env.server.Wait()

	require.Len(t, notifier.summaries, 1)
	assert.Equal(t, 1, notifier.summaries[0].Converted)
	assert.Equal(t, 1, notifier.summaries[0].Unsupported)
}

func TestConvert_PanicIsRecovered(t *testing.T) {
	env := newTestEnv(t, nil)
	env.conv.panicMsg = "boom"

	body, ctype := multipartBody(t, FormField, part{"a.heic", "x"})
	req := httptest.NewRequest(http.MethodPost, "/api/convert", body)
	req.Header.Set("Content-Type", ctype)

	rec := env.do(req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "boom")
}

func TestRequestID(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Len(t, rec.Header().Get(RequestIDHeader), 36)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set(RequestIDHeader, "client-42")
	rec = env.do(req)
	assert.Equal(t, "client-42", rec.Header().Get(RequestIDHeader))
}

func TestStaticConverted(t *testing.T) {
	env := newTestEnv(t, nil)
	require.NoError(t, os.WriteFile(filepath.Join(env.conv.outputDir, "IMG_0001.jpg"), []byte("jpeg-data"), 0o644))

	rec := env.do(httptest.NewRequest(http.MethodGet, "/converted/IMG_0001.jpg", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "jpeg-data", rec.Body.String())

	rec = env.do(httptest.NewRequest(http.MethodGet, "/converted/missing.jpg", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCORS(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/convert", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := env.do(req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = env.do(req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHistory(t *testing.T) {
	t.Run("no store", func(t *testing.T) {
		env := newTestEnv(t, nil)
		rec := env.do(httptest.NewRequest(http.MethodGet, "/api/history", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"conversions":[]}`, rec.Body.String())
	})

	t.Run("filters", func(t *testing.T) {
		h := &fakeHistory{records: []types.ConversionRecord{{ID: 7, OriginalName: "a.heic", Type: types.KindImage}}}
		env := newTestEnv(t, func(o *Options) { o.History = h })

		rec := env.do(httptest.NewRequest(http.MethodGet, "/api/history?type=image&limit=5&name=a", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, history.QueryOptions{Type: types.KindImage, Name: "a", MaxResults: 5}, h.got)

		var resp struct {
			Conversions []types.ConversionRecord `json:"conversions"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Conversions, 1)
		assert.Equal(t, int64(7), resp.Conversions[0].ID)
	})

	t.Run("bad limit", func(t *testing.T) {
		env := newTestEnv(t, func(o *Options) { o.History = &fakeHistory{} })
		rec := env.do(httptest.NewRequest(http.MethodGet, "/api/history?limit=ten", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("store error", func(t *testing.T) {
		env := newTestEnv(t, func(o *Options) { o.History = &fakeHistory{err: errors.New("disk I/O error")} })
		rec := env.do(httptest.NewRequest(http.MethodGet, "/api/history", nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, rec.Body.String(), "disk I/O error")
	})
}

func TestServe_GracefulShutdown(t *testing.T) {
	env := newTestEnv(t, func(o *Options) { o.Config.ShutdownTimeout = time.Second })

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- env.server.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/api/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
