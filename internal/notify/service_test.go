// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package notify

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/media-convert/internal/convert"
	"github.com/pdiddy/media-convert/internal/httputil"
	"github.com/pdiddy/media-convert/pkg/types"
)

func init() {
	httputil.RetryBaseDelay = time.Millisecond
}

type captured struct {
	title, tags, priority, auth, body string
}

func newNtfy(t *testing.T, status int) (*httptest.Server, *captured) {
	t.Helper()
	got := &captured{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got.title = r.Header.Get("Title")
		got.tags = r.Header.Get("Tags")
		got.priority = r.Header.Get("Priority")
		got.auth = r.Header.Get("Authorization")
		got.body = string(body)
		w.WriteHeader(status)
	}))
	t.Cleanup(ts.Close)
	return ts, got
}

func TestNewService_NoTopicIsNoop(t *testing.T) {
	svc := NewService(types.NotifyConfig{TopicURL: "  "})
	_, ok := svc.(noopService)
	assert.True(t, ok)
	assert.NoError(t, svc.NotifyBatch(context.Background(), convert.Summary{Converted: 1}))
	assert.NoError(t, svc.TestNotification(context.Background()))
}

func TestNotifyBatch(t *testing.T) {
	tests := []struct {
		name         string
		summary      convert.Summary
		wantTitle    string
		wantBody     string
		wantTags     string
		wantPriority string
	}{
		{
			name:      "all converted",
			summary:   convert.Summary{Converted: 3, BytesIn: 3000, Duration: 1500 * time.Millisecond},
			wantTitle: "media-convert - Batch Complete",
			wantBody:  "3 converted, 0 failed (3.0 kB in 1.5s)",
			wantTags:  "media-convert,batch",
		},
		{
			name:         "with failures and unsupported",
			summary:      convert.Summary{Converted: 1, Failed: 1, Unsupported: 2, BytesIn: 10},
			wantTitle:    "media-convert - Batch Complete (with errors)",
			wantBody:     "1 converted, 1 failed, 2 unsupported (10 B in 0s)",
			wantTags:     "media-convert,batch,warning",
			wantPriority: "high",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, got := newNtfy(t, http.StatusOK)
			svc := NewService(types.NotifyConfig{TopicURL: ts.URL, Token: "tk_1"})

			require.NoError(t, svc.NotifyBatch(context.Background(), tt.summary))
			assert.Equal(t, tt.wantTitle, got.title)
			assert.Equal(t, tt.wantBody, got.body)
			assert.Equal(t, tt.wantTags, got.tags)
			assert.Equal(t, tt.wantPriority, got.priority)
			assert.Equal(t, "Bearer tk_1", got.auth)
		})
	}
}

func TestNotifyBatch_EmptyBatchSendsNothing(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer ts.Close()

	svc := NewService(types.NotifyConfig{TopicURL: ts.URL})
	require.NoError(t, svc.NotifyBatch(context.Background(), convert.Summary{}))
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestNotifyBatch_ServerError(t *testing.T) {
	ts, _ := newNtfy(t, http.StatusForbidden)
	svc := NewService(types.NotifyConfig{TopicURL: ts.URL})

	err := svc.NotifyBatch(context.Background(), convert.Summary{Converted: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ntfy returned 403")
}

func TestNotifyBatch_RetriesUnavailable(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	svc := NewService(types.NotifyConfig{TopicURL: ts.URL, MaxRetries: 2})
	require.NoError(t, svc.NotifyBatch(context.Background(), convert.Summary{Converted: 1}))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestTestNotification(t *testing.T) {
	ts, got := newNtfy(t, http.StatusOK)
	svc := NewService(types.NotifyConfig{TopicURL: ts.URL})

	require.NoError(t, svc.TestNotification(context.Background()))
	assert.Equal(t, "media-convert - Test", got.title)
	assert.Equal(t, "low", got.priority)
	assert.Empty(t, got.auth)
}
