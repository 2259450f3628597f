package main

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yourusername/clipq-go/internal/domain"
)

func TestFormatEvent(t *testing.T) {
	tests := []struct {
		name string
		ev   domain.Event
		want string
	}{
		{"progress", domain.Event{Kind: domain.EventProgress, EntryID: "abcdef", Percent: 42}, "abcdef   42%"},
		{"status", domain.Event{Kind: domain.EventStatus, EntryID: "abcdef", Text: "[download] 42%"}, "abcdef  [download] 42%"},
		{"phase", domain.Event{Kind: domain.EventPhase, EntryID: "abcdef", Phase: domain.PhaseTrimming}, "abcdef  trimming"},
		{"thumbnail is quiet", domain.Event{Kind: domain.EventThumbnail, EntryID: "abcdef"}, ""},
		{"finished", domain.Event{
			Kind:    domain.EventFinished,
			EntryID: "abcdef",
			Result:  &domain.JobResult{Outcome: domain.OutcomeFailed, Error: "exited with code 1"},
		}, "abcdef  finished: failed (exited with code 1)"},
		{"entry", domain.Event{
			Kind:    domain.EventEntry,
			EntryID: "abcdef",
			Entry:   &domain.Entry{Status: domain.StatusQueued, URL: "https://example.com/v"},
		}, "abcdef  [queued] https://example.com/v"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatEvent(tt.ev))
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 8))
	assert.Equal(t, "12345...", truncate("1234567890", 8))
}

func TestIsServerRunning(t *testing.T) {
	var ready atomic.Bool
	ready.Store(true)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ready" || !ready.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	old := serverURL
	serverURL = server.URL
	defer func() { serverURL = old }()

	assert.True(t, isServerRunning())
	ready.Store(false)
	assert.False(t, isServerRunning())
}
