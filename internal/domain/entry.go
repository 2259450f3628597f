package domain

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EntryStatus represents where an entry is in its lifecycle
type EntryStatus string

const (
	StatusQueued       EntryStatus = "queued"
	StatusInitializing EntryStatus = "initializing"
	StatusResolving    EntryStatus = "resolving"
	StatusDownloading  EntryStatus = "downloading"
	StatusTrimming     EntryStatus = "trimming"
	StatusCompleted    EntryStatus = "completed"
	StatusFailed       EntryStatus = "failed"
	StatusCancelled    EntryStatus = "cancelled"
	StatusSkipped      EntryStatus = "skipped"
	StatusRemoved      EntryStatus = "removed"
)

// DefaultFormat is used when a request carries no format selector
const DefaultFormat = "best"

// EntryRequest is the user input for adding an entry to the queue
type EntryRequest struct {
	URL        string `json:"url"`
	Format     string `json:"format,omitempty"`
	DestFolder string `json:"dest_folder,omitempty"`
	StartTime  string `json:"start_time,omitempty"`
	EndTime    string `json:"end_time,omitempty"`
}

// Entry is one requested download and everything learned about it
type Entry struct {
	ID           string      `json:"id"`
	URL          string      `json:"url"`
	FormatTag    string      `json:"format"`
	DestFolder   string      `json:"dest_folder"`
	Filename     string      `json:"filename,omitempty"`
	Title        string      `json:"title,omitempty"`
	ThumbnailURL string      `json:"thumbnail_url,omitempty"`
	Filesize     *int64      `json:"filesize,omitempty"`
	Trim         *TrimRange  `json:"trim,omitempty"`
	Skipped      bool        `json:"skipped"`
	Status       EntryStatus `json:"status"`
	Progress     int         `json:"progress"`
	SizeText     string      `json:"size,omitempty"`
	StatusText   string      `json:"status_text,omitempty"`
	Trimmed      bool        `json:"trimmed"`
	ErrorKind    ErrorKind   `json:"error_kind,omitempty"`
	ErrorMessage string      `json:"error_message,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	StartedAt    *time.Time  `json:"started_at,omitempty"`
	FinishedAt   *time.Time  `json:"finished_at,omitempty"`
}

// NewEntry validates a request and builds a queued entry from it. Trim
// validation happens here so malformed ranges never reach a job.
func NewEntry(req EntryRequest) (*Entry, error) {
	rawURL := strings.TrimSpace(req.URL)
	if err := ValidateURL(rawURL); err != nil {
		return nil, err
	}

	trim, err := NewTrimRange(req.StartTime, req.EndTime)
	if err != nil {
		return nil, err
	}

	dest := strings.TrimSpace(req.DestFolder)
	if dest == "" {
		return nil, fmt.Errorf("destination folder is required")
	}
	dest, err = filepath.Abs(dest)
	if err != nil {
		return nil, fmt.Errorf("invalid destination folder: %w", err)
	}
	if err := os.MkdirAll(dest, 0755); err != nil {
		return nil, fmt.Errorf("failed to create destination folder: %w", err)
	}

	format := strings.TrimSpace(req.Format)
	if format == "" {
		format = DefaultFormat
	}

	return &Entry{
		ID:         uuid.New().String(),
		URL:        rawURL,
		FormatTag:  format,
		DestFolder: dest,
		Trim:       trim,
		Status:     StatusQueued,
		CreatedAt:  time.Now(),
	}, nil
}

// ValidateURL accepts absolute http(s) URLs only
func ValidateURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid url: %s", raw)
	}
	return nil
}

// HasTrim reports whether a trim range was requested
func (e *Entry) HasTrim() bool {
	return e.Trim != nil
}

// MarkStarted moves the entry into the resolving phase of its job
func (e *Entry) MarkStarted() {
	now := time.Now()
	e.Status = StatusResolving
	e.StartedAt = &now
}

// MarkCompleted records a successful job. A non-nil warning keeps the
// completed status but records its kind and message.
func (e *Entry) MarkCompleted(filename string, trimmed bool, warning *JobError) {
	e.Status = StatusCompleted
	e.Filename = filename
	e.Trimmed = trimmed
	e.Progress = 100
	if warning != nil {
		e.ErrorKind = warning.Kind
		e.ErrorMessage = warning.Error()
	}
	e.finish()
}

// MarkFailed records a failed job with a short reason
func (e *Entry) MarkFailed(err *JobError) {
	e.Status = StatusFailed
	if err != nil {
		e.ErrorKind = err.Kind
		e.ErrorMessage = err.Error()
	}
	e.finish()
}

// MarkCancelled records a job aborted by the user
func (e *Entry) MarkCancelled() {
	e.Status = StatusCancelled
	e.ErrorKind = KindAbortedByUser
	e.ErrorMessage = ErrAbortedByUser.Error()
	e.finish()
}

// MarkSkipped records an entry drained from the head of the queue
func (e *Entry) MarkSkipped() {
	e.Status = StatusSkipped
	e.finish()
}

// MarkRemoved records an entry deleted before it ran
func (e *Entry) MarkRemoved() {
	e.Status = StatusRemoved
	e.finish()
}

func (e *Entry) finish() {
	now := time.Now()
	e.FinishedAt = &now
}

// IsTerminal checks if the entry reached a final display state
func (e *Entry) IsTerminal() bool {
	switch e.Status {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusSkipped, StatusRemoved:
		return true
	}
	return false
}

// IsRunning checks if a job currently owns the entry
func (e *Entry) IsRunning() bool {
	switch e.Status {
	case StatusResolving, StatusDownloading, StatusTrimming:
		return true
	}
	return false
}

// Clone returns a copy that can leave the coordinator safely
func (e *Entry) Clone() *Entry {
	c := *e
	if e.Filesize != nil {
		size := *e.Filesize
		c.Filesize = &size
	}
	if e.Trim != nil {
		trim := *e.Trim
		c.Trim = &trim
	}
	return &c
}

// QueueStats summarizes entries by status
type QueueStats struct {
	Total        int    `json:"total"`
	Queued       int    `json:"queued"`
	Initializing int    `json:"initializing"`
	Running      int    `json:"running"`
	Completed    int    `json:"completed"`
	Failed       int    `json:"failed"`
	Cancelled    int    `json:"cancelled"`
	Skipped      int    `json:"skipped"`
	Removed      int    `json:"removed"`
	Pending      int    `json:"pending_initializations"`
	ActiveID     string `json:"active_id,omitempty"`
}
