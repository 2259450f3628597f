package domain

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEntry(t *testing.T) {
	dest := t.TempDir()

	entry, err := NewEntry(EntryRequest{
		URL:        "https://example.com/watch?v=abc",
		DestFolder: dest,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, "https://example.com/watch?v=abc", entry.URL)
	assert.Equal(t, DefaultFormat, entry.FormatTag)
	assert.Equal(t, dest, entry.DestFolder)
	assert.Equal(t, StatusQueued, entry.Status)
	assert.False(t, entry.HasTrim())
	assert.False(t, entry.Skipped)
}

func TestNewEntry_CreatesDestination(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "nested", "dir")

	entry, err := NewEntry(EntryRequest{URL: "https://example.com/v", DestFolder: dest})
	require.NoError(t, err)
	assert.DirExists(t, entry.DestFolder)
}

func TestNewEntry_WithTrim(t *testing.T) {
	entry, err := NewEntry(EntryRequest{
		URL:        "https://example.com/v",
		Format:     "bestaudio",
		DestFolder: t.TempDir(),
		StartTime:  "0:30",
		EndTime:    "1:30",
	})
	require.NoError(t, err)
	require.True(t, entry.HasTrim())
	assert.Equal(t, "00:00:30", entry.Trim.Start)
	assert.Equal(t, "00:01:30", entry.Trim.End)
	assert.Equal(t, "bestaudio", entry.FormatTag)
}

func TestNewEntry_RejectsHalfTrim(t *testing.T) {
	_, err := NewEntry(EntryRequest{
		URL:        "https://example.com/v",
		DestFolder: t.TempDir(),
		StartTime:  "00:00:10",
	})
	assert.ErrorIs(t, err, ErrInvalidTrimRange)
}

func TestNewEntry_RejectsBadInput(t *testing.T) {
	dest := t.TempDir()

	_, err := NewEntry(EntryRequest{URL: "", DestFolder: dest})
	assert.Error(t, err)

	_, err = NewEntry(EntryRequest{URL: "ftp://example.com/file", DestFolder: dest})
	assert.Error(t, err)

	_, err = NewEntry(EntryRequest{URL: "https://example.com/v"})
	assert.Error(t, err)

	_, err = NewEntry(EntryRequest{URL: "https://example.com/v", DestFolder: dest, StartTime: "aa:bb:cc", EndTime: "00:00:10"})
	assert.ErrorIs(t, err, ErrInvalidTimeFormat)
}

func TestEntry_Lifecycle(t *testing.T) {
	entry, err := NewEntry(EntryRequest{URL: "https://example.com/v", DestFolder: t.TempDir()})
	require.NoError(t, err)

	entry.MarkStarted()
	assert.Equal(t, StatusResolving, entry.Status)
	assert.True(t, entry.IsRunning())
	assert.NotNil(t, entry.StartedAt)

	entry.MarkCompleted("/tmp/out.mp4", true, nil)
	assert.Equal(t, StatusCompleted, entry.Status)
	assert.Equal(t, "/tmp/out.mp4", entry.Filename)
	assert.True(t, entry.Trimmed)
	assert.Equal(t, 100, entry.Progress)
	assert.True(t, entry.IsTerminal())
	assert.NotNil(t, entry.FinishedAt)
}

func TestEntry_MarkFailedAndCancelled(t *testing.T) {
	entry := &Entry{Status: StatusDownloading}
	entry.MarkFailed(NewJobError(ErrExtractionError))
	assert.Equal(t, StatusFailed, entry.Status)
	assert.Equal(t, KindExtractionError, entry.ErrorKind)
	assert.NotEmpty(t, entry.ErrorMessage)

	entry = &Entry{Status: StatusDownloading}
	entry.MarkCancelled()
	assert.Equal(t, StatusCancelled, entry.Status)
	assert.Equal(t, KindAbortedByUser, entry.ErrorKind)
}

func TestEntry_Clone(t *testing.T) {
	size := int64(42)
	entry := &Entry{ID: "a", Filesize: &size, Trim: &TrimRange{Start: "00:00:01", End: "00:00:02"}}

	c := entry.Clone()
	*c.Filesize = 7
	c.Trim.End = "00:00:09"

	assert.Equal(t, int64(42), *entry.Filesize)
	assert.Equal(t, "00:00:02", entry.Trim.End)
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind ErrorKind
	}{
		{"aborted", ErrAbortedByUser, KindAbortedByUser},
		{"wrapped tool failure", errors.Join(errors.New("exit 1"), ErrExternalToolFailure), KindExternalToolFailure},
		{"extraction", ErrExtractionError, KindExtractionError},
		{"trim", ErrTrimFailed, KindTrimFailed},
		{"other", errors.New("boom"), KindUnknownError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, ClassifyError(tt.err))
		})
	}
}

func TestNewJobError_WrapsUnknown(t *testing.T) {
	cause := errors.New("boom")
	jobErr := NewJobError(cause)

	assert.Equal(t, KindUnknownError, jobErr.Kind)
	assert.ErrorIs(t, jobErr, ErrUnknown)
	assert.ErrorIs(t, jobErr, cause)
	assert.Same(t, jobErr, NewJobError(jobErr))
	assert.Nil(t, NewJobError(nil))
}

func TestProgressUpdate_Percent(t *testing.T) {
	assert.Equal(t, 50, ProgressUpdate{Downloaded: 50, Total: 100, Fraction: -1}.Percent())
	assert.Equal(t, 33, ProgressUpdate{Downloaded: 1, Total: 3, Fraction: -1}.Percent())
	assert.Equal(t, 25, ProgressUpdate{Fraction: 0.25}.Percent())
	assert.Equal(t, -1, ProgressUpdate{Fraction: -1}.Percent())
	assert.Equal(t, 100, ProgressUpdate{Done: true, Fraction: -1}.Percent())
	assert.Equal(t, 100, ProgressUpdate{Downloaded: 120, Total: 100}.Percent())
}
