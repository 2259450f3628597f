package app

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/clipq-go/internal/domain"
)

const waitFor = 3 * time.Second

func newTestEngine(t *testing.T, library domain.Extractor) (*QueueEngine, *recordingNotifier) {
	t.Helper()
	return newTestEngineWithTranscoder(t, library, &fakeTranscoder{})
}

func newTestEngineWithTranscoder(t *testing.T, library domain.Extractor, transcoder domain.Transcoder) (*QueueEngine, *recordingNotifier) {
	t.Helper()

	cfg := domain.DefaultConfig()
	cfg.Download.DestDir = t.TempDir()
	cfg.Queue.AdvanceDelay = 10 * time.Millisecond

	notifier := &recordingNotifier{}
	engine := NewQueueEngine(EngineOptions{
		Config:     cfg,
		Gateway:    NewExtractorGateway(library, nil, nil),
		Trimmer:    NewTrimmer(transcoder, nil),
		Thumbnails: fakeThumbs{},
		Notifier:   notifier,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		engine.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return engine, notifier
}

func enqueue(t *testing.T, e *QueueEngine) *domain.Entry {
	t.Helper()
	entry, err := e.Enqueue(domain.EntryRequest{URL: "https://example.com/watch?v=abc"})
	require.NoError(t, err)
	return entry
}

func waitInitialized(t *testing.T, e *QueueEngine) {
	t.Helper()
	require.Eventually(t, func() bool {
		stats := e.Stats()
		return stats.Pending == 0 && stats.Initializing == 0
	}, waitFor, 5*time.Millisecond)
}

func waitStatus(t *testing.T, e *QueueEngine, id string, status domain.EntryStatus) {
	t.Helper()
	require.Eventually(t, func() bool {
		entry, err := e.Get(id)
		return err == nil && entry.Status == status
	}, waitFor, 5*time.Millisecond, "entry %s never reached %s", id, status)
}

func TestQueueEngine_EnqueueDefaultsAndInitializes(t *testing.T) {
	lib := &fakeExtractor{kind: domain.StrategyLibrary, title: "Clip"}
	e, _ := newTestEngine(t, lib)

	entry := enqueue(t, e)
	assert.Equal(t, domain.StatusInitializing, entry.Status)
	assert.Equal(t, e.config.Download.DestDir, entry.DestFolder)
	assert.Equal(t, domain.DefaultFormat, entry.FormatTag)

	waitStatus(t, e, entry.ID, domain.StatusQueued)
	got, err := e.Get(entry.ID)
	require.NoError(t, err)
	assert.Equal(t, "Clip", got.Title)
	assert.Equal(t, "2.0 kB", got.SizeText)

	require.Eventually(t, func() bool {
		_, ok := e.Thumbnail(entry.ID)
		return ok
	}, waitFor, 5*time.Millisecond)
}

func TestQueueEngine_EnqueueRejectsInvalid(t *testing.T) {
	e, _ := newTestEngine(t, &fakeExtractor{kind: domain.StrategyLibrary})

	_, err := e.Enqueue(domain.EntryRequest{URL: "not a url"})
	assert.Error(t, err)

	_, err = e.Enqueue(domain.EntryRequest{URL: "https://example.com/v", StartTime: "00:00:10", EndTime: "00:00:05"})
	assert.Error(t, err)
	assert.Empty(t, e.List())
}

func TestQueueEngine_StartEmpty(t *testing.T) {
	e, _ := newTestEngine(t, &fakeExtractor{kind: domain.StrategyLibrary})
	assert.ErrorIs(t, e.Start(), ErrQueueEmpty)
}

func TestQueueEngine_StartRefusedWhileInitializing(t *testing.T) {
	gate := make(chan struct{})
	lib := &fakeExtractor{kind: domain.StrategyLibrary, title: "Clip", resolveGate: gate}
	e, _ := newTestEngine(t, lib)

	entry := enqueue(t, e)
	assert.ErrorIs(t, e.Start(), ErrInitializing)

	close(gate)
	waitInitialized(t, e)
	require.NoError(t, e.Start())
	waitStatus(t, e, entry.ID, domain.StatusCompleted)
}

func TestQueueEngine_StartRacingEnqueueWaitsForInitialization(t *testing.T) {
	for i := 0; i < 100; i++ {
		gate := make(chan struct{})
		lib := &fakeExtractor{kind: domain.StrategyLibrary, title: "Clip", resolveGate: gate}
		e, _ := newTestEngine(t, lib)
		t.Cleanup(func() { close(gate) })

		var accepted atomic.Bool
		stop := make(chan struct{})
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				if e.Start() == nil {
					accepted.Store(true)
					return
				}
			}
		}()

		entry := enqueue(t, e)
		close(stop)
		wg.Wait()

		require.False(t, accepted.Load(), "start accepted while %s was initializing", entry.ID)
		assert.ErrorIs(t, e.Start(), ErrInitializing)
		assert.Zero(t, lib.downloadCount())
	}
}

func TestQueueEngine_RunsSequentiallyAndDrainsSkipped(t *testing.T) {
	lib := &fakeExtractor{kind: domain.StrategyLibrary, title: "Clip"}
	e, notifier := newTestEngine(t, lib)

	a := enqueue(t, e)
	b := enqueue(t, e)
	c := enqueue(t, e)
	waitInitialized(t, e)

	require.NoError(t, e.Skip(a.ID))
	require.NoError(t, e.Start())

	waitStatus(t, e, c.ID, domain.StatusCompleted)
	waitStatus(t, e, b.ID, domain.StatusCompleted)
	waitStatus(t, e, a.ID, domain.StatusSkipped)

	order, maxActive := lib.downloadOrder()
	assert.Equal(t, []string{b.ID, c.ID}, order)
	assert.Equal(t, 1, maxActive)

	got, err := e.Get(b.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, got.Progress)
	assert.NotEmpty(t, got.Filename)

	require.Eventually(t, func() bool { return notifier.idleCount() == 1 }, waitFor, 5*time.Millisecond)
	assert.Empty(t, e.ActiveEntryID())
}

func TestQueueEngine_StartTwice(t *testing.T) {
	started := make(chan struct{})
	lib := &fakeExtractor{kind: domain.StrategyLibrary, title: "Clip", blockFirst: true, started: started}
	e, _ := newTestEngine(t, lib)

	a := enqueue(t, e)
	waitInitialized(t, e)

	require.NoError(t, e.Start())
	assert.ErrorIs(t, e.Start(), ErrJobRunning)
	assert.Equal(t, a.ID, e.ActiveEntryID())

	<-started
	assert.True(t, e.Cancel())
	waitStatus(t, e, a.ID, domain.StatusCancelled)
}

func TestQueueEngine_CancelMovesOn(t *testing.T) {
	started := make(chan struct{})
	lib := &fakeExtractor{kind: domain.StrategyLibrary, title: "Clip", blockFirst: true, started: started}
	e, _ := newTestEngine(t, lib)

	assert.False(t, e.Cancel())

	a := enqueue(t, e)
	b := enqueue(t, e)
	waitInitialized(t, e)
	require.NoError(t, e.Start())

	<-started
	assert.True(t, e.Cancel())

	waitStatus(t, e, a.ID, domain.StatusCancelled)
	waitStatus(t, e, b.ID, domain.StatusCompleted)

	got, err := e.Get(a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.KindAbortedByUser, got.ErrorKind)
}

func TestQueueEngine_RemoveRunningCancels(t *testing.T) {
	started := make(chan struct{})
	lib := &fakeExtractor{kind: domain.StrategyLibrary, title: "Clip", blockFirst: true, started: started}
	e, _ := newTestEngine(t, lib)

	a := enqueue(t, e)
	waitInitialized(t, e)
	require.NoError(t, e.Start())
	<-started

	require.NoError(t, e.Remove(a.ID))
	waitStatus(t, e, a.ID, domain.StatusCancelled)
}

func TestQueueEngine_RemovePending(t *testing.T) {
	lib := &fakeExtractor{kind: domain.StrategyLibrary, title: "Clip"}
	e, _ := newTestEngine(t, lib)

	a := enqueue(t, e)
	b := enqueue(t, e)
	waitInitialized(t, e)

	require.NoError(t, e.Remove(b.ID))
	assert.ErrorIs(t, e.Remove(b.ID), ErrEntryNotPending)
	assert.ErrorIs(t, e.Remove("missing"), ErrEntryNotFound)
	assert.ErrorIs(t, e.Skip(b.ID), ErrEntryNotSkippable)
	assert.ErrorIs(t, e.Skip("missing"), ErrEntryNotFound)

	require.NoError(t, e.Start())
	waitStatus(t, e, a.ID, domain.StatusCompleted)

	got, err := e.Get(b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRemoved, got.Status)
	order, _ := lib.downloadOrder()
	assert.Equal(t, []string{a.ID}, order)
}

func TestQueueEngine_FailureRecorded(t *testing.T) {
	lib := &fakeExtractor{kind: domain.StrategyLibrary, title: "Clip", downloadErr: domain.ErrExternalToolFailure}
	e, notifier := newTestEngine(t, lib)

	a := enqueue(t, e)
	waitInitialized(t, e)
	require.NoError(t, e.Start())
	waitStatus(t, e, a.ID, domain.StatusFailed)

	got, err := e.Get(a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.KindExternalToolFailure, got.ErrorKind)
	assert.NotEmpty(t, got.ErrorMessage)

	require.Eventually(t, func() bool {
		notifier.mu.Lock()
		defer notifier.mu.Unlock()
		return len(notifier.finished) == 1 && notifier.finished[0].Status == domain.StatusFailed
	}, waitFor, 5*time.Millisecond)
}

func TestQueueEngine_TrimFailureRecordedOnEntry(t *testing.T) {
	lib := &fakeExtractor{kind: domain.StrategyLibrary, title: "Clip"}
	transcoder := &fakeTranscoder{copyErr: errors.New("copy"), reencodeErr: errors.New("reencode")}
	e, _ := newTestEngineWithTranscoder(t, lib, transcoder)

	a, err := e.Enqueue(domain.EntryRequest{
		URL:       "https://example.com/watch?v=abc",
		StartTime: "00:00:01",
		EndTime:   "00:00:05",
	})
	require.NoError(t, err)
	waitInitialized(t, e)
	require.NoError(t, e.Start())
	waitStatus(t, e, a.ID, domain.StatusCompleted)

	got, err := e.Get(a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.KindTrimFailed, got.ErrorKind)
	assert.NotEmpty(t, got.ErrorMessage)
	assert.False(t, got.Trimmed)
	assert.NotEmpty(t, got.Filename)
}

func TestQueueEngine_Stats(t *testing.T) {
	lib := &fakeExtractor{kind: domain.StrategyLibrary, title: "Clip"}
	e, _ := newTestEngine(t, lib)

	a := enqueue(t, e)
	b := enqueue(t, e)
	c := enqueue(t, e)
	waitInitialized(t, e)
	require.NoError(t, e.Remove(c.ID))
	require.NoError(t, e.Skip(b.ID))
	require.NoError(t, e.Start())
	waitStatus(t, e, a.ID, domain.StatusCompleted)
	waitStatus(t, e, b.ID, domain.StatusSkipped)

	stats := e.Stats()
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.Completed)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 1, stats.Removed)
	assert.Zero(t, stats.Running)
	assert.Zero(t, stats.Pending)
}

func TestQueueEngine_SubscribersSeeEntryChanges(t *testing.T) {
	lib := &fakeExtractor{kind: domain.StrategyLibrary, title: "Clip"}
	e, _ := newTestEngine(t, lib)

	events, stop := e.Subscribe()
	defer stop()

	a := enqueue(t, e)
	waitInitialized(t, e)
	require.NoError(t, e.Start())

	deadline := time.After(waitFor)
	for {
		select {
		case ev := <-events:
			if ev.Kind == domain.EventEntry && ev.EntryID == a.ID && ev.Entry.Status == domain.StatusCompleted {
				return
			}
		case <-deadline:
			t.Fatal("never saw the completed entry")
		}
	}
}
