package app

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/yourusername/clipq-go/internal/domain"
	"github.com/yourusername/clipq-go/pkg/logger"
)

var (
	ErrQueueEmpty        = errors.New("queue is empty")
	ErrJobRunning        = errors.New("a download is already running")
	ErrInitializing      = errors.New("entries are still initializing")
	ErrEntryNotFound     = errors.New("entry not found")
	ErrEntryNotPending   = errors.New("entry is not pending")
	ErrEntryNotSkippable = errors.New("entry is already running or finished")
)

// Notifier is told about finished entries and an idle queue
type Notifier interface {
	NotifyEntryFinished(entry *domain.Entry)
	NotifyQueueIdle()
}

// EngineOptions carries the collaborators a QueueEngine needs
type EngineOptions struct {
	Config     *domain.Config
	Gateway    *ExtractorGateway
	Trimmer    *Trimmer
	Thumbnails domain.ThumbnailFetcher
	Notifier   Notifier
	Logs       *logger.LoggerAdapter
}

// QueueEngine owns every entry and the single active job. Workers never touch
// entries; they send events which the Run loop applies.
type QueueEngine struct {
	config      *domain.Config
	gateway     *ExtractorGateway
	trimmer     *Trimmer
	initializer *Initializer
	notifier    Notifier
	logs        *logger.LoggerAdapter
	events      *eventChannel
	broadcaster *Broadcaster
	running     atomic.Bool

	mu         sync.Mutex
	ctx        context.Context
	entries    []*domain.Entry
	byID       map[string]*domain.Entry
	pending    []string
	active     *DownloadJob
	thumbnails map[string][]byte
	ranJobs    bool
}

// NewQueueEngine creates a queue engine. Call Run to start applying events.
func NewQueueEngine(opts EngineOptions) *QueueEngine {
	logs := opts.Logs
	if logs == nil {
		logs = logger.NewSingleLoggerAdapter(nil)
	}
	config := opts.Config
	if config == nil {
		config = domain.DefaultConfig()
	}

	e := &QueueEngine{
		config:      config,
		gateway:     opts.Gateway,
		trimmer:     opts.Trimmer,
		notifier:    opts.Notifier,
		logs:        logs,
		events:      newEventChannel(config.Queue.EventBuffer),
		broadcaster: NewBroadcaster(),
		ctx:         context.Background(),
		byID:        make(map[string]*domain.Entry),
		thumbnails:  make(map[string][]byte),
	}
	e.initializer = NewInitializer(opts.Gateway, opts.Thumbnails, e.events, logs)
	return e
}

// Enqueue validates a request, appends the entry and starts its
// initialization. Missing destination and format fall back to config.
func (e *QueueEngine) Enqueue(req domain.EntryRequest) (*domain.Entry, error) {
	if req.DestFolder == "" {
		req.DestFolder = e.config.Download.DestDir
	}
	if req.Format == "" {
		req.Format = e.config.Download.DefaultFormat
	}

	entry, err := domain.NewEntry(req)
	if err != nil {
		return nil, err
	}
	entry.Status = domain.StatusInitializing

	e.mu.Lock()
	e.entries = append(e.entries, entry)
	e.byID[entry.ID] = entry
	e.pending = append(e.pending, entry.ID)
	e.initializer.Reserve()
	ctx := e.ctx
	snapshot := entry.Clone()
	e.mu.Unlock()

	e.logs.LogQueueEvent("entry_added",
		zap.String("entry_id", entry.ID),
		zap.String("url", entry.URL),
		zap.String("format", entry.FormatTag),
		zap.Bool("trim", entry.HasTrim()))
	e.publishEntry(snapshot)

	e.initializer.Launch(ctx, snapshot.Clone())
	return snapshot, nil
}

// Start begins processing the queue. It is refused while a job runs, while
// initializations are pending, or when nothing is queued. The checks and the
// first advance happen under one lock so an entry enqueued meanwhile cannot
// slip past the initialization gate.
func (e *QueueEngine) Start() error {
	e.mu.Lock()
	switch {
	case e.active != nil:
		e.mu.Unlock()
		return ErrJobRunning
	case e.initializer.InFlight() > 0:
		e.mu.Unlock()
		return ErrInitializing
	case len(e.pending) == 0:
		e.mu.Unlock()
		return ErrQueueEmpty
	}

	e.logs.LogQueueEvent("queue_started")
	e.advanceLocked()
	return nil
}

// advance starts the next runnable entry, draining skipped and removed
// entries from the head of the queue
func (e *QueueEngine) advance() {
	e.mu.Lock()
	e.advanceLocked()
}

// advanceLocked is advance with e.mu held; it releases the lock.
func (e *QueueEngine) advanceLocked() {
	if e.active != nil || e.ctx.Err() != nil {
		e.mu.Unlock()
		return
	}

	var changed []*domain.Entry
	var job *DownloadJob
	for len(e.pending) > 0 && job == nil {
		id := e.pending[0]
		e.pending = e.pending[1:]

		entry, ok := e.byID[id]
		if !ok || entry.IsTerminal() {
			continue
		}
		if entry.Skipped {
			entry.MarkSkipped()
			changed = append(changed, entry.Clone())
			e.logs.LogQueueEvent("entry_skipped", zap.String("entry_id", id))
			continue
		}

		entry.MarkStarted()
		changed = append(changed, entry.Clone())
		job = NewDownloadJob(entry.Clone(), e.gateway, e.trimmer, e.events, e.logs)
		e.active = job
		e.ranJobs = true
	}

	idle := job == nil && e.ranJobs
	if idle {
		e.ranJobs = false
	}
	ctx := e.ctx
	e.mu.Unlock()

	for _, entry := range changed {
		e.publishEntry(entry)
	}

	if job != nil {
		e.logs.LogQueueEvent("job_started", zap.String("entry_id", job.EntryID()))
		go job.Run(ctx)
		return
	}

	if idle {
		e.logs.LogQueueEvent("queue_idle")
		if e.notifier != nil {
			e.notifier.NotifyQueueIdle()
		}
	}
}

// Cancel aborts the running job. It reports false when nothing is running.
func (e *QueueEngine) Cancel() bool {
	e.mu.Lock()
	job := e.active
	e.mu.Unlock()

	if job == nil {
		return false
	}
	job.Abort()
	e.logs.LogQueueEvent("job_cancel_requested", zap.String("entry_id", job.EntryID()))
	return true
}

// Remove deletes a pending entry from the queue. Removing the running entry
// cancels its job instead.
func (e *QueueEngine) Remove(id string) error {
	e.mu.Lock()
	entry, ok := e.byID[id]
	if !ok {
		e.mu.Unlock()
		return ErrEntryNotFound
	}

	if e.active != nil && e.active.EntryID() == id {
		job := e.active
		e.mu.Unlock()
		job.Abort()
		e.logs.LogQueueEvent("job_cancel_requested", zap.String("entry_id", id))
		return nil
	}

	if entry.IsTerminal() {
		e.mu.Unlock()
		return ErrEntryNotPending
	}

	for i, pid := range e.pending {
		if pid == id {
			e.pending = append(e.pending[:i], e.pending[i+1:]...)
			break
		}
	}
	entry.MarkRemoved()
	snapshot := entry.Clone()
	e.mu.Unlock()

	e.logs.LogQueueEvent("entry_removed", zap.String("entry_id", id))
	e.publishEntry(snapshot)
	return nil
}

// Skip flags a pending entry so the queue drains it without running it
func (e *QueueEngine) Skip(id string) error {
	e.mu.Lock()
	entry, ok := e.byID[id]
	if !ok {
		e.mu.Unlock()
		return ErrEntryNotFound
	}
	if entry.IsTerminal() || entry.IsRunning() {
		e.mu.Unlock()
		return ErrEntryNotSkippable
	}
	entry.Skipped = true
	snapshot := entry.Clone()
	e.mu.Unlock()

	e.publishEntry(snapshot)
	return nil
}

// Get returns a copy of one entry
func (e *QueueEngine) Get(id string) (*domain.Entry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	entry, ok := e.byID[id]
	if !ok {
		return nil, ErrEntryNotFound
	}
	return entry.Clone(), nil
}

// List returns copies of all entries in insertion order
func (e *QueueEngine) List() []*domain.Entry {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]*domain.Entry, 0, len(e.entries))
	for _, entry := range e.entries {
		out = append(out, entry.Clone())
	}
	return out
}

// Thumbnail returns the thumbnail bytes fetched for an entry, if any
func (e *QueueEngine) Thumbnail(id string) ([]byte, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	data, ok := e.thumbnails[id]
	return data, ok
}

// Stats counts entries by status
func (e *QueueEngine) Stats() *domain.QueueStats {
	e.mu.Lock()
	defer e.mu.Unlock()

	stats := &domain.QueueStats{
		Total:   len(e.entries),
		Pending: e.initializer.InFlight(),
	}
	if e.active != nil {
		stats.ActiveID = e.active.EntryID()
	}
	for _, entry := range e.entries {
		switch entry.Status {
		case domain.StatusQueued:
			stats.Queued++
		case domain.StatusInitializing:
			stats.Initializing++
		case domain.StatusResolving, domain.StatusDownloading, domain.StatusTrimming:
			stats.Running++
		case domain.StatusCompleted:
			stats.Completed++
		case domain.StatusFailed:
			stats.Failed++
		case domain.StatusCancelled:
			stats.Cancelled++
		case domain.StatusSkipped:
			stats.Skipped++
		case domain.StatusRemoved:
			stats.Removed++
		}
	}
	return stats
}

// ActiveEntryID returns the entry the running job works on, or ""
func (e *QueueEngine) ActiveEntryID() string {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.active == nil {
		return ""
	}
	return e.active.EntryID()
}

// Subscribe returns a stream of events and a function to end it
func (e *QueueEngine) Subscribe() (<-chan domain.Event, func()) {
	return e.broadcaster.Subscribe()
}

// Running reports whether Run is applying events
func (e *QueueEngine) Running() bool {
	return e.running.Load()
}

// Run applies worker events until ctx ends, then aborts the running job and
// waits for pending initializations to settle
func (e *QueueEngine) Run(ctx context.Context) {
	e.mu.Lock()
	e.ctx = ctx
	e.mu.Unlock()

	e.running.Store(true)
	defer e.running.Store(false)

	e.logs.LogQueueEvent("engine_started")
	for {
		select {
		case <-ctx.Done():
			e.Cancel()
			e.initializer.Wait()
			e.logs.LogQueueEvent("engine_stopped")
			return
		case ev := <-e.events.ch:
			e.apply(ev)
		}
	}
}

// apply folds one worker event into the entry it concerns
func (e *QueueEngine) apply(ev domain.Event) {
	e.mu.Lock()
	entry, ok := e.byID[ev.EntryID]
	if !ok {
		e.mu.Unlock()
		return
	}

	var finished *domain.Entry
	changed := false

	switch ev.Kind {
	case domain.EventProgress:
		if entry.IsRunning() && ev.Percent > entry.Progress {
			entry.Progress = ev.Percent
		}
	case domain.EventStatus:
		if !entry.IsTerminal() {
			entry.StatusText = ev.Text
		}
	case domain.EventThumbnail:
		e.thumbnails[entry.ID] = ev.Thumbnail
	case domain.EventSizeKnown:
		if ev.Media != nil && ev.Media.Filesize != nil {
			size := *ev.Media.Filesize
			entry.Filesize = &size
		}
		entry.SizeText = ev.Text
		changed = true
	case domain.EventMetadata:
		if ev.Media != nil && !entry.IsTerminal() {
			applyMedia(entry, ev.Media)
			changed = true
		}
	case domain.EventInitialized:
		if entry.Status == domain.StatusInitializing {
			entry.Status = domain.StatusQueued
			changed = true
		}
	case domain.EventPhase:
		if e.isActive(entry.ID) && entry.IsRunning() {
			switch ev.Phase {
			case domain.PhaseResolving:
				entry.Status = domain.StatusResolving
			case domain.PhaseDownloading:
				entry.Status = domain.StatusDownloading
			case domain.PhaseTrimming:
				entry.Status = domain.StatusTrimming
			}
			changed = true
		}
	case domain.EventFinished:
		if !e.isActive(entry.ID) {
			break
		}
		e.active = nil
		if !entry.IsTerminal() && ev.Result != nil {
			switch ev.Result.Outcome {
			case domain.OutcomeCompleted:
				entry.MarkCompleted(ev.Result.Filename, ev.Result.Trimmed, ev.Result.Warning)
			case domain.OutcomeAborted:
				entry.MarkCancelled()
			default:
				entry.MarkFailed(ev.Result.Err)
			}
		}
		finished = entry.Clone()
		changed = true
	}

	var snapshot *domain.Entry
	if changed {
		snapshot = entry.Clone()
	}
	e.mu.Unlock()

	e.broadcaster.Publish(ev)
	if snapshot != nil {
		e.publishEntry(snapshot)
	}

	if finished != nil {
		e.logs.LogQueueEvent("job_finished",
			zap.String("entry_id", finished.ID),
			zap.String("status", string(finished.Status)),
			zap.String("filename", finished.Filename),
			zap.Bool("trimmed", finished.Trimmed),
			zap.String("error_kind", string(finished.ErrorKind)))
		if finished.Status == domain.StatusFailed {
			e.logs.LogAppError("Download failed",
				zap.String("entry_id", finished.ID),
				zap.String("url", finished.URL),
				zap.String("error", finished.ErrorMessage))
		}
		if e.notifier != nil {
			e.notifier.NotifyEntryFinished(finished)
		}
		time.AfterFunc(e.config.Queue.AdvanceDelay, e.advance)
	}
}

func (e *QueueEngine) isActive(id string) bool {
	return e.active != nil && e.active.EntryID() == id
}

func (e *QueueEngine) publishEntry(entry *domain.Entry) {
	e.broadcaster.Publish(domain.Event{
		Kind:    domain.EventEntry,
		EntryID: entry.ID,
		Entry:   entry,
		Time:    time.Now(),
	})
}

func applyMedia(entry *domain.Entry, media *domain.MediaInfo) {
	if media.Title != "" {
		entry.Title = media.Title
	}
	if media.ThumbnailURL != "" {
		entry.ThumbnailURL = media.ThumbnailURL
	}
	if media.Filename != "" {
		entry.Filename = media.Filename
	}
	if media.Filesize != nil && *media.Filesize > 0 {
		size := *media.Filesize
		entry.Filesize = &size
		entry.SizeText = humanize.Bytes(uint64(size))
	}
}
