package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"github.com/yourusername/clipq-go/internal/domain"
	"github.com/yourusername/clipq-go/internal/infrastructure"
	"github.com/yourusername/clipq-go/pkg/logger"
	"go.uber.org/zap"
)

// runState is the shared state of the one running job. aborted only ever
// goes from false to true.
type runState struct {
	aborted atomic.Bool
	phase   atomic.Value // domain.JobPhase

	mu     sync.Mutex
	cancel context.CancelFunc
}

func (s *runState) bind(cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancel = cancel
	if s.aborted.Load() {
		cancel()
	}
}

func (s *runState) abort() {
	s.aborted.Store(true)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}

// DownloadJob resolves, downloads and optionally trims one entry. It works
// on a snapshot of the entry and reports back only through events.
type DownloadJob struct {
	entry     *domain.Entry
	gateway   *ExtractorGateway
	trimmer   *Trimmer
	publisher EventPublisher
	logs      *logger.LoggerAdapter
	state     runState

	// parent context used for publishing, outlives an abort
	ctx context.Context

	mu          sync.Mutex
	lastPercent int
	sizeKnown   bool
	filename    string
	title       string
}

// NewDownloadJob creates a job for a snapshot of entry
func NewDownloadJob(entry *domain.Entry, gateway *ExtractorGateway, trimmer *Trimmer, publisher EventPublisher, logs *logger.LoggerAdapter) *DownloadJob {
	if logs == nil {
		logs = logger.NewSingleLoggerAdapter(nil)
	}
	j := &DownloadJob{
		entry:       entry,
		gateway:     gateway,
		trimmer:     trimmer,
		publisher:   publisher,
		logs:        logs,
		ctx:         context.Background(),
		lastPercent: -1,
		filename:    entry.Filename,
		title:       entry.Title,
	}
	j.state.phase.Store(domain.PhaseResolving)
	return j
}

// EntryID returns the ID of the entry this job works on
func (j *DownloadJob) EntryID() string {
	return j.entry.ID
}

// Phase returns the step the job is in
func (j *DownloadJob) Phase() domain.JobPhase {
	return j.state.phase.Load().(domain.JobPhase)
}

// Aborted reports whether Abort was called
func (j *DownloadJob) Aborted() bool {
	return j.state.aborted.Load()
}

// Abort asks the job to stop. It is safe to call at any time and more than once.
func (j *DownloadJob) Abort() {
	j.state.abort()
}

// Run executes the job and publishes exactly one finished event
func (j *DownloadJob) Run(ctx context.Context) {
	j.ctx = ctx
	jobCtx, cancel := context.WithCancel(ctx)
	j.state.bind(cancel)
	defer cancel()

	result := j.execute(jobCtx)
	j.setPhase(domain.PhaseDone)

	if result.Err != nil {
		result.Error = result.Err.Error()
	}
	if result.Warning != nil {
		result.WarningText = result.Warning.Error()
	}
	j.publisher.Publish(ctx, domain.Event{
		Kind:    domain.EventFinished,
		EntryID: j.entry.ID,
		Result:  result,
	})
}

func (j *DownloadJob) execute(ctx context.Context) *domain.JobResult {
	extractor := j.gateway.Select(j.entry.HasTrim())
	req := domain.ExtractRequest{
		EntryID:    j.entry.ID,
		URL:        j.entry.URL,
		Format:     j.entry.FormatTag,
		DestFolder: j.entry.DestFolder,
		Trim:       j.entry.Trim,
	}

	j.logs.Queue().Info("Job running",
		zap.String("entry_id", j.entry.ID),
		zap.String("strategy", string(extractor.Name())))

	// resolving: failures here are not fatal, the download may still work
	j.setPhase(domain.PhaseResolving)
	info, err := extractor.Resolve(ctx, req)
	if j.Aborted() {
		return abortedResult()
	}
	if err != nil {
		j.logs.Queue().Warn("Metadata resolve failed",
			zap.String("entry_id", j.entry.ID),
			zap.Error(err))
		j.Status("Metadata unavailable, downloading anyway")
	} else {
		j.applyMedia(info)
		j.publisher.Publish(j.ctx, domain.Event{
			Kind:    domain.EventMetadata,
			EntryID: j.entry.ID,
			Media:   info,
		})
		if info.Filesize != nil {
			j.sizeKnownOnce(*info.Filesize)
		}
	}

	j.setPhase(domain.PhaseDownloading)
	path, err := extractor.Download(ctx, req, j)
	if path != "" {
		j.Filename(path)
	}
	if j.Aborted() || domain.ClassifyError(err) == domain.KindAbortedByUser {
		return abortedResult()
	}
	if err != nil {
		return failedResult(err)
	}

	filename, title := j.snapshot()
	resolved, err := infrastructure.Reconcile(j.entry.DestFolder, filename, title, j.entry.URL)
	if err != nil {
		j.logs.Queue().Warn("Downloaded file not found",
			zap.String("entry_id", j.entry.ID),
			zap.String("advisory", filename),
			zap.Error(err))
		j.Status("Download finished but the output file could not be located")
		resolved = ""
	}
	j.setFilename(resolved)

	var warning *domain.JobError
	trimmed := j.entry.HasTrim() && extractor.AppliesSections()
	if j.entry.HasTrim() && resolved != "" && !extractor.AppliesSections() {
		if j.Aborted() {
			return abortedResult()
		}
		j.setPhase(domain.PhaseTrimming)
		outcome, err := j.trimmer.Trim(ctx, resolved, j.entry.Trim)
		switch {
		case j.Aborted() || domain.ClassifyError(err) == domain.KindAbortedByUser:
			return abortedResult()
		case errors.Is(err, domain.ErrTrimFailed):
			j.logs.LogAppError("Trim failed, keeping full download",
				zap.String("entry_id", j.entry.ID),
				zap.String("path", resolved),
				zap.Error(err))
			j.Status("Trim failed, kept the full download")
			warning = domain.NewJobError(err)
		case err != nil:
			return failedResult(err)
		case outcome == TrimSkipped:
			j.logs.Queue().Warn("Trim skipped, range is no longer valid",
				zap.String("entry_id", j.entry.ID),
				zap.String("start", j.entry.Trim.Start),
				zap.String("end", j.entry.Trim.End))
			j.Status("Trim range invalid, kept the full download")
		default:
			trimmed = true
		}
	}

	if j.Aborted() {
		return abortedResult()
	}
	return &domain.JobResult{
		Outcome:  domain.OutcomeCompleted,
		Filename: resolved,
		Trimmed:  trimmed,
		Warning:  warning,
	}
}

// Progress forwards a progress update if it moves the percentage forward
func (j *DownloadJob) Progress(update domain.ProgressUpdate) {
	if update.Total > 0 {
		j.sizeKnownOnce(update.Total)
	}

	pct := update.Percent()
	j.mu.Lock()
	if pct < 0 || pct <= j.lastPercent {
		j.mu.Unlock()
		return
	}
	j.lastPercent = pct
	j.mu.Unlock()

	j.publisher.Publish(j.ctx, domain.Event{
		Kind:    domain.EventProgress,
		EntryID: j.entry.ID,
		Percent: pct,
	})
}

// sizeKnownOnce publishes the output size the first time it becomes known
func (j *DownloadJob) sizeKnownOnce(size int64) {
	if size <= 0 {
		return
	}
	j.mu.Lock()
	if j.sizeKnown {
		j.mu.Unlock()
		return
	}
	j.sizeKnown = true
	j.mu.Unlock()

	j.publisher.Publish(j.ctx, domain.Event{
		Kind:    domain.EventSizeKnown,
		EntryID: j.entry.ID,
		Text:    humanize.Bytes(uint64(size)),
		Media:   &domain.MediaInfo{Filesize: &size},
	})
}

// Status forwards a free-text status line
func (j *DownloadJob) Status(text string) {
	j.publisher.Publish(j.ctx, domain.Event{
		Kind:    domain.EventStatus,
		EntryID: j.entry.ID,
		Text:    text,
	})
}

// Filename records the advisory output path an extractor reported
func (j *DownloadJob) Filename(path string) {
	j.setFilename(path)
}

func (j *DownloadJob) setFilename(path string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.filename = path
}

func (j *DownloadJob) applyMedia(info *domain.MediaInfo) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if info.Title != "" {
		j.title = info.Title
	}
	if info.Filename != "" {
		j.filename = info.Filename
	}
}

func (j *DownloadJob) snapshot() (filename, title string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.filename, j.title
}

func (j *DownloadJob) setPhase(phase domain.JobPhase) {
	j.state.phase.Store(phase)
	j.publisher.Publish(j.ctx, domain.Event{
		Kind:    domain.EventPhase,
		EntryID: j.entry.ID,
		Phase:   phase,
	})
}

func abortedResult() *domain.JobResult {
	return &domain.JobResult{
		Outcome: domain.OutcomeAborted,
		Err:     &domain.JobError{Kind: domain.KindAbortedByUser, Err: domain.ErrAbortedByUser},
	}
}

func failedResult(err error) *domain.JobResult {
	jobErr := domain.NewJobError(err)
	if jobErr.Kind == domain.KindTrimFailed {
		// trim failures downgrade to an untrimmed completion, never a failure
		jobErr = &domain.JobError{Kind: domain.KindUnknownError, Err: fmt.Errorf("%w: %w", domain.ErrUnknown, err)}
	}
	return &domain.JobResult{
		Outcome: domain.OutcomeFailed,
		Err:     jobErr,
	}
}
