package app

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/yourusername/clipq-go/internal/domain"
)

// fakeExtractor writes a file into the destination folder and reports a
// scripted sequence of progress updates
type fakeExtractor struct {
	kind        domain.StrategyKind
	sections    bool
	title       string
	filename    string // base name written on download
	advisory    string // base name reported to the sink, defaults to filename
	percents    []int
	resolveErr  error
	downloadErr error
	// block makes Download wait for ctx cancellation; blockFirst only
	// blocks the first download
	block      bool
	blockFirst bool
	started    chan struct{}
	// resolveGate holds Resolve until it is closed
	resolveGate chan struct{}

	mu        sync.Mutex
	resolves  int
	downloads int
	running   int
	maxActive int
	order     []string
}

func (f *fakeExtractor) Name() domain.StrategyKind { return f.kind }

func (f *fakeExtractor) AppliesSections() bool { return f.sections }

func (f *fakeExtractor) Resolve(ctx context.Context, req domain.ExtractRequest) (*domain.MediaInfo, error) {
	f.mu.Lock()
	f.resolves++
	f.mu.Unlock()

	if f.resolveGate != nil {
		select {
		case <-f.resolveGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.resolveErr != nil {
		return nil, f.resolveErr
	}
	size := int64(2048)
	return &domain.MediaInfo{
		Title:        f.title,
		ThumbnailURL: "https://img.example.com/" + f.title + ".jpg",
		Filesize:     &size,
	}, nil
}

func (f *fakeExtractor) Download(ctx context.Context, req domain.ExtractRequest, sink domain.ProgressSink) (string, error) {
	f.mu.Lock()
	f.downloads++
	first := f.downloads == 1
	f.running++
	if f.running > f.maxActive {
		f.maxActive = f.running
	}
	f.order = append(f.order, req.EntryID)
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.running--
		f.mu.Unlock()
	}()

	if first && f.started != nil {
		close(f.started)
	}
	if f.block || (first && f.blockFirst) {
		<-ctx.Done()
		return "", domain.ErrAbortedByUser
	}
	if f.downloadErr != nil {
		return "", f.downloadErr
	}

	for _, pct := range f.percents {
		sink.Progress(domain.ProgressUpdate{Fraction: float64(pct) / 100})
	}

	name := f.filename
	if name == "" {
		name = f.title + ".mp4"
	}
	path := filepath.Join(req.DestFolder, name)
	if err := os.WriteFile(path, []byte("media"), 0644); err != nil {
		return "", err
	}

	advisory := path
	if f.advisory != "" {
		advisory = filepath.Join(req.DestFolder, f.advisory)
	}
	sink.Filename(advisory)
	sink.Progress(domain.ProgressUpdate{Fraction: -1, Done: true})
	return advisory, nil
}

func (f *fakeExtractor) downloadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.downloads
}

func (f *fakeExtractor) downloadOrder() ([]string, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.order...), f.maxActive
}

// fakeTranscoder writes dst unless told to fail
type fakeTranscoder struct {
	copyErr     error
	reencodeErr error

	mu       sync.Mutex
	copies   int
	reencode int
}

func (t *fakeTranscoder) CopyTrim(ctx context.Context, src, dst, start, end string) error {
	t.mu.Lock()
	t.copies++
	t.mu.Unlock()
	if t.copyErr != nil {
		// a failed attempt may leave a partial file behind
		os.WriteFile(dst, []byte("partial"), 0644)
		return t.copyErr
	}
	return os.WriteFile(dst, []byte("copy-trimmed"), 0644)
}

func (t *fakeTranscoder) ReencodeTrim(ctx context.Context, src, dst, start string, duration int) error {
	t.mu.Lock()
	t.reencode++
	t.mu.Unlock()
	if t.reencodeErr != nil {
		return t.reencodeErr
	}
	return os.WriteFile(dst, []byte("reencode-trimmed"), 0644)
}

func (t *fakeTranscoder) calls() (int, int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.copies, t.reencode
}

// recordingPublisher keeps every event a worker publishes
type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, ev domain.Event) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return true
}

func (p *recordingPublisher) ofKind(kind domain.EventKind) []domain.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []domain.Event
	for _, ev := range p.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

func (p *recordingPublisher) finished() *domain.JobResult {
	evs := p.ofKind(domain.EventFinished)
	if len(evs) == 0 {
		return nil
	}
	return evs[len(evs)-1].Result
}

// fakeThumbs returns fixed bytes
type fakeThumbs struct{}

func (fakeThumbs) Fetch(ctx context.Context, url string) ([]byte, error) {
	return []byte("jpeg"), nil
}

// recordingNotifier counts notifications
type recordingNotifier struct {
	mu       sync.Mutex
	finished []*domain.Entry
	idle     int
}

func (n *recordingNotifier) NotifyEntryFinished(entry *domain.Entry) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.finished = append(n.finished, entry)
}

func (n *recordingNotifier) NotifyQueueIdle() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.idle++
}

func (n *recordingNotifier) idleCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.idle
}
