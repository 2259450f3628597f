package app

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"github.com/yourusername/clipq-go/internal/domain"
	"github.com/yourusername/clipq-go/pkg/logger"
	"go.uber.org/zap"
)

// Initializer resolves metadata for newly added entries in the background.
// Each dispatch gets its own goroutine; the queue refuses to start while any
// are in flight.
type Initializer struct {
	gateway   *ExtractorGateway
	thumbs    domain.ThumbnailFetcher
	publisher EventPublisher
	logs      *logger.LoggerAdapter

	inFlight atomic.Int64
	wg       sync.WaitGroup
}

// NewInitializer creates a new initializer. thumbs may be nil to skip
// thumbnail downloads.
func NewInitializer(gateway *ExtractorGateway, thumbs domain.ThumbnailFetcher, publisher EventPublisher, logs *logger.LoggerAdapter) *Initializer {
	if logs == nil {
		logs = logger.NewSingleLoggerAdapter(nil)
	}
	return &Initializer{
		gateway:   gateway,
		thumbs:    thumbs,
		publisher: publisher,
		logs:      logs,
	}
}

// InFlight returns the number of initializations that have not settled
func (i *Initializer) InFlight() int {
	return int(i.inFlight.Load())
}

// Wait blocks until every dispatched initialization has settled
func (i *Initializer) Wait() {
	i.wg.Wait()
}

// Dispatch starts a metadata-only resolve for entry. The counter is raised
// before Dispatch returns and lowered once the initialized event has been
// delivered.
func (i *Initializer) Dispatch(ctx context.Context, entry *domain.Entry) {
	i.Reserve()
	i.Launch(ctx, entry)
}

// Reserve raises the in-flight counter ahead of Launch. Callers that make an
// entry visible under their own lock reserve while still holding it, so no
// observer sees the entry without its initialization counted.
func (i *Initializer) Reserve() {
	i.inFlight.Add(1)
	i.wg.Add(1)
}

// Launch runs a reserved initialization. Every Launch must follow exactly
// one Reserve.
func (i *Initializer) Launch(ctx context.Context, entry *domain.Entry) {
	go func() {
		defer i.wg.Done()
		defer i.inFlight.Add(-1)

		i.resolve(ctx, entry)
		i.publisher.Publish(ctx, domain.Event{
			Kind:    domain.EventInitialized,
			EntryID: entry.ID,
		})
	}()
}

func (i *Initializer) resolve(ctx context.Context, entry *domain.Entry) {
	extractor := i.gateway.Select(entry.HasTrim())
	info, err := extractor.Resolve(ctx, domain.ExtractRequest{
		EntryID:    entry.ID,
		URL:        entry.URL,
		Format:     entry.FormatTag,
		DestFolder: entry.DestFolder,
		Trim:       entry.Trim,
	})
	if err != nil {
		i.logs.Queue().Warn("Initialization failed",
			zap.String("entry_id", entry.ID),
			zap.String("strategy", string(extractor.Name())),
			zap.Error(err))
		return
	}

	i.publisher.Publish(ctx, domain.Event{
		Kind:    domain.EventMetadata,
		EntryID: entry.ID,
		Media:   info,
	})

	if info.Filesize != nil && *info.Filesize > 0 {
		i.publisher.Publish(ctx, domain.Event{
			Kind:    domain.EventSizeKnown,
			EntryID: entry.ID,
			Text:    humanize.Bytes(uint64(*info.Filesize)),
			Media:   &domain.MediaInfo{Filesize: info.Filesize},
		})
	}

	if i.thumbs != nil && info.ThumbnailURL != "" {
		data, err := i.thumbs.Fetch(ctx, info.ThumbnailURL)
		if err != nil {
			i.logs.Queue().Debug("Thumbnail fetch failed",
				zap.String("entry_id", entry.ID),
				zap.Error(err))
			return
		}
		i.publisher.Publish(ctx, domain.Event{
			Kind:      domain.EventThumbnail,
			EntryID:   entry.ID,
			Thumbnail: data,
		})
	}
}
