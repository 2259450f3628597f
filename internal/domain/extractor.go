package domain

import (
	"context"
	"math"
)

// StrategyKind names an extraction strategy
type StrategyKind string

const (
	StrategyLibrary StrategyKind = "library"
	StrategyCLI     StrategyKind = "cli"
)

// ExtractRequest is what an extractor needs to resolve or download one entry
type ExtractRequest struct {
	EntryID    string
	URL        string
	Format     string
	DestFolder string
	Trim       *TrimRange
}

// FormatInfo describes one downloadable format of a media item
type FormatInfo struct {
	ID       string `json:"id"`
	Ext      string `json:"ext,omitempty"`
	Quality  string `json:"quality,omitempty"`
	Filesize int64  `json:"filesize,omitempty"`
}

// MediaInfo is the metadata an extractor resolves without downloading
type MediaInfo struct {
	Title        string       `json:"title,omitempty"`
	ThumbnailURL string       `json:"thumbnail_url,omitempty"`
	Filesize     *int64       `json:"filesize,omitempty"`
	Filename     string       `json:"filename,omitempty"`
	Formats      []FormatInfo `json:"formats,omitempty"`
}

// ProgressUpdate is one progress report from an extractor. Total is zero when
// unknown; Fraction is the extractor's own 0..1 estimate, negative if absent.
type ProgressUpdate struct {
	Downloaded int64
	Total      int64
	Fraction   float64
	Done       bool
}

// Percent converts the update into 0..100, or -1 when nothing is known
func (p ProgressUpdate) Percent() int {
	switch {
	case p.Done:
		return 100
	case p.Total > 0:
		pct := int(p.Downloaded * 100 / p.Total)
		if pct > 100 {
			pct = 100
		}
		return pct
	case p.Fraction >= 0:
		pct := int(math.Floor(p.Fraction*100 + 1e-9))
		if pct > 100 {
			pct = 100
		}
		return pct
	default:
		return -1
	}
}

// ProgressSink receives what an extractor learns while downloading
type ProgressSink interface {
	Progress(update ProgressUpdate)
	Status(text string)
	Filename(path string)
}

// Extractor resolves URLs to media and downloads them
type Extractor interface {
	// Name identifies the strategy in logs and status messages
	Name() StrategyKind

	// AppliesSections reports whether Download already cuts the trim range
	AppliesSections() bool

	// Resolve fetches metadata without downloading
	Resolve(ctx context.Context, req ExtractRequest) (*MediaInfo, error)

	// Download fetches the media and returns the advisory output path
	Download(ctx context.Context, req ExtractRequest, sink ProgressSink) (string, error)
}
