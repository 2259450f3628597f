package domain

import "context"

// Transcoder cuts a media file between two timestamps
type Transcoder interface {
	// CopyTrim cuts without re-encoding
	CopyTrim(ctx context.Context, src, dst, start, end string) error

	// ReencodeTrim cuts with explicit encoders and a duration in seconds
	ReencodeTrim(ctx context.Context, src, dst, start string, duration int) error
}

// ThumbnailFetcher downloads thumbnail bytes
type ThumbnailFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}
