package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kkdai/youtube/v2"

	"github.com/yourusername/clipq-go/internal/domain"
	"github.com/yourusername/clipq-go/pkg/logger"
	"go.uber.org/zap"
)

const copyChunkSize = 32 * 1024

// youtubeClient is the part of youtube.Client the library strategy uses
type youtubeClient interface {
	GetVideoContext(ctx context.Context, url string) (*youtube.Video, error)
	GetStreamContext(ctx context.Context, video *youtube.Video, format *youtube.Format) (io.ReadCloser, int64, error)
}

// LibraryExtractor resolves and downloads in-process with kkdai/youtube
type LibraryExtractor struct {
	client youtubeClient
	logs   *logger.LoggerAdapter
}

// NewLibraryExtractor creates an in-process extractor
func NewLibraryExtractor(logs *logger.LoggerAdapter) *LibraryExtractor {
	return newLibraryExtractor(&youtube.Client{}, logs)
}

func newLibraryExtractor(client youtubeClient, logs *logger.LoggerAdapter) *LibraryExtractor {
	if logs == nil {
		logs = logger.NewSingleLoggerAdapter(nil)
	}
	return &LibraryExtractor{client: client, logs: logs}
}

// Name returns the strategy this extractor implements
func (e *LibraryExtractor) Name() domain.StrategyKind {
	return domain.StrategyLibrary
}

// AppliesSections is false: trimming happens after the download
func (e *LibraryExtractor) AppliesSections() bool {
	return false
}

// Resolve fetches video metadata and picks the format a download would use
func (e *LibraryExtractor) Resolve(ctx context.Context, req domain.ExtractRequest) (*domain.MediaInfo, error) {
	video, err := e.client.GetVideoContext(ctx, req.URL)
	if err != nil {
		return nil, e.wrapErr(ctx, "fetch video", err)
	}

	media := &domain.MediaInfo{Title: video.Title}
	if n := len(video.Thumbnails); n > 0 {
		media.ThumbnailURL = video.Thumbnails[n-1].URL
	}
	for _, f := range video.Formats {
		media.Formats = append(media.Formats, domain.FormatInfo{
			ID:       strconv.Itoa(f.ItagNo),
			Ext:      mimeToExt(f.MimeType),
			Quality:  f.QualityLabel,
			Filesize: f.ContentLength,
		})
	}

	if format, err := selectFormat(video.Formats, req.Format); err == nil {
		if format.ContentLength > 0 {
			size := format.ContentLength
			media.Filesize = &size
		}
		media.Filename = outputPath(req.DestFolder, video.Title, format)
	}
	return media, nil
}

// Download streams the selected format to <dest>/<title>.<ext>
func (e *LibraryExtractor) Download(ctx context.Context, req domain.ExtractRequest, sink domain.ProgressSink) (string, error) {
	video, err := e.client.GetVideoContext(ctx, req.URL)
	if err != nil {
		return "", e.wrapErr(ctx, "fetch video", err)
	}

	format, err := selectFormat(video.Formats, req.Format)
	if err != nil {
		return "", err
	}

	path := outputPath(req.DestFolder, video.Title, format)
	sink.Filename(path)
	sink.Status(fmt.Sprintf("Downloading %s (itag %d)", filepath.Base(path), format.ItagNo))

	stream, size, err := e.client.GetStreamContext(ctx, video, format)
	if err != nil {
		return path, e.wrapErr(ctx, "start stream", err)
	}
	defer stream.Close()

	if size <= 0 {
		size = format.ContentLength
	}

	file, err := os.Create(path)
	if err != nil {
		return path, fmt.Errorf("failed to create output file: %w", err)
	}

	written, err := copyWithProgress(ctx, file, stream, size, sink)
	closeErr := file.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return path, e.wrapErr(ctx, "download", err)
	}

	sink.Progress(domain.ProgressUpdate{Downloaded: written, Total: size, Fraction: -1, Done: true})
	e.logs.Queue().Debug("Library download finished",
		zap.String("entry_id", req.EntryID),
		zap.String("path", path),
		zap.Int64("bytes", written))
	return path, nil
}

func (e *LibraryExtractor) wrapErr(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return domain.ErrAbortedByUser
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrExtractionError, op, err)
}

// copyWithProgress copies in fixed chunks, checking ctx between chunks
func copyWithProgress(ctx context.Context, dst io.Writer, src io.Reader, total int64, sink domain.ProgressSink) (int64, error) {
	buf := make([]byte, copyChunkSize)
	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		n, readErr := src.Read(buf)
		if n > 0 {
			if _, err := dst.Write(buf[:n]); err != nil {
				return written, err
			}
			written += int64(n)
			if total > 0 {
				sink.Progress(domain.ProgressUpdate{Downloaded: written, Total: total, Fraction: -1})
			}
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, readErr
		}
	}
}

// selectFormat interprets a format selector against the available formats:
// best (muxed with audio), bestaudio/audio, a numeric itag or a quality label
func selectFormat(formats youtube.FormatList, selector string) (*youtube.Format, error) {
	selector = strings.ToLower(strings.TrimSpace(selector))

	var pick func(f *youtube.Format) bool
	switch selector {
	case "", domain.DefaultFormat:
		pick = func(f *youtube.Format) bool { return f.AudioChannels > 0 && f.Width > 0 }
	case "bestaudio", "audio":
		pick = func(f *youtube.Format) bool { return f.AudioChannels > 0 && f.Width == 0 }
	default:
		if itag, err := strconv.Atoi(selector); err == nil {
			pick = func(f *youtube.Format) bool { return f.ItagNo == itag }
		} else {
			pick = func(f *youtube.Format) bool { return strings.EqualFold(f.QualityLabel, selector) }
		}
	}

	var best *youtube.Format
	for i := range formats {
		f := &formats[i]
		if !pick(f) {
			continue
		}
		if best == nil || f.Bitrate > best.Bitrate || (f.Bitrate == best.Bitrate && f.AudioChannels > best.AudioChannels) {
			best = f
		}
	}

	// a selector naming nothing muxed still downloads something for "best"
	if best == nil && (selector == "" || selector == domain.DefaultFormat) {
		for i := range formats {
			if best == nil || formats[i].Bitrate > best.Bitrate {
				best = &formats[i]
			}
		}
	}

	if best == nil {
		return nil, fmt.Errorf("%w: no format matches %q", domain.ErrExtractionError, selector)
	}
	return best, nil
}

func outputPath(dest, title string, format *youtube.Format) string {
	name := SanitizeTitle(title)
	if name == "" {
		name = "video"
	}
	return filepath.Join(dest, name+"."+mimeToExt(format.MimeType))
}

// mimeToExt maps "video/mp4; codecs=..." to "mp4"
func mimeToExt(mime string) string {
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = mime[:i]
	}
	_, sub, ok := strings.Cut(strings.TrimSpace(mime), "/")
	if !ok || sub == "" {
		return "bin"
	}
	switch sub {
	case "3gpp":
		return "3gp"
	case "mpeg":
		return "mp3"
	default:
		return sub
	}
}
